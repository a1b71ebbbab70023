package pools

import (
	"errors"
	"fmt"
)

var (
	// ErrValidatorNotFound - the validator id has no complete on-chain record.
	// Logical absence, not a transport fault - don't retry it.
	ErrValidatorNotFound = errors.New("validator not found")
	// ErrNoPoolAssignment - a node has no pool assigned in the node/pool map.
	ErrNoPoolAssignment = errors.New("no pool assignment found")

	ErrCantFetchValidators = errors.New("couldn't fetch num of validators from global state of registry application")
	ErrCantFetchPoolKey    = errors.New("couldn't fetch poolkey data")
)

// SimulationRejectedError - the dry run failed at contract-logic level.  The
// failure message is surfaced verbatim and no fee was computed; the operation
// never reached the real submission.
type SimulationRejectedError struct {
	Message string
}

func (e *SimulationRejectedError) Error() string {
	return fmt.Sprintf("simulation rejected: %s", e.Message)
}

// ExecutionFailedError - the real submission failed after a successful
// simulation.  The group is atomic so no partial state was committed; the
// caller may re-run the whole two-phase protocol from scratch.
type ExecutionFailedError struct {
	Err error
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionFailedError) Unwrap() error {
	return e.Err
}
