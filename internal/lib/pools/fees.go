package pools

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// appBudgetPerTxnFee - each min txn fee of padding buys this much additional
// app call budget during execution.
const appBudgetPerTxnFee = 700

// simulateFeePadding is the deliberately oversized flat fee used during the
// dry run so the simulated group never runs out of budget.
const simulateFeePadding = 240 * transaction.MinTxnFee

// feeForBudget converts the consumed-app-budget metric reported by a
// simulation into the minimum flat fee that lets the same group execute for
// real: one min fee per started 700 budget units, plus one whole min fee of
// fixed overhead for each always-present utility call in the group.  Fees are
// data-dependent - never reuse a computed fee across differing call shapes or
// argument sizes.
func feeForBudget(budgetConsumed uint64, extraFlatCalls uint64) types.MicroAlgos {
	perBudget := (budgetConsumed + appBudgetPerTxnFee - 1) / appBudgetPerTxnFee * transaction.MinTxnFee
	return types.MicroAlgos(perBudget + extraFlatCalls*transaction.MinTxnFee)
}

// GroupPhase tracks where a two-phase group is in its lifecycle, making
// partial-failure states explicit.
type GroupPhase int

const (
	PhaseBuilt GroupPhase = iota
	PhaseSimulated
	PhaseFeeComputed
	PhaseSubmitted
	PhaseCommitted
	PhaseFailed
)

// TwoPhaseGroup drives the mandatory simulate-then-execute protocol for a
// state-mutating transaction group.  Build is invoked twice: with fee 0 for
// the signature-free dry run, then again - from scratch, because phase 1
// group-stamped the transactions - with the computed real fee.
type TwoPhaseGroup struct {
	// Build assembles the complete group (any MBR/stake payment first, app
	// calls after) with the given flat fee on the fee-bearing call.  A fee of
	// 0 means the dry-run variant.
	Build func(fee types.MicroAlgos) (transaction.AtomicTransactionComposer, error)
	// ExtraFlatCalls counts the always-present utility calls in the group
	// whose fixed overhead is not reflected in the consumed-budget metric.
	ExtraFlatCalls uint64

	phase GroupPhase
	fee   types.MicroAlgos
}

func (g *TwoPhaseGroup) Phase() GroupPhase {
	return g.phase
}

// Fee returns the computed real fee - valid once the phase has reached
// PhaseFeeComputed.
func (g *TwoPhaseGroup) Fee() types.MicroAlgos {
	return g.fee
}

// Execute runs both phases to completion.  A contract-level rejection during
// the dry run surfaces as SimulationRejectedError and phase 2 never starts; a
// failure of the real submission surfaces as ExecutionFailedError (the group
// is atomic, nothing partial was committed).  No retries at any step.
func (g *TwoPhaseGroup) Execute(ctx context.Context, algoClient *algod.Client) (transaction.ExecuteResult, error) {
	atc, err := g.Build(0)
	if err != nil {
		g.phase = PhaseFailed
		return transaction.ExecuteResult{}, err
	}
	g.phase = PhaseBuilt

	simResult, err := atc.Simulate(ctx, algoClient, models.SimulateRequest{
		AllowEmptySignatures:  true,
		AllowUnnamedResources: true,
	})
	if err != nil {
		g.phase = PhaseFailed
		return transaction.ExecuteResult{}, err
	}
	if simResult.SimulateResponse.TxnGroups[0].FailureMessage != "" {
		g.phase = PhaseFailed
		return transaction.ExecuteResult{}, &SimulationRejectedError{Message: simResult.SimulateResponse.TxnGroups[0].FailureMessage}
	}
	g.phase = PhaseSimulated

	// The budget metric may under-report (eg: nothing actually ran) - we still
	// produce a numeric fee and let the real submission be the authority.
	g.fee = feeForBudget(simResult.SimulateResponse.TxnGroups[0].AppBudgetAdded, g.ExtraFlatCalls)
	if g.fee < transaction.MinTxnFee {
		// fee 0 is the dry-run sentinel inside Build - floor the computed fee
		// so an under-reported budget can't resubmit with the simulate padding
		g.fee = transaction.MinTxnFee
	}
	g.phase = PhaseFeeComputed

	atc, err = g.Build(g.fee)
	if err != nil {
		g.phase = PhaseFailed
		return transaction.ExecuteResult{}, err
	}
	g.phase = PhaseSubmitted

	result, err := atc.Execute(algoClient, ctx, 4)
	if err != nil {
		g.phase = PhaseFailed
		return result, &ExecutionFailedError{Err: err}
	}
	g.phase = PhaseCommitted
	return result, nil
}
