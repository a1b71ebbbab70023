package pools

import (
	"context"
	"fmt"
)

// ProtocolConstraints are the protocol-level numeric limits the registry
// enforces on validator configuration and staking amounts.
type ProtocolConstraints struct {
	EpochPayoutMinsMin     uint64
	EpochPayoutMinsMax     uint64
	MinPctToValidatorWFour uint64
	MaxPctToValidatorWFour uint64
	MinEntryStake          uint64
	MaxAlgoPerPool         uint64
	MaxAlgoPerValidator    uint64
	AmtConsideredSaturated uint64
	MaxNodes               uint64
	MaxPoolsPerNode        uint64
	MaxStakersPerPool      uint64
}

func ProtocolConstraintsFromABIReturn(returnVal any) (*ProtocolConstraints, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unknown value returned from abi, type:%T", returnVal)
	}
	if len(arrReturn) != 11 {
		return nil, fmt.Errorf("should be 11 elements returned in ProtocolConstraints response")
	}
	constraints := &ProtocolConstraints{}
	constraints.EpochPayoutMinsMin = arrReturn[0].(uint64)
	constraints.EpochPayoutMinsMax = arrReturn[1].(uint64)
	constraints.MinPctToValidatorWFour = arrReturn[2].(uint64)
	constraints.MaxPctToValidatorWFour = arrReturn[3].(uint64)
	constraints.MinEntryStake = arrReturn[4].(uint64)
	constraints.MaxAlgoPerPool = arrReturn[5].(uint64)
	constraints.MaxAlgoPerValidator = arrReturn[6].(uint64)
	constraints.AmtConsideredSaturated = arrReturn[7].(uint64)
	constraints.MaxNodes = arrReturn[8].(uint64)
	constraints.MaxPoolsPerNode = arrReturn[9].(uint64)
	constraints.MaxStakersPerPool = arrReturn[10].(uint64)

	return constraints, nil
}

// GetProtocolConstraints fetches the current protocol constraints from the
// registry.  Constraints can change with contract upgrades so they are read
// fresh each time, never cached.
func (c *Client) GetProtocolConstraints(ctx context.Context) (*ProtocolConstraints, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getProtocolConstraints", nil, nil)
	if err != nil {
		return nil, err
	}
	return ProtocolConstraintsFromABIReturn(retVal)
}

// MbrAmounts are the minimum-balance-requirement costs of each operation
// that creates on-chain storage.
type MbrAmounts struct {
	AddValidatorMbr uint64
	AddPoolMbr      uint64
	PoolInitMbr     uint64
	AddStakerMbr    uint64
}

func MbrAmountsFromABIReturn(returnVal any) (MbrAmounts, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return MbrAmounts{}, fmt.Errorf("unknown value returned from abi, type:%T", returnVal)
	}
	if len(arrReturn) != 4 {
		return MbrAmounts{}, fmt.Errorf("should be 4 elements returned in MbrAmounts response")
	}
	return MbrAmounts{
		AddValidatorMbr: arrReturn[0].(uint64),
		AddPoolMbr:      arrReturn[1].(uint64),
		PoolInitMbr:     arrReturn[2].(uint64),
		AddStakerMbr:    arrReturn[3].(uint64),
	}, nil
}

// GetMbrAmounts fetches the registry's current MBR cost schedule.  Like the
// constraints these are re-read on every operation that needs them.
func (c *Client) GetMbrAmounts(ctx context.Context) (MbrAmounts, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getMbrAmounts", nil, nil)
	if err != nil {
		return MbrAmounts{}, err
	}
	return MbrAmountsFromABIReturn(retVal)
}
