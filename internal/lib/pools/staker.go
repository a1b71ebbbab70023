package pools

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// StakerPoolData is one pool's ledger entry for a staker, joined with the
// pool's identity.
type StakerPoolData struct {
	StakedInfo
	PoolKey ValidatorPoolKey
}

// StakerValidatorData is a staker's aggregate position with one validator,
// folded from every pool of that validator the staker is in.
type StakerValidatorData struct {
	ValidatorID        uint64
	Balance            uint64
	TotalRewarded      uint64
	RewardTokenBalance uint64
	// EntryTime is the EARLIEST entry across the validator's pools
	EntryTime uint64
	Pools     []StakerPoolData
}

// FetchStakerValidatorData returns the staker's aggregate position per
// validator: the pool membership set is read from the registry, each member
// pool's ledger entry is fetched through the batched scheduler, and the
// per-pool records are folded by validator id.
func (c *Client) FetchStakerValidatorData(ctx context.Context, staker types.Address) ([]*StakerValidatorData, error) {
	poolKeys, err := c.GetStakedPoolsForAccount(ctx, staker)
	if err != nil {
		return nil, err
	}
	fns := make([]func() (StakerPoolData, error), len(poolKeys))
	for i, poolKey := range poolKeys {
		fns[i] = func() (StakerPoolData, error) {
			info, err := c.GetStakerInfoForPool(ctx, poolKey.PoolAppID, staker)
			if err != nil {
				return StakerPoolData{}, err
			}
			return StakerPoolData{StakedInfo: *info, PoolKey: *poolKey}, nil
		}
	}
	poolData, err := fetchBatched(fns)
	if err != nil {
		return nil, err
	}
	return aggregateStakerData(poolData), nil
}

// aggregateStakerData folds per-pool records into one record per validator.
// Validators appear in order of their first pool in the input, and each
// validator's pool list preserves input order, so the result is stable for a
// given membership list.
func aggregateStakerData(poolData []StakerPoolData) []*StakerValidatorData {
	var aggregated []*StakerValidatorData
	for _, pool := range poolData {
		var target *StakerValidatorData
		for _, existing := range aggregated {
			if existing.ValidatorID == pool.PoolKey.ID {
				target = existing
				break
			}
		}
		if target == nil {
			target = &StakerValidatorData{
				ValidatorID: pool.PoolKey.ID,
				EntryTime:   pool.EntryTime,
			}
			aggregated = append(aggregated, target)
		}
		target.Balance += pool.Balance
		target.TotalRewarded += pool.TotalRewarded
		target.RewardTokenBalance += pool.RewardTokenBalance
		if pool.EntryTime < target.EntryTime {
			target.EntryTime = pool.EntryTime
		}
		target.Pools = append(target.Pools, pool)
	}
	return aggregated
}
