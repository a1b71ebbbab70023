package pools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stakerPool(validatorID, poolID, balance, rewarded, tokenBal, entryTime uint64) StakerPoolData {
	return StakerPoolData{
		StakedInfo: StakedInfo{
			Balance:            balance,
			TotalRewarded:      rewarded,
			RewardTokenBalance: tokenBal,
			EntryTime:          entryTime,
		},
		PoolKey: ValidatorPoolKey{ID: validatorID, PoolID: poolID, PoolAppID: validatorID*1000 + poolID},
	}
}

func TestAggregateStakerData(t *testing.T) {
	// two pools of validator 1, one pool of validator 7
	poolData := []StakerPoolData{
		stakerPool(1, 1, 100_000_000, 5_000, 10, 2000),
		stakerPool(7, 1, 42_000_000, 0, 0, 1500),
		stakerPool(1, 2, 50_000_000, 1_000, 5, 1000),
	}
	aggregated := aggregateStakerData(poolData)
	require.Len(t, aggregated, 2)

	// validators appear in order of first pool seen
	v1 := aggregated[0]
	assert.Equal(t, uint64(1), v1.ValidatorID)
	assert.Equal(t, uint64(150_000_000), v1.Balance)
	assert.Equal(t, uint64(6_000), v1.TotalRewarded)
	assert.Equal(t, uint64(15), v1.RewardTokenBalance)
	assert.Equal(t, uint64(1000), v1.EntryTime, "entry time must be the earliest across pools")
	require.Len(t, v1.Pools, 2)
	assert.Equal(t, uint64(1), v1.Pools[0].PoolKey.PoolID)
	assert.Equal(t, uint64(2), v1.Pools[1].PoolKey.PoolID)

	v7 := aggregated[1]
	assert.Equal(t, uint64(7), v7.ValidatorID)
	assert.Equal(t, uint64(42_000_000), v7.Balance)
	assert.Equal(t, uint64(1500), v7.EntryTime)
	require.Len(t, v7.Pools, 1)
}

func TestAggregateStakerDataSumsInvariant(t *testing.T) {
	poolData := []StakerPoolData{
		stakerPool(3, 1, 10, 1, 0, 500),
		stakerPool(2, 1, 20, 2, 0, 400),
		stakerPool(3, 2, 30, 3, 0, 300),
		stakerPool(2, 2, 40, 4, 0, 200),
	}
	// summed per-validator balances must equal the sum of inputs no matter
	// the input order
	permuted := []StakerPoolData{poolData[3], poolData[1], poolData[2], poolData[0]}

	for _, input := range [][]StakerPoolData{poolData, permuted} {
		var total uint64
		for _, v := range aggregateStakerData(input) {
			total += v.Balance
		}
		assert.Equal(t, uint64(100), total)
	}
}

func TestAggregateStakerDataEmpty(t *testing.T) {
	assert.Empty(t, aggregateStakerData(nil))
}
