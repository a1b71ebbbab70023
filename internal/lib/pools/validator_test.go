package pools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleValidator(t *testing.T) {
	config := &ValidatorConfig{ID: 1}
	state := &ValidatorCurState{NumPools: 1}
	poolList := []PoolInfo{{PoolAppID: 1234, TotalStakers: 2, TotalAlgoStaked: 5_000_000}}
	payoutRatio := &TokenPayoutRatio{UpdatedForPayout: 100}
	assignments := &NodePoolAssignmentConfig{Nodes: []NodeConfig{{PoolAppIDs: []uint64{1234}}}}

	t.Run("all pieces present", func(t *testing.T) {
		validator, err := assembleValidator(config, state, poolList, payoutRatio, assignments)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), validator.Config.ID)
		assert.Len(t, validator.Pools, 1)
	})

	// there is no such thing as a partially populated validator
	testCases := []struct {
		name        string
		config      *ValidatorConfig
		state       *ValidatorCurState
		pools       []PoolInfo
		payoutRatio *TokenPayoutRatio
		assignments *NodePoolAssignmentConfig
	}{
		{"missing config", nil, state, poolList, payoutRatio, assignments},
		{"missing state", config, nil, poolList, payoutRatio, assignments},
		{"empty pools", config, state, nil, payoutRatio, assignments},
		{"missing payout ratio", config, state, poolList, nil, assignments},
		{"missing assignments", config, state, poolList, payoutRatio, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := assembleValidator(tc.config, tc.state, tc.pools, tc.payoutRatio, tc.assignments)
			assert.True(t, errors.Is(err, ErrValidatorNotFound))
		})
	}
}

func TestValidatorConfigFromABIReturn(t *testing.T) {
	ownerPK := make([]uint8, 32)
	ownerPK[0] = 1
	managerPK := make([]uint8, 32)
	managerPK[0] = 2
	commissionPK := make([]uint8, 32)
	commissionPK[0] = 3
	gatingValue := make([]uint8, 32)
	gatingValue[7] = 42 // asset id 42, big-endian in first 8 bytes

	abiReturn := []any{
		uint64(5),        // id
		ownerPK,          // owner
		managerPK,        // manager
		uint64(0),        // nfdForInfo
		uint8(2),         // entryGatingType (asset id)
		gatingValue,      // entryGatingValue
		uint64(1),        // gatingAssetMinBalance
		uint64(0),        // rewardTokenId
		uint64(0),        // rewardPerPayout
		uint16(60 * 24),  // payoutEveryXMins
		uint32(50_000),   // percentToValidator (5%)
		commissionPK,     // validatorCommissionAddress
		uint64(1_000_000),          // minEntryStake
		uint64(70_000_000_000_000), // maxAlgoPerPool
		uint8(3),                   // poolsPerNode
		uint64(0),                  // sunsettingOn
		uint64(0),                  // sunsettingTo
	}
	config, err := ValidatorConfigFromABIReturn(abiReturn)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), config.ID)
	assert.Equal(t, GatingTypeAssetID, config.EntryGating.Type)
	assert.Equal(t, uint64(42), config.EntryGating.ID)
	assert.Equal(t, 1440, config.EpochPayoutMins)
	assert.Equal(t, 50_000, config.PercentToValidator)
	assert.Equal(t, 3, config.PoolsPerNode)

	_, err = ValidatorConfigFromABIReturn("not a tuple")
	assert.Error(t, err)
	_, err = ValidatorConfigFromABIReturn([]any{uint64(1)})
	assert.Error(t, err)
}

func TestValidatorPoolKeyFromABIReturn(t *testing.T) {
	key, err := ValidatorPoolKeyFromABIReturn([]any{uint64(1), uint64(2), uint64(3000)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), key.ID)
	assert.Equal(t, uint64(2), key.PoolID)
	assert.Equal(t, uint64(3000), key.PoolAppID)

	_, err = ValidatorPoolKeyFromABIReturn(nil)
	assert.True(t, errors.Is(err, ErrCantFetchPoolKey))
}

func TestNodePoolAssignmentFromABIReturn(t *testing.T) {
	// two nodes, first with two pools, second empty - zero app ids are
	// placeholder slots and must be dropped
	abiReturn := []any{
		[]any{
			[]any{[]any{uint64(101), uint64(102), uint64(0)}},
			[]any{[]any{uint64(0), uint64(0), uint64(0)}},
		},
	}
	assignments, err := NodePoolAssignmentFromABIReturn(abiReturn)
	require.NoError(t, err)
	require.Len(t, assignments.Nodes, 2)
	assert.Equal(t, []uint64{101, 102}, assignments.Nodes[0].PoolAppIDs)
	assert.Empty(t, assignments.Nodes[1].PoolAppIDs)

	ids, err := assignments.PoolsForNode(1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{101, 102}, ids)

	_, err = assignments.PoolsForNode(2)
	assert.True(t, errors.Is(err, ErrNoPoolAssignment))

	_, err = assignments.PoolsForNode(3)
	assert.Error(t, err)
	_, err = assignments.PoolsForNode(0)
	assert.Error(t, err)
}
