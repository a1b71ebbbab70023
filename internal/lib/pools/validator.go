package pools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/mailgun/holster/v4/syncutil"

	"github.com/stakewell/stakectl/internal/lib/algo"
	"github.com/stakewell/stakectl/internal/lib/misc"
)

type ValidatorConfig struct {
	// ID of this validator (sequentially assigned)
	ID uint64
	// Account that controls config - presumably cold-wallet
	Owner string
	// Account that triggers/pays for operational transactions - needs to be a hot wallet
	Manager string
	// Optional NFD AppID which the validator uses to describe their validator pool
	NFDForInfo uint64

	// Entry gating policy - who may stake into this validator's pools
	EntryGating GatingValue
	// Minimum balance of the gating asset the staker must hold (0 means 'any')
	GatingAssetMinBalance uint64

	// Optional reward token paid out to stakers each payout
	RewardTokenID   uint64
	RewardPerPayout uint64

	// Payout frequency in minutes
	EpochPayoutMins int
	// Payout percentage expressed w/ four decimals - ie: 50000 = 5%
	PercentToValidator int
	// account that receives the validation commission each epoch payout (can be ZeroAddress)
	ValidatorCommissionAddress string
	// minimum stake required to enter a pool - but must withdraw all if going below this amount as well(!)
	MinEntryStake uint64
	// maximum stake allowed per pool (to keep under incentive limits)
	MaxAlgoPerPool uint64
	// Number of pools to allow per node (max of 3 is recommended)
	PoolsPerNode int

	SunsettingOn uint64
	SunsettingTo uint64
}

func (v *ValidatorConfig) String() string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("ID: %d\n", v.ID))
	out.WriteString(fmt.Sprintf("Owner: %s\n", v.Owner))
	out.WriteString(fmt.Sprintf("Manager: %s\n", v.Manager))
	out.WriteString(fmt.Sprintf("Validator Commission Address: %s\n", v.ValidatorCommissionAddress))
	out.WriteString(fmt.Sprintf("%% to Validator: %.04f\n", float64(v.PercentToValidator)/10_000.0))
	if v.NFDForInfo != 0 {
		out.WriteString(fmt.Sprintf("NFD ID: %d\n", v.NFDForInfo))
	}
	out.WriteString(fmt.Sprintf("Entry Gating: %s\n", v.EntryGating.Type))
	if v.RewardTokenID != 0 {
		out.WriteString(fmt.Sprintf("Reward Token ID: %d, per payout: %d\n", v.RewardTokenID, v.RewardPerPayout))
	}
	out.WriteString(fmt.Sprintf("Payout Every %d mins\n", v.EpochPayoutMins))
	out.WriteString(fmt.Sprintf("Min Entry Stake: %s\n", algo.FormattedAlgoAmount(v.MinEntryStake)))
	out.WriteString(fmt.Sprintf("Max Algo Per Pool: %s\n", algo.FormattedAlgoAmount(v.MaxAlgoPerPool)))
	out.WriteString(fmt.Sprintf("Max Pools per Node: %d\n", v.PoolsPerNode))

	return out.String()
}

func ValidatorConfigFromABIReturn(returnVal any) (*ValidatorConfig, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unknown value returned from abi, type:%T", returnVal)
	}
	if len(arrReturn) != 17 {
		return nil, fmt.Errorf("should be 17 elements returned in ValidatorConfig response")
	}
	pkAsString := func(pk []uint8) string {
		addr, _ := types.EncodeAddress(pk)
		return addr
	}
	config := &ValidatorConfig{}
	config.ID = arrReturn[0].(uint64)
	config.Owner = pkAsString(arrReturn[1].([]uint8))
	config.Manager = pkAsString(arrReturn[2].([]uint8))
	config.NFDForInfo = arrReturn[3].(uint64)
	gatingType := GatingType(arrReturn[4].(uint8))
	var rawGating [32]byte
	copy(rawGating[:], arrReturn[5].([]uint8))
	gatingValue, err := DecodeGatingValue(gatingType, rawGating)
	if err != nil {
		return nil, err
	}
	config.EntryGating = gatingValue
	config.GatingAssetMinBalance = arrReturn[6].(uint64)
	config.RewardTokenID = arrReturn[7].(uint64)
	config.RewardPerPayout = arrReturn[8].(uint64)
	config.EpochPayoutMins = int(arrReturn[9].(uint16))
	config.PercentToValidator = int(arrReturn[10].(uint32))
	config.ValidatorCommissionAddress = pkAsString(arrReturn[11].([]uint8))
	config.MinEntryStake = arrReturn[12].(uint64)
	config.MaxAlgoPerPool = arrReturn[13].(uint64)
	config.PoolsPerNode = int(arrReturn[14].(uint8))
	config.SunsettingOn = arrReturn[15].(uint64)
	config.SunsettingTo = arrReturn[16].(uint64)

	return config, nil
}

type ValidatorCurState struct {
	NumPools            int    // current number of pools this validator has - capped at MaxPools
	TotalStakers        uint64 // total number of stakers across all pools
	TotalAlgoStaked     uint64 // total amount staked to this validator across ALL of its pools
	RewardTokenHeldBack uint64 // reward token balance committed to stakers but not yet claimed
}

func (v *ValidatorCurState) String() string {
	return fmt.Sprintf("NumPools: %d, TotalStakers: %d, TotalAlgoStaked: %d", v.NumPools, v.TotalStakers, v.TotalAlgoStaked)
}

func ValidatorCurStateFromABIReturn(returnVal any) (*ValidatorCurState, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unknown value returned from abi, type:%T", returnVal)
	}
	if len(arrReturn) != 4 {
		return nil, fmt.Errorf("should be 4 elements returned in ValidatorCurState response")
	}
	state := &ValidatorCurState{}
	state.NumPools = int(arrReturn[0].(uint16))
	state.TotalStakers = arrReturn[1].(uint64)
	state.TotalAlgoStaked = arrReturn[2].(uint64)
	state.RewardTokenHeldBack = arrReturn[3].(uint64)

	return state, nil
}

// ValidatorPoolKey uniquely addresses one pool - the join key between the
// registry and the per-pool contracts.
type ValidatorPoolKey struct {
	ID        uint64 // 0 is invalid - should start at 1 (but is direct key in box)
	PoolID    uint64 // 0 means INVALID ! - so 1 is index, technically of [0]
	PoolAppID uint64
}

func (v *ValidatorPoolKey) String() string {
	return fmt.Sprintf("ValidatorPoolKey{ID: %d, PoolID: %d, PoolAppID: %d}", v.ID, v.PoolID, v.PoolAppID)
}

func ValidatorPoolKeyFromABIReturn(returnVal any) (*ValidatorPoolKey, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return nil, ErrCantFetchPoolKey
	}
	if len(arrReturn) != 3 {
		return nil, fmt.Errorf("should be 3 elements returned in ValidatorPoolKey response")
	}
	key := &ValidatorPoolKey{}
	key.ID = arrReturn[0].(uint64)
	key.PoolID = arrReturn[1].(uint64)
	key.PoolAppID = arrReturn[2].(uint64)

	return key, nil
}

type PoolInfo struct {
	PoolAppID       uint64 // The App ID of this staking pool contract instance
	TotalStakers    int
	TotalAlgoStaked uint64
}

func ValidatorPoolsFromABIReturn(returnVal any) ([]PoolInfo, error) {
	var retPools []PoolInfo
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return retPools, ErrCantFetchPoolKey
	}
	for _, poolInfoAny := range arrReturn {
		poolInfo, ok := poolInfoAny.([]any)
		if !ok || len(poolInfo) != 3 {
			return nil, fmt.Errorf("should be 3 elements returned in PoolInfo response")
		}
		retPools = append(retPools, PoolInfo{
			PoolAppID:       poolInfo[0].(uint64),
			TotalStakers:    int(poolInfo[1].(uint16)),
			TotalAlgoStaked: poolInfo[2].(uint64),
		})
	}
	return retPools, nil
}

type NodeConfig struct {
	PoolAppIDs []uint64
}

type NodePoolAssignmentConfig struct {
	Nodes []NodeConfig
}

// PoolsForNode returns the pool app ids assigned to the given 1-based node
// number, or ErrNoPoolAssignment if the node has none.
func (n *NodePoolAssignmentConfig) PoolsForNode(nodeNum int) ([]uint64, error) {
	if nodeNum < 1 || nodeNum > len(n.Nodes) {
		return nil, fmt.Errorf("node number:%d is invalid for number of on-chain nodes configured:%d", nodeNum, len(n.Nodes))
	}
	ids := n.Nodes[nodeNum-1].PoolAppIDs
	if len(ids) == 0 {
		return nil, ErrNoPoolAssignment
	}
	return ids, nil
}

func NodePoolAssignmentFromABIReturn(returnVal any) (*NodePoolAssignmentConfig, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok || len(arrReturn) != 1 {
		return nil, fmt.Errorf("unknown value returned from abi, type:%T", returnVal)
	}
	nodesArr, ok := arrReturn[0].([]any)
	if !ok {
		return nil, fmt.Errorf("unknown node-set value returned from abi, type:%T", arrReturn[0])
	}
	retConfig := &NodePoolAssignmentConfig{}
	for _, nodeAny := range nodesArr {
		nodeTuple, ok := nodeAny.([]any)
		if !ok || len(nodeTuple) != 1 {
			return nil, fmt.Errorf("unknown node value returned from abi, type:%T", nodeAny)
		}
		appIDsArr, ok := nodeTuple[0].([]any)
		if !ok {
			return nil, fmt.Errorf("unknown appid-set value returned from abi, type:%T", nodeTuple[0])
		}
		var node NodeConfig
		for _, appIDAny := range appIDsArr {
			if appID := appIDAny.(uint64); appID != 0 {
				node.PoolAppIDs = append(node.PoolAppIDs, appID)
			}
		}
		retConfig.Nodes = append(retConfig.Nodes, node)
	}
	return retConfig, nil
}

// TokenPayoutRatio is the percentage of a reward-token payout each pool
// receives, recalculated as part of the first pool's payout each epoch.
type TokenPayoutRatio struct {
	// PoolPctOfWhole is % of payout (w/ 4 decimals) per pool
	PoolPctOfWhole []uint64
	// UpdatedForPayout is the round the ratios were last recalculated for
	UpdatedForPayout uint64
}

func TokenPayoutRatioFromABIReturn(returnVal any) (*TokenPayoutRatio, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok || len(arrReturn) != 2 {
		return nil, fmt.Errorf("unknown value returned from abi, type:%T", returnVal)
	}
	ratiosArr, ok := arrReturn[0].([]any)
	if !ok {
		return nil, fmt.Errorf("unknown ratio-set value returned from abi, type:%T", arrReturn[0])
	}
	ratio := &TokenPayoutRatio{}
	for _, pctAny := range ratiosArr {
		ratio.PoolPctOfWhole = append(ratio.PoolPctOfWhole, pctAny.(uint64))
	}
	ratio.UpdatedForPayout = arrReturn[1].(uint64)
	return ratio, nil
}

// Validator is the complete logical validator entity - it only exists when
// every constituent read resolves.  There is no such thing as a partially
// populated Validator.
type Validator struct {
	Config              ValidatorConfig
	State               ValidatorCurState
	Pools               []PoolInfo
	TokenPayoutRatio    TokenPayoutRatio
	NodePoolAssignments NodePoolAssignmentConfig
}

// runReadCall performs a single read-only method call via simulation, with
// the neutral dummy sender and no signatures - safe because reads mutate
// nothing, and means no wallet is needed for any query.
func (c *Client) runReadCall(ctx context.Context, contract *abi.Contract, appID uint64, methodName string, args []any, boxRefs []types.AppBoxReference) (any, error) {
	params, err := c.algoClient.SuggestedParams().Do(ctx)
	if err != nil {
		return nil, err
	}
	method, err := contract.GetMethodByName(methodName)
	if err != nil {
		return nil, err
	}
	atc := transaction.AtomicTransactionComposer{}
	err = atc.AddMethodCall(transaction.AddMethodCallParams{
		AppID:           appID,
		Method:          method,
		MethodArgs:      args,
		BoxReferences:   boxRefs,
		SuggestedParams: params,
		OnComplete:      types.NoOpOC,
		Sender:          DummySender,
		Signer:          transaction.EmptyTransactionSigner{},
	})
	if err != nil {
		return nil, err
	}
	result, err := atc.Simulate(ctx, c.algoClient, models.SimulateRequest{
		AllowEmptySignatures:  true,
		AllowUnnamedResources: true,
	})
	if err != nil {
		return nil, err
	}
	if result.SimulateResponse.TxnGroups[0].FailureMessage != "" {
		return nil, &SimulationRejectedError{Message: result.SimulateResponse.TxnGroups[0].FailureMessage}
	}
	return result.MethodResults[0].ReturnValue, nil
}

func validatorBoxRefs(id uint64) []types.AppBoxReference {
	return []types.AppBoxReference{
		{AppID: 0, Name: GetValidatorListBoxName(id)},
		{AppID: 0, Name: nil}, // extra i/o
	}
}

func (c *Client) GetValidatorConfig(ctx context.Context, id uint64) (*ValidatorConfig, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getValidatorConfig", []any{id}, validatorBoxRefs(id))
	if err != nil {
		return nil, err
	}
	return ValidatorConfigFromABIReturn(retVal)
}

func (c *Client) GetValidatorState(ctx context.Context, id uint64) (*ValidatorCurState, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getValidatorState", []any{id}, validatorBoxRefs(id))
	if err != nil {
		return nil, err
	}
	return ValidatorCurStateFromABIReturn(retVal)
}

func (c *Client) GetValidatorPools(ctx context.Context, id uint64) ([]PoolInfo, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getPools", []any{id}, validatorBoxRefs(id))
	if err != nil {
		return nil, err
	}
	return ValidatorPoolsFromABIReturn(retVal)
}

func (c *Client) GetNodePoolAssignments(ctx context.Context, id uint64) (*NodePoolAssignmentConfig, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getNodePoolAssignments", []any{id}, validatorBoxRefs(id))
	if err != nil {
		return nil, err
	}
	return NodePoolAssignmentFromABIReturn(retVal)
}

func (c *Client) GetTokenPayoutRatio(ctx context.Context, id uint64) (*TokenPayoutRatio, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getTokenPayoutRatio", []any{id}, validatorBoxRefs(id))
	if err != nil {
		return nil, err
	}
	return TokenPayoutRatioFromABIReturn(retVal)
}

// FetchValidator assembles the full Validator entity from its five
// constituent reads, run concurrently.  All five must resolve - a missing or
// empty piece means the validator does not exist as far as callers are
// concerned, and ErrValidatorNotFound is returned rather than a partially
// populated object.
func (c *Client) FetchValidator(ctx context.Context, id uint64) (*Validator, error) {
	var (
		config      *ValidatorConfig
		state       *ValidatorCurState
		poolList    []PoolInfo
		payoutRatio *TokenPayoutRatio
		assignments *NodePoolAssignmentConfig
	)
	var wg syncutil.WaitGroup
	wg.Run(func(any) error {
		var err error
		config, err = c.GetValidatorConfig(ctx, id)
		return err
	}, nil)
	wg.Run(func(any) error {
		var err error
		state, err = c.GetValidatorState(ctx, id)
		return err
	}, nil)
	wg.Run(func(any) error {
		var err error
		poolList, err = c.GetValidatorPools(ctx, id)
		return err
	}, nil)
	wg.Run(func(any) error {
		var err error
		payoutRatio, err = c.GetTokenPayoutRatio(ctx, id)
		return err
	}, nil)
	wg.Run(func(any) error {
		var err error
		assignments, err = c.GetNodePoolAssignments(ctx, id)
		return err
	}, nil)
	if errs := wg.Wait(); errs != nil {
		// A contract-level rejection on a read (box absent) is how the chain
		// says 'no such validator'.
		var rejected *SimulationRejectedError
		if errors.As(errs[0], &rejected) {
			return nil, fmt.Errorf("validator:%d %w", id, ErrValidatorNotFound)
		}
		return nil, errs[0]
	}
	validator, err := assembleValidator(config, state, poolList, payoutRatio, assignments)
	if err != nil {
		return nil, fmt.Errorf("validator:%d %w", id, err)
	}
	return validator, nil
}

func assembleValidator(
	config *ValidatorConfig,
	state *ValidatorCurState,
	poolList []PoolInfo,
	payoutRatio *TokenPayoutRatio,
	assignments *NodePoolAssignmentConfig,
) (*Validator, error) {
	if config == nil || state == nil || len(poolList) == 0 || payoutRatio == nil || assignments == nil {
		return nil, ErrValidatorNotFound
	}
	return &Validator{
		Config:              *config,
		State:               *state,
		Pools:               poolList,
		TokenPayoutRatio:    *payoutRatio,
		NodePoolAssignments: *assignments,
	}, nil
}

func (c *Client) GetNumValidators(ctx context.Context) (uint64, error) {
	appInfo, err := c.algoClient.GetApplicationByID(c.RegistryAppID).Do(ctx)
	if err != nil {
		return 0, err
	}
	numValidators, err := algo.GetUint64FromGlobalState(appInfo.Params.GlobalState, RegistryNumValidators)
	if err != nil {
		return 0, ErrCantFetchValidators
	}
	return numValidators, nil
}

// FetchAllValidators reads the registry's validator count, then fetches every
// validator through the batched scheduler (ids are assigned sequentially from
// 1).  Results are in id order; a single failure aborts the whole listing.
func (c *Client) FetchAllValidators(ctx context.Context) ([]*Validator, error) {
	numValidators, err := c.GetNumValidators(ctx)
	if err != nil {
		return nil, err
	}
	fns := make([]func() (*Validator, error), numValidators)
	for i := range fns {
		id := uint64(i + 1)
		fns[i] = func() (*Validator, error) {
			return c.FetchValidator(ctx, id)
		}
	}
	return fetchBatched(fns)
}

// AddValidator registers a brand-new validator with the registry, paying the
// required MBR in the same atomic group.  Like every state-mutating call this
// runs the two-phase protocol - dry run first to derive the real fee.
func (c *Client) AddValidator(ctx context.Context, config *ValidatorConfig, nfdName string) (uint64, error) {
	params, err := c.algoClient.SuggestedParams().Do(ctx)
	if err != nil {
		return 0, err
	}

	ownerAddr, err := types.DecodeAddress(config.Owner)
	if err != nil {
		return 0, err
	}
	managerAddr, err := types.DecodeAddress(config.Manager)
	if err != nil {
		return 0, err
	}
	commissionAddr, err := types.DecodeAddress(config.ValidatorCommissionAddress)
	if err != nil {
		return 0, err
	}
	gatingValue, err := config.EntryGating.Encode()
	if err != nil {
		return 0, err
	}

	// first determine how much we have to pay in MBR to the registry
	mbrs, err := c.GetMbrAmounts(ctx)
	if err != nil {
		return 0, err
	}
	misc.Debugf(c.Logger, "mbr to add validator:%s", algo.FormattedAlgoAmount(mbrs.AddValidatorMbr))

	// We need to set the box references ourselves, so we need the id of the
	// 'next' validator.  We reference the next two in case someone else
	// registers between our read and our submit.
	curNumValidators, err := c.GetNumValidators(ctx)
	if err != nil {
		return 0, err
	}

	method, err := c.registryContract.GetMethodByName("addValidator")
	if err != nil {
		return 0, err
	}

	group := &TwoPhaseGroup{
		Build: func(fee types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
			atc := transaction.AtomicTransactionComposer{}
			// The MBR payment is rebuilt on every call - it gets group-stamped
			// when the dry-run group is composed and can't be reused.
			paymentTxn, err := transaction.MakePaymentTxn(ownerAddr.String(), c.RegistryAddress().String(), mbrs.AddValidatorMbr, nil, "", params)
			if err != nil {
				return atc, err
			}
			payTxWithSigner := transaction.TransactionWithSigner{
				Txn:    paymentTxn,
				Signer: algo.SignWithAccountForATC(c.signer, ownerAddr.String()),
			}
			callParams := params
			callParams.FlatFee = true
			if fee == 0 {
				fee = simulateFeePadding
			}
			callParams.Fee = fee
			err = atc.AddMethodCall(transaction.AddMethodCallParams{
				AppID:  c.RegistryAppID,
				Method: method,
				MethodArgs: []any{
					// MBR payment
					payTxWithSigner,
					// --
					nfdName,
					[]any{
						uint64(0), // id is ignored and assigned by the contract
						ownerAddr,
						managerAddr,
						config.NFDForInfo,
						uint8(config.EntryGating.Type),
						gatingValue[:],
						config.GatingAssetMinBalance,
						config.RewardTokenID,
						config.RewardPerPayout,
						uint16(config.EpochPayoutMins),
						uint32(config.PercentToValidator),
						commissionAddr,
						config.MinEntryStake,
						config.MaxAlgoPerPool,
						uint8(config.PoolsPerNode),
						config.SunsettingOn,
						config.SunsettingTo,
					},
				},
				BoxReferences: []types.AppBoxReference{
					{AppID: 0, Name: GetValidatorListBoxName(curNumValidators + 1)},
					{AppID: 0, Name: GetValidatorListBoxName(curNumValidators + 2)},
					{AppID: 0, Name: nil}, // extra i/o
				},
				SuggestedParams: callParams,
				OnComplete:      types.NoOpOC,
				Sender:          ownerAddr,
				Signer:          algo.SignWithAccountForATC(c.signer, ownerAddr.String()),
			})
			return atc, err
		},
	}
	result, err := group.Execute(ctx, c.algoClient)
	if err != nil {
		return 0, err
	}
	if validatorID, ok := result.MethodResults[0].ReturnValue.(uint64); ok {
		return validatorID, nil
	}
	return 0, fmt.Errorf("unknown result type:%#v", result.MethodResults)
}
