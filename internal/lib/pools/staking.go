package pools

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/stakewell/stakectl/internal/lib/algo"
	"github.com/stakewell/stakectl/internal/lib/misc"
)

// GetStakedPoolsForAccount returns every pool the account currently has stake
// in, across all validators.  An account that has never staked gets an empty
// list, not an error.
func (c *Client) GetStakedPoolsForAccount(ctx context.Context, staker types.Address) ([]*ValidatorPoolKey, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getStakedPoolsForAccount", []any{staker},
		[]types.AppBoxReference{
			{AppID: 0, Name: GetStakerPoolSetBoxName(staker)},
		})
	if err != nil {
		return nil, err
	}
	var retPools []*ValidatorPoolKey
	arrReturn, ok := retVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unknown result type:%T", retVal)
	}
	for _, poolKeyAny := range arrReturn {
		poolKey, err := ValidatorPoolKeyFromABIReturn(poolKeyAny)
		if err != nil {
			return nil, err
		}
		retPools = append(retPools, poolKey)
	}
	return retPools, nil
}

// FindPoolForStaker asks the registry which pool a prospective stake of
// 'amount' would land in.  The contract applies the same placement rules it
// will use at execution time, so the answer is only racy against other
// stakers landing first.
func (c *Client) FindPoolForStaker(ctx context.Context, validatorID uint64, staker types.Address, amount uint64) (*ValidatorPoolKey, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "findPoolForStaker", []any{validatorID, staker, amount},
		validatorBoxRefs(validatorID))
	if err != nil {
		return nil, err
	}
	// findPoolForStaker returns [ValidatorPoolKey, isNewStakerToValidator, isNewStakerToProtocol]
	arrReturn, ok := retVal.([]any)
	if !ok || len(arrReturn) == 0 {
		return nil, ErrCantFetchPoolKey
	}
	return ValidatorPoolKeyFromABIReturn(arrReturn[0])
}

// AddStake adds stake from the staker's account to one of the validator's
// pools (the registry picks which).  First-time stakers have the per-staker
// MBR silently added on top of the requested amount.  Returns the pool the
// stake went to.
func (c *Client) AddStake(ctx context.Context, validatorID uint64, staker types.Address, amount uint64) (*ValidatorPoolKey, error) {
	var amountToStake = amount

	params, err := c.algoClient.SuggestedParams().Do(ctx)
	if err != nil {
		return nil, err
	}

	// first determine how much we might have to add in MBR if this is a first-time staker
	mbrs, err := c.GetMbrAmounts(ctx)
	if err != nil {
		return nil, err
	}

	// has this staker ever staked anything?
	poolKeys, err := c.GetStakedPoolsForAccount(ctx, staker)
	if err != nil {
		return nil, err
	}
	if len(poolKeys) == 0 {
		misc.Infof(c.Logger, "Adding %s ALGO to stake to cover first-time MBR", algo.FormattedAlgoAmount(mbrs.AddStakerMbr))
		amountToStake += mbrs.AddStakerMbr
	}

	// We have to declare box references up front, which means knowing which
	// pool the stake will land in before the group is built.  Ask the
	// registry (small race conditions obviously).
	futurePoolKey, err := c.FindPoolForStaker(ctx, validatorID, staker, amount)
	if err != nil {
		return nil, err
	}

	gasMethod, err := c.registryContract.GetMethodByName("gas")
	if err != nil {
		return nil, err
	}
	stakeMethod, err := c.registryContract.GetMethodByName("addStake")
	if err != nil {
		return nil, err
	}

	group := &TwoPhaseGroup{
		// the gas call and the stake payment itself each pay their own min fee
		ExtraFlatCalls: 2,
		Build: func(fee types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
			atc := transaction.AtomicTransactionComposer{}

			paymentTxn, err := transaction.MakePaymentTxn(staker.String(), c.RegistryAddress().String(), amountToStake, nil, "", params)
			if err != nil {
				return atc, err
			}
			payTxWithSigner := transaction.TransactionWithSigner{
				Txn:    paymentTxn,
				Signer: algo.SignWithAccountForATC(c.signer, staker.String()),
			}

			gasParams := params
			gasParams.FlatFee = true
			gasParams.Fee = transaction.MinTxnFee
			// we stack up references in this gas method for resource pooling
			err = atc.AddMethodCall(transaction.AddMethodCallParams{
				AppID:  c.RegistryAppID,
				Method: gasMethod,
				BoxReferences: []types.AppBoxReference{
					{AppID: 0, Name: GetValidatorListBoxName(validatorID)},
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: GetStakerPoolSetBoxName(staker)},
				},
				SuggestedParams: gasParams,
				OnComplete:      types.NoOpOC,
				Sender:          staker,
				Signer:          algo.SignWithAccountForATC(c.signer, staker.String()),
			})
			if err != nil {
				return atc, err
			}
			callParams := params
			callParams.FlatFee = true
			if fee == 0 {
				fee = simulateFeePadding
			}
			callParams.Fee = fee
			err = atc.AddMethodCall(transaction.AddMethodCallParams{
				AppID:  c.RegistryAppID,
				Method: stakeMethod,
				MethodArgs: []any{
					// stake payment (+ first-time staker MBR if needed)
					payTxWithSigner,
					// --
					validatorID,
				},
				ForeignApps: []uint64{futurePoolKey.PoolAppID},
				BoxReferences: []types.AppBoxReference{
					{AppID: futurePoolKey.PoolAppID, Name: GetStakerLedgerBoxName()},
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
				},
				SuggestedParams: callParams,
				OnComplete:      types.NoOpOC,
				Sender:          staker,
				Signer:          algo.SignWithAccountForATC(c.signer, staker.String()),
			})
			return atc, err
		},
	}
	result, err := group.Execute(ctx, c.algoClient)
	if err != nil {
		return nil, err
	}
	return ValidatorPoolKeyFromABIReturn(result.MethodResults[1].ReturnValue)
}

// RemoveStake removes stake from a specific pool, paying it back to the
// staker.  amount 0 means remove ALL stake.  The signer must hold keys for
// either the staker itself or the validator's manager (eviction path).
func (c *Client) RemoveStake(ctx context.Context, poolKey *ValidatorPoolKey, signer types.Address, staker types.Address, amount uint64) error {
	params, err := c.algoClient.SuggestedParams().Do(ctx)
	if err != nil {
		return err
	}

	gasMethod, err := c.poolContract.GetMethodByName("gas")
	if err != nil {
		return err
	}
	unstakeMethod, err := c.poolContract.GetMethodByName("removeStake")
	if err != nil {
		return err
	}

	group := &TwoPhaseGroup{
		ExtraFlatCalls: 2,
		Build: func(fee types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
			atc := transaction.AtomicTransactionComposer{}

			gasParams := params
			gasParams.FlatFee = true
			gasParams.Fee = transaction.MinTxnFee
			err := atc.AddMethodCall(transaction.AddMethodCallParams{
				AppID:  poolKey.PoolAppID,
				Method: gasMethod,
				BoxReferences: []types.AppBoxReference{
					{AppID: c.RegistryAppID, Name: GetValidatorListBoxName(poolKey.ID)},
					{AppID: c.RegistryAppID, Name: GetStakerPoolSetBoxName(staker)},
					{AppID: 0, Name: nil}, // extra i/o
				},
				SuggestedParams: gasParams,
				OnComplete:      types.NoOpOC,
				Sender:          signer,
				Signer:          algo.SignWithAccountForATC(c.signer, signer.String()),
			})
			if err != nil {
				return atc, err
			}
			callParams := params
			callParams.FlatFee = true
			if fee == 0 {
				fee = simulateFeePadding
			}
			callParams.Fee = fee
			err = atc.AddMethodCall(transaction.AddMethodCallParams{
				AppID:       poolKey.PoolAppID,
				Method:      unstakeMethod,
				MethodArgs:  []any{staker, amount},
				ForeignApps: []uint64{c.RegistryAppID},
				BoxReferences: []types.AppBoxReference{
					{AppID: 0, Name: GetStakerLedgerBoxName()},
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
				},
				SuggestedParams: callParams,
				OnComplete:      types.NoOpOC,
				Sender:          signer,
				Signer:          algo.SignWithAccountForATC(c.signer, signer.String()),
			})
			return atc, err
		},
	}
	if _, err = group.Execute(ctx, c.algoClient); err != nil {
		return fmt.Errorf("unable to remove stake from pool:%d: %w", poolKey.PoolID, err)
	}
	return nil
}

// AddStakingPool creates a brand-new staking pool for the validator and node
// number, then funds and initializes the pool's staker ledger in a second
// group.  The validator's manager pays both MBRs.
func (c *Client) AddStakingPool(ctx context.Context, validator *Validator, nodeNum uint64) (*ValidatorPoolKey, error) {
	params, err := c.algoClient.SuggestedParams().Do(ctx)
	if err != nil {
		return nil, err
	}

	managerAddr, err := types.DecodeAddress(validator.Config.Manager)
	if err != nil {
		return nil, err
	}

	// first determine how much we have to add in MBR to the registry for adding a staking pool
	mbrs, err := c.GetMbrAmounts(ctx)
	if err != nil {
		return nil, err
	}

	addPoolMethod, err := c.registryContract.GetMethodByName("addPool")
	if err != nil {
		return nil, err
	}

	group := &TwoPhaseGroup{
		Build: func(fee types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
			atc := transaction.AtomicTransactionComposer{}
			// We have to pay MBR into the registry contract itself for adding a pool
			paymentTxn, err := transaction.MakePaymentTxn(managerAddr.String(), c.RegistryAddress().String(), mbrs.AddPoolMbr, nil, "", params)
			if err != nil {
				return atc, err
			}
			payTxWithSigner := transaction.TransactionWithSigner{
				Txn:    paymentTxn,
				Signer: algo.SignWithAccountForATC(c.signer, managerAddr.String()),
			}
			callParams := params
			callParams.FlatFee = true
			if fee == 0 {
				fee = simulateFeePadding
			}
			callParams.Fee = fee
			err = atc.AddMethodCall(transaction.AddMethodCallParams{
				AppID:  c.RegistryAppID,
				Method: addPoolMethod,
				MethodArgs: []any{
					// MBR payment
					payTxWithSigner,
					// --
					validator.Config.ID,
					nodeNum,
				},
				BoxReferences: []types.AppBoxReference{
					{AppID: 0, Name: GetValidatorListBoxName(validator.Config.ID)},
					{AppID: 0, Name: nil}, // extra i/o
				},
				SuggestedParams: callParams,
				OnComplete:      types.NoOpOC,
				Sender:          managerAddr,
				Signer:          algo.SignWithAccountForATC(c.signer, managerAddr.String()),
			})
			return atc, err
		},
	}
	result, err := group.Execute(ctx, c.algoClient)
	if err != nil {
		return nil, err
	}
	poolKey, err := ValidatorPoolKeyFromABIReturn(result.MethodResults[0].ReturnValue)
	if err != nil {
		return nil, err
	}

	// Now we have to pay MBR into the staking pool itself (!) and tell it to
	// initialize its staker ledger.
	if err := c.initPoolStorage(ctx, poolKey, managerAddr, mbrs.PoolInitMbr); err != nil {
		return nil, err
	}
	return poolKey, nil
}

func (c *Client) initPoolStorage(ctx context.Context, poolKey *ValidatorPoolKey, managerAddr types.Address, poolInitMbr uint64) error {
	params, err := c.algoClient.SuggestedParams().Do(ctx)
	if err != nil {
		return err
	}
	initMethod, err := c.poolContract.GetMethodByName("initStorage")
	if err != nil {
		return err
	}
	group := &TwoPhaseGroup{
		// the MBR payment precedes the app call and pays its own min fee
		ExtraFlatCalls: 1,
		Build: func(fee types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
			atc := transaction.AtomicTransactionComposer{}
			paymentTxn, err := transaction.MakePaymentTxn(managerAddr.String(), c.PoolAddress(poolKey.PoolAppID).String(), poolInitMbr, nil, "", params)
			if err != nil {
				return atc, err
			}
			payTxWithSigner := transaction.TransactionWithSigner{
				Txn:    paymentTxn,
				Signer: algo.SignWithAccountForATC(c.signer, managerAddr.String()),
			}
			if err = atc.AddTransaction(payTxWithSigner); err != nil {
				return atc, err
			}
			callParams := params
			callParams.FlatFee = true
			if fee == 0 {
				fee = simulateFeePadding
			}
			callParams.Fee = fee
			err = atc.AddMethodCall(transaction.AddMethodCallParams{
				AppID:  poolKey.PoolAppID,
				Method: initMethod,
				BoxReferences: []types.AppBoxReference{
					{AppID: 0, Name: GetStakerLedgerBoxName()},
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
					{AppID: 0, Name: nil}, // extra i/o
				},
				SuggestedParams: callParams,
				OnComplete:      types.NoOpOC,
				Sender:          managerAddr,
				Signer:          algo.SignWithAccountForATC(c.signer, managerAddr.String()),
			})
			return atc, err
		},
	}
	if _, err = group.Execute(ctx, c.algoClient); err != nil {
		return fmt.Errorf("unable to init storage for pool:%d: %w", poolKey.PoolID, err)
	}
	return nil
}
