package pools

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/stakewell/stakectl/internal/lib/algo"
)

// StakedInfo is one staker's entry in a pool's on-chain ledger box, a
// fixed-size 64 byte record.
type StakedInfo struct {
	Account            types.Address
	Balance            uint64
	TotalRewarded      uint64
	RewardTokenBalance uint64
	EntryTime          uint64 // unix timestamp of when the stake entered the pool
}

const stakedInfoSize = 64

func decodeStakedInfo(data []byte) (StakedInfo, error) {
	if len(data) != stakedInfoSize {
		return StakedInfo{}, fmt.Errorf("staker ledger record must be %d bytes, got:%d", stakedInfoSize, len(data))
	}
	var stakedInfo StakedInfo
	copy(stakedInfo.Account[:], data[0:32])
	stakedInfo.Balance = binary.BigEndian.Uint64(data[32:40])
	stakedInfo.TotalRewarded = binary.BigEndian.Uint64(data[40:48])
	stakedInfo.RewardTokenBalance = binary.BigEndian.Uint64(data[48:56])
	stakedInfo.EntryTime = binary.BigEndian.Uint64(data[56:64])
	return stakedInfo, nil
}

// GetLedgerForPool reads a pool's full staker ledger directly from its box.
// Empty slots (zero address) are part of the box but are skipped here.
func (c *Client) GetLedgerForPool(ctx context.Context, poolAppID uint64) ([]StakedInfo, error) {
	var retLedger []StakedInfo
	boxData, err := c.algoClient.GetApplicationBoxByName(poolAppID, GetStakerLedgerBoxName()).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(boxData.Value)%stakedInfoSize != 0 {
		return nil, fmt.Errorf("staker ledger box for pool app:%d has unexpected size:%d", poolAppID, len(boxData.Value))
	}
	for i := 0; i < len(boxData.Value); i += stakedInfoSize {
		stakedInfo, err := decodeStakedInfo(boxData.Value[i : i+stakedInfoSize])
		if err != nil {
			return nil, err
		}
		if stakedInfo.Account == types.ZeroAddress {
			continue
		}
		retLedger = append(retLedger, stakedInfo)
	}

	return retLedger, nil
}

// GetPoolInfo fetches the registry's record of a single pool.
func (c *Client) GetPoolInfo(ctx context.Context, poolKey *ValidatorPoolKey) (*PoolInfo, error) {
	retVal, err := c.runReadCall(ctx, c.registryContract, c.RegistryAppID, "getPoolInfo", []any{poolKey.ID, poolKey.PoolID, poolKey.PoolAppID},
		validatorBoxRefs(poolKey.ID))
	if err != nil {
		return nil, err
	}
	arrReturn, ok := retVal.([]any)
	if !ok || len(arrReturn) != 3 {
		return nil, fmt.Errorf("should be 3 elements returned in PoolInfo response")
	}
	return &PoolInfo{
		PoolAppID:       arrReturn[0].(uint64),
		TotalStakers:    int(arrReturn[1].(uint16)),
		TotalAlgoStaked: arrReturn[2].(uint64),
	}, nil
}

// GetStakerInfoForPool reads one staker's ledger entry via the pool contract.
func (c *Client) GetStakerInfoForPool(ctx context.Context, poolAppID uint64, staker types.Address) (*StakedInfo, error) {
	retVal, err := c.runReadCall(ctx, c.poolContract, poolAppID, "getStakerInfo", []any{staker},
		[]types.AppBoxReference{
			{AppID: 0, Name: GetStakerLedgerBoxName()},
			{AppID: 0, Name: nil}, // extra i/o
		})
	if err != nil {
		return nil, err
	}
	arrReturn, ok := retVal.([]any)
	if !ok || len(arrReturn) != 5 {
		return nil, fmt.Errorf("should be 5 elements returned in StakedInfo response")
	}
	info := &StakedInfo{}
	copy(info.Account[:], arrReturn[0].([]uint8))
	info.Balance = arrReturn[1].(uint64)
	info.TotalRewarded = arrReturn[2].(uint64)
	info.RewardTokenBalance = arrReturn[3].(uint64)
	info.EntryTime = arrReturn[4].(uint64)
	return info, nil
}

func (c *Client) GetPoolID(ctx context.Context, poolAppID uint64) (uint64, error) {
	appInfo, err := c.algoClient.GetApplicationByID(poolAppID).Do(ctx)
	if err != nil {
		return 0, err
	}
	return algo.GetUint64FromGlobalState(appInfo.Params.GlobalState, StakePoolPoolID)
}

// PoolBalance returns the pool account's spendable balance (total minus MBR).
func (c *Client) PoolBalance(ctx context.Context, poolAppID uint64) (uint64, error) {
	acctInfo, err := algo.GetBareAccount(ctx, c.algoClient, c.PoolAddress(poolAppID).String())
	if err != nil {
		return 0, err
	}
	return acctInfo.Amount - acctInfo.MinBalance, nil
}
