package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/urfave/cli/v3"

	"github.com/stakewell/stakectl/internal/lib/algo"
)

func GetPoolCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "pool",
		Aliases: []string{"p"},
		Usage:   "Add/Configure staking pools for this validator",
		Before:  checkConfigured,
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List all pools for this validator",
				Action:  PoolsList,
			},
			{
				Name:   "ledger",
				Usage:  "List detailed staker ledger for a specific pool",
				Action: PoolLedger,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "pool",
						Usage:    "Pool ID (the number in 'pool list')",
						Value:    1,
						Required: true,
					},
				},
			},
			{
				Name:    "add",
				Aliases: []string{"a"},
				Usage:   "Add a new staking pool for this validator",
				Action:  PoolAdd,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:  "node",
						Usage: "The node number (1+) the new pool is assigned to",
						Value: 1,
					},
				},
			},
		},
	}
}

func checkConfigured(ctx context.Context, command *cli.Command) error {
	_, err := LoadLocalState()
	if err != nil {
		return fmt.Errorf("validator not configured: %w", err)
	}
	return nil
}

func PoolsList(ctx context.Context, command *cli.Command) error {
	localState, err := LoadLocalState()
	if err != nil {
		return fmt.Errorf("validator not configured: %w", err)
	}

	state, err := App.poolsClient.GetValidatorState(ctx, localState.ValidatorID)
	if err != nil {
		return fmt.Errorf("failed to get validator state: %w", err)
	}

	pools, err := App.poolsClient.GetValidatorPools(ctx, localState.ValidatorID)
	if err != nil {
		return fmt.Errorf("failed to get validator pools: %w", err)
	}

	// Display user-friendly version of pool list using the TabWriter class, displaying
	// final output using fmt.Print type statements
	var totalRewards uint64
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Pool\tPool App ID\tTotal Stakers\tTotal Staked\tReward Avail\t")
	for i, pool := range pools {
		spendable, _ := App.poolsClient.PoolBalance(ctx, pool.PoolAppID)
		rewardAvail := spendable - pool.TotalAlgoStaked
		totalRewards += rewardAvail
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t\n", i+1, pool.PoolAppID, pool.TotalStakers,
			algo.FormattedAlgoAmount(pool.TotalAlgoStaked), algo.FormattedAlgoAmount(rewardAvail))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%s\t%s\t\n", state.TotalStakers, algo.FormattedAlgoAmount(state.TotalAlgoStaked),
		algo.FormattedAlgoAmount(totalRewards))

	tw.Flush()
	fmt.Print(out.String())
	return err
}

func PoolLedger(ctx context.Context, command *cli.Command) error {
	localState, err := LoadLocalState()
	if err != nil {
		return fmt.Errorf("validator not configured: %w", err)
	}

	pools, err := App.poolsClient.GetValidatorPools(ctx, localState.ValidatorID)
	if err != nil {
		return fmt.Errorf("failed to get validator pools: %w", err)
	}
	poolID := int(command.Value("pool").(uint64))
	if poolID < 1 || poolID > len(pools) {
		return fmt.Errorf("invalid pool ID")
	}
	poolAppID := pools[poolID-1].PoolAppID

	ledger, err := App.poolsClient.GetLedgerForPool(ctx, poolAppID)
	if err != nil {
		return err
	}

	spendable, _ := App.poolsClient.PoolBalance(ctx, poolAppID)
	rewardAvail := spendable - pools[poolID-1].TotalAlgoStaked

	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Account\tStaked\tTotal Rewarded\tRwd Tokens\tEntry Time\t")
	for _, stakerData := range ledger {
		if stakerData.Account == types.ZeroAddress {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t\n", stakerData.Account.String(),
			algo.FormattedAlgoAmount(stakerData.Balance), algo.FormattedAlgoAmount(stakerData.TotalRewarded),
			stakerData.RewardTokenBalance, time.Unix(int64(stakerData.EntryTime), 0).UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "Pool Reward Avail: %s\t\n", algo.FormattedAlgoAmount(rewardAvail))
	tw.Flush()
	fmt.Print(out.String())
	return err
}

func PoolAdd(ctx context.Context, command *cli.Command) error {
	localState, err := LoadLocalState()
	if err != nil {
		return fmt.Errorf("validator not configured: %w", err)
	}

	validator, err := App.poolsClient.FetchValidator(ctx, localState.ValidatorID)
	if err != nil {
		return err
	}
	nodeNum := command.Value("node").(uint64)

	poolKey, err := App.poolsClient.AddStakingPool(ctx, validator, nodeNum)
	if err != nil {
		return err
	}
	slog.Info("added new pool", "key", poolKey.String())
	return nil
}
