package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/urfave/cli/v3"

	"github.com/stakewell/stakectl/internal/lib/algo"
	"github.com/stakewell/stakectl/internal/lib/misc"
	"github.com/stakewell/stakectl/internal/lib/pools"
)

func GetStakeCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "stake",
		Aliases: []string{"s"},
		Usage:   "Add, remove, or inspect stake from a locally available account",
		Commands: []*cli.Command{
			{
				Name:    "add",
				Aliases: []string{"a"},
				Usage:   "Add stake to a validator's pools",
				Action:  StakeAdd,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Usage:    "The account to send stake 'from' - the staker account.",
						Required: true,
					},
					&cli.UintFlag{
						Name:     "amount",
						Usage:    "The amount of whole algo to stake",
						Required: true,
					},
					&cli.UintFlag{
						Name:     "validator",
						Usage:    "The validator id to stake to",
						Required: true,
					},
				},
			},
			{
				Name:    "remove",
				Aliases: []string{"r"},
				Usage:   "Remove stake from a pool, paying it back to the staker",
				Action:  StakeRemove,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Usage:    "The staker account to remove stake from",
						Required: true,
					},
					&cli.UintFlag{
						Name:  "amount",
						Usage: "The amount of whole algo to remove (0 removes ALL stake)",
						Value: 0,
					},
					&cli.UintFlag{
						Name:     "validator",
						Usage:    "The validator id the stake is with",
						Required: true,
					},
					&cli.UintFlag{
						Name:  "pool",
						Usage: "The pool id (1+) within the validator to remove from",
						Value: 1,
					},
				},
			},
			{
				Name:   "info",
				Usage:  "Show an account's stake aggregated per validator",
				Action: StakeInfo,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "account",
						Usage:    "The staker account to report on",
						Required: true,
					},
				},
			},
		},
	}
}

func StakeAdd(ctx context.Context, command *cli.Command) error {
	stakerAddr, err := types.DecodeAddress(command.Value("from").(string))
	if err != nil {
		return err
	}
	if !App.signer.HasAccount(stakerAddr.String()) {
		return fmt.Errorf("account:%s isn't an account you have keys to!", stakerAddr.String())
	}
	poolKey, err := App.poolsClient.AddStake(ctx, command.Value("validator").(uint64), stakerAddr, command.Value("amount").(uint64)*1e6)
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "stake added into pool:%d", poolKey.PoolID)
	return nil
}

func StakeRemove(ctx context.Context, command *cli.Command) error {
	stakerAddr, err := types.DecodeAddress(command.Value("from").(string))
	if err != nil {
		return err
	}
	validatorID := command.Value("validator").(uint64)
	poolID := command.Value("pool").(uint64)

	// find the exact pool the staker is in for this validator
	poolKeys, err := App.poolsClient.GetStakedPoolsForAccount(ctx, stakerAddr)
	if err != nil {
		return err
	}
	var poolKey *pools.ValidatorPoolKey
	for _, key := range poolKeys {
		if key.ID == validatorID && key.PoolID == poolID {
			poolKey = key
			break
		}
	}
	if poolKey == nil {
		return fmt.Errorf("account:%s has no stake with validator:%d pool:%d", stakerAddr.String(), validatorID, poolID)
	}

	// the staker themselves, or the validator's manager, may sign
	config, err := App.poolsClient.GetValidatorConfig(ctx, validatorID)
	if err != nil {
		return err
	}
	signer, err := App.signer.FindFirstSigner([]string{stakerAddr.String(), config.Manager})
	if err != nil {
		return fmt.Errorf("neither the staker nor the validator manager has local keys present")
	}
	signerAddr, _ := types.DecodeAddress(signer)

	err = App.poolsClient.RemoveStake(ctx, poolKey, signerAddr, stakerAddr, command.Value("amount").(uint64)*1e6)
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "stake removed from pool:%d", poolKey.PoolID)
	return nil
}

func StakeInfo(ctx context.Context, command *cli.Command) error {
	stakerAddr, err := types.DecodeAddress(command.Value("account").(string))
	if err != nil {
		return err
	}
	stakes, err := App.poolsClient.FetchStakerValidatorData(ctx, stakerAddr)
	if err != nil {
		return err
	}
	if len(stakes) == 0 {
		fmt.Println("no stake found for account:", stakerAddr.String())
		return nil
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Validator\tPools\tStaked\tTotal Rewarded\tRwd Tokens\tEntry Time\t")
	for _, stake := range stakes {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%s\t\n",
			stake.ValidatorID, len(stake.Pools), algo.FormattedAlgoAmount(stake.Balance),
			algo.FormattedAlgoAmount(stake.TotalRewarded), stake.RewardTokenBalance,
			time.Unix(int64(stake.EntryTime), 0).UTC().Format(time.RFC3339))
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}
