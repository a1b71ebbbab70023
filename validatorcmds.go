package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/stakewell/stakectl/internal/lib/algo"
	"github.com/stakewell/stakectl/internal/lib/misc"
	"github.com/stakewell/stakectl/internal/lib/nfd"
	"github.com/stakewell/stakectl/internal/lib/pools"
)

func GetValidatorCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "validator",
		Aliases: []string{"v"},
		Usage:   "Configure validator options",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Initialize self as validator - creating or resetting configuration - should only be done ONCE, EVER !",
				Action: InitValidator,
			},
			{
				Name:   "info",
				Usage:  "Display info about the validator from the chain",
				Action: ValidatorInfo,
			},
			{
				Name:   "state",
				Usage:  "Display info about the validator's current state from the chain",
				Action: ValidatorState,
			},
			{
				Name:   "list",
				Usage:  "List all validators registered on-chain",
				Action: ValidatorList,
			},
			{
				Name:  "claim",
				Usage: "Claim a validator from chain, using manager address as verified. Signing keys must be present for this address to load",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "account",
						Usage:    "Account (owner or manager) you can sign for that will claim this validator for this node",
						Required: true,
					},
					&cli.UintFlag{
						Name:     "id",
						Usage:    "Validator ID to claim (you must be owner or manager!)",
						Required: true,
					},
				},
				Action: ClaimValidator,
			},
		},
	}
}

func InitValidator(ctx context.Context, cmd *cli.Command) error {
	_, err := LoadLocalState()
	if errors.Is(err, os.ErrNotExist) {
		result, _ := yesNo("Validator not configured.  Create brand new validator")
		if result != "y" {
			return nil
		}
		return DefineValidator(ctx)
	}
	if err != nil {
		return cli.Exit(err, 1)
	}
	result, _ := yesNo("A validator configuration already appears to exist, do you REALLY want to add an entirely new validator configuration")
	if result != "y" {
		return nil
	}
	return DefineValidator(ctx)
}

func ValidatorInfo(ctx context.Context, command *cli.Command) error {
	state, err := LoadLocalState()
	if err != nil {
		return fmt.Errorf("validator not configured: %w", err)
	}
	config, err := App.poolsClient.GetValidatorConfig(ctx, state.ValidatorID)
	if err != nil {
		return err
	}
	fmt.Println(config.String())
	return err
}

func ValidatorState(ctx context.Context, command *cli.Command) error {
	localState, err := LoadLocalState()
	if err != nil {
		return fmt.Errorf("validator not configured: %w", err)
	}
	state, err := App.poolsClient.GetValidatorState(ctx, localState.ValidatorID)
	if err != nil {
		return err
	}
	slog.Info(state.String())
	return nil
}

func ValidatorList(ctx context.Context, command *cli.Command) error {
	validators, err := App.poolsClient.FetchAllValidators(ctx)
	if err != nil {
		return err
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tOwner\tPools\tStakers\tTotal Staked\tGating\t")
	for _, validator := range validators {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t\n",
			validator.Config.ID, validator.Config.Owner, validator.State.NumPools, validator.State.TotalStakers,
			algo.FormattedAlgoAmount(validator.State.TotalAlgoStaked), validator.Config.EntryGating.Type)
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func ClaimValidator(ctx context.Context, command *cli.Command) error {
	_, err := LoadLocalState()
	if err == nil {
		return cli.Exit(errors.New("validator configuration already defined"), 1)
	}
	addr, err := types.DecodeAddress(command.Value("account").(string))
	if err != nil {
		return fmt.Errorf("invalid address specified: %w", err)
	}

	if !App.signer.HasAccount(addr.String()) {
		return fmt.Errorf("account:%s isn't an account you have keys to!", addr.String())
	}
	id := command.Value("id").(uint64)

	App.logger.Info("Claiming validator", "id", id)

	config, err := App.poolsClient.GetValidatorConfig(ctx, id)
	if err != nil {
		return fmt.Errorf("error fetching config from chain: %w", err)
	}
	if config.Owner != addr.String() && config.Manager != addr.String() {
		return fmt.Errorf("you are not the owner or manager of validator:%d, account:%s is owner", id, config.Owner)
	}

	err = SaveLocalState(&LocalState{ValidatorID: id, Config: *config})
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "You have successfully imported/claimed this validator")
	return nil
}

func DefineValidator(ctx context.Context) error {
	var (
		err     error
		nfdName string
	)

	// Build up a new validator config
	config := pools.ValidatorConfig{}

	owner, err := getAlgoAccount("Enter account address for the 'owner' of the validator", "")
	if err != nil {
		return err
	}
	if !App.signer.HasAccount(owner) {
		return fmt.Errorf("the mnemonics aren't available for this account, aborting")
	}
	config.Owner = owner

	manager, err := getAlgoAccount("Enter account address for the 'manager' of the validator", owner)
	if err != nil {
		return err
	}
	if !App.signer.HasAccount(manager) {
		return fmt.Errorf("the mnemonics aren't available for this account, aborting")
	}
	config.Manager = manager
	if y, _ := yesNo("Do you want to associate an NFD with this"); y == "y" {
		config.NFDForInfo, nfdName, err = getNFDAppID(ctx, "Enter the NFD Name for this validator", config.Owner)
		if err != nil {
			return err
		}
	}

	config.EntryGating, err = getGatingValue()
	if err != nil {
		return err
	}
	if config.EntryGating.Type != pools.GatingTypeNone {
		minBal, err := getInt("Enter the minimum balance of the gating asset a staker must hold (0 for any)", 0, 0, 1_000_000_000)
		if err != nil {
			return err
		}
		config.GatingAssetMinBalance = uint64(minBal)
	}

	// Use the promptui library to ask questions for each of the configuration items in ValidatorConfig
	config.EpochPayoutMins, err = getInt("Enter the payout frequency (in minutes)", 60*24, 1, 60*24*365)
	if err != nil {
		return err
	}

	config.PercentToValidator, err = getInt("Enter the payout percentage to the validator (in four decimals, ie: 5% = 50000)", 50000, 0, 1000000)
	if err != nil {
		return err
	}

	config.ValidatorCommissionAddress, err = getAlgoAccount("Enter the address that receives the validation commission each epoch payout", config.Owner)
	if err != nil {
		return err
	}

	minStake, err := getInt("Enter the minimum algo stake required to enter the pool", 1000, 1, 1_000_000_000)
	if err != nil {
		return err
	}
	config.MinEntryStake = uint64(minStake) * 1e6

	maxPerPool, err := getInt("Enter the maximum algo stake allowed per pool", 20_000_000, 200_000, 100_000_000)
	if err != nil {
		return err
	}
	config.MaxAlgoPerPool = uint64(maxPerPool) * 1e6

	config.PoolsPerNode, err = getInt("Enter the number of pools to allow per node [max 3 recommended]", 3, 1, pools.MaxPoolsPerNode)
	if err != nil {
		return err
	}

	validatorID, err := App.poolsClient.AddValidator(ctx, &config, nfdName)
	if err != nil {
		return err
	}
	config.ID = validatorID
	slog.Info("New Validator added, your Validator ID is:", "id", config.ID)

	return SaveLocalState(&LocalState{ValidatorID: validatorID, Config: config})
}

func getGatingValue() (pools.GatingValue, error) {
	gatingOptions := []pools.GatingType{
		pools.GatingTypeNone,
		pools.GatingTypeAssetsCreatedBy,
		pools.GatingTypeAssetID,
		pools.GatingTypeCreatedByNFDAddresses,
		pools.GatingTypeSegmentOfNFD,
	}
	labels := make([]string, len(gatingOptions))
	for i, opt := range gatingOptions {
		labels[i] = opt.String()
	}
	chosen, _, err := (&promptui.Select{
		Label: "Entry gating - who may stake with this validator",
		Items: labels,
	}).Run()
	if err != nil {
		return pools.GatingValue{}, err
	}
	value := pools.GatingValue{Type: gatingOptions[chosen]}
	switch value.Type {
	case pools.GatingTypeNone:
	case pools.GatingTypeAssetsCreatedBy:
		creator, err := getAlgoAccount("Enter the creator address whose assets gate entry", "")
		if err != nil {
			return pools.GatingValue{}, err
		}
		addr, err := types.DecodeAddress(creator)
		if err != nil {
			return pools.GatingValue{}, err
		}
		value.Address = addr
	case pools.GatingTypeAssetID:
		id, err := getInt("Enter the asset id stakers must hold", 0, 1, 1<<62)
		if err != nil {
			return pools.GatingValue{}, err
		}
		value.ID = uint64(id)
	case pools.GatingTypeCreatedByNFDAddresses, pools.GatingTypeSegmentOfNFD:
		id, err := getInt("Enter the NFD app id", 0, 1, 1<<62)
		if err != nil {
			return pools.GatingValue{}, err
		}
		value.ID = uint64(id)
	}
	return value, nil
}

func getInt(prompt string, defVal int, minVal int, maxVal int) (int, error) {
	validate := func(input string) error {
		value, err := strconv.Atoi(input)
		if err != nil {
			return err
		}
		if value < minVal || value > maxVal {
			return fmt.Errorf("value must be between %d and %d", minVal, maxVal)
		}
		return nil
	}
	result, err := (&promptui.Prompt{
		Label:    prompt,
		Default:  strconv.Itoa(defVal),
		Validate: validate,
	}).Run()
	if err != nil {
		return 0, err
	}
	value, _ := strconv.Atoi(result)
	return value, nil
}

func getNFDAppID(ctx context.Context, prompt string, owner string) (uint64, string, error) {
	var (
		nfdID   uint64
		nfdName string
	)
	_, err := (&promptui.Prompt{
		Label: prompt,
		Validate: func(name string) error {
			if nfd.IsNameValid(name) != nil {
				return fmt.Errorf("invalid nfd name:%s", name)
			}
			record, err := App.nfdClient.Resolve(ctx, name)
			if err != nil {
				return err
			}
			if record.Owner != owner {
				return fmt.Errorf("nfd owner:%s is not same as owner you specified:%s", record.Owner, owner)
			}
			nfdID = record.AppID
			nfdName = record.Name
			return nil
		},
	}).Run()
	if err != nil {
		return 0, "", err
	}
	return nfdID, nfdName, nil
}

func getAlgoAccount(prompt string, defVal string) (string, error) {
	return (&promptui.Prompt{
		Label:   prompt,
		Default: defVal,
		Validate: func(s string) error {
			_, err := types.DecodeAddress(s)
			return err
		},
	}).Run()
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
