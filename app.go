package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/stakewell/stakectl/internal/lib/algo"
	"github.com/stakewell/stakectl/internal/lib/misc"
	"github.com/stakewell/stakectl/internal/lib/nfd"
	"github.com/stakewell/stakectl/internal/lib/pools"
)

// App is the process-wide app instance, set up before the cli dispatches to
// any command.
var App *StakeApp

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *StakeApp {
	log.SetFlags(0)
	var logger *slog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		// Are we running on something where output is a tty - so we're being run as CLI vs as a daemon
		logger = slog.New(misc.NewConsoleHandler(os.Stdout,
			misc.ConsoleHandlerOptions{SlogOpts: slog.HandlerOptions{Level: logLevel, AddSource: true}}))
	} else {
		// not on console - output as json, but change json key names to be more
		// compatible w/ what google logging expects
		opts := &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.MessageKey {
					a.Key = "message"
				} else if a.Key == slog.LevelKey && len(groups) == 0 {
					a.Key = "severity"
				}
				return a
			},
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli App instance.
	// signer will be set in the initClients method.
	appConfig := &StakeApp{logger: logger}
	App = appConfig

	appConfig.cliCmd = &cli.Command{
		Name:    "stakectl",
		Usage:   "Configuration tool and background daemon for Stakewell staking pools",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			// This is further bootstrap of the 'app' but within context of 'cli' helper as it will
			// have access to flags and options (network to use for eg) already set.
			return appConfig.initClients(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("STAKEWELL_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Algorand network to use",
				Value:   "mainnet",
				Aliases: []string{"n"},
				Sources: cli.EnvVars("ALGO_NETWORK"),
			},
			&cli.UintFlag{
				Name:        "appid",
				Usage:       "[DEV ONLY] The application id of the Stakewell pool registry contract.",
				Sources:     cli.EnvVars("STAKEWELL_APPID"),
				Destination: &appConfig.registryAppID,
				OnlyOnce:    true,
			},
			&cli.UintFlag{
				Name:        "validator",
				Usage:       "The Validator id for your validator.  Can be unset if defining for first time.",
				Sources:     cli.EnvVars("STAKEWELL_VALIDATORID"),
				Value:       0,
				Destination: &appConfig.validatorID,
				OnlyOnce:    true,
			},
			&cli.UintFlag{
				Name:        "node",
				Usage:       "The node number (1+) this node represents in those configured for this validator.",
				Sources:     cli.EnvVars("STAKEWELL_NODENUM"),
				Value:       0,
				Destination: &appConfig.nodeNum,
				OnlyOnce:    true,
			},
		},
		Commands: []*cli.Command{
			GetDaemonCmdOpts(),
			GetValidatorCmdOpts(),
			GetPoolCmdOpts(),
			GetStakeCmdOpts(),
		},
	}
	return appConfig
}

type StakeApp struct {
	cliCmd      *cli.Command
	logger      *slog.Logger
	signer      algo.MultipleWalletSigner
	algoClient  *algod.Client
	nfdClient   *nfd.Client
	poolsClient *pools.Client

	// just here for flag bootstrapping destination
	registryAppID uint64
	validatorID   uint64
	nodeNum       uint64
}

// initClients initializes an algod client (to correct network - which it also
// validates), an nfd directory client, and the pools client wrapping the
// registry contract.
func (ac *StakeApp) initClients(ctx context.Context, cmd *cli.Command) error {
	network := cmd.String("network")

	if envfile := cmd.String("envfile"); envfile != "" {
		misc.Infof(ac.logger, "loading env file:%s", envfile)
		if err := misc.LoadEnvFile(envfile); err != nil {
			return err
		}
	}
	// quick validity check on possible network names...
	switch network {
	case "sandbox", "betanet", "testnet", "mainnet":
	default:
		return fmt.Errorf("unknown network:%s", network)
	}

	// Now load .env.{network} overrides - ie: .env.sandbox containing
	// generated mnemonics by bootstrap testing script
	misc.LoadEnvForNetwork(network)

	// Initialize algod client / networks / registry app id (testing connectivity as well)
	cfg := algo.GetNetworkConfig(network)
	algoClient, err := algo.GetAlgoClient(ac.logger, cfg)
	if err != nil {
		return err
	}
	if ac.registryAppID == 0 {
		ac.registryAppID = cfg.RegistryAppID
	}
	// allow secondary override of the IDs via the network specific .env file we just loaded which we couldn't
	// have known until we'd processed the 'network' override - but only if not already set via CLI, etc.
	if ac.validatorID == 0 {
		setIntFromEnv(&ac.validatorID, "STAKEWELL_VALIDATORID")
	}
	if ac.nodeNum == 0 {
		setIntFromEnv(&ac.nodeNum, "STAKEWELL_NODENUM")
	}
	if ac.registryAppID == 0 {
		return fmt.Errorf("the id of the Stakewell registry contract must be set using either --appid or the STAKEWELL_APPID env var")
	}

	// This will load and initialize mnemonics from the environment - and handles all 'local' signing for the app
	ac.signer = algo.NewLocalKeyStore(ac.logger)

	ac.algoClient = algoClient
	ac.nfdClient = nfd.NewClient(cfg.NFDAPIUrl)

	poolsClient, err := pools.New(ac.registryAppID, ac.logger, ac.algoClient, ac.signer)
	if err != nil {
		return err
	}
	ac.poolsClient = poolsClient
	return nil
}

func setIntFromEnv(val *uint64, envName string) error {
	if strVal := os.Getenv(envName); strVal != "" {
		intVal, err := strconv.ParseUint(strVal, 10, 64)
		if err != nil {
			return err
		}
		*val = intVal
	}
	return nil
}
