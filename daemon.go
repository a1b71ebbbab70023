package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssgreg/repeat"
	"github.com/urfave/cli/v3"

	"github.com/stakewell/stakectl/internal/lib/misc"
	"github.com/stakewell/stakectl/internal/lib/pools"
)

func GetDaemonCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "daemon",
		Aliases: []string{"d"},
		Usage:   "Run the application as a daemon, monitoring the validator and exporting metrics",
		Before:  checkConfigured, // make sure validator is already configured
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "port",
				Usage: "Port to listen on for metrics/health endpoints",
				Value: 8080,
			},
		},
		Action: runAsDaemon,
	}
}

func runAsDaemon(ctx context.Context, cmd *cli.Command) error {
	var wg sync.WaitGroup

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop.
	errc := make(chan error)

	// Setup interrupt handler so that SIGINT and SIGTERM signals cause the
	// services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(ctx)

	daemon, err := newDaemon(ctx)
	if err != nil {
		cancel()
		return err
	}
	daemon.start(ctx, &wg, int(cmd.Value("port").(uint64)))

	misc.Infof(App.logger, "exiting (%v)", <-errc) // wait for termination signal

	// Send cancellation signal to the goroutines.
	cancel()
	misc.Infof(App.logger, "waiting on background tasks..")
	wg.Wait()

	misc.Infof(App.logger, "exited")
	return nil
}

// refetchInterval is how often the daemon refreshes the validator's on-chain
// state for metrics export.
const refetchInterval = 1 * time.Minute

type Daemon struct {
	logger      *slog.Logger
	poolsClient *pools.Client
	validatorID uint64

	// embed mutex for locking state for members below the mutex
	sync.RWMutex
	lastRefreshed time.Time
}

func newDaemon(ctx context.Context) (*Daemon, error) {
	localState, err := LoadLocalState()
	if err != nil {
		return nil, fmt.Errorf("failed to load local state: %w", err)
	}
	d := &Daemon{
		logger:      App.logger,
		poolsClient: App.poolsClient,
		validatorID: localState.ValidatorID,
	}
	// initial fetch is retried - the node might still be syncing at startup
	err = repeat.Repeat(
		repeat.Fn(func() error {
			if err := d.refresh(ctx); err != nil {
				return repeat.HintTemporary(err)
			}
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(10),
		repeat.FnOnError(func(err error) error {
			misc.Warnf(d.logger, "retrying initial validator fetch, error:%s", err.Error())
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 5 * time.Second,
				MaxDelay:  10 * time.Second,
			}).Set(),
		),
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup, port int) {
	misc.Infof(d.logger, "Starting stakectl daemon, monitoring validator:%d", d.validatorID)

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.validatorWatcher(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.serveHTTP(ctx, port)
	}()
}

// validatorWatcher keeps the exported metrics fresh, re-reading the
// validator's state from chain on a fixed interval.
func (d *Daemon) validatorWatcher(ctx context.Context) {
	defer d.logger.Info("Exiting validatorWatcher")
	d.logger.Info("Starting validatorWatcher")

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(refetchInterval):
			if err := d.refresh(ctx); err != nil {
				// transient node errors just mean stale metrics until next tick
				misc.Warnf(d.logger, "validator refresh failed: %v", err)
			}
		}
	}
}

func (d *Daemon) refresh(ctx context.Context) error {
	validator, err := d.poolsClient.FetchValidator(ctx, d.validatorID)
	if err != nil {
		return err
	}
	pools.UpdateValidatorMetrics(validator)
	d.Lock()
	d.lastRefreshed = time.Now()
	d.Unlock()
	misc.Debugf(d.logger, "validator:%d refreshed, pools:%d stakers:%d", d.validatorID,
		validator.State.NumPools, validator.State.TotalStakers)
	return nil
}

func (d *Daemon) serveHTTP(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		d.RLock()
		refreshed := d.lastRefreshed
		d.RUnlock()
		// stale for more than a few refresh intervals means not ready
		if time.Since(refreshed) > 5*refetchInterval {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	misc.Infof(d.logger, "serving metrics on port:%d", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		misc.Errorf(d.logger, "metrics server error: %v", err)
	}
}
