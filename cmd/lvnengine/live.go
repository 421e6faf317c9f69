package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lvnretest/engine/internal/broker"
	"github.com/lvnretest/engine/internal/config"
	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/levels"
	"github.com/lvnretest/engine/internal/domain/regime"
	"github.com/lvnretest/engine/internal/domain/retest"
	"github.com/lvnretest/engine/internal/domain/statemachine"
	"github.com/lvnretest/engine/internal/feed"
	"github.com/lvnretest/engine/internal/httpapi"
	"github.com/lvnretest/engine/internal/metrics"
	"github.com/lvnretest/engine/internal/netx/circuit"
	"github.com/lvnretest/engine/internal/netx/ratelimit"
	"github.com/lvnretest/engine/internal/trader"
)

// confirmPhrase is the exact input the live subcommand requires before it
// will trade with real money.
const confirmPhrase = "CONFIRM"

func newLiveCmd(log zerolog.Logger, reg *metrics.Registry, promReg prometheus.Gatherer) *cobra.Command {
	var configPath string
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Trade a live market-data feed through a real broker; requires typed confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !skipConfirm {
				if err := requireTypedConfirmation(cmd); err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			traderCfg, err := cfg.BuildTraderConfig()
			if err != nil {
				return err
			}
			retestGen := retest.NewGenerator(cfg.Retest)
			machine := statemachine.NewMachine(levels.Daily{}, cfg.BuildStateMachineConfig(), retestGen)
			tr := trader.New(traderCfg, machine, retestGen, log)

			breakers := circuit.NewManager(circuit.DefaultConfig())
			limiter := ratelimit.New(cfg.Broker.RateLimitRPS, int(cfg.Broker.RateLimitRPS)+1)

			var ex broker.Executor
			if cfg.Broker.Provider == "live" {
				liveCfg := broker.Config{
					BaseURL:        cfg.Broker.RESTURL,
					RequestTimeout: cfg.Broker.RequestTimeout,
					MaxRetries:     cfg.Broker.MaxRetries,
					RetryBackoff:   cfg.Broker.RetryBackoff,
				}
				ex = broker.NewLiveExecutor(liveCfg, breakers, limiter, log)
			} else {
				ex = broker.NewPaperExecutor(log)
			}

			source := feed.NewLiveSource(cfg.Feed.WebSocketURL, cfg.Symbol, breakers, limiter, log)

			httpSrv := httpapi.New(httpapi.DefaultConfig(), promReg, breakers, tr, log)
			go func() {
				if err := httpSrv.Start(); err != nil {
					log.Warn().Err(err).Msg("http api stopped")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = runLiveLoop(ctx, source, tr, ex, cfg, reg, log)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Broker.RequestTimeout)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)

			logSummary(log, tr.Summary())
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to engine config")
	cmd.Flags().BoolVar(&skipConfirm, "yes", false, "skip the typed confirmation prompt (for supervised/scripted launches only)")
	return cmd
}

// requireTypedConfirmation refuses to proceed unless the operator types the
// exact confirmation phrase, the last guard before the engine starts
// routing orders to a real broker.
func requireTypedConfirmation(cmd *cobra.Command) error {
	fmt.Fprintf(cmd.OutOrStdout(), "This starts LIVE trading against a real broker.\nType %s to proceed: ", confirmPhrase)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != confirmPhrase {
		return fmt.Errorf("confirmation not given, aborting live run")
	}
	return nil
}

func runLiveLoop(ctx context.Context, source feed.BarSource, tr *trader.Trader, ex broker.Executor, cfg *config.Config, reg *metrics.Registry, log zerolog.Logger) error {
	updates, errs := source.Run(ctx)
	var window []core.Bar

	for {
		select {
		case <-ctx.Done():
			flattenOnShutdown(tr, ex, log)
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if err != nil {
				log.Error().Err(err).Msg("bar source error")
			}

		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			window = appendWindow(window, upd.Bar, cfg.Regime.LookbackBars)
			marketState := regime.Detect(window, cfg.Regime).State

			actions := tr.ProcessBar(upd.Bar, upd.Trade, marketState)
			if err := dispatchActions(ctx, ex, actions, reg, log); err != nil {
				log.Error().Err(err).Msg("broker rejected action")
			}
			reg.BarsProcessed.WithLabelValues(cfg.Symbol).Inc()
		}
	}
}

// flattenOnShutdown issues a synchronous FlattenAll and waits for it to be
// acknowledged before the process exits, per §5's cancellation contract.
func flattenOnShutdown(tr *trader.Trader, ex broker.Executor, log zerolog.Logger) {
	flatten := trader.FlattenAll{Reason: "shutdown"}
	if err := ex.Execute(context.Background(), flatten); err != nil {
		log.Error().Err(err).Msg("flatten-on-shutdown failed")
	}
}
