package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lvnretest/engine/internal/broker"
	"github.com/lvnretest/engine/internal/cache"
	"github.com/lvnretest/engine/internal/config"
	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/levels"
	"github.com/lvnretest/engine/internal/domain/regime"
	"github.com/lvnretest/engine/internal/domain/retest"
	"github.com/lvnretest/engine/internal/domain/statemachine"
	"github.com/lvnretest/engine/internal/metrics"
	"github.com/lvnretest/engine/internal/trader"
)

func newReplayCmd(log zerolog.Logger, reg *metrics.Registry) *cobra.Command {
	var configPath, dateFilter string
	var pace bool

	cmd := &cobra.Command{
		Use:   "replay-realtime",
		Short: "Run the trading engine over a cached date range with the same code path as live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := cache.NewStore(cfg.Cache.Dir)
			if err != nil {
				return err
			}
			days, err := store.LoadAll(dateFilter)
			if err != nil {
				return err
			}
			if len(days) == 0 {
				return fmt.Errorf("no cached days matched %q in %s", dateFilter, cfg.Cache.Dir)
			}

			traderCfg, err := cfg.BuildTraderConfig()
			if err != nil {
				return err
			}
			retestGen := retest.NewGenerator(cfg.Retest)
			machine := statemachine.NewMachine(levels.Daily{}, cfg.BuildStateMachineConfig(), retestGen)
			tr := trader.New(traderCfg, machine, retestGen, log)
			ex := broker.NewPaperExecutor(log)

			ctx := cmd.Context()
			var window []core.Bar
			var priorDaily levels.Daily

			for _, day := range days {
				machine.SetDaily(priorDaily)
				log.Info().Str("date", day.Date).Int("bars", len(day.Bars)).Msg("replaying day")

				for _, bar := range day.Bars {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					window = appendWindow(window, bar, cfg.Regime.LookbackBars)
					marketState := regime.Detect(window, cfg.Regime).State

					actions := tr.ProcessBar(bar, nil, marketState)
					if err := dispatchActions(ctx, ex, actions, reg, log); err != nil {
						log.Error().Err(err).Msg("paper executor rejected action")
					}
					reg.BarsProcessed.WithLabelValues(cfg.Symbol).Inc()

					if pace {
						time.Sleep(time.Second)
					}
				}

				priorDaily = day.DailyLevel
			}

			logSummary(log, tr.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to engine config")
	cmd.Flags().StringVar(&dateFilter, "date", "", "single date (YYYYMMDD), month prefix (YYYYMM), or inclusive range (YYYYMMDD:YYYYMMDD)")
	cmd.Flags().BoolVar(&pace, "pace", false, "sleep one second between bars to mimic live timing")
	return cmd
}

func appendWindow(window []core.Bar, bar core.Bar, lookback int) []core.Bar {
	window = append(window, bar)
	if lookback > 0 && len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	return window
}

// dispatchActions submits every action in order through ex, recording
// per-action metrics. Per §5's ordering guarantee, Enter precedes
// UpdateStop precedes Exit for a given position, so actions are dispatched
// strictly in the slice's order.
func dispatchActions(ctx context.Context, ex broker.Executor, actions []trader.TradeAction, reg *metrics.Registry, log zerolog.Logger) error {
	for _, a := range actions {
		recordActionMetrics(a, reg)
		if err := ex.Execute(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func recordActionMetrics(a trader.TradeAction, reg *metrics.Registry) {
	switch action := a.(type) {
	case trader.Enter:
		reg.TradesOpened.WithLabelValues(action.Direction.String()).Inc()
	case trader.Exit:
		reg.TradesClosed.WithLabelValues(action.Reason.String()).Inc()
		reg.OpenPnLPoints.Set(0)
	case trader.SignalPending:
		reg.SignalsFired.Inc()
	}
}

func logSummary(log zerolog.Logger, summary trader.TradingSummary) {
	log.Info().
		Float64("balance", summary.Balance).
		Int("wins", summary.Wins).Int("losses", summary.Losses).
		Float64("win_rate", summary.WinRate()).
		Float64("profit_factor", summary.ProfitFactor()).
		Float64("max_drawdown", summary.MaxDrawdown).
		Int("days_stopped_early", summary.DaysStoppedEarly).
		Msg("run complete")
}
