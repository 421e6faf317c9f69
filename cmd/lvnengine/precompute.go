package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lvnretest/engine/internal/cache"
	"github.com/lvnretest/engine/internal/config"
	"github.com/lvnretest/engine/internal/domain/bars"
	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/impulse"
	"github.com/lvnretest/engine/internal/domain/levels"
	"github.com/lvnretest/engine/internal/domain/lvn"
)

func newPrecomputeCmd(log zerolog.Logger) *cobra.Command {
	var configPath, tradesDir, dateFilter string

	cmd := &cobra.Command{
		Use:   "precompute",
		Short: "Aggregate raw trade prints into a day-cache of bars, LVNs, and reference levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := cache.NewStore(cfg.Cache.Dir)
			if err != nil {
				return err
			}
			dates, err := tradesFileDates(tradesDir, dateFilter)
			if err != nil {
				return err
			}
			if len(dates) == 0 {
				return fmt.Errorf("no trade files matched %q under %s", dateFilter, tradesDir)
			}

			for _, date := range dates {
				if err := precomputeDay(store, tradesDir, date, cfg, log); err != nil {
					log.Error().Err(err).Str("date", date).Msg("precompute failed for day, skipping")
					continue
				}
				log.Info().Str("date", date).Msg("precomputed day cache")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to engine config")
	cmd.Flags().StringVar(&tradesDir, "trades-dir", "./data/trades", "directory of <YYYYMMDD>.jsonl trade print files")
	cmd.Flags().StringVar(&dateFilter, "date", "", "single date (YYYYMMDD), month prefix (YYYYMM), or inclusive range (YYYYMMDD:YYYYMMDD); empty means all files present")
	return cmd
}

// tradesFileDates lists the YYYYMMDD stems of trade files under dir matching
// filter, using the same three filter forms as cache.Store.LoadAll.
func tradesFileDates(dir, filter string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	var dates []string
	for _, m := range matches {
		stem := filepath.Base(m)
		stem = stem[:len(stem)-len(filepath.Ext(stem))]
		dates = append(dates, stem)
	}
	sort.Strings(dates)
	return cache.SelectDates(dates, filter), nil
}

func precomputeDay(store *cache.Store, tradesDir, date string, cfg *config.Config, log zerolog.Logger) error {
	path := filepath.Join(tradesDir, date+".jsonl")
	trades, err := loadTradesFile(path)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return fmt.Errorf("no trades in %s", path)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	rth, overnight := splitSession(trades, cfg.Session, loc)
	parsedDate, err := time.ParseInLocation("20060102", date, loc)
	if err != nil {
		return fmt.Errorf("parse date %s: %w", date, err)
	}
	daily := levels.ComputeDaily(parsedDate, rth, overnight)

	oneSecBars := aggregateBars(trades, cfg.Symbol)
	oneMinBars := downsampleToMinuteBars(oneSecBars)

	legs := impulse.DetectImpulseLegs(oneMinBars, cfg.Impulse)
	var lvnLevels []lvn.Level
	for _, leg := range legs {
		legTrades := tradesInRange(trades, leg.StartTime, leg.EndTime)
		lvnLevels = append(lvnLevels, lvn.Extract(legTrades, leg.Direction, leg.ID, cfg.StateMachine.MaxLvnVolumeRatio)...)
	}

	return store.Save(cache.DayData{
		Date:       date,
		Bars:       oneSecBars,
		LvnLevels:  lvnLevels,
		DailyLevel: daily,
	})
}

func aggregateBars(trades []core.Trade, symbol string) []core.Bar {
	agg := bars.New(symbol)
	var out []core.Bar
	for _, t := range trades {
		if bar, ok := agg.ProcessTrade(t.Timestamp, t.Price, t.Size, t.Side); ok {
			out = append(out, bar)
		}
	}
	if bar, ok := agg.Flush(); ok {
		out = append(out, bar)
	}
	return out
}

// downsampleToMinuteBars merges consecutive 1-second bars sharing a minute
// into a single OHLCV bar, the granularity impulse.DetectImpulseLegs expects.
func downsampleToMinuteBars(oneSec []core.Bar) []core.Bar {
	var out []core.Bar
	var cur *core.Bar
	var curMinute time.Time

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, b := range oneSec {
		minute := b.Timestamp.Truncate(time.Minute)
		if cur == nil || !minute.Equal(curMinute) {
			flush()
			nb := b
			nb.Timestamp = minute
			cur = &nb
			curMinute = minute
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
		cur.BuyVolume += b.BuyVolume
		cur.SellVolume += b.SellVolume
		cur.TradeCount += b.TradeCount
	}
	flush()
	return out
}

func tradesInRange(trades []core.Trade, start, end time.Time) []core.Trade {
	var out []core.Trade
	for _, t := range trades {
		if (t.Timestamp.Equal(start) || t.Timestamp.After(start)) && (t.Timestamp.Equal(end) || t.Timestamp.Before(end)) {
			out = append(out, t)
		}
	}
	return out
}

// splitSession partitions a day's trades into regular-trading-hours and
// overnight buckets per the configured session window.
func splitSession(trades []core.Trade, sess config.SessionConfig, loc *time.Location) (rth, overnight []core.Trade) {
	startMinutes := sess.StartHour*60 + sess.StartMinute
	endMinutes := sess.EndHour*60 + sess.EndMinute
	for _, t := range trades {
		local := t.Timestamp.In(loc)
		m := local.Hour()*60 + local.Minute()
		if m >= startMinutes && m < endMinutes {
			rth = append(rth, t)
		} else {
			overnight = append(overnight, t)
		}
	}
	return rth, overnight
}
