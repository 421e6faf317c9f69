package trader

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/impulse"
	"github.com/lvnretest/engine/internal/domain/levels"
	"github.com/lvnretest/engine/internal/domain/lvn"
	"github.com/lvnretest/engine/internal/domain/regime"
	"github.com/lvnretest/engine/internal/domain/retest"
	"github.com/lvnretest/engine/internal/domain/statemachine"
)

func testTraderConfig() Config {
	return Config{
		Contracts:       1,
		TakeProfit:      10,
		TrailingStop:    5,
		StopBuffer:      2,
		MaxHoldBars:     100,
		DailyLossLimit:  1000,
		MaxDailyLosses:  5,
		StartingBalance: 10000,
		PointValue:      5,
		StartHour:       0,
		StartMinute:     0,
		EndHour:         23,
		EndMinute:       59,
		Location:        time.UTC,
	}
}

func newTestTrader(cfg Config) (*Trader, *retest.Generator) {
	retestCfg := retest.Config{
		LevelTolerance:        1,
		RetestDistance:        3,
		MinDeltaForAbsorption: 100,
		MaxRangeForAbsorption: 5,
	}
	gen := retest.NewGenerator(retestCfg)
	smCfg := statemachine.Config{
		BreakoutThreshold: 1,
		MaxHuntingBars:    50,
		MaxLvnVolumeRatio: 0.4,
		Impulse:           impulse.DefaultConfig(),
		Retest:            retestCfg,
	}
	m := statemachine.NewMachine(levels.Daily{}, smCfg, gen)
	tr := New(cfg, m, gen, zerolog.Nop())
	return tr, gen
}

func tbar(ts time.Time, o, h, l, c float64, buyVol, sellVol int64) core.Bar {
	return core.Bar{
		Timestamp: ts, Open: o, High: h, Low: l, Close: c,
		Volume: buyVol + sellVol, BuyVolume: buyVol, SellVolume: sellVol, Symbol: "NQ",
	}
}

// driveToSignalBars walks the generator's level lifecycle Untouched -> Touched
// -> Armed -> Retesting and returns the sequence of bars up to and including
// the bar that fires the signal, at LevelPrice=100 with an Up-direction level.
func driveToSignalBars(base time.Time) []core.Bar {
	return []core.Bar{
		tbar(base, 100, 100.2, 99.8, 100, 1, 1),          // touch
		tbar(base.Add(time.Second), 110, 110.2, 109.8, 110, 1, 1), // arm
		tbar(base.Add(2*time.Second), 100, 100.2, 99.8, 100, 1, 1), // retesting
		tbar(base.Add(3*time.Second), 100, 100.3, 99.9, 100.2, 150, 1), // fires: Imbalanced, delta +149
	}
}

func TestEntryAtNextBarOpenThenStopExit(t *testing.T) {
	tr, gen := newTestTrader(testTraderConfig())
	gen.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	for _, b := range driveToSignalBars(base) {
		actions := tr.ProcessBar(b, nil, regime.Imbalanced)
		_ = actions
	}
	if tr.InPosition() {
		t.Fatalf("should not enter until the bar after the signal")
	}

	entryBar := tbar(base.Add(4*time.Second), 100.5, 100.6, 100.4, 100.5, 1, 1)
	actions := tr.ProcessBar(entryBar, nil, regime.Balanced)
	if !tr.InPosition() {
		t.Fatalf("expected position to open at the bar after SignalPending")
	}
	foundEnter := false
	for _, a := range actions {
		if e, ok := a.(Enter); ok {
			foundEnter = true
			if e.Price != 100.5 {
				t.Fatalf("expected entry at bar open 100.5, got %v", e.Price)
			}
			if e.Stop != 98 {
				t.Fatalf("expected stop at levelPrice-StopBuffer=98, got %v", e.Stop)
			}
			if e.Target != 110.5 {
				t.Fatalf("expected target at entry+TakeProfit=110.5, got %v", e.Target)
			}
		}
	}
	if !foundEnter {
		t.Fatalf("expected an Enter action, got %+v", actions)
	}

	stopBar := tbar(base.Add(5*time.Second), 99, 99.1, 97.5, 98, 1, 1)
	actions = tr.ProcessBar(stopBar, nil, regime.Balanced)
	if tr.InPosition() {
		t.Fatalf("expected position to close on stop hit")
	}
	foundExit := false
	for _, a := range actions {
		if e, ok := a.(Exit); ok {
			foundExit = true
			if e.Reason != ExitStop {
				t.Fatalf("expected ExitStop, got %v", e.Reason)
			}
		}
	}
	if !foundExit {
		t.Fatalf("expected an Exit action, got %+v", actions)
	}

	summary := tr.Summary()
	if summary.Losses != 1 {
		t.Fatalf("expected one recorded loss, got wins=%d losses=%d be=%d", summary.Wins, summary.Losses, summary.Breakevens)
	}
}

func TestTrailingStopActivatesAfterBreakevenDistance(t *testing.T) {
	cfg := testTraderConfig()
	tr, gen := newTestTrader(cfg)
	gen.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	for _, b := range driveToSignalBars(base) {
		tr.ProcessBar(b, nil, regime.Imbalanced)
	}
	entryBar := tbar(base.Add(4*time.Second), 100.5, 100.6, 100.4, 100.5, 1, 1)
	tr.ProcessBar(entryBar, nil, regime.Balanced)

	// Run price up enough to clear the 5-point trailing-stop activation
	// distance; the stop should ratchet up but never touch the entry bar.
	runUp := tbar(base.Add(5*time.Second), 100.5, 106, 105, 106, 1, 1)
	actions := tr.ProcessBar(runUp, nil, regime.Balanced)
	foundUpdate := false
	for _, a := range actions {
		if u, ok := a.(UpdateStop); ok {
			foundUpdate = true
			if u.NewStop != 101 { // highest(106) - trailingStop(5)
				t.Fatalf("expected trailing stop at 101, got %v", u.NewStop)
			}
		}
	}
	if !foundUpdate {
		t.Fatalf("expected trailing stop to ratchet up, got %+v", actions)
	}
}

func TestDailyLossLimitFlattensAndStopsTrading(t *testing.T) {
	cfg := testTraderConfig()
	cfg.DailyLossLimit = 2 // trips after the first losing trade below
	tr, gen := newTestTrader(cfg)
	gen.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	for _, b := range driveToSignalBars(base) {
		tr.ProcessBar(b, nil, regime.Imbalanced)
	}
	entryBar := tbar(base.Add(4*time.Second), 100.5, 100.6, 100.4, 100.5, 1, 1)
	tr.ProcessBar(entryBar, nil, regime.Balanced)

	stopBar := tbar(base.Add(5*time.Second), 99, 99.1, 97.5, 98, 1, 1)
	tr.ProcessBar(stopBar, nil, regime.Balanced)

	// Next bar: dailyPnl is now below -DailyLossLimit, so the trader must
	// flatten (no position was open, so no Exit) and stop trading for the day.
	nextBar := tbar(base.Add(6*time.Second), 98, 98.1, 97.9, 98, 1, 1)
	actions := tr.ProcessBar(nextBar, nil, regime.Balanced)
	foundFlatten := false
	for _, a := range actions {
		if _, ok := a.(FlattenAll); ok {
			foundFlatten = true
		}
	}
	if !foundFlatten {
		t.Fatalf("expected FlattenAll once the daily loss limit trips, got %+v", actions)
	}

	// Trading must stay halted for the remainder of the day.
	quietBar := tbar(base.Add(7*time.Second), 98, 98.1, 97.9, 98, 1, 1)
	actions = tr.ProcessBar(quietBar, nil, regime.Balanced)
	if len(actions) != 0 {
		t.Fatalf("expected no further actions once daily-stopped, got %+v", actions)
	}
}

func TestMaxDailyLossesTripsStop(t *testing.T) {
	cfg := testTraderConfig()
	cfg.MaxDailyLosses = 1
	cfg.DailyLossLimit = 1000
	tr, gen := newTestTrader(cfg)
	gen.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	for _, b := range driveToSignalBars(base) {
		tr.ProcessBar(b, nil, regime.Imbalanced)
	}
	entryBar := tbar(base.Add(4*time.Second), 100.5, 100.6, 100.4, 100.5, 1, 1)
	tr.ProcessBar(entryBar, nil, regime.Balanced)

	stopBar := tbar(base.Add(5*time.Second), 99, 99.1, 97.5, 98, 1, 1)
	tr.ProcessBar(stopBar, nil, regime.Balanced)

	if tr.Summary().Losses != 1 {
		t.Fatalf("expected exactly one recorded loss, got %d", tr.Summary().Losses)
	}

	// A second setup should never be allowed to enter: the day is stopped.
	gen.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 98, Direction: core.DirectionUp}}, "impulse-2")
	sameDayBars := []core.Bar{
		tbar(base.Add(6*time.Second), 98, 98.2, 97.8, 98, 1, 1),
		tbar(base.Add(7*time.Second), 108, 108.2, 107.8, 108, 1, 1),
		tbar(base.Add(8*time.Second), 98, 98.2, 97.8, 98, 1, 1),
		tbar(base.Add(9*time.Second), 98, 98.3, 97.9, 98.2, 150, 1),
	}
	for _, b := range sameDayBars {
		actions := tr.ProcessBar(b, nil, regime.Imbalanced)
		if len(actions) != 0 {
			t.Fatalf("expected no actions while daily-stopped, got %+v", actions)
		}
	}
	if tr.InPosition() {
		t.Fatalf("must not have entered a new position after max daily losses tripped")
	}
}

func TestTimeoutExitAfterMaxHoldBars(t *testing.T) {
	cfg := testTraderConfig()
	cfg.MaxHoldBars = 2
	tr, gen := newTestTrader(cfg)
	gen.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	for _, b := range driveToSignalBars(base) {
		tr.ProcessBar(b, nil, regime.Imbalanced)
	}
	entryBar := tbar(base.Add(4*time.Second), 100.5, 100.6, 100.4, 100.5, 1, 1)
	tr.ProcessBar(entryBar, nil, regime.Balanced) // BarsHeld -> 1 after manage

	quiet := tbar(base.Add(5*time.Second), 100.5, 100.6, 100.4, 100.5, 1, 1)
	actions := tr.ProcessBar(quiet, nil, regime.Balanced) // BarsHeld -> 2, timeout
	foundTimeout := false
	for _, a := range actions {
		if e, ok := a.(Exit); ok && e.Reason == ExitTimeout {
			foundTimeout = true
		}
	}
	if !foundTimeout {
		t.Fatalf("expected a timeout exit once MaxHoldBars is reached, got %+v", actions)
	}
}

func TestResetForNewDayForceClosesOpenPosition(t *testing.T) {
	tr, gen := newTestTrader(testTraderConfig())
	gen.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	for _, b := range driveToSignalBars(base) {
		tr.ProcessBar(b, nil, regime.Imbalanced)
	}
	entryBar := tbar(base.Add(4*time.Second), 100.5, 100.6, 100.4, 100.5, 1, 1)
	tr.ProcessBar(entryBar, nil, regime.Balanced)
	if !tr.InPosition() {
		t.Fatalf("setup failed: expected an open position")
	}

	actions := tr.ResetForNewDay(103)
	if tr.InPosition() {
		t.Fatalf("expected ResetForNewDay to force-close the open position")
	}
	if len(actions) != 1 {
		t.Fatalf("expected exactly one Exit action, got %+v", actions)
	}
	if e, ok := actions[0].(Exit); !ok || e.Reason != ExitEndOfDay {
		t.Fatalf("expected an end-of-day Exit, got %+v", actions[0])
	}
}
