// Package trader drives the trading state machine from a bar stream, owns
// the single open position, emits broker-agnostic TradeActions, and tracks
// running P&L and daily risk limits.
package trader

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/regime"
	"github.com/lvnretest/engine/internal/domain/retest"
	"github.com/lvnretest/engine/internal/domain/statemachine"
)

// Config holds the position, cost, and risk parameters.
type Config struct {
	Contracts         int
	TakeProfit        float64 // points
	TrailingStop      float64 // points of profit before activation
	StopBuffer        float64 // points
	MaxHoldBars       int
	DailyLossLimit    float64 // points
	MaxDailyLosses    int
	StartingBalance   float64
	PointValue        float64
	Slippage          float64 // points, applied twice per round trip
	Commission        float64 // dollars per contract per round trip
	StartHour         int
	StartMinute       int
	EndHour           int
	EndMinute         int
	Location          *time.Location // Eastern time; defaults to UTC if nil
}

// OpenPosition is the trader's singleton in-flight position.
type OpenPosition struct {
	Direction    core.Direction
	EntryPrice   float64
	EntryTime    time.Time
	LevelPrice   float64
	InitialStop  float64
	TakeProfit   float64
	TrailingStop float64
	HighestPrice float64
	LowestPrice  float64
	BarsHeld     int
}

// ExitReason names why a position was closed.
type ExitReason int

const (
	ExitStop ExitReason = iota
	ExitTarget
	ExitTimeout
	ExitEndOfDay
)

func (r ExitReason) String() string {
	switch r {
	case ExitStop:
		return "stop"
	case ExitTarget:
		return "target"
	case ExitTimeout:
		return "timeout"
	case ExitEndOfDay:
		return "end_of_day"
	default:
		return "unknown"
	}
}

// Outcome classifies a closed trade's P&L.
type Outcome int

const (
	Win Outcome = iota
	Loss
	Breakeven
)

// breakevenDeadband is applied uniformly to every exit path, intra-session
// and end-of-day alike.
const breakevenDeadband = 0.5

// TradingSummary accumulates running performance statistics.
type TradingSummary struct {
	Balance         float64
	PeakBalance     float64
	MaxDrawdown     float64
	GrossProfit     float64
	GrossLoss       float64
	TradePnls       []float64
	DailyPnls       map[string]float64
	Wins, Losses, Breakevens int
	DaysStoppedEarly int
}

func newSummary(startingBalance float64) *TradingSummary {
	return &TradingSummary{
		Balance:     startingBalance,
		PeakBalance: startingBalance,
		DailyPnls:   make(map[string]float64),
	}
}

// ProfitFactor is gross profit divided by gross loss (0 if no losses yet).
func (s TradingSummary) ProfitFactor() float64 {
	if s.GrossLoss == 0 {
		return 0
	}
	return s.GrossProfit / s.GrossLoss
}

// WinRate is wins divided by total closed trades.
func (s TradingSummary) WinRate() float64 {
	total := s.Wins + s.Losses + s.Breakevens
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total)
}

// Trader drives the state machine and owns position/risk bookkeeping.
type Trader struct {
	cfg     Config
	machine *statemachine.Machine
	retest  *retest.Generator

	position      *OpenPosition
	pendingSignal *pendingSignal
	currentDate   string
	dailyPnl      float64
	dailyLosses   int
	dailyStopped  bool
	summary       *TradingSummary

	log zerolog.Logger
}

type pendingSignal struct {
	direction  core.Direction
	levelPrice float64
	impulseID  string
}

// New creates a Trader.
func New(cfg Config, machine *statemachine.Machine, retestGen *retest.Generator, log zerolog.Logger) *Trader {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Trader{
		cfg:     cfg,
		machine: machine,
		retest:  retestGen,
		summary: newSummary(cfg.StartingBalance),
		log:     log,
	}
}

// Summary returns the running performance summary.
func (t *Trader) Summary() TradingSummary { return *t.summary }

// InPosition reports whether a position is currently open.
func (t *Trader) InPosition() bool { return t.position != nil }

// ProcessBar advances the trader by one bar per §4.9, returning the ordered
// TradeActions emitted this bar.
func (t *Trader) ProcessBar(bar core.Bar, trade *core.Trade, marketState regime.State) []TradeAction {
	var actions []TradeAction

	date := bar.Timestamp.In(t.cfg.Location).Format("2006-01-02")
	if date != t.currentDate {
		if t.currentDate != "" && t.dailyStopped {
			t.summary.DaysStoppedEarly++
		}
		t.currentDate = date
		t.dailyPnl = 0
		t.dailyLosses = 0
		t.dailyStopped = false
	}

	if t.dailyStopped {
		return actions
	}

	if t.dailyPnl <= -t.cfg.DailyLossLimit {
		t.dailyStopped = true
		if t.position != nil {
			actions = append(actions, t.closePosition(bar.Close, ExitEndOfDay)...)
		}
		actions = append(actions, FlattenAll{Reason: "Daily loss limit"})
		return actions
	}

	t.machine.ProcessBar(bar, trade)

	if t.pendingSignal != nil && t.insideTradingWindow(bar.Timestamp) {
		sig := t.pendingSignal
		t.pendingSignal = nil

		entry := bar.Open
		var stop, target float64
		if sig.direction == core.DirectionUp {
			stop = sig.levelPrice - t.cfg.StopBuffer
			target = entry + t.cfg.TakeProfit
		} else {
			stop = sig.levelPrice + t.cfg.StopBuffer
			target = entry - t.cfg.TakeProfit
		}

		t.position = &OpenPosition{
			Direction:    sig.direction,
			EntryPrice:   entry,
			EntryTime:    bar.Timestamp,
			LevelPrice:   sig.levelPrice,
			InitialStop:  stop,
			TakeProfit:   target,
			TrailingStop: stop,
			HighestPrice: entry,
			LowestPrice:  entry,
		}
		actions = append(actions, Enter{
			Direction: sig.direction, Price: entry, Stop: stop, Target: target, Contracts: t.cfg.Contracts,
		})
	}

	if t.position != nil {
		actions = append(actions, t.manageOpenPosition(bar)...)
	}

	if t.position == nil && t.pendingSignal == nil && !t.dailyStopped && t.insideTradingWindow(bar.Timestamp) {
		if sig, ok := t.retest.ProcessBar(bar, marketState); ok {
			t.pendingSignal = &pendingSignal{direction: sig.Direction, levelPrice: sig.LevelPrice, impulseID: sig.ImpulseID}
			actions = append(actions, SignalPending{})
		}
	}

	return actions
}

func (t *Trader) manageOpenPosition(bar core.Bar) []TradeAction {
	var actions []TradeAction
	pos := t.position
	pos.BarsHeld++

	// Water-marks and trailing-stop ratchet only apply to bars after entry.
	if bar.Timestamp.After(pos.EntryTime) {
		if bar.High > pos.HighestPrice {
			pos.HighestPrice = bar.High
		}
		if bar.Low < pos.LowestPrice {
			pos.LowestPrice = bar.Low
		}

		advanced := t.advanceTrailingStop(pos)
		if advanced {
			actions = append(actions, UpdateStop{NewStop: pos.TrailingStop})
		}
	}

	exitPrice, reason, exit := t.checkExit(bar, pos)
	if !exit {
		return actions
	}

	actions = append(actions, t.closePosition(exitPrice, reason)...)
	return actions
}

// advanceTrailingStop activates the trailing stop only once unrealized
// profit clears the breakeven activation distance, and only ever ratchets
// it in the position's favor. Returns true if the stop moved this bar.
func (t *Trader) advanceTrailingStop(pos *OpenPosition) bool {
	if pos.Direction == core.DirectionUp {
		profit := pos.HighestPrice - pos.EntryPrice
		if profit < t.cfg.TrailingStop {
			return false
		}
		newStop := pos.HighestPrice - t.cfg.TrailingStop
		if newStop > pos.TrailingStop {
			pos.TrailingStop = newStop
			return true
		}
		return false
	}

	profit := pos.EntryPrice - pos.LowestPrice
	if profit < t.cfg.TrailingStop {
		return false
	}
	newStop := pos.LowestPrice + t.cfg.TrailingStop
	if newStop < pos.TrailingStop {
		pos.TrailingStop = newStop
		return true
	}
	return false
}

func (t *Trader) checkExit(bar core.Bar, pos *OpenPosition) (price float64, reason ExitReason, exit bool) {
	if pos.Direction == core.DirectionUp {
		if bar.Low <= pos.TrailingStop {
			return pos.TrailingStop, ExitStop, true
		}
		if bar.High >= pos.TakeProfit {
			return pos.TakeProfit, ExitTarget, true
		}
	} else {
		if bar.High >= pos.TrailingStop {
			return pos.TrailingStop, ExitStop, true
		}
		if bar.Low <= pos.TakeProfit {
			return pos.TakeProfit, ExitTarget, true
		}
	}
	if pos.BarsHeld >= t.cfg.MaxHoldBars {
		return bar.Close, ExitTimeout, true
	}
	return 0, 0, false
}

func (t *Trader) closePosition(exitPrice float64, reason ExitReason) []TradeAction {
	pos := t.position
	pnlPoints := exitPrice - pos.EntryPrice
	if pos.Direction == core.DirectionDown {
		pnlPoints = -pnlPoints
	}
	pnlPoints -= 2 * t.cfg.Slippage

	t.recordClosedTrade(pnlPoints)
	t.position = nil
	t.machine.ForceReset()

	return []TradeAction{Exit{Direction: pos.Direction, Price: exitPrice, PnLPoints: pnlPoints, Reason: reason}}
}

// recordClosedTrade applies the cost model and folds the trade into running
// statistics. closePosition calls it for every exit, including
// ResetForNewDay's forced close.
func (t *Trader) recordClosedTrade(pnlPoints float64) {
	dollarPnl := pnlPoints*t.cfg.PointValue*float64(t.cfg.Contracts) - t.cfg.Commission*float64(t.cfg.Contracts)

	t.summary.Balance += dollarPnl
	if t.summary.Balance > t.summary.PeakBalance {
		t.summary.PeakBalance = t.summary.Balance
	}
	if dd := t.summary.PeakBalance - t.summary.Balance; dd > t.summary.MaxDrawdown {
		t.summary.MaxDrawdown = dd
	}
	if dollarPnl > 0 {
		t.summary.GrossProfit += dollarPnl
	} else {
		t.summary.GrossLoss += -dollarPnl
	}
	t.summary.TradePnls = append(t.summary.TradePnls, dollarPnl)
	t.summary.DailyPnls[t.currentDate] += dollarPnl

	t.dailyPnl += pnlPoints

	switch {
	case pnlPoints > breakevenDeadband:
		t.summary.Wins++
	case pnlPoints < -breakevenDeadband:
		t.summary.Losses++
		t.dailyLosses++
	default:
		t.summary.Breakevens++
	}

	if t.dailyLosses >= t.cfg.MaxDailyLosses {
		t.dailyStopped = true
	}
}

// ResetForNewDay force-closes any open position at the last seen price,
// applying the same cost model and breakeven deadband as an intra-session
// exit, and folds the day's statistics into the running summary.
func (t *Trader) ResetForNewDay(lastPrice float64) []TradeAction {
	if t.position == nil {
		return nil
	}
	return t.closePosition(lastPrice, ExitEndOfDay)
}

func (t *Trader) insideTradingWindow(ts time.Time) bool {
	local := ts.In(t.cfg.Location)
	h, m := local.Hour(), local.Minute()
	start := h*60 + m
	startBound := t.cfg.StartHour*60 + t.cfg.StartMinute
	endBound := t.cfg.EndHour*60 + t.cfg.EndMinute
	return start >= startBound && start < endBound
}
