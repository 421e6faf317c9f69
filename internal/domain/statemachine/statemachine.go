// Package statemachine orchestrates the Waiting → Profiling → Hunting →
// Reset trading cycle across the daily-levels, impulse-builder, LVN
// extractor, and retest-signal-generator components.
package statemachine

import (
	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/impulse"
	"github.com/lvnretest/engine/internal/domain/levels"
	"github.com/lvnretest/engine/internal/domain/lvn"
	"github.com/lvnretest/engine/internal/domain/retest"
)

// TradingState names the four phases of the cycle.
type TradingState int

const (
	Waiting TradingState = iota
	Profiling
	Hunting
	Reset
)

func (s TradingState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Profiling:
		return "profiling"
	case Hunting:
		return "hunting"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Transition describes a state-machine event emitted on a given bar, for
// logging and for driving C9/C7 bulk-clear calls.
type Transition int

const (
	NoTransition Transition = iota
	TransitionBreakout
	TransitionImpulseComplete
	TransitionImpulseInvalid
	TransitionHuntingTimeout
	TransitionReset
)

// Config holds the thresholds that gate breakout detection and the
// Profiling/Hunting phase timeouts.
type Config struct {
	BreakoutThreshold float64
	MaxHuntingBars    int
	MaxLvnVolumeRatio float64
	Impulse           impulse.Config
	Retest            retest.Config
}

// maxVolumeSamples bounds the rolling volume window used to seed an
// impulse's prior mean: one minute of 1s bars.
const maxVolumeSamples = 60

// Machine drives one instrument's Waiting/Profiling/Hunting/Reset cycle.
type Machine struct {
	cfg          Config
	state        TradingState
	daily        levels.Daily
	builder      *impulse.Builder
	retestGen    *retest.Generator
	huntingBars  int
	pendingReset bool // set when Reset fires; the state flip happens on the *next* ProcessBar call
	activeImpulseID string
	tradeBuffer  []core.Trade
	rollingVolume []int64
}

// NewMachine creates a Machine seeded with the day's reference levels.
func NewMachine(daily levels.Daily, cfg Config, retestGen *retest.Generator) *Machine {
	return &Machine{cfg: cfg, daily: daily, state: Waiting, retestGen: retestGen}
}

// State returns the current phase.
func (m *Machine) State() TradingState { return m.state }

// ActiveImpulseID returns the impulse_id currently in flight, if any.
func (m *Machine) ActiveImpulseID() string { return m.activeImpulseID }

// SetDaily replaces the reference levels, e.g. on a new trading day. The
// rolling volume window is reset along with it: it doesn't carry meaning
// across a session boundary.
func (m *Machine) SetDaily(d levels.Daily) {
	m.daily = d
	m.rollingVolume = nil
}

// avgVolume returns the mean of the rolling volume window, or 0 if empty.
func (m *Machine) avgVolume() float64 {
	if len(m.rollingVolume) == 0 {
		return 0
	}
	var sum int64
	for _, v := range m.rollingVolume {
		sum += v
	}
	return float64(sum) / float64(len(m.rollingVolume))
}

// updateRollingVolume folds bar's volume into the window, capped at
// maxVolumeSamples.
func (m *Machine) updateRollingVolume(bar core.Bar) {
	m.rollingVolume = append(m.rollingVolume, bar.Volume)
	if len(m.rollingVolume) > maxVolumeSamples {
		m.rollingVolume = m.rollingVolume[len(m.rollingVolume)-maxVolumeSamples:]
	}
}

// ForceReset drives the machine to Waiting immediately, clearing any
// in-flight impulse and its LVNs. Used by callers that close a position
// outside the machine's own Hunting-phase detection, e.g. a stop/target
// fill or a daily-loss-limit flatten.
func (m *Machine) ForceReset() {
	if m.activeImpulseID != "" {
		m.retestGen.ClearImpulseLvns(m.activeImpulseID)
	}
	m.state = Waiting
	m.pendingReset = false
	m.activeImpulseID = ""
	m.tradeBuffer = nil
	m.huntingBars = 0
}

// ProcessBar advances the machine by one bar and returns the transition (if
// any) that occurred. trade is the trade associated with this bar, if any,
// fed in parallel to the impulse builder's raw-trade buffer.
func (m *Machine) ProcessBar(bar core.Bar, trade *core.Trade) Transition {
	// The Reset state's flip back to Waiting is deliberately deferred to
	// this call, one bar after the invalidation/timeout bar that set it.
	if m.pendingReset {
		m.pendingReset = false
		m.state = Waiting
		m.activeImpulseID = ""
		m.tradeBuffer = nil
		return TransitionReset
	}

	switch m.state {
	case Waiting:
		return m.processWaiting(bar)
	case Profiling:
		return m.processProfiling(bar, trade)
	case Hunting:
		return m.processHunting(bar)
	default:
		return NoTransition
	}
}

func (m *Machine) processWaiting(bar core.Bar) Transition {
	priorMean := m.avgVolume()
	m.updateRollingVolume(bar)

	bo, ok := m.daily.CheckBreakout(bar.Close, m.cfg.BreakoutThreshold)
	if !ok {
		return NoTransition
	}
	m.builder = impulse.NewBuilder(bo.Direction, bar, priorMean, m.cfg.Impulse)
	m.activeImpulseID = m.builder.ID()
	m.tradeBuffer = nil
	m.state = Profiling
	return TransitionBreakout
}

func (m *Machine) processProfiling(bar core.Bar, trade *core.Trade) Transition {
	m.builder.AddBar(bar)
	if trade != nil {
		m.tradeBuffer = append(m.tradeBuffer, *trade)
	}

	if m.builder.IsInvalidated() {
		m.state = Reset
		m.pendingReset = true
		return TransitionImpulseInvalid
	}

	if m.builder.IsComplete() {
		leg := m.builder.Finalize()
		levelsFound := lvn.Extract(m.tradeBuffer, leg.Direction, leg.ID, m.cfg.MaxLvnVolumeRatio)
		m.retestGen.AddLvnLevelsWithImpulse(levelsFound, leg.ID)
		m.huntingBars = 0
		m.state = Hunting
		return TransitionImpulseComplete
	}

	return NoTransition
}

func (m *Machine) processHunting(bar core.Bar) Transition {
	m.huntingBars++
	if m.huntingBars > m.cfg.MaxHuntingBars {
		m.retestGen.ClearImpulseLvns(m.activeImpulseID)
		m.state = Reset
		m.pendingReset = true
		return TransitionHuntingTimeout
	}
	return NoTransition
}
