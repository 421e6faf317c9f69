// Package retest tracks each extracted LVN through a 4-state lifecycle and
// emits a directional trading signal when a qualified retest occurs.
package retest

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/lvn"
	"github.com/lvnretest/engine/internal/domain/regime"
)

// LevelState is the per-level retest lifecycle state.
type LevelState int

const (
	Untouched LevelState = iota
	Touched
	Armed
	Retesting
)

// Config holds the quality-filter and cooldown thresholds.
type Config struct {
	LevelTolerance        float64 `yaml:"level_tolerance"`
	RetestDistance        float64 `yaml:"retest_distance"`
	MinDeltaForAbsorption float64 `yaml:"min_delta_for_absorption"`
	MaxRangeForAbsorption float64 `yaml:"max_range_for_absorption"`
	SameDayOnly           bool    `yaml:"same_day_only"`
	CooldownBars          int     `yaml:"cooldown_bars"`
	LevelCooldownBars     int     `yaml:"level_cooldown_bars"`
}

// TrackedLevel is an LVN under the 4-state lifecycle.
type TrackedLevel struct {
	Level          lvn.Level
	State          LevelState
	FirstTouchBar  int
	ArmedBar       int
	LastTradeBar   int
	ApproachedFrom core.Direction
	BarsSinceSeen  int
}

// Signal is a qualified retest signal ready for the trader to act on.
type Signal struct {
	ID         string
	Direction  core.Direction
	Price      float64
	LevelPrice float64
	Delta      int64
	Reason     string
	ImpulseID  string
}

// Generator tracks all active LVNs and emits retest signals.
type Generator struct {
	cfg            Config
	levels         map[int64]*TrackedLevel
	barIndex       int
	lastGlobalFire int
}

// NewGenerator creates an empty Generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, levels: make(map[int64]*TrackedLevel), lastGlobalFire: -1 << 30}
}

func levelKey(price float64) int64 {
	return int64(price * 100)
}

// AddLvnLevels registers new LVNs without an impulse tag (bulk load path).
func (g *Generator) AddLvnLevels(levels []lvn.Level) {
	for _, l := range levels {
		g.levels[levelKey(l.Price)] = newTrackedLevel(l)
	}
}

// AddLvnLevelsWithImpulse registers LVNs tagged with an impulse_id, used by
// the Hunting state so they can later be bulk-cleared by ClearImpulseLvns.
func (g *Generator) AddLvnLevelsWithImpulse(levels []lvn.Level, impulseID string) {
	for _, l := range levels {
		l.ImpulseID = impulseID
		g.levels[levelKey(l.Price)] = newTrackedLevel(l)
	}
}

// newTrackedLevel seeds LastTradeBar far in the past so a level's
// cooldown doesn't suppress its first signal during the opening bars of a
// run, mirroring Generator's own lastGlobalFire sentinel.
func newTrackedLevel(l lvn.Level) *TrackedLevel {
	return &TrackedLevel{Level: l, State: Untouched, LastTradeBar: -1 << 30}
}

// ClearImpulseLvns drops every tracked level tagged with impulseID.
func (g *Generator) ClearImpulseLvns(impulseID string) {
	for k, tl := range g.levels {
		if tl.Level.ImpulseID == impulseID {
			delete(g.levels, k)
		}
	}
}

// ClearLevels drops all tracked levels unconditionally.
func (g *Generator) ClearLevels() {
	g.levels = make(map[int64]*TrackedLevel)
}

// LevelImpulseID returns the impulse_id a tracked level (by price) belongs
// to, if any.
func (g *Generator) LevelImpulseID(price float64) (string, bool) {
	tl, ok := g.levels[levelKey(price)]
	if !ok {
		return "", false
	}
	return tl.Level.ImpulseID, true
}

// ProcessBar updates every tracked level's state machine for the given bar
// and returns at most one qualified signal. Callers (C9) must only invoke
// this while flat — the generator does not itself enforce that invariant.
func (g *Generator) ProcessBar(bar core.Bar, marketState regime.State) (Signal, bool) {
	g.barIndex++
	g.updateLevelStates(bar)
	return g.checkForSignal(bar, marketState)
}

func (g *Generator) updateLevelStates(bar core.Bar) {
	price := bar.Close
	for _, tl := range g.levels {
		dist := absF(price - tl.Level.Price)
		switch tl.State {
		case Untouched:
			if dist <= g.cfg.LevelTolerance {
				tl.State = Touched
				tl.FirstTouchBar = g.barIndex
			}
		case Touched:
			if dist > g.cfg.RetestDistance {
				tl.State = Armed
				tl.ArmedBar = g.barIndex
			}
		case Armed:
			if dist <= g.cfg.LevelTolerance {
				tl.State = Retesting
			}
		case Retesting:
			if dist > g.cfg.RetestDistance {
				tl.State = Armed
			} else if dist > g.cfg.LevelTolerance {
				tl.State = Touched
			}
		}
	}
}

func (g *Generator) checkForSignal(bar core.Bar, marketState regime.State) (Signal, bool) {
	if g.barIndex-g.lastGlobalFire < g.cfg.CooldownBars {
		return Signal{}, false
	}
	if marketState != regime.Imbalanced {
		return Signal{}, false
	}
	if absF(float64(bar.Delta())) < g.cfg.MinDeltaForAbsorption {
		return Signal{}, false
	}
	if bar.Range() > g.cfg.MaxRangeForAbsorption {
		return Signal{}, false
	}

	for _, key := range g.sortedLevelKeys() {
		tl := g.levels[key]
		if tl.State != Retesting {
			continue
		}
		if g.barIndex-tl.LastTradeBar < g.cfg.LevelCooldownBars {
			continue
		}
		if g.cfg.SameDayOnly {
			ly, lm, ld := tl.Level.Date.Date()
			by, bm, bd := bar.Timestamp.In(tl.Level.Date.Location()).Date()
			if ly != by || lm != bm || ld != bd {
				continue
			}
		}
		deltaSign := sign(float64(bar.Delta()))
		if deltaSign != tl.Level.Direction.Sign() {
			continue
		}

		sig := Signal{
			ID:         uuid.NewString(),
			Direction:  tl.Level.Direction,
			Price:      bar.Close,
			LevelPrice: tl.Level.Price,
			Delta:      bar.Delta(),
			Reason:     fmt.Sprintf("absorption retest at %.2f, delta=%d", tl.Level.Price, bar.Delta()),
			ImpulseID:  tl.Level.ImpulseID,
		}

		g.lastGlobalFire = g.barIndex
		tl.LastTradeBar = g.barIndex
		tl.State = Touched
		return sig, true
	}
	return Signal{}, false
}

// sortedLevelKeys returns every tracked level's key in ascending order, so
// that when more than one level qualifies on the same bar, which one fires
// is deterministic rather than dependent on Go's randomized map iteration.
func (g *Generator) sortedLevelKeys() []int64 {
	keys := make([]int64, 0, len(g.levels))
	for k := range g.levels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x float64) float64 {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}
