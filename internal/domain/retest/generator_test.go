package retest

import (
	"testing"

	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/lvn"
	"github.com/lvnretest/engine/internal/domain/regime"
)

func cfg() Config {
	return Config{
		LevelTolerance:        1.0,
		RetestDistance:        3.0,
		MinDeltaForAbsorption: 100,
		MaxRangeForAbsorption: 2.0,
		CooldownBars:          0,
		LevelCooldownBars:     0,
	}
}

func bar(close float64, buyVol, sellVol int64, high, low float64) core.Bar {
	return core.Bar{Open: close, Close: close, High: high, Low: low, Volume: buyVol + sellVol, BuyVolume: buyVol, SellVolume: sellVol}
}

func TestLevelLifecycleAndSignalEmission(t *testing.T) {
	g := NewGenerator(cfg())
	g.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	// Touch.
	g.ProcessBar(bar(100, 1, 1, 100.2, 99.8), regime.Balanced)
	// Arm by moving away.
	g.ProcessBar(bar(110, 1, 1, 110.2, 109.8), regime.Balanced)
	// Re-enter tolerance: Retesting.
	_, fired := g.ProcessBar(bar(100, 1, 1, 100.2, 99.8), regime.Balanced)
	if fired {
		t.Fatalf("should not fire while market state is Balanced")
	}

	sig, fired := g.ProcessBar(bar(100.2, 150, 1, 100.3, 99.9), regime.Imbalanced)
	if !fired {
		t.Fatalf("expected a signal once Retesting + Imbalanced + matching delta sign")
	}
	if sig.Direction != core.DirectionUp {
		t.Fatalf("expected Up direction, got %v", sig.Direction)
	}
	if sig.ImpulseID != "impulse-1" {
		t.Fatalf("expected impulse id to be carried through")
	}
}

func TestCounterTrendDeltaRejected(t *testing.T) {
	g := NewGenerator(cfg())
	g.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionDown}}, "impulse-2")

	g.ProcessBar(bar(100, 1, 1, 100.2, 99.8), regime.Balanced)
	g.ProcessBar(bar(90, 1, 1, 90.2, 89.8), regime.Balanced)
	g.ProcessBar(bar(100, 1, 1, 100.2, 99.8), regime.Balanced)

	// Wrong-sign delta (+200 at a down-impulse resistance level) must not fire.
	_, fired := g.ProcessBar(bar(100, 200, 1, 100.2, 99.8), regime.Imbalanced)
	if fired {
		t.Fatalf("expected counter-trend delta to be rejected")
	}
}

func TestCheckForSignalPicksLowestKeyDeterministically(t *testing.T) {
	g := NewGenerator(cfg())
	// Registered out of price order: the lower-keyed level must still win,
	// regardless of Go's randomized map iteration order.
	g.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100.5, Direction: core.DirectionUp}}, "impulse-hi")
	g.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100.0, Direction: core.DirectionUp}}, "impulse-lo")

	g.ProcessBar(bar(100.2, 1, 1, 100.3, 100.1), regime.Balanced)   // touch both
	g.ProcessBar(bar(110, 1, 1, 110.2, 109.8), regime.Balanced)     // arm both
	g.ProcessBar(bar(100.2, 1, 1, 100.3, 100.1), regime.Balanced)   // both Retesting

	sig, fired := g.ProcessBar(bar(100.2, 150, 1, 100.3, 99.9), regime.Imbalanced)
	if !fired {
		t.Fatalf("expected a signal once both levels are Retesting + Imbalanced")
	}
	if sig.LevelPrice != 100.0 || sig.ImpulseID != "impulse-lo" {
		t.Fatalf("expected the lowest-keyed level (100.0) to fire first, got price=%v impulse=%v", sig.LevelPrice, sig.ImpulseID)
	}
}

func TestTrackedLevelFirstSignalNotSuppressedByCooldown(t *testing.T) {
	c := cfg()
	c.LevelCooldownBars = 5
	g := NewGenerator(c)
	g.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100, Direction: core.DirectionUp}}, "impulse-1")

	g.ProcessBar(bar(100, 1, 1, 100.2, 99.8), regime.Balanced)
	g.ProcessBar(bar(110, 1, 1, 110.2, 109.8), regime.Balanced)
	g.ProcessBar(bar(100, 1, 1, 100.2, 99.8), regime.Balanced)

	_, fired := g.ProcessBar(bar(100.2, 150, 1, 100.3, 99.9), regime.Imbalanced)
	if !fired {
		t.Fatalf("expected the first-ever signal on a fresh level not to be suppressed by LevelCooldownBars")
	}
}

func TestClearImpulseLvns(t *testing.T) {
	g := NewGenerator(cfg())
	g.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 100}}, "impulse-3")
	g.AddLvnLevelsWithImpulse([]lvn.Level{{Price: 200}}, "impulse-4")
	g.ClearImpulseLvns("impulse-3")
	if len(g.levels) != 1 {
		t.Fatalf("expected only impulse-4's level to remain, got %d levels", len(g.levels))
	}
}
