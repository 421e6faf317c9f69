package statemachine

import (
	"testing"
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/impulse"
	"github.com/lvnretest/engine/internal/domain/levels"
	"github.com/lvnretest/engine/internal/domain/retest"
)

func testConfig() Config {
	return Config{
		BreakoutThreshold: 1.0,
		MaxHuntingBars:    50,
		MaxLvnVolumeRatio: 0.4,
		Impulse:           impulse.DefaultConfig(),
		Retest: retest.Config{
			LevelTolerance:        1,
			RetestDistance:        3,
			MinDeltaForAbsorption: 100,
			MaxRangeForAbsorption: 2,
		},
	}
}

func bar(ts time.Time, o, h, l, c float64, vol int64) core.Bar {
	return core.Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: vol, BuyVolume: vol, Symbol: "NQ"}
}

func TestWaitingTransitionsToProfilingOnBreakout(t *testing.T) {
	d := levels.Daily{PDH: 18000}
	m := NewMachine(d, testConfig(), retest.NewGenerator(retest.Config{}))

	tr := m.ProcessBar(bar(time.Now(), 18000, 18002, 17999, 18002, 10), nil)
	if tr != TransitionBreakout || m.State() != Profiling {
		t.Fatalf("expected breakout transition into Profiling, got %v state=%v", tr, m.State())
	}
}

func TestResetHasOneBarLag(t *testing.T) {
	d := levels.Daily{PDH: 18000}
	cfg := testConfig()
	cfg.Impulse.MaxImpulseBars = 1
	m := NewMachine(d, cfg, retest.NewGenerator(retest.Config{}))

	base := time.Now()
	m.ProcessBar(bar(base, 18000, 18002, 17999, 18002, 10), nil) // breakout -> Profiling
	if m.State() != Profiling {
		t.Fatalf("expected Profiling, got %v", m.State())
	}

	// Second bar overruns MaxImpulseBars: invalidation is recorded as Reset
	// on this very bar, but the transition back to Waiting must NOT happen
	// until the *next* call.
	tr := m.ProcessBar(bar(base.Add(time.Second), 18002, 18003, 18001, 18002, 10), nil)
	if tr != TransitionImpulseInvalid {
		t.Fatalf("expected ImpulseInvalid transition, got %v", tr)
	}
	if m.State() != Reset {
		t.Fatalf("expected state to read Reset immediately, got %v", m.State())
	}

	tr = m.ProcessBar(bar(base.Add(2*time.Second), 18002, 18003, 18001, 18002, 10), nil)
	if tr != TransitionReset || m.State() != Waiting {
		t.Fatalf("expected the Reset->Waiting flip on the next bar, got tr=%v state=%v", tr, m.State())
	}
}

// TestRollingVolumeFeedsImpulseScore confirms the Waiting-phase rolling
// volume window reaches the builder: a breakout preceded by low-volume bars,
// followed by a move with much higher volume, should score volume_increased
// and reach the full 5/5.
func TestRollingVolumeFeedsImpulseScore(t *testing.T) {
	d := levels.Daily{PDH: 18000}
	m := NewMachine(d, testConfig(), retest.NewGenerator(retest.Config{}))

	base := time.Now()
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		tr := m.ProcessBar(bar(ts, 17990, 17991, 17989, 17990, 5), nil)
		if tr != NoTransition {
			t.Fatalf("unexpected transition %v while priming the rolling volume window", tr)
		}
	}

	tr := m.ProcessBar(bar(base.Add(5*time.Second), 18000, 18003, 17999, 18002, 50), nil)
	if tr != TransitionBreakout || m.State() != Profiling {
		t.Fatalf("expected breakout into Profiling, got %v state=%v", tr, m.State())
	}

	tr = m.ProcessBar(bar(base.Add(6*time.Second), 18002, 18022, 18001, 18020, 50), nil)
	if tr != NoTransition {
		t.Fatalf("unexpected transition %v on the second profiling bar", tr)
	}

	tr = m.ProcessBar(bar(base.Add(7*time.Second), 18020, 18037, 18019, 18035, 50), nil)
	if tr != TransitionImpulseComplete {
		t.Fatalf("expected ImpulseComplete once the move clears MinImpulseSize, got %v", tr)
	}
	if !m.builder.VolumeIncreased() {
		t.Fatalf("expected volume_increased to be satisfied against the primed low-volume rolling window")
	}
	if got := m.builder.Score(); got != 5 {
		t.Fatalf("expected a full 5/5 score, got %d", got)
	}
}
