package impulse

import (
	"testing"
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
)

// flatBars builds n low-volume, low-range bars, used to prime the rolling
// swing-high/low reference and prior-volume baseline ahead of a candidate
// impulse start index.
func flatBars(n int, base time.Time) []core.Bar {
	bars := make([]core.Bar, n)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		bars[i] = mkBar(ts, 100, 100.5, 99.5, 100, 10)
	}
	return bars
}

func TestDetectImpulseLegsFindsUpMove(t *testing.T) {
	base := time.Now()
	bars := flatBars(SwingLookback, base)

	price := 100.0
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(SwingLookback+i) * time.Second)
		open := price
		price += 15
		bars = append(bars, mkBar(ts, open, price+1, open-1, price, 50))
	}

	legs := DetectImpulseLegs(bars, DefaultConfig())
	if len(legs) != 1 {
		t.Fatalf("expected exactly one detected leg, got %d: %+v", len(legs), legs)
	}
	leg := legs[0]
	if leg.Direction != core.DirectionUp {
		t.Fatalf("expected an up leg, got %v", leg.Direction)
	}
	if !leg.BrokeSwing {
		t.Fatalf("expected the move to clear the rolling swing high")
	}
	if !leg.VolumeUp {
		t.Fatalf("expected volume_increased against the flat, low-volume priming window")
	}
	if leg.ScoreTotal != 5 {
		t.Fatalf("expected a full 5/5 score, got %d (%+v)", leg.ScoreTotal, leg)
	}
}

func TestDetectImpulseLegsRequiresMinimumSeries(t *testing.T) {
	bars := flatBars(SwingLookback, time.Now())
	if legs := DetectImpulseLegs(bars, DefaultConfig()); legs != nil {
		t.Fatalf("expected no legs when the series is too short to hold a full move, got %+v", legs)
	}
}

func TestCheckBrokeSwingRejectsUnbrokenLevel(t *testing.T) {
	highs := []float64{10, 20, 30}
	lows := []float64{1, 2, 3}
	if checkBrokeSwing(core.DirectionUp, 15, highs, lows, 1) {
		t.Fatalf("expected no break: 15 does not clear highs[1]=20")
	}
	if !checkBrokeSwing(core.DirectionUp, 25, highs, lows, 1) {
		t.Fatalf("expected a break: 25 clears highs[1]=20")
	}
}
