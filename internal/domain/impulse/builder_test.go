package impulse

import (
	"testing"
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
)

func mkBar(ts time.Time, o, h, l, c float64, vol int64) core.Bar {
	return core.Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: vol, BuyVolume: vol, Symbol: "NQ"}
}

func TestBuilderCompletesOnSufficientSizeAndScore(t *testing.T) {
	base := time.Now()
	breakout := mkBar(base, 18000, 18005, 17999, 18003, 100)
	cfg := DefaultConfig()
	b := NewBuilder(core.DirectionUp, breakout, 50, cfg)

	price := 18003.0
	for i := 1; i <= 40; i++ {
		price += 1
		bar := mkBar(base.Add(time.Duration(i)*time.Second), price-1, price+0.5, price-1, price, 120)
		b.AddBar(bar)
		if b.IsComplete() {
			break
		}
	}

	if !b.IsComplete() {
		t.Fatalf("expected impulse to complete, move=%v score=%v", b.MoveSize(), b.Score())
	}
	leg := b.Finalize()
	if leg.MoveSize() < cfg.MinImpulseSize {
		t.Fatalf("finalized leg move size too small: %v", leg.MoveSize())
	}
	if leg.ScoreTotal < cfg.MinImpulseScore {
		t.Fatalf("finalized leg score too low: %v", leg.ScoreTotal)
	}
}

func TestBuilderInvalidatesOnDeepRetrace(t *testing.T) {
	base := time.Now()
	breakout := mkBar(base, 18000, 18040, 17999, 18040, 100)
	cfg := DefaultConfig()
	b := NewBuilder(core.DirectionUp, breakout, 50, cfg)

	retraced := mkBar(base.Add(time.Second), 18040, 18040, 18000, 18005, 100)
	b.AddBar(retraced)

	if !b.IsInvalidated() {
		t.Fatalf("expected invalidation after deep retrace")
	}
}

func TestBuilderInvalidatesOnBarOverrun(t *testing.T) {
	base := time.Now()
	cfg := DefaultConfig()
	cfg.MaxImpulseBars = 2
	breakout := mkBar(base, 18000, 18005, 17999, 18001, 10)
	b := NewBuilder(core.DirectionUp, breakout, 50, cfg)
	b.AddBar(mkBar(base.Add(time.Second), 18001, 18002, 18000, 18001, 10))
	b.AddBar(mkBar(base.Add(2*time.Second), 18001, 18002, 18000, 18001, 10))

	if !b.IsInvalidated() {
		t.Fatalf("expected invalidation on bar-count overrun")
	}
}
