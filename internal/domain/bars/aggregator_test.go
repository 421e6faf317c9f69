package bars

import (
	"testing"
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
)

func TestAggregatorEmitsOnSecondRollover(t *testing.T) {
	a := New("NQ")
	base := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)

	if _, ok := a.ProcessTrade(base, 100, 1, core.SideBuy); ok {
		t.Fatalf("first trade should not emit a bar")
	}
	if _, ok := a.ProcessTrade(base.Add(500*time.Millisecond), 101, 2, core.SideSell); ok {
		t.Fatalf("same-second trade should not emit a bar")
	}

	b, ok := a.ProcessTrade(base.Add(time.Second), 102, 1, core.SideBuy)
	if !ok {
		t.Fatalf("expected a bar on second rollover")
	}
	if b.Open != 100 || b.Close != 101 || b.High != 101 || b.Low != 100 {
		t.Fatalf("unexpected OHLC: %+v", b)
	}
	if b.Volume != 3 || b.BuyVolume != 1 || b.SellVolume != 2 {
		t.Fatalf("unexpected volumes: %+v", b)
	}
	if !b.Valid() {
		t.Fatalf("bar failed invariant check: %+v", b)
	}
}

func TestAggregatorSkipsEmptySeconds(t *testing.T) {
	a := New("NQ")
	base := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)

	a.ProcessTrade(base, 100, 1, core.SideBuy)
	b, ok := a.ProcessTrade(base.Add(3*time.Second), 105, 1, core.SideBuy)
	if !ok {
		t.Fatalf("expected emission across the gap")
	}
	if b.Timestamp.After(base) == false && !b.Timestamp.Equal(base) {
		t.Fatalf("unexpected bar timestamp: %v", b.Timestamp)
	}
}

func TestAggregatorFlush(t *testing.T) {
	a := New("NQ")
	base := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	a.ProcessTrade(base, 100, 1, core.SideBuy)

	b, ok := a.Flush()
	if !ok || b.Volume != 1 {
		t.Fatalf("expected flush to yield the in-progress bar, got %+v ok=%v", b, ok)
	}
	if _, ok := a.Flush(); ok {
		t.Fatalf("second flush should be empty")
	}
}
