package cache

import (
	"testing"

	"github.com/lvnretest/engine/internal/domain/core"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	day := DayData{
		Date: "20260730",
		Bars: []core.Bar{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, BuyVolume: 6, SellVolume: 4}},
	}
	if err := store.Save(day); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := store.Load("20260730")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(loaded.Bars) != 1 || loaded.Bars[0].Close != 1.5 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	_, ok, err = store.Load("20260731")
	if err != nil || ok {
		t.Fatalf("expected missing date to report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestLoadAllFilters(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for _, date := range []string{"20250901", "20250915", "20251001"} {
		if err := store.Save(DayData{Date: date}); err != nil {
			t.Fatalf("Save %s: %v", date, err)
		}
	}

	all, err := store.LoadAll("")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 days with no filter, got %d err=%v", len(all), err)
	}

	prefix, err := store.LoadAll("202509")
	if err != nil || len(prefix) != 2 {
		t.Fatalf("expected 2 days for month prefix, got %d err=%v", len(prefix), err)
	}

	ranged, err := store.LoadAll("20250910:20251231")
	if err != nil || len(ranged) != 2 {
		t.Fatalf("expected 2 days for range filter, got %d err=%v", len(ranged), err)
	}
}
