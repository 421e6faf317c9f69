// Package bars rolls a trade stream into 1-second bars.
package bars

import (
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
)

// Aggregator accumulates trades into 1-second bars, emitting a completed
// bar exactly on the tick where the integer wall-second advances. Ownership
// is single-holder: callers must serialize calls to ProcessTrade.
type Aggregator struct {
	symbol    string
	current   *core.Bar
	currentTs time.Time
	have      bool
}

// New creates an Aggregator for the given symbol.
func New(symbol string) *Aggregator {
	return &Aggregator{symbol: symbol}
}

// ProcessTrade folds one trade into the in-progress bar, returning the
// previous bar (and true) when the wall-second has advanced.
func (a *Aggregator) ProcessTrade(ts time.Time, price float64, size int64, side core.Side) (core.Bar, bool) {
	sec := ts.Truncate(time.Second)

	var completed core.Bar
	var emitted bool
	if a.have && sec.After(a.currentTs) {
		completed = *a.current
		emitted = true
		a.have = false
	}

	if !a.have {
		a.currentTs = sec
		a.current = &core.Bar{
			Timestamp: sec,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Symbol:    a.symbol,
		}
		a.have = true
	}

	b := a.current
	b.Close = price
	if price > b.High {
		b.High = price
	}
	if price < b.Low {
		b.Low = price
	}
	b.Volume += size
	if side == core.SideBuy {
		b.BuyVolume += size
	} else {
		b.SellVolume += size
	}
	b.TradeCount++

	return completed, emitted
}

// Flush forces out whatever bar is in progress, e.g. at end of session.
func (a *Aggregator) Flush() (core.Bar, bool) {
	if !a.have {
		return core.Bar{}, false
	}
	b := *a.current
	a.have = false
	return b, true
}
