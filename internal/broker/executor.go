// Package broker turns trader.TradeActions into real or simulated order
// flow against a futures broker.
package broker

import (
	"context"

	"github.com/lvnretest/engine/internal/trader"
)

// Executor submits a single TradeAction to a broker (or a paper simulator)
// and reports any submission failure. Execution is synchronous: by the time
// Execute returns, the order has either been accepted by the venue or the
// error explains why not.
type Executor interface {
	Execute(ctx context.Context, action trader.TradeAction) error
}
