// Package feed supplies a stream of completed bars, each with the trade
// (if any) whose arrival completed it, either from a live market-data socket
// or by replaying precomputed cache files.
package feed

import (
	"context"

	"github.com/lvnretest/engine/internal/domain/core"
)

// Update is one bar tick: the completed bar and, from the live source, the
// trade whose arrival completed it (the first print of the following second);
// nil from the replay source.
type Update struct {
	Bar   core.Bar
	Trade *core.Trade
}

// BarSource streams Updates until ctx is cancelled or the source is
// exhausted (replay), at which point the channel is closed.
type BarSource interface {
	Run(ctx context.Context) (<-chan Update, <-chan error)
}
