package feed

import (
	"context"

	"github.com/lvnretest/engine/internal/cache"
)

// ReplaySource replays cached bars for a fixed date filter, emitting them in
// stored order with no trade attached (batch replay has no per-trade feed;
// the impulse/LVN passes operate on the day's bar slice directly).
type ReplaySource struct {
	store  *cache.Store
	filter string
}

// NewReplaySource creates a ReplaySource over store's cached days matching
// filter (see cache.Store.LoadAll for filter syntax).
func NewReplaySource(store *cache.Store, filter string) *ReplaySource {
	return &ReplaySource{store: store, filter: filter}
}

// Run loads every matching cached day and streams their bars in date order.
func (s *ReplaySource) Run(ctx context.Context) (<-chan Update, <-chan error) {
	updates := make(chan Update)
	errs := make(chan error, 1)

	go func() {
		defer close(updates)
		defer close(errs)

		days, err := s.store.LoadAll(s.filter)
		if err != nil {
			errs <- err
			return
		}

		for _, day := range days {
			for _, bar := range day.Bars {
				select {
				case <-ctx.Done():
					return
				case updates <- Update{Bar: bar}:
				}
			}
		}
	}()

	return updates, errs
}
