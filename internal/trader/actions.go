package trader

import "github.com/lvnretest/engine/internal/domain/core"

// TradeAction is a broker-agnostic instruction emitted by ProcessBar. The
// set of implementations is sealed: Enter, Exit, UpdateStop, SignalPending,
// FlattenAll.
type TradeAction interface {
	tradeAction()
}

// Enter opens a new position at the given price.
type Enter struct {
	Direction core.Direction
	Price     float64
	Stop      float64
	Target    float64
	Contracts int
}

// Exit closes the open position.
type Exit struct {
	Direction core.Direction
	Price     float64
	PnLPoints float64
	Reason    ExitReason
}

// UpdateStop moves the resting stop order to a new price.
type UpdateStop struct {
	NewStop float64
}

// SignalPending notifies the executor a retest signal armed but has not yet
// triggered an entry (informational; no broker order is implied).
type SignalPending struct{}

// FlattenAll closes any open position immediately, bypassing the normal
// stop/target/timeout exit priority, e.g. on a daily-loss-limit trip.
type FlattenAll struct {
	Reason string
}

func (Enter) tradeAction()         {}
func (Exit) tradeAction()          {}
func (UpdateStop) tradeAction()    {}
func (SignalPending) tradeAction() {}
func (FlattenAll) tradeAction()    {}
