package broker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lvnretest/engine/internal/trader"
)

// PaperExecutor logs every action as if filled instantly at the requested
// price, with no venue round trip. Used for replay and replay-realtime runs.
type PaperExecutor struct {
	log zerolog.Logger
}

// NewPaperExecutor creates a PaperExecutor.
func NewPaperExecutor(log zerolog.Logger) *PaperExecutor {
	return &PaperExecutor{log: log}
}

// Execute never fails; it only records the action for the run's audit trail.
func (p *PaperExecutor) Execute(_ context.Context, action trader.TradeAction) error {
	switch a := action.(type) {
	case trader.Enter:
		p.log.Info().Str("direction", a.Direction.String()).Float64("price", a.Price).
			Float64("stop", a.Stop).Float64("target", a.Target).Int("contracts", a.Contracts).
			Msg("paper: enter")
	case trader.Exit:
		p.log.Info().Str("direction", a.Direction.String()).Float64("price", a.Price).
			Float64("pnl_points", a.PnLPoints).Str("reason", a.Reason.String()).
			Msg("paper: exit")
	case trader.UpdateStop:
		p.log.Info().Float64("new_stop", a.NewStop).Msg("paper: update stop")
	case trader.SignalPending:
		p.log.Info().Msg("paper: signal pending")
	case trader.FlattenAll:
		p.log.Warn().Str("reason", a.Reason).Msg("paper: flatten all")
	}
	return nil
}
