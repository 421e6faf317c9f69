package broker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/trader"
)

func TestPaperExecutorNeverFails(t *testing.T) {
	ex := NewPaperExecutor(zerolog.Nop())
	actions := []trader.TradeAction{
		trader.Enter{Direction: core.DirectionUp, Price: 100, Stop: 98, Target: 110, Contracts: 1},
		trader.UpdateStop{NewStop: 99},
		trader.Exit{Direction: core.DirectionUp, Price: 110, PnLPoints: 10, Reason: trader.ExitTarget},
		trader.SignalPending{},
		trader.FlattenAll{Reason: "test"},
	}
	for _, a := range actions {
		if err := ex.Execute(context.Background(), a); err != nil {
			t.Fatalf("paper executor should never fail, got %v", err)
		}
	}
}
