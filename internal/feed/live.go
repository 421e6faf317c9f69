package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lvnretest/engine/internal/domain/bars"
	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/netx/circuit"
	"github.com/lvnretest/engine/internal/netx/ratelimit"
)

// wireTrade is the minimal shape of one trade message off the market-data
// socket: price, size, a buy/sell side tag, and an exchange timestamp.
type wireTrade struct {
	Price     float64   `json:"price"`
	Size      int64     `json:"size"`
	Side      string    `json:"side"` // "buy" or "sell"
	Timestamp time.Time `json:"timestamp"`
}

// LiveSource streams 1-second bars off a market-data WebSocket, reconnecting
// through a circuit breaker and rate limiter so a flaky feed degrades to
// backoff instead of a reconnect storm.
type LiveSource struct {
	url     string
	symbol  string
	breaker *circuit.Manager
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewLiveSource creates a LiveSource against url for symbol.
func NewLiveSource(url, symbol string, breaker *circuit.Manager, limiter *ratelimit.Limiter, log zerolog.Logger) *LiveSource {
	return &LiveSource{url: url, symbol: symbol, breaker: breaker, limiter: limiter, log: log}
}

// Run connects and reconnects until ctx is cancelled, emitting an Update
// for every bar the aggregator completes.
func (s *LiveSource) Run(ctx context.Context) (<-chan Update, <-chan error) {
	updates := make(chan Update)
	errs := make(chan error, 1)

	go func() {
		defer close(updates)
		defer close(errs)

		backoff := time.Second
		const maxBackoff = 30 * time.Second

		for ctx.Err() == nil {
			if err := s.limiter.Wait(ctx, "marketdata"); err != nil {
				return
			}

			err := s.breaker.Execute(ctx, "marketdata", func(ctx context.Context) error {
				return s.streamOnce(ctx, updates)
			})
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Warn().Err(err).Dur("backoff", backoff).Msg("market data stream disconnected, reconnecting")
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = time.Second
		}
	}()

	return updates, errs
}

func (s *LiveSource) streamOnce(ctx context.Context, updates chan<- Update) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial market data socket: %w", err)
	}
	defer conn.Close()

	agg := bars.New(s.symbol)

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read market data message: %w", err)
		}

		var wt wireTrade
		if err := json.Unmarshal(raw, &wt); err != nil {
			s.log.Warn().Err(err).Msg("dropping malformed trade message")
			continue
		}

		side := core.SideBuy
		if wt.Side == "sell" {
			side = core.SideSell
		}

		completed, emitted := agg.ProcessTrade(wt.Timestamp, wt.Price, wt.Size, side)
		if !emitted {
			continue
		}
		trade := core.Trade{Timestamp: wt.Timestamp, Price: wt.Price, Size: wt.Size, Side: side, Symbol: s.symbol}
		select {
		case updates <- Update{Bar: completed, Trade: &trade}:
		case <-done:
			return ctx.Err()
		}
	}
}
