package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
)

// wireTrade is the newline-delimited JSON shape a historical trade-print
// export is read in as for offline precompute runs: one exchange print per
// line, oldest first.
type wireTrade struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Size      int64     `json:"size"`
	Side      string    `json:"side"`
	Symbol    string    `json:"symbol"`
}

// loadTradesFile reads one day's trade prints from a newline-delimited JSON
// file, in arrival order.
func loadTradesFile(path string) ([]core.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trades file %s: %w", path, err)
	}
	defer f.Close()

	var trades []core.Trade
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wt wireTrade
		if err := json.Unmarshal(line, &wt); err != nil {
			return nil, fmt.Errorf("%s:%d: parse trade: %w", path, lineNo, err)
		}
		side := core.SideBuy
		if wt.Side == "sell" {
			side = core.SideSell
		}
		trades = append(trades, core.Trade{
			Timestamp: wt.Timestamp,
			Price:     wt.Price,
			Size:      wt.Size,
			Side:      side,
			Symbol:    wt.Symbol,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trades file %s: %w", path, err)
	}
	return trades, nil
}
