package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// HealthResponse is the liveness payload. Status is "healthy" unless a
// broker or market-data circuit is open.
type HealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Circuits map[string]string `json:"circuits,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "healthy",
		Uptime: time.Since(s.start).Round(time.Second).String(),
	}

	if s.venues != nil {
		resp.Circuits = map[string]string{}
		for _, venue := range []string{"broker", "marketdata"} {
			state := s.venues.State(venue)
			resp.Circuits[venue] = state.String()
			if state == gobreaker.StateOpen {
				resp.Status = "degraded"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.status == nil {
		json.NewEncoder(w).Encode(map[string]string{"state": "idle"})
		return
	}

	summary := s.status.Summary()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"in_position":    s.status.InPosition(),
		"balance":        summary.Balance,
		"peak_balance":   summary.PeakBalance,
		"max_drawdown":   summary.MaxDrawdown,
		"wins":           summary.Wins,
		"losses":         summary.Losses,
		"breakevens":     summary.Breakevens,
		"win_rate":       summary.WinRate(),
		"profit_factor":  summary.ProfitFactor(),
		"days_stopped_early": summary.DaysStoppedEarly,
	})
}
