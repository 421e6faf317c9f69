// Package regime classifies a rolling window of bars as Balanced (rotating
// around fair value) or Imbalanced (trending), the input the LVN retest
// signal generator uses to gate absorption-style entries.
package regime

import "github.com/lvnretest/engine/internal/domain/core"

// State is the two-way market-state classification.
type State int

const (
	Balanced State = iota
	Imbalanced
)

func (s State) String() string {
	if s == Imbalanced {
		return "imbalanced"
	}
	return "balanced"
}

// Config holds the thresholds that drive classification.
type Config struct {
	LookbackBars               int     `yaml:"lookback_bars"`
	RotationThreshold          int     `yaml:"rotation_threshold"`
	RangeExpansionMult         float64 `yaml:"range_expansion_mult"`
	DeltaAccumulationThreshold float64 `yaml:"delta_accumulation_threshold"`
}

// DefaultConfig matches the reference implementation's defaults.
func DefaultConfig() Config {
	return Config{
		LookbackBars:               60,
		RotationThreshold:          3,
		RangeExpansionMult:         2.0,
		DeltaAccumulationThreshold: 200,
	}
}

// Result is the outcome of classifying one window.
type Result struct {
	State         State
	VWAP          float64
	ATR           float64
	RotationCount int
	CumDelta      float64
	RangeRatio    float64
	TrendDir      int // -1, 0, +1
}

// VWAP computes the volume-weighted typical price of a bar window, falling
// back to the range midpoint when total volume is zero.
func VWAP(window []core.Bar) float64 {
	var num, vol float64
	for _, b := range window {
		num += b.TypicalPrice() * float64(b.Volume)
		vol += float64(b.Volume)
	}
	if vol == 0 {
		if len(window) == 0 {
			return 0
		}
		high, low := window[0].High, window[0].Low
		for _, b := range window[1:] {
			if b.High > high {
				high = b.High
			}
			if b.Low < low {
				low = b.Low
			}
		}
		return (high + low) / 2
	}
	return num / vol
}

// ATR computes the mean true range over a bar window.
func ATR(window []core.Bar) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	prevClose := window[0].Close
	for i, b := range window {
		tr := b.High - b.Low
		if i > 0 {
			if v := absF(b.High - prevClose); v > tr {
				tr = v
			}
			if v := absF(b.Low - prevClose); v > tr {
				tr = v
			}
		}
		sum += tr
		prevClose = b.Close
	}
	return sum / float64(len(window))
}

// RotationCount counts how many times the window's close crosses its own
// VWAP.
func RotationCount(window []core.Bar, vwap float64) int {
	if len(window) < 2 {
		return 0
	}
	count := 0
	above := window[0].Close >= vwap
	for _, b := range window[1:] {
		nowAbove := b.Close >= vwap
		if nowAbove != above {
			count++
			above = nowAbove
		}
	}
	return count
}

// Detect classifies a window of bars per §4.3: Imbalanced on range expansion
// or delta accumulation, else Balanced if rotation is high enough, else
// Balanced by conservative default.
func Detect(window []core.Bar, cfg Config) Result {
	if len(window) > cfg.LookbackBars {
		window = window[len(window)-cfg.LookbackBars:]
	}

	vwap := VWAP(window)
	atr := ATR(window)
	rotations := RotationCount(window, vwap)

	var cumDelta float64
	var high, low float64
	if len(window) > 0 {
		high, low = window[0].High, window[0].Low
	}
	for _, b := range window {
		cumDelta += float64(b.Delta())
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}

	rangeRatio := 0.0
	if atr > 0 {
		rangeRatio = (high - low) / atr
	}

	state := Balanced
	switch {
	case rangeRatio >= cfg.RangeExpansionMult || absF(cumDelta) > cfg.DeltaAccumulationThreshold:
		state = Imbalanced
	case rotations >= cfg.RotationThreshold:
		state = Balanced
	}

	trend := 0
	half := cfg.DeltaAccumulationThreshold / 2
	if cumDelta > half {
		trend = 1
	} else if cumDelta < -half {
		trend = -1
	}

	return Result{
		State:         state,
		VWAP:          vwap,
		ATR:           atr,
		RotationCount: rotations,
		CumDelta:      cumDelta,
		RangeRatio:    rangeRatio,
		TrendDir:      trend,
	}
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
