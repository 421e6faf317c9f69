package impulse

import (
	"math"

	"github.com/google/uuid"

	"github.com/lvnretest/engine/internal/domain/core"
)

// SwingLookback is the window a batch-detected impulse's start index must
// clear, both for computing the rolling swing-high/low reference it needs
// to break and for the prior-volume baseline it needs to beat.
const SwingLookback = 10

// minImpulseCandles and maxImpulseCandles bound the fixed-length move the
// batch scan tries at each start index: a "fast" impulse is 3-5 candles.
const (
	minImpulseCandles = 3
	maxImpulseCandles = 5
)

// RollingSwingHighs returns, for each index i, the highest High over the
// SwingLookback bars strictly before i (bars[i-lookback:i]). Indices with
// no full prior window hold math.Inf(-1), meaning "no swing high to break
// yet".
func RollingSwingHighs(bars []core.Bar, lookback int) []float64 {
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = math.Inf(-1)
	}
	for i := lookback; i < len(bars); i++ {
		hi := math.Inf(-1)
		for _, b := range bars[i-lookback : i] {
			if b.High > hi {
				hi = b.High
			}
		}
		out[i] = hi
	}
	return out
}

// RollingSwingLows mirrors RollingSwingHighs for lows.
func RollingSwingLows(bars []core.Bar, lookback int) []float64 {
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = math.Inf(1)
	}
	for i := lookback; i < len(bars); i++ {
		lo := math.Inf(1)
		for _, b := range bars[i-lookback : i] {
			if b.Low < lo {
				lo = b.Low
			}
		}
		out[i] = lo
	}
	return out
}

// DetectImpulseLegs scans a finished bar series (typically 1-minute bars)
// for completed impulse legs, for offline research/precompute use. Unlike
// the real-time Builder, it has no live breakout event to anchor on, so it
// tries every index as a candidate start and scores the realized 3-5 candle
// move from it, the same fixed-window scan the batch reference algorithm
// uses.
func DetectImpulseLegs(barSeries []core.Bar, cfg Config) []Leg {
	if len(barSeries) < SwingLookback+minImpulseCandles {
		return nil
	}

	highs := RollingSwingHighs(barSeries, SwingLookback)
	lows := RollingSwingLows(barSeries, SwingLookback)

	var legs []Leg
	for i := SwingLookback; i < len(barSeries); {
		leg, numCandles, ok := tryDetectImpulseAt(barSeries, i, highs, lows, cfg)
		if ok && leg.ScoreTotal >= cfg.MinImpulseScore {
			legs = append(legs, leg)
			i += numCandles
			continue
		}
		i++
	}
	return legs
}

// tryDetectImpulseAt looks for a 3-5 candle move starting at startIdx whose
// realized price change (end.Close - start.Open) clears MinImpulseSize,
// scoring it against the same five criteria as the real-time builder.
// Direction follows the realized move, not the type of swing point
// startIdx happens to be — an up leg runs low to high regardless of
// whether it started at a swing low, a swing high, or neither.
func tryDetectImpulseAt(bars []core.Bar, startIdx int, highs, lows []float64, cfg Config) (Leg, int, bool) {
	start := bars[startIdx]

	maxCandles := maxImpulseCandles
	if remaining := len(bars) - startIdx; remaining < maxCandles {
		maxCandles = remaining
	}

	for numCandles := minImpulseCandles; numCandles <= maxCandles; numCandles++ {
		endIdx := startIdx + numCandles - 1
		end := bars[endIdx]
		moveBars := bars[startIdx : endIdx+1]

		priceChange := end.Close - start.Open
		direction := core.DirectionUp
		if priceChange <= 0 {
			direction = core.DirectionDown
		}
		moveSize := absF(priceChange)
		if moveSize < cfg.MinImpulseSize {
			continue
		}

		brokeSwing := checkBrokeSwing(direction, end.Close, highs, lows, startIdx)
		uniform := checkUniformCandles(moveBars, direction)
		volumeUp := checkVolumeIncrease(moveBars, bars, startIdx, cfg.VolumeIncreaseMult)
		wasFast := numCandles <= maxImpulseCandles
		sufficientSize := true // guaranteed by the moveSize check above

		score := 0
		for _, met := range []bool{brokeSwing, wasFast, uniform, volumeUp, sufficientSize} {
			if met {
				score++
			}
		}

		var totalVolume int64
		for _, b := range moveBars {
			totalVolume += b.Volume
		}

		return Leg{
			ID:           uuid.NewString(),
			Direction:    direction,
			StartTime:    start.Timestamp,
			EndTime:      end.Timestamp,
			StartPrice:   start.Open,
			EndPrice:     end.Close,
			BarCount:     numCandles,
			BrokeSwing:   brokeSwing,
			WasFast:      wasFast,
			Uniform:      uniform,
			VolumeUp:     volumeUp,
			SufficientSz: sufficientSize,
			ScoreTotal:   score,
			TotalVolume:  totalVolume,
			AvgVolume:    float64(totalVolume) / float64(numCandles),
		}, numCandles, true
	}

	return Leg{}, 0, false
}

// checkBrokeSwing reports whether the move's end price cleared the rolling
// swing-high (Up) or swing-low (Down) reference computed for startIdx.
func checkBrokeSwing(dir core.Direction, endClose float64, highs, lows []float64, startIdx int) bool {
	if dir == core.DirectionUp {
		if startIdx >= len(highs) || math.IsInf(highs[startIdx], -1) {
			return false
		}
		return endClose > highs[startIdx]
	}
	if startIdx >= len(lows) || math.IsInf(lows[startIdx], 1) {
		return false
	}
	return endClose < lows[startIdx]
}

// checkUniformCandles reports whether at least 70% of the move's candles
// share its direction and fewer than half of consecutive candle bodies
// overlap.
func checkUniformCandles(moveBars []core.Bar, dir core.Direction) bool {
	if len(moveBars) == 0 {
		return false
	}
	matching := 0
	for _, b := range moveBars {
		if b.BodyDirection() == dir {
			matching++
		}
	}
	if float64(matching)/float64(len(moveBars)) < 0.70 {
		return false
	}

	overlapping := 0
	for i := 1; i < len(moveBars); i++ {
		prevLo, prevHi := bodyRange(moveBars[i-1])
		curLo, curHi := bodyRange(moveBars[i])
		if curLo < prevHi && curHi > prevLo {
			overlapping++
		}
	}
	denom := len(moveBars) - 1
	if denom < 1 {
		denom = 1
	}
	return float64(overlapping)/float64(denom) < 0.50
}

// checkVolumeIncrease reports whether the move's mean bar volume beats the
// mean of the SwingLookback bars immediately preceding it by mult.
func checkVolumeIncrease(moveBars, allBars []core.Bar, startIdx int, mult float64) bool {
	if startIdx < SwingLookback {
		return false
	}

	var moveVol int64
	for _, b := range moveBars {
		moveVol += b.Volume
	}
	moveAvg := float64(moveVol) / float64(len(moveBars))

	priorBars := allBars[startIdx-SwingLookback : startIdx]
	var priorVol int64
	for _, b := range priorBars {
		priorVol += b.Volume
	}
	priorAvg := float64(priorVol) / float64(len(priorBars))

	return moveAvg > priorAvg*mult
}
