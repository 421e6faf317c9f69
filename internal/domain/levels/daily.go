// Package levels computes the prior-session reference levels (PDH/PDL/PDC,
// ONH/ONL, POC/VAH/VAL) that seed the breakout check in the trading state
// machine.
package levels

import (
	"sort"
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
)

// PriceBucketSize is the volume-profile bucket granularity in points.
const PriceBucketSize = 1.0

// ValueAreaFraction is the share of session volume the value area must
// cover.
const ValueAreaFraction = 0.70

// Daily holds the reference levels computed from the prior session.
type Daily struct {
	Date        time.Time
	PDH, PDL    float64
	PDC         float64
	ONH, ONL    float64
	POC         float64
	VAH, VAL    float64
	SessionHigh float64
	SessionLow  float64
}

// HighLowOpenClose returns the high, low, open, and close of a trade
// sequence in arrival order. An empty slice returns all zeros.
func HighLowOpenClose(trades []core.Trade) (high, low, open, close float64) {
	if len(trades) == 0 {
		return 0, 0, 0, 0
	}
	high = trades[0].Price
	low = trades[0].Price
	open = trades[0].Price
	close = trades[len(trades)-1].Price
	for _, t := range trades {
		if t.Price > high {
			high = t.Price
		}
		if t.Price < low {
			low = t.Price
		}
	}
	return high, low, open, close
}

// VolumeProfile computes POC, VAH, and VAL from a trade sequence using a
// 1-point bucket histogram and the 70% value-area expansion algorithm.
// Ties in accumulated volume break upward: the higher-priced neighbor is
// preferred when both sides carry equal volume.
func VolumeProfile(trades []core.Trade) (poc, vah, val float64) {
	if len(trades) == 0 {
		return 0, 0, 0
	}

	volumeAt := make(map[int64]int64)
	for _, t := range trades {
		bucket := int64(round(t.Price / PriceBucketSize))
		volumeAt[bucket] += t.Size
	}

	buckets := make([]int64, 0, len(volumeAt))
	for b := range volumeAt {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	pocBucket := buckets[0]
	var pocVol int64 = -1
	for _, b := range buckets {
		if volumeAt[b] > pocVol {
			pocVol = volumeAt[b]
			pocBucket = b
		}
	}

	var total int64
	for _, v := range volumeAt {
		total += v
	}
	target := int64(float64(total) * ValueAreaFraction)

	pocIdx := sort.Search(len(buckets), func(i int) bool { return buckets[i] >= pocBucket })

	valIdx, vahIdx := pocIdx, pocIdx
	accumulated := volumeAt[pocBucket]

	for accumulated < target {
		canLower := valIdx > 0
		canHigher := vahIdx < len(buckets)-1

		if !canLower && !canHigher {
			break
		}

		var lowerVol, upperVol int64
		if canLower {
			lowerVol = volumeAt[buckets[valIdx-1]]
		}
		if canHigher {
			upperVol = volumeAt[buckets[vahIdx+1]]
		}

		switch {
		case canHigher && upperVol >= lowerVol:
			vahIdx++
			accumulated += upperVol
		case canLower:
			valIdx--
			accumulated += lowerVol
		case canHigher:
			vahIdx++
			accumulated += upperVol
		}
	}

	val = float64(buckets[valIdx]) * PriceBucketSize
	vah = float64(buckets[vahIdx]) * PriceBucketSize
	poc = float64(pocBucket) * PriceBucketSize
	return poc, vah, val
}

func round(x float64) float64 {
	if x < 0 {
		return -round(-x)
	}
	return float64(int64(x + 0.5))
}

// ComputeDaily builds a Daily snapshot from the prior RTH session's trades
// and the prior overnight session's trades. Overnight levels are zero when
// the overnight slice is empty (no session data available).
func ComputeDaily(date time.Time, rth, overnight []core.Trade) Daily {
	pdh, pdl, _, pdc := HighLowOpenClose(rth)
	poc, vah, val := VolumeProfile(rth)

	var onh, onl float64
	if len(overnight) > 0 {
		onh, onl, _, _ = HighLowOpenClose(overnight)
	}

	return Daily{
		Date:        date,
		PDH:         pdh,
		PDL:         pdl,
		PDC:         pdc,
		ONH:         onh,
		ONL:         onl,
		POC:         poc,
		VAH:         vah,
		VAL:         val,
		SessionHigh: pdh,
		SessionLow:  pdl,
	}
}
