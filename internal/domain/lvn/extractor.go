// Package lvn extracts low-volume price nodes from an impulse's trade
// window: thin price buckets sandwiched between thick ones, believed to
// mark trapped positioning left behind by the impulse.
package lvn

import (
	"sort"
	"time"

	"github.com/lvnretest/engine/internal/domain/core"
)

// BucketSize is the volume-profile bucket granularity in points.
const BucketSize = 1.0

// ThickNeighborMult is the minimum ratio (relative to mean bucket volume) a
// bucket anywhere below or above a candidate thin bucket must carry to be
// considered "thick" support/resistance for it.
const ThickNeighborMult = 0.5

// MiddleRangeFraction restricts candidate buckets to the middle share of the
// impulse's price range, excluding the endpoints.
const MiddleRangeFraction = 0.60

// Level is a single extracted low-volume node.
type Level struct {
	Price       float64
	VolumeRatio float64
	Date        time.Time
	Direction   core.Direction
	ImpulseID   string
}

// Extract computes the volume profile over an impulse's trade window and
// returns every bucket that is thin (volume_ratio ≤ maxRatio), lies within
// the middle 60% of the impulse's price range, and has a thick bucket on
// both sides.
func Extract(trades []core.Trade, direction core.Direction, impulseID string, maxRatio float64) []Level {
	if len(trades) == 0 {
		return nil
	}

	volumeAt := make(map[int64]int64)
	priceLow, priceHigh := trades[0].Price, trades[0].Price
	for _, t := range trades {
		bucket := bucketOf(t.Price)
		volumeAt[bucket] += t.Size
		if t.Price < priceLow {
			priceLow = t.Price
		}
		if t.Price > priceHigh {
			priceHigh = t.Price
		}
	}

	buckets := make([]int64, 0, len(volumeAt))
	for b := range volumeAt {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	if len(buckets) == 0 {
		return nil
	}

	meanVol := 0.0
	for _, b := range buckets {
		meanVol += float64(volumeAt[b])
	}
	meanVol /= float64(len(buckets))
	if meanVol == 0 {
		return nil
	}

	priceRange := priceHigh - priceLow
	midLow := priceLow + priceRange*(1-MiddleRangeFraction)/2
	midHigh := priceHigh - priceRange*(1-MiddleRangeFraction)/2

	y, m, d := trades[0].Timestamp.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, trades[0].Timestamp.Location())

	var levels []Level
	for i, b := range buckets {
		price := float64(b) * BucketSize
		if price < midLow || price > midHigh {
			continue
		}

		ratio := float64(volumeAt[b]) / meanVol
		if ratio > maxRatio {
			continue
		}

		thickBelow, thickAbove := false, false
		for _, nb := range buckets[:i] {
			if float64(volumeAt[nb]) >= ThickNeighborMult*meanVol {
				thickBelow = true
				break
			}
		}
		for _, nb := range buckets[i+1:] {
			if float64(volumeAt[nb]) >= ThickNeighborMult*meanVol {
				thickAbove = true
				break
			}
		}
		if !thickBelow || !thickAbove {
			continue // endpoint buckets have nothing on one side
		}

		levels = append(levels, Level{
			Price:       price,
			VolumeRatio: ratio,
			Date:        date,
			Direction:   direction,
			ImpulseID:   impulseID,
		})
	}
	return levels
}

func bucketOf(price float64) int64 {
	v := price / BucketSize
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}
