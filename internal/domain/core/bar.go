package core

import "time"

// Bar is a completed 1-second bar. Timestamp is the start of the second.
type Bar struct {
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	BuyVolume  int64
	SellVolume int64
	TradeCount int
	Symbol     string
}

// Delta is the signed net contract flow: buy volume minus sell volume.
func (b Bar) Delta() int64 {
	return b.BuyVolume - b.SellVolume
}

// Range is the high-low range of the bar.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// BodyDirection reports whether the bar closed above or below its open; a
// bar that closes level with its open counts as Up.
func (b Bar) BodyDirection() Direction {
	if b.Close >= b.Open {
		return DirectionUp
	}
	return DirectionDown
}

// Valid checks the bar invariants: volume partitions sum correctly and the
// high/low bracket the open/close.
func (b Bar) Valid() bool {
	if b.BuyVolume+b.SellVolume != b.Volume {
		return false
	}
	lo := b.Open
	hi := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	if b.Close > hi {
		hi = b.Close
	}
	return b.Low <= lo && hi <= b.High
}

// TypicalPrice is the (high+low+close)/3 price used for VWAP-style
// weighting.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}
