// Package impulse incrementally scores a bar sequence following a breakout
// against five structural criteria, emitting a completed ImpulseLeg once
// the move qualifies.
package impulse

import (
	"time"

	"github.com/google/uuid"

	"github.com/lvnretest/engine/internal/domain/core"
)

// Config holds the scoring thresholds.
type Config struct {
	MaxImpulseBars     int     `yaml:"max_impulse_bars"`
	MinImpulseSize     float64 `yaml:"min_impulse_size"`
	MinImpulseScore    int     `yaml:"min_impulse_score"`
	MaxRetraceRatio    float64 `yaml:"max_retrace_ratio"`
	VolumeIncreaseMult float64 `yaml:"volume_increase_mult"`
}

// DefaultConfig matches the reference implementation's defaults.
func DefaultConfig() Config {
	return Config{
		MaxImpulseBars:     300,
		MinImpulseSize:     30.0,
		MinImpulseScore:    4,
		MaxRetraceRatio:    0.5,
		VolumeIncreaseMult: 1.2,
	}
}

// Leg is a completed, scored impulse.
type Leg struct {
	ID           string
	Direction    core.Direction
	StartTime    time.Time
	EndTime      time.Time
	StartPrice   float64
	EndPrice     float64
	BarCount     int
	BrokeSwing   bool
	WasFast      bool
	Uniform      bool
	VolumeUp     bool
	SufficientSz bool
	ScoreTotal   int
	TotalVolume  int64
	AvgVolume    float64
}

// MoveSize is the absolute size of the completed move in points.
func (l Leg) MoveSize() float64 {
	return absF(l.EndPrice - l.StartPrice)
}

// Builder accumulates bars for a single in-progress impulse following a
// confirmed breakout.
type Builder struct {
	id               string
	direction        core.Direction
	cfg              Config
	priorRollingMean float64

	barsSeen    []core.Bar
	startPrice  float64
	startTime   time.Time
	high, low   float64
	totalVolume int64
	totalDelta  float64
}

// NewBuilder starts a new impulse at the breakout bar (bar 0).
func NewBuilder(direction core.Direction, breakoutBar core.Bar, priorRollingMean float64, cfg Config) *Builder {
	b := &Builder{
		id:               uuid.NewString(),
		direction:        direction,
		cfg:              cfg,
		priorRollingMean: priorRollingMean,
		startPrice:       breakoutBar.Open,
		startTime:        breakoutBar.Timestamp,
		high:             breakoutBar.High,
		low:              breakoutBar.Low,
	}
	b.AddBar(breakoutBar)
	return b
}

// ID returns the impulse's stable identifier.
func (b *Builder) ID() string { return b.id }

// BarCount returns the number of bars accumulated so far.
func (b *Builder) BarCount() int { return len(b.barsSeen) }

// AddBar folds another bar into the impulse.
func (b *Builder) AddBar(bar core.Bar) {
	b.barsSeen = append(b.barsSeen, bar)
	if bar.High > b.high {
		b.high = bar.High
	}
	if bar.Low < b.low {
		b.low = bar.Low
	}
	b.totalVolume += bar.Volume
	b.totalDelta += float64(bar.Delta())
}

// EndPrice is the close of the most recently added bar.
func (b *Builder) EndPrice() float64 {
	if len(b.barsSeen) == 0 {
		return b.startPrice
	}
	return b.barsSeen[len(b.barsSeen)-1].Close
}

// MoveSize is the current absolute move size from start to the latest bar.
func (b *Builder) MoveSize() float64 {
	return absF(b.EndPrice() - b.startPrice)
}

// IsSufficientSize reports whether the move has reached MinImpulseSize.
func (b *Builder) IsSufficientSize() bool {
	return b.MoveSize() >= b.cfg.MinImpulseSize
}

// IsFast reports whether the bar count is still within MaxImpulseBars.
func (b *Builder) IsFast() bool {
	return len(b.barsSeen) <= b.cfg.MaxImpulseBars
}

// IsUniform reports whether ≥70% of bars share the impulse's direction and
// consecutive bars overlap by <50% of body size.
func (b *Builder) IsUniform() bool {
	if len(b.barsSeen) == 0 {
		return false
	}
	matching := 0
	for _, bar := range b.barsSeen {
		if bar.BodyDirection() == b.direction {
			matching++
		}
	}
	if float64(matching)/float64(len(b.barsSeen)) < 0.70 {
		return false
	}
	for i := 1; i < len(b.barsSeen); i++ {
		prev, cur := b.barsSeen[i-1], b.barsSeen[i]
		prevLo, prevHi := bodyRange(prev)
		curLo, curHi := bodyRange(cur)
		overlap := overlapAmount(prevLo, prevHi, curLo, curHi)
		prevBody := prevHi - prevLo
		if prevBody > 0 && overlap/prevBody >= 0.50 {
			return false
		}
	}
	return true
}

// VolumeIncreased reports whether the impulse's mean bar volume is at least
// VolumeIncreaseMult times the prior rolling mean.
func (b *Builder) VolumeIncreased() bool {
	if b.priorRollingMean <= 0 || len(b.barsSeen) == 0 {
		return false
	}
	mean := float64(b.totalVolume) / float64(len(b.barsSeen))
	return mean >= b.cfg.VolumeIncreaseMult*b.priorRollingMean
}

// Score returns the current sum of the five boolean scoring criteria.
func (b *Builder) Score() int {
	score := 1 // broke_swing is satisfied by construction (started on a confirmed breakout)
	if b.IsFast() {
		score++
	}
	if b.IsUniform() {
		score++
	}
	if b.VolumeIncreased() {
		score++
	}
	if b.IsSufficientSize() {
		score++
	}
	return score
}

// IsComplete reports whether the impulse has qualified: sufficient size AND
// score at or above MinImpulseScore.
func (b *Builder) IsComplete() bool {
	return b.IsSufficientSize() && b.Score() >= b.cfg.MinImpulseScore
}

// IsInvalidated reports whether the move has retraced beyond
// MaxRetraceRatio of its peak excursion, or overrun MaxImpulseBars.
func (b *Builder) IsInvalidated() bool {
	if len(b.barsSeen) > b.cfg.MaxImpulseBars {
		return true
	}
	peak := b.peakExcursion()
	if peak == 0 {
		return false
	}
	retrace := b.retraceFromPeak()
	return retrace/peak > b.cfg.MaxRetraceRatio
}

func (b *Builder) peakExcursion() float64 {
	if b.direction == core.DirectionUp {
		return b.high - b.startPrice
	}
	return b.startPrice - b.low
}

func (b *Builder) retraceFromPeak() float64 {
	if b.direction == core.DirectionUp {
		return b.high - b.EndPrice()
	}
	return b.EndPrice() - b.low
}

// Finalize emits the completed Leg. Call only once IsComplete() is true.
func (b *Builder) Finalize() Leg {
	var endTime time.Time
	if len(b.barsSeen) > 0 {
		endTime = b.barsSeen[len(b.barsSeen)-1].Timestamp
	}
	return Leg{
		ID:           b.id,
		Direction:    b.direction,
		StartTime:    b.startTime,
		EndTime:      endTime,
		StartPrice:   b.startPrice,
		EndPrice:     b.EndPrice(),
		BarCount:     len(b.barsSeen),
		BrokeSwing:   true,
		WasFast:      b.IsFast(),
		Uniform:      b.IsUniform(),
		VolumeUp:     b.VolumeIncreased(),
		SufficientSz: b.IsSufficientSize(),
		ScoreTotal:   b.Score(),
		TotalVolume:  b.totalVolume,
		AvgVolume:    float64(b.totalVolume) / float64(maxInt(len(b.barsSeen), 1)),
	}
}

func bodyRange(b core.Bar) (lo, hi float64) {
	if b.Open < b.Close {
		return b.Open, b.Close
	}
	return b.Close, b.Open
}

func overlapAmount(aLo, aHi, bLo, bHi float64) float64 {
	lo := aLo
	if bLo > lo {
		lo = bLo
	}
	hi := aHi
	if bHi < hi {
		hi = bHi
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
