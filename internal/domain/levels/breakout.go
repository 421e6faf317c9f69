package levels

import "github.com/lvnretest/engine/internal/domain/core"

// LevelType names which reference level a breakout transgressed.
type LevelType int

const (
	LevelPDH LevelType = iota
	LevelPDL
	LevelONH
	LevelONL
	LevelVAH
	LevelVAL
)

func (l LevelType) String() string {
	switch l {
	case LevelPDH:
		return "PDH"
	case LevelPDL:
		return "PDL"
	case LevelONH:
		return "ONH"
	case LevelONL:
		return "ONL"
	case LevelVAH:
		return "VAH"
	case LevelVAL:
		return "VAL"
	default:
		return "unknown"
	}
}

// Breakout is a confirmed transgression of a reference level.
type Breakout struct {
	Level     LevelType
	Direction core.Direction
	Price     float64
}

// CheckBreakout returns the first level (in PDH/PDL, ONH/ONL, VAH/VAL
// priority order) that price has cleared by more than threshold. Zero-valued
// levels (no data available) are skipped.
func (d Daily) CheckBreakout(price, threshold float64) (Breakout, bool) {
	type candidate struct {
		lt    LevelType
		level float64
		up    bool
	}
	candidates := []candidate{
		{LevelPDH, d.PDH, true},
		{LevelPDL, d.PDL, false},
		{LevelONH, d.ONH, true},
		{LevelONL, d.ONL, false},
		{LevelVAH, d.VAH, true},
		{LevelVAL, d.VAL, false},
	}

	for _, c := range candidates {
		if c.level == 0 {
			continue
		}
		if c.up && price > c.level+threshold {
			return Breakout{Level: c.lt, Direction: core.DirectionUp, Price: c.level}, true
		}
		if !c.up && price < c.level-threshold {
			return Breakout{Level: c.lt, Direction: core.DirectionDown, Price: c.level}, true
		}
	}
	return Breakout{}, false
}
