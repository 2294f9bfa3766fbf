package usecase

import (
	"math"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

// ExitParams configures stop/target computation. Hybrid weights need not sum
// to 1; the blend divides by their sum.
type ExitParams struct {
	SLMultiplier  float64
	TPMultiplier  float64
	SLBufferMult  float64
	TPBufferMult  float64
	MaxBufferPips float64
	PointSize     float64
	HybridEnabled bool
	ATRWeight     float64
	PivotWeight   float64
}

type ExitCalculator struct{}

func NewExitCalculator() *ExitCalculator {
	return &ExitCalculator{}
}

// Compute derives protective price levels for one direction from the latest
// ATR sample. Stateless: every cycle recomputes from scratch.
func (c *ExitCalculator) Compute(price, atr float64, side domain.Side, p ExitParams) domain.ExitLevels {
	if atr < 0 {
		atr = 0
	}

	maxBuffer := p.MaxBufferPips * p.PointSize
	bufferStop := math.Min(atr*p.SLBufferMult, maxBuffer)
	bufferTarget := math.Min(atr*p.TPBufferMult, maxBuffer)

	var levels domain.ExitLevels
	if side == domain.SideShort {
		levels.ATRStop = price + atr*p.SLMultiplier
		levels.ATRTarget = price - atr*p.TPMultiplier
		levels.HybridStop = blend(levels.ATRStop, price+bufferStop, p)
		levels.HybridTarget = blend(levels.ATRTarget, price-bufferTarget, p)
	} else {
		levels.ATRStop = price - atr*p.SLMultiplier
		levels.ATRTarget = price + atr*p.TPMultiplier
		levels.HybridStop = blend(levels.ATRStop, price-bufferStop, p)
		levels.HybridTarget = blend(levels.ATRTarget, price+bufferTarget, p)
	}
	return levels
}

// blend returns the weighted average of the ATR level and the buffered pivot
// level. Disabled hybrid (or a zero weight sum) falls back to the ATR level.
func blend(atrLevel, pivotLevel float64, p ExitParams) float64 {
	if !p.HybridEnabled {
		return atrLevel
	}
	sum := p.ATRWeight + p.PivotWeight
	if sum <= 0 {
		return atrLevel
	}
	return (atrLevel*p.ATRWeight + pivotLevel*p.PivotWeight) / sum
}
