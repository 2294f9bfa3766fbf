package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

// pipValueFloor replaces a non-positive pip value computed from degenerate
// instrument data. Substituting a floor keeps sizing total instead of
// propagating a divide-by-zero up the decision path.
const pipValueFloor = 0.01

// lotStep is the rounding step for the final lot size.
const lotStep = 0.01

// SizingParams bounds one sizing request. MinLot/MaxLot are configuration,
// not constants.
type SizingParams struct {
	RiskPercent  float64
	StopLossPips float64
	MinLot       float64
	MaxLot       float64
}

type PositionSizer struct{}

func NewPositionSizer() *PositionSizer {
	return &PositionSizer{}
}

// Size converts the account's risk budget into a lot size bounded by margin
// affordability and the configured lot range. It always returns a usable
// (possibly capped) value for valid bounds; insufficient margin is the
// submission stage's concern, not sizing's.
func (s *PositionSizer) Size(account domain.AccountInfo, instrument domain.InstrumentInfo, params SizingParams) (domain.SizingResult, error) {
	if params.MinLot <= 0 || params.MaxLot < params.MinLot {
		return domain.SizingResult{Reason: "invalid lot bounds"},
			fmt.Errorf("%w: min %.2f max %.2f", domain.ErrSizingRejected, params.MinLot, params.MaxLot)
	}

	riskAmount := account.Balance * params.RiskPercent / 100

	pipValue := instrument.TickValue * params.StopLossPips
	if pipValue <= 0 {
		pipValue = pipValueFloor
	}

	rawSize := riskAmount / pipValue

	leverage := account.Leverage
	if leverage <= 0 {
		leverage = 1
	}

	capped := false
	size := rawSize
	if instrument.MarginPerLot > 0 {
		marginCap := account.FreeMargin / (instrument.MarginPerLot / float64(leverage))
		if size > marginCap {
			size = marginCap
			capped = true
		}
	}

	if size < params.MinLot {
		size = params.MinLot
		capped = true
	}
	if size > params.MaxLot {
		size = params.MaxLot
		capped = true
	}

	// Round down to the lot step, then re-apply the lower bound so the
	// result stays inside [MinLot, MaxLot].
	size = math.Floor(size/lotStep+1e-9) * lotStep
	if size < params.MinLot {
		size = params.MinLot
	}

	return domain.SizingResult{Lots: size, Capped: capped}, nil
}
