package usecase

type SignalIntent string

const (
	SignalNone  SignalIntent = "NONE"
	SignalLong  SignalIntent = "LONG"
	SignalShort SignalIntent = "SHORT"
)

// Signal modes. CCI+MA confirms an oscillator extreme against the trend;
// crossover is the simpler long-only variant with no oscillator.
const (
	SignalModeCCIMA     = "cci_ma"
	SignalModeCrossover = "crossover"
)

type SignalConfig struct {
	Mode     string
	CCILower float64 // oversold threshold, e.g. -100
	CCIUpper float64 // overbought threshold, e.g. 100
}

// SignalInputs is the per-cycle snapshot the evaluator works from. Prev
// values are only consulted in crossover mode.
type SignalInputs struct {
	Price             float64
	MovingAverage     float64
	CCI               float64
	PrevPrice         float64
	PrevMovingAverage float64
}

type SignalEvaluator struct {
	cfg SignalConfig
}

func NewSignalEvaluator(cfg SignalConfig) *SignalEvaluator {
	return &SignalEvaluator{cfg: cfg}
}

// Evaluate is a pure function: no side effects, deterministic given inputs.
func (e *SignalEvaluator) Evaluate(in SignalInputs) SignalIntent {
	if e.cfg.Mode == SignalModeCrossover {
		if in.PrevPrice <= in.PrevMovingAverage && in.Price > in.MovingAverage {
			return SignalLong
		}
		return SignalNone
	}

	if in.CCI < e.cfg.CCILower && in.Price > in.MovingAverage {
		return SignalLong
	}
	if in.CCI > e.cfg.CCIUpper && in.Price < in.MovingAverage {
		return SignalShort
	}
	return SignalNone
}
