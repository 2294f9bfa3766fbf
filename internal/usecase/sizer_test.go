package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

func testAccount() domain.AccountInfo {
	return domain.AccountInfo{
		Balance:    10000,
		Equity:     10000,
		FreeMargin: 10000,
		Leverage:   100,
		Currency:   "USD",
	}
}

func testInstrument() domain.InstrumentInfo {
	return domain.InstrumentInfo{
		Symbol:       "EURUSD",
		TickValue:    10,
		MarginPerLot: 1000,
		PointSize:    0.0001,
	}
}

func TestSizer_RiskBudget(t *testing.T) {
	// balance=10000, risk=1% -> riskAmount=100; pipValue=10*50=500;
	// raw=0.2; within [0.10, 1.00] -> 0.20
	sizer := NewPositionSizer()
	result, err := sizer.Size(testAccount(), testInstrument(), SizingParams{
		RiskPercent:  1,
		StopLossPips: 50,
		MinLot:       0.10,
		MaxLot:       1.00,
	})
	require.NoError(t, err)
	require.InDelta(t, 0.20, result.Lots, 1e-9)
	require.False(t, result.Capped)
}

func TestSizer_ClampsToBounds(t *testing.T) {
	sizer := NewPositionSizer()

	tests := []struct {
		name        string
		riskPercent float64
		want        float64
	}{
		{"above max", 10, 1.00},  // raw 2.0
		{"below min", 0.1, 0.10}, // raw 0.02
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := sizer.Size(testAccount(), testInstrument(), SizingParams{
				RiskPercent:  tt.riskPercent,
				StopLossPips: 50,
				MinLot:       0.10,
				MaxLot:       1.00,
			})
			require.NoError(t, err)
			require.InDelta(t, tt.want, result.Lots, 1e-9)
			require.True(t, result.Capped)
		})
	}
}

func TestSizer_MarginCap(t *testing.T) {
	// margin cost per lot = 1000/100 = 10; free margin 1.5 -> cap 0.15
	account := testAccount()
	account.FreeMargin = 1.5

	sizer := NewPositionSizer()
	result, err := sizer.Size(account, testInstrument(), SizingParams{
		RiskPercent:  1, // raw 0.2, above the margin cap
		StopLossPips: 50,
		MinLot:       0.10,
		MaxLot:       1.00,
	})
	require.NoError(t, err)
	require.InDelta(t, 0.15, result.Lots, 1e-9)
	require.True(t, result.Capped)
}

func TestSizer_DegenerateInstrumentDataRecovered(t *testing.T) {
	// tick value 0 would divide by zero; the floor substitutes instead of
	// failing, and the lot bounds contain the blown-up raw size.
	instrument := testInstrument()
	instrument.TickValue = 0

	sizer := NewPositionSizer()
	result, err := sizer.Size(testAccount(), instrument, SizingParams{
		RiskPercent:  1,
		StopLossPips: 50,
		MinLot:       0.10,
		MaxLot:       1.00,
	})
	require.NoError(t, err)
	require.True(t, result.Capped)
	require.LessOrEqual(t, result.Lots, 1.00)
}

func TestSizer_InvalidBoundsRejected(t *testing.T) {
	sizer := NewPositionSizer()
	_, err := sizer.Size(testAccount(), testInstrument(), SizingParams{
		RiskPercent:  1,
		StopLossPips: 50,
		MinLot:       0,
		MaxLot:       1.00,
	})
	require.ErrorIs(t, err, domain.ErrSizingRejected)

	_, err = sizer.Size(testAccount(), testInstrument(), SizingParams{
		RiskPercent:  1,
		StopLossPips: 50,
		MinLot:       0.50,
		MaxLot:       0.10,
	})
	require.ErrorIs(t, err, domain.ErrSizingRejected)
}

func TestSizer_AlwaysWithinBoundsAndRounded(t *testing.T) {
	sizer := NewPositionSizer()

	// sweep risk percents; every result must land in [min,max] on the step
	for risk := 0.05; risk <= 20; risk += 0.37 {
		result, err := sizer.Size(testAccount(), testInstrument(), SizingParams{
			RiskPercent:  risk,
			StopLossPips: 50,
			MinLot:       0.10,
			MaxLot:       1.00,
		})
		if err != nil {
			t.Fatalf("risk %.2f: %v", risk, err)
		}
		if result.Lots < 0.10 || result.Lots > 1.00 {
			t.Fatalf("risk %.2f: lots %.4f out of bounds", risk, result.Lots)
		}
		steps := result.Lots / lotStep
		if math.Abs(steps-math.Round(steps)) > 1e-6 {
			t.Fatalf("risk %.2f: lots %.4f not on lot step", risk, result.Lots)
		}
	}
}

func TestSizer_RoundsDownToStep(t *testing.T) {
	// riskAmount=61.7 -> raw 0.1234 -> 0.12
	sizer := NewPositionSizer()
	result, err := sizer.Size(testAccount(), testInstrument(), SizingParams{
		RiskPercent:  0.617,
		StopLossPips: 50,
		MinLot:       0.10,
		MaxLot:       1.00,
	})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(result.Lots-0.12) > 1e-9 {
		t.Errorf("expected 0.12, got %f", result.Lots)
	}
}
