package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

type stubIndicators struct {
	price float64
	ma    float64
	cci   float64
	atr   []float64
	err   error
}

func (s *stubIndicators) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, s.err
}

func (s *stubIndicators) MovingAverage(ctx context.Context, symbol, timeframe string, period int) (float64, error) {
	return s.ma, s.err
}

func (s *stubIndicators) CCI(ctx context.Context, symbol, timeframe string, period int) (float64, error) {
	return s.cci, s.err
}

func (s *stubIndicators) ATR(ctx context.Context, symbol, timeframe string, period int) ([]float64, error) {
	return s.atr, s.err
}

type memJournal struct {
	mu      sync.Mutex
	orders  []*domain.Order
	history []*domain.PositionHistory
}

func (j *memJournal) SaveOrder(ctx context.Context, order *domain.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	o := *order
	j.orders = append(j.orders, &o)
	return nil
}

func (j *memJournal) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, o := range j.orders {
		if o.ID == id {
			o.Status = status
			return nil
		}
	}
	return domain.ErrOrderNotFound
}

func (j *memJournal) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*domain.Order(nil), j.orders...), nil
}

func (j *memJournal) SavePositionHistory(ctx context.Context, history *domain.PositionHistory) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	h := *history
	j.history = append(j.history, &h)
	return nil
}

func (j *memJournal) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*domain.PositionHistory(nil), j.history...), nil
}

func testStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Symbol:       "EURUSD",
		Timeframe:    "15m",
		MAPeriod:     50,
		CCIPeriod:    14,
		ATRPeriod:    14,
		RiskPercent:  1,
		StopLossPips: 50,
		MinLot:       0.10,
		MaxLot:       1.00,
		Exits: ExitParams{
			SLMultiplier:  8.5,
			TPMultiplier:  8.0,
			SLBufferMult:  1.5,
			TPBufferMult:  1.0,
			MaxBufferPips: 20,
			HybridEnabled: true,
			ATRWeight:     0.5,
			PivotWeight:   0.5,
		},
		Signal: SignalConfig{Mode: SignalModeCCIMA, CCILower: -100, CCIUpper: 100},
	}
}

func newTestOrchestrator(t *testing.T, cfg StrategyConfig, ind *stubIndicators) (*TradeOrchestrator, *BrokerGateway, *MockVenue, *memJournal) {
	t.Helper()
	venue := &MockVenue{
		Account: domain.AccountInfo{
			Balance:    10000,
			Equity:     10000,
			FreeMargin: 10000,
			Leverage:   100,
			Currency:   "USD",
		},
		InstrumentData: domain.InstrumentInfo{
			Symbol:       "EURUSD",
			TickValue:    10,
			MarginPerLot: 1000,
			PointSize:    0.0001,
		},
	}
	gw := NewBrokerGateway(venue, zap.NewNop())
	journal := &memJournal{}
	orch := NewTradeOrchestrator(gw, ind, journal, cfg, zap.NewNop())

	if err := gw.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	return orch, gw, venue, journal
}

func TestOrchestrator_SubmitsLongOnOversoldAboveMA(t *testing.T) {
	ind := &stubIndicators{price: 1.1000, ma: 1.0900, cci: -150, atr: []float64{0.0020}}
	orch, _, venue, journal := newTestOrchestrator(t, testStrategyConfig(), ind)

	if err := orch.EvaluateCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(venue.SubmittedReqs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(venue.SubmittedReqs))
	}
	req := venue.SubmittedReqs[0]
	if req.Side != domain.SideLong || req.Type != domain.OrderTypeMarket {
		t.Errorf("unexpected request %+v", req)
	}
	if diff := req.Volume - 0.20; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected 0.20 lots, got %f", req.Volume)
	}

	// hybrid stop: (1.0830 + (1.1000-0.0020))/2 = 1.0905
	// buffer capped at 20 pips: min(0.0020*1.5, 0.0020) = 0.0020
	if diff := req.StopLoss - 1.0905; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected hybrid stop 1.0905, got %f", req.StopLoss)
	}
	// hybrid target: (1.1160 + (1.1000+0.0020))/2 = 1.1090
	if diff := req.TakeProfit - 1.1090; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected hybrid target 1.1090, got %f", req.TakeProfit)
	}

	orders, _ := journal.ListOrders(context.Background(), 10)
	if len(orders) != 1 {
		t.Errorf("expected journaled order, got %d", len(orders))
	}
}

func TestOrchestrator_SubmitsShortOnOverboughtBelowMA(t *testing.T) {
	ind := &stubIndicators{price: 1.0800, ma: 1.0900, cci: 150, atr: []float64{0.0020}}
	orch, _, venue, _ := newTestOrchestrator(t, testStrategyConfig(), ind)

	if err := orch.EvaluateCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(venue.SubmittedReqs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(venue.SubmittedReqs))
	}
	req := venue.SubmittedReqs[0]
	if req.Side != domain.SideShort {
		t.Errorf("expected short, got %s", req.Side)
	}
	if req.StopLoss <= 1.0800 || req.TakeProfit >= 1.0800 {
		t.Errorf("short levels must mirror: stop %f target %f", req.StopLoss, req.TakeProfit)
	}
}

func TestOrchestrator_NoSignalNoOrder(t *testing.T) {
	ind := &stubIndicators{price: 1.1000, ma: 1.0900, cci: 0, atr: []float64{0.0020}}
	orch, _, venue, _ := newTestOrchestrator(t, testStrategyConfig(), ind)

	if err := orch.EvaluateCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(venue.SubmittedReqs) != 0 {
		t.Errorf("expected no submission, got %d", len(venue.SubmittedReqs))
	}
}

func TestOrchestrator_SkipsCycleWhilePositionOpen(t *testing.T) {
	ind := &stubIndicators{price: 1.1000, ma: 1.0900, cci: -150, atr: []float64{0.0020}}
	orch, _, venue, _ := newTestOrchestrator(t, testStrategyConfig(), ind)
	ctx := context.Background()

	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	venue.FireExecution(domain.ExecutionReport{
		OrderID: venue.SubmittedIDs[0],
		Symbol:  "EURUSD",
		Kind:    domain.ExecutionFill,
		Side:    domain.SideLong,
		Volume:  0.20,
		Price:   1.1000,
	})

	// the signal is still hot; the exposure guard must win
	for i := 0; i < 5; i++ {
		if err := orch.EvaluateCycle(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if len(venue.SubmittedReqs) != 1 {
		t.Errorf("expected no further submissions while position open, got %d", len(venue.SubmittedReqs))
	}
}

func TestOrchestrator_OnePositionPerSymbolInvariant(t *testing.T) {
	ind := &stubIndicators{price: 1.1000, ma: 1.0900, cci: -150, atr: []float64{0.0020}}
	orch, gw, venue, _ := newTestOrchestrator(t, testStrategyConfig(), ind)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := orch.EvaluateCycle(ctx); err != nil {
			t.Fatal(err)
		}
		if n := len(venue.SubmittedIDs); n > 0 {
			venue.FireExecution(domain.ExecutionReport{
				OrderID: venue.SubmittedIDs[n-1],
				Symbol:  "EURUSD",
				Kind:    domain.ExecutionFill,
				Side:    domain.SideLong,
				Volume:  0.20,
				Price:   1.1000,
			})
		}
		if got := len(gw.GetPositions()); got > 1 {
			t.Fatalf("cycle %d: %d positions open for one symbol", i, got)
		}
	}
}

func TestOrchestrator_InsufficientMarginIsNoOp(t *testing.T) {
	ind := &stubIndicators{price: 1.1000, ma: 1.0900, cci: -150, atr: []float64{0.0020}}
	orch, _, venue, _ := newTestOrchestrator(t, testStrategyConfig(), ind)

	// drain free margin via an account update; min lot still needs
	// 0.10 * 1000 / 100 = 1.0 of margin
	venue.FireAccountUpdate(domain.AccountInfo{
		Balance: 10000, Equity: 10000, FreeMargin: 0.5, MarginUsed: 9999.5, Leverage: 100,
	})

	if err := orch.EvaluateCycle(context.Background()); err != nil {
		t.Fatalf("margin shortfall must surface as a no-op, got %v", err)
	}
	if len(venue.SubmittedReqs) != 0 {
		t.Error("doomed order must not be submitted")
	}
}

func TestOrchestrator_SubmissionErrorNoRetry(t *testing.T) {
	ind := &stubIndicators{price: 1.1000, ma: 1.0900, cci: -150, atr: []float64{0.0020}}
	orch, _, venue, journal := newTestOrchestrator(t, testStrategyConfig(), ind)
	venue.SubmitErr = errors.New("venue unavailable")

	if err := orch.EvaluateCycle(context.Background()); err != nil {
		t.Fatalf("submission failure must not propagate, got %v", err)
	}
	if len(venue.SubmittedIDs) != 0 {
		t.Error("failed submit must not be recorded as accepted")
	}
	orders, _ := journal.ListOrders(context.Background(), 10)
	if len(orders) != 0 {
		t.Errorf("failed submission must not be journaled, got %d", len(orders))
	}
}

func TestOrchestrator_CrossoverModeNeedsACross(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.Signal = SignalConfig{Mode: SignalModeCrossover}

	ind := &stubIndicators{price: 1.0800, ma: 1.0900, cci: 0, atr: []float64{0.0020}}
	orch, _, venue, _ := newTestOrchestrator(t, cfg, ind)
	ctx := context.Background()

	// below the MA: nothing
	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(venue.SubmittedReqs) != 0 {
		t.Fatal("no order expected below the MA")
	}

	// price crosses above between cycles
	ind.price = 1.1000
	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(venue.SubmittedReqs) != 1 {
		t.Fatalf("expected crossover long, got %d submissions", len(venue.SubmittedReqs))
	}
	if venue.SubmittedReqs[0].Side != domain.SideLong {
		t.Errorf("crossover mode has no short branch, got %s", venue.SubmittedReqs[0].Side)
	}
}

func TestOrchestrator_CrossoverIgnoresCrossFromBeforePosition(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.Signal = SignalConfig{Mode: SignalModeCrossover}

	ind := &stubIndicators{price: 1.0800, ma: 1.0900, cci: 0, atr: []float64{0.0020}}
	orch, _, venue, _ := newTestOrchestrator(t, cfg, ind)
	ctx := context.Background()

	// below the MA, then a genuine cross opens a position
	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	ind.price = 1.1000
	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(venue.SubmittedReqs) != 1 {
		t.Fatalf("expected the crossover entry, got %d submissions", len(venue.SubmittedReqs))
	}
	venue.FireExecution(domain.ExecutionReport{
		OrderID: venue.SubmittedIDs[0], Symbol: "EURUSD", Kind: domain.ExecutionFill,
		Side: domain.SideLong, Volume: 0.20, Price: 1.1000,
	})

	// guarded cycles while the position is held; price stays above the MA
	for i := 0; i < 3; i++ {
		if err := orch.EvaluateCycle(ctx); err != nil {
			t.Fatal(err)
		}
	}
	venue.FireExecution(domain.ExecutionReport{
		Symbol: "EURUSD", Kind: domain.ExecutionClose,
		Side: domain.SideLong, Volume: 0.20, Price: 1.1000,
		EntryPrice: 1.1000, Profit: 0,
	})

	// the cross happened before the position opened; the first cycle after
	// the close must not replay it
	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(venue.SubmittedReqs) != 1 {
		t.Fatalf("stale pre-open cross must not re-enter, got %d submissions", len(venue.SubmittedReqs))
	}

	// a fresh dip and cross still trades
	ind.price = 1.0800
	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	ind.price = 1.1000
	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(venue.SubmittedReqs) != 2 {
		t.Fatalf("expected a second entry on the new cross, got %d submissions", len(venue.SubmittedReqs))
	}
}

func TestOrchestrator_JournalsFillAndClose(t *testing.T) {
	ind := &stubIndicators{price: 1.1000, ma: 1.0900, cci: -150, atr: []float64{0.0020}}
	orch, _, venue, journal := newTestOrchestrator(t, testStrategyConfig(), ind)
	ctx := context.Background()

	if err := orch.EvaluateCycle(ctx); err != nil {
		t.Fatal(err)
	}
	id := venue.SubmittedIDs[0]

	venue.FireExecution(domain.ExecutionReport{
		OrderID: id, Symbol: "EURUSD", Kind: domain.ExecutionFill,
		Side: domain.SideLong, Volume: 0.20, Price: 1.1000,
	})
	venue.FireExecution(domain.ExecutionReport{
		Symbol: "EURUSD", Kind: domain.ExecutionClose,
		Side: domain.SideLong, Volume: 0.20, Price: 1.1090,
		EntryPrice: 1.1000, Profit: 180,
	})

	orders, _ := journal.ListOrders(ctx, 10)
	if len(orders) != 1 || orders[0].Status != domain.OrderStatusFilled {
		t.Errorf("expected journaled fill, got %+v", orders)
	}

	history, _ := journal.ListPositionHistory(ctx, 10)
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
	h := history[0]
	if h.EntryPrice != 1.1000 || h.ExitPrice != 1.1090 || h.RealizedPnL != 180 {
		t.Errorf("unexpected history %+v", h)
	}
}
