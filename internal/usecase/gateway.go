package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

// BrokerGateway is the stateful client for one execution venue. It owns the
// authoritative local view of orders, positions and account equity; all
// other components receive snapshot copies. Writes to the owned state happen
// only on the venue-event path, never from request-issuing call sites.
type BrokerGateway struct {
	venue domain.Venue
	log   *zap.Logger

	mu        sync.RWMutex
	connected bool
	account   domain.AccountInfo
	orders    map[string]*domain.Order
	positions map[string]*domain.Position

	marketSubs []func(domain.MarketData)
	tradeSubs  []func(domain.TradeInfo)
}

func NewBrokerGateway(venue domain.Venue, log *zap.Logger) *BrokerGateway {
	g := &BrokerGateway{
		venue:     venue,
		log:       log,
		orders:    make(map[string]*domain.Order),
		positions: make(map[string]*domain.Position),
	}
	venue.OnMarketData(g.handleMarketData)
	venue.OnExecution(g.handleExecution)
	venue.OnAccountUpdate(g.handleAccountUpdate)
	return g
}

// Connect dials the venue and loads the initial account snapshot.
// Idempotent: connecting twice is a no-op.
func (g *BrokerGateway) Connect(ctx context.Context) error {
	g.mu.RLock()
	connected := g.connected
	g.mu.RUnlock()
	if connected {
		return nil
	}

	if err := g.venue.Connect(ctx); err != nil {
		return fmt.Errorf("connect venue: %w", err)
	}

	account, err := g.venue.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}

	g.mu.Lock()
	g.account = *account
	g.connected = true
	g.mu.Unlock()

	g.log.Info("gateway connected",
		zap.Float64("balance", account.Balance),
		zap.String("currency", account.Currency))
	return nil
}

// Disconnect closes the venue session. Further operations fail with
// ErrNotConnected until Connect is called again.
func (g *BrokerGateway) Disconnect() error {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	return g.venue.Close()
}

// PlaceOrder submits a request and returns a pending acknowledgment with a
// generated order id. The fill or rejection arrives asynchronously through
// the trade-execution events; callers must not assume a synchronous fill.
// The one-position-per-symbol invariant is the orchestrator's check, not the
// gateway's.
func (g *BrokerGateway) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.Order, error) {
	if !g.isConnected() {
		return nil, domain.ErrNotConnected
	}
	if req.Volume <= 0 {
		return nil, fmt.Errorf("invalid order volume %f", req.Volume)
	}

	order := &domain.Order{
		ID:         uuid.New().String(),
		Symbol:     req.Symbol,
		Type:       req.Type,
		Side:       req.Side,
		Volume:     req.Volume,
		Price:      req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Status:     domain.OrderStatusPending,
		CreatedAt:  time.Now(),
	}

	g.mu.Lock()
	g.orders[order.ID] = order
	g.mu.Unlock()

	if err := g.venue.SubmitOrder(ctx, req, order.ID); err != nil {
		g.transitionOrder(order.ID, domain.OrderStatusRejected, err.Error())
		return nil, fmt.Errorf("submit order: %w", err)
	}

	g.transitionOrder(order.ID, domain.OrderStatusAccepted, "")

	// Re-read under the lock: an early fill may already have advanced the
	// status past Accepted.
	snapshot, _ := g.GetOrder(order.ID)
	return &snapshot, nil
}

// ModifyOrder updates the stop/take levels of a known, non-terminal order.
func (g *BrokerGateway) ModifyOrder(ctx context.Context, id string, req *domain.OrderRequest) (bool, error) {
	if !g.isConnected() {
		return false, domain.ErrNotConnected
	}

	g.mu.RLock()
	order, ok := g.orders[id]
	var terminal bool
	if ok {
		terminal = domain.IsTerminal(order.Status)
	}
	g.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("modify %s: %w", id, domain.ErrOrderNotFound)
	}
	if terminal {
		return false, nil
	}

	if err := g.venue.ModifyOrder(ctx, id, req); err != nil {
		return false, fmt.Errorf("modify order: %w", err)
	}

	g.mu.Lock()
	if o, ok := g.orders[id]; ok {
		o.StopLoss = req.StopLoss
		o.TakeProfit = req.TakeProfit
		if req.Price > 0 {
			o.Price = req.Price
		}
	}
	g.mu.Unlock()
	return true, nil
}

// CancelOrder cancels a known order. Cancelling an already-terminal order is
// an idempotent no-op: (false, nil), status unchanged.
func (g *BrokerGateway) CancelOrder(ctx context.Context, id string) (bool, error) {
	if !g.isConnected() {
		return false, domain.ErrNotConnected
	}

	g.mu.RLock()
	order, ok := g.orders[id]
	var terminal bool
	if ok {
		terminal = domain.IsTerminal(order.Status)
	}
	g.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("cancel %s: %w", id, domain.ErrOrderNotFound)
	}
	if terminal {
		return false, nil
	}

	if err := g.venue.CancelOrder(ctx, id); err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}

	g.transitionOrder(id, domain.OrderStatusCancelled, "")
	return true, nil
}

// GetInstrument refreshes instrument reference data from the venue.
func (g *BrokerGateway) GetInstrument(ctx context.Context, symbol string) (domain.InstrumentInfo, error) {
	if !g.isConnected() {
		return domain.InstrumentInfo{}, domain.ErrNotConnected
	}
	info, err := g.venue.Instrument(ctx, symbol)
	if err != nil {
		return domain.InstrumentInfo{}, fmt.Errorf("fetch instrument: %w", err)
	}
	return *info, nil
}

// GetAccountInfo returns the current account snapshot.
func (g *BrokerGateway) GetAccountInfo() domain.AccountInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.account
}

// GetPositions returns copies of all open positions.
func (g *BrokerGateway) GetPositions() []domain.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.Position, 0, len(g.positions))
	for _, p := range g.positions {
		out = append(out, *p)
	}
	return out
}

// GetPosition returns a copy of the open position for a symbol, if any.
func (g *BrokerGateway) GetPosition(symbol string) (domain.Position, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// GetOrder returns a copy of a tracked order.
func (g *BrokerGateway) GetOrder(id string) (domain.Order, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// SubscribeMarketData registers a market-data subscriber. Delivery follows
// the order of underlying venue notifications.
func (g *BrokerGateway) SubscribeMarketData(fn func(domain.MarketData)) {
	g.mu.Lock()
	g.marketSubs = append(g.marketSubs, fn)
	g.mu.Unlock()
}

// SubscribeTrades registers a trade-execution subscriber.
func (g *BrokerGateway) SubscribeTrades(fn func(domain.TradeInfo)) {
	g.mu.Lock()
	g.tradeSubs = append(g.tradeSubs, fn)
	g.mu.Unlock()
}

// SubscribeSymbols forwards a symbol subscription to the venue stream.
func (g *BrokerGateway) SubscribeSymbols(symbols []string) error {
	if !g.isConnected() {
		return domain.ErrNotConnected
	}
	return g.venue.Subscribe(symbols)
}

func (g *BrokerGateway) isConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// transitionOrder applies a status change if the lifecycle allows it.
// Illegal transitions are logged and dropped so observers never see a
// half-applied state.
func (g *BrokerGateway) transitionOrder(id string, to domain.OrderStatus, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[id]
	if !ok {
		return
	}
	if !domain.CanTransition(order.Status, to) {
		g.log.Warn("illegal order transition dropped",
			zap.String("order_id", id),
			zap.String("from", string(order.Status)),
			zap.String("to", string(to)))
		return
	}
	order.Status = to
	if reason != "" {
		order.Reason = reason
	}
}

// --- venue-event path: the only legal writers of position/account state ---

func (g *BrokerGateway) handleMarketData(md domain.MarketData) {
	g.mu.Lock()
	if pos, ok := g.positions[md.Symbol]; ok {
		pos.CurrentPrice = md.Last
		if pos.Side == domain.SideLong {
			pos.UnrealizedPnL = (md.Last - pos.EntryPrice) * pos.Volume
		} else {
			pos.UnrealizedPnL = (pos.EntryPrice - md.Last) * pos.Volume
		}
		var unrealized float64
		for _, p := range g.positions {
			unrealized += p.UnrealizedPnL
		}
		g.account.Equity = g.account.Balance + unrealized
		g.account.FreeMargin = g.account.Equity - g.account.MarginUsed
	}
	subs := make([]func(domain.MarketData), len(g.marketSubs))
	copy(subs, g.marketSubs)
	g.mu.Unlock()

	for _, fn := range subs {
		fn(md)
	}
}

func (g *BrokerGateway) handleExecution(rep domain.ExecutionReport) {
	g.mu.Lock()
	switch rep.Kind {
	case domain.ExecutionFill:
		g.applyFill(rep)
	case domain.ExecutionReject:
		g.applyReject(rep)
	case domain.ExecutionClose:
		g.applyClose(rep)
	}
	subs := make([]func(domain.TradeInfo), len(g.tradeSubs))
	copy(subs, g.tradeSubs)
	g.mu.Unlock()

	info := domain.TradeInfo{
		OrderID:    rep.OrderID,
		Symbol:     rep.Symbol,
		Kind:       rep.Kind,
		Side:       rep.Side,
		Volume:     rep.Volume,
		Price:      rep.Price,
		EntryPrice: rep.EntryPrice,
		Profit:     rep.Profit,
		Time:       rep.Time,
	}
	for _, fn := range subs {
		fn(info)
	}
}

func (g *BrokerGateway) handleAccountUpdate(info domain.AccountInfo) {
	g.mu.Lock()
	g.account = info
	g.mu.Unlock()
}

// applyFill confirms an order and opens the position it requested.
// Caller holds g.mu.
func (g *BrokerGateway) applyFill(rep domain.ExecutionReport) {
	order, ok := g.orders[rep.OrderID]
	if !ok {
		g.log.Warn("fill for unknown order", zap.String("order_id", rep.OrderID))
		return
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusFilled) {
		g.log.Warn("fill on terminal order ignored",
			zap.String("order_id", rep.OrderID),
			zap.String("status", string(order.Status)))
		return
	}
	order.Status = domain.OrderStatusFilled

	g.positions[rep.Symbol] = &domain.Position{
		Symbol:       rep.Symbol,
		Side:         rep.Side,
		Volume:       rep.Volume,
		EntryPrice:   rep.Price,
		CurrentPrice: rep.Price,
		StopLoss:     order.StopLoss,
		TakeProfit:   order.TakeProfit,
		OpenedAt:     rep.Time,
	}
}

// applyReject marks an order rejected by the venue. Caller holds g.mu.
func (g *BrokerGateway) applyReject(rep domain.ExecutionReport) {
	order, ok := g.orders[rep.OrderID]
	if !ok {
		g.log.Warn("rejection for unknown order", zap.String("order_id", rep.OrderID))
		return
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusRejected) {
		return
	}
	order.Status = domain.OrderStatusRejected
	order.Reason = rep.Reason
	venueErr := &domain.VenueRejectionError{OrderID: rep.OrderID, Reason: rep.Reason}
	g.log.Error("order rejected by venue", zap.Error(venueErr))
}

// applyClose removes a position on close confirmation. A later fill creates
// a fresh Position entity; closed positions are never reopened.
// Caller holds g.mu.
func (g *BrokerGateway) applyClose(rep domain.ExecutionReport) {
	if _, ok := g.positions[rep.Symbol]; !ok {
		g.log.Warn("close for unknown position", zap.String("symbol", rep.Symbol))
		return
	}
	delete(g.positions, rep.Symbol)
	g.account.Balance += rep.Profit
	var unrealized float64
	for _, p := range g.positions {
		unrealized += p.UnrealizedPnL
	}
	g.account.Equity = g.account.Balance + unrealized
	g.account.FreeMargin = g.account.Equity - g.account.MarginUsed
}
