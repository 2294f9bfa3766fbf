package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitos/fx_trade_engine/internal/domain"
	"github.com/vitos/fx_trade_engine/internal/metrics"
)

// StrategyConfig carries the externally supplied numeric parameters for one
// symbol's decision cycle.
type StrategyConfig struct {
	Symbol    string
	Timeframe string

	MAPeriod  int
	CCIPeriod int
	ATRPeriod int

	RiskPercent  float64
	StopLossPips float64
	MinLot       float64
	MaxLot       float64

	Exits  ExitParams
	Signal SignalConfig
}

// TradeOrchestrator runs one decision cycle per tick: exposure guard,
// sizing, exit levels, signal, margin pre-check, submission. One cycle runs
// to completion synchronously; venue events are serialized against it by the
// gateway's mutex.
type TradeOrchestrator struct {
	gateway    *BrokerGateway
	indicators domain.Indicators
	journal    domain.TradeRepository
	sizer      *PositionSizer
	exits      *ExitCalculator
	signal     *SignalEvaluator
	cfg        StrategyConfig
	log        *zap.Logger

	// previous cycle's snapshot, consulted only by the crossover mode
	prevPrice float64
	prevMA    float64
	hasPrev   bool
}

func NewTradeOrchestrator(
	gateway *BrokerGateway,
	indicators domain.Indicators,
	journal domain.TradeRepository,
	cfg StrategyConfig,
	log *zap.Logger,
) *TradeOrchestrator {
	o := &TradeOrchestrator{
		gateway:    gateway,
		indicators: indicators,
		journal:    journal,
		sizer:      NewPositionSizer(),
		exits:      NewExitCalculator(),
		signal:     NewSignalEvaluator(cfg.Signal),
		cfg:        cfg,
		log:        log,
	}
	gateway.SubscribeTrades(o.onTrade)
	gateway.SubscribeMarketData(o.onMarketData)
	return o
}

// EvaluateCycle runs one decision pass for the configured symbol. Precondition
// failures (open exposure, unusable size, no signal, insufficient margin) end
// the cycle as logged no-ops; only indicator/reference-data failures surface
// as errors.
func (o *TradeOrchestrator) EvaluateCycle(ctx context.Context) error {
	symbol := o.cfg.Symbol

	if _, open := o.gateway.GetPosition(symbol); open {
		// No snapshot is taken on guarded cycles; the crossover comparison
		// must not span them, so the next full cycle starts fresh.
		o.hasPrev = false
		metrics.Decisions.WithLabelValues("position_open").Inc()
		return nil
	}

	account := o.gateway.GetAccountInfo()
	instrument, err := o.gateway.GetInstrument(ctx, symbol)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", symbol, err)
	}

	sizing, err := o.sizer.Size(account, instrument, SizingParams{
		RiskPercent:  o.cfg.RiskPercent,
		StopLossPips: o.cfg.StopLossPips,
		MinLot:       o.cfg.MinLot,
		MaxLot:       o.cfg.MaxLot,
	})
	if err != nil || sizing.Lots <= 0 {
		o.hasPrev = false
		o.log.Info("cycle stopped: unusable size",
			zap.String("symbol", symbol),
			zap.Error(err),
			zap.String("reason", sizing.Reason))
		metrics.Decisions.WithLabelValues("sizing_rejected").Inc()
		return nil
	}

	snapshot, err := o.snapshotIndicators(ctx, symbol)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", symbol, err)
	}

	// One exit computation per directional branch; the signal picks the one
	// that applies.
	exitParams := o.cfg.Exits
	exitParams.PointSize = instrument.PointSize
	longExits := o.exits.Compute(snapshot.Price, snapshot.ATR, domain.SideLong, exitParams)
	shortExits := o.exits.Compute(snapshot.Price, snapshot.ATR, domain.SideShort, exitParams)

	intent := o.signal.Evaluate(snapshot.SignalInputs)
	o.rememberSnapshot(snapshot)

	if intent == SignalNone {
		metrics.Decisions.WithLabelValues("no_signal").Inc()
		return nil
	}

	side := domain.SideLong
	levels := longExits
	if intent == SignalShort {
		side = domain.SideShort
		levels = shortExits
	}

	leverage := account.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	required := sizing.Lots * instrument.MarginPerLot / float64(leverage)
	if required > account.FreeMargin {
		o.log.Warn("cycle stopped before submission",
			zap.String("symbol", symbol),
			zap.Float64("required_margin", required),
			zap.Float64("free_margin", account.FreeMargin),
			zap.Error(domain.ErrInsufficientMargin))
		metrics.Decisions.WithLabelValues("insufficient_margin").Inc()
		return nil
	}

	order, err := o.gateway.PlaceOrder(ctx, &domain.OrderRequest{
		Symbol:     symbol,
		Type:       domain.OrderTypeMarket,
		Side:       side,
		Volume:     sizing.Lots,
		StopLoss:   levels.HybridStop,
		TakeProfit: levels.HybridTarget,
	})
	if err != nil {
		// No retry within the cycle; the next tick is the retry.
		o.log.Error("order submission failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		metrics.Orders.WithLabelValues(string(side), "error").Inc()
		return nil
	}

	metrics.Decisions.WithLabelValues("submitted").Inc()
	metrics.Orders.WithLabelValues(string(side), "submitted").Inc()
	o.log.Info("order submitted",
		zap.String("order_id", order.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("lots", sizing.Lots),
		zap.Bool("capped", sizing.Capped),
		zap.Float64("stop_loss", levels.HybridStop),
		zap.Float64("take_profit", levels.HybridTarget))

	if err := o.journal.SaveOrder(ctx, order); err != nil {
		// Journal writes never fail the decision path.
		o.log.Error("failed to journal order", zap.Error(err))
	}
	return nil
}

type indicatorSnapshot struct {
	SignalInputs
	ATR float64
}

func (o *TradeOrchestrator) snapshotIndicators(ctx context.Context, symbol string) (indicatorSnapshot, error) {
	var snap indicatorSnapshot

	price, err := o.indicators.CurrentPrice(ctx, symbol)
	if err != nil {
		return snap, fmt.Errorf("current price: %w", err)
	}
	ma, err := o.indicators.MovingAverage(ctx, symbol, o.cfg.Timeframe, o.cfg.MAPeriod)
	if err != nil {
		return snap, fmt.Errorf("moving average: %w", err)
	}
	cci, err := o.indicators.CCI(ctx, symbol, o.cfg.Timeframe, o.cfg.CCIPeriod)
	if err != nil {
		return snap, fmt.Errorf("cci: %w", err)
	}
	atrSeries, err := o.indicators.ATR(ctx, symbol, o.cfg.Timeframe, o.cfg.ATRPeriod)
	if err != nil {
		return snap, fmt.Errorf("atr: %w", err)
	}
	if len(atrSeries) == 0 {
		return snap, fmt.Errorf("atr: empty series")
	}

	snap.Price = price
	snap.MovingAverage = ma
	snap.CCI = cci
	snap.ATR = atrSeries[len(atrSeries)-1]
	if o.hasPrev {
		snap.PrevPrice = o.prevPrice
		snap.PrevMovingAverage = o.prevMA
	} else {
		snap.PrevPrice = price
		snap.PrevMovingAverage = ma
	}
	return snap, nil
}

func (o *TradeOrchestrator) rememberSnapshot(snap indicatorSnapshot) {
	o.prevPrice = snap.Price
	o.prevMA = snap.MovingAverage
	o.hasPrev = true
}

// onTrade journals execution outcomes arriving from the venue-event path.
func (o *TradeOrchestrator) onTrade(info domain.TradeInfo) {
	ctx := context.Background()
	metrics.Trades.WithLabelValues(string(info.Kind)).Inc()

	switch info.Kind {
	case domain.ExecutionFill:
		if err := o.journal.UpdateOrderStatus(ctx, info.OrderID, domain.OrderStatusFilled, ""); err != nil {
			o.log.Error("failed to journal fill", zap.Error(err))
		}
		o.log.Info("position opened",
			zap.String("symbol", info.Symbol),
			zap.String("side", string(info.Side)),
			zap.Float64("volume", info.Volume),
			zap.Float64("price", info.Price))
	case domain.ExecutionReject:
		if err := o.journal.UpdateOrderStatus(ctx, info.OrderID, domain.OrderStatusRejected, "venue rejection"); err != nil {
			o.log.Error("failed to journal rejection", zap.Error(err))
		}
	case domain.ExecutionClose:
		history := &domain.PositionHistory{
			Symbol:      info.Symbol,
			Side:        info.Side,
			Volume:      info.Volume,
			EntryPrice:  info.EntryPrice,
			ExitPrice:   info.Price,
			RealizedPnL: info.Profit,
			ClosedAt:    info.Time,
		}
		if err := o.journal.SavePositionHistory(ctx, history); err != nil {
			o.log.Error("failed to journal position history", zap.Error(err))
		}
		o.log.Info("position closed",
			zap.String("symbol", info.Symbol),
			zap.Float64("profit", info.Profit))
	}
}

func (o *TradeOrchestrator) onMarketData(domain.MarketData) {
	metrics.Equity.Set(o.gateway.GetAccountInfo().Equity)
}
