package domain

import "context"

// Venue is the low-level transport to one execution venue. The gateway owns
// the only instance and is the only caller of the order operations; execution
// outcomes arrive through the registered callbacks, not return values.
type Venue interface {
	Connect(ctx context.Context) error
	Close() error

	SubmitOrder(ctx context.Context, req *OrderRequest, clientID string) error
	ModifyOrder(ctx context.Context, orderID string, req *OrderRequest) error
	CancelOrder(ctx context.Context, orderID string) error

	AccountInfo(ctx context.Context) (*AccountInfo, error)
	Instrument(ctx context.Context, symbol string) (*InstrumentInfo, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	OnMarketData(callback func(MarketData))
	OnExecution(callback func(ExecutionReport))
	OnAccountUpdate(callback func(AccountInfo))
	Subscribe(symbols []string) error
}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Indicators supplies per-cycle snapshots of price and indicator values.
type Indicators interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	MovingAverage(ctx context.Context, symbol, timeframe string, period int) (float64, error)
	CCI(ctx context.Context, symbol, timeframe string, period int) (float64, error)
	ATR(ctx context.Context, symbol, timeframe string, period int) ([]float64, error)
}

// TradeRepository defines journal storage for orders and closed positions.
type TradeRepository interface {
	SaveOrder(ctx context.Context, order *Order) error
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus, reason string) error
	ListOrders(ctx context.Context, limit int) ([]*Order, error)

	SavePositionHistory(ctx context.Context, history *PositionHistory) error
	ListPositionHistory(ctx context.Context, limit int) ([]*PositionHistory, error)
}
