package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the closing side for a position side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusAccepted  OrderStatus = "ACCEPTED"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// validOrderTransitions defines the allowed order lifecycle.
// Cancel is only reachable before a fill.
var validOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusAccepted, OrderStatusRejected},
	OrderStatusAccepted: {OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range validOrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether an order status admits no further transitions.
func IsTerminal(s OrderStatus) bool {
	return len(validOrderTransitions[s]) == 0
}

// AccountInfo is the account snapshot the venue reports.
// Equity = Balance + unrealized PnL; FreeMargin = Equity - MarginUsed.
type AccountInfo struct {
	Balance    float64
	Equity     float64
	FreeMargin float64
	MarginUsed float64
	Leverage   int
	Currency   string
}

// InstrumentInfo is read-only reference data, refreshed per evaluation cycle.
type InstrumentInfo struct {
	Symbol       string
	TickValue    float64 // value of one pip per whole lot, in account currency
	MarginPerLot float64 // margin required for one lot before leverage
	PointSize    float64
}

// Position represents an open position on the venue.
type Position struct {
	Symbol        string
	Side          Side
	Volume        float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	StopLoss      float64
	TakeProfit    float64
	OpenedAt      time.Time
}

// Order tracks one submission through its lifecycle. Never reused after a
// terminal status.
type Order struct {
	ID         string
	Symbol     string
	Type       OrderType
	Side       Side
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Status     OrderStatus
	Reason     string // venue rejection reason, if any
	CreatedAt  time.Time
}

// OrderRequest is what callers hand to the gateway.
type OrderRequest struct {
	Symbol     string
	Type       OrderType
	Side       Side
	Volume     float64
	Price      float64 // limit price; ignored for market orders
	StopLoss   float64
	TakeProfit float64
}

// MarketData is a single quote update from the venue stream.
type MarketData struct {
	Symbol string
	Bid    float64
	Ask    float64
	Last   float64
	Time   time.Time
}

// ExecutionKind classifies a venue execution report.
type ExecutionKind string

const (
	ExecutionFill   ExecutionKind = "FILL"
	ExecutionReject ExecutionKind = "REJECT"
	ExecutionClose  ExecutionKind = "CLOSE"
)

// ExecutionReport is the venue's asynchronous answer to an order or an
// external position close. Timestamps are venue-local.
type ExecutionReport struct {
	OrderID    string
	Symbol     string
	Kind       ExecutionKind
	Side       Side
	Volume     float64
	Price      float64
	EntryPrice float64 // set on close reports
	Profit     float64
	Reason     string
	Time       time.Time
}

// TradeInfo is what trade subscribers receive after the gateway has applied
// an execution report to its own state.
type TradeInfo struct {
	OrderID    string
	Symbol     string
	Kind       ExecutionKind
	Side       Side
	Volume     float64
	Price      float64
	EntryPrice float64
	Profit     float64
	Time       time.Time
}

// ExitLevels are absolute prices, recomputed each cycle from the latest ATR
// sample. Never persisted on their own.
type ExitLevels struct {
	ATRStop      float64
	ATRTarget    float64
	HybridStop   float64
	HybridTarget float64
}

// SizingResult is the outcome of position sizing. Capped is true when the
// requested risk could not be fully honored (margin cap or lot bounds).
type SizingResult struct {
	Lots   float64
	Capped bool
	Reason string
}

// PositionHistory represents a closed position as stored in the journal.
type PositionHistory struct {
	ID          int64
	Symbol      string
	Side        Side
	Volume      float64
	EntryPrice  float64
	ExitPrice   float64
	RealizedPnL float64
	ClosedAt    time.Time
}
