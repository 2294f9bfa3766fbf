package usecase

import (
	"context"
	"sync"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

// MockVenue drives the gateway in tests: request calls are recorded, and
// execution outcomes are injected through the registered callbacks the same
// way the real stream delivers them.
type MockVenue struct {
	mu sync.Mutex

	ConnectErr   error
	SubmitErr    error
	ModifyErr    error
	CancelErr    error
	ConnectCalls int

	Account        domain.AccountInfo
	InstrumentData domain.InstrumentInfo
	CandleData     []domain.Candle

	SubmittedIDs  []string
	SubmittedReqs []domain.OrderRequest
	ModifiedIDs   []string
	CancelledIDs  []string
	Subscribed    []string

	marketCb  func(domain.MarketData)
	execCb    func(domain.ExecutionReport)
	accountCb func(domain.AccountInfo)
}

func (m *MockVenue) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectCalls++
	return m.ConnectErr
}

func (m *MockVenue) Close() error { return nil }

func (m *MockVenue) SubmitOrder(ctx context.Context, req *domain.OrderRequest, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		return m.SubmitErr
	}
	m.SubmittedIDs = append(m.SubmittedIDs, clientID)
	m.SubmittedReqs = append(m.SubmittedReqs, *req)
	return nil
}

func (m *MockVenue) ModifyOrder(ctx context.Context, orderID string, req *domain.OrderRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModifyErr != nil {
		return m.ModifyErr
	}
	m.ModifiedIDs = append(m.ModifiedIDs, orderID)
	return nil
}

func (m *MockVenue) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.CancelledIDs = append(m.CancelledIDs, orderID)
	return nil
}

func (m *MockVenue) AccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	account := m.Account
	return &account, nil
}

func (m *MockVenue) Instrument(ctx context.Context, symbol string) (*domain.InstrumentInfo, error) {
	info := m.InstrumentData
	return &info, nil
}

func (m *MockVenue) Candles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return m.CandleData, nil
}

func (m *MockVenue) OnMarketData(cb func(domain.MarketData))     { m.marketCb = cb }
func (m *MockVenue) OnExecution(cb func(domain.ExecutionReport)) { m.execCb = cb }
func (m *MockVenue) OnAccountUpdate(cb func(domain.AccountInfo)) { m.accountCb = cb }

func (m *MockVenue) Subscribe(symbols []string) error {
	m.Subscribed = append(m.Subscribed, symbols...)
	return nil
}

func (m *MockVenue) FireMarketData(md domain.MarketData) {
	if m.marketCb != nil {
		m.marketCb(md)
	}
}

func (m *MockVenue) FireExecution(rep domain.ExecutionReport) {
	if m.execCb != nil {
		m.execCb(rep)
	}
}

func (m *MockVenue) FireAccountUpdate(info domain.AccountInfo) {
	if m.accountCb != nil {
		m.accountCb(info)
	}
}
