package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/fx_trade_engine/internal/domain"
)

const (
	DefaultBaseURL = "https://bridge.fxvenue.io"
	DefaultWSURL   = "wss://stream.fxvenue.io/v1"
)

// FXBridgeAdapter implements domain.Venue against the FX bridge REST/WS API.
// Order submissions go over signed REST; fills, rejections, account updates
// and ticks arrive on the websocket stream.
type FXBridgeAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	client    *http.Client
	log       *zap.Logger

	mu           sync.Mutex
	wsConn       *websocket.Conn
	marketCbs    []func(domain.MarketData)
	executionCbs []func(domain.ExecutionReport)
	accountCbs   []func(domain.AccountInfo)
}

func NewFXBridgeAdapter(apiKey, apiSecret, baseURL, wsURL string, log *zap.Logger) *FXBridgeAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &FXBridgeAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsURL:     wsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// --- REST API ---

func (a *FXBridgeAdapter) sign(params string, timestamp int64) string {
	toSign := fmt.Sprintf("%d%s%s", timestamp, a.apiKey, params)
	h := hmac.New(sha256.New, []byte(a.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *FXBridgeAdapter) sendRequest(ctx context.Context, method, path string, payload map[string]interface{}) ([]byte, error) {
	timestamp := time.Now().UnixMilli()

	var body []byte
	var paramsStr string
	if payload != nil {
		jsonBody, _ := json.Marshal(payload)
		body = jsonBody
		paramsStr = string(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-API-KEY", a.apiKey)
	req.Header.Set("X-API-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-API-SIGN", a.sign(paramsStr, timestamp))
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(respBody))
	}

	return respBody, nil
}

func (a *FXBridgeAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.wsConn != nil {
		return nil
	}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}
	a.wsConn = c

	// Private stream auth
	timestamp := time.Now().UnixMilli()
	auth := map[string]interface{}{
		"op":        "auth",
		"key":       a.apiKey,
		"timestamp": timestamp,
		"sign":      a.sign("", timestamp),
	}
	if err := c.WriteJSON(auth); err != nil {
		c.Close()
		a.wsConn = nil
		return fmt.Errorf("ws auth: %w", err)
	}

	go a.readLoop(c)
	return nil
}

func (a *FXBridgeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wsConn == nil {
		return nil
	}
	err := a.wsConn.Close()
	a.wsConn = nil
	return err
}

func (a *FXBridgeAdapter) SubmitOrder(ctx context.Context, req *domain.OrderRequest, clientID string) error {
	payload := map[string]interface{}{
		"client_order_id": clientID,
		"symbol":          req.Symbol,
		"type":            string(req.Type),
		"side":            string(req.Side),
		"volume":          req.Volume,
		"stop_loss":       req.StopLoss,
		"take_profit":     req.TakeProfit,
	}
	if req.Type == domain.OrderTypeLimit {
		payload["price"] = req.Price
	}
	_, err := a.sendRequest(ctx, "POST", "/v1/orders", payload)
	return err
}

func (a *FXBridgeAdapter) ModifyOrder(ctx context.Context, orderID string, req *domain.OrderRequest) error {
	payload := map[string]interface{}{
		"stop_loss":   req.StopLoss,
		"take_profit": req.TakeProfit,
	}
	if req.Price > 0 {
		payload["price"] = req.Price
	}
	_, err := a.sendRequest(ctx, "PUT", "/v1/orders/"+orderID, payload)
	return err
}

func (a *FXBridgeAdapter) CancelOrder(ctx context.Context, orderID string) error {
	_, err := a.sendRequest(ctx, "DELETE", "/v1/orders/"+orderID, nil)
	return err
}

func (a *FXBridgeAdapter) AccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	resp, err := a.sendRequest(ctx, "GET", "/v1/account", nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Balance    float64 `json:"balance"`
		Equity     float64 `json:"equity"`
		FreeMargin float64 `json:"free_margin"`
		MarginUsed float64 `json:"margin_used"`
		Leverage   int     `json:"leverage"`
		Currency   string  `json:"currency"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}

	return &domain.AccountInfo{
		Balance:    raw.Balance,
		Equity:     raw.Equity,
		FreeMargin: raw.FreeMargin,
		MarginUsed: raw.MarginUsed,
		Leverage:   raw.Leverage,
		Currency:   raw.Currency,
	}, nil
}

func (a *FXBridgeAdapter) Instrument(ctx context.Context, symbol string) (*domain.InstrumentInfo, error) {
	resp, err := a.sendRequest(ctx, "GET", "/v1/instruments/"+symbol, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Symbol       string  `json:"symbol"`
		TickValue    float64 `json:"tick_value"`
		MarginPerLot float64 `json:"margin_per_lot"`
		PointSize    float64 `json:"point_size"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse instrument: %w", err)
	}

	return &domain.InstrumentInfo{
		Symbol:       raw.Symbol,
		TickValue:    raw.TickValue,
		MarginPerLot: raw.MarginPerLot,
		PointSize:    raw.PointSize,
	}, nil
}

func (a *FXBridgeAdapter) Candles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/v1/candles?symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	resp, err := a.sendRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Candles []domain.Candle `json:"candles"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse candles: %w", err)
	}
	return raw.Candles, nil
}

// --- WebSocket ---

func (a *FXBridgeAdapter) OnMarketData(callback func(domain.MarketData)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.marketCbs = append(a.marketCbs, callback)
}

func (a *FXBridgeAdapter) OnExecution(callback func(domain.ExecutionReport)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executionCbs = append(a.executionCbs, callback)
}

func (a *FXBridgeAdapter) OnAccountUpdate(callback func(domain.AccountInfo)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accountCbs = append(a.accountCbs, callback)
}

func (a *FXBridgeAdapter) Subscribe(symbols []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wsConn == nil {
		return fmt.Errorf("ws not connected")
	}
	if len(symbols) == 0 {
		return nil
	}
	sub := map[string]interface{}{
		"op":      "subscribe",
		"symbols": symbols,
	}
	return a.wsConn.WriteJSON(sub)
}

type wsMessage struct {
	Type string `json:"type"`

	// tick fields
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`

	// execution fields
	OrderID    string  `json:"order_id"`
	Kind       string  `json:"kind"`
	Side       string  `json:"side"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	EntryPrice float64 `json:"entry_price"`
	Profit     float64 `json:"profit"`
	Reason     string  `json:"reason"`
	Time       int64   `json:"time"`

	// account fields
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	FreeMargin float64 `json:"free_margin"`
	MarginUsed float64 `json:"margin_used"`
	Leverage   int     `json:"leverage"`
	Currency   string  `json:"currency"`
}

func (a *FXBridgeAdapter) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		a.mu.Lock()
		// A reconnect may already have installed a newer conn; only clear
		// the field if it is still ours.
		if a.wsConn == conn {
			a.wsConn = nil
		}
		a.mu.Unlock()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			a.log.Warn("ws read error", zap.Error(err))
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			a.log.Warn("ws unmarshal error", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "tick":
			a.dispatchTick(msg)
		case "execution":
			a.dispatchExecution(msg)
		case "account":
			a.dispatchAccount(msg)
		}
	}
}

func (a *FXBridgeAdapter) dispatchTick(msg wsMessage) {
	last := msg.Last
	if last == 0 {
		last = (msg.Bid + msg.Ask) / 2
	}
	md := domain.MarketData{
		Symbol: msg.Symbol,
		Bid:    msg.Bid,
		Ask:    msg.Ask,
		Last:   last,
		Time:   time.UnixMilli(msg.Time),
	}

	a.mu.Lock()
	cbs := make([]func(domain.MarketData), len(a.marketCbs))
	copy(cbs, a.marketCbs)
	a.mu.Unlock()

	for _, cb := range cbs {
		cb(md)
	}
}

func (a *FXBridgeAdapter) dispatchExecution(msg wsMessage) {
	rep := domain.ExecutionReport{
		OrderID:    msg.OrderID,
		Symbol:     msg.Symbol,
		Kind:       domain.ExecutionKind(msg.Kind),
		Side:       domain.Side(msg.Side),
		Volume:     msg.Volume,
		Price:      msg.Price,
		EntryPrice: msg.EntryPrice,
		Profit:     msg.Profit,
		Reason:     msg.Reason,
		Time:       time.UnixMilli(msg.Time),
	}

	a.mu.Lock()
	cbs := make([]func(domain.ExecutionReport), len(a.executionCbs))
	copy(cbs, a.executionCbs)
	a.mu.Unlock()

	for _, cb := range cbs {
		cb(rep)
	}
}

func (a *FXBridgeAdapter) dispatchAccount(msg wsMessage) {
	info := domain.AccountInfo{
		Balance:    msg.Balance,
		Equity:     msg.Equity,
		FreeMargin: msg.FreeMargin,
		MarginUsed: msg.MarginUsed,
		Leverage:   msg.Leverage,
		Currency:   msg.Currency,
	}

	a.mu.Lock()
	cbs := make([]func(domain.AccountInfo), len(a.accountCbs))
	copy(cbs, a.accountCbs)
	a.mu.Unlock()

	for _, cb := range cbs {
		cb(info)
	}
}
