package exchange

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
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

const (
	DeltaBaseURL   = "https://api.india.delta.exchange"
	DeltaWSURL     = "wss://socket.india.delta.exchange"
	BinanceBaseURL = "https://api.binance.com"
)

// DeltaAdapter talks to the Delta Exchange v2 REST API and public websocket.
// Private endpoints are signed with HMAC-SHA256 over
// method + timestamp + path + query + body.
type DeltaAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	client    *http.Client
	logger    *zap.Logger

	wsConn    *websocket.Conn
	callbacks []func(symbol string, price float64)
	mu        sync.Mutex
}

func NewDeltaAdapter(apiKey, apiSecret, baseURL, wsURL string, logger *zap.Logger) *DeltaAdapter {
	if baseURL == "" {
		baseURL = DeltaBaseURL
	}
	if wsURL == "" {
		wsURL = DeltaWSURL
	}
	return &DeltaAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsURL:     wsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// --- REST API ---

func (d *DeltaAdapter) sign(method, timestamp, path, query, body string) string {
	h := hmac.New(sha256.New, []byte(d.apiSecret))
	h.Write([]byte(method + timestamp + path + query + body))
	return hex.EncodeToString(h.Sum(nil))
}

func (d *DeltaAdapter) sendRequest(ctx context.Context, op, method, path string, payload interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, &domain.GatewayError{Op: op, Err: err}
		}
	}

	query := ""
	reqPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		reqPath = path[:idx]
		query = path[idx:]
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := d.sign(method, timestamp, reqPath, query, string(body))

	req.Header.Set("api-key", d.apiKey)
	req.Header.Set("signature", signature)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &domain.GatewayError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	return respBody, nil
}

func (d *DeltaAdapter) PlaceOrder(ctx context.Context, instrumentID int64, side domain.OrderSide, size int) (string, error) {
	payload := map[string]interface{}{
		"product_id": instrumentID,
		"size":       size,
		"side":       string(side),
		"order_type": "market_order",
	}

	resp, err := d.sendRequest(ctx, "place_order", "POST", "/v2/orders", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Success bool `json:"success"`
		Result  struct {
			ID int64 `json:"id"`
		} `json:"result"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", &domain.GatewayError{Op: "place_order", Err: err}
	}
	if !result.Success {
		return "", &domain.GatewayError{Op: "place_order", Err: fmt.Errorf("venue rejected order: %s", string(result.Error))}
	}

	return strconv.FormatInt(result.Result.ID, 10), nil
}

func (d *DeltaAdapter) CancelOrder(ctx context.Context, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return &domain.GatewayError{Op: "cancel_order", Err: fmt.Errorf("bad order id %q: %w", orderID, err)}
	}

	payload := map[string]interface{}{"id": id}
	resp, err := d.sendRequest(ctx, "cancel_order", "DELETE", "/v2/orders", payload)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return &domain.GatewayError{Op: "cancel_order", Err: err}
	}
	if !result.Success {
		return &domain.GatewayError{Op: "cancel_order", Err: fmt.Errorf("venue rejected cancel: %s", string(result.Error))}
	}
	return nil
}

func (d *DeltaAdapter) ListOpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	resp, err := d.sendRequest(ctx, "list_open_orders", "GET", "/v2/orders?state=open", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Result  []struct {
			ID         int64  `json:"id"`
			ProductID  int64  `json:"product_id"`
			Symbol     string `json:"product_symbol"`
			Side       string `json:"side"`
			Size       int    `json:"size"`
			LimitPrice string `json:"limit_price"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, &domain.GatewayError{Op: "list_open_orders", Err: err}
	}

	orders := make([]domain.OpenOrder, 0, len(result.Result))
	for _, o := range result.Result {
		limit, _ := strconv.ParseFloat(o.LimitPrice, 64)
		orders = append(orders, domain.OpenOrder{
			OrderID:      strconv.FormatInt(o.ID, 10),
			InstrumentID: o.ProductID,
			Symbol:       o.Symbol,
			Side:         o.Side,
			Size:         float64(o.Size),
			LimitPrice:   limit,
		})
	}
	return orders, nil
}

func (d *DeltaAdapter) CloseAllPositions(ctx context.Context) error {
	payload := map[string]interface{}{
		"close_all_portfolio": true,
		"close_all_isolated":  true,
	}
	resp, err := d.sendRequest(ctx, "close_all_positions", "POST", "/v2/positions/close_all", payload)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return &domain.GatewayError{Op: "close_all_positions", Err: err}
	}
	if !result.Success {
		return &domain.GatewayError{Op: "close_all_positions", Err: fmt.Errorf("venue rejected close all: %s", string(result.Error))}
	}
	return nil
}

func (d *DeltaAdapter) GetPositions(ctx context.Context) ([]domain.Position, error) {
	resp, err := d.sendRequest(ctx, "get_positions", "GET", "/v2/positions/margined", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Result  []struct {
			ProductID     int64   `json:"product_id"`
			Symbol        string  `json:"product_symbol"`
			Size          float64 `json:"size"`
			EntryPrice    string  `json:"entry_price"`
			MarkPrice     string  `json:"mark_price"`
			UnrealizedPnL string  `json:"unrealized_pnl"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, &domain.GatewayError{Op: "get_positions", Err: err}
	}

	positions := make([]domain.Position, 0, len(result.Result))
	for _, p := range result.Result {
		if p.Size == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(p.MarkPrice, 64)
		pnl, _ := strconv.ParseFloat(p.UnrealizedPnL, 64)
		positions = append(positions, domain.Position{
			InstrumentID:  p.ProductID,
			Symbol:        p.Symbol,
			Size:          p.Size,
			EntryPrice:    entry,
			MarkPrice:     mark,
			UnrealizedPnL: pnl,
		})
	}
	return positions, nil
}

func (d *DeltaAdapter) GetWalletBalances(ctx context.Context) ([]domain.Balance, error) {
	resp, err := d.sendRequest(ctx, "get_wallet_balances", "GET", "/v2/wallet/balances", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Result  []struct {
			Asset struct {
				Symbol string `json:"symbol"`
			} `json:"asset"`
			AvailableBalance string `json:"available_balance"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, &domain.GatewayError{Op: "get_wallet_balances", Err: err}
	}

	balances := make([]domain.Balance, 0, len(result.Result))
	for _, b := range result.Result {
		avail, _ := strconv.ParseFloat(b.AvailableBalance, 64)
		balances = append(balances, domain.Balance{
			Asset:     b.Asset.Symbol,
			Available: avail,
		})
	}
	return balances, nil
}

// GetMarkPrice reads the public ticker. On failure it falls back to Binance
// spot so a venue API outage degrades the feed instead of blinding it.
func (d *DeltaAdapter) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := d.getTickerPrice(ctx, symbol)
	if err == nil {
		return price, nil
	}

	fallback, fbErr := d.getBinancePrice(ctx)
	if fbErr != nil {
		return 0, err
	}
	d.logger.Warn("Ticker fetch failed, using Binance fallback", zap.Error(err))
	return fallback, nil
}

func (d *DeltaAdapter) getTickerPrice(ctx context.Context, symbol string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+"/v2/tickers/"+symbol, nil)
	if err != nil {
		return 0, &domain.GatewayError{Op: "get_mark_price", Err: err}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &domain.GatewayError{Op: "get_mark_price", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &domain.GatewayError{Op: "get_mark_price", Err: err}
	}
	if resp.StatusCode >= 400 {
		return 0, &domain.GatewayError{Op: "get_mark_price", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var result struct {
		Success bool `json:"success"`
		Result  struct {
			SpotPrice string `json:"spot_price"`
			MarkPrice string `json:"mark_price"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, &domain.GatewayError{Op: "get_mark_price", Err: err}
	}

	raw := result.Result.SpotPrice
	if raw == "" {
		raw = result.Result.MarkPrice
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		return 0, &domain.GatewayError{Op: "get_mark_price", Err: fmt.Errorf("bad ticker price %q", raw)}
	}
	return price, nil
}

func (d *DeltaAdapter) getBinancePrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", BinanceBaseURL+"/api/v3/ticker/price?symbol=BTCUSDT", nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var result struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(result.Price, 64)
}

func (d *DeltaAdapter) GetDailyClose(ctx context.Context, symbol string, day time.Time) (float64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	path := fmt.Sprintf("/v2/history/candles?resolution=1d&symbol=%s&start=%d&end=%d",
		symbol, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+path, nil)
	if err != nil {
		return 0, &domain.GatewayError{Op: "get_daily_close", Err: err}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &domain.GatewayError{Op: "get_daily_close", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &domain.GatewayError{Op: "get_daily_close", Err: err}
	}
	if resp.StatusCode >= 400 {
		return 0, &domain.GatewayError{Op: "get_daily_close", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var result struct {
		Success bool `json:"success"`
		Result  []struct {
			Close float64 `json:"close"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, &domain.GatewayError{Op: "get_daily_close", Err: err}
	}
	if len(result.Result) == 0 {
		return 0, &domain.GatewayError{Op: "get_daily_close", Err: fmt.Errorf("no candle for %s", start.Format("2006-01-02"))}
	}

	return result.Result[0].Close, nil
}

// --- WebSocket ---

func (d *DeltaAdapter) OnPriceUpdate(callback func(symbol string, price float64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, callback)
}

// ConnectWS opens the public ticker stream. The read loop reconnects with a
// backoff until ctx is cancelled; REST polling covers the gaps.
func (d *DeltaAdapter) ConnectWS(ctx context.Context, symbols []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.wsConn != nil {
		return d.subscribe(symbols)
	}

	c, _, err := websocket.DefaultDialer.Dial(d.wsURL, nil)
	if err != nil {
		return &domain.GatewayError{Op: "connect_ws", Err: err}
	}
	d.wsConn = c

	go d.readLoop(ctx, symbols)

	return d.subscribe(symbols)
}

func (d *DeltaAdapter) subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	subMsg := map[string]interface{}{
		"type": "subscribe",
		"payload": map[string]interface{}{
			"channels": []map[string]interface{}{
				{"name": "v2/ticker", "symbols": symbols},
			},
		},
	}
	if err := d.wsConn.WriteJSON(subMsg); err != nil {
		return &domain.GatewayError{Op: "subscribe_ws", Err: err}
	}
	return nil
}

func (d *DeltaAdapter) readLoop(ctx context.Context, symbols []string) {
	for {
		d.mu.Lock()
		conn := d.wsConn
		d.mu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			d.logger.Warn("WS read failed, reconnecting", zap.Error(err))
			conn.Close()
			d.mu.Lock()
			d.wsConn = nil
			d.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			if err := d.ConnectWS(ctx, symbols); err != nil {
				d.logger.Warn("WS reconnect failed", zap.Error(err))
			}
			return
		}

		var event struct {
			Type      string `json:"type"`
			Symbol    string `json:"symbol"`
			SpotPrice string `json:"spot_price"`
			MarkPrice string `json:"mark_price"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.Type != "v2/ticker" {
			continue
		}

		raw := event.SpotPrice
		if raw == "" {
			raw = event.MarkPrice
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price <= 0 {
			continue
		}

		d.mu.Lock()
		callbacks := make([]func(string, float64), len(d.callbacks))
		copy(callbacks, d.callbacks)
		d.mu.Unlock()

		for _, cb := range callbacks {
			cb(event.Symbol, price)
		}
	}
}
