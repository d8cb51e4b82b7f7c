package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"quantdriver/model"
)

// AlpacaClient is the USStock-category venue adapter: header key/secret
// auth (no HMAC signing), same doRequest shape as the rest of this
// package's REST adapters, adapted for whole/fractional share rules.
type AlpacaClient struct {
	apiKey    string
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewAlpacaClient(apiKey, secretKey string, paper bool) *AlpacaClient {
	baseURL := "https://api.alpaca.markets"
	if paper {
		baseURL = "https://paper-api.alpaca.markets"
	}
	return &AlpacaClient{apiKey: apiKey, secretKey: secretKey, baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *AlpacaClient) Name() string          { return "alpaca" }
func (c *AlpacaClient) MarketCategory() string { return "USStock" }

func (c *AlpacaClient) GetInstrument(ctx context.Context, symbol string) (Instrument, error) {
	return Instrument{Symbol: symbol}, nil // equities have no contract-size translation
}

func (c *AlpacaClient) SetLeverage(ctx context.Context, symbol string, leverage int, _ model.Side) error {
	return nil // Alpaca margin is account-level, not settable per order
}

func (c *AlpacaClient) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("alpaca api error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *AlpacaClient) placeOrder(ctx context.Context, req OrderRequest, orderType string) (*FillResult, error) {
	qty := req.Amount
	// Alpaca disallows fractional shares on short sells.
	if req.Side == OrderSell && req.ReduceOnly == false {
		qty = math.Floor(qty)
		if qty < 1 {
			return nil, fmt.Errorf("min_notional: cannot trade less than 1 share (requested %.4f)", req.Amount)
		}
	}
	order := map[string]interface{}{
		"symbol":        req.Symbol,
		"qty":           strconv.FormatFloat(qty, 'f', -1, 64),
		"side":          string(req.Side),
		"type":          orderType,
		"time_in_force": "day",
	}
	if orderType == "limit" {
		order["limit_price"] = strconv.FormatFloat(req.Price, 'f', 2, 64)
	}
	if req.ClientOrderID != "" {
		order["client_order_id"] = req.ClientOrderID
	}
	resp, err := c.doRequest(ctx, "POST", "/v2/orders", order)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp, &parsed)
	return &FillResult{OrderID: parsed.ID}, nil
}

func (c *AlpacaClient) PlaceLimitOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.placeOrder(ctx, req, "limit")
}

func (c *AlpacaClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.placeOrder(ctx, req, "market")
}

func (c *AlpacaClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := c.doRequest(ctx, "DELETE", "/v2/orders/"+orderID, nil)
	return err
}

func (c *AlpacaClient) WaitForFill(ctx context.Context, symbol, orderID string, timeout time.Duration) (*FillResult, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := c.doRequest(ctx, "GET", "/v2/orders/"+orderID, nil)
		if err != nil {
			return nil, err
		}
		var order struct {
			Status       string `json:"status"`
			FilledQty    string `json:"filled_qty"`
			FilledAvgPx  string `json:"filled_avg_price"`
		}
		_ = json.Unmarshal(resp, &order)
		filled, _ := strconv.ParseFloat(order.FilledQty, 64)
		avg, _ := strconv.ParseFloat(order.FilledAvgPx, 64)
		if order.Status == "filled" {
			return &FillResult{OrderID: orderID, Filled: filled, AvgPrice: avg, Done: true}, nil
		}
		if order.Status == "canceled" || order.Status == "rejected" {
			return &FillResult{OrderID: orderID, Filled: filled, AvgPrice: avg, Done: true}, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return &FillResult{OrderID: orderID, Done: false}, nil
}

func (c *AlpacaClient) GetPositions(ctx context.Context, marketType model.MarketType) ([]PositionSnapshot, error) {
	resp, err := c.doRequest(ctx, "GET", "/v2/positions", nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol string `json:"symbol"`
		Qty    string `json:"qty"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}
	var out []PositionSnapshot
	for _, p := range raw {
		qty, _ := strconv.ParseFloat(p.Qty, 64)
		if qty == 0 {
			continue
		}
		side := model.SideLong
		if qty < 0 {
			side = model.SideShort
			qty = -qty
		}
		out = append(out, PositionSnapshot{Symbol: p.Symbol, Side: side, Size: qty})
	}
	return out, nil
}
