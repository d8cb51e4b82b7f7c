package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"quantdriver/model"
)

// BitgetClient is a direct REST adapter, the same doRequest+HMAC shape as
// OKXClient (Bitget's v2 mix-trade API uses an identical signing scheme).
type BitgetClient struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string
	http       *http.Client
}

func NewBitgetClient(apiKey, secretKey, passphrase string) *BitgetClient {
	return &BitgetClient{apiKey: apiKey, secretKey: secretKey, passphrase: passphrase,
		baseURL: "https://api.bitget.com", http: &http.Client{Timeout: 15 * time.Second}}
}

func (c *BitgetClient) Name() string          { return "bitget" }
func (c *BitgetClient) MarketCategory() string { return "Crypto" }

func (c *BitgetClient) GetInstrument(ctx context.Context, symbol string) (Instrument, error) {
	// Bitget USDT-M contracts quote size in base currency directly.
	return Instrument{Symbol: symbol}, nil
}

func (c *BitgetClient) sign(ts, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(ts + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *BitgetClient) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var bodyStr string
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyStr = string(b)
		reader = bytes.NewReader(b)
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("ACCESS-KEY", c.apiKey)
	req.Header.Set("ACCESS-SIGN", c.sign(ts, method, path, bodyStr))
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bitget request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bitget api error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *BitgetClient) SetLeverage(ctx context.Context, symbol string, leverage int, posSide model.Side) error {
	holdSide := "long"
	if posSide == model.SideShort {
		holdSide = "short"
	}
	_, err := c.doRequest(ctx, "POST", "/api/v2/mix/account/set-leverage", map[string]interface{}{
		"symbol":     symbol,
		"productType": "USDT-FUTURES",
		"leverage":   strconv.Itoa(leverage),
		"holdSide":   holdSide,
	})
	return err
}

func (c *BitgetClient) PlaceLimitOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.placeOrder(ctx, req, "limit")
}

func (c *BitgetClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	amount := req.Amount
	// Bitget spot market buys require quote-currency size.
	if req.MarketType == model.MarketSpot && req.Side == OrderBuy {
		amount = req.Amount * req.Price
	}
	req.Amount = amount
	return c.placeOrder(ctx, req, "market")
}

func (c *BitgetClient) placeOrder(ctx context.Context, req OrderRequest, ordType string) (*FillResult, error) {
	side := "buy"
	if req.Side == OrderSell {
		side = "sell"
	}
	path := "/api/v2/mix/order/place-order"
	payload := map[string]interface{}{
		"symbol":      req.Symbol,
		"productType": "USDT-FUTURES",
		"marginMode":  "crossed",
		"side":        side,
		"orderType":   ordType,
		"size":        strconv.FormatFloat(req.Amount, 'f', -1, 64),
		"reduceOnly":  strconv.FormatBool(req.ReduceOnly),
	}
	if req.MarketType == model.MarketSpot {
		path = "/api/v2/spot/trade/place-order"
	}
	if ordType == "limit" {
		payload["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}
	body, err := c.doRequest(ctx, "POST", path, payload)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("bitget response unparseable: %s", string(body))
	}
	if parsed.Code != "00000" {
		return nil, fmt.Errorf("%s", parsed.Msg)
	}
	return &FillResult{OrderID: parsed.Data.OrderID}, nil
}

func (c *BitgetClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := c.doRequest(ctx, "POST", "/api/v2/mix/order/cancel-order", map[string]interface{}{
		"symbol": symbol, "orderId": orderID, "productType": "USDT-FUTURES",
	})
	return err
}

func (c *BitgetClient) WaitForFill(ctx context.Context, symbol, orderID string, timeout time.Duration) (*FillResult, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		body, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v2/mix/order/detail?symbol=%s&orderId=%s&productType=USDT-FUTURES", symbol, orderID), nil)
		if err != nil {
			return nil, err
		}
		var parsed struct {
			Data struct {
				State      string `json:"state"`
				BaseVolume string `json:"baseVolume"`
				PriceAvg   string `json:"priceAvg"`
				Fee        string `json:"fee"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			filled, _ := strconv.ParseFloat(parsed.Data.BaseVolume, 64)
			avg, _ := strconv.ParseFloat(parsed.Data.PriceAvg, 64)
			// Bitget reports fee as a negative deduction in the order's
			// margin/quote coin, USDT for every mix/spot order this
			// adapter places.
			feeRaw, _ := strconv.ParseFloat(parsed.Data.Fee, 64)
			fee := -feeRaw
			if parsed.Data.State == "filled" || parsed.Data.State == "cancelled" {
				return &FillResult{OrderID: orderID, Filled: filled, AvgPrice: avg, Fee: fee, FeeCcy: "USDT", Done: true}, nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return &FillResult{OrderID: orderID, Done: false}, nil
}

func (c *BitgetClient) GetPositions(ctx context.Context, marketType model.MarketType) ([]PositionSnapshot, error) {
	if marketType == model.MarketSpot {
		return nil, nil
	}
	body, err := c.doRequest(ctx, "GET", "/api/v2/mix/position/all-position?productType=USDT-FUTURES", nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []struct {
			Symbol       string `json:"symbol"`
			HoldSide     string `json:"holdSide"`
			Total        string `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	var out []PositionSnapshot
	for _, p := range parsed.Data {
		qty, _ := strconv.ParseFloat(p.Total, 64)
		if qty == 0 {
			continue
		}
		side := model.SideLong
		if p.HoldSide == "short" {
			side = model.SideShort
		}
		out = append(out, PositionSnapshot{Symbol: p.Symbol, Side: side, Size: qty})
	}
	return out, nil
}
