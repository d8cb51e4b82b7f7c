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

// OKXClient is a direct REST adapter (OKX has no official Go SDK in the
// dependency pack) with the same doRequest shape as AlpacaClient (build
// body, set headers, issue request), plus HMAC-SHA256 request signing.
type OKXClient struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string
	http       *http.Client

	instruments map[string]Instrument
}

func NewOKXClient(apiKey, secretKey, passphrase string) *OKXClient {
	return &OKXClient{
		apiKey:      apiKey,
		secretKey:   secretKey,
		passphrase:  passphrase,
		baseURL:     "https://www.okx.com",
		http:        &http.Client{Timeout: 15 * time.Second},
		instruments: make(map[string]Instrument),
	}
}

func (c *OKXClient) Name() string          { return "okx" }
func (c *OKXClient) MarketCategory() string { return "Crypto" }

func (c *OKXClient) sign(ts, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(ts + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *OKXClient) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var bodyStr string
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyStr = string(b)
		reader = bytes.NewReader(b)
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, path, bodyStr))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("okx api error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// GetInstrument fetches and caches ctVal/minSz/lotSz for the swap
// instrument, the OKX-specific conversion metadata §4.2 requires.
func (c *OKXClient) GetInstrument(ctx context.Context, symbol string) (Instrument, error) {
	if inst, ok := c.instruments[symbol]; ok {
		return inst, nil
	}
	body, err := c.doRequest(ctx, "GET", "/api/v5/public/instruments?instType=SWAP&instId="+symbol, nil)
	if err != nil {
		return Instrument{}, err
	}
	var parsed struct {
		Data []struct {
			CtVal string `json:"ctVal"`
			MinSz string `json:"minSz"`
			LotSz string `json:"lotSz"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Data) == 0 {
		return Instrument{}, fmt.Errorf("okx instrument lookup failed for %s", symbol)
	}
	ctVal, _ := strconv.ParseFloat(parsed.Data[0].CtVal, 64)
	minSz, _ := strconv.ParseFloat(parsed.Data[0].MinSz, 64)
	lotSz, _ := strconv.ParseFloat(parsed.Data[0].LotSz, 64)
	inst := Instrument{Symbol: symbol, CtVal: ctVal, MinSz: minSz, LotSz: lotSz}
	c.instruments[symbol] = inst
	return inst, nil
}

func (c *OKXClient) SetLeverage(ctx context.Context, symbol string, leverage int, posSide model.Side) error {
	_, err := c.doRequest(ctx, "POST", "/api/v5/account/set-leverage", map[string]interface{}{
		"instId":  symbol,
		"lever":   strconv.Itoa(leverage),
		"mgnMode": "cross",
		"posSide": string(posSide),
	})
	return err
}

func (c *OKXClient) PlaceLimitOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.placeOrder(ctx, req, "limit")
}

func (c *OKXClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.placeOrder(ctx, req, "market")
}

func (c *OKXClient) placeOrder(ctx context.Context, req OrderRequest, ordType string) (*FillResult, error) {
	inst, err := c.GetInstrument(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	sz := inst.BaseToContracts(req.Amount)
	side := "buy"
	if req.Side == OrderSell {
		side = "sell"
	}
	payload := map[string]interface{}{
		"instId":  req.Symbol,
		"tdMode":  "cross",
		"side":    side,
		"ordType": ordType,
		"sz":      strconv.FormatFloat(sz, 'f', -1, 64),
		"reduceOnly": req.ReduceOnly,
	}
	if req.ClientOrderID != "" {
		payload["clOrdId"] = req.ClientOrderID
	}
	if ordType == "limit" {
		payload["px"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		if req.PostOnly {
			payload["ordType"] = "post_only"
		}
	}
	body, err := c.doRequest(ctx, "POST", "/api/v5/trade/order", payload)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []struct {
			OrdID string `json:"ordId"`
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Data) == 0 {
		return nil, fmt.Errorf("okx order response unparseable: %s", string(body))
	}
	if parsed.Data[0].SCode != "0" {
		return nil, fmt.Errorf("%s", parsed.Data[0].SMsg)
	}
	return &FillResult{OrderID: parsed.Data[0].OrdID}, nil
}

func (c *OKXClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := c.doRequest(ctx, "POST", "/api/v5/trade/cancel-order", map[string]interface{}{
		"instId": symbol,
		"ordId":  orderID,
	})
	return err
}

func (c *OKXClient) WaitForFill(ctx context.Context, symbol, orderID string, timeout time.Duration) (*FillResult, error) {
	inst, _ := c.GetInstrument(ctx, symbol)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		body, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v5/trade/order?instId=%s&ordId=%s", symbol, orderID), nil)
		if err != nil {
			return nil, err
		}
		var parsed struct {
			Data []struct {
				State    string `json:"state"`
				FillSz   string `json:"accFillSz"`
				AvgPx    string `json:"avgPx"`
				Fee      string `json:"fee"`
				FeeCcy   string `json:"feeCcy"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Data) > 0 {
			d := parsed.Data[0]
			fillContracts, _ := strconv.ParseFloat(d.FillSz, 64)
			avgPx, _ := strconv.ParseFloat(d.AvgPx, 64)
			filled := inst.ContractsToBase(fillContracts)
			// OKX reports fee as a negative deduction; store it as a
			// positive cost the way settlement expects to subtract it.
			feeRaw, _ := strconv.ParseFloat(d.Fee, 64)
			fee := -feeRaw
			if d.State == "filled" {
				return &FillResult{OrderID: orderID, Filled: filled, AvgPrice: avgPx, Fee: fee, FeeCcy: d.FeeCcy, Done: true}, nil
			}
			if d.State == "canceled" {
				return &FillResult{OrderID: orderID, Filled: filled, AvgPrice: avgPx, Fee: fee, FeeCcy: d.FeeCcy, Done: true}, nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return &FillResult{OrderID: orderID, Done: false}, nil
}

func (c *OKXClient) GetPositions(ctx context.Context, marketType model.MarketType) ([]PositionSnapshot, error) {
	if marketType == model.MarketSpot {
		return nil, nil
	}
	body, err := c.doRequest(ctx, "GET", "/api/v5/account/positions?instType=SWAP", nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []struct {
			InstID   string `json:"instId"`
			PosSide  string `json:"posSide"`
			Pos      string `json:"pos"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	var out []PositionSnapshot
	for _, p := range parsed.Data {
		qty, _ := strconv.ParseFloat(p.Pos, 64)
		if qty == 0 {
			continue
		}
		inst, _ := c.GetInstrument(ctx, p.InstID)
		side := model.SideLong
		if p.PosSide == "short" || qty < 0 {
			side = model.SideShort
		}
		if qty < 0 {
			qty = -qty
		}
		out = append(out, PositionSnapshot{Symbol: p.InstID, Side: side, Size: inst.ContractsToBase(qty)})
	}
	return out, nil
}
