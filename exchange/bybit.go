package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"quantdriver/model"
)

// BybitClient adapts the bybit.go.api v5 unified-trading client. Bybit
// linear-perp "qty" is already base currency, so no contract conversion
// is needed.
type BybitClient struct {
	client *bybit.Client
}

func NewBybitClient(apiKey, secretKey string) *BybitClient {
	return &BybitClient{client: bybit.NewBybitHttpClient(apiKey, secretKey, bybit.WithBaseURL(bybit.MAINNET))}
}

func (c *BybitClient) Name() string          { return "bybit" }
func (c *BybitClient) MarketCategory() string { return "Crypto" }

func (c *BybitClient) GetInstrument(ctx context.Context, symbol string) (Instrument, error) {
	return Instrument{Symbol: symbol}, nil
}

func (c *BybitClient) SetLeverage(ctx context.Context, symbol string, leverage int, _ model.Side) error {
	_, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  strconv.Itoa(leverage),
		"sellLeverage": strconv.Itoa(leverage),
	}).SetLeverage(ctx)
	if err != nil {
		return fmt.Errorf("bybit set leverage: %w", err)
	}
	return nil
}

func (c *BybitClient) placeOrder(ctx context.Context, req OrderRequest, orderType string) (*FillResult, error) {
	side := "Buy"
	if req.Side == OrderSell {
		side = "Sell"
	}
	params := map[string]interface{}{
		"category":   "linear",
		"symbol":     req.Symbol,
		"side":       side,
		"orderType":  orderType,
		"qty":        strconv.FormatFloat(req.Amount, 'f', -1, 64),
		"reduceOnly": req.ReduceOnly,
	}
	if orderType == "Limit" {
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		params["timeInForce"] = "GTC"
		if req.PostOnly {
			params["timeInForce"] = "PostOnly"
		}
	}
	if req.ClientOrderID != "" {
		params["orderLinkId"] = req.ClientOrderID
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, err
	}
	return &FillResult{OrderID: fmt.Sprintf("%v", resp.Result["orderId"])}, nil
}

func (c *BybitClient) PlaceLimitOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.placeOrder(ctx, req, "Limit")
}

func (c *BybitClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.placeOrder(ctx, req, "Market")
}

func (c *BybitClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": "linear", "symbol": symbol, "orderId": orderID,
	}).CancelOrder(ctx)
	return err
}

func (c *BybitClient) WaitForFill(ctx context.Context, symbol, orderID string, timeout time.Duration) (*FillResult, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
			"category": "linear", "symbol": symbol, "orderId": orderID,
		}).GetOrderHistory(ctx)
		if err == nil {
			if list, ok := resp.Result["list"].([]interface{}); ok && len(list) > 0 {
				if row, ok := list[0].(map[string]interface{}); ok {
					status, _ := row["orderStatus"].(string)
					filled, _ := strconv.ParseFloat(fmt.Sprintf("%v", row["cumExecQty"]), 64)
					avg, _ := strconv.ParseFloat(fmt.Sprintf("%v", row["avgPrice"]), 64)
					fee, _ := strconv.ParseFloat(fmt.Sprintf("%v", row["cumExecFee"]), 64)
					if status == "Filled" || status == "Cancelled" {
						return &FillResult{OrderID: orderID, Filled: filled, AvgPrice: avg, Fee: fee, FeeCcy: "USDT", Done: true}, nil
					}
				}
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return &FillResult{OrderID: orderID, Done: false}, nil
}

func (c *BybitClient) GetPositions(ctx context.Context, marketType model.MarketType) ([]PositionSnapshot, error) {
	if marketType == model.MarketSpot {
		return nil, nil
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": "linear", "settleCoin": "USDT",
	}).GetPositionInfo(ctx)
	if err != nil {
		return nil, err
	}
	var out []PositionSnapshot
	list, _ := resp.Result["list"].([]interface{})
	for _, item := range list {
		row, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		size, _ := strconv.ParseFloat(fmt.Sprintf("%v", row["size"]), 64)
		if size == 0 {
			continue
		}
		side := model.SideLong
		if s, _ := row["side"].(string); s == "Sell" {
			side = model.SideShort
		}
		out = append(out, PositionSnapshot{Symbol: fmt.Sprintf("%v", row["symbol"]), Side: side, Size: size})
	}
	return out, nil
}
