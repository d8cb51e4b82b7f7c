package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"quantdriver/logger"
	"quantdriver/model"
)

// BinanceClient adapts go-binance/v2's spot and USDT-M futures clients to
// the shared ExchangeClient capability set. Binance has no contract-size
// translation (its futures "quantity" is already base currency), so
// GetInstrument returns an identity Instrument.
type BinanceClient struct {
	spot    *binance.Client
	futures *futures.Client
}

func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	return &BinanceClient{
		spot:    binance.NewClient(apiKey, secretKey),
		futures: futures.NewClient(apiKey, secretKey),
	}
}

func (c *BinanceClient) Name() string           { return "binance" }
func (c *BinanceClient) MarketCategory() string  { return "Crypto" }

func (c *BinanceClient) GetInstrument(ctx context.Context, symbol string) (Instrument, error) {
	return Instrument{Symbol: symbol}, nil
}

func (c *BinanceClient) SetLeverage(ctx context.Context, symbol string, leverage int, _ model.Side) error {
	_, err := c.futures.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	if err != nil {
		return fmt.Errorf("binance_set_leverage_failed: %w", err)
	}
	return nil
}

func (c *BinanceClient) PlaceLimitOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	if req.MarketType == model.MarketSpot {
		return c.placeSpot(ctx, req, binance.OrderTypeLimit)
	}
	return c.placeFutures(ctx, req, futures.OrderTypeLimit)
}

func (c *BinanceClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	if req.MarketType == model.MarketSpot {
		return c.placeSpot(ctx, req, binance.OrderTypeMarket)
	}
	return c.placeFutures(ctx, req, futures.OrderTypeMarket)
}

func (c *BinanceClient) placeSpot(ctx context.Context, req OrderRequest, orderType binance.OrderType) (*FillResult, error) {
	side := binance.SideTypeBuy
	if req.Side == OrderSell {
		side = binance.SideTypeSell
	}
	svc := c.spot.NewCreateOrderService().Symbol(req.Symbol).Side(side).Type(orderType).
		Quantity(strconv.FormatFloat(req.Amount, 'f', -1, 64))
	if orderType == binance.OrderTypeLimit {
		svc = svc.TimeInForce(binance.TimeInForceTypeGTC).Price(strconv.FormatFloat(req.Price, 'f', -1, 64))
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	filled, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	return &FillResult{OrderID: strconv.FormatInt(resp.OrderID, 10), Filled: filled, Done: filled > 0}, nil
}

func (c *BinanceClient) placeFutures(ctx context.Context, req OrderRequest, orderType futures.OrderType) (*FillResult, error) {
	side := futures.SideTypeBuy
	if req.Side == OrderSell {
		side = futures.SideTypeSell
	}
	svc := c.futures.NewCreateOrderService().Symbol(req.Symbol).Side(side).Type(orderType).
		Quantity(strconv.FormatFloat(req.Amount, 'f', -1, 64)).ReduceOnly(req.ReduceOnly)
	if orderType == futures.OrderTypeLimit {
		svc = svc.TimeInForce(futures.TimeInForceTypeGTC).Price(strconv.FormatFloat(req.Price, 'f', -1, 64))
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	filled, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	return &FillResult{OrderID: strconv.FormatInt(resp.OrderID, 10), Filled: filled, Done: filled > 0}, nil
}

func (c *BinanceClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, _ := strconv.ParseInt(orderID, 10, 64)
	_, err := c.futures.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		logger.Warnf("binance cancel %s/%s best-effort failed: %v", symbol, orderID, err)
	}
	return nil
}

func (c *BinanceClient) WaitForFill(ctx context.Context, symbol, orderID string, timeout time.Duration) (*FillResult, error) {
	deadline := time.Now().Add(timeout)
	id, _ := strconv.ParseInt(orderID, 10, 64)
	for time.Now().Before(deadline) {
		o, err := c.futures.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		if err != nil {
			return nil, err
		}
		filled, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
		avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)
		switch o.Status {
		case futures.OrderStatusTypeFilled, futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired, futures.OrderStatusTypeRejected:
			fee, feeCcy := c.orderFee(ctx, symbol, id)
			return &FillResult{OrderID: orderID, Filled: filled, AvgPrice: avgPrice, Fee: fee, FeeCcy: feeCcy, Done: true}, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return &FillResult{OrderID: orderID, Done: false}, nil
}

// orderFee sums the commission across every account trade tied to orderID.
// Binance's order-status endpoint carries no fee field; the fee only shows
// up in the account trade history, one row per partial fill.
func (c *BinanceClient) orderFee(ctx context.Context, symbol string, orderID int64) (float64, string) {
	trades, err := c.futures.NewListAccountTradeService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil || len(trades) == 0 {
		return 0, ""
	}
	var total float64
	ccy := trades[0].CommissionAsset
	for _, t := range trades {
		fee, _ := strconv.ParseFloat(t.Commission, 64)
		total += fee
	}
	return total, ccy
}

func (c *BinanceClient) GetPositions(ctx context.Context, marketType model.MarketType) ([]PositionSnapshot, error) {
	if marketType == model.MarketSpot {
		return nil, nil
	}
	risks, err := c.futures.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, err
	}
	var out []PositionSnapshot
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		side := model.SideLong
		if amt < 0 {
			side = model.SideShort
			amt = -amt
		}
		out = append(out, PositionSnapshot{Symbol: r.Symbol, Side: side, Size: amt})
	}
	return out, nil
}
