package worker

import (
	"context"
	"time"

	"quantdriver/exchange"
	"quantdriver/model"
)

// fakeClient is a scripted exchange.ExchangeClient for exercising
// executeLive's maker/market phases without a network.
type fakeClient struct {
	name           string
	category       string
	instrument     exchange.Instrument
	makerFill      *exchange.FillResult
	makerErr       error
	marketFill     *exchange.FillResult
	marketErr      error
	setLeverageErr error
	positions      []exchange.PositionSnapshot
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) PlaceLimitOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.FillResult, error) {
	if f.makerErr != nil {
		return nil, f.makerErr
	}
	return f.makerFill, nil
}

func (f *fakeClient) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.FillResult, error) {
	if f.marketErr != nil {
		return nil, f.marketErr
	}
	return f.marketFill, nil
}

func (f *fakeClient) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }

func (f *fakeClient) WaitForFill(ctx context.Context, symbol, orderID string, timeout time.Duration) (*exchange.FillResult, error) {
	if orderID == "" {
		return nil, nil
	}
	if f.makerFill != nil && orderID == f.makerFill.OrderID {
		return f.makerFill, nil
	}
	if f.marketFill != nil && orderID == f.marketFill.OrderID {
		return f.marketFill, nil
	}
	return nil, nil
}

func (f *fakeClient) GetPositions(ctx context.Context, marketType model.MarketType) ([]exchange.PositionSnapshot, error) {
	return f.positions, nil
}

func (f *fakeClient) SetLeverage(ctx context.Context, symbol string, leverage int, posSide model.Side) error {
	return f.setLeverageErr
}

func (f *fakeClient) GetInstrument(ctx context.Context, symbol string) (exchange.Instrument, error) {
	return f.instrument, nil
}

func (f *fakeClient) MarketCategory() string { return f.category }
