package exchange

import (
	"context"
	"time"

	"quantdriver/model"
)

// UnsupportedClient always fails, used for venues §4.2 references
// conceptually (IBKR, MT5) but for which this pack carries no Go client.
// The registry builds it only for those two venues.
type UnsupportedClient struct {
	venue    string
	category string
	reason   string
}

func NewUnsupportedClient(venue, category, reason string) *UnsupportedClient {
	return &UnsupportedClient{venue: venue, category: category, reason: reason}
}

func (c *UnsupportedClient) Name() string           { return c.venue }
func (c *UnsupportedClient) MarketCategory() string { return c.category }

func (c *UnsupportedClient) err() error { return &ErrUnsupportedVenue{Venue: c.venue, Reason: c.reason} }

func (c *UnsupportedClient) PlaceLimitOrder(context.Context, OrderRequest) (*FillResult, error) { return nil, c.err() }
func (c *UnsupportedClient) PlaceMarketOrder(context.Context, OrderRequest) (*FillResult, error) { return nil, c.err() }
func (c *UnsupportedClient) CancelOrder(context.Context, string, string) error                   { return c.err() }
func (c *UnsupportedClient) WaitForFill(context.Context, string, string, time.Duration) (*FillResult, error) {
	return nil, c.err()
}
func (c *UnsupportedClient) GetPositions(context.Context, model.MarketType) ([]PositionSnapshot, error) {
	return nil, c.err()
}
func (c *UnsupportedClient) SetLeverage(context.Context, string, int, model.Side) error { return c.err() }
func (c *UnsupportedClient) GetInstrument(context.Context, string) (Instrument, error)  { return Instrument{}, c.err() }
