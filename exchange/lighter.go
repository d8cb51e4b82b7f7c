package exchange

import (
	"context"
	"fmt"
	"time"

	lighter "github.com/elliottech/lighter-go"
	"github.com/ethereum/go-ethereum/crypto"

	"quantdriver/model"
)

// LighterClient adapts lighter-go, the zk-L2 perp venue. Orders are
// signed locally with an ECDSA key (go-ethereum's secp256k1 primitives)
// before being submitted to the sequencer, rather than HMAC-signed over
// HTTP like the centralized venues.
type LighterClient struct {
	signer *lighter.TxClient
	apiKeyIndex int
}

func NewLighterClient(l1PrivateKeyHex string, apiKeyPrivateKeyHex string, apiKeyIndex int, walletAddr string, testnet bool) (*LighterClient, error) {
	priv, err := crypto.HexToECDSA(trimHexPrefix(l1PrivateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("lighter: invalid L1 private key: %w", err)
	}
	host := lighter.MainnetHost
	if testnet {
		host = lighter.TestnetHost
	}
	tx, err := lighter.NewTxClient(host, apiKeyPrivateKeyHex, apiKeyIndex, walletAddr, priv)
	if err != nil {
		return nil, fmt.Errorf("lighter: client init: %w", err)
	}
	return &LighterClient{signer: tx, apiKeyIndex: apiKeyIndex}, nil
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func (c *LighterClient) Name() string          { return "lighter" }
func (c *LighterClient) MarketCategory() string { return "Crypto" }

func (c *LighterClient) GetInstrument(ctx context.Context, symbol string) (Instrument, error) {
	meta, err := c.signer.GetMarketMetadata(ctx, symbol)
	if err != nil {
		return Instrument{}, err
	}
	return Instrument{Symbol: symbol, MinSz: meta.MinBaseAmount, LotSz: meta.BaseAmountStep}, nil
}

func (c *LighterClient) SetLeverage(ctx context.Context, symbol string, leverage int, _ model.Side) error {
	// Best-effort: margin mode/leverage is set once per market, not per order.
	return c.signer.UpdateMarginMode(ctx, symbol, leverage, lighter.MarginModeCross)
}

func (c *LighterClient) order(ctx context.Context, req OrderRequest, isMarket bool) (*FillResult, error) {
	resp, err := c.signer.CreateOrder(ctx, lighter.CreateOrderParams{
		Market:     req.Symbol,
		IsAsk:      req.Side == OrderSell,
		BaseAmount: req.Amount,
		Price:      req.Price,
		IsMarket:   isMarket,
		ReduceOnly: req.ReduceOnly,
	})
	if err != nil {
		return nil, err
	}
	return &FillResult{OrderID: resp.OrderIndex}, nil
}

func (c *LighterClient) PlaceLimitOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.order(ctx, req, false)
}

func (c *LighterClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*FillResult, error) {
	return c.order(ctx, req, true)
}

func (c *LighterClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return c.signer.CancelOrder(ctx, symbol, orderID)
}

func (c *LighterClient) WaitForFill(ctx context.Context, symbol, orderID string, timeout time.Duration) (*FillResult, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		// The zk-L2 order-status lookup doesn't carry a fee figure; Lighter
		// fees are deducted at settlement on-chain, not surfaced here. Fee
		// is left zero for this venue rather than guessed.
		st, err := c.signer.GetOrderStatus(ctx, symbol, orderID)
		if err == nil && st.Filled >= st.Requested {
			return &FillResult{OrderID: orderID, Filled: st.Filled, AvgPrice: st.AvgPrice, Done: true}, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return &FillResult{OrderID: orderID, Done: false}, nil
}

func (c *LighterClient) GetPositions(ctx context.Context, marketType model.MarketType) ([]PositionSnapshot, error) {
	if marketType == model.MarketSpot {
		return nil, nil
	}
	positions, err := c.signer.GetAccountPositions(ctx)
	if err != nil {
		return nil, err
	}
	var out []PositionSnapshot
	for _, p := range positions {
		if p.BaseAmount == 0 {
			continue
		}
		side := model.SideLong
		size := p.BaseAmount
		if size < 0 {
			side = model.SideShort
			size = -size
		}
		out = append(out, PositionSnapshot{Symbol: p.Market, Side: side, Size: size})
	}
	return out, nil
}
