package exchange

import "fmt"

// VenueCredentials is the per-venue secret bundle read from a strategy's
// exchange_config JSON.
type VenueCredentials struct {
	Venue      string `json:"venue"`
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase,omitempty"`
	WalletAddr string `json:"wallet_addr,omitempty"`
	Testnet    bool   `json:"testnet,omitempty"`
}

// New builds the venue-specific ExchangeClient for a strategy's exchange
// configuration, the same kind of venue switch trader/auto_trader.go uses
// to pick a Trader implementation from config.Exchange.
func New(creds VenueCredentials) (ExchangeClient, error) {
	switch creds.Venue {
	case "binance":
		return NewBinanceClient(creds.APIKey, creds.SecretKey), nil
	case "bybit":
		return NewBybitClient(creds.APIKey, creds.SecretKey), nil
	case "okx":
		return NewOKXClient(creds.APIKey, creds.SecretKey, creds.Passphrase), nil
	case "bitget":
		return NewBitgetClient(creds.APIKey, creds.SecretKey, creds.Passphrase), nil
	case "hyperliquid":
		return NewHyperliquidClient(creds.SecretKey, creds.WalletAddr, creds.Testnet), nil
	case "lighter":
		return NewLighterClient(creds.SecretKey, creds.APIKey, 0, creds.WalletAddr, creds.Testnet)
	case "alpaca":
		return NewAlpacaClient(creds.APIKey, creds.SecretKey, creds.Testnet), nil
	case "ibkr":
		return NewUnsupportedClient("ibkr", "USStock", "no Go IBKR client available"), nil
	case "mt5":
		return NewUnsupportedClient("mt5", "Forex", "no Go MT5 client available"), nil
	default:
		return nil, fmt.Errorf("config_invalid: unknown exchange venue %q", creds.Venue)
	}
}
