package marketdata

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"quantdriver/indicator"
	"quantdriver/model"
)

// BinanceKlineSource is the default KlineSource: it fetches OHLCV history
// from Binance spot/futures REST endpoints, used whenever a strategy does
// not wire in a dedicated candle provider.
type BinanceKlineSource struct {
	client *binance.Client
}

func NewBinanceKlineSource(apiKey, secretKey string) *BinanceKlineSource {
	return &BinanceKlineSource{client: binance.NewClient(apiKey, secretKey)}
}

func (b *BinanceKlineSource) Fetch(marketType model.MarketType, symbol, timeframe string, limit int, beforeTS time.Time) ([]indicator.Bar, error) {
	svc := b.client.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(limit)
	if !beforeTS.IsZero() {
		svc = svc.EndTime(beforeTS.UnixMilli())
	}
	klines, err := svc.Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}
	bars := make([]indicator.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, indicator.Bar{
			OpenTime: time.UnixMilli(k.OpenTime),
			Open:     parseFloatOrZero(k.Open),
			High:     parseFloatOrZero(k.High),
			Low:      parseFloatOrZero(k.Low),
			Close:    parseFloatOrZero(k.Close),
			Volume:   parseFloatOrZero(k.Volume),
		})
	}
	return bars, nil
}

func parseFloatOrZero(s string) float64 {
	var f float64
	_, _ = fmt.Sscanf(s, "%f", &f)
	return f
}
