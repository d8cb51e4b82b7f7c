// Package notifier is the channel fan-out boundary the Worker calls in
// signal mode and on live-mode dispatch outcomes.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quantdriver/logger"
	"quantdriver/model"
)

// ChannelResult is one channel's outcome.
type ChannelResult struct {
	OK    bool
	Error string
}

// Notifier fans a signal notification out to every configured channel and
// reports per-channel success/failure.
type Notifier interface {
	Notify(strategyID, name, symbol string, signalType model.SignalType, price, amount float64,
		direction model.TradeDirection, config map[string]interface{}, extra map[string]interface{}) (map[string]ChannelResult, error)
}

// MultiChannelNotifier dispatches to webhook and console channels found in
// config["channels"] (a list of {"type": "webhook", "url": "..."} or
// {"type": "console"} entries).
type MultiChannelNotifier struct {
	http *http.Client
}

func New() *MultiChannelNotifier {
	return &MultiChannelNotifier{http: &http.Client{Timeout: 10 * time.Second}}
}

func (n *MultiChannelNotifier) Notify(strategyID, name, symbol string, signalType model.SignalType, price, amount float64,
	direction model.TradeDirection, config map[string]interface{}, extra map[string]interface{}) (map[string]ChannelResult, error) {

	results := make(map[string]ChannelResult)
	channelsRaw, _ := config["channels"].([]interface{})
	if len(channelsRaw) == 0 {
		results["console"] = n.console(strategyID, name, symbol, signalType, price, amount, direction)
		recordAudit(strategyID, symbol, signalType, results)
		return results, nil
	}

	for _, raw := range channelsRaw {
		ch, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		chType, _ := ch["type"].(string)
		switch chType {
		case "webhook":
			url, _ := ch["url"].(string)
			results["webhook:"+url] = n.webhook(url, strategyID, name, symbol, signalType, price, amount, direction, extra)
		case "console":
			results["console"] = n.console(strategyID, name, symbol, signalType, price, amount, direction)
		default:
			results[chType] = ChannelResult{OK: false, Error: "unknown channel type"}
		}
	}
	recordAudit(strategyID, symbol, signalType, results)
	return results, nil
}

func (n *MultiChannelNotifier) console(strategyID, name, symbol string, signalType model.SignalType, price, amount float64, direction model.TradeDirection) ChannelResult {
	logger.Infof("[notify] strategy=%s name=%s symbol=%s signal=%s price=%.6f amount=%.6f direction=%s",
		strategyID, name, symbol, signalType, price, amount, direction)
	return ChannelResult{OK: true}
}

func (n *MultiChannelNotifier) webhook(url, strategyID, name, symbol string, signalType model.SignalType, price, amount float64,
	direction model.TradeDirection, extra map[string]interface{}) ChannelResult {
	if url == "" {
		return ChannelResult{OK: false, Error: "empty webhook url"}
	}
	payload := map[string]interface{}{
		"strategy_id": strategyID,
		"name":        name,
		"symbol":      symbol,
		"signal_type": signalType,
		"price":       price,
		"amount":      amount,
		"direction":   direction,
		"extra":       extra,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ChannelResult{OK: false, Error: err.Error()}
	}
	resp, err := n.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return ChannelResult{OK: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ChannelResult{OK: false, Error: fmt.Sprintf("webhook returned status %d", resp.StatusCode)}
	}
	return ChannelResult{OK: true}
}
