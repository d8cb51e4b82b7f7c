// Package entryfilter is the optional AI "does this open make sense"
// gate the Runner calls for open_* signals when a strategy's
// ai_model_config enables it.
package entryfilter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quantdriver/model"
)

// RejectReason enumerates every rejection the Runner persists as a
// notification.
type RejectReason string

const (
	ReasonAIHold             RejectReason = "ai_hold"
	ReasonDirectionMismatch  RejectReason = "direction_mismatch"
	ReasonAnalysisError      RejectReason = "analysis_error"
	ReasonMissingAIDecision  RejectReason = "missing_ai_decision"
)

// Decision is the raw analyzer verdict, mirroring the BUY/SELL/HOLD
// vocabulary the analyzer backend returns.
type Decision struct {
	Action     string `json:"action"` // "BUY", "SELL", "HOLD"
	Reasoning  string `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Filter is the capability the Runner calls; cfg is the strategy's
// ai_model_config.
type Filter interface {
	Allow(ctx context.Context, strategyID, symbol string, signalType model.SignalType, cfg map[string]interface{}) (allow bool, reason RejectReason, decision *Decision)
}

// HTTPFilter calls a single configurable analyzer endpoint and maps its
// verdict onto the open_long/open_short signal being considered.
type HTTPFilter struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewHTTPFilter(endpoint, apiKey string) *HTTPFilter {
	return &HTTPFilter{endpoint: endpoint, apiKey: apiKey, http: &http.Client{Timeout: 20 * time.Second}}
}

// Allow maps decision BUY<->open_long, SELL<->open_short; HOLD always
// rejects; a direction mismatch (BUY decision on an open_short signal, or
// vice versa) also rejects.
func (f *HTTPFilter) Allow(ctx context.Context, strategyID, symbol string, signalType model.SignalType, cfg map[string]interface{}) (bool, RejectReason, *Decision) {
	decision, err := f.analyze(ctx, strategyID, symbol, cfg)
	if err != nil {
		return false, ReasonAnalysisError, nil
	}
	if decision == nil || decision.Action == "" {
		return false, ReasonMissingAIDecision, nil
	}

	action := strings.ToUpper(decision.Action)
	if action == "HOLD" {
		return false, ReasonAIHold, decision
	}

	wantsLong := signalType == model.SignalOpenLong
	wantsShort := signalType == model.SignalOpenShort
	if (wantsLong && action != "BUY") || (wantsShort && action != "SELL") {
		return false, ReasonDirectionMismatch, decision
	}
	return true, "", decision
}

func (f *HTTPFilter) analyze(ctx context.Context, strategyID, symbol string, cfg map[string]interface{}) (*Decision, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"strategy_id": strategyID,
		"symbol":      symbol,
		"config":      cfg,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entry filter request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("entry filter returned status %d", resp.StatusCode)
	}
	var d Decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("entry filter response unparseable: %w", err)
	}
	return &d, nil
}
