package marketdata

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quantdriver/logger"
)

// WSPriceSource is a venue-agnostic streaming PriceSource: it connects to
// a single ticker-stream websocket URL, keeps a per-symbol last-trade map
// fresh, and reconnects on drop. Ticker() is a non-blocking map read.
type WSPriceSource struct {
	url string

	mu     sync.RWMutex
	last   map[string]float64
	decode func([]byte, map[string]float64)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWSPriceSource starts the background read loop immediately. decode
// parses one inbound message into symbol->price updates, applied to dst.
func NewWSPriceSource(url string, decode func(msg []byte, dst map[string]float64)) *WSPriceSource {
	w := &WSPriceSource{
		url:    url,
		last:   make(map[string]float64),
		decode: decode,
		stopCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *WSPriceSource) run() {
	defer w.wg.Done()
	backoff := time.Second
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		if err := w.connectOnce(); err != nil {
			logger.Warnf("marketdata: websocket connection dropped: %v", err)
		}
		select {
		case <-w.stopCh:
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (w *WSPriceSource) connectOnce() error {
	conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	for {
		select {
		case <-w.stopCh:
			return nil
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		w.mu.Lock()
		w.decode(msg, w.last)
		w.mu.Unlock()
	}
}

func (w *WSPriceSource) Ticker(symbol string) (float64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.last[symbol]
	if !ok {
		return 0, fmt.Errorf("no price seen yet for %s", symbol)
	}
	return p, nil
}

func (w *WSPriceSource) Close() {
	close(w.stopCh)
	w.wg.Wait()
}

// DecodeSimpleTicker is a reusable decode func for the common
// {"symbol":"...", "price":"..."} single-ticker payload shape.
func DecodeSimpleTicker(msg []byte, dst map[string]float64) {
	var t struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(msg, &t); err != nil {
		return
	}
	var p float64
	if _, err := fmt.Sscanf(t.Price, "%f", &p); err == nil && t.Symbol != "" {
		dst[t.Symbol] = p
	}
}
