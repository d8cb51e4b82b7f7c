package worker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// clientOrderID derives a deterministic id per (strategy_id, pending_order_id,
// phase) so a Worker crash-and-retry never double-submits under a fresh
// random id. OKX requires <=32 alphanumeric characters; every venue gets
// the same hex digest truncated to fit the tightest limit.
func clientOrderID(strategyID string, pendingOrderID int64, phase string) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%s", strategyID, pendingOrderID, phase)))
	digest := hex.EncodeToString(h[:])
	id := "qd" + digest
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}
