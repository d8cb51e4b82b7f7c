package runner

import (
	"strconv"
	"strings"
	"time"
)

// parseTimeframe converts a candle timeframe string ("1m", "5m", "1h", "4h",
// "1d") to a duration. Unknown units fall back to 1 hour.
func parseTimeframe(tf string) time.Duration {
	tf = strings.TrimSpace(strings.ToLower(tf))
	if tf == "" {
		return time.Hour
	}
	unit := tf[len(tf)-1]
	numPart := tf[:len(tf)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		n = 1
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// candleOpen rounds now down to the most recent timeframe boundary, used to
// stamp server-side exits so they share the per-candle dedup key with
// indicator-driven signals.
func candleOpen(now time.Time, tf time.Duration) time.Time {
	if tf <= 0 {
		return now.UTC()
	}
	return now.UTC().Truncate(tf)
}
