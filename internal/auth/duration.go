package auth

import (
	"strconv"
	"time"
)

// ParseTTL parses a token lifetime string with an s/m/h/d suffix, e.g.
// "15m" or "7d". Malformed or non-positive input falls back to def so a
// bad environment value can never disable expiry.
func ParseTTL(raw string, def time.Duration) time.Duration {
	if len(raw) < 2 {
		return def
	}
	value, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || value <= 0 {
		return def
	}
	var unit time.Duration
	switch raw[len(raw)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return def
	}
	return time.Duration(value) * unit
}
