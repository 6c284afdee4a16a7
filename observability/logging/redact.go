package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys are stored lower-cased.
var safeKeys = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"component":  {},
	"operation":  {},
	"method":     {},
	"requestid":  {},
	"campaignid": {},
	"kind":       {},
}

func isSafeKey(key string) bool {
	_, ok := safeKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns key=value when key is known to carry no secrets and
// key=[REDACTED] otherwise. Empty values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || isSafeKey(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
