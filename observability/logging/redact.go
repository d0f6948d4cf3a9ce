package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of any sensitive log field.
const RedactedValue = "[REDACTED]"

// sensitiveKeys never reach a sink in clear text. The handler installed by
// SetupWithOptions rewrites them even when the caller forgot to mask them.
var sensitiveKeys = map[string]struct{}{
	"passphrase":    {},
	"password":      {},
	"bearer_secret": {},
	"secret":        {},
	"token":         {},
	"authorization": {},
	"private_key":   {},
	"keystore":      {},
}

// plainKeys are emitted verbatim by MaskField. Everything else it masks.
var plainKeys = map[string]struct{}{
	"service":        {},
	"env":            {},
	"error":          {},
	"run_id":         {},
	"call":           {},
	"endpoint":       {},
	"campaign_id":    {},
	"account":        {},
	"who":            {},
	"passphrase_env": {},
}

func normaliseKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

// IsSensitive reports whether values logged under key are always redacted.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normaliseKey(key)]
	return ok
}

// IsAllowlisted reports whether MaskField leaves values under key intact.
func IsAllowlisted(key string) bool {
	_, ok := plainKeys[normaliseKey(key)]
	return ok
}

// MaskField builds a string attribute for a value of unknown sensitivity.
// Empty values pass through so a missing setting stays visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr is the handler-level guard for sensitive keys.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup || !IsSensitive(attr.Key) {
		return attr
	}
	if strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
