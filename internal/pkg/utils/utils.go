package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateEntryID generates a UUID v4 string for ledger entries.
func GenerateEntryID() string {
	return uuid.New().String()
}

// GenerateOrderID generates a unique order ID for payment transactions.
func GenerateOrderID() string {
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), RandomHex(4))
}

// RandomHex generates a random hex string of n bytes.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ParseInt64 parses a decimal string, returning 0 on failure.
func ParseInt64(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormatBytes converts bytes to human-readable format.
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", size, units[i])
}

// FormatNumber renders n with thousands separators for operator messages.
func FormatNumber(n int64) string {
	if n == 0 {
		return "0"
	}
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	str := strconv.FormatInt(n, 10)
	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return sign + result
}

// Sanitization bounds for externally-sourced payloads persisted into audit
// metadata.
const (
	maxPayloadDepth     = 4
	maxPayloadKeys      = 50
	maxPayloadValueSize = 1024
)

// SanitizePayload clamps an untrusted gateway payload before it is stored:
// nesting deeper than maxPayloadDepth is dropped, maps and arrays are
// truncated to maxPayloadKeys entries, and string values are cut at
// maxPayloadValueSize bytes.
func SanitizePayload(payload map[string]interface{}) map[string]interface{} {
	out, _ := sanitizeValue(payload, 0).(map[string]interface{})
	if out == nil {
		out = map[string]interface{}{}
	}
	return out
}

func sanitizeValue(v interface{}, depth int) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if depth >= maxPayloadDepth {
			return "[truncated]"
		}
		out := make(map[string]interface{}, len(val))
		n := 0
		for k, inner := range val {
			if n >= maxPayloadKeys {
				break
			}
			out[truncateString(k)] = sanitizeValue(inner, depth+1)
			n++
		}
		return out
	case []interface{}:
		if depth >= maxPayloadDepth {
			return "[truncated]"
		}
		limit := len(val)
		if limit > maxPayloadKeys {
			limit = maxPayloadKeys
		}
		out := make([]interface{}, 0, limit)
		for _, inner := range val[:limit] {
			out = append(out, sanitizeValue(inner, depth+1))
		}
		return out
	case string:
		return truncateString(val)
	case nil, bool, float64, int, int64:
		return val
	default:
		return truncateString(fmt.Sprintf("%v", val))
	}
}

func truncateString(s string) string {
	if len(s) > maxPayloadValueSize {
		return s[:maxPayloadValueSize]
	}
	return s
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
