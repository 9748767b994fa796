package utils

import (
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512.00 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1073741824, "1.00 GB"},
		{5368709120, "5.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestSanitizePayloadTruncatesDeepNesting(t *testing.T) {
	t.Parallel()

	payload := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": map[string]interface{}{
					"d": map[string]interface{}{
						"e": "too deep",
					},
				},
			},
		},
	}

	out := SanitizePayload(payload)
	a := out["a"].(map[string]interface{})
	b := a["b"].(map[string]interface{})
	c := b["c"].(map[string]interface{})
	if c["d"] != "[truncated]" {
		t.Errorf("depth 4 value = %v, want [truncated]", c["d"])
	}
}

func TestSanitizePayloadClampsKeysAndValues(t *testing.T) {
	t.Parallel()

	payload := map[string]interface{}{
		"long": strings.Repeat("x", 5000),
	}
	for i := 0; i < 100; i++ {
		payload["k"+FormatNumber(int64(i))] = i
	}

	out := SanitizePayload(payload)
	if len(out) > 50 {
		t.Errorf("sanitized map has %d keys, want at most 50", len(out))
	}
	if v, ok := out["long"].(string); ok && len(v) > 1024 {
		t.Errorf("string value kept %d bytes, want at most 1024", len(v))
	}

	arr := SanitizePayload(map[string]interface{}{
		"items": make([]interface{}, 200),
	})
	if items, ok := arr["items"].([]interface{}); ok && len(items) > 50 {
		t.Errorf("sanitized array has %d entries, want at most 50", len(items))
	}
}

func TestSanitizePayloadNil(t *testing.T) {
	t.Parallel()

	if out := SanitizePayload(nil); out == nil || len(out) != 0 {
		t.Errorf("SanitizePayload(nil) = %v, want empty map", out)
	}
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("TST", 3*3600)
	ts := time.Date(2025, 6, 15, 17, 42, 31, 999, loc)
	got := StartOfDay(ts)
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("StartOfDay changed location to %v", got.Location())
	}
}

func TestGenerateOrderIDUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateOrderID()
		if !strings.HasPrefix(id, "ORD-") {
			t.Fatalf("order ID %q missing prefix", id)
		}
		if seen[id] {
			t.Fatalf("duplicate order ID %q", id)
		}
		seen[id] = true
	}
}
