package logging

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const (
	logTimestampLayout = "2006-01-02 15:04:05"
	// maxInlineBytes bounds raw byte values rendered inline; HexDump is the
	// way to log larger buffers.
	maxInlineBytes = 32
)

// formatTimestamp renders the record time in local time for operators.
func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}

// attrString renders v without quoting, for subject fields.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return plainValue(v)
}

// formatValue renders v for the key=value tail, quoting when needed.
// Multi-line strings such as hex dumps are left as-is.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	s := plainValue(v)
	if v.Kind() == slog.KindString && strings.Contains(s, "\n") {
		return s
	}
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		// Artifact timestamps are UTC; keep them that way in attributes.
		return v.Time().UTC().Format(time.RFC3339)
	}
	switch a := v.Any().(type) {
	case error:
		return a.Error()
	case []byte:
		if len(a) > maxInlineBytes {
			return hex.EncodeToString(a[:maxInlineBytes]) + "..."
		}
		return hex.EncodeToString(a)
	default:
		return fmt.Sprint(a)
	}
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
