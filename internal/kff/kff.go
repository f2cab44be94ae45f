package kff

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"forager/internal/logging"
)

// Required header columns.
const (
	ColumnHashType = "hash_type"
	ColumnHash     = "hash"
	ColumnStatus   = "status"
)

type key struct {
	hashType string
	hash     string
}

// List maps (hash type, hash) pairs to status codes. It is safe for
// concurrent lookups.
type List struct {
	mu      sync.RWMutex
	entries map[key]string
	skipped int
}

// Load reads the hash list at path.
func Load(path string, logger *slog.Logger) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open kff list: %w", err)
	}
	defer f.Close()
	list, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("kff list %s: %w", path, err)
	}
	if logger != nil && list.skipped > 0 {
		logger.Warn("kff rows skipped",
			logging.String("path", path),
			logging.Int("skipped", list.skipped),
			logging.String(logging.FieldEventType, "kff_rows_skipped"),
			logging.String(logging.FieldErrorHint, "rows need a hash type, a hex hash and a status"),
		)
	}
	return list, nil
}

// Parse reads a hash list. Rows with an empty field or a non-hex hash are
// counted as skipped. Lines starting with '#' are comments.
func Parse(r io.Reader) (*List, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columns(header)
	if err != nil {
		return nil, err
	}

	list := &List{entries: make(map[key]string)}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		hashType, hash, status := cols.get(row)
		if hashType == "" || status == "" || !isHex(hash) {
			list.skipped++
			continue
		}
		list.entries[key{hashType, hash}] = status
	}
	return list, nil
}

type columnIndex struct {
	hashType, hash, status int
}

func columns(header []string) (columnIndex, error) {
	idx := columnIndex{-1, -1, -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case ColumnHashType:
			idx.hashType = i
		case ColumnHash:
			idx.hash = i
		case ColumnStatus:
			idx.status = i
		}
	}
	if idx.hashType < 0 || idx.hash < 0 || idx.status < 0 {
		return idx, fmt.Errorf("header %q must name %s, %s and %s", strings.Join(header, ","), ColumnHashType, ColumnHash, ColumnStatus)
	}
	return idx, nil
}

func (c columnIndex) get(row []string) (hashType, hash, status string) {
	field := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return normalize(field(c.hashType)), normalize(field(c.hash)), strings.ToUpper(field(c.status))
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func isHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Lookup returns the status recorded for hash. Hash type and hash are
// compared case-insensitively.
func (l *List) Lookup(hashType, hash string) (string, bool) {
	if l == nil {
		return "", false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	status, ok := l.entries[key{normalize(hashType), normalize(hash)}]
	return status, ok
}

// Len returns the number of hashes in the list.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Skipped returns the number of rows that could not be used.
func (l *List) Skipped() int {
	if l == nil {
		return 0
	}
	return l.skipped
}
