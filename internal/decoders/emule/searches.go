package emule

import (
	"fmt"
	"io"
	"strings"

	"forager/internal/bincursor"
)

// DecodeSearchStrings returns the search history from AC_SearchStrings.dat,
// a UTF-16LE text file with one search per line. Blank lines are dropped.
func DecodeSearchStrings(r io.Reader) ([]string, error) {
	c, err := bincursor.FromReader(r, 16<<20)
	if err != nil {
		return nil, fmt.Errorf("read search strings: %w", err)
	}
	raw, err := c.Bytes(c.Len())
	if err != nil {
		return nil, err
	}
	if len(raw)%2 == 1 {
		raw = raw[:len(raw)-1]
	}
	text, err := bincursor.DecodeUTF16LE(raw)
	if err != nil {
		return nil, fmt.Errorf("decode search strings: %w", err)
	}
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
