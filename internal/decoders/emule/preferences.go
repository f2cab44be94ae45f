package emule

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"forager/internal/bincursor"
	"forager/internal/tagfmt"
)

// Preferences is the client identity stored in preferences.dat.
type Preferences struct {
	Version  uint8
	UserHash string
}

// DecodePreferences reads the version byte and the 16-byte user hash.
func DecodePreferences(r io.Reader) (Preferences, error) {
	c, err := bincursor.FromReader(r, 4096)
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences.dat: %w", err)
	}
	version, err := c.Uint8()
	if err != nil {
		return Preferences{}, fmt.Errorf("preferences.dat version: %w", err)
	}
	hash, err := c.Bytes(tagfmt.HashSize)
	if err != nil {
		return Preferences{}, fmt.Errorf("preferences.dat user hash: %w", err)
	}
	return Preferences{Version: version, UserHash: hex.EncodeToString(hash)}, nil
}

// ReadNick returns the Nick value of the [eMule] section in preferences.ini.
func ReadNick(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	section := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, ";"):
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			section = strings.ToLower(strings.Trim(line, "[]"))
			continue
		}
		if section != "emule" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "nick") {
			return tagfmt.RepairUTF8(strings.TrimSpace(value)), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read preferences.ini: %w", err)
	}
	return "", nil
}
