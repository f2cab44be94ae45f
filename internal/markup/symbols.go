package markup

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed symbols.yaml
var symbolsYAML []byte

// Symbols holds the emoticon and flag lookup tables. A Symbols value is
// read-only after construction and may be shared between parsers.
type Symbols struct {
	emoticons map[string]string
	flags     map[string]string
}

type symbolsFile struct {
	Emoticons map[string]string `yaml:"emoticons"`
	Flags     []string          `yaml:"flags"`
}

// ParseSymbols builds tables from YAML with an emoticons map and a flags
// list of two-letter country codes.
func ParseSymbols(data []byte) (*Symbols, error) {
	var file symbolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse symbols: %w", err)
	}
	s := &Symbols{
		emoticons: make(map[string]string, len(file.Emoticons)),
		flags:     make(map[string]string, len(file.Flags)),
	}
	for code, glyph := range file.Emoticons {
		s.emoticons[strings.ToLower(code)] = glyph
	}
	for _, code := range file.Flags {
		glyph, err := regionalIndicator(code)
		if err != nil {
			return nil, err
		}
		s.flags[strings.ToLower(code)] = glyph
	}
	return s, nil
}

// DefaultSymbols parses the embedded tables.
func DefaultSymbols() (*Symbols, error) {
	return ParseSymbols(symbolsYAML)
}

// Emoticon returns the glyph of an emoticon code.
func (s *Symbols) Emoticon(code string) (string, bool) {
	if s == nil {
		return "", false
	}
	g, ok := s.emoticons[strings.ToLower(strings.TrimSpace(code))]
	return g, ok
}

// Flag returns the glyph of a country code.
func (s *Symbols) Flag(code string) (string, bool) {
	if s == nil {
		return "", false
	}
	g, ok := s.flags[strings.ToLower(strings.TrimSpace(code))]
	return g, ok
}

func regionalIndicator(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'a' || code[0] > 'z' || code[1] < 'a' || code[1] > 'z' {
		return "", fmt.Errorf("flag code %q: expected two letters", code)
	}
	const base = 0x1F1E6
	return string([]rune{rune(base + int(code[0]-'a')), rune(base + int(code[1]-'a'))}), nil
}
