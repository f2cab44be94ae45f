package postprocess

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// CookieRule selects cookies by domain and name and names the decoder for
// their value.
type CookieRule struct {
	Domain  string `yaml:"domain"`
	Name    string `yaml:"name"`
	Service string `yaml:"service"`
	Decoder string `yaml:"decoder"`
}

// Matches reports whether the rule applies to a cookie. Cookie domains may
// carry a leading dot.
func (r CookieRule) Matches(domain, name string) bool {
	if prefix, ok := strings.CutSuffix(r.Name, "*"); ok {
		if !strings.HasPrefix(name, prefix) {
			return false
		}
	} else if name != r.Name {
		return false
	}
	if r.Domain == "*" {
		return true
	}
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
	want := strings.ToLower(r.Domain)
	return domain == want || strings.HasSuffix(domain, "."+want)
}

// SearchRule recognizes a search engine result URL.
type SearchRule struct {
	Host   string `yaml:"host"`
	Path   string `yaml:"path"`
	Param  string `yaml:"param"`
	Engine string `yaml:"engine"`
}

// Matches reports whether host and urlPath belong to the rule's engine.
func (r SearchRule) Matches(host, urlPath string) bool {
	if !strings.Contains("."+strings.ToLower(host)+".", "."+strings.ToLower(r.Host)+".") {
		return false
	}
	if r.Path == "" {
		return true
	}
	return urlPath == r.Path || strings.HasPrefix(urlPath, strings.TrimSuffix(r.Path, "/")+"/")
}

// Tables holds the lookup tables of the derivation post-processors.
type Tables struct {
	IPAddress    []CookieRule `yaml:"ip_address"`
	UserAccount  []CookieRule `yaml:"user_account"`
	SearchedText []SearchRule `yaml:"searched_text"`
}

// ParseTables decodes tables and checks every decoder name is known.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse post-processor tables: %w", err)
	}
	for _, r := range t.IPAddress {
		if _, ok := ipDecoders[r.Decoder]; !ok {
			return nil, fmt.Errorf("ip_address rule %s/%s: unknown decoder %q", r.Domain, r.Name, r.Decoder)
		}
	}
	for _, r := range t.UserAccount {
		if _, ok := accountDecoders[r.Decoder]; !ok {
			return nil, fmt.Errorf("user_account rule %s/%s: unknown decoder %q", r.Domain, r.Name, r.Decoder)
		}
		if r.Service == "" {
			return nil, fmt.Errorf("user_account rule %s/%s: service is required", r.Domain, r.Name)
		}
	}
	for _, r := range t.SearchedText {
		if r.Host == "" || r.Param == "" || r.Engine == "" {
			return nil, fmt.Errorf("searched_text rule %+v: host, param and engine are required", r)
		}
	}
	return &t, nil
}

var defaultTables = sync.OnceValues(func() (*Tables, error) {
	return ParseTables(tablesYAML)
})

// DefaultTables returns the embedded tables.
func DefaultTables() *Tables {
	t, err := defaultTables()
	if err != nil {
		panic(err)
	}
	return t
}

func findCookieRule(rules []CookieRule, domain, name string) (CookieRule, bool) {
	for _, r := range rules {
		if r.Matches(domain, name) {
			return r, true
		}
	}
	return CookieRule{}, false
}
