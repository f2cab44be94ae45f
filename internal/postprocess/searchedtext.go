package postprocess

import (
	"fmt"
	"net/url"
	"strings"

	"forager/internal/config"
	"forager/internal/evidence"
	"forager/internal/stage"
)

// NewSearchedText derives searched-text records from visited search result
// pages.
func NewSearchedText(tables *Tables) stage.Unit {
	d := &deriver{base: base{name: config.PostProcessorSearchedText}, source: evidence.TypeVisitedURL}
	d.derive = func(src *evidence.Record) ([]*evidence.Record, error) {
		raw := src.String("url")
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("visited url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, nil
		}
		rule, ok := findSearchRule(tables.SearchedText, u)
		if !ok {
			return nil, nil
		}
		query, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return nil, fmt.Errorf("query of %s: %w", u.Redacted(), err)
		}
		text := strings.TrimSpace(query.Get(rule.Param))
		if text == "" {
			return nil, nil
		}
		rec, err := setAll(evidence.TypeSearchedText, map[string]any{
			"app_name":  rule.Engine,
			"text":      text,
			"timestamp": src.Time("timestamp"),
			"username":  src.String("username"),
		})
		if err != nil {
			return nil, err
		}
		if browser := src.String("app_name"); browser != "" {
			rec.Metadata.Set("browser", browser)
		}
		provenance(rec, src, "url", "title")
		return []*evidence.Record{rec}, nil
	}
	return d
}

func findSearchRule(rules []SearchRule, u *url.URL) (SearchRule, bool) {
	host := u.Hostname()
	for _, r := range rules {
		if r.Matches(host, u.Path) {
			return r, true
		}
	}
	return SearchRule{}, false
}
