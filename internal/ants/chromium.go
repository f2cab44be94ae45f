package ants

import (
	"context"
	"strings"

	"forager/internal/datasource"
	"forager/internal/decoders/chromium"
	"forager/internal/evidence"
)

// browsers maps a path fragment to the browser it identifies, most specific
// first.
var browsers = []struct {
	fragment string
	name     string
}{
	{"microsoft/edge", "Microsoft Edge"},
	{"bravesoftware", "Brave"},
	{"opera software", "Opera"},
	{"vivaldi", "Vivaldi"},
	{"google/chrome", "Google Chrome"},
	{".config/google-chrome", "Google Chrome"},
	{"chromium", "Chromium"},
}

// browserName identifies the Chromium-based browser owning path, or "".
func browserName(p string) string {
	lower := strings.ToLower(p)
	for _, b := range browsers {
		if strings.Contains(lower, b.fragment) {
			return b.name
		}
	}
	return ""
}

func browserFile(name string) func(datasource.Entry) bool {
	return func(e datasource.Entry) bool {
		return e.Base() == name && browserName(e.Path) != ""
	}
}

func newChromiumCookies(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: ChromiumCookies}, vol: vol, match: browserFile("Cookies")}
	a.decode = func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		cookies, err := chromium.ReadCookies(ctx, vol.Abs(e.Path))
		if err != nil {
			return nil, err
		}
		app, user := browserName(e.Path), e.Username()
		var out []*evidence.Record
		for _, c := range cookies {
			out = a.keep(out, newRecord(evidence.TypeCookie).
				set("name", c.Name).
				set("value", c.Value).
				set("domain", c.Host).
				set("path", c.Path).
				set("creation_time", c.Created).
				set("last_access_time", c.LastAccess).
				set("expiration_time", c.Expires).
				set("is_encrypted", c.Encrypted).
				set("app_name", app).
				set("username", user).
				meta("secure", c.Secure).
				meta("http_only", c.HTTPOnly).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}

func newChromiumHistory(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: ChromiumHistory}, vol: vol, match: browserFile("History")}
	a.decode = func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		visits, err := chromium.ReadHistory(ctx, vol.Abs(e.Path))
		if err != nil {
			return nil, err
		}
		app, user := browserName(e.Path), e.Username()
		var out []*evidence.Record
		for _, v := range visits {
			out = a.keep(out, newRecord(evidence.TypeVisitedURL).
				set("url", v.URL).
				set("title", v.Title).
				set("timestamp", v.Time).
				set("visit_count", v.VisitCount).
				set("app_name", app).
				set("username", user).
				meta("typed", v.Typed).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}
