package postprocess

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"forager/internal/casedb"
	"forager/internal/config"
	"forager/internal/evidence"
	"forager/internal/services"
	"forager/internal/stage"
	"forager/internal/testsupport"
)

func newItem(t *testing.T) *casedb.Item {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return testsupport.NewItem(t, store, "laptop", evidence.Datasource{Kind: evidence.DatasourceVolume, Path: t.TempDir()})
}

func cookie(t *testing.T, domain, name, value string) *evidence.Record {
	t.Helper()
	return testsupport.MustRecord(t, evidence.TypeCookie, map[string]any{
		"domain":           domain,
		"name":             name,
		"value":            value,
		"app_name":         "Google Chrome",
		"username":         "alice",
		"last_access_time": time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
	})
}

func records(t *testing.T, item evidence.Item, evidenceType string) []*evidence.Record {
	t.Helper()
	recs, err := item.Evidences(context.Background(), evidenceType)
	if err != nil {
		t.Fatalf("Evidences(%s): %v", evidenceType, err)
	}
	return recs
}

func TestIPAddressFromQuotedCookie(t *testing.T) {
	item := newItem(t)
	src := cookie(t, ".example.com", "LBSRC", `"1.2.3.4 "`)
	testsupport.AddRecords(t, item, src)

	if err := NewIPAddress(DefaultTables()).Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := records(t, item, evidence.TypeIPAddress)
	if len(got) != 1 {
		t.Fatalf("ip-address records = %d, want 1", len(got))
	}
	rec := got[0]
	if rec.String("address") != "1.2.3.4" || rec.String("address_type") != "IPv4" {
		t.Fatalf("address = %q (%s)", rec.String("address"), rec.String("address_type"))
	}
	if !rec.Time("timestamp").Equal(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", rec.Time("timestamp"))
	}
	meta := map[string]string{}
	for _, k := range []string{"source.evidence_type", "source.evidence_id", "source.name", "source.domain"} {
		meta[k] = rec.Metadata.String(k)
	}
	want := map[string]string{
		"source.evidence_type": evidence.TypeCookie,
		"source.evidence_id":   rec.Metadata.String("source.evidence_id"),
		"source.name":          "LBSRC",
		"source.domain":        ".example.com",
	}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Fatalf("provenance mismatch (-want +got):\n%s", diff)
	}
	if meta["source.evidence_id"] == "" || meta["source.evidence_id"] == "0" {
		t.Fatalf("source.evidence_id not set: %q", meta["source.evidence_id"])
	}
}

func TestIPDecoders(t *testing.T) {
	tests := []struct {
		decoder string
		value   string
		want    string
		wantErr bool
	}{
		{"quoted", `"1.2.3.4 "`, "1.2.3.4", false},
		{"quoted", " 10.0.0.7", "10.0.0.7", false},
		{"quoted", `"2001:db8::1"`, "2001:db8::1", false},
		{"quoted", "not-an-ip", "", true},
		{"f5-bigip", "1677830336.36895.0000", "192.168.1.100", false},
		{"f5-bigip", `"1677787402.20480.0000"`, "10.1.1.100", false},
		{"f5-bigip", "1677787402", "", true},
		{"f5-bigip", "abc.1.0000", "", true},
	}
	for _, tt := range tests {
		addr, err := ipDecoders[tt.decoder](tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s(%q) = %v, want error", tt.decoder, tt.value, addr)
			}
			continue
		}
		if err != nil || addr != netip.MustParseAddr(tt.want) {
			t.Errorf("%s(%q) = %v, %v; want %s", tt.decoder, tt.value, addr, err, tt.want)
		}
	}
}

func TestAccountDecoders(t *testing.T) {
	tests := []struct {
		decoder string
		value   string
		want    string
		wantErr bool
	}{
		{"numeric", "100004567", "100004567", false},
		{"numeric", `"42"`, "42", false},
		{"numeric", "12ab", "", true},
		{"numeric", "", "", true},
		{"twid", "u%3D1234567890", "1234567890", false},
		{"twid", `"u=77"`, "77", false},
		{"twid", "1234", "", true},
		{"msppre", "alice@example.com|1a2b3c|", "alice@example.com", false},
		{"msppre", "|deadbeef", "", true},
	}
	for _, tt := range tests {
		got, err := accountDecoders[tt.decoder](tt.value)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("%s(%q) = %q, %v; want %q (error %v)", tt.decoder, tt.value, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestUserAccountIsolatesBadRecords(t *testing.T) {
	item := newItem(t)
	encrypted := cookie(t, ".facebook.com", "c_user", "")
	if err := encrypted.Set("is_encrypted", true); err != nil {
		t.Fatal(err)
	}
	testsupport.AddRecords(t, item,
		cookie(t, ".facebook.com", "c_user", "not-a-number"),
		cookie(t, ".facebook.com", "c_user", "100004567"),
		cookie(t, ".twitter.com", "twid", "u%3D987"),
		cookie(t, ".example.com", "session", "xyz"),
		encrypted,
	)

	unit := NewUserAccount(DefaultTables())
	if err := unit.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := records(t, item, evidence.TypeUserAccount)
	var ids []string
	for _, rec := range got {
		ids = append(ids, rec.String("account_type")+":"+rec.String("id"))
	}
	if diff := cmp.Diff([]string{"Facebook:100004567", "Twitter:987"}, ids); diff != "" {
		t.Fatalf("accounts mismatch (-want +got):\n%s", diff)
	}
	if got[0].String("username") != "alice" || got[0].Metadata.String("source.name") != "c_user" {
		t.Fatalf("account provenance = %q / %q", got[0].String("username"), got[0].Metadata.String("source.name"))
	}
	d := unit.(*deriver)
	if d.Failed() != 1 {
		t.Fatalf("failed = %d, want 1", d.Failed())
	}
	if status := d.Status(); status != "5 read, 2 derived, 1 unreadable, 1 failed" {
		t.Fatalf("status = %q", status)
	}
}

func TestSearchedText(t *testing.T) {
	item := newItem(t)
	visit := func(u string) *evidence.Record {
		return testsupport.MustRecord(t, evidence.TypeVisitedURL, map[string]any{
			"url":       u,
			"app_name":  "Google Chrome",
			"username":  "alice",
			"timestamp": time.Date(2021, 5, 6, 7, 8, 9, 0, time.UTC),
		})
	}
	testsupport.AddRecords(t, item,
		visit("https://www.google.com/search?q=emule+servers&hl=en"),
		visit("https://www.google.co.uk/maps?q=oslo"),
		visit("https://duckduckgo.com/?q=skype%20logs"),
		visit("https://search.yahoo.com/search?p=wlan"),
		visit("https://www.bing.com/search?form=QBLH"),
		visit("ftp://google.com/search?q=nope"),
		visit("https://www.notgoogle.com/search?q=nope"),
		visit("https://www.youtube.com/results?search_query=%zz"),
	)
	unit := NewSearchedText(DefaultTables())
	if err := unit.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var got []string
	for _, rec := range records(t, item, evidence.TypeSearchedText) {
		got = append(got, rec.String("app_name")+":"+rec.String("text"))
	}
	want := []string{"Google:emule servers", "DuckDuckGo:skype logs", "Yahoo:wlan"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("searches mismatch (-want +got):\n%s", diff)
	}
	first := records(t, item, evidence.TypeSearchedText)[0]
	if first.Metadata.String("browser") != "Google Chrome" || first.String("username") != "alice" {
		t.Fatalf("browser/username = %q / %q", first.Metadata.String("browser"), first.String("username"))
	}
	if unit.(*deriver).Failed() != 1 {
		t.Fatalf("failed = %d, want the bad query counted", unit.(*deriver).Failed())
	}
}

func TestCookieRuleMatches(t *testing.T) {
	tests := []struct {
		rule         CookieRule
		domain, name string
		want         bool
	}{
		{CookieRule{Domain: "facebook.com", Name: "c_user"}, ".facebook.com", "c_user", true},
		{CookieRule{Domain: "facebook.com", Name: "c_user"}, "www.facebook.com", "c_user", true},
		{CookieRule{Domain: "facebook.com", Name: "c_user"}, "notfacebook.com", "c_user", false},
		{CookieRule{Domain: "facebook.com", Name: "c_user"}, ".facebook.com", "C_USER", false},
		{CookieRule{Domain: "*", Name: "BIGipServer*"}, "shop.example", "BIGipServerpool_web", true},
		{CookieRule{Domain: "*", Name: "BIGipServer*"}, "shop.example", "bigip", false},
	}
	for _, tt := range tests {
		if got := tt.rule.Matches(tt.domain, tt.name); got != tt.want {
			t.Errorf("%+v.Matches(%q, %q) = %v, want %v", tt.rule, tt.domain, tt.name, got, tt.want)
		}
	}
}

func TestParseTablesRejectsUnknownDecoder(t *testing.T) {
	_, err := ParseTables([]byte("ip_address:\n  - {domain: '*', name: X, decoder: rot13}\n"))
	if err == nil {
		t.Fatal("expected unknown decoder error")
	}
	if _, err := ParseTables(tablesYAML); err != nil {
		t.Fatalf("embedded tables: %v", err)
	}
}

func sharedFile(t *testing.T, name, ed2k string) *evidence.Record {
	t.Helper()
	return testsupport.MustRecord(t, evidence.TypeSharedFile, map[string]any{
		"filename":  name,
		"hash_ed2k": ed2k,
		"app_name":  "eMule",
	})
}

func TestKFFAlertTagsAlertHashes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithKFF(
		"ed2k,AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,A",
		"ed2k,bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb,N",
	))
	item := newItem(t)
	testsupport.AddRecords(t, item,
		sharedFile(t, "alert.avi", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		sharedFile(t, "known-good.avi", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		sharedFile(t, "unknown.avi", "cccccccccccccccccccccccccccccccc"),
	)

	unit := NewKFFAlert(cfg.KFF)
	if h := unit.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("health = %+v", h)
	}
	if err := unit.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := map[string][]string{}
	for _, rec := range records(t, item, evidence.TypeSharedFile) {
		got[rec.String("filename")] = rec.Tags()
	}
	want := map[string][]string{
		"alert.avi":      {TagAlert, TagAlertKFF},
		"known-good.avi": nil,
		"unknown.avi":    nil,
	}
	if diff := cmp.Diff(want, got, cmpEmptyAsNil); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
}

var cmpEmptyAsNil = cmp.Transformer("emptyAsNil", func(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
})

func TestKFFAlertDisabledIsNoop(t *testing.T) {
	item := newItem(t)
	testsupport.AddRecords(t, item, sharedFile(t, "a.avi", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	unit := NewKFFAlert(config.KFF{Enabled: false, Path: "/does/not/exist"})
	if err := unit.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h := unit.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("disabled unit should be healthy: %+v", h)
	}
}

func TestKFFAlertMissingList(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.csv")
	unit := NewKFFAlert(config.KFF{Enabled: true, Path: missing, AlertStatuses: []string{"A"}})
	if h := unit.HealthCheck(context.Background()); h.Ready {
		t.Fatal("expected unhealthy with missing list")
	}
	err := unit.Run(context.Background(), newItem(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Run error = %v, want configuration error", err)
	}
}

func TestChainFollowsDeclaredOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPostProcessors(config.PostProcessorSearchedText, config.PostProcessorIPAddress))
	var names []string
	for _, unit := range Chain(cfg) {
		names = append(names, unit.Name())
	}
	if diff := cmp.Diff([]string{config.PostProcessorIPAddress, config.PostProcessorSearchedText}, names); diff != "" {
		t.Fatalf("chain mismatch (-want +got):\n%s", diff)
	}
	if _, err := New("bogus", cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("New(bogus) error = %v", err)
	}
}

func TestChainOrderDoesNotChangeResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seed := func(item evidence.Item) {
		testsupport.AddRecords(t, item,
			cookie(t, ".example.com", "LBSRC", "10.1.2.3"),
			cookie(t, ".facebook.com", "c_user", "555"),
			testsupport.MustRecord(t, evidence.TypeVisitedURL, map[string]any{"url": "https://www.bing.com/search?q=wlan+keys"}),
		)
	}
	counts := func(units []stage.Unit) map[string]int {
		item := newItem(t)
		seed(item)
		for _, unit := range units {
			if err := unit.Run(context.Background(), item); err != nil {
				t.Fatalf("%s: %v", unit.Name(), err)
			}
		}
		out := map[string]int{}
		for _, typ := range evidence.Types() {
			if n := len(records(t, item, typ)); n > 0 {
				out[typ] = n
			}
		}
		return out
	}
	forward := Chain(cfg)
	backward := Chain(cfg)
	for i, j := 0, len(backward)-1; i < j; i, j = i+1, j-1 {
		backward[i], backward[j] = backward[j], backward[i]
	}
	if diff := cmp.Diff(counts(forward), counts(backward)); diff != "" {
		t.Fatalf("order changed the evidence set (-forward +backward):\n%s", diff)
	}
}
