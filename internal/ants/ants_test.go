package ants

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/unicode"

	"forager/internal/datasource"
	"forager/internal/evidence"
	"forager/internal/markup"
	"forager/internal/tagfmt"
	"forager/internal/testsupport"
)

const wlanXML = `<WLANProfile xmlns="http://www.microsoft.com/networking/WLAN/profile/v1">
<name>HomeNet</name><SSIDConfig><SSID><name>HomeNet</name></SSID></SSIDConfig>
<connectionMode>auto</connectionMode>
<MSM><security><authEncryption><authentication>WPA2PSK</authentication><encryption>AES</encryption></authEncryption>
<sharedKey><keyType>passPhrase</keyType><protected>false</protected><keyMaterial>hunter22</keyMaterial></sharedKey></security></MSM>
</WLANProfile>`

func knownMetFixture(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(0x0E)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(names)))
	for i, name := range names {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(1600000000))
		buf.Write(bytes.Repeat([]byte{byte(0x10 + i)}, 16))
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
		tags := []tagfmt.Tag{
			tagfmt.IDTag(tagfmt.TypeString, 0x01, name),
			tagfmt.IDTag(tagfmt.TypeUint32, 0x02, uint32(1000*(i+1))),
			tagfmt.IDTag(tagfmt.TypeUint32, 0x51, uint32(i+2)),
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(tags)))
		for _, tag := range tags {
			if err := tagfmt.Encode(&buf, tag); err != nil {
				t.Fatal(err)
			}
		}
	}
	return buf.Bytes()
}

func utf16Fixture(t *testing.T, s string) []byte {
	t.Helper()
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// buildVolume lays out one user profile with every supported artifact.
func buildVolume(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	user := filepath.Join(root, "Users", "alice", "AppData")

	chrome := filepath.Join(user, "Local", "Google", "Chrome", "User Data", "Default")
	testsupport.WriteSQLite(t, filepath.Join(chrome, "Cookies"),
		`CREATE TABLE cookies (creation_utc INTEGER, host_key TEXT, name TEXT, value TEXT, path TEXT,
			expires_utc INTEGER, is_secure INTEGER, is_httponly INTEGER, last_access_utc INTEGER, encrypted_value BLOB)`,
		`INSERT INTO cookies VALUES (13222310400000000, '.example.com', 'LBSRC', '"1.2.3.4 "', '/', 0, 0, 0, 0, NULL)`,
		`INSERT INTO cookies VALUES (13222310500000000, '.facebook.com', 'c_user', '', '/', 0, 1, 1, 0, X'7631300102')`,
	)
	testsupport.WriteSQLite(t, filepath.Join(chrome, "History"),
		`CREATE TABLE urls (id INTEGER PRIMARY KEY, url TEXT, title TEXT, visit_count INTEGER, typed_count INTEGER, last_visit_time INTEGER)`,
		`CREATE TABLE visits (id INTEGER PRIMARY KEY, url INTEGER, visit_time INTEGER)`,
		`INSERT INTO urls VALUES (1, 'https://www.google.com/search?q=emule+servers', 'emule servers', 1, 0, 13222310400000000)`,
		`INSERT INTO visits VALUES (1, 1, 13222310400000000)`,
	)

	testsupport.WriteSQLite(t, filepath.Join(user, "Roaming", "Skype", "live#3aalice", "main.db"),
		`CREATE TABLE Accounts (id INTEGER PRIMARY KEY, skypename TEXT, fullname TEXT, emails TEXT,
			phone_home TEXT, phone_office TEXT, phone_mobile TEXT, city TEXT, country TEXT, registration_timestamp INTEGER)`,
		`CREATE TABLE Contacts (id INTEGER PRIMARY KEY, skypename TEXT, fullname TEXT, displayname TEXT,
			phone_home TEXT, phone_office TEXT, phone_mobile TEXT, emails TEXT, birthday INTEGER,
			city TEXT, country TEXT, is_authorized INTEGER)`,
		`CREATE TABLE Messages (id INTEGER PRIMARY KEY, convo_id INTEGER, chatname TEXT, author TEXT,
			from_dispname TEXT, dialog_partner TEXT, timestamp INTEGER, edited_timestamp INTEGER,
			type INTEGER, sending_status INTEGER, body_xml TEXT)`,
		`CREATE TABLE Calls (id INTEGER PRIMARY KEY, begin_timestamp INTEGER, duration INTEGER,
			is_incoming INTEGER, host_identity TEXT, name TEXT, is_conference INTEGER)`,
		`CREATE TABLE CallMembers (id INTEGER PRIMARY KEY, call_db_id INTEGER, identity TEXT,
			dispname TEXT, call_duration INTEGER, status INTEGER)`,
		`CREATE TABLE Transfers (id INTEGER PRIMARY KEY, type INTEGER, partner_handle TEXT,
			partner_dispname TEXT, status INTEGER, starttime INTEGER, finishtime INTEGER,
			filepath TEXT, filename TEXT, filesize TEXT, bytestransferred TEXT)`,
		`INSERT INTO Accounts VALUES (1, 'live:alice', 'Alice', 'alice@example.com', NULL, NULL, NULL, NULL, NULL, 0)`,
		`INSERT INTO Contacts VALUES (1, 'bob', 'Bob B', NULL, '+4711', NULL, NULL, NULL, NULL, NULL, NULL, 1)`,
		`INSERT INTO Messages VALUES (1, 5, '#live:alice/$bob;1', 'bob', 'Bob B', 'live:alice', 1500000000, NULL, 61, NULL, '<b>hi</b> there')`,
		`INSERT INTO Messages VALUES (2, 6, NULL, 'live:alice', 'Alice', '+4799', 1500000100, NULL, 64, 2, 'on my way')`,
		`INSERT INTO Calls VALUES (1, 1500000200, 60, 1, 'bob', NULL, 0)`,
		`INSERT INTO CallMembers VALUES (1, 1, 'bob', 'Bob B', 60, 6)`,
		`INSERT INTO Transfers VALUES (1, 1, 'bob', 'Bob B', 8, 1500000300, 1500000310, 'C:\tmp\cv.pdf', 'cv.pdf', '512', '512')`,
	)

	emuleDir := filepath.Join(user, "Local", "eMule")
	testsupport.WriteBytes(t, filepath.Join(emuleDir, "config", "known.met"), knownMetFixture(t, "ubuntu.iso", "song.mp3"))
	testsupport.WriteBytes(t, filepath.Join(emuleDir, "config", "preferences.dat"), append([]byte{0x14}, bytes.Repeat([]byte{0xAB}, 16)...))
	testsupport.WriteBytes(t, filepath.Join(emuleDir, "config", "preferences.ini"), []byte("[eMule]\nNick=alice_p2p\n"))
	testsupport.WriteBytes(t, filepath.Join(emuleDir, "config", "AC_SearchStrings.dat"), utf16Fixture(t, "ubuntu\r\nmozart\r\n"))

	profiles := filepath.Join(root, "ProgramData", "Microsoft", "Wlansvc", "Profiles", "Interfaces", "{IFACE}")
	testsupport.WriteBytes(t, filepath.Join(profiles, "{A}.xml"), []byte(wlanXML))
	testsupport.WriteBytes(t, filepath.Join(profiles, "{B}.xml"), []byte("<WLANProfile><name>"))
	return root
}

func runFamily(t *testing.T, root string) *testItem {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.NewItem(t, store, "laptop", evidence.Datasource{Kind: evidence.DatasourceVolume, Path: root})
	vol, err := datasource.OpenVolume(root, nil)
	if err != nil {
		t.Fatalf("OpenVolume: %v", err)
	}
	for _, unit := range VolumeFamily(vol) {
		if err := unit.Run(context.Background(), item); err != nil {
			t.Fatalf("%s: %v", unit.Name(), err)
		}
	}
	return &testItem{t: t, item: item}
}

type testItem struct {
	t    *testing.T
	item evidence.Item
}

func (ti *testItem) records(evidenceType string) []*evidence.Record {
	ti.t.Helper()
	recs, err := ti.item.Evidences(context.Background(), evidenceType)
	if err != nil {
		ti.t.Fatalf("Evidences(%s): %v", evidenceType, err)
	}
	return recs
}

func TestVolumeFamilyOrder(t *testing.T) {
	vol, err := datasource.OpenVolume(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, unit := range VolumeFamily(vol) {
		names = append(names, unit.Name())
	}
	want := []string{
		ChromiumCookies, ChromiumHistory, SkypeAccounts, SkypeContacts, SkypeMessages,
		SkypeCalls, SkypeTransfers, EmuleAccounts, EmuleSharedFiles, EmuleSearches, WirelessNetworks,
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("family order mismatch (-want +got):\n%s", diff)
	}
}

func TestVolumeFamilyLoadsEveryArtifact(t *testing.T) {
	ti := runFamily(t, buildVolume(t))

	cookies := ti.records(evidence.TypeCookie)
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d", len(cookies))
	}
	if cookies[0].String("app_name") != "Google Chrome" || cookies[0].String("username") != "alice" {
		t.Fatalf("cookie provenance = %q / %q", cookies[0].String("app_name"), cookies[0].String("username"))
	}
	if !cookies[1].Bool("is_encrypted") {
		t.Fatal("encrypted cookie should be flagged")
	}

	visits := ti.records(evidence.TypeVisitedURL)
	if len(visits) != 1 || visits[0].Int("visit_count") != 1 {
		t.Fatalf("visits = %+v", visits)
	}

	accounts := ti.records(evidence.TypeUserAccount)
	ids := map[string]string{}
	for _, a := range accounts {
		ids[a.String("account_type")] = a.String("id") + "/" + a.String("name")
	}
	want := map[string]string{"Skype": "live:alice/Alice", "eMule": strings.Repeat("ab", 16) + "/alice_p2p"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("accounts mismatch (-want +got):\n%s", diff)
	}

	contacts := ti.records(evidence.TypeContact)
	if len(contacts) != 1 || contacts[0].String("account") != "live:alice" {
		t.Fatalf("contacts = %+v", contacts)
	}

	chats := ti.records(evidence.TypeChatMessage)
	if len(chats) != 1 {
		t.Fatalf("chat messages = %d", len(chats))
	}
	wantText := []markup.Element{markup.Start(markup.SpanBold), markup.Text("hi"), markup.End(markup.SpanBold), markup.Text(" there")}
	if diff := cmp.Diff(wantText, chats[0].RichText("text")); diff != "" {
		t.Fatalf("chat text mismatch (-want +got):\n%s", diff)
	}
	if chats[0].String("sender") != "Bob B (bob)" || chats[0].String("direction") != "incoming" {
		t.Fatalf("chat sender/direction = %q / %q", chats[0].String("sender"), chats[0].String("direction"))
	}
	if diff := cmp.Diff([]string{"live:alice"}, chats[0].Strings("recipients")); diff != "" {
		t.Fatalf("chat recipients mismatch (-want +got):\n%s", diff)
	}

	sms := ti.records(evidence.TypeSMS)
	if len(sms) != 1 || sms[0].String("direction") != "outgoing" || sms[0].String("plain_text") != "on my way" {
		t.Fatalf("sms = %+v", sms)
	}

	calls := ti.records(evidence.TypeCall)
	if len(calls) != 1 || calls[0].String("caller") != "Bob B (bob)" || calls[0].Int("duration") != 60 {
		t.Fatalf("calls = %+v", calls)
	}

	transfers := ti.records(evidence.TypeFileTransfer)
	if len(transfers) != 1 || transfers[0].String("from") != "Bob B (bob)" || transfers[0].String("to") != "live:alice" {
		t.Fatalf("transfers = %+v", transfers)
	}

	shared := ti.records(evidence.TypeSharedFile)
	if len(shared) != 2 {
		t.Fatalf("shared files = %d", len(shared))
	}
	if shared[0].String("filename") != "ubuntu.iso" || shared[0].Int("size") != 1000 || shared[0].Int("requests") != 2 {
		t.Fatalf("shared file = %v", shared[0].Names())
	}
	if shared[0].String("hash_ed2k") != strings.Repeat("10", 16) || shared[0].String("state") != "shared" {
		t.Fatalf("shared file hash/state = %q / %q", shared[0].String("hash_ed2k"), shared[0].String("state"))
	}
	if got := shared[0].Metadata.String("filename"); got != "ubuntu.iso" {
		t.Fatalf("tag metadata not carried: %q", got)
	}

	searches := ti.records(evidence.TypeSearchedText)
	if len(searches) != 2 || searches[1].String("text") != "mozart" {
		t.Fatalf("searches = %+v", searches)
	}

	networks := ti.records(evidence.TypeWirelessNetwork)
	if len(networks) != 1 {
		t.Fatalf("wireless networks = %d, the broken profile should be skipped", len(networks))
	}
	if networks[0].String("key") != "hunter22" || networks[0].Metadata.String("interface") != "{IFACE}" {
		t.Fatalf("network = %+v", networks[0])
	}
}

func TestDamagedKnownMetKeepsDecodedEntries(t *testing.T) {
	root := t.TempDir()
	data := knownMetFixture(t, "first.avi", "second.avi")
	testsupport.WriteBytes(t, filepath.Join(root, "Program Files", "eMule", "config", "known.met"), data[:len(data)-3])

	vol, err := datasource.OpenVolume(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.NewItem(t, store, "pc", evidence.Datasource{Kind: evidence.DatasourceVolume, Path: root})

	ant := newEmuleSharedFiles(vol)
	if err := ant.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	recs, err := item.Evidences(context.Background(), evidence.TypeSharedFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].String("filename") != "first.avi" || recs[0].String("username") != "" {
		t.Fatalf("records = %+v", recs)
	}
	if status := ant.Status(); !strings.Contains(status, "1 skipped") {
		t.Fatalf("status = %q", status)
	}
}

func TestRecordBuilderSkipsEmptyValues(t *testing.T) {
	rec, err := newRecord(evidence.TypeCookie).
		set("name", "sid").
		set("value", "").
		set("path", "   ").
		set("is_encrypted", false).
		meta("blank", "").
		meta("count", 0).
		build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]string{"name", "is_encrypted"}, rec.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"count"}, rec.Metadata.Keys()); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	if _, err := newRecord(evidence.TypeCookie).set("bogus", "x").set("name", "y").build(); err == nil {
		t.Fatal("expected unknown attribute error")
	}
	if _, err := newRecord("no-such-type").set("name", "x").build(); err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestPartyLabel(t *testing.T) {
	tests := []struct {
		p    party
		want string
	}{
		{party{ID: "bob", Name: "Bob"}, "Bob (bob)"},
		{party{ID: "bob", Name: "bob"}, "bob"},
		{party{ID: "bob"}, "bob"},
		{party{Name: "Bob"}, "Bob"},
		{party{}, ""},
	}
	for _, tt := range tests {
		if got := tt.p.label(); got != tt.want {
			t.Errorf("label(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestBrowserName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"Users/a/AppData/Local/Google/Chrome/User Data/Default/Cookies", "Google Chrome"},
		{"Users/a/AppData/Local/Microsoft/Edge/User Data/Default/Cookies", "Microsoft Edge"},
		{"Users/a/AppData/Local/BraveSoftware/Brave-Browser/User Data/Default/History", "Brave"},
		{"home/a/.config/chromium/Default/Cookies", "Chromium"},
		{"Users/a/Documents/Cookies", ""},
	}
	for _, tt := range tests {
		if got := browserName(tt.path); got != tt.want {
			t.Errorf("browserName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
