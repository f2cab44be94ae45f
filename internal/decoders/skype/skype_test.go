package skype

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"forager/internal/testsupport"
)

var profileSchema = []string{
	`CREATE TABLE DbMeta (key TEXT, value TEXT)`,
	`CREATE TABLE Accounts (id INTEGER PRIMARY KEY, skypename TEXT, fullname TEXT, emails TEXT,
		phone_home TEXT, phone_office TEXT, phone_mobile TEXT, city TEXT, country TEXT,
		registration_timestamp INTEGER)`,
	`CREATE TABLE Contacts (id INTEGER PRIMARY KEY, skypename TEXT, fullname TEXT, displayname TEXT,
		phone_home TEXT, phone_office TEXT, phone_mobile TEXT, emails TEXT, birthday INTEGER,
		city TEXT, country TEXT, is_authorized INTEGER)`,
	`CREATE TABLE Conversations (id INTEGER PRIMARY KEY, identity TEXT, displayname TEXT)`,
	`CREATE TABLE Participants (id INTEGER PRIMARY KEY, convo_id INTEGER, identity TEXT)`,
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
}

func writeProfile(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "live#3aalice", "main.db")
	testsupport.WriteSQLite(t, path, append(append([]string{}, profileSchema...), rows...)...)
	return path
}

func openProfile(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAccountsAndOwner(t *testing.T) {
	path := writeProfile(t,
		`INSERT INTO DbMeta VALUES ('SchemaVersion', '240')`,
		`INSERT INTO Accounts VALUES (1, 'live:alice', 'Alice Example', 'alice@example.com bob@example.org',
			NULL, '', '+1 555 0100', 'Oslo', 'no', 1300000000)`,
	)
	db := openProfile(t, path)
	ctx := context.Background()

	if db.SchemaVersion() != 240 {
		t.Fatalf("schema version = %d", db.SchemaVersion())
	}
	accounts, err := db.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	want := []Account{{
		SkypeName: "live:alice",
		FullName:  "Alice Example",
		Emails:    []string{"alice@example.com", "bob@example.org"},
		Phones:    []string{"+1 555 0100"},
		City:      "Oslo",
		Country:   "no",
		Created:   time.Unix(1300000000, 0).UTC(),
	}}
	if diff := cmp.Diff(want, accounts); diff != "" {
		t.Fatalf("accounts mismatch (-want +got):\n%s", diff)
	}
	owner, err := db.Owner(ctx)
	if err != nil || owner != "live:alice" {
		t.Fatalf("owner = %q, %v", owner, err)
	}
}

func TestContacts(t *testing.T) {
	path := writeProfile(t,
		`INSERT INTO Contacts VALUES (1, 'bob', 'Bob Builder', NULL, '+47 1', NULL, NULL, 'bob@example.com', 19800131, NULL, 'no', 1)`,
		`INSERT INTO Contacts VALUES (2, 'carol', NULL, 'Caz', NULL, NULL, NULL, NULL, NULL, NULL, NULL, 0)`,
	)
	contacts, err := openProfile(t, path).Contacts(context.Background())
	if err != nil {
		t.Fatalf("Contacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("contacts = %d", len(contacts))
	}
	if contacts[0].Birthday != "1980-01-31" || !contacts[0].Authorized || contacts[0].Name() != "Bob Builder" {
		t.Fatalf("first contact = %+v", contacts[0])
	}
	if contacts[1].Name() != "Caz" || contacts[1].Birthday != "" {
		t.Fatalf("second contact = %+v", contacts[1])
	}
}

func TestMessages(t *testing.T) {
	path := writeProfile(t,
		`INSERT INTO Accounts (id, skypename) VALUES (1, 'alice')`,
		`INSERT INTO Conversations VALUES (10, '#alice/$bob;abc', 'chat')`,
		`INSERT INTO Participants VALUES (1, 10, 'alice'), (2, 10, 'bob'), (3, 10, 'carol')`,
		`INSERT INTO Messages VALUES (1, 10, '#alice/$bob;abc', 'bob', 'Bob', NULL, 1500000100, NULL, 61, NULL, '<b>hi</b>')`,
		`INSERT INTO Messages VALUES (2, 10, '#alice/$bob;abc', 'alice', 'Alice', NULL, 1500000000, 1500000500, 61, 1, 'first')`,
		`INSERT INTO Messages VALUES (3, 11, NULL, 'alice', 'Alice', 'dave', 1500000200, NULL, 64, 2, 'sms')`,
	)
	db := openProfile(t, path)
	msgs, err := db.Messages(context.Background())
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[0].ID != 2 || msgs[1].ID != 1 || msgs[2].ID != 3 {
		t.Fatalf("messages not in timestamp order: %d %d %d", msgs[0].ID, msgs[1].ID, msgs[2].ID)
	}

	first := msgs[0]
	if first.Conversation != "#alice/$bob;abc" || first.Edited.IsZero() {
		t.Fatalf("first = %+v", first)
	}
	if diff := cmp.Diff([]string{"bob", "carol"}, first.Recipients()); diff != "" {
		t.Fatalf("recipients mismatch (-want +got):\n%s", diff)
	}
	if first.Status("alice") != "pending" {
		t.Fatalf("status = %q", first.Status("alice"))
	}
	if msgs[1].Status("alice") != "received" {
		t.Fatalf("incoming status = %q", msgs[1].Status("alice"))
	}

	sms := msgs[2]
	if sms.Type != MessageTypeSMS || sms.Conversation != "" {
		t.Fatalf("sms = %+v", sms)
	}
	if diff := cmp.Diff([]string{"dave"}, sms.Recipients()); diff != "" {
		t.Fatalf("dialog partner fallback mismatch (-want +got):\n%s", diff)
	}
	if sms.Status("alice") != "sent" {
		t.Fatalf("sms status = %q", sms.Status("alice"))
	}
}

func TestCalls(t *testing.T) {
	path := writeProfile(t,
		`INSERT INTO Calls VALUES (1, 1500000000, 95, 0, 'alice', 'call one', 0)`,
		`INSERT INTO Calls VALUES (2, 1500001000, 0, 1, 'bob', NULL, 0)`,
		`INSERT INTO CallMembers VALUES (1, 1, 'bob', 'Bob', 95, 6)`,
		`INSERT INTO CallMembers VALUES (2, 2, 'bob', 'Bob', 0, 13)`,
	)
	calls, err := openProfile(t, path).Calls(context.Background())
	if err != nil {
		t.Fatalf("Calls: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("calls = %d", len(calls))
	}
	if calls[0].Status() != "completed" || calls[0].Incoming || len(calls[0].Members) != 1 {
		t.Fatalf("first call = %+v", calls[0])
	}
	if calls[1].Status() != "missed" || !calls[1].Incoming {
		t.Fatalf("second call = %+v", calls[1])
	}
	if (Call{}).Status() != "unknown" {
		t.Fatal("call without members should have unknown status")
	}
}

func TestTransfers(t *testing.T) {
	path := writeProfile(t,
		`INSERT INTO Transfers VALUES (1, 2, 'bob', 'Bob', 8, 1500000000, 1500000060,
			'C:\Users\alice\report.pdf', 'report.pdf', '2048', '2048')`,
		`INSERT INTO Transfers VALUES (2, 1, 'carol', NULL, 42, 1500000100, NULL, NULL, 'x.bin', 'junk', NULL)`,
	)
	transfers, err := openProfile(t, path).Transfers(context.Background())
	if err != nil {
		t.Fatalf("Transfers: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("transfers = %d", len(transfers))
	}
	out := transfers[0]
	if out.Direction() != "outgoing" || out.StatusText() != "completed" || out.Size != 2048 {
		t.Fatalf("outgoing transfer = %+v", out)
	}
	in := transfers[1]
	if in.Direction() != "incoming" || in.StatusText() != "unknown (42)" || in.Size != 0 || !in.Finish.IsZero() {
		t.Fatalf("incoming transfer = %+v", in)
	}
}

func TestMissingTablesYieldNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.db")
	testsupport.WriteSQLite(t, path,
		`CREATE TABLE Messages (id INTEGER PRIMARY KEY, convo_id INTEGER, chatname TEXT, author TEXT,
			from_dispname TEXT, dialog_partner TEXT, timestamp INTEGER, edited_timestamp INTEGER,
			type INTEGER, sending_status INTEGER, body_xml TEXT)`,
	)
	db := openProfile(t, path)
	ctx := context.Background()
	if calls, err := db.Calls(ctx); err != nil || calls != nil {
		t.Fatalf("Calls = %v, %v", calls, err)
	}
	if msgs, err := db.Messages(ctx); err != nil || len(msgs) != 0 {
		t.Fatalf("Messages = %v, %v", msgs, err)
	}
	if owner, err := db.Owner(ctx); err != nil || owner != "" {
		t.Fatalf("Owner = %q, %v", owner, err)
	}
}

func TestOpenRejectsForeignDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	testsupport.WriteSQLite(t, path, `CREATE TABLE unrelated (x INTEGER)`)
	if _, err := Open(context.Background(), path, nil); err == nil {
		t.Fatal("expected error for database without skype tables")
	}
}
