package ants

import (
	"context"
	"strings"

	"forager/internal/datasource"
	"forager/internal/decoders/skype"
	"forager/internal/evidence"
	"forager/internal/markup"
)

const skypeApp = "Skype"

func skypeProfile(e datasource.Entry) bool {
	return strings.EqualFold(e.Base(), "main.db") && datasource.HasSegment(e.Path, "skype")
}

// openSkype opens the profile database and resolves its owner.
func openSkype(ctx context.Context, a *volumeAnt, e datasource.Entry) (*skype.DB, string, error) {
	db, err := skype.Open(ctx, a.vol.Abs(e.Path), a.log())
	if err != nil {
		return nil, "", err
	}
	owner, err := db.Owner(ctx)
	if err != nil {
		_ = db.Close()
		return nil, "", err
	}
	if owner == "" {
		// Profiles live in a directory named after the account.
		owner = skypeDirOwner(e.Dir())
	}
	return db, owner, nil
}

func skypeDirOwner(dir string) string {
	i := strings.LastIndex(dir, "/")
	name := dir[i+1:]
	return strings.ReplaceAll(name, "#3a", ":")
}

func newSkypeAccounts(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: SkypeAccounts}, vol: vol, match: skypeProfile}
	a.decode = func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		db, err := skype.Open(ctx, vol.Abs(e.Path), a.log())
		if err != nil {
			return nil, err
		}
		defer db.Close()
		accounts, err := db.Accounts(ctx)
		if err != nil {
			return nil, err
		}
		var out []*evidence.Record
		for _, acc := range accounts {
			out = a.keep(out, newRecord(evidence.TypeUserAccount).
				set("account_type", skypeApp).
				set("id", acc.SkypeName).
				set("name", acc.FullName).
				set("app_name", skypeApp).
				set("username", e.Username()).
				meta("emails", strings.Join(acc.Emails, ", ")).
				meta("phones", strings.Join(acc.Phones, ", ")).
				meta("city", acc.City).
				meta("country", acc.Country).
				meta("registered", acc.Created).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}

func newSkypeContacts(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: SkypeContacts}, vol: vol, match: skypeProfile}
	a.decode = func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		db, owner, err := openSkype(ctx, a, e)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		contacts, err := db.Contacts(ctx)
		if err != nil {
			return nil, err
		}
		var out []*evidence.Record
		for _, c := range contacts {
			out = a.keep(out, newRecord(evidence.TypeContact).
				set("account", owner).
				set("id", c.SkypeName).
				set("name", c.Name()).
				set("phones", c.Phones).
				set("emails", c.Emails).
				set("app_name", skypeApp).
				meta("birthday", c.Birthday).
				meta("city", c.City).
				meta("country", c.Country).
				meta("authorized", c.Authorized).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}

func newSkypeMessages(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: SkypeMessages}, vol: vol, match: skypeProfile}
	var parser *markup.Parser
	a.decode = func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		if parser == nil {
			parser = markup.NewParser(a.log())
		}
		db, owner, err := openSkype(ctx, a, e)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		messages, err := db.Messages(ctx)
		if err != nil {
			return nil, err
		}
		var out []*evidence.Record
		for _, m := range messages {
			text := parser.Parse(m.Body)
			sender := party{ID: m.Author, Name: m.AuthorName, Owner: m.Author == owner}
			var recipients []party
			for _, id := range m.Recipients() {
				recipients = append(recipients, party{ID: id, Owner: id == owner})
			}

			var rb *recordBuilder
			if m.Type == skype.MessageTypeSMS {
				rb = newRecord(evidence.TypeSMS)
			} else {
				rb = newRecord(evidence.TypeChatMessage).
					set("account", owner).
					set("chat_id", firstNonEmpty(m.Conversation, m.ChatName)).
					set("status", m.Status(owner))
			}
			out = a.keep(out, rb.
				set("sender", sender.label()).
				set("recipients", labels(recipients)).
				set("timestamp", m.Timestamp).
				set("text", text).
				set("plain_text", markup.PlainText(text)).
				set("direction", direction(sender.Owner)).
				set("app_name", skypeApp).
				meta("message_id", m.ID).
				meta("message_type", m.Type).
				meta("edited", m.Edited).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}

func newSkypeCalls(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: SkypeCalls}, vol: vol, match: skypeProfile}
	a.decode = func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		db, owner, err := openSkype(ctx, a, e)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		calls, err := db.Calls(ctx)
		if err != nil {
			return nil, err
		}
		var out []*evidence.Record
		for _, c := range calls {
			var members []party
			for _, m := range c.Members {
				members = append(members, party{ID: m.Identity, Name: m.DisplayName})
			}
			caller := party{ID: owner, Owner: true}
			callees := members
			if c.Incoming {
				caller = party{ID: c.Host}
				for _, m := range members {
					if m.ID == c.Host {
						caller = m
					}
				}
				callees = []party{{ID: owner, Owner: true}}
			}
			out = a.keep(out, newRecord(evidence.TypeCall).
				set("account", owner).
				set("caller", caller.label()).
				set("callees", labels(callees)).
				set("start_time", c.Begin).
				set("duration", c.Duration).
				set("status", c.Status()).
				set("direction", direction(!c.Incoming)).
				set("app_name", skypeApp).
				meta("call_name", c.Name).
				meta("conference", c.Conference).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}

func newSkypeTransfers(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: SkypeTransfers}, vol: vol, match: skypeProfile}
	a.decode = func(ctx context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		db, owner, err := openSkype(ctx, a, e)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		transfers, err := db.Transfers(ctx)
		if err != nil {
			return nil, err
		}
		var out []*evidence.Record
		for _, t := range transfers {
			partner := party{ID: t.Partner, Name: t.PartnerName}.label()
			from, to := owner, partner
			if t.Type == skype.TransferIncoming {
				from, to = partner, owner
			}
			out = a.keep(out, newRecord(evidence.TypeFileTransfer).
				set("account", owner).
				set("direction", t.Direction()).
				set("filename", t.Filename).
				set("path", t.Path).
				set("size", t.Size).
				set("start_time", t.Start).
				set("finish_time", t.Finish).
				set("status", t.StatusText()).
				set("from", from).
				set("to", to).
				set("app_name", skypeApp).
				meta("bytes_transferred", t.BytesTransferred).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
