package ants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forager/internal/datasource"
	"forager/internal/evidence"
	"forager/internal/logging"
	"forager/internal/markup"
	"forager/internal/report"
	"forager/internal/services"
	"forager/internal/stage"
)

// ReportFamily returns the ants that load a report datasource.
func ReportFamily(ds evidence.Datasource, maxBytes int64) []stage.Unit {
	return []stage.Unit{newReportAnt(ds, maxBytes)}
}

// errMissingField marks a model that lacks the field its evidence type
// cannot do without.
var errMissingField = errors.New("required field missing")

type modelMapper func(a *reportAnt, m *report.Model) ([]*recordBuilder, error)

// reportMappers is the closed set of model types the report ant converts.
var reportMappers map[string]modelMapper

func init() {
	reportMappers = map[string]modelMapper{
		"Chat":            mapChat,
		"InstantMessage":  mapStandaloneMessage,
		"SMS":             mapSMS,
		"Call":            mapCall,
		"Contact":         mapContact,
		"UserAccount":     mapUserAccount,
		"Cookie":          mapCookie,
		"VisitedPage":     mapVisitedPage,
		"WirelessNetwork": mapWirelessNetwork,
		"SearchedItem":    mapSearchedItem,
	}
}

type reportAnt struct {
	base
	ds       evidence.Datasource
	maxBytes int64

	files       map[string]report.File
	filesByName map[string]report.File
	unknown     logging.OnceSet
}

func newReportAnt(ds evidence.Datasource, maxBytes int64) *reportAnt {
	return &reportAnt{base: base{name: Report}, ds: ds, maxBytes: maxBytes}
}

// Run implements stage.Unit.
func (a *reportAnt) Run(ctx context.Context, item evidence.Item) error {
	rc, size, err := datasource.OpenReport(a.ds)
	if err != nil {
		return err
	}
	defer rc.Close()
	if a.maxBytes > 0 && size > a.maxBytes {
		return services.Wrap(services.ErrDatasource, a.name, "open report",
			fmt.Sprintf("report is %d bytes, above the %d byte limit", size, a.maxBytes), nil)
	}

	a.files = make(map[string]report.File)
	a.filesByName = make(map[string]report.File)
	var records []*evidence.Record
	handler := report.Funcs{
		OnFile: func(_ context.Context, f report.File) error {
			a.files[f.ID] = f
			if name := strings.ToLower(f.Name()); name != "" {
				a.filesByName[name] = f
			}
			a.progress("tagged files", 1, 0, 0)
			return nil
		},
		OnModel: func(_ context.Context, m *report.Model) error {
			records = append(records, a.mapModel(m)...)
			return nil
		},
	}
	stats, err := report.Parse(ctx, rc, handler, a.maxBytes)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrFormat, a.name, "parse report", "report could not be parsed", err)
	}
	a.log().Info("report parsed",
		logging.String("report_version", stats.Version),
		logging.Int("tagged_files", stats.Files),
		logging.Int("models", stats.Models),
		logging.Int("records", len(records)),
	)
	a.progress("", 0, 0, 0)
	return a.write(ctx, item, records)
}

func (a *reportAnt) mapModel(m *report.Model) []*evidence.Record {
	mapper, ok := reportMappers[m.Type]
	if !ok {
		if a.unknown.First(m.Type) {
			a.log().Info("unsupported report model type", logging.String("model_type", m.Type))
		}
		return nil
	}
	a.progress(m.Type, 0, 0, 0)
	builders, err := mapper(a, m)
	if err != nil {
		a.progress("", 0, 0, 1)
		a.log().Warn("report model skipped",
			logging.String("model_type", m.Type),
			logging.String("model_id", m.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "model_map_failed"),
		)
		return nil
	}
	var out []*evidence.Record
	for _, rb := range builders {
		if !rb.hasMeta("source.model_id") {
			rb.source(m)
		}
		out = a.keep(out, rb)
	}
	return out
}

// source records the report model a record was mapped from. Nested models
// carry their own deleted state.
func (b *recordBuilder) source(m *report.Model) *recordBuilder {
	b.meta("source.model_type", m.Type).meta("source.model_id", m.ID)
	if m.Deleted {
		b.meta("deleted", true)
	}
	return b
}

// reportParty reads a Party model.
func reportParty(m *report.Model) party {
	if m == nil {
		return party{}
	}
	return party{ID: m.Field("Identifier"), Name: m.Field("Name"), Owner: m.Bool("IsPhoneOwner")}
}

// partiesByRole splits Party children into senders and receivers using
// their Role field.
func partiesByRole(models []*report.Model) (from []party, to []party) {
	for _, pm := range models {
		p := reportParty(pm)
		switch strings.ToLower(pm.Field("Role")) {
		case "from":
			from = append(from, p)
		default:
			to = append(to, p)
		}
	}
	return from, to
}

func bodyElements(body string) []markup.Element {
	var els markup.Elements
	els.Append(markup.Text(body))
	return els
}

func mapChat(a *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	chatID := firstNonEmpty(m.Field("Id"), m.Field("Name"), m.ID)
	var participants []party
	for _, pm := range m.Children("Participants") {
		participants = append(participants, reportParty(pm))
	}
	var out []*recordBuilder
	for _, msg := range m.Children("Messages") {
		out = append(out, a.instantMessage(msg, chatID, m.Field("Account"), m.Field("Source"), participants))
	}
	return out, nil
}

func mapStandaloneMessage(a *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	return []*recordBuilder{a.instantMessage(m, "", m.Field("Account"), m.Field("Source"), nil)}, nil
}

func (a *reportAnt) instantMessage(msg *report.Model, chatID, account, app string, participants []party) *recordBuilder {
	from := reportParty(msg.Child("From"))
	var to []party
	for _, pm := range msg.Children("To") {
		to = append(to, reportParty(pm))
	}
	if len(to) == 0 {
		for _, p := range participants {
			if p.ID != from.ID {
				to = append(to, p)
			}
		}
	}
	body := msg.Field("Body")
	rb := newRecord(evidence.TypeChatMessage).
		set("account", account).
		set("chat_id", chatID).
		set("sender", from.label()).
		set("recipients", labels(to)).
		set("timestamp", timeField(msg, "TimeStamp")).
		set("text", bodyElements(body)).
		set("plain_text", body).
		set("status", msg.Field("Status")).
		set("direction", direction(from.Owner)).
		set("app_name", firstNonEmpty(msg.Field("SourceApplication"), app)).
		source(msg)
	for i, att := range msg.Children("Attachments") {
		name := att.Field("Filename")
		rb.meta(fmt.Sprintf("attachment.%d", i), name)
		if f, ok := a.filesByName[strings.ToLower(name)]; ok && name != "" {
			rb.meta(fmt.Sprintf("attachment.%d.path", i), f.Path)
			rb.meta(fmt.Sprintf("attachment.%d.md5", i), f.MD5())
		}
	}
	return rb
}

func mapSMS(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	from, to := partiesByRole(m.Children("Parties"))
	var sender party
	if len(from) > 0 {
		sender = from[0]
	}
	outgoing := sender.Owner
	switch strings.ToLower(m.Field("Folder")) {
	case "sent", "outbox":
		outgoing = true
	case "inbox":
		outgoing = false
	}
	body := m.Field("Body")
	rb := newRecord(evidence.TypeSMS).
		set("sender", sender.label()).
		set("recipients", labels(to)).
		set("timestamp", timeField(m, "TimeStamp")).
		set("text", bodyElements(body)).
		set("plain_text", body).
		set("direction", direction(outgoing)).
		set("app_name", firstNonEmpty(m.Field("Source"), "SMS")).
		meta("folder", m.Field("Folder")).
		meta("status", m.Field("Status")).
		meta("smsc", m.Field("SMSC"))
	return []*recordBuilder{rb}, nil
}

func mapCall(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	from, to := partiesByRole(m.Children("Parties"))
	callType := strings.ToLower(m.Field("Type"))
	outgoing := callType == "outgoing"
	var caller party
	if len(from) > 0 {
		caller = from[0]
	}
	duration, _ := m.Duration("Duration")
	status := m.Field("Status")
	if status == "" && (callType == "missed" || callType == "rejected") {
		status = callType
	}
	rb := newRecord(evidence.TypeCall).
		set("account", m.Field("Account")).
		set("caller", caller.label()).
		set("callees", labels(to)).
		set("start_time", timeField(m, "TimeStamp")).
		set("duration", duration).
		set("status", status).
		set("direction", direction(outgoing)).
		set("app_name", firstNonEmpty(m.Field("Source"), "Phone")).
		meta("call_type", m.Field("Type")).
		meta("video_call", m.Bool("VideoCall"))
	return []*recordBuilder{rb}, nil
}

func mapContact(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	var phones, emails []string
	for _, entry := range m.Children("Entries") {
		value := entry.Field("Value")
		if value == "" {
			continue
		}
		switch entry.Type {
		case "PhoneNumber":
			phones = append(phones, value)
		case "EmailAddress":
			emails = append(emails, value)
		}
	}
	name := m.Field("Name")
	if name == "" && len(phones) == 0 && len(emails) == 0 {
		return nil, fmt.Errorf("contact without name or entries: %w", errMissingField)
	}
	rb := newRecord(evidence.TypeContact).
		set("account", m.Field("Account")).
		set("id", firstNonEmpty(m.Field("ID"), m.ID)).
		set("name", name).
		set("phones", phones).
		set("emails", emails).
		set("app_name", m.Field("Source")).
		meta("groups", strings.Join(m.List("Groups"), ", "))
	return []*recordBuilder{rb}, nil
}

func mapUserAccount(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	id := firstNonEmpty(m.Field("Username"), m.Field("Id"))
	if id == "" && m.Field("Name") == "" {
		return nil, fmt.Errorf("account without username: %w", errMissingField)
	}
	rb := newRecord(evidence.TypeUserAccount).
		set("account_type", m.Field("ServiceType")).
		set("id", id).
		set("name", m.Field("Name")).
		set("password", m.Field("Password")).
		set("app_name", m.Field("Source")).
		meta("server", m.Field("ServerAddress"))
	return []*recordBuilder{rb}, nil
}

func mapCookie(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	if m.Field("Name") == "" {
		return nil, fmt.Errorf("cookie name: %w", errMissingField)
	}
	rb := newRecord(evidence.TypeCookie).
		set("name", m.Field("Name")).
		set("value", m.Field("Value")).
		set("domain", m.Field("Domain")).
		set("path", m.Field("Path")).
		set("creation_time", timeField(m, "CreationTime")).
		set("last_access_time", timeField(m, "LastAccessTime")).
		set("expiration_time", timeField(m, "Expiry")).
		set("is_encrypted", false).
		set("app_name", m.Field("Source"))
	return []*recordBuilder{rb}, nil
}

func mapVisitedPage(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	if m.Field("Url") == "" {
		return nil, fmt.Errorf("visited page url: %w", errMissingField)
	}
	count, _ := m.Int("VisitCount")
	rb := newRecord(evidence.TypeVisitedURL).
		set("url", m.Field("Url")).
		set("title", m.Field("Title")).
		set("timestamp", timeField(m, "LastVisited")).
		set("visit_count", count).
		set("app_name", m.Field("Source"))
	return []*recordBuilder{rb}, nil
}

func mapWirelessNetwork(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	if m.Field("SSId") == "" {
		return nil, fmt.Errorf("wireless network ssid: %w", errMissingField)
	}
	rb := newRecord(evidence.TypeWirelessNetwork).
		set("ssid", m.Field("SSId")).
		set("authentication", m.Field("SecurityMode")).
		set("key", m.Field("Password")).
		meta("bssid", m.Field("BSSId")).
		meta("last_connection", timeField(m, "LastConnection"))
	return []*recordBuilder{rb}, nil
}

func mapSearchedItem(_ *reportAnt, m *report.Model) ([]*recordBuilder, error) {
	if m.Field("Value") == "" {
		return nil, fmt.Errorf("searched item value: %w", errMissingField)
	}
	rb := newRecord(evidence.TypeSearchedText).
		set("app_name", m.Field("Source")).
		set("text", m.Field("Value")).
		set("timestamp", timeField(m, "TimeStamp"))
	return []*recordBuilder{rb}, nil
}
