package skype

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Message types that change how a row is normalized.
const (
	MessageTypeText = 61
	MessageTypeSMS  = 64
)

// Sending status values of outgoing messages.
const (
	sendingPending = 1
	sendingFailed  = 3
)

// Message is one row of the Messages table joined with its conversation.
type Message struct {
	ID             int64
	ConversationID int64
	ChatName       string
	Conversation   string
	Author         string
	AuthorName     string
	DialogPartner  string
	Timestamp      time.Time
	Edited         time.Time
	Type           int
	SendingStatus  int
	Body           string
	Participants   []string
}

// Status describes the delivery state of the message.
func (m Message) Status(owner string) string {
	if m.Author != owner {
		return "received"
	}
	switch m.SendingStatus {
	case sendingPending:
		return "pending"
	case sendingFailed:
		return "failed"
	}
	return "sent"
}

// Recipients lists the participants other than the author. Dialogs without
// participant rows fall back to the dialog partner.
func (m Message) Recipients() []string {
	var out []string
	for _, p := range m.Participants {
		if p != m.Author {
			out = append(out, p)
		}
	}
	if len(out) == 0 && m.DialogPartner != "" && m.DialogPartner != m.Author {
		out = append(out, m.DialogPartner)
	}
	return out
}

// Messages returns every message in id order.
func (d *DB) Messages(ctx context.Context) ([]Message, error) {
	if !d.has("Messages") {
		return nil, nil
	}
	participants, err := d.participants(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT m.id, m.convo_id, m.chatname, m.author, m.from_dispname, m.dialog_partner,
		m.timestamp, m.edited_timestamp, m.type, m.sending_status, m.body_xml, %s
		FROM Messages m %s ORDER BY m.timestamp, m.id`
	if d.tables["conversations"] {
		query = fmt.Sprintf(query, "c.identity", "LEFT JOIN Conversations c ON c.id = m.convo_id")
	} else {
		query = fmt.Sprintf(query, "NULL", "")
	}
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query skype messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m                                            Message
			convo, ts, edited, typ, status               sql.NullInt64
			chat, author, dispname, partner, body, ident sql.NullString
		)
		if err := rows.Scan(&m.ID, &convo, &chat, &author, &dispname, &partner, &ts, &edited, &typ, &status, &body, &ident); err != nil {
			return nil, fmt.Errorf("scan skype message: %w", err)
		}
		m.ConversationID = convo.Int64
		m.ChatName = chat.String
		m.Conversation = ident.String
		m.Author = author.String
		m.AuthorName = dispname.String
		m.DialogPartner = partner.String
		m.Timestamp = unixTime(ts)
		m.Edited = unixTime(edited)
		m.Type = int(typ.Int64)
		m.SendingStatus = int(status.Int64)
		m.Body = body.String
		m.Participants = participants[m.ConversationID]
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) participants(ctx context.Context) (map[int64][]string, error) {
	out := make(map[int64][]string)
	if !d.has("Participants") {
		return out, nil
	}
	rows, err := d.db.QueryContext(ctx, `SELECT convo_id, identity FROM Participants ORDER BY convo_id, id`)
	if err != nil {
		return nil, fmt.Errorf("query skype participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var convo sql.NullInt64
		var identity sql.NullString
		if err := rows.Scan(&convo, &identity); err != nil {
			return nil, fmt.Errorf("scan skype participant: %w", err)
		}
		if identity.String != "" {
			out[convo.Int64] = append(out[convo.Int64], identity.String)
		}
	}
	return out, rows.Err()
}
