package skype

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transfer directions as stored in the type column.
const (
	TransferIncoming = 1
	TransferOutgoing = 2
)

// Transfer is one row of the Transfers table.
type Transfer struct {
	ID               int64
	Type             int
	Partner          string
	PartnerName      string
	Status           int
	Start            time.Time
	Finish           time.Time
	Path             string
	Filename         string
	Size             int64
	BytesTransferred int64
}

var transferStatus = map[int]string{
	0:  "new",
	1:  "waiting",
	2:  "connecting",
	7:  "cancelled",
	8:  "completed",
	9:  "failed",
	10: "cancelled by remote",
	12: "cancelled",
}

// StatusText renders the numeric status.
func (t Transfer) StatusText() string {
	if s, ok := transferStatus[t.Status]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%d)", t.Status)
}

// Direction returns "incoming", "outgoing" or "" for unknown types.
func (t Transfer) Direction() string {
	switch t.Type {
	case TransferIncoming:
		return "incoming"
	case TransferOutgoing:
		return "outgoing"
	}
	return ""
}

// Transfers returns every file transfer in start order.
func (d *DB) Transfers(ctx context.Context) ([]Transfer, error) {
	if !d.has("Transfers") {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx, `SELECT id, type, partner_handle, partner_dispname, status,
		starttime, finishtime, filepath, filename, filesize, bytestransferred
		FROM Transfers ORDER BY starttime, id`)
	if err != nil {
		return nil, fmt.Errorf("query skype transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var (
			t                                      Transfer
			typ, status, start, finish             sql.NullInt64
			partner, partnerName, path, name, size sql.NullString
			xfer                                   sql.NullString
		)
		if err := rows.Scan(&t.ID, &typ, &partner, &partnerName, &status, &start, &finish, &path, &name, &size, &xfer); err != nil {
			return nil, fmt.Errorf("scan skype transfer: %w", err)
		}
		t.Type = int(typ.Int64)
		t.Partner = partner.String
		t.PartnerName = partnerName.String
		t.Status = int(status.Int64)
		t.Start = unixTime(start)
		t.Finish = unixTime(finish)
		t.Path = path.String
		t.Filename = name.String
		t.Size = parseCount(size.String)
		t.BytesTransferred = parseCount(xfer.String)
		out = append(out, t)
	}
	return out, rows.Err()
}

// parseCount reads the decimal byte counts Skype stores as text.
func parseCount(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
