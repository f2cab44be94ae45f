package skype

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CallMember is one participant row of a call.
type CallMember struct {
	Identity    string
	DisplayName string
	Duration    int64
	Status      int
}

// Call is one row of the Calls table with its members.
type Call struct {
	ID         int64
	Begin      time.Time
	Duration   int64
	Incoming   bool
	Host       string
	Name       string
	Conference bool
	Members    []CallMember
}

// Call member status values.
const (
	memberFinished = 6
	memberRefused  = 8
	memberMissed   = 13
)

// Status summarizes the outcome of the call from its members.
func (c Call) Status() string {
	if c.Duration > 0 {
		return "completed"
	}
	for _, m := range c.Members {
		switch m.Status {
		case memberMissed:
			return "missed"
		case memberRefused:
			return "refused"
		case memberFinished:
			if m.Duration > 0 {
				return "completed"
			}
		}
	}
	if len(c.Members) == 0 {
		return "unknown"
	}
	return "not answered"
}

// Calls returns every call in start order.
func (d *DB) Calls(ctx context.Context) ([]Call, error) {
	if !d.has("Calls") {
		return nil, nil
	}
	members, err := d.callMembers(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, `SELECT id, begin_timestamp, duration, is_incoming,
		host_identity, name, is_conference FROM Calls ORDER BY begin_timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("query skype calls: %w", err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var (
			c                                     Call
			begin, duration, incoming, conference sql.NullInt64
			host, name                            sql.NullString
		)
		if err := rows.Scan(&c.ID, &begin, &duration, &incoming, &host, &name, &conference); err != nil {
			return nil, fmt.Errorf("scan skype call: %w", err)
		}
		c.Begin = unixTime(begin)
		c.Duration = duration.Int64
		c.Incoming = incoming.Int64 != 0
		c.Host = host.String
		c.Name = name.String
		c.Conference = conference.Int64 != 0
		c.Members = members[c.ID]
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) callMembers(ctx context.Context) (map[int64][]CallMember, error) {
	out := make(map[int64][]CallMember)
	if !d.has("CallMembers") {
		return out, nil
	}
	rows, err := d.db.QueryContext(ctx, `SELECT call_db_id, identity, dispname, call_duration, status
		FROM CallMembers ORDER BY call_db_id, id`)
	if err != nil {
		return nil, fmt.Errorf("query skype call members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			callID, duration, status sql.NullInt64
			identity, dispname       sql.NullString
		)
		if err := rows.Scan(&callID, &identity, &dispname, &duration, &status); err != nil {
			return nil, fmt.Errorf("scan skype call member: %w", err)
		}
		out[callID.Int64] = append(out[callID.Int64], CallMember{
			Identity:    identity.String,
			DisplayName: dispname.String,
			Duration:    duration.Int64,
			Status:      int(status.Int64),
		})
	}
	return out, rows.Err()
}
