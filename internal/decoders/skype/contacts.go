package skype

import (
	"context"
	"database/sql"
	"fmt"
)

// Contact is one entry of the Contacts table.
type Contact struct {
	SkypeName   string
	FullName    string
	DisplayName string
	Phones      []string
	Emails      []string
	Birthday    string
	City        string
	Country     string
	Authorized  bool
}

// Name returns the best available label for the contact.
func (c Contact) Name() string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.FullName != "":
		return c.FullName
	}
	return c.SkypeName
}

// Contacts returns the contact list.
func (d *DB) Contacts(ctx context.Context) ([]Contact, error) {
	if !d.has("Contacts") {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx, `SELECT skypename, fullname, displayname,
		phone_home, phone_office, phone_mobile, emails, birthday, city, country, is_authorized
		FROM Contacts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query skype contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var (
			name, full, display, home, office, mobile, emails, city, country sql.NullString
			birthday, authorized                                             sql.NullInt64
		)
		if err := rows.Scan(&name, &full, &display, &home, &office, &mobile, &emails, &birthday, &city, &country, &authorized); err != nil {
			return nil, fmt.Errorf("scan skype contact: %w", err)
		}
		c := Contact{
			SkypeName:   name.String,
			FullName:    full.String,
			DisplayName: display.String,
			Phones:      appendNonEmpty(nil, home.String, office.String, mobile.String),
			Emails:      splitList(emails.String),
			City:        city.String,
			Country:     country.String,
			Authorized:  authorized.Int64 != 0,
		}
		if birthday.Valid && birthday.Int64 > 0 {
			b := birthday.Int64
			c.Birthday = fmt.Sprintf("%04d-%02d-%02d", b/10000, (b/100)%100, b%100)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
