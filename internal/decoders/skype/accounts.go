package skype

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Account is the profile owner as stored in the Accounts table.
type Account struct {
	SkypeName string
	FullName  string
	Emails    []string
	Phones    []string
	City      string
	Country   string
	Created   time.Time
}

// Accounts returns the accounts that have signed in with this profile.
func (d *DB) Accounts(ctx context.Context) ([]Account, error) {
	if !d.has("Accounts") {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx, `SELECT skypename, fullname, emails,
		phone_home, phone_office, phone_mobile, city, country, registration_timestamp
		FROM Accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query skype accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var (
			name, full, emails, home, office, mobile, city, country sql.NullString
			created                                                 sql.NullInt64
		)
		if err := rows.Scan(&name, &full, &emails, &home, &office, &mobile, &city, &country, &created); err != nil {
			return nil, fmt.Errorf("scan skype account: %w", err)
		}
		out = append(out, Account{
			SkypeName: name.String,
			FullName:  full.String,
			Emails:    splitList(emails.String),
			Phones:    appendNonEmpty(nil, home.String, office.String, mobile.String),
			City:      city.String,
			Country:   country.String,
			Created:   unixTime(created),
		})
	}
	return out, rows.Err()
}

// Owner returns the skype name of the first account, which main.db files
// belong to, or "" when the profile has no account row.
func (d *DB) Owner(ctx context.Context) (string, error) {
	accounts, err := d.Accounts(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range accounts {
		if a.SkypeName != "" {
			return a.SkypeName, nil
		}
	}
	return "", nil
}
