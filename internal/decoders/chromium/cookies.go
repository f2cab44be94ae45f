package chromium

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Cookie is one row of the cookies table. Encrypted is set when the value
// is only present in encrypted form; such cookies keep an empty Value.
type Cookie struct {
	Host       string
	Name       string
	Value      string
	Path       string
	Created    time.Time
	LastAccess time.Time
	Expires    time.Time
	Secure     bool
	HTTPOnly   bool
	Encrypted  bool
}

// ReadCookies returns every cookie of the database at path.
func ReadCookies(ctx context.Context, path string) ([]Cookie, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cols, err := columns(ctx, db, "cookies")
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, fmt.Errorf("%s: no cookies table", path)
	}
	encrypted := "NULL"
	if cols["encrypted_value"] {
		encrypted = "encrypted_value"
	}
	secure, httpOnly := "is_secure", "is_httponly"
	if !cols[secure] && cols["secure"] {
		secure = "secure"
	}
	if !cols[httpOnly] && cols["httponly"] {
		httpOnly = "httponly"
	}

	query := fmt.Sprintf(`SELECT host_key, name, value, path, creation_utc, last_access_utc, expires_utc,
		%s, %s, %s FROM cookies ORDER BY creation_utc, host_key, name`, secure, httpOnly, encrypted)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query cookies: %w", err)
	}
	defer rows.Close()

	var out []Cookie
	for rows.Next() {
		var (
			c                                    Cookie
			host, name, value, cpath             sql.NullString
			created, accessed, expires, sec, hto sql.NullInt64
			enc                                  []byte
		)
		if err := rows.Scan(&host, &name, &value, &cpath, &created, &accessed, &expires, &sec, &hto, &enc); err != nil {
			return nil, fmt.Errorf("scan cookie: %w", err)
		}
		c.Host = host.String
		c.Name = name.String
		c.Value = value.String
		c.Path = cpath.String
		c.Created = WebKitTime(created.Int64)
		c.LastAccess = WebKitTime(accessed.Int64)
		c.Expires = WebKitTime(expires.Int64)
		c.Secure = sec.Int64 != 0
		c.HTTPOnly = hto.Int64 != 0
		c.Encrypted = c.Value == "" && len(enc) > 0
		out = append(out, c)
	}
	return out, rows.Err()
}
