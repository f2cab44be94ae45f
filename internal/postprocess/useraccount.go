package postprocess

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"forager/internal/config"
	"forager/internal/evidence"
	"forager/internal/stage"
)

// accountDecoders extract an account identifier from a cookie value.
var accountDecoders = map[string]func(string) (string, error){
	"numeric": decodeNumericID,
	"twid":    decodeTwid,
	"msppre":  decodeMSPPre,
}

func decodeNumericID(value string) (string, error) {
	id := strings.Trim(strings.TrimSpace(value), `"`)
	if id == "" || strings.Trim(id, "0123456789") != "" {
		return "", fmt.Errorf("account id %q is not numeric", value)
	}
	return id, nil
}

// decodeTwid reads the "u=<id>" form, usually URL-escaped as u%3D<id>.
func decodeTwid(value string) (string, error) {
	s, err := url.QueryUnescape(strings.Trim(strings.TrimSpace(value), `"`))
	if err != nil {
		return "", fmt.Errorf("twid %q: %w", value, err)
	}
	id, ok := strings.CutPrefix(s, "u=")
	if !ok {
		return "", fmt.Errorf("twid %q: missing u= prefix", value)
	}
	return decodeNumericID(id)
}

// decodeMSPPre keeps the sign-in name in front of the first '|'.
func decodeMSPPre(value string) (string, error) {
	name, _, _ := strings.Cut(strings.TrimSpace(value), "|")
	if !strings.Contains(name, "@") {
		return "", errors.New("MSPPre value does not start with a sign-in name")
	}
	return name, nil
}

// NewUserAccount derives user-account records from session cookies of web
// services.
func NewUserAccount(tables *Tables) stage.Unit {
	d := &deriver{base: base{name: config.PostProcessorUserAccount}, source: evidence.TypeCookie}
	d.derive = func(src *evidence.Record) ([]*evidence.Record, error) {
		rule, ok := findCookieRule(tables.UserAccount, src.String("domain"), src.String("name"))
		if !ok {
			return nil, nil
		}
		id, err := accountDecoders[rule.Decoder](src.String("value"))
		if err != nil {
			return nil, err
		}
		rec, err := setAll(evidence.TypeUserAccount, map[string]any{
			"account_type": rule.Service,
			"id":           id,
			"app_name":     src.String("app_name"),
			"username":     src.String("username"),
		})
		if err != nil {
			return nil, err
		}
		provenance(rec, src, "name", "domain")
		return []*evidence.Record{rec}, nil
	}
	return d
}
