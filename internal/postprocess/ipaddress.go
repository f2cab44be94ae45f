package postprocess

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"forager/internal/config"
	"forager/internal/evidence"
	"forager/internal/stage"
)

// ipDecoders turn a cookie value into an address.
var ipDecoders = map[string]func(string) (netip.Addr, error){
	"quoted":   decodeQuotedIP,
	"f5-bigip": decodeBigIP,
}

// decodeQuotedIP accepts an address surrounded by quotes and padding, as in
// LBSRC="1.2.3.4 ".
func decodeQuotedIP(value string) (netip.Addr, error) {
	s := strings.Trim(strings.TrimSpace(value), `"' `)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("cookie value %q: %w", value, err)
	}
	return addr, nil
}

// decodeBigIP decodes the pool member address of an F5 BIG-IP persistence
// cookie: "<addr>.<port>.0000" with both numbers in network byte order read
// as little endian.
func decodeBigIP(value string) (netip.Addr, error) {
	first, _, ok := strings.Cut(strings.Trim(strings.TrimSpace(value), `"`), ".")
	if !ok {
		return netip.Addr{}, errors.New("BIG-IP cookie without port")
	}
	n, err := strconv.ParseUint(first, 10, 32)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("BIG-IP cookie address %q: %w", first, err)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(n))
	return netip.AddrFrom4(b), nil
}

// NewIPAddress derives ip-address records from cookies that carry a client
// address.
func NewIPAddress(tables *Tables) stage.Unit {
	d := &deriver{base: base{name: config.PostProcessorIPAddress}, source: evidence.TypeCookie}
	d.derive = func(src *evidence.Record) ([]*evidence.Record, error) {
		rule, ok := findCookieRule(tables.IPAddress, src.String("domain"), src.String("name"))
		if !ok {
			return nil, nil
		}
		addr, err := ipDecoders[rule.Decoder](src.String("value"))
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		kind := "IPv4"
		if addr.Is6() {
			kind = "IPv6"
		}
		when := src.Time("last_access_time")
		if when.IsZero() {
			when = src.Time("creation_time")
		}
		rec, err := setAll(evidence.TypeIPAddress, map[string]any{
			"address":      addr.String(),
			"address_type": kind,
			"timestamp":    when,
			"app_name":     src.String("app_name"),
		})
		if err != nil {
			return nil, err
		}
		rec.Metadata.Set("private", addr.IsPrivate() || addr.IsLoopback())
		provenance(rec, src, "name", "domain", "app_name", "username")
		return []*evidence.Record{rec}, nil
	}
	return d
}
