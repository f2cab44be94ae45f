package ants

import (
	"context"
	"strings"

	"forager/internal/datasource"
	"forager/internal/decoders/wlan"
	"forager/internal/evidence"
)

func wlanProfile(e datasource.Entry) bool {
	return strings.HasSuffix(strings.ToLower(e.Base()), ".xml") &&
		datasource.HasSegment(e.Path, "wlansvc") &&
		datasource.HasSegment(e.Path, "interfaces")
}

func newWirelessNetworks(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: WirelessNetworks}, vol: vol, match: wlanProfile}
	a.decode = func(_ context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		f, err := vol.Open(e.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		p, err := wlan.DecodeProfile(f)
		if err != nil {
			return nil, err
		}
		iface := e.Dir()
		if i := strings.LastIndex(iface, "/"); i >= 0 {
			iface = iface[i+1:]
		}
		var out []*evidence.Record
		out = a.keep(out, newRecord(evidence.TypeWirelessNetwork).
			set("ssid", p.SSID).
			set("authentication", p.Authentication).
			set("encryption", p.Encryption).
			set("key", p.Key).
			set("connection_mode", p.ConnectionMode).
			set("profile_path", e.Path).
			meta("profile_name", p.Name).
			meta("interface", iface).
			meta("hidden", p.Hidden).
			meta("connection_type", p.ConnectionType).
			meta("key_type", p.KeyType).
			meta("protected_key", p.ProtectedKey))
		return out, nil
	}
	return a
}
