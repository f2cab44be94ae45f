// Package wlan decodes Windows wireless network profiles
// (ProgramData/Microsoft/Wlansvc/Profiles/Interfaces/{GUID}/*.xml).
package wlan

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxProfileBytes bounds the XML read for one profile.
const maxProfileBytes = 1 << 20

type profileXML struct {
	XMLName        xml.Name  `xml:"WLANProfile"`
	Name           string    `xml:"name"`
	SSIDs          []ssidXML `xml:"SSIDConfig>SSID"`
	NonBroadcast   bool      `xml:"SSIDConfig>nonBroadcast"`
	ConnectionType string    `xml:"connectionType"`
	ConnectionMode string    `xml:"connectionMode"`
	Auth           string    `xml:"MSM>security>authEncryption>authentication"`
	Encryption     string    `xml:"MSM>security>authEncryption>encryption"`
	UseOneX        bool      `xml:"MSM>security>authEncryption>useOneX"`
	KeyType        string    `xml:"MSM>security>sharedKey>keyType"`
	KeyProtected   bool      `xml:"MSM>security>sharedKey>protected"`
	KeyMaterial    string    `xml:"MSM>security>sharedKey>keyMaterial"`
}

type ssidXML struct {
	Hex  string `xml:"hex"`
	Name string `xml:"name"`
}

// Profile is one decoded wireless network profile.
type Profile struct {
	Name           string
	SSID           string
	Hidden         bool
	ConnectionType string
	ConnectionMode string
	Authentication string
	Encryption     string
	OneX           bool
	KeyType        string
	// Key is the plaintext key, set only when the profile stores it
	// unprotected.
	Key string
	// ProtectedKey holds the DPAPI blob of a protected key, hex encoded.
	ProtectedKey string
}

// DecodeProfile decodes one profile document.
func DecodeProfile(r io.Reader) (Profile, error) {
	var doc profileXML
	dec := xml.NewDecoder(io.LimitReader(r, maxProfileBytes))
	if err := dec.Decode(&doc); err != nil {
		return Profile{}, fmt.Errorf("decode wlan profile: %w", err)
	}

	p := Profile{
		Name:           strings.TrimSpace(doc.Name),
		Hidden:         doc.NonBroadcast,
		ConnectionType: strings.TrimSpace(doc.ConnectionType),
		ConnectionMode: strings.TrimSpace(doc.ConnectionMode),
		Authentication: strings.TrimSpace(doc.Auth),
		Encryption:     strings.TrimSpace(doc.Encryption),
		OneX:           doc.UseOneX,
		KeyType:        strings.TrimSpace(doc.KeyType),
	}
	if len(doc.SSIDs) > 0 {
		p.SSID = ssidName(doc.SSIDs[0])
	}
	if p.SSID == "" {
		p.SSID = p.Name
	}
	if p.SSID == "" {
		return Profile{}, fmt.Errorf("decode wlan profile: no network name")
	}

	material := strings.TrimSpace(doc.KeyMaterial)
	if doc.KeyProtected {
		p.ProtectedKey = strings.ToLower(material)
	} else {
		p.Key = material
	}
	return p, nil
}

// ssidName prefers the readable name and falls back to decoding the hex form.
func ssidName(s ssidXML) string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	raw, err := hex.DecodeString(strings.TrimSpace(s.Hex))
	if err != nil {
		return ""
	}
	return string(raw)
}
