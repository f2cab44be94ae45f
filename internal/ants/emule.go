package ants

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"strings"

	"forager/internal/datasource"
	"forager/internal/decoders/emule"
	"forager/internal/evidence"
	"forager/internal/logging"
)

const emuleApp = "eMule"

// Shared file states.
const (
	stateShared      = "shared"
	stateDownloading = "downloading"
)

func emuleFile(names ...string) func(datasource.Entry) bool {
	return func(e datasource.Entry) bool {
		if !datasource.ContainsFold(e.Path, "emule") {
			return false
		}
		for _, n := range names {
			if strings.EqualFold(e.Base(), n) {
				return true
			}
		}
		return false
	}
}

func isPartMet(e datasource.Entry) bool {
	return strings.HasSuffix(strings.ToLower(e.Base()), ".part.met")
}

func newEmuleAccounts(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: EmuleAccounts}, vol: vol, match: emuleFile("preferences.dat")}
	a.decode = func(_ context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		f, err := vol.Open(e.Path)
		if err != nil {
			return nil, err
		}
		prefs, err := emule.DecodePreferences(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		nick := readNick(a, vol, path.Join(e.Dir(), "preferences.ini"))
		var out []*evidence.Record
		out = a.keep(out, newRecord(evidence.TypeUserAccount).
			set("account_type", emuleApp).
			set("id", prefs.UserHash).
			set("name", nick).
			set("app_name", emuleApp).
			set("username", e.Username()).
			meta("preferences_version", int64(prefs.Version)).
			meta("source.path", e.Path))
		return out, nil
	}
	return a
}

// readNick returns the nick from the preferences.ini next to
// preferences.dat. A missing or unreadable file yields "".
func readNick(a *volumeAnt, vol *datasource.Volume, rel string) string {
	f, err := vol.Open(rel)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.log().Debug("preferences.ini unreadable", logging.String("path", rel), logging.Error(err))
		}
		return ""
	}
	defer f.Close()
	nick, err := emule.ReadNick(f)
	if err != nil {
		a.log().Debug("preferences.ini unreadable", logging.String("path", rel), logging.Error(err))
	}
	return nick
}

func newEmuleSharedFiles(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{
		base: base{name: EmuleSharedFiles},
		vol:  vol,
		match: func(e datasource.Entry) bool {
			return emuleFile("known.met")(e) || (isPartMet(e) && datasource.ContainsFold(e.Path, "emule"))
		},
	}
	var dec *emule.Decoder
	a.decode = func(_ context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		if dec == nil {
			dec = emule.NewDecoder(a.log())
		}
		f, err := vol.Open(e.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var files []emule.KnownFile
		state := stateShared
		if isPartMet(e) {
			state = stateDownloading
			var part emule.KnownFile
			part, err = dec.DecodePartMet(f)
			if err == nil {
				files = append(files, part)
			}
		} else {
			// Entries decoded before a damaged one are kept.
			files, err = dec.DecodeKnownMet(f)
		}

		var out []*evidence.Record
		for _, k := range files {
			filePath := ""
			if state == stateDownloading {
				filePath = strings.TrimSuffix(e.Path, ".met")
			}
			out = a.keep(out, newRecord(evidence.TypeSharedFile).
				set("app_name", emuleApp).
				set("username", e.Username()).
				set("filename", k.Name).
				set("path", filePath).
				set("size", k.Size).
				set("hash_ed2k", k.HashHex()).
				set("last_modification_time", k.Modified).
				set("last_shared_time", k.LastShared).
				set("requests", k.Requests).
				set("accepted", k.Accepted).
				set("bytes_transferred", k.Transferred).
				set("state", state).
				metadata(k.Metadata).
				meta("part_hashes", len(k.PartHashes)).
				meta("source.path", e.Path))
		}
		return out, err
	}
	return a
}

func newEmuleSearches(vol *datasource.Volume) *volumeAnt {
	a := &volumeAnt{base: base{name: EmuleSearches}, vol: vol, match: emuleFile("AC_SearchStrings.dat")}
	a.decode = func(_ context.Context, e datasource.Entry) ([]*evidence.Record, error) {
		f, err := vol.Open(e.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		searches, err := emule.DecodeSearchStrings(f)
		if err != nil {
			return nil, err
		}
		var out []*evidence.Record
		for i, text := range searches {
			out = a.keep(out, newRecord(evidence.TypeSearchedText).
				set("app_name", emuleApp).
				set("text", text).
				set("username", e.Username()).
				meta("position", i).
				meta("source.path", e.Path))
		}
		return out, nil
	}
	return a
}
