// Package emule decodes the state files of the eMule peer-to-peer client:
// the shared file catalogue (known.met), download state (*.part.met), the
// client identity (preferences.dat, preferences.ini) and the search history
// (AC_SearchStrings.dat).
package emule
