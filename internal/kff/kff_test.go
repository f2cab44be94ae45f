package kff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := "# reference set 2024-05\n" +
		"status,hash_type,hash\n" +
		"A,ed2k,0123456789ABCDEF0123456789abcdef\n" +
		"n, MD5 ,d41d8cd98f00b204e9800998ecf8427e\n" +
		"A,md5,not-hex\n" +
		",md5,aa\n" +
		"A,md5\n"
	list, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if list.Len() != 2 || list.Skipped() != 3 {
		t.Fatalf("len=%d skipped=%d", list.Len(), list.Skipped())
	}

	tests := []struct {
		hashType, hash string
		want           string
		ok             bool
	}{
		{"ed2k", "0123456789abcdef0123456789ABCDEF", "A", true},
		{"ED2K", " 0123456789abcdef0123456789abcdef ", "A", true},
		{"md5", "D41D8CD98F00B204E9800998ECF8427E", "N", true},
		{"ed2k", "d41d8cd98f00b204e9800998ecf8427e", "", false},
		{"sha1", "0123456789abcdef0123456789abcdef", "", false},
	}
	for _, tt := range tests {
		got, ok := list.Lookup(tt.hashType, tt.hash)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Lookup(%q, %q) = %q, %v; want %q, %v", tt.hashType, tt.hash, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRejectsBadHeader(t *testing.T) {
	for _, input := range []string{"", "hash,status\naa,A\n"} {
		if _, err := Parse(strings.NewReader(input)); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kff.csv")
	if err := os.WriteFile(path, []byte("hash_type,hash,status\nmd5,aabb,A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if status, ok := list.Lookup("md5", "AABB"); !ok || status != "A" {
		t.Fatalf("Lookup = %q, %v", status, ok)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv"), nil); err == nil {
		t.Fatal("expected error for missing list")
	}
}

func TestNilListLookup(t *testing.T) {
	var list *List
	if _, ok := list.Lookup("md5", "aa"); ok || list.Len() != 0 {
		t.Fatal("nil list should be empty")
	}
}
