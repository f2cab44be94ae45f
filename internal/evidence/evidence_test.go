package evidence_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"forager/internal/evidence"
	"forager/internal/markup"
)

func TestMetadataPreservesInsertionOrder(t *testing.T) {
	m := evidence.NewMetadata()
	m.Set("source.evidence_type", "cookie")
	m.Set("source.evidence_id", int64(12))
	m.Set("source.name", "LBSRC")
	m.Set("source.evidence_type", "cookie")

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[["source.evidence_type","cookie"],["source.evidence_id",12],["source.name","LBSRC"]]`
	if string(data) != want {
		t.Fatalf("unexpected json:\n got %s\nwant %s", data, want)
	}

	var decoded evidence.Metadata
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(m.Keys(), decoded.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := decoded.Get("source.evidence_id"); v != int64(12) {
		t.Fatalf("expected int64 12, got %#v", v)
	}
}

func TestMetadataDelete(t *testing.T) {
	m := evidence.NewMetadata()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)
	m.Delete("b")
	if diff := cmp.Diff([]string{"a", "c"}, m.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if m.Len() != 2 {
		t.Fatalf("expected len 2, got %d", m.Len())
	}
}

func TestRecordRejectsUnknownAttribute(t *testing.T) {
	r, err := evidence.NewRecord(evidence.TypeCookie)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if err := r.Set("nickname", "x"); !errors.Is(err, evidence.ErrUnknownAttribute) {
		t.Fatalf("expected ErrUnknownAttribute, got %v", err)
	}
	if err := r.Set("creation_time", "yesterday"); !errors.Is(err, evidence.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
}

func TestNewRecordUnknownType(t *testing.T) {
	if _, err := evidence.NewRecord("telegram"); !errors.Is(err, evidence.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestRecordAttrsRoundTrip(t *testing.T) {
	r, err := evidence.NewRecord(evidence.TypeChatMessage)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	ts := time.Date(2014, 3, 2, 10, 4, 5, 0, time.UTC)
	elements := []markup.Element{markup.Start(markup.SpanBold), markup.Text("hi"), markup.End(markup.SpanBold)}
	err = r.SetAll(map[string]any{
		"sender":     "alice (Alice)",
		"recipients": []string{"bob"},
		"timestamp":  ts,
		"text":       elements,
		"plain_text": "hi",
	})
	if err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	data, err := r.MarshalAttrs()
	if err != nil {
		t.Fatalf("MarshalAttrs: %v", err)
	}
	clone, _ := evidence.NewRecord(evidence.TypeChatMessage)
	if err := clone.UnmarshalAttrs(data); err != nil {
		t.Fatalf("UnmarshalAttrs: %v", err)
	}
	if !clone.Time("timestamp").Equal(ts) {
		t.Fatalf("timestamp mismatch: %v", clone.Time("timestamp"))
	}
	if diff := cmp.Diff(elements, clone.RichText("text")); diff != "" {
		t.Fatalf("rich text mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"sender", "recipients", "timestamp", "text", "plain_text"}, clone.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if !evidence.Equal(r, clone) {
		t.Fatal("expected records to be equal by content")
	}
}

func TestRecordIntCoercion(t *testing.T) {
	r, _ := evidence.NewRecord(evidence.TypeSharedFile)
	if err := r.Set("size", uint32(4096)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if r.Int("size") != 4096 {
		t.Fatalf("expected 4096, got %d", r.Int("size"))
	}
	if err := r.Set("last_shared_time", time.Time{}); err != nil {
		t.Fatalf("zero time should be accepted: %v", err)
	}
	if _, ok := r.Get("last_shared_time"); ok {
		t.Fatal("zero time should not be stored")
	}
}

func TestTagsAreASet(t *testing.T) {
	r, _ := evidence.NewRecord(evidence.TypeSharedFile)
	r.AddTag("alert.kff")
	r.AddTag("alert")
	r.AddTag("alert")
	r.AddTag(" ")
	if diff := cmp.Diff([]string{"alert", "alert.kff"}, r.Tags()); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDatasource(t *testing.T) {
	tests := []struct {
		in      string
		want    evidence.Datasource
		wantErr bool
	}{
		{in: "volume:/mnt/image", want: evidence.Datasource{Kind: evidence.DatasourceVolume, Path: "/mnt/image"}},
		{in: "REPORT:C:\\cases\\report.xml", want: evidence.Datasource{Kind: evidence.DatasourceReport, Path: "C:\\cases\\report.xml"}},
		{in: "volume:", wantErr: true},
		{in: "tape:/dev/st0", wantErr: true},
		{in: "/mnt/image", wantErr: true},
	}
	for _, tt := range tests {
		got, err := evidence.ParseDatasource(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDatasource(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDatasource(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDatasource(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestSchemasAreComplete(t *testing.T) {
	for _, typ := range evidence.Types() {
		schema, ok := evidence.Lookup(typ)
		if !ok || len(schema.Fields) == 0 || schema.Label == "" {
			t.Errorf("schema %q incomplete: %#v", typ, schema)
		}
		for _, h := range schema.Hashes {
			if _, ok := schema.Field(h.Attr); !ok {
				t.Errorf("schema %q hash attribute %q missing", typ, h.Attr)
			}
		}
	}
}
