package report

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrTooLarge reports a report exceeding the configured size limit.
var ErrTooLarge = errors.New("report exceeds size limit")

// Handler receives the content of a report as it is parsed. Returning an
// error stops parsing and the error is returned from Parse.
type Handler interface {
	TaggedFile(ctx context.Context, f File) error
	Evidence(ctx context.Context, m *Model) error
}

// Funcs adapts plain functions to Handler. Nil functions ignore their input.
type Funcs struct {
	OnFile  func(ctx context.Context, f File) error
	OnModel func(ctx context.Context, m *Model) error
}

// TaggedFile implements Handler.
func (h Funcs) TaggedFile(ctx context.Context, f File) error {
	if h.OnFile == nil {
		return nil
	}
	return h.OnFile(ctx, f)
}

// Evidence implements Handler.
func (h Funcs) Evidence(ctx context.Context, m *Model) error {
	if h.OnModel == nil {
		return nil
	}
	return h.OnModel(ctx, m)
}

// Stats summarizes a parse.
type Stats struct {
	Version string
	Files   int
	Models  int
}

// Parse reads the report from r, pushing every tagged file and every
// top-level decoded model to h. maxBytes of zero or less disables the size
// limit. Files are always delivered before the models that follow them in
// the document.
func Parse(ctx context.Context, r io.Reader, h Handler, maxBytes int64) (Stats, error) {
	var stats Stats
	if maxBytes > 0 {
		r = &limitedReader{r: r, remaining: maxBytes}
	}
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var stack []string
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if len(stack) > 0 {
				return stats, fmt.Errorf("report ended inside <%s>", stack[len(stack)-1])
			}
			if stats.Version == "" {
				return stats, errors.New("report is empty")
			}
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("parse report: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case len(stack) == 0:
				stats.Version = attr(t, "reportVersion")
				if stats.Version == "" {
					stats.Version = "unknown"
				}
			case name == "file" && parent(stack) == "taggedFiles":
				var fx fileXML
				if err := dec.DecodeElement(&fx, &t); err != nil {
					return stats, fmt.Errorf("decode tagged file: %w", err)
				}
				stats.Files++
				if err := h.TaggedFile(ctx, fx.file()); err != nil {
					return stats, err
				}
				continue
			case name == "model" && parent(stack) == "modelType":
				var mx modelXML
				if err := dec.DecodeElement(&mx, &t); err != nil {
					return stats, fmt.Errorf("decode %s model: %w", attr(t, "type"), err)
				}
				stats.Models++
				if err := h.Evidence(ctx, mx.model()); err != nil {
					return stats, err
				}
				continue
			}
			stack = append(stack, name)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
}

func parent(stack []string) string {
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1]
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func isDeleted(state string) bool {
	return strings.EqualFold(strings.TrimSpace(state), "Deleted")
}

type valueXML struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

type fieldXML struct {
	Name   string     `xml:"name,attr"`
	Values []valueXML `xml:"value"`
}

type modelFieldXML struct {
	Name   string      `xml:"name,attr"`
	Models []*modelXML `xml:"model"`
}

type modelXML struct {
	Type             string          `xml:"type,attr"`
	ID               string          `xml:"id,attr"`
	DeletedState     string          `xml:"deleted_state,attr"`
	Fields           []fieldXML      `xml:"field"`
	MultiFields      []fieldXML      `xml:"multiField"`
	ModelFields      []modelFieldXML `xml:"modelField"`
	MultiModelFields []modelFieldXML `xml:"multiModelField"`
}

func (mx *modelXML) model() *Model {
	m := NewModel(mx.Type)
	m.ID = mx.ID
	m.Deleted = isDeleted(mx.DeletedState)
	for _, f := range mx.Fields {
		if len(f.Values) > 0 {
			m.SetField(f.Name, Value{Type: f.Values[0].Type, Text: f.Values[0].Text})
		} else {
			m.SetField(f.Name, Value{})
		}
	}
	for _, f := range mx.MultiFields {
		for _, v := range f.Values {
			m.AddListValue(f.Name, strings.TrimSpace(v.Text))
		}
	}
	for _, group := range [][]modelFieldXML{mx.ModelFields, mx.MultiModelFields} {
		for _, mf := range group {
			for _, child := range mf.Models {
				m.AddChild(mf.Name, child.model())
			}
		}
	}
	return m
}

type timestampXML struct {
	Name string `xml:"name,attr"`
	Text string `xml:",chardata"`
}

type metadataXML struct {
	Section string `xml:"section,attr"`
	Items   []struct {
		Name string `xml:"name,attr"`
		Text string `xml:",chardata"`
	} `xml:"item"`
}

type fileXML struct {
	ID         string         `xml:"id,attr"`
	Path       string         `xml:"path,attr"`
	FS         string         `xml:"fs,attr"`
	Size       string         `xml:"size,attr"`
	Deleted    string         `xml:"deleted,attr"`
	Timestamps []timestampXML `xml:"accessInfo>timestamp"`
	Metadata   []metadataXML  `xml:"metadata"`
}

func (fx fileXML) file() File {
	f := File{
		ID:         fx.ID,
		Path:       fx.Path,
		FS:         fx.FS,
		Deleted:    isDeleted(fx.Deleted),
		Timestamps: make(map[string]time.Time),
		Metadata:   make(map[string]string),
	}
	if size, err := strconv.ParseInt(strings.TrimSpace(fx.Size), 10, 64); err == nil {
		f.Size = size
	}
	for _, ts := range fx.Timestamps {
		if t, ok := ParseTime(ts.Text); ok {
			f.Timestamps[ts.Name] = t
		}
	}
	for _, section := range fx.Metadata {
		for _, item := range section.Items {
			if _, seen := f.Metadata[item.Name]; !seen {
				f.Metadata[item.Name] = strings.TrimSpace(item.Text)
			}
		}
	}
	return f
}

// limitedReader fails with ErrTooLarge instead of silently truncating.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Read one more byte so a report of exactly the limit passes.
		var extra [1]byte
		n, err := l.r.Read(extra[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
