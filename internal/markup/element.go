package markup

import "strings"

// Kind discriminates Message Elements.
type Kind string

const (
	KindText   Kind = "text"
	KindSystem Kind = "system"
	KindHref   Kind = "href"
	KindEmoji  Kind = "emoji"
	KindFlag   Kind = "flag"
	KindStart  Kind = "start"
	KindEnd    Kind = "end"
)

// Span names carried by start/end elements.
const (
	SpanBold   = "b"
	SpanItalic = "i"
	SpanStrike = "s"
	SpanQuote  = "quote"
)

// Element is one node of a parsed chat message.
//
// Text holds the content of text and system elements and the fallback label
// of emoji and flag elements whose code is unknown. Code holds the resolved
// glyph. Span names the formatting span of start and end elements; Author and
// Timestamp are only set on a quote start.
type Element struct {
	Kind      Kind   `json:"kind"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	Code      string `json:"code,omitempty"`
	Span      string `json:"span,omitempty"`
	Author    string `json:"author,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Element constructors.
func Text(s string) Element     { return Element{Kind: KindText, Text: s} }
func System(s string) Element   { return Element{Kind: KindSystem, Text: s} }
func Href(url string) Element   { return Element{Kind: KindHref, URL: url} }
func Start(span string) Element { return Element{Kind: KindStart, Span: span} }
func End(span string) Element   { return Element{Kind: KindEnd, Span: span} }

// StartQuote opens a quoted reply.
func StartQuote(author string, timestamp int64) Element {
	return Element{Kind: KindStart, Span: SpanQuote, Author: author, Timestamp: timestamp}
}

// Elements is an ordered element sequence that merges adjacent text and
// adjacent system nodes on insertion.
type Elements []Element

// Append adds e, merging it into the last element when both are text or both
// are system nodes. Empty text is dropped.
func (es *Elements) Append(e Element) {
	if (e.Kind == KindText || e.Kind == KindSystem) && e.Text == "" {
		return
	}
	if n := len(*es); n > 0 {
		last := &(*es)[n-1]
		switch {
		case e.Kind == KindText && last.Kind == KindText:
			last.Text += e.Text
			return
		case e.Kind == KindSystem && last.Kind == KindSystem:
			last.Text += ". " + e.Text
			return
		}
	}
	*es = append(*es, e)
}

// PlainText flattens elements into readable text.
func PlainText(elements []Element) string {
	var b strings.Builder
	for _, e := range elements {
		switch e.Kind {
		case KindText, KindSystem:
			b.WriteString(e.Text)
		case KindHref:
			b.WriteString(e.URL)
		case KindEmoji, KindFlag:
			if e.Code != "" {
				b.WriteString(e.Code)
			} else {
				b.WriteString(e.Text)
			}
		case KindStart:
			if e.Span == SpanQuote {
				b.WriteString("[")
				if e.Author != "" {
					b.WriteString(e.Author)
					b.WriteString(": ")
				}
			}
		case KindEnd:
			if e.Span == SpanQuote {
				b.WriteString("] ")
			}
		}
	}
	return strings.TrimSpace(b.String())
}
