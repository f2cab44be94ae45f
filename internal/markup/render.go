package markup

import (
	"html"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

var spanTags = map[string]string{
	SpanBold:   "b",
	SpanItalic: "i",
	SpanStrike: "s",
}

// Renderer renders element sequences as sanitized HTML or Markdown.
type Renderer struct {
	policy *bluemonday.Policy
}

// NewRenderer returns a renderer with a user-generated-content policy that
// additionally keeps the system-line class.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("span", "blockquote")
	policy.RequireNoFollowOnLinks(true)
	return &Renderer{policy: policy}
}

// HTML renders elements as sanitized HTML.
func (r *Renderer) HTML(elements []Element) string {
	var b strings.Builder
	for _, e := range elements {
		switch e.Kind {
		case KindText:
			b.WriteString(strings.ReplaceAll(html.EscapeString(e.Text), "\n", "<br>"))
		case KindSystem:
			b.WriteString(`<span class="system"><em>`)
			b.WriteString(html.EscapeString(e.Text))
			b.WriteString(`</em></span>`)
		case KindHref:
			escaped := html.EscapeString(e.URL)
			b.WriteString(`<a href="` + escaped + `">` + escaped + `</a>`)
		case KindEmoji, KindFlag:
			if e.Code != "" {
				b.WriteString(html.EscapeString(e.Code))
			} else {
				b.WriteString("<em>" + html.EscapeString(e.Text) + "</em>")
			}
		case KindStart:
			if e.Span == SpanQuote {
				b.WriteString(`<blockquote class="quote">`)
				if header := quoteHeader(e); header != "" {
					b.WriteString("<p><cite>" + html.EscapeString(header) + "</cite></p>")
				}
			} else if tag, ok := spanTags[e.Span]; ok {
				b.WriteString("<" + tag + ">")
			}
		case KindEnd:
			if e.Span == SpanQuote {
				b.WriteString("</blockquote>")
			} else if tag, ok := spanTags[e.Span]; ok {
				b.WriteString("</" + tag + ">")
			}
		}
	}
	return r.policy.Sanitize(b.String())
}

// Markdown renders elements as Markdown.
func (r *Renderer) Markdown(elements []Element) (string, error) {
	md, err := htmltomarkdown.ConvertString(r.HTML(elements))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

func quoteHeader(e Element) string {
	header := e.Author
	if e.Timestamp > 0 {
		ts := time.Unix(e.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
		if header != "" {
			header += ", "
		}
		header += ts
	}
	return header
}
