package markup

import (
	"log/slog"
	"strconv"
	"strings"

	"forager/internal/logging"
)

// Parser converts chat markup into Message Elements. It owns its symbol
// tables and the sets of unknown tags and symbols it has already reported.
// A Parser is safe for concurrent use.
type Parser struct {
	logger         *slog.Logger
	symbols        *Symbols
	unknownTags    logging.OnceSet
	unknownSymbols logging.OnceSet
}

// NewParser returns a parser using the embedded symbol tables.
func NewParser(logger *slog.Logger) *Parser {
	symbols, err := DefaultSymbols()
	if err != nil {
		panic("markup: embedded symbols: " + err.Error())
	}
	return NewParserWithSymbols(logger, symbols)
}

// NewParserWithSymbols returns a parser using the given tables.
func NewParserWithSymbols(logger *slog.Logger, symbols *Symbols) *Parser {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Parser{logger: logger, symbols: symbols}
}

type tagHandler func(p *Parser, s *scanner, open token, out *Elements)

var tagHandlers map[string]tagHandler

func init() {
	tagHandlers = map[string]tagHandler{
		SpanBold:      (*Parser).openSpan,
		SpanItalic:    (*Parser).openSpan,
		SpanStrike:    (*Parser).openSpan,
		"a":           (*Parser).openLink,
		"ss":          (*Parser).openEmoticon,
		"flag":        (*Parser).openFlag,
		SpanQuote:     (*Parser).openQuote,
		"legacyquote": (*Parser).skipElement,
		"e_m":         (*Parser).skipElement,
		"at":          (*Parser).openMention,
	}
	for name := range directives {
		tagHandlers[name] = (*Parser).openDirective
	}
}

// Parse converts one markup string. Malformed or unknown markup never fails;
// unknown tags are reported once and their content is kept as text.
func (p *Parser) Parse(text string) []Element {
	var out Elements
	p.parseContent(newScanner(text), &out, "")
	if out == nil {
		return []Element{}
	}
	return out
}

// parseContent consumes tokens until the close tag named until, or the end
// of input when until is empty.
func (p *Parser) parseContent(s *scanner, out *Elements, until string) {
	for {
		tok, ok := s.next()
		if !ok {
			return
		}
		switch tok.kind {
		case tokText:
			out.Append(Text(tok.text))
		case tokEnd:
			if until != "" && tok.name == until {
				return
			}
			switch tok.name {
			case SpanBold, SpanItalic, SpanStrike:
				out.Append(End(tok.name))
			}
		case tokStart, tokSelfClosing:
			handler, ok := tagHandlers[tok.name]
			if !ok {
				p.unknownTags.Warn(p.logger, tok.name, "unknown markup tag", logging.String("tag", tok.name))
				continue
			}
			handler(p, s, tok, out)
		}
	}
}

func (p *Parser) openSpan(_ *scanner, open token, out *Elements) {
	out.Append(Start(open.name))
	if open.kind == tokSelfClosing {
		out.Append(End(open.name))
	}
}

// openLink keeps the link target only; the visible link text is dropped.
func (p *Parser) openLink(s *scanner, open token, out *Elements) {
	s.collectText(open)
	if href := strings.TrimSpace(open.attr("href")); href != "" {
		out.Append(Href(href))
	}
}

func (p *Parser) openEmoticon(s *scanner, open token, out *Elements) {
	code := strings.TrimSpace(open.attr("type"))
	label := strings.TrimSpace(s.collectText(open))
	if glyph, ok := p.symbols.Emoticon(code); ok {
		out.Append(Element{Kind: KindEmoji, Code: glyph})
		return
	}
	p.unknownSymbols.Warn(p.logger, "ss:"+code, "unknown emoticon", logging.String("type", code))
	if label == "" {
		label = code
	}
	out.Append(Element{Kind: KindEmoji, Text: label})
}

func (p *Parser) openFlag(s *scanner, open token, out *Elements) {
	code := strings.TrimSpace(open.attr("country"))
	label := strings.TrimSpace(s.collectText(open))
	if glyph, ok := p.symbols.Flag(code); ok {
		out.Append(Element{Kind: KindFlag, Code: glyph})
		return
	}
	p.unknownSymbols.Warn(p.logger, "flag:"+code, "unknown flag", logging.String("country", code))
	if label == "" {
		label = code
	}
	out.Append(Element{Kind: KindFlag, Text: label})
}

func (p *Parser) openQuote(s *scanner, open token, out *Elements) {
	ts, _ := strconv.ParseInt(strings.TrimSpace(open.attr("timestamp")), 10, 64)
	out.Append(StartQuote(quoteAuthor(open.attr("authorname"), open.attr("author")), ts))
	if open.kind != tokSelfClosing {
		p.parseContent(s, out, SpanQuote)
	}
	out.Append(End(SpanQuote))
}

func quoteAuthor(name, id string) string {
	name = strings.TrimSpace(name)
	id = strings.TrimSpace(id)
	switch {
	case name != "" && id != "" && name != id:
		return name + " (" + id + ")"
	case name != "":
		return name
	default:
		return id
	}
}

func (p *Parser) openMention(s *scanner, open token, out *Elements) {
	label := strings.TrimSpace(s.collectText(open))
	if label == "" {
		label = participantLabel(open.attr("id"))
	}
	if label != "" {
		out.Append(Text("@" + label))
	}
}

func (p *Parser) skipElement(s *scanner, open token, _ *Elements) {
	s.collectText(open)
}

func (p *Parser) openDirective(s *scanner, open token, out *Elements) {
	tree := s.subtree(open)
	if sentence := directives[open.name](p, tree); sentence != "" {
		out.Append(System(sentence))
	}
}
