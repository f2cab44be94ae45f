package markup

import (
	"strings"

	"golang.org/x/net/html"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokStart
	tokEnd
	tokSelfClosing
)

type token struct {
	kind  tokenKind
	name  string
	attrs map[string]string
	text  string
}

func (t token) attr(key string) string { return t.attrs[key] }

// scanner classifies markup into text, open, close and self-closing tokens.
// Entity references are resolved inside text tokens; comments and doctypes
// are dropped.
type scanner struct {
	z *html.Tokenizer
}

func newScanner(text string) *scanner {
	return &scanner{z: html.NewTokenizer(strings.NewReader(text))}
}

func (s *scanner) next() (token, bool) {
	for {
		tt := s.z.Next()
		switch tt {
		case html.ErrorToken:
			return token{}, false
		case html.TextToken:
			return token{kind: tokText, text: string(s.z.Text())}, true
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := s.z.TagName()
			tok := token{kind: tokStart, name: string(name)}
			if tt == html.SelfClosingTagToken {
				tok.kind = tokSelfClosing
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = s.z.TagAttr()
				if tok.attrs == nil {
					tok.attrs = make(map[string]string)
				}
				tok.attrs[string(key)] = string(val)
			}
			return tok, true
		case html.EndTagToken:
			name, _ := s.z.TagName()
			return token{kind: tokEnd, name: string(name)}, true
		}
	}
}

// collectText consumes tokens up to the close tag matching open and returns
// the enclosed text. Nested tags of the same name are balanced.
func (s *scanner) collectText(open token) string {
	if open.kind == tokSelfClosing {
		return ""
	}
	var b strings.Builder
	depth := 1
	for {
		tok, ok := s.next()
		if !ok {
			return b.String()
		}
		switch tok.kind {
		case tokText:
			b.WriteString(tok.text)
		case tokStart:
			if tok.name == open.name {
				depth++
			}
		case tokEnd:
			if tok.name == open.name {
				depth--
				if depth == 0 {
					return b.String()
				}
			}
		}
	}
}

// node is an element subtree read by subtree.
type node struct {
	name     string
	attrs    map[string]string
	text     string
	children []*node
}

// subtree consumes tokens up to the close tag matching open and returns the
// enclosed element tree. A close tag with no open counterpart is ignored;
// one that closes an outer element also closes the inner ones.
func (s *scanner) subtree(open token) *node {
	root := &node{name: open.name, attrs: open.attrs}
	if open.kind == tokSelfClosing {
		return root
	}
	stack := []*node{root}
	for {
		tok, ok := s.next()
		if !ok {
			return root
		}
		top := stack[len(stack)-1]
		switch tok.kind {
		case tokText:
			top.text += tok.text
		case tokSelfClosing:
			top.children = append(top.children, &node{name: tok.name, attrs: tok.attrs})
		case tokStart:
			child := &node{name: tok.name, attrs: tok.attrs}
			top.children = append(top.children, child)
			stack = append(stack, child)
		case tokEnd:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == tok.name {
					stack = stack[:i]
					break
				}
			}
			if len(stack) == 0 {
				return root
			}
		}
	}
}

func (n *node) attr(key string) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.attrs[key])
}

func (n *node) child(name string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *node) all(name string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// textOf returns the trimmed text of the first child called name.
func (n *node) textOf(name string) string {
	c := n.child(name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.text)
}
