package pattern

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"
)

type addMode int

const (
	modeNew addMode = iota
	modeFuzzy
	modeRegex
	modeStartsWith
	modeEndsWith
)

// emptyRegex stands in for a regex term whose source does not (yet)
// compile; it matches everything.
var emptyRegex = regexp.MustCompile("")

type regexTerm struct {
	re  *regexp.Regexp
	src string
}

// matcher holds the compiled form of the pattern text. A nil
// startsWith/endsWith means the anchor is absent; a non-nil empty one
// means it was given with an empty body, which is a different thing
// for AnyMatches.
type matcher struct {
	terms      []regexTerm
	startsWith []byte
	endsWith   []byte
	mode       addMode
	escape     bool
	text       string
	badRegex   string
}

func (m *matcher) add(text string) Scope {
	scope := ScopeNarrow
	m.text += text

	frags := strings.Split(text, " ")
	i := 0
	if m.mode != modeNew {
		first := frags[0]
		i = 1
		if first != "" {
			switch m.mode {
			case modeFuzzy:
				m.extendRegex(m.relaxedRE(first))
			case modeRegex:
				m.extendRegex(first)
			case modeStartsWith:
				m.startsWith = m.unescapeExtend(m.startsWith, first)
			case modeEndsWith:
				scope = ScopeChange
				m.endsWith = m.unescapeExtend(m.endsWith, first)
			}
		}
	}

	for _, p := range frags[i:] {
		if p == "" {
			m.mode = modeNew
			continue
		}
		switch p[0] {
		case '<':
			m.startsWith = m.unescapeExtend(m.startsWith, p[1:])
			m.mode = modeStartsWith
		case '>':
			m.endsWith = m.unescapeExtend(m.endsWith, p[1:])
			scope = ScopeChange
			m.mode = modeEndsWith
		case '*':
			m.appendRegex(p[1:])
			m.mode = modeRegex
		default:
			m.appendRegex(m.relaxedRE(p))
			m.mode = modeFuzzy
		}
	}
	return scope
}

func (m *matcher) rm(amount int) Scope {
	text := m.text
	m.reset()
	if amount < len(text) {
		m.add(text[:len(text)-amount])
	}
	return ScopeChange
}

func (m *matcher) set(start int, text string) Scope {
	if start > len(m.text) {
		start = len(m.text)
	}
	if start == len(m.text) {
		return m.add(text)
	}
	pfx, sfx := m.text[:start], m.text[start:]
	if rest, ok := strings.CutPrefix(text, sfx); ok {
		return m.add(rest)
	}

	whole := pfx + text
	m.reset()
	m.add(whole)
	return ScopeChange
}

func (m *matcher) reset() {
	*m = matcher{}
}

func (m *matcher) allMatches(haystack []byte) bool {
	if m.text == "" {
		return true
	}
	if m.startsWith != nil && !bytes.HasPrefix(haystack, m.startsWith) {
		return false
	}
	if m.endsWith != nil && !bytes.HasSuffix(haystack, m.endsWith) {
		return false
	}
	for _, t := range m.terms {
		if !t.re.Match(haystack) {
			return false
		}
	}
	return true
}

func (m *matcher) anyMatches(haystack []byte) bool {
	if m.text == "" {
		return false
	}
	if m.startsWith != nil && bytes.HasPrefix(haystack, m.startsWith) {
		return true
	}
	if m.endsWith != nil && bytes.HasSuffix(haystack, m.endsWith) {
		return true
	}
	for _, t := range m.terms {
		if t.re.Match(haystack) {
			return true
		}
	}
	return false
}

// appendRegex starts a new regex term. A source that fails to compile
// is remembered so later adds can extend it and retry; until then the
// slot holds the empty regex.
func (m *matcher) appendRegex(src string) {
	term := regexTerm{src: src}
	re, err := makeRegex(src)
	if err != nil {
		term.re = emptyRegex
		m.badRegex = src
	} else {
		term.re = re
		m.badRegex = ""
	}
	m.terms = append(m.terms, term)
}

func (m *matcher) extendRegex(ext string) {
	last := &m.terms[len(m.terms)-1]
	last.src += ext
	re, err := makeRegex(last.src)
	if err != nil {
		last.re = emptyRegex
		m.badRegex = last.src
		return
	}
	last.re = re
	m.badRegex = ""
}

// relaxedRE expands a fuzzy term: each character matches itself
// followed by anything within the same path segment, and `/` crosses
// segments explicitly. `\s` decodes to a space; a dangling `\` carries
// over into the next add.
func (m *matcher) relaxedRE(text string) string {
	var b strings.Builder
	esc := m.escape
	for _, c := range text {
		if !esc && c == '\\' {
			esc = true
			continue
		}
		if esc {
			esc = false
			if c == 's' {
				c = ' '
			}
		}
		if c == '/' {
			b.WriteString("/.*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(c)))
			b.WriteString("[^/]*")
		}
	}
	m.escape = esc
	return b.String()
}

// unescapeExtend appends the decoded bytes of ext to cur, sharing the
// same escape carry-over as relaxedRE.
func (m *matcher) unescapeExtend(cur []byte, ext string) []byte {
	if cur == nil {
		cur = []byte{}
	}
	esc := m.escape
	var buf [utf8.UTFMax]byte
	for _, c := range ext {
		if !esc && c == '\\' {
			esc = true
			continue
		}
		if esc {
			esc = false
			if c == 's' {
				cur = append(cur, ' ')
				continue
			}
		}
		n := utf8.EncodeRune(buf[:], c)
		cur = append(cur, buf[:n]...)
	}
	m.escape = esc
	return cur
}

// makeRegex compiles with lazy quantifiers, case-insensitively when
// the source is all lowercase.
func makeRegex(src string) (*regexp.Regexp, error) {
	flags := "(?U)"
	if src == strings.ToLower(src) {
		flags = "(?iU)"
	}
	return regexp.Compile(flags + src)
}
