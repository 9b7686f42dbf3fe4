package settings

import (
	"regexp"
	"strings"
)

// element is one entry of a list literal. Plain string literals are kept
// unquoted in value; anything else (names, calls, escaped or concatenated
// strings) is kept verbatim with literal unset.
type element struct {
	value   string
	literal bool
}

// listLiteral is a top-level `NAME = [...]` assignment; src[start:end]
// spans the bracketed literal from '[' through ']'.
type listLiteral struct {
	start int
	end   int
	items []element
}

func (l listLiteral) values() []string {
	out := make([]string, len(l.items))
	for i, e := range l.items {
		out[i] = e.value
	}
	return out
}

// walk visits every byte of src from offset outside string literals and
// comments, passing the bracket depth before that byte is applied.
// Returning false from fn stops the walk.
func walk(src string, from int, fn func(i, depth int) bool) {
	depth := 0
	for i := from; i < len(src); {
		switch src[i] {
		case '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case '\'', '"':
			i = skipString(src, i)
			continue
		}

		if !fn(i, depth) {
			return
		}
		switch src[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		}
		i++
	}
}

// skipString returns the offset just past the string literal opening at i.
// An unterminated single-line string ends at the newline.
func skipString(src string, i int) int {
	q := src[i]
	if delim := strings.Repeat(string(q), 3); strings.HasPrefix(src[i:], delim) {
		for j := i + 3; j < len(src); {
			if src[j] == '\\' {
				j += 2
				continue
			}
			if strings.HasPrefix(src[j:], delim) {
				return j + 3
			}
			j++
		}
		return len(src)
	}

	for j := i + 1; j < len(src); {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case q:
			return j + 1
		case '\n':
			return j
		}
		j++
	}
	return len(src)
}

// findList locates the first top-level `name = [` assignment and parses
// its elements.
func findList(src, name string) (listLiteral, bool) {
	head := regexp.MustCompile(`\A` + regexp.QuoteMeta(name) + `[ \t]*=[ \t]*\[`)

	open := -1
	walk(src, 0, func(i, depth int) bool {
		if depth != 0 || (i > 0 && src[i-1] != '\n') {
			return true
		}
		if loc := head.FindStringIndex(src[i:]); loc != nil {
			open = i + loc[1] - 1
			return false
		}
		return true
	})
	if open < 0 {
		return listLiteral{}, false
	}

	end := matchBracket(src, open)
	if end < 0 {
		return listLiteral{}, false
	}
	return listLiteral{
		start: open,
		end:   end,
		items: splitElements(src[open+1 : end-1]),
	}, true
}

// matchBracket returns the offset just past the bracket closing the one at
// open, or -1 if it is never closed.
func matchBracket(src string, open int) int {
	end := -1
	walk(src, open, func(i, depth int) bool {
		if i > open && depth == 1 && strings.IndexByte("])}", src[i]) >= 0 {
			end = i + 1
			return false
		}
		return true
	})
	return end
}

// blankComments replaces comment text with spaces, keeping offsets intact.
func blankComments(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); {
		switch b[i] {
		case '#':
			for i < len(b) && b[i] != '\n' {
				b[i] = ' '
				i++
			}
		case '\'', '"':
			i = skipString(s, i)
		default:
			i++
		}
	}
	return string(b)
}

func splitElements(body string) []element {
	body = blankComments(body)

	var pieces []string
	last := 0
	walk(body, 0, func(i, depth int) bool {
		if depth == 0 && body[i] == ',' {
			pieces = append(pieces, body[last:i])
			last = i + 1
		}
		return true
	})
	pieces = append(pieces, body[last:])

	var items []element
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		items = append(items, parseElement(p))
	}
	return items
}

func parseElement(p string) element {
	q := p[0]
	if (q == '\'' || q == '"') && skipString(p, 0) == len(p) && !strings.Contains(p, `\`) {
		n := 1
		if len(p) >= 6 && strings.HasPrefix(p, strings.Repeat(string(q), 3)) {
			n = 3
		}
		if len(p) >= 2*n {
			return element{value: p[n : len(p)-n], literal: true}
		}
	}
	return element{value: p}
}

// render formats items in the layout Django's startproject emits.
func render(items []element) string {
	var b strings.Builder
	b.WriteString("[\n")
	for _, e := range items {
		b.WriteString("    ")
		switch {
		case !e.literal:
			b.WriteString(e.value)
		case strings.Contains(e.value, "'"):
			b.WriteString(`"` + e.value + `"`)
		default:
			b.WriteString("'" + e.value + "'")
		}
		b.WriteString(",\n")
	}
	b.WriteString("]")
	return b.String()
}
