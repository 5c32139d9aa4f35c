package aijson

import (
	"strings"
)

// Clean repairs the common defects of model-written JSON. It scans the text
// once, tracking string literals so their contents are never rewritten:
//   - control characters other than \n, \r and \t are dropped
//   - // line comments and /* */ block comments are dropped
//   - trailing commas before } or ] are dropped
//   - single-quoted strings become double-quoted
//   - bare keys ({key: or ,1:) are quoted
func Clean(text string) string {
	src := []rune(strings.TrimSpace(stripControl(text)))
	var out strings.Builder
	out.Grow(len(src) + 16)

	n := len(src)
	for i := 0; i < n; i++ {
		c := src[i]
		switch {
		case c == '"':
			i = copyString(&out, src, i, '"')
		case c == '\'':
			i = copyString(&out, src, i, '\'')
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i+1 < n && src[i+1] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i < n && !(src[i] == '*' && i+1 < n && src[i+1] == '/') {
				i++
			}
			i++ // land on the closing '/'
		case c == ',':
			if j := skipInsignificant(src, i+1); j < n && (src[j] == '}' || src[j] == ']') {
				continue
			}
			out.WriteRune(c)
			i = quoteBareKey(&out, src, i)
		case c == '{':
			out.WriteRune(c)
			i = quoteBareKey(&out, src, i)
		default:
			out.WriteRune(c)
		}
	}
	return out.String()
}

// copyString writes the literal starting at src[start] (delimited by quote)
// as a double-quoted JSON string and returns the index of its closing quote.
func copyString(out *strings.Builder, src []rune, start int, quote rune) int {
	out.WriteRune('"')
	i := start + 1
	for ; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			next := src[i+1]
			if quote == '\'' && next == '\'' {
				out.WriteRune('\'') // \' is not a valid JSON escape
			} else {
				out.WriteRune(c)
				out.WriteRune(next)
			}
			i++
		case c == quote:
			out.WriteRune('"')
			return i
		case c == '"':
			out.WriteString(`\"`) // only reachable inside a single-quoted literal
		default:
			out.WriteRune(c)
		}
	}
	return i
}

// quoteBareKey looks past src[pos] (a '{' or ',') for an unquoted key followed
// by ':' and, if found, writes it quoted. Whitespace and comments between
// pos and the key are dropped. It returns the last consumed index.
func quoteBareKey(out *strings.Builder, src []rune, pos int) int {
	j := skipInsignificant(src, pos+1)
	k := j
	for k < len(src) && isKeyRune(src[k]) {
		k++
	}
	if k == j {
		return pos
	}
	colon := skipBlank(src, k)
	if colon >= len(src) || src[colon] != ':' {
		return pos
	}
	key := string(src[j:k])
	if key == "true" || key == "false" || key == "null" {
		return pos
	}
	out.WriteRune('"')
	out.WriteString(key)
	out.WriteRune('"')
	return k - 1
}

func isKeyRune(c rune) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func skipBlank(src []rune, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\n' || src[i] == '\r' || src[i] == '\t') {
		i++
	}
	return i
}

func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, text)
}

// skipInsignificant is skipBlank that also steps over comments.
func skipInsignificant(src []rune, i int) int {
	for {
		i = skipBlank(src, i)
		if i+1 >= len(src) || src[i] != '/' {
			return i
		}
		switch src[i+1] {
		case '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
		default:
			return i
		}
	}
}
