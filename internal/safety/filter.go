// Package safety strips script- and markup-like content from AI-generated
// values while leaving their structure untouched.
package safety

import (
	"regexp"
	"strings"
)

// harmfulPatterns are removed from every string leaf, in order. Script-like
// blocks go first so their bodies disappear together with the tags.
var harmfulPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<\s*(script|style|iframe)[^>]*>.*?<\s*/\s*(script|style|iframe)\s*>`),
	regexp.MustCompile(`(?s)<[^>]*>`),
	regexp.MustCompile(`(?i)\b(javascript|vbscript)\s*:`),
	regexp.MustCompile(`(?i)data\s*:\s*text/html[^\s]*`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bfunction\s*\(`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Filter returns a deep copy of v in which every string leaf has been passed
// through Text. Object keys, array order and length, and non-string leaves are
// preserved exactly. It never fails; unknown types are returned as they are.
func Filter(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Filter(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Filter(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = Text(s)
		}
		return out
	default:
		return v
	}
}

// FilterObject is Filter for the common case of a JSON object.
func FilterObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Filter(m).(map[string]any)
}

// Text removes harmful substrings from s and collapses whitespace runs.
func Text(s string) string {
	for _, p := range harmfulPatterns {
		s = p.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
