// Package extract locates known semantic sub-trees (per-day maps, overview
// metadata, weekly structure) inside loosely keyed AI plan payloads.
package extract

import (
	"sort"
	"strings"
)

// Candidate is one possible location of a target field. Exactly one of Path
// or Heuristic is set. Candidates are evaluated in table order and the first one
// yielding a non-empty object or array wins for its target.
type Candidate struct {
	Target    string
	Path      []string
	Accept    func(any) bool
	Heuristic func(root map[string]any) (any, bool)
	Label     string // recorded as the extraction method; defaults to the dotted path
}

func (p Candidate) label() string {
	if p.Label != "" {
		return p.Label
	}
	return strings.Join(p.Path, ".")
}

// Match is the outcome of resolving one target.
type Match struct {
	Value  any
	Method string
}

// Resolve evaluates the candidate table against root and returns the first
// match for every target that was found.
func Resolve(root map[string]any, table []Candidate) map[string]Match {
	found := make(map[string]Match)
	for _, p := range table {
		if _, done := found[p.Target]; done {
			continue
		}
		v, ok := p.try(root)
		if !ok {
			continue
		}
		found[p.Target] = Match{Value: v, Method: p.label()}
	}
	return found
}

func (p Candidate) try(root map[string]any) (any, bool) {
	var v any
	if p.Heuristic != nil {
		var ok bool
		if v, ok = p.Heuristic(root); !ok {
			return nil, false
		}
	} else {
		var ok bool
		if v, ok = lookup(root, p.Path); !ok {
			return nil, false
		}
	}
	if !nonEmptyContainer(v) {
		return nil, false
	}
	if p.Accept != nil && !p.Accept(v) {
		return nil, false
	}
	return v, true
}

func lookup(root map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var cur any = root
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func nonEmptyContainer(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return false
	}
}

// truthy mirrors the loose "is this field present" test used for allow-listed fields.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
