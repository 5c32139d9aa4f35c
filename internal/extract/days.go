package extract

import (
	"strconv"
	"strings"
)

// MaxDay is the largest day-of-month accepted as a per-day key.
const MaxDay = 31

// DayIndex parses the admissible per-day key encodings "N", "day_N" and "dayN".
func DayIndex(key string) (int, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "day")
	k = strings.TrimPrefix(k, "_")
	n, err := strconv.Atoi(k)
	if err != nil || n < 1 || n > MaxDay {
		return 0, false
	}
	return n, true
}

// DayKeys lists the per-day key encodings for day in lookup priority order.
func DayKeys(day int) []string {
	n := strconv.Itoa(day)
	return []string{"day_" + n, n, "day" + n}
}

// DayEntry returns the object stored for day in a per-day map, trying each
// key encoding in priority order.
func DayEntry(daily map[string]any, day int) (map[string]any, bool) {
	for _, key := range DayKeys(day) {
		if entry, ok := daily[key].(map[string]any); ok {
			return entry, true
		}
	}
	return nil, false
}

// isDayMap reports whether every key of m is a day key.
func isDayMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if _, ok := DayIndex(k); !ok {
			return false
		}
	}
	return true
}

// looksPerDay accepts day-keyed objects and arrays of objects.
func looksPerDay(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return isDayMap(t)
	case []any:
		for _, item := range t {
			if _, ok := item.(map[string]any); !ok {
				return false
			}
		}
		return len(t) > 0
	}
	return false
}

// normalizeDaily turns a per-day array into a map keyed "1".."n"; maps are
// returned unchanged so their original key encoding survives.
func normalizeDaily(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, len(t) > 0
	case []any:
		out := make(map[string]any, len(t))
		for i, item := range t {
			out[strconv.Itoa(i+1)] = item
		}
		return out, len(out) > 0
	}
	return nil, false
}

// nestedDayMap finds a top-level object whose keys are all day keys.
func nestedDayMap(accept func(map[string]any) bool) func(map[string]any) (any, bool) {
	return func(root map[string]any) (any, bool) {
		for _, k := range sortedKeys(root) {
			m, ok := root[k].(map[string]any)
			if !ok || !isDayMap(m) {
				continue
			}
			if accept == nil || anyDay(m, accept) {
				return m, true
			}
		}
		return nil, false
	}
}

// topLevelDays gathers day-keyed object values sitting directly on the root.
func topLevelDays(accept func(map[string]any) bool) func(map[string]any) (any, bool) {
	return func(root map[string]any) (any, bool) {
		out := make(map[string]any)
		for k, v := range root {
			if _, ok := DayIndex(k); !ok {
				continue
			}
			day, ok := v.(map[string]any)
			if !ok || (accept != nil && !accept(day)) {
				continue
			}
			out[k] = day
		}
		return out, len(out) > 0
	}
}

func anyDay(m map[string]any, accept func(map[string]any) bool) bool {
	for _, v := range m {
		if day, ok := v.(map[string]any); ok && accept(day) {
			return true
		}
	}
	return false
}
