package phase

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// located is a value found in a resource with its FHIRPath location.
type located struct {
	path  string
	value any
}

// valuesAt collects the values at rel below root. Arrays are flattened and
// their indexes recorded in the path. A trailing "[x]" segment matches every
// typed variant of a choice element.
func valuesAt(root map[string]any, rootPath, rel string) []located {
	current := []located{{path: rootPath, value: root}}
	if rel == "" {
		return current
	}
	for _, seg := range strings.Split(rel, ".") {
		var next []located
		for _, loc := range current {
			m, ok := loc.value.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range matchKeys(m, seg) {
				next = append(next, expand(loc.path+"."+key, m[key])...)
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// countAt returns how many values seg holds directly in m.
func countAt(m map[string]any, seg string) int {
	n := 0
	for _, key := range matchKeys(m, seg) {
		if arr, ok := m[key].([]any); ok {
			n += len(arr)
		} else if m[key] != nil {
			n++
		}
	}
	return n
}

func expand(path string, v any) []located {
	arr, ok := v.([]any)
	if !ok {
		return []located{{path: path, value: v}}
	}
	out := make([]located, 0, len(arr))
	for i, item := range arr {
		out = append(out, located{path: path + "[" + strconv.Itoa(i) + "]", value: item})
	}
	return out
}

func matchKeys(m map[string]any, seg string) []string {
	if !strings.HasSuffix(seg, "[x]") {
		if _, ok := m[seg]; ok {
			return []string{seg}
		}
		return nil
	}
	base := strings.TrimSuffix(seg, "[x]")
	var keys []string
	for k := range m {
		if isChoiceOf(k, base) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// isChoiceOf reports whether key is a typed variant of choice element base,
// e.g. deceasedBoolean for deceased.
func isChoiceOf(key, base string) bool {
	if len(key) <= len(base) || !strings.HasPrefix(key, base) {
		return false
	}
	return unicode.IsUpper(rune(key[len(base)]))
}

// splitParent splits "a.b.c" into "a.b" and "c".
func splitParent(rel string) (string, string) {
	idx := strings.LastIndex(rel, ".")
	if idx == -1 {
		return "", rel
	}
	return rel[:idx], rel[idx+1:]
}
