package condfilter

import "strings"

// Item is one element of the collection being filtered.
type Item = map[string]any

// Lookup resolves a dot-separated path through nested maps.
// It reports false as soon as a segment is missing or the current value is
// not a map; it never panics.
func Lookup(item map[string]any, path string) (any, bool) {
	if item == nil || path == "" {
		return nil, false
	}

	var current any = item
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// PathDepth returns the number of segments in a field path.
func PathDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, ".") + 1
}
