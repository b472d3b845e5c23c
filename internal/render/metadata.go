package render

import (
	"iter"
	"maps"
	"slices"
)

// sortedMetadata iterates over metadata in key order.
func sortedMetadata(metadata map[string]string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, key := range slices.Sorted(maps.Keys(metadata)) {
			if !yield(key, metadata[key]) {
				return
			}
		}
	}
}
