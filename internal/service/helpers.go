package service

import (
	"sort"

	"github.com/google/uuid"
)

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isID reports whether id can name a stored row. Every store keys rows by
// UUID, so anything else is a miss without a round trip.
func isID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
