package recommend

import "strings"

// MatchingInterests returns the entries of candidate whose values equal,
// case-insensitively, some entry of against. The returned slice preserves
// the candidate's original casing and iteration order, and is never nil.
func MatchingInterests(candidate, against []string) []string {
	lookup := make(map[string]struct{}, len(against))
	for _, tag := range against {
		lookup[strings.ToLower(tag)] = struct{}{}
	}

	matching := make([]string, 0, len(candidate))
	for _, tag := range candidate {
		if _, ok := lookup[strings.ToLower(tag)]; ok {
			matching = append(matching, tag)
		}
	}
	return matching
}

// stringSet builds a membership set from a slice, for O(1) contains checks.
func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
