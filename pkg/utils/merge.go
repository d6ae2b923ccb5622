package utils

// MergeWithPrecedence merges two field maps for display. For every field in
// priority, a non-empty value from live overrides the embedded snapshot;
// fields missing from live fall back to embedded. Fields outside priority
// are taken from embedded as-is.
func MergeWithPrecedence(embedded, live map[string]string, priority []string) map[string]string {
	merged := make(map[string]string, len(embedded)+len(live))

	for field, value := range embedded {
		merged[field] = value
	}

	for _, field := range priority {
		if value, ok := live[field]; ok && value != "" {
			merged[field] = value
		}
	}

	return merged
}
