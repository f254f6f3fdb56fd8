package domain

// UniqueTags projects tag tuples onto their deduplicated tag strings,
// keeping only tuples whose resource name passes allowed. Order is not
// significant; duplicate tags collapse.
func UniqueTags(tuples []TagTuple, allowed func(name string) bool) []string {
	seen := map[string]struct{}{}
	tags := []string{}
	for _, tuple := range tuples {
		if !allowed(tuple.Name) {
			continue
		}
		if _, ok := seen[tuple.Tag]; ok {
			continue
		}
		seen[tuple.Tag] = struct{}{}
		tags = append(tags, tuple.Tag)
	}
	return tags
}

// TagByName projects tag tuples onto a name to tag mapping for allowed
// names. A name carrying several tags keeps the first tuple's tag.
func TagByName(tuples []TagTuple, allowed func(name string) bool) map[string]string {
	byName := map[string]string{}
	for _, tuple := range tuples {
		if !allowed(tuple.Name) {
			continue
		}
		if _, ok := byName[tuple.Name]; ok {
			continue
		}
		byName[tuple.Name] = tuple.Tag
	}
	return byName
}
