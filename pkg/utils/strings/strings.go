package strings

import "strings"

// TrimPrefixAll returns s without prefix, repeatedly.
//
// example:
//
//	TrimPrefixAll("///api", "/")  // -> "api"
//	TrimPrefixAll("api", "/")     // -> "api"
func TrimPrefixAll(s, prefix string) string {
	lp := len(prefix)

	for strings.HasPrefix(s, prefix) {
		s = s[lp:]
	}
	return s
}

// EnsureSuffix returns text unchanged when it already ends with suffix,
// otherwise text + suffix.
func EnsureSuffix(text, suffix string) string {
	if strings.HasSuffix(text, suffix) {
		return text
	}
	return text + suffix
}
