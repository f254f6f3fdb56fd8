package cmp

// MapEq reports whether two maps hold the same key-value pairs.
func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || va != vb {
			return false
		}
	}
	return true
}

// MapEqWith is MapEq over a custom value equivalence.
func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, pred func(V, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !pred(va, vb) {
			return false
		}
	}
	return true
}
