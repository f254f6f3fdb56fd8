package slices

// Map converts each element with mapper, keeping order.
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	mapped := make([]R, len(sli))
	for nth, v := range sli {
		mapped[nth] = mapper(v)
	}
	return mapped
}

// ToMap converts a slice to a map, keyed with getkey.
//
// When keys collide, the last one wins.
func ToMap[T any, K comparable](sli []T, getkey func(v T) K) map[K]T {
	m := make(map[K]T, len(sli))
	for _, v := range sli {
		m[getkey(v)] = v
	}
	return m
}

// KeysOf lists the keys of a map. Ordering is unspecified.
func KeysOf[T any, K comparable](m map[K]T) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Filter returns elements satisfying predicator, keeping order.
func Filter[T any](sli []T, predicator func(T) bool) []T {
	filtered := []T{}
	for _, v := range sli {
		if predicator(v) {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// First finds the first element satisfying predicator.
func First[T any](sli []T, predicator func(T) bool) (T, bool) {
	for _, v := range sli {
		if predicator(v) {
			return v, true
		}
	}
	return *new(T), false
}
