package try

// something having method `Fatal`: *testing.T, log.Logger, ...
type Fataler interface {
	Fatal(...any)
}

// Either wraps a (value, error) pair.
//
// When error is nil the Either is "ok" and the value is valid.
type Either[T any] interface {
	// Get returns the wrapped (value, error) pair.
	Get() (T, error)

	// OrFatal returns the value, or calls ftl.Fatal(err) when the Either
	// wraps an error. If ftl has a Helper() method (*testing.T), it is
	// called first.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value, or the given default on error.
	OrDefault(T) T
}

// To wraps a function call result as an Either.
//
//	try.To(strconv.Atoi("42")).OrFatal(t)
func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return tryOk[T]{ok}
	}
	return tryNg[T]{ng}
}

type tryOk[T any] struct {
	value T
}

type tryNg[T any] struct {
	err error
}

func (ok tryOk[T]) Get() (T, error) {
	return ok.value, nil
}

func (ng tryNg[T]) Get() (T, error) {
	return *new(T), ng.err
}

func (ok tryOk[T]) OrDefault(T) T {
	return ok.value
}

func (ng tryNg[T]) OrDefault(d T) T {
	return d
}

func (ok tryOk[T]) OrFatal(Fataler) T {
	return ok.value
}

func (ng tryNg[T]) OrFatal(ftl Fataler) T {
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(ng.err)
	return *new(T)
}
