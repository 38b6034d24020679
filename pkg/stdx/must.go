// Package stdx carries tiny helpers for cases where an error is a
// programmer mistake rather than a runtime condition.
package stdx

// Must0 panics if err is not nil. Use it for operations whose failure means
// the program is already broken, such as building a JSON envelope out of
// values the caller just produced.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, panicking if err is not nil. The one-value counterpart of
// Must0.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
