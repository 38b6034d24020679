package loom

import "os"

// ConfigKey reads a credential from the environment. A missing key fails the
// call before any HTTP attempt is made; per the durability contract no oplog
// entry is written in that case, because the operation never began.
func ConfigKey(name string) (string, *Error) {
	value := os.Getenv(name)
	if value == "" {
		return "", Errorf(AuthenticationFailed, "missing config key: %s", name)
	}
	return value, nil
}

// WithConfigKey invokes succeed with the value of the named environment
// variable, or fail with an AuthenticationFailed error when it is unset.
// Providers use it to keep the missing-credential path free of side effects.
func WithConfigKey[R any](name string, fail func(*Error) R, succeed func(string) R) R {
	value, err := ConfigKey(name)
	if err != nil {
		return fail(err)
	}
	return succeed(value)
}
