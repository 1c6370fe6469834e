package failfast

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
)

// ErrViolation is wrapped by every panic raised from this package so a
// recovering caller can tell invariant violations apart from other panics.
var ErrViolation = errors.New("fail-fast")

// Violation is the value passed to panic. It keeps the stack of the
// offending call so the panic stays useful after being recovered and logged.
type Violation struct {
	Err   error
	Stack []byte
}

func (v *Violation) Error() string {
	return v.Err.Error()
}

func (v *Violation) Unwrap() error {
	return v.Err
}

func raise(err error) {
	panic(&Violation{Err: fmt.Errorf("%w: %w", ErrViolation, err), Stack: debug.Stack()})
}

// Err panics if err != nil. The original error stays reachable via errors.Is.
func Err(err error) {
	if err != nil {
		raise(err)
	}
}

// If panics with a formatted message when condition is false.
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		raise(fmt.Errorf(message, args...))
	}
}

// Positive panics unless n > 0. Used for counts and hook arguments.
func Positive[T ~int | ~int32 | ~int64](n T, name string) {
	if n <= 0 {
		raise(fmt.Errorf("%s must be positive, got %d", name, n))
	}
}

// NotNil panics if v is nil, including typed nil pointers, funcs, maps,
// slices, channels and interfaces.
func NotNil(v interface{}, name string) {
	if v == nil {
		raise(fmt.Errorf("%s is nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			raise(fmt.Errorf("%s is nil", name))
		}
	}
}
