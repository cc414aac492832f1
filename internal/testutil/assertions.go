package testutil

import (
	"errors"
	"reflect"
	"strings"
)

// Assertion provides assertion helpers for testing.
type Assertion struct {
	t       TestingT
	subject interface{}
	name    string
}

// TestingT is the interface for testing.T.
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
	Helper()
}

// Assert creates a new assertion.
func Assert(t TestingT, subject interface{}) *Assertion {
	return &Assertion{t: t, subject: subject}
}

// Named sets a name for the assertion.
func (a *Assertion) Named(name string) *Assertion {
	a.name = name
	return a
}

func (a *Assertion) fail(msg string, args ...interface{}) {
	a.t.Helper()
	prefix := ""
	if a.name != "" {
		prefix = a.name + ": "
	}
	a.t.Errorf(prefix+msg, args...)
}

// IsNil asserts that the subject is nil.
func (a *Assertion) IsNil() *Assertion {
	a.t.Helper()
	if a.subject == nil {
		return a
	}
	val := reflect.ValueOf(a.subject)
	switch val.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if val.IsNil() {
			return a
		}
	}
	a.fail("expected nil, got %v", a.subject)
	return a
}

// IsNotNil asserts that the subject is not nil.
func (a *Assertion) IsNotNil() *Assertion {
	a.t.Helper()
	if a.subject == nil {
		a.fail("expected non-nil value")
		return a
	}
	val := reflect.ValueOf(a.subject)
	if val.Kind() == reflect.Ptr && val.IsNil() {
		a.fail("expected non-nil value")
	}
	return a
}

// Equals asserts that the subject equals expected.
func (a *Assertion) Equals(expected interface{}) *Assertion {
	a.t.Helper()
	if !reflect.DeepEqual(a.subject, expected) {
		a.fail("expected %v, got %v", expected, a.subject)
	}
	return a
}

// IsTrue asserts that the subject is true.
func (a *Assertion) IsTrue() *Assertion {
	a.t.Helper()
	if b, ok := a.subject.(bool); !ok || !b {
		a.fail("expected true, got %v", a.subject)
	}
	return a
}

// IsFalse asserts that the subject is false.
func (a *Assertion) IsFalse() *Assertion {
	a.t.Helper()
	if b, ok := a.subject.(bool); !ok || b {
		a.fail("expected false, got %v", a.subject)
	}
	return a
}

// Contains asserts that the subject contains the substring.
func (a *Assertion) Contains(substr string) *Assertion {
	a.t.Helper()
	s, ok := a.subject.(string)
	if !ok {
		a.fail("expected string, got %T", a.subject)
		return a
	}
	if !strings.Contains(s, substr) {
		a.fail("expected '%s' to contain '%s'", s, substr)
	}
	return a
}

// NotContains asserts that the subject does not contain the substring.
func (a *Assertion) NotContains(substr string) *Assertion {
	a.t.Helper()
	s, ok := a.subject.(string)
	if !ok {
		a.fail("expected string, got %T", a.subject)
		return a
	}
	if strings.Contains(s, substr) {
		a.fail("expected '%s' to not contain '%s'", s, substr)
	}
	return a
}

// HasLength asserts that the subject has the expected length.
func (a *Assertion) HasLength(expected int) *Assertion {
	a.t.Helper()
	val := reflect.ValueOf(a.subject)
	switch val.Kind() {
	case reflect.String, reflect.Array, reflect.Slice, reflect.Map, reflect.Chan:
		if val.Len() != expected {
			a.fail("expected length %d, got %d", expected, val.Len())
		}
	default:
		a.fail("cannot get length of %T", a.subject)
	}
	return a
}

// IsEmpty asserts that the subject is empty.
func (a *Assertion) IsEmpty() *Assertion {
	a.t.Helper()
	val := reflect.ValueOf(a.subject)
	switch val.Kind() {
	case reflect.String, reflect.Array, reflect.Slice, reflect.Map, reflect.Chan:
		if val.Len() != 0 {
			a.fail("expected empty %T, got length %d", a.subject, val.Len())
		}
	default:
		a.fail("cannot check emptiness of %T", a.subject)
	}
	return a
}

// ErrorAssertion provides error-specific assertions.
type ErrorAssertion struct {
	*Assertion
	err error
}

// AssertError creates an error assertion.
func AssertError(t TestingT, err error) *ErrorAssertion {
	return &ErrorAssertion{
		Assertion: Assert(t, err),
		err:       err,
	}
}

// IsNoError asserts there is no error.
func (e *ErrorAssertion) IsNoError() *ErrorAssertion {
	e.t.Helper()
	if e.err != nil {
		e.fail("expected no error, got %v", e.err)
	}
	return e
}

// HasError asserts there is an error.
func (e *ErrorAssertion) HasError() *ErrorAssertion {
	e.t.Helper()
	if e.err == nil {
		e.fail("expected an error")
	}
	return e
}

// ContainsMessage asserts the error message contains the substring.
func (e *ErrorAssertion) ContainsMessage(substr string) *ErrorAssertion {
	e.t.Helper()
	if e.err == nil {
		e.fail("expected an error containing '%s'", substr)
		return e
	}
	if !strings.Contains(e.err.Error(), substr) {
		e.fail("expected error to contain '%s', got '%s'", substr, e.err.Error())
	}
	return e
}

// IsKind asserts that the error chain holds an error assignable to target,
// which must be a pointer as accepted by errors.As.
func (e *ErrorAssertion) IsKind(target interface{}) *ErrorAssertion {
	e.t.Helper()
	if e.err == nil {
		e.fail("expected an error of type %T", target)
		return e
	}
	if !errors.As(e.err, target) {
		e.fail("expected error of type %T, got %T: %v", target, e.err, e.err)
	}
	return e
}

// MustNotFail fails the test if there's an error.
func MustNotFail(t TestingT, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
		t.FailNow()
	}
}

// MustFail fails the test if there's no error.
func MustFail(t TestingT, err error) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error but got none")
		t.FailNow()
	}
}
