// Package assert holds the small set of test assertions used across the repo.
package assert

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func Equal(t testing.TB, expected, actual any, msg string) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("%s: expected %#v, got %#v", msg, expected, actual)
	}
}

func NotEqual(t testing.TB, notExpected, actual any, msg string) {
	t.Helper()
	if reflect.DeepEqual(notExpected, actual) {
		t.Errorf("%s: expected value other than %#v", msg, actual)
	}
}

func True(t testing.TB, value bool, msg string) {
	t.Helper()
	if !value {
		t.Errorf("%s: expected true", msg)
	}
}

func False(t testing.TB, value bool, msg string) {
	t.Helper()
	if value {
		t.Errorf("%s: expected false", msg)
	}
}

// Nil treats typed nil pointers, maps, slices, funcs and channels as nil.
func Nil(t testing.TB, value any, msg string) {
	t.Helper()
	if !isNil(value) {
		t.Errorf("%s: expected nil, got %#v", msg, value)
	}
}

func NotNil(t testing.TB, value any, msg string) {
	t.Helper()
	if isNil(value) {
		t.Errorf("%s: expected non-nil value", msg)
	}
}

func Len(t testing.TB, value any, length int, msg string) {
	t.Helper()
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		if v.Len() != length {
			t.Errorf("%s: expected length %d, got %d", msg, length, v.Len())
		}
	default:
		t.Errorf("%s: value of kind %s has no length", msg, v.Kind())
	}
}

func NoError(t testing.TB, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

func Error(t testing.TB, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected an error", msg)
	}
}

func ErrorIs(t testing.TB, err, target error, msg string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("%s: expected error matching %v, got %v", msg, target, err)
	}
}

func Contains(t testing.TB, s, substr string, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: %q does not contain %q", msg, s, substr)
	}
}

func Greater(t testing.TB, a, b int, msg string) {
	t.Helper()
	if a <= b {
		t.Errorf("%s: expected %d > %d", msg, a, b)
	}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
