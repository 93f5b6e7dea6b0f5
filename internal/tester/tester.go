// Package tester holds the lightest generic assertions, for tests where a
// full assertion library would be more ceremony than check.
package tester

import (
	"reflect"
	"testing"
)

// Eq fails the test unless got equals want. Non-comparable types are
// compared with reflect.DeepEqual.
func Eq[T any](t *testing.T, got, want T, msgAndArgs ...any) {
	t.Helper()
	if reflect.DeepEqual(got, want) {
		return
	}
	if len(msgAndArgs) > 0 {
		t.Fatalf("%v: got %v, want %v", msgAndArgs[0], got, want)
	}
	t.Fatalf("got %v, want %v", got, want)
}

// True fails the test unless cond holds.
func True(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if cond {
		return
	}
	if len(msgAndArgs) > 0 {
		t.Fatalf("%v", msgAndArgs[0])
	}
	t.Fatal("condition not met")
}

// False fails the test if cond holds.
func False(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if !cond {
		return
	}
	if len(msgAndArgs) > 0 {
		t.Fatalf("%v", msgAndArgs[0])
	}
	t.Fatal("condition unexpectedly held")
}
