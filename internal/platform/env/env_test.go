package env

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("CUSTODY_TEST_STRING", "  value ")
	t.Setenv("CUSTODY_TEST_BLANK", "   ")

	if got := String("CUSTODY_TEST_STRING", "fallback"); got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
	if got := String("CUSTODY_TEST_BLANK", "fallback"); got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
	if got := String("CUSTODY_TEST_DOES_NOT_EXIST", "fallback"); got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
}

func TestRequired(t *testing.T) {
	t.Setenv("CUSTODY_TEST_REQUIRED", "x")
	got, err := Required("CUSTODY_TEST_REQUIRED")
	if err != nil || got != "x" {
		t.Fatalf("Required()=%q err=%v", got, err)
	}
	t.Setenv("CUSTODY_TEST_REQUIRED", "")
	if _, err := Required("CUSTODY_TEST_REQUIRED"); err == nil {
		t.Fatalf("Required() expected error")
	}
}

func TestDuration(t *testing.T) {
	got, err := Duration("CUSTODY_TEST_DURATION_MISSING", 5*time.Second)
	if err != nil || got != 5*time.Second {
		t.Fatalf("Duration()=%v err=%v, want 5s", got, err)
	}

	t.Setenv("CUSTODY_TEST_DURATION", "250ms")
	got, err = Duration("CUSTODY_TEST_DURATION", 5*time.Second)
	if err != nil || got != 250*time.Millisecond {
		t.Fatalf("Duration()=%v err=%v, want 250ms", got, err)
	}

	t.Setenv("CUSTODY_TEST_DURATION", "soon")
	if _, err := Duration("CUSTODY_TEST_DURATION", 5*time.Second); err == nil {
		t.Fatalf("Duration() expected error")
	}
}

func TestBool(t *testing.T) {
	got, err := Bool("CUSTODY_TEST_BOOL_MISSING", true)
	if err != nil || !got {
		t.Fatalf("Bool()=%v err=%v, want true", got, err)
	}
	t.Setenv("CUSTODY_TEST_BOOL", "false")
	got, err = Bool("CUSTODY_TEST_BOOL", true)
	if err != nil || got {
		t.Fatalf("Bool()=%v err=%v, want false", got, err)
	}
	t.Setenv("CUSTODY_TEST_BOOL", "maybe")
	if _, err := Bool("CUSTODY_TEST_BOOL", true); err == nil {
		t.Fatalf("Bool() expected error")
	}
}

func TestIntegers(t *testing.T) {
	t.Setenv("CUSTODY_TEST_INT", "42")
	if got, err := Int("CUSTODY_TEST_INT", 1); err != nil || got != 42 {
		t.Fatalf("Int()=%d err=%v, want 42", got, err)
	}
	t.Setenv("CUSTODY_TEST_INT64", "8589934592")
	if got, err := Int64("CUSTODY_TEST_INT64", 1); err != nil || got != 8589934592 {
		t.Fatalf("Int64()=%d err=%v", got, err)
	}
	t.Setenv("CUSTODY_TEST_INT", "forty")
	if _, err := Int("CUSTODY_TEST_INT", 1); err == nil {
		t.Fatalf("Int() expected error")
	}
}
