package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8083")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8083" {
		t.Fatalf("expected 8083, got %q (%v)", p, err)
	}
	t.Setenv("TEST_PORT", "99999")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatalf("expected error for out of range port")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "  ")
	if _, err := RequiredString("TEST_REQUIRED"); err == nil {
		t.Fatalf("expected blank value to be rejected")
	}
}

func TestIntBoolDurations(t *testing.T) {
	t.Setenv("TEST_INT", "30")
	t.Setenv("TEST_BAD_INT", "abc")
	t.Setenv("TEST_BOOL", "Yes")
	t.Setenv("TEST_SECONDS", "45")
	t.Setenv("TEST_MINUTES", "15")

	if Int("TEST_INT", 1) != 30 || Int("TEST_BAD_INT", 7) != 7 || Int("TEST_MISSING", 9) != 9 {
		t.Fatalf("unexpected Int results")
	}
	if !Bool("TEST_BOOL", false) || Bool("TEST_MISSING", false) {
		t.Fatalf("unexpected Bool results")
	}
	if Seconds("TEST_SECONDS", time.Second) != 45*time.Second {
		t.Fatalf("unexpected Seconds result")
	}
	if Minutes("TEST_MINUTES", time.Minute) != 15*time.Minute || Minutes("TEST_MISSING", time.Hour) != time.Hour {
		t.Fatalf("unexpected Minutes result")
	}
}

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := List("TEST_LIST")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected list %v", got)
	}
}
