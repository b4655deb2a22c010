package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("PF_TEST_VALUE", "  console ")
	if got := Get("PF_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("PF_TEST_VALUE", "   ")
	if got := Get("PF_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestFirst(t *testing.T) {
	t.Setenv("PF_TEST_A", "")
	t.Setenv("PF_TEST_B", "b")
	t.Setenv("PF_TEST_C", "c")
	if got := First("PF_TEST_A", "PF_TEST_B", "PF_TEST_C"); got != "b" {
		t.Fatalf("expected first non-blank, got %q", got)
	}
	if got := First("PF_TEST_A"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
