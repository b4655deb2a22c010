package pagination

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor(Cursor{AfterSeq: 4182})
	got, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if got.AfterSeq != 4182 {
		t.Fatalf("expected seq 4182, got %d", got.AfterSeq)
	}
}

func TestParseCursorEmptyStartsAtBeginning(t *testing.T) {
	got, err := ParseCursor("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AfterSeq != 0 {
		t.Fatalf("expected zero cursor, got %d", got.AfterSeq)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"!!!", "c2VxfGFiYw", "b3RoZXJ8MTI"} {
		if _, err := ParseCursor(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit {
		t.Fatalf("expected default limit")
	}
	if NormalizeLimit(MaxLimit+10) != MaxLimit {
		t.Fatalf("expected max limit")
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("expected buffered limit")
	}
}
