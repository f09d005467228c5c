package scheduler

import "testing"

func TestNextAdvancesModuloChordLength(t *testing.T) {
	s := NewArpeggioState([]uint8{40, 44, 47}, 0.2, 12)

	want := []uint8{56, 59, 52, 56} // chord raised by 12: {52,56,59}, cursor starts at 0
	for i, w := range want {
		if got := s.Next(); got != w {
			t.Fatalf("call %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestUpdateChordAppliesOffsetAndResetsCursor(t *testing.T) {
	s := NewArpeggioState([]uint8{40}, 0.2, 12)
	s.UpdateChord([]uint8{1, 2, 3})

	// cursor reset to len-1, so Next wraps to index 0 first.
	if got := s.Next(); got != 1+12 {
		t.Fatalf("expected first new-chord note %d, got %d", 1+12, got)
	}
}

func TestNextOnEmptyChordReturnsZero(t *testing.T) {
	s := NewArpeggioState(nil, 0.2, 12)
	if got := s.Next(); got != 0 {
		t.Fatalf("expected 0 for empty chord, got %d", got)
	}
}

func TestDurationSReturnsConfiguredValue(t *testing.T) {
	s := NewArpeggioState([]uint8{40}, 0.35, 0)
	if s.DurationS() != 0.35 {
		t.Fatalf("expected duration 0.35, got %v", s.DurationS())
	}
}
