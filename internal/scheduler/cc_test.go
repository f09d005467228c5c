package scheduler

import "testing"

func TestActivityMapWarmupSmoothsGradually(t *testing.T) {
	m := NewActivityMap(2, 0.5)

	got := m.Update(0.0, 1.0)
	if got != 0.5 {
		t.Fatalf("expected warm-up blend 0.5, got %v", got)
	}
}

func TestActivityMapReplacesAfterWarmup(t *testing.T) {
	m := NewActivityMap(1, 0.5)

	m.Update(0.0, 1.0) // consumes the single warm-up update
	got := m.Update(0.0, 10.0)
	if got != 10.0 {
		t.Fatalf("expected post-warmup replace, got %v", got)
	}
}

func TestActivityMapWrapsNegativePhase(t *testing.T) {
	m := NewActivityMap(4, 1.0)
	a := m.Update(-0.25, 5.0) // wraps to 0.75
	if m.slots[3] != a {
		t.Fatalf("expected phase -0.25 to address slot 3 (phase 0.75), slots=%v", m.slots)
	}
	b := m.Update(0.75, 7.0) // same slot
	if a == 0 || b != 7.0 || m.slots[3] != 7.0 {
		t.Fatalf("expected negative phase to wrap into the same slot as 0.75")
	}
}

func TestNormalizerTracksRangeAndEmphasizesPeaks(t *testing.T) {
	n := &Normalizer{}

	if got := n.Normalize(0.0, 100, 0); got != 0 {
		t.Fatalf("expected first observation to anchor the range at 0, got %v", got)
	}
	if got := n.Normalize(1.0, 100, 0); got != 100 {
		t.Fatalf("expected max observation to map to the top of the range, got %v", got)
	}
	mid := n.Normalize(0.25, 100, 0)
	if mid <= 0 || mid >= 100 {
		t.Fatalf("expected mid-range value strictly between bounds, got %v", mid)
	}
}

func TestNormalizerClampsToOffsetWhenNoSpread(t *testing.T) {
	n := &Normalizer{}
	n.Normalize(5.0, 100, 10)
	got := n.Normalize(5.0, 100, 10)
	if got != 10 {
		t.Fatalf("expected degenerate range to map to offset, got %v", got)
	}
}
