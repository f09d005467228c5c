package wire

import "testing"

func TestTempoRoundTrip(t *testing.T) {
	cases := []float64{0, 1.5, 120.0 / 60.0, -42.125, 210.0 / 60.0}
	for _, hz := range cases {
		frame := EncodeTempo(hz)
		if len(frame) != 8 {
			t.Fatalf("EncodeTempo(%v): expected 8 bytes, got %d", hz, len(frame))
		}
		got, err := DecodeTempo(frame)
		if err != nil {
			t.Fatalf("DecodeTempo(%v): unexpected error: %v", hz, err)
		}
		if got != hz {
			t.Fatalf("round trip mismatch: sent %v, got %v", hz, got)
		}
	}
}

func TestDecodeTempoRejectsBadLength(t *testing.T) {
	if _, err := DecodeTempo([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated tempo frame")
	}
}

func TestFeelRoundTrip(t *testing.T) {
	cases := []float32{0, 1, -1, 0.5, -0.125}
	for _, v := range cases {
		frame := EncodeFeel(v)
		if len(frame) != 4 {
			t.Fatalf("EncodeFeel(%v): expected 4 bytes, got %d", v, len(frame))
		}
		got, err := DecodeFeel(frame)
		if err != nil {
			t.Fatalf("DecodeFeel(%v): unexpected error: %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: sent %v, got %v", v, got)
		}
	}
}

func TestDecodeFeelRejectsBadLength(t *testing.T) {
	if _, err := DecodeFeel([]byte{1, 2, 3, 4, 5}); err == nil {
		t.Fatalf("expected error for oversized feel frame")
	}
}

func TestOnsetInputNotesRoundTrip(t *testing.T) {
	rec := OnsetRecord{Tag: TagInputNotes, InputNotes: []uint8{36, 38, 42}}
	frame, err := EncodeOnset(rec)
	if err != nil {
		t.Fatalf("EncodeOnset: unexpected error: %v", err)
	}

	got, err := DecodeOnset(frame)
	if err != nil {
		t.Fatalf("DecodeOnset: unexpected error: %v", err)
	}
	if got.Tag != TagInputNotes {
		t.Fatalf("expected TagInputNotes, got %v", got.Tag)
	}
	if len(got.InputNotes) != len(rec.InputNotes) {
		t.Fatalf("expected %d notes, got %d", len(rec.InputNotes), len(got.InputNotes))
	}
	for i, n := range rec.InputNotes {
		if got.InputNotes[i] != n {
			t.Fatalf("note %d: expected %d, got %d", i, n, got.InputNotes[i])
		}
	}
}

func TestOnsetInputNotesEmpty(t *testing.T) {
	rec := OnsetRecord{Tag: TagInputNotes, InputNotes: nil}
	frame, err := EncodeOnset(rec)
	if err != nil {
		t.Fatalf("EncodeOnset: unexpected error: %v", err)
	}
	got, err := DecodeOnset(frame)
	if err != nil {
		t.Fatalf("DecodeOnset: unexpected error: %v", err)
	}
	if got.Tag != TagInputNotes || len(got.InputNotes) != 0 {
		t.Fatalf("expected empty InputNotes record, got %+v", got)
	}
}

func TestOnsetOutputNoteRoundTrip(t *testing.T) {
	frame, err := EncodeOnset(OnsetRecord{Tag: TagOutputNote})
	if err != nil {
		t.Fatalf("EncodeOnset: unexpected error: %v", err)
	}
	if len(frame) != 1 {
		t.Fatalf("expected 1-byte frame for TagOutputNote, got %d", len(frame))
	}

	got, err := DecodeOnset(frame)
	if err != nil {
		t.Fatalf("DecodeOnset: unexpected error: %v", err)
	}
	if got.Tag != TagOutputNote {
		t.Fatalf("expected TagOutputNote, got %v", got.Tag)
	}
}

func TestDecodeOnsetRejectsEmptyFrame(t *testing.T) {
	if _, err := DecodeOnset(nil); err == nil {
		t.Fatalf("expected error for empty onset frame")
	}
}

func TestDecodeOnsetRejectsTruncatedPayload(t *testing.T) {
	// Tag + length header claiming 5 notes, but only 2 bytes follow.
	frame := []byte{byte(TagInputNotes), 0x00, 0x05, 36, 38}
	if _, err := DecodeOnset(frame); err == nil {
		t.Fatalf("expected error for truncated input-notes payload")
	}
}

func TestDecodeOnsetRejectsUnknownTag(t *testing.T) {
	if _, err := DecodeOnset([]byte{0xFF}); err == nil {
		t.Fatalf("expected error for unknown onset tag")
	}
}
