// Package wire implements the runtime wire formats named in spec.md §6:
// big-endian scalar publications for tempo and reservoir output, and a
// length-prefixed tagged record for onset publication. The onset record
// is the Go equivalent of the original implementation's bincode-encoded
// MidiNoteMessage enum (InputNotes(Vec<u8>) | OutputNote) — Go has no
// bincode in this corpus, so the tag-byte-plus-big-endian-fields framing
// below is a direct, from-scratch substitute.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeTempo encodes a tempo estimate (Hz) as an 8-byte big-endian
// IEEE-754 double, one frame per update.
func EncodeTempo(hz float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(hz))
	return buf
}

// DecodeTempo decodes a tempo publication frame.
func DecodeTempo(frame []byte) (float64, error) {
	if len(frame) != 8 {
		return 0, fmt.Errorf("wire: tempo frame must be 8 bytes, got %d", len(frame))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(frame)), nil
}

// EncodeFeel encodes a reservoir scalar prediction as a 4-byte
// big-endian IEEE-754 float in [-1, 1].
func EncodeFeel(v float32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}

// DecodeFeel decodes a reservoir scalar publication frame.
func DecodeFeel(frame []byte) (float32, error) {
	if len(frame) != 4 {
		return 0, fmt.Errorf("wire: feel frame must be 4 bytes, got %d", len(frame))
	}
	return math.Float32frombits(binary.BigEndian.Uint32(frame)), nil
}

// OnsetTag distinguishes the two onset record variants.
type OnsetTag uint8

const (
	// TagInputNotes carries the note numbers of a user-played onset.
	TagInputNotes OnsetTag = iota
	// TagOutputNote marks a system-emitted note (no payload).
	TagOutputNote
)

// OnsetRecord is the tagged onset publication record: either a list of
// input note numbers, or a marker for a system output note.
type OnsetRecord struct {
	Tag        OnsetTag
	InputNotes []uint8
}

// EncodeOnset serializes an OnsetRecord as: 1-byte tag, then for
// TagInputNotes a 2-byte big-endian length followed by that many note
// bytes. TagOutputNote carries no payload.
func EncodeOnset(rec OnsetRecord) ([]byte, error) {
	switch rec.Tag {
	case TagInputNotes:
		if len(rec.InputNotes) > math.MaxUint16 {
			return nil, fmt.Errorf("wire: too many input notes (%d)", len(rec.InputNotes))
		}
		buf := make([]byte, 1+2+len(rec.InputNotes))
		buf[0] = byte(TagInputNotes)
		binary.BigEndian.PutUint16(buf[1:3], uint16(len(rec.InputNotes)))
		copy(buf[3:], rec.InputNotes)
		return buf, nil
	case TagOutputNote:
		return []byte{byte(TagOutputNote)}, nil
	default:
		return nil, fmt.Errorf("wire: unknown onset tag %d", rec.Tag)
	}
}

// DecodeOnset parses a frame produced by EncodeOnset.
func DecodeOnset(frame []byte) (OnsetRecord, error) {
	if len(frame) < 1 {
		return OnsetRecord{}, fmt.Errorf("wire: empty onset frame")
	}
	switch OnsetTag(frame[0]) {
	case TagInputNotes:
		if len(frame) < 3 {
			return OnsetRecord{}, fmt.Errorf("wire: truncated input-notes header")
		}
		n := int(binary.BigEndian.Uint16(frame[1:3]))
		if len(frame) < 3+n {
			return OnsetRecord{}, fmt.Errorf("wire: truncated input-notes payload: want %d, have %d", n, len(frame)-3)
		}
		notes := make([]uint8, n)
		copy(notes, frame[3:3+n])
		return OnsetRecord{Tag: TagInputNotes, InputNotes: notes}, nil
	case TagOutputNote:
		return OnsetRecord{Tag: TagOutputNote}, nil
	default:
		return OnsetRecord{}, fmt.Errorf("wire: unknown onset tag %d", frame[0])
	}
}
