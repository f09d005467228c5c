package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// blobMagic identifies a reservoir parameter blob; blobVersion guards
// against incompatible layout changes.
const (
	blobMagic   = "RBDR"
	blobVersion = uint8(1)
)

// Blob is the deterministic, fixed-layout serialization of a
// reservoir's immutable parameters: weight matrices, biases, leak
// rate and activation. Matrices are stored dense, row-major.
type Blob struct {
	Size    int // N, reservoir neuron count
	Inputs  int // I
	Outputs int // O
	Visible int // V <= N, readout's visible prefix

	LeakRate   float64
	Activation string // "tanh" | "sigmoid" | "relu" | "linear"

	WeightsInRes Matrix // N x I
	WeightsResRes Matrix // N x N
	WeightsOutRes Matrix // N x O, output-feedback weights
	WeightsResOut Matrix // O x V, readout weights

	BiasRes []float64 // N
	BiasOut []float64 // O
}

// Matrix is a dense row-major matrix used only for blob I/O; the
// reservoir runtime converts it to gonum's *mat.Dense on load.
type Matrix struct {
	Rows, Cols int
	Data       []float64 // len == Rows*Cols, row-major
}

func activationTag(name string) (uint8, error) {
	switch name {
	case "tanh":
		return 0, nil
	case "sigmoid":
		return 1, nil
	case "relu":
		return 2, nil
	case "linear":
		return 3, nil
	default:
		return 0, fmt.Errorf("model: unknown activation %q", name)
	}
}

func activationName(tag uint8) (string, error) {
	switch tag {
	case 0:
		return "tanh", nil
	case 1:
		return "sigmoid", nil
	case 2:
		return "relu", nil
	case 3:
		return "linear", nil
	default:
		return "", fmt.Errorf("model: unknown activation tag %d", tag)
	}
}

func writeMatrix(w io.Writer, m Matrix) error {
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("model: matrix data length %d does not match %dx%d", len(m.Data), m.Rows, m.Cols)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(m.Rows)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(m.Cols)); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, m.Data)
}

func readMatrix(r io.Reader) (Matrix, error) {
	var rows, cols uint32
	if err := binary.Read(r, binary.BigEndian, &rows); err != nil {
		return Matrix{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &cols); err != nil {
		return Matrix{}, err
	}
	data := make([]float64, int(rows)*int(cols))
	if err := binary.Read(r, binary.BigEndian, data); err != nil {
		return Matrix{}, err
	}
	return Matrix{Rows: int(rows), Cols: int(cols), Data: data}, nil
}

func writeVector(w io.Writer, v []float64) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(v))); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, v)
}

func readVector(r io.Reader) ([]float64, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	v := make([]float64, n)
	if err := binary.Read(r, binary.BigEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeBlob serializes a reservoir parameter blob to its on-disk
// binary form.
func EncodeBlob(b Blob) ([]byte, error) {
	tag, err := activationTag(b.Activation)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(blobMagic)
	buf.WriteByte(blobVersion)
	buf.WriteByte(tag)

	if err := binary.Write(&buf, binary.BigEndian, uint32(b.Size)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(b.Inputs)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(b.Outputs)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(b.Visible)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, b.LeakRate); err != nil {
		return nil, err
	}

	for _, m := range []Matrix{b.WeightsInRes, b.WeightsResRes, b.WeightsOutRes, b.WeightsResOut} {
		if err := writeMatrix(&buf, m); err != nil {
			return nil, fmt.Errorf("model: failed to encode matrix: %w", err)
		}
	}
	if err := writeVector(&buf, b.BiasRes); err != nil {
		return nil, fmt.Errorf("model: failed to encode bias_res: %w", err)
	}
	if err := writeVector(&buf, b.BiasOut); err != nil {
		return nil, fmt.Errorf("model: failed to encode bias_out: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeBlob parses a reservoir parameter blob produced by EncodeBlob.
func DecodeBlob(data []byte) (Blob, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(blobMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return Blob{}, fmt.Errorf("model: failed to read magic: %w", err)
	}
	if string(magic) != blobMagic {
		return Blob{}, fmt.Errorf("model: bad magic %q", magic)
	}

	version, err := r.ReadByte()
	if err != nil {
		return Blob{}, err
	}
	if version != blobVersion {
		return Blob{}, fmt.Errorf("model: unsupported blob version %d", version)
	}

	tagByte, err := r.ReadByte()
	if err != nil {
		return Blob{}, err
	}
	activation, err := activationName(tagByte)
	if err != nil {
		return Blob{}, err
	}

	var size, inputs, outputs, visible uint32
	for _, dst := range []*uint32{&size, &inputs, &outputs, &visible} {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			return Blob{}, err
		}
	}

	var leakRate float64
	if err := binary.Read(r, binary.BigEndian, &leakRate); err != nil {
		return Blob{}, err
	}

	weightsInRes, err := readMatrix(r)
	if err != nil {
		return Blob{}, fmt.Errorf("model: failed to decode weights_in_res: %w", err)
	}
	weightsResRes, err := readMatrix(r)
	if err != nil {
		return Blob{}, fmt.Errorf("model: failed to decode weights_res_res: %w", err)
	}
	weightsOutRes, err := readMatrix(r)
	if err != nil {
		return Blob{}, fmt.Errorf("model: failed to decode weights_out_res: %w", err)
	}
	weightsResOut, err := readMatrix(r)
	if err != nil {
		return Blob{}, fmt.Errorf("model: failed to decode weights_res_out: %w", err)
	}

	biasRes, err := readVector(r)
	if err != nil {
		return Blob{}, fmt.Errorf("model: failed to decode bias_res: %w", err)
	}
	biasOut, err := readVector(r)
	if err != nil {
		return Blob{}, fmt.Errorf("model: failed to decode bias_out: %w", err)
	}

	return Blob{
		Size:          int(size),
		Inputs:        int(inputs),
		Outputs:       int(outputs),
		Visible:       int(visible),
		LeakRate:      leakRate,
		Activation:    activation,
		WeightsInRes:  weightsInRes,
		WeightsResRes: weightsResRes,
		WeightsOutRes: weightsOutRes,
		WeightsResOut: weightsResOut,
		BiasRes:       biasRes,
		BiasOut:       biasOut,
	}, nil
}

// LoadBlob reads and decodes name.bin from the data directory.
func LoadBlob(dataDir, name string) (Blob, error) {
	data, err := os.ReadFile(blobPath(dataDir, name))
	if err != nil {
		return Blob{}, fmt.Errorf("model: failed to read blob for %q: %w", name, err)
	}
	return DecodeBlob(data)
}

// SaveBlob encodes and writes name.bin into the data directory.
func SaveBlob(dataDir, name string, b Blob) error {
	dir := filepath.Join(dataDir, "models")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("model: failed to create models directory: %w", err)
	}
	data, err := EncodeBlob(b)
	if err != nil {
		return fmt.Errorf("model: failed to encode blob for %q: %w", name, err)
	}
	if err := os.WriteFile(blobPath(dataDir, name), data, 0600); err != nil {
		return fmt.Errorf("model: failed to write blob for %q: %w", name, err)
	}
	return nil
}
