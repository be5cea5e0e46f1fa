// Package aggregator implements the server-side aggregator (spec.md
// §4.6): gradient blob decoding and sample-weighted FedAvg, grounded on
// original_source/orchestrator/services/gradient_codec.py and
// fed_avg.py. The payload layout follows the original, except that
// compressed payloads use zstd rather than lz4 (see gradientMagic).
package aggregator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/edgeorchestra/orchestrator/pkg/utils"
	"github.com/klauspost/compress/zstd"
)

// gradientMagic marks a compressed, float16-quantized payload. Any
// other leading byte is a legacy float32 passthrough payload
// (gradient_codec.py's backward-compatibility rule).
//
// The original codec compresses with lz4's raw block format, but no
// lz4 implementation appears anywhere in the examples pack. klauspost's
// zstd is already a direct dependency of the teacher's go.mod, so it
// fills the same role here: single-shot whole-payload compression with
// no external framing requirements, swapped in rather than fabricating
// an lz4 dependency the corpus never reaches for.
const gradientMagic = 0x01

// Layer is one named weight-delta tensor, flattened.
type Layer struct {
	Name   string
	Values []float32
}

// WeightDelta is a decoded gradient submission: an ordered set of named
// layers, in the order they appeared on the wire.
type WeightDelta struct {
	Layers []Layer
}

// DecodeGradients accepts either compressed (magic-prefixed, float16)
// or legacy float32 gradient bytes and returns the decoded layers,
// widened to float32.
func DecodeGradients(data []byte) (WeightDelta, error) {
	if len(data) == 0 {
		return WeightDelta{}, fmt.Errorf("%w: empty gradient payload", utils.ErrPrecondition)
	}

	if data[0] != gradientMagic {
		return decodeFloat32Layers(data)
	}

	if len(data) < 5 {
		return WeightDelta{}, fmt.Errorf("%w: truncated gradient header", utils.ErrPrecondition)
	}

	originalSize := binary.LittleEndian.Uint32(data[1:5])
	compressed := data[5:]

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return WeightDelta{}, fmt.Errorf("%w: %v", utils.ErrInternal, err)
	}
	defer decoder.Close()

	payload, err := decoder.DecodeAll(compressed, make([]byte, 0, originalSize))
	if err != nil {
		return WeightDelta{}, fmt.Errorf("%w: decompress gradients: %v", utils.ErrPrecondition, err)
	}

	return decodeFloat16Layers(payload)
}

// EncodeGradients quantizes layers to float16 and compresses them, for
// tests and for the admin UploadModel/seed path.
func EncodeGradients(wd WeightDelta) []byte {
	f16Payload := encodeFloat16Layers(wd)

	encoder, _ := zstd.NewWriter(nil)
	compressed := encoder.EncodeAll(f16Payload, nil)
	encoder.Close()

	header := make([]byte, 5)
	header[0] = gradientMagic
	binary.LittleEndian.PutUint32(header[1:], uint32(len(f16Payload)))

	return append(header, compressed...)
}

func decodeFloat32Layers(data []byte) (WeightDelta, error) {
	buf := bytes.NewReader(data)

	layerCount, err := readUint32(buf)
	if err != nil {
		return WeightDelta{}, err
	}

	wd := WeightDelta{Layers: make([]Layer, 0, layerCount)}
	for i := uint32(0); i < layerCount; i++ {
		name, err := readName(buf)
		if err != nil {
			return WeightDelta{}, err
		}
		count, err := readUint32(buf)
		if err != nil {
			return WeightDelta{}, err
		}

		values := make([]float32, count)
		for j := uint32(0); j < count; j++ {
			bits, err := readUint32(buf)
			if err != nil {
				return WeightDelta{}, err
			}
			values[j] = math.Float32frombits(bits)
		}

		wd.Layers = append(wd.Layers, Layer{Name: name, Values: values})
	}

	return wd, nil
}

func decodeFloat16Layers(data []byte) (WeightDelta, error) {
	buf := bytes.NewReader(data)

	layerCount, err := readUint32(buf)
	if err != nil {
		return WeightDelta{}, err
	}

	wd := WeightDelta{Layers: make([]Layer, 0, layerCount)}
	for i := uint32(0); i < layerCount; i++ {
		name, err := readName(buf)
		if err != nil {
			return WeightDelta{}, err
		}
		count, err := readUint32(buf)
		if err != nil {
			return WeightDelta{}, err
		}

		values := make([]float32, count)
		for j := uint32(0); j < count; j++ {
			var raw [2]byte
			if _, err := buf.Read(raw[:]); err != nil {
				return WeightDelta{}, fmt.Errorf("%w: truncated layer %q: %v", utils.ErrPrecondition, name, err)
			}
			h := float16(binary.LittleEndian.Uint16(raw[:]))
			values[j] = float16ToFloat32(h)
		}

		wd.Layers = append(wd.Layers, Layer{Name: name, Values: values})
	}

	return wd, nil
}

func encodeFloat16Layers(wd WeightDelta) []byte {
	var buf bytes.Buffer

	writeUint32(&buf, uint32(len(wd.Layers)))
	for _, layer := range wd.Layers {
		nameBytes := []byte(layer.Name)
		writeUint32(&buf, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		writeUint32(&buf, uint32(len(layer.Values)))
		for _, v := range layer.Values {
			var raw [2]byte
			binary.LittleEndian.PutUint16(raw[:], uint16(float32ToFloat16(v)))
			buf.Write(raw[:])
		}
	}

	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], v)
	buf.Write(raw[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var raw [4]byte
	if _, err := r.Read(raw[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated gradient payload: %v", utils.ErrPrecondition, err)
	}
	return binary.LittleEndian.Uint32(raw[:]), nil
}

func readName(r *bytes.Reader) (string, error) {
	length, err := readUint32(r)
	if err != nil {
		return "", err
	}
	name := make([]byte, length)
	if _, err := r.Read(name); err != nil {
		return "", fmt.Errorf("%w: truncated layer name: %v", utils.ErrPrecondition, err)
	}
	return string(name), nil
}

