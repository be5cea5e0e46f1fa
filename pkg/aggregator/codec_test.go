package aggregator

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDelta() WeightDelta {
	return WeightDelta{Layers: []Layer{
		{Name: "hidden_weight", Values: []float32{0.1, -0.2, 0.3, 0.4}},
		{Name: "hidden_bias", Values: []float32{0.01, -0.02}},
	}}
}

func TestEncodeDecodeGradientsRoundTrip(t *testing.T) {
	original := sampleDelta()

	encoded := EncodeGradients(original)
	assert.Equal(t, byte(gradientMagic), encoded[0])

	decoded, err := DecodeGradients(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Layers, len(original.Layers))

	for i, layer := range original.Layers {
		assert.Equal(t, layer.Name, decoded.Layers[i].Name)
		require.Len(t, decoded.Layers[i].Values, len(layer.Values))
		for j, v := range layer.Values {
			assert.InDelta(t, v, decoded.Layers[i].Values[j], 0.01)
		}
	}
}

func TestDecodeGradientsLegacyFloat32Passthrough(t *testing.T) {
	legacy := encodeFloat32Layers(sampleDelta())

	decoded, err := DecodeGradients(legacy)
	require.NoError(t, err)
	require.Len(t, decoded.Layers, 2)
	assert.Equal(t, []float32{0.1, -0.2, 0.3, 0.4}, decoded.Layers[0].Values)
}

func TestDecodeGradientsRejectsEmptyPayload(t *testing.T) {
	_, err := DecodeGradients(nil)
	assert.Error(t, err)
}

// encodeFloat32Layers mirrors fed_avg.py's serialize_weight_deltas,
// used only to produce legacy-format fixtures for the passthrough test.
func encodeFloat32Layers(wd WeightDelta) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(wd.Layers)))
	for _, layer := range wd.Layers {
		nameBytes := []byte(layer.Name)
		writeUint32(&buf, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		writeUint32(&buf, uint32(len(layer.Values)))
		for _, v := range layer.Values {
			var raw [4]byte
			binary.LittleEndian.PutUint32(raw[:], math.Float32bits(v))
			buf.Write(raw[:])
		}
	}
	return buf.Bytes()
}
