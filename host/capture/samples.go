package capture

import (
	"encoding/binary"
	"fmt"
	"math"

	"sensorstream/core"
)

// ParseSampleKind maps a config name onto a sample kind.
func ParseSampleKind(name string) (core.SampleKind, error) {
	switch name {
	case "pcm16":
		return core.SamplePCM16, nil
	case "float32":
		return core.SampleFloat32, nil
	case "uint16":
		return core.SampleUint16, nil
	}
	return 0, fmt.Errorf("unknown sample kind %q", name)
}

// DecodeSamples interprets a frame payload. The payload must be exactly
// one frame of the layout.
func DecodeSamples(layout core.Layout, payload []byte) ([]float64, error) {
	if len(payload) != layout.Size() {
		return nil, fmt.Errorf("payload is %d bytes, layout wants %d", len(payload), layout.Size())
	}
	out := make([]float64, layout.Count)
	for i := range out {
		switch layout.Kind {
		case core.SamplePCM16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(payload[i*2:])))
		case core.SampleUint16:
			out[i] = float64(binary.LittleEndian.Uint16(payload[i*2:]))
		case core.SampleFloat32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:])))
		default:
			return nil, fmt.Errorf("unsupported sample kind %v", layout.Kind)
		}
	}
	return out, nil
}
