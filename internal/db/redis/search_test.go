package redis

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestVectorToBytes(t *testing.T) {
	v := []float32{1.0, -0.5, 0.0}

	got := vectorToBytes(v)
	if len(got) != len(v)*4 {
		t.Fatalf("len = %d, want %d", len(got), len(v)*4)
	}

	for i, f := range v {
		bits := binary.LittleEndian.Uint32([]byte(got)[i*4:])
		if math.Float32frombits(bits) != f {
			t.Errorf("element %d = %v, want %v", i, math.Float32frombits(bits), f)
		}
	}
}

func TestVectorToBytes_Empty(t *testing.T) {
	if got := vectorToBytes(nil); got != "" {
		t.Errorf("vectorToBytes(nil) = %q, want empty", got)
	}
}
