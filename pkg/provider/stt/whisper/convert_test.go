package whisper

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:2], uint16(int16(0)))
	binary.LittleEndian.PutUint16(pcm[2:4], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(pcm[4:6], uint16(int16(-16384)))
	binary.LittleEndian.PutUint16(pcm[6:8], uint16(int16(-32768)))

	got := pcmToFloat32(pcm)
	want := []float32{0, 0.5, -0.5, -1.0}

	if len(got) != len(want) {
		t.Fatalf("sample count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestPCMToFloat32OddTrailingByte(t *testing.T) {
	t.Parallel()

	got := pcmToFloat32([]byte{0x00, 0x40, 0x7f})
	if len(got) != 1 {
		t.Fatalf("expected trailing byte to be ignored, got %d samples", len(got))
	}
}
