package whisper

import (
	"math"
	"testing"
)

func TestToFloat32(t *testing.T) {
	t.Parallel()

	in := []int16{0, 16384, -16384, 32767, -32768}
	out := toFloat32(in)
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("toFloat32()[%d] = %f, want %f", i, out[i], want[i])
		}
	}
}

func TestResampleLinear(t *testing.T) {
	t.Parallel()

	t.Run("downsample halves length", func(t *testing.T) {
		t.Parallel()
		in := make([]float32, 32000)
		out := resampleLinear(in, 32000, 16000)
		if len(out) != 16000 {
			t.Errorf("len(out) = %d, want 16000", len(out))
		}
	})

	t.Run("same rate is identity", func(t *testing.T) {
		t.Parallel()
		in := []float32{0.1, 0.2, 0.3}
		out := resampleLinear(in, 16000, 16000)
		if len(out) != len(in) {
			t.Fatalf("len(out) = %d, want %d", len(out), len(in))
		}
		for i := range in {
			if out[i] != in[i] {
				t.Errorf("out[%d] = %f, want %f", i, out[i], in[i])
			}
		}
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		t.Parallel()
		in := []float32{0, 1}
		out := resampleLinear(in, 8000, 16000)
		if len(out) != 4 {
			t.Fatalf("len(out) = %d, want 4", len(out))
		}
		// Second sample sits halfway between the two inputs.
		if math.Abs(float64(out[1]-0.5)) > 1e-6 {
			t.Errorf("out[1] = %f, want 0.5", out[1])
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		if out := resampleLinear(nil, 44100, 16000); len(out) != 0 {
			t.Errorf("len(out) = %d, want 0", len(out))
		}
	})
}
