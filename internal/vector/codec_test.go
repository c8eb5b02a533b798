package vector

import "testing"

func TestCodecRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75, 0}
	out := Decode(Encode(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %f != %f", i, in[i], out[i])
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	if out := Decode(nil); len(out) != 0 {
		t.Errorf("decoding nil should yield empty slice, got %v", out)
	}
}
