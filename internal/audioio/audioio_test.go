package audioio

import (
	"math"
	"testing"
)

func sine(n int, freq, rate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func TestEncodeDecode_Roundtrip(t *testing.T) {
	t.Parallel()
	const rate = 16000
	samples := sine(1600, 440, rate)

	data, err := Encode(samples, rate)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, gotRate, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotRate != rate {
		t.Errorf("sample rate = %d, want %d", gotRate, rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	// 16-bit quantization bounds the roundtrip error.
	for i := range samples {
		if diff := math.Abs(float64(got[i] - samples[i])); diff > 1e-3 {
			t.Fatalf("sample %d: got %v, want %v (diff %v)", i, got[i], samples[i], diff)
		}
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	t.Parallel()
	if _, _, err := Decode(nil); err == nil {
		t.Error("Decode(nil) = nil error, want error")
	}
}

func TestDecode_InvalidBytes(t *testing.T) {
	t.Parallel()
	if _, _, err := Decode([]byte("not a wav file at all")); err == nil {
		t.Error("Decode(garbage) = nil error, want error")
	}
}

func TestDownmix(t *testing.T) {
	t.Parallel()
	// Stereo frames (0.2,0.4) (1,-1) (0.6,0.8) average per frame.
	interleaved := []float32{0.2, 0.4, 1, -1, 0.6, 0.8}
	got := downmix(interleaved, 2)
	want := []float32{0.3, 0, 0.7}
	if len(got) != len(want) {
		t.Fatalf("downmix yielded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmix_PartialTrailingFrame(t *testing.T) {
	t.Parallel()
	// Last frame has one sample; it is averaged over what exists.
	got := downmix([]float32{0.2, 0.4, 0.9}, 2)
	if len(got) != 2 {
		t.Fatalf("downmix yielded %d frames, want 2", len(got))
	}
	if math.Abs(float64(got[1]-0.9)) > 1e-6 {
		t.Errorf("trailing frame = %v, want 0.9", got[1])
	}
}
