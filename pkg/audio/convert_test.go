package audio_test

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/MrWong99/voicewire/pkg/audio"
)

func TestFloatToPCM16_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float32
		want int16
	}{
		{0.0, 0},
		{-1.0, -32768},
		{1.0, 32767},
		{-2.0, -32768}, // clamped
		{2.0, 32767},   // clamped
	}
	for _, tt := range tests {
		if got := audio.FloatToPCM16(tt.in); got != tt.want {
			t.Errorf("FloatToPCM16(%v) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestPCM16ToFloat_Boundaries(t *testing.T) {
	t.Parallel()

	if got := audio.PCM16ToFloat(-32768); got != -1.0 {
		t.Errorf("PCM16ToFloat(-32768) = %v; want exactly -1.0", got)
	}
	if got := audio.PCM16ToFloat(0); got != 0.0 {
		t.Errorf("PCM16ToFloat(0) = %v; want 0", got)
	}
	if got := audio.PCM16ToFloat(32767); got != 1.0 {
		t.Errorf("PCM16ToFloat(32767) = %v; want 1.0", got)
	}
}

func TestPCMRoundTrip_ErrorBound(t *testing.T) {
	t.Parallel()

	const bound = 1.0 / 32768
	for _, x := range []float32{-1.0, -0.5, 0.0, 0.5, 0.999969} {
		back := audio.PCM16ToFloat(audio.FloatToPCM16(x))
		if diff := math.Abs(float64(back - x)); diff > bound {
			t.Errorf("round trip of %v drifted by %v; bound %v", x, diff, bound)
		}
	}
}

func TestFloatsToPCM16LE_RoundTrip(t *testing.T) {
	t.Parallel()

	src := []float32{-1.0, -0.25, 0.0, 0.25, 1.0}
	pcm := make([]byte, len(src)*2)
	if n := audio.FloatsToPCM16LE(pcm, src); n != len(pcm) {
		t.Fatalf("FloatsToPCM16LE wrote %d bytes; want %d", n, len(pcm))
	}

	back := make([]float32, len(src))
	if n := audio.PCM16LEToFloats(back, pcm); n != len(src) {
		t.Fatalf("PCM16LEToFloats read %d samples; want %d", n, len(src))
	}

	const bound = 1.0 / 32768
	for i := range src {
		if diff := math.Abs(float64(back[i] - src[i])); diff > bound {
			t.Errorf("sample %d drifted by %v; bound %v", i, diff, bound)
		}
	}
}

func TestEncodeBase64Chunked_MatchesSinglePass(t *testing.T) {
	t.Parallel()

	src := make([]byte, 20000)
	for i := range src {
		src[i] = byte(i * 31)
	}
	want := base64.StdEncoding.EncodeToString(src)

	for _, chunkSize := range []int{3, 6, 99, 8190, 100000} {
		got := audio.EncodeBase64Chunked(nil, src, chunkSize)
		if string(got) != want {
			t.Errorf("chunkSize %d: chunked output differs from single-pass encode", chunkSize)
		}
	}
}

func TestEncodeBase64Chunked_FloorsChunkSize(t *testing.T) {
	t.Parallel()

	src := []byte("chunk boundaries must not introduce padding")
	want := base64.StdEncoding.EncodeToString(src)

	// Sizes that are not multiples of 3 are floored; 1 and 2 floor to 3.
	for _, chunkSize := range []int{1, 2, 4, 5, 7, 1000} {
		got := audio.EncodeBase64Chunked(nil, src, chunkSize)
		if string(got) != want {
			t.Errorf("chunkSize %d: got %q; want %q", chunkSize, got, want)
		}
	}
}

func TestEncodeBase64Chunked_ReusesDst(t *testing.T) {
	t.Parallel()

	src := []byte("some pcm bytes")
	dst := make([]byte, 0, 256)

	got := audio.EncodeBase64Chunked(dst, src, audio.EncodeChunkSize)
	if &got[0] != &dst[:1][0] {
		t.Error("encode with sufficient capacity should not reallocate dst")
	}
	if string(got) != base64.StdEncoding.EncodeToString(src) {
		t.Errorf("got %q", got)
	}
}

func TestDecoder_RoundTrip(t *testing.T) {
	t.Parallel()

	src := []float32{-1.0, -0.5, 0.0, 0.5, 1.0, 0.125, -0.125, 0.75}
	pcm := make([]byte, len(src)*2)
	audio.FloatsToPCM16LE(pcm, src)
	b64 := string(audio.EncodeBase64Chunked(nil, pcm, audio.EncodeChunkSize))

	var dec audio.Decoder
	got, err := dec.Decode(b64)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(src) {
		t.Fatalf("decoded %d samples; want %d", len(got), len(src))
	}
	const bound = 1.0 / 32768
	for i := range src {
		if diff := math.Abs(float64(got[i] - src[i])); diff > bound {
			t.Errorf("sample %d drifted by %v; bound %v", i, diff, bound)
		}
	}
}

func TestDecoder_RejectsBadPayloads(t *testing.T) {
	t.Parallel()

	var dec audio.Decoder
	if _, err := dec.Decode("not!!valid!!base64!!"); err == nil {
		t.Error("invalid base64 should be rejected")
	}
	// Three decoded bytes: not a whole number of 16-bit samples.
	odd := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	if _, err := dec.Decode(odd); err == nil {
		t.Error("odd-length pcm payload should be rejected")
	}
	// Decoder stays usable after an error.
	ok := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	if _, err := dec.Decode(ok); err != nil {
		t.Errorf("Decode after error: %v", err)
	}
}
