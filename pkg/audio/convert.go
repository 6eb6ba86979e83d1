package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeChunkSize is the default number of PCM bytes encoded per pass by
// [EncodeBase64Chunked]. It is a multiple of 3 so that chunk boundaries
// never introduce base64 padding mid-stream.
const EncodeChunkSize = 8190

// FloatToPCM16 converts one float32 sample in [-1, 1] to a signed 16-bit
// PCM sample. Input is clamped; negative values scale by 0x8000 and
// non-negative values by 0x7FFF so that -1.0 maps exactly to -32768 and
// 1.0 to 32767. Rounds to nearest.
func FloatToPCM16(x float32) int16 {
	if x < -1 {
		x = -1
	} else if x > 1 {
		x = 1
	}
	if x < 0 {
		return int16(math.Round(float64(x) * 0x8000))
	}
	return int16(math.Round(float64(x) * 0x7FFF))
}

// PCM16ToFloat converts one signed 16-bit PCM sample back to float32.
// It is the algebraic inverse of [FloatToPCM16]: negative samples divide
// by 0x8000, non-negative by 0x7FFF. The round trip
// PCM16ToFloat(FloatToPCM16(x)) differs from x by at most 1/32768.
func PCM16ToFloat(s int16) float32 {
	if s < 0 {
		return float32(s) / 0x8000
	}
	return float32(s) / 0x7FFF
}

// FloatsToPCM16LE converts src samples to little-endian PCM16 bytes in dst
// and returns the number of bytes written. dst must have room for
// 2*len(src) bytes; excess samples are ignored when it does not.
func FloatsToPCM16LE(dst []byte, src []float32) int {
	n := len(src)
	if max := len(dst) / 2; n > max {
		n = max
	}
	for i := range n {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(FloatToPCM16(src[i])))
	}
	return n * 2
}

// PCM16LEToFloats converts little-endian PCM16 bytes from src into float32
// samples in dst and returns the number of samples written. A trailing odd
// byte in src is ignored.
func PCM16LEToFloats(dst []float32, src []byte) int {
	n := len(src) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := range n {
		dst[i] = PCM16ToFloat(int16(binary.LittleEndian.Uint16(src[i*2:])))
	}
	return n
}

// Decoder converts inbound base64-encoded PCM16LE payloads to float32
// samples. The scratch buffers are owned by the Decoder and reused across
// calls, so the steady state is allocation-free; they grow only when a
// larger payload than any seen before arrives.
//
// A Decoder is not safe for concurrent use. The returned slice is valid
// until the next Decode call.
type Decoder struct {
	src     []byte
	raw     []byte
	samples []float32
}

// Decode decodes one base64 PCM16LE payload and returns the samples. A
// payload that is not valid base64, or whose decoded length is not a whole
// number of 16-bit samples, is rejected.
func (d *Decoder) Decode(b64 string) ([]float32, error) {
	d.src = append(d.src[:0], b64...)

	need := base64.StdEncoding.DecodedLen(len(d.src))
	if cap(d.raw) < need {
		d.raw = make([]byte, need)
	}
	n, err := base64.StdEncoding.Decode(d.raw[:need], d.src)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w", err)
	}
	if n%2 != 0 {
		return nil, fmt.Errorf("audio: truncated pcm16 payload: %d bytes", n)
	}

	count := n / 2
	if cap(d.samples) < count {
		d.samples = make([]float32, count)
	}
	out := d.samples[:count]
	PCM16LEToFloats(out, d.raw[:n])
	return out, nil
}

// EncodeBase64Chunked appends the standard base64 encoding of src to dst
// and returns the extended slice. The source is processed in chunks of at
// most chunkSize bytes (floored to a multiple of 3, minimum 3) so that a
// single oversized block never causes a long uninterrupted pass inside a
// real-time callback. The output is byte-for-byte identical to a one-shot
// base64.StdEncoding.EncodeToString of src.
//
// When dst has sufficient capacity no allocation takes place.
func EncodeBase64Chunked(dst, src []byte, chunkSize int) []byte {
	chunkSize -= chunkSize % 3
	if chunkSize < 3 {
		chunkSize = 3
	}

	total := base64.StdEncoding.EncodedLen(len(src))
	off := len(dst)
	if cap(dst)-off < total {
		grown := make([]byte, off, off+total)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:off+total]

	pos := off
	for start := 0; start < len(src); start += chunkSize {
		end := start + chunkSize
		if end > len(src) {
			end = len(src)
		}
		base64.StdEncoding.Encode(dst[pos:], src[start:end])
		pos += base64.StdEncoding.EncodedLen(end - start)
	}
	return dst
}
