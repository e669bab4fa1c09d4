// Package audio holds the small amount of signal handling the voice runtime
// needs: PCM16 conversion, WAV framing, resampling and voice activity detection.
package audio

import (
	"encoding/binary"
	"math"
)

// DecodePCM16 converts little-endian signed 16-bit mono PCM to floats in
// [-1, 1]. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / math.MaxInt16
	}
	return out
}

// EncodePCM16 is the inverse of DecodePCM16. Samples outside [-1, 1] are clipped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		s = max(-1, min(1, s))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}
