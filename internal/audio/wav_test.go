package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeWAV(t *testing.T) {
	wav := EncodeWAV([]float32{0, 1, -1}, 16000)

	assert.Len(t, wav, 44+6)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(wav[46:48])))
}

func TestSilenceWAV(t *testing.T) {
	assert.Len(t, SilenceWAV(100, 8000), 44+800*2)
}

func TestPCM16(t *testing.T) {
	in := []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80, 0x07}
	samples := DecodePCM16(in)
	assert.Len(t, samples, 3)
	assert.InDelta(t, 1.0, samples[1], 1e-6)
	assert.InDelta(t, -1.0, samples[2], 1e-6)
	assert.Equal(t, in[:6], EncodePCM16(samples))
}

func TestResample(t *testing.T) {
	in := tone(480)
	assert.Len(t, Resample(in, 48000, 16000), 160)
	assert.Len(t, Resample(in, 8000, 16000), 960)
	assert.Equal(t, in, Resample(in, 16000, 16000))
}
