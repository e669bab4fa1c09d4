package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVAD() *VAD {
	return NewVAD(VADConfig{
		SpeechThresholdDB: -30,
		EndOfTurnSilence:  100 * time.Millisecond,
		MinSpeechDuration: 50 * time.Millisecond,
		PreSpeechBuffer:   20 * time.Millisecond,
		SampleRate:        1000,
	})
}

func tone(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.5
		if i%2 == 1 {
			out[i] = -0.5
		}
	}
	return out
}

func quiet(n int) []float32 { return make([]float32, n) }

func TestVADSegment(t *testing.T) {
	v := testVAD()

	assert.Equal(t, VADResult{}, v.Process(quiet(50)))

	res := v.Process(tone(60))
	assert.True(t, res.SpeechStarted)
	assert.False(t, res.SpeechEnded)
	assert.True(t, v.InSpeech())

	assert.False(t, v.Process(quiet(50)).SpeechEnded)

	res = v.Process(quiet(50))
	require.True(t, res.SpeechEnded)
	assert.Len(t, res.Audio, 20+60+100, "pre-speech + speech + trailing silence")
	assert.False(t, v.InSpeech())
}

func TestVADSpeechResumesBeforeTimeout(t *testing.T) {
	v := testVAD()
	v.Process(tone(60))
	v.Process(quiet(90))

	res := v.Process(tone(10))
	assert.False(t, res.SpeechStarted, "same segment continues")
	assert.False(t, v.Process(quiet(90)).SpeechEnded)
	assert.True(t, v.Process(quiet(10)).SpeechEnded)
}

func TestVADDropsShortBursts(t *testing.T) {
	v := testVAD()
	assert.True(t, v.Process(tone(30)).SpeechStarted)

	res := v.Process(quiet(100))
	assert.False(t, res.SpeechEnded)
	assert.False(t, v.InSpeech())
}

func TestVADFlush(t *testing.T) {
	v := testVAD()
	assert.Nil(t, v.Flush())

	v.Process(tone(60))
	assert.Len(t, v.Flush(), 60)
	assert.False(t, v.InSpeech())
}

func TestEnergyDB(t *testing.T) {
	assert.Equal(t, -100.0, EnergyDB(nil))
	assert.Equal(t, -100.0, EnergyDB(quiet(10)))
	assert.InDelta(t, -6.02, EnergyDB(tone(10)), 0.01)
}
