package audio

import (
	"math"
	"time"
)

// VADConfig controls voice activity detection.
type VADConfig struct {
	SpeechThresholdDB float64
	// EndOfTurnSilence is the trailing silence that closes a speech segment.
	EndOfTurnSilence  time.Duration
	MinSpeechDuration time.Duration
	PreSpeechBuffer   time.Duration
	SampleRate        int
}

// DefaultVADConfig returns defaults tuned for a quiet headset microphone.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		SpeechThresholdDB: -35,
		EndOfTurnSilence:  500 * time.Millisecond,
		MinSpeechDuration: 250 * time.Millisecond,
		PreSpeechBuffer:   300 * time.Millisecond,
		SampleRate:        16000,
	}
}

// VADResult reports the state changes caused by one chunk.
type VADResult struct {
	// SpeechStarted is set on the chunk where a new segment begins.
	SpeechStarted bool
	// SpeechEnded is set when a segment closed; Audio then holds it.
	SpeechEnded bool
	Audio       []float32
}

// VAD is an energy-based voice activity detector. Durations are measured in
// samples, so results depend only on the audio fed in, not on wall time.
type VAD struct {
	cfg VADConfig

	inSpeech     bool
	speechLen    int // voiced samples in the current segment
	silenceLen   int // trailing unvoiced samples in the current segment
	segment      []float32
	preSpeech    []float32
	preSpeechMax int
	silenceMax   int
	minSpeech    int
}

// NewVAD creates a VAD. A zero sample rate defaults to 16 kHz.
func NewVAD(cfg VADConfig) *VAD {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &VAD{
		cfg:          cfg,
		preSpeechMax: samplesFor(cfg.PreSpeechBuffer, cfg.SampleRate),
		silenceMax:   samplesFor(cfg.EndOfTurnSilence, cfg.SampleRate),
		minSpeech:    samplesFor(cfg.MinSpeechDuration, cfg.SampleRate),
	}
}

func samplesFor(d time.Duration, rate int) int {
	return int(d.Seconds() * float64(rate))
}

// Process feeds one chunk of mono samples at the configured rate.
func (v *VAD) Process(samples []float32) VADResult {
	if len(samples) == 0 {
		return VADResult{}
	}
	if EnergyDB(samples) >= v.cfg.SpeechThresholdDB {
		return v.voiced(samples)
	}
	return v.unvoiced(samples)
}

// InSpeech reports whether a segment is open.
func (v *VAD) InSpeech() bool { return v.inSpeech }

func (v *VAD) voiced(samples []float32) VADResult {
	var res VADResult
	if !v.inSpeech {
		v.inSpeech = true
		v.segment = append(v.segment[:0], v.preSpeech...)
		v.preSpeech = v.preSpeech[:0]
		res.SpeechStarted = true
	}
	v.segment = append(v.segment, samples...)
	v.speechLen += len(samples)
	v.silenceLen = 0
	return res
}

func (v *VAD) unvoiced(samples []float32) VADResult {
	if !v.inSpeech {
		v.keepPreSpeech(samples)
		return VADResult{}
	}

	v.segment = append(v.segment, samples...)
	v.silenceLen += len(samples)
	if v.silenceLen < v.silenceMax {
		return VADResult{}
	}

	segment, long := v.segment, v.speechLen >= v.minSpeech
	v.reset()
	if !long {
		return VADResult{}
	}
	return VADResult{SpeechEnded: true, Audio: segment}
}

func (v *VAD) keepPreSpeech(samples []float32) {
	if v.preSpeechMax == 0 {
		return
	}
	v.preSpeech = append(v.preSpeech, samples...)
	if extra := len(v.preSpeech) - v.preSpeechMax; extra > 0 {
		v.preSpeech = append(v.preSpeech[:0], v.preSpeech[extra:]...)
	}
}

func (v *VAD) reset() {
	v.inSpeech = false
	v.speechLen = 0
	v.silenceLen = 0
	v.segment = nil
}

// Flush closes any open segment and returns its audio if it was long enough.
func (v *VAD) Flush() []float32 {
	if !v.inSpeech {
		return nil
	}
	segment, long := v.segment, v.speechLen >= v.minSpeech
	v.reset()
	if !long {
		return nil
	}
	return segment
}

// EnergyDB is the RMS level of samples in dBFS, floored at -100.
func EnergyDB(samples []float32) float64 {
	if len(samples) == 0 {
		return -100
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms < 1e-5 {
		return -100
	}
	return 20 * math.Log10(rms)
}
