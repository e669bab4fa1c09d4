package audio

import "encoding/binary"

const wavHeaderLen = 44

// EncodeWAV wraps mono float samples in a 16-bit PCM WAV container.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := EncodePCM16(samples)
	buf := make([]byte, wavHeaderLen, wavHeaderLen+len(pcm))
	writeWAVHeader(buf, len(pcm), sampleRate)
	return append(buf, pcm...)
}

// SilenceWAV returns ms milliseconds of silence as a WAV file.
func SilenceWAV(ms, sampleRate int) []byte {
	return EncodeWAV(make([]float32, sampleRate*ms/1000), sampleRate)
}

func writeWAVHeader(buf []byte, dataLen, sampleRate int) {
	le := binary.LittleEndian
	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(wavHeaderLen-8+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1) // PCM
	le.PutUint16(buf[22:24], 1) // mono
	le.PutUint32(buf[24:28], uint32(sampleRate))
	le.PutUint32(buf[28:32], uint32(sampleRate*2))
	le.PutUint16(buf[32:34], 2)
	le.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(dataLen))
}
