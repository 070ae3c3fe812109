// Package audio provides PCM helpers shared by the synthesizer backends:
// sample conversion, silence generation, and sample-rate conversion.
//
// All functions operate on raw signed 16-bit little-endian mono PCM, the only
// format carried on the wire.
package audio

import "time"

// BytesPerSample is the size of one s16le mono sample.
const BytesPerSample = 2

// Silence returns d worth of silent s16le mono PCM at the given sample rate.
func Silence(d time.Duration, sampleRate int) []byte {
	frames := int(float64(sampleRate) * d.Seconds())
	if frames < 0 {
		frames = 0
	}
	return make([]byte, frames*BytesPerSample)
}

// Duration returns the playback duration of an s16le mono PCM buffer.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	frames := len(pcm) / BytesPerSample
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}

// samplesToFloat64 converts s16le bytes to normalised float64 samples.
// A trailing odd byte is ignored.
func samplesToFloat64(pcm []byte) []float64 {
	n := len(pcm) / BytesPerSample
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float64(s) / 32768.0
	}
	return out
}

// float64ToSamples converts normalised float64 samples back to s16le bytes,
// clamping out-of-range values.
func float64ToSamples(samples []float64) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := int16(s * 32767.0)
		if s > 1.0 {
			v = 32767
		} else if s < -1.0 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
