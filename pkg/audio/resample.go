package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts a stream of s16le mono PCM chunks from one sample rate
// to another. It is stateful across chunks so segment boundaries do not click;
// create one per synthesis stream. Not safe for concurrent use.
type Resampler struct {
	inner   resampling.Resampler
	srcRate int
	dstRate int
}

// NewResampler creates a mono s16le resampler from srcRate to dstRate.
// When the rates are equal Process is a pass-through.
func NewResampler(srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rates %d -> %d", srcRate, dstRate)
	}
	r := &Resampler{srcRate: srcRate, dstRate: dstRate}
	if srcRate == dstRate {
		return r, nil
	}

	inner, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}
	r.inner = inner
	return r, nil
}

// Process resamples one PCM chunk. The returned slice may be empty when the
// resampler is still priming; remaining samples are flushed by later calls.
func (r *Resampler) Process(pcm []byte) ([]byte, error) {
	if r.inner == nil {
		return pcm, nil
	}
	if len(pcm) < BytesPerSample {
		return nil, nil
	}

	out, err := r.inner.Process(samplesToFloat64(pcm))
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}
	return float64ToSamples(out), nil
}
