package audio

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation. When downsampling, a moving average over one source period
// of the target rate suppresses the worst aliasing first.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}
	if srcRate > dstRate {
		samples = boxFilter(samples, srcRate/dstRate)
	}

	step := float64(srcRate) / float64(dstRate)
	n := int(float64(len(samples)) / step)
	out := make([]float32, n)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j] + (samples[j+1]-samples[j])*frac
	}
	return out
}

func boxFilter(samples []float32, width int) []float32 {
	if width < 2 {
		return samples
	}
	out := make([]float32, len(samples))
	var sum float32
	for i, s := range samples {
		sum += s
		if i >= width {
			sum -= samples[i-width]
		}
		out[i] = sum / float32(min(i+1, width))
	}
	return out
}
