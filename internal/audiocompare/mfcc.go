package audiocompare

import "math"

const (
	mfccCoefficients = 13
	melFilterCount   = 26
	mfccFrameSize    = 1024
	mfccHopSize      = 512
)

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds triangular filters spanning 0 Hz to Nyquist, expressed
// as per-filter weights over the spectrum bins.
func melFilterbank(spectrumBins, sampleRate int) [][]float64 {
	nyquist := float64(sampleRate) / 2
	melMax := hzToMel(nyquist)

	points := make([]int, melFilterCount+2)
	for i := range points {
		hz := melToHz(melMax * float64(i) / float64(melFilterCount+1))
		bin := int(hz / nyquist * float64(spectrumBins-1))
		if bin >= spectrumBins {
			bin = spectrumBins - 1
		}
		points[i] = bin
	}

	filters := make([][]float64, melFilterCount)
	for f := 0; f < melFilterCount; f++ {
		filters[f] = make([]float64, spectrumBins)
		left, center, right := points[f], points[f+1], points[f+2]
		if center == left {
			center = left + 1
		}
		if right <= center {
			right = center + 1
		}
		for bin := left; bin < center && bin < spectrumBins; bin++ {
			filters[f][bin] = float64(bin-left) / float64(center-left)
		}
		for bin := center; bin <= right && bin < spectrumBins; bin++ {
			filters[f][bin] = float64(right-bin) / float64(right-center)
		}
	}
	return filters
}

// dct2 computes the type-II discrete cosine transform, keeping the first
// count coefficients.
func dct2(input []float64, count int) []float64 {
	n := len(input)
	out := make([]float64, count)
	for k := 0; k < count; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += input[i] * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n))
		}
		out[k] = sum
	}
	return out
}

// mfccProfile averages per-frame MFCC vectors over the whole signal, giving a
// compact timbral fingerprint that is robust to small alignment drift.
func mfccProfile(samples []float64, sampleRate int) []float64 {
	if len(samples) < mfccFrameSize {
		return nil
	}

	var filters [][]float64
	profile := make([]float64, mfccCoefficients)
	frames := 0

	for start := 0; start+mfccFrameSize <= len(samples); start += mfccHopSize {
		spectrum := magnitudeSpectrum(samples[start : start+mfccFrameSize])
		if filters == nil {
			filters = melFilterbank(len(spectrum), sampleRate)
		}

		energies := make([]float64, melFilterCount)
		for f, filter := range filters {
			var sum float64
			for bin, weight := range filter {
				if weight != 0 {
					sum += spectrum[bin] * weight
				}
			}
			energies[f] = math.Log(sum + 1e-10)
		}

		coeffs := dct2(energies, mfccCoefficients)
		for i, c := range coeffs {
			profile[i] += c
		}
		frames++
	}

	if frames == 0 {
		return nil
	}
	for i := range profile {
		profile[i] /= float64(frames)
	}
	return profile
}

// spectralProfile averages magnitude spectra over the signal.
func spectralProfile(samples []float64) []float64 {
	if len(samples) < mfccFrameSize {
		return nil
	}

	var profile []float64
	frames := 0
	for start := 0; start+mfccFrameSize <= len(samples); start += mfccHopSize {
		spectrum := magnitudeSpectrum(samples[start : start+mfccFrameSize])
		if profile == nil {
			profile = make([]float64, len(spectrum))
		}
		for i, m := range spectrum {
			profile[i] += m
		}
		frames++
	}
	if frames == 0 {
		return nil
	}
	for i := range profile {
		profile[i] /= float64(frames)
	}
	return profile
}

// cosineSimilarity maps the raw cosine from [-1,1] into [0,1].
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		if normA == normB {
			return 1
		}
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
