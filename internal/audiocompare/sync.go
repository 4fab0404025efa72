package audiocompare

import "math"

const (
	envelopeHopSeconds = 0.01
	maxOffsetSeconds   = 5.0

	// minOverlapWindows rejects lags where the envelopes barely overlap;
	// a handful of windows cannot support a meaningful correlation.
	minOverlapWindows = 10
	correlationTie    = 1e-9
)

// envelope reduces a signal to its short-term RMS energy curve.
func envelope(samples []float64, sampleRate int) []float64 {
	hop := int(envelopeHopSeconds * float64(sampleRate))
	if hop <= 0 {
		hop = 1
	}
	env := make([]float64, 0, len(samples)/hop+1)
	for start := 0; start < len(samples); start += hop {
		end := start + hop
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s * s
		}
		env = append(env, math.Sqrt(sum/float64(end-start)))
	}
	return env
}

// RecoverOffset estimates the time shift of the emission relative to the
// acceptance by cross-correlating their energy envelopes within a bounded
// lag window. A positive offset means the emission lags.
func RecoverOffset(acceptance, emission []float64, sampleRate int) float64 {
	envA := envelope(acceptance, sampleRate)
	envB := envelope(emission, sampleRate)
	if len(envA) == 0 || len(envB) == 0 {
		return 0
	}

	maxLag := int(maxOffsetSeconds / envelopeHopSeconds)
	bestLag := 0
	bestScore := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		score, ok := lagCorrelation(envA, envB, lag)
		if !ok {
			continue
		}
		better := score > bestScore+correlationTie
		tied := math.Abs(score-bestScore) <= correlationTie && absInt(lag) < absInt(bestLag)
		if better || tied {
			bestScore = score
			bestLag = lag
		}
	}
	return float64(bestLag) * envelopeHopSeconds
}

// lagCorrelation computes the Pearson correlation of the two envelopes over
// their overlap at the given lag. Subtracting each side's overlap mean and
// dividing by the overlap norms keeps high-energy regions from pulling the
// argmax toward large lags with little overlap.
func lagCorrelation(a, b []float64, lag int) (float64, bool) {
	start := 0
	if lag < 0 {
		start = -lag
	}
	end := len(a)
	if limit := len(b) - lag; limit < end {
		end = limit
	}
	if end-start < minOverlapWindows {
		return 0, false
	}

	n := float64(end - start)
	var meanA, meanB float64
	for i := start; i < end; i++ {
		meanA += a[i]
		meanB += b[i+lag]
	}
	meanA /= n
	meanB /= n

	var num, normA, normB float64
	for i := start; i < end; i++ {
		da := a[i] - meanA
		db := b[i+lag] - meanB
		num += da * db
		normA += da * da
		normB += db * db
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return num / math.Sqrt(normA*normB), true
}

func absInt(value int) int {
	if value < 0 {
		return -value
	}
	return value
}

// AlignByOffset trims the leading shifted portion from whichever side runs
// ahead, then truncates both to the shared length.
func AlignByOffset(acceptance, emission []float64, offsetSeconds float64, sampleRate int) ([]float64, []float64) {
	shift := int(math.Abs(offsetSeconds) * float64(sampleRate))
	switch {
	case offsetSeconds > 0 && shift < len(emission):
		emission = emission[shift:]
	case offsetSeconds < 0 && shift < len(acceptance):
		acceptance = acceptance[shift:]
	}
	length := len(acceptance)
	if len(emission) < length {
		length = len(emission)
	}
	return acceptance[:length], emission[:length]
}
