package audiocompare

import (
	"errors"
	"math"

	"aircheck/internal/report"
)

// Broadcast delivery tolerances for programme loudness and peak level.
const (
	LoudnessToleranceLU = 1.0
	PeakToleranceDB     = 1.0
)

const (
	loudnessBlockSeconds   = 0.4
	loudnessAbsoluteGate   = -70.0
	loudnessRelativeGateLU = -10.0
	silenceFloorDB         = -100.0
)

var errTooShortForLoudness = errors.New("signal too short for loudness measurement")

// integratedLoudness measures gated programme loudness over 400 ms blocks:
// blocks below the absolute gate are discarded, then blocks more than 10 LU
// below the ungated mean are discarded, and the survivors are averaged.
func integratedLoudness(samples []float64, sampleRate int) (float64, error) {
	blockSize := int(loudnessBlockSeconds * float64(sampleRate))
	if blockSize <= 0 || len(samples) < blockSize {
		return 0, errTooShortForLoudness
	}

	var blocks []float64
	for start := 0; start+blockSize <= len(samples); start += blockSize / 2 {
		var sum float64
		for _, s := range samples[start : start+blockSize] {
			sum += s * s
		}
		meanSquare := sum / float64(blockSize)
		lufs := -0.691 + 10*math.Log10(meanSquare+1e-12)
		if lufs > loudnessAbsoluteGate {
			blocks = append(blocks, lufs)
		}
	}
	if len(blocks) == 0 {
		return silenceFloorDB, nil
	}

	var ungatedSum float64
	for _, b := range blocks {
		ungatedSum += math.Pow(10, b/10)
	}
	ungatedMean := 10 * math.Log10(ungatedSum/float64(len(blocks)))

	relativeGate := ungatedMean + loudnessRelativeGateLU
	var gatedSum float64
	gated := 0
	for _, b := range blocks {
		if b >= relativeGate {
			gatedSum += math.Pow(10, b/10)
			gated++
		}
	}
	if gated == 0 {
		return ungatedMean, nil
	}
	return 10 * math.Log10(gatedSum/float64(gated)), nil
}

// peakLevel returns the sample peak in dBFS.
func peakLevel(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return silenceFloorDB
	}
	return 20 * math.Log10(peak)
}

func measureSide(samples []float64, sampleRate int) (report.LoudnessSide, error) {
	lufs, err := integratedLoudness(samples, sampleRate)
	if err != nil {
		return report.LoudnessSide{}, err
	}
	return report.LoudnessSide{IntegratedLUFS: lufs, TruePeakDB: peakLevel(samples)}, nil
}

// CompareLoudness measures both sides and flags whether the deltas stay
// within broadcast tolerance.
func CompareLoudness(acceptance, emission []float64, sampleRate int) (report.LoudnessResult, error) {
	sideA, err := measureSide(acceptance, sampleRate)
	if err != nil {
		return report.LoudnessResult{}, err
	}
	sideB, err := measureSide(emission, sampleRate)
	if err != nil {
		return report.LoudnessResult{}, err
	}

	result := report.LoudnessResult{
		Acceptance: sideA,
		Emission:   sideB,
		LUFSDelta:  math.Abs(sideA.IntegratedLUFS - sideB.IntegratedLUFS),
		PeakDelta:  math.Abs(sideA.TruePeakDB - sideB.TruePeakDB),
	}
	result.IsLUFSMatch = result.LUFSDelta <= LoudnessToleranceLU
	result.IsPeakMatch = result.PeakDelta <= PeakToleranceDB
	return result, nil
}
