package progress

import "time"

// rateSmoothing balances reacting to the current stage's pace against noise
// from burst updates.
const rateSmoothing = 0.4

// etaTracker projects time to completion from the observed percent rate. The
// projection is linear but the rate is re-estimated on every update, so a slow
// stage corrects an optimistic estimate from a fast earlier stage.
type etaTracker struct {
	started      time.Time
	lastUpdate   time.Time
	lastPercent  float64
	smoothedRate float64
}

func newETATracker(now time.Time) *etaTracker {
	return &etaTracker{started: now, lastUpdate: now}
}

// update feeds a new percentage and returns the remaining seconds estimate.
// The boolean is false until enough signal exists to project.
func (t *etaTracker) update(percent float64, now time.Time) (float64, bool) {
	if percent <= t.lastPercent {
		return t.remaining(percent)
	}

	elapsed := now.Sub(t.lastUpdate).Seconds()
	if elapsed > 0 {
		instantRate := (percent - t.lastPercent) / elapsed
		if t.smoothedRate == 0 {
			t.smoothedRate = instantRate
		} else {
			t.smoothedRate = (1-rateSmoothing)*t.smoothedRate + rateSmoothing*instantRate
		}
	}

	t.lastPercent = percent
	t.lastUpdate = now
	return t.remaining(percent)
}

func (t *etaTracker) remaining(percent float64) (float64, bool) {
	if t.smoothedRate <= 0 || percent >= 100 {
		return 0, percent >= 100
	}
	return (100 - percent) / t.smoothedRate, true
}
