// Package sensitivity maps a named sensitivity tier and comparison type onto
// the frozen sampling and threshold policy a job runs with.
package sensitivity

import "strings"

// Level names a sampling/threshold tier.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ComparisonType selects which pipeline stages are mandatory, skipped, or extended.
type ComparisonType string

const (
	TypeFull         ComparisonType = "full"
	TypeVideoOnly    ComparisonType = "video_only"
	TypeAudioOnly    ComparisonType = "audio_only"
	TypeAudioFocused ComparisonType = "audio_focused"
	TypeAutomation   ComparisonType = "automation"
)

// Policy is the resolved sampling and threshold triple. It is computed once at
// job creation and persisted, so a job's verdict is reproducible even if the
// tier defaults change later.
type Policy struct {
	SamplingRate        float64 `json:"sampling_rate"`
	MaxUnits            int     `json:"max_units"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

var levelPolicies = map[Level]Policy{
	LevelLow:    {SamplingRate: 0.5, MaxUnits: 20, SimilarityThreshold: 0.90},
	LevelMedium: {SamplingRate: 1.0, MaxUnits: 30, SimilarityThreshold: 0.98},
	LevelHigh:   {SamplingRate: 2.0, MaxUnits: 60, SimilarityThreshold: 0.99},
}

// automationPolicy overrides sensitivity-derived defaults entirely when the
// comparison type requests automation mode.
var automationPolicy = Policy{SamplingRate: 2.0, MaxUnits: 120, SimilarityThreshold: 0.995}

// ParseLevel normalizes a sensitivity value. Unknown values fall back to the
// most conservative tier rather than erroring; the tier is a tunable, not a
// correctness-critical input.
func ParseLevel(value string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(value))) {
	case LevelMedium:
		return LevelMedium
	case LevelHigh:
		return LevelHigh
	default:
		return LevelLow
	}
}

// ParseType normalizes a comparison type value. The boolean reports whether
// the value was recognized; callers reject unknown types at submission time.
func ParseType(value string) (ComparisonType, bool) {
	normalized := ComparisonType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case TypeFull, TypeVideoOnly, TypeAudioOnly, TypeAudioFocused, TypeAutomation:
		return normalized, true
	case "":
		return TypeFull, true
	default:
		return "", false
	}
}

// Resolve returns the policy for a level and comparison type. Automation mode
// takes precedence over the level entirely.
func Resolve(level Level, comparisonType ComparisonType) Policy {
	if comparisonType == TypeAutomation {
		return automationPolicy
	}
	policy, ok := levelPolicies[level]
	if !ok {
		policy = levelPolicies[LevelLow]
	}
	return policy
}

// VideoInScope reports whether the video comparison stage is mandatory.
func (t ComparisonType) VideoInScope() bool {
	switch t {
	case TypeAudioOnly, TypeAudioFocused:
		return false
	default:
		return true
	}
}

// AudioInScope reports whether the audio comparison stage is mandatory.
func (t ComparisonType) AudioInScope() bool {
	return t != TypeVideoOnly
}

// ExtendedAudio reports whether the optional source separation + transcript
// analysis runs. It is gated to bound cost.
func (t ComparisonType) ExtendedAudio() bool {
	return t == TypeAudioFocused || t == TypeAutomation
}
