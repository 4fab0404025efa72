package queue

import (
	"strings"
	"time"

	"aircheck/internal/sensitivity"
)

// Status represents the lifecycle of a comparison job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DaemonStopReason is the error message set when processing jobs are failed
// because the daemon restarted underneath them. A failed job is terminal;
// resubmission creates a new job.
const DaemonStopReason = "daemon restarted during processing"

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Job represents a comparison job persisted in SQLite.
type Job struct {
	ID               int64
	CorrelationID    string
	AcceptancePath   string
	EmissionPath     string
	SensitivityLevel sensitivity.Level
	ComparisonType   sensitivity.ComparisonType
	Policy           sensitivity.Policy
	Status           Status
	ProgressStage    string
	ProgressPercent  float64
	ProgressMessage  string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SetProgress updates all three progress fields together. Percent never moves
// backwards while a job is processing.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	if percent > j.ProgressPercent {
		j.ProgressPercent = percent
	}
}

// SetFailed marks the job as failed with the given error message. Progress is
// frozen at its last value.
func (j *Job) SetFailed(message string) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
}
