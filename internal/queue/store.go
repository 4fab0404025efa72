package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"aircheck/internal/config"
	"aircheck/internal/sensitivity"
)

// Store manages comparison job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a pending comparison job. The policy is resolved by the
// caller at submission time and frozen for the job's lifetime.
func (s *Store) NewJob(ctx context.Context, acceptancePath, emissionPath string, level sensitivity.Level, comparisonType sensitivity.ComparisonType, policy sensitivity.Policy) (*Job, error) {
	if acceptancePath == "" || emissionPath == "" {
		return nil, errors.New("acceptance and emission paths are required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO comparison_jobs (
            correlation_id, acceptance_path, emission_path,
            sensitivity_level, comparison_type,
            sampling_rate, max_units, similarity_threshold,
            status, progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		acceptancePath,
		emissionPath,
		string(level),
		string(comparisonType),
		policy.SamplingRate,
		policy.MaxUnits,
		policy.SimilarityThreshold,
		StatusPending,
		0.0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM comparison_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM comparison_jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNextPending atomically transitions the oldest pending job to
// processing and returns it. Exactly one caller wins a given job; nil is
// returned when nothing is pending. This is the only pending→processing path,
// so no two controllers can process the same job concurrently.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	for {
		row := s.db.QueryRowContext(ctx,
			`SELECT id FROM comparison_jobs WHERE status = ? ORDER BY created_at LIMIT 1`, StatusPending)
		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select pending job: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.db.ExecContext(ctx,
			`UPDATE comparison_jobs
             SET status = ?, started_at = ?, updated_at = ?, progress_percent = 0,
                 progress_stage = 'starting', progress_message = NULL
             WHERE id = ? AND status = ?`,
			StatusProcessing, now, now, id, StatusPending)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race for this job; try the next one.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// UpdateProgress persists the job's progress fields. Percent regressions are
// ignored so progress stays monotonic while processing.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE comparison_jobs
         SET progress_stage = ?, progress_percent = MAX(progress_percent, ?), progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkFailed transitions a processing job to the terminal failed state.
// Progress is frozen at its last persisted value.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	if message == "" {
		message = "comparison failed"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE comparison_jobs
         SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, message, now, now, id, StatusPending, StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark failed rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d is not in a failable state", id)
	}
	return nil
}

// FailStaleProcessing fails jobs left in processing, typically after a daemon
// restart. There is no retry path back from a terminal state.
func (s *Store) FailStaleProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE comparison_jobs
         SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusFailed, DaemonStopReason, now, now, StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM comparison_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Remove deletes a job by identifier. Unit results and reports cascade.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comparison_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comparison_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal removes completed and failed jobs from the queue.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comparison_jobs WHERE status IN (?, ?)`,
		StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, correlation_id, acceptance_path, emission_path, sensitivity_level, comparison_type, sampling_rate, max_units, similarity_threshold, status, progress_stage, progress_percent, progress_message, error_message, created_at, updated_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		correlationID   string
		acceptancePath  string
		emissionPath    string
		level           string
		comparisonType  string
		samplingRate    float64
		maxUnits        int
		threshold       float64
		statusStr       string
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorMessage    sql.NullString
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&correlationID,
		&acceptancePath,
		&emissionPath,
		&level,
		&comparisonType,
		&samplingRate,
		&maxUnits,
		&threshold,
		&statusStr,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		CorrelationID:    correlationID,
		AcceptancePath:   acceptancePath,
		EmissionPath:     emissionPath,
		SensitivityLevel: sensitivity.Level(level),
		ComparisonType:   sensitivity.ComparisonType(comparisonType),
		Policy: sensitivity.Policy{
			SamplingRate:        samplingRate,
			MaxUnits:            maxUnits,
			SimilarityThreshold: threshold,
		},
		Status:          Status(statusStr),
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
