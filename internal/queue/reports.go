package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aircheck/internal/report"
)

// AppendUnits persists a batch of per-unit comparison results for a job.
func (s *Store) AppendUnits(ctx context.Context, jobID int64, units []report.UnitResult) error {
	if len(units) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO unit_results (job_id, unit_index, timestamp_sec, similarity, is_difference, artifact_path)
         VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare unit insert: %w", err)
	}
	defer stmt.Close()

	for _, unit := range units {
		if _, err := stmt.ExecContext(ctx,
			jobID, unit.Index, unit.TimestampSec, unit.Similarity,
			boolToInt(unit.IsDifference), nullableString(unit.ArtifactPath),
		); err != nil {
			return fmt.Errorf("insert unit %d: %w", unit.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit units: %w", err)
	}
	return nil
}

// Units returns the persisted unit results for a job ordered by index.
func (s *Store) Units(ctx context.Context, jobID int64) ([]report.UnitResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_index, timestamp_sec, similarity, is_difference, artifact_path
         FROM unit_results WHERE job_id = ? ORDER BY unit_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []report.UnitResult
	for rows.Next() {
		var (
			unit         report.UnitResult
			isDifference int
			artifactPath sql.NullString
		)
		if err := rows.Scan(&unit.Index, &unit.TimestampSec, &unit.Similarity, &isDifference, &artifactPath); err != nil {
			return nil, err
		}
		unit.IsDifference = isDifference != 0
		unit.ArtifactPath = artifactPath.String
		units = append(units, unit)
	}
	return units, rows.Err()
}

// SaveReport persists the final report and transitions the job to completed in
// one transaction. Report rows exist only for completed jobs.
func (s *Store) SaveReport(ctx context.Context, jobID int64, rep *report.Report) error {
	if rep == nil {
		return errors.New("report is nil")
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comparison_reports (job_id, report_json, created_at) VALUES (?, ?, ?)`,
		jobID, string(payload), now); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE comparison_jobs
         SET status = ?, progress_stage = 'completed', progress_percent = 100,
             progress_message = NULL, completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, now, now, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d is not processing; refusing to complete", jobID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

// GetReport fetches the persisted report for a completed job, or (nil, nil)
// when none exists.
func (s *Store) GetReport(ctx context.Context, jobID int64) (*report.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report_json FROM comparison_reports WHERE job_id = ?`, jobID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	var rep report.Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rep, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
