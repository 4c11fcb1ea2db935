package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"esgwatch/internal/domain"
	"esgwatch/internal/ports"
)

// EnqueueScan creates a queued scan and its job row.
func (db *DB) EnqueueScan(ctx context.Context, trigger string) (string, error) {
	scanID := uuid.NewString()
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO scans (id, status, trigger) VALUES ($1, 'queued', $2)`, scanID, trigger); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO scan_jobs (id, scan_id) VALUES ($1, $2)`, uuid.NewString(), scanID)
		return err
	})
	if err != nil {
		return "", err
	}
	return scanID, nil
}

func (db *DB) GetScan(ctx context.Context, scanID string) (ports.ScanRun, error) {
	var (
		run                ports.ScanRun
		ruleErrs, warnings []byte
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT id, status, trigger, queued_at, started_at, finished_at,
		       evaluated, drafts, admitted, partial, rule_errors, warnings, fail_reason
		FROM scans WHERE id = $1
	`, scanID).Scan(&run.ID, &run.Status, &run.Trigger, &run.QueuedAt, &run.StartedAt, &run.FinishedAt,
		&run.Evaluated, &run.Drafts, &run.Admitted, &run.Partial, &ruleErrs, &warnings, &run.FailReason)
	if err != nil {
		return ports.ScanRun{}, notFound(err, "scan", scanID)
	}
	var stored []storedRuleError
	if err := json.Unmarshal(ruleErrs, &stored); err != nil {
		return ports.ScanRun{}, fmt.Errorf("decode rule errors of scan %s: %w", scanID, err)
	}
	for _, e := range stored {
		run.RuleErrors = append(run.RuleErrors, domain.RuleError{Rule: e.Rule, Reason: e.Reason})
	}
	if err := json.Unmarshal(warnings, &run.Warnings); err != nil {
		return ports.ScanRun{}, fmt.Errorf("decode warnings of scan %s: %w", scanID, err)
	}
	return run, nil
}

type storedRuleError struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.ScanJob, found bool, err error) {
	err = db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, scan_id FROM scan_jobs
			WHERE status = 'queued'
			ORDER BY queued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`).Scan(&job.ID, &job.ScanID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return markRunning(ctx, tx, job.ID, job.ScanID)
	})
	if err != nil {
		return ports.ScanJob{}, false, err
	}
	return job, found, nil
}

// StartJobForScan marks the job for a specific queued scan as running and
// returns the job id.
func (db *DB) StartJobForScan(ctx context.Context, scanID string) (string, error) {
	var jobID string
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id FROM scan_jobs
			WHERE scan_id = $1 AND status = 'queued'
			FOR UPDATE SKIP LOCKED
		`, scanID).Scan(&jobID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("scan %s is not queued: %w", scanID, domain.ErrConflict)
		}
		if err != nil {
			return err
		}
		return markRunning(ctx, tx, jobID, scanID)
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}

func markRunning(ctx context.Context, tx pgx.Tx, jobID, scanID string) error {
	if _, err := tx.Exec(ctx, `UPDATE scan_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE scans SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1`, scanID)
	return err
}

// MarkCompleted completes the job and records the summary on its scan.
func encodeSummary(sum ports.ScanSummary) (ruleErrs, warn []byte, err error) {
	stored := make([]storedRuleError, len(sum.RuleErrors))
	for i, e := range sum.RuleErrors {
		stored[i] = storedRuleError{Rule: e.Rule, Reason: e.Reason}
	}
	if ruleErrs, err = json.Marshal(stored); err != nil {
		return nil, nil, err
	}
	warnings := sum.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	if warn, err = json.Marshal(warnings); err != nil {
		return nil, nil, err
	}
	return ruleErrs, warn, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, sum ports.ScanSummary) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ruleErrs, warn, err := encodeSummary(sum)
	if err != nil {
		return err
	}
	return db.inTx(ctx, func(tx pgx.Tx) error {
		scanID, err := finishJob(ctx, tx, jobID, "completed")
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE scans SET status='completed', finished_at=now(),
			       evaluated=$2, drafts=$3, admitted=$4, partial=$5, rule_errors=$6, warnings=$7
			WHERE id=$1
		`, scanID, sum.Evaluated, sum.Drafts, sum.Admitted, sum.Partial, ruleErrs, warn)
		return err
	})
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string, sum ports.ScanSummary) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ruleErrs, warn, err := encodeSummary(sum)
	if err != nil {
		return err
	}
	return db.inTx(ctx, func(tx pgx.Tx) error {
		scanID, err := finishJob(ctx, tx, jobID, "failed")
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE scans SET status='failed', finished_at=now(), fail_reason=$2,
			       evaluated=$3, drafts=$4, admitted=$5, partial=$6, rule_errors=$7, warnings=$8
			WHERE id=$1
		`, scanID, reason, sum.Evaluated, sum.Drafts, sum.Admitted, sum.Partial, ruleErrs, warn)
		return err
	})
}

func finishJob(ctx context.Context, tx pgx.Tx, jobID, status string) (string, error) {
	var scanID string
	err := tx.QueryRow(ctx, `
		UPDATE scan_jobs SET status=$2, finished_at=now() WHERE id=$1 RETURNING scan_id
	`, jobID, status).Scan(&scanID)
	if err != nil {
		return "", notFound(err, "job", jobID)
	}
	return scanID, nil
}
