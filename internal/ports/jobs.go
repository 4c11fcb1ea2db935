package ports

import (
	"context"
	"time"

	"esgwatch/internal/domain"
)

type ScanJob struct {
	ID     string
	ScanID string
}

// ScanRun is the stored state of one compliance scan.
type ScanRun struct {
	ID         string
	Status     string // queued|running|completed|failed
	Trigger    string // api|schedule
	QueuedAt   time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Evaluated  int
	Drafts     int
	Admitted   int
	Partial    bool
	RuleErrors []domain.RuleError
	Warnings   []string
	FailReason *string
}

// ScanSummary is what a finished scan records on its run.
type ScanSummary struct {
	Evaluated  int
	Drafts     int
	Admitted   int
	Partial    bool
	RuleErrors []domain.RuleError
	Warnings   []string
}

// JobRepository supports claiming and updating scan jobs.
type JobRepository interface {
	EnqueueScan(ctx context.Context, trigger string) (scanID string, err error)
	GetScan(ctx context.Context, scanID string) (ScanRun, error)
	ClaimNext(ctx context.Context) (job ScanJob, found bool, err error)
	StartJobForScan(ctx context.Context, scanID string) (jobID string, err error)
	MarkCompleted(ctx context.Context, jobID string, summary ScanSummary) error
	// MarkFailed records reason together with whatever the scan got through
	// before it failed.
	MarkFailed(ctx context.Context, jobID string, reason string, summary ScanSummary) error
}
