package scanrunner

import (
	"context"
	"log/slog"
	"time"

	"esgwatch/internal/ports"
	"esgwatch/internal/services/compliance"
	"esgwatch/internal/services/scanner"
)

// ScanProcessor performs the work for a claimed scan. On failure the returned
// summary holds whatever the scan completed before failing.
type ScanProcessor interface {
	Process(ctx context.Context, scanID string) (ports.ScanSummary, error)
}

// Scanner is the compliance service as seen by the processor.
type Scanner interface {
	RunScan(ctx context.Context) (compliance.Report, error)
}

// ComplianceProcessor runs one full compliance scan per job.
type ComplianceProcessor struct {
	Scanner Scanner
	Logger  *slog.Logger
}

func (p ComplianceProcessor) Process(ctx context.Context, scanID string) (ports.ScanSummary, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("scan_id", scanID))
	logger.Info("compliance scan started")

	report, err := p.Scanner.RunScan(ctx)
	summary := report.Summary()
	if err != nil {
		logger.Error("compliance scan failed",
			slog.Int("evaluated", summary.Evaluated),
			slog.Int("admitted", summary.Admitted),
			slog.String("error", err.Error()))
		return summary, err
	}
	logger.Info("compliance scan recorded",
		slog.Int("evaluated", summary.Evaluated),
		slog.Int("admitted", summary.Admitted),
		slog.Bool("partial", summary.Partial))
	return summary, nil
}

// Run starts worker goroutines that claim jobs and process them.
func Run(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, concurrency int, pollInterval time.Duration, logger *slog.Logger) {
	if concurrency < 1 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	jobsCh := make(chan ports.ScanJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						logger.Error("scan job claim failed", slog.String("error", err.Error()))
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				finish(ctx, repo, processor, job, logger.With(slog.Int("worker", idx)))
			}
		}(i)
	}
}

func finish(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, job ports.ScanJob, logger *slog.Logger) {
	summary, err := processor.Process(ctx, job.ScanID)
	if err != nil {
		if merr := repo.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error(), summary); merr != nil {
			logger.Error("mark scan failed", slog.String("job_id", job.ID), slog.String("error", merr.Error()))
		}
		logger.Error("scan job failed",
			slog.String("job_id", job.ID),
			slog.String("scan_id", job.ScanID),
			slog.String("error", err.Error()))
		return
	}
	if err := repo.MarkCompleted(context.WithoutCancel(ctx), job.ID, summary); err != nil {
		logger.Error("mark scan completed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
}

// ProcessInline starts and processes a specific queued scan synchronously
// using the same processor as the background workers.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, scanID string) error {
	jobID, err := repo.StartJobForScan(ctx, scanID)
	if err != nil {
		return err
	}
	summary, err := processor.Process(ctx, scanID)
	if err != nil {
		_ = repo.MarkFailed(context.WithoutCancel(ctx), jobID, err.Error(), summary)
		return err
	}
	return repo.MarkCompleted(context.WithoutCancel(ctx), jobID, summary)
}

// Schedule enqueues a scan every interval until ctx ends.
func Schedule(ctx context.Context, repo ports.JobRepository, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				scanID, err := repo.EnqueueScan(ctx, scanner.TriggerSchedule)
				if err != nil {
					logger.Error("scheduled scan enqueue failed", slog.String("error", err.Error()))
					continue
				}
				logger.Info("scheduled scan queued", slog.String("scan_id", scanID))
			}
		}
	}()
}
