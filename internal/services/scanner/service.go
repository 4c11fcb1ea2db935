package scanner

import (
	"context"
	"fmt"

	"esgwatch/internal/ports"
)

// Triggers recorded on a scan run.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Service queues compliance scans and reports their state. The work itself is
// done by scanrunner workers.
type Service struct {
	scans ports.JobRepository
}

func New(scans ports.JobRepository) *Service {
	return &Service{scans: scans}
}

func (s *Service) Enqueue(ctx context.Context, trigger string) (string, error) {
	if trigger == "" {
		trigger = TriggerAPI
	}
	scanID, err := s.scans.EnqueueScan(ctx, trigger)
	if err != nil {
		return "", fmt.Errorf("enqueue scan: %w", err)
	}
	return scanID, nil
}

func (s *Service) Status(ctx context.Context, scanID string) (ports.ScanRun, error) {
	return s.scans.GetScan(ctx, scanID)
}
