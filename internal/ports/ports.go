package ports

import "context"

// EventPublisher broadcasts alert lifecycle events.
type EventPublisher interface {
	Publish(subject string, payload any) error
}

// EscalationNotifier tells the escalation target about an escalated alert.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, n Escalation) error
}

type Escalation struct {
	AlertID    string `json:"alertId"`
	SupplierID string `json:"supplierId"`
	Title      string `json:"title"`
	Severity   string `json:"severity"`
	Category   string `json:"category"`
	To         string `json:"escalatedTo"`
	Reason     string `json:"reason"`
	DueDate    string `json:"dueDate"`
}

// NopPublisher drops events; used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }
