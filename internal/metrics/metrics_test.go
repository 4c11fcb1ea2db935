package metrics

import (
	"testing"
	"time"
)

func TestInitMetrics(t *testing.T) {
	// Should not panic when called repeatedly
	InitMetrics()
	InitMetrics()
}

func TestRecordFunctions(t *testing.T) {
	InitMetrics()

	RecordScan("completed", 250*time.Millisecond, 0)
	RecordScan("partial", 2*time.Second, 3)
	RecordScan("failed", 0, 0)

	for _, result := range []string{"created", "existing"} {
		t.Run(result, func(t *testing.T) {
			RecordAdmission(result, "high")
		})
	}

	RecordTransition("resolve", "ok")
	RecordTransition("resolve", "conflict")
	RecordEscalationNotification("delivered")
	RecordClassification("critical")
}
