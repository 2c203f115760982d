package metrics

import (
	"strconv"
	"time"
)

// BackendCall records a completed backend request. A status of 0 means the
// backend never answered.
func BackendCall(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	BackendRequestsTotal.WithLabelValues(endpoint, label).Inc()
	BackendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// WizardAction records a wizard action such as "submit", "skip", or "back".
func WizardAction(step, action string) {
	WizardTransitions.WithLabelValues(step, action).Inc()
}

// ReadingSubmitted records one posted utility reading.
func ReadingSubmitted(utilityType string) {
	ReadingsSubmitted.WithLabelValues(utilityType).Inc()
}

// ImportFinished records the outcome of a bulk upload.
func ImportFinished(outcome string) {
	ImportsTotal.WithLabelValues(outcome).Inc()
}

// DraftsPurged records expired drafts removed by the sweeper.
func DraftsPurged(n int64) {
	if n > 0 {
		WizardDraftsPurged.Add(float64(n))
	}
}
