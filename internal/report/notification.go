package report

import "time"

// EventRunCompleted names the notification sent after a run's report is built.
const EventRunCompleted = "run.completed"

// Notification is the compact message published when a run completes.
type Notification struct {
	RunID      string    `json:"run_id"`
	Week       string    `json:"fecha_semana"`
	ExecutedAt time.Time `json:"fecha_ejecucion"`
	Stats      Stats     `json:"estadisticas"`
	Failed     []string  `json:"capturas_fallidas,omitempty"`
	ReportURIs []string  `json:"report_uris,omitempty"`
}

// NewNotification summarizes rep. uris are the locations the report was
// written to.
func NewNotification(rep Report, uris []string) Notification {
	n := Notification{
		RunID:      rep.RunID,
		Week:       rep.Week,
		ExecutedAt: rep.ExecutedAt,
		Stats:      rep.Stats,
		ReportURIs: uris,
	}
	for _, f := range rep.Failures {
		n.Failed = append(n.Failed, f.Filename)
	}
	return n
}
