package models

import "math"

const (
	BackfillStatusIdle      = "idle"
	BackfillStatusRunning   = "running"
	BackfillStatusCompleted = "completed"
)

// BackfillProgress is the persisted state of the historical backfill. It is
// stored as JSON in a single option row and polled by the status page.
type BackfillProgress struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Status    string  `json:"status"`
	Started   *string `json:"started"`
	Completed *string `json:"completed"`
	Errors    int     `json:"errors"`
	Percent   float64 `json:"percent"`
	RunID     string  `json:"run_id,omitempty"`
}

// NewBackfillProgress returns the idle record used when nothing is stored.
func NewBackfillProgress() *BackfillProgress {
	return &BackfillProgress{Status: BackfillStatusIdle}
}

// Recalculate refreshes Percent from Processed and Total, one decimal place.
func (p *BackfillProgress) Recalculate() {
	if p.Total > 0 {
		p.Percent = math.Round(float64(p.Processed)/float64(p.Total)*1000) / 10
	}
}

func (p *BackfillProgress) IsRunning() bool {
	return p.Status == BackfillStatusRunning
}

// StatusLabel is the human label shown on the status page.
func (p *BackfillProgress) StatusLabel() string {
	switch p.Status {
	case BackfillStatusRunning:
		return "In Progress"
	case BackfillStatusCompleted:
		return "Completed"
	default:
		return "Not Started"
	}
}
