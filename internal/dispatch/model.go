package dispatch

import "time"

const (
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
)

// Run records one execution of the send operation over a batch. It is
// created with zero counters before the first CRM call and finalized once
// the whole iteration is done; completed runs are never rewritten.
type Run struct {
	ID           string     `bson:"_id" json:"id"`
	BatchID      string     `bson:"batch_id" json:"batch_id"`
	ProductID    string     `bson:"product_id" json:"product_id"`
	TotalLeads   int        `bson:"total_leads" json:"total_leads"`
	SuccessCount int        `bson:"success_count" json:"success_count"`
	ErrorCount   int        `bson:"error_count" json:"error_count"`
	Status       string     `bson:"status" json:"status"`
	StartedAt    time.Time  `bson:"started_at" json:"started_at"`
	FinishedAt   *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

type Result struct {
	RunID      string   `json:"dispatch_id"`
	BatchID    string   `json:"batch_id"`
	Total      int      `json:"total"`
	Success    int      `json:"sent"`
	Errors     int      `json:"errors"`
	AgentsUsed []string `json:"agents_used"`
}
