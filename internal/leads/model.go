package leads

import (
	"time"

	"lead-manager-backend/internal/parser"
)

// Status is the lead lifecycle state. Transitions only ever move forward:
// pending leads are classified into processed, duplicate or filtered, and
// only processed leads move on to sent or error.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusDuplicate Status = "duplicate"
	StatusFiltered  Status = "filtered"
	StatusSent      Status = "sent"
	StatusError     Status = "error"
)

var forwardTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusProcessed: {},
		StatusDuplicate: {},
		StatusFiltered:  {},
	},
	StatusProcessed: {
		StatusSent:  {},
		StatusError: {},
	},
}

func (s Status) CanAdvanceTo(next Status) bool {
	targets, ok := forwardTransitions[s]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

func IsValidStatus(value string) bool {
	switch Status(value) {
	case StatusPending, StatusProcessed, StatusDuplicate, StatusFiltered, StatusSent, StatusError:
		return true
	}
	return false
}

// Lead is one candidate record extracted from an uploaded export file.
// Once sent, the identifying and CRM fields are never rewritten; every
// status change is a conditional update on the expected prior status.
type Lead struct {
	ID            string              `bson:"_id,omitempty" json:"id"`
	BatchID       string              `bson:"batch_id" json:"batch_id"`
	ProductID     string              `bson:"product_id" json:"product_id"`
	CandidateID   string              `bson:"candidate_id" json:"candidate_id"`
	Name          string              `bson:"name" json:"name"`
	Phone         string              `bson:"phone" json:"phone"`
	Document      string              `bson:"document,omitempty" json:"document,omitempty"`
	CourseCode    string              `bson:"course_code,omitempty" json:"course_code,omitempty"`
	CourseName    string              `bson:"course_name,omitempty" json:"course_name,omitempty"`
	Site          string              `bson:"site,omitempty" json:"site,omitempty"`
	EnrolledBy    string              `bson:"enrolled_by,omitempty" json:"enrolled_by,omitempty"`
	PaymentStatus string              `bson:"payment_status,omitempty" json:"payment_status,omitempty"`
	Extras        []parser.ExtraField `bson:"extras,omitempty" json:"extras,omitempty"`
	Status        Status              `bson:"status" json:"status"`
	FilterReason  string              `bson:"filter_reason,omitempty" json:"filter_reason,omitempty"`
	CRMLeadID     string              `bson:"crm_lead_id,omitempty" json:"crm_lead_id,omitempty"`
	AgentID       string              `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	SentAt        *time.Time          `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
}

const (
	BatchAwaitingProcessing = "awaiting_processing"
	BatchProcessed          = "processed"
)

// Batch records a single file upload and its processing counters. After a
// process run, valid+duplicate+filtered equals the number of leads that were
// pending when the run started; the counters are recomputed every run.
type Batch struct {
	ID             string    `bson:"_id" json:"id"`
	ProductID      string    `bson:"product_id" json:"product_id"`
	Filename       string    `bson:"filename" json:"filename"`
	TotalRows      int       `bson:"total_rows" json:"total_rows"`
	ValidCount     int       `bson:"valid_count" json:"valid_count"`
	DuplicateCount int       `bson:"duplicate_count" json:"duplicate_count"`
	FilteredCount  int       `bson:"filtered_count" json:"filtered_count"`
	Status         string    `bson:"status" json:"status"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	CreatedBy      string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
}

type UploadResult struct {
	BatchID     string              `json:"batch_id"`
	Filename    string              `json:"file"`
	RecordCount int                 `json:"record_count"`
	Preview     []parser.LeadFields `json:"preview"`
}

type ProcessResult struct {
	BatchID    string `json:"batch_id"`
	Total      int    `json:"total"`
	Valid      int    `json:"valid"`
	Duplicates int    `json:"duplicates"`
	Filtered   int    `json:"filtered"`
	Applied    Rules  `json:"applied_filters"`
}

type Summary struct {
	BatchID     string `json:"batch_id"`
	ProductName string `json:"product_name"`
	Total       int64  `json:"total"`
	Pending     int64  `json:"pending"`
	Processed   int64  `json:"processed"`
	Sent        int64  `json:"sent"`
	Duplicates  int64  `json:"duplicates"`
	Filtered    int64  `json:"filtered"`
	Errors      int64  `json:"errors"`
}
