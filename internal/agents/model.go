package agents

import "time"

// Agent is a sales consultant who can receive assigned leads. CRMID is the
// consultant's user id on the CRM side; assignment sends leads to that id.
type Agent struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CRMID     int       `bson:"crm_id" json:"crm_id"`
	StartHour int       `bson:"start_hour" json:"start_hour"`
	EndHour   int       `bson:"end_hour" json:"end_hour"`
	Active    bool      `bson:"active" json:"active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// WorksAt reports whether the agent's working window contains the given hour.
// The window is half-open: [StartHour, EndHour).
func (a Agent) WorksAt(hour int) bool {
	return a.StartHour <= hour && hour < a.EndHour
}

type CreateRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	CRMID     int    `json:"crm_id" validate:"required,gt=0"`
	StartHour int    `json:"start_hour" validate:"hour"`
	EndHour   int    `json:"end_hour" validate:"hour"`
	Active    *bool  `json:"active"`
}

type UpdateRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=2,max=100"`
	CRMID     *int    `json:"crm_id" validate:"omitempty,gt=0"`
	StartHour *int    `json:"start_hour" validate:"omitempty,hour"`
	EndHour   *int    `json:"end_hour" validate:"omitempty,hour"`
	Active    *bool   `json:"active"`
}
