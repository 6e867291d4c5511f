package products

import (
	"time"

	"lead-manager-backend/internal/parser"
)

const (
	CategoryPos      = "pos"
	CategoryTec      = "tec"
	CategoryVocation = "profissionalizante"

	ModeWhitelist = "whitelist"
	ModeBlacklist = "blacklist"
)

var validCategories = map[string]struct{}{
	CategoryPos:      {},
	CategoryTec:      {},
	CategoryVocation: {},
}

func IsValidCategory(value string) bool {
	_, ok := validCategories[value]
	return ok
}

// AttributionFilter gates leads on the "enrolled by" column. Whitelist mode
// passes a lead only when the field contains one of the allowed tokens;
// blacklist mode rejects when it contains any of them. Matching is
// case-insensitive substring matching, the source data has inconsistent
// casing and trailing qualifiers.
type AttributionFilter struct {
	Allowed []string `bson:"allowed" json:"allowed"`
	Mode    string   `bson:"mode" json:"mode"`
}

// PaymentFilter rejects leads whose payment-status column contains any of the
// configured tokens.
type PaymentFilter struct {
	Reject []string `bson:"reject" json:"reject"`
}

func DefaultAttributionFilter() AttributionFilter {
	return AttributionFilter{
		Allowed: []string{"6111 DIGITAL"},
		Mode:    ModeWhitelist,
	}
}

func DefaultPaymentFilter() PaymentFilter {
	return PaymentFilter{Reject: []string{"PAGO"}}
}

// Normalized fills in the defaults for unconfigured filters.
func (f AttributionFilter) Normalized() AttributionFilter {
	out := f
	if len(out.Allowed) == 0 {
		out.Allowed = DefaultAttributionFilter().Allowed
	}
	if out.Mode != ModeWhitelist && out.Mode != ModeBlacklist {
		out.Mode = ModeWhitelist
	}
	return out
}

func (f PaymentFilter) Normalized() PaymentFilter {
	out := f
	if len(out.Reject) == 0 {
		out.Reject = DefaultPaymentFilter().Reject
	}
	return out
}

// Product owns the filter rules, column mapping and agent pool the pipeline
// applies to every batch uploaded under it.
type Product struct {
	ID              string            `bson:"_id,omitempty" json:"id"`
	Name            string            `bson:"name" json:"name"`
	Category        string            `bson:"category" json:"category"`
	Description     string            `bson:"description,omitempty" json:"description,omitempty"`
	Active          bool              `bson:"active" json:"active"`
	Attribution     AttributionFilter `bson:"attribution_filter" json:"attribution_filter"`
	Payment         PaymentFilter     `bson:"payment_filter" json:"payment_filter"`
	Columns         parser.ColumnMap  `bson:"column_map" json:"column_map"`
	AgentIDs        []string          `bson:"agent_ids" json:"agent_ids"`
	CRMCompanyTitle string            `bson:"crm_company_title" json:"crm_company_title"`
	CreatedAt       time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Name            string             `json:"name" validate:"required,min=2,max=100"`
	Category        string             `json:"category" validate:"required,oneof=pos tec profissionalizante"`
	Description     string             `json:"description" validate:"max=500"`
	Active          *bool              `json:"active"`
	Attribution     *AttributionFilter `json:"attribution_filter"`
	Payment         *PaymentFilter     `json:"payment_filter"`
	Columns         *parser.ColumnMap  `json:"column_map"`
	AgentIDs        []string           `json:"agent_ids"`
	CRMCompanyTitle string             `json:"crm_company_title" validate:"max=100"`
}

type UpdateRequest struct {
	Name            *string            `json:"name" validate:"omitempty,min=2,max=100"`
	Category        *string            `json:"category" validate:"omitempty,oneof=pos tec profissionalizante"`
	Description     *string            `json:"description" validate:"omitempty,max=500"`
	Active          *bool              `json:"active"`
	Attribution     *AttributionFilter `json:"attribution_filter"`
	Payment         *PaymentFilter     `json:"payment_filter"`
	Columns         *parser.ColumnMap  `json:"column_map"`
	AgentIDs        []string           `json:"agent_ids"`
	CRMCompanyTitle *string            `json:"crm_company_title" validate:"omitempty,max=100"`
}
