package parser

// ColumnMap tells the mapper which positional column holds each semantic
// field. Header text in the exports is unreliable, so extraction is strictly
// index-based and every index is bounds-checked against the row length.
type ColumnMap struct {
	Candidate  int `bson:"candidate" json:"candidate" validate:"min=0"`
	Name       int `bson:"name" json:"name" validate:"min=0"`
	CourseCode int `bson:"course_code" json:"course_code" validate:"min=0"`
	Site       int `bson:"site" json:"site" validate:"min=0"`
	Payment    int `bson:"payment" json:"payment" validate:"min=0"`
	Phone      int `bson:"phone" json:"phone" validate:"min=0"`
	Document   int `bson:"document" json:"document" validate:"min=0"`
	EnrolledBy int `bson:"enrolled_by" json:"enrolled_by" validate:"min=0"`
	CourseName int `bson:"course_name" json:"course_name" validate:"min=0"`
}

// DefaultColumnMap matches the column layout of the portal's standard export.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		Candidate:  0,
		Name:       3,
		CourseCode: 4,
		Site:       5,
		Payment:    12,
		Phone:      14,
		Document:   21,
		EnrolledBy: 31,
		CourseName: 36,
	}
}

// ExtraField is one originally parsed column, kept verbatim for auditing.
// A slice preserves the column order a map would lose.
type ExtraField struct {
	Key   string `bson:"k" json:"key"`
	Value string `bson:"v" json:"value"`
}

type LeadFields struct {
	CandidateID   string       `json:"candidate_id"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone"`
	Document      string       `json:"document"`
	CourseCode    string       `json:"course_code"`
	CourseName    string       `json:"course_name"`
	Site          string       `json:"site"`
	EnrolledBy    string       `json:"enrolled_by"`
	PaymentStatus string       `json:"payment_status"`
	Extras        []ExtraField `json:"extras,omitempty"`
}

// ExtractLead maps a row's positional values to lead fields. Indices beyond
// the row's length yield empty strings; column counts vary across exports.
func ExtractLead(row Row, headers []string, cm ColumnMap) LeadFields {
	cell := func(idx int) string {
		if idx >= 0 && idx < len(row.Cells) {
			return row.Cells[idx]
		}
		return ""
	}

	extras := make([]ExtraField, 0, len(headers))
	for i, h := range headers {
		if i >= len(row.Cells) {
			break
		}
		extras = append(extras, ExtraField{Key: h, Value: row.Cells[i]})
	}

	return LeadFields{
		CandidateID:   cell(cm.Candidate),
		Name:          cell(cm.Name),
		Phone:         NormalizePhone(cell(cm.Phone)),
		Document:      cell(cm.Document),
		CourseCode:    cell(cm.CourseCode),
		CourseName:    cell(cm.CourseName),
		Site:          cell(cm.Site),
		EnrolledBy:    cell(cm.EnrolledBy),
		PaymentStatus: cell(cm.Payment),
		Extras:        extras,
	}
}
