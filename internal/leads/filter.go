package leads

import (
	"fmt"
	"strings"

	"lead-manager-backend/internal/products"
)

// Rules is the filter configuration applied to one process run, resolved
// from the product with defaults filled in.
type Rules struct {
	Attribution products.AttributionFilter `json:"attribution_filter"`
	Payment     products.PaymentFilter     `json:"payment_filter"`
}

func NewRules(p products.Product) Rules {
	return Rules{
		Attribution: p.Attribution.Normalized(),
		Payment:     p.Payment.Normalized(),
	}
}

type Outcome struct {
	Status Status
	Reason string
}

// Classify runs the dedup/filter state machine for a single pending lead.
// Stages are ordered: history dedup wins over the payment filter, which wins
// over the attribution filter. All matching is case-insensitive substring
// matching.
func Classify(lead Lead, rules Rules, alreadySent bool) Outcome {
	if alreadySent {
		return Outcome{Status: StatusDuplicate, Reason: "already sent previously"}
	}

	payment := strings.ToUpper(lead.PaymentStatus)
	for _, token := range rules.Payment.Reject {
		if token == "" {
			continue
		}
		if strings.Contains(payment, strings.ToUpper(token)) {
			return Outcome{
				Status: StatusFiltered,
				Reason: fmt.Sprintf("payment status rejected: %s", payment),
			}
		}
	}

	attribution := strings.ToUpper(lead.EnrolledBy)
	matched := false
	for _, token := range rules.Attribution.Allowed {
		if token == "" {
			continue
		}
		if strings.Contains(attribution, strings.ToUpper(token)) {
			matched = true
			break
		}
	}

	switch rules.Attribution.Mode {
	case products.ModeBlacklist:
		if matched {
			return Outcome{
				Status: StatusFiltered,
				Reason: fmt.Sprintf("attribution blocked: %s", lead.EnrolledBy),
			}
		}
	default:
		if !matched {
			return Outcome{
				Status: StatusFiltered,
				Reason: fmt.Sprintf("attribution not allowed: %s", lead.EnrolledBy),
			}
		}
	}

	return Outcome{Status: StatusProcessed}
}
