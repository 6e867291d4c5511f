// Package crm talks to the Bitrix24 webhook API that receives the leads.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrTimeout = errors.New("crm request timed out")

// Gateway is the outbound lead-creation boundary. The dispatch orchestrator
// depends on this interface so tests can substitute the remote service.
type Gateway interface {
	CreateLead(ctx context.Context, req LeadRequest) (string, error)
}

type LeadRequest struct {
	Name         string
	Phone        string
	AgentCRMID   int
	CompanyTitle string
	Document     string
	Course       string
	Site         string
	CandidateID  string
	SourceLabel  string
	Extras       map[string]string
}

type BitrixClient struct {
	webhookURL string
	httpClient *http.Client
}

func NewBitrixClient(webhookURL string, timeout time.Duration) *BitrixClient {
	if strings.TrimSpace(webhookURL) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BitrixClient{
		webhookURL: strings.TrimRight(webhookURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateLead posts a crm.lead.add call and returns the new lead id. Bitrix
// reports failures inside a 200 response body, so the error field is checked
// before the result.
func (c *BitrixClient) CreateLead(ctx context.Context, req LeadRequest) (string, error) {
	if c == nil {
		return "", errors.New("crm client is nil")
	}

	fields := map[string]interface{}{
		"TITLE":          req.Name,
		"NAME":           req.Name,
		"PHONE":          []bitrixPhone{{Value: req.Phone, ValueType: "WORK"}},
		"COMPANY_TITLE":  req.CompanyTitle,
		"ASSIGNED_BY_ID": req.AgentCRMID,
		"SOURCE_ID":      "SELF",
	}
	if req.Document != "" {
		fields["UF_CRM_1750199925"] = req.Document
	}
	if req.Course != "" {
		fields["UF_CRM_1750199990"] = req.Course
	}
	if req.Site != "" {
		fields["UF_CRM_1750200048"] = req.Site
	}
	if req.CandidateID != "" {
		fields["UF_CRM_1750200103"] = req.CandidateID
	}
	if req.SourceLabel != "" {
		fields["UF_CRM_1750207963"] = req.SourceLabel
	}
	for k, v := range req.Extras {
		fields[k] = v
	}

	raw, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("crm marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL+"/crm.lead.add.json", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("crm create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("crm request failed: %w", err)
	}
	defer resp.Body.Close()

	var out bitrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("crm decode response: %w", err)
	}

	if out.Error != "" {
		message := out.ErrorDescription
		if message == "" {
			message = out.Error
		}
		return "", fmt.Errorf("crm rejected lead: %s", message)
	}
	if len(out.Result) == 0 {
		return "", errors.New("crm response missing lead id")
	}
	return strings.Trim(string(out.Result), `"`), nil
}

// CheckConnection probes the webhook's profile endpoint.
func (c *BitrixClient) CheckConnection(ctx context.Context) bool {
	if c == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.webhookURL+"/profile.json", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

type bitrixPhone struct {
	Value     string `json:"VALUE"`
	ValueType string `json:"VALUE_TYPE"`
}

// Result is numeric on success; RawMessage keeps the decode tolerant.
type bitrixResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}
