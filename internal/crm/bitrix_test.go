package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateLeadPayloadAndResult(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm.lead.add.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result": 4821}`))
	}))
	defer srv.Close()

	client := NewBitrixClient(srv.URL, time.Second)
	id, err := client.CreateLead(context.Background(), LeadRequest{
		Name:         "Maria Silva",
		Phone:        "44988887777",
		AgentCRMID:   17,
		CompanyTitle: "Unicesumar",
		Document:     "12345678900",
		Course:       "Gestão Comercial",
		Site:         "MARINGA",
		CandidateID:  "100",
		SourceLabel:  "Pós-graduação",
	})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if id != "4821" {
		t.Fatalf("lead id = %q, want 4821", id)
	}

	fields, ok := captured["fields"].(map[string]interface{})
	if !ok {
		t.Fatalf("request missing fields object: %v", captured)
	}
	if fields["TITLE"] != "Maria Silva" || fields["NAME"] != "Maria Silva" {
		t.Fatalf("name fields = %v / %v", fields["TITLE"], fields["NAME"])
	}
	if fields["ASSIGNED_BY_ID"] != float64(17) {
		t.Fatalf("assigned by = %v", fields["ASSIGNED_BY_ID"])
	}
	if fields["SOURCE_ID"] != "SELF" {
		t.Fatalf("source id = %v", fields["SOURCE_ID"])
	}

	phones, ok := fields["PHONE"].([]interface{})
	if !ok || len(phones) != 1 {
		t.Fatalf("phone field = %v", fields["PHONE"])
	}
	phone := phones[0].(map[string]interface{})
	if phone["VALUE"] != "44988887777" || phone["VALUE_TYPE"] != "WORK" {
		t.Fatalf("phone entry = %v", phone)
	}

	if fields["UF_CRM_1750199925"] != "12345678900" {
		t.Fatalf("document field = %v", fields["UF_CRM_1750199925"])
	}
	if fields["UF_CRM_1750200103"] != "100" {
		t.Fatalf("candidate field = %v", fields["UF_CRM_1750200103"])
	}
}

func TestCreateLeadBitrixError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "QUERY_LIMIT_EXCEEDED", "error_description": "Too many requests"}`))
	}))
	defer srv.Close()

	client := NewBitrixClient(srv.URL, time.Second)
	_, err := client.CreateLead(context.Background(), LeadRequest{Name: "X", Phone: "11999999999"})
	if err == nil {
		t.Fatal("expected error from bitrix error body")
	}
	if got := err.Error(); got != "crm rejected lead: Too many requests" {
		t.Fatalf("error = %q", got)
	}
}

func TestCreateLeadStringResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": "905"}`))
	}))
	defer srv.Close()

	client := NewBitrixClient(srv.URL, time.Second)
	id, err := client.CreateLead(context.Background(), LeadRequest{Name: "X", Phone: "11999999999"})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if id != "905" {
		t.Fatalf("lead id = %q, want 905", id)
	}
}

func TestNewBitrixClientEmptyURL(t *testing.T) {
	if client := NewBitrixClient("  ", time.Second); client != nil {
		t.Fatal("empty webhook url must yield a nil client")
	}
}
