package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead-manager-backend/internal/agents"
	"lead-manager-backend/internal/cache"
	"lead-manager-backend/internal/crm"
	"lead-manager-backend/internal/history"
	"lead-manager-backend/internal/leads"
	"lead-manager-backend/internal/products"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRunRepo struct {
	created  []Run
	finished bool
	success  int
	errs     int
}

func (f *fakeRunRepo) Create(ctx context.Context, run Run) error {
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRunRepo) Finish(ctx context.Context, id string, success, errs int, finishedAt time.Time) error {
	f.finished = true
	f.success = success
	f.errs = errs
	return nil
}

type fakeLeadRepo struct {
	processed  []leads.Lead
	sent       []string
	sendErrors map[string]string
}

func (f *fakeLeadRepo) Insert(ctx context.Context, lead leads.Lead) error { return nil }

func (f *fakeLeadRepo) FindByBatchAndStatus(ctx context.Context, batchID string, status leads.Status) ([]leads.Lead, error) {
	if status != leads.StatusProcessed {
		return nil, nil
	}
	return f.processed, nil
}

func (f *fakeLeadRepo) ListByBatch(ctx context.Context, batchID, status string, limit, offset int64) ([]leads.Lead, int64, error) {
	return nil, 0, nil
}

func (f *fakeLeadRepo) MarkClassified(ctx context.Context, id string, status leads.Status, reason string) error {
	return nil
}

func (f *fakeLeadRepo) MarkSent(ctx context.Context, id, crmLeadID, agentID string, sentAt time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeLeadRepo) MarkSendError(ctx context.Context, id, reason string) error {
	if f.sendErrors == nil {
		f.sendErrors = make(map[string]string)
	}
	f.sendErrors[id] = reason
	return nil
}

func (f *fakeLeadRepo) CountByStatus(ctx context.Context, batchID string) (map[leads.Status]int64, error) {
	return nil, nil
}

type fakeBatchRepo struct {
	batch leads.Batch
	err   error
}

func (f *fakeBatchRepo) Create(ctx context.Context, batch leads.Batch) error { return nil }

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (leads.Batch, error) {
	if f.err != nil {
		return leads.Batch{}, f.err
	}
	return f.batch, nil
}

func (f *fakeBatchRepo) SetProcessed(ctx context.Context, id string, valid, duplicates, filtered int) error {
	return nil
}

type fakeProductRepo struct {
	product products.Product
}

func (f *fakeProductRepo) Create(ctx context.Context, product products.Product) error { return nil }

func (f *fakeProductRepo) GetByID(ctx context.Context, id string) (products.Product, error) {
	return f.product, nil
}

func (f *fakeProductRepo) List(ctx context.Context, onlyActive bool) ([]products.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, id string, set bson.M) (products.Product, error) {
	return products.Product{}, nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }

type fakeAgentRepo struct {
	pool []agents.Agent
}

func (f *fakeAgentRepo) Create(ctx context.Context, agent agents.Agent) error { return nil }

func (f *fakeAgentRepo) GetByID(ctx context.Context, id string) (agents.Agent, error) {
	return agents.Agent{}, mongo.ErrNoDocuments
}

func (f *fakeAgentRepo) GetManyByID(ctx context.Context, ids []string) ([]agents.Agent, error) {
	return f.pool, nil
}

func (f *fakeAgentRepo) List(ctx context.Context, onlyActive bool) ([]agents.Agent, error) {
	return f.pool, nil
}

func (f *fakeAgentRepo) Update(ctx context.Context, id string, set bson.M) (agents.Agent, error) {
	return agents.Agent{}, nil
}

func (f *fakeAgentRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }

func (f *fakeAgentRepo) CRMIDInUse(ctx context.Context, crmID int, excludeID string) (bool, error) {
	return false, nil
}

type fakeHistoryRepo struct {
	entries   []history.Entry
	insertErr error
}

func (f *fakeHistoryRepo) Exists(ctx context.Context, candidateID string) (bool, error) {
	for _, e := range f.entries {
		if e.CandidateID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHistoryRepo) Insert(ctx context.Context, entry history.Entry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryRepo) List(ctx context.Context, limit, offset int64) ([]history.Entry, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

type fakeGateway struct {
	requests []crm.LeadRequest
	failFor  map[string]error
	nextID   int
}

func (f *fakeGateway) CreateLead(ctx context.Context, req crm.LeadRequest) (string, error) {
	f.requests = append(f.requests, req)
	if err, ok := f.failFor[req.CandidateID]; ok {
		return "", err
	}
	f.nextID++
	return "crm-" + req.CandidateID, nil
}

func alwaysOn(id, name string, crmID int) agents.Agent {
	return agents.Agent{ID: id, Name: name, CRMID: crmID, StartHour: 0, EndHour: 24, Active: true}
}

func processedLead(id, candidate string) leads.Lead {
	return leads.Lead{
		ID:          id,
		BatchID:     "batch-1",
		ProductID:   "prod-1",
		CandidateID: candidate,
		Name:        "Lead " + candidate,
		Phone:       "44988887777",
		Status:      leads.StatusProcessed,
	}
}

func newTestService(runs *fakeRunRepo, leadRepo *fakeLeadRepo, batches *fakeBatchRepo, prods *fakeProductRepo, agentRepo *fakeAgentRepo, hist *fakeHistoryRepo, gw *fakeGateway) *Service {
	return NewService(runs, leadRepo, batches, prods, agentRepo, hist, gw, cache.NewNoop(), time.UTC)
}

func TestSendPartialFailure(t *testing.T) {
	runs := &fakeRunRepo{}
	leadRepo := &fakeLeadRepo{processed: []leads.Lead{
		processedLead("l1", "100"),
		processedLead("l2", "200"),
		processedLead("l3", "300"),
	}}
	batches := &fakeBatchRepo{batch: leads.Batch{ID: "batch-1", ProductID: "prod-1"}}
	prods := &fakeProductRepo{product: products.Product{ID: "prod-1", Name: "Pos 6111", AgentIDs: []string{"a", "b"}}}
	agentRepo := &fakeAgentRepo{pool: []agents.Agent{
		alwaysOn("a", "Ana", 11),
		alwaysOn("b", "Bruno", 22),
	}}
	hist := &fakeHistoryRepo{}
	gw := &fakeGateway{failFor: map[string]error{"200": errors.New("crm rejected")}}

	svc := newTestService(runs, leadRepo, batches, prods, agentRepo, hist, gw)

	result, err := svc.Send(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Total != 3 || result.Success != 2 || result.Errors != 1 {
		t.Fatalf("result = total %d success %d errors %d, want 3/2/1", result.Total, result.Success, result.Errors)
	}

	if len(leadRepo.sent) != 2 {
		t.Fatalf("marked sent = %v, want 2 leads", leadRepo.sent)
	}
	if reason := leadRepo.sendErrors["l2"]; reason != "crm rejected" {
		t.Fatalf("send error reason = %q, want crm rejected", reason)
	}

	// Agents alternate in pool order regardless of per-lead outcome.
	wantAgents := []int{11, 22, 11}
	for i, req := range gw.requests {
		if req.AgentCRMID != wantAgents[i] {
			t.Fatalf("request %d assigned crm id %d, want %d", i, req.AgentCRMID, wantAgents[i])
		}
	}

	// Only successful sends reach the ledger.
	if len(hist.entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(hist.entries))
	}
	for _, e := range hist.entries {
		if e.CandidateID == "200" {
			t.Fatalf("failed lead 200 must not be in the ledger")
		}
	}

	if !runs.finished || runs.success != 2 || runs.errs != 1 {
		t.Fatalf("run finalized = %v success %d errors %d, want true/2/1", runs.finished, runs.success, runs.errs)
	}
	if len(runs.created) != 1 || runs.created[0].Status != RunInProgress {
		t.Fatalf("run must be created in_progress before the loop")
	}
}

func TestSendNoEligibleAgentsAbortsBeforeMutation(t *testing.T) {
	runs := &fakeRunRepo{}
	leadRepo := &fakeLeadRepo{processed: []leads.Lead{processedLead("l1", "100")}}
	batches := &fakeBatchRepo{batch: leads.Batch{ID: "batch-1", ProductID: "prod-1"}}
	prods := &fakeProductRepo{product: products.Product{ID: "prod-1", AgentIDs: []string{"a"}}}
	agentRepo := &fakeAgentRepo{pool: []agents.Agent{
		{ID: "a", Name: "Ana", CRMID: 11, StartHour: 0, EndHour: 24, Active: false},
	}}
	gw := &fakeGateway{}

	svc := newTestService(runs, leadRepo, batches, prods, agentRepo, &fakeHistoryRepo{}, gw)

	_, err := svc.Send(context.Background(), "batch-1")
	if !errors.Is(err, ErrNoEligibleAgents) {
		t.Fatalf("Send error = %v, want ErrNoEligibleAgents", err)
	}
	if len(runs.created) != 0 {
		t.Fatalf("no run may be created when no agent is eligible")
	}
	if len(gw.requests) != 0 {
		t.Fatalf("no CRM call may happen when no agent is eligible")
	}
	if len(leadRepo.sent) != 0 || len(leadRepo.sendErrors) != 0 {
		t.Fatalf("no lead may change status when no agent is eligible")
	}
}

func TestSendNoProcessedLeads(t *testing.T) {
	runs := &fakeRunRepo{}
	batches := &fakeBatchRepo{batch: leads.Batch{ID: "batch-1", ProductID: "prod-1"}}
	prods := &fakeProductRepo{product: products.Product{ID: "prod-1", AgentIDs: []string{"a"}}}
	agentRepo := &fakeAgentRepo{pool: []agents.Agent{alwaysOn("a", "Ana", 11)}}

	svc := newTestService(runs, &fakeLeadRepo{}, batches, prods, agentRepo, &fakeHistoryRepo{}, &fakeGateway{})

	_, err := svc.Send(context.Background(), "batch-1")
	if !errors.Is(err, ErrNoLeadsToSend) {
		t.Fatalf("Send error = %v, want ErrNoLeadsToSend", err)
	}
	if len(runs.created) != 0 {
		t.Fatalf("no run may be created for an empty send")
	}
}

func TestSendBatchNotFound(t *testing.T) {
	batches := &fakeBatchRepo{err: mongo.ErrNoDocuments}
	svc := newTestService(&fakeRunRepo{}, &fakeLeadRepo{}, batches, &fakeProductRepo{}, &fakeAgentRepo{}, &fakeHistoryRepo{}, &fakeGateway{})

	_, err := svc.Send(context.Background(), "missing")
	if !errors.Is(err, leads.ErrBatchNotFound) {
		t.Fatalf("Send error = %v, want leads.ErrBatchNotFound", err)
	}
}

func TestSendHistoryInsertFailureDoesNotAffectTally(t *testing.T) {
	runs := &fakeRunRepo{}
	leadRepo := &fakeLeadRepo{processed: []leads.Lead{processedLead("l1", "100")}}
	batches := &fakeBatchRepo{batch: leads.Batch{ID: "batch-1", ProductID: "prod-1"}}
	prods := &fakeProductRepo{product: products.Product{ID: "prod-1", AgentIDs: []string{"a"}}}
	agentRepo := &fakeAgentRepo{pool: []agents.Agent{alwaysOn("a", "Ana", 11)}}
	hist := &fakeHistoryRepo{insertErr: errors.New("duplicate key")}

	svc := newTestService(runs, leadRepo, batches, prods, agentRepo, hist, &fakeGateway{})

	result, err := svc.Send(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Success != 1 || result.Errors != 0 {
		t.Fatalf("result = success %d errors %d, want 1/0", result.Success, result.Errors)
	}
}
