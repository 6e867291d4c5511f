package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead-manager-backend/internal/history"
	"lead-manager-backend/internal/parser"
	"lead-manager-backend/internal/products"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type memLeadRepo struct {
	leads map[string]Lead
	order []string
}

func newMemLeadRepo() *memLeadRepo {
	return &memLeadRepo{leads: make(map[string]Lead)}
}

func (m *memLeadRepo) Insert(ctx context.Context, lead Lead) error {
	m.leads[lead.ID] = lead
	m.order = append(m.order, lead.ID)
	return nil
}

func (m *memLeadRepo) FindByBatchAndStatus(ctx context.Context, batchID string, status Status) ([]Lead, error) {
	out := make([]Lead, 0)
	for _, id := range m.order {
		lead := m.leads[id]
		if lead.BatchID == batchID && lead.Status == status {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (m *memLeadRepo) ListByBatch(ctx context.Context, batchID, status string, limit, offset int64) ([]Lead, int64, error) {
	out := make([]Lead, 0)
	for _, id := range m.order {
		lead := m.leads[id]
		if lead.BatchID == batchID && (status == "" || string(lead.Status) == status) {
			out = append(out, lead)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memLeadRepo) MarkClassified(ctx context.Context, id string, status Status, reason string) error {
	lead, ok := m.leads[id]
	if !ok || lead.Status != StatusPending {
		return nil
	}
	lead.Status = status
	lead.FilterReason = reason
	m.leads[id] = lead
	return nil
}

func (m *memLeadRepo) MarkSent(ctx context.Context, id, crmLeadID, agentID string, sentAt time.Time) error {
	lead, ok := m.leads[id]
	if !ok || lead.Status != StatusProcessed {
		return nil
	}
	lead.Status = StatusSent
	lead.CRMLeadID = crmLeadID
	lead.AgentID = agentID
	lead.SentAt = &sentAt
	m.leads[id] = lead
	return nil
}

func (m *memLeadRepo) MarkSendError(ctx context.Context, id, reason string) error {
	lead, ok := m.leads[id]
	if !ok || lead.Status != StatusProcessed {
		return nil
	}
	lead.Status = StatusError
	lead.FilterReason = reason
	m.leads[id] = lead
	return nil
}

func (m *memLeadRepo) CountByStatus(ctx context.Context, batchID string) (map[Status]int64, error) {
	counts := make(map[Status]int64)
	for _, lead := range m.leads {
		if lead.BatchID == batchID {
			counts[lead.Status]++
		}
	}
	return counts, nil
}

type memBatchRepo struct {
	batches map[string]Batch
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: make(map[string]Batch)}
}

func (m *memBatchRepo) Create(ctx context.Context, batch Batch) error {
	m.batches[batch.ID] = batch
	return nil
}

func (m *memBatchRepo) GetByID(ctx context.Context, id string) (Batch, error) {
	batch, ok := m.batches[id]
	if !ok {
		return Batch{}, mongo.ErrNoDocuments
	}
	return batch, nil
}

func (m *memBatchRepo) SetProcessed(ctx context.Context, id string, valid, duplicates, filtered int) error {
	batch, ok := m.batches[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	batch.Status = BatchProcessed
	batch.ValidCount = valid
	batch.DuplicateCount = duplicates
	batch.FilteredCount = filtered
	m.batches[id] = batch
	return nil
}

type stubProductRepo struct {
	product products.Product
	missing bool
}

func (s *stubProductRepo) Create(ctx context.Context, product products.Product) error { return nil }

func (s *stubProductRepo) GetByID(ctx context.Context, id string) (products.Product, error) {
	if s.missing {
		return products.Product{}, mongo.ErrNoDocuments
	}
	return s.product, nil
}

func (s *stubProductRepo) List(ctx context.Context, onlyActive bool) ([]products.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) Update(ctx context.Context, id string, set bson.M) (products.Product, error) {
	return products.Product{}, nil
}

func (s *stubProductRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }

type stubHistoryRepo struct {
	sent map[string]bool
}

func (s *stubHistoryRepo) Exists(ctx context.Context, candidateID string) (bool, error) {
	return s.sent[candidateID], nil
}

func (s *stubHistoryRepo) Insert(ctx context.Context, entry history.Entry) error { return nil }

func (s *stubHistoryRepo) List(ctx context.Context, limit, offset int64) ([]history.Entry, int64, error) {
	return nil, 0, nil
}

type memCache struct {
	store   map[string][]byte
	deletes []string
}

func newMemCache() *memCache {
	return &memCache{store: make(map[string][]byte)}
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok := m.store[key]
	return value, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.store[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	delete(m.store, key)
	m.deletes = append(m.deletes, key)
	return nil
}

func testProduct() products.Product {
	return products.Product{
		ID:   "prod-1",
		Name: "Pos 6111",
		Columns: parser.ColumnMap{
			Candidate:  0,
			Name:       1,
			Phone:      2,
			EnrolledBy: 3,
			Payment:    4,
		},
	}
}

const exportFile = `<html><body><table>
<tr><th>Candidato</th><th>Nome</th><th>Celular</th><th>Inscrito por</th><th>Mensalidade</th></tr>
<tr><td>100</td><td>Maria Silva</td><td>(44) 98888-7777</td><td>6111 DIGITAL</td><td>PENDENTE</td></tr>
<tr><td>200</td><td>Joao Souza</td><td>(11) 97777-6666</td><td>6111 DIGITAL</td><td>PAGO</td></tr>
<tr><td>300</td><td>Ana Lima</td><td>(21) 96666-5555</td><td>6111 DIGITAL</td><td>PENDENTE</td></tr>
<tr><td>400</td><td></td><td>(31) 95555-4444</td><td>6111 DIGITAL</td><td>PENDENTE</td></tr>
</table></body></html>`

func newUploadedBatch(t *testing.T, svc *Service) string {
	t.Helper()
	result, err := svc.Upload(context.Background(), "prod-1", "export.xls", []byte(exportFile), "admin")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return result.BatchID
}

func TestUploadStoresPendingLeads(t *testing.T) {
	repo := newMemLeadRepo()
	batches := newMemBatchRepo()
	svc := NewService(repo, batches, &stubProductRepo{product: testProduct()}, &stubHistoryRepo{}, newMemCache(), time.Minute, time.UTC)

	result, err := svc.Upload(context.Background(), "prod-1", "export.xls", []byte(exportFile), "admin")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Row 400 has no name and is skipped.
	if result.RecordCount != 3 {
		t.Fatalf("record count = %d, want 3", result.RecordCount)
	}
	if len(result.Preview) != 3 {
		t.Fatalf("preview = %d entries, want 3", len(result.Preview))
	}
	if result.Preview[0].Phone != "44988887777" {
		t.Fatalf("preview phone = %q, want normalized digits", result.Preview[0].Phone)
	}

	batch, err := batches.GetByID(context.Background(), result.BatchID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if batch.Status != BatchAwaitingProcessing {
		t.Fatalf("batch status = %s, want %s", batch.Status, BatchAwaitingProcessing)
	}
	if batch.TotalRows != 4 {
		t.Fatalf("total rows = %d, want 4", batch.TotalRows)
	}

	pending, _ := repo.FindByBatchAndStatus(context.Background(), result.BatchID, StatusPending)
	if len(pending) != 3 {
		t.Fatalf("pending leads = %d, want 3", len(pending))
	}
}

func TestUploadMalformedFile(t *testing.T) {
	svc := NewService(newMemLeadRepo(), newMemBatchRepo(), &stubProductRepo{product: testProduct()}, &stubHistoryRepo{}, newMemCache(), time.Minute, time.UTC)

	_, err := svc.Upload(context.Background(), "prod-1", "notes.txt", []byte("<html><body><p>hi</p></body></html>"), "admin")
	if !errors.Is(err, ErrMalformedFile) {
		t.Fatalf("Upload error = %v, want ErrMalformedFile", err)
	}
}

func TestUploadProductNotFound(t *testing.T) {
	svc := NewService(newMemLeadRepo(), newMemBatchRepo(), &stubProductRepo{missing: true}, &stubHistoryRepo{}, newMemCache(), time.Minute, time.UTC)

	_, err := svc.Upload(context.Background(), "ghost", "export.xls", []byte(exportFile), "admin")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("Upload error = %v, want ErrProductNotFound", err)
	}
}

func TestProcessCountInvariant(t *testing.T) {
	repo := newMemLeadRepo()
	batches := newMemBatchRepo()
	cacheStore := newMemCache()
	// Candidate 300 was sent in an earlier batch.
	hist := &stubHistoryRepo{sent: map[string]bool{"300": true}}
	svc := NewService(repo, batches, &stubProductRepo{product: testProduct()}, hist, cacheStore, time.Minute, time.UTC)

	batchID := newUploadedBatch(t, svc)

	result, err := svc.Process(context.Background(), batchID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Total != 3 {
		t.Fatalf("total = %d, want 3", result.Total)
	}
	if result.Valid != 1 || result.Duplicates != 1 || result.Filtered != 1 {
		t.Fatalf("valid/dup/filtered = %d/%d/%d, want 1/1/1", result.Valid, result.Duplicates, result.Filtered)
	}
	if result.Valid+result.Duplicates+result.Filtered != result.Total {
		t.Fatalf("counters must sum to the pending total")
	}

	processed, _ := repo.FindByBatchAndStatus(context.Background(), batchID, StatusProcessed)
	if len(processed) != 1 || processed[0].CandidateID != "100" {
		t.Fatalf("processed = %v, want only candidate 100", processed)
	}

	batch, _ := batches.GetByID(context.Background(), batchID)
	if batch.Status != BatchProcessed {
		t.Fatalf("batch status = %s, want %s", batch.Status, BatchProcessed)
	}
	if batch.ValidCount != 1 || batch.DuplicateCount != 1 || batch.FilteredCount != 1 {
		t.Fatalf("persisted counters = %d/%d/%d", batch.ValidCount, batch.DuplicateCount, batch.FilteredCount)
	}

	found := false
	for _, key := range cacheStore.deletes {
		if key == SummaryCacheKey(batchID) {
			found = true
		}
	}
	if !found {
		t.Fatalf("process must invalidate the cached summary")
	}
}

func TestProcessRerunIsIdempotent(t *testing.T) {
	repo := newMemLeadRepo()
	batches := newMemBatchRepo()
	svc := NewService(repo, batches, &stubProductRepo{product: testProduct()}, &stubHistoryRepo{}, newMemCache(), time.Minute, time.UTC)

	batchID := newUploadedBatch(t, svc)

	first, err := svc.Process(context.Background(), batchID)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if first.Total != 3 {
		t.Fatalf("first total = %d, want 3", first.Total)
	}

	// Nothing is pending anymore, so a re-run classifies nothing and leaves
	// the persisted counters from the first run alone.
	second, err := svc.Process(context.Background(), batchID)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if second.Total != 0 || second.Valid != 0 || second.Duplicates != 0 || second.Filtered != 0 {
		t.Fatalf("second run = %+v, want all zero", second)
	}

	batch, _ := batches.GetByID(context.Background(), batchID)
	if batch.ValidCount != first.Valid || batch.DuplicateCount != first.Duplicates || batch.FilteredCount != first.Filtered {
		t.Fatalf("re-run must not rewrite batch counters: %+v", batch)
	}
}

func TestProcessBatchNotFound(t *testing.T) {
	svc := NewService(newMemLeadRepo(), newMemBatchRepo(), &stubProductRepo{product: testProduct()}, &stubHistoryRepo{}, newMemCache(), time.Minute, time.UTC)

	_, err := svc.Process(context.Background(), "ghost")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("Process error = %v, want ErrBatchNotFound", err)
	}
}

func TestSummaryUsesCache(t *testing.T) {
	repo := newMemLeadRepo()
	batches := newMemBatchRepo()
	cacheStore := newMemCache()
	svc := NewService(repo, batches, &stubProductRepo{product: testProduct()}, &stubHistoryRepo{}, cacheStore, time.Minute, time.UTC)

	batchID := newUploadedBatch(t, svc)

	first, err := svc.Summary(context.Background(), batchID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if first.Total != 3 || first.Pending != 3 {
		t.Fatalf("summary = %+v, want 3 pending", first)
	}
	if _, ok := cacheStore.store[SummaryCacheKey(batchID)]; !ok {
		t.Fatalf("summary must be cached after the first read")
	}

	// Mutate the repo behind the cache; the cached snapshot still answers.
	_ = repo.MarkClassified(context.Background(), repo.order[0], StatusProcessed, "")
	second, err := svc.Summary(context.Background(), batchID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if second.Pending != 3 {
		t.Fatalf("cached pending = %d, want 3", second.Pending)
	}
}
