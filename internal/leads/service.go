package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead-manager-backend/internal/cache"
	"lead-manager-backend/internal/history"
	"lead-manager-backend/internal/parser"
	"lead-manager-backend/internal/products"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrBatchNotFound   = errors.New("batch not found")
	ErrProductNotFound = errors.New("product not found")
	ErrMalformedFile   = errors.New("malformed file")
)

const previewSize = 10

// SummaryCacheKey is shared with the dispatch service, which invalidates the
// cached summary after a send run.
func SummaryCacheKey(batchID string) string {
	return "batch:summary:" + batchID
}

type Service struct {
	repo     Repository
	batches  BatchRepository
	products products.Repository
	history  history.Repository
	cache    cache.Cache
	cacheTTL time.Duration
	location *time.Location
}

func NewService(
	repo Repository,
	batches BatchRepository,
	productsRepo products.Repository,
	historyRepo history.Repository,
	cacheStore cache.Cache,
	cacheTTL time.Duration,
	location *time.Location,
) *Service {
	return &Service{
		repo:     repo,
		batches:  batches,
		products: productsRepo,
		history:  historyRepo,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		location: location,
	}
}

// Upload parses the export file, maps every row through the product's column
// map and stores the surviving rows as pending leads under a fresh batch.
// Rows without a candidate id or name are unusable downstream and skipped.
func (s *Service) Upload(ctx context.Context, productID, filename string, data []byte, createdBy string) (UploadResult, error) {
	product, err := s.products.GetByID(ctx, strings.TrimSpace(productID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return UploadResult{}, ErrProductNotFound
		}
		return UploadResult{}, err
	}

	doc, err := parser.ParseExport(data)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	if len(doc.Rows) == 0 {
		return UploadResult{}, fmt.Errorf("%w: file has no usable rows", ErrMalformedFile)
	}

	now := time.Now().In(s.location)
	batch := Batch{
		ID:        uuid.NewString(),
		ProductID: product.ID,
		Filename:  filename,
		TotalRows: len(doc.Rows),
		Status:    BatchAwaitingProcessing,
		CreatedAt: now,
		CreatedBy: createdBy,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return UploadResult{}, err
	}

	inserted := 0
	preview := make([]parser.LeadFields, 0, previewSize)
	for _, row := range doc.Rows {
		fields := parser.ExtractLead(row, doc.Headers, product.Columns)
		if fields.CandidateID == "" || fields.Name == "" {
			continue
		}

		lead := Lead{
			ID:            primitive.NewObjectID().Hex(),
			BatchID:       batch.ID,
			ProductID:     product.ID,
			CandidateID:   fields.CandidateID,
			Name:          fields.Name,
			Phone:         fields.Phone,
			Document:      fields.Document,
			CourseCode:    fields.CourseCode,
			CourseName:    fields.CourseName,
			Site:          fields.Site,
			EnrolledBy:    fields.EnrolledBy,
			PaymentStatus: fields.PaymentStatus,
			Extras:        fields.Extras,
			Status:        StatusPending,
			CreatedAt:     now,
		}
		if err := s.repo.Insert(ctx, lead); err != nil {
			return UploadResult{}, err
		}
		inserted++
		if len(preview) < previewSize {
			preview = append(preview, fields)
		}
	}

	return UploadResult{
		BatchID:     batch.ID,
		Filename:    filename,
		RecordCount: inserted,
		Preview:     preview,
	}, nil
}

// Process runs the dedup/filter state machine over every pending lead of the
// batch. The history check is global: a candidate sent under any product in
// any earlier batch is a duplicate here. Counters are recomputed from this
// run alone and persisted on the batch.
func (s *Service) Process(ctx context.Context, batchID string) (ProcessResult, error) {
	batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ProcessResult{}, ErrBatchNotFound
		}
		return ProcessResult{}, err
	}

	product, err := s.products.GetByID(ctx, batch.ProductID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ProcessResult{}, ErrProductNotFound
		}
		return ProcessResult{}, err
	}

	rules := NewRules(product)

	pending, err := s.repo.FindByBatchAndStatus(ctx, batch.ID, StatusPending)
	if err != nil {
		return ProcessResult{}, err
	}

	// Nothing pending means a re-run; report zero counts and leave the
	// batch counters from the original run untouched.
	if len(pending) == 0 {
		return ProcessResult{
			BatchID: batch.ID,
			Applied: rules,
		}, nil
	}

	var valid, duplicates, filtered int
	for _, lead := range pending {
		alreadySent, err := s.history.Exists(ctx, lead.CandidateID)
		if err != nil {
			return ProcessResult{}, err
		}

		outcome := Classify(lead, rules, alreadySent)
		if err := s.repo.MarkClassified(ctx, lead.ID, outcome.Status, outcome.Reason); err != nil {
			return ProcessResult{}, err
		}

		switch outcome.Status {
		case StatusDuplicate:
			duplicates++
		case StatusFiltered:
			filtered++
		default:
			valid++
		}
	}

	if err := s.batches.SetProcessed(ctx, batch.ID, valid, duplicates, filtered); err != nil {
		return ProcessResult{}, err
	}

	_ = s.cache.Delete(ctx, SummaryCacheKey(batch.ID))

	return ProcessResult{
		BatchID:    batch.ID,
		Total:      len(pending),
		Valid:      valid,
		Duplicates: duplicates,
		Filtered:   filtered,
		Applied:    rules,
	}, nil
}

func (s *Service) Summary(ctx context.Context, batchID string) (Summary, error) {
	batchID = strings.TrimSpace(batchID)

	if raw, ok, err := s.cache.Get(ctx, SummaryCacheKey(batchID)); err == nil && ok {
		var cached Summary
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Summary{}, ErrBatchNotFound
		}
		return Summary{}, err
	}

	productName := "unknown"
	if product, err := s.products.GetByID(ctx, batch.ProductID); err == nil {
		productName = product.Name
	}

	counts, err := s.repo.CountByStatus(ctx, batch.ID)
	if err != nil {
		return Summary{}, err
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	summary := Summary{
		BatchID:     batch.ID,
		ProductName: productName,
		Total:       total,
		Pending:     counts[StatusPending],
		Processed:   counts[StatusProcessed],
		Sent:        counts[StatusSent],
		Duplicates:  counts[StatusDuplicate],
		Filtered:    counts[StatusFiltered],
		Errors:      counts[StatusError],
	}

	if raw, err := json.Marshal(summary); err == nil {
		_ = s.cache.Set(ctx, SummaryCacheKey(batchID), raw, s.cacheTTL)
	}

	return summary, nil
}

func (s *Service) ListLeads(ctx context.Context, batchID, status string, limit, offset int64) ([]Lead, int64, error) {
	return s.repo.ListByBatch(ctx, strings.TrimSpace(batchID), status, limit, offset)
}

func (s *Service) ListHistory(ctx context.Context, limit, offset int64) ([]history.Entry, int64, error) {
	return s.history.List(ctx, limit, offset)
}
