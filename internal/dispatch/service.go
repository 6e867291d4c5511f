package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"lead-manager-backend/internal/agents"
	"lead-manager-backend/internal/cache"
	"lead-manager-backend/internal/crm"
	"lead-manager-backend/internal/history"
	"lead-manager-backend/internal/leads"
	"lead-manager-backend/internal/products"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNoEligibleAgents = errors.New("no eligible agents at this hour")
	ErrNoLeadsToSend    = errors.New("no processed leads to send")
)

type Service struct {
	runs     Repository
	leads    leads.Repository
	batches  leads.BatchRepository
	products products.Repository
	agents   agents.Repository
	history  history.Repository
	gateway  crm.Gateway
	cache    cache.Cache
	location *time.Location
}

func NewService(
	runs Repository,
	leadsRepo leads.Repository,
	batches leads.BatchRepository,
	productsRepo products.Repository,
	agentsRepo agents.Repository,
	historyRepo history.Repository,
	gateway crm.Gateway,
	cacheStore cache.Cache,
	location *time.Location,
) *Service {
	return &Service{
		runs:     runs,
		leads:    leadsRepo,
		batches:  batches,
		products: productsRepo,
		agents:   agentsRepo,
		history:  historyRepo,
		gateway:  gateway,
		cache:    cacheStore,
		location: location,
	}
}

// Send submits every processed lead of the batch to the CRM, assigning
// agents round-robin. The eligibility gate is all-or-nothing: with no agent
// inside their working window the whole operation is rejected before any
// lead is touched. Per-lead gateway failures never abort the loop; the run
// record is finalized with the tallied counters once the iteration ends.
func (s *Service) Send(ctx context.Context, batchID string) (Result, error) {
	batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Result{}, leads.ErrBatchNotFound
		}
		return Result{}, err
	}

	product, err := s.products.GetByID(ctx, batch.ProductID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Result{}, leads.ErrProductNotFound
		}
		return Result{}, err
	}

	pool, err := s.agents.GetManyByID(ctx, product.AgentIDs)
	if err != nil {
		return Result{}, err
	}

	hour := time.Now().In(s.location).Hour()
	eligible := Eligible(pool, hour)
	if len(eligible) == 0 {
		return Result{}, ErrNoEligibleAgents
	}

	toSend, err := s.leads.FindByBatchAndStatus(ctx, batch.ID, leads.StatusProcessed)
	if err != nil {
		return Result{}, err
	}
	if len(toSend) == 0 {
		return Result{}, ErrNoLeadsToSend
	}

	run := Run{
		ID:         uuid.NewString(),
		BatchID:    batch.ID,
		ProductID:  batch.ProductID,
		TotalLeads: len(toSend),
		Status:     RunInProgress,
		StartedAt:  time.Now().In(s.location),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return Result{}, err
	}

	alloc := NewAllocator(eligible)
	var success, failed int

	for _, lead := range toSend {
		agent := alloc.Next()

		course := lead.CourseName
		if course == "" {
			course = lead.CourseCode
		}

		crmLeadID, err := s.gateway.CreateLead(ctx, crm.LeadRequest{
			Name:         lead.Name,
			Phone:        lead.Phone,
			AgentCRMID:   agent.CRMID,
			CompanyTitle: product.CRMCompanyTitle,
			Document:     lead.Document,
			Course:       course,
			Site:         lead.Site,
			CandidateID:  lead.CandidateID,
			SourceLabel:  product.Name,
		})
		if err != nil {
			failed++
			_ = s.leads.MarkSendError(ctx, lead.ID, err.Error())
			continue
		}

		success++
		now := time.Now().In(s.location)
		if err := s.leads.MarkSent(ctx, lead.ID, crmLeadID, agent.ID, now); err != nil {
			continue
		}

		// Ledger insert is best-effort once the CRM accepted the lead; a
		// duplicate-key collision means a concurrent send won the race.
		_ = s.history.Insert(ctx, history.Entry{
			ID:          primitive.NewObjectID().Hex(),
			CandidateID: lead.CandidateID,
			ProductID:   batch.ProductID,
			BatchID:     batch.ID,
			SentAt:      now,
		})
	}

	if err := s.runs.Finish(ctx, run.ID, success, failed, time.Now().In(s.location)); err != nil {
		return Result{}, err
	}

	_ = s.cache.Delete(ctx, leads.SummaryCacheKey(batch.ID))

	used := make([]string, 0, len(eligible))
	for _, agent := range eligible {
		used = append(used, agent.Name)
	}

	return Result{
		RunID:      run.ID,
		BatchID:    batch.ID,
		Total:      len(toSend),
		Success:    success,
		Errors:     failed,
		AgentsUsed: used,
	}, nil
}
