package products

import (
	"context"
	"errors"
	"strings"
	"time"

	"lead-manager-backend/internal/parser"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("product not found")

type Service struct {
	repo     Repository
	location *time.Location
}

func NewService(repo Repository, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		location: location,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Product, error) {
	now := time.Now().In(s.location)

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	attribution := DefaultAttributionFilter()
	if req.Attribution != nil {
		attribution = req.Attribution.Normalized()
	}
	payment := DefaultPaymentFilter()
	if req.Payment != nil {
		payment = req.Payment.Normalized()
	}
	columns := parser.DefaultColumnMap()
	if req.Columns != nil {
		columns = *req.Columns
	}

	companyTitle := strings.TrimSpace(req.CRMCompanyTitle)
	if companyTitle == "" {
		companyTitle = "Unicesumar"
	}

	agentIDs := req.AgentIDs
	if agentIDs == nil {
		agentIDs = []string{}
	}

	product := Product{
		ID:              primitive.NewObjectID().Hex(),
		Name:            strings.TrimSpace(req.Name),
		Category:        req.Category,
		Description:     strings.TrimSpace(req.Description),
		Active:          active,
		Attribution:     attribution,
		Payment:         payment,
		Columns:         columns,
		AgentIDs:        agentIDs,
		CRMCompanyTitle: companyTitle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return Product{}, err
	}
	return product, nil
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	product, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

func (s *Service) List(ctx context.Context, onlyActive bool) ([]Product, error) {
	return s.repo.List(ctx, onlyActive)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Product, error) {
	id = strings.TrimSpace(id)

	set := bson.M{"updated_at": time.Now().In(s.location)}
	if req.Name != nil {
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if req.Description != nil {
		set["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Active != nil {
		set["active"] = *req.Active
	}
	if req.Attribution != nil {
		set["attribution_filter"] = req.Attribution.Normalized()
	}
	if req.Payment != nil {
		set["payment_filter"] = req.Payment.Normalized()
	}
	if req.Columns != nil {
		set["column_map"] = *req.Columns
	}
	if req.AgentIDs != nil {
		set["agent_ids"] = req.AgentIDs
	}
	if req.CRMCompanyTitle != nil {
		set["crm_company_title"] = strings.TrimSpace(*req.CRMCompanyTitle)
	}

	updated, err := s.repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
