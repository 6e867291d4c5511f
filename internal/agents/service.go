package agents

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound    = errors.New("agent not found")
	ErrCRMIDExists = errors.New("crm id already in use")
)

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

func (s *Service) Create(ctx context.Context, req CreateRequest) (Agent, error) {
	inUse, err := s.repo.CRMIDInUse(ctx, req.CRMID, "")
	if err != nil {
		return Agent{}, err
	}
	if inUse {
		return Agent{}, ErrCRMIDExists
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().In(s.location)
	agent := Agent{
		ID:        primitive.NewObjectID().Hex(),
		Name:      strings.TrimSpace(req.Name),
		CRMID:     req.CRMID,
		StartHour: req.StartHour,
		EndHour:   req.EndHour,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, agent); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Agent{}, ErrCRMIDExists
		}
		return Agent{}, err
	}
	return agent, nil
}

func (s *Service) Get(ctx context.Context, id string) (Agent, error) {
	agent, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, err
	}
	return agent, nil
}

func (s *Service) List(ctx context.Context, onlyActive bool) ([]Agent, error) {
	return s.repo.List(ctx, onlyActive)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Agent, error) {
	id = strings.TrimSpace(id)

	set := bson.M{"updated_at": time.Now().In(s.location)}
	if req.Name != nil {
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.CRMID != nil {
		inUse, err := s.repo.CRMIDInUse(ctx, *req.CRMID, id)
		if err != nil {
			return Agent{}, err
		}
		if inUse {
			return Agent{}, ErrCRMIDExists
		}
		set["crm_id"] = *req.CRMID
	}
	if req.StartHour != nil {
		set["start_hour"] = *req.StartHour
	}
	if req.EndHour != nil {
		set["end_hour"] = *req.EndHour
	}
	if req.Active != nil {
		set["active"] = *req.Active
	}

	updated, err := s.repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, err
	}
	return updated, nil
}

// Delete removes the agent record. Historical lead assignments keep their
// agent id; the reference is weak on purpose.
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
