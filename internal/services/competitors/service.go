// Package competitors implements competitor tracking scoped to a market.
package competitors

import (
	"context"
	"errors"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/domain/competitor"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/services/markets"
	"github.com/blueocean-labs/explorer-api/internal/storage"
	"github.com/blueocean-labs/explorer-api/internal/validation"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

const (
	maxNameLen  = 200
	maxFieldLen = 2000
)

// Input carries the writable competitor fields.
type Input struct {
	Name      string `json:"name"`
	Strengths string `json:"strengths"`
	Weakness  string `json:"weakness"`
}

// Service implements competitor operations.
type Service struct {
	store   storage.CompetitorStore
	markets *markets.Service
	log     *logger.Logger
}

// NewService wires the service.
func NewService(store storage.CompetitorStore, marketsSvc *markets.Service, log *logger.Logger) *Service {
	return &Service{store: store, markets: marketsSvc, log: log}
}

func (s *Service) sanitize(in Input) (Input, error) {
	in.Name = validation.SanitizeString(in.Name)
	in.Strengths = validation.SanitizeString(in.Strengths)
	in.Weakness = validation.SanitizeString(in.Weakness)

	if err := validation.Required("name", in.Name); err != nil {
		return Input{}, err
	}
	if err := validation.MaxLen("name", in.Name, maxNameLen); err != nil {
		return Input{}, err
	}
	if err := validation.MaxLen("strengths", in.Strengths, maxFieldLen); err != nil {
		return Input{}, err
	}
	if err := validation.MaxLen("weakness", in.Weakness, maxFieldLen); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Create persists a new competitor under an owned market.
func (s *Service) Create(ctx context.Context, p principal.Projection, marketID string, in Input) (competitor.Competitor, error) {
	in, err := s.sanitize(in)
	if err != nil {
		return competitor.Competitor{}, err
	}
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return competitor.Competitor{}, err
	}

	created, err := s.store.CreateCompetitor(ctx, competitor.Competitor{
		MarketID:  marketID,
		Name:      in.Name,
		Strengths: in.Strengths,
		Weakness:  in.Weakness,
	})
	if err != nil {
		return competitor.Competitor{}, apperr.Internal("create competitor", err)
	}
	return created, nil
}

// Get loads one competitor within an owned market.
func (s *Service) Get(ctx context.Context, p principal.Projection, marketID, id string) (competitor.Competitor, error) {
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return competitor.Competitor{}, err
	}
	c, err := s.store.GetCompetitor(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return competitor.Competitor{}, apperr.NotFound("competitor", id)
		}
		return competitor.Competitor{}, apperr.Internal("load competitor", err)
	}
	if c.MarketID != marketID {
		return competitor.Competitor{}, apperr.NotFound("competitor", id)
	}
	return c, nil
}

// List returns a market's competitors.
func (s *Service) List(ctx context.Context, p principal.Projection, marketID string) ([]competitor.Competitor, error) {
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return nil, err
	}
	out, err := s.store.ListCompetitors(ctx, marketID)
	if err != nil {
		return nil, apperr.Internal("list competitors", err)
	}
	return out, nil
}

// Delete removes one competitor within an owned market.
func (s *Service) Delete(ctx context.Context, p principal.Projection, marketID, id string) error {
	if _, err := s.Get(ctx, p, marketID, id); err != nil {
		return err
	}
	if err := s.store.DeleteCompetitor(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("competitor", id)
		}
		return apperr.Internal("delete competitor", err)
	}
	return nil
}
