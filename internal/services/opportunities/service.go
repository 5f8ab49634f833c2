// Package opportunities implements opportunity CRUD and blue-ocean scoring.
package opportunities

import (
	"context"
	"errors"
	"math"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/domain/opportunity"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/services/markets"
	"github.com/blueocean-labs/explorer-api/internal/storage"
	"github.com/blueocean-labs/explorer-api/internal/validation"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// Scoring weights. Competition contributes inversely: an empty field scores
// higher than a crowded one.
const (
	weightMarketSize  = 0.4
	weightCompetition = 0.3
	weightFeasibility = 0.3

	maxTitleLen       = 200
	maxDescriptionLen = 2000
)

// Input carries the writable opportunity fields.
type Input struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	MarketSize       float64 `json:"market_size"`
	CompetitionLevel float64 `json:"competition_level"`
	Feasibility      float64 `json:"feasibility"`
}

// BlueOceanScore combines the 0-10 analyst inputs into a single 0-10 figure.
func BlueOceanScore(marketSize, competitionLevel, feasibility float64) float64 {
	score := weightMarketSize*marketSize +
		weightCompetition*(10-competitionLevel) +
		weightFeasibility*feasibility
	return math.Round(score*100) / 100
}

// Service implements opportunity operations. Market scope and ownership are
// resolved through the markets service.
type Service struct {
	store   storage.OpportunityStore
	markets *markets.Service
	log     *logger.Logger
}

// NewService wires the service.
func NewService(store storage.OpportunityStore, marketsSvc *markets.Service, log *logger.Logger) *Service {
	return &Service{store: store, markets: marketsSvc, log: log}
}

func (s *Service) sanitize(in Input) (Input, error) {
	in.Title = validation.SanitizeString(in.Title)
	in.Description = validation.SanitizeString(in.Description)

	if err := validation.Required("title", in.Title); err != nil {
		return Input{}, err
	}
	if err := validation.MaxLen("title", in.Title, maxTitleLen); err != nil {
		return Input{}, err
	}
	if err := validation.MaxLen("description", in.Description, maxDescriptionLen); err != nil {
		return Input{}, err
	}
	if err := validation.Score("market_size", in.MarketSize); err != nil {
		return Input{}, err
	}
	if err := validation.Score("competition_level", in.CompetitionLevel); err != nil {
		return Input{}, err
	}
	if err := validation.Score("feasibility", in.Feasibility); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Create persists a new opportunity under an owned market.
func (s *Service) Create(ctx context.Context, p principal.Projection, marketID string, in Input) (opportunity.Opportunity, error) {
	in, err := s.sanitize(in)
	if err != nil {
		return opportunity.Opportunity{}, err
	}
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return opportunity.Opportunity{}, err
	}

	created, err := s.store.CreateOpportunity(ctx, opportunity.Opportunity{
		MarketID:         marketID,
		OwnerID:          p.ID,
		Title:            in.Title,
		Description:      in.Description,
		MarketSize:       in.MarketSize,
		CompetitionLevel: in.CompetitionLevel,
		Feasibility:      in.Feasibility,
		Score:            BlueOceanScore(in.MarketSize, in.CompetitionLevel, in.Feasibility),
	})
	if err != nil {
		return opportunity.Opportunity{}, apperr.Internal("create opportunity", err)
	}
	return created, nil
}

// Get loads one opportunity within an owned market.
func (s *Service) Get(ctx context.Context, p principal.Projection, marketID, id string) (opportunity.Opportunity, error) {
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return opportunity.Opportunity{}, err
	}
	o, err := s.store.GetOpportunity(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return opportunity.Opportunity{}, apperr.NotFound("opportunity", id)
		}
		return opportunity.Opportunity{}, apperr.Internal("load opportunity", err)
	}
	if o.MarketID != marketID {
		return opportunity.Opportunity{}, apperr.NotFound("opportunity", id)
	}
	return o, nil
}

// List returns a market's opportunities.
func (s *Service) List(ctx context.Context, p principal.Projection, marketID string) ([]opportunity.Opportunity, error) {
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return nil, err
	}
	out, err := s.store.ListOpportunities(ctx, marketID)
	if err != nil {
		return nil, apperr.Internal("list opportunities", err)
	}
	return out, nil
}

// Update rewrites the writable fields and recomputes the score.
func (s *Service) Update(ctx context.Context, p principal.Projection, marketID, id string, in Input) (opportunity.Opportunity, error) {
	in, err := s.sanitize(in)
	if err != nil {
		return opportunity.Opportunity{}, err
	}

	existing, err := s.Get(ctx, p, marketID, id)
	if err != nil {
		return opportunity.Opportunity{}, err
	}

	existing.Title = in.Title
	existing.Description = in.Description
	existing.MarketSize = in.MarketSize
	existing.CompetitionLevel = in.CompetitionLevel
	existing.Feasibility = in.Feasibility
	existing.Score = BlueOceanScore(in.MarketSize, in.CompetitionLevel, in.Feasibility)

	updated, err := s.store.UpdateOpportunity(ctx, existing)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return opportunity.Opportunity{}, apperr.NotFound("opportunity", id)
		}
		return opportunity.Opportunity{}, apperr.Internal("update opportunity", err)
	}
	return updated, nil
}

// Delete removes one opportunity within an owned market.
func (s *Service) Delete(ctx context.Context, p principal.Projection, marketID, id string) error {
	if _, err := s.Get(ctx, p, marketID, id); err != nil {
		return err
	}
	if err := s.store.DeleteOpportunity(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("opportunity", id)
		}
		return apperr.Internal("delete opportunity", err)
	}
	return nil
}
