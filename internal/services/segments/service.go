// Package segments implements customer segment CRUD scoped to a market.
package segments

import (
	"context"
	"errors"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/domain/segment"
	"github.com/blueocean-labs/explorer-api/internal/services/markets"
	"github.com/blueocean-labs/explorer-api/internal/storage"
	"github.com/blueocean-labs/explorer-api/internal/validation"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 2000
)

// Input carries the writable segment fields.
type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SizeBand    string `json:"size_band"`
}

// Service implements segment operations.
type Service struct {
	store   storage.SegmentStore
	markets *markets.Service
	log     *logger.Logger
}

// NewService wires the service.
func NewService(store storage.SegmentStore, marketsSvc *markets.Service, log *logger.Logger) *Service {
	return &Service{store: store, markets: marketsSvc, log: log}
}

func (s *Service) sanitize(in Input) (Input, error) {
	in.Name = validation.SanitizeString(in.Name)
	in.Description = validation.SanitizeString(in.Description)
	in.SizeBand = validation.SanitizeString(in.SizeBand)

	if err := validation.Required("name", in.Name); err != nil {
		return Input{}, err
	}
	if err := validation.MaxLen("name", in.Name, maxNameLen); err != nil {
		return Input{}, err
	}
	if err := validation.MaxLen("description", in.Description, maxDescriptionLen); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Create persists a new segment under an owned market.
func (s *Service) Create(ctx context.Context, p principal.Projection, marketID string, in Input) (segment.Segment, error) {
	in, err := s.sanitize(in)
	if err != nil {
		return segment.Segment{}, err
	}
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return segment.Segment{}, err
	}

	created, err := s.store.CreateSegment(ctx, segment.Segment{
		MarketID:    marketID,
		Name:        in.Name,
		Description: in.Description,
		SizeBand:    in.SizeBand,
	})
	if err != nil {
		return segment.Segment{}, apperr.Internal("create segment", err)
	}
	return created, nil
}

// Get loads one segment within an owned market.
func (s *Service) Get(ctx context.Context, p principal.Projection, marketID, id string) (segment.Segment, error) {
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return segment.Segment{}, err
	}
	seg, err := s.store.GetSegment(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return segment.Segment{}, apperr.NotFound("segment", id)
		}
		return segment.Segment{}, apperr.Internal("load segment", err)
	}
	if seg.MarketID != marketID {
		return segment.Segment{}, apperr.NotFound("segment", id)
	}
	return seg, nil
}

// List returns a market's segments.
func (s *Service) List(ctx context.Context, p principal.Projection, marketID string) ([]segment.Segment, error) {
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return nil, err
	}
	out, err := s.store.ListSegments(ctx, marketID)
	if err != nil {
		return nil, apperr.Internal("list segments", err)
	}
	return out, nil
}

// Update rewrites the writable fields.
func (s *Service) Update(ctx context.Context, p principal.Projection, marketID, id string, in Input) (segment.Segment, error) {
	in, err := s.sanitize(in)
	if err != nil {
		return segment.Segment{}, err
	}

	existing, err := s.Get(ctx, p, marketID, id)
	if err != nil {
		return segment.Segment{}, err
	}

	existing.Name = in.Name
	existing.Description = in.Description
	existing.SizeBand = in.SizeBand

	updated, err := s.store.UpdateSegment(ctx, existing)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return segment.Segment{}, apperr.NotFound("segment", id)
		}
		return segment.Segment{}, apperr.Internal("update segment", err)
	}
	return updated, nil
}

// Delete removes one segment within an owned market.
func (s *Service) Delete(ctx context.Context, p principal.Projection, marketID, id string) error {
	if _, err := s.Get(ctx, p, marketID, id); err != nil {
		return err
	}
	if err := s.store.DeleteSegment(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("segment", id)
		}
		return apperr.Internal("delete segment", err)
	}
	return nil
}
