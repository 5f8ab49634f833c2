// Package markets implements market CRUD with list caching.
package markets

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/cache"
	"github.com/blueocean-labs/explorer-api/internal/domain/market"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/storage"
	"github.com/blueocean-labs/explorer-api/internal/validation"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

const (
	// cacheTag groups every cached market read for bulk invalidation.
	cacheTag = "markets"
	cacheTTL = 60 * time.Second

	maxNameLen        = 200
	maxDescriptionLen = 2000
)

// Input carries the writable market fields.
type Input struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Industry    string            `json:"industry"`
	Metadata    map[string]string `json:"metadata"`
}

// Service implements market operations. Non-admin principals only see their
// own markets; another owner's market behaves as absent.
type Service struct {
	store storage.MarketStore
	cache cache.Cache
	log   *logger.Logger
}

// NewService wires the service.
func NewService(store storage.MarketStore, c cache.Cache, log *logger.Logger) *Service {
	return &Service{store: store, cache: c, log: log}
}

func (s *Service) sanitize(in Input) (Input, error) {
	in.Name = validation.SanitizeString(in.Name)
	in.Description = validation.SanitizeString(in.Description)
	in.Industry = validation.SanitizeString(in.Industry)
	in.Metadata = validation.SanitizeMap(in.Metadata)

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

// Create persists a new market for the principal.
func (s *Service) Create(ctx context.Context, p principal.Projection, in Input) (market.Market, error) {
	in, err := s.sanitize(in)
	if err != nil {
		return market.Market{}, err
	}

	created, err := s.store.CreateMarket(ctx, market.Market{
		OwnerID:     p.ID,
		Name:        in.Name,
		Description: in.Description,
		Industry:    in.Industry,
		Metadata:    in.Metadata,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return market.Market{}, apperr.Conflict("a market with this name already exists")
		}
		return market.Market{}, apperr.Internal("create market", err)
	}

	s.invalidate(ctx)
	return created, nil
}

// Get loads one market, enforcing ownership.
func (s *Service) Get(ctx context.Context, p principal.Projection, id string) (market.Market, error) {
	key := "markets:get:" + id
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var m market.Market
		if err := json.Unmarshal(cached, &m); err == nil {
			return s.authorize(p, m)
		}
	}

	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return market.Market{}, apperr.NotFound("market", id)
		}
		return market.Market{}, apperr.Internal("load market", err)
	}

	if encoded, err := json.Marshal(m); err == nil {
		if err := s.cache.Set(ctx, key, encoded, cacheTTL, cacheTag); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("market cache write failed")
		}
	}
	return s.authorize(p, m)
}

// List returns the principal's markets, cached per principal. Admins see
// every owner's markets.
func (s *Service) List(ctx context.Context, p principal.Projection) ([]market.Market, error) {
	key := "markets:list:" + p.ID
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var out []market.Market
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
	}

	ownerID := p.ID
	if p.Role == principal.RoleAdmin {
		// Empty owner filter lists all owners.
		ownerID = ""
	}
	out, err := s.store.ListMarkets(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal("list markets", err)
	}

	if encoded, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, encoded, cacheTTL, cacheTag); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("market cache write failed")
		}
	}
	return out, nil
}

// Update rewrites the writable fields of an owned market.
func (s *Service) Update(ctx context.Context, p principal.Projection, id string, in Input) (market.Market, error) {
	in, err := s.sanitize(in)
	if err != nil {
		return market.Market{}, err
	}

	existing, err := s.load(ctx, p, id)
	if err != nil {
		return market.Market{}, err
	}

	existing.Name = in.Name
	existing.Description = in.Description
	existing.Industry = in.Industry
	existing.Metadata = in.Metadata

	updated, err := s.store.UpdateMarket(ctx, existing)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return market.Market{}, apperr.Conflict("a market with this name already exists")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return market.Market{}, apperr.NotFound("market", id)
		}
		return market.Market{}, apperr.Internal("update market", err)
	}

	s.invalidate(ctx)
	return updated, nil
}

// Delete removes an owned market and everything under it. The role gate
// (strategist or above) is enforced in the routing layer.
func (s *Service) Delete(ctx context.Context, p principal.Projection, id string) error {
	if _, err := s.load(ctx, p, id); err != nil {
		return err
	}

	if err := s.store.DeleteMarket(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("market", id)
		}
		return apperr.Internal("delete market", err)
	}

	s.invalidate(ctx)
	return nil
}

// Authorize checks that the principal may touch the market, for use by
// sibling services resolving market scope.
func (s *Service) Authorize(ctx context.Context, p principal.Projection, marketID string) (market.Market, error) {
	return s.load(ctx, p, marketID)
}

// load fetches straight from the store (no cache) and enforces ownership.
func (s *Service) load(ctx context.Context, p principal.Projection, id string) (market.Market, error) {
	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return market.Market{}, apperr.NotFound("market", id)
		}
		return market.Market{}, apperr.Internal("load market", err)
	}
	return s.authorize(p, m)
}

// authorize hides other owners' markets as not-found rather than forbidden,
// so ids cannot be probed.
func (s *Service) authorize(p principal.Projection, m market.Market) (market.Market, error) {
	if m.OwnerID != p.ID && p.Role != principal.RoleAdmin {
		return market.Market{}, apperr.NotFound("market", m.ID)
	}
	return m, nil
}

func (s *Service) invalidate(ctx context.Context) {
	count, err := s.cache.InvalidateTag(ctx, cacheTag)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("market cache invalidation failed")
		return
	}
	s.log.WithContext(ctx).WithField("entries", count).Debug("market cache invalidated")
}
