// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blueocean-labs/explorer-api/internal/domain/competitor"
	"github.com/blueocean-labs/explorer-api/internal/domain/insight"
	"github.com/blueocean-labs/explorer-api/internal/domain/market"
	"github.com/blueocean-labs/explorer-api/internal/domain/opportunity"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/domain/segment"
	"github.com/blueocean-labs/explorer-api/internal/storage"
)

// Store holds every entity in mutex-guarded maps.
type Store struct {
	mu                sync.RWMutex
	principals        map[string]principal.Principal
	principalsByEmail map[string]string
	markets           map[string]market.Market
	opportunities     map[string]opportunity.Opportunity
	segments          map[string]segment.Segment
	competitors       map[string]competitor.Competitor
	insights          map[string][]insight.Insight
}

var _ storage.PrincipalStore = (*Store)(nil)
var _ storage.MarketStore = (*Store)(nil)
var _ storage.OpportunityStore = (*Store)(nil)
var _ storage.SegmentStore = (*Store)(nil)
var _ storage.CompetitorStore = (*Store)(nil)
var _ storage.InsightStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		principals:        make(map[string]principal.Principal),
		principalsByEmail: make(map[string]string),
		markets:           make(map[string]market.Market),
		opportunities:     make(map[string]opportunity.Opportunity),
		segments:          make(map[string]segment.Segment),
		competitors:       make(map[string]competitor.Competitor),
		insights:          make(map[string][]insight.Insight),
	}
}

// PrincipalStore implementation ----------------------------------------------

func (s *Store) CreatePrincipal(_ context.Context, p principal.Principal) (principal.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := strings.ToLower(p.Email)
	if _, exists := s.principalsByEmail[emailKey]; exists {
		return principal.Principal{}, fmt.Errorf("principal %s: %w", p.Email, storage.ErrDuplicate)
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.principals[p.ID] = p
	s.principalsByEmail[emailKey] = p.ID
	return p, nil
}

func (s *Store) GetPrincipal(_ context.Context, id string) (principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return principal.Principal{}, fmt.Errorf("principal %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetPrincipalByEmail(_ context.Context, email string) (principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.principalsByEmail[strings.ToLower(email)]
	if !ok {
		return principal.Principal{}, fmt.Errorf("principal %s: %w", email, storage.ErrNotFound)
	}
	return s.principals[id], nil
}

func (s *Store) ListPrincipals(_ context.Context) ([]principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]principal.Principal, 0, len(s.principals))
	for _, p := range s.principals {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeletePrincipal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return fmt.Errorf("principal %s: %w", id, storage.ErrNotFound)
	}
	delete(s.principals, id)
	delete(s.principalsByEmail, strings.ToLower(p.Email))
	return nil
}

// MarketStore implementation -------------------------------------------------

func (s *Store) CreateMarket(_ context.Context, m market.Market) (market.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.markets {
		if existing.OwnerID == m.OwnerID && strings.EqualFold(existing.Name, m.Name) {
			return market.Market{}, fmt.Errorf("market %s: %w", m.Name, storage.ErrDuplicate)
		}
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Metadata = cloneMap(m.Metadata)

	s.markets[m.ID] = m
	return cloneMarket(m), nil
}

func (s *Store) GetMarket(_ context.Context, id string) (market.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return market.Market{}, fmt.Errorf("market %s: %w", id, storage.ErrNotFound)
	}
	return cloneMarket(m), nil
}

func (s *Store) ListMarkets(_ context.Context, ownerID string) ([]market.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Market, 0)
	for _, m := range s.markets {
		if ownerID == "" || m.OwnerID == ownerID {
			result = append(result, cloneMarket(m))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) UpdateMarket(_ context.Context, m market.Market) (market.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.markets[m.ID]
	if !ok {
		return market.Market{}, fmt.Errorf("market %s: %w", m.ID, storage.ErrNotFound)
	}

	for id, existing := range s.markets {
		if id != m.ID && existing.OwnerID == original.OwnerID && strings.EqualFold(existing.Name, m.Name) {
			return market.Market{}, fmt.Errorf("market %s: %w", m.Name, storage.ErrDuplicate)
		}
	}

	m.OwnerID = original.OwnerID
	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	m.Metadata = cloneMap(m.Metadata)

	s.markets[m.ID] = m
	return cloneMarket(m), nil
}

func (s *Store) DeleteMarket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[id]; !ok {
		return fmt.Errorf("market %s: %w", id, storage.ErrNotFound)
	}
	delete(s.markets, id)
	for oid, o := range s.opportunities {
		if o.MarketID == id {
			delete(s.opportunities, oid)
		}
	}
	for sid, sg := range s.segments {
		if sg.MarketID == id {
			delete(s.segments, sid)
		}
	}
	for cid, c := range s.competitors {
		if c.MarketID == id {
			delete(s.competitors, cid)
		}
	}
	delete(s.insights, id)
	return nil
}

// OpportunityStore implementation --------------------------------------------

func (s *Store) CreateOpportunity(_ context.Context, o opportunity.Opportunity) (opportunity.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[o.MarketID]; !ok {
		return opportunity.Opportunity{}, fmt.Errorf("market %s: %w", o.MarketID, storage.ErrNotFound)
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	s.opportunities[o.ID] = o
	return o, nil
}

func (s *Store) GetOpportunity(_ context.Context, id string) (opportunity.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.opportunities[id]
	if !ok {
		return opportunity.Opportunity{}, fmt.Errorf("opportunity %s: %w", id, storage.ErrNotFound)
	}
	return o, nil
}

func (s *Store) ListOpportunities(_ context.Context, marketID string) ([]opportunity.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]opportunity.Opportunity, 0)
	for _, o := range s.opportunities {
		if marketID == "" || o.MarketID == marketID {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) UpdateOpportunity(_ context.Context, o opportunity.Opportunity) (opportunity.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.opportunities[o.ID]
	if !ok {
		return opportunity.Opportunity{}, fmt.Errorf("opportunity %s: %w", o.ID, storage.ErrNotFound)
	}

	o.MarketID = original.MarketID
	o.OwnerID = original.OwnerID
	o.CreatedAt = original.CreatedAt
	o.UpdatedAt = time.Now().UTC()

	s.opportunities[o.ID] = o
	return o, nil
}

func (s *Store) DeleteOpportunity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.opportunities[id]; !ok {
		return fmt.Errorf("opportunity %s: %w", id, storage.ErrNotFound)
	}
	delete(s.opportunities, id)
	return nil
}

// SegmentStore implementation ------------------------------------------------

func (s *Store) CreateSegment(_ context.Context, sg segment.Segment) (segment.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[sg.MarketID]; !ok {
		return segment.Segment{}, fmt.Errorf("market %s: %w", sg.MarketID, storage.ErrNotFound)
	}

	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sg.CreatedAt = now
	sg.UpdatedAt = now

	s.segments[sg.ID] = sg
	return sg, nil
}

func (s *Store) GetSegment(_ context.Context, id string) (segment.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sg, ok := s.segments[id]
	if !ok {
		return segment.Segment{}, fmt.Errorf("segment %s: %w", id, storage.ErrNotFound)
	}
	return sg, nil
}

func (s *Store) ListSegments(_ context.Context, marketID string) ([]segment.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]segment.Segment, 0)
	for _, sg := range s.segments {
		if marketID == "" || sg.MarketID == marketID {
			result = append(result, sg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) UpdateSegment(_ context.Context, sg segment.Segment) (segment.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.segments[sg.ID]
	if !ok {
		return segment.Segment{}, fmt.Errorf("segment %s: %w", sg.ID, storage.ErrNotFound)
	}

	sg.MarketID = original.MarketID
	sg.CreatedAt = original.CreatedAt
	sg.UpdatedAt = time.Now().UTC()

	s.segments[sg.ID] = sg
	return sg, nil
}

func (s *Store) DeleteSegment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.segments[id]; !ok {
		return fmt.Errorf("segment %s: %w", id, storage.ErrNotFound)
	}
	delete(s.segments, id)
	return nil
}

// CompetitorStore implementation ---------------------------------------------

func (s *Store) CreateCompetitor(_ context.Context, c competitor.Competitor) (competitor.Competitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[c.MarketID]; !ok {
		return competitor.Competitor{}, fmt.Errorf("market %s: %w", c.MarketID, storage.ErrNotFound)
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.competitors[c.ID] = c
	return c, nil
}

func (s *Store) GetCompetitor(_ context.Context, id string) (competitor.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.competitors[id]
	if !ok {
		return competitor.Competitor{}, fmt.Errorf("competitor %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCompetitors(_ context.Context, marketID string) ([]competitor.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]competitor.Competitor, 0)
	for _, c := range s.competitors {
		if marketID == "" || c.MarketID == marketID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteCompetitor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.competitors[id]; !ok {
		return fmt.Errorf("competitor %s: %w", id, storage.ErrNotFound)
	}
	delete(s.competitors, id)
	return nil
}

// InsightStore implementation ------------------------------------------------

func (s *Store) CreateInsight(_ context.Context, i insight.Insight) (insight.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[i.MarketID]; !ok {
		return insight.Insight{}, fmt.Errorf("market %s: %w", i.MarketID, storage.ErrNotFound)
	}

	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	i.CreatedAt = time.Now().UTC()

	s.insights[i.MarketID] = append(s.insights[i.MarketID], i)
	return i, nil
}

func (s *Store) ListInsights(_ context.Context, marketID string) ([]insight.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]insight.Insight(nil), s.insights[marketID]...), nil
}

// Helpers --------------------------------------------------------------------

func cloneMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneMarket(m market.Market) market.Market {
	m.Metadata = cloneMap(m.Metadata)
	return m
}
