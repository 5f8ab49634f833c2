// Package storage declares the persistence interfaces consumed by the
// services. Two implementations exist: memory (tests, local development) and
// postgres. Both satisfy the same contract tests.
package storage

import (
	"context"
	"errors"

	"github.com/blueocean-labs/explorer-api/internal/domain/competitor"
	"github.com/blueocean-labs/explorer-api/internal/domain/insight"
	"github.com/blueocean-labs/explorer-api/internal/domain/market"
	"github.com/blueocean-labs/explorer-api/internal/domain/opportunity"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/domain/segment"
)

// ErrNotFound is returned when the referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned on uniqueness violations.
var ErrDuplicate = errors.New("duplicate record")

// PrincipalStore persists registered users. Emails are stored normalized and
// unique.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p principal.Principal) (principal.Principal, error)
	GetPrincipal(ctx context.Context, id string) (principal.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error)
	ListPrincipals(ctx context.Context) ([]principal.Principal, error)
	DeletePrincipal(ctx context.Context, id string) error
}

// MarketStore persists markets.
type MarketStore interface {
	CreateMarket(ctx context.Context, m market.Market) (market.Market, error)
	GetMarket(ctx context.Context, id string) (market.Market, error)
	ListMarkets(ctx context.Context, ownerID string) ([]market.Market, error)
	UpdateMarket(ctx context.Context, m market.Market) (market.Market, error)
	DeleteMarket(ctx context.Context, id string) error
}

// OpportunityStore persists opportunities.
type OpportunityStore interface {
	CreateOpportunity(ctx context.Context, o opportunity.Opportunity) (opportunity.Opportunity, error)
	GetOpportunity(ctx context.Context, id string) (opportunity.Opportunity, error)
	ListOpportunities(ctx context.Context, marketID string) ([]opportunity.Opportunity, error)
	UpdateOpportunity(ctx context.Context, o opportunity.Opportunity) (opportunity.Opportunity, error)
	DeleteOpportunity(ctx context.Context, id string) error
}

// SegmentStore persists customer segments.
type SegmentStore interface {
	CreateSegment(ctx context.Context, s segment.Segment) (segment.Segment, error)
	GetSegment(ctx context.Context, id string) (segment.Segment, error)
	ListSegments(ctx context.Context, marketID string) ([]segment.Segment, error)
	UpdateSegment(ctx context.Context, s segment.Segment) (segment.Segment, error)
	DeleteSegment(ctx context.Context, id string) error
}

// CompetitorStore persists competitors.
type CompetitorStore interface {
	CreateCompetitor(ctx context.Context, c competitor.Competitor) (competitor.Competitor, error)
	GetCompetitor(ctx context.Context, id string) (competitor.Competitor, error)
	ListCompetitors(ctx context.Context, marketID string) ([]competitor.Competitor, error)
	DeleteCompetitor(ctx context.Context, id string) error
}

// InsightStore persists AI-generated insights.
type InsightStore interface {
	CreateInsight(ctx context.Context, i insight.Insight) (insight.Insight, error)
	ListInsights(ctx context.Context, marketID string) ([]insight.Insight, error)
}
