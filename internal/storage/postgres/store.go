// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/blueocean-labs/explorer-api/internal/domain/competitor"
	"github.com/blueocean-labs/explorer-api/internal/domain/insight"
	"github.com/blueocean-labs/explorer-api/internal/domain/market"
	"github.com/blueocean-labs/explorer-api/internal/domain/opportunity"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/domain/segment"
	"github.com/blueocean-labs/explorer-api/internal/storage"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces using a shared *sqlx.DB.
type Store struct {
	db *sqlx.DB
}

var _ storage.PrincipalStore = (*Store)(nil)
var _ storage.MarketStore = (*Store)(nil)
var _ storage.OpportunityStore = (*Store)(nil)
var _ storage.SegmentStore = (*Store)(nil)
var _ storage.CompetitorStore = (*Store)(nil)
var _ storage.InsightStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, verifies the connection with a bounded ping
// and applies pool settings.
func Open(dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

// --- PrincipalStore ---------------------------------------------------------

type principalRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r principalRow) toDomain() principal.Principal {
	return principal.Principal{
		ID:           r.ID,
		Email:        r.Email,
		Role:         principal.Role(r.Role),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *Store) CreatePrincipal(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (id, email, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Email, string(p.Role), p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return principal.Principal{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetPrincipal(ctx context.Context, id string) (principal.Principal, error) {
	var row principalRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, role, password_hash, created_at, updated_at
		FROM principals WHERE id = $1
	`, id)
	if err != nil {
		return principal.Principal{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error) {
	var row principalRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, role, password_hash, created_at, updated_at
		FROM principals WHERE email = $1
	`, email)
	if err != nil {
		return principal.Principal{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListPrincipals(ctx context.Context) ([]principal.Principal, error) {
	var rows []principalRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, email, role, password_hash, created_at, updated_at
		FROM principals ORDER BY created_at
	`)
	if err != nil {
		return nil, mapError(err)
	}
	result := make([]principal.Principal, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) DeletePrincipal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- MarketStore ------------------------------------------------------------

type marketRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Industry    string    `db:"industry"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r marketRow) toDomain() market.Market {
	m := market.Market{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Description: r.Description,
		Industry:    r.Industry,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &m.Metadata)
	}
	return m
}

func (s *Store) CreateMarket(ctx context.Context, m market.Market) (market.Market, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	metadataJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return market.Market{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO markets (id, owner_id, name, description, industry, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.OwnerID, m.Name, m.Description, m.Industry, metadataJSON, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return market.Market{}, mapError(err)
	}
	return m, nil
}

func (s *Store) GetMarket(ctx context.Context, id string) (market.Market, error) {
	var row marketRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, owner_id, name, description, industry, metadata, created_at, updated_at
		FROM markets WHERE id = $1
	`, id)
	if err != nil {
		return market.Market{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListMarkets(ctx context.Context, ownerID string) ([]market.Market, error) {
	query := `
		SELECT id, owner_id, name, description, industry, metadata, created_at, updated_at
		FROM markets`
	args := []interface{}{}
	if ownerID != "" {
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at`

	var rows []marketRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	result := make([]market.Market, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) UpdateMarket(ctx context.Context, m market.Market) (market.Market, error) {
	existing, err := s.GetMarket(ctx, m.ID)
	if err != nil {
		return market.Market{}, err
	}

	m.OwnerID = existing.OwnerID
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return market.Market{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE markets
		SET name = $2, description = $3, industry = $4, metadata = $5, updated_at = $6
		WHERE id = $1
	`, m.ID, m.Name, m.Description, m.Industry, metadataJSON, m.UpdatedAt)
	if err != nil {
		return market.Market{}, mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return market.Market{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) DeleteMarket(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM markets WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- OpportunityStore -------------------------------------------------------

type opportunityRow struct {
	ID               string    `db:"id"`
	MarketID         string    `db:"market_id"`
	OwnerID          string    `db:"owner_id"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	MarketSize       float64   `db:"market_size"`
	CompetitionLevel float64   `db:"competition_level"`
	Feasibility      float64   `db:"feasibility"`
	Score            float64   `db:"score"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r opportunityRow) toDomain() opportunity.Opportunity {
	return opportunity.Opportunity(r)
}

func (s *Store) CreateOpportunity(ctx context.Context, o opportunity.Opportunity) (opportunity.Opportunity, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities
			(id, market_id, owner_id, title, description, market_size, competition_level, feasibility, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.MarketID, o.OwnerID, o.Title, o.Description, o.MarketSize, o.CompetitionLevel, o.Feasibility, o.Score, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return opportunity.Opportunity{}, mapError(err)
	}
	return o, nil
}

func (s *Store) GetOpportunity(ctx context.Context, id string) (opportunity.Opportunity, error) {
	var row opportunityRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, market_id, owner_id, title, description, market_size, competition_level, feasibility, score, created_at, updated_at
		FROM opportunities WHERE id = $1
	`, id)
	if err != nil {
		return opportunity.Opportunity{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListOpportunities(ctx context.Context, marketID string) ([]opportunity.Opportunity, error) {
	var rows []opportunityRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, market_id, owner_id, title, description, market_size, competition_level, feasibility, score, created_at, updated_at
		FROM opportunities WHERE market_id = $1 ORDER BY created_at
	`, marketID)
	if err != nil {
		return nil, mapError(err)
	}
	result := make([]opportunity.Opportunity, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) UpdateOpportunity(ctx context.Context, o opportunity.Opportunity) (opportunity.Opportunity, error) {
	existing, err := s.GetOpportunity(ctx, o.ID)
	if err != nil {
		return opportunity.Opportunity{}, err
	}

	o.MarketID = existing.MarketID
	o.OwnerID = existing.OwnerID
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE opportunities
		SET title = $2, description = $3, market_size = $4, competition_level = $5, feasibility = $6, score = $7, updated_at = $8
		WHERE id = $1
	`, o.ID, o.Title, o.Description, o.MarketSize, o.CompetitionLevel, o.Feasibility, o.Score, o.UpdatedAt)
	if err != nil {
		return opportunity.Opportunity{}, mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return opportunity.Opportunity{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) DeleteOpportunity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- SegmentStore -----------------------------------------------------------

type segmentRow struct {
	ID          string    `db:"id"`
	MarketID    string    `db:"market_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	SizeBand    string    `db:"size_band"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (s *Store) CreateSegment(ctx context.Context, sg segment.Segment) (segment.Segment, error) {
	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sg.CreatedAt = now
	sg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO segments (id, market_id, name, description, size_band, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sg.ID, sg.MarketID, sg.Name, sg.Description, sg.SizeBand, sg.CreatedAt, sg.UpdatedAt)
	if err != nil {
		return segment.Segment{}, mapError(err)
	}
	return sg, nil
}

func (s *Store) GetSegment(ctx context.Context, id string) (segment.Segment, error) {
	var row segmentRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, market_id, name, description, size_band, created_at, updated_at
		FROM segments WHERE id = $1
	`, id)
	if err != nil {
		return segment.Segment{}, mapError(err)
	}
	return segment.Segment(row), nil
}

func (s *Store) ListSegments(ctx context.Context, marketID string) ([]segment.Segment, error) {
	var rows []segmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, market_id, name, description, size_band, created_at, updated_at
		FROM segments WHERE market_id = $1 ORDER BY created_at
	`, marketID)
	if err != nil {
		return nil, mapError(err)
	}
	result := make([]segment.Segment, 0, len(rows))
	for _, row := range rows {
		result = append(result, segment.Segment(row))
	}
	return result, nil
}

func (s *Store) UpdateSegment(ctx context.Context, sg segment.Segment) (segment.Segment, error) {
	existing, err := s.GetSegment(ctx, sg.ID)
	if err != nil {
		return segment.Segment{}, err
	}

	sg.MarketID = existing.MarketID
	sg.CreatedAt = existing.CreatedAt
	sg.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE segments SET name = $2, description = $3, size_band = $4, updated_at = $5
		WHERE id = $1
	`, sg.ID, sg.Name, sg.Description, sg.SizeBand, sg.UpdatedAt)
	if err != nil {
		return segment.Segment{}, mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return segment.Segment{}, storage.ErrNotFound
	}
	return sg, nil
}

func (s *Store) DeleteSegment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- CompetitorStore --------------------------------------------------------

type competitorRow struct {
	ID        string    `db:"id"`
	MarketID  string    `db:"market_id"`
	Name      string    `db:"name"`
	Strengths string    `db:"strengths"`
	Weakness  string    `db:"weakness"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *Store) CreateCompetitor(ctx context.Context, c competitor.Competitor) (competitor.Competitor, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO competitors (id, market_id, name, strengths, weakness, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.MarketID, c.Name, c.Strengths, c.Weakness, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return competitor.Competitor{}, mapError(err)
	}
	return c, nil
}

func (s *Store) GetCompetitor(ctx context.Context, id string) (competitor.Competitor, error) {
	var row competitorRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, market_id, name, strengths, weakness, created_at, updated_at
		FROM competitors WHERE id = $1
	`, id)
	if err != nil {
		return competitor.Competitor{}, mapError(err)
	}
	return competitor.Competitor(row), nil
}

func (s *Store) ListCompetitors(ctx context.Context, marketID string) ([]competitor.Competitor, error) {
	var rows []competitorRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, market_id, name, strengths, weakness, created_at, updated_at
		FROM competitors WHERE market_id = $1 ORDER BY created_at
	`, marketID)
	if err != nil {
		return nil, mapError(err)
	}
	result := make([]competitor.Competitor, 0, len(rows))
	for _, row := range rows {
		result = append(result, competitor.Competitor(row))
	}
	return result, nil
}

func (s *Store) DeleteCompetitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM competitors WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- InsightStore -----------------------------------------------------------

type insightRow struct {
	ID        string    `db:"id"`
	MarketID  string    `db:"market_id"`
	OwnerID   string    `db:"owner_id"`
	Prompt    string    `db:"prompt"`
	Content   string    `db:"content"`
	Model     string    `db:"model"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) CreateInsight(ctx context.Context, i insight.Insight) (insight.Insight, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	i.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (id, market_id, owner_id, prompt, content, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, i.ID, i.MarketID, i.OwnerID, i.Prompt, i.Content, i.Model, i.CreatedAt)
	if err != nil {
		return insight.Insight{}, mapError(err)
	}
	return i, nil
}

func (s *Store) ListInsights(ctx context.Context, marketID string) ([]insight.Insight, error) {
	var rows []insightRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, market_id, owner_id, prompt, content, model, created_at
		FROM insights WHERE market_id = $1 ORDER BY created_at
	`, marketID)
	if err != nil {
		return nil, mapError(err)
	}
	result := make([]insight.Insight, 0, len(rows))
	for _, row := range rows {
		result = append(result, insight.Insight(row))
	}
	return result, nil
}
