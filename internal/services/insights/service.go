// Package insights generates and stores AI market analyses.
package insights

import (
	"context"
	"fmt"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/domain/insight"
	"github.com/blueocean-labs/explorer-api/internal/domain/market"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/services/markets"
	"github.com/blueocean-labs/explorer-api/internal/storage"
	"github.com/blueocean-labs/explorer-api/internal/validation"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

const (
	maxPromptLen = 4000

	systemPrompt = "You are a market analyst specialising in blue-ocean strategy. " +
		"Given a market and a question, identify uncontested opportunity spaces, " +
		"underserved segments and differentiation angles. Be specific and concise."
)

// Completer is the AI provider surface the service depends on.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Service generates insights through the AI provider and records them.
type Service struct {
	store   storage.InsightStore
	markets *markets.Service
	ai      Completer
	model   string
	log     *logger.Logger
}

// NewService wires the service. model is recorded on each stored insight.
func NewService(store storage.InsightStore, marketsSvc *markets.Service, ai Completer, model string, log *logger.Logger) *Service {
	return &Service{store: store, markets: marketsSvc, ai: ai, model: model, log: log}
}

// Generate sanitizes the prompt, loads the market for context, calls the
// provider and persists the result. Provider failures surface as external
// errors; nothing is stored for a failed call.
func (s *Service) Generate(ctx context.Context, p principal.Projection, marketID, prompt string) (insight.Insight, error) {
	prompt = validation.SanitizeString(prompt)
	if err := validation.Required("prompt", prompt); err != nil {
		return insight.Insight{}, err
	}
	if err := validation.MaxLen("prompt", prompt, maxPromptLen); err != nil {
		return insight.Insight{}, err
	}

	m, err := s.markets.Authorize(ctx, p, marketID)
	if err != nil {
		return insight.Insight{}, err
	}

	content, err := s.ai.Complete(ctx, systemPrompt, buildPrompt(m, prompt))
	if err != nil {
		return insight.Insight{}, err
	}

	created, err := s.store.CreateInsight(ctx, insight.Insight{
		MarketID: marketID,
		OwnerID:  p.ID,
		Prompt:   prompt,
		Content:  content,
		Model:    s.model,
	})
	if err != nil {
		return insight.Insight{}, apperr.Internal("store insight", err)
	}

	s.log.WithContext(ctx).WithField("market_id", marketID).Info("insight generated")
	return created, nil
}

// List returns a market's stored insights.
func (s *Service) List(ctx context.Context, p principal.Projection, marketID string) ([]insight.Insight, error) {
	if _, err := s.markets.Authorize(ctx, p, marketID); err != nil {
		return nil, err
	}
	out, err := s.store.ListInsights(ctx, marketID)
	if err != nil {
		return nil, apperr.Internal("list insights", err)
	}
	return out, nil
}

// buildPrompt frames the user question with the market context.
func buildPrompt(m market.Market, prompt string) string {
	header := fmt.Sprintf("Market: %s", m.Name)
	if m.Industry != "" {
		header += fmt.Sprintf("\nIndustry: %s", m.Industry)
	}
	if m.Description != "" {
		header += fmt.Sprintf("\nDescription: %s", m.Description)
	}
	return header + "\n\nQuestion: " + prompt
}
