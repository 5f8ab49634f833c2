// Package opportunity defines market opportunities and their scoring inputs.
package opportunity

import "time"

// Opportunity is a candidate blue-ocean play within a market. Scoring inputs
// are 0-10 analyst estimates; Score is derived, never set directly.
type Opportunity struct {
	ID               string    `json:"id"`
	MarketID         string    `json:"market_id"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	MarketSize       float64   `json:"market_size"`
	CompetitionLevel float64   `json:"competition_level"`
	Feasibility      float64   `json:"feasibility"`
	Score            float64   `json:"score"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
