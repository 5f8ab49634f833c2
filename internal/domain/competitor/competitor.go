// Package competitor defines competitors tracked per market.
package competitor

import "time"

// Competitor is an incumbent player in a market.
type Competitor struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Name      string    `json:"name"`
	Strengths string    `json:"strengths,omitempty"`
	Weakness  string    `json:"weakness,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
