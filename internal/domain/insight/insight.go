// Package insight defines AI-generated analysis records.
package insight

import "time"

// Insight is the stored result of one AI generation call for a market.
type Insight struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	OwnerID   string    `json:"owner_id"`
	Prompt    string    `json:"prompt"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
