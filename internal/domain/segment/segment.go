// Package segment defines customer segments within a market.
package segment

import "time"

// Segment is a customer group targeted by an analysis.
type Segment struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"market_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SizeBand    string    `json:"size_band,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
