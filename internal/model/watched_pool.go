package model

import "time"

// WatchedPool links a user to a pool they follow.
type WatchedPool struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	PoolID         int64     `json:"pool_id"`
	AlertThreshold *float64  `json:"alert_threshold,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Joined pool fields for display.
	Pool Pool `json:"pool"`
}
