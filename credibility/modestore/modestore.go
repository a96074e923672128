// Persistent global moderation mode (Normal or Elevated).
//
// Includes an interface and implementations using in-process memory, redis,
// and a relational settings table.
package modestore

import (
	"context"
	"time"
)

// Name of the setting which holds the mode. The stored value is a JSON boolean.
const SettingKey = "is_review_bombing_active"

// Active means Elevated: new posts skip scoring and are queued for manual review.
type Mode struct {
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Mode) String() string {
	if m.Active {
		return "elevated"
	}
	return "normal"
}

// Implementations must treat Set as idempotent: activating an already-active
// mode is not an error. A store with no recorded mode reports Normal.
type ModeStore interface {
	Get(ctx context.Context) (Mode, error)
	Set(ctx context.Context, active bool, ts time.Time) error
}
