package engine

import (
	"context"

	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/monitor"
)

// Interface for a type that can alert operators about moderation mode changes
type Notifier interface {
	SendActivation(ctx context.Context, rep *monitor.Report) error
	SendModeChange(ctx context.Context, mode modestore.Mode, source string) error
}
