package engine

import (
	"context"
	"fmt"

	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/modestore"
)

func (eng *Engine) ModerationMode(ctx context.Context) (modestore.Mode, error) {
	return eng.Modes.Get(ctx)
}

// Returns the moderation mode to Normal. This is the only way out of Elevated
// mode; nothing decays automatically.
func (eng *Engine) ResetModerationMode(ctx context.Context, source string) (modestore.Mode, error) {
	return eng.setMode(ctx, false, source)
}

// Forces Elevated mode, as if review bombing had been detected.
func (eng *Engine) ActivateModerationMode(ctx context.Context, source string) (modestore.Mode, error) {
	return eng.setMode(ctx, true, source)
}

func (eng *Engine) setMode(ctx context.Context, active bool, source string) (modestore.Mode, error) {
	ctx, span := tracer.Start(ctx, "SetModerationMode")
	defer span.End()

	mode := modestore.Mode{Active: active, UpdatedAt: eng.Now()}
	if err := eng.Modes.Set(ctx, mode.Active, mode.UpdatedAt); err != nil {
		return modestore.Mode{}, fmt.Errorf("setting moderation mode: %w", err)
	}
	modeChanges.WithLabelValues(mode.String(), "operator").Inc()
	if active {
		eng.incrementCounter(ctx, countstore.NameActivation, "operator")
	}
	eng.Logger.Warn("moderation mode changed by operator", "mode", mode.String(), "source", source)

	if eng.Notifier != nil {
		if err := eng.Notifier.SendModeChange(ctx, mode, source); err != nil {
			notificationErrors.Inc()
			eng.Logger.Error("failed to send mode change notification", "err", err)
		}
	}
	return mode, nil
}
