package main

import (
	"context"
	"time"
)

// janitor removes expired sessions and reset tokens every interval until
// ctx ends.
func (app *application) janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			app.prune(ctx, now)
		}
	}
}

func (app *application) prune(ctx context.Context, now time.Time) {
	sessions, tokens, err := app.store.Prune(ctx, now)
	if err != nil {
		app.logger.Error("prune expired records", "error", err)
		return
	}
	if sessions > 0 || tokens > 0 {
		app.logger.Info("pruned expired records", "sessions", sessions, "tokens", tokens)
	}
}
