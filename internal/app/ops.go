package app

import (
	"context"
	"fmt"
	"time"

	"glowgo/internal/provider"
)

// Seed loads provider catalog data into the database. An empty path uses the
// embedded demo catalog.
func (a *App) Seed(ctx context.Context, path string) error {
	var data []byte
	if path != "" {
		b, err := provider.LoadSeedFile(path)
		if err != nil {
			return err
		}
		data = b
	}

	if err := a.Providers.Seed(ctx, data); err != nil {
		return fmt.Errorf("seed providers: %w", err)
	}

	count, err := a.Providers.CountProviders(ctx)
	if err != nil {
		return fmt.Errorf("count providers: %w", err)
	}
	a.Log.Info("catalog seeded", map[string]interface{}{"providers": count})
	return nil
}

// RefreshFromYelp pulls providers for a search term and location from the
// Yelp Fusion API into the catalog.
func (a *App) RefreshFromYelp(ctx context.Context, term, location string, limit int) (int, error) {
	return a.Ingestor.RefreshFromYelp(ctx, term, location, limit)
}

// ImportFromURL scrapes a salon booking page and imports the providers and
// service menus found on it.
func (a *App) ImportFromURL(ctx context.Context, pageURL string) (int, error) {
	return a.Ingestor.ImportFromURL(ctx, pageURL)
}

// CleanupMetrics removes execution metrics older than the retention window.
func (a *App) CleanupMetrics(ctx context.Context, olderThanDays int) (int64, error) {
	deleted, err := a.Metrics.Cleanup(ctx, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("cleanup metrics: %w", err)
	}
	a.Log.Info("metrics cleanup complete", map[string]interface{}{
		"older_than_days": olderThanDays,
		"deleted":         deleted,
	})
	return deleted, nil
}

// CleanupSessions removes conversation sessions untouched for longer than
// the retention window.
func (a *App) CleanupSessions(ctx context.Context, olderThanDays int) (int64, error) {
	deleted, err := a.Sessions.DeleteStale(ctx, time.Duration(olderThanDays)*24*time.Hour)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	a.Log.Info("session cleanup complete", map[string]interface{}{
		"older_than_days": olderThanDays,
		"deleted":         deleted,
	})
	return deleted, nil
}
