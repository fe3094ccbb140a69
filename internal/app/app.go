// Package app assembles the refresh pipeline from configuration.
package app

import (
	"context"
	"fmt"

	"clanchecker/service/internal/batch"
	"clanchecker/service/internal/cache"
	"clanchecker/service/internal/client"
	"clanchecker/service/internal/config"
	"clanchecker/service/internal/refresh"
	"clanchecker/service/internal/roster"
	"clanchecker/service/internal/sheets"

	"github.com/rs/zerolog/log"
)

// App holds the wired components shared by the binaries
type App struct {
	Store    *cache.Store
	Client   *client.Client
	Pipeline *refresh.Pipeline

	mirror *cache.RedisCache
}

// New builds the lookup client, sheet source, cache and pipeline
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	cocClient := client.NewClient(client.Config{
		BaseURL:            cfg.CocBaseURL,
		Timeout:            cfg.CocTimeout,
		Tokens:             tokenSource(cfg),
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	})
	log.Info().
		Str("base_url", cfg.CocBaseURL).
		Bool("developer_login", cfg.UsesDeveloperLogin()).
		Msg("Clash of Clans client initialized")

	source, err := sheets.NewSource(ctx, sheets.Config{
		SheetID:  cfg.SheetID,
		Range:    cfg.SheetRange,
		APIKey:   cfg.GoogleAPIKey,
		Endpoint: cfg.SheetsEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet source: %w", err)
	}

	a := &App{
		Store:  cache.NewStore(),
		Client: cocClient,
	}

	deps := refresh.Deps{
		Source:   source,
		Columns:  columns(cfg),
		Auth:     cocClient,
		Enricher: batch.NewEnricher(cocClient, cfg.BatchSize, cfg.BatchDelay),
		Store:    a.Store,
	}

	if cfg.RedisEnabled {
		mirror, err := cache.NewRedisCache(cache.Config{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without snapshot mirror")
		} else {
			a.mirror = mirror
			deps.Mirror = mirror
			log.Info().
				Str("addr", cfg.RedisAddr()).
				Str("key", cfg.RedisKey).
				Msg("Redis snapshot mirror connected")
		}
	}

	a.Pipeline = refresh.NewPipeline(deps)
	return a, nil
}

// Close releases external connections
func (a *App) Close() {
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
}

func tokenSource(cfg *config.Config) client.TokenSource {
	if cfg.UsesDeveloperLogin() {
		return client.NewDeveloperLogin(cfg.CocDeveloperURL, cfg.CocEmail, cfg.CocPassword, cfg.CocKeyName, cfg.CocTimeout)
	}
	return client.StaticToken(cfg.CocAPIToken)
}

func columns(cfg *config.Config) roster.ColumnMap {
	return roster.ColumnMap{
		PlayerName:       cfg.ColumnPlayerName,
		PlayerTag:        cfg.ColumnPlayerTag,
		TownHall:         cfg.ColumnTownHall,
		DiscordUsername:  cfg.ColumnDiscordUsername,
		DiscordUserID:    cfg.ColumnDiscordUserID,
		AssignedClanName: cfg.ColumnAssignedClanName,
		AssignedClanTag:  cfg.ColumnAssignedClanTag,
	}
}
