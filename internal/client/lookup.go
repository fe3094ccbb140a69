package client

import (
	"context"
	"errors"

	"clanchecker/service/internal/metrics"
	"clanchecker/service/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Lookup fetches a player and folds every failure into an unavailable result.
// It never returns an error; failures are logged and counted.
func (c *Client) Lookup(ctx context.Context, playerTag string) models.LookupResult {
	player, err := c.fetchThroughBreaker(ctx, playerTag)
	if err == nil {
		metrics.RecordLookup("found")
		return models.Found(player)
	}

	outcome := "error"
	switch {
	case errors.Is(err, ErrPlayerNotFound):
		outcome = "not_found"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
	}
	metrics.RecordLookup(outcome)

	log.Warn().
		Err(err).
		Str("player_tag", playerTag).
		Str("outcome", outcome).
		Msg("Player lookup failed")

	return models.Unavailable(err)
}

func (c *Client) fetchThroughBreaker(ctx context.Context, playerTag string) (*models.Player, error) {
	if c.breaker == nil {
		return c.FetchPlayer(ctx, playerTag)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.FetchPlayer(ctx, playerTag)
	})
	if err != nil {
		return nil, err
	}
	return out.(*models.Player), nil
}
