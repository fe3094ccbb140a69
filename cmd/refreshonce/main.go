// Command refreshonce runs a single roster refresh and prints the enriched
// roster as JSON, for checking sheet and API credentials without the server.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"clanchecker/service/internal/app"
	"clanchecker/service/internal/config"
	"clanchecker/service/internal/query"
	"clanchecker/service/internal/refresh"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Logs go to stderr so stdout stays machine-readable
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.MustLoad()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize roster pipeline")
	}
	defer a.Close()

	snap, err := a.Pipeline.Refresh(ctx, refresh.TriggerManual)
	if err != nil {
		a.Close()
		log.Fatal().Err(err).Msg("Roster refresh failed")
	}

	inClan := 0
	for _, e := range snap.Data {
		if e.IsInAssignedClan {
			inClan++
		}
	}
	log.Info().
		Int("entries", len(snap.Data)).
		Int("in_clan", inClan).
		Int("not_in_clan", len(snap.Data)-inClan).
		Msg("Roster refreshed")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(query.Apply(snap, query.Filter{})); err != nil {
		log.Error().Err(err).Msg("Failed to write roster")
		os.Exit(1)
	}
}
