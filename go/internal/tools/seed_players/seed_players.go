package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/dbconfig"
	"github.com/mcdev12/livedraft/go/internal/models"
	"github.com/mcdev12/livedraft/go/internal/player"
)

func main() {
	file := flag.String("file", "go/internal/assets/projections.json", "projections JSON (array of players)")
	season := flag.String("season", "", "season the projections belong to")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *season == "" {
		log.Fatal().Msg("-season is required")
	}

	ctx := context.Background()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to read projections")
	}
	var players []models.Player
	if err := json.Unmarshal(data, &players); err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to unmarshal projections")
	}

	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load database config")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	app := player.NewApp(player.NewRepository(pool), nil, 0)
	res, err := app.ImportPlayers(ctx, *season, players)
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	log.Info().
		Str("season", *season).
		Int("total", res.Total).
		Int("written", res.Written).
		Int("skipped", res.Skipped).
		Msg("players seeded")
}
