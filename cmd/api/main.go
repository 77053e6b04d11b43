package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"repovoice/internal/ai"
	"repovoice/internal/api"
	"repovoice/internal/config"
	"repovoice/internal/repo"
	"repovoice/internal/store"
	"repovoice/internal/telephony"
	"repovoice/internal/voice"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("repovoice-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	logger.Info().Str("model", cfg.GeminiModel).Str("log_level", cfg.LogLevel).Msg("starting repovoice api")

	ctx := context.Background()

	// Metadata store: Postgres when a database URL is configured, otherwise
	// in-memory for the lifetime of the process.
	var st store.Store
	if cfg.Database != "" {
		pg, err := store.NewPostgres(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		st = pg
		logger.Info().Msg("using postgres metadata store")
	} else {
		st = store.NewMemoryStore()
		logger.Info().Msg("using in-memory metadata store")
	}

	repos, err := repo.NewService(cfg.UploadDir, cfg.TempDir)
	if err != nil {
		log.Fatalf("Failed to initialize repository service: %v", err)
	}

	aiClient, err := ai.NewClient(ctx, &ai.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	voiceSvc, err := voice.NewService(cfg.AudioDir, voice.NewGoogleSynthesizer())
	if err != nil {
		log.Fatalf("Failed to initialize voice service: %v", err)
	}

	tel := telephony.NewClient(cfg.BlandAPIKey, cfg.BlandAPIURL)

	h := api.NewHandler(&cfg, st, repos, aiClient, voiceSvc, tel)

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(h.Routes()),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
