package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/broker"
	"github.com/myrjola/whodunit/internal/cache"
	"github.com/myrjola/whodunit/internal/db"
	"github.com/myrjola/whodunit/internal/envstruct"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/logging"
	"github.com/myrjola/whodunit/internal/pprofserver"
	"github.com/myrjola/whodunit/internal/repositories"
	"github.com/myrjola/whodunit/internal/retrieval"
)

type config struct {
	Addr      string `env:"WHODUNIT_ADDR" envDefault:"localhost:4000"`
	PprofPort string `env:"WHODUNIT_PPROF_PORT" envDefault:":6060"`
	SQLiteURL string `env:"WHODUNIT_SQLITE_URL" envDefault:"./whodunit.sqlite"`
	OpenAIKey string `env:"OPENAI_API_KEY"`
	Model     string `env:"WHODUNIT_MODEL" envDefault:""`
	CacheSize int    `env:"WHODUNIT_CACHE_SIZE" envDefault:"200"`
}

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	generator      game.Generator
	intros         *cache.Cache[string]
	index          *retrieval.Index
	caseFiles      *repositories.CaseFileRepository
	answers        *broker.AnswerBroker
}

func main() {
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	})))

	if err := run(context.Background(), logger); err != nil {
		logger.Error("server failed", errors.SlogError(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	// A missing .env file is fine; the environment may be set by the process manager.
	_ = godotenv.Load()

	var cfg config
	if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
		return errors.Wrap(err, "read configuration")
	}

	// pprof listens on localhost so that it's not open to the world.
	pprofserver.Launch(cfg.PprofPort, logger)

	dbs, err := db.NewDatabase(cfg.SQLiteURL)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SQLiteURL))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db", slog.String("url", cfg.SQLiteURL))

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite.DB, 24*time.Hour)
	sessionManager.Lifetime = 12 * time.Hour

	client := ai.NewClient(cfg.OpenAIKey, cfg.Model)
	intros := cache.New[string](cfg.CacheSize, cache.DefaultTTL)
	index := retrieval.NewIndex(logger, client, retrieval.IndexOptions{})

	// Expiry is otherwise lazy; sweep hourly so abandoned sessions do not
	// pin introductions for the cache's whole capacity.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			intros.CleanupExpired()
		}
	}()

	answers := broker.NewAnswerBroker()
	go answers.Start()
	defer answers.Stop()

	app := application{
		logger:         logger,
		sessionManager: sessionManager,
		generator:      ai.NewGenerator(logger, client),
		intros:         intros,
		index:          index,
		caseFiles:      repositories.NewCaseFileRepository(dbs, logger),
		answers:        answers,
	}

	return app.configureAndStartServer(ctx, cfg.Addr)
}
