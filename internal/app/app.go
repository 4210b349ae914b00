// Package app wires configuration, storage, the matching pipeline and the
// conversational agent into a single runnable unit shared by the CLI, the
// HTTP API and the Telegram bot.
package app

import (
	"context"
	"fmt"
	"net/http"

	"glowgo/internal/booking"
	"glowgo/internal/calendar"
	"glowgo/internal/config"
	"glowgo/internal/conversation"
	"glowgo/internal/database"
	"glowgo/internal/httpapi"
	"glowgo/internal/ingest"
	"glowgo/internal/llm"
	"glowgo/internal/logger"
	"glowgo/internal/matching"
	"glowgo/internal/metrics"
	"glowgo/internal/provider"
	"glowgo/internal/user"
)

// App holds the application's dependencies.
type App struct {
	Cfg *config.Config
	Log logger.Logger

	DB        *database.DB
	Providers *provider.Repository
	Users     *user.Repository
	Bookings  *booking.Repository
	Sessions  *conversation.SessionRepository
	Metrics   *metrics.Store

	TextGen  llm.TextGenerator
	Pipeline *matching.Pipeline
	Agent    *conversation.Agent
	Ingestor *ingest.Ingestor
	API      *httpapi.Server
}

// New builds the full dependency graph from config. The returned App owns
// the database handle and the LLM client; release both via Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.NewStructured(cfg.LogLevel, cfg.LogFormat)

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	providers := provider.NewRepository(db.SQL)
	users := user.NewRepository(db.SQL)
	bookings := booking.NewRepository(db.SQL)
	sessions := conversation.NewSessionRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	textGen, err := newTextGenerator(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	weights := matching.DefaultWeights()
	if cfg.WeightsPath != "" {
		w, err := matching.LoadWeightsFromFile(cfg.WeightsPath)
		if err != nil {
			log.Warn("using default ranking weights", map[string]interface{}{"path": cfg.WeightsPath, "error": err})
		}
		weights = w
	}

	engine := matching.NewEngine(weights)
	fallback := matching.NewFallback(matching.DefaultFallbackConfig())
	pipeline := matching.NewPipeline(providers, engine, fallback, log)

	agent := conversation.NewAgent(sessions, pipeline, textGen, metricsStore, log, cfg.DefaultRadiusMiles)

	var yelp *ingest.YelpClient
	if cfg.YelpAPIKey != "" {
		yelp = ingest.NewYelpClient(cfg.YelpAPIKey)
	}
	ingestor := ingest.NewIngestor(providers, yelp, ingest.NewScraper(textGen), log)

	var analyzer *calendar.Analyzer
	if cfg.GoogleCalendarToken != "" {
		source, err := calendar.NewGoogleSource(ctx, cfg.GoogleCalendarToken, cfg.GoogleCalendarID)
		if err != nil {
			log.Warn("calendar disabled", map[string]interface{}{"error": err})
		} else {
			analyzer = calendar.NewAnalyzer(source, textGen, log)
		}
	}
	analyzerFor := func(ctx context.Context, token string) (*calendar.Analyzer, error) {
		source, err := calendar.NewGoogleSource(ctx, token, cfg.GoogleCalendarID)
		if err != nil {
			return nil, err
		}
		return calendar.NewAnalyzer(source, textGen, log), nil
	}

	api := httpapi.NewServer(pipeline, providers, bookings, users, agent, analyzer, analyzerFor, log, cfg.JWTSecret, cfg.DataPath, cfg.DefaultRadiusMiles)

	return &App{
		Cfg:       cfg,
		Log:       log,
		DB:        db,
		Providers: providers,
		Users:     users,
		Bookings:  bookings,
		Sessions:  sessions,
		Metrics:   metricsStore,
		TextGen:   textGen,
		Pipeline:  pipeline,
		Agent:     agent,
		Ingestor:  ingestor,
		API:       api,
	}, nil
}

// newTextGenerator prefers Gemini and falls back to Groq when only a Groq
// key is configured.
func newTextGenerator(ctx context.Context, cfg *config.Config) (llm.TextGenerator, error) {
	if cfg.GeminiAPIKey != "" {
		gen, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return gen, nil
	}
	return llm.NewGroqClient(cfg.GroqAPIKey), nil
}

// ListenAndServe runs the HTTP API until the context is cancelled.
func (a *App) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.Cfg.HTTPAddr,
		Handler: a.API.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http api listening", map[string]interface{}{"addr": a.Cfg.HTTPAddr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

// Close releases the database handle and, when the LLM client holds a
// connection, closes that too.
func (a *App) Close() {
	if closer, ok := a.TextGen.(llm.Closer); ok {
		if err := closer.Close(); err != nil {
			a.Log.Warn("failed to close llm client", map[string]interface{}{"error": err})
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Warn("failed to close database", map[string]interface{}{"error": err})
	}
}
