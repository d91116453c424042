package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/buildtrack/buildtrack-backend/internal/auth"
	"github.com/buildtrack/buildtrack-backend/internal/config"
	"github.com/buildtrack/buildtrack-backend/internal/db"
	"github.com/buildtrack/buildtrack-backend/internal/filestore"
	"github.com/buildtrack/buildtrack-backend/internal/logging"
	"github.com/buildtrack/buildtrack-backend/internal/middleware"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser/openai"
	"github.com/buildtrack/buildtrack-backend/internal/tracker"
)

const shutdownTimeout = 30 * time.Second

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Connect(cfg.Database, log); err != nil {
		return err
	}
	if err := auth.Init(db.DB, cfg.Database.Schema); err != nil {
		return err
	}
	store, err := tracker.Init(db.DB, cfg.Database.Schema)
	if err != nil {
		return err
	}

	files, err := filestore.FromConfig(ctx, cfg.Uploads)
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}

	extractor := openai.NewClient(openai.Config{
		APIKey:    cfg.Parser.APIKey,
		BaseURL:   cfg.Parser.BaseURL,
		Model:     cfg.Parser.Model,
		MaxTokens: cfg.Parser.MaxTokens,
		Timeout:   cfg.Parser.Timeout,
	}, log)
	pipeline := receiptparser.NewPipeline(files, extractor, store, log)
	queue := receiptparser.NewQueue(pipeline, log,
		receiptparser.WithWorkers(cfg.Parser.Workers),
		receiptparser.WithQueueSize(cfg.Parser.QueueSize),
	)

	authHandler := auth.NewHandler(db.DB, cfg.Session.TTL, cfg.Session.SecureCookie)
	trackerHandler := tracker.NewHandler(store, files, queue, cfg.Uploads.MaxBytes)

	apiLimiter := middleware.NewRateLimiter(cfg.RateLimit.APIRequests, cfg.RateLimit.APIWindow,
		"Too many requests, please try again later.")
	uploadLimiter := middleware.NewRateLimiter(cfg.RateLimit.UploadRequests, cfg.RateLimit.UploadWindow,
		"Too many uploads, please try again later.")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Middleware(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Get("/", RootHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimiter.Middleware)
		r.Mount("/auth", auth.SetupRoutes(authHandler))
		r.Mount("/", tracker.SetupRoutes(trackerHandler, auth.SessionInfo{DB: db.DB}, uploadLimiter))
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	return queue.Shutdown(shutdownCtx)
}
