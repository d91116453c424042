// Package cli implements the buildtrackctl operator commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/buildtrack/buildtrack-backend/internal/config"
	"github.com/buildtrack/buildtrack-backend/internal/db"
	"github.com/buildtrack/buildtrack-backend/internal/filestore"
	"github.com/buildtrack/buildtrack-backend/internal/logging"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser/openai"
	"github.com/buildtrack/buildtrack-backend/internal/tracker"
)

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	warnLabel = color.New(color.FgYellow).SprintFunc()
	failLabel = color.New(color.FgRed).SprintFunc()
)

// env is what every command starts from: the same configuration the server
// reads, with a console logger on stderr.
type env struct {
	cfg config.Config
	log zerolog.Logger
}

func loadEnv() (*env, error) {
	_ = godotenv.Load(".env.local")
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &env{cfg: cfg, log: logging.New(cfg.Log.Level, "console", os.Stderr)}, nil
}

func (e *env) openDB() (*gorm.DB, error) {
	return db.Open(e.cfg.Database, e.log)
}

func (e *env) openStorage() (*tracker.Storage, error) {
	d, err := e.openDB()
	if err != nil {
		return nil, err
	}
	return tracker.NewStorage(d)
}

func (e *env) openFiles(ctx context.Context) (filestore.Store, error) {
	return filestore.FromConfig(ctx, e.cfg.Uploads)
}

func (e *env) pipeline(files filestore.Store, store *tracker.Storage) *receiptparser.Pipeline {
	p := e.cfg.Parser
	client := openai.NewClient(openai.Config{
		APIKey:    p.APIKey,
		BaseURL:   p.BaseURL,
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
		Timeout:   p.Timeout,
	}, e.log)
	return receiptparser.NewPipeline(files, client, store, e.log)
}
