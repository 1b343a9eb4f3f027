package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lojavox/internal/config"
	"lojavox/internal/openai"
	"lojavox/internal/relatorio"
	"lojavox/internal/storage"
	"lojavox/pkg/logger"

	"go.uber.org/zap"
)

const runTimeout = 5 * time.Minute

// reporter runs one category report synthesis and exits. Scheduling is
// the platform's job (cron, systemd timer).
func main() {
	debug := true
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting lojavox reporter run")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	db, err := storage.NewPostgresStorage(cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
		return
	}
	defer db.Close()

	llm := openai.NewClient(openai.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		ChatModel:   cfg.OpenAI.ChatModel,
		VisionModel: cfg.OpenAI.VisionModel,
	})

	grouped, err := db.GetRelatoriosPorCategoria(ctx)
	if err != nil {
		logger.Fatal("Failed to load reports", zap.Error(err))
		return
	}

	if len(grouped) == 0 {
		logger.Info("No reports to synthesize, exiting")
		return
	}

	syn := relatorio.NewSynthesizer(llm, db)
	result, err := syn.Synthesize(ctx, grouped, "reporter")
	if err != nil {
		logger.Error("Synthesis finished with errors", zap.Error(err))
		// Aggregates are still valid; report them and exit non-zero
		fmt.Fprintf(os.Stderr, "categorias: %d\n", len(result.Graficos.DistribuicaoStatus))
		os.Exit(1)
	}

	logger.Info("Reporter run complete",
		zap.Int("categorias", len(grouped)),
		zap.Int("narrativa_len", len(result.Narrativa)))
}
