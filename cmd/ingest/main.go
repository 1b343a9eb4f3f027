package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"lojavox/internal/audio"
	"lojavox/internal/config"
	"lojavox/internal/extractor"
	"lojavox/internal/openai"
	"lojavox/internal/storage"
	"lojavox/pkg/logger"

	"go.uber.org/zap"
)

const runTimeout = 5 * time.Minute

// ingest pushes one recorded audio file through the pipeline: upload to
// object storage, transcribe, extract a structured report draft. The
// draft is printed as JSON for the caller to review and persist.
func main() {
	completo := flag.Bool("completo", false, "extract the full supervision draft instead of the free-form one")
	flag.Parse()

	debug := true
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ingest [-completo] <audio-file>")
		os.Exit(2)
	}
	audioPath := flag.Arg(0)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	store, err := storage.NewS3Storage(
		cfg.S3.Endpoint,
		cfg.S3.Region,
		cfg.S3.AccessKey,
		cfg.S3.SecretKey,
		cfg.S3.Bucket,
		cfg.S3.PublicBaseURL,
	)
	if err != nil {
		logger.Fatal("Failed to init S3 storage", zap.Error(err))
		return
	}

	llm := openai.NewClient(openai.Config{
		BaseURL:            cfg.OpenAI.BaseURL,
		APIKey:             cfg.OpenAI.APIKey,
		ChatModel:          cfg.OpenAI.ChatModel,
		VisionModel:        cfg.OpenAI.VisionModel,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
	})

	payload, err := os.ReadFile(audioPath)
	if err != nil {
		logger.Fatal("Failed to read audio file", zap.Error(err))
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(audioPath))
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	url, err := audio.NewIngestor(store).Ingest(ctx, payload, mimeType)
	if err != nil {
		logger.Fatal("Failed to ingest audio", zap.Error(err))
		return
	}

	result, err := audio.NewTranscriber(llm).Transcribe(ctx, audio.TranscriptionRequest{AudioURL: url})
	if err != nil {
		logger.Fatal("Failed to transcribe audio", zap.Error(err))
		return
	}

	logger.Info("Transcription complete",
		zap.String("url", url),
		zap.Float64("duration", result.Duration))

	ext := extractor.NewExtractor(llm)
	var draft interface{}
	if *completo {
		draft, err = ext.ExtractCompleto(ctx, result.Text)
	} else {
		draft, err = ext.ExtractLivre(ctx, result.Text)
	}
	if err != nil {
		logger.Fatal("Failed to extract report draft", zap.Error(err))
		return
	}

	out, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode draft", zap.Error(err))
		return
	}
	fmt.Println(string(out))
}
