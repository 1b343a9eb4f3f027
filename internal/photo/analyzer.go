package photo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"lojavox/internal/openai"
	"lojavox/pkg/cache"
	"lojavox/pkg/logger"
	"lojavox/pkg/resilience"

	"go.uber.org/zap"
)

// MaxPendentesPerPhoto caps auto-generated pendentes per image. The
// schema asks the model for the same bound, but the post-parse cut is
// the real invariant.
const MaxPendentesPerPhoto = 2

// AnalysisResult is what one photo yields
type AnalysisResult struct {
	Description        string   `json:"description"`
	ProblemsDetected   []string `json:"problemsDetected"`
	SuggestedPendentes []string `json:"suggestedPendentes"`
	Severity           string   `json:"severity"`
}

// BatchItem pairs one input URL with its outcome. A batch never fails
// as a whole: each item carries its own Result or Err.
type BatchItem struct {
	URL    string
	Result *AnalysisResult
	Err    error
}

// VisionClient is the image-capable provider
type VisionClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
	VisionModel() string
}

type Analyzer struct {
	llm   VisionClient
	cache cache.Cache
	pool  *resilience.Semaphore
}

// NewAnalyzer builds an analyzer whose batch fan-out never runs more
// than poolSize concurrent vision calls. cache may be nil.
func NewAnalyzer(llm VisionClient, c cache.Cache, poolSize int) *Analyzer {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Analyzer{
		llm:   llm,
		cache: c,
		pool:  resilience.NewSemaphore(poolSize),
	}
}

const analysisSystem = `És um assistente especializado em análise de inspeções de lojas.
Analisa fotos de lojas e identifica problemas relacionados com:
- Vidros rachados ou danificados
- Desorganização do espaço
- Sinalética danificada ou em falta
- Problemas de limpeza
- Equipamentos danificados
- Problemas de segurança (EPIs, extintores, etc.)
- Estado geral das instalações

Sê específico e objetivo nas tuas observações.

IMPORTANTE: Gera NO MÁXIMO 2 pendentes por foto. Prioriza os problemas mais críticos ou urgentes.
Se identificares mais de 2 problemas, agrupa-os ou seleciona apenas os 2 mais importantes.`

const analysisSchema = `{
	"type": "object",
	"properties": {
		"description": {
			"type": "string",
			"description": "Descrição breve do que está visível na foto (máx 100 caracteres)"
		},
		"problemsDetected": {
			"type": "array",
			"description": "Lista de problemas identificados na foto",
			"items": {"type": "string"}
		},
		"suggestedPendentes": {
			"type": "array",
			"description": "Lista de pendentes sugeridos baseados nos problemas (MÁXIMO 2 pendentes - priorizar os mais críticos)",
			"items": {"type": "string"}
		},
		"severity": {
			"type": "string",
			"enum": ["low", "medium", "high"],
			"description": "Gravidade geral dos problemas: low (cosmético), medium (requer atenção), high (urgente/segurança)"
		}
	},
	"required": ["description", "problemsDetected", "suggestedPendentes", "severity"],
	"additionalProperties": false
}`

// AnalyzePhoto runs one vision call for one image. Results are cached
// per URL so repeated submissions of the same image skip the provider.
func (a *Analyzer) AnalyzePhoto(ctx context.Context, imageURL string) (*AnalysisResult, error) {
	if imageURL == "" {
		return nil, errors.New("empty image URL")
	}

	cacheKey := cache.PhotoAnalysisCacheKey(imageURL)
	if a.cache != nil {
		var cached AnalysisResult
		if err := a.cache.Get(ctx, cacheKey, &cached); err == nil {
			logger.Debug("Photo analysis served from cache", zap.String("url", imageURL))
			return &cached, nil
		}
	}

	resp, err := a.llm.ChatCompletion(ctx, openai.ChatRequest{
		Model: a.llm.VisionModel(),
		Messages: []openai.Message{
			{Role: "system", Content: analysisSystem},
			{Role: "user", Content: []openai.ContentPart{
				{
					Type: "text",
					Text: "Analisa esta foto de uma loja e identifica problemas visíveis. Gera pendentes específicos se necessário.",
				},
				{
					Type:     "image_url",
					ImageURL: &openai.ImageURL{URL: imageURL, Detail: "high"},
				},
			}},
		},
		ResponseFormat: &openai.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openai.JSONSchema{
				Name:   "photo_analysis",
				Strict: true,
				Schema: json.RawMessage(analysisSchema),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("photo analysis call failed: %w", err)
	}

	content := resp.Content()
	if content == "" {
		return nil, errors.New("empty photo analysis response")
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse photo analysis: %w", err)
	}

	if len(result.SuggestedPendentes) > MaxPendentesPerPhoto {
		result.SuggestedPendentes = result.SuggestedPendentes[:MaxPendentesPerPhoto]
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey, result); err != nil {
			logger.Warn("Failed to cache photo analysis", zap.Error(err))
		}
	}

	return &result, nil
}

// AnalyzePhotos fans one analysis out per URL across the bounded pool.
// Items come back in input order; a failed item never sinks the batch.
func (a *Analyzer) AnalyzePhotos(ctx context.Context, imageURLs []string) []BatchItem {
	items := make([]BatchItem, len(imageURLs))

	var wg sync.WaitGroup
	for i, url := range imageURLs {
		items[i].URL = url

		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()

			if err := a.pool.Acquire(ctx); err != nil {
				items[i].Err = err
				return
			}
			defer a.pool.Release()

			items[i].Result, items[i].Err = a.AnalyzePhoto(ctx, url)
		}(i, url)
	}
	wg.Wait()

	return items
}
