package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lojavox/internal/photo"
	"lojavox/internal/queue"
	"lojavox/internal/sugestao"
	"lojavox/pkg/logger"
	"lojavox/pkg/model"

	"go.uber.org/zap"
)

const processTimeout = 2 * time.Minute

// RelatorioStore serves the persisted report a task refers to
type RelatorioStore interface {
	GetRelatorioByID(ctx context.Context, id string, tipo model.TipoRelatorio) (*model.Relatorio, error)
}

// SuggestionGenerator produces and persists suggestions for a report
type SuggestionGenerator interface {
	Generate(ctx context.Context, req sugestao.GenerateRequest) []model.Sugestao
}

// PhotoAnalyzer fans vision analysis out over a report's photos
type PhotoAnalyzer interface {
	AnalyzePhotos(ctx context.Context, imageURLs []string) []photo.BatchItem
}

// Processor consumes report-created events and runs the suggestion
// job for each one. Photo findings feed the suggestion prompt.
type Processor struct {
	store     RelatorioStore
	generator SuggestionGenerator
	analyzer  PhotoAnalyzer
}

func NewProcessor(store RelatorioStore, generator SuggestionGenerator, analyzer PhotoAnalyzer) *Processor {
	return &Processor{store: store, generator: generator, analyzer: analyzer}
}

// ProcessTask handles one queue message. A returned error means the
// message should be redelivered; suggestion-generation failures are
// swallowed by the generator and never requeue the task.
func (p *Processor) ProcessTask(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	var task queue.RelatorioCriadoTask
	if err := json.Unmarshal(body, &task); err != nil {
		logger.Error("Failed to unmarshal task", zap.Error(err))
		// Malformed payloads never become valid; drop instead of requeue
		return nil
	}

	logger.Info("Processing relatorio",
		zap.String("relatorio_id", task.RelatorioID),
		zap.String("tipo", string(task.Tipo)))

	relatorio, err := p.store.GetRelatorioByID(ctx, task.RelatorioID, task.Tipo)
	if err != nil {
		return fmt.Errorf("failed to load relatorio %s: %w", task.RelatorioID, err)
	}

	conteudo := formatConteudo(relatorio)
	if p.analyzer != nil && len(task.FotoURLs) > 0 {
		conteudo += formatAnaliseFotos(p.analyzer.AnalyzePhotos(ctx, task.FotoURLs))
	}

	sugestoes := p.generator.Generate(ctx, sugestao.GenerateRequest{
		RelatorioID: task.RelatorioID,
		Tipo:        task.Tipo,
		LojaID:      task.LojaID,
		LojaNome:    relatorio.LojaNome,
		GestorID:    task.GestorID,
		Conteudo:    conteudo,
	})

	logger.Info("Relatorio processed",
		zap.String("relatorio_id", task.RelatorioID),
		zap.Int("sugestoes", len(sugestoes)))

	return nil
}

func formatConteudo(r *model.Relatorio) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Data da Visita: %s\n\n", r.DataVisita.Format("02/01/2006"))
	fmt.Fprintf(&b, "Categoria: %s\n\n", r.Categoria)
	fmt.Fprintf(&b, "Descrição:\n%s", r.Descricao)
	return b.String()
}

// formatAnaliseFotos renders successful photo analyses as an extra
// prompt section. Failed items are skipped; the suggestion job still
// runs on whatever the report itself says.
func formatAnaliseFotos(items []photo.BatchItem) string {
	var b strings.Builder
	for _, item := range items {
		if item.Err != nil {
			logger.Warn("Photo analysis failed for report photo",
				zap.String("url", item.URL), zap.Error(item.Err))
			continue
		}
		if b.Len() == 0 {
			b.WriteString("\n\nAnálise de Fotos:")
		}
		fmt.Fprintf(&b, "\n- %s (gravidade: %s)", item.Result.Description, item.Result.Severity)
		for _, problem := range item.Result.ProblemsDetected {
			fmt.Fprintf(&b, "\n  - %s", problem)
		}
	}
	return b.String()
}
