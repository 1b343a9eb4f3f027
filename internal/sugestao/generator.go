package sugestao

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lojavox/internal/extractor"
	"lojavox/internal/openai"
	"lojavox/pkg/logger"
	"lojavox/pkg/model"

	"go.uber.org/zap"
)

// MaxSugestoes bounds how many suggestions one report may yield
const MaxSugestoes = 3

// Store persists suggestions and serves the store's recent history
type Store interface {
	CreateSugestao(ctx context.Context, sug *model.Sugestao) error
	GetSugestoesRecentesByLoja(ctx context.Context, lojaID string, limit int) ([]model.Sugestao, error)
}

// ChatClient is the generative provider
type ChatClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
	ChatModel() string
}

// GenerateRequest identifies the report the suggestions belong to
type GenerateRequest struct {
	RelatorioID string
	Tipo        model.TipoRelatorio
	LojaID      string
	LojaNome    string
	GestorID    string
	Conteudo    string
}

type Generator struct {
	llm   ChatClient
	store Store
}

func NewGenerator(llm ChatClient, store Store) *Generator {
	return &Generator{llm: llm, store: store}
}

const generatorSystem = "És um consultor de operações de retalho especializado em melhoria contínua. Dás sugestões práticas e específicas em português de Portugal."

const sugestoesSchema = `{
	"type": "object",
	"properties": {
		"sugestoes": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"sugestao": {"type": "string"},
					"categoria": {"type": "string", "enum": ["stock", "epis", "limpeza", "atendimento", "documentacao", "equipamentos", "geral"]},
					"prioridade": {"type": "string", "enum": ["baixa", "media", "alta"]}
				},
				"required": ["sugestao", "categoria", "prioridade"],
				"additionalProperties": false
			}
		}
	},
	"required": ["sugestoes"],
	"additionalProperties": false
}`

type sugestaoDraft struct {
	Sugestao   string `json:"sugestao"`
	Categoria  string `json:"categoria"`
	Prioridade string `json:"prioridade"`
}

// Generate asks the model for improvement suggestions and persists
// them. The report flow never sees a suggestion failure: any error
// along the way logs and yields an empty result.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) []model.Sugestao {
	anteriores, err := g.store.GetSugestoesRecentesByLoja(ctx, req.LojaID, 5)
	if err != nil {
		logger.Warn("Failed to load prior suggestions, continuing without",
			zap.String("loja_id", req.LojaID), zap.Error(err))
		anteriores = nil
	}

	resp, err := g.llm.ChatCompletion(ctx, openai.ChatRequest{
		Model: g.llm.ChatModel(),
		Messages: []openai.Message{
			{Role: "system", Content: generatorSystem},
			{Role: "user", Content: buildPrompt(req, anteriores)},
		},
		ResponseFormat: &openai.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openai.JSONSchema{
				Name:   "sugestoes_response",
				Strict: true,
				Schema: json.RawMessage(sugestoesSchema),
			},
		},
	})
	if err != nil {
		logger.Error("Suggestion generation failed",
			zap.String("relatorio_id", req.RelatorioID), zap.Error(err))
		return nil
	}

	content := resp.Content()
	if content == "" {
		return nil
	}

	var parsed struct {
		Sugestoes []sugestaoDraft `json:"sugestoes"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		logger.Error("Suggestion response is not valid JSON",
			zap.String("relatorio_id", req.RelatorioID), zap.Error(err))
		return nil
	}

	drafts := parsed.Sugestoes
	if len(drafts) > MaxSugestoes {
		drafts = drafts[:MaxSugestoes]
	}

	saved := make([]model.Sugestao, 0, len(drafts))
	for _, draft := range drafts {
		sug := model.Sugestao{
			RelatorioID:   req.RelatorioID,
			TipoRelatorio: req.Tipo,
			LojaID:        req.LojaID,
			GestorID:      req.GestorID,
			Categoria:     model.SugestaoCategoria(draft.Categoria),
			Prioridade:    model.SugestaoPrioridade(draft.Prioridade),
			Sugestao:      draft.Sugestao,
		}
		if err := g.store.CreateSugestao(ctx, &sug); err != nil {
			logger.Error("Failed to persist suggestion",
				zap.String("relatorio_id", req.RelatorioID), zap.Error(err))
			continue
		}
		saved = append(saved, sug)
	}

	logger.Info("Suggestions generated",
		zap.String("relatorio_id", req.RelatorioID),
		zap.Int("count", len(saved)))

	return saved
}

func buildPrompt(req GenerateRequest, anteriores []model.Sugestao) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analisa o seguinte relatório de visita à loja %q e sugere melhorias concretas e acionáveis.\n\n", req.LojaNome)
	fmt.Fprintf(&b, "CONTEÚDO DO RELATÓRIO:\n%s\n\n", req.Conteudo)

	if len(anteriores) > 0 {
		b.WriteString("SUGESTÕES ANTERIORES (evita repetir):\n")
		for _, s := range anteriores {
			fmt.Fprintf(&b, "- %s\n", s.Sugestao)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Gera 1 a 3 sugestões de melhoria que sejam:
- Específicas e acionáveis
- Baseadas no conteúdo do relatório
- Diferentes das sugestões anteriores
- Em português de Portugal

Para cada sugestão, indica:
- categoria: "stock", "epis", "limpeza", "atendimento", "documentacao", "equipamentos" ou "geral"
- prioridade: "baixa", "media" ou "alta" (baseada na urgência do problema)

Se o relatório for muito positivo sem problemas, retorna uma lista vazia ou uma sugestão de manutenção.`)

	return b.String()
}

// FormatarRelatorioLivre renders a free-form draft as the plain text
// the suggestion prompt consumes.
func FormatarRelatorioLivre(draft *extractor.RelatorioLivreDraft, dataVisita time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Data da Visita: %s\n\n", dataVisita.Format("02/01/2006"))
	fmt.Fprintf(&b, "Descrição:\n%s", draft.Descricao)
	if len(draft.Pendentes) > 0 {
		b.WriteString("\n\nPendentes:")
		for _, p := range draft.Pendentes {
			fmt.Fprintf(&b, "\n- %s", p)
		}
	}
	return b.String()
}

// FormatarRelatorioCompleto renders a full draft as the plain text the
// suggestion prompt consumes. Empty sections are omitted.
func FormatarRelatorioCompleto(draft *extractor.RelatorioCompletoDraft, dataVisita time.Time) string {
	secoes := []string{fmt.Sprintf("Data da Visita: %s", dataVisita.Format("02/01/2006"))}

	if draft.ResumoSupervisao != "" {
		secoes = append(secoes, "Resumo da Supervisão: "+draft.ResumoSupervisao)
	}
	if len(draft.PontosPositivos) > 0 {
		secoes = append(secoes, "Pontos Positivos: "+strings.Join(draft.PontosPositivos, "; "))
	}
	if len(draft.PontosNegativos) > 0 {
		secoes = append(secoes, "Pontos Negativos: "+strings.Join(draft.PontosNegativos, "; "))
	}
	if draft.SugestoesMelhoria != "" {
		secoes = append(secoes, "Sugestões de Melhoria: "+draft.SugestoesMelhoria)
	}
	if len(draft.Pendentes) > 0 {
		secoes = append(secoes, "Pendentes: "+strings.Join(draft.Pendentes, "; "))
	}

	return strings.Join(secoes, "\n\n")
}
