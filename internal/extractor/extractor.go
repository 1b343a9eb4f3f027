package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lojavox/internal/openai"
	"lojavox/pkg/logger"

	"go.uber.org/zap"
)

// ErrParse means the model output could not be trusted against the
// declared schema. There is no repair loop: the caller treats the
// extraction as failed and may ask the user to retry the operation.
var ErrParse = errors.New("failed to process transcription")

// MaxListItems caps every list field of an extracted draft. The schema
// asks the model for the same bound, but the in-process cap is the real
// invariant.
const MaxListItems = 5

// Categorias are the legal report categories
var Categorias = []string{
	"Supervisão Geral",
	"Problema Técnico",
	"Formação",
	"Auditoria",
	"Manutenção",
	"Outro",
}

// Estados are the legal follow-up states of a draft
var Estados = []string{
	"Em Progresso",
	"Concluído",
	"Pendente",
	"Requer Atenção",
}

// RelatorioLivreDraft is the typed draft extracted from a free-form
// visit transcription.
type RelatorioLivreDraft struct {
	Descricao            string   `json:"descricao"`
	Categoria            string   `json:"categoria"`
	EstadoAcompanhamento string   `json:"estadoAcompanhamento"`
	Pendentes            []string `json:"pendentes"`
}

// RelatorioCompletoDraft extends the free-form draft with structured
// positives, negatives and improvement suggestions.
type RelatorioCompletoDraft struct {
	ResumoSupervisao     string   `json:"resumoSupervisao"`
	Categoria            string   `json:"categoria"`
	EstadoAcompanhamento string   `json:"estadoAcompanhamento"`
	PontosPositivos      []string `json:"pontosPositivos"`
	PontosNegativos      []string `json:"pontosNegativos"`
	SugestoesMelhoria    string   `json:"sugestoesMelhoria"`
	Pendentes            []string `json:"pendentes"`
}

// ChatClient is the generative provider
type ChatClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
	ChatModel() string
}

type Extractor struct {
	llm ChatClient
}

func NewExtractor(llm ChatClient) *Extractor {
	return &Extractor{llm: llm}
}

const livreSystemPrompt = `És um assistente que processa transcrições de relatórios de supervisão de lojas.

Deves extrair e estruturar a informação da transcrição num formato JSON com:
- descricao: resumo claro e profissional da visita (2-3 frases)
- categoria: uma de ["Supervisão Geral", "Problema Técnico", "Formação", "Auditoria", "Manutenção", "Outro"]
- estadoAcompanhamento: um de ["Em Progresso", "Concluído", "Pendente", "Requer Atenção"]
- pendentes: array de strings com items que precisam ser resolvidos (máx 5)

Se a transcrição não mencionar pendentes, retorna array vazio.
Se não conseguires identificar categoria, usa "Supervisão Geral".
Se não conseguires identificar estado, usa "Em Progresso".`

const livreSchema = `{
	"type": "object",
	"properties": {
		"descricao": {"type": "string", "description": "Resumo profissional da visita"},
		"categoria": {
			"type": "string",
			"enum": ["Supervisão Geral", "Problema Técnico", "Formação", "Auditoria", "Manutenção", "Outro"],
			"description": "Categoria do relatório"
		},
		"estadoAcompanhamento": {
			"type": "string",
			"enum": ["Em Progresso", "Concluído", "Pendente", "Requer Atenção"],
			"description": "Estado atual do acompanhamento"
		},
		"pendentes": {
			"type": "array",
			"items": {"type": "string"},
			"maxItems": 5,
			"description": "Lista de items pendentes identificados"
		}
	},
	"required": ["descricao", "categoria", "estadoAcompanhamento", "pendentes"],
	"additionalProperties": false
}`

const completoSystemPrompt = `És um assistente que processa transcrições de relatórios completos de supervisão de lojas.

Deves extrair e estruturar a informação da transcrição num formato JSON com:
- resumoSupervisao: resumo executivo da visita (3-4 frases)
- categoria: uma de ["Supervisão Geral", "Problema Técnico", "Formação", "Auditoria", "Manutenção", "Outro"]
- estadoAcompanhamento: um de ["Em Progresso", "Concluído", "Pendente", "Requer Atenção"]
- pontosPositivos: array de strings com aspectos positivos identificados (máx 5)
- pontosNegativos: array de strings com aspectos negativos identificados (máx 5)
- sugestoesMelhoria: texto com sugestões de melhoria (2-3 frases)
- pendentes: array de strings com items que precisam ser resolvidos (máx 5)

Se alguma informação não for mencionada, usa arrays vazios ou texto genérico apropriado.`

const completoSchema = `{
	"type": "object",
	"properties": {
		"resumoSupervisao": {"type": "string", "description": "Resumo executivo da visita"},
		"categoria": {
			"type": "string",
			"enum": ["Supervisão Geral", "Problema Técnico", "Formação", "Auditoria", "Manutenção", "Outro"],
			"description": "Categoria do relatório"
		},
		"estadoAcompanhamento": {
			"type": "string",
			"enum": ["Em Progresso", "Concluído", "Pendente", "Requer Atenção"],
			"description": "Estado atual do acompanhamento"
		},
		"pontosPositivos": {
			"type": "array",
			"items": {"type": "string"},
			"maxItems": 5,
			"description": "Pontos positivos identificados"
		},
		"pontosNegativos": {
			"type": "array",
			"items": {"type": "string"},
			"maxItems": 5,
			"description": "Pontos negativos identificados"
		},
		"sugestoesMelhoria": {"type": "string", "description": "Sugestões de melhoria"},
		"pendentes": {
			"type": "array",
			"items": {"type": "string"},
			"maxItems": 5,
			"description": "Items pendentes identificados"
		}
	},
	"required": ["resumoSupervisao", "categoria", "estadoAcompanhamento", "pontosPositivos", "pontosNegativos", "sugestoesMelhoria", "pendentes"],
	"additionalProperties": false
}`

// ExtractLivre turns a transcription into a free-form report draft
func (e *Extractor) ExtractLivre(ctx context.Context, transcription string) (*RelatorioLivreDraft, error) {
	content, err := e.invoke(ctx, "relatorio_livre", livreSystemPrompt, livreSchema, transcription)
	if err != nil {
		return nil, err
	}

	var draft RelatorioLivreDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if !contains(Categorias, draft.Categoria) {
		return nil, fmt.Errorf("%w: unknown categoria %q", ErrParse, draft.Categoria)
	}
	if !contains(Estados, draft.EstadoAcompanhamento) {
		return nil, fmt.Errorf("%w: unknown estado %q", ErrParse, draft.EstadoAcompanhamento)
	}
	draft.Pendentes = capList(draft.Pendentes)

	logger.Info("Livre draft extracted",
		zap.String("categoria", draft.Categoria),
		zap.Int("pendentes", len(draft.Pendentes)))

	return &draft, nil
}

// ExtractCompleto turns a transcription into a full report draft
func (e *Extractor) ExtractCompleto(ctx context.Context, transcription string) (*RelatorioCompletoDraft, error) {
	content, err := e.invoke(ctx, "relatorio_completo", completoSystemPrompt, completoSchema, transcription)
	if err != nil {
		return nil, err
	}

	var draft RelatorioCompletoDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if !contains(Categorias, draft.Categoria) {
		return nil, fmt.Errorf("%w: unknown categoria %q", ErrParse, draft.Categoria)
	}
	if !contains(Estados, draft.EstadoAcompanhamento) {
		return nil, fmt.Errorf("%w: unknown estado %q", ErrParse, draft.EstadoAcompanhamento)
	}
	draft.PontosPositivos = capList(draft.PontosPositivos)
	draft.PontosNegativos = capList(draft.PontosNegativos)
	draft.Pendentes = capList(draft.Pendentes)

	logger.Info("Completo draft extracted",
		zap.String("categoria", draft.Categoria),
		zap.Int("pendentes", len(draft.Pendentes)))

	return &draft, nil
}

func (e *Extractor) invoke(ctx context.Context, schemaName, systemPrompt, schema, transcription string) (string, error) {
	resp, err := e.llm.ChatCompletion(ctx, openai.ChatRequest{
		Model: e.llm.ChatModel(),
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Transcrição do relatório:\n\n%s", transcription)},
		},
		ResponseFormat: &openai.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openai.JSONSchema{
				Name:   schemaName,
				Strict: true,
				Schema: json.RawMessage(schema),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("extraction call failed: %w", err)
	}

	content := resp.Content()
	if content == "" {
		return "", fmt.Errorf("%w: empty model response", ErrParse)
	}

	return content, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func capList(items []string) []string {
	if len(items) > MaxListItems {
		return items[:MaxListItems]
	}
	return items
}
