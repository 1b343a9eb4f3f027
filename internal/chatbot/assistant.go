package chatbot

import (
	"context"
	"fmt"
	"strings"

	"lojavox/internal/openai"
	"lojavox/pkg/logger"
	"lojavox/pkg/model"

	"go.uber.org/zap"
)

// Message is one turn of the conversation history
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextSource provides the report slices the assistant builds its
// prompt context from.
type ContextSource interface {
	GetRelatoriosPorCategoria(ctx context.Context) ([]model.CategoriaRelatorios, error)
	GetRelatoriosByGestor(ctx context.Context, gestorID string) ([]model.Relatorio, error)
}

// ChatClient is the generative provider
type ChatClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
	ChatModel() string
}

// Assistant answers natural-language questions about the platform,
// restricting the assembled context to the requester's own records when
// the question is classified as personal.
type Assistant struct {
	llm        ChatClient
	source     ContextSource
	classifier *Classifier
}

func NewAssistant(llm ChatClient, source ContextSource) *Assistant {
	return &Assistant{
		llm:        llm,
		source:     source,
		classifier: NewClassifier(nil),
	}
}

// Answer classifies the question, assembles the scoped context and
// issues one chat call.
func (a *Assistant) Answer(ctx context.Context, gestorID, gestorNome, question string, history []Message) (string, Scope, error) {
	scope := a.classifier.Classify(question)

	var contexto string
	switch scope {
	case ScopePersonal:
		relatorios, err := a.source.GetRelatoriosByGestor(ctx, gestorID)
		if err != nil {
			return "", scope, fmt.Errorf("failed to load personal context: %w", err)
		}
		contexto = formatPersonalContext(gestorNome, relatorios)
	default:
		grouped, err := a.source.GetRelatoriosPorCategoria(ctx)
		if err != nil {
			return "", scope, fmt.Errorf("failed to load platform context: %w", err)
		}
		contexto = formatGlobalContext(grouped)
	}

	messages := []openai.Message{
		{Role: "system", Content: systemPrompt(gestorNome, scope) + contexto},
	}
	for _, h := range history {
		messages = append(messages, openai.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, openai.Message{Role: "user", Content: question})

	resp, err := a.llm.ChatCompletion(ctx, openai.ChatRequest{
		Model:    a.llm.ChatModel(),
		Messages: messages,
	})
	if err != nil {
		return "", scope, fmt.Errorf("failed to answer question: %w", err)
	}

	answer := resp.Content()
	if answer == "" {
		return "", scope, fmt.Errorf("empty answer from model")
	}

	logger.Info("Question answered",
		zap.String("scope", string(scope)),
		zap.Int("answer_length", len(answer)))

	return answer, scope, nil
}

func systemPrompt(gestorNome string, scope Scope) string {
	scopeNote := "GERAL/NACIONAL - usa os dados de toda a plataforma"
	if scope == ScopePersonal {
		scopeNote = "PESSOAL - usa apenas os dados pessoais do gestor"
	}

	return fmt.Sprintf(`És o Assistente IA de uma plataforma de supervisão de lojas.
Respondes a perguntas sobre lojas, relatórios de visita, pendentes e o seu estado.

REGRA CRÍTICA DE CONTEXTO:
- Quando o utilizador usa termos como "meus", "minhas", "tenho", "fiz", responde APENAS com os dados pessoais do utilizador.
- Quando a pergunta é geral (ex: "quantas lojas existem"), usa os dados de toda a plataforma.

UTILIZADOR ATUAL: %s
A pergunta atual é considerada %s.`, gestorNome, scopeNote)
}

func formatPersonalContext(gestorNome string, relatorios []model.Relatorio) string {
	var b strings.Builder
	b.WriteString("\n\n========================================\n")
	fmt.Fprintf(&b, "DADOS PESSOAIS DO GESTOR LOGADO: %s\n", gestorNome)
	b.WriteString("========================================\n\n")

	fmt.Fprintf(&b, "MEUS RELATÓRIOS: %d\n", len(relatorios))

	limit := len(relatorios)
	if limit > 10 {
		limit = 10
	}
	for _, r := range relatorios[:limit] {
		fmt.Fprintf(&b, "- [%s] %s (%s, %s): %s\n",
			r.DataVisita.Format("02/01/2006"), r.LojaNome, r.Tipo, r.Estado, truncate(r.Descricao, 80))
	}
	if len(relatorios) > limit {
		fmt.Fprintf(&b, "... e mais %d relatórios\n", len(relatorios)-limit)
	}

	return b.String()
}

func formatGlobalContext(grouped []model.CategoriaRelatorios) string {
	var b strings.Builder
	b.WriteString("\n\n========================================\n")
	b.WriteString("DADOS DA PLATAFORMA (VISÃO NACIONAL/GERAL)\n")
	b.WriteString("========================================\n\n")

	total := 0
	for _, cat := range grouped {
		total += len(cat.Relatorios)
	}
	fmt.Fprintf(&b, "TOTAL DE RELATÓRIOS: %d em %d categorias\n\n", total, len(grouped))

	for _, cat := range grouped {
		var acompanhar, emTratamento, tratado int
		for _, r := range cat.Relatorios {
			switch r.Estado {
			case model.EstadoAcompanhar:
				acompanhar++
			case model.EstadoEmTratamento:
				emTratamento++
			case model.EstadoTratado:
				tratado++
			}
		}
		fmt.Fprintf(&b, "CATEGORIA %s: %d relatórios (a acompanhar: %d, em tratamento: %d, tratados: %d)\n",
			cat.Categoria, len(cat.Relatorios), acompanhar, emTratamento, tratado)
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// SuggestedQuestions is the curated starter list shown in the chat UI
func SuggestedQuestions() []string {
	return []string{
		"Quantos pendentes tenho?",
		"Quais são as minhas lojas?",
		"Quantos relatórios foram criados este mês?",
		"Qual a categoria com mais relatórios a acompanhar?",
		"Qual a loja com melhor taxa de resolução?",
	}
}
