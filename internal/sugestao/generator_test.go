package sugestao

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lojavox/internal/extractor"
	"lojavox/internal/openai"
	"lojavox/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateSugestao(ctx context.Context, sug *model.Sugestao) error {
	args := m.Called(ctx, sug)
	return args.Error(0)
}

func (m *MockStore) GetSugestoesRecentesByLoja(ctx context.Context, lojaID string, limit int) ([]model.Sugestao, error) {
	args := m.Called(ctx, lojaID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Sugestao), args.Error(1)
}

type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.ChatResponse), args.Error(1)
}

func (m *MockChatClient) ChatModel() string {
	args := m.Called()
	return args.String(0)
}

func chatResponse(content string) *openai.ChatResponse {
	var choice openai.ChatChoice
	choice.Message.Role = "assistant"
	choice.Message.Content = content
	return &openai.ChatResponse{Choices: []openai.ChatChoice{choice}}
}

func generateRequest() GenerateRequest {
	return GenerateRequest{
		RelatorioID: "rel-1",
		Tipo:        model.TipoRelatorioLivre,
		LojaID:      "loja-1",
		LojaNome:    "Loja Braga",
		GestorID:    "gestor-1",
		Conteudo:    "Descrição:\nstock desorganizado no armazém",
	}
}

func TestGenerate_PersistsSuggestions(t *testing.T) {
	store := new(MockStore)
	store.On("GetSugestoesRecentesByLoja", mock.Anything, "loja-1", 5).Return([]model.Sugestao{}, nil)
	store.On("CreateSugestao", mock.Anything, mock.MatchedBy(func(s *model.Sugestao) bool {
		// The provider text lands in Sugestao only; AcaoRecomendada
		// stays empty at generation time.
		return s.RelatorioID == "rel-1" && s.Categoria == model.SugestaoStock &&
			s.Prioridade == model.PrioridadeAlta && s.AcaoRecomendada == ""
	})).Return(nil)

	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.ResponseFormat != nil && req.ResponseFormat.JSONSchema.Name == "sugestoes_response"
	})).Return(chatResponse(`{"sugestoes": [{"sugestao": "Reorganizar o armazém por rotação de stock", "categoria": "stock", "prioridade": "alta"}]}`), nil)

	gen := NewGenerator(llm, store)
	sugestoes := gen.Generate(context.Background(), generateRequest())

	require.Len(t, sugestoes, 1)
	assert.Equal(t, "Reorganizar o armazém por rotação de stock", sugestoes[0].Sugestao)
	store.AssertExpectations(t)
}

func TestGenerate_TruncatesToThree(t *testing.T) {
	store := new(MockStore)
	store.On("GetSugestoesRecentesByLoja", mock.Anything, mock.Anything, mock.Anything).Return([]model.Sugestao{}, nil)
	store.On("CreateSugestao", mock.Anything, mock.Anything).Return(nil)

	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`{"sugestoes": [
		{"sugestao": "a", "categoria": "geral", "prioridade": "baixa"},
		{"sugestao": "b", "categoria": "geral", "prioridade": "baixa"},
		{"sugestao": "c", "categoria": "geral", "prioridade": "baixa"},
		{"sugestao": "d", "categoria": "geral", "prioridade": "baixa"},
		{"sugestao": "e", "categoria": "geral", "prioridade": "baixa"}
	]}`), nil)

	gen := NewGenerator(llm, store)
	sugestoes := gen.Generate(context.Background(), generateRequest())

	assert.Len(t, sugestoes, MaxSugestoes)
	store.AssertNumberOfCalls(t, "CreateSugestao", MaxSugestoes)
}

func TestGenerate_ProviderFailureYieldsEmpty(t *testing.T) {
	store := new(MockStore)
	store.On("GetSugestoesRecentesByLoja", mock.Anything, mock.Anything, mock.Anything).Return([]model.Sugestao{}, nil)

	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	gen := NewGenerator(llm, store)
	sugestoes := gen.Generate(context.Background(), generateRequest())

	assert.Empty(t, sugestoes)
	store.AssertNotCalled(t, "CreateSugestao", mock.Anything, mock.Anything)
}

func TestGenerate_MalformedJSONYieldsEmpty(t *testing.T) {
	store := new(MockStore)
	store.On("GetSugestoesRecentesByLoja", mock.Anything, mock.Anything, mock.Anything).Return([]model.Sugestao{}, nil)

	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse("not json"), nil)

	gen := NewGenerator(llm, store)
	assert.Empty(t, gen.Generate(context.Background(), generateRequest()))
}

func TestGenerate_EmptySuggestionListIsFine(t *testing.T) {
	store := new(MockStore)
	store.On("GetSugestoesRecentesByLoja", mock.Anything, mock.Anything, mock.Anything).Return([]model.Sugestao{}, nil)

	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`{"sugestoes": []}`), nil)

	gen := NewGenerator(llm, store)
	assert.Empty(t, gen.Generate(context.Background(), generateRequest()))
	store.AssertNotCalled(t, "CreateSugestao", mock.Anything, mock.Anything)
}

func TestGenerate_PriorSuggestionsEnterThePrompt(t *testing.T) {
	store := new(MockStore)
	store.On("GetSugestoesRecentesByLoja", mock.Anything, "loja-1", 5).Return([]model.Sugestao{
		{Sugestao: "Implementar checklist diário de EPIs"},
	}, nil)

	var prompt string
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(1).(openai.ChatRequest)
		prompt = req.Messages[1].Content.(string)
	}).Return(chatResponse(`{"sugestoes": []}`), nil)

	gen := NewGenerator(llm, store)
	gen.Generate(context.Background(), generateRequest())

	assert.Contains(t, prompt, "evita repetir")
	assert.Contains(t, prompt, "Implementar checklist diário de EPIs")
}

func TestGenerate_HistoryReadFailureDoesNotAbort(t *testing.T) {
	store := new(MockStore)
	store.On("GetSugestoesRecentesByLoja", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	store.On("CreateSugestao", mock.Anything, mock.Anything).Return(nil)

	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`{"sugestoes": [{"sugestao": "x", "categoria": "geral", "prioridade": "media"}]}`), nil)

	gen := NewGenerator(llm, store)
	assert.Len(t, gen.Generate(context.Background(), generateRequest()), 1)
}

func TestFormatarRelatorioLivre(t *testing.T) {
	draft := &extractor.RelatorioLivreDraft{
		Descricao: "Visita de rotina, loja em bom estado.",
		Pendentes: []string{"trocar lâmpada"},
	}
	out := FormatarRelatorioLivre(draft, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, out, "Data da Visita: 15/08/2026")
	assert.Contains(t, out, "Visita de rotina")
	assert.Contains(t, out, "- trocar lâmpada")
}

func TestFormatarRelatorioCompleto_OmitsEmptySections(t *testing.T) {
	draft := &extractor.RelatorioCompletoDraft{
		ResumoSupervisao: "Supervisão focada em atendimento.",
		PontosNegativos:  []string{"fila longa"},
	}
	out := FormatarRelatorioCompleto(draft, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, out, "Resumo da Supervisão: Supervisão focada em atendimento.")
	assert.Contains(t, out, "Pontos Negativos: fila longa")
	assert.NotContains(t, out, "Pontos Positivos")
	assert.NotContains(t, out, "Sugestões de Melhoria")
	assert.Equal(t, 3, len(strings.Split(out, "\n\n")))
}
