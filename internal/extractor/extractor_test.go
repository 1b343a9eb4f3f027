package extractor

import (
	"context"
	"errors"
	"testing"

	"lojavox/internal/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

func TestExtractLivre_Success(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.ResponseFormat != nil &&
			req.ResponseFormat.Type == "json_schema" &&
			req.ResponseFormat.JSONSchema.Name == "relatorio_livre" &&
			req.ResponseFormat.JSONSchema.Strict
	})).Return(chatResponse(`{
		"descricao": "Visita de rotina à loja de Braga, operação estável.",
		"categoria": "Supervisão Geral",
		"estadoAcompanhamento": "Em Progresso",
		"pendentes": ["trocar lâmpada do armazém"]
	}`), nil)

	ext := NewExtractor(llm)
	draft, err := ext.ExtractLivre(context.Background(), "visitei a loja de braga hoje...")
	require.NoError(t, err)

	assert.Equal(t, "Supervisão Geral", draft.Categoria)
	assert.Equal(t, "Em Progresso", draft.EstadoAcompanhamento)
	assert.Equal(t, []string{"trocar lâmpada do armazém"}, draft.Pendentes)
	llm.AssertExpectations(t)
}

func TestExtractLivre_UnknownCategoriaIsParseError(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`{
		"descricao": "Visita.",
		"categoria": "Logística",
		"estadoAcompanhamento": "Em Progresso",
		"pendentes": []
	}`), nil)

	ext := NewExtractor(llm)
	_, err := ext.ExtractLivre(context.Background(), "texto")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestExtractLivre_UnknownEstadoIsParseError(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`{
		"descricao": "Visita.",
		"categoria": "Auditoria",
		"estadoAcompanhamento": "Cancelado",
		"pendentes": []
	}`), nil)

	ext := NewExtractor(llm)
	_, err := ext.ExtractLivre(context.Background(), "texto")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestExtractLivre_PendentesTruncatedToCap(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`{
		"descricao": "Visita.",
		"categoria": "Manutenção",
		"estadoAcompanhamento": "Pendente",
		"pendentes": ["a", "b", "c", "d", "e", "f", "g"]
	}`), nil)

	ext := NewExtractor(llm)
	draft, err := ext.ExtractLivre(context.Background(), "texto")
	require.NoError(t, err)
	assert.Len(t, draft.Pendentes, MaxListItems)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, draft.Pendentes)
}

func TestExtractLivre_MalformedJSONIsParseError(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`not json at all`), nil)

	ext := NewExtractor(llm)
	_, err := ext.ExtractLivre(context.Background(), "texto")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	llm.AssertNumberOfCalls(t, "ChatCompletion", 1)
}

func TestExtractLivre_ProviderErrorIsNotParseError(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	ext := NewExtractor(llm)
	_, err := ext.ExtractLivre(context.Background(), "texto")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrParse))
}

func TestExtractCompleto_Success(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.ResponseFormat != nil &&
			req.ResponseFormat.JSONSchema.Name == "relatorio_completo"
	})).Return(chatResponse(`{
		"resumoSupervisao": "Supervisão completa da loja do Porto com foco em atendimento.",
		"categoria": "Auditoria",
		"estadoAcompanhamento": "Requer Atenção",
		"pontosPositivos": ["equipa motivada"],
		"pontosNegativos": ["stock desorganizado", "fila longa na caixa"],
		"sugestoesMelhoria": "Reforçar a equipa de caixa nas horas de ponta.",
		"pendentes": ["reorganizar armazém"]
	}`), nil)

	ext := NewExtractor(llm)
	draft, err := ext.ExtractCompleto(context.Background(), "supervisão na loja do porto...")
	require.NoError(t, err)

	assert.Equal(t, "Auditoria", draft.Categoria)
	assert.Equal(t, "Requer Atenção", draft.EstadoAcompanhamento)
	assert.Len(t, draft.PontosNegativos, 2)
	assert.NotEmpty(t, draft.SugestoesMelhoria)
}

func TestExtractCompleto_ListsTruncatedToCap(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(`{
		"resumoSupervisao": "Resumo.",
		"categoria": "Formação",
		"estadoAcompanhamento": "Concluído",
		"pontosPositivos": ["1", "2", "3", "4", "5", "6"],
		"pontosNegativos": ["1", "2", "3", "4", "5", "6", "7"],
		"sugestoesMelhoria": "Nada a registar.",
		"pendentes": []
	}`), nil)

	ext := NewExtractor(llm)
	draft, err := ext.ExtractCompleto(context.Background(), "texto")
	require.NoError(t, err)
	assert.Len(t, draft.PontosPositivos, MaxListItems)
	assert.Len(t, draft.PontosNegativos, MaxListItems)
	assert.Empty(t, draft.Pendentes)
}

func TestExtractCompleto_EmptyResponseIsParseError(t *testing.T) {
	llm := new(MockChatClient)
	llm.On("ChatModel").Return("gpt-4o")
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse(""), nil)

	ext := NewExtractor(llm)
	_, err := ext.ExtractCompleto(context.Background(), "texto")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}
