package chatbot

import (
	"context"
	"strings"
	"testing"
	"time"

	"lojavox/internal/openai"
	"lojavox/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockContextSource struct {
	mock.Mock
}

func (m *MockContextSource) GetRelatoriosPorCategoria(ctx context.Context) ([]model.CategoriaRelatorios, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CategoriaRelatorios), args.Error(1)
}

func (m *MockContextSource) GetRelatoriosByGestor(ctx context.Context, gestorID string) ([]model.Relatorio, error) {
	args := m.Called(ctx, gestorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Relatorio), args.Error(1)
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
	return "gpt-4o"
}

func chatResponse(content string) *openai.ChatResponse {
	resp := &openai.ChatResponse{Choices: make([]openai.ChatChoice, 1)}
	resp.Choices[0].Message.Content = content
	return resp
}

func TestAnswer_PersonalQuestionUsesPersonalContext(t *testing.T) {
	source := new(MockContextSource)
	source.On("GetRelatoriosByGestor", mock.Anything, "g-1").Return([]model.Relatorio{
		{LojaNome: "Loja Braga", Tipo: model.TipoRelatorioLivre, Estado: model.EstadoAcompanhar, DataVisita: time.Now()},
	}, nil)

	llm := new(MockChatClient)
	llm.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		system, ok := req.Messages[0].Content.(string)
		return ok && strings.Contains(system, "DADOS PESSOAIS DO GESTOR LOGADO")
	})).Return(chatResponse("Tens 1 relatório."), nil)

	a := NewAssistant(llm, source)

	answer, scope, err := a.Answer(context.Background(), "g-1", "Ana", "Quantos relatórios tenho?", nil)

	require.NoError(t, err)
	assert.Equal(t, ScopePersonal, scope)
	assert.Equal(t, "Tens 1 relatório.", answer)
	source.AssertNotCalled(t, "GetRelatoriosPorCategoria", mock.Anything)
}

func TestAnswer_GlobalQuestionUsesPlatformContext(t *testing.T) {
	source := new(MockContextSource)
	source.On("GetRelatoriosPorCategoria", mock.Anything).Return([]model.CategoriaRelatorios{
		{Categoria: "Auditoria", Relatorios: []model.Relatorio{{Estado: model.EstadoTratado}}},
	}, nil)

	llm := new(MockChatClient)
	llm.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		system, ok := req.Messages[0].Content.(string)
		return ok && strings.Contains(system, "DADOS DA PLATAFORMA")
	})).Return(chatResponse("Existe 1 relatório."), nil)

	a := NewAssistant(llm, source)

	answer, scope, err := a.Answer(context.Background(), "g-1", "Ana", "Quantos relatórios existem na plataforma?", nil)

	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, scope)
	assert.NotEmpty(t, answer)
	source.AssertNotCalled(t, "GetRelatoriosByGestor", mock.Anything, mock.Anything)
}

func TestAnswer_HistoryIsForwarded(t *testing.T) {
	source := new(MockContextSource)
	source.On("GetRelatoriosPorCategoria", mock.Anything).Return([]model.CategoriaRelatorios{}, nil)

	llm := new(MockChatClient)
	llm.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		// system + 2 history turns + question
		return len(req.Messages) == 4
	})).Return(chatResponse("ok"), nil)

	a := NewAssistant(llm, source)

	history := []Message{
		{Role: "user", Content: "Olá"},
		{Role: "assistant", Content: "Olá! Em que posso ajudar?"},
	}

	_, _, err := a.Answer(context.Background(), "g-1", "Ana", "Quantas lojas existem?", history)
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

func TestAnswer_EmptyModelResponse(t *testing.T) {
	source := new(MockContextSource)
	source.On("GetRelatoriosPorCategoria", mock.Anything).Return([]model.CategoriaRelatorios{}, nil)

	llm := new(MockChatClient)
	llm.On("ChatCompletion", mock.Anything, mock.Anything).Return(&openai.ChatResponse{}, nil)

	a := NewAssistant(llm, source)

	_, _, err := a.Answer(context.Background(), "g-1", "Ana", "Quantas lojas existem?", nil)
	assert.Error(t, err)
}
