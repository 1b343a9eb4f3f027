package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPersonalQuery(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		question string
		personal bool
	}{
		{"Quantos pendentes tenho?", true},
		{"Quais são as minhas lojas?", true},
		{"Quantos relatórios fiz este mês?", true},
		{"Mostra os alertas atribuídos a mim", true},
		{"Quantos pendentes existem na plataforma?", false},
		{"Quantos pendentes tem a loja Lisboa?", false},
		{"Qual a loja com melhor performance?", false},
		{"Quantas lojas existem?", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.personal, c.IsPersonalQuery(tt.question), tt.question)
	}
}

func TestIsPersonalQuery_CaseInsensitive(t *testing.T) {
	c := NewClassifier(nil)

	assert.True(t, c.IsPersonalQuery("QUANTOS PENDENTES TENHO?"))
	assert.True(t, c.IsPersonalQuery("Minhas Lojas"))
}

func TestIsPersonalQuery_WordBoundary(t *testing.T) {
	c := NewClassifier(nil)

	// "meu" embedded in a longer word must not match
	assert.False(t, c.IsPersonalQuery("A loja fica em Meureles"))
	assert.True(t, c.IsPersonalQuery("O meu relatório está pronto"))
}

func TestIsPersonalQuery_Idempotent(t *testing.T) {
	c := NewClassifier(nil)

	question := "Quantos pendentes tenho?"
	first := c.IsPersonalQuery(question)
	second := c.IsPersonalQuery(question)

	assert.Equal(t, first, second)
}

func TestClassify(t *testing.T) {
	c := NewClassifier(nil)

	assert.Equal(t, ScopePersonal, c.Classify("Quais são as minhas lojas?"))
	assert.Equal(t, ScopeGlobal, c.Classify("Qual a loja com mais pendentes?"))
}

func TestClassifier_CustomRules(t *testing.T) {
	c := NewClassifier([]Rule{{Pattern: "my stores", WordBoundary: false}})

	assert.True(t, c.IsPersonalQuery("Show my stores please"))
	assert.False(t, c.IsPersonalQuery("Quais são as minhas lojas?"))
}
