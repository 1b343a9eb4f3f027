package relatorio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"lojavox/internal/openai"
	"lojavox/pkg/logger"
	"lojavox/pkg/model"

	"go.uber.org/zap"
)

// HistoryVersion tags archived narratives so the platform can tell
// generations apart.
const HistoryVersion = "6.4"

// StatusPorCategoria counts one category's reports by follow-up state
type StatusPorCategoria struct {
	Categoria    string `json:"categoria"`
	Acompanhar   int    `json:"acompanhar"`
	EmTratamento int    `json:"emTratamento"`
	Tratado      int    `json:"tratado"`
}

// TaxaPorCategoria is one category's resolution rate in whole percent
type TaxaPorCategoria struct {
	Categoria string `json:"categoria"`
	Taxa      int    `json:"taxa"`
}

// CategoriaTotal is one category's report volume
type CategoriaTotal struct {
	Categoria string `json:"categoria"`
	Total     int    `json:"total"`
}

// Aggregates are the chart-ready numbers. They are computed in code,
// never by the model, so they stay exact and reproducible.
type Aggregates struct {
	DistribuicaoStatus    []StatusPorCategoria `json:"distribuicaoStatus"`
	TaxaResolucao         []TaxaPorCategoria   `json:"taxaResolucao"`
	TopCategoriasCriticas []CategoriaTotal     `json:"topCategoriasCriticas"`
}

// Resultado pairs the deterministic aggregates with the generated
// narrative. Narrativa is empty when the narrative call failed.
type Resultado struct {
	Narrativa string
	Graficos  *Aggregates
}

// History archives generated narratives
type History interface {
	SaveRelatorioIA(ctx context.Context, hist *model.RelatorioIAHistorico) error
}

// ChatClient is the generative provider
type ChatClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
	ChatModel() string
}

type Synthesizer struct {
	llm     ChatClient
	history History
}

func NewSynthesizer(llm ChatClient, history History) *Synthesizer {
	return &Synthesizer{llm: llm, history: history}
}

// BuildAggregates computes the chart numbers from grouped reports.
// Pure: no provider calls, no storage.
func BuildAggregates(grouped []model.CategoriaRelatorios) *Aggregates {
	aggs := &Aggregates{
		DistribuicaoStatus:    make([]StatusPorCategoria, 0, len(grouped)),
		TaxaResolucao:         make([]TaxaPorCategoria, 0, len(grouped)),
		TopCategoriasCriticas: make([]CategoriaTotal, 0, len(grouped)),
	}

	for _, cat := range grouped {
		var dist StatusPorCategoria
		dist.Categoria = cat.Categoria
		for _, r := range cat.Relatorios {
			switch r.Estado {
			case model.EstadoAcompanhar:
				dist.Acompanhar++
			case model.EstadoEmTratamento:
				dist.EmTratamento++
			case model.EstadoTratado:
				dist.Tratado++
			}
		}
		aggs.DistribuicaoStatus = append(aggs.DistribuicaoStatus, dist)

		total := len(cat.Relatorios)
		taxa := 0
		if total > 0 {
			taxa = int(math.Round(float64(dist.Tratado) / float64(total) * 100))
		}
		aggs.TaxaResolucao = append(aggs.TaxaResolucao, TaxaPorCategoria{
			Categoria: cat.Categoria,
			Taxa:      taxa,
		})
		aggs.TopCategoriasCriticas = append(aggs.TopCategoriasCriticas, CategoriaTotal{
			Categoria: cat.Categoria,
			Total:     total,
		})
	}

	sort.SliceStable(aggs.TaxaResolucao, func(i, j int) bool {
		return aggs.TaxaResolucao[i].Taxa < aggs.TaxaResolucao[j].Taxa
	})
	sort.SliceStable(aggs.TopCategoriasCriticas, func(i, j int) bool {
		return aggs.TopCategoriasCriticas[i].Total > aggs.TopCategoriasCriticas[j].Total
	})
	if len(aggs.TopCategoriasCriticas) > 5 {
		aggs.TopCategoriasCriticas = aggs.TopCategoriasCriticas[:5]
	}

	return aggs
}

// Synthesize builds the aggregates and asks the model for the executive
// narrative, archiving the narrative on success. The aggregates are
// always returned, even when the narrative call or the archive write
// fails; in that case the error describes the narrative failure.
func (s *Synthesizer) Synthesize(ctx context.Context, grouped []model.CategoriaRelatorios, geradoPor string) (*Resultado, error) {
	aggs := BuildAggregates(grouped)
	result := &Resultado{Graficos: aggs}

	narrativa, err := s.generateNarrative(ctx, grouped, aggs)
	if err != nil {
		logger.Error("Narrative generation failed", zap.Error(err))
		return result, fmt.Errorf("narrative generation failed: %w", err)
	}
	result.Narrativa = narrativa

	if err := s.history.SaveRelatorioIA(ctx, &model.RelatorioIAHistorico{
		Conteudo:  narrativa,
		GeradoPor: geradoPor,
		Versao:    HistoryVersion,
	}); err != nil {
		logger.Error("Failed to archive narrative", zap.Error(err))
		return result, fmt.Errorf("failed to archive narrative: %w", err)
	}

	logger.Info("Category report synthesized",
		zap.Int("categorias", len(grouped)),
		zap.Int("narrativa_len", len(narrativa)))

	return result, nil
}

const narrativeSystem = "És um analista executivo especializado em gestão de redes de lojas. Geras relatórios estruturados e acionáveis para reuniões de board."

func (s *Synthesizer) generateNarrative(ctx context.Context, grouped []model.CategoriaRelatorios, aggs *Aggregates) (string, error) {
	resp, err := s.llm.ChatCompletion(ctx, openai.ChatRequest{
		Model: s.llm.ChatModel(),
		Messages: []openai.Message{
			{Role: "system", Content: narrativeSystem},
			{Role: "user", Content: buildNarrativePrompt(grouped, aggs)},
		},
	})
	if err != nil {
		return "", err
	}

	narrativa := resp.Content()
	if narrativa == "" {
		return "", fmt.Errorf("empty narrative response")
	}
	return narrativa, nil
}

func buildNarrativePrompt(grouped []model.CategoriaRelatorios, aggs *Aggregates) string {
	type relatorioResumo struct {
		Tipo      model.TipoRelatorio   `json:"tipo"`
		Loja      string                `json:"loja"`
		Gestor    string                `json:"gestor"`
		Data      time.Time             `json:"data"`
		Estado    model.EstadoRelatorio `json:"estado"`
		Descricao string                `json:"descricao"`
	}
	type categoriaResumo struct {
		Categoria     string             `json:"categoria"`
		Contadores    StatusPorCategoria `json:"contadores"`
		TaxaResolucao int                `json:"taxaResolucao"`
		Relatorios    []relatorioResumo  `json:"relatorios"`
	}

	taxas := make(map[string]int, len(aggs.TaxaResolucao))
	for _, t := range aggs.TaxaResolucao {
		taxas[t.Categoria] = t.Taxa
	}

	var totalRelatorios, totalAcompanhar, totalEmTratamento, totalTratado int
	dados := make([]categoriaResumo, 0, len(grouped))
	pendentes := make([]categoriaResumo, 0)
	for i, cat := range grouped {
		resumo := categoriaResumo{
			Categoria:     cat.Categoria,
			Contadores:    aggs.DistribuicaoStatus[i],
			TaxaResolucao: taxas[cat.Categoria],
		}
		for _, r := range cat.Relatorios {
			resumo.Relatorios = append(resumo.Relatorios, relatorioResumo{
				Tipo:      r.Tipo,
				Loja:      r.LojaNome,
				Gestor:    r.GestorNome,
				Data:      r.DataVisita,
				Estado:    r.Estado,
				Descricao: r.Descricao,
			})
		}
		dados = append(dados, resumo)

		totalRelatorios += len(cat.Relatorios)
		totalAcompanhar += resumo.Contadores.Acompanhar
		totalEmTratamento += resumo.Contadores.EmTratamento
		totalTratado += resumo.Contadores.Tratado
		if resumo.Contadores.Acompanhar > 0 {
			pendentes = append(pendentes, resumo)
		}
	}

	dadosJSON, _ := json.MarshalIndent(dados, "", "  ")
	pendentesJSON, _ := json.MarshalIndent(pendentes, "", "  ")

	var b strings.Builder
	b.WriteString("Analisa os dados de relatórios de supervisão organizados por categoria e gera um relatório estruturado para apresentação em reunião de board.\n\n")
	fmt.Fprintf(&b, "**DADOS DE RELATÓRIOS POR CATEGORIA:**\n%s\n\n", dadosJSON)
	b.WriteString("**ESTATÍSTICAS GLOBAIS:**\n")
	fmt.Fprintf(&b, "- Total de categorias: %d\n", len(grouped))
	fmt.Fprintf(&b, "- Total de relatórios: %d\n", totalRelatorios)
	fmt.Fprintf(&b, "- Pendentes a acompanhar: %d\n", totalAcompanhar)
	fmt.Fprintf(&b, "- Em tratamento: %d\n", totalEmTratamento)
	fmt.Fprintf(&b, "- Tratados: %d\n\n", totalTratado)
	fmt.Fprintf(&b, "**CATEGORIAS COM STATUS \"A ACOMPANHAR\" (PRIORITÁRIAS PARA DISCUSSÃO NO BOARD):**\n%s\n\n", pendentesJSON)
	b.WriteString(`**INSTRUÇÕES:**
Gera um relatório executivo em Markdown com a seguinte estrutura:

# Relatório Executivo por Categorias
*Gerado em: [data atual]*

## 🚨 ASSUNTOS PRIORITÁRIOS PARA DISCUSSÃO NO BOARD
Lista aqui TODAS as categorias que têm relatórios com status "A Acompanhar".
Para cada categoria: nome, número de relatórios a acompanhar, assuntos
específicos, lojas afetadas e recomendação de ação urgente. Categorias só
com "Em Tratamento" ou "Tratado" NÃO aparecem nesta secção.

## 📊 Resumo Executivo
- Visão geral da situação atual
- Principais destaques (3-4 pontos)
- Indicadores-chave

## 🏷️ Análise por Categoria
Para cada categoria: total de relatórios, distribuição por estado com
percentagens, taxa de resolução, principais problemas identificados (3-5
pontos) e lojas mais afetadas quando houver padrão.

## 🎯 Categorias Críticas
Lista as 3-5 categorias que requerem atenção prioritária, justificando
volume, taxa de resolução e impacto no negócio.

## 📈 Tendências e Padrões
- Problemas recorrentes em múltiplas lojas
- Categorias com melhoria ou deterioração
- Padrões geográficos ou por gestor, quando identificáveis

## 💡 Recomendações Prioritárias para Board
5-7 ações concretas priorizadas por impacto, cada uma com descrição,
justificação e impacto esperado.

## 📋 Próximos Passos
- Ações imediatas (próximos 7 dias)
- Ações de curto prazo (próximo mês)

## 📊 KPIs Sugeridos para Acompanhamento
- Indicadores específicos por categoria crítica
- Indicadores para ocorrências estruturais
- Metas mensuráveis

**IMPORTANTE:**
- Usa apenas os dados reais fornecidos
- Sê específico e quantitativo
- Linguagem executiva e objetiva
- Prioriza por impacto no negócio`)

	return b.String()
}
