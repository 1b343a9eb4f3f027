package model

import (
	"time"
)

// TipoRelatorio distinguishes the two visit report variants
type TipoRelatorio string

const (
	TipoRelatorioLivre    TipoRelatorio = "livre"
	TipoRelatorioCompleto TipoRelatorio = "completo"
)

// EstadoRelatorio is the follow-up state a persisted report moves through
type EstadoRelatorio string

const (
	EstadoAcompanhar   EstadoRelatorio = "acompanhar"
	EstadoEmTratamento EstadoRelatorio = "em_tratamento"
	EstadoTratado      EstadoRelatorio = "tratado"
)

// Relatorio is the pipeline-facing view of a persisted visit report.
// The platform owns the full row; the pipeline only reads the fields
// it aggregates and feeds into prompts.
type Relatorio struct {
	ID         string          `json:"id" db:"id"`
	Tipo       TipoRelatorio   `json:"tipo" db:"tipo"`
	LojaNome   string          `json:"loja_nome" db:"loja_nome"`
	GestorNome string          `json:"gestor_nome" db:"gestor_nome"`
	GestorID   string          `json:"gestor_id" db:"gestor_id"`
	Categoria  string          `json:"categoria" db:"categoria"`
	Estado     EstadoRelatorio `json:"estado" db:"estado"`
	Descricao  string          `json:"descricao" db:"descricao"`
	DataVisita time.Time       `json:"data_visita" db:"data_visita"`
}

// CategoriaRelatorios groups persisted reports under one category
type CategoriaRelatorios struct {
	Categoria  string      `json:"categoria"`
	Relatorios []Relatorio `json:"relatorios"`
}

// SugestaoCategoria is the bounded set of improvement areas a
// suggestion can target.
type SugestaoCategoria string

const (
	SugestaoStock        SugestaoCategoria = "stock"
	SugestaoEPIs         SugestaoCategoria = "epis"
	SugestaoLimpeza      SugestaoCategoria = "limpeza"
	SugestaoAtendimento  SugestaoCategoria = "atendimento"
	SugestaoDocumentacao SugestaoCategoria = "documentacao"
	SugestaoEquipamentos SugestaoCategoria = "equipamentos"
	SugestaoGeral        SugestaoCategoria = "geral"
)

// SugestaoPrioridade orders suggestions by urgency
type SugestaoPrioridade string

const (
	PrioridadeBaixa SugestaoPrioridade = "baixa"
	PrioridadeMedia SugestaoPrioridade = "media"
	PrioridadeAlta  SugestaoPrioridade = "alta"
)

// Sugestao is an improvement suggestion produced asynchronously after
// a report is persisted. Read-only from the pipeline's perspective;
// absence is an expected transient state while the background job runs.
type Sugestao struct {
	ID              string             `json:"id" db:"id"`
	RelatorioID     string             `json:"relatorio_id" db:"relatorio_id"`
	TipoRelatorio   TipoRelatorio      `json:"tipo_relatorio" db:"tipo_relatorio"`
	LojaID          string             `json:"loja_id" db:"loja_id"`
	GestorID        string             `json:"gestor_id" db:"gestor_id"`
	Categoria       SugestaoCategoria  `json:"categoria" db:"categoria"`
	Prioridade      SugestaoPrioridade `json:"prioridade" db:"prioridade"`
	Sugestao        string             `json:"sugestao" db:"sugestao"`
	AcaoRecomendada string             `json:"acao_recomendada,omitempty" db:"acao_recomendada"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// RelatorioIAHistorico is one archived narrative report. The narrative
// is stored as an opaque Markdown blob; charts are never derived from it.
type RelatorioIAHistorico struct {
	ID        string    `json:"id" db:"id"`
	Conteudo  string    `json:"conteudo" db:"conteudo"`
	GeradoPor string    `json:"gerado_por" db:"gerado_por"`
	Versao    string    `json:"versao" db:"versao"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
