package queue

import (
	"time"

	"lojavox/pkg/model"
)

// RelatorioCriadoTask is published when a visit report is persisted and
// triggers background suggestion generation for it.
type RelatorioCriadoTask struct {
	RelatorioID string              `json:"relatorio_id"`
	Tipo        model.TipoRelatorio `json:"tipo"`
	LojaID      string              `json:"loja_id"`
	GestorID    string              `json:"gestor_id"`
	FotoURLs    []string            `json:"foto_urls,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}
