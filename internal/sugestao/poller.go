package sugestao

import (
	"context"
	"time"

	"lojavox/pkg/cache"
	"lojavox/pkg/logger"
	"lojavox/pkg/model"

	"go.uber.org/zap"
)

// Poll outcome. The generation job runs out of band, so an empty read
// is a normal transient state, never an error.
type PollOutcome string

const (
	PollDelivered PollOutcome = "delivered"
	PollExhausted PollOutcome = "exhausted"
	PollCancelled PollOutcome = "cancelled"
)

const (
	pollInterval    = 2 * time.Second
	pollMaxAttempts = 10
)

// Reader serves persisted suggestions for one report
type Reader interface {
	GetSugestoesByRelatorio(ctx context.Context, relatorioID string, tipo model.TipoRelatorio) ([]model.Sugestao, error)
}

// Poller repeatedly reads the suggestion store until suggestions for a
// report show up or the attempt budget runs out. It never triggers
// generation. A delivered set is cached so repeat reads for the same
// report skip the store.
type Poller struct {
	reader   Reader
	cache    cache.Cache
	interval time.Duration
	attempts int

	// after is swappable so tests run without a wall clock
	after func(time.Duration) <-chan time.Time
}

// NewPoller creates a poller over the suggestion store. c may be nil.
func NewPoller(reader Reader, c cache.Cache) *Poller {
	return &Poller{
		reader:   reader,
		cache:    c,
		interval: pollInterval,
		attempts: pollMaxAttempts,
		after:    time.After,
	}
}

// Poll blocks until suggestions are available, the attempt budget is
// spent, or ctx is cancelled. A read error counts as an empty attempt.
func (p *Poller) Poll(ctx context.Context, relatorioID string, tipo model.TipoRelatorio) ([]model.Sugestao, PollOutcome) {
	cacheKey := cache.SugestoesCacheKey(relatorioID)
	if p.cache != nil {
		var cached []model.Sugestao
		if err := p.cache.Get(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
			logger.Debug("Suggestions served from cache", zap.String("relatorio_id", relatorioID))
			return cached, PollDelivered
		}
	}

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, PollCancelled
		}

		sugestoes, err := p.reader.GetSugestoesByRelatorio(ctx, relatorioID, tipo)
		if err != nil {
			logger.Warn("Suggestion poll read failed",
				zap.String("relatorio_id", relatorioID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if len(sugestoes) > 0 {
			logger.Info("Suggestions delivered",
				zap.String("relatorio_id", relatorioID),
				zap.Int("attempt", attempt),
				zap.Int("count", len(sugestoes)))
			if p.cache != nil {
				if err := p.cache.Set(ctx, cacheKey, sugestoes); err != nil {
					logger.Warn("Failed to cache suggestions", zap.Error(err))
				}
			}
			return sugestoes, PollDelivered
		}

		if attempt == p.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, PollCancelled
		case <-p.after(p.interval):
		}
	}

	logger.Info("Suggestion poll exhausted", zap.String("relatorio_id", relatorioID))
	return nil, PollExhausted
}
