package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"time"

	"lojavox/pkg/logger"
	"lojavox/pkg/model"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

type PostgresStorage struct {
	pool *pgxpool.Pool
}

// New PostgreSQL storage instance
func NewPostgresStorage(databaseURL string) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established")

	if err := runMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")

	return &PostgresStorage{pool: pool}, nil
}

// Executing database migrations
func runMigrations(databaseURL string) error {
	migrationsPath, err := filepath.Abs("migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// file URL works on both Windows and Unix
	var migrationsURL string
	if runtime.GOOS == "windows" {
		u := &url.URL{
			Scheme: "file",
			Path:   filepath.ToSlash(migrationsPath),
		}
		migrationsURL = u.String()
	} else {
		migrationsURL = fmt.Sprintf("file://%s", migrationsPath)
	}

	logger.Info("Running migrations", zap.String("path", migrationsURL))

	db := stdlib.OpenDB(*parseConfig(databaseURL))
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationsURL,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Parses database URL into pgx config
func parseConfig(databaseURL string) *pgx.ConnConfig {
	config, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database URL", zap.Error(err))
	}
	return config
}

// Closes the database connection pool
func (s *PostgresStorage) Close() {
	s.pool.Close()
}

// GetRelatorioByID retrieves one visit report by id and type
func (s *PostgresStorage) GetRelatorioByID(ctx context.Context, id string, tipo model.TipoRelatorio) (*model.Relatorio, error) {
	query := `
		SELECT id, tipo, loja_nome, gestor_nome, gestor_id, categoria, estado, descricao, data_visita
		FROM relatorios
		WHERE id = $1 AND tipo = $2`

	var r model.Relatorio
	row := s.pool.QueryRow(ctx, query, id, tipo)

	err := row.Scan(
		&r.ID,
		&r.Tipo,
		&r.LojaNome,
		&r.GestorNome,
		&r.GestorID,
		&r.Categoria,
		&r.Estado,
		&r.Descricao,
		&r.DataVisita,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get relatorio: %w", err)
	}

	return &r, nil
}

// GetRelatoriosPorCategoria returns every persisted report grouped by
// category, in a stable category order.
func (s *PostgresStorage) GetRelatoriosPorCategoria(ctx context.Context) ([]model.CategoriaRelatorios, error) {
	query := `
		SELECT id, tipo, loja_nome, gestor_nome, gestor_id, categoria, estado, descricao, data_visita
		FROM relatorios
		ORDER BY categoria, data_visita DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query relatorios: %w", err)
	}
	defer rows.Close()

	var grouped []model.CategoriaRelatorios
	for rows.Next() {
		var r model.Relatorio
		err := rows.Scan(
			&r.ID,
			&r.Tipo,
			&r.LojaNome,
			&r.GestorNome,
			&r.GestorID,
			&r.Categoria,
			&r.Estado,
			&r.Descricao,
			&r.DataVisita,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relatorio: %w", err)
		}

		if len(grouped) == 0 || grouped[len(grouped)-1].Categoria != r.Categoria {
			grouped = append(grouped, model.CategoriaRelatorios{Categoria: r.Categoria})
		}
		last := &grouped[len(grouped)-1]
		last.Relatorios = append(last.Relatorios, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relatorios: %w", err)
	}

	return grouped, nil
}

// GetRelatoriosByGestor returns reports created by one manager
func (s *PostgresStorage) GetRelatoriosByGestor(ctx context.Context, gestorID string) ([]model.Relatorio, error) {
	query := `
		SELECT id, tipo, loja_nome, gestor_nome, gestor_id, categoria, estado, descricao, data_visita
		FROM relatorios
		WHERE gestor_id = $1
		ORDER BY data_visita DESC`

	rows, err := s.pool.Query(ctx, query, gestorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relatorios: %w", err)
	}
	defer rows.Close()

	var relatorios []model.Relatorio
	for rows.Next() {
		var r model.Relatorio
		err := rows.Scan(
			&r.ID,
			&r.Tipo,
			&r.LojaNome,
			&r.GestorNome,
			&r.GestorID,
			&r.Categoria,
			&r.Estado,
			&r.Descricao,
			&r.DataVisita,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relatorio: %w", err)
		}
		relatorios = append(relatorios, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relatorios: %w", err)
	}

	return relatorios, nil
}

// CreateSugestao inserts one generated suggestion, assigning an ID
// and timestamp when the caller left them empty.
func (s *PostgresStorage) CreateSugestao(ctx context.Context, sug *model.Sugestao) error {
	if sug.ID == "" {
		sug.ID = uuid.New().String()
	}
	if sug.CreatedAt.IsZero() {
		sug.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sugestoes (
			id, relatorio_id, tipo_relatorio, loja_id, gestor_id,
			categoria, prioridade, sugestao, acao_recomendada, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := s.pool.Exec(ctx, query,
		sug.ID,
		sug.RelatorioID,
		sug.TipoRelatorio,
		sug.LojaID,
		sug.GestorID,
		sug.Categoria,
		sug.Prioridade,
		sug.Sugestao,
		sug.AcaoRecomendada,
		sug.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create sugestao: %w", err)
	}

	return nil
}

// GetSugestoesByRelatorio returns the suggestions of one report.
// An empty result is normal while the background job is still running.
func (s *PostgresStorage) GetSugestoesByRelatorio(ctx context.Context, relatorioID string, tipo model.TipoRelatorio) ([]model.Sugestao, error) {
	query := `
		SELECT id, relatorio_id, tipo_relatorio, loja_id, gestor_id,
		       categoria, prioridade, sugestao, acao_recomendada, created_at
		FROM sugestoes
		WHERE relatorio_id = $1 AND tipo_relatorio = $2
		ORDER BY created_at`

	return s.querySugestoes(ctx, query, relatorioID, tipo)
}

// GetSugestoesRecentesByLoja returns the latest suggestions for a store,
// used to keep the generator from repeating itself.
func (s *PostgresStorage) GetSugestoesRecentesByLoja(ctx context.Context, lojaID string, limit int) ([]model.Sugestao, error) {
	query := `
		SELECT id, relatorio_id, tipo_relatorio, loja_id, gestor_id,
		       categoria, prioridade, sugestao, acao_recomendada, created_at
		FROM sugestoes
		WHERE loja_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return s.querySugestoes(ctx, query, lojaID, limit)
}

func (s *PostgresStorage) querySugestoes(ctx context.Context, query string, args ...interface{}) ([]model.Sugestao, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sugestoes: %w", err)
	}
	defer rows.Close()

	var sugestoes []model.Sugestao
	for rows.Next() {
		var sug model.Sugestao
		err := rows.Scan(
			&sug.ID,
			&sug.RelatorioID,
			&sug.TipoRelatorio,
			&sug.LojaID,
			&sug.GestorID,
			&sug.Categoria,
			&sug.Prioridade,
			&sug.Sugestao,
			&sug.AcaoRecomendada,
			&sug.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sugestao: %w", err)
		}
		sugestoes = append(sugestoes, sug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sugestoes: %w", err)
	}

	return sugestoes, nil
}

// SaveRelatorioIA archives one generated narrative report
func (s *PostgresStorage) SaveRelatorioIA(ctx context.Context, hist *model.RelatorioIAHistorico) error {
	if hist.ID == "" {
		hist.ID = uuid.New().String()
	}
	if hist.CreatedAt.IsZero() {
		hist.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO relatorios_ia_historico (id, conteudo, gerado_por, versao, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		hist.ID,
		hist.Conteudo,
		hist.GeradoPor,
		hist.Versao,
		hist.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save relatorio IA: %w", err)
	}

	return nil
}
