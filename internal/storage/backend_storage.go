package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovolkov/cloudmarket/internal/models"
)

var ErrBackendNotFound = errors.New("backend not found")

// PostgresBackendStorage хранилище конфигураций облачных бекендов.
// Оркестратор только читает конфигурации.
type PostgresBackendStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresBackendStorage создаёт новый экземпляр PostgresBackendStorage.
func NewPostgresBackendStorage(pool *pgxpool.Pool) *PostgresBackendStorage {
	return &PostgresBackendStorage{pool: pool}
}

const backendColumns = `id, name, kind, endpoint, region_id, username, password, app_service_id`

// GetByID возвращает конфигурацию бекенда.
func (s *PostgresBackendStorage) GetByID(ctx context.Context, backendID string) (*models.Backend, error) {
	query := `SELECT ` + backendColumns + ` FROM backends WHERE id = $1`
	return scanBackend(s.pool.QueryRow(ctx, query, backendID))
}

// List возвращает все подключённые бекенды.
func (s *PostgresBackendStorage) List(ctx context.Context) ([]*models.Backend, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+backendColumns+` FROM backends ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query backends: %w", err)
	}
	defer rows.Close()

	var backends []*models.Backend
	for rows.Next() {
		b, err := scanBackend(rows)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return backends, nil
}

func scanBackend(row pgx.Row) (*models.Backend, error) {
	var b models.Backend
	err := row.Scan(&b.ID, &b.Name, &b.Kind, &b.Endpoint, &b.RegionID, &b.Username, &b.Password, &b.AppServiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBackendNotFound
		}
		return nil, fmt.Errorf("scan backend: %w", err)
	}
	return &b, nil
}
