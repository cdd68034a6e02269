package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovolkov/cloudmarket/internal/models"
)

var (
	ErrServerNotFound      = errors.New("server not found")
	ErrServerAlreadyExists = errors.New("server already exists")
)

// PostgresServerStorage хранилище локальных записей о серверах на бекендах.
type PostgresServerStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresServerStorage создаёт новый экземпляр PostgresServerStorage.
func NewPostgresServerStorage(pool *pgxpool.Pool) *PostgresServerStorage {
	return &PostgresServerStorage{pool: pool}
}

const serverColumns = `
	id, backend_id, provider_instance_id, instance_name, vcpu, ram_gib, public_ip,
	ipv4, image_id, image, network_id, azone_id, default_user, default_password,
	remarks, task_status, pay_type, user_id, vo_id, owner_type,
	start_time, expiration_time, created_at
`

// Create сохраняет запись о сервере.
// Конфликт первичного ключа возвращается как ErrServerAlreadyExists,
// чтобы вызывающая сторона могла перегенерировать id.
func (s *PostgresServerStorage) Create(ctx context.Context, server *models.Server) error {
	query := `
		INSERT INTO servers (
			id, backend_id, provider_instance_id, instance_name, vcpu, ram_gib, public_ip,
			ipv4, image_id, image, network_id, azone_id, default_user, default_password,
			remarks, task_status, pay_type, user_id, vo_id, owner_type,
			start_time, expiration_time, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, NOW())
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query,
		server.ID, server.BackendID, server.ProviderInstanceID, server.InstanceName,
		server.VCPU, server.RamGiB, server.PublicIP, server.IPv4, server.ImageID, server.Image,
		server.NetworkID, server.AzoneID, server.DefaultUser, server.DefaultPassword,
		server.Remarks, server.TaskStatus, server.PayType, server.UserID, server.VoID, server.OwnerType,
		server.StartTime, server.ExpirationTime,
	).Scan(&server.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrServerAlreadyExists
		}
		return fmt.Errorf("insert server: %w", err)
	}
	return nil
}

// GetByID возвращает сервер по id.
func (s *PostgresServerStorage) GetByID(ctx context.Context, serverID string) (*models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE id = $1`
	return scanServer(s.pool.QueryRow(ctx, query, serverID))
}

// GetForUpdateTx загружает сервер с эксклюзивной блокировкой строки.
func (s *PostgresServerStorage) GetForUpdateTx(ctx context.Context, tx pgx.Tx, serverID string) (*models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE id = $1 FOR UPDATE`
	return scanServer(tx.QueryRow(ctx, query, serverID))
}

// SetExpirationTx продлевает срок действия сервера.
func (s *PostgresServerStorage) SetExpirationTx(ctx context.Context, tx pgx.Tx, serverID string, expiration time.Time) error {
	result, err := tx.Exec(ctx,
		`UPDATE servers SET expiration_time = $1 WHERE id = $2`, expiration, serverID)
	if err != nil {
		return fmt.Errorf("set server expiration: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

// SetPayTypeTx меняет способ расчёта и сбрасывает расчётный период.
func (s *PostgresServerStorage) SetPayTypeTx(ctx context.Context, tx pgx.Tx, serverID string, payType models.PayType, start, expiration time.Time) error {
	result, err := tx.Exec(ctx, `
		UPDATE servers SET pay_type = $1, start_time = $2, expiration_time = $3 WHERE id = $4
	`, payType, start, expiration, serverID)
	if err != nil {
		return fmt.Errorf("set server pay type: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

// ListByTaskStatus возвращает серверы в указанном состоянии создания.
func (s *PostgresServerStorage) ListByTaskStatus(ctx context.Context, status models.ServerTaskStatus) ([]*models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE task_status = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()

	var servers []*models.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return servers, nil
}

// UpdateBuildResult сохраняет результат опроса состояния создания сервера.
func (s *PostgresServerStorage) UpdateBuildResult(ctx context.Context, server *models.Server) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE servers
		SET task_status = $1, ipv4 = $2, image = $3, instance_name = $4,
			default_user = $5, default_password = $6
		WHERE id = $7
	`, server.TaskStatus, server.IPv4, server.Image, server.InstanceName,
		server.DefaultUser, server.DefaultPassword, server.ID)
	if err != nil {
		return fmt.Errorf("update server build result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

func scanServer(row pgx.Row) (*models.Server, error) {
	var srv models.Server
	err := row.Scan(
		&srv.ID, &srv.BackendID, &srv.ProviderInstanceID, &srv.InstanceName,
		&srv.VCPU, &srv.RamGiB, &srv.PublicIP, &srv.IPv4, &srv.ImageID, &srv.Image,
		&srv.NetworkID, &srv.AzoneID, &srv.DefaultUser, &srv.DefaultPassword,
		&srv.Remarks, &srv.TaskStatus, &srv.PayType, &srv.UserID, &srv.VoID, &srv.OwnerType,
		&srv.StartTime, &srv.ExpirationTime, &srv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("scan server: %w", err)
	}
	return &srv, nil
}
