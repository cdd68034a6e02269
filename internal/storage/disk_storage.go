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
	ErrDiskNotFound      = errors.New("disk not found")
	ErrDiskAlreadyExists = errors.New("disk already exists")
)

// PostgresDiskStorage хранилище локальных записей о дисках на бекендах.
type PostgresDiskStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresDiskStorage создаёт новый экземпляр PostgresDiskStorage.
func NewPostgresDiskStorage(pool *pgxpool.Pool) *PostgresDiskStorage {
	return &PostgresDiskStorage{pool: pool}
}

const diskColumns = `
	id, backend_id, provider_disk_id, instance_name, size_gib, azone_id,
	remarks, task_status, pay_type, user_id, vo_id, owner_type,
	start_time, expiration_time, created_at
`

// Create сохраняет запись о диске.
// Конфликт первичного ключа возвращается как ErrDiskAlreadyExists.
func (s *PostgresDiskStorage) Create(ctx context.Context, disk *models.Disk) error {
	query := `
		INSERT INTO disks (
			id, backend_id, provider_disk_id, instance_name, size_gib, azone_id,
			remarks, task_status, pay_type, user_id, vo_id, owner_type,
			start_time, expiration_time, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query,
		disk.ID, disk.BackendID, disk.ProviderDiskID, disk.InstanceName, disk.SizeGiB,
		disk.AzoneID, disk.Remarks, disk.TaskStatus, disk.PayType,
		disk.UserID, disk.VoID, disk.OwnerType, disk.StartTime, disk.ExpirationTime,
	).Scan(&disk.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDiskAlreadyExists
		}
		return fmt.Errorf("insert disk: %w", err)
	}
	return nil
}

// GetByID возвращает диск по id.
func (s *PostgresDiskStorage) GetByID(ctx context.Context, diskID string) (*models.Disk, error) {
	query := `SELECT ` + diskColumns + ` FROM disks WHERE id = $1`
	return scanDisk(s.pool.QueryRow(ctx, query, diskID))
}

// GetForUpdateTx загружает диск с эксклюзивной блокировкой строки.
func (s *PostgresDiskStorage) GetForUpdateTx(ctx context.Context, tx pgx.Tx, diskID string) (*models.Disk, error) {
	query := `SELECT ` + diskColumns + ` FROM disks WHERE id = $1 FOR UPDATE`
	return scanDisk(tx.QueryRow(ctx, query, diskID))
}

// SetExpirationTx продлевает срок действия диска.
func (s *PostgresDiskStorage) SetExpirationTx(ctx context.Context, tx pgx.Tx, diskID string, expiration time.Time) error {
	result, err := tx.Exec(ctx,
		`UPDATE disks SET expiration_time = $1 WHERE id = $2`, expiration, diskID)
	if err != nil {
		return fmt.Errorf("set disk expiration: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDiskNotFound
	}
	return nil
}

// SetPayTypeTx меняет способ расчёта и сбрасывает расчётный период.
func (s *PostgresDiskStorage) SetPayTypeTx(ctx context.Context, tx pgx.Tx, diskID string, payType models.PayType, start, expiration time.Time) error {
	result, err := tx.Exec(ctx, `
		UPDATE disks SET pay_type = $1, start_time = $2, expiration_time = $3 WHERE id = $4
	`, payType, start, expiration, diskID)
	if err != nil {
		return fmt.Errorf("set disk pay type: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDiskNotFound
	}
	return nil
}

func scanDisk(row pgx.Row) (*models.Disk, error) {
	var d models.Disk
	err := row.Scan(
		&d.ID, &d.BackendID, &d.ProviderDiskID, &d.InstanceName, &d.SizeGiB, &d.AzoneID,
		&d.Remarks, &d.TaskStatus, &d.PayType, &d.UserID, &d.VoID, &d.OwnerType,
		&d.StartTime, &d.ExpirationTime, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDiskNotFound
		}
		return nil, fmt.Errorf("scan disk: %w", err)
	}
	return &d, nil
}
