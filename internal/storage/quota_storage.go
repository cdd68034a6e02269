package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/ovolkov/cloudmarket/internal/models"
)

var ErrQuotaNotFound = errors.New("backend quota not found")

// PostgresQuotaStorage ведёт учёт частной квоты бекендов в PostgreSQL.
//
// Reserve атомарен по всем измерениям: либо заняты все, либо ни одного.
// Release никогда не опускает занятое ниже нуля. Оба сериализуются
// по бекенду блокировкой строки квоты, но не глобально.
type PostgresQuotaStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresQuotaStorage создаёт новый экземпляр PostgresQuotaStorage.
func NewPostgresQuotaStorage(pool *pgxpool.Pool) *PostgresQuotaStorage {
	return &PostgresQuotaStorage{pool: pool}
}

const quotaColumns = `
	backend_id, vcpu_total, vcpu_used, ram_total, ram_used,
	public_ip_total, public_ip_used, private_ip_total, private_ip_used,
	disk_total, disk_used
`

// Get возвращает квоту бекенда.
func (s *PostgresQuotaStorage) Get(ctx context.Context, backendID string) (*models.BackendQuota, error) {
	query := `SELECT ` + quotaColumns + ` FROM backend_quotas WHERE backend_id = $1`
	return scanQuota(s.pool.QueryRow(ctx, query, backendID))
}

// Reserve занимает квоту по всем измерениям сразу.
// При нехватке любого измерения возвращает QuotaShortage и ничего не меняет.
func (s *PostgresQuotaStorage) Reserve(ctx context.Context, backendID string, demand models.QuotaDemand) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + quotaColumns + ` FROM backend_quotas WHERE backend_id = $1 FOR UPDATE`
	quota, err := scanQuota(tx.QueryRow(ctx, query, backendID))
	if err != nil {
		return err
	}

	if err := checkQuota(quota, demand); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE backend_quotas SET
			vcpu_used = vcpu_used + $1,
			ram_used = ram_used + $2,
			public_ip_used = public_ip_used + $3,
			private_ip_used = private_ip_used + $4,
			disk_used = disk_used + $5
		WHERE backend_id = $6
	`, demand.VCPU, demand.RamGiB, demand.PublicIPs, demand.PrivateIPs, demand.DiskGiB, backendID)
	if err != nil {
		return fmt.Errorf("reserve quota: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Release освобождает занятую квоту, не опускаясь ниже нуля.
func (s *PostgresQuotaStorage) Release(ctx context.Context, backendID string, demand models.QuotaDemand) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE backend_quotas SET
			vcpu_used = GREATEST(vcpu_used - $1, 0),
			ram_used = GREATEST(ram_used - $2, 0),
			public_ip_used = GREATEST(public_ip_used - $3, 0),
			private_ip_used = GREATEST(private_ip_used - $4, 0),
			disk_used = GREATEST(disk_used - $5, 0)
		WHERE backend_id = $6
	`, demand.VCPU, demand.RamGiB, demand.PublicIPs, demand.PrivateIPs, demand.DiskGiB, backendID)
	if err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrQuotaNotFound
	}
	return nil
}

// checkQuota проверяет достаточность квоты по каждому измерению.
// total <= 0 означает отсутствие ограничения по измерению.
func checkQuota(q *models.BackendQuota, d models.QuotaDemand) error {
	type dim struct {
		name      string
		total     int
		used      int
		requested int
	}
	dims := []dim{
		{"vCPU", q.VCPUTotal, q.VCPUUsed, d.VCPU},
		{"RAM", q.RamGiBTotal, q.RamGiBUsed, d.RamGiB},
		{"публичных IP", q.PublicIPTotal, q.PublicIPUsed, d.PublicIPs},
		{"приватных IP", q.PrivateIPTotal, q.PrivateIPUsed, d.PrivateIPs},
		{"диска", q.DiskGiBTotal, q.DiskGiBUsed, d.DiskGiB},
	}
	for _, dm := range dims {
		if dm.requested <= 0 || dm.total <= 0 {
			continue
		}
		if dm.total-dm.used < dm.requested {
			return errs.New(errs.CodeQuotaShortage,
				fmt.Sprintf("недостаточно квоты %s на бекенде", dm.name))
		}
	}
	return nil
}

func scanQuota(row pgx.Row) (*models.BackendQuota, error) {
	var q models.BackendQuota
	err := row.Scan(
		&q.BackendID, &q.VCPUTotal, &q.VCPUUsed, &q.RamGiBTotal, &q.RamGiBUsed,
		&q.PublicIPTotal, &q.PublicIPUsed, &q.PrivateIPTotal, &q.PrivateIPUsed,
		&q.DiskGiBTotal, &q.DiskGiBUsed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuotaNotFound
		}
		return nil, fmt.Errorf("scan quota: %w", err)
	}
	return &q, nil
}
