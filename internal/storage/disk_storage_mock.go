package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ovolkov/cloudmarket/internal/models"
)

// MockDiskStorage - мок для тестирования (экспортируемый для использования в других пакетах)
type MockDiskStorage struct {
	CreateFunc          func(ctx context.Context, disk *models.Disk) error
	GetByIDFunc         func(ctx context.Context, diskID string) (*models.Disk, error)
	GetForUpdateTxFunc  func(ctx context.Context, tx pgx.Tx, diskID string) (*models.Disk, error)
	SetExpirationTxFunc func(ctx context.Context, tx pgx.Tx, diskID string, expiration time.Time) error
	SetPayTypeTxFunc    func(ctx context.Context, tx pgx.Tx, diskID string, payType models.PayType, start, expiration time.Time) error
}

func (m *MockDiskStorage) Create(ctx context.Context, disk *models.Disk) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, disk)
	}
	return nil
}

func (m *MockDiskStorage) GetByID(ctx context.Context, diskID string) (*models.Disk, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, diskID)
	}
	return nil, ErrDiskNotFound
}

func (m *MockDiskStorage) GetForUpdateTx(ctx context.Context, tx pgx.Tx, diskID string) (*models.Disk, error) {
	if m.GetForUpdateTxFunc != nil {
		return m.GetForUpdateTxFunc(ctx, tx, diskID)
	}
	return nil, ErrDiskNotFound
}

func (m *MockDiskStorage) SetExpirationTx(ctx context.Context, tx pgx.Tx, diskID string, expiration time.Time) error {
	if m.SetExpirationTxFunc != nil {
		return m.SetExpirationTxFunc(ctx, tx, diskID, expiration)
	}
	return nil
}

func (m *MockDiskStorage) SetPayTypeTx(ctx context.Context, tx pgx.Tx, diskID string, payType models.PayType, start, expiration time.Time) error {
	if m.SetPayTypeTxFunc != nil {
		return m.SetPayTypeTxFunc(ctx, tx, diskID, payType, start, expiration)
	}
	return nil
}
