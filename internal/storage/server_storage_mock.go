package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ovolkov/cloudmarket/internal/models"
)

// MockServerStorage - мок для тестирования (экспортируемый для использования в других пакетах)
type MockServerStorage struct {
	CreateFunc           func(ctx context.Context, server *models.Server) error
	GetByIDFunc          func(ctx context.Context, serverID string) (*models.Server, error)
	GetForUpdateTxFunc   func(ctx context.Context, tx pgx.Tx, serverID string) (*models.Server, error)
	SetExpirationTxFunc  func(ctx context.Context, tx pgx.Tx, serverID string, expiration time.Time) error
	SetPayTypeTxFunc     func(ctx context.Context, tx pgx.Tx, serverID string, payType models.PayType, start, expiration time.Time) error
	ListByTaskStatusFunc func(ctx context.Context, status models.ServerTaskStatus) ([]*models.Server, error)
	UpdateBuildResultFunc func(ctx context.Context, server *models.Server) error
}

func (m *MockServerStorage) Create(ctx context.Context, server *models.Server) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, server)
	}
	return nil
}

func (m *MockServerStorage) GetByID(ctx context.Context, serverID string) (*models.Server, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, serverID)
	}
	return nil, ErrServerNotFound
}

func (m *MockServerStorage) GetForUpdateTx(ctx context.Context, tx pgx.Tx, serverID string) (*models.Server, error) {
	if m.GetForUpdateTxFunc != nil {
		return m.GetForUpdateTxFunc(ctx, tx, serverID)
	}
	return nil, ErrServerNotFound
}

func (m *MockServerStorage) SetExpirationTx(ctx context.Context, tx pgx.Tx, serverID string, expiration time.Time) error {
	if m.SetExpirationTxFunc != nil {
		return m.SetExpirationTxFunc(ctx, tx, serverID, expiration)
	}
	return nil
}

func (m *MockServerStorage) SetPayTypeTx(ctx context.Context, tx pgx.Tx, serverID string, payType models.PayType, start, expiration time.Time) error {
	if m.SetPayTypeTxFunc != nil {
		return m.SetPayTypeTxFunc(ctx, tx, serverID, payType, start, expiration)
	}
	return nil
}

func (m *MockServerStorage) ListByTaskStatus(ctx context.Context, status models.ServerTaskStatus) ([]*models.Server, error) {
	if m.ListByTaskStatusFunc != nil {
		return m.ListByTaskStatusFunc(ctx, status)
	}
	return nil, nil
}

func (m *MockServerStorage) UpdateBuildResult(ctx context.Context, server *models.Server) error {
	if m.UpdateBuildResultFunc != nil {
		return m.UpdateBuildResultFunc(ctx, server)
	}
	return nil
}
