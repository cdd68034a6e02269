package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ovolkov/cloudmarket/internal/models"
)

// MockOrderStorage - мок для тестирования (экспортируемый для использования в других пакетах)
type MockOrderStorage struct {
	CreateFunc                  func(ctx context.Context, order *models.Order, resources []*models.Resource) error
	GetByIDFunc                 func(ctx context.Context, orderID string) (*models.Order, error)
	GetByOwnerFunc              func(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]*models.Order, error)
	GetForUpdateTxFunc          func(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error)
	GetResourcesForUpdateTxFunc func(ctx context.Context, tx pgx.Tx, orderID string) ([]*models.Resource, error)
	MarkDeliverAttemptTxFunc    func(ctx context.Context, tx pgx.Tx, orderID string, resourceIDs []string, now time.Time) error
	SetOrderActionFunc          func(ctx context.Context, orderID string, action models.OrderAction) error
	SetTradingStatusFunc        func(ctx context.Context, orderID string, status models.TradingStatus) error
	SetPaidTxFunc               func(ctx context.Context, tx pgx.Tx, orderID string, paymentHistoryID string) error
	SetCancelledFunc            func(ctx context.Context, orderID string) error
	SetRefundingFunc            func(ctx context.Context, orderID string) error
	GetResourcesFunc            func(ctx context.Context, orderID string) ([]*models.Resource, error)
	SetResourceSuccessFunc      func(ctx context.Context, resourceID, instanceID string) error
	SetResourceFailedFunc       func(ctx context.Context, resourceID, desc string) error
	SetResourcesFailedFunc      func(ctx context.Context, resourceIDs []string, desc string) error
}

func (m *MockOrderStorage) Create(ctx context.Context, order *models.Order, resources []*models.Resource) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order, resources)
	}
	return nil
}

func (m *MockOrderStorage) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, orderID)
	}
	return nil, ErrOrderNotFound
}

func (m *MockOrderStorage) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]*models.Order, error) {
	if m.GetByOwnerFunc != nil {
		return m.GetByOwnerFunc(ctx, ownerType, ownerID)
	}
	return nil, nil
}

func (m *MockOrderStorage) GetForUpdateTx(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error) {
	if m.GetForUpdateTxFunc != nil {
		return m.GetForUpdateTxFunc(ctx, tx, orderID)
	}
	return nil, ErrOrderNotFound
}

func (m *MockOrderStorage) GetResourcesForUpdateTx(ctx context.Context, tx pgx.Tx, orderID string) ([]*models.Resource, error) {
	if m.GetResourcesForUpdateTxFunc != nil {
		return m.GetResourcesForUpdateTxFunc(ctx, tx, orderID)
	}
	return nil, nil
}

func (m *MockOrderStorage) MarkDeliverAttemptTx(ctx context.Context, tx pgx.Tx, orderID string, resourceIDs []string, now time.Time) error {
	if m.MarkDeliverAttemptTxFunc != nil {
		return m.MarkDeliverAttemptTxFunc(ctx, tx, orderID, resourceIDs, now)
	}
	return nil
}

func (m *MockOrderStorage) SetOrderAction(ctx context.Context, orderID string, action models.OrderAction) error {
	if m.SetOrderActionFunc != nil {
		return m.SetOrderActionFunc(ctx, orderID, action)
	}
	return nil
}

func (m *MockOrderStorage) SetTradingStatus(ctx context.Context, orderID string, status models.TradingStatus) error {
	if m.SetTradingStatusFunc != nil {
		return m.SetTradingStatusFunc(ctx, orderID, status)
	}
	return nil
}

func (m *MockOrderStorage) SetPaidTx(ctx context.Context, tx pgx.Tx, orderID string, paymentHistoryID string) error {
	if m.SetPaidTxFunc != nil {
		return m.SetPaidTxFunc(ctx, tx, orderID, paymentHistoryID)
	}
	return nil
}

func (m *MockOrderStorage) SetCancelled(ctx context.Context, orderID string) error {
	if m.SetCancelledFunc != nil {
		return m.SetCancelledFunc(ctx, orderID)
	}
	return nil
}

func (m *MockOrderStorage) SetRefunding(ctx context.Context, orderID string) error {
	if m.SetRefundingFunc != nil {
		return m.SetRefundingFunc(ctx, orderID)
	}
	return nil
}

func (m *MockOrderStorage) GetResources(ctx context.Context, orderID string) ([]*models.Resource, error) {
	if m.GetResourcesFunc != nil {
		return m.GetResourcesFunc(ctx, orderID)
	}
	return nil, nil
}

func (m *MockOrderStorage) SetResourceSuccess(ctx context.Context, resourceID, instanceID string) error {
	if m.SetResourceSuccessFunc != nil {
		return m.SetResourceSuccessFunc(ctx, resourceID, instanceID)
	}
	return nil
}

func (m *MockOrderStorage) SetResourceFailed(ctx context.Context, resourceID, desc string) error {
	if m.SetResourceFailedFunc != nil {
		return m.SetResourceFailedFunc(ctx, resourceID, desc)
	}
	return nil
}

func (m *MockOrderStorage) SetResourcesFailed(ctx context.Context, resourceIDs []string, desc string) error {
	if m.SetResourcesFailedFunc != nil {
		return m.SetResourcesFailedFunc(ctx, resourceIDs, desc)
	}
	return nil
}
