package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/shopspring/decimal"
)

// MockUserStorage - мок для тестирования (экспортируемый для использования в других пакетах)
type MockUserStorage struct {
	CreateFunc             func(ctx context.Context, user *models.User) error
	GetByLoginFunc         func(ctx context.Context, login string) (*models.User, error)
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*models.User, error)
	PayFromBalanceTxFunc   func(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID string, amount decimal.Decimal) (uuid.UUID, error)
	CreateRefundTicketFunc func(ctx context.Context, ticket *models.RefundTicket) error
}

func (m *MockUserStorage) Create(ctx context.Context, user *models.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

func (m *MockUserStorage) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, ErrUserNotFound
}

func (m *MockUserStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrUserNotFound
}

func (m *MockUserStorage) PayFromBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID string, amount decimal.Decimal) (uuid.UUID, error) {
	if m.PayFromBalanceTxFunc != nil {
		return m.PayFromBalanceTxFunc(ctx, tx, userID, orderID, amount)
	}
	return uuid.New(), nil
}

func (m *MockUserStorage) CreateRefundTicket(ctx context.Context, ticket *models.RefundTicket) error {
	if m.CreateRefundTicketFunc != nil {
		return m.CreateRefundTicketFunc(ctx, ticket)
	}
	return nil
}
