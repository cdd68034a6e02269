package storage

import (
	"context"

	"github.com/ovolkov/cloudmarket/internal/models"
)

// MockBackendStorage - мок для тестирования (экспортируемый для использования в других пакетах)
type MockBackendStorage struct {
	GetByIDFunc func(ctx context.Context, backendID string) (*models.Backend, error)
	ListFunc    func(ctx context.Context) ([]*models.Backend, error)
}

func (m *MockBackendStorage) GetByID(ctx context.Context, backendID string) (*models.Backend, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, backendID)
	}
	return nil, ErrBackendNotFound
}

func (m *MockBackendStorage) List(ctx context.Context) ([]*models.Backend, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}
