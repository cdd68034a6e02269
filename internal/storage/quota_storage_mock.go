package storage

import (
	"context"
	"sync"

	"github.com/ovolkov/cloudmarket/internal/models"
)

// MemoryQuotaStorage реализация QuotaStorage в памяти с теми же
// семантиками, что у PostgresQuotaStorage. Используется в тестах.
type MemoryQuotaStorage struct {
	mu     sync.Mutex
	quotas map[string]*models.BackendQuota
}

// NewMemoryQuotaStorage создаёт хранилище квот в памяти.
func NewMemoryQuotaStorage() *MemoryQuotaStorage {
	return &MemoryQuotaStorage{quotas: make(map[string]*models.BackendQuota)}
}

// Put задаёт квоту бекенда.
func (s *MemoryQuotaStorage) Put(quota *models.BackendQuota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *quota
	s.quotas[quota.BackendID] = &cp
}

// Get возвращает копию квоты бекенда.
func (s *MemoryQuotaStorage) Get(ctx context.Context, backendID string) (*models.BackendQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[backendID]
	if !ok {
		return nil, ErrQuotaNotFound
	}
	cp := *q
	return &cp, nil
}

// Reserve занимает квоту по всем измерениям сразу.
func (s *MemoryQuotaStorage) Reserve(ctx context.Context, backendID string, demand models.QuotaDemand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[backendID]
	if !ok {
		return ErrQuotaNotFound
	}
	if err := checkQuota(q, demand); err != nil {
		return err
	}
	q.VCPUUsed += demand.VCPU
	q.RamGiBUsed += demand.RamGiB
	q.PublicIPUsed += demand.PublicIPs
	q.PrivateIPUsed += demand.PrivateIPs
	q.DiskGiBUsed += demand.DiskGiB
	return nil
}

// Release освобождает занятую квоту, не опускаясь ниже нуля.
func (s *MemoryQuotaStorage) Release(ctx context.Context, backendID string, demand models.QuotaDemand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[backendID]
	if !ok {
		return ErrQuotaNotFound
	}
	q.VCPUUsed = max0(q.VCPUUsed - demand.VCPU)
	q.RamGiBUsed = max0(q.RamGiBUsed - demand.RamGiB)
	q.PublicIPUsed = max0(q.PublicIPUsed - demand.PublicIPs)
	q.PrivateIPUsed = max0(q.PrivateIPUsed - demand.PrivateIPs)
	q.DiskGiBUsed = max0(q.DiskGiBUsed - demand.DiskGiB)
	return nil
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
