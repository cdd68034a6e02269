package driver

import (
	"context"
	"time"

	"github.com/ovolkov/cloudmarket/internal/models"
)

// Session результат аутентификации на бекенде.
type Session struct {
	Token  string
	Expiry time.Time
}

// Expired сообщает, истёк ли срок действия сессии.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !s.Expiry.After(now)
}

// ServerSpec параметры создания сервера на бекенде.
type ServerSpec struct {
	CPU           int
	RamMiB        int
	ImageID       string
	NetworkID     string
	SystemDiskGiB int
	AzoneID       string
	FlavorID      string
	RegionID      string
	Remark        string
}

// CreatedServer данные созданного на бекенде сервера.
type CreatedServer struct {
	ProviderInstanceID string
	Name               string
	DefaultUser        string
	DefaultPassword    string
}

// ServerDetail сведения о сервере для опроса состояния.
type ServerDetail struct {
	ProviderInstanceID string
	Name               string
	Status             ServerStatus
	IPv4               string
	ImageName          string
	DefaultUser        string
	DefaultPassword    string
}

// ServerStatus статус сервера на бекенде.
type ServerStatus string

const (
	StatusRunning  ServerStatus = "running"
	StatusBuilding ServerStatus = "building"
	StatusShutoff  ServerStatus = "shutoff"
	StatusError    ServerStatus = "error"
	StatusMissing  ServerStatus = "missing"
)

// DiskSpec параметры создания диска на бекенде.
type DiskSpec struct {
	SizeGiB  int
	AzoneID  string
	RegionID string
	Remark   string
}

// CreatedDisk данные созданного на бекенде диска.
type CreatedDisk struct {
	ProviderDiskID string
	Name           string
}

// DiskDetail сведения о диске для опроса состояния.
type DiskDetail struct {
	ProviderDiskID string
	Name           string
	Status         ServerStatus
	SizeGiB        int
}

// Driver единый контракт возможностей облачного бекенда.
// Реализации выполняют только сетевые вызовы и ничего не сохраняют локально.
//
// DeleteServer и DeleteDisk обязаны быть идемпотентными: удаление уже
// отсутствующего экземпляра — успех, а не ошибка.
type Driver interface {
	Authenticate(ctx context.Context, backend *models.Backend) (*Session, error)
	CreateServer(ctx context.Context, backend *models.Backend, sess *Session, spec ServerSpec) (*CreatedServer, error)
	DeleteServer(ctx context.Context, backend *models.Backend, sess *Session, providerInstanceID string, force bool) error
	DescribeServer(ctx context.Context, backend *models.Backend, sess *Session, providerInstanceID string) (*ServerDetail, error)
	CreateDisk(ctx context.Context, backend *models.Backend, sess *Session, spec DiskSpec) (*CreatedDisk, error)
	DeleteDisk(ctx context.Context, backend *models.Backend, sess *Session, providerDiskID string) error
	DescribeDisk(ctx context.Context, backend *models.Backend, sess *Session, providerDiskID string) (*DiskDetail, error)
}
