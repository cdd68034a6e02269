package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ovolkov/cloudmarket/internal/models"
)

// Registry сопоставляет конфигурацию бекенда с драйвером и кеширует сессии
// аутентификации по id бекенда. Сессия обновляется лениво: по истечении
// срока действия либо после отказа в аутентификации. Вызов, упавший с
// ошибкой аутентификации, повторяется ровно один раз после принудительной
// повторной аутентификации.
type Registry struct {
	drivers map[models.BackendKind]Driver

	mu       sync.Mutex
	sessions map[string]*Session

	now func() time.Time
}

// NewRegistry создаёт реестр с драйверами для всех известных видов бекендов.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		drivers: map[models.BackendKind]Driver{
			models.BackendKindEVCloud:   NewEVCloudDriver(timeout),
			models.BackendKindOpenStack: NewOpenStackDriver(timeout),
		},
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// NewRegistryWithDrivers создаёт реестр с заданным набором драйверов.
func NewRegistryWithDrivers(drivers map[models.BackendKind]Driver) *Registry {
	return &Registry{
		drivers:  drivers,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Resolve возвращает драйвер для вида бекенда.
func (r *Registry) Resolve(kind models.BackendKind) (Driver, error) {
	drv, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackendKind, kind)
	}
	return drv, nil
}

// session возвращает закешированную сессию бекенда, аутентифицируясь
// при отсутствии, истечении срока или принудительном обновлении.
func (r *Registry) session(ctx context.Context, drv Driver, backend *models.Backend, refresh bool) (*Session, error) {
	r.mu.Lock()
	sess := r.sessions[backend.ID]
	r.mu.Unlock()

	if !refresh && !sess.Expired(r.now()) {
		return sess, nil
	}

	sess, err := drv.Authenticate(ctx, backend)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[backend.ID] = sess
	r.mu.Unlock()
	return sess, nil
}

// call выполняет операцию с сессией; при ошибке аутентификации обновляет
// сессию и повторяет операцию один раз.
func (r *Registry) call(ctx context.Context, backend *models.Backend, fn func(drv Driver, sess *Session) error) error {
	drv, err := r.Resolve(backend.Kind)
	if err != nil {
		return err
	}

	sess, err := r.session(ctx, drv, backend, false)
	if err != nil {
		return err
	}

	err = fn(drv, sess)
	if err == nil || !IsAuthError(err) {
		return err
	}

	sess, err = r.session(ctx, drv, backend, true)
	if err != nil {
		return err
	}
	return fn(drv, sess)
}

// CreateServer создаёт сервер на бекенде.
func (r *Registry) CreateServer(ctx context.Context, backend *models.Backend, spec ServerSpec) (*CreatedServer, error) {
	var out *CreatedServer
	err := r.call(ctx, backend, func(drv Driver, sess *Session) error {
		var cerr error
		out, cerr = drv.CreateServer(ctx, backend, sess, spec)
		return cerr
	})
	return out, err
}

// DeleteServer удаляет сервер на бекенде. Отсутствие экземпляра — успех.
func (r *Registry) DeleteServer(ctx context.Context, backend *models.Backend, providerInstanceID string, force bool) error {
	return r.call(ctx, backend, func(drv Driver, sess *Session) error {
		return drv.DeleteServer(ctx, backend, sess, providerInstanceID, force)
	})
}

// DescribeServer запрашивает состояние сервера на бекенде.
func (r *Registry) DescribeServer(ctx context.Context, backend *models.Backend, providerInstanceID string) (*ServerDetail, error) {
	var out *ServerDetail
	err := r.call(ctx, backend, func(drv Driver, sess *Session) error {
		var cerr error
		out, cerr = drv.DescribeServer(ctx, backend, sess, providerInstanceID)
		return cerr
	})
	return out, err
}

// CreateDisk создаёт диск на бекенде.
func (r *Registry) CreateDisk(ctx context.Context, backend *models.Backend, spec DiskSpec) (*CreatedDisk, error) {
	var out *CreatedDisk
	err := r.call(ctx, backend, func(drv Driver, sess *Session) error {
		var cerr error
		out, cerr = drv.CreateDisk(ctx, backend, sess, spec)
		return cerr
	})
	return out, err
}

// DeleteDisk удаляет диск на бекенде. Отсутствие диска — успех.
func (r *Registry) DeleteDisk(ctx context.Context, backend *models.Backend, providerDiskID string) error {
	return r.call(ctx, backend, func(drv Driver, sess *Session) error {
		return drv.DeleteDisk(ctx, backend, sess, providerDiskID)
	})
}

// DescribeDisk запрашивает состояние диска на бекенде.
func (r *Registry) DescribeDisk(ctx context.Context, backend *models.Backend, providerDiskID string) (*DiskDetail, error) {
	var out *DiskDetail
	err := r.call(ctx, backend, func(drv Driver, sess *Session) error {
		var cerr error
		out, cerr = drv.DescribeDisk(ctx, backend, sess, providerDiskID)
		return cerr
	})
	return out, err
}
