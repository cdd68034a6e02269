package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ovolkov/cloudmarket/internal/driver"
	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/ovolkov/cloudmarket/internal/storage"
)

// DeliverService определяет интерфейс доставки оплаченных заказов.
type DeliverService interface {
	Deliver(ctx context.Context, orderID string) ([]*models.Resource, error)
}

// DeliverServiceImpl превращает оплаченный заказ в ресурсы на бекенде.
//
// Доставка — сага: резервирование квоты, сетевое создание экземпляра,
// сохранение локальных метаданных, компенсация при частичном отказе.
// Блокировки строк держатся только на коротком предварительном шаге,
// сетевые вызовы выполняются вне транзакции.
type DeliverServiceImpl struct {
	pool           TxBeginner
	orderStorage   OrderStorage
	quotaStorage   QuotaStorage
	backendStorage BackendStorage
	serverStorage  ServerStorage
	diskStorage    DiskStorage
	backends       BackendClient
	logger         *log.Logger

	// now подменяется в тестах
	now func() time.Time
}

// NewDeliverService создаёт новый сервис доставки.
func NewDeliverService(
	pool TxBeginner,
	orderStorage OrderStorage,
	quotaStorage QuotaStorage,
	backendStorage BackendStorage,
	serverStorage ServerStorage,
	diskStorage DiskStorage,
	backends BackendClient,
	logger *log.Logger,
) *DeliverServiceImpl {
	return &DeliverServiceImpl{
		pool:           pool,
		orderStorage:   orderStorage,
		quotaStorage:   quotaStorage,
		backendStorage: backendStorage,
		serverStorage:  serverStorage,
		diskStorage:    diskStorage,
		backends:       backends,
		logger:         logger,
		now:            time.Now,
	}
}

// Deliver выполняет доставку по заказу и возвращает успешно доставленные
// позиции, включая доставленные прошлыми попытками.
//
// Повторный вызов безопасен: успешные позиции не пересоздаются, а попытка
// в пределах минуты после предыдущей отклоняется с TryAgainLater.
func (s *DeliverServiceImpl) Deliver(ctx context.Context, orderID string) ([]*models.Resource, error) {
	order, candidates, delivered, err := s.prepare(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Все позиции уже доставлены: повторный вызов ничего не делает.
	if len(candidates) == 0 {
		return delivered, nil
	}

	// Флаг доставки снимается на любом выходе, иначе заказ останется
	// заблокированным для будущих попыток.
	defer func() {
		if cErr := s.orderStorage.SetOrderAction(ctx, orderID, models.OrderActionNone); cErr != nil {
			s.logger.Printf("deliver %s: не удалось снять флаг доставки: %v", orderID, cErr)
		}
	}()

	switch {
	case order.OrderType == models.OrderTypeNew && order.ResourceType == models.ResourceKindVM:
		return s.deliverNewServers(ctx, order, candidates, delivered)
	case order.OrderType == models.OrderTypeNew && order.ResourceType == models.ResourceKindDisk:
		return s.deliverNewDisks(ctx, order, candidates, delivered)
	case order.OrderType == models.OrderTypeRenewal && order.ResourceType == models.ResourceKindVM:
		return s.renewServer(ctx, order, candidates)
	case order.OrderType == models.OrderTypeRenewal && order.ResourceType == models.ResourceKindDisk:
		return s.renewDisk(ctx, order, candidates)
	case order.OrderType == models.OrderTypePost2Pre && order.ResourceType == models.ResourceKindVM:
		return s.post2preServer(ctx, order, candidates)
	case order.OrderType == models.OrderTypePost2Pre && order.ResourceType == models.ResourceKindDisk:
		return s.post2preDisk(ctx, order, candidates)
	}
	return nil, errs.New(errs.CodeInvalidArgument,
		fmt.Sprintf("доставка заказов %s/%s не поддерживается", order.OrderType, order.ResourceType))
}

// prepare выполняет предварительный шаг саги в одной короткой транзакции:
// проверку состояния заказа под блокировкой, отбор кандидатов, проверку
// интервала с прошлой попытки и пометку новой попытки.
func (s *DeliverServiceImpl) prepare(ctx context.Context, orderID string) (*models.Order, []*models.Resource, []*models.Resource, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orderStorage.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, nil, nil, errs.New(errs.CodeNotFound, "заказ не найден")
		}
		return nil, nil, nil, fmt.Errorf("get order: %w", err)
	}

	if err := order.CheckDeliverable(); err != nil {
		return nil, nil, nil, err
	}

	resources, err := s.orderStorage.GetResourcesForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get order resources: %w", err)
	}

	now := s.now()
	var candidates, delivered []*models.Resource
	for _, res := range resources {
		if res.InstanceStatus == models.InstanceStatusSuccess {
			delivered = append(delivered, res)
			continue
		}
		// Одна позиция в ожидании отклоняет всю попытку: предыдущая
		// доставка могла ещё не завершиться.
		if res.InCooldown(now) {
			return nil, nil, nil, errs.New(errs.CodeTryAgainLater,
				"предыдущая попытка доставки ещё не завершена, повторите позже")
		}
		candidates = append(candidates, res)
	}

	if len(candidates) > 0 {
		ids := make([]string, 0, len(candidates))
		for _, res := range candidates {
			ids = append(ids, res.ID)
		}
		if err := s.orderStorage.MarkDeliverAttemptTx(ctx, tx, orderID, ids, now); err != nil {
			return nil, nil, nil, fmt.Errorf("mark deliver attempt: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return order, candidates, delivered, nil
}

// deliverNewServers доставляет заказ новых серверов: резерв квоты на всех
// кандидатов, последовательное создание, сверка квоты по числу отказов.
func (s *DeliverServiceImpl) deliverNewServers(ctx context.Context, order *models.Order, candidates, delivered []*models.Resource) ([]*models.Resource, error) {
	backend, err := s.backendStorage.GetByID(ctx, order.BackendID)
	if err != nil {
		s.failCandidates(ctx, order, candidates, delivered, "бекенд заказа недоступен")
		return delivered, fmt.Errorf("get backend: %w", err)
	}

	cfg, err := models.ServerConfigFromJSON(order.InstanceConfig)
	if err != nil {
		s.failCandidates(ctx, order, candidates, delivered, "некорректный снимок конфигурации")
		return delivered, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация сервера", err)
	}

	unit := cfg.QuotaDemand()
	if err := s.quotaStorage.Reserve(ctx, backend.ID, unit.Scale(len(candidates))); err != nil {
		s.failCandidates(ctx, order, candidates, delivered, err.Error())
		return delivered, err
	}

	// releaseUnits — отказы, чья квота осталась зарезервированной и
	// возвращается одной записью в конце. Отказ с уже освобождённой
	// квотой и отказ, требующий ручного вмешательства, сюда не входят.
	var releaseUnits int
	var firstErr error
	for _, res := range candidates {
		server, released, cErr := s.createOneServer(ctx, backend, cfg, order, res)
		if cErr != nil {
			var manual *errs.NeedsManualRelease
			if errors.As(cErr, &manual) {
				// Квота намеренно не освобождается: на бекенде остался
				// экземпляр, двойное выделение опаснее утечки резерва.
				s.setResourceFailed(ctx, res.ID, cErr.Error())
				if firstErr == nil {
					firstErr = cErr
				}
				continue
			}
			s.setResourceFailed(ctx, res.ID, cErr.Error())
			if !released {
				releaseUnits++
			}
			if firstErr == nil {
				firstErr = cErr
			}
			continue
		}

		if err := s.orderStorage.SetResourceSuccess(ctx, res.ID, server.ID); err != nil {
			s.logger.Printf("deliver %s: не удалось отметить позицию %s доставленной: %v", order.ID, res.ID, err)
		}
		res.InstanceStatus = models.InstanceStatusSuccess
		res.InstanceID = server.ID
		delivered = append(delivered, res)
	}

	if releaseUnits > 0 {
		if err := s.quotaStorage.Release(ctx, backend.ID, unit.Scale(releaseUnits)); err != nil {
			// Освобождение квоты всегда best-effort.
			s.logger.Printf("deliver %s: не удалось вернуть квоту за %d отказов: %v", order.ID, releaseUnits, err)
		}
	}

	s.finalizeTrading(ctx, order, len(delivered))
	return delivered, firstErr
}

// createOneServer создаёт один сервер на бекенде и сохраняет его метаданные.
// Возвращает признак того, что квота единицы уже освобождена компенсацией.
func (s *DeliverServiceImpl) createOneServer(ctx context.Context, backend *models.Backend, cfg models.ServerConfig, order *models.Order, res *models.Resource) (*models.Server, bool, error) {
	spec := driver.ServerSpec{
		CPU:           cfg.CPU,
		RamMiB:        cfg.RamMiB,
		ImageID:       cfg.ImageID,
		NetworkID:     cfg.NetworkID,
		SystemDiskGiB: cfg.SystemDiskGiB,
		AzoneID:       cfg.AzoneID,
		FlavorID:      cfg.FlavorID,
		RegionID:      backend.RegionID,
		Remark:        res.InstanceRemark,
	}
	created, err := s.backends.CreateServer(ctx, backend, spec)
	if err != nil {
		return nil, false, errs.Wrap(errs.CodeBackendError, "создание сервера на бекенде", err)
	}

	now := s.now()
	server := &models.Server{
		ID:                 uuid.NewString(),
		BackendID:          backend.ID,
		ProviderInstanceID: created.ProviderInstanceID,
		InstanceName:       created.Name,
		VCPU:               cfg.CPU,
		RamGiB:             cfg.RamGiB(),
		PublicIP:           cfg.PublicIP,
		ImageID:            cfg.ImageID,
		NetworkID:          cfg.NetworkID,
		AzoneID:            cfg.AzoneID,
		DefaultUser:        created.DefaultUser,
		DefaultPassword:    created.DefaultPassword,
		TaskStatus:         models.ServerTaskCreating,
		PayType:            order.PayType,
		UserID:             order.UserID,
		VoID:               order.VoID,
		OwnerType:          order.OwnerType,
		StartTime:          now,
	}
	if order.PayType == models.PayTypePrepaid {
		exp := now.AddDate(0, 0, models.PeriodDays(order.Period))
		server.ExpirationTime = &exp
	}

	err = s.serverStorage.Create(ctx, server)
	if errors.Is(err, storage.ErrServerAlreadyExists) {
		// Коллизия локального id разрешается одной повторной генерацией.
		server.ID = uuid.NewString()
		err = s.serverStorage.Create(ctx, server)
	}
	if err == nil {
		return server, false, nil
	}

	// Метаданные сохранить не удалось: на бекенде остался осиротевший
	// экземпляр, его нужно удалить и вернуть квоту единицы.
	if delErr := s.backends.DeleteServer(ctx, backend, created.ProviderInstanceID, true); delErr != nil {
		return nil, false, &errs.NeedsManualRelease{
			ProviderInstanceID: created.ProviderInstanceID,
			Cause:              err,
		}
	}
	if relErr := s.quotaStorage.Release(ctx, backend.ID, cfg.QuotaDemand()); relErr != nil {
		s.logger.Printf("deliver %s: не удалось вернуть квоту после компенсации: %v", order.ID, relErr)
	}
	return nil, true, errs.Wrap(errs.CodeInternal, "сохранение метаданных сервера", err)
}

// deliverNewDisks доставляет заказ нового диска. Структурно повторяет
// серверный поток, диск всегда в одном экземпляре.
func (s *DeliverServiceImpl) deliverNewDisks(ctx context.Context, order *models.Order, candidates, delivered []*models.Resource) ([]*models.Resource, error) {
	backend, err := s.backendStorage.GetByID(ctx, order.BackendID)
	if err != nil {
		s.failCandidates(ctx, order, candidates, delivered, "бекенд заказа недоступен")
		return delivered, fmt.Errorf("get backend: %w", err)
	}

	cfg, err := models.DiskConfigFromJSON(order.InstanceConfig)
	if err != nil {
		s.failCandidates(ctx, order, candidates, delivered, "некорректный снимок конфигурации")
		return delivered, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация диска", err)
	}

	unit := cfg.QuotaDemand()
	if err := s.quotaStorage.Reserve(ctx, backend.ID, unit.Scale(len(candidates))); err != nil {
		s.failCandidates(ctx, order, candidates, delivered, err.Error())
		return delivered, err
	}

	var releaseUnits int
	var firstErr error
	for _, res := range candidates {
		disk, released, cErr := s.createOneDisk(ctx, backend, cfg, order, res)
		if cErr != nil {
			var manual *errs.NeedsManualRelease
			if errors.As(cErr, &manual) {
				s.setResourceFailed(ctx, res.ID, cErr.Error())
				if firstErr == nil {
					firstErr = cErr
				}
				continue
			}
			s.setResourceFailed(ctx, res.ID, cErr.Error())
			if !released {
				releaseUnits++
			}
			if firstErr == nil {
				firstErr = cErr
			}
			continue
		}

		if err := s.orderStorage.SetResourceSuccess(ctx, res.ID, disk.ID); err != nil {
			s.logger.Printf("deliver %s: не удалось отметить позицию %s доставленной: %v", order.ID, res.ID, err)
		}
		res.InstanceStatus = models.InstanceStatusSuccess
		res.InstanceID = disk.ID
		delivered = append(delivered, res)
	}

	if releaseUnits > 0 {
		if err := s.quotaStorage.Release(ctx, backend.ID, unit.Scale(releaseUnits)); err != nil {
			s.logger.Printf("deliver %s: не удалось вернуть квоту за %d отказов: %v", order.ID, releaseUnits, err)
		}
	}

	s.finalizeTrading(ctx, order, len(delivered))
	return delivered, firstErr
}

// createOneDisk создаёт один диск на бекенде и сохраняет его метаданные.
func (s *DeliverServiceImpl) createOneDisk(ctx context.Context, backend *models.Backend, cfg models.DiskConfig, order *models.Order, res *models.Resource) (*models.Disk, bool, error) {
	spec := driver.DiskSpec{
		SizeGiB:  cfg.SizeGiB,
		AzoneID:  cfg.AzoneID,
		RegionID: backend.RegionID,
		Remark:   res.InstanceRemark,
	}
	created, err := s.backends.CreateDisk(ctx, backend, spec)
	if err != nil {
		return nil, false, errs.Wrap(errs.CodeBackendError, "создание диска на бекенде", err)
	}

	now := s.now()
	disk := &models.Disk{
		ID:             uuid.NewString(),
		BackendID:      backend.ID,
		ProviderDiskID: created.ProviderDiskID,
		InstanceName:   created.Name,
		SizeGiB:        cfg.SizeGiB,
		AzoneID:        cfg.AzoneID,
		TaskStatus:     models.ServerTaskCreatedOK,
		PayType:        order.PayType,
		UserID:         order.UserID,
		VoID:           order.VoID,
		OwnerType:      order.OwnerType,
		StartTime:      now,
	}
	if order.PayType == models.PayTypePrepaid {
		exp := now.AddDate(0, 0, models.PeriodDays(order.Period))
		disk.ExpirationTime = &exp
	}

	err = s.diskStorage.Create(ctx, disk)
	if errors.Is(err, storage.ErrDiskAlreadyExists) {
		disk.ID = uuid.NewString()
		err = s.diskStorage.Create(ctx, disk)
	}
	if err == nil {
		return disk, false, nil
	}

	if delErr := s.backends.DeleteDisk(ctx, backend, created.ProviderDiskID); delErr != nil {
		return nil, false, &errs.NeedsManualRelease{
			ProviderInstanceID: created.ProviderDiskID,
			Cause:              err,
		}
	}
	if relErr := s.quotaStorage.Release(ctx, backend.ID, cfg.QuotaDemand()); relErr != nil {
		s.logger.Printf("deliver %s: не удалось вернуть квоту после компенсации: %v", order.ID, relErr)
	}
	return nil, true, errs.Wrap(errs.CodeInternal, "сохранение метаданных диска", err)
}

// renewServer продлевает срок действия предоплаченного сервера.
// Бекенд и квота не затрагиваются: продление не меняет занимаемых ресурсов.
func (s *DeliverServiceImpl) renewServer(ctx context.Context, order *models.Order, candidates []*models.Resource) ([]*models.Resource, error) {
	if err := checkRenewalOrder(order); err != nil {
		return nil, err
	}
	cfg, err := models.ServerRenewConfigFromJSON(order.InstanceConfig)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация продления", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	server, err := s.serverStorage.GetForUpdateTx(ctx, tx, cfg.ServerID)
	if err != nil {
		if errors.Is(err, storage.ErrServerNotFound) {
			return nil, errs.New(errs.CodeNotFound, "сервер не найден")
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	if server.PayType != models.PayTypePrepaid {
		return nil, errs.New(errs.CodeConflict, "продлевается только предоплаченный сервер")
	}
	// Снимок в заказе обязан совпадать с живым экземпляром: заказ мог
	// быть создан до изменения конфигурации сервера.
	if server.VCPU != cfg.CPU || server.RamGiB*1024 != cfg.RamMiB {
		return nil, errs.New(errs.CodeConflict, "конфигурация заказа не совпадает с сервером")
	}

	expiration := extendExpiration(server.ExpirationTime, order.Period, s.now())
	if err := s.serverStorage.SetExpirationTx(ctx, tx, server.ID, expiration); err != nil {
		return nil, fmt.Errorf("set server expiration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.completeLocalMutation(ctx, order, candidates, server.ID), nil
}

// renewDisk продлевает срок действия предоплаченного диска.
func (s *DeliverServiceImpl) renewDisk(ctx context.Context, order *models.Order, candidates []*models.Resource) ([]*models.Resource, error) {
	if err := checkRenewalOrder(order); err != nil {
		return nil, err
	}
	cfg, err := models.DiskRenewConfigFromJSON(order.InstanceConfig)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация продления", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	disk, err := s.diskStorage.GetForUpdateTx(ctx, tx, cfg.DiskID)
	if err != nil {
		if errors.Is(err, storage.ErrDiskNotFound) {
			return nil, errs.New(errs.CodeNotFound, "диск не найден")
		}
		return nil, fmt.Errorf("get disk: %w", err)
	}
	if disk.PayType != models.PayTypePrepaid {
		return nil, errs.New(errs.CodeConflict, "продлевается только предоплаченный диск")
	}
	if disk.SizeGiB != cfg.SizeGiB {
		return nil, errs.New(errs.CodeConflict, "конфигурация заказа не совпадает с диском")
	}

	expiration := extendExpiration(disk.ExpirationTime, order.Period, s.now())
	if err := s.diskStorage.SetExpirationTx(ctx, tx, disk.ID, expiration); err != nil {
		return nil, fmt.Errorf("set disk expiration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.completeLocalMutation(ctx, order, candidates, disk.ID), nil
}

// post2preServer переводит сервер с оплаты по факту на предоплату
// и открывает новый расчётный период.
func (s *DeliverServiceImpl) post2preServer(ctx context.Context, order *models.Order, candidates []*models.Resource) ([]*models.Resource, error) {
	if err := checkRenewalOrder(order); err != nil {
		return nil, err
	}
	cfg, err := models.ServerRenewConfigFromJSON(order.InstanceConfig)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация перевода", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	server, err := s.serverStorage.GetForUpdateTx(ctx, tx, cfg.ServerID)
	if err != nil {
		if errors.Is(err, storage.ErrServerNotFound) {
			return nil, errs.New(errs.CodeNotFound, "сервер не найден")
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	if server.PayType != models.PayTypePostpaid {
		return nil, errs.New(errs.CodeConflict, "сервер уже на предоплате")
	}
	if server.VCPU != cfg.CPU || server.RamGiB*1024 != cfg.RamMiB {
		return nil, errs.New(errs.CodeConflict, "конфигурация заказа не совпадает с сервером")
	}

	now := s.now()
	expiration := now.AddDate(0, 0, models.PeriodDays(order.Period))
	if err := s.serverStorage.SetPayTypeTx(ctx, tx, server.ID, models.PayTypePrepaid, now, expiration); err != nil {
		return nil, fmt.Errorf("set server pay type: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.completeLocalMutation(ctx, order, candidates, server.ID), nil
}

// post2preDisk переводит диск с оплаты по факту на предоплату.
func (s *DeliverServiceImpl) post2preDisk(ctx context.Context, order *models.Order, candidates []*models.Resource) ([]*models.Resource, error) {
	if err := checkRenewalOrder(order); err != nil {
		return nil, err
	}
	cfg, err := models.DiskRenewConfigFromJSON(order.InstanceConfig)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация перевода", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	disk, err := s.diskStorage.GetForUpdateTx(ctx, tx, cfg.DiskID)
	if err != nil {
		if errors.Is(err, storage.ErrDiskNotFound) {
			return nil, errs.New(errs.CodeNotFound, "диск не найден")
		}
		return nil, fmt.Errorf("get disk: %w", err)
	}
	if disk.PayType != models.PayTypePostpaid {
		return nil, errs.New(errs.CodeConflict, "диск уже на предоплате")
	}
	if disk.SizeGiB != cfg.SizeGiB {
		return nil, errs.New(errs.CodeConflict, "конфигурация заказа не совпадает с диском")
	}

	now := s.now()
	expiration := now.AddDate(0, 0, models.PeriodDays(order.Period))
	if err := s.diskStorage.SetPayTypeTx(ctx, tx, disk.ID, models.PayTypePrepaid, now, expiration); err != nil {
		return nil, fmt.Errorf("set disk pay type: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.completeLocalMutation(ctx, order, candidates, disk.ID), nil
}

// completeLocalMutation отмечает позиции локальной мутации доставленными
// и завершает сделку.
func (s *DeliverServiceImpl) completeLocalMutation(ctx context.Context, order *models.Order, candidates []*models.Resource, instanceID string) []*models.Resource {
	delivered := make([]*models.Resource, 0, len(candidates))
	for _, res := range candidates {
		if err := s.orderStorage.SetResourceSuccess(ctx, res.ID, instanceID); err != nil {
			s.logger.Printf("deliver %s: не удалось отметить позицию %s доставленной: %v", order.ID, res.ID, err)
		}
		res.InstanceStatus = models.InstanceStatusSuccess
		res.InstanceID = instanceID
		delivered = append(delivered, res)
	}
	if err := s.orderStorage.SetTradingStatus(ctx, order.ID, models.TradingStatusCompleted); err != nil {
		s.logger.Printf("deliver %s: не удалось завершить сделку: %v", order.ID, err)
	}
	return delivered
}

// failCandidates помечает всех кандидатов недоставленными до первого
// сетевого вызова и подводит итог сделки.
func (s *DeliverServiceImpl) failCandidates(ctx context.Context, order *models.Order, candidates, delivered []*models.Resource, desc string) {
	ids := make([]string, 0, len(candidates))
	for _, res := range candidates {
		ids = append(ids, res.ID)
	}
	if err := s.orderStorage.SetResourcesFailed(ctx, ids, desc); err != nil {
		s.logger.Printf("deliver %s: не удалось отметить позиции недоставленными: %v", order.ID, err)
	}
	s.finalizeTrading(ctx, order, len(delivered))
}

// finalizeTrading подводит итог сделки по числу доставленных позиций
// среди всех заказанных.
func (s *DeliverServiceImpl) finalizeTrading(ctx context.Context, order *models.Order, deliveredTotal int) {
	var status models.TradingStatus
	switch {
	case deliveredTotal >= order.Number:
		status = models.TradingStatusCompleted
	case deliveredTotal > 0:
		status = models.TradingStatusPartDeliver
	default:
		status = models.TradingStatusUndelivered
	}
	if err := s.orderStorage.SetTradingStatus(ctx, order.ID, status); err != nil {
		s.logger.Printf("deliver %s: не удалось обновить статус сделки: %v", order.ID, err)
	}
	order.TradingStatus = status
}

func (s *DeliverServiceImpl) setResourceFailed(ctx context.Context, resourceID, desc string) {
	if err := s.orderStorage.SetResourceFailed(ctx, resourceID, desc); err != nil {
		s.logger.Printf("deliver: не удалось отметить позицию %s недоставленной: %v", resourceID, err)
	}
}

// checkRenewalOrder проверяет общие предусловия продления и смены способа
// расчёта: только предоплата и положительный срок.
func checkRenewalOrder(order *models.Order) error {
	if order.PayType != models.PayTypePrepaid || order.Period <= 0 {
		return errs.New(errs.CodeInvalidArgument, "продление оформляется только предоплатой на положительный срок")
	}
	return nil
}

// extendExpiration продлевает срок от текущего истечения, а для уже
// истёкшего или бессрочного экземпляра от текущего момента.
func extendExpiration(current *time.Time, periodMonths int, now time.Time) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, 0, models.PeriodDays(periodMonths))
}
