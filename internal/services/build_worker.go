package services

import (
	"context"
	"log"
	"time"

	"github.com/ovolkov/cloudmarket/internal/driver"
	"github.com/ovolkov/cloudmarket/internal/models"
)

// BuildWorker периодически опрашивает бекенды о серверах, создание которых
// ещё не завершилось, и дозаполняет адрес, образ и учётные данные.
type BuildWorker struct {
	serverStorage  ServerStorage
	backendStorage BackendStorage
	backends       BackendClient
	interval       time.Duration
	logger         *log.Logger
}

func NewBuildWorker(serverStorage ServerStorage, backendStorage BackendStorage, backends BackendClient, interval time.Duration, logger *log.Logger) *BuildWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BuildWorker{
		serverStorage:  serverStorage,
		backendStorage: backendStorage,
		backends:       backends,
		interval:       interval,
		logger:         logger,
	}
}

// Start запускает воркер в отдельной горутине и останавливается по ctx.Done().
func (w *BuildWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		if err := w.processBatch(ctx); err != nil {
			w.logger.Printf("build worker error on initial batch: %v", err)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.processBatch(ctx); err != nil {
					w.logger.Printf("build worker error: %v", err)
				}
			}
		}
	}()
}

func (w *BuildWorker) processBatch(ctx context.Context) error {
	servers, err := w.serverStorage.ListByTaskStatus(ctx, models.ServerTaskCreating)
	if err != nil {
		w.logger.Printf("failed to list creating servers: %v", err)
		return err
	}

	if len(servers) > 0 {
		w.logger.Printf("polling build status of %d servers", len(servers))
	}

	for _, srv := range servers {
		if err := w.processServer(ctx, srv); err != nil {
			w.logger.Printf("poll server %s error: %v", srv.ID, err)
		}
	}
	return nil
}

func (w *BuildWorker) processServer(ctx context.Context, server *models.Server) error {
	backend, err := w.backendStorage.GetByID(ctx, server.BackendID)
	if err != nil {
		return err
	}

	detail, err := w.backends.DescribeServer(ctx, backend, server.ProviderInstanceID)
	if err != nil {
		return err
	}

	switch detail.Status {
	case driver.StatusBuilding:
		// Создание ещё идёт, посмотрим в следующем цикле.
		return nil
	case driver.StatusRunning, driver.StatusShutoff:
		server.TaskStatus = models.ServerTaskCreatedOK
		server.IPv4 = detail.IPv4
		server.Image = detail.ImageName
		if detail.Name != "" {
			server.InstanceName = detail.Name
		}
		if detail.DefaultUser != "" {
			server.DefaultUser = detail.DefaultUser
		}
		if detail.DefaultPassword != "" {
			server.DefaultPassword = detail.DefaultPassword
		}
	case driver.StatusError, driver.StatusMissing:
		w.logger.Printf("server %s build failed on backend: status %s", server.ID, detail.Status)
		server.TaskStatus = models.ServerTaskFailed
	default:
		w.logger.Printf("server %s: unknown backend status %s", server.ID, detail.Status)
		return nil
	}

	return w.serverStorage.UpdateBuildResult(ctx, server)
}
