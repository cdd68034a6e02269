package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ovolkov/cloudmarket/internal/driver"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/shopspring/decimal"
)

// TxBeginner открывает транзакции базы данных. Реализуется pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStorage определяет интерфейс для работы с заказами и их позициями.
type OrderStorage interface {
	Create(ctx context.Context, order *models.Order, resources []*models.Resource) error
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]*models.Order, error)

	// GetForUpdateTx загружает заказ с эксклюзивной блокировкой строки.
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error)
	// GetResourcesForUpdateTx загружает позиции заказа с блокировкой строк
	// в порядке их создания.
	GetResourcesForUpdateTx(ctx context.Context, tx pgx.Tx, orderID string) ([]*models.Resource, error)
	// MarkDeliverAttemptTx одной записью проставляет last_deliver_time
	// кандидатам и переводит order_action заказа.
	MarkDeliverAttemptTx(ctx context.Context, tx pgx.Tx, orderID string, resourceIDs []string, now time.Time) error

	SetOrderAction(ctx context.Context, orderID string, action models.OrderAction) error
	SetTradingStatus(ctx context.Context, orderID string, status models.TradingStatus) error
	SetPaidTx(ctx context.Context, tx pgx.Tx, orderID string, paymentHistoryID string) error
	SetCancelled(ctx context.Context, orderID string) error
	SetRefunding(ctx context.Context, orderID string) error

	GetResources(ctx context.Context, orderID string) ([]*models.Resource, error)
	SetResourceSuccess(ctx context.Context, resourceID, instanceID string) error
	SetResourceFailed(ctx context.Context, resourceID, desc string) error
	SetResourcesFailed(ctx context.Context, resourceIDs []string, desc string) error
}

// QuotaStorage ведёт учёт частной квоты бекендов.
//
// Reserve атомарен по всем измерениям: либо заняты все, либо ни одного.
// Release никогда не опускает занятое ниже нуля.
type QuotaStorage interface {
	Get(ctx context.Context, backendID string) (*models.BackendQuota, error)
	Reserve(ctx context.Context, backendID string, demand models.QuotaDemand) error
	Release(ctx context.Context, backendID string, demand models.QuotaDemand) error
}

// BackendStorage хранилище конфигураций облачных бекендов, только чтение.
type BackendStorage interface {
	GetByID(ctx context.Context, backendID string) (*models.Backend, error)
	List(ctx context.Context) ([]*models.Backend, error)
}

// ServerStorage хранилище локальных записей о серверах на бекендах.
type ServerStorage interface {
	Create(ctx context.Context, server *models.Server) error
	GetByID(ctx context.Context, serverID string) (*models.Server, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, serverID string) (*models.Server, error)
	SetExpirationTx(ctx context.Context, tx pgx.Tx, serverID string, expiration time.Time) error
	SetPayTypeTx(ctx context.Context, tx pgx.Tx, serverID string, payType models.PayType, start, expiration time.Time) error
	ListByTaskStatus(ctx context.Context, status models.ServerTaskStatus) ([]*models.Server, error)
	UpdateBuildResult(ctx context.Context, server *models.Server) error
}

// DiskStorage хранилище локальных записей о дисках на бекендах.
type DiskStorage interface {
	Create(ctx context.Context, disk *models.Disk) error
	GetByID(ctx context.Context, diskID string) (*models.Disk, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, diskID string) (*models.Disk, error)
	SetExpirationTx(ctx context.Context, tx pgx.Tx, diskID string, expiration time.Time) error
	SetPayTypeTx(ctx context.Context, tx pgx.Tx, diskID string, payType models.PayType, start, expiration time.Time) error
}

// UserStorage определяет интерфейс для работы с пользователями и кошельками.
type UserStorage interface {
	Create(ctx context.Context, user *models.User) error
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	PayFromBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID string, amount decimal.Decimal) (uuid.UUID, error)
	CreateRefundTicket(ctx context.Context, ticket *models.RefundTicket) error
}

// BackendClient выполняет вызовы облачных бекендов. Реализуется driver.Registry.
type BackendClient interface {
	CreateServer(ctx context.Context, backend *models.Backend, spec driver.ServerSpec) (*driver.CreatedServer, error)
	DeleteServer(ctx context.Context, backend *models.Backend, providerInstanceID string, force bool) error
	DescribeServer(ctx context.Context, backend *models.Backend, providerInstanceID string) (*driver.ServerDetail, error)
	CreateDisk(ctx context.Context, backend *models.Backend, spec driver.DiskSpec) (*driver.CreatedDisk, error)
	DeleteDisk(ctx context.Context, backend *models.Backend, providerDiskID string) error
	DescribeDisk(ctx context.Context, backend *models.Backend, providerDiskID string) (*driver.DiskDetail, error)
}

// PriceCalculator считает стоимость заказа до оплаты.
type PriceCalculator interface {
	// Quote возвращает полную и продажную цену за весь заказ.
	Quote(orderType models.OrderType, resourceType models.ResourceKind, config []byte, payType models.PayType, periodMonths, number int) (original, trade decimal.Decimal, err error)
}
