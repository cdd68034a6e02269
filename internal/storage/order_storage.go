package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovolkov/cloudmarket/internal/models"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrResourceNotFound   = errors.New("order resource not found")
)

// uniqueViolation код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

// PostgresOrderStorage реализует хранилище заказов и их позиций для PostgreSQL.
type PostgresOrderStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderStorage создаёт новый экземпляр PostgresOrderStorage.
func NewPostgresOrderStorage(pool *pgxpool.Pool) *PostgresOrderStorage {
	return &PostgresOrderStorage{pool: pool}
}

const orderColumns = `
	id, order_type, status, trading_status, order_action, resource_type,
	backend_id, backend_name, instance_config, period, number,
	total_amount, pay_amount, pay_type,
	user_id, username, vo_id, vo_name, owner_type, payment_history_id,
	start_time, end_time, payment_time, completion_time, cancelled_time, created_at
`

// Create сохраняет заказ и его позиции в одной транзакции.
// Коллизия номера заказа разрешается повторной генерацией номера.
func (s *PostgresOrderStorage) Create(ctx context.Context, order *models.Order, resources []*models.Resource) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// до 3 попыток на случай коллизии производного от времени номера
	for attempt := 0; ; attempt++ {
		err = s.insertOrderTx(ctx, tx, order)
		if err == nil {
			break
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && attempt < 2 {
			order.ID = models.GenerateOrderSN()
			continue
		}
		return err
	}

	for _, res := range resources {
		res.OrderID = order.ID
		if err := s.insertResourceTx(ctx, tx, res); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresOrderStorage) insertOrderTx(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (
			id, order_type, status, trading_status, order_action, resource_type,
			backend_id, backend_name, instance_config, period, number,
			total_amount, pay_amount, pay_type,
			user_id, username, vo_id, vo_name, owner_type, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		order.ID, order.OrderType, order.Status, order.TradingStatus, order.OrderAction,
		order.ResourceType, order.BackendID, order.BackendName, order.InstanceConfig,
		order.Period, order.Number, order.TotalAmount, order.PayAmount, order.PayType,
		order.UserID, order.Username, order.VoID, order.VoName, order.OwnerType,
	).Scan(&order.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrOrderAlreadyExists, err)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresOrderStorage) insertResourceTx(ctx context.Context, tx pgx.Tx, res *models.Resource) error {
	query := `
		INSERT INTO order_resources (id, order_id, resource_type, instance_id, instance_status, instance_remark, "desc", created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		res.ID, res.OrderID, res.ResourceType, res.InstanceID, res.InstanceStatus,
		res.InstanceRemark, res.Desc,
	).Scan(&res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order resource: %w", err)
	}
	return nil
}

// GetByID возвращает заказ по номеру.
func (s *PostgresOrderStorage) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(s.pool.QueryRow(ctx, query, orderID))
}

// GetByOwner возвращает заказы пользователя или VO, новые первыми.
func (s *PostgresOrderStorage) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]*models.Order, error) {
	var query string
	if ownerType == models.OwnerTypeVO {
		query = `SELECT ` + orderColumns + ` FROM orders WHERE owner_type = 'vo' AND vo_id = $1 ORDER BY created_at DESC`
	} else {
		query = `SELECT ` + orderColumns + ` FROM orders WHERE owner_type = 'user' AND user_id = $1 ORDER BY created_at DESC`
	}

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query owner orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return orders, nil
}

// GetForUpdateTx загружает заказ с эксклюзивной блокировкой строки.
func (s *PostgresOrderStorage) GetForUpdateTx(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, orderID))
}

const resourceColumns = `
	id, order_id, resource_type, instance_id, instance_status, instance_remark,
	"desc", last_deliver_time, delivered_time, instance_delete_time, created_at
`

// GetResourcesForUpdateTx загружает позиции заказа с блокировкой строк.
// Порядок по времени создания, чтобы частичные сбои были детерминированы.
func (s *PostgresOrderStorage) GetResourcesForUpdateTx(ctx context.Context, tx pgx.Tx, orderID string) ([]*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM order_resources WHERE order_id = $1 ORDER BY created_at ASC FOR UPDATE`

	rows, err := tx.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order resources: %w", err)
	}
	defer rows.Close()

	var resources []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return resources, nil
}

// MarkDeliverAttemptTx помечает начало попытки доставки: проставляет
// last_deliver_time кандидатам и переводит заказ в режим доставки.
func (s *PostgresOrderStorage) MarkDeliverAttemptTx(ctx context.Context, tx pgx.Tx, orderID string, resourceIDs []string, now time.Time) error {
	if len(resourceIDs) > 0 {
		_, err := tx.Exec(ctx,
			`UPDATE order_resources SET last_deliver_time = $1 WHERE id = ANY($2)`,
			now, resourceIDs)
		if err != nil {
			return fmt.Errorf("mark resources deliver time: %w", err)
		}
	}

	result, err := tx.Exec(ctx,
		`UPDATE orders SET order_action = $1 WHERE id = $2`,
		models.OrderActionDelivering, orderID)
	if err != nil {
		return fmt.Errorf("set order action: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetOrderAction обновляет флаг действия над заказом.
func (s *PostgresOrderStorage) SetOrderAction(ctx context.Context, orderID string, action models.OrderAction) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE orders SET order_action = $1 WHERE id = $2`, action, orderID)
	if err != nil {
		return fmt.Errorf("set order action: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetTradingStatus переводит статус сделки. Для completed заполняется
// время завершения. Запись в терминальном статусе не изменяется.
func (s *PostgresOrderStorage) SetTradingStatus(ctx context.Context, orderID string, status models.TradingStatus) error {
	var result pgconn.CommandTag
	var err error
	if status == models.TradingStatusCompleted {
		result, err = s.pool.Exec(ctx, `
			UPDATE orders SET trading_status = $1, completion_time = NOW()
			WHERE id = $2 AND trading_status NOT IN ('completed', 'closed')
		`, status, orderID)
	} else {
		result, err = s.pool.Exec(ctx, `
			UPDATE orders SET trading_status = $1
			WHERE id = $2 AND trading_status NOT IN ('completed', 'closed')
		`, status, orderID)
	}
	if err != nil {
		return fmt.Errorf("set trading status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetPaidTx помечает заказ оплаченным в рамках транзакции оплаты.
func (s *PostgresOrderStorage) SetPaidTx(ctx context.Context, tx pgx.Tx, orderID string, paymentHistoryID string) error {
	result, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = 'paid', payment_history_id = $1, payment_time = NOW()
		WHERE id = $2 AND status = 'unpaid'
	`, paymentHistoryID, orderID)
	if err != nil {
		return fmt.Errorf("set order paid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetCancelled аннулирует неоплаченный заказ и закрывает сделку.
func (s *PostgresOrderStorage) SetCancelled(ctx context.Context, orderID string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'cancelled', trading_status = 'closed', cancelled_time = NOW()
		WHERE id = $1 AND status = 'unpaid' AND trading_status NOT IN ('completed', 'closed')
	`, orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetRefunding помечает оплаченный заказ как находящийся в возврате.
func (s *PostgresOrderStorage) SetRefunding(ctx context.Context, orderID string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = 'refunding'
		WHERE id = $1 AND status = 'paid' AND trading_status NOT IN ('completed', 'closed')
	`, orderID)
	if err != nil {
		return fmt.Errorf("set order refunding: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetResources возвращает позиции заказа в порядке создания.
func (s *PostgresOrderStorage) GetResources(ctx context.Context, orderID string) ([]*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM order_resources WHERE order_id = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order resources: %w", err)
	}
	defer rows.Close()

	var resources []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return resources, nil
}

// SetResourceSuccess помечает позицию успешно доставленной.
// Успешная позиция терминальна и больше не изменяется доставкой.
func (s *PostgresOrderStorage) SetResourceSuccess(ctx context.Context, resourceID, instanceID string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE order_resources
		SET instance_status = 'success', instance_id = $1, "desc" = 'success', delivered_time = NOW()
		WHERE id = $2
	`, instanceID, resourceID)
	if err != nil {
		return fmt.Errorf("set resource success: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// SetResourceFailed помечает позицию недоставленной с описанием причины.
func (s *PostgresOrderStorage) SetResourceFailed(ctx context.Context, resourceID, desc string) error {
	return s.SetResourcesFailed(ctx, []string{resourceID}, desc)
}

// SetResourcesFailed помечает набор позиций недоставленными одной записью.
func (s *PostgresOrderStorage) SetResourcesFailed(ctx context.Context, resourceIDs []string, desc string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	desc = truncateDesc(desc, maxDescLen)

	result, err := s.pool.Exec(ctx, `
		UPDATE order_resources SET instance_status = 'failed', "desc" = $1 WHERE id = ANY($2)
	`, desc, resourceIDs)
	if err != nil {
		return fmt.Errorf("set resources failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// maxDescLen ёмкость колонки "desc" в символах.
const maxDescLen = 255

// truncateDesc обрезает описание до limit символов.
// Резать по байтам нельзя: описания кириллические, срез посреди руны
// даёт невалидный UTF-8, который Postgres отвергает целиком.
func truncateDesc(desc string, limit int) string {
	runes := []rune(desc)
	if len(runes) <= limit {
		return desc
	}
	return string(runes[:limit])
}

// scanOrder читает заказ из строки результата.
func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.ID, &order.OrderType, &order.Status, &order.TradingStatus, &order.OrderAction,
		&order.ResourceType, &order.BackendID, &order.BackendName, &order.InstanceConfig,
		&order.Period, &order.Number, &order.TotalAmount, &order.PayAmount, &order.PayType,
		&order.UserID, &order.Username, &order.VoID, &order.VoName, &order.OwnerType,
		&order.PaymentHistoryID, &order.StartTime, &order.EndTime, &order.PaymentTime,
		&order.CompletionTime, &order.CancelledTime, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &order, nil
}

// scanResource читает позицию заказа из строки результата.
func scanResource(row pgx.Row) (*models.Resource, error) {
	var res models.Resource
	err := row.Scan(
		&res.ID, &res.OrderID, &res.ResourceType, &res.InstanceID, &res.InstanceStatus,
		&res.InstanceRemark, &res.Desc, &res.LastDeliverTime, &res.DeliveredTime,
		&res.InstanceDeleteTime, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("scan order resource: %w", err)
	}
	return &res, nil
}
