package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrLoginExists         = errors.New("login already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// PostgresUserStorage хранилище пользователей и их кошельков в PostgreSQL.
type PostgresUserStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStorage создаёт новый экземпляр PostgresUserStorage.
func NewPostgresUserStorage(pool *pgxpool.Pool) *PostgresUserStorage {
	return &PostgresUserStorage{pool: pool}
}

// Create создаёт нового пользователя.
func (s *PostgresUserStorage) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, login, password_hash, balance, expended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	// Генерируем UUID, если не задан
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	// Устанавливаем начальные значения
	if user.Balance.IsZero() {
		user.Balance = decimal.Zero
	}
	if user.Expended.IsZero() {
		user.Expended = decimal.Zero
	}

	err := s.pool.QueryRow(ctx, query,
		user.ID,
		user.Login,
		user.PasswordHash,
		user.Balance,
		user.Expended,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		// Проверка на уникальность логина
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrLoginExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByLogin ищет пользователя по логину.
func (s *PostgresUserStorage) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `
		SELECT id, login, password_hash, balance, expended, created_at, updated_at
		FROM users
		WHERE login = $1
	`
	return scanUser(s.pool.QueryRow(ctx, query, login))
}

// GetByID ищет пользователя по ID.
func (s *PostgresUserStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, login, password_hash, balance, expended, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

// PayFromBalanceTx списывает стоимость заказа с кошелька в рамках переданной
// транзакции и сохраняет запись об оплате. Возвращает id записи об оплате.
func (s *PostgresUserStorage) PayFromBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID string, amount decimal.Decimal) (uuid.UUID, error) {
	// Проверяем текущий баланс под блокировкой строки
	var currentBalance decimal.Decimal
	checkQuery := `SELECT balance FROM users WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(ctx, checkQuery, userID).Scan(&currentBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to check balance: %w", err)
	}

	if currentBalance.LessThan(amount) {
		return uuid.Nil, ErrInsufficientBalance
	}

	updateQuery := `
		UPDATE users
		SET balance = balance - $1, expended = expended + $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err = tx.Exec(ctx, updateQuery, amount, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to pay from balance: %w", err)
	}

	paymentID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO payment_histories (id, user_id, order_id, amount, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, paymentID, userID, orderID, amount)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record payment: %w", err)
	}

	return paymentID, nil
}

// CreateRefundTicket сохраняет заявку на возврат средств по заказу.
func (s *PostgresUserStorage) CreateRefundTicket(ctx context.Context, ticket *models.RefundTicket) error {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}

	query := `
		INSERT INTO refund_tickets (id, order_id, reason, amount, resource_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query,
		ticket.ID, ticket.OrderID, ticket.Reason, ticket.Amount, ticket.ResourceIDs,
	).Scan(&ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create refund ticket: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&user.Balance,
		&user.Expended,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
