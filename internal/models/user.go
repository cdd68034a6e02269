package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User пользователь портала с внутренним кошельком.
type User struct {
	ID           uuid.UUID `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	// Balance остаток кошелька, из которого оплачиваются заказы.
	Balance   decimal.Decimal `db:"balance"`
	Expended  decimal.Decimal `db:"expended"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// RegisterRequest запрос на регистрацию пользователя.
type RegisterRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginRequest запрос на аутентификацию пользователя.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// BalanceResponse ответ с балансом кошелька.
type BalanceResponse struct {
	Current  float64 `json:"current"`
	Expended float64 `json:"expended"`
}

// PaymentHistory запись об оплате заказа из кошелька.
type PaymentHistory struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	OrderID   string          `db:"order_id"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt time.Time       `db:"created_at"`
}

// RefundTicket заявка на возврат средств по заказу.
// Сам возврат выполняет внешняя подсистема возвратов.
type RefundTicket struct {
	ID      uuid.UUID       `db:"id"`
	OrderID string          `db:"order_id"`
	Reason  string          `db:"reason"`
	Amount  decimal.Decimal `db:"amount"`
	// ResourceIDs недоставленные позиции заказа, подлежащие возврату.
	ResourceIDs []string  `db:"-"`
	CreatedAt   time.Time `db:"created_at"`
}
