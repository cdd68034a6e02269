package models

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/shopspring/decimal"
)

// OrderType тип заказа.
type OrderType string

const (
	OrderTypeNew       OrderType = "new"
	OrderTypeRenewal   OrderType = "renewal"
	OrderTypeUpgrade   OrderType = "upgrade"
	OrderTypeDowngrade OrderType = "downgrade"
	// OrderTypePost2Pre перевод ресурса с оплаты по факту на предоплату.
	OrderTypePost2Pre OrderType = "post2pre"
)

// OrderStatus статус оплаты заказа.
type OrderStatus string

const (
	OrderStatusUnpaid     OrderStatus = "unpaid"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefund     OrderStatus = "refund"
	OrderStatusRefunding  OrderStatus = "refunding"
	OrderStatusPartRefund OrderStatus = "partrefund"
)

// TradingStatus статус сделки по заказу.
// Движение только вперёд: opening -> {partdeliver|undelivered} -> completed,
// либо из любого нетерминального состояния в closed.
type TradingStatus string

const (
	TradingStatusOpening     TradingStatus = "opening"
	TradingStatusUndelivered TradingStatus = "undelivered"
	TradingStatusPartDeliver TradingStatus = "partdeliver"
	TradingStatusCompleted   TradingStatus = "completed"
	TradingStatusClosed      TradingStatus = "closed"
)

// IsTerminal сообщает, допускает ли статус дальнейшие изменения заказа.
func (s TradingStatus) IsTerminal() bool {
	return s == TradingStatusCompleted || s == TradingStatusClosed
}

// OrderAction краткоживущий флаг эксклюзивного действия над заказом.
// Не полноценная блокировка: выставляется на время попытки доставки
// и снимается на любом выходе из неё.
type OrderAction string

const (
	OrderActionNone       OrderAction = "none"
	OrderActionDelivering OrderAction = "delivering"
)

// ResourceKind тип заказываемого ресурса.
type ResourceKind string

const (
	ResourceKindVM   ResourceKind = "vm"
	ResourceKindDisk ResourceKind = "disk"
)

// PayType способ расчёта за ресурс.
type PayType string

const (
	// PayTypePrepaid предоплата на период в месяцах.
	PayTypePrepaid PayType = "prepaid"
	// PayTypePostpaid оплата по факту потребления.
	PayTypePostpaid PayType = "postpaid"
)

// OwnerType владелец заказа: пользователь или виртуальная организация.
type OwnerType string

const (
	OwnerTypeUser OwnerType = "user"
	OwnerTypeVO   OwnerType = "vo"
)

// Order заказ на один или несколько одинаковых ресурсов.
type Order struct {
	// ID 22-символьный номер заказа, производный от времени создания.
	ID            string        `db:"id"`
	OrderType     OrderType     `db:"order_type"`
	Status        OrderStatus   `db:"status"`
	TradingStatus TradingStatus `db:"trading_status"`
	OrderAction   OrderAction   `db:"order_action"`
	ResourceType  ResourceKind  `db:"resource_type"`
	BackendID     string        `db:"backend_id"`
	BackendName   string        `db:"backend_name"`
	// InstanceConfig замороженный JSON-снимок заказанной конфигурации.
	InstanceConfig json.RawMessage `db:"instance_config"`
	// Period срок предоплаты в месяцах, 0 для postpaid.
	Period int `db:"period"`
	// Number количество одинаковых позиций в заказе.
	Number           int             `db:"number"`
	TotalAmount      decimal.Decimal `db:"total_amount"`
	PayAmount        decimal.Decimal `db:"pay_amount"`
	PayType          PayType         `db:"pay_type"`
	UserID           string          `db:"user_id"`
	Username         string          `db:"username"`
	VoID             string          `db:"vo_id"`
	VoName           string          `db:"vo_name"`
	OwnerType        OwnerType       `db:"owner_type"`
	PaymentHistoryID string          `db:"payment_history_id"`
	StartTime        *time.Time      `db:"start_time"`
	EndTime          *time.Time      `db:"end_time"`
	PaymentTime      *time.Time      `db:"payment_time"`
	CompletionTime   *time.Time      `db:"completion_time"`
	CancelledTime    *time.Time      `db:"cancelled_time"`
	CreatedAt        time.Time       `db:"created_at"`
}

// GenerateOrderSN генерирует номер заказа.
// 22 символа: дата-время до секунд, микросекунды и 2 случайные цифры.
// Коллизия разрешается повторной генерацией при вставке.
func GenerateOrderSN() string {
	t := time.Now()
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d%06d%02d",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond()/1000, rand.Intn(100))
}

// CheckDeliverable проверяет, допускает ли состояние заказа попытку доставки.
// Вызывать под блокировкой строки заказа.
func (o *Order) CheckDeliverable() error {
	switch o.TradingStatus {
	case TradingStatusClosed:
		return errs.New(errs.CodeOrderTradingClosed, "сделка по заказу закрыта")
	case TradingStatusCompleted:
		return errs.New(errs.CodeOrderTradingCompleted, "сделка по заказу завершена")
	}

	switch o.Status {
	case OrderStatusUnpaid:
		return errs.New(errs.CodeOrderUnpaid, "заказ не оплачен")
	case OrderStatusCancelled:
		return errs.New(errs.CodeOrderCancelled, "заказ аннулирован")
	case OrderStatusRefund, OrderStatusRefunding, OrderStatusPartRefund:
		return errs.New(errs.CodeOrderRefund, "по заказу оформлен возврат")
	case OrderStatusPaid:
	default:
		return errs.New(errs.CodeConflict, "неизвестный статус заказа")
	}

	if o.OrderAction != OrderActionNone {
		return errs.New(errs.CodeTryAgainLater, "по заказу уже выполняется доставка ресурсов")
	}

	return nil
}

// PeriodDays возвращает длительность предоплаченного периода в днях.
// Месяц считается за 30 дней, как в расчёте цен.
func PeriodDays(periodMonths int) int {
	return periodMonths * 30
}
