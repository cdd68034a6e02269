package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/ovolkov/cloudmarket/internal/storage"
	"github.com/shopspring/decimal"
)

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// maxOrderNumber максимум одинаковых позиций в одном заказе серверов.
const maxOrderNumber = 3

// OwnerContext владелец создаваемого заказа.
// Оркестратор только штампует эти поля в заказ и не читает их обратно.
type OwnerContext struct {
	OwnerType models.OwnerType
	UserID    string
	Username  string
	VoID      string
	VoName    string
}

// CreateOrderParams параметры создания заказа.
type CreateOrderParams struct {
	OrderType    models.OrderType
	ResourceType models.ResourceKind
	BackendID    string
	// Config снимок заказываемой конфигурации, замораживается в заказе.
	Config       json.RawMessage
	PayType      models.PayType
	PeriodMonths int
	Number       int
	Owner        OwnerContext
}

// OrderService определяет интерфейс жизненного цикла заказов.
type OrderService interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (*models.Order, []*models.Resource, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, []*models.Resource, error)
	GetOwnerOrders(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]*models.Order, error)
	PayOrder(ctx context.Context, orderID string, userID uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*models.Order, error)
	RequestRefund(ctx context.Context, orderID, reason string) (*models.RefundTicket, error)
}

// OrderServiceImpl реализует OrderService.
type OrderServiceImpl struct {
	pool           TxBeginner
	orderStorage   OrderStorage
	backendStorage BackendStorage
	userStorage    UserStorage
	pricing        PriceCalculator
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(pool TxBeginner, orderStorage OrderStorage, backendStorage BackendStorage, userStorage UserStorage, pricing PriceCalculator) *OrderServiceImpl {
	return &OrderServiceImpl{
		pool:           pool,
		orderStorage:   orderStorage,
		backendStorage: backendStorage,
		userStorage:    userStorage,
		pricing:        pricing,
	}
}

// CreateOrder создаёт неоплаченный заказ и его позиции.
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, params CreateOrderParams) (*models.Order, []*models.Resource, error) {
	if err := validateCreateParams(&params); err != nil {
		return nil, nil, err
	}

	backend, err := s.backendStorage.GetByID(ctx, params.BackendID)
	if err != nil {
		if errors.Is(err, storage.ErrBackendNotFound) {
			return nil, nil, errs.New(errs.CodeNotFound, "бекенд не найден")
		}
		return nil, nil, fmt.Errorf("get backend: %w", err)
	}

	original, trade, err := s.pricing.Quote(params.OrderType, params.ResourceType, params.Config, params.PayType, params.PeriodMonths, params.Number)
	if err != nil {
		return nil, nil, err
	}

	order := &models.Order{
		ID:             models.GenerateOrderSN(),
		OrderType:      params.OrderType,
		Status:         models.OrderStatusUnpaid,
		TradingStatus:  models.TradingStatusOpening,
		OrderAction:    models.OrderActionNone,
		ResourceType:   params.ResourceType,
		BackendID:      backend.ID,
		BackendName:    backend.Name,
		InstanceConfig: params.Config,
		Period:         params.PeriodMonths,
		Number:         params.Number,
		TotalAmount:    original,
		PayAmount:      trade,
		PayType:        params.PayType,
		UserID:         params.Owner.UserID,
		Username:       params.Owner.Username,
		VoID:           params.Owner.VoID,
		VoName:         params.Owner.VoName,
		OwnerType:      params.Owner.OwnerType,
	}

	resources := make([]*models.Resource, 0, params.Number)
	for i := 0; i < params.Number; i++ {
		resources = append(resources, &models.Resource{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			ResourceType:   params.ResourceType,
			InstanceStatus: models.InstanceStatusWait,
		})
	}

	if err := s.orderStorage.Create(ctx, order, resources); err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}
	return order, resources, nil
}

// GetOrder возвращает заказ с позициями.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, orderID string) (*models.Order, []*models.Resource, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, nil, errs.New(errs.CodeNotFound, "заказ не найден")
		}
		return nil, nil, fmt.Errorf("get order: %w", err)
	}

	resources, err := s.orderStorage.GetResources(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("get order resources: %w", err)
	}
	return order, resources, nil
}

// GetOwnerOrders возвращает заказы владельца.
func (s *OrderServiceImpl) GetOwnerOrders(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]*models.Order, error) {
	orders, err := s.orderStorage.GetByOwner(ctx, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get owner orders: %w", err)
	}
	return orders, nil
}

// PayOrder оплачивает заказ из кошелька пользователя.
// Списание и перевод заказа в paid выполняются одной транзакцией.
func (s *OrderServiceImpl) PayOrder(ctx context.Context, orderID string, userID uuid.UUID) (*models.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orderStorage.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, errs.New(errs.CodeNotFound, "заказ не найден")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.TradingStatus.IsTerminal() {
		return nil, errs.New(errs.CodeOrderTradingClosed, "сделка по заказу закрыта")
	}
	if order.Status != models.OrderStatusUnpaid {
		return nil, errs.New(errs.CodeConflict, "заказ уже оплачен или аннулирован")
	}
	if order.UserID != userID.String() {
		return nil, errs.New(errs.CodeConflict, "заказ принадлежит другому пользователю")
	}

	paymentID, err := s.userStorage.PayFromBalanceTx(ctx, tx, userID, order.ID, order.PayAmount)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientBalance) {
			return nil, errs.New(errs.CodeConflict, "недостаточно средств на кошельке")
		}
		return nil, fmt.Errorf("pay from balance: %w", err)
	}

	if err := s.orderStorage.SetPaidTx(ctx, tx, order.ID, paymentID.String()); err != nil {
		return nil, fmt.Errorf("set order paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	order.Status = models.OrderStatusPaid
	order.PaymentHistoryID = paymentID.String()
	return order, nil
}

// CancelOrder аннулирует неоплаченный заказ и закрывает сделку.
func (s *OrderServiceImpl) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, errs.New(errs.CodeNotFound, "заказ не найден")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.TradingStatus.IsTerminal() {
		if order.TradingStatus == models.TradingStatusCompleted {
			return nil, errs.New(errs.CodeOrderTradingCompleted, "сделка по заказу завершена")
		}
		return nil, errs.New(errs.CodeOrderTradingClosed, "сделка по заказу закрыта")
	}
	if order.Status != models.OrderStatusUnpaid {
		return nil, errs.New(errs.CodeConflict, "аннулировать можно только неоплаченный заказ")
	}
	if order.OrderAction != models.OrderActionNone {
		return nil, errs.New(errs.CodeTryAgainLater, "по заказу выполняется доставка ресурсов")
	}

	// Условия продублированы в запросе: гонка со сменой статуса
	// разрешается на стороне базы.
	if err := s.orderStorage.SetCancelled(ctx, order.ID); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, errs.New(errs.CodeConflict, "состояние заказа изменилось, аннулирование отклонено")
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	order.Status = models.OrderStatusCancelled
	order.TradingStatus = models.TradingStatusClosed
	return order, nil
}

// RequestRefund оформляет заявку на возврат по недоставленным позициям заказа.
// Сам возврат средств выполняет внешняя подсистема возвратов.
func (s *OrderServiceImpl) RequestRefund(ctx context.Context, orderID, reason string) (*models.RefundTicket, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, errs.New(errs.CodeNotFound, "заказ не найден")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.TradingStatus.IsTerminal() {
		if order.TradingStatus == models.TradingStatusCompleted {
			return nil, errs.New(errs.CodeOrderTradingCompleted, "сделка по заказу завершена")
		}
		return nil, errs.New(errs.CodeOrderTradingClosed, "сделка по заказу закрыта")
	}
	if order.Status != models.OrderStatusPaid {
		return nil, errs.New(errs.CodeConflict, "возврат возможен только по оплаченному заказу")
	}
	if order.OrderAction != models.OrderActionNone {
		return nil, errs.New(errs.CodeTryAgainLater, "по заказу выполняется доставка ресурсов")
	}

	resources, err := s.orderStorage.GetResources(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order resources: %w", err)
	}

	var undelivered []string
	for _, res := range resources {
		if res.InstanceStatus != models.InstanceStatusSuccess {
			undelivered = append(undelivered, res.ID)
		}
	}
	if len(undelivered) == 0 {
		return nil, errs.New(errs.CodeConflict, "все позиции заказа доставлены, возврат не требуется")
	}

	// Сумма возврата пропорциональна числу недоставленных позиций.
	amount := order.PayAmount.
		Mul(decimalFromInt(len(undelivered))).
		Div(decimalFromInt(order.Number)).
		Round(2)

	ticket := &models.RefundTicket{
		OrderID:     order.ID,
		Reason:      reason,
		Amount:      amount,
		ResourceIDs: undelivered,
	}
	if err := s.userStorage.CreateRefundTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create refund ticket: %w", err)
	}

	if err := s.orderStorage.SetRefunding(ctx, order.ID); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, errs.New(errs.CodeConflict, "состояние заказа изменилось, возврат отклонён")
		}
		return nil, fmt.Errorf("set order refunding: %w", err)
	}

	return ticket, nil
}

func validateCreateParams(params *CreateOrderParams) error {
	switch params.OrderType {
	case models.OrderTypeNew, models.OrderTypeRenewal, models.OrderTypePost2Pre:
	default:
		return errs.New(errs.CodeInvalidArgument, "неизвестный тип заказа")
	}

	// Продление и перевод на предоплату адресуют один живой экземпляр,
	// поэтому конфигурация у них своя и позиция всегда одна.
	renewal := params.OrderType == models.OrderTypeRenewal || params.OrderType == models.OrderTypePost2Pre
	if renewal && params.Number != 1 {
		return errs.New(errs.CodeInvalidArgument, "продление адресует один экземпляр")
	}

	switch params.ResourceType {
	case models.ResourceKindVM:
		if renewal {
			if _, err := models.ServerRenewConfigFromJSON(params.Config); err != nil {
				return errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация продления", err)
			}
			break
		}
		if params.Number < 1 || params.Number > maxOrderNumber {
			return errs.New(errs.CodeInvalidArgument,
				fmt.Sprintf("число позиций должно быть от 1 до %d", maxOrderNumber))
		}
		if _, err := models.ServerConfigFromJSON(params.Config); err != nil {
			return errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация сервера", err)
		}
	case models.ResourceKindDisk:
		// Диск всегда заказывается по одному.
		if params.Number != 1 {
			return errs.New(errs.CodeInvalidArgument, "диск заказывается только по одному")
		}
		if renewal {
			if _, err := models.DiskRenewConfigFromJSON(params.Config); err != nil {
				return errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация продления", err)
			}
			break
		}
		if _, err := models.DiskConfigFromJSON(params.Config); err != nil {
			return errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация диска", err)
		}
	default:
		return errs.New(errs.CodeInvalidArgument, "неизвестный тип ресурса")
	}

	switch params.PayType {
	case models.PayTypePrepaid:
		if params.PeriodMonths <= 0 {
			return errs.New(errs.CodeInvalidArgument, "срок предоплаты должен быть положительным")
		}
	case models.PayTypePostpaid:
		if params.PeriodMonths != 0 {
			return errs.New(errs.CodeInvalidArgument, "для оплаты по факту срок не задаётся")
		}
	default:
		return errs.New(errs.CodeInvalidArgument, "неизвестный способ расчёта")
	}

	if params.Owner.OwnerType == models.OwnerTypeVO && params.Owner.VoID == "" {
		return errs.New(errs.CodeInvalidArgument, "для заказа организации требуется vo_id")
	}
	if params.Owner.UserID == "" {
		return errs.New(errs.CodeInvalidArgument, "требуется user_id владельца")
	}
	return nil
}
