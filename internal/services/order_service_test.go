package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/ovolkov/cloudmarket/internal/storage"
	"github.com/shopspring/decimal"
)

func newOrderService(orders *storage.MockOrderStorage, users *storage.MockUserStorage) *OrderServiceImpl {
	backends := &storage.MockBackendStorage{
		GetByIDFunc: func(ctx context.Context, backendID string) (*models.Backend, error) {
			return testBackend, nil
		},
	}
	return NewOrderService(fakePool{}, orders, backends, users, NewTablePriceCalculator())
}

func validCreateParams() CreateOrderParams {
	return CreateOrderParams{
		OrderType:    models.OrderTypeNew,
		ResourceType: models.ResourceKindVM,
		BackendID:    testBackend.ID,
		Config:       []byte(serverConfigJSON),
		PayType:      models.PayTypePrepaid,
		PeriodMonths: 1,
		Number:       2,
		Owner: OwnerContext{
			OwnerType: models.OwnerTypeUser,
			UserID:    uuid.NewString(),
			Username:  "test@example.com",
		},
	}
}

func TestOrderServiceImpl_CreateOrder(t *testing.T) {
	ctx := context.Background()

	var created *models.Order
	var createdResources []*models.Resource
	orders := &storage.MockOrderStorage{
		CreateFunc: func(ctx context.Context, order *models.Order, resources []*models.Resource) error {
			created = order
			createdResources = resources
			return nil
		},
	}
	service := newOrderService(orders, &storage.MockUserStorage{})

	order, resources, err := service.CreateOrder(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if created == nil {
		t.Fatal("CreateOrder() did not persist the order")
	}
	if len(order.ID) != 22 {
		t.Errorf("order id length = %d, want 22", len(order.ID))
	}
	if order.Status != models.OrderStatusUnpaid {
		t.Errorf("order status = %v, want %v", order.Status, models.OrderStatusUnpaid)
	}
	if order.TradingStatus != models.TradingStatusOpening {
		t.Errorf("trading status = %v, want %v", order.TradingStatus, models.TradingStatusOpening)
	}
	if order.BackendName != testBackend.Name {
		t.Errorf("backend name = %q, want %q", order.BackendName, testBackend.Name)
	}
	if len(resources) != 2 || len(createdResources) != 2 {
		t.Errorf("resources = %d/%d, want 2/2", len(resources), len(createdResources))
	}
	for _, res := range resources {
		if res.InstanceStatus != models.InstanceStatusWait {
			t.Errorf("resource status = %v, want %v", res.InstanceStatus, models.InstanceStatusWait)
		}
		if res.OrderID != order.ID {
			t.Errorf("resource order id = %q, want %q", res.OrderID, order.ID)
		}
	}

	// Предоплата за месяц: цена больше нуля, продажная не выше полной.
	if !order.TotalAmount.IsPositive() {
		t.Errorf("total amount = %v, want positive", order.TotalAmount)
	}
	if order.PayAmount.GreaterThan(order.TotalAmount) {
		t.Errorf("pay amount %v exceeds total %v", order.PayAmount, order.TotalAmount)
	}
}

func TestOrderServiceImpl_CreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	service := newOrderService(&storage.MockOrderStorage{}, &storage.MockUserStorage{})

	tests := []struct {
		name   string
		mutate func(p *CreateOrderParams)
	}{
		{
			name:   "unknown order type",
			mutate: func(p *CreateOrderParams) { p.OrderType = "migration" },
		},
		{
			name:   "zero number",
			mutate: func(p *CreateOrderParams) { p.Number = 0 },
		},
		{
			name:   "number above limit",
			mutate: func(p *CreateOrderParams) { p.Number = maxOrderNumber + 1 },
		},
		{
			name: "several disks in one order",
			mutate: func(p *CreateOrderParams) {
				p.ResourceType = models.ResourceKindDisk
				p.Config = []byte(`{"disk_size":100,"disk_azone_id":"az-1"}`)
				p.Number = 2
			},
		},
		{
			name:   "broken config",
			mutate: func(p *CreateOrderParams) { p.Config = []byte(`{"vm_cpu":0}`) },
		},
		{
			name: "prepaid without period",
			mutate: func(p *CreateOrderParams) {
				p.PeriodMonths = 0
			},
		},
		{
			name: "postpaid with period",
			mutate: func(p *CreateOrderParams) {
				p.PayType = models.PayTypePostpaid
				p.PeriodMonths = 3
			},
		},
		{
			name: "vo order without vo_id",
			mutate: func(p *CreateOrderParams) {
				p.Owner.OwnerType = models.OwnerTypeVO
				p.Owner.VoID = ""
			},
		},
		{
			name:   "missing user_id",
			mutate: func(p *CreateOrderParams) { p.Owner.UserID = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validCreateParams()
			tt.mutate(&params)

			_, _, err := service.CreateOrder(ctx, params)
			if !errs.IsCode(err, errs.CodeInvalidArgument) {
				t.Errorf("CreateOrder() error = %v, want code %s", err, errs.CodeInvalidArgument)
			}
		})
	}
}

func TestOrderServiceImpl_CreateRenewalOrder(t *testing.T) {
	ctx := context.Background()

	var created *models.Order
	orders := &storage.MockOrderStorage{
		CreateFunc: func(ctx context.Context, order *models.Order, resources []*models.Resource) error {
			created = order
			return nil
		},
	}
	service := newOrderService(orders, &storage.MockUserStorage{})

	params := validCreateParams()
	params.OrderType = models.OrderTypeRenewal
	params.Number = 1
	params.Config = []byte(`{"vm_server_id":"srv-1","vm_cpu":2,"vm_ram_mib":2048}`)

	order, _, err := service.CreateOrder(ctx, params)
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if created == nil {
		t.Fatal("CreateOrder() did not persist the order")
	}
	if order.OrderType != models.OrderTypeRenewal {
		t.Errorf("order type = %v, want %v", order.OrderType, models.OrderTypeRenewal)
	}
	// Продление тарифицируется по снимку живого экземпляра
	if !order.TotalAmount.IsPositive() {
		t.Errorf("total amount = %v, want positive", order.TotalAmount)
	}
}

func TestOrderServiceImpl_CreateRenewalOrder_Validation(t *testing.T) {
	ctx := context.Background()
	service := newOrderService(&storage.MockOrderStorage{}, &storage.MockUserStorage{})

	tests := []struct {
		name   string
		mutate func(p *CreateOrderParams)
	}{
		{
			// Полная конфигурация сервера не содержит vm_server_id
			name:   "full server config instead of renew config",
			mutate: func(p *CreateOrderParams) { p.Config = []byte(serverConfigJSON) },
		},
		{
			name:   "missing server id",
			mutate: func(p *CreateOrderParams) { p.Config = []byte(`{"vm_cpu":2,"vm_ram_mib":2048}`) },
		},
		{
			name:   "more than one position",
			mutate: func(p *CreateOrderParams) { p.Number = 2 },
		},
		{
			name: "disk renewal without disk id",
			mutate: func(p *CreateOrderParams) {
				p.ResourceType = models.ResourceKindDisk
				p.Config = []byte(`{"disk_size":100}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validCreateParams()
			params.OrderType = models.OrderTypeRenewal
			params.Number = 1
			params.Config = []byte(`{"vm_server_id":"srv-1","vm_cpu":2,"vm_ram_mib":2048}`)
			tt.mutate(&params)

			_, _, err := service.CreateOrder(ctx, params)
			if !errs.IsCode(err, errs.CodeInvalidArgument) {
				t.Errorf("CreateOrder() error = %v, want code %s", err, errs.CodeInvalidArgument)
			}
		})
	}
}

func TestOrderServiceImpl_CreateOrder_BackendNotFound(t *testing.T) {
	ctx := context.Background()
	backends := &storage.MockBackendStorage{
		GetByIDFunc: func(ctx context.Context, backendID string) (*models.Backend, error) {
			return nil, storage.ErrBackendNotFound
		},
	}
	service := NewOrderService(fakePool{}, &storage.MockOrderStorage{}, backends, &storage.MockUserStorage{}, NewTablePriceCalculator())

	_, _, err := service.CreateOrder(ctx, validCreateParams())
	if !errs.IsCode(err, errs.CodeNotFound) {
		t.Errorf("CreateOrder() error = %v, want code %s", err, errs.CodeNotFound)
	}
}

func TestOrderServiceImpl_PayOrder(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	paymentID := uuid.New()

	order := &models.Order{
		ID:            "2025010112000000000001",
		Status:        models.OrderStatusUnpaid,
		TradingStatus: models.TradingStatusOpening,
		PayAmount:     decimal.NewFromFloat(125.40),
		UserID:        userID.String(),
	}

	var paidAmount decimal.Decimal
	var paidHistoryID string
	orders := &storage.MockOrderStorage{
		GetForUpdateTxFunc: func(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error) {
			return order, nil
		},
		SetPaidTxFunc: func(ctx context.Context, tx pgx.Tx, orderID string, paymentHistoryID string) error {
			paidHistoryID = paymentHistoryID
			return nil
		},
	}
	users := &storage.MockUserStorage{
		PayFromBalanceTxFunc: func(ctx context.Context, tx pgx.Tx, uid uuid.UUID, orderID string, amount decimal.Decimal) (uuid.UUID, error) {
			paidAmount = amount
			return paymentID, nil
		},
	}
	service := newOrderService(orders, users)

	got, err := service.PayOrder(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("PayOrder() error = %v", err)
	}
	if got.Status != models.OrderStatusPaid {
		t.Errorf("order status = %v, want %v", got.Status, models.OrderStatusPaid)
	}
	if !paidAmount.Equal(order.PayAmount) {
		t.Errorf("paid amount = %v, want %v", paidAmount, order.PayAmount)
	}
	if paidHistoryID != paymentID.String() {
		t.Errorf("payment history id = %q, want %q", paidHistoryID, paymentID.String())
	}
}

func TestOrderServiceImpl_PayOrder_Rejections(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name     string
		order    *models.Order
		payErr   error
		wantCode string
	}{
		{
			name: "already paid",
			order: &models.Order{
				Status:        models.OrderStatusPaid,
				TradingStatus: models.TradingStatusOpening,
				UserID:        userID.String(),
			},
			wantCode: errs.CodeConflict,
		},
		{
			name: "trading closed",
			order: &models.Order{
				Status:        models.OrderStatusUnpaid,
				TradingStatus: models.TradingStatusClosed,
				UserID:        userID.String(),
			},
			wantCode: errs.CodeOrderTradingClosed,
		},
		{
			name: "foreign order",
			order: &models.Order{
				Status:        models.OrderStatusUnpaid,
				TradingStatus: models.TradingStatusOpening,
				UserID:        uuid.NewString(),
			},
			wantCode: errs.CodeConflict,
		},
		{
			name: "insufficient balance",
			order: &models.Order{
				Status:        models.OrderStatusUnpaid,
				TradingStatus: models.TradingStatusOpening,
				UserID:        userID.String(),
			},
			payErr:   storage.ErrInsufficientBalance,
			wantCode: errs.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &storage.MockOrderStorage{
				GetForUpdateTxFunc: func(ctx context.Context, tx pgx.Tx, orderID string) (*models.Order, error) {
					return tt.order, nil
				},
			}
			users := &storage.MockUserStorage{
				PayFromBalanceTxFunc: func(ctx context.Context, tx pgx.Tx, uid uuid.UUID, orderID string, amount decimal.Decimal) (uuid.UUID, error) {
					if tt.payErr != nil {
						return uuid.Nil, tt.payErr
					}
					return uuid.New(), nil
				},
			}
			service := newOrderService(orders, users)

			_, err := service.PayOrder(ctx, tt.order.ID, userID)
			if !errs.IsCode(err, tt.wantCode) {
				t.Errorf("PayOrder() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestOrderServiceImpl_CancelOrder(t *testing.T) {
	ctx := context.Background()

	order := &models.Order{
		ID:            "2025010112000000000001",
		Status:        models.OrderStatusUnpaid,
		TradingStatus: models.TradingStatusOpening,
		OrderAction:   models.OrderActionNone,
	}

	var cancelled bool
	orders := &storage.MockOrderStorage{
		GetByIDFunc: func(ctx context.Context, orderID string) (*models.Order, error) {
			return order, nil
		},
		SetCancelledFunc: func(ctx context.Context, orderID string) error {
			cancelled = true
			return nil
		},
	}
	service := newOrderService(orders, &storage.MockUserStorage{})

	got, err := service.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if !cancelled {
		t.Error("CancelOrder() did not persist cancellation")
	}
	if got.Status != models.OrderStatusCancelled {
		t.Errorf("order status = %v, want %v", got.Status, models.OrderStatusCancelled)
	}
	if got.TradingStatus != models.TradingStatusClosed {
		t.Errorf("trading status = %v, want %v", got.TradingStatus, models.TradingStatusClosed)
	}
}

func TestOrderServiceImpl_CancelOrder_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		order    *models.Order
		raceLost bool
		wantCode string
	}{
		{
			name: "paid order",
			order: &models.Order{
				Status:        models.OrderStatusPaid,
				TradingStatus: models.TradingStatusOpening,
				OrderAction:   models.OrderActionNone,
			},
			wantCode: errs.CodeConflict,
		},
		{
			name: "completed trading",
			order: &models.Order{
				Status:        models.OrderStatusUnpaid,
				TradingStatus: models.TradingStatusCompleted,
			},
			wantCode: errs.CodeOrderTradingCompleted,
		},
		{
			name: "delivery in progress",
			order: &models.Order{
				Status:        models.OrderStatusUnpaid,
				TradingStatus: models.TradingStatusOpening,
				OrderAction:   models.OrderActionDelivering,
			},
			wantCode: errs.CodeTryAgainLater,
		},
		{
			name: "lost race with status change",
			order: &models.Order{
				Status:        models.OrderStatusUnpaid,
				TradingStatus: models.TradingStatusOpening,
				OrderAction:   models.OrderActionNone,
			},
			raceLost: true,
			wantCode: errs.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &storage.MockOrderStorage{
				GetByIDFunc: func(ctx context.Context, orderID string) (*models.Order, error) {
					return tt.order, nil
				},
				SetCancelledFunc: func(ctx context.Context, orderID string) error {
					if tt.raceLost {
						return storage.ErrOrderNotFound
					}
					return nil
				},
			}
			service := newOrderService(orders, &storage.MockUserStorage{})

			_, err := service.CancelOrder(ctx, tt.order.ID)
			if !errs.IsCode(err, tt.wantCode) {
				t.Errorf("CancelOrder() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestOrderServiceImpl_RequestRefund(t *testing.T) {
	ctx := context.Background()

	order := &models.Order{
		ID:            "2025010112000000000001",
		Status:        models.OrderStatusPaid,
		TradingStatus: models.TradingStatusPartDeliver,
		OrderAction:   models.OrderActionNone,
		Number:        3,
		PayAmount:     decimal.NewFromFloat(300),
	}
	resources := []*models.Resource{
		{ID: "res-a", InstanceStatus: models.InstanceStatusSuccess},
		{ID: "res-b", InstanceStatus: models.InstanceStatusFailed},
		{ID: "res-c", InstanceStatus: models.InstanceStatusFailed},
	}

	var refunding bool
	orders := &storage.MockOrderStorage{
		GetByIDFunc: func(ctx context.Context, orderID string) (*models.Order, error) {
			return order, nil
		},
		GetResourcesFunc: func(ctx context.Context, orderID string) ([]*models.Resource, error) {
			return resources, nil
		},
		SetRefundingFunc: func(ctx context.Context, orderID string) error {
			refunding = true
			return nil
		},
	}

	var savedTicket *models.RefundTicket
	users := &storage.MockUserStorage{
		CreateRefundTicketFunc: func(ctx context.Context, ticket *models.RefundTicket) error {
			savedTicket = ticket
			return nil
		},
	}
	service := newOrderService(orders, users)

	ticket, err := service.RequestRefund(ctx, order.ID, "не доставлено")
	if err != nil {
		t.Fatalf("RequestRefund() error = %v", err)
	}
	if savedTicket == nil {
		t.Fatal("RequestRefund() did not persist the ticket")
	}
	if !refunding {
		t.Error("RequestRefund() did not move order to refunding")
	}

	// Две недоставленные позиции из трёх: возврат 2/3 оплаченного.
	want := decimal.NewFromFloat(200)
	if !ticket.Amount.Equal(want) {
		t.Errorf("refund amount = %v, want %v", ticket.Amount, want)
	}
	if len(ticket.ResourceIDs) != 2 {
		t.Errorf("refund resources = %d, want 2", len(ticket.ResourceIDs))
	}
}

func TestOrderServiceImpl_RequestRefund_AllDelivered(t *testing.T) {
	ctx := context.Background()

	orders := &storage.MockOrderStorage{
		GetByIDFunc: func(ctx context.Context, orderID string) (*models.Order, error) {
			return &models.Order{
				Status:        models.OrderStatusPaid,
				TradingStatus: models.TradingStatusPartDeliver,
				OrderAction:   models.OrderActionNone,
				Number:        1,
			}, nil
		},
		GetResourcesFunc: func(ctx context.Context, orderID string) ([]*models.Resource, error) {
			return []*models.Resource{
				{ID: "res-a", InstanceStatus: models.InstanceStatusSuccess},
			}, nil
		},
	}
	service := newOrderService(orders, &storage.MockUserStorage{})

	_, err := service.RequestRefund(ctx, "2025010112000000000001", "")
	if !errs.IsCode(err, errs.CodeConflict) {
		t.Errorf("RequestRefund() error = %v, want code %s", err, errs.CodeConflict)
	}
}

func TestOrderServiceImpl_RequestRefund_UnpaidOrder(t *testing.T) {
	ctx := context.Background()

	orders := &storage.MockOrderStorage{
		GetByIDFunc: func(ctx context.Context, orderID string) (*models.Order, error) {
			return &models.Order{
				Status:        models.OrderStatusUnpaid,
				TradingStatus: models.TradingStatusOpening,
			}, nil
		},
	}
	service := newOrderService(orders, &storage.MockUserStorage{})

	_, err := service.RequestRefund(ctx, "2025010112000000000001", "")
	if !errs.IsCode(err, errs.CodeConflict) {
		t.Errorf("RequestRefund() error = %v, want code %s", err, errs.CodeConflict)
	}
}
