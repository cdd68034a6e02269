package handlers

import (
	"net/http"

	"github.com/ovolkov/cloudmarket/internal/auth"
	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/ovolkov/cloudmarket/internal/services"
	"github.com/labstack/echo/v4"
)

// OrderHandler обрабатывает запросы, связанные с заказами и их доставкой.
type OrderHandler struct {
	orderService   services.OrderService
	deliverService services.DeliverService
}

func NewOrderHandler(orderService services.OrderService, deliverService services.DeliverService) *OrderHandler {
	return &OrderHandler{orderService: orderService, deliverService: deliverService}
}

// CreateOrder обрабатывает POST /api/orders.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	login, err := auth.GetUserLoginFromContext(c)
	if err != nil {
		return err
	}

	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	owner := services.OwnerContext{
		OwnerType: models.OwnerTypeUser,
		UserID:    userID.String(),
		Username:  login,
	}
	if req.VoID != "" {
		owner.OwnerType = models.OwnerTypeVO
		owner.VoID = req.VoID
		owner.VoName = req.VoName
	}

	order, resources, err := h.orderService.CreateOrder(c.Request().Context(), services.CreateOrderParams{
		OrderType:    req.OrderType,
		ResourceType: req.ResourceType,
		BackendID:    req.BackendID,
		Config:       req.InstanceConfig,
		PayType:      req.PayType,
		PeriodMonths: req.PeriodMonths,
		Number:       req.Number,
		Owner:        owner,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusCreated, models.NewOrderResponse(order, resources))
}

// GetOrders обрабатывает GET /api/orders.
func (h *OrderHandler) GetOrders(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	orders, err := h.orderService.GetOwnerOrders(c.Request().Context(), models.OwnerTypeUser, userID.String())
	if err != nil {
		return h.mapError(c, err)
	}
	if len(orders) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	response := make([]*models.OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, models.NewOrderResponse(order, nil))
	}
	return c.JSON(http.StatusOK, response)
}

// GetOrder обрабатывает GET /api/orders/:id.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, resources, err := h.orderService.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, models.NewOrderResponse(order, resources))
}

// PayOrder обрабатывает POST /api/orders/:id/pay — оплату из кошелька.
func (h *OrderHandler) PayOrder(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.PayOrder(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, models.NewOrderResponse(order, nil))
}

// DeliverOrder обрабатывает POST /api/orders/:id/deliver.
func (h *OrderHandler) DeliverOrder(c echo.Context) error {
	orderID := c.Param("id")
	delivered, err := h.deliverService.Deliver(c.Request().Context(), orderID)
	if err != nil {
		return h.mapError(c, err)
	}

	response := make([]*models.ResourceResponse, 0, len(delivered))
	for _, res := range delivered {
		response = append(response, models.NewResourceResponse(res))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"order_id":  orderID,
		"delivered": response,
	})
}

// CancelOrder обрабатывает POST /api/orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	order, err := h.orderService.CancelOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, models.NewOrderResponse(order, nil))
}

// RequestRefund обрабатывает POST /api/orders/:id/refund.
func (h *OrderHandler) RequestRefund(c echo.Context) error {
	var req models.RefundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	ticket, err := h.orderService.RequestRefund(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, ticket)
}

// mapError отображает код бизнес-ошибки в HTTP-статус.
func (h *OrderHandler) mapError(c echo.Context, err error) error {
	code := errs.Code(err)
	switch code {
	case errs.CodeInvalidArgument:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errs.CodeNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errs.CodeConflict,
		errs.CodeOrderUnpaid,
		errs.CodeOrderCancelled,
		errs.CodeOrderRefund,
		errs.CodeOrderTradingClosed,
		errs.CodeOrderTradingCompleted,
		errs.CodeQuotaShortage:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errs.CodeTryAgainLater:
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		c.Logger().Errorf("order request failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
