package models

import (
	"encoding/json"
	"time"
)

// CreateOrderRequest запрос на создание заказа.
type CreateOrderRequest struct {
	OrderType      OrderType       `json:"order_type"`
	ResourceType   ResourceKind    `json:"resource_type"`
	BackendID      string          `json:"backend_id"`
	InstanceConfig json.RawMessage `json:"instance_config"`
	PayType        PayType         `json:"pay_type"`
	PeriodMonths   int             `json:"period"`
	Number         int             `json:"number"`
	VoID           string          `json:"vo_id,omitempty"`
	VoName         string          `json:"vo_name,omitempty"`
}

// RefundRequest запрос на возврат по заказу.
type RefundRequest struct {
	Reason string `json:"reason"`
}

// OrderResponse заказ в HTTP-ответе.
type OrderResponse struct {
	ID             string          `json:"id"`
	OrderType      OrderType       `json:"order_type"`
	Status         OrderStatus     `json:"status"`
	TradingStatus  TradingStatus   `json:"trading_status"`
	ResourceType   ResourceKind    `json:"resource_type"`
	BackendID      string          `json:"backend_id"`
	BackendName    string          `json:"backend_name"`
	InstanceConfig json.RawMessage `json:"instance_config"`
	Period         int             `json:"period"`
	Number         int             `json:"number"`
	TotalAmount    string          `json:"total_amount"`
	PayAmount      string          `json:"pay_amount"`
	PayType        PayType         `json:"pay_type"`
	CreatedAt      string          `json:"created_at"`

	Resources []*ResourceResponse `json:"resources,omitempty"`
}

// ResourceResponse позиция заказа в HTTP-ответе.
type ResourceResponse struct {
	ID             string         `json:"id"`
	ResourceType   ResourceKind   `json:"resource_type"`
	InstanceID     string         `json:"instance_id,omitempty"`
	InstanceStatus InstanceStatus `json:"instance_status"`
	Desc           string         `json:"desc,omitempty"`
	DeliveredTime  string         `json:"delivered_time,omitempty"`
}

// NewOrderResponse собирает DTO заказа с позициями.
func NewOrderResponse(order *Order, resources []*Resource) *OrderResponse {
	resp := &OrderResponse{
		ID:             order.ID,
		OrderType:      order.OrderType,
		Status:         order.Status,
		TradingStatus:  order.TradingStatus,
		ResourceType:   order.ResourceType,
		BackendID:      order.BackendID,
		BackendName:    order.BackendName,
		InstanceConfig: order.InstanceConfig,
		Period:         order.Period,
		Number:         order.Number,
		TotalAmount:    order.TotalAmount.String(),
		PayAmount:      order.PayAmount.String(),
		PayType:        order.PayType,
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	}
	for _, res := range resources {
		resp.Resources = append(resp.Resources, NewResourceResponse(res))
	}
	return resp
}

// NewResourceResponse собирает DTO позиции заказа.
func NewResourceResponse(res *Resource) *ResourceResponse {
	r := &ResourceResponse{
		ID:             res.ID,
		ResourceType:   res.ResourceType,
		InstanceID:     res.InstanceID,
		InstanceStatus: res.InstanceStatus,
		Desc:           res.Desc,
	}
	if res.DeliveredTime != nil {
		r.DeliveredTime = res.DeliveredTime.Format(time.RFC3339)
	}
	return r
}
