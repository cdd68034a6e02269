package models

import (
	"time"
)

// InstanceStatus результат доставки позиции заказа.
type InstanceStatus string

const (
	InstanceStatusWait    InstanceStatus = "wait"
	InstanceStatusSuccess InstanceStatus = "success"
	InstanceStatusFailed  InstanceStatus = "failed"
)

// DeliverCooldown минимальный интервал между попытками доставки одного
// ресурса. Защита от параллельных повторных запросов доставки.
const DeliverCooldown = time.Minute

// Resource одна позиция заказа: ровно один сервер или диск на бекенде.
type Resource struct {
	ID           string       `db:"id"`
	OrderID      string       `db:"order_id"`
	ResourceType ResourceKind `db:"resource_type"`
	// InstanceID id локальной записи сервера/диска, созданной при доставке.
	InstanceID     string         `db:"instance_id"`
	InstanceStatus InstanceStatus `db:"instance_status"`
	InstanceRemark string         `db:"instance_remark"`
	// Desc текстовое описание результата доставки.
	Desc string `db:"desc"`
	// LastDeliverTime время последней попытки доставки. Пока с него не
	// прошёл DeliverCooldown, новая попытка отклоняется.
	LastDeliverTime *time.Time `db:"last_deliver_time"`
	DeliveredTime   *time.Time `db:"delivered_time"`
	// InstanceDeleteTime не пусто, если ресурс на бекенде позже удалён.
	InstanceDeleteTime *time.Time `db:"instance_delete_time"`
	CreatedAt          time.Time  `db:"created_at"`
}

// InCooldown сообщает, не прошёл ли ещё интервал с последней попытки доставки.
func (r *Resource) InCooldown(now time.Time) bool {
	if r.LastDeliverTime == nil {
		return false
	}
	return now.Sub(*r.LastDeliverTime) < DeliverCooldown
}
