package models

import (
	"time"
)

// ServerTaskStatus состояние создания сервера на бекенде.
type ServerTaskStatus string

const (
	ServerTaskCreating  ServerTaskStatus = "creating"
	ServerTaskCreatedOK ServerTaskStatus = "ok"
	ServerTaskFailed    ServerTaskStatus = "failed"
)

// Server локальная запись о сервере, созданном на облачном бекенде.
type Server struct {
	ID        string `db:"id"`
	BackendID string `db:"backend_id"`
	// ProviderInstanceID id экземпляра, присвоенный бекендом.
	ProviderInstanceID string `db:"provider_instance_id"`
	InstanceName       string `db:"instance_name"`
	VCPU               int    `db:"vcpu"`
	RamGiB             int    `db:"ram_gib"`
	PublicIP           bool   `db:"public_ip"`
	IPv4               string `db:"ipv4"`
	ImageID            string `db:"image_id"`
	Image              string `db:"image"`
	NetworkID          string `db:"network_id"`
	AzoneID            string `db:"azone_id"`
	DefaultUser        string `db:"default_user"`
	DefaultPassword    string `db:"default_password"`
	Remarks            string `db:"remarks"`
	TaskStatus         ServerTaskStatus `db:"task_status"`
	PayType            PayType          `db:"pay_type"`
	UserID             string           `db:"user_id"`
	VoID               string           `db:"vo_id"`
	OwnerType          OwnerType        `db:"owner_type"`
	StartTime          time.Time        `db:"start_time"`
	// ExpirationTime nil для postpaid-серверов.
	ExpirationTime *time.Time `db:"expiration_time"`
	CreatedAt      time.Time  `db:"created_at"`
}
