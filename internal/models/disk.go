package models

import (
	"time"
)

// Disk локальная запись о блочном устройстве, созданном на облачном бекенде.
type Disk struct {
	ID                 string `db:"id"`
	BackendID          string `db:"backend_id"`
	ProviderDiskID     string `db:"provider_disk_id"`
	InstanceName       string `db:"instance_name"`
	SizeGiB            int    `db:"size_gib"`
	AzoneID            string `db:"azone_id"`
	Remarks            string `db:"remarks"`
	TaskStatus         ServerTaskStatus `db:"task_status"`
	PayType            PayType          `db:"pay_type"`
	UserID             string           `db:"user_id"`
	VoID               string           `db:"vo_id"`
	OwnerType          OwnerType        `db:"owner_type"`
	StartTime          time.Time        `db:"start_time"`
	ExpirationTime     *time.Time       `db:"expiration_time"`
	CreatedAt          time.Time        `db:"created_at"`
}
