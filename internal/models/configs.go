package models

import (
	"encoding/json"
	"fmt"
)

// ServerConfig заказанная конфигурация облачного сервера.
// Сохраняется в заказе как замороженный JSON-снимок.
type ServerConfig struct {
	CPU           int    `json:"vm_cpu"`
	RamMiB        int    `json:"vm_ram_mib"`
	SystemDiskGiB int    `json:"vm_systemdisk_size"`
	PublicIP      bool   `json:"vm_public_ip"`
	ImageID       string `json:"vm_image_id"`
	NetworkID     string `json:"vm_network_id"`
	AzoneID       string `json:"vm_azone_id"`
	FlavorID      string `json:"vm_flavor_id"`
}

// RamGiB возвращает объём памяти в GiB с округлением вверх.
func (c ServerConfig) RamGiB() int {
	return (c.RamMiB + 1023) / 1024
}

// Validate проверяет конфигурацию сервера.
func (c ServerConfig) Validate() error {
	if c.CPU <= 0 {
		return fmt.Errorf("vm_cpu must be positive")
	}
	if c.RamMiB <= 0 {
		return fmt.Errorf("vm_ram_mib must be positive")
	}
	if c.ImageID == "" {
		return fmt.Errorf("vm_image_id is required")
	}
	if c.NetworkID == "" {
		return fmt.Errorf("vm_network_id is required")
	}
	return nil
}

// QuotaDemand потребность одной единицы этой конфигурации в квоте бекенда.
// Системный диск сервера занимает дисковое измерение наравне
// с отдельно заказанными дисками.
func (c ServerConfig) QuotaDemand() QuotaDemand {
	d := QuotaDemand{VCPU: c.CPU, RamGiB: c.RamGiB()}
	if c.PublicIP {
		d.PublicIPs = 1
	} else {
		d.PrivateIPs = 1
	}
	return d.Add(QuotaDemand{DiskGiB: c.SystemDiskGiB})
}

// ServerConfigFromJSON разбирает снимок конфигурации сервера из заказа.
func ServerConfigFromJSON(raw json.RawMessage) (ServerConfig, error) {
	var c ServerConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return ServerConfig{}, fmt.Errorf("decode server config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return c, nil
}

// DiskConfig заказанная конфигурация облачного диска.
type DiskConfig struct {
	SizeGiB int    `json:"disk_size"`
	AzoneID string `json:"disk_azone_id"`
}

// Validate проверяет конфигурацию диска.
func (c DiskConfig) Validate() error {
	if c.SizeGiB <= 0 {
		return fmt.Errorf("disk_size must be positive")
	}
	return nil
}

// QuotaDemand потребность диска в квоте бекенда.
func (c DiskConfig) QuotaDemand() QuotaDemand {
	return QuotaDemand{DiskGiB: c.SizeGiB}
}

// DiskConfigFromJSON разбирает снимок конфигурации диска из заказа.
func DiskConfigFromJSON(raw json.RawMessage) (DiskConfig, error) {
	var c DiskConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return DiskConfig{}, fmt.Errorf("decode disk config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return DiskConfig{}, err
	}
	return c, nil
}

// ServerRenewConfig конфигурация заказа на продление или смену способа
// расчёта сервера. Снимок спецификации обязан совпадать с живым экземпляром.
type ServerRenewConfig struct {
	ServerID string `json:"vm_server_id"`
	CPU      int    `json:"vm_cpu"`
	RamMiB   int    `json:"vm_ram_mib"`
}

// RamGiB возвращает объём памяти в GiB с округлением вверх.
func (c ServerRenewConfig) RamGiB() int {
	return (c.RamMiB + 1023) / 1024
}

// Validate проверяет конфигурацию продления сервера.
func (c ServerRenewConfig) Validate() error {
	if c.ServerID == "" {
		return fmt.Errorf("vm_server_id is required")
	}
	if c.CPU <= 0 || c.RamMiB <= 0 {
		return fmt.Errorf("vm_cpu and vm_ram_mib must be positive")
	}
	return nil
}

// ServerRenewConfigFromJSON разбирает снимок конфигурации продления сервера.
func ServerRenewConfigFromJSON(raw json.RawMessage) (ServerRenewConfig, error) {
	var c ServerRenewConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return ServerRenewConfig{}, fmt.Errorf("decode server renew config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return ServerRenewConfig{}, err
	}
	return c, nil
}

// DiskRenewConfig конфигурация заказа на продление или смену способа
// расчёта диска.
type DiskRenewConfig struct {
	DiskID  string `json:"disk_id"`
	SizeGiB int    `json:"disk_size"`
}

// Validate проверяет конфигурацию продления диска.
func (c DiskRenewConfig) Validate() error {
	if c.DiskID == "" {
		return fmt.Errorf("disk_id is required")
	}
	if c.SizeGiB <= 0 {
		return fmt.Errorf("disk_size must be positive")
	}
	return nil
}

// DiskRenewConfigFromJSON разбирает снимок конфигурации продления диска.
func DiskRenewConfigFromJSON(raw json.RawMessage) (DiskRenewConfig, error) {
	var c DiskRenewConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return DiskRenewConfig{}, fmt.Errorf("decode disk renew config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return DiskRenewConfig{}, err
	}
	return c, nil
}
