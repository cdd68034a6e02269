package models

// BackendKind вид облачного бекенда. Закрытое перечисление: каждому виду
// соответствует свой драйвер.
type BackendKind string

const (
	BackendKindEVCloud   BackendKind = "evcloud"
	BackendKindOpenStack BackendKind = "openstack"
)

// Backend конфигурация подключённого облачного бекенда.
// Для оркестратора доставки доступна только на чтение.
type Backend struct {
	ID       string      `db:"id"`
	Name     string      `db:"name"`
	Kind     BackendKind `db:"kind"`
	Endpoint string      `db:"endpoint"`
	RegionID string      `db:"region_id"`
	Username string      `db:"username"`
	Password string      `db:"password"`
	// AppServiceID идентификатор бекенда в системе расчётов.
	AppServiceID string `db:"app_service_id"`
}

// QuotaDemand потребность в ресурсах бекенда по всем измерениям.
// Используется и для резервирования, и для освобождения.
type QuotaDemand struct {
	VCPU       int
	RamGiB     int
	PublicIPs  int
	PrivateIPs int
	DiskGiB    int
}

// Add возвращает сумму потребностей.
func (d QuotaDemand) Add(o QuotaDemand) QuotaDemand {
	return QuotaDemand{
		VCPU:       d.VCPU + o.VCPU,
		RamGiB:     d.RamGiB + o.RamGiB,
		PublicIPs:  d.PublicIPs + o.PublicIPs,
		PrivateIPs: d.PrivateIPs + o.PrivateIPs,
		DiskGiB:    d.DiskGiB + o.DiskGiB,
	}
}

// Scale возвращает потребность, умноженную на количество единиц.
func (d QuotaDemand) Scale(n int) QuotaDemand {
	return QuotaDemand{
		VCPU:       d.VCPU * n,
		RamGiB:     d.RamGiB * n,
		PublicIPs:  d.PublicIPs * n,
		PrivateIPs: d.PrivateIPs * n,
		DiskGiB:    d.DiskGiB * n,
	}
}

// BackendQuota учёт частной квоты бекенда: сколько всего и сколько занято
// по каждому измерению. total <= 0 означает «без ограничения».
type BackendQuota struct {
	BackendID       string `db:"backend_id"`
	VCPUTotal       int    `db:"vcpu_total"`
	VCPUUsed        int    `db:"vcpu_used"`
	RamGiBTotal     int    `db:"ram_total"`
	RamGiBUsed      int    `db:"ram_used"`
	PublicIPTotal   int    `db:"public_ip_total"`
	PublicIPUsed    int    `db:"public_ip_used"`
	PrivateIPTotal  int    `db:"private_ip_total"`
	PrivateIPUsed   int    `db:"private_ip_used"`
	DiskGiBTotal    int    `db:"disk_total"`
	DiskGiBUsed     int    `db:"disk_used"`
}
