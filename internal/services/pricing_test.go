package services

import (
	"testing"

	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/shopspring/decimal"
)

func TestTablePriceCalculator_QuoteServer(t *testing.T) {
	calc := NewTablePriceCalculator()

	// 2 vCPU, 2 GiB RAM, 50 GiB диска и публичный адрес:
	// (2*0.66 + 2*0.44 + 50*0.006 + 0.66) * 30 дней = 94.8.
	original, trade, err := calc.Quote(models.OrderTypeNew, models.ResourceKindVM, []byte(serverConfigJSON), models.PayTypePrepaid, 1, 1)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	wantOriginal := decimal.NewFromFloat(94.80)
	if !original.Equal(wantOriginal) {
		t.Errorf("Quote() original = %v, want %v", original, wantOriginal)
	}

	wantTrade := wantOriginal.Mul(decimal.NewFromFloat(0.66)).Round(2)
	if !trade.Equal(wantTrade) {
		t.Errorf("Quote() trade = %v, want %v", trade, wantTrade)
	}
}

func TestTablePriceCalculator_QuoteScalesWithNumberAndPeriod(t *testing.T) {
	calc := NewTablePriceCalculator()

	one, _, err := calc.Quote(models.OrderTypeNew, models.ResourceKindVM, []byte(serverConfigJSON), models.PayTypePrepaid, 1, 1)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	six, _, err := calc.Quote(models.OrderTypeNew, models.ResourceKindVM, []byte(serverConfigJSON), models.PayTypePrepaid, 2, 3)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	// 3 позиции на 2 месяца стоят в шесть раз дороже одной на месяц.
	if !six.Equal(one.Mul(decimal.NewFromInt(6))) {
		t.Errorf("Quote() = %v, want %v", six, one.Mul(decimal.NewFromInt(6)))
	}
}

func TestTablePriceCalculator_QuoteDisk(t *testing.T) {
	calc := NewTablePriceCalculator()

	original, _, err := calc.Quote(models.OrderTypeNew, models.ResourceKindDisk, []byte(`{"disk_size":100,"disk_azone_id":"az-1"}`), models.PayTypePrepaid, 1, 1)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	// 100 GiB * 0.006 * 30 дней = 18.
	want := decimal.NewFromFloat(18)
	if !original.Equal(want) {
		t.Errorf("Quote() original = %v, want %v", original, want)
	}
}

func TestTablePriceCalculator_QuoteRenewal(t *testing.T) {
	calc := NewTablePriceCalculator()

	// Продление считается по снимку живого экземпляра: только vCPU и память.
	// (2*0.66 + 2*0.44) * 30 дней = 66.
	renewConfig := `{"vm_server_id":"srv-1","vm_cpu":2,"vm_ram_mib":2048}`
	original, trade, err := calc.Quote(models.OrderTypeRenewal, models.ResourceKindVM, []byte(renewConfig), models.PayTypePrepaid, 1, 1)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	wantOriginal := decimal.NewFromFloat(66)
	if !original.Equal(wantOriginal) {
		t.Errorf("Quote() original = %v, want %v", original, wantOriginal)
	}
	wantTrade := wantOriginal.Mul(decimal.NewFromFloat(0.66)).Round(2)
	if !trade.Equal(wantTrade) {
		t.Errorf("Quote() trade = %v, want %v", trade, wantTrade)
	}

	// Перевод на предоплату тарифицируется так же, как продление.
	post2pre, _, err := calc.Quote(models.OrderTypePost2Pre, models.ResourceKindVM, []byte(renewConfig), models.PayTypePrepaid, 1, 1)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !post2pre.Equal(original) {
		t.Errorf("Quote() post2pre = %v, want %v", post2pre, original)
	}
}

func TestTablePriceCalculator_QuoteRenewalDisk(t *testing.T) {
	calc := NewTablePriceCalculator()

	// 100 GiB * 0.006 * 30 дней = 18.
	original, _, err := calc.Quote(models.OrderTypeRenewal, models.ResourceKindDisk, []byte(`{"disk_id":"disk-1","disk_size":100}`), models.PayTypePrepaid, 1, 1)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	want := decimal.NewFromFloat(18)
	if !original.Equal(want) {
		t.Errorf("Quote() original = %v, want %v", original, want)
	}
}

func TestTablePriceCalculator_QuotePostpaidIsFree(t *testing.T) {
	calc := NewTablePriceCalculator()

	original, trade, err := calc.Quote(models.OrderTypeNew, models.ResourceKindVM, []byte(serverConfigJSON), models.PayTypePostpaid, 0, 2)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !original.IsZero() || !trade.IsZero() {
		t.Errorf("Quote() = %v/%v, want 0/0", original, trade)
	}
}

func TestTablePriceCalculator_QuoteErrors(t *testing.T) {
	calc := NewTablePriceCalculator()

	tests := []struct {
		name         string
		orderType    models.OrderType
		resourceType models.ResourceKind
		config       string
		period       int
	}{
		{"zero period prepaid", models.OrderTypeNew, models.ResourceKindVM, serverConfigJSON, 0},
		{"broken server config", models.OrderTypeNew, models.ResourceKindVM, `{"vm_cpu":0}`, 1},
		{"broken disk config", models.OrderTypeNew, models.ResourceKindDisk, `{"disk_size":0}`, 1},
		{"renewal without server id", models.OrderTypeRenewal, models.ResourceKindVM, `{"vm_cpu":2,"vm_ram_mib":2048}`, 1},
		{"disk renewal without disk id", models.OrderTypeRenewal, models.ResourceKindDisk, `{"disk_size":100}`, 1},
		{"unknown resource type", models.OrderTypeNew, "network", `{}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := calc.Quote(tt.orderType, tt.resourceType, []byte(tt.config), models.PayTypePrepaid, tt.period, 1)
			if !errs.IsCode(err, errs.CodeInvalidArgument) {
				t.Errorf("Quote() error = %v, want code %s", err, errs.CodeInvalidArgument)
			}
		})
	}
}
