package services

import (
	"github.com/ovolkov/cloudmarket/internal/errs"
	"github.com/ovolkov/cloudmarket/internal/models"
	"github.com/shopspring/decimal"
)

// Суточные тарифы по измерениям ресурсов.
var (
	rateVCPUDay     = decimal.NewFromFloat(0.66)
	rateRamGiBDay   = decimal.NewFromFloat(0.44)
	ratePublicIPDay = decimal.NewFromFloat(0.66)
	rateDiskGiBDay  = decimal.NewFromFloat(0.006)
)

// tradeDiscount скидка продажной цены относительно полной.
var tradeDiscount = decimal.NewFromFloat(0.66)

// TablePriceCalculator табличный расчёт стоимости заказа.
// Предоплата считается за период вперёд, месяц за 30 дней.
// Postpaid-заказы ничего не стоят при создании: списание идёт по факту.
type TablePriceCalculator struct{}

// NewTablePriceCalculator создаёт расчётчик с тарифами по умолчанию.
func NewTablePriceCalculator() *TablePriceCalculator {
	return &TablePriceCalculator{}
}

// Quote возвращает полную и продажную цену за весь заказ.
// Новые заказы считаются по полной конфигурации, продление и перевод
// на предоплату — по снимку спецификации живого экземпляра.
func (c *TablePriceCalculator) Quote(orderType models.OrderType, resourceType models.ResourceKind, config []byte, payType models.PayType, periodMonths, number int) (decimal.Decimal, decimal.Decimal, error) {
	if payType == models.PayTypePostpaid {
		return decimal.Zero, decimal.Zero, nil
	}
	if periodMonths <= 0 {
		return decimal.Zero, decimal.Zero, errs.New(errs.CodeInvalidArgument, "срок предоплаты должен быть положительным")
	}

	perDay, err := c.perDay(orderType, resourceType, config)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	days := decimal.NewFromInt(int64(models.PeriodDays(periodMonths)))
	original := perDay.Mul(days).Mul(decimal.NewFromInt(int64(number))).Round(2)
	trade := original.Mul(tradeDiscount).Round(2)
	return original, trade, nil
}

func (c *TablePriceCalculator) perDay(orderType models.OrderType, resourceType models.ResourceKind, config []byte) (decimal.Decimal, error) {
	renewal := orderType == models.OrderTypeRenewal || orderType == models.OrderTypePost2Pre

	switch resourceType {
	case models.ResourceKindVM:
		if renewal {
			cfg, err := models.ServerRenewConfigFromJSON(config)
			if err != nil {
				return decimal.Zero, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация продления", err)
			}
			return rateVCPUDay.Mul(decimal.NewFromInt(int64(cfg.CPU))).
				Add(rateRamGiBDay.Mul(decimal.NewFromInt(int64(cfg.RamGiB())))), nil
		}
		cfg, err := models.ServerConfigFromJSON(config)
		if err != nil {
			return decimal.Zero, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация сервера", err)
		}
		perDay := rateVCPUDay.Mul(decimal.NewFromInt(int64(cfg.CPU))).
			Add(rateRamGiBDay.Mul(decimal.NewFromInt(int64(cfg.RamGiB())))).
			Add(rateDiskGiBDay.Mul(decimal.NewFromInt(int64(cfg.SystemDiskGiB))))
		if cfg.PublicIP {
			perDay = perDay.Add(ratePublicIPDay)
		}
		return perDay, nil
	case models.ResourceKindDisk:
		if renewal {
			cfg, err := models.DiskRenewConfigFromJSON(config)
			if err != nil {
				return decimal.Zero, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация продления", err)
			}
			return rateDiskGiBDay.Mul(decimal.NewFromInt(int64(cfg.SizeGiB))), nil
		}
		cfg, err := models.DiskConfigFromJSON(config)
		if err != nil {
			return decimal.Zero, errs.Wrap(errs.CodeInvalidArgument, "некорректная конфигурация диска", err)
		}
		return rateDiskGiBDay.Mul(decimal.NewFromInt(int64(cfg.SizeGiB))), nil
	}
	return decimal.Zero, errs.New(errs.CodeInvalidArgument, "неизвестный тип ресурса")
}
