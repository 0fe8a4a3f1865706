package domain

import "math"

const (
	shippingRatePerKg = 1.5
	importDutyRate    = 0.05
	dutyWaivedCountry = "USA"
)

// DiscountedUnitPrice returns the unit price after the product discount
func (p *Product) DiscountedUnitPrice() float64 {
	return p.Price * (1 - p.DiscountPercent/100)
}

// ShippingFees returns the shipping fee for a quantity of this product.
// Zero when the product does not require shipping.
func (p *Product) ShippingFees(quantity int) float64 {
	if !p.RequiresShipping {
		return 0
	}
	return p.ShippingWeight * float64(quantity) * shippingRatePerKg
}

// ImportDuty returns the import duty for a quantity of this product.
// Waived for domestic (USA) origin.
func (p *Product) ImportDuty(quantity int) float64 {
	if p.CountryOfOrigin != nil && *p.CountryOfOrigin == dutyWaivedCountry {
		return 0
	}
	return p.Price * float64(quantity) * importDutyRate
}

// SubtotalForQuantity returns the discounted line subtotal
func (p *Product) SubtotalForQuantity(quantity int) float64 {
	return p.DiscountedUnitPrice() * float64(quantity)
}

// SnapshotSaleItem captures the point-in-time price/fee/duty breakdown for a
// quantity of this product. The snapshot is never recomputed after the sale
// completes.
func (p *Product) SnapshotSaleItem(quantity int) SaleItem {
	finalUnit := p.DiscountedUnitPrice()
	return SaleItem{
		ProductID:          p.ID,
		Quantity:           quantity,
		OriginalUnitPrice:  p.Price,
		FinalUnitPrice:     finalUnit,
		DiscountApplied:    (p.Price - finalUnit) * float64(quantity),
		ShippingFeeApplied: p.ShippingFees(quantity),
		ImportDutyApplied:  p.ImportDuty(quantity),
		Subtotal:           p.SubtotalForQuantity(quantity),
	}
}

// RequestedRefundAmount returns the refund amount for one return item against
// its sale item: final unit price x min(requested, purchased) minus the
// restocking fee, floored at zero. The restocking fee is not validated
// against the line subtotal; the zero floor is the only guard.
func (ri *ReturnItem) RequestedRefundAmount(saleItem *SaleItem) float64 {
	if saleItem == nil {
		return 0
	}
	qty := ri.Quantity
	if saleItem.Quantity < qty {
		qty = saleItem.Quantity
	}
	amount := saleItem.FinalUnitPrice*float64(qty) - ri.RestockingFee
	return round2(math.Max(amount, 0))
}

// ApprovedQuantity returns the unit count restocked when this return item is
// refunded
func (ri *ReturnItem) ApprovedQuantity(saleItem *SaleItem) int {
	if saleItem == nil {
		return 0
	}
	if ri.Quantity < saleItem.Quantity {
		return ri.Quantity
	}
	return saleItem.Quantity
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
