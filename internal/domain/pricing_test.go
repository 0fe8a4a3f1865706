package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleProduct() *Product {
	origin := "Germany"
	return &Product{
		Price:            200,
		Stock:            10,
		ShippingWeight:   2,
		DiscountPercent:  10,
		CountryOfOrigin:  &origin,
		RequiresShipping: true,
	}
}

func TestDiscountedUnitPrice(t *testing.T) {
	p := sampleProduct()
	assert.InDelta(t, 180, p.DiscountedUnitPrice(), 1e-9)

	p.DiscountPercent = 0
	assert.InDelta(t, 200, p.DiscountedUnitPrice(), 1e-9)
}

func TestShippingFees(t *testing.T) {
	p := sampleProduct()
	// 2kg x 3 units x 1.5 per kg
	assert.InDelta(t, 9, p.ShippingFees(3), 1e-9)

	p.RequiresShipping = false
	assert.Zero(t, p.ShippingFees(3))
}

func TestImportDuty(t *testing.T) {
	p := sampleProduct()
	// 200 x 2 x 5%
	assert.InDelta(t, 20, p.ImportDuty(2), 1e-9)

	domestic := "USA"
	p.CountryOfOrigin = &domestic
	assert.Zero(t, p.ImportDuty(2))

	p.CountryOfOrigin = nil
	assert.InDelta(t, 20, p.ImportDuty(2), 1e-9)
}

func TestSnapshotSaleItem(t *testing.T) {
	p := sampleProduct()
	item := p.SnapshotSaleItem(2)

	assert.Equal(t, 2, item.Quantity)
	assert.InDelta(t, 200, item.OriginalUnitPrice, 1e-9)
	assert.InDelta(t, 180, item.FinalUnitPrice, 1e-9)
	assert.InDelta(t, 40, item.DiscountApplied, 1e-9)
	assert.InDelta(t, 6, item.ShippingFeeApplied, 1e-9)
	assert.InDelta(t, 20, item.ImportDutyApplied, 1e-9)
	assert.InDelta(t, 360, item.Subtotal, 1e-9)
}

func TestRequestedRefundAmount(t *testing.T) {
	saleItem := &SaleItem{Quantity: 2, FinalUnitPrice: 50}

	ri := &ReturnItem{Quantity: 2}
	assert.InDelta(t, 100, ri.RequestedRefundAmount(saleItem), 1e-9)

	// requested beyond purchased is capped
	ri = &ReturnItem{Quantity: 5}
	assert.InDelta(t, 100, ri.RequestedRefundAmount(saleItem), 1e-9)

	// restocking fee subtracted
	ri = &ReturnItem{Quantity: 1, RestockingFee: 10}
	assert.InDelta(t, 40, ri.RequestedRefundAmount(saleItem), 1e-9)

	// fee above the line value floors at zero, not negative
	ri = &ReturnItem{Quantity: 1, RestockingFee: 500}
	assert.Zero(t, ri.RequestedRefundAmount(saleItem))

	assert.Zero(t, ri.RequestedRefundAmount(nil))
}

func TestRequestedRefundAmountRounds(t *testing.T) {
	saleItem := &SaleItem{Quantity: 3, FinalUnitPrice: 33.335}
	ri := &ReturnItem{Quantity: 3}
	assert.InDelta(t, 100.01, ri.RequestedRefundAmount(saleItem), 1e-9)
}

func TestApprovedQuantity(t *testing.T) {
	saleItem := &SaleItem{Quantity: 2}

	assert.Equal(t, 1, (&ReturnItem{Quantity: 1}).ApprovedQuantity(saleItem))
	assert.Equal(t, 2, (&ReturnItem{Quantity: 7}).ApprovedQuantity(saleItem))
	assert.Zero(t, (&ReturnItem{Quantity: 1}).ApprovedQuantity(nil))
}
