package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/payment"
	"github.com/jafarshop/retailapi/internal/repository"
	"github.com/jafarshop/retailapi/pkg/errors"
)

// memState is the shared backing store for the in-memory repository mocks
type memState struct {
	mu           sync.Mutex
	products     map[uuid.UUID]*domain.Product
	sales        map[uuid.UUID]*domain.Sale
	saleItems    map[uuid.UUID]*domain.SaleItem
	payments     map[uuid.UUID]*domain.Payment
	returns      map[uuid.UUID]*domain.ReturnRequest
	returnItems  map[uuid.UUID]*domain.ReturnItem
	shipments    map[uuid.UUID]*domain.ReturnShipment
	inspections  map[uuid.UUID]*domain.Inspection
	refunds      map[uuid.UUID]*domain.Refund
	queue        map[uuid.UUID]*domain.QueuedOrder
	failedLogs   []*domain.FailedPaymentLog
	flashSales   map[uuid.UUID]*domain.FlashSale
	reservations []*domain.FlashSaleReservation

	enqueueErr error
}

func newMemState() *memState {
	return &memState{
		products:    make(map[uuid.UUID]*domain.Product),
		sales:       make(map[uuid.UUID]*domain.Sale),
		saleItems:   make(map[uuid.UUID]*domain.SaleItem),
		payments:    make(map[uuid.UUID]*domain.Payment),
		returns:     make(map[uuid.UUID]*domain.ReturnRequest),
		returnItems: make(map[uuid.UUID]*domain.ReturnItem),
		shipments:   make(map[uuid.UUID]*domain.ReturnShipment),
		inspections: make(map[uuid.UUID]*domain.Inspection),
		refunds:     make(map[uuid.UUID]*domain.Refund),
		queue:       make(map[uuid.UUID]*domain.QueuedOrder),
		flashSales:  make(map[uuid.UUID]*domain.FlashSale),
	}
}

func newMockRepos(st *memState) *repository.Repositories {
	return &repository.Repositories{
		Product:          &mockProductRepo{st},
		Sale:             &mockSaleRepo{st},
		SaleItem:         &mockSaleItemRepo{st},
		Payment:          &mockPaymentRepo{st},
		ReturnRequest:    &mockReturnRequestRepo{st},
		Refund:           &mockRefundRepo{st},
		OrderQueue:       &mockOrderQueueRepo{st},
		FailedPaymentLog: &mockFailedPaymentLogRepo{st},
		FlashSale:        &mockFlashSaleRepo{st},
		Checkout:         &mockCheckoutRepo{st},
	}
}

type mockProductRepo struct{ st *memState }

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	p, ok := m.st.products[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepo) List(_ context.Context, limit, offset int) ([]*domain.Product, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.st.products {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockProductRepo) Create(_ context.Context, p *domain.Product) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	copied := *p
	m.st.products[p.ID] = &copied
	return nil
}

func (m *mockProductRepo) Update(_ context.Context, p *domain.Product) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	copied := *p
	m.st.products[p.ID] = &copied
	return nil
}

type mockSaleRepo struct{ st *memState }

func (m *mockSaleRepo) Create(_ context.Context, sale *domain.Sale) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	copied := *sale
	m.st.sales[sale.ID] = &copied
	return nil
}

func (m *mockSaleRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Sale, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	sale, ok := m.st.sales[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "sale", ID: id.String()}
	}
	copied := *sale
	return &copied, nil
}

func (m *mockSaleRepo) GetCartByUser(_ context.Context, userID uuid.UUID) (*domain.Sale, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, sale := range m.st.sales {
		if sale.UserID == userID && sale.Status == domain.SaleStatusCart {
			copied := *sale
			return &copied, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "cart", ID: userID.String()}
}

func (m *mockSaleRepo) GetCompletedForCustomer(_ context.Context, saleID, customerID uuid.UUID) (*domain.Sale, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	sale, ok := m.st.sales[saleID]
	if !ok || sale.UserID != customerID || sale.Status != domain.SaleStatusCompleted {
		return nil, &errors.ErrNotFound{Resource: "sale", ID: saleID.String()}
	}
	var hasPayment bool
	for _, p := range m.st.payments {
		if p.SaleID == saleID && p.Status == domain.PaymentStatusCompleted {
			hasPayment = true
		}
	}
	var hasItems bool
	for _, item := range m.st.saleItems {
		if item.SaleID == saleID && item.Quantity > 0 {
			hasItems = true
		}
	}
	if !hasPayment || !hasItems {
		return nil, &errors.ErrNotFound{Resource: "sale", ID: saleID.String()}
	}
	copied := *sale
	return &copied, nil
}

func (m *mockSaleRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.SaleStatus) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	sale, ok := m.st.sales[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "sale", ID: id.String()}
	}
	sale.Status = status
	return nil
}

func (m *mockSaleRepo) UpdateTotals(_ context.Context, id uuid.UUID, total float64) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	sale, ok := m.st.sales[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "sale", ID: id.String()}
	}
	sale.TotalAmount = total
	return nil
}

func (m *mockSaleRepo) ListHistoryByUser(_ context.Context, userID uuid.UUID, filter repository.SaleHistoryFilter) ([]*domain.Sale, int, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []*domain.Sale
	for _, s := range m.st.sales {
		if s.UserID != userID || s.Status == domain.SaleStatusCart {
			continue
		}
		if !m.saleMatchesStatus(s, filter.Status) {
			continue
		}
		if filter.From != nil && (s.SaleDate == nil || s.SaleDate.Before(*filter.From)) {
			continue
		}
		if filter.To != nil && (s.SaleDate == nil || s.SaleDate.After(*filter.To)) {
			continue
		}
		if filter.Keyword != "" && !m.saleMatchesKeyword(s, filter.Keyword) {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SaleDate == nil || out[j].SaleDate == nil {
			return out[j].SaleDate == nil && out[i].SaleDate != nil
		}
		return out[i].SaleDate.After(*out[j].SaleDate)
	})
	total := len(out)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			out = nil
		} else {
			out = out[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *mockSaleRepo) saleMatchesStatus(s *domain.Sale, status string) bool {
	switch strings.ToLower(status) {
	case "":
		return true
	case "returned":
		for _, rr := range m.st.returns {
			if rr.SaleID == s.ID && rr.Status != domain.ReturnStatusCancelled && rr.Status != domain.ReturnStatusRejected {
				return true
			}
		}
		return false
	case "refunded":
		for _, rr := range m.st.returns {
			if rr.SaleID != s.ID {
				continue
			}
			for _, rf := range m.st.refunds {
				if rf.ReturnRequestID == rr.ID && rf.Status == domain.RefundStatusCompleted {
					return true
				}
			}
		}
		return false
	case "pending", "completed", "failed", "cart":
		return string(s.Status) == strings.ToLower(status)
	default:
		return true
	}
}

func (m *mockSaleRepo) saleMatchesKeyword(s *domain.Sale, keyword string) bool {
	if id, err := uuid.Parse(keyword); err == nil && s.ID == id {
		return true
	}
	needle := strings.ToLower(keyword)
	for _, item := range m.st.saleItems {
		if item.SaleID != s.ID {
			continue
		}
		if p, ok := m.st.products[item.ProductID]; ok && strings.Contains(strings.ToLower(p.Name), needle) {
			return true
		}
	}
	return false
}

type mockSaleItemRepo struct{ st *memState }

func (m *mockSaleItemRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.SaleItem, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	item, ok := m.st.saleItems[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "sale item", ID: id.String()}
	}
	copied := *item
	return &copied, nil
}

func (m *mockSaleItemRepo) ListBySale(_ context.Context, saleID uuid.UUID) ([]*domain.SaleItem, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []*domain.SaleItem
	for _, item := range m.st.saleItems {
		if item.SaleID == saleID {
			copied := *item
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockSaleItemRepo) UpsertCartItem(_ context.Context, item *domain.SaleItem) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, existing := range m.st.saleItems {
		if existing.SaleID == item.SaleID && existing.ProductID == item.ProductID {
			existing.Quantity += item.Quantity
			existing.Subtotal += item.Subtotal
			existing.ShippingFeeApplied += item.ShippingFeeApplied
			existing.ImportDutyApplied += item.ImportDutyApplied
			existing.DiscountApplied += item.DiscountApplied
			return nil
		}
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	copied := *item
	m.st.saleItems[item.ID] = &copied
	return nil
}

func (m *mockSaleItemRepo) SetQuantity(_ context.Context, saleID, productID uuid.UUID, item *domain.SaleItem) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for id, existing := range m.st.saleItems {
		if existing.SaleID == saleID && existing.ProductID == productID {
			if item.Quantity == 0 {
				delete(m.st.saleItems, id)
				return nil
			}
			copied := *item
			copied.ID = id
			copied.SaleID = saleID
			m.st.saleItems[id] = &copied
			return nil
		}
	}
	return &errors.ErrNotFound{Resource: "sale item", ID: productID.String()}
}

func (m *mockSaleItemRepo) DeleteBySale(_ context.Context, saleID uuid.UUID) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for id, item := range m.st.saleItems {
		if item.SaleID == saleID {
			delete(m.st.saleItems, id)
		}
	}
	return nil
}

type mockPaymentRepo struct{ st *memState }

func (m *mockPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	copied := *p
	m.st.payments[p.ID] = &copied
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	p, ok := m.st.payments[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "payment", ID: id.String()}
	}
	copied := *p
	return &copied, nil
}

func (m *mockPaymentRepo) GetLatestBySale(_ context.Context, saleID uuid.UUID) (*domain.Payment, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var latest *domain.Payment
	for _, p := range m.st.payments {
		if p.SaleID != saleID {
			continue
		}
		if latest == nil || p.PaymentDate.After(latest.PaymentDate) {
			latest = p
		}
	}
	if latest == nil {
		return nil, &errors.ErrNotFound{Resource: "payment", ID: saleID.String()}
	}
	copied := *latest
	return &copied, nil
}

func (m *mockPaymentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	p, ok := m.st.payments[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "payment", ID: id.String()}
	}
	p.Status = status
	return nil
}

type mockReturnRequestRepo struct{ st *memState }

func (m *mockReturnRequestRepo) Create(_ context.Context, request *domain.ReturnRequest, items []*domain.ReturnItem, photos []*domain.ReturnPhoto) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	copied := *request
	m.st.returns[request.ID] = &copied
	for _, item := range items {
		item.ReturnRequestID = request.ID
		ci := *item
		m.st.returnItems[item.ID] = &ci
	}
	return nil
}

func (m *mockReturnRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	request, ok := m.st.returns[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "return request", ID: id.String()}
	}
	copied := *request
	return &copied, nil
}

func (m *mockReturnRequestRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ReturnRequestStatus, rmaNumber, notes *string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	request, ok := m.st.returns[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "return request", ID: id.String()}
	}
	request.Status = status
	if rmaNumber != nil {
		request.RMANumber = rmaNumber
	}
	if notes != nil {
		request.DecisionNotes = notes
	}
	return nil
}

func (m *mockReturnRequestRepo) ListItems(_ context.Context, requestID uuid.UUID) ([]*domain.ReturnItem, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []*domain.ReturnItem
	for _, item := range m.st.returnItems {
		if item.ReturnRequestID == requestID {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockReturnRequestRepo) ActiveReturnedQuantity(_ context.Context, saleItemID uuid.UUID) (int, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	total := 0
	for _, item := range m.st.returnItems {
		if item.SaleItemID != saleItemID {
			continue
		}
		request, ok := m.st.returns[item.ReturnRequestID]
		if !ok || !request.Status.IsActive() {
			continue
		}
		total += item.Quantity
	}
	return total, nil
}

func (m *mockReturnRequestRepo) GetShipment(_ context.Context, requestID uuid.UUID) (*domain.ReturnShipment, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	shipment, ok := m.st.shipments[requestID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "return shipment", ID: requestID.String()}
	}
	copied := *shipment
	return &copied, nil
}

func (m *mockReturnRequestRepo) UpsertShipment(_ context.Context, shipment *domain.ReturnShipment) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	copied := *shipment
	m.st.shipments[shipment.ReturnRequestID] = &copied
	return nil
}

func (m *mockReturnRequestRepo) GetInspection(_ context.Context, requestID uuid.UUID) (*domain.Inspection, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	inspection, ok := m.st.inspections[requestID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "inspection", ID: requestID.String()}
	}
	copied := *inspection
	return &copied, nil
}

func (m *mockReturnRequestRepo) UpsertInspection(_ context.Context, inspection *domain.Inspection) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	copied := *inspection
	m.st.inspections[inspection.ReturnRequestID] = &copied
	return nil
}

func (m *mockReturnRequestRepo) ListByCustomer(_ context.Context, customerID uuid.UUID, filter repository.ReturnHistoryFilter) ([]*domain.ReturnRequest, int, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []*domain.ReturnRequest
	for _, request := range m.st.returns {
		if request.CustomerID != customerID {
			continue
		}
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		if filter.From != nil && request.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && request.CreatedAt.After(*filter.To) {
			continue
		}
		if filter.Keyword != "" && !returnMatchesKeyword(request, filter.Keyword) {
			continue
		}
		copied := *request
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			out = nil
		} else {
			out = out[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func returnMatchesKeyword(request *domain.ReturnRequest, keyword string) bool {
	needle := strings.ToLower(keyword)
	if request.RMANumber != nil && strings.Contains(strings.ToLower(*request.RMANumber), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(request.ID.String()), needle)
}

type mockRefundRepo struct{ st *memState }

func (m *mockRefundRepo) Create(_ context.Context, refund *domain.Refund) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	copied := *refund
	m.st.refunds[refund.ID] = &copied
	return nil
}

func (m *mockRefundRepo) GetByReturnRequest(_ context.Context, requestID uuid.UUID) (*domain.Refund, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, refund := range m.st.refunds {
		if refund.ReturnRequestID == requestID {
			copied := *refund
			return &copied, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "refund", ID: requestID.String()}
}

func (m *mockRefundRepo) Reset(_ context.Context, id uuid.UUID, amount float64, method domain.RefundMethod) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	refund, ok := m.st.refunds[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "refund", ID: id.String()}
	}
	refund.Amount = amount
	refund.Method = method
	refund.Status = domain.RefundStatusPending
	refund.FailureReason = nil
	return nil
}

func (m *mockRefundRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	refund, ok := m.st.refunds[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "refund", ID: id.String()}
	}
	refund.Status = domain.RefundStatusFailed
	refund.FailureReason = &reason
	return nil
}

func (m *mockRefundRepo) CompleteAndRestock(_ context.Context, refundID uuid.UUID, reference string, requestID uuid.UUID, adjustments []domain.StockAdjustment) ([]domain.InventoryChange, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	refund, ok := m.st.refunds[refundID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "refund", ID: refundID.String()}
	}
	request, ok := m.st.returns[requestID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "return request", ID: requestID.String()}
	}

	now := time.Now()
	refund.Status = domain.RefundStatusCompleted
	refund.ExternalReference = &reference
	refund.ProcessedAt = &now
	request.Status = domain.ReturnStatusRefunded

	var changes []domain.InventoryChange
	for _, adj := range adjustments {
		product, ok := m.st.products[adj.ProductID]
		if !ok {
			return nil, &errors.ErrNotFound{Resource: "product", ID: adj.ProductID.String()}
		}
		old := product.Stock
		product.Stock += adj.Delta
		changes = append(changes, domain.InventoryChange{
			ProductID: adj.ProductID,
			OldStock:  old,
			NewStock:  product.Stock,
			Reason:    "return_refunded",
		})
	}
	return changes, nil
}

type mockOrderQueueRepo struct{ st *memState }

func (m *mockOrderQueueRepo) Enqueue(_ context.Context, entry *domain.QueuedOrder) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.enqueueErr != nil {
		return m.st.enqueueErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	copied := *entry
	m.st.queue[entry.ID] = &copied
	return nil
}

func (m *mockOrderQueueRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]*domain.QueuedOrder, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var due []*domain.QueuedOrder
	for _, entry := range m.st.queue {
		if entry.Status == domain.QueueStatusPending && !entry.ScheduledFor.After(now) {
			entry.Status = domain.QueueStatusProcessing
			copied := *entry
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Priority > due[j].Priority })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *mockOrderQueueRepo) Update(_ context.Context, entry *domain.QueuedOrder) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if _, ok := m.st.queue[entry.ID]; !ok {
		return &errors.ErrNotFound{Resource: "queue entry", ID: entry.ID.String()}
	}
	copied := *entry
	m.st.queue[entry.ID] = &copied
	return nil
}

func (m *mockOrderQueueRepo) ListByStatus(_ context.Context, status domain.QueueStatus, limit, offset int) ([]*domain.QueuedOrder, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []*domain.QueuedOrder
	for _, entry := range m.st.queue {
		if entry.Status == status {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}

type mockFailedPaymentLogRepo struct{ st *memState }

func (m *mockFailedPaymentLogRepo) Create(_ context.Context, log *domain.FailedPaymentLog) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	copied := *log
	m.st.failedLogs = append(m.st.failedLogs, &copied)
	return nil
}

type mockFlashSaleRepo struct{ st *memState }

func (m *mockFlashSaleRepo) Create(_ context.Context, sale *domain.FlashSale) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	copied := *sale
	m.st.flashSales[sale.ID] = &copied
	return nil
}

func (m *mockFlashSaleRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.FlashSale, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	sale, ok := m.st.flashSales[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "flash sale", ID: id.String()}
	}
	copied := *sale
	return &copied, nil
}

func (m *mockFlashSaleRepo) ListActive(_ context.Context, now time.Time) ([]*domain.FlashSale, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []*domain.FlashSale
	for _, sale := range m.st.flashSales {
		if sale.IsActiveAt(now) {
			copied := *sale
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockFlashSaleRepo) HasOverlappingActive(_ context.Context, productID uuid.UUID, start, end time.Time) (bool, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, sale := range m.st.flashSales {
		if sale.ProductID == productID && sale.Status == domain.FlashSaleActive &&
			sale.StartTime.Before(end) && sale.EndTime.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFlashSaleRepo) Reserve(_ context.Context, flashSaleID, userID uuid.UUID, quantity int, now time.Time) (*domain.FlashSaleReservation, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	sale, ok := m.st.flashSales[flashSaleID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "flash sale", ID: flashSaleID.String()}
	}
	if !sale.IsActiveAt(now) {
		return nil, &errors.ErrValidation{Message: "flash sale is not accepting reservations"}
	}
	if quantity > sale.AvailableQuantity() {
		return nil, &errors.ErrConflict{Message: fmt.Sprintf("only %d units left in flash sale", sale.AvailableQuantity())}
	}
	for _, r := range m.st.reservations {
		if r.FlashSaleID == flashSaleID && r.UserID == userID && r.Status == "reserved" {
			return nil, &errors.ErrConflict{Message: "user already holds a reservation for this flash sale"}
		}
	}
	reservation := &domain.FlashSaleReservation{
		ID:          uuid.New(),
		FlashSaleID: flashSaleID,
		UserID:      userID,
		Quantity:    quantity,
		Status:      "reserved",
		ReservedAt:  now,
	}
	m.st.reservations = append(m.st.reservations, reservation)
	sale.ReservedQuantity += quantity
	copied := *reservation
	return &copied, nil
}

// mockCheckoutRepo implements the checkout transaction against the shared
// state. Begin snapshots everything the transaction can touch; Rollback
// restores the snapshot.
type mockCheckoutRepo struct{ st *memState }

func (m *mockCheckoutRepo) Begin(_ context.Context) (repository.CheckoutTx, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	return &mockCheckoutTx{st: m.st, snapshot: snapshotState(m.st)}, nil
}

type txSnapshot struct {
	products  map[uuid.UUID]domain.Product
	sales     map[uuid.UUID]domain.Sale
	saleItems map[uuid.UUID]domain.SaleItem
	payments  map[uuid.UUID]domain.Payment
	queue     map[uuid.UUID]domain.QueuedOrder
}

func snapshotState(st *memState) txSnapshot {
	snap := txSnapshot{
		products:  make(map[uuid.UUID]domain.Product, len(st.products)),
		sales:     make(map[uuid.UUID]domain.Sale, len(st.sales)),
		saleItems: make(map[uuid.UUID]domain.SaleItem, len(st.saleItems)),
		payments:  make(map[uuid.UUID]domain.Payment, len(st.payments)),
		queue:     make(map[uuid.UUID]domain.QueuedOrder, len(st.queue)),
	}
	for id, p := range st.products {
		snap.products[id] = *p
	}
	for id, s := range st.sales {
		snap.sales[id] = *s
	}
	for id, i := range st.saleItems {
		snap.saleItems[id] = *i
	}
	for id, p := range st.payments {
		snap.payments[id] = *p
	}
	for id, q := range st.queue {
		snap.queue[id] = *q
	}
	return snap
}

type mockCheckoutTx struct {
	st       *memState
	snapshot txSnapshot
	done     bool
}

func (t *mockCheckoutTx) LockProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	out := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			copied := *p
			out[id] = &copied
		}
	}
	return out, nil
}

func (t *mockCheckoutTx) MarkSalePending(_ context.Context, saleID uuid.UUID, total float64, saleDate time.Time) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	sale, ok := t.st.sales[saleID]
	if !ok {
		return &errors.ErrNotFound{Resource: "sale", ID: saleID.String()}
	}
	sale.Status = domain.SaleStatusPending
	sale.TotalAmount = total
	sale.SaleDate = &saleDate
	return nil
}

func (t *mockCheckoutTx) UpdateSaleStatus(_ context.Context, saleID uuid.UUID, status domain.SaleStatus) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	sale, ok := t.st.sales[saleID]
	if !ok {
		return &errors.ErrNotFound{Resource: "sale", ID: saleID.String()}
	}
	sale.Status = status
	return nil
}

func (t *mockCheckoutTx) InsertPayment(_ context.Context, p *domain.Payment) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	copied := *p
	t.st.payments[p.ID] = &copied
	return nil
}

func (t *mockCheckoutTx) UpdatePaymentStatus(_ context.Context, paymentID uuid.UUID, status domain.PaymentStatus) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	p, ok := t.st.payments[paymentID]
	if !ok {
		return &errors.ErrNotFound{Resource: "payment", ID: paymentID.String()}
	}
	p.Status = status
	return nil
}

func (t *mockCheckoutTx) ReplaceSaleItems(_ context.Context, saleID uuid.UUID, items []*domain.SaleItem) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	for id, item := range t.st.saleItems {
		if item.SaleID == saleID {
			delete(t.st.saleItems, id)
		}
	}
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.SaleID = saleID
		copied := *item
		t.st.saleItems[item.ID] = &copied
	}
	return nil
}

func (t *mockCheckoutTx) DecrementStock(_ context.Context, productID uuid.UUID, quantity int) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	product, ok := t.st.products[productID]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: productID.String()}
	}
	if product.Stock < quantity {
		return fmt.Errorf("insufficient stock for product %s", productID)
	}
	product.Stock -= quantity
	return nil
}

func (t *mockCheckoutTx) InsertQueuedOrder(_ context.Context, entry *domain.QueuedOrder) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if t.st.enqueueErr != nil {
		return t.st.enqueueErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ScheduledFor.IsZero() {
		entry.ScheduledFor = time.Now()
	}
	copied := *entry
	t.st.queue[entry.ID] = &copied
	return nil
}

func (t *mockCheckoutTx) Commit() error {
	t.done = true
	return nil
}

func (t *mockCheckoutTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	restore(t.st, t.snapshot)
	return nil
}

func restore(st *memState, snap txSnapshot) {
	st.products = make(map[uuid.UUID]*domain.Product, len(snap.products))
	for id, p := range snap.products {
		copied := p
		st.products[id] = &copied
	}
	st.sales = make(map[uuid.UUID]*domain.Sale, len(snap.sales))
	for id, s := range snap.sales {
		copied := s
		st.sales[id] = &copied
	}
	st.saleItems = make(map[uuid.UUID]*domain.SaleItem, len(snap.saleItems))
	for id, i := range snap.saleItems {
		copied := i
		st.saleItems[id] = &copied
	}
	st.payments = make(map[uuid.UUID]*domain.Payment, len(snap.payments))
	for id, p := range snap.payments {
		copied := p
		st.payments[id] = &copied
	}
	st.queue = make(map[uuid.UUID]*domain.QueuedOrder, len(snap.queue))
	for id, q := range snap.queue {
		copied := q
		st.queue[id] = &copied
	}
}

// fakeGateway implements PaymentGateway with scripted outcomes
type fakeGateway struct {
	authErr     error
	refundErr   error
	authCalls   int
	refundCalls int
}

func (g *fakeGateway) Authorize(_ context.Context, p *domain.Payment) (*payment.AuthorizationResult, error) {
	g.authCalls++
	if g.authErr != nil {
		return nil, g.authErr
	}
	return &payment.AuthorizationResult{
		TransactionRef: "TX-TEST",
		AuthorizedAt:   time.Now(),
	}, nil
}

func (g *fakeGateway) Refund(_ context.Context, original *domain.Payment, amount float64) (*payment.RefundResult, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &payment.RefundResult{
		RefundRef:   "RF-TEST",
		ProcessedAt: time.Now(),
	}, nil
}

// allowAll is a limiter that never throttles
type allowAll struct{}

func (allowAll) Allow(_ context.Context, _ string) (bool, error) { return true, nil }

// denyAll is a limiter that always throttles
type denyAll struct{}

func (denyAll) Allow(_ context.Context, _ string) (bool, error) { return false, nil }
