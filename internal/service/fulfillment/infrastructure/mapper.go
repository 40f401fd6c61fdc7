// internal/service/fulfillment/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"

	"fulfillment/internal/service/fulfillment/domain"
)

func toDomainOrder(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:           m.ID,
		OrderRef:     m.OrderRef,
		CustomerID:   m.CustomerID,
		CustomerName: m.CustomerName,
		ProductSKU:   m.ProductSKU,
		ProductName:  m.ProductName,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		Currency:     m.Currency,
		TotalAmount:  m.TotalAmount,
		Status:       domain.OrderStatus(m.Status),
		OrderDate:    m.OrderDate,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:           o.ID,
		OrderRef:     o.OrderRef,
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		ProductSKU:   o.ProductSKU,
		ProductName:  o.ProductName,
		Quantity:     o.Quantity,
		UnitPrice:    o.UnitPrice,
		Currency:     o.Currency,
		TotalAmount:  o.TotalAmount,
		Status:       string(o.Status),
		OrderDate:    o.OrderDate,
	}
}

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:            m.ID,
		SKU:           m.SKU,
		Name:          m.Name,
		Price:         m.Price,
		StockQuantity: m.StockQuantity,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toDomainReservation(m *StockReservationModel) *domain.StockReservation {
	return &domain.StockReservation{
		ID:         m.ID,
		OrderID:    m.OrderID,
		ProductSKU: m.ProductSKU,
		Quantity:   m.Quantity,
		Status:     domain.ReservationStatus(m.Status),
		ExpiresAt:  m.ExpiresAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toDomainPayment(m *PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:            m.ID,
		OrderID:       m.OrderID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Status:        domain.PaymentStatus(m.Status),
		TransactionID: m.TransactionID,
		ErrorMessage:  m.ErrorMessage,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toDomainRefund(m *RefundModel) *domain.Refund {
	var meta map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return &domain.Refund{
		ID:             m.ID,
		RefundRef:      m.RefundRef,
		OrderID:        m.OrderID,
		OrderReference: m.OrderReference,
		CustomerID:     m.CustomerID,
		Type:           domain.RefundType(m.RefundType),
		Amount:         m.RefundAmount,
		OriginalAmount: m.OriginalAmount,
		Reason:         m.Reason,
		Description:    m.Description,
		Status:         domain.RefundStatus(m.Status),
		TransactionID:  m.TransactionID,
		ErrorMessage:   m.ErrorMessage,
		Metadata:       meta,
		RequestedAt:    m.RequestedAt,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toRefundModel(r *domain.Refund) *RefundModel {
	meta := ""
	if len(r.Metadata) > 0 {
		if raw, err := json.Marshal(r.Metadata); err == nil {
			meta = string(raw)
		}
	}
	return &RefundModel{
		ID:             r.ID,
		RefundRef:      r.RefundRef,
		OrderID:        r.OrderID,
		OrderReference: r.OrderReference,
		CustomerID:     r.CustomerID,
		RefundType:     string(r.Type),
		RefundAmount:   r.Amount,
		OriginalAmount: r.OriginalAmount,
		Reason:         r.Reason,
		Description:    r.Description,
		Status:         string(r.Status),
		TransactionID:  r.TransactionID,
		ErrorMessage:   r.ErrorMessage,
		Metadata:       meta,
		RequestedAt:    r.RequestedAt,
		ProcessedAt:    r.ProcessedAt,
	}
}
