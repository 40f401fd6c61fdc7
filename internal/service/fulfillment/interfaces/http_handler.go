// internal/service/fulfillment/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/application"
	"fulfillment/internal/service/fulfillment/domain"
)

// Handler exposes the fulfillment API over HTTP. Transport concerns only;
// every decision lives in the application services.
type Handler struct {
	orders  *application.OrderService
	refunds *application.RefundService
}

func NewHandler(orders *application.OrderService, refunds *application.RefundService) *Handler {
	return &Handler{orders: orders, refunds: refunds}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{ref}", h.getOrder)
	mux.HandleFunc("GET /orders/{ref}/refunds", h.orderRefunds)
	mux.HandleFunc("POST /refunds", h.createRefund)
	mux.HandleFunc("GET /refunds", h.listRefunds)
	mux.HandleFunc("GET /refunds/stats", h.refundStats)
	mux.HandleFunc("GET /refunds/{ref}", h.getRefund)
	mux.HandleFunc("POST /refunds/{ref}/cancel", h.cancelRefund)
	mux.HandleFunc("POST /refunds/{ref}/retry", h.retryRefund)
}

type createOrderBody struct {
	OrderRef     string          `json:"order_ref"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	ProductSKU   string          `json:"product_sku"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Currency     string          `json:"currency"`
	OrderDate    time.Time       `json:"order_date"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractTrace(r)

	var body createOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	order, err := h.orders.CreateOrder(ctx, &application.CreateOrderRequest{
		OrderRef:     body.OrderRef,
		CustomerID:   body.CustomerID,
		CustomerName: body.CustomerName,
		ProductSKU:   body.ProductSKU,
		ProductName:  body.ProductName,
		Quantity:     body.Quantity,
		UnitPrice:    body.UnitPrice,
		Currency:     body.Currency,
		OrderDate:    body.OrderDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, orderView(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(extractTrace(r), r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(order))
}

type createRefundBody struct {
	OrderRef    string            `json:"order_ref"`
	Amount      decimal.Decimal   `json:"amount"`
	Type        string            `json:"type"`
	Reason      string            `json:"reason"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

func (h *Handler) createRefund(w http.ResponseWriter, r *http.Request) {
	ctx := extractTrace(r)

	var body createRefundBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	refundType := domain.RefundType(body.Type)
	if refundType != domain.RefundFull && refundType != domain.RefundPartial {
		http.Error(w, "type must be full or partial", http.StatusBadRequest)
		return
	}

	resp, err := h.refunds.RequestRefund(ctx, &application.RefundRequest{
		OrderRef:    body.OrderRef,
		Amount:      body.Amount,
		Type:        refundType,
		Reason:      body.Reason,
		Description: body.Description,
		Metadata:    body.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"refund_ref": resp.RefundRef,
		"status":     resp.Status,
	})
}

func (h *Handler) getRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.refunds.Get(extractTrace(r), r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refundView(refund))
}

func (h *Handler) cancelRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.refunds.Cancel(extractTrace(r), r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refundView(refund))
}

func (h *Handler) retryRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.refunds.Retry(extractTrace(r), r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refundView(refund))
}

// listRefunds serves the admin read view: ?status= filters by refund status,
// ?limit= caps the page (default 50).
func (h *Handler) listRefunds(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	status := domain.RefundStatus(r.URL.Query().Get("status"))
	refunds, err := h.refunds.List(extractTrace(r), status, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(refunds))
	for _, refund := range refunds {
		views = append(views, refundView(refund))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(views),
		"refunds": views,
	})
}

func (h *Handler) refundStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.refunds.Stats(extractTrace(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_requests": stats.TotalRequests,
		"by_status":      byStatus,
		"total_refunded": stats.TotalRefunded,
	})
}

func (h *Handler) orderRefunds(w http.ResponseWriter, r *http.Request) {
	summary, err := h.refunds.ByOrder(extractTrace(r), r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]map[string]any, 0, len(summary.Refunds))
	for _, refund := range summary.Refunds {
		views = append(views, refundView(refund))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_ref":      summary.OrderRef,
		"total_amount":   summary.TotalAmount,
		"total_refunded": summary.TotalRefunded,
		"refundable":     summary.Refundable,
		"fully_refunded": summary.FullyRefunded,
		"refunds":        views,
	})
}

func orderView(o *domain.Order) map[string]any {
	return map[string]any{
		"order_ref":     o.OrderRef,
		"customer_id":   o.CustomerID,
		"customer_name": o.CustomerName,
		"product_sku":   o.ProductSKU,
		"product_name":  o.ProductName,
		"quantity":      o.Quantity,
		"unit_price":    o.UnitPrice,
		"total_amount":  o.TotalAmount,
		"currency":      o.Currency,
		"status":        o.Status,
		"order_date":    o.OrderDate,
	}
}

func refundView(rf *domain.Refund) map[string]any {
	return map[string]any{
		"refund_ref":      rf.RefundRef,
		"order_ref":       rf.OrderReference,
		"type":            rf.Type,
		"amount":          rf.Amount,
		"original_amount": rf.OriginalAmount,
		"reason":          rf.Reason,
		"status":          rf.Status,
		"transaction_id":  rf.TransactionID,
		"error_message":   rf.ErrorMessage,
		"requested_at":    rf.RequestedAt,
		"processed_at":    rf.ProcessedAt,
	}
}

func extractTrace(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRefundStatus):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotRefundable),
		errors.Is(err, domain.ErrInvalidRefundAmount),
		errors.Is(err, domain.ErrAmountExceedsRefundable),
		errors.Is(err, domain.ErrFullRefundMismatch),
		errors.Is(err, domain.ErrInvalidOrder):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	http.Error(w, err.Error(), status)
}
