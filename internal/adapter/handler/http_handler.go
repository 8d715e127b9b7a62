package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
)

const (
	callerHeader      = "X-Caller-Id"
	idempotencyHeader = "Idempotency-Key"
)

// OrderItemService is the part of service.OrderItemService the transports use.
type OrderItemService interface {
	Create(ctx context.Context, caller domain.Caller, in service.CreateOrderItemInput) (domain.OrderItem, error)
	UpdateQuantity(ctx context.Context, caller domain.Caller, in service.UpdateOrderItemInput) (domain.OrderItem, error)
	Delete(ctx context.Context, caller domain.Caller, orderItemID int64) error
	Get(ctx context.Context, orderItemID int64) (domain.OrderItem, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	List(ctx context.Context) ([]domain.OrderItem, error)
}

type HTTPHandler struct {
	orderItems OrderItemService
	logger     *zap.Logger
}

type CreateOrderItemHTTPRequest struct {
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateOrderItemHTTPRequest struct {
	Quantity int `json:"quantity"`
}

type OrderItemHTTPResponse struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type envelope struct {
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func NewHTTPHandler(orderItems OrderItemService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{orderItems: orderItems, logger: logger}
}

// Routes registers the order item endpoints on a new mux wrapped with the
// request id and access log middleware.
func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /order-items", h.Index)
	mux.HandleFunc("POST /order-items", h.Create)
	mux.HandleFunc("GET /order-items/{id}", h.Show)
	mux.HandleFunc("PUT /order-items/{id}", h.Update)
	mux.HandleFunc("DELETE /order-items/{id}", h.Delete)
	mux.HandleFunc("GET /orders/{id}/order-items", h.ListByOrder)
	return WithRequestID(WithLogging(h.logger, mux))
}

func (h *HTTPHandler) Index(w http.ResponseWriter, r *http.Request) {
	items, err := h.orderItems.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "Get order items successfully.", Data: toHTTPResponses(items)})
}

func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}

	fieldErrors := map[string][]string{}
	if req.Quantity < 1 {
		fieldErrors["quantity"] = []string{"The quantity must be at least 1."}
	}
	if req.ProductID <= 0 {
		fieldErrors["product_id"] = []string{"The product id field is required."}
	}
	if req.OrderID <= 0 {
		fieldErrors["order_id"] = []string{"The order id field is required."}
	}
	if len(fieldErrors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Message: "validation failed", Errors: fieldErrors})
		return
	}

	item, err := h.orderItems.Create(r.Context(), callerFrom(r), service.CreateOrderItemInput{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		RequestID: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		Message: "Order item created successfully.",
		Data:    toHTTPResponse(item),
	})
}

func (h *HTTPHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.orderItems.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Message: "Get order item successfully.",
		Data:    toHTTPResponse(item),
	})
}

func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateOrderItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	if req.Quantity < 1 {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Message: "validation failed",
			Errors:  map[string][]string{"quantity": {"The quantity must be at least 1."}},
		})
		return
	}

	item, err := h.orderItems.UpdateQuantity(r.Context(), callerFrom(r), service.UpdateOrderItemInput{
		OrderItemID: id,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Message: "Order item updated successfully.",
		Data:    toHTTPResponse(item),
	})
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.orderItems.Delete(r.Context(), callerFrom(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	items, err := h.orderItems.ListByOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Message: "Get order items successfully.", Data: toHTTPResponses(items)})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, envelope{Message: message})
}

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "Insufficient stock"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	default:
		return http.StatusInternalServerError, "An error occurred while processing your request."
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found"})
		return 0, false
	}
	return id, true
}

func callerFrom(r *http.Request) domain.Caller {
	return domain.Caller{ID: r.Header.Get(callerHeader)}
}

func toHTTPResponse(item domain.OrderItem) OrderItemHTTPResponse {
	return OrderItemHTTPResponse{
		ID:        item.ID,
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: formatMoney(item.UnitPrice),
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func toHTTPResponses(items []domain.OrderItem) []OrderItemHTTPResponse {
	data := make([]OrderItemHTTPResponse, 0, len(items))
	for _, item := range items {
		data = append(data, toHTTPResponse(item))
	}
	return data
}

// formatMoney renders at least two decimal places and never drops a stored
// sub-cent digit.
func formatMoney(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	return d.StringFixed(places)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
