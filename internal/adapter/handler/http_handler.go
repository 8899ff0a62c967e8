package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/order-stock/internal/core/service"
)

const (
	requestIDHeader = "X-Request-ID"
	bulkFileField   = "file"

	DefaultMaxUploadBytes = 10 << 20
)

type HTTPHandler struct {
	orderService   *service.OrderService
	log            zerolog.Logger
	maxUploadBytes int64
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewHTTPHandler(orderService *service.OrderService, log zerolog.Logger, maxUploadBytes int64) *HTTPHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &HTTPHandler{orderService: orderService, log: log, maxUploadBytes: maxUploadBytes}
}

// Register mounts the order routes on mux, wrapped with request id and
// trace propagation.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.Handle("/orders/single", h.withRequestContext(http.HandlerFunc(h.CreateSingleOrder)))
	mux.Handle("/orders/bulk", h.withRequestContext(http.HandlerFunc(h.CreateBulkOrder)))
	mux.HandleFunc("/health", h.HealthCheck)
}

func (h *HTTPHandler) CreateSingleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, APIResponse{Message: "method not allowed"})
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: err.Error()})
		return
	}

	result, err := h.orderService.CreateSingleOrder(r.Context(), req.toCommand())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Message: "order placed successfully",
		Data:    newSingleOrderResponse(result),
	})
}

func (h *HTTPHandler) CreateBulkOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, APIResponse{Message: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, _, err := r.FormFile(bulkFileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, APIResponse{Message: "file too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "multipart field \"file\" is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "could not read uploaded file"})
		return
	}

	result, err := h.orderService.CreateBulkOrder(r.Context(), data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "bulk order processed",
		Data:    newBulkOrderResponse(result),
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := errorClass(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("order request failed")
	}
	writeJSON(w, status, APIResponse{Message: publicMessage(err)})
}

// withRequestContext tags the request with an id, continues any incoming
// trace and puts a request scoped logger into the context.
func (h *HTTPHandler) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		logger := h.log.With().Str("request_id", requestID).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
