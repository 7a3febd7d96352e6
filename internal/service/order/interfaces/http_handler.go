// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	accountdomain "takeout/internal/service/account/domain"
	cartapp "takeout/internal/service/cart/application"
	cartdomain "takeout/internal/service/cart/domain"
	"takeout/internal/service/catalog"
	"takeout/internal/service/order/application"
	"takeout/internal/service/order/domain"

	accountapp "takeout/internal/service/account/application"
)

// Handler 暴露订单、购物车、余额的 HTTP 接口。
// 身份通过 X-User-ID 显式传入，由网关在鉴权后注入；这里不做会话解析。
type Handler struct {
	orders *application.OrderService
	cart   *cartapp.CartService
	ledger *accountapp.LedgerService
}

func NewHandler(orders *application.OrderService, cart *cartapp.CartService, ledger *accountapp.LedgerService) *Handler {
	return &Handler{orders: orders, cart: cart, ledger: ledger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	// 用户侧
	mux.HandleFunc("POST /user/order/submit", h.withUser(h.submitOrder))
	mux.HandleFunc("PUT /user/order/payment", h.withUser(h.payOrder))
	mux.HandleFunc("PUT /user/order/cancel/{id}", h.withUser(h.cancelOrder))
	mux.HandleFunc("POST /user/order/repetition/{id}", h.withUser(h.repetition))
	mux.HandleFunc("GET /user/order/history", h.withUser(h.listOrders))
	mux.HandleFunc("GET /user/order/{id}", h.withUser(h.getOrder))

	mux.HandleFunc("POST /user/cart/add", h.withUser(h.cartAdd))
	mux.HandleFunc("POST /user/cart/sub", h.withUser(h.cartSub))
	mux.HandleFunc("GET /user/cart/list", h.withUser(h.cartList))
	mux.HandleFunc("DELETE /user/cart/clean", h.withUser(h.cartClean))

	mux.HandleFunc("POST /user/account/deduct", h.withUser(h.deduct))
	mux.HandleFunc("GET /user/account", h.withUser(h.getAccount))

	// 管理端
	mux.HandleFunc("GET /admin/order/statistics", h.statistics)
	mux.HandleFunc("GET /admin/order/{id}", h.adminGetOrder)
	mux.HandleFunc("PUT /admin/order/confirm", h.confirmOrder)
	mux.HandleFunc("PUT /admin/order/rejection", h.rejectOrder)
	mux.HandleFunc("PUT /admin/order/cancel", h.adminCancelOrder)
	mux.HandleFunc("PUT /admin/order/delivery/{id}", h.deliverOrder)
	mux.HandleFunc("PUT /admin/order/complete/{id}", h.completeOrder)
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (h *Handler) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorBody("missing or invalid X-User-ID"))
			return
		}
		next(w, r, userID)
	}
}

// ---- user: orders ----

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	var cmd application.SubmitOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	cmd.UserID = userID

	result, err := h.orders.Submit(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type paymentRequest struct {
	OrderNumber string `json:"orderNumber"`
	UseBalance  bool   `json:"useBalance"`
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("orderNumber is required"))
		return
	}

	var err error
	if req.UseBalance {
		err = h.orders.PayWithBalance(r.Context(), userID, req.OrderNumber)
	} else {
		// 外部支付渠道的成功回调走同一入口
		err = h.orders.PaySuccess(r.Context(), req.OrderNumber)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.orders.UserCancel(r.Context(), userID, orderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) repetition(w http.ResponseWriter, r *http.Request, userID int64) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.orders.Repetition(r.Context(), userID, orderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, userID int64) {
	status, _ := strconv.Atoi(r.URL.Query().Get("status"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	result, err := h.orders.ListOrders(r.Context(), userID, domain.Status(status), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ---- user: cart ----

type cartRequest struct {
	ItemID string `json:"itemId"`
}

func (h *Handler) cartAdd(w http.ResponseWriter, r *http.Request, userID int64) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("itemId is required"))
		return
	}
	if err := h.cart.Add(r.Context(), userID, req.ItemID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) cartSub(w http.ResponseWriter, r *http.Request, userID int64) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("itemId is required"))
		return
	}
	if err := h.cart.Sub(r.Context(), userID, req.ItemID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) cartList(w http.ResponseWriter, r *http.Request, userID int64) {
	lines, err := h.cart.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) cartClean(w http.ResponseWriter, r *http.Request, userID int64) {
	if err := h.cart.Clean(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

// ---- user: account ----

type deductRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) deduct(w http.ResponseWriter, r *http.Request, userID int64) {
	var req deductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("amount must be positive"))
		return
	}
	if err := h.ledger.Deduct(r.Context(), strconv.FormatInt(userID, 10), req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request, userID int64) {
	account, err := h.ledger.GetAccount(r.Context(), strconv.FormatInt(userID, 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ---- admin ----

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), 0, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type adminOrderRequest struct {
	OrderID int64  `json:"orderId"`
	Reason  string `json:"reason"`
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(req adminOrderRequest) error {
		return h.orders.Confirm(r.Context(), req.OrderID)
	})
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(req adminOrderRequest) error {
		return h.orders.Reject(r.Context(), req.OrderID, req.Reason)
	})
}

func (h *Handler) adminCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(req adminOrderRequest) error {
		return h.orders.AdminCancel(r.Context(), req.OrderID, req.Reason)
	})
}

func (h *Handler) adminTransition(w http.ResponseWriter, r *http.Request, apply func(adminOrderRequest) error) {
	var req adminOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("orderId is required"))
		return
	}
	if err := apply(req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.orders.Deliver(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.orders.Complete(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackBody())
}

// ---- helpers ----

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid order id"))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func ackBody() map[string]string {
	return map[string]string{"status": "ok"}
}

// writeError 把领域错误翻译成 HTTP 语义：
// 业务规则错误调用方可修正（400/404/409）；
// 节流信号独立成 429，调用方应退避；
// 并发耗尽与未知错误归为"稍后重试"。
func writeError(w http.ResponseWriter, err error) {
	switch {
	case pkgerrors.Is(err, domain.ErrOrderNotFound),
		pkgerrors.Is(err, accountdomain.ErrAccountNotFound),
		pkgerrors.Is(err, cartdomain.ErrCartLineNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case pkgerrors.Is(err, domain.ErrOrderStateConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case pkgerrors.Is(err, domain.ErrAddressMissing),
		pkgerrors.Is(err, domain.ErrCartEmpty),
		pkgerrors.Is(err, accountdomain.ErrAccountFrozen),
		pkgerrors.Is(err, accountdomain.ErrInsufficientBalance),
		pkgerrors.Is(err, catalog.ErrItemNotFound):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case pkgerrors.Is(err, catalog.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody(err.Error()))
	case pkgerrors.Is(err, accountdomain.ErrConcurrencyExhausted):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("please try again"))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody("please try again"))
	}
}
