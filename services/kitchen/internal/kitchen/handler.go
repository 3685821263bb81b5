package kitchen

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/appetiteclub/comanda/pkg/access"
	"github.com/appetiteclub/comanda/pkg/enums/role"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

type HandlerDeps struct {
	Display     *Display
	Completer   *Completer
	Broadcaster *Broadcaster
	Terminated  TerminatedReader
	Access      access.Checker
}

type Handler struct {
	display     *Display
	completer   *Completer
	broadcaster *Broadcaster
	terminated  TerminatedReader
	access      access.Checker
	logger      aqm.Logger
	config      *aqm.Config
	tlm         *telemetry.HTTP
	now         func() time.Time
}

func NewHandler(deps HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	broadcaster := deps.Broadcaster
	if broadcaster == nil {
		broadcaster = NewBroadcaster(logger)
	}
	return &Handler{
		display:     deps.Display,
		completer:   deps.Completer,
		broadcaster: broadcaster,
		terminated:  deps.Terminated,
		access:      deps.Access,
		logger:      logger,
		config:      config,
		tlm:         telemetry.NewHTTP(),
		now:         time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.access != nil {
			r.Use(access.Middleware(h.access, role.Roles.Kitchen))
		}

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/sync", h.SyncOrders)
			r.Get("/stream", h.StreamOrders)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/complete", h.CompleteOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		r.Get("/terminated", h.ListTerminated)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

// OrderView is a pending order as shown on the kitchen screen.
type OrderView struct {
	order.Pending
	Total string `json:"total"`
	State string `json:"state"`
}

func (h *Handler) view(p order.Pending) OrderView {
	return OrderView{
		Pending: p,
		Total:   p.Total().StringFixed(2),
		State:   h.completer.Status(p.ID).Code(),
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	orders := h.display.Orders()
	views := make([]OrderView, 0, len(orders))
	for _, p := range orders {
		views = append(views, h.view(p))
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"orders": views,
		"count":  len(views),
	}, nil)
}

// SyncOrders runs a reconciliation right away and returns what it surfaced.
func (h *Handler) SyncOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SyncOrders")
	defer finish()
	log := h.log(r)

	fresh, err := h.display.Reconcile(r.Context())
	if err != nil {
		log.Errorf("cannot reconcile pending orders: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not read pending orders")
		return
	}

	views := make([]OrderView, 0, len(fresh))
	for _, p := range fresh {
		views = append(views, h.view(p))
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"new_orders": views,
	}, nil)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	p, found := h.display.Get(id)
	if !found {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	aqm.Respond(w, http.StatusOK, h.view(p), nil)
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CompleteOrder")
	defer finish()
	log := h.log(r)

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if err := h.completer.Complete(r.Context(), id); err != nil {
		log.Errorf("cannot complete order %d: %v", id, err)
		h.respondActionError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": "terminated",
	}, nil)
}

type cancelRequest struct {
	Confirmed bool `json:"confirmed"`
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CancelOrder")
	defer finish()
	log := h.log(r)

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			aqm.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if confirm := r.URL.Query().Get("confirm"); confirm != "" {
		req.Confirmed, _ = strconv.ParseBool(confirm)
	}

	if err := h.completer.Cancel(r.Context(), id, req.Confirmed); err != nil {
		log.Errorf("cannot cancel order %d: %v", id, err)
		h.respondActionError(w, err)
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": "cancelled",
	}, nil)
}

func (h *Handler) ListTerminated(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTerminated")
	defer finish()
	log := h.log(r)

	if h.terminated == nil {
		aqm.RespondError(w, http.StatusNotImplemented, "Terminated records are not available")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().Format(order.DateLayout)
	}
	if _, err := time.Parse(order.DateLayout, date); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	records, err := h.terminated.ListByDate(r.Context(), date)
	if err != nil {
		log.Errorf("cannot list terminated records: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not list terminated records")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"date":    date,
		"records": records,
	}, nil)
}

func (h *Handler) respondActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotPending):
		aqm.RespondError(w, http.StatusNotFound, "Order is no longer pending")
	case errors.Is(err, ErrInFlight):
		aqm.RespondError(w, http.StatusConflict, "Order is already being completed")
	case errors.Is(err, ErrConfirmationRequired):
		aqm.RespondError(w, http.StatusPreconditionRequired, "Cancellation must be confirmed")
	case errors.Is(err, ErrCompletionFailed):
		aqm.RespondError(w, http.StatusBadGateway, "Could not record the order, try again")
	default:
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update order")
	}
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return 0, false
	}
	return id, true
}
