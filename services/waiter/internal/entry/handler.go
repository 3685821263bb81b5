package entry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/appetiteclub/comanda/pkg/access"
	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/enums/role"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

type HandlerDeps struct {
	Catalog   *catalog.Catalog
	Terminals *Terminals
	Tables    int
	Access    access.Checker
}

type Handler struct {
	catalog   *catalog.Catalog
	terminals *Terminals
	tables    int
	access    access.Checker
	logger    aqm.Logger
	config    *aqm.Config
	tlm       *telemetry.HTTP
}

func NewHandler(deps HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	tables := deps.Tables
	if tables <= 0 {
		tables = catalog.DefaultTables
	}
	return &Handler{
		catalog:   deps.Catalog,
		terminals: deps.Terminals,
		tables:    tables,
		access:    deps.Access,
		logger:    logger,
		config:    config,
		tlm:       telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.access != nil {
			r.Use(access.Middleware(h.access, role.Roles.Orders))
		}

		r.Get("/catalog", h.GetCatalog)

		r.Route("/terminals", func(r chi.Router) {
			r.Post("/", h.OpenTerminal)

			r.Route("/{terminal}", func(r chi.Router) {
				r.Delete("/", h.CloseTerminal)
				r.Get("/draft", h.GetDraft)
				r.Put("/table", h.SelectTable)
				r.Put("/notes", h.SetNotes)
				r.Post("/lines", h.AddItem)
				r.Delete("/lines/{index}", h.RemoveLine)
				r.Put("/lines/{index}/note", h.SetLineNote)
				r.Post("/submit", h.Submit)
			})
		})
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

type CatalogResponse struct {
	Tables     int                `json:"tables"`
	Categories []catalog.Category `json:"categories"`
}

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCatalog")
	defer finish()

	aqm.Respond(w, http.StatusOK, CatalogResponse{
		Tables:     h.tables,
		Categories: h.catalog.Categories(),
	}, nil)
}

func (h *Handler) OpenTerminal(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.OpenTerminal")
	defer finish()

	id := h.terminals.Open()
	aqm.Respond(w, http.StatusCreated, map[string]interface{}{
		"terminal_id": id,
	}, nil)
}

func (h *Handler) CloseTerminal(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseTerminal")
	defer finish()

	if !h.terminals.Close(chi.URLParam(r, "terminal")) {
		aqm.RespondError(w, http.StatusNotFound, "Terminal not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetDraft")
	defer finish()

	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	aqm.Respond(w, http.StatusOK, b.Draft(), nil)
}

type SelectTableRequest struct {
	Table int `json:"table"`
}

func (h *Handler) SelectTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SelectTable")
	defer finish()
	log := h.log(r)

	b, ok := h.builder(w, r)
	if !ok {
		return
	}

	var req SelectTableRequest
	if !decode(w, r, log, &req) {
		return
	}

	if err := b.SelectTable(req.Table); err != nil {
		h.respondBuilderError(w, err)
		return
	}
	aqm.Respond(w, http.StatusOK, b.Draft(), nil)
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) SetNotes(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetNotes")
	defer finish()
	log := h.log(r)

	b, ok := h.builder(w, r)
	if !ok {
		return
	}

	var req NotesRequest
	if !decode(w, r, log, &req) {
		return
	}

	b.SetNotes(req.Notes)
	aqm.Respond(w, http.StatusOK, b.Draft(), nil)
}

type AddItemRequest struct {
	ItemID int `json:"item_id"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddItem")
	defer finish()
	log := h.log(r)

	b, ok := h.builder(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if !decode(w, r, log, &req) {
		return
	}

	item, err := h.catalog.Find(req.ItemID)
	if err != nil {
		aqm.RespondError(w, http.StatusNotFound, "Item not found")
		return
	}

	if err := b.AddItem(item); err != nil {
		h.respondBuilderError(w, err)
		return
	}
	aqm.Respond(w, http.StatusOK, b.Draft(), nil)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveLine")
	defer finish()

	b, ok := h.builder(w, r)
	if !ok {
		return
	}

	index, ok := lineIndex(w, r)
	if !ok {
		return
	}

	if err := b.RemoveLine(index); err != nil {
		h.respondBuilderError(w, err)
		return
	}
	aqm.Respond(w, http.StatusOK, b.Draft(), nil)
}

type LineNoteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) SetLineNote(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetLineNote")
	defer finish()
	log := h.log(r)

	b, ok := h.builder(w, r)
	if !ok {
		return
	}

	index, ok := lineIndex(w, r)
	if !ok {
		return
	}

	var req LineNoteRequest
	if !decode(w, r, log, &req) {
		return
	}

	if err := b.SetLineNote(index, req.Note); err != nil {
		h.respondBuilderError(w, err)
		return
	}
	aqm.Respond(w, http.StatusOK, b.Draft(), nil)
}

type SubmitResponse struct {
	OrderID int64  `json:"order_id"`
	Table   int    `json:"table"`
	Total   string `json:"total"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Submit")
	defer finish()
	log := h.log(r)

	b, ok := h.builder(w, r)
	if !ok {
		return
	}

	total := b.Total()
	id, err := b.Submit(r.Context())
	if err != nil {
		if errors.Is(err, order.ErrNoTable) || errors.Is(err, order.ErrEmptyOrder) {
			h.respondBuilderError(w, err)
			return
		}
		log.Errorf("cannot submit order: %v", err)
		aqm.RespondError(w, http.StatusServiceUnavailable, "Could not send the order, try again")
		return
	}

	aqm.Respond(w, http.StatusCreated, SubmitResponse{
		OrderID: id,
		Table:   b.Table(),
		Total:   total.StringFixed(2),
	}, nil)
}

func (h *Handler) builder(w http.ResponseWriter, r *http.Request) (*order.Builder, bool) {
	b, err := h.terminals.Builder(chi.URLParam(r, "terminal"))
	if err != nil {
		aqm.RespondError(w, http.StatusNotFound, "Terminal not found")
		return nil, false
	}
	return b, true
}

func (h *Handler) respondBuilderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrNoTable):
		aqm.RespondError(w, http.StatusConflict, "Select a table first")
	case errors.Is(err, order.ErrEmptyOrder):
		aqm.RespondError(w, http.StatusConflict, "The order is empty")
	case errors.Is(err, order.ErrInvalidTable):
		aqm.RespondError(w, http.StatusBadRequest, "Invalid table number")
	case errors.Is(err, order.ErrLineIndex):
		aqm.RespondError(w, http.StatusNotFound, "Line not found")
	default:
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update order")
	}
}

func decode(w http.ResponseWriter, r *http.Request, log aqm.Logger, out interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Debug("failed to decode request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid line index")
		return 0, false
	}
	return index, true
}
