package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/pricelist/internal/api/middleware"
	"github.com/example/pricelist/internal/api/problem"
	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/draft"
	"github.com/example/pricelist/internal/engine"
	"github.com/example/pricelist/internal/export"
	"github.com/example/pricelist/internal/query"
)

type Handlers struct {
	engine            *engine.Engine
	lowStockThreshold int
	now               func() time.Time
}

func NewHandlers(eng *engine.Engine, lowStockThreshold int) *Handlers {
	if lowStockThreshold <= 0 {
		lowStockThreshold = catalog.DefaultLowStockThreshold
	}
	return &Handlers{
		engine:            eng,
		lowStockThreshold: lowStockThreshold,
		now:               time.Now,
	}
}

// Product Handlers

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	params, err := viewParams(r)
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.SearchAndSort(params))
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Product(chi.URLParam(r, "id"))
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Categories())
}

func (h *Handlers) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.lowStockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			problem.Error(w, domain.NewValidationError("threshold", "must be a non-negative integer", raw))
			return
		}
		threshold = n
	}
	respondJSON(w, http.StatusOK, h.engine.LowStock(threshold))
}

type analyticsResponse struct {
	TotalProducts  int                     `json:"totalProducts"`
	CategoryCounts []catalog.CategoryCount `json:"categoryCounts"`
	LowStock       []catalog.Product       `json:"lowStock"`
	Threshold      int                     `json:"lowStockThreshold"`
}

func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	counts := h.engine.CategoryCounts()
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	respondJSON(w, http.StatusOK, analyticsResponse{
		TotalProducts:  total,
		CategoryCounts: counts,
		LowStock:       h.engine.LowStock(h.lowStockThreshold),
		Threshold:      h.lowStockThreshold,
	})
}

func (h *Handlers) ExportPriceList(w http.ResponseWriter, r *http.Request) {
	params, err := viewParams(r)
	if err != nil {
		problem.Error(w, err)
		return
	}
	products := h.engine.SearchAndSort(params)
	setCSVHeaders(w, export.PriceListFilename(h.now()))
	if err := export.WritePriceListCSV(w, products); err != nil {
		logf("export price list: %v", err)
	}
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		problem.Error(w, domain.NewValidationError("body", "malformed product", err.Error()))
		return
	}
	p.ID = chi.URLParam(r, "id")

	saved, err := h.engine.EditProduct(r.Context(), middleware.Capability(r.Context()), engine.EditProduct{Product: p})
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

type inlineEditRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// PatchProduct applies a single price or stock edit. The value may be sent
// as a JSON number or string.
func (h *Handlers) PatchProduct(w http.ResponseWriter, r *http.Request) {
	var req inlineEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Error(w, domain.NewValidationError("body", "malformed inline edit", err.Error()))
		return
	}

	cmd := engine.InlineEdit{
		ProductID: chi.URLParam(r, "id"),
		Field:     req.Field,
		Value:     rawScalar(req.Value),
	}
	p, err := h.engine.InlineEdit(r.Context(), middleware.Capability(r.Context()), cmd)
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteProduct(r.Context(), middleware.Capability(r.Context()), chi.URLParam(r, "id")); err != nil {
		problem.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AddImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Error(w, domain.NewValidationError("body", "malformed image request", err.Error()))
		return
	}

	cmd := engine.AddImage{ProductID: chi.URLParam(r, "id"), URL: req.URL}
	p, err := h.engine.AddImage(r.Context(), middleware.Capability(r.Context()), cmd)
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) RemoveImage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		problem.Error(w, domain.NewValidationError("index", "must be an integer", raw))
		return
	}

	cmd := engine.RemoveImage{ProductID: chi.URLParam(r, "id"), Index: index}
	p, err := h.engine.RemoveImage(r.Context(), middleware.Capability(r.Context()), cmd)
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Draft Handlers

type draftResponse struct {
	Entries []draft.Entry `json:"entries"`
	draft.Derivation
}

func (h *Handlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, draftResponse{
		Entries:    h.engine.DraftEntries(),
		Derivation: h.engine.Draft(),
	})
}

func (h *Handlers) SetDraftQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Error(w, domain.NewValidationError("quantity", "must be an integer", err.Error()))
		return
	}

	d, err := h.engine.SetDraftQuantity(r.Context(), engine.SetDraftQuantity{
		Model:    chi.URLParam(r, "model"),
		Quantity: req.Quantity,
	})
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, draftResponse{Entries: h.engine.DraftEntries(), Derivation: d})
}

func (h *Handlers) ClearDraft(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearDraft(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SummarizeDraft(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.SummarizeDraft(r.Context())
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd engine.PlaceOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		problem.Error(w, domain.NewValidationError("body", "malformed order", err.Error()))
		return
	}

	o, err := h.engine.PlaceOrder(r.Context(), cmd)
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.Orders(middleware.Capability(r.Context()))
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.engine.Order(middleware.Capability(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) ExportOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.engine.Order(middleware.Capability(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		problem.Error(w, err)
		return
	}
	setCSVHeaders(w, export.OrderFilename(o))
	if err := export.WriteOrderCSV(w, o); err != nil {
		logf("export order %s: %v", o.ID, err)
	}
}

func (h *Handlers) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	o, err := h.engine.MarkProcessed(r.Context(), middleware.Capability(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Error(w, domain.NewValidationError("status", "malformed payment status", err.Error()))
		return
	}

	cmd := engine.SetPayment{OrderID: chi.URLParam(r, "id"), Status: req.Status}
	o, err := h.engine.SetPaymentStatus(r.Context(), middleware.Capability(r.Context()), cmd)
	if err != nil {
		problem.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteOrder(r.Context(), middleware.Capability(r.Context()), chi.URLParam(r, "id")); err != nil {
		problem.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	problem.JSON(w, status, data)
}

func setCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
}

func viewParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	key, err := query.ParseSortKey(q.Get("sort"))
	if err != nil {
		return query.Params{}, err
	}
	dir, err := query.ParseDirection(q.Get("dir"))
	if err != nil {
		return query.Params{}, err
	}
	return query.Params{
		Category: q.Get("category"),
		Term:     q.Get("q"),
		Sort:     query.SortConfig{Key: key, Direction: dir},
	}, nil
}

// rawScalar turns a JSON string or number into its text form.
func rawScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
