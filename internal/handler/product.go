package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nifastore/nifa/internal/format"
	"github.com/nifastore/nifa/internal/model"
	"github.com/nifastore/nifa/internal/store"
	"github.com/nifastore/nifa/internal/websocket"
)

// ProductNotifier announces new products to subscribed customers.
type ProductNotifier interface {
	NotifyNewProduct(ctx context.Context, p model.Product) int
}

type ProductHandler struct {
	productStore *store.ProductStore
	hub          *websocket.Hub
	notifier     ProductNotifier
	logger       *slog.Logger
}

// NewProductHandler builds the catalog handler. notifier may be nil.
func NewProductHandler(ps *store.ProductStore, hub *websocket.Hub, notifier ProductNotifier, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{productStore: ps, hub: hub, notifier: notifier, logger: logger}
}

func (h *ProductHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type productDisplay struct {
	PriceLojista string `json:"price_lojista"`
	PriceClients string `json:"price_clients"`
	BoughtFor    string `json:"bought_for"`
}

// productView is a Product plus its prices rendered in reais.
type productView struct {
	model.Product
	Display productDisplay `json:"display"`
}

func viewOf(p model.Product) productView {
	return productView{
		Product: p,
		Display: productDisplay{
			PriceLojista: format.Currency(p.PriceLojista),
			PriceClients: format.Currency(p.PriceClients),
			BoughtFor:    format.Currency(p.BoughtFor),
		},
	}
}

type productRequest struct {
	Category     string  `json:"category"`
	ProductName  string  `json:"product_name"`
	PriceLojista float64 `json:"price_lojista"`
	PriceClients float64 `json:"price_clients"`
	BoughtFor    float64 `json:"bought_for"`
}

func (req *productRequest) validate() string {
	req.Category = strings.TrimSpace(req.Category)
	req.ProductName = strings.TrimSpace(req.ProductName)
	if req.ProductName == "" {
		return "product_name is required"
	}
	if req.Category == "" {
		return "category is required"
	}
	if req.PriceLojista < 0 || req.PriceClients < 0 || req.BoughtFor < 0 {
		return "prices must not be negative"
	}
	return ""
}

func (req productRequest) product() model.Product {
	return model.Product{
		Category:     req.Category,
		ProductName:  req.ProductName,
		PriceLojista: req.PriceLojista,
		PriceClients: req.PriceClients,
		BoughtFor:    req.BoughtFor,
	}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productStore.List(strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		h.logger.Error("list products", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, viewOf(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := h.productStore.GetByID(id)
	if err != nil {
		h.logger.Error("get product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(*p))
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productStore.ListCategories()
	if err != nil {
		h.logger.Error("list categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.productStore.Create(req.product())
	if err != nil {
		h.logger.Error("create product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.broadcast(websocket.ProductEvent(websocket.ActionCreated, p.ID, p))
	if h.notifier != nil {
		// Delivery outlives the request.
		go h.notifier.NotifyNewProduct(context.WithoutCancel(r.Context()), *p)
	}
	writeJSON(w, http.StatusCreated, viewOf(*p))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.productStore.GetByID(id)
	if err != nil {
		h.logger.Error("get product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.productStore.Update(id, req.product())
	if err != nil {
		h.logger.Error("update product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	if p == nil {
		// Deleted between the lookup and the update.
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.broadcast(websocket.ProductEvent(websocket.ActionUpdated, p.ID, p))
	writeJSON(w, http.StatusOK, viewOf(*p))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.productStore.GetByID(id)
	if err != nil {
		h.logger.Error("get product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.productStore.Delete(id); err != nil {
		h.logger.Error("delete product", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	h.broadcast(websocket.ProductEvent(websocket.ActionDeleted, id, nil))
	w.WriteHeader(http.StatusNoContent)
}
