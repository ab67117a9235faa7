package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zest/productapi/internal/auth"
	"github.com/zest/productapi/internal/cache"
	"github.com/zest/productapi/internal/domain/product"
	"github.com/zest/productapi/internal/http/middlewares"
	"github.com/zest/productapi/internal/service"
	"github.com/zest/productapi/internal/utils"
)

const productsTimeout = 2 * time.Second

type ProductService interface {
	List(ctx context.Context, page, size int) (product.Page, error)
	Get(ctx context.Context, id int64) (product.Product, error)
	Create(ctx context.Context, name string, actor auth.Principal) (product.Product, error)
	Update(ctx context.Context, id int64, name string, actor auth.Principal) (product.Product, error)
	Delete(ctx context.Context, id int64) error
	ListItems(ctx context.Context, productID int64) ([]product.Item, error)
	AddItem(ctx context.Context, productID int64, quantity int) (product.Item, error)
	RecordAccess(productID int64, actor auth.Principal)
	AccessCount(ctx context.Context, productID int64) (int64, error)
}

type ProductsHandler struct {
	svc       ProductService
	listCache *cache.Cache[product.Page]
	log       *slog.Logger
	metrics   Metrics
}

// NewProductsHandler builds the handler. listCache may be nil to disable list
// caching.
func NewProductsHandler(svc ProductService, listCache *cache.Cache[product.Page], log *slog.Logger) *ProductsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProductsHandler{svc: svc, listCache: listCache, log: log, metrics: noopMetrics{}}
}

func (h *ProductsHandler) WithMetrics(m Metrics) *ProductsHandler {
	if m != nil {
		h.metrics = m
	}
	return h
}

type AccessCountResponse struct {
	ProductID int64 `json:"productId"`
	Count     int64 `json:"count"`
}

func (h *ProductsHandler) ListProducts(ctx *gin.Context) {
	page, size, err := utils.ParsePageParams(ctx.Query("page"), ctx.Query("size"), service.DefaultPage, service.DefaultPageSize)
	if err != nil {
		RespondBadRequest(ctx, "page and size must be integers", nil)
		return
	}

	key := utils.BuildProductsListCacheKey(page, size)
	var gen uint64
	if h.listCache != nil {
		gen = h.listCache.Generation()
		cached, ok := h.listCache.Get(key)
		h.metrics.ObserveListCache(ok)
		if ok {
			respondTagged(ctx, pageETag(cached), "Success", cached)
			return
		}
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	result, err := h.svc.List(cctx, page, size)
	if err != nil {
		h.fail(ctx, "list products", err)
		return
	}

	if h.listCache != nil {
		h.listCache.SetIfGeneration(key, result, gen)
	}

	respondTagged(ctx, pageETag(result), "Success", result)
}

func (h *ProductsHandler) GetProduct(ctx *gin.Context) {
	id, ok := productID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	p, err := h.svc.Get(cctx, id)
	if err != nil {
		h.fail(ctx, "get product", err)
		return
	}

	if actor, ok := middlewares.PrincipalFromContext(ctx); ok {
		h.svc.RecordAccess(p.ID, actor)
	}

	respondTagged(ctx, productETag(p), "Success", p)
}

func (h *ProductsHandler) CreateProduct(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}

	var req product.ProductRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	p, err := h.svc.Create(cctx, req.ProductName, actor)
	if err != nil {
		h.fail(ctx, "create product", err)
		return
	}

	h.invalidateList()
	RespondCreated(ctx, "Product created successfully", p)
}

func (h *ProductsHandler) UpdateProduct(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}

	id, ok := productID(ctx)
	if !ok {
		return
	}

	var req product.ProductRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	p, err := h.svc.Update(cctx, id, req.ProductName, actor)
	if err != nil {
		h.fail(ctx, "update product", err)
		return
	}

	h.invalidateList()
	RespondOK(ctx, "Product updated successfully", p)
}

func (h *ProductsHandler) DeleteProduct(ctx *gin.Context) {
	id, ok := productID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	if err := h.svc.Delete(cctx, id); err != nil {
		h.fail(ctx, "delete product", err)
		return
	}

	h.invalidateList()
	RespondOK(ctx, "Product deleted successfully", nil)
}

func (h *ProductsHandler) ListItems(ctx *gin.Context) {
	id, ok := productID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	items, err := h.svc.ListItems(cctx, id)
	if err != nil {
		h.fail(ctx, "list items", err)
		return
	}

	RespondOK(ctx, "Success", items)
}

func (h *ProductsHandler) AddItem(ctx *gin.Context) {
	id, ok := productID(ctx)
	if !ok {
		return
	}

	var req product.ItemRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	it, err := h.svc.AddItem(cctx, id, *req.Quantity)
	if err != nil {
		h.fail(ctx, "add item", err)
		return
	}

	h.invalidateList()
	RespondCreated(ctx, "Item created successfully", it)
}

func (h *ProductsHandler) AccessCount(ctx *gin.Context) {
	id, ok := productID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), productsTimeout)
	defer cancel()

	n, err := h.svc.AccessCount(cctx, id)
	if err != nil {
		h.fail(ctx, "access count", err)
		return
	}

	RespondOK(ctx, "Success", AccessCountResponse{ProductID: id, Count: n})
}

func (h *ProductsHandler) invalidateList() {
	if h.listCache != nil {
		h.listCache.DeletePrefix(utils.ProductsListCachePrefix)
	}
}

func (h *ProductsHandler) fail(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, product.ErrNotFound):
		RespondNotFound(ctx, "Product not found")
	case errors.Is(err, product.ErrInvalidQuantity):
		RespondBadRequest(ctx, "Quantity out of range", []FieldError{{Field: "quantity", Rule: "range", Param: "0..2147483647", Message: "must be between 0 and 2147483647"}})
	case errors.Is(err, product.ErrInvalidPage):
		RespondBadRequest(ctx, "page must be >= 0 and size must be >= 1", nil)
	case errors.Is(err, service.ErrAccessCountUnavailable):
		RespondUnavailable(ctx, "Access counters are not available")
	default:
		h.log.ErrorContext(ctx.Request.Context(), op+" failed", "err", err)
		RespondInternal(ctx, "Could not "+op)
	}
}

func productID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid product id", nil)
		return 0, false
	}
	return id, true
}

func principal(ctx *gin.Context) (auth.Principal, bool) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondForbidden(ctx, "Missing identity context")
		return auth.Principal{}, false
	}
	return p, true
}
