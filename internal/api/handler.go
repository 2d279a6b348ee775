package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the resource services the handlers delegate to.
type Services struct {
	Shops     *service.ShopService
	Products  *service.ProductService
	Orders    *service.OrderService
	LineItems *service.LineItemService
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	svc      Services
	repo     store.Repository
	sessions SessionLookup
	checks   map[string]Pinger
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready in
// addition to the store.
func NewHandler(svc Services, repo store.Repository, sessions SessionLookup, checks map[string]Pinger) *Handler {
	all := map[string]Pinger{"store": repo}
	for name, p := range checks {
		all[name] = p
	}
	return &Handler{
		svc:      svc,
		repo:     repo,
		sessions: sessions,
		checks:   all,
		logger:   util.Component("api"),
	}
}

// SetupRoutes sets up HTTP routes. Wrap the engine in TrimTrailingSlash so
// both "/shops/" and "/shops" reach the same handler.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.RedirectTrailingSlash = false
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	shops := router.Group("/shops", h.authMiddleware())
	{
		shops.GET("", h.listShops)
		shops.POST("", h.createShop)
		shops.GET("/:shop_id", h.getShop)
		shops.PUT("/:shop_id", h.updateShop)
		shops.PATCH("/:shop_id", h.updateShop)
		shops.DELETE("/:shop_id", h.deleteShop)

		shops.GET("/:shop_id/products", h.listProducts)
		shops.POST("/:shop_id/products", h.createProduct)
		shops.GET("/:shop_id/products/:product_id", h.getProduct)
		shops.PUT("/:shop_id/products/:product_id", h.updateProduct)
		shops.PATCH("/:shop_id/products/:product_id", h.updateProduct)
		shops.DELETE("/:shop_id/products/:product_id", h.deleteProduct)

		shops.GET("/:shop_id/orders", h.listOrders)
		shops.POST("/:shop_id/orders", h.createOrder)
		shops.GET("/:shop_id/orders/:order_id", h.getOrder)
		shops.DELETE("/:shop_id/orders/:order_id", h.deleteOrder)

		shops.GET("/:shop_id/orders/:order_id/lineitems", h.listLineItems)
		shops.POST("/:shop_id/orders/:order_id/lineitems", h.createLineItem)
		shops.GET("/:shop_id/orders/:order_id/lineitems/:id", h.getLineItem)
		shops.PUT("/:shop_id/orders/:order_id/lineitems/:id", h.updateLineItem)
		shops.PATCH("/:shop_id/orders/:order_id/lineitems/:id", h.updateLineItem)
		shops.DELETE("/:shop_id/orders/:order_id/lineitems/:id", h.deleteLineItem)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings the store and every other registered dependency.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// pathIDs parses the named path parameters. A malformed id names no
// resource, so it is reported as not found.
func (h *Handler) pathIDs(c *gin.Context, names ...string) ([]int64, bool) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, err := strconv.ParseInt(c.Param(name), 10, 64)
		if err != nil || id <= 0 {
			h.abort(c, apperr.NotFound("no resource matches %s %q", name, c.Param(name)))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// bindBody decodes a JSON body into req. An empty body decodes to the zero
// request so the service can report which fields are missing.
func (h *Handler) bindBody(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		h.abort(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

func isPartial(c *gin.Context) bool {
	return c.Request.Method == http.MethodPatch
}
