package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zest/productapi/internal/cache"
	"github.com/zest/productapi/internal/domain/product"
	"github.com/zest/productapi/internal/domain/user"
	"github.com/zest/productapi/internal/http/handlers"
	"github.com/zest/productapi/internal/http/middlewares"
	"github.com/zest/productapi/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const APIPrefix = "/api/v1"

type Deps struct {
	Env         string
	ServiceName string

	Auth     handlers.AuthService
	Products handlers.ProductService
	Tokens   middlewares.TokenVerifier

	// optional
	ListCache          *cache.Cache[product.Page]
	Prom               *observability.Prom
	Gatherer           prometheus.Gatherer
	Checks             map[string]handlers.PingFunc
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
}

func NewRouter(log *slog.Logger, deps Deps) *gin.Engine {
	if deps.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	if deps.ServiceName != "" {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORS(deps.CORSAllowedOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	})

	// health + metrics
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(deps.Tokens)
	authHandler := handlers.NewAuthHandler(deps.Auth, log)
	productsHandler := handlers.NewProductsHandler(deps.Products, deps.ListCache, log)
	if deps.Prom != nil {
		authHandler.WithMetrics(deps.Prom)
		productsHandler.WithMetrics(deps.Prom)
	}

	api := r.Group(APIPrefix)
	api.Use(middlewares.JSONBody(deps.MaxBodyBytes))

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)

	products := api.Group("/products")
	products.Use(authMW.RequireAuth())
	products.GET("", productsHandler.ListProducts)
	products.POST("", productsHandler.CreateProduct)
	products.GET("/:id", productsHandler.GetProduct)
	products.PUT("/:id", productsHandler.UpdateProduct)
	products.DELETE("/:id", productsHandler.DeleteProduct)
	products.GET("/:id/items", productsHandler.ListItems)
	products.POST("/:id/items", productsHandler.AddItem)

	admin := api.Group("/admin")
	admin.Use(authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	admin.GET("/products/:id/access", productsHandler.AccessCount)

	return r
}
