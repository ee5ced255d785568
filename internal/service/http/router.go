// Package httpsvc реализует REST API магазина поверх gin.
package httpsvc

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/metrics"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/cart"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/catalog"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/order"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/user"
)

// HealthPath путь проверки живости API.
const HealthPath = "/health"

// Services сервисы, которые обслуживает API.
type Services struct {
	Catalog *catalog.Service
	Cart    *cart.Service
	Orders  *order.Service
	Users   *user.Service
}

// Handler HTTP-обработчики API.
type Handler struct {
	catalog *catalog.Service
	carts   *cart.Service
	orders  *order.Service
	users   *user.Service
	logger  *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами и middleware.
func NewRouter(services Services, m *metrics.ShopMetrics, logger *log.Entry) *gin.Engine {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	h := &Handler{
		catalog: services.Catalog,
		carts:   services.Cart,
		orders:  services.Orders,
		users:   services.Users,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		recoveryMiddleware(logger),
		corsMiddleware(),
		metricsMiddleware(m),
		loggingMiddleware(logger),
	)

	router.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, statusResponse{Status: "Server is running"})
	})

	api := router.Group("/api")

	products := api.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/:id", h.getProduct)
	products.POST("", h.createProduct)
	products.PUT("/:id", h.updateProduct)
	products.DELETE("/:id", h.deleteProduct)

	carts := api.Group("/cart")
	carts.GET("/:userId", h.getCart)
	carts.POST("/:userId", h.addCartItem)
	carts.DELETE("/:userId/:productId", h.removeCartItem)

	orders := api.Group("/orders")
	orders.POST("", h.checkout)
	orders.GET("/:userId", h.listOrders)

	users := api.Group("/users")
	users.POST("", h.registerUser)
	users.GET("/:id", h.getUser)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "Not found"})
	})

	return router
}
