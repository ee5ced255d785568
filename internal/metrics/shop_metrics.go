package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Метки шагов оформления заказа для dailygoods_checkout_failures_total.
const (
	CheckoutStepValidate  = "validate"
	CheckoutStepLookup    = "user_lookup"
	CheckoutStepCreate    = "create_order"
	CheckoutStepClearCart = "clear_cart"
)

// Результаты обращения к кешу товаров.
const (
	CacheResultHit   = "hit"
	CacheResultMiss  = "miss"
	CacheResultError = "error"
)

// ShopMetrics содержит метрики HTTP API и бизнес-операций магазина.
// Все методы безопасны для nil-получателя: сервисы в тестах работают без метрик.
type ShopMetrics struct {
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cartMutations     *prometheus.CounterVec
	ordersCreated     prometheus.Counter
	checkoutFailures  *prometheus.CounterVec
	checkoutMismatch  prometheus.Counter
	cacheLookups      *prometheus.CounterVec
	productsInCatalog prometheus.Gauge
}

// NewShopMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewShopMetrics() *ShopMetrics {
	return NewShopMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewShopMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewShopMetricsWithRegisterer(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dailygoods_http_requests_total",
			Help: "Total number of HTTP API requests grouped by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "dailygoods_http_request_duration_seconds",
			Help:    "HTTP API request latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dailygoods_cart_mutations_total",
			Help: "Total number of successful cart mutations grouped by operation.",
		}, []string{"op"}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dailygoods_orders_created_total",
			Help: "Total number of orders created.",
		}),
		checkoutFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dailygoods_checkout_failures_total",
			Help: "Total number of checkout failures grouped by step.",
		}, []string{"step"}),
		checkoutMismatch: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dailygoods_checkout_total_mismatch_total",
			Help: "Total number of orders whose client totalPrice differs from the sum of items.",
		}),
		cacheLookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dailygoods_product_cache_lookups_total",
			Help: "Total number of product cache lookups grouped by result.",
		}, []string{"result"}),
		productsInCatalog: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "dailygoods_catalog_products",
			Help: "Number of products returned by the last full catalog listing.",
		}),
	}
}

// RecordHTTPRequest фиксирует завершённый HTTP-запрос.
func (m *ShopMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCartMutation увеличивает счётчик изменений корзины (add, remove).
func (m *ShopMetrics) RecordCartMutation(op string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op).Inc()
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *ShopMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordCheckoutFailure фиксирует ошибку оформления на шаге step.
func (m *ShopMetrics) RecordCheckoutFailure(step string) {
	if m == nil {
		return
	}
	m.checkoutFailures.WithLabelValues(step).Inc()
}

// RecordTotalMismatch фиксирует заказ, у которого totalPrice не равен сумме позиций.
func (m *ShopMetrics) RecordTotalMismatch() {
	if m == nil {
		return
	}
	m.checkoutMismatch.Inc()
}

// RecordCacheLookup фиксирует результат обращения к кешу товаров.
func (m *ShopMetrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetCatalogSize обновляет размер каталога.
func (m *ShopMetrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.productsInCatalog.Set(float64(n))
}
