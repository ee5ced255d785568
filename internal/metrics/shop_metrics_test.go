package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewShopMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetricsWithRegisterer(reg)

	if m == nil {
		t.Fatal("NewShopMetricsWithRegisterer should not return nil")
	}
	if m.httpRequests == nil || m.httpRequestDuration == nil {
		t.Error("http collectors should not be nil")
	}
	if m.cartMutations == nil || m.ordersCreated == nil || m.checkoutFailures == nil {
		t.Error("business collectors should not be nil")
	}
	if m.cacheLookups == nil || m.checkoutMismatch == nil || m.productsInCatalog == nil {
		t.Error("auxiliary collectors should not be nil")
	}
}

func TestNewShopMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewShopMetricsWithRegisterer(reg)
	second := NewShopMetricsWithRegisterer(reg)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	if got := counterValue(t, second.ordersCreated); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestShopMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetricsWithRegisterer(reg)

	m.RecordHTTPRequest("GET", "/api/products", 200, 15*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/products", 200, 5*time.Millisecond)
	m.RecordCartMutation("add")
	m.RecordCheckoutFailure(CheckoutStepClearCart)
	m.RecordTotalMismatch()
	m.RecordCacheLookup(CacheResultHit)
	m.SetCatalogSize(7)

	if got := counterValue(t, m.httpRequests.WithLabelValues("GET", "/api/products", "200")); got != 2 {
		t.Errorf("expected 2 http requests, got %v", got)
	}
	if got := counterValue(t, m.cartMutations.WithLabelValues("add")); got != 1 {
		t.Errorf("expected 1 cart mutation, got %v", got)
	}
	if got := counterValue(t, m.checkoutFailures.WithLabelValues(CheckoutStepClearCart)); got != 1 {
		t.Errorf("expected 1 checkout failure, got %v", got)
	}
	if got := counterValue(t, m.checkoutMismatch); got != 1 {
		t.Errorf("expected 1 mismatch, got %v", got)
	}
	if got := counterValue(t, m.cacheLookups.WithLabelValues(CacheResultHit)); got != 1 {
		t.Errorf("expected 1 cache hit, got %v", got)
	}

	metric := &dto.Metric{}
	if err := m.productsInCatalog.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 7 {
		t.Errorf("expected catalog size 7, got %v", metric.GetGauge().GetValue())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var histogramCount uint64
	for _, family := range families {
		if family.GetName() == "dailygoods_http_request_duration_seconds" {
			histogramCount = family.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	if histogramCount != 2 {
		t.Errorf("expected 2 latency samples, got %d", histogramCount)
	}
}

func TestShopMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *ShopMetrics

	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordCartMutation("add")
	m.RecordOrderCreated()
	m.RecordCheckoutFailure(CheckoutStepCreate)
	m.RecordTotalMismatch()
	m.RecordCacheLookup(CacheResultMiss)
	m.SetCatalogSize(1)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}
