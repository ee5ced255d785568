package httpsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	"github.com/vladislavdragonenkov/dailygoods/internal/metrics"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/cart"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/catalog"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/order"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/outbox"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/user"
	"github.com/vladislavdragonenkov/dailygoods/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.EventType)
	}
	return types
}

// ShopFlowTestSuite прогоняет путь покупателя через HTTP API вместе с outbox.
type ShopFlowTestSuite struct {
	suite.Suite
	api       *testAPI
	worker    *outbox.Worker
	publisher *recordingPublisher
}

func (s *ShopFlowTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "shop-flow-test")

	registry := prometheus.NewRegistry()
	m := metrics.NewShopMetricsWithRegisterer(registry)

	outboxRepo := memory.NewOutboxRepository()
	emitter := outbox.NewEmitter(outboxRepo, logger)
	s.publisher = &recordingPublisher{}
	s.worker = outbox.NewWorker(outboxRepo, s.publisher, outbox.WithLogger(logger), outbox.WithRetryBaseDelay(0))

	products := memory.NewProductRepository()
	users := memory.NewUserStore()
	catalogSvc := catalog.NewService(products,
		catalog.WithEmitter(emitter),
		catalog.WithMetrics(m),
		catalog.WithLogger(logger),
	)

	router := NewRouter(Services{
		Catalog: catalogSvc,
		Cart:    cart.NewService(users, catalogSvc, m, logger),
		Orders:  order.NewService(memory.NewOrderRepository(), users, users, emitter, m, logger),
		Users:   user.NewService(users, bcrypt.MinCost, logger),
	}, m, logger)

	s.api = &testAPI{router: router, registry: registry, products: products, users: users}
}

func (s *ShopFlowTestSuite) TestPurchaseLifecycle() {
	t := s.T()

	userID := s.api.registerUser(t, "flow@example.com").ID
	productID := s.api.createProduct(t, "Milk", "1.25").ID

	rec := s.api.do(t, http.MethodPost, "/api/cart/"+userID, map[string]any{"productId": productID, "quantity": 2})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	rec = s.api.do(t, http.MethodPost, "/api/cart/"+userID, map[string]any{"productId": productID, "quantity": 3})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var lines []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	s.Require().Len(lines, 1)
	s.Equal(float64(5), lines[0]["quantity"])

	rec = s.api.do(t, http.MethodPost, "/api/orders", map[string]any{
		"userId":     userID,
		"items":      []map[string]any{{"productId": productID, "quantity": 5, "price": 1.25}},
		"totalPrice": 6.25,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	s.Equal("pending", created["status"])

	rec = s.api.do(t, http.MethodGet, "/api/cart/"+userID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())

	rec = s.api.do(t, http.MethodGet, "/api/orders/"+userID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	s.Require().Len(orders, 1)
	s.Equal(created["id"], orders[0]["id"])

	s.worker.ProcessOnce(context.Background())
	s.Equal([]string{domain.EventProductCreated, domain.EventOrderCreated}, s.publisher.eventTypes())

	s.worker.ProcessOnce(context.Background())
	s.Len(s.publisher.eventTypes(), 2, "sent events must not be published twice")
}

func (s *ShopFlowTestSuite) TestCatalogChangesAreEmitted() {
	t := s.T()

	productID := s.api.createProduct(t, "Bread", "2").ID

	rec := s.api.do(t, http.MethodPut, "/api/products/"+productID, map[string]any{"stock": 4})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.api.do(t, http.MethodDelete, "/api/products/"+productID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	s.worker.ProcessOnce(context.Background())
	s.Equal([]string{
		domain.EventProductCreated,
		domain.EventProductUpdated,
		domain.EventProductDeleted,
	}, s.publisher.eventTypes())

	for _, event := range s.publisher.events {
		s.Equal(domain.AggregateProduct, event.AggregateType)
		s.Equal(productID, event.AggregateID)
	}
}

func (s *ShopFlowTestSuite) TestRejectedCheckoutKeepsCartAndEmitsNothing() {
	t := s.T()

	userID := s.api.registerUser(t, "reject@example.com").ID
	productID := s.api.createProduct(t, "Eggs", "3").ID
	s.worker.ProcessOnce(context.Background())

	rec := s.api.do(t, http.MethodPost, "/api/cart/"+userID, map[string]any{"productId": productID, "quantity": 1})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.api.do(t, http.MethodPost, "/api/orders", map[string]any{
		"userId":     userID,
		"items":      []map[string]any{},
		"totalPrice": 0,
	})
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	rec = s.api.do(t, http.MethodGet, "/api/cart/"+userID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var lines []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	s.Len(lines, 1)

	s.worker.ProcessOnce(context.Background())
	s.Equal([]string{domain.EventProductCreated}, s.publisher.eventTypes())
}

func TestShopFlow(t *testing.T) {
	suite.Run(t, new(ShopFlowTestSuite))
}
