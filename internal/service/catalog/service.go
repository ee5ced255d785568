// Package catalog реализует операции над каталогом товаров.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	"github.com/vladislavdragonenkov/dailygoods/internal/metrics"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/outbox"
)

// ProductCache read-through кеш товаров. Ошибки кеша не прерывают запрос.
type ProductCache interface {
	Get(ctx context.Context, id string) (domain.Product, bool, error)
	GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Set(ctx context.Context, products ...domain.Product) error
	Invalidate(ctx context.Context, ids ...string) error
}

// Option настраивает Service.
type Option func(*Service)

// WithCache включает кеш товаров.
func WithCache(cache ProductCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithEmitter включает публикацию событий через outbox.
func WithEmitter(emitter *outbox.Emitter) Option {
	return func(s *Service) {
		s.events = emitter
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.ShopMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service каталог товаров.
type Service struct {
	repo    domain.ProductRepository
	cache   ProductCache
	events  *outbox.Emitter
	metrics *metrics.ShopMetrics
	logger  *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(repo domain.ProductRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: log.WithField("component", "catalog-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// productEvent полезная нагрузка событий product.*.
type productEvent struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Category string          `json:"category,omitempty"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	PriceINR decimal.Decimal `json:"price_inr"`
	Stock    int             `json:"stock"`
}

func newProductEvent(p domain.Product) productEvent {
	return productEvent{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		PriceUSD: p.PriceUSD,
		PriceINR: p.PriceINR,
		Stock:    p.Stock,
	}
}

// List возвращает весь каталог.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	s.metrics.SetCatalogSize(len(products))
	return products, nil
}

// Get возвращает товар по id или domain.ErrProductNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	id = domain.CanonicalID(id)

	if s.cache != nil {
		product, found, err := s.cache.Get(ctx, id)
		switch {
		case err != nil:
			s.metrics.RecordCacheLookup(metrics.CacheResultError)
			s.logger.WithError(err).WithField("product_id", id).Warn("product cache lookup failed")
		case found:
			s.metrics.RecordCacheLookup(metrics.CacheResultHit)
			return product, nil
		default:
			s.metrics.RecordCacheLookup(metrics.CacheResultMiss)
		}
	}

	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	s.remember(ctx, product)
	return product, nil
}

// GetMany возвращает найденные товары по id. Отсутствующие товары в результат не попадают.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	wanted := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = domain.CanonicalID(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		wanted = append(wanted, id)
	}

	result := make(map[string]domain.Product, len(wanted))
	if len(wanted) == 0 {
		return result, nil
	}

	missing := wanted
	if s.cache != nil {
		cached, err := s.cache.GetMany(ctx, wanted)
		if err != nil {
			s.metrics.RecordCacheLookup(metrics.CacheResultError)
			s.logger.WithError(err).Warn("product cache batch lookup failed")
		} else {
			missing = missing[:0:0]
			for _, id := range wanted {
				if product, ok := cached[id]; ok {
					s.metrics.RecordCacheLookup(metrics.CacheResultHit)
					result[id] = product
					continue
				}
				s.metrics.RecordCacheLookup(metrics.CacheResultMiss)
				missing = append(missing, id)
			}
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	loaded, err := s.repo.GetMany(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, product := range loaded {
		result[product.ID] = product
	}
	s.remember(ctx, loaded...)
	return result, nil
}

// Create добавляет товар в каталог.
func (s *Service) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.ID = ""
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.WithField("product_id", created.ID).Info("product created")
	s.events.Emit(ctx, domain.AggregateProduct, created.ID, domain.EventProductCreated, newProductEvent(created))
	return created, nil
}

// Update частично обновляет товар и возвращает его новое состояние.
func (s *Service) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	id = domain.CanonicalID(id)
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}

	s.forget(ctx, id)
	s.events.Emit(ctx, domain.AggregateProduct, updated.ID, domain.EventProductUpdated, newProductEvent(updated))
	return updated, nil
}

// Delete удаляет товар. Удаление отсутствующего товара успешно.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = domain.CanonicalID(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.forget(ctx, id)
	s.events.Emit(ctx, domain.AggregateProduct, id, domain.EventProductDeleted, productEvent{ID: id})
	return nil
}

func (s *Service) remember(ctx context.Context, products ...domain.Product) {
	if s.cache == nil || len(products) == 0 {
		return
	}
	if err := s.cache.Set(ctx, products...); err != nil {
		s.logger.WithError(err).Warn("failed to populate product cache")
	}
}

func (s *Service) forget(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("failed to invalidate product cache")
	}
}
