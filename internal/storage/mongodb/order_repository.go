package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

type orderItemDocument struct {
	ProductID objectRef            `bson:"productId"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
}

type orderDocument struct {
	ID         primitive.ObjectID   `bson:"_id"`
	UserID     objectRef            `bson:"userId"`
	Items      []orderItemDocument  `bson:"items"`
	TotalPrice primitive.Decimal128 `bson:"totalPrice"`
	Status     string               `bson:"status"`
	CreatedAt  time.Time            `bson:"createdAt"`
}

func newOrderDocument(order domain.Order) (orderDocument, error) {
	total, err := toDecimal128(order.TotalPrice)
	if err != nil {
		return orderDocument{}, err
	}
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return orderDocument{}, err
		}
		items = append(items, orderItemDocument{ProductID: objectRef(domain.CanonicalID(item.ProductID)), Quantity: item.Quantity, Price: price})
	}

	oid, _ := parseObjectID(order.ID)
	return orderDocument{
		ID:         oid,
		UserID:     objectRef(domain.CanonicalID(order.UserID)),
		Items:      items,
		TotalPrice: total,
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt,
	}, nil
}

func (d orderDocument) toDomain() (domain.Order, error) {
	total, err := fromDecimal128(d.TotalPrice)
	if err != nil {
		return domain.Order{}, err
	}
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		price, err := fromDecimal128(item.Price)
		if err != nil {
			return domain.Order{}, err
		}
		items = append(items, domain.OrderItem{ProductID: string(item.ProductID), Quantity: item.Quantity, Price: price})
	}
	return domain.Order{
		ID:         d.ID.Hex(),
		UserID:     string(d.UserID),
		Items:      items,
		TotalPrice: total,
		Status:     domain.OrderStatus(d.Status),
		CreatedAt:  d.CreatedAt.UTC(),
	}, nil
}

type orderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository создаёт MongoDB-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{coll: store.Database().Collection(ordersCollection)}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	doc, err := newOrderDocument(order)
	if err != nil {
		return domain.Order{}, err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return doc.toDomain()
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": bson.M{"$in": objectRef(userID).stored()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]domain.Order, 0)
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		order, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
