package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

type productDocument struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	PriceUSD    primitive.Decimal128 `bson:"price_usd"`
	PriceINR    primitive.Decimal128 `bson:"price_inr"`
	Category    string               `bson:"category"`
	Image       string               `bson:"image"`
	Stock       int                  `bson:"stock"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func newProductDocument(p domain.Product) (productDocument, error) {
	usd, err := toDecimal128(p.PriceUSD)
	if err != nil {
		return productDocument{}, err
	}
	inr, err := toDecimal128(p.PriceINR)
	if err != nil {
		return productDocument{}, err
	}
	oid, _ := parseObjectID(p.ID)
	return productDocument{
		ID:          oid,
		Name:        p.Name,
		Description: p.Description,
		PriceUSD:    usd,
		PriceINR:    inr,
		Category:    p.Category,
		Image:       p.Image,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func (d productDocument) toDomain() (domain.Product, error) {
	usd, err := fromDecimal128(d.PriceUSD)
	if err != nil {
		return domain.Product{}, err
	}
	inr, err := fromDecimal128(d.PriceINR)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		PriceUSD:    usd,
		PriceINR:    inr,
		Category:    d.Category,
		Image:       d.Image,
		Stock:       d.Stock,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

type productRepository struct {
	coll *mongo.Collection
}

// NewProductRepository создаёт MongoDB-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{coll: store.Database().Collection(productsCollection)}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	doc, err := newProductDocument(product)
	if err != nil {
		return domain.Product{}, err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return doc.toDomain()
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc productDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("find product: %w", err)
	}
	return doc.toDomain()
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return decodeProducts(ctx, cursor)
}

func (r *productRepository) GetMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := parseObjectID(id); ok {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("find products by ids: %w", err)
	}
	return decodeProducts(ctx, cursor)
}

func (r *productRepository) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	set, err := productPatchSet(patch)
	if err != nil {
		return domain.Product{}, err
	}
	set["updatedAt"] = time.Now().UTC().Truncate(time.Millisecond)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc productDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return doc.toDomain()
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	oid, ok := parseObjectID(id)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// productPatchSet собирает $set только из заданных полей патча.
func productPatchSet(patch domain.ProductPatch) (bson.M, error) {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.PriceUSD != nil {
		v, err := toDecimal128(*patch.PriceUSD)
		if err != nil {
			return nil, err
		}
		set["price_usd"] = v
	}
	if patch.PriceINR != nil {
		v, err := toDecimal128(*patch.PriceINR)
		if err != nil {
			return nil, err
		}
		set["price_inr"] = v
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.Stock != nil {
		set["stock"] = *patch.Stock
	}
	return set, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]domain.Product, error) {
	defer cursor.Close(ctx)

	products := make([]domain.Product, 0)
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		product, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
