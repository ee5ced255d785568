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

type cartLineDocument struct {
	ProductID objectRef `bson:"productId"`
	Quantity  int       `bson:"quantity"`
}

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	Name         string             `bson:"name"`
	CreatedAt    time.Time          `bson:"createdAt"`
	Cart         []cartLineDocument `bson:"cart"`
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func (d userDocument) cart() domain.Cart {
	cart := make(domain.Cart, 0, len(d.Cart))
	for _, line := range d.Cart {
		cart = append(cart, domain.CartLine{ProductID: string(line.ProductID), Quantity: line.Quantity})
	}
	return cart
}

// UserStore хранит пользователей вместе со встроенной корзиной.
// Каждая мутация корзины: один атомарный update документа пользователя.
type UserStore struct {
	coll *mongo.Collection
}

// NewUserStore создаёт MongoDB-реализацию UserRepository и CartRepository.
func NewUserStore(store *Store) *UserStore {
	return &UserStore{coll: store.Database().Collection(usersCollection)}
}

// Create сохраняет пользователя с пустой корзиной.
func (s *UserStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	doc := userDocument{
		Email:        domain.NormalizeEmail(user.Email),
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		CreatedAt:    user.CreatedAt,
		Cart:         []cartLineDocument{},
	}
	if oid, ok := parseObjectID(user.ID); ok {
		doc.ID = oid
	} else {
		doc.ID = primitive.NewObjectID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

// Get возвращает пользователя или ErrUserNotFound.
func (s *UserStore) Get(ctx context.Context, id string) (domain.User, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return doc.toDomain(), nil
}

// Items возвращает корзину пользователя.
func (s *UserStore) Items(ctx context.Context, userID string) (domain.Cart, error) {
	doc, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.cart(), nil
}

// AddItem прибавляет quantity к позиции через $inc или добавляет позицию через $push.
// $push защищён условием отсутствия позиции, поэтому гонка двух первых добавлений
// приводит к повтору через $inc, а не к дублю.
func (s *UserStore) AddItem(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error) {
	productID = domain.CanonicalID(productID)
	if productID == "" {
		return nil, domain.ErrProductIDRequired
	}
	if quantity == 0 {
		return nil, domain.ErrQuantityRequired
	}
	oid, ok := parseObjectID(userID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		doc, found, err := s.incrementLine(ctx, oid, productID, quantity)
		if err != nil {
			return nil, err
		}
		if found {
			return doc.cart(), nil
		}

		if quantity < 0 {
			if _, err := s.findByOID(ctx, oid); err != nil {
				return nil, err
			}
			return nil, domain.ErrCartQuantityInvalid
		}

		doc, found, err = s.pushLine(ctx, oid, productID, quantity)
		if err != nil {
			return nil, err
		}
		if found {
			return doc.cart(), nil
		}

		// Позиция появилась параллельно либо пользователя нет.
		if _, err := s.findByOID(ctx, oid); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("add cart item: too much contention for product %s", productID)
}

// RemoveItem удаляет позицию через $pull.
func (s *UserStore) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	oid, ok := parseObjectID(userID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	doc, err := s.updateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$pull": bson.M{"cart": bson.M{"productId": bson.M{"$in": objectRef(productID).stored()}}}},
	)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	return doc.cart(), nil
}

// Clear очищает корзину.
func (s *UserStore) Clear(ctx context.Context, userID string) error {
	oid, ok := parseObjectID(userID)
	if !ok {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"cart": []cartLineDocument{}}})
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) incrementLine(ctx context.Context, oid primitive.ObjectID, productID string, quantity int) (userDocument, bool, error) {
	doc, err := s.updateOne(ctx,
		bson.M{"_id": oid, "cart.productId": bson.M{"$in": objectRef(productID).stored()}},
		bson.M{"$inc": bson.M{"cart.$.quantity": quantity}},
	)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return userDocument{}, false, nil
		}
		return userDocument{}, false, fmt.Errorf("increment cart item: %w", err)
	}
	if quantity > 0 {
		return doc, true, nil
	}

	// Позиция с количеством <= 0 удаляется.
	doc, err = s.updateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$pull": bson.M{"cart": bson.M{"quantity": bson.M{"$lte": 0}}}},
	)
	if err != nil {
		return userDocument{}, false, fmt.Errorf("drop empty cart items: %w", err)
	}
	return doc, true, nil
}

func (s *UserStore) pushLine(ctx context.Context, oid primitive.ObjectID, productID string, quantity int) (userDocument, bool, error) {
	doc, err := s.updateOne(ctx,
		bson.M{"_id": oid, "cart.productId": bson.M{"$nin": objectRef(productID).stored()}},
		bson.M{"$push": bson.M{"cart": cartLineDocument{ProductID: objectRef(productID), Quantity: quantity}}},
	)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return userDocument{}, false, nil
		}
		return userDocument{}, false, fmt.Errorf("push cart item: %w", err)
	}
	return doc, true, nil
}

func (s *UserStore) updateOne(ctx context.Context, filter, update bson.M) (userDocument, error) {
	var doc userDocument
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	return doc, err
}

func (s *UserStore) find(ctx context.Context, id string) (userDocument, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return userDocument{}, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.findByOID(ctx, oid)
}

func (s *UserStore) findByOID(ctx context.Context, oid primitive.ObjectID) (userDocument, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return userDocument{}, domain.ErrUserNotFound
		}
		return userDocument{}, fmt.Errorf("find user: %w", err)
	}
	return doc, nil
}

var (
	_ domain.UserRepository = (*UserStore)(nil)
	_ domain.CartRepository = (*UserStore)(nil)
)
