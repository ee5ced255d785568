package mongodb

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

// parseObjectID переводит строковый идентификатор в ObjectID.
// Некорректная строка означает, что документа с таким id нет.
func parseObjectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(domain.CanonicalID(id))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// objectRef - ссылка на другой документ (товар, пользователь). Hex-строка
// ObjectID пишется как ObjectId, так хранят ссылки уже существующие коллекции.
// Прочие идентификаторы пишутся строкой. Читаются оба вида.
type objectRef string

func (r objectRef) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if oid, ok := parseObjectID(string(r)); ok {
		return bson.MarshalValue(oid)
	}
	return bson.MarshalValue(string(r))
}

func (r *objectRef) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	if oid, ok := raw.ObjectIDOK(); ok {
		*r = objectRef(oid.Hex())
		return nil
	}
	if s, ok := raw.StringValueOK(); ok {
		*r = objectRef(s)
		return nil
	}
	return fmt.Errorf("unsupported bson type %s for document reference", t)
}

// stored перечисляет значения, которыми ссылка могла быть записана:
// ObjectId и строка, если id похож на ObjectID.
func (r objectRef) stored() bson.A {
	id := domain.CanonicalID(string(r))
	if oid, ok := parseObjectID(id); ok {
		return bson.A{oid, id}
	}
	return bson.A{id}
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", v.String(), err)
	}
	return d, nil
}
