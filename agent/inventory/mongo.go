package inventory

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

const CollectionCars = "cars"

type MongoFinder struct {
	coll *mongo.Collection
}

var _ contractx.VehicleFinder = (*MongoFinder)(nil)

func NewMongoFinder(db *mongo.Database) *MongoFinder {
	return &MongoFinder{coll: db.Collection(CollectionCars)}
}

func (f *MongoFinder) Find(ctx context.Context, filters contractx.VehicleFilters, limit int) ([]statex.Vehicle, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "year", Value: -1}, {Key: "price", Value: 1}}).
		SetLimit(int64(clampLimit(limit)))

	cur, err := f.coll.Find(ctx, BuildMongoFilter(filters), opts)
	if err != nil {
		return nil, fmt.Errorf("query cars: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cars: %w", err)
	}

	out := make([]statex.Vehicle, 0, len(docs))
	for _, d := range docs {
		v := statex.Vehicle{}
		for k, val := range d {
			if k == "_id" {
				if oid, ok := val.(bson.ObjectID); ok {
					v["id"] = oid.Hex()
				} else {
					v["id"] = fmt.Sprint(val)
				}
				continue
			}
			v[k] = val
		}
		out = append(out, v)
	}
	return out, nil
}

// BuildMongoFilter translates filters into a query document.
func BuildMongoFilter(f contractx.VehicleFilters) bson.M {
	q := bson.M{}
	rx := func(s string) bson.M {
		return bson.M{"$regex": regexp.QuoteMeta(strings.TrimSpace(s)), "$options": "i"}
	}

	if f.Make != "" {
		q["make"] = rx(f.Make)
	}
	if f.Model != "" {
		q["model"] = rx(f.Model)
	}
	if f.Style != "" {
		q["style"] = rx(f.Style)
	}
	if f.FuelType != "" {
		q["fuel_type"] = rx(f.FuelType)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		q["$or"] = bson.A{
			bson.M{"make": rx(s)},
			bson.M{"model": rx(s)},
			bson.M{"description": rx(s)},
		}
	}

	if r := rangeOf(f.YearMin, f.YearMax); r != nil {
		q["year"] = r
	}
	if r := rangeOf(f.PriceMin, f.PriceMax); r != nil {
		q["price"] = r
	}
	if f.MileageMax > 0 {
		q["mileage"] = bson.M{"$lte": f.MileageMax}
	}
	return q
}

func rangeOf[T int | float64](lo, hi T) bson.M {
	if lo <= 0 && hi <= 0 {
		return nil
	}
	r := bson.M{}
	if lo > 0 {
		r["$gte"] = lo
	}
	if hi > 0 {
		r["$lte"] = hi
	}
	return r
}
