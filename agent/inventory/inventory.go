// Package inventory answers vehicle searches against the car catalogue.
package inventory

import (
	"cmp"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"github.com/uptrace/bun"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

const DefaultLimit = 20

// Car is the stored row shape for the cars table.
type Car struct {
	bun.BaseModel `bun:"table:cars,alias:car" bson:"-" json:"-"`

	ID          string  `bun:"id,pk" bson:"_id,omitempty" json:"id,omitempty"`
	Make        string  `bun:"make" bson:"make" json:"make"`
	Model       string  `bun:"model" bson:"model" json:"model"`
	Year        int     `bun:"year" bson:"year" json:"year"`
	Price       float64 `bun:"price" bson:"price" json:"price"`
	Mileage     int     `bun:"mileage" bson:"mileage" json:"mileage"`
	Style       string  `bun:"style" bson:"style" json:"style"`
	FuelType    string  `bun:"fuel_type" bson:"fuel_type" json:"fuel_type"`
	Description string  `bun:"description" bson:"description" json:"description"`
}

func (c Car) Vehicle() statex.Vehicle {
	v := statex.Vehicle{
		"make":        c.Make,
		"model":       c.Model,
		"year":        c.Year,
		"price":       c.Price,
		"mileage":     c.Mileage,
		"style":       c.Style,
		"fuel_type":   c.FuelType,
		"description": c.Description,
	}
	if c.ID != "" {
		v["id"] = c.ID
	}
	return v
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return DefaultLimit
	}
	return limit
}

// Sort orders vehicles newest first, then cheapest first.
func Sort(vs []statex.Vehicle) {
	slices.SortStableFunc(vs, func(a, b statex.Vehicle) int {
		if c := cmp.Compare(cast.ToInt(b["year"]), cast.ToInt(a["year"])); c != 0 {
			return c
		}
		return cmp.Compare(cast.ToFloat64(a["price"]), cast.ToFloat64(b["price"]))
	})
}

// Match reports whether v satisfies every set filter. Text filters are
// case-insensitive substring matches; Query matches make, model or
// description.
func Match(v statex.Vehicle, f contractx.VehicleFilters) bool {
	textChecks := []struct{ want, field string }{
		{f.Make, "make"},
		{f.Model, "model"},
		{f.Style, "style"},
		{f.FuelType, "fuel_type"},
	}
	for _, tc := range textChecks {
		if tc.want != "" && !containsFold(v.Str(tc.field), tc.want) {
			return false
		}
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if !containsFold(v.Str("make"), q) && !containsFold(v.Str("model"), q) && !containsFold(v.Str("description"), q) {
			return false
		}
	}

	year := cast.ToInt(v["year"])
	if f.YearMin > 0 && year < f.YearMin {
		return false
	}
	if f.YearMax > 0 && year > f.YearMax {
		return false
	}
	price := cast.ToFloat64(v["price"])
	if f.PriceMin > 0 && price < f.PriceMin {
		return false
	}
	if f.PriceMax > 0 && price > f.PriceMax {
		return false
	}
	if f.MileageMax > 0 && cast.ToInt(v["mileage"]) > f.MileageMax {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}
