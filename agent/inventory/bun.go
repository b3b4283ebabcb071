package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

type BunFinder struct {
	db *bun.DB
}

var _ contractx.VehicleFinder = (*BunFinder)(nil)

func NewBunFinder(db *bun.DB) *BunFinder {
	return &BunFinder{db: db}
}

func (f *BunFinder) Find(ctx context.Context, filters contractx.VehicleFilters, limit int) ([]statex.Vehicle, error) {
	var cars []Car
	q := f.db.NewSelect().Model(&cars)
	q = ApplyFilters(q, filters)
	q = q.Order("year DESC", "price ASC").Limit(clampLimit(limit))
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("query cars: %w", err)
	}

	out := make([]statex.Vehicle, 0, len(cars))
	for _, c := range cars {
		out = append(out, c.Vehicle())
	}
	return out, nil
}

// ApplyFilters adds WHERE clauses for every set filter.
func ApplyFilters(q *bun.SelectQuery, f contractx.VehicleFilters) *bun.SelectQuery {
	like := func(s string) string { return "%" + strings.TrimSpace(s) + "%" }

	if f.Make != "" {
		q = q.Where("make ILIKE ?", like(f.Make))
	}
	if f.Model != "" {
		q = q.Where("model ILIKE ?", like(f.Model))
	}
	if f.Style != "" {
		q = q.Where("style ILIKE ?", like(f.Style))
	}
	if f.FuelType != "" {
		q = q.Where("fuel_type ILIKE ?", like(f.FuelType))
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.WhereOr("make ILIKE ?", like(s)).
				WhereOr("model ILIKE ?", like(s)).
				WhereOr("description ILIKE ?", like(s))
		})
	}
	if f.YearMin > 0 {
		q = q.Where("year >= ?", f.YearMin)
	}
	if f.YearMax > 0 {
		q = q.Where("year <= ?", f.YearMax)
	}
	if f.PriceMin > 0 {
		q = q.Where("price >= ?", f.PriceMin)
	}
	if f.PriceMax > 0 {
		q = q.Where("price <= ?", f.PriceMax)
	}
	if f.MileageMax > 0 {
		q = q.Where("mileage <= ?", f.MileageMax)
	}
	return q
}
