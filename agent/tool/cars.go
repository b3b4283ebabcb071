package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/handlers"
	"github.com/Yuvaramesh/sales-agent/agent/inventory"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

const (
	findCarsLimit = inventory.DefaultLimit
	maxCards      = 8
	noCarsMessage = "I couldn't find any cars matching those filters."
)

// ParseFilters reads the filters argument of find_cars. Anything that is not
// a JSON object is treated as a free-text query.
func ParseFilters(raw string) contractx.VehicleFilters {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return contractx.VehicleFilters{}
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return contractx.VehicleFilters{Query: raw}
	}
	obj := gjson.Parse(raw)
	str := func(key string) string { return strings.TrimSpace(obj.Get(key).String()) }
	num := func(key string) float64 { return cast.ToFloat64(obj.Get(key).String()) }

	f := contractx.VehicleFilters{
		Make:       str("make"),
		Model:      str("model"),
		YearMin:    int(num("year_min")),
		YearMax:    int(num("year_max")),
		PriceMin:   num("price_min"),
		PriceMax:   num("price_max"),
		MileageMax: int(num("mileage_max")),
		Style:      str("style"),
		FuelType:   str("fuel_type"),
		Query:      str("query"),
	}
	return f
}

func (c *Catalog) executeFindCars(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	if c.finder == nil {
		return contractx.ToolResult{Tool: tool, Error: "car inventory is unavailable"}, nil
	}
	filters := ParseFilters(filtersArg(args))
	cars, err := c.finder.Find(ctx, filters, findCarsLimit)
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("find cars: %w", err)
	}
	text, err := RenderCarResults(cars)
	if err != nil {
		return contractx.ToolResult{}, err
	}
	return contractx.ToolResult{Tool: tool, Result: text}, nil
}

// filtersArg accepts filters as a JSON string or as an already decoded
// object, under either "filters_json" or "filters".
func filtersArg(args map[string]any) string {
	for _, key := range []string{"filters_json", "filters"} {
		switch v := args[key].(type) {
		case string:
			return v
		case map[string]any:
			raw, err := json.Marshal(v)
			if err == nil {
				return string(raw)
			}
		}
	}
	if q, ok := args["query"].(string); ok {
		return q
	}
	return ""
}

// RenderCarResults formats a search for the user and appends the marker
// payload carrying every record.
func RenderCarResults(cars []statex.Vehicle) (string, error) {
	if len(cars) == 0 {
		return noCarsMessage, nil
	}
	payload, err := json.Marshal(cars)
	if err != nil {
		return "", fmt.Errorf("encode car results: %w", err)
	}
	return BuildResultsMessage(cars) + "\n\n" + handlers.CarMarker + string(payload), nil
}

func BuildResultsMessage(cars []statex.Vehicle) string {
	if len(cars) == 0 {
		return "No cars matched your filters."
	}
	lines := make([]string, 0, min(len(cars), maxCards))
	for i, car := range cars {
		if i == maxCards {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, CarCard(car)))
	}

	noun := "matches"
	if len(cars) == 1 {
		noun = "match"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d %s. Top pick: %s.\n", len(cars), noun, cars[0].Title())
	b.WriteString("Reply with the number to select a car, or say 'more filters' to narrow results.")
	b.WriteString("\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// CarCard is the one-line summary of a vehicle.
func CarCard(v statex.Vehicle) string {
	title := v.Title()
	if v.Str("make") == "" {
		title = strings.TrimSpace("Unknown " + title)
	}

	price := "Price N/A"
	if raw, ok := v["price"]; ok && raw != nil && raw != "" {
		price = "$" + handlers.FormatPrice(raw)
	}
	mileage := "Mileage N/A"
	if raw, ok := v["mileage"]; ok && raw != nil && raw != "" {
		if n, err := cast.ToInt64E(raw); err == nil {
			mileage = humanize.Comma(n) + " km"
		} else {
			mileage = fmt.Sprint(raw) + " km"
		}
	}

	card := title + " — " + price + " — " + mileage
	if desc := firstSentence(v.Str("description"), 100); desc != "" {
		card += " — " + desc
	}
	return card
}

func firstSentence(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if i := strings.Index(s, "."); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > n {
		s = string(r[:n])
	}
	return s
}
