package order

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// VehicleFields is the whitelist copied into an order.
var VehicleFields = []string{"make", "model", "year", "price", "mileage", "style", "fuel_type", "description"}

// CleanVehicle copies the whitelisted fields of v. Price becomes a float and
// year and mileage become ints; values that fail coercion are kept as they
// were. Everything else is stringified.
func CleanVehicle(sessionID string, v statex.Vehicle) map[string]any {
	out := make(map[string]any, len(VehicleFields))
	for _, key := range VehicleFields {
		raw, ok := v[key]
		if !ok {
			continue
		}
		out[key] = plain(raw)
	}

	coerce(sessionID, out, "price", func(x any) (any, error) { return cast.ToFloat64E(x) })
	coerce(sessionID, out, "year", func(x any) (any, error) { return cast.ToIntE(x) })
	coerce(sessionID, out, "mileage", func(x any) (any, error) { return cast.ToIntE(x) })
	return out
}

func plain(raw any) any {
	switch x := raw.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func coerce(sessionID string, out map[string]any, key string, conv func(any) (any, error)) {
	raw, ok := out[key]
	if !ok || raw == nil || raw == "" {
		return
	}
	v, err := conv(raw)
	if err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID).
			Str("field", key).
			Msg("vehicle field coercion failed, keeping raw value")
		return
	}
	out[key] = v
}
