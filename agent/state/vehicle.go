package state

import (
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"
)

// Vehicle is an inventory record as returned by the store. It stays loosely
// typed because the inventory schema varies between backends.
type Vehicle map[string]any

func (v Vehicle) Clone() Vehicle {
	if v == nil {
		return nil
	}
	cp, ok := deepcopy.Copy(map[string]any(v)).(map[string]any)
	if !ok {
		return nil
	}
	return Vehicle(cp)
}

// Str returns the field rendered as text, or "" when absent.
func (v Vehicle) Str(key string) string {
	raw, ok := v[key]
	if !ok || raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(raw)
}

// Title renders "make model (year)" skipping missing parts.
func (v Vehicle) Title() string {
	parts := make([]string, 0, 3)
	if s := v.Str("make"); s != "" {
		parts = append(parts, s)
	}
	if s := v.Str("model"); s != "" {
		parts = append(parts, s)
	}
	title := strings.Join(parts, " ")
	if y := v.Str("year"); y != "" {
		title = strings.TrimSpace(title + " (" + y + ")")
	}
	return title
}
