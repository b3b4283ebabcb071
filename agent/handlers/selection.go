package handlers

import (
	"strings"

	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// SelectVehicle resolves a bare-number message against the last search
// results. It returns handled=false when the text is not a selection or
// there is nothing to select from. An out-of-range number is handled and
// leaves the session unchanged.
func SelectVehicle(s *statex.Session, text string) (reply string, handled bool) {
	if s == nil || len(s.LastResults) == 0 {
		return "", false
	}
	n, ok := ParseSelection(text)
	if !ok {
		return "", false
	}
	if n < 1 || n > len(s.LastResults) {
		return OutOfRangeMessage(strings.TrimSpace(text), len(s.LastResults)), true
	}
	s.SelectVehicle(s.LastResults[n-1])
	return SelectionMessage(s.SelectedVehicle), true
}
