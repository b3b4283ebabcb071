package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/handlers"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// ExtractContact merges any buyer fields in the text into the session. It
// never fails the turn.
func ExtractContact(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	in.Extracted = handlers.MergeContact(in.Session, in.Text)
	if len(in.Extracted) > 0 {
		log.Debug().
			Str("session_id", in.Session.SessionID).
			Strs("fields", in.Extracted).
			Msg("contact fields collected")
	}
	return in, nil
}

// RouteTurn picks the handler for the turn. The first matching rule wins.
func RouteTurn(_ context.Context, in *GraphState) (string, error) {
	if in == nil || in.Session == nil {
		return "", fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	return route(in.Session, in.Text), nil
}

func route(s *statex.Session, text string) string {
	pendingOrder := s.HasVehicle() && !s.HasOrder()

	if pendingOrder && handlers.IsOrderConfirmation(text) {
		return RouteOrderConfirm
	}
	if pendingOrder && s.Awaiting == statex.AwaitingAddress && handlers.ContainsAddressInfo(text) && s.HasAddress() {
		return RouteAddressFulfill
	}
	if _, ok := handlers.ParseSelection(text); ok && len(s.LastResults) > 0 {
		return RouteSelectVehicle
	}
	return RouteDelegate
}
