package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/order"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidEmail   = errors.New("user email is empty")
	ErrNoSession      = errors.New("session is not loaded")
)

// Routes out of the route_turn branch.
const (
	RouteOrderConfirm   = "order_confirm"
	RouteAddressFulfill = "address_fulfill"
	RouteSelectVehicle  = "select_vehicle"
	RouteDelegate       = "delegate"
)

// SessionRecorder is the part of the session store the graph writes to.
type SessionRecorder interface {
	ContextFor(ctx context.Context, sess *statex.Session) string
	RecordTurn(ctx context.Context, sess *statex.Session, userText, response, agent string)
}

type OrderPlacer interface {
	Create(ctx context.Context, sess *statex.Session, req order.Request) (string, error)
}

// GraphInput is one user turn against a session the caller holds the lease
// for.
type GraphInput struct {
	Session *statex.Session
	Text    string
}

type GraphOutput struct {
	SessionID string
	Reply     string
	Handler   string
}

type GraphState struct {
	Session *statex.Session
	Text    string
	Now     time.Time

	// Extracted lists the buyer fields found in this turn's text.
	Extracted []string

	Reply   string
	Handler string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	if in.Session == nil {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(in.Session.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		Session: in.Session,
		Text:    text,
		Now:     nowFn().UTC(),
	}, nil
}
