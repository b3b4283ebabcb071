// Package order places purchase orders from session state.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
	"github.com/Yuvaramesh/sales-agent/pkg/qstash"
)

const (
	StatusPending = "pending"
	EventCreated  = "order.created"

	defaultWriteTimeout = 10 * time.Second
)

// DefaultSalesContact is attached to every order that does not name one.
var DefaultSalesContact = persistence.SalesContact{
	Name:     "Jeni Flemin",
	Position: "CEO",
	Phone:    "+94778540035",
	Address:  "Convent Garden, London, UK",
}

// Request carries explicit overrides. Empty fields fall back to the session.
type Request struct {
	BuyerName    string
	BuyerAddress string
	BuyerPhone   string
	BuyerEmail   string
	Vehicle      statex.Vehicle
	SalesContact *persistence.SalesContact
}

// Persister writes a session through after it changes.
type Persister interface {
	Persist(ctx context.Context, sess *statex.Session)
}

// Publisher delivers the order-created notification.
type Publisher interface {
	Publish(ctx context.Context, body any, headers map[string]string) (*qstash.PublishResult, error)
}

type Option func(*Engine)

func WithPersister(p Persister) Option { return func(e *Engine) { e.persister = p } }

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.writeTimeout = d
		}
	}
}

type Engine struct {
	gateway      persistence.Gateway
	persister    Persister
	publisher    Publisher
	now          func() time.Time
	writeTimeout time.Duration
}

func NewEngine(gateway persistence.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway:      gateway,
		now:          time.Now,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Create validates and stores an order for the session. On success the
// session is stamped with the order id and written through. A storage
// failure is dead-lettered and returned wrapping ErrDependency.
//
// Create does not deduplicate; callers only invoke it while the session has
// no order id.
func (e *Engine) Create(ctx context.Context, sess *statex.Session, req Request) (string, error) {
	if sess == nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrValidation, statex.ErrNilSession)
	}
	doc, err := e.Build(sess, req)
	if err != nil {
		return "", err
	}
	if e.gateway == nil {
		return "", fmt.Errorf("%w: no order store configured", contractx.ErrDependency)
	}

	wctx, cancel := e.writeContext(ctx)
	orderID, err := e.gateway.InsertOrder(wctx, doc)
	cancel()
	if err == nil && orderID == "" {
		err = errors.New("insert returned no id")
	}
	if err != nil {
		log.Error().Err(err).
			Str("session_id", sess.SessionID).
			Str("collection", persistence.CollectionOrders).
			Msg("order insert failed")
		e.deadLetter(ctx, sess.SessionID, doc, err)
		return "", fmt.Errorf("%w: store order: %v", contractx.ErrDependency, err)
	}

	sess.MarkOrdered(orderID, e.now())
	if e.persister != nil {
		e.persister.Persist(ctx, sess)
	}
	log.Info().
		Str("session_id", sess.SessionID).
		Str("order_id", orderID).
		Str("vehicle", statex.Vehicle(doc.Vehicle).Title()).
		Msg("order created")

	vctx, cancel := e.writeContext(ctx)
	_, err = e.gateway.FindOrder(vctx, orderID)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("order not readable after insert")
		return orderID, nil
	}

	nctx, cancel := e.writeContext(ctx)
	defer cancel()
	e.notify(nctx, orderID, doc)
	return orderID, nil
}

// Build resolves buyer fields and the vehicle with precedence: explicit
// request, then collected fields, then the session email.
func (e *Engine) Build(sess *statex.Session, req Request) (*persistence.Order, error) {
	name := firstNonEmpty(req.BuyerName, sess.Field(statex.FieldName), sess.UserEmail, "Unknown")
	address := firstNonEmpty(req.BuyerAddress, sess.Field(statex.FieldAddress))
	phone := firstNonEmpty(req.BuyerPhone, sess.Field(statex.FieldPhone))
	email := firstNonEmpty(req.BuyerEmail, sess.Field(statex.FieldEmail), sess.UserEmail)

	if address == "" {
		return nil, fmt.Errorf("%w: buyer address is required", contractx.ErrValidation)
	}
	vehicle := req.Vehicle
	if len(vehicle) == 0 {
		vehicle = sess.SelectedVehicle
	}
	if len(vehicle) == 0 {
		return nil, fmt.Errorf("%w: no vehicle selected", contractx.ErrValidation)
	}

	contact := DefaultSalesContact
	if req.SalesContact != nil {
		contact = *req.SalesContact
	}

	now := e.now().UTC()
	return &persistence.Order{
		SessionID:           sess.SessionID,
		UserEmail:           firstNonEmpty(sess.UserEmail, email),
		BuyerName:           name,
		BuyerAddress:        address,
		BuyerPhone:          phone,
		BuyerEmail:          email,
		Vehicle:             CleanVehicle(sess.SessionID, vehicle),
		SalesContact:        contact,
		Timestamp:           now,
		OrderDate:           now.Format(time.DateOnly),
		ConversationSummary: sess.MemorySummary,
		Status:              StatusPending,
	}, nil
}

func (e *Engine) notify(ctx context.Context, orderID string, doc *persistence.Order) {
	if e.publisher == nil {
		return
	}
	msg := map[string]any{
		"event":       EventCreated,
		"order_id":    orderID,
		"session_id":  doc.SessionID,
		"buyer_email": doc.BuyerEmail,
		"vehicle":     doc.Vehicle,
		"order_date":  doc.OrderDate,
		"status":      doc.Status,
	}
	res, err := e.publisher.Publish(ctx, msg, map[string]string{"Order-Event": EventCreated})
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("order notification failed")
		return
	}
	if res != nil {
		log.Debug().Str("order_id", orderID).Str("message_id", res.MessageID).Msg("order notification queued")
	}
}

// deadLetter gets its own deadline: the failed write may have spent the
// previous one.
func (e *Engine) deadLetter(ctx context.Context, sessionID string, doc *persistence.Order, cause error) {
	dctx, cancel := e.writeContext(ctx)
	defer cancel()
	if err := e.gateway.InsertFailedWrite(dctx, persistence.NewFailedWrite(persistence.CollectionOrders, sessionID, doc, cause)); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("order dead letter failed")
	}
}

// writeContext detaches a storage call from request cancellation and bounds
// it with the write timeout.
func (e *Engine) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.writeTimeout)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
