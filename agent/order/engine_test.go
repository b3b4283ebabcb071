package order

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
	"github.com/Yuvaramesh/sales-agent/pkg/qstash"
)

type brokenOrders struct {
	*persistence.MemoryGateway
}

func (brokenOrders) InsertOrder(context.Context, *persistence.Order) (string, error) {
	return "", errors.New("write concern timeout")
}

// hangingOrders blocks order inserts until their context expires and notes
// the context state each dead letter was written under.
type hangingOrders struct {
	*persistence.MemoryGateway

	mu         sync.Mutex
	letterErrs []error
}

func (h *hangingOrders) InsertOrder(ctx context.Context, _ *persistence.Order) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (h *hangingOrders) InsertFailedWrite(ctx context.Context, f *persistence.FailedWrite) error {
	h.mu.Lock()
	h.letterErrs = append(h.letterErrs, ctx.Err())
	h.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.MemoryGateway.InsertFailedWrite(ctx, f)
}

type recordingPersister struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingPersister) Persist(_ context.Context, s *statex.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s.OrderID)
}

type recordingPublisher struct {
	bodies []map[string]any
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, body any, _ map[string]string) (*qstash.PublishResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.bodies = append(r.bodies, body.(map[string]any))
	return &qstash.PublishResult{MessageID: "msg-1"}, nil
}

var fixedNow = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func selectedSession() *statex.Session {
	s := statex.NewSession("s1", "buyer@example.com", fixedNow)
	s.SelectVehicle(statex.Vehicle{
		"make": "Honda", "model": "CR-V", "year": 2021, "price": 25000.0, "mileage": 15000,
		"_id": "abc", "vin": "XYZ",
	})
	return s
}

func TestCreatePlacesOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := persistence.NewMemoryGateway()
	persister := &recordingPersister{}
	pub := &recordingPublisher{}
	e := NewEngine(gw, WithPersister(persister), WithPublisher(pub), WithClock(func() time.Time { return fixedNow }))

	s := selectedSession()
	s.Collect(statex.FieldAddress, "12 Main St")
	s.Collect(statex.FieldName, "Ann")
	s.MemorySummary = "wants an SUV"

	id, err := e.Create(ctx, s, Request{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, id, s.OrderID)
	assert.Equal(t, statex.StageOrdered, s.Stage)
	assert.Empty(t, s.Awaiting)
	assert.Equal(t, []string{id}, persister.calls)

	o, err := gw.FindOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ann", o.BuyerName)
	assert.Equal(t, "12 Main St", o.BuyerAddress)
	assert.Equal(t, "buyer@example.com", o.BuyerEmail)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "2025-06-02", o.OrderDate)
	assert.Equal(t, "wants an SUV", o.ConversationSummary)
	assert.Equal(t, DefaultSalesContact, o.SalesContact)
	assert.NotContains(t, o.Vehicle, "_id")
	assert.NotContains(t, o.Vehicle, "vin")

	require.Len(t, pub.bodies, 1)
	assert.Equal(t, EventCreated, pub.bodies[0]["event"])
	assert.Equal(t, id, pub.bodies[0]["order_id"])
}

func TestSalesContactDocumentKeys(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(DefaultSalesContact)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Jeni Flemin","position":"CEO","phone":"+94778540035","address":"Convent Garden, London, UK"}`, string(raw))

	doc, err := bson.Marshal(DefaultSalesContact)
	require.NoError(t, err)
	var keys bson.M
	require.NoError(t, bson.Unmarshal(doc, &keys))
	assert.Equal(t, "CEO", keys["position"])
	assert.Equal(t, "Convent Garden, London, UK", keys["address"])
	assert.NotContains(t, keys, "title")
	assert.NotContains(t, keys, "location")
}

func TestCreateRoundTripsNumericVehicleFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := persistence.NewMemoryGateway()
	e := NewEngine(gw)

	s := selectedSession()
	s.Collect(statex.FieldAddress, "1 Road")
	id, err := e.Create(ctx, s, Request{})
	require.NoError(t, err)

	o, err := gw.FindOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, o.Vehicle["price"])
	assert.Equal(t, 2021, o.Vehicle["year"])
	assert.Equal(t, 15000, o.Vehicle["mileage"])
}

func TestBuildPrecedence(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, WithClock(func() time.Time { return fixedNow }))
	s := selectedSession()
	s.Collect(statex.FieldAddress, "collected address")
	s.Collect(statex.FieldPhone, "111")

	o, err := e.Build(s, Request{BuyerAddress: "explicit address", BuyerEmail: "x@y.com"})
	require.NoError(t, err)
	assert.Equal(t, "explicit address", o.BuyerAddress)
	assert.Equal(t, "111", o.BuyerPhone)
	assert.Equal(t, "x@y.com", o.BuyerEmail)
	assert.Equal(t, "buyer@example.com", o.BuyerName, "name falls back to the session email")
	assert.Equal(t, "buyer@example.com", o.UserEmail)

	override := statex.Vehicle{"make": "Kia", "price": "18000"}
	o, err = e.Build(s, Request{Vehicle: override, SalesContact: &persistence.SalesContact{Name: "Sam"}})
	require.NoError(t, err)
	assert.Equal(t, "Kia", o.Vehicle["make"])
	assert.Equal(t, 18000.0, o.Vehicle["price"])
	assert.Equal(t, "Sam", o.SalesContact.Name)
}

func TestBuildValidation(t *testing.T) {
	t.Parallel()

	e := NewEngine(persistence.NewMemoryGateway())

	noAddress := selectedSession()
	_, err := e.Create(context.Background(), noAddress, Request{})
	assert.ErrorIs(t, err, contractx.ErrValidation)
	assert.False(t, noAddress.HasOrder())

	noVehicle := statex.NewSession("s2", "", fixedNow)
	noVehicle.Collect(statex.FieldAddress, "1 Road")
	_, err = e.Create(context.Background(), noVehicle, Request{})
	assert.ErrorIs(t, err, contractx.ErrValidation)

	_, err = e.Create(context.Background(), nil, Request{})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestCreateDeadLettersOnStoreFailure(t *testing.T) {
	t.Parallel()

	mem := persistence.NewMemoryGateway()
	persister := &recordingPersister{}
	pub := &recordingPublisher{}
	e := NewEngine(brokenOrders{mem}, WithPersister(persister), WithPublisher(pub))

	s := selectedSession()
	s.Collect(statex.FieldAddress, "12 Main St")

	_, err := e.Create(context.Background(), s, Request{})
	require.ErrorIs(t, err, contractx.ErrDependency)
	assert.Contains(t, err.Error(), "write concern timeout")

	assert.False(t, s.HasOrder())
	assert.Equal(t, statex.StageVehicleSelected, s.Stage, "stage unchanged so the user can retry")
	assert.Empty(t, persister.calls)
	assert.Empty(t, pub.bodies)

	failed := mem.FailedWrites()
	require.Len(t, failed, 1)
	assert.Equal(t, persistence.CollectionOrders, failed[0].Collection)
	assert.Equal(t, "12 Main St", failed[0].Doc["buyer_address"])
	assert.Equal(t, "*errors.errorString", failed[0].ErrorType)
}

func TestCreateDeadLettersAfterInsertTimeout(t *testing.T) {
	t.Parallel()

	mem := persistence.NewMemoryGateway()
	gw := &hangingOrders{MemoryGateway: mem}
	e := NewEngine(gw, WithWriteTimeout(30*time.Millisecond))

	s := selectedSession()
	s.Collect(statex.FieldAddress, "12 Main St")

	start := time.Now()
	_, err := e.Create(context.Background(), s, Request{})
	require.ErrorIs(t, err, contractx.ErrDependency)
	assert.Contains(t, err.Error(), context.DeadlineExceeded.Error())
	assert.Less(t, time.Since(start), 2*time.Second, "insert bounded by the write timeout")
	assert.False(t, s.HasOrder())

	gw.mu.Lock()
	letterErrs := append([]error(nil), gw.letterErrs...)
	gw.mu.Unlock()
	require.Len(t, letterErrs, 1)
	assert.NoError(t, letterErrs[0], "dead letter needs a live context")

	failed := mem.FailedWrites()
	require.Len(t, failed, 1)
	assert.Equal(t, persistence.CollectionOrders, failed[0].Collection)
	assert.Equal(t, "12 Main St", failed[0].Doc["buyer_address"])
}

func TestCreateIgnoresNotificationFailure(t *testing.T) {
	t.Parallel()

	e := NewEngine(persistence.NewMemoryGateway(), WithPublisher(&recordingPublisher{err: errors.New("qstash down")}))
	s := selectedSession()
	s.Collect(statex.FieldAddress, "12 Main St")

	id, err := e.Create(context.Background(), s, Request{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCleanVehicle(t *testing.T) {
	t.Parallel()

	got := CleanVehicle("s1", statex.Vehicle{
		"make":        "Ford",
		"year":        "2019",
		"price":       "not a number",
		"mileage":     nil,
		"description": []string{"clean", "one owner"},
		"color":       "red",
	})
	assert.Equal(t, map[string]any{
		"make":        "Ford",
		"year":        2019,
		"price":       "not a number",
		"mileage":     nil,
		"description": "[clean one owner]",
	}, got)
}
