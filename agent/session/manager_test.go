package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

type fakeSnapshots struct {
	mu    sync.Mutex
	data  map[string]*statex.Session
	saves int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{data: map[string]*statex.Session{}}
}

func (f *fakeSnapshots) Load(_ context.Context, id string) (*statex.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.data[id]
	if !ok {
		return nil, statex.ErrStateNotFound
	}
	return s.Clone(), nil
}

func (f *fakeSnapshots) Save(_ context.Context, s *statex.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.data[s.SessionID] = s.Clone()
	return nil
}

func (f *fakeSnapshots) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, id)
	return nil
}

type failingConversations struct {
	*persistence.MemoryGateway
}

func (f failingConversations) InsertConversation(context.Context, *persistence.Conversation) error {
	return errors.New("disk full")
}

// hangingWrites blocks conversation and summary writes until their context
// expires and notes the context state of each dead letter.
type hangingWrites struct {
	*persistence.MemoryGateway

	mu         sync.Mutex
	letterErrs []error
}

func (h *hangingWrites) InsertConversation(ctx context.Context, _ *persistence.Conversation) error {
	<-ctx.Done()
	return ctx.Err()
}

func (h *hangingWrites) UpsertSummary(ctx context.Context, _ *persistence.ConversationSummary) error {
	<-ctx.Done()
	return ctx.Err()
}

func (h *hangingWrites) InsertFailedWrite(ctx context.Context, f *persistence.FailedWrite) error {
	h.mu.Lock()
	h.letterErrs = append(h.letterErrs, ctx.Err())
	h.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.MemoryGateway.InsertFailedWrite(ctx, f)
}

type stubInvoker struct {
	reply string
	err   error
}

func (s stubInvoker) Invoke(context.Context, string) (string, error) { return s.reply, s.err }

func fixedIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestAcquireNewSessionGetsID(t *testing.T) {
	t.Parallel()

	gw := persistence.NewMemoryGateway()
	m := NewManager(gw, nil, WithIDGenerator(fixedIDs("sid-1")))

	l, err := m.Acquire(context.Background(), "", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", l.Session.SessionID)
	assert.True(t, l.Created)
	assert.Equal(t, statex.StageInit, l.Session.Stage)
	l.Release()

	u, err := gw.FindUserBySessionID(context.Background(), "sid-1")
	require.NoError(t, err, "fresh session is written through")
	assert.Equal(t, "a@b.com", u.Email)
}

func TestAcquireReturnsSameInMemorySession(t *testing.T) {
	t.Parallel()

	m := NewManager(persistence.NewMemoryGateway(), nil)
	l, err := m.Acquire(context.Background(), "s1", "")
	require.NoError(t, err)
	l.Session.Collect(statex.FieldName, "Ann")
	l.Release()

	l2, err := m.Acquire(context.Background(), "s1", "late@b.com")
	require.NoError(t, err)
	defer l2.Release()
	assert.False(t, l2.Created)
	assert.Equal(t, "Ann", l2.Session.Field(statex.FieldName))
	assert.Equal(t, "late@b.com", l2.Session.UserEmail, "email fills in once known")
}

func TestAcquireSerializesTurnsPerSession(t *testing.T) {
	t.Parallel()

	m := NewManager(persistence.NewMemoryGateway(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Acquire(context.Background(), "shared", "")
			if err != nil {
				t.Error(err)
				return
			}
			n := l.Session.TurnCount
			time.Sleep(time.Millisecond)
			l.Session.TurnCount = n + 1
			l.Release()
		}()
	}
	wg.Wait()

	got, ok := m.Peek("shared")
	require.True(t, ok)
	assert.Equal(t, 20, got.TurnCount, "no lost updates")
}

func TestHydrateFromUserRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := persistence.NewMemoryGateway()
	require.NoError(t, gw.UpsertUserSession(ctx, "a@b.com", persistence.CurrentSession{
		SessionID:       "s1",
		Stage:           "vehicle_selected",
		SelectedVehicle: map[string]any{"make": "Kia", "price": 18000.0},
		Collected:       map[string]string{"phone": "555"},
		Awaiting:        "address",
	}))
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, gw.InsertConversation(ctx, &persistence.Conversation{
			SessionID: "s1", UserMessage: fmt.Sprintf("u%d", i), BotResponse: "b", AgentUsed: "supervisor",
			Timestamp: base.Add(time.Duration(i) * time.Second), TurnIndex: i,
		}))
	}

	m := NewManager(gw, nil)
	l, err := m.Acquire(ctx, "s1", "")
	require.NoError(t, err)
	defer l.Release()

	s := l.Session
	assert.False(t, l.Created)
	assert.Equal(t, "a@b.com", s.UserEmail)
	assert.Equal(t, statex.StageVehicleSelected, s.Stage)
	assert.Equal(t, statex.AwaitingAddress, s.Awaiting)
	assert.Equal(t, "Kia", s.SelectedVehicle.Str("make"))
	assert.Equal(t, "555", s.Field(statex.FieldPhone))
	require.Len(t, s.Messages, 3)
	assert.Equal(t, "u0", s.Messages[0].User)
	assert.Equal(t, 3, s.TurnCount)
	assert.Equal(t, base, s.StartTime)
}

func TestHydrateFromConversationRowsOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := persistence.NewMemoryGateway()
	require.NoError(t, gw.InsertConversation(ctx, &persistence.Conversation{
		SessionID: "anon", UserEmail: "x@y.com", UserMessage: "hi", BotResponse: "hello", Timestamp: time.Now(),
	}))

	m := NewManager(gw, nil)
	l, err := m.Acquire(ctx, "anon", "")
	require.NoError(t, err)
	defer l.Release()
	assert.False(t, l.Created)
	assert.Equal(t, "x@y.com", l.Session.UserEmail)
	require.Len(t, l.Session.Messages, 1)
	assert.Equal(t, statex.StageInit, l.Session.Stage)
}

func TestHydrateRowsWithSummaryIsFinished(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := persistence.NewMemoryGateway()
	require.NoError(t, gw.InsertConversation(ctx, &persistence.Conversation{
		SessionID: "old", UserEmail: "x@y.com", UserMessage: "hi", BotResponse: "hello", Timestamp: time.Now(),
	}))
	require.NoError(t, gw.UpsertSummary(ctx, &persistence.ConversationSummary{
		SessionID: "old", UserEmail: "x@y.com", Summary: "Said hi.", MessageCount: 1,
	}))

	m := NewManager(gw, nil)
	l, err := m.AcquireExisting(ctx, "old", "")
	require.NoError(t, err)
	assert.True(t, l.Session.Finished())

	res := m.End(ctx, l)
	assert.True(t, res.AlreadyEnded)
	assert.Equal(t, "Said hi.", res.Summary)
}

func TestHydratePrefersSnapshot(t *testing.T) {
	t.Parallel()

	snaps := newFakeSnapshots()
	seed := statex.NewSession("s1", "a@b.com", time.Now())
	seed.LastResults = []statex.Vehicle{{"make": "Audi"}}
	require.NoError(t, snaps.Save(context.Background(), seed))

	m := NewManager(persistence.NewMemoryGateway(), nil, WithSnapshotStore(snaps))
	l, err := m.Acquire(context.Background(), "s1", "")
	require.NoError(t, err)
	defer l.Release()
	require.Len(t, l.Session.LastResults, 1)
	assert.Equal(t, "Audi", l.Session.LastResults[0].Str("make"))
}

func TestAcquireExistingUnknown(t *testing.T) {
	t.Parallel()

	m := NewManager(persistence.NewMemoryGateway(), nil)
	_, err := m.AcquireExisting(context.Background(), "ghost", "")
	require.ErrorIs(t, err, contractx.ErrNotFound)
	assert.Equal(t, 0, m.Size(), "lookup leaves no entry behind")
}

func TestRecordTurnWritesConversationAndCompacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := persistence.NewMemoryGateway()
	m := NewManager(gw, nil)

	l, err := m.Acquire(ctx, "s1", "a@b.com")
	require.NoError(t, err)
	for i := 1; i <= 13; i++ {
		m.RecordTurn(ctx, l.Session, fmt.Sprintf("q%d   with  spaces", i), fmt.Sprintf("a%d", i), "supervisor")
	}
	sess := l.Session
	l.Release()

	assert.Len(t, sess.Messages, 9)
	assert.NotEmpty(t, sess.MemorySummary)
	assert.Equal(t, 13, sess.TurnCount)

	rows, err := gw.ListConversation(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 13)
	assert.Equal(t, "q1 with spaces", rows[0].UserMessage)
	assert.Equal(t, 12, rows[12].TurnIndex)

	u, err := gw.FindUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, sess.MemorySummary, u.CurrentSession.MemorySummary)
}

func TestRecordTurnDeadLettersFailedConversation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := persistence.NewMemoryGateway()
	m := NewManager(failingConversations{mem}, nil)

	l, err := m.Acquire(ctx, "s1", "")
	require.NoError(t, err)
	m.RecordTurn(ctx, l.Session, "hello", "hi there", "supervisor")
	l.Release()

	failed := mem.FailedWrites()
	require.Len(t, failed, 1)
	assert.Equal(t, persistence.CollectionConversations, failed[0].Collection)
	assert.Equal(t, "disk full", failed[0].Error)
	assert.Equal(t, "hello", failed[0].Doc["user_message"])

	got, ok := m.Peek("s1")
	require.True(t, ok)
	assert.Len(t, got.Messages, 1, "turn still recorded in memory")
}

func TestTimedOutWritesStillDeadLetter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := persistence.NewMemoryGateway()
	gw := &hangingWrites{MemoryGateway: mem}
	m := NewManager(gw, nil, WithWriteTimeout(30*time.Millisecond))

	l, err := m.Acquire(ctx, "s1", "")
	require.NoError(t, err)
	start := time.Now()
	m.RecordTurn(ctx, l.Session, "hello", "hi there", "supervisor")
	res := m.End(ctx, l)
	assert.Less(t, time.Since(start), 2*time.Second, "writes bounded by the write timeout")
	assert.NotEmpty(t, res.Summary)

	gw.mu.Lock()
	letterErrs := append([]error(nil), gw.letterErrs...)
	gw.mu.Unlock()
	require.Len(t, letterErrs, 2)
	for _, e := range letterErrs {
		assert.NoError(t, e, "dead letter needs a live context")
	}

	failed := mem.FailedWrites()
	require.Len(t, failed, 2)
	assert.Equal(t, persistence.CollectionConversations, failed[0].Collection)
	assert.Equal(t, persistence.CollectionSummaries, failed[1].Collection)
	assert.Equal(t, context.DeadlineExceeded.Error(), failed[0].Error)
}

func TestEndByIDUnknown(t *testing.T) {
	t.Parallel()

	m := NewManager(persistence.NewMemoryGateway(), nil)
	_, err := m.EndByID(context.Background(), "nope", "")
	assert.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestEndStoresSummaryAndEvicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := persistence.NewMemoryGateway()
	m := NewManager(gw, nil, WithSummarizer(stubInvoker{reply: "Looked at SUVs, chose a RAV4."}))

	l, err := m.Acquire(ctx, "s1", "a@b.com")
	require.NoError(t, err)
	m.RecordTurn(ctx, l.Session, "show suvs", "here", "supervisor")
	l.Release()

	res, err := m.EndByID(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, "Looked at SUVs, chose a RAV4.", res.Summary)
	assert.Equal(t, 1, res.MessageCount)
	assert.False(t, res.AlreadyEnded)
	assert.Equal(t, 0, m.Size())

	stored, err := gw.FindSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, res.Summary, stored.Summary)

	u, err := gw.FindUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, res.Summary, u.RecentSummary)
	assert.Equal(t, "finished", u.CurrentSession.Stage)

	// ended sessions stay queryable
	again, err := m.EndByID(ctx, "s1", "")
	require.NoError(t, err)
	assert.True(t, again.AlreadyEnded)
	assert.Equal(t, res.Summary, again.Summary)
}

func TestSummarizeSessionFallback(t *testing.T) {
	t.Parallel()

	m := NewManager(nil, nil, WithSummarizer(stubInvoker{err: errors.New("boom")}))
	s := statex.NewSession("s1", "", time.Now())
	long := "I am looking for a reliable family car with lots of space and good fuel economy please"
	for _, u := range []string{long, "second", "third", "fourth"} {
		s.AppendTurn(statex.Turn{User: u, Assistant: "ok"})
	}

	got := m.SummarizeSession(context.Background(), s)
	want := "Summary (fallback): " + strings.TrimSpace(long[:80]) + " | second | third"
	assert.Equal(t, want, got)

	assert.Equal(t, "No messages to summarize.", m.SummarizeSession(context.Background(), statex.NewSession("e", "", time.Now())))
}

func TestEvictIdle(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	snaps := newFakeSnapshots()
	m := NewManager(persistence.NewMemoryGateway(), nil, WithClock(clock), WithSnapshotStore(snaps))

	l, err := m.Acquire(context.Background(), "old", "")
	require.NoError(t, err)
	l.Release()

	now = now.Add(3 * time.Hour)
	busy, err := m.Acquire(context.Background(), "busy", "")
	require.NoError(t, err)

	assert.Equal(t, 1, m.EvictIdle(context.Background(), 2*time.Hour))
	_, ok := m.Peek("old")
	assert.False(t, ok)
	busy.Release()
	_, ok = m.Peek("busy")
	assert.True(t, ok)

	// evicted sessions rehydrate from the snapshot
	l, err = m.Acquire(context.Background(), "old", "")
	require.NoError(t, err)
	assert.False(t, l.Created)
	l.Release()
}

func TestJanitorSchedule(t *testing.T) {
	t.Parallel()

	m := NewManager(nil, nil)
	j, err := NewJanitor(m, "", time.Hour)
	require.NoError(t, err)
	j.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)

	_, err = NewJanitor(m, "not a schedule", time.Hour)
	assert.Error(t, err)
}
