// Package session owns the table of active sessions. Each session is
// single-writer: a Lease gives one turn exclusive access until released.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	memoryx "github.com/Yuvaramesh/sales-agent/agent/memory"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	promptx "github.com/Yuvaramesh/sales-agent/agent/prompt"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

const (
	defaultHistoryLimit = 200
	defaultWriteTimeout = 5 * time.Second
	defaultLLMTimeout   = 30 * time.Second
)

type entry struct {
	mu       sync.Mutex
	sess     *statex.Session
	evicted  bool
	lastSeen atomic.Int64
}

func (e *entry) touch(now time.Time) { e.lastSeen.Store(now.UnixNano()) }

type Option func(*Manager)

func WithSnapshotStore(store statex.Store) Option {
	return func(m *Manager) { m.snapshots = store }
}

func WithSummarizer(inv contractx.Invoker) Option {
	return func(m *Manager) { m.summarizer = inv }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.writeTimeout = d
		}
	}
}

func WithLLMTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.llmTimeout = d
		}
	}
}

func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// Manager is the in-process session arena. It is the freshest copy of every
// active session; storage is written through on each mutation.
type Manager struct {
	arena      *xsync.MapOf[string, *entry]
	gateway    persistence.Gateway
	snapshots  statex.Store
	compactor  *memoryx.Compactor
	summarizer contractx.Invoker
	prompts    promptx.PromptSet

	writeTimeout time.Duration
	llmTimeout   time.Duration
	historyLimit int
	now          func() time.Time
	newID        func() string
}

func NewManager(gateway persistence.Gateway, compactor *memoryx.Compactor, opts ...Option) *Manager {
	if compactor == nil {
		compactor = memoryx.NewCompactor(nil)
	}
	m := &Manager{
		arena:        xsync.NewMapOf[string, *entry](),
		gateway:      gateway,
		compactor:    compactor,
		prompts:      promptx.LoadPromptSet(),
		writeTimeout: defaultWriteTimeout,
		llmTimeout:   defaultLLMTimeout,
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Manager) Compactor() *memoryx.Compactor { return m.compactor }

// Lease is exclusive access to one session for the duration of a turn.
type Lease struct {
	Session *statex.Session
	// Created is true when no stored state existed for the id.
	Created bool

	m        *Manager
	e        *entry
	released atomic.Bool
}

func (l *Lease) Release() {
	if l == nil || !l.released.CompareAndSwap(false, true) {
		return
	}
	l.e.touch(l.m.now())
	l.e.mu.Unlock()
}

// Acquire locks the session with the given id, hydrating it from storage
// or creating it as needed. An empty id starts a new session.
func (m *Manager) Acquire(ctx context.Context, sessionID, userEmail string) (*Lease, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = m.newID()
	}
	return m.acquire(ctx, sessionID, userEmail, true)
}

// AcquireExisting is Acquire without creation: it fails with ErrNotFound
// when neither memory nor storage knows the id.
func (m *Manager) AcquireExisting(ctx context.Context, sessionID, userEmail string) (*Lease, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}
	return m.acquire(ctx, sessionID, userEmail, false)
}

func (m *Manager) acquire(ctx context.Context, sessionID, userEmail string, create bool) (*Lease, error) {
	userEmail = strings.TrimSpace(userEmail)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, _ := m.arena.LoadOrCompute(sessionID, func() *entry { return &entry{} })
		e.mu.Lock()
		if e.evicted {
			// lost a race with eviction; the next lookup sees a fresh entry
			e.mu.Unlock()
			continue
		}

		created, loaded := false, false
		if e.sess == nil {
			sess, found := m.hydrate(ctx, sessionID, userEmail)
			if !found && !create {
				e.evicted = true
				m.arena.Delete(sessionID)
				e.mu.Unlock()
				return nil, fmt.Errorf("%w: session %s", contractx.ErrNotFound, sessionID)
			}
			e.sess = sess
			created, loaded = !found, true
		}
		if e.sess.UserEmail == "" && userEmail != "" {
			e.sess.UserEmail = userEmail
		}
		e.touch(m.now())

		lease := &Lease{Session: e.sess, Created: created, m: m, e: e}
		if loaded {
			m.Persist(ctx, e.sess)
		}
		return lease, nil
	}
}

// hydrate restores a session in order: snapshot store, user record plus
// conversation rows, conversation rows alone. It reports whether any stored
// state was found; otherwise it returns a fresh session.
func (m *Manager) hydrate(ctx context.Context, sessionID, userEmail string) (*statex.Session, bool) {
	rctx, cancel := m.writeContext(ctx)
	defer cancel()

	if m.snapshots != nil {
		sess, err := m.snapshots.Load(rctx, sessionID)
		switch {
		case err == nil:
			return sess, true
		case !errors.Is(err, statex.ErrStateNotFound):
			log.Warn().Err(err).Str("session_id", sessionID).Msg("snapshot load failed")
		}
	}

	if m.gateway == nil {
		return statex.NewSession(sessionID, userEmail, m.now()), false
	}

	rows, err := m.gateway.ListConversation(rctx, sessionID, m.historyLimit)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("conversation history load failed")
		rows = nil
	}

	user, err := m.gateway.FindUserBySessionID(rctx, sessionID)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("user lookup failed")
	}
	if err == nil && user.CurrentSession != nil {
		sess := fromCurrent(sessionID, user, m.now())
		m.restoreMessages(sess, rows)
		log.Info().Str("session_id", sessionID).Str("stage", string(sess.Stage)).Msg("session hydrated from user record")
		return sess, true
	}

	if len(rows) > 0 {
		sess := statex.NewSession(sessionID, firstNonEmpty(userEmail, rows[0].UserEmail), rows[0].Timestamp)
		m.restoreMessages(sess, rows)
		if _, err := m.gateway.FindSummary(rctx, sessionID); err == nil {
			sess.Stage = statex.StageFinished
		}
		log.Info().Str("session_id", sessionID).Int("turns", len(rows)).Msg("session hydrated from conversation log")
		return sess, true
	}

	return statex.NewSession(sessionID, userEmail, m.now()), false
}

func fromCurrent(sessionID string, u *persistence.User, now time.Time) *statex.Session {
	cur := u.CurrentSession
	sess := statex.NewSession(sessionID, u.Email, now)
	sess.Stage = statex.ParseStage(cur.Stage)
	sess.Awaiting = cur.Awaiting
	sess.OrderID = cur.OrderID
	sess.MemorySummary = cur.MemorySummary
	if len(cur.SelectedVehicle) > 0 {
		sess.SelectedVehicle = statex.Vehicle(cur.SelectedVehicle).Clone()
	}
	for k, v := range cur.Collected {
		sess.Collect(k, v)
	}
	if !cur.UpdatedAt.IsZero() {
		sess.UpdatedAt = cur.UpdatedAt
	}
	return sess
}

// restoreMessages rebuilds the message log from conversation rows. When a
// memory summary exists, only the recent window is restored so already
// summarized turns are not folded twice.
func (m *Manager) restoreMessages(sess *statex.Session, rows []persistence.Conversation) {
	if len(rows) == 0 {
		return
	}
	if !rows[0].Timestamp.IsZero() && rows[0].Timestamp.Before(sess.StartTime) {
		sess.StartTime = rows[0].Timestamp
	}
	maxIndex := -1
	for _, r := range rows {
		if r.TurnIndex > maxIndex {
			maxIndex = r.TurnIndex
		}
	}
	sess.TurnCount = max(maxIndex+1, len(rows))

	if sess.MemorySummary != "" {
		keep := m.compactor.Policy().RecentKeep
		if len(rows) > keep {
			rows = rows[len(rows)-keep:]
		}
	}
	sess.Messages = make([]statex.Turn, 0, len(rows))
	for _, r := range rows {
		sess.Messages = append(sess.Messages, statex.Turn{
			User:      r.UserMessage,
			Assistant: r.BotResponse,
			Agent:     r.AgentUsed,
			Timestamp: r.Timestamp,
		})
	}
	if sess.MemorySummary != "" {
		sess.LastSummaryIndex = len(sess.Messages)
	}
}

// Persist writes the session through to storage. Failures are logged and
// dead-lettered; they never reach the caller.
func (m *Manager) Persist(ctx context.Context, sess *statex.Session) {
	if sess == nil {
		return
	}
	sess.Touch(m.now())

	if m.snapshots != nil {
		sctx, cancel := m.writeContext(ctx)
		if err := m.snapshots.Save(sctx, sess); err != nil {
			log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("snapshot save failed")
		}
		cancel()
	}

	if m.gateway == nil || sess.UserEmail == "" {
		return
	}
	cur := CurrentDocument(sess)
	wctx, cancel := m.writeContext(ctx)
	err := m.gateway.UpsertUserSession(wctx, sess.UserEmail, cur)
	cancel()
	if err != nil {
		m.deadLetter(ctx, persistence.CollectionUsers, sess.SessionID, map[string]any{
			"email":           sess.UserEmail,
			"current_session": cur,
		}, err)
	}
}

// CurrentDocument is the write-through projection stored on the user record.
func CurrentDocument(sess *statex.Session) persistence.CurrentSession {
	cur := persistence.CurrentSession{
		SessionID:     sess.SessionID,
		Stage:         string(sess.Stage),
		OrderID:       sess.OrderID,
		MemorySummary: sess.MemorySummary,
		Awaiting:      sess.Awaiting,
		UpdatedAt:     sess.UpdatedAt,
	}
	if len(sess.SelectedVehicle) > 0 {
		cur.SelectedVehicle = map[string]any(sess.SelectedVehicle.Clone())
	}
	if len(sess.Collected) > 0 {
		cur.Collected = make(map[string]string, len(sess.Collected))
		for k, v := range sess.Collected {
			cur.Collected[k] = v
		}
	}
	return cur
}

// RecordTurn appends a turn, stores its conversation row, compacts the log
// when due and writes the session through.
func (m *Manager) RecordTurn(ctx context.Context, sess *statex.Session, userText, response, agent string) {
	now := m.now().UTC()
	sess.AppendTurn(statex.Turn{
		User:      userText,
		Assistant: response,
		Agent:     agent,
		Timestamp: now,
	})

	if m.gateway != nil {
		row := &persistence.Conversation{
			SessionID:   sess.SessionID,
			UserEmail:   sess.UserEmail,
			UserMessage: persistence.SanitizeText(userText),
			BotResponse: persistence.SanitizeText(response),
			AgentUsed:   agent,
			Timestamp:   now,
			TurnIndex:   sess.TurnCount - 1,
		}
		wctx, cancel := m.writeContext(ctx)
		err := m.gateway.InsertConversation(wctx, row)
		cancel()
		if err != nil {
			m.deadLetter(ctx, persistence.CollectionConversations, sess.SessionID, row, err)
		}
	}

	m.compact(ctx, sess)
	m.Persist(ctx, sess)
}

// ContextFor compacts the log if due and renders the bounded prompt context.
func (m *Manager) ContextFor(ctx context.Context, sess *statex.Session) string {
	m.compact(ctx, sess)
	return m.compactor.BuildContext(sess)
}

func (m *Manager) compact(ctx context.Context, sess *statex.Session) {
	if !m.compactor.NeedsCompaction(sess) {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.llmTimeout)
	defer cancel()
	m.compactor.Compact(cctx, sess)
}

// Peek returns a copy of an in-memory session without locking it for a turn.
func (m *Manager) Peek(sessionID string) (*statex.Session, bool) {
	e, ok := m.arena.Load(sessionID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil || e.evicted {
		return nil, false
	}
	return e.sess.Clone(), true
}

// Size reports the number of sessions held in memory.
func (m *Manager) Size() int { return m.arena.Size() }

// Evict drops a session from memory after a final write-through. The caller
// must hold its lease; the lease is released.
func (m *Manager) Evict(ctx context.Context, l *Lease) {
	if l == nil || l.released.Load() {
		return
	}
	m.Persist(ctx, l.Session)
	l.e.evicted = true
	m.arena.Delete(l.Session.SessionID)
	l.Release()
}

// deadLetter records a failed write under a fresh deadline, since the failed
// write may have used up its own.
func (m *Manager) deadLetter(ctx context.Context, collection, sessionID string, doc any, cause error) {
	log.Error().Err(cause).
		Str("session_id", sessionID).
		Str("collection", collection).
		Msg("write failed, recording dead letter")
	if m.gateway == nil {
		return
	}
	dctx, cancel := m.writeContext(ctx)
	defer cancel()
	if err := m.gateway.InsertFailedWrite(dctx, persistence.NewFailedWrite(collection, sessionID, doc, cause)); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID).
			Str("collection", collection).
			Msg("dead letter write failed")
	}
}

// writeContext detaches storage writes from request cancellation and bounds
// them with the write timeout.
func (m *Manager) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
