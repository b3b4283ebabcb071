package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGateway keeps every table in process memory. Used in tests and when
// no database is configured.
type MemoryGateway struct {
	mu            sync.RWMutex
	users         map[string]User
	conversations []Conversation
	orders        map[string]Order
	summaries     map[string]ConversationSummary
	failed        []FailedWrite
}

var _ Gateway = (*MemoryGateway)(nil)

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		users:     make(map[string]User),
		orders:    make(map[string]Order),
		summaries: make(map[string]ConversationSummary),
	}
}

func (g *MemoryGateway) Close() error { return nil }

func (g *MemoryGateway) FindUserByEmail(_ context.Context, email string) (*User, error) {
	if err := requireKey("email", email); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.users[strings.TrimSpace(email)]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return cloneUser(u), nil
}

func (g *MemoryGateway) FindUserBySessionID(_ context.Context, sessionID string) (*User, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, u := range g.users {
		if u.CurrentSession != nil && u.CurrentSession.SessionID == sessionID {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("%w: user for session %s", ErrNotFound, sessionID)
}

func (g *MemoryGateway) UpsertUserSession(_ context.Context, email string, cur CurrentSession) error {
	if err := requireKey("email", email); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	now := time.Now().UTC()
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = now
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	u := g.users[email]
	u.Email = email
	u.CurrentSession = cloneCurrent(&cur)
	u.LastSessionID = cur.SessionID
	u.UpdatedAt = now
	g.users[email] = u
	return nil
}

func (g *MemoryGateway) UpdateUserSummary(_ context.Context, email, sessionID, summary string) error {
	if err := requireKey("email", email); err != nil {
		return err
	}
	email = strings.TrimSpace(email)

	g.mu.Lock()
	defer g.mu.Unlock()
	u := g.users[email]
	u.Email = email
	u.RecentSummary = summary
	u.LastSessionID = sessionID
	u.UpdatedAt = time.Now().UTC()
	g.users[email] = u
	return nil
}

func (g *MemoryGateway) InsertConversation(_ context.Context, c *Conversation) error {
	if c == nil {
		return fmt.Errorf("%w: nil conversation", ErrInvalidArgs)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conversations = append(g.conversations, *c)
	return nil
}

func (g *MemoryGateway) ListConversation(_ context.Context, sessionID string, limit int) ([]Conversation, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	g.mu.RLock()
	rows := make([]Conversation, 0, 8)
	for _, c := range g.conversations {
		if c.SessionID == sessionID {
			rows = append(rows, c)
		}
	}
	g.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].TurnIndex < rows[j].TurnIndex
		}
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

func (g *MemoryGateway) InsertOrder(_ context.Context, o *Order) (string, error) {
	if o == nil {
		return "", fmt.Errorf("%w: nil order", ErrInvalidArgs)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[o.ID] = *o
	return o.ID, nil
}

func (g *MemoryGateway) FindOrder(_ context.Context, orderID string) (*Order, error) {
	if err := requireKey("order_id", orderID); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return &o, nil
}

func (g *MemoryGateway) UpsertSummary(_ context.Context, s *ConversationSummary) error {
	if s == nil {
		return fmt.Errorf("%w: nil summary", ErrInvalidArgs)
	}
	if err := requireKey("session_id", s.SessionID); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.summaries[s.SessionID] = *s
	return nil
}

func (g *MemoryGateway) FindSummary(_ context.Context, sessionID string) (*ConversationSummary, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.summaries[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: summary %s", ErrNotFound, sessionID)
	}
	return &s, nil
}

func (g *MemoryGateway) InsertFailedWrite(_ context.Context, f *FailedWrite) error {
	if f == nil {
		return fmt.Errorf("%w: nil failed write", ErrInvalidArgs)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, *f)
	return nil
}

// FailedWrites returns a copy of the dead-letter log.
func (g *MemoryGateway) FailedWrites() []FailedWrite {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]FailedWrite, len(g.failed))
	copy(out, g.failed)
	return out
}

// Orders returns every stored order.
func (g *MemoryGateway) Orders() []Order {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Order, 0, len(g.orders))
	for _, o := range g.orders {
		out = append(out, o)
	}
	return out
}

func cloneUser(u User) *User {
	out := u
	out.CurrentSession = cloneCurrent(u.CurrentSession)
	return &out
}

func cloneCurrent(c *CurrentSession) *CurrentSession {
	if c == nil {
		return nil
	}
	out := *c
	if c.Collected != nil {
		out.Collected = make(map[string]string, len(c.Collected))
		for k, v := range c.Collected {
			out.Collected[k] = v
		}
	}
	return &out
}
