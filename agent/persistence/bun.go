package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OpenBunDB opens a Postgres handle through pgdriver.
func OpenBunDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(strings.TrimSpace(dsn))))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Models lists the tables owned by this package, in creation order.
func Models() []any {
	return []any{
		(*User)(nil),
		(*Conversation)(nil),
		(*Order)(nil),
		(*ConversationSummary)(nil),
		(*FailedWrite)(nil),
	}
}

// CreateSchema creates the given tables when missing.
func CreateSchema(ctx context.Context, db *bun.DB, models ...any) error {
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", m, err)
		}
	}
	indexes := []struct{ name, table, expr string }{
		{"conversations_session_ts_idx", "conversations", "session_id, timestamp"},
		{"users_current_session_idx", "users", "(current_session->>'session_id')"},
	}
	for _, ix := range indexes {
		q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", ix.name, ix.table, ix.expr)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}

type BunGateway struct {
	db *bun.DB
}

var _ Gateway = (*BunGateway)(nil)

func NewBunGateway(db *bun.DB) *BunGateway {
	return &BunGateway{db: db}
}

func (g *BunGateway) DB() *bun.DB { return g.db }

func (g *BunGateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

func (g *BunGateway) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	if err := requireKey("email", email); err != nil {
		return nil, err
	}
	u := new(User)
	err := g.db.NewSelect().Model(u).Where("email = ?", strings.TrimSpace(email)).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user %s", email)
	}
	return u, nil
}

func (g *BunGateway) FindUserBySessionID(ctx context.Context, sessionID string) (*User, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	u := new(User)
	err := g.db.NewSelect().Model(u).
		Where("current_session->>'session_id' = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user for session %s", sessionID)
	}
	return u, nil
}

func (g *BunGateway) UpsertUserSession(ctx context.Context, email string, cur CurrentSession) error {
	if err := requireKey("email", email); err != nil {
		return err
	}
	now := time.Now().UTC()
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = now
	}
	u := &User{
		Email:          strings.TrimSpace(email),
		CurrentSession: &cur,
		LastSessionID:  cur.SessionID,
		UpdatedAt:      now,
	}
	_, err := g.db.NewInsert().Model(u).
		On("CONFLICT (email) DO UPDATE").
		Set("current_session = EXCLUDED.current_session").
		Set("last_session_id = EXCLUDED.last_session_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (g *BunGateway) UpdateUserSummary(ctx context.Context, email, sessionID, summary string) error {
	if err := requireKey("email", email); err != nil {
		return err
	}
	u := &User{
		Email:         strings.TrimSpace(email),
		LastSessionID: sessionID,
		RecentSummary: summary,
		UpdatedAt:     time.Now().UTC(),
	}
	_, err := g.db.NewInsert().Model(u).
		On("CONFLICT (email) DO UPDATE").
		Set("recent_summary = EXCLUDED.recent_summary").
		Set("last_session_id = EXCLUDED.last_session_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (g *BunGateway) InsertConversation(ctx context.Context, c *Conversation) error {
	if c == nil {
		return fmt.Errorf("%w: nil conversation", ErrInvalidArgs)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := g.db.NewInsert().Model(c).Exec(ctx)
	return err
}

func (g *BunGateway) ListConversation(ctx context.Context, sessionID string, limit int) ([]Conversation, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	var rows []Conversation
	q := g.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		OrderExpr("? DESC, turn_index DESC", bun.Ident("timestamp"))
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	return rows, nil
}

func (g *BunGateway) InsertOrder(ctx context.Context, o *Order) (string, error) {
	if o == nil {
		return "", fmt.Errorf("%w: nil order", ErrInvalidArgs)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, err := g.db.NewInsert().Model(o).Exec(ctx); err != nil {
		return "", err
	}
	return o.ID, nil
}

func (g *BunGateway) FindOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := requireKey("order_id", orderID); err != nil {
		return nil, err
	}
	o := new(Order)
	if err := g.db.NewSelect().Model(o).Where("id = ?", orderID).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err, "order %s", orderID)
	}
	return o, nil
}

func (g *BunGateway) UpsertSummary(ctx context.Context, s *ConversationSummary) error {
	if s == nil {
		return fmt.Errorf("%w: nil summary", ErrInvalidArgs)
	}
	if err := requireKey("session_id", s.SessionID); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	_, err := g.db.NewInsert().Model(s).
		On("CONFLICT (session_id) DO UPDATE").
		Set("user_email = EXCLUDED.user_email").
		Set("summary = EXCLUDED.summary").
		Set("message_count = EXCLUDED.message_count").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (g *BunGateway) FindSummary(ctx context.Context, sessionID string) (*ConversationSummary, error) {
	if err := requireKey("session_id", sessionID); err != nil {
		return nil, err
	}
	s := new(ConversationSummary)
	if err := g.db.NewSelect().Model(s).Where("session_id = ?", sessionID).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err, "summary %s", sessionID)
	}
	return s, nil
}

func (g *BunGateway) InsertFailedWrite(ctx context.Context, f *FailedWrite) error {
	if f == nil {
		return fmt.Errorf("%w: nil failed write", ErrInvalidArgs)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := g.db.NewInsert().Model(f).Exec(ctx)
	return err
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
	}
	return err
}
