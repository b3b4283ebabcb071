// Package persistence is the durable record store behind sessions and orders.
// It holds no business rules: callers decide what to write and when.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidArgs = errors.New("invalid persistence arguments")
)

// Collection names, used for dead-letter records and log fields.
const (
	CollectionUsers         = "users"
	CollectionConversations = "conversations"
	CollectionOrders        = "orders"
	CollectionSummaries     = "conversation_summaries"
	CollectionFailedWrites  = "failed_writes"
)

type Gateway interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserBySessionID(ctx context.Context, sessionID string) (*User, error)
	UpsertUserSession(ctx context.Context, email string, cur CurrentSession) error
	UpdateUserSummary(ctx context.Context, email, sessionID, summary string) error

	InsertConversation(ctx context.Context, c *Conversation) error
	// ListConversation returns at most limit of the newest rows for a
	// session, oldest first.
	ListConversation(ctx context.Context, sessionID string, limit int) ([]Conversation, error)

	InsertOrder(ctx context.Context, o *Order) (string, error)
	FindOrder(ctx context.Context, orderID string) (*Order, error)

	UpsertSummary(ctx context.Context, s *ConversationSummary) error
	FindSummary(ctx context.Context, sessionID string) (*ConversationSummary, error)

	InsertFailedWrite(ctx context.Context, f *FailedWrite) error

	Close() error
}

// CurrentSession is the write-through copy of live dialogue state kept on
// the user record.
type CurrentSession struct {
	SessionID       string            `json:"session_id" bson:"session_id"`
	Stage           string            `json:"stage" bson:"stage"`
	SelectedVehicle map[string]any    `json:"selected_vehicle,omitempty" bson:"selected_vehicle,omitempty"`
	OrderID         string            `json:"order_id,omitempty" bson:"order_id,omitempty"`
	MemorySummary   string            `json:"memory_summary,omitempty" bson:"memory_summary,omitempty"`
	Collected       map[string]string `json:"collected,omitempty" bson:"collected,omitempty"`
	Awaiting        string            `json:"awaiting,omitempty" bson:"awaiting,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at" bson:"updated_at"`
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u" bson:"-" json:"-"`

	Email          string          `bun:"email,pk" bson:"email" json:"email"`
	CurrentSession *CurrentSession `bun:"current_session,type:jsonb" bson:"current_session,omitempty" json:"current_session,omitempty"`
	LastSessionID  string          `bun:"last_session_id" bson:"last_session_id,omitempty" json:"last_session_id,omitempty"`
	RecentSummary  string          `bun:"recent_summary" bson:"recent_summary,omitempty" json:"recent_summary,omitempty"`
	UpdatedAt      time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" bson:"updated_at" json:"updated_at"`
}

type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:c" bson:"-" json:"-"`

	ID          string    `bun:"id,pk" bson:"_id" json:"id"`
	SessionID   string    `bun:"session_id,notnull" bson:"session_id" json:"session_id"`
	UserEmail   string    `bun:"user_email" bson:"user_email" json:"user_email"`
	UserMessage string    `bun:"user_message" bson:"user_message" json:"user_message"`
	BotResponse string    `bun:"bot_response" bson:"bot_response" json:"bot_response"`
	AgentUsed   string    `bun:"agent_used" bson:"agent_used" json:"agent_used"`
	Timestamp   time.Time `bun:"timestamp,notnull" bson:"timestamp" json:"timestamp"`
	TurnIndex   int       `bun:"turn_index" bson:"turn_index" json:"turn_index"`
}

type SalesContact struct {
	Name     string `json:"name" bson:"name"`
	Position string `json:"position" bson:"position"`
	Phone    string `json:"phone" bson:"phone"`
	Address  string `json:"address" bson:"address"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o" bson:"-" json:"-"`

	ID                  string         `bun:"id,pk" bson:"_id" json:"id"`
	SessionID           string         `bun:"session_id" bson:"session_id" json:"session_id"`
	UserEmail           string         `bun:"user_email" bson:"user_email" json:"user_email"`
	BuyerName           string         `bun:"buyer_name" bson:"buyer_name" json:"buyer_name"`
	BuyerAddress        string         `bun:"buyer_address,notnull" bson:"buyer_address" json:"buyer_address"`
	BuyerPhone          string         `bun:"buyer_phone" bson:"buyer_phone" json:"buyer_phone"`
	BuyerEmail          string         `bun:"buyer_email" bson:"buyer_email" json:"buyer_email"`
	Vehicle             map[string]any `bun:"vehicle,type:jsonb" bson:"vehicle" json:"vehicle"`
	SalesContact        SalesContact   `bun:"sales_contact,type:jsonb" bson:"sales_contact" json:"sales_contact"`
	Timestamp           time.Time      `bun:"timestamp,notnull" bson:"timestamp" json:"timestamp"`
	OrderDate           string         `bun:"order_date" bson:"order_date" json:"order_date"`
	ConversationSummary string         `bun:"conversation_summary" bson:"conversation_summary" json:"conversation_summary"`
	Status              string         `bun:"status,notnull" bson:"status" json:"status"`
}

type ConversationSummary struct {
	bun.BaseModel `bun:"table:conversation_summaries,alias:cs" bson:"-" json:"-"`

	SessionID    string    `bun:"session_id,pk" bson:"session_id" json:"session_id"`
	UserEmail    string    `bun:"user_email" bson:"user_email" json:"user_email"`
	Summary      string    `bun:"summary" bson:"summary" json:"summary"`
	MessageCount int       `bun:"message_count" bson:"message_count" json:"message_count"`
	StartTime    time.Time `bun:"start_time" bson:"start_time" json:"start_time"`
	EndTime      time.Time `bun:"end_time" bson:"end_time" json:"end_time"`
	UpdatedAt    time.Time `bun:"updated_at" bson:"updated_at" json:"updated_at"`
}

// FailedWrite is a dead-letter record: the document that could not be
// stored plus the error that prevented it.
type FailedWrite struct {
	bun.BaseModel `bun:"table:failed_writes,alias:fw" bson:"-" json:"-"`

	ID         string         `bun:"id,pk" bson:"_id" json:"id"`
	Collection string         `bun:"collection,notnull" bson:"collection" json:"collection"`
	Error      string         `bun:"error" bson:"error" json:"error"`
	ErrorType  string         `bun:"error_type" bson:"error_type" json:"error_type"`
	Doc        map[string]any `bun:"doc,type:jsonb" bson:"doc" json:"doc"`
	SessionID  string         `bun:"session_id" bson:"session_id" json:"session_id"`
	Timestamp  time.Time      `bun:"timestamp,notnull" bson:"timestamp" json:"timestamp"`
}

// NewFailedWrite builds a dead-letter record for doc. doc is flattened to a
// JSON object so every backend stores the same shape.
func NewFailedWrite(collection, sessionID string, doc any, cause error) *FailedWrite {
	f := &FailedWrite{
		Collection: collection,
		Doc:        ToDoc(doc),
		SessionID:  sessionID,
		Timestamp:  time.Now().UTC(),
	}
	if cause != nil {
		f.Error = cause.Error()
		root := cause
		for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
			root = next
		}
		f.ErrorType = fmt.Sprintf("%T", root)
	}
	return f
}

// ToDoc converts a record to a generic JSON object. Values that do not encode
// to an object are wrapped under "value".
func ToDoc(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"value": fmt.Sprint(v)}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"value": string(raw)}
	}
	return out
}

const maxTextLen = 4000

// SanitizeText collapses runs of whitespace and truncates long text with an
// ellipsis.
func SanitizeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) > maxTextLen {
		return string([]rune(s)[:maxTextLen]) + "..."
	}
	return s
}

func requireKey(name, val string) error {
	if strings.TrimSpace(val) == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidArgs, name)
	}
	return nil
}
