package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohae/deepcopy"
)

// Session is the source of truth for one conversation while it is active.
// Dialogue state is derived from its fields rather than from a separate enum:
// SelectedVehicle, OrderID, Awaiting and Collected decide which handler runs.
type Session struct {
	SessionID string `json:"session_id"`
	UserEmail string `json:"user_email"`

	Stage     Stage             `json:"stage"`
	Awaiting  string            `json:"awaiting,omitempty"`
	Collected map[string]string `json:"collected,omitempty"` // name/email/phone/address

	LastResults     []Vehicle   `json:"last_results,omitempty"`
	LastWebResults  []WebResult `json:"last_web_results,omitempty"`
	SelectedVehicle Vehicle     `json:"selected_vehicle,omitempty"`
	OrderID         string      `json:"order_id,omitempty"`

	MemorySummary    string `json:"memory_summary,omitempty"`
	Messages         []Turn `json:"messages,omitempty"`
	LastSummaryIndex int    `json:"last_summary_index"`
	TurnCount        int    `json:"turn_count"`

	StartTime time.Time `json:"start_time"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stage string

const (
	StageInit            Stage = "init"
	StageVehicleSelected Stage = "vehicle_selected"
	StageOrdered         Stage = "ordered"
	StageFinished        Stage = "finished"
)

const (
	AwaitingAddress = "address"

	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldAddress = "address"

	// AgentSystemSummary tags the placeholder turn that stands in for
	// compacted history.
	AgentSystemSummary = "system_summary"
)

type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
}

func (t Turn) IsPlaceholder() bool {
	return t.Agent == AgentSystemSummary
}

type WebResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

var (
	ErrNilSession     = errors.New("nil session")
	ErrInvalidStage   = errors.New("invalid session stage")
	ErrOrderNoVehicle = errors.New("order recorded without selected vehicle")
)

func NewSession(sessionID, userEmail string, now time.Time) *Session {
	return &Session{
		SessionID: sessionID,
		UserEmail: strings.TrimSpace(userEmail),
		Stage:     StageInit,
		Collected: make(map[string]string, 4),
		StartTime: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *Session) EnsureCollected() {
	if s.Collected == nil {
		s.Collected = make(map[string]string, 4)
	}
}

// Collect stores a buyer field. Empty values never overwrite what is known.
func (s *Session) Collect(field, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	s.EnsureCollected()
	s.Collected[field] = value
	return true
}

func (s *Session) Field(field string) string {
	if s == nil || s.Collected == nil {
		return ""
	}
	return s.Collected[field]
}

func (s *Session) HasVehicle() bool {
	return s != nil && len(s.SelectedVehicle) > 0
}

func (s *Session) HasOrder() bool {
	return s != nil && s.OrderID != ""
}

func (s *Session) HasAddress() bool {
	return s.Field(FieldAddress) != ""
}

func (s *Session) Finished() bool {
	return s != nil && s.Stage == StageFinished
}

// SelectVehicle stores a detached copy of v so later mutation of the search
// results cannot leak into an in-flight order.
func (s *Session) SelectVehicle(v Vehicle) {
	s.SelectedVehicle = v.Clone()
	s.Stage = StageVehicleSelected
	s.Awaiting = AwaitingAddress
}

// MarkOrdered stamps a placed order onto the session.
func (s *Session) MarkOrdered(orderID string, now time.Time) {
	s.OrderID = orderID
	s.Stage = StageOrdered
	s.Awaiting = ""
	s.Touch(now)
}

func (s *Session) AppendTurn(t Turn) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	s.Messages = append(s.Messages, t)
	s.TurnCount++
}

// Clone returns a deep copy, used for snapshots handed to other goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp, ok := deepcopy.Copy(s).(*Session)
	if !ok {
		return nil
	}
	return cp
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	switch s.Stage {
	case StageInit, StageVehicleSelected, StageOrdered, StageFinished:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStage, s.Stage)
	}
	if s.OrderID != "" && !s.HasVehicle() {
		return ErrOrderNoVehicle
	}
	return nil
}

// ParseStage maps a stored stage string back to a Stage, defaulting to init.
func ParseStage(raw string) Stage {
	switch Stage(strings.TrimSpace(raw)) {
	case StageVehicleSelected:
		return StageVehicleSelected
	case StageOrdered:
		return StageOrdered
	case StageFinished:
		return StageFinished
	default:
		return StageInit
	}
}
