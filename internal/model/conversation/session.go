package conversation

import (
	"time"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
)

// State names a step of the helpdesk dialogue.
type State string

const (
	StateAwaitID                State = "AWAIT_ID"
	StateAwaitRegName           State = "AWAIT_REG_NAME"
	StateAwaitRegEmail          State = "AWAIT_REG_EMAIL"
	StateAwaitRegPhone          State = "AWAIT_REG_PHONE"
	StateAwaitRegDept           State = "AWAIT_REG_DEPT"
	StateIdle                   State = "IDLE"
	StateAwaitTicketDescription State = "AWAIT_TICKET_DESCRIPTION"
	StateAwaitEscalationDesc    State = "AWAIT_ESCALATION_DESC"
	StateFAQ                    State = "FAQ"
)

// InitialState is the state of every new session.
const InitialState = StateAwaitID

var knownStates = map[State]struct{}{
	StateAwaitID:                {},
	StateAwaitRegName:           {},
	StateAwaitRegEmail:          {},
	StateAwaitRegPhone:          {},
	StateAwaitRegDept:           {},
	StateIdle:                   {},
	StateAwaitTicketDescription: {},
	StateAwaitEscalationDesc:    {},
	StateFAQ:                    {},
}

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	_, ok := knownStates[s]
	return ok
}

// Pending registration field keys.
const (
	PendingEmployeeID = "matricula"
	PendingName       = "nome"
	PendingEmail      = "email"
	PendingPhone      = "telefone"

	// PendingFAQRetry marks that the FAQ sub-menu already re-prompted once.
	PendingFAQRetry = "faq_retry"
)

// Session is the conversation-scoped state kept between webhook calls.
type Session struct {
	ID             string            `json:"id"`
	State          State             `json:"state"`
	EmployeeID     string            `json:"employeeId,omitempty"`
	Profile        *helpdesk.Profile `json:"profile,omitempty"`
	PendingFields  map[string]string `json:"pendingFields,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastActivityAt time.Time         `json:"lastActivityAt"`

	ended bool
}

// NewSession returns a session in the initial state.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:             id,
		State:          InitialState,
		PendingFields:  make(map[string]string),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Authenticated reports whether an employee is bound to the session.
func (s *Session) Authenticated() bool {
	return s.EmployeeID != "" && s.Profile != nil
}

// Authenticate binds the profile and clears any registration leftovers.
func (s *Session) Authenticate(p helpdesk.Profile) {
	profile := p
	s.Profile = &profile
	s.EmployeeID = p.EmployeeID
	s.ClearPending()
}

// SetPending records a registration field.
func (s *Session) SetPending(key, value string) {
	if s.PendingFields == nil {
		s.PendingFields = make(map[string]string)
	}
	s.PendingFields[key] = value
}

// Pending returns a registration field collected earlier.
func (s *Session) Pending(key string) string {
	return s.PendingFields[key]
}

// UnsetPending drops one field.
func (s *Session) UnsetPending(key string) {
	delete(s.PendingFields, key)
}

// ClearPending drops all registration fields.
func (s *Session) ClearPending() {
	s.PendingFields = make(map[string]string)
}

// End marks the session for deletion once the current turn completes.
func (s *Session) End() {
	s.ended = true
}

// Ended reports whether End was called during this turn.
func (s *Session) Ended() bool {
	return s.ended
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivityAt) > ttl
}

// Clone returns a deep copy that does not share maps or the profile.
func (s *Session) Clone() *Session {
	out := *s
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	out.PendingFields = make(map[string]string, len(s.PendingFields))
	for k, v := range s.PendingFields {
		out.PendingFields[k] = v
	}
	return &out
}
