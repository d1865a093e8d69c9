package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/recordstore"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/session"
)

// memoryRecords is an append-only fake of the spreadsheet.
type memoryRecords struct {
	mu         sync.Mutex
	rows       []helpdesk.Record
	fetchErr   error
	appendErr  error
	fetchCalls int
}

func (m *memoryRecords) FetchAll(context.Context) ([]helpdesk.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make([]helpdesk.Record, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *memoryRecords) Append(_ context.Context, r helpdesk.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, r.Clone())
	return nil
}

func (m *memoryRecords) last() helpdesk.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return nil
	}
	return m.rows[len(m.rows)-1]
}

func (m *memoryRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

var errUnavailable = fmt.Errorf("%w: connection refused", recordstore.ErrStoreUnavailable)

var fixedNow = time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC)

type harness struct {
	engine   *Engine
	sessions *session.Store
	records  *memoryRecords
}

func newHarness(cfg Config, rows ...helpdesk.Record) *harness {
	records := &memoryRecords{rows: rows}
	sessions := session.NewStore(session.NewMemoryBackend(), session.WithClock(func() time.Time { return fixedNow }))
	seq := 0
	engine := NewEngine(sessions, records, cfg,
		WithClock(func() time.Time { return fixedNow }),
		WithTicketIDs(func(time.Time) string {
			seq++
			return fmt.Sprintf("T-test-%05d", seq)
		}),
	)
	return &harness{engine: engine, sessions: sessions, records: records}
}

// seed puts a session directly into a state.
func (h *harness) seed(id string, mutate func(*conversation.Session)) {
	_ = h.sessions.WithSession(context.Background(), id, func(s *conversation.Session) error {
		mutate(s)
		return nil
	})
}

func (h *harness) state(id string) (conversation.State, bool) {
	s, ok, _ := h.sessions.Peek(context.Background(), id)
	if !ok {
		return "", false
	}
	return s.State, true
}

func (h *harness) say(id, text string) Result {
	res, err := h.engine.Handle(context.Background(), Turn{SessionID: id, Text: text})
	if err != nil {
		panic(err)
	}
	return res
}

func authenticated(name string) func(*conversation.Session) {
	return func(s *conversation.Session) {
		s.Authenticate(helpdesk.Profile{EmployeeID: "1234", Name: name, Sector: "TI"})
		s.State = conversation.StateIdle
	}
}

func userRow(id, name string) helpdesk.Record {
	return helpdesk.Record{helpdesk.ColType: helpdesk.TypeUser, helpdesk.ColEmployeeID: id, helpdesk.ColName: name, helpdesk.ColSector: "TI"}
}

func ticketRow(id, owner, desc string) helpdesk.Record {
	return helpdesk.Record{
		helpdesk.ColType:        helpdesk.TypeTicket,
		helpdesk.ColTicketID:    id,
		helpdesk.ColEmployeeID:  owner,
		helpdesk.ColDescription: desc,
		helpdesk.ColStatus:      helpdesk.StatusOpen,
	}
}
