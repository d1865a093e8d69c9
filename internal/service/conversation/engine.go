// Package conversation runs the helpdesk dialogue: one explicit state machine
// shared by every transport.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-helpdesk/backend/internal/analysis/intent"
	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
	"github.com/zhouzirui/z-helpdesk/backend/internal/metrics"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/dialogflow"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/recordstore"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/reply"
)

// ErrSessionRequired is returned for a turn without a conversation id.
var ErrSessionRequired = errors.New("conversation id is required")

// DefaultTicketListLimit caps how many tickets option 2 shows.
const DefaultTicketListLimit = 5

const sheetTimeLayout = "02/01/2006 15:04:05"

// Sessions is the part of the session store the engine needs.
type Sessions interface {
	WithSession(ctx context.Context, id string, fn func(*conversation.Session) error) error
}

// Recorder keeps a transcript of turns.
type Recorder interface {
	SaveMessage(ctx context.Context, message conversation.Message) error
}

// Turn is one inbound user message.
type Turn struct {
	SessionID string
	Text      string
	Params    dialogflow.Params
}

// Event asks the platform to trigger a follow-up intent.
type Event struct {
	Name       string
	Parameters map[string]any
}

// Result is what the transport sends back.
type Result struct {
	Text       string
	State      conversation.State
	EmployeeID string
	Ended      bool
	Event      *Event
}

// Config parameterises the dialogue.
type Config struct {
	Menu            conversation.Menu
	FAQ             []conversation.FAQTopic
	TicketListLimit int
	Location        *time.Location
	EscalationEvent string
}

// Engine dispatches turns through the transition table.
type Engine struct {
	sessions    Sessions
	store       recordstore.Client
	replies     reply.Formatter
	cfg         Config
	now         func() time.Time
	newTicketID func(time.Time) string
	recorder    Recorder
	transitions map[conversation.State]stateHandler
	actions     map[conversation.MenuAction]stateHandler
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTicketIDs replaces the ticket id generator.
func WithTicketIDs(gen func(time.Time) string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newTicketID = gen
		}
	}
}

// WithRecorder stores every turn in a transcript.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine wires the state machine.
func NewEngine(sessions Sessions, store recordstore.Client, cfg Config, opts ...Option) *Engine {
	if len(cfg.Menu.Options) == 0 {
		cfg.Menu = conversation.ClassicMenu()
	}
	if cfg.FAQ == nil {
		cfg.FAQ = conversation.SeedFAQ()
	}
	if cfg.TicketListLimit <= 0 {
		cfg.TicketListLimit = DefaultTicketListLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	e := &Engine{
		sessions:    sessions,
		store:       store,
		replies:     reply.New(cfg.Menu),
		cfg:         cfg,
		now:         time.Now,
		newTicketID: helpdesk.NewTicketID,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.transitions = e.transitionTable()
	e.actions = e.actionTable()
	return e
}

// Replies exposes the formatter so transports can render fallbacks.
func (e *Engine) Replies() reply.Formatter {
	return e.replies
}

// Handle runs one turn under the conversation's lock. Store failures become
// apologetic replies; only session backend failures are returned as errors.
func (e *Engine) Handle(ctx context.Context, turn Turn) (Result, error) {
	if turn.SessionID == "" {
		return Result{}, ErrSessionRequired
	}
	ctx = log.ContextWithSessionID(ctx, turn.SessionID)
	logger := log.WithComponentFromContext(ctx, "conversation")

	var res Result
	err := e.sessions.WithSession(ctx, turn.SessionID, func(sess *conversation.Session) error {
		from := sess.State
		out := e.step(ctx, logger, sess, turn)

		res = Result{
			Text:       out.text,
			State:      sess.State,
			EmployeeID: sess.EmployeeID,
			Ended:      sess.Ended(),
			Event:      out.event,
		}
		to := string(sess.State)
		if res.Ended {
			to = "ENDED"
		}
		metrics.RecordStateTransition(string(from), to)
		logger.Info().
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, to).
			Str(log.FieldEmployeeID, sess.EmployeeID).
			Msg("turn handled")
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.record(ctx, turn, res)
	return res, nil
}

func (e *Engine) record(ctx context.Context, turn Turn, res Result) {
	if e.recorder == nil {
		return
	}
	now := e.now().UTC()
	logger := log.WithComponentFromContext(ctx, "conversation")
	for _, m := range []conversation.Message{
		{SessionID: turn.SessionID, Sender: conversation.SenderUser, Content: turn.Text, CreatedAt: now},
		{SessionID: turn.SessionID, Sender: conversation.SenderBot, Content: res.Text, State: res.State, CreatedAt: now},
	} {
		if err := e.recorder.SaveMessage(ctx, m); err != nil {
			logger.Debug().Err(err).Msg("transcript not saved")
		}
	}
}

// step applies global commands, then the transition for the current state.
func (e *Engine) step(ctx context.Context, logger zerolog.Logger, sess *conversation.Session, turn Turn) outcome {
	if cmd, ok := intent.GlobalCommand(turn.Text); ok {
		return e.globalCommand(sess, cmd)
	}

	handler, ok := e.transitions[sess.State]
	if !ok || (requiresAuth(sess.State) && !sess.Authenticated()) {
		logger.Warn().Str("state", string(sess.State)).Msg("resetting session in unexpected state")
		e.resetToAwaitID(sess)
		return say(e.replies.UnknownState())
	}
	return handler(ctx, sess, turn)
}

func (e *Engine) globalCommand(sess *conversation.Session, cmd intent.Command) outcome {
	switch cmd {
	case intent.CommandExit:
		sess.End()
		return say(e.replies.Goodbye())
	default:
		if sess.Authenticated() {
			sess.State = conversation.StateIdle
			sess.ClearPending()
			return say(e.replies.MenuShown(sess.Profile))
		}
		e.resetToAwaitID(sess)
		return say(e.replies.AskEmployeeIDAgain())
	}
}

func (e *Engine) resetToAwaitID(sess *conversation.Session) {
	sess.State = conversation.StateAwaitID
	sess.EmployeeID = ""
	sess.Profile = nil
	sess.ClearPending()
}

func requiresAuth(s conversation.State) bool {
	switch s {
	case conversation.StateIdle, conversation.StateAwaitTicketDescription,
		conversation.StateAwaitEscalationDesc, conversation.StateFAQ:
		return true
	default:
		return false
	}
}

func (e *Engine) stamp(t time.Time) string {
	return t.In(e.cfg.Location).Format(sheetTimeLayout)
}

func storeLog(logger *zerolog.Logger, err error, msg string) {
	ev := logger.Warn()
	if !errors.Is(err, recordstore.ErrStoreUnavailable) && !errors.Is(err, recordstore.ErrStoreFormat) {
		ev = logger.Error()
	}
	ev.Err(err).Msg(msg)
}
