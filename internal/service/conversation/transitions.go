package conversation

import (
	"context"

	"github.com/zhouzirui/z-helpdesk/backend/internal/analysis/intent"
	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
	"github.com/zhouzirui/z-helpdesk/backend/internal/metrics"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
)

// stateHandler consumes one turn in a given state, mutating the session and
// returning the reply.
type stateHandler func(ctx context.Context, sess *conversation.Session, turn Turn) outcome

type outcome struct {
	text  string
	event *Event
}

func say(text string) outcome {
	return outcome{text: text}
}

func (e *Engine) transitionTable() map[conversation.State]stateHandler {
	return map[conversation.State]stateHandler{
		conversation.StateAwaitID:                e.awaitID,
		conversation.StateAwaitRegName:           e.awaitRegName,
		conversation.StateAwaitRegEmail:          e.awaitRegEmail,
		conversation.StateAwaitRegPhone:          e.awaitRegPhone,
		conversation.StateAwaitRegDept:           e.awaitRegDept,
		conversation.StateIdle:                   e.idle,
		conversation.StateAwaitTicketDescription: e.awaitTicketDescription,
		conversation.StateAwaitEscalationDesc:    e.awaitEscalationDescription,
		conversation.StateFAQ:                    e.faq,
	}
}

func (e *Engine) actionTable() map[conversation.MenuAction]stateHandler {
	return map[conversation.MenuAction]stateHandler{
		conversation.ActionOpenTicket:  e.openTicket,
		conversation.ActionListTickets: e.listTickets,
		conversation.ActionEscalate:    e.escalate,
		conversation.ActionFAQ:         e.showFAQ,
		conversation.ActionExit:        e.exit,
	}
}

func (e *Engine) awaitID(ctx context.Context, sess *conversation.Session, turn Turn) outcome {
	id, ok := intent.EmployeeID(turn.Text, turn.Params)
	if !ok {
		return say(e.replies.AskEmployeeID())
	}

	records, err := e.store.FetchAll(ctx)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "conversation")
		storeLog(&logger, err, "employee lookup failed")
		return say(e.replies.LookupFailed())
	}

	profile, found := helpdesk.LatestProfile(records, id)
	if !found {
		sess.ClearPending()
		sess.SetPending(conversation.PendingEmployeeID, id)
		sess.State = conversation.StateAwaitRegName
		return say(e.replies.NotFoundAskName())
	}

	if profile.EmployeeID == "" {
		profile.EmployeeID = id
	}
	sess.Authenticate(profile)
	sess.State = conversation.StateIdle
	return say(e.replies.Welcome(profile))
}

func (e *Engine) awaitRegName(_ context.Context, sess *conversation.Session, turn Turn) outcome {
	name, ok := intent.Field(turn.Text, turn.Params, intent.ParamName)
	if !ok {
		return say(e.replies.AskName())
	}
	sess.SetPending(conversation.PendingName, name)
	sess.State = conversation.StateAwaitRegEmail
	return say(e.replies.AskEmail())
}

func (e *Engine) awaitRegEmail(_ context.Context, sess *conversation.Session, turn Turn) outcome {
	email, ok := intent.Field(turn.Text, turn.Params, intent.ParamEmail)
	if !ok || !intent.ValidEmail(email) {
		return say(e.replies.InvalidEmail())
	}
	sess.SetPending(conversation.PendingEmail, email)
	sess.State = conversation.StateAwaitRegPhone
	return say(e.replies.AskPhone())
}

func (e *Engine) awaitRegPhone(_ context.Context, sess *conversation.Session, turn Turn) outcome {
	phone, ok := intent.Field(turn.Text, turn.Params, intent.ParamPhone)
	if !ok {
		return say(e.replies.InvalidPhone())
	}
	sess.SetPending(conversation.PendingPhone, phone)
	sess.State = conversation.StateAwaitRegDept
	return say(e.replies.AskDepartment())
}

// awaitRegDept completes registration. A failed append drops everything
// collected so far; the user restarts from the id prompt.
func (e *Engine) awaitRegDept(ctx context.Context, sess *conversation.Session, turn Turn) outcome {
	dept, ok := intent.Field(turn.Text, turn.Params, intent.ParamDepartment, "setor")
	if !ok {
		return say(e.replies.InvalidDepartment())
	}

	profile := helpdesk.Profile{
		EmployeeID: sess.Pending(conversation.PendingEmployeeID),
		Name:       sess.Pending(conversation.PendingName),
		Email:      sess.Pending(conversation.PendingEmail),
		Phone:      sess.Pending(conversation.PendingPhone),
		Sector:     dept,
		Department: dept,
	}
	if profile.EmployeeID == "" {
		e.resetToAwaitID(sess)
		return say(e.replies.UnknownState())
	}

	if err := e.store.Append(ctx, profile.ToRecord(e.stamp(e.now()))); err != nil {
		logger := log.WithComponentFromContext(ctx, "conversation")
		storeLog(&logger, err, "registration append failed")
		metrics.IncRegistration("failure")
		e.resetToAwaitID(sess)
		return say(e.replies.RegistrationFailed())
	}

	metrics.IncRegistration("success")
	sess.Authenticate(profile)
	sess.State = conversation.StateIdle
	return say(e.replies.Registered(profile))
}

func (e *Engine) idle(ctx context.Context, sess *conversation.Session, turn Turn) outcome {
	opt, ok := intent.MenuChoice(turn.Text, turn.Params, sess.State, e.cfg.Menu)
	if !ok {
		return say(e.replies.ChooseOption())
	}
	action, ok := e.actions[opt.Action]
	if !ok {
		return say(e.replies.ChooseOption())
	}
	return action(ctx, sess, turn)
}

func (e *Engine) openTicket(_ context.Context, sess *conversation.Session, _ Turn) outcome {
	sess.State = conversation.StateAwaitTicketDescription
	return say(e.replies.TicketPrompt())
}

// listTickets reads synchronously and never leaves IDLE.
func (e *Engine) listTickets(ctx context.Context, sess *conversation.Session, _ Turn) outcome {
	records, err := e.store.FetchAll(ctx)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "conversation")
		storeLog(&logger, err, "ticket listing failed")
		return say(e.replies.TicketsFailed())
	}

	tickets := helpdesk.RecentTickets(records, sess.EmployeeID, e.cfg.TicketListLimit)
	if len(tickets) == 0 {
		return say(e.replies.NoTickets())
	}
	return say(e.replies.TicketList(tickets, sess.Profile))
}

func (e *Engine) escalate(_ context.Context, sess *conversation.Session, _ Turn) outcome {
	sess.State = conversation.StateAwaitEscalationDesc
	return say(e.replies.EscalationPrompt())
}

func (e *Engine) showFAQ(_ context.Context, sess *conversation.Session, _ Turn) outcome {
	if len(e.cfg.FAQ) == 0 {
		return say(e.replies.ChooseOption())
	}
	sess.UnsetPending(conversation.PendingFAQRetry)
	sess.State = conversation.StateFAQ
	return say(e.replies.FAQList(e.cfg.FAQ))
}

func (e *Engine) exit(_ context.Context, sess *conversation.Session, _ Turn) outcome {
	sess.End()
	return say(e.replies.Goodbye())
}

func (e *Engine) awaitTicketDescription(ctx context.Context, sess *conversation.Session, turn Turn) outcome {
	desc, ok := intent.Field(turn.Text, turn.Params, intent.ParamDescription)
	if !ok {
		return say(e.replies.AskTicketDescription())
	}

	sess.State = conversation.StateIdle
	ticket, err := e.createTicket(ctx, sess, helpdesk.KindTicket, desc)
	if err != nil {
		return say(e.replies.TicketFailed())
	}
	return say(e.replies.TicketCreated(ticket.TicketID, sess.Profile))
}

func (e *Engine) awaitEscalationDescription(ctx context.Context, sess *conversation.Session, turn Turn) outcome {
	desc, ok := intent.Field(turn.Text, turn.Params, intent.ParamDescription)
	if !ok {
		return say(e.replies.AskEscalationDescription())
	}

	sess.State = conversation.StateIdle
	ticket, err := e.createTicket(ctx, sess, helpdesk.KindEscalation, helpdesk.EscalationPrefix+desc)
	if err != nil {
		return say(e.replies.EscalationFailed())
	}

	out := say(e.replies.EscalationCreated(ticket.TicketID, sess.Profile))
	if e.cfg.EscalationEvent != "" {
		out.event = &Event{
			Name: e.cfg.EscalationEvent,
			Parameters: map[string]any{
				"ticketId":  ticket.TicketID,
				"matricula": sess.EmployeeID,
			},
		}
	}
	return out
}

// faq answers one topic. An unknown topic re-prompts once; a second miss
// returns to the main menu.
func (e *Engine) faq(_ context.Context, sess *conversation.Session, turn Turn) outcome {
	idx, ok := intent.Option(turn.Text, turn.Params, len(e.cfg.FAQ))
	if !ok && sess.Pending(conversation.PendingFAQRetry) == "" {
		sess.SetPending(conversation.PendingFAQRetry, "1")
		return say(e.replies.FAQRetry(e.cfg.FAQ))
	}

	sess.UnsetPending(conversation.PendingFAQRetry)
	sess.State = conversation.StateIdle
	if !ok {
		return say(e.replies.FAQInvalid(sess.Profile))
	}
	return say(e.replies.FAQAnswer(e.cfg.FAQ[idx-1], sess.Profile))
}

// createTicket appends an immutable ticket row. Failures are logged and not
// retried.
func (e *Engine) createTicket(ctx context.Context, sess *conversation.Session, kind helpdesk.TicketKind, desc string) (helpdesk.Ticket, error) {
	now := e.now()
	ticket := helpdesk.Ticket{
		TicketID:    e.newTicketID(now),
		EmployeeID:  sess.EmployeeID,
		Description: desc,
		Status:      helpdesk.StatusOpen,
		CreatedAt:   e.stamp(now),
	}

	var owner helpdesk.Profile
	if sess.Profile != nil {
		owner = *sess.Profile
	}

	logger := log.WithComponentFromContext(ctx, "conversation")
	if err := e.store.Append(ctx, ticket.ToRecord(owner)); err != nil {
		storeLog(&logger, err, "ticket append failed")
		metrics.IncTicketCreated(string(kind), "failure")
		return helpdesk.Ticket{}, err
	}

	metrics.IncTicketCreated(string(kind), "success")
	logger.Info().Str(log.FieldTicketID, ticket.TicketID).Str("kind", string(kind)).Msg("ticket created")
	return ticket, nil
}
