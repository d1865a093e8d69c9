package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/dialogflow"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/reply"
)

var classic = reply.New(conversation.ClassicMenu())

func TestScenarioUnknownIDStartsRegistration(t *testing.T) {
	h := newHarness(Config{}, userRow("9999", "Outro"))

	res, err := h.engine.Handle(context.Background(), Turn{
		SessionID: "s1",
		Text:      "",
		Params:    dialogflow.Params{"matricula": "1234"},
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitRegName, res.State)
	assert.Equal(t, classic.NotFoundAskName(), res.Text)
	assert.Contains(t, res.Text, "nome completo")
}

func TestScenarioListTicketsMostRecentFirst(t *testing.T) {
	h := newHarness(Config{},
		userRow("1234", "Ana"),
		ticketRow("T-old", "1234", "mouse"),
		ticketRow("T-new", "1234", "teclado"),
	)
	h.seed("s1", func(s *conversation.Session) {
		s.Authenticate(helpdesk.Profile{EmployeeID: "1234", Name: "Ana"})
		s.State = conversation.StateIdle
	})

	res := h.say("s1", "2")

	assert.Equal(t, conversation.StateIdle, res.State)
	newIdx := strings.Index(res.Text, "T-new")
	oldIdx := strings.Index(res.Text, "T-old")
	require.True(t, newIdx >= 0 && oldIdx >= 0, res.Text)
	assert.Less(t, newIdx, oldIdx)
	assert.Contains(t, res.Text, "Olá Ana!")
}

func TestScenarioMenuCommandWhenAuthenticated(t *testing.T) {
	for _, st := range []conversation.State{
		conversation.StateIdle,
		conversation.StateAwaitTicketDescription,
		conversation.StateAwaitEscalationDesc,
		conversation.StateFAQ,
	} {
		h := newHarness(Config{})
		h.seed("s1", func(s *conversation.Session) {
			authenticated("Ana")(s)
			s.State = st
		})

		res := h.say("s1", "menu")
		assert.Equal(t, conversation.StateIdle, res.State, "from %s", st)
		assert.Equal(t, classic.MenuShown(&helpdesk.Profile{EmployeeID: "1234", Name: "Ana", Sector: "TI"}), res.Text)
	}
}

func TestScenarioTicketAppendFailureReturnsToIdle(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", func(s *conversation.Session) {
		authenticated("Ana")(s)
		s.State = conversation.StateAwaitTicketDescription
	})
	h.records.appendErr = errUnavailable

	res := h.say("s1", "impressora quebrada")

	assert.Equal(t, classic.TicketFailed(), res.Text)
	assert.Equal(t, conversation.StateIdle, res.State)
}

func TestRegistrationRoundTrip(t *testing.T) {
	h := newHarness(Config{})

	steps := []struct {
		text  string
		state conversation.State
	}{
		{"minha matrícula é 4321", conversation.StateAwaitRegName},
		{"Bruno Lima", conversation.StateAwaitRegEmail},
		{"bruno@ferrero.com", conversation.StateAwaitRegPhone},
		{"11 98888-7777", conversation.StateAwaitRegDept},
		{"Logística", conversation.StateIdle},
	}
	var res Result
	for _, step := range steps {
		res = h.say("s1", step.text)
		require.Equal(t, step.state, res.State, "after %q: %s", step.text, res.Text)
	}
	assert.Equal(t, "4321", res.EmployeeID)
	assert.Contains(t, res.Text, "Cadastro realizado com sucesso")

	row := h.records.last()
	assert.Equal(t, helpdesk.TypeUser, row[helpdesk.ColType])
	assert.Equal(t, "16/10/2026 13:30:00", row[helpdesk.ColCreatedAt])

	// a fresh conversation finds the appended record with the same values
	res = h.say("s2", "4321")
	assert.Equal(t, conversation.StateIdle, res.State)
	records, err := h.records.FetchAll(context.Background())
	require.NoError(t, err)
	p, ok := helpdesk.LatestProfile(records, "4321")
	require.True(t, ok)
	assert.Equal(t, helpdesk.Profile{
		EmployeeID: "4321",
		Name:       "Bruno Lima",
		Email:      "bruno@ferrero.com",
		Phone:      "11 98888-7777",
		Sector:     "Logística",
		Department: "Logística",
	}, p)
	assert.Contains(t, res.Text, "Bem-vindo(a), Bruno Lima (Logística)")
}

func TestRegistrationAppendFailureRestarts(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", func(s *conversation.Session) {
		s.SetPending(conversation.PendingEmployeeID, "4321")
		s.SetPending(conversation.PendingName, "Bruno")
		s.SetPending(conversation.PendingEmail, "b@f.com")
		s.SetPending(conversation.PendingPhone, "11")
		s.State = conversation.StateAwaitRegDept
	})
	h.records.appendErr = errUnavailable

	res := h.say("s1", "TI")
	assert.Equal(t, conversation.StateAwaitID, res.State)
	assert.Equal(t, classic.RegistrationFailed(), res.Text)

	sess, err := h.sessions.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, sess.PendingFields)
}

func TestLookupFailureKeepsState(t *testing.T) {
	h := newHarness(Config{})
	h.records.fetchErr = errUnavailable

	res := h.say("s1", "1234")
	assert.Equal(t, conversation.StateAwaitID, res.State)
	assert.Equal(t, classic.LookupFailed(), res.Text)
}

func TestKnownIDAuthenticates(t *testing.T) {
	h := newHarness(Config{}, userRow("1234", "Ana"))

	res := h.say("s1", "1234")
	assert.Equal(t, conversation.StateIdle, res.State)
	assert.Equal(t, "1234", res.EmployeeID)
	assert.True(t, strings.HasPrefix(res.Text, "✅ Matrícula confirmada! Bem-vindo(a), Ana (TI)."))
}

func TestExitCommandDeletesSession(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", authenticated("Ana"))

	res := h.say("s1", "Encerrar")
	assert.True(t, res.Ended)
	assert.Equal(t, classic.Goodbye(), res.Text)
	_, ok := h.state("s1")
	assert.False(t, ok)
}

func TestMenuCommandUnauthenticatedAsksID(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", func(s *conversation.Session) {
		s.SetPending(conversation.PendingEmployeeID, "4321")
		s.State = conversation.StateAwaitRegEmail
	})

	res := h.say("s1", "voltar")
	assert.Equal(t, conversation.StateAwaitID, res.State)
	assert.Equal(t, classic.AskEmployeeIDAgain(), res.Text)
}

func TestUnknownStateResets(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", func(s *conversation.Session) { s.State = "WAIT_MATRICULA" })

	res := h.say("s1", "oi")
	assert.Equal(t, conversation.StateAwaitID, res.State)
	assert.Equal(t, classic.UnknownState(), res.Text)
}

func TestIdleWithoutProfileIsTreatedAsCorrupt(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", func(s *conversation.Session) { s.State = conversation.StateIdle })

	res := h.say("s1", "1")
	assert.Equal(t, conversation.StateAwaitID, res.State)
}

func TestStrayDigitDuringRegistrationIsAField(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", func(s *conversation.Session) {
		s.SetPending(conversation.PendingEmployeeID, "4321")
		s.State = conversation.StateAwaitRegName
	})

	res := h.say("s1", "2")
	assert.Equal(t, conversation.StateAwaitRegEmail, res.State)
	sess, err := h.sessions.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "2", sess.Pending(conversation.PendingName))
}

func TestEscalationPrefixesAndEmitsEvent(t *testing.T) {
	h := newHarness(Config{EscalationEvent: "atendimento_humano"})
	h.seed("s1", func(s *conversation.Session) {
		authenticated("Ana")(s)
		s.State = conversation.StateAwaitEscalationDesc
	})

	res := h.say("s1", "sistema fora do ar")
	assert.Equal(t, conversation.StateIdle, res.State)
	assert.Contains(t, res.Text, "(ID: T-test-00001)")
	require.NotNil(t, res.Event)
	assert.Equal(t, "atendimento_humano", res.Event.Name)
	assert.Equal(t, "T-test-00001", res.Event.Parameters["ticketId"])

	row := h.records.last()
	assert.Equal(t, "[ESCALA] sistema fora do ar", row[helpdesk.ColDescription])
	assert.Equal(t, helpdesk.StatusOpen, row[helpdesk.ColStatus])
	assert.Equal(t, "Ana", row[helpdesk.ColName])
}

func TestTicketCreatedRecordsRow(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", authenticated("Ana"))

	res := h.say("s1", "1")
	require.Equal(t, conversation.StateAwaitTicketDescription, res.State)

	res = h.say("s1", "impressora quebrada")
	assert.Equal(t, conversation.StateIdle, res.State)
	assert.Nil(t, res.Event)
	assert.Contains(t, res.Text, "Chamado criado com sucesso (ID: T-test-00001)")

	row := h.records.last()
	assert.Equal(t, helpdesk.TypeTicket, row[helpdesk.ColType])
	assert.Equal(t, "1234", row[helpdesk.ColEmployeeID])
	assert.Equal(t, "impressora quebrada", row[helpdesk.ColDescription])
}

func TestEmptyDescriptionRePrompts(t *testing.T) {
	h := newHarness(Config{})
	h.seed("s1", func(s *conversation.Session) {
		authenticated("Ana")(s)
		s.State = conversation.StateAwaitTicketDescription
	})

	res := h.say("s1", "   ")
	assert.Equal(t, conversation.StateAwaitTicketDescription, res.State)
	assert.Equal(t, classic.AskTicketDescription(), res.Text)
	assert.Equal(t, 0, h.records.count())
}

func TestListTicketsCapsAtFive(t *testing.T) {
	rows := []helpdesk.Record{userRow("1234", "Ana")}
	for _, id := range []string{"T-1", "T-2", "T-3", "T-4", "T-5", "T-6", "T-7"} {
		rows = append(rows, ticketRow(id, "1234", "x"))
	}
	h := newHarness(Config{}, rows...)
	h.seed("s1", authenticated("Ana"))

	res := h.say("s1", "2")
	assert.Equal(t, 5, strings.Count(res.Text, "• "))
	assert.NotContains(t, res.Text, "T-2 ")
	assert.Contains(t, res.Text, "T-7")
}

func TestListTicketsEmptyAndFailure(t *testing.T) {
	h := newHarness(Config{}, userRow("1234", "Ana"))
	h.seed("s1", authenticated("Ana"))

	res := h.say("s1", "2")
	assert.Equal(t, classic.NoTickets(), res.Text)

	h.records.fetchErr = errUnavailable
	res = h.say("s1", "2")
	assert.Equal(t, classic.TicketsFailed(), res.Text)
	assert.Equal(t, conversation.StateIdle, res.State)
}

func TestFAQVariant(t *testing.T) {
	h := newHarness(Config{Menu: conversation.FAQVariantMenu()})
	faqReplies := reply.New(conversation.FAQVariantMenu())
	h.seed("s1", authenticated("Ana"))

	res := h.say("s1", "4")
	assert.Equal(t, conversation.StateFAQ, res.State)
	assert.Equal(t, faqReplies.FAQList(conversation.SeedFAQ()), res.Text)

	res = h.say("s1", "2")
	assert.Equal(t, conversation.StateIdle, res.State)
	assert.Contains(t, res.Text, conversation.SeedFAQ()[1].Answer)

	res = h.say("s1", "0")
	assert.True(t, res.Ended)
}

func TestFAQUnknownTopicRePromptsOnce(t *testing.T) {
	h := newHarness(Config{Menu: conversation.FAQVariantMenu()})
	faqReplies := reply.New(conversation.FAQVariantMenu())
	h.seed("s1", authenticated("Ana"))

	res := h.say("s1", "4")
	require.Equal(t, conversation.StateFAQ, res.State)

	res = h.say("s1", "xyz")
	assert.Equal(t, conversation.StateFAQ, res.State)
	assert.Equal(t, faqReplies.FAQRetry(conversation.SeedFAQ()), res.Text)

	res = h.say("s1", "9")
	assert.Equal(t, conversation.StateIdle, res.State)
	assert.Contains(t, res.Text, "Assunto não encontrado")

	// the retry allowance is per visit to the sub-menu
	res = h.say("s1", "4")
	require.Equal(t, conversation.StateFAQ, res.State)
	res = h.say("s1", "xyz")
	assert.Equal(t, conversation.StateFAQ, res.State)
	res = h.say("s1", "1")
	assert.Equal(t, conversation.StateIdle, res.State)
	assert.Contains(t, res.Text, conversation.SeedFAQ()[0].Answer)

	sess, err := h.sessions.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, sess.Pending(conversation.PendingFAQRetry))
}

func TestRegistrationStepsRePromptOnMissingInput(t *testing.T) {
	cases := []struct {
		name  string
		state conversation.State
		text  string
		reply string
	}{
		{"empty name", conversation.StateAwaitRegName, "   ", classic.AskName()},
		{"empty email", conversation.StateAwaitRegEmail, "", classic.InvalidEmail()},
		{"malformed email", conversation.StateAwaitRegEmail, "bruno.ferrero.com", classic.InvalidEmail()},
		{"email without domain suffix", conversation.StateAwaitRegEmail, "bruno@ferrero", classic.InvalidEmail()},
		{"empty phone", conversation.StateAwaitRegPhone, " ", classic.InvalidPhone()},
		{"empty department", conversation.StateAwaitRegDept, "", classic.InvalidDepartment()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(Config{})
			h.seed("s1", func(s *conversation.Session) {
				s.SetPending(conversation.PendingEmployeeID, "4321")
				s.State = tc.state
			})

			res := h.say("s1", tc.text)

			assert.Equal(t, tc.state, res.State)
			assert.Equal(t, tc.reply, res.Text)
			assert.Equal(t, 0, h.records.count())

			sess, err := h.sessions.GetOrCreate(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, "4321", sess.Pending(conversation.PendingEmployeeID))
		})
	}
}

func TestHandleRequiresSession(t *testing.T) {
	h := newHarness(Config{})
	_, err := h.engine.Handle(context.Background(), Turn{Text: "oi"})
	assert.ErrorIs(t, err, ErrSessionRequired)
}

type memoryRecorder struct {
	messages []conversation.Message
}

func (r *memoryRecorder) SaveMessage(_ context.Context, m conversation.Message) error {
	r.messages = append(r.messages, m)
	return nil
}

type failingRecorder struct{ calls int }

func (r *failingRecorder) SaveMessage(context.Context, conversation.Message) error {
	r.calls++
	return errors.New("transcript full")
}

func TestRecorderFailureKeepsReply(t *testing.T) {
	h := newHarness(Config{})
	rec := &failingRecorder{}
	h.engine.recorder = rec

	res := h.say("s1", "oi")
	assert.Equal(t, classic.AskEmployeeID(), res.Text)
	assert.Equal(t, 2, rec.calls)
}

func TestRecorderReceivesBothSides(t *testing.T) {
	h := newHarness(Config{})
	rec := &memoryRecorder{}
	h.engine.recorder = rec

	h.say("s1", "oi")
	require.Len(t, rec.messages, 2)
	assert.Equal(t, conversation.SenderUser, rec.messages[0].Sender)
	assert.Equal(t, "oi", rec.messages[0].Content)
	assert.Equal(t, conversation.SenderBot, rec.messages[1].Sender)
	assert.Equal(t, conversation.StateAwaitID, rec.messages[1].State)
}
