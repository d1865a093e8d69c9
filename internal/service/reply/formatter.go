// Package reply renders every user-facing message. All functions are pure:
// the same input always yields the same text.
package reply

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
)

const (
	descriptionPreview = 60
	fallbackName       = "usuário"
)

// Formatter renders replies for one menu variant.
type Formatter struct {
	menu conversation.Menu
}

// New returns a Formatter bound to menu.
func New(menu conversation.Menu) Formatter {
	return Formatter{menu: menu}
}

// Menu returns the bound menu.
func (f Formatter) Menu() conversation.Menu {
	return f.menu
}

func displayName(p *helpdesk.Profile, fallback string) string {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return fallback
	}
	return p.Name
}

// MainMenu greets the user and lists the numbered options.
func (f Formatter) MainMenu(p *helpdesk.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s! 👋\nEscolha uma opção:", displayName(p, fallbackName))
	for _, o := range f.menu.Options {
		fmt.Fprintf(&b, "\n%s %s", o.Emoji, o.Label)
	}
	return b.String()
}

// Help explains how to pick an option.
func (f Formatter) Help() string {
	return fmt.Sprintf("Digite o número da opção (%s). Para voltar ao menu a qualquer momento, digite 'menu'.", f.keyList())
}

func (f Formatter) keyList() string {
	keys := f.menu.Keys()
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return keys[0]
	default:
		return strings.Join(keys[:len(keys)-1], ", ") + " ou " + keys[len(keys)-1]
	}
}

func (f Formatter) menuWithHelp(p *helpdesk.Profile) string {
	return f.MainMenu(p) + "\n\n" + f.Help()
}

// AskEmployeeID is the first prompt of a conversation.
func (f Formatter) AskEmployeeID() string {
	return "Por favor, informe sua matrícula (somente números)."
}

// AskEmployeeIDAgain is used when "menu" is typed before authenticating.
func (f Formatter) AskEmployeeIDAgain() string {
	return "Por favor informe sua matrícula para continuar."
}

// LookupFailed is shown when the employee lookup hit a store error.
func (f Formatter) LookupFailed() string {
	return "⚠️ Erro ao verificar matrícula. Tente novamente em alguns instantes."
}

// NotFoundAskName starts registration for an unknown id.
func (f Formatter) NotFoundAskName() string {
	return "Matrícula não encontrada. Deseja cadastrar? Por favor informe seu nome completo."
}

// Welcome confirms a known employee.
func (f Formatter) Welcome(p helpdesk.Profile) string {
	sector := p.Sector
	if sector == "" {
		sector = "setor não informado"
	}
	return fmt.Sprintf("✅ Matrícula confirmada! Bem-vindo(a), %s (%s).\n\n%s",
		displayName(&p, "colaborador"), sector, f.menuWithHelp(&p))
}

// AskName re-prompts for the full name.
func (f Formatter) AskName() string {
	return "Por favor, informe seu nome completo para cadastro."
}

// AskEmail follows the name step.
func (f Formatter) AskEmail() string {
	return "Obrigado. Agora informe seu email."
}

// InvalidEmail re-prompts for a well-formed address.
func (f Formatter) InvalidEmail() string {
	return "Por favor, informe um email válido (ex.: nome@empresa.com)."
}

// AskPhone follows the email step.
func (f Formatter) AskPhone() string {
	return "Ótimo. Informe agora seu telefone (com DDD)."
}

// InvalidPhone re-prompts for the phone.
func (f Formatter) InvalidPhone() string {
	return "Por favor, informe um telefone válido."
}

// AskDepartment is the last registration step.
func (f Formatter) AskDepartment() string {
	return "Por fim, informe seu departamento/setor."
}

// InvalidDepartment re-prompts for the department.
func (f Formatter) InvalidDepartment() string {
	return "Por favor informe seu departamento."
}

// RegistrationFailed tells the user to start over.
func (f Formatter) RegistrationFailed() string {
	return "⚠️ Não foi possível cadastrar no momento. Tente novamente mais tarde."
}

// Registered confirms a new employee.
func (f Formatter) Registered(p helpdesk.Profile) string {
	return fmt.Sprintf("✅ Cadastro realizado com sucesso! Bem-vindo(a), %s (%s).\n\n%s",
		p.Name, p.Sector, f.menuWithHelp(&p))
}

// ChooseOption re-prompts in the main menu.
func (f Formatter) ChooseOption() string {
	return fmt.Sprintf("Selecione uma opção do menu: digite %s. Para ver o menu a qualquer momento, escreva 'menu'.", f.keyList())
}

// MenuShown answers the global "menu" command.
func (f Formatter) MenuShown(p *helpdesk.Profile) string {
	return f.menuWithHelp(p)
}

// TicketPrompt asks for the problem description.
func (f Formatter) TicketPrompt() string {
	return "Certo — descreva brevemente o problema ou solicitação que deseja abrir em chamado."
}

// AskTicketDescription re-prompts for an empty description.
func (f Formatter) AskTicketDescription() string {
	return "Por favor descreva o problema para abrir o chamado."
}

// EscalationPrompt asks why the user wants an attendant.
func (f Formatter) EscalationPrompt() string {
	return "Você escolheu falar com um atendente. Por favor descreva o motivo para que possamos encaminhar."
}

// AskEscalationDescription re-prompts for an empty escalation reason.
func (f Formatter) AskEscalationDescription() string {
	return "Por favor descreva brevemente o motivo do contato com o atendente."
}

// NoTickets suggests opening a ticket.
func (f Formatter) NoTickets() string {
	open := "1"
	for _, o := range f.menu.Options {
		if o.Action == conversation.ActionOpenTicket {
			open = o.Key
			break
		}
	}
	return fmt.Sprintf("Você não possui chamados registrados. Deseja abrir um agora? Digite %s.", open)
}

// TicketList renders tickets in the given order followed by the menu.
func (f Formatter) TicketList(tickets []helpdesk.Ticket, p *helpdesk.Profile) string {
	lines := make([]string, 0, len(tickets))
	for _, t := range tickets {
		id := t.TicketID
		if id == "" {
			id = "(sem id)"
		}
		status := t.Status
		if status == "" {
			status = "N/A"
		}
		lines = append(lines, fmt.Sprintf("• %s — %s (%s)", id, truncate(t.Description, descriptionPreview), status))
	}
	return fmt.Sprintf("Seus chamados (últimos):\n%s\n\n%s", strings.Join(lines, "\n"), f.MainMenu(p))
}

// TicketsFailed is shown when listing hit a store error.
func (f Formatter) TicketsFailed() string {
	return "⚠️ Erro ao obter seus chamados. Tente novamente mais tarde."
}

// TicketCreated confirms a new ticket.
func (f Formatter) TicketCreated(ticketID string, p *helpdesk.Profile) string {
	return fmt.Sprintf("✅ Chamado criado com sucesso (ID: %s).\nNossa equipe irá analisar e retornar.\n\n%s", ticketID, f.MainMenu(p))
}

// TicketFailed is the store error for ticket creation.
func (f Formatter) TicketFailed() string {
	return "⚠️ Erro ao criar chamado. Tente novamente mais tarde."
}

// EscalationCreated confirms the hand-off.
func (f Formatter) EscalationCreated(ticketID string, p *helpdesk.Profile) string {
	return fmt.Sprintf("✅ Encaminhei seu pedido ao atendimento humano (ID: %s).\nAguarde contato.\n\n%s", ticketID, f.MainMenu(p))
}

// EscalationFailed is the store error for escalation.
func (f Formatter) EscalationFailed() string {
	return "⚠️ Erro ao encaminhar. Tente novamente mais tarde."
}

// FAQList shows the numbered topics.
func (f Formatter) FAQList(topics []conversation.FAQTopic) string {
	var b strings.Builder
	b.WriteString("📚 Dúvidas frequentes — digite o número do assunto:")
	for i, t := range topics {
		fmt.Fprintf(&b, "\n%d. %s", i+1, t.Question)
	}
	return b.String()
}

// FAQRetry re-prompts once after an unknown topic.
func (f Formatter) FAQRetry(topics []conversation.FAQTopic) string {
	return "Não encontrei esse assunto.\n\n" + f.FAQList(topics)
}

// FAQAnswer answers one topic and shows the menu again.
func (f Formatter) FAQAnswer(topic conversation.FAQTopic, p *helpdesk.Profile) string {
	return fmt.Sprintf("❓ %s\n%s\n\n%s", topic.Question, topic.Answer, f.MainMenu(p))
}

// FAQInvalid leaves the FAQ sub-menu after an unknown topic.
func (f Formatter) FAQInvalid(p *helpdesk.Profile) string {
	return "Assunto não encontrado. Voltando ao menu principal.\n\n" + f.MainMenu(p)
}

// Goodbye ends the conversation.
func (f Formatter) Goodbye() string {
	return "👋 Atendimento encerrado. Se precisar, volte quando quiser."
}

// UnknownState restarts authentication.
func (f Formatter) UnknownState() string {
	return "Estado desconhecido. Por favor, informe sua matrícula para começar."
}

// ServerError is the last-resort apology.
func (f Formatter) ServerError() string {
	return "⚠️ Erro no servidor. Tente novamente."
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
