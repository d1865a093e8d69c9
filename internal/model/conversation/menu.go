package conversation

import "strings"

// MenuAction is what a main-menu option does.
type MenuAction string

const (
	ActionOpenTicket  MenuAction = "open_ticket"
	ActionListTickets MenuAction = "list_tickets"
	ActionEscalate    MenuAction = "escalate"
	ActionFAQ         MenuAction = "faq"
	ActionExit        MenuAction = "exit"
)

// MenuOption is one numbered entry of the main menu. Keys are part of the
// user-facing contract: renumbering a deployed menu is a breaking change.
type MenuOption struct {
	Key      string
	Action   MenuAction
	Label    string
	Emoji    string
	Keywords []string
}

// Menu is an ordered option table.
type Menu struct {
	Variant string
	Options []MenuOption
}

// Menu variants.
const (
	MenuClassic = "classic"
	MenuFAQ     = "faq"
)

var (
	optOpenTicket = MenuOption{Action: ActionOpenTicket, Label: "Abrir chamado",
		Keywords: []string{"abrir", "abrir chamado", "novo chamado", "registrar chamado", "problema"}}
	optListTickets = MenuOption{Action: ActionListTickets, Label: "Ver meus chamados",
		Keywords: []string{"meus chamados", "ver chamados", "listar", "consultar", "acompanhar"}}
	optEscalate = MenuOption{Action: ActionEscalate, Label: "Falar com um atendente",
		Keywords: []string{"atendente", "humano", "falar com alguem", "falar com uma pessoa", "suporte humano"}}
	optFAQ = MenuOption{Action: ActionFAQ, Label: "Dúvidas frequentes",
		Keywords: []string{"faq", "duvidas", "duvida", "perguntas frequentes"}}
	optExit = MenuOption{Action: ActionExit, Label: "Encerrar atendimento",
		Keywords: []string{"sair", "encerrar", "finalizar", "tchau"}}
)

func numbered(key, emoji string, o MenuOption) MenuOption {
	o.Key = key
	o.Emoji = emoji
	return o
}

// ClassicMenu is 1=open, 2=list, 3=attendant, 4=exit.
func ClassicMenu() Menu {
	return Menu{
		Variant: MenuClassic,
		Options: []MenuOption{
			numbered("1", "1️⃣", optOpenTicket),
			numbered("2", "2️⃣", optListTickets),
			numbered("3", "3️⃣", optEscalate),
			numbered("4", "4️⃣", optExit),
		},
	}
}

// FAQVariantMenu adds the FAQ sub-menu as 4 and moves exit to 0.
func FAQVariantMenu() Menu {
	return Menu{
		Variant: MenuFAQ,
		Options: []MenuOption{
			numbered("1", "1️⃣", optOpenTicket),
			numbered("2", "2️⃣", optListTickets),
			numbered("3", "3️⃣", optEscalate),
			numbered("4", "4️⃣", optFAQ),
			numbered("0", "0️⃣", optExit),
		},
	}
}

// MenuByVariant resolves a configured variant name.
func MenuByVariant(name string) (Menu, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MenuClassic:
		return ClassicMenu(), true
	case MenuFAQ:
		return FAQVariantMenu(), true
	default:
		return Menu{}, false
	}
}

// Option looks an entry up by key.
func (m Menu) Option(key string) (MenuOption, bool) {
	for _, o := range m.Options {
		if o.Key == key {
			return o, true
		}
	}
	return MenuOption{}, false
}

// Keys lists option keys in display order.
func (m Menu) Keys() []string {
	keys := make([]string, 0, len(m.Options))
	for _, o := range m.Options {
		keys = append(keys, o.Key)
	}
	return keys
}
