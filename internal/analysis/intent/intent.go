// Package intent turns a turn's free text and structured parameters into the
// inputs the conversation state machine understands.
package intent

import (
	"regexp"
	"strings"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/dialogflow"
)

// Command is a global command recognised in any state.
type Command string

const (
	CommandMenu Command = "MENU"
	CommandExit Command = "EXIT"
)

var globalCommands = map[string]Command{
	"menu":     CommandMenu,
	"voltar":   CommandMenu,
	"sair":     CommandExit,
	"encerrar": CommandExit,
	"exit":     CommandExit,
}

// Structured parameter names sent by the agent.
const (
	ParamEmployeeID  = "matricula"
	ParamName        = "nome"
	ParamEmail       = "email"
	ParamPhone       = "telefone"
	ParamDepartment  = "departamento"
	ParamOption      = "opcao"
	ParamDescription = "descricao"
)

var (
	employeeIDPattern = regexp.MustCompile(`\d{3,}`)
	singleDigit       = regexp.MustCompile(`(?:^|\D)(\d)(?:\D|$)`)
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// GlobalCommand matches the whole message against the fixed command
// vocabulary, ignoring case and accents.
func GlobalCommand(text string) (Command, bool) {
	cmd, ok := globalCommands[Fold(text)]
	return cmd, ok
}

// MenuChoice resolves a main-menu option. Outside the main menu it never
// matches, so a stray "2" typed during registration is not a menu choice. The
// structured option parameter wins over free text; free text is tried as a
// standalone digit first and keyword phrases second.
func MenuChoice(text string, params dialogflow.Params, state conversation.State, menu conversation.Menu) (conversation.MenuOption, bool) {
	if state != conversation.StateIdle {
		return conversation.MenuOption{}, false
	}

	if key := params.String(ParamOption); key != "" {
		if opt, ok := menu.Option(key); ok {
			return opt, true
		}
	}

	if m := singleDigit.FindStringSubmatch(text); m != nil {
		if opt, ok := menu.Option(m[1]); ok {
			return opt, true
		}
	}

	folded := Fold(text)
	if folded == "" {
		return conversation.MenuOption{}, false
	}
	for _, opt := range menu.Options {
		for _, kw := range opt.Keywords {
			if containsPhrase(folded, Fold(kw)) {
				return opt, true
			}
		}
	}
	return conversation.MenuOption{}, false
}

// Option picks a 1-based entry out of a list of size n, from the option
// parameter or a standalone digit in the text.
func Option(text string, params dialogflow.Params, n int) (int, bool) {
	candidates := []string{params.String(ParamOption)}
	if m := singleDigit.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	for _, c := range candidates {
		if len(c) != 1 || c[0] < '1' || c[0] > '9' {
			continue
		}
		idx := int(c[0] - '0')
		if idx <= n {
			return idx, true
		}
	}
	return 0, false
}

// Field extracts a registration value: the first non-empty structured
// parameter among keys, else the trimmed free text.
func Field(text string, params dialogflow.Params, keys ...string) (string, bool) {
	for _, k := range keys {
		if v := params.String(k); v != "" {
			return v, true
		}
	}
	if v := strings.TrimSpace(text); v != "" {
		return v, true
	}
	return "", false
}

// EmployeeID extracts the employee id from the structured parameter, else the
// first run of at least three digits in the text.
func EmployeeID(text string, params dialogflow.Params) (string, bool) {
	if v := params.String(ParamEmployeeID); v != "" {
		return v, true
	}
	if m := employeeIDPattern.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// ValidEmail checks the local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}
