package helpdesk

import "strings"

// Record is one row of the external spreadsheet: a flat column → value map.
type Record map[string]string

// Column names used by the deployed spreadsheet.
const (
	ColType        = "tipo"
	ColEmployeeID  = "matricula"
	ColName        = "nome"
	ColSector      = "setor"
	ColEmail       = "email"
	ColPhone       = "telefone"
	ColDepartment  = "departamento"
	ColTicketID    = "ticketId"
	ColDescription = "descricao"
	ColStatus      = "status"
	ColCreatedAt   = "criado_em"
)

// Row types stored in the tipo column.
const (
	TypeUser   = "user"
	TypeTicket = "ticket"
)

// Get returns the trimmed value of a column.
func (r Record) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsTicket reports whether the row describes a ticket. Sheets without a tipo
// column fall back to the presence of a ticket id.
func (r Record) IsTicket() bool {
	return strings.EqualFold(r.Get(ColType), TypeTicket) || r.Get(ColTicketID) != ""
}

// BelongsTo reports whether the row's employee id equals id (exact, trimmed).
func (r Record) BelongsTo(id string) bool {
	return r.Get(ColEmployeeID) == strings.TrimSpace(id)
}

// LatestProfile resolves the most recently appended non-ticket row for the
// employee. The store is append-only, so later rows supersede earlier ones.
func LatestProfile(records []Record, employeeID string) (Profile, bool) {
	id := strings.TrimSpace(employeeID)
	if id == "" {
		return Profile{}, false
	}
	for i := len(records) - 1; i >= 0; i-- {
		row := records[i]
		if row.IsTicket() || !row.BelongsTo(id) {
			continue
		}
		return ProfileFromRecord(row), true
	}
	return Profile{}, false
}

// RecentTickets returns at most limit tickets owned by the employee, most
// recently appended first.
func RecentTickets(records []Record, employeeID string, limit int) []Ticket {
	id := strings.TrimSpace(employeeID)
	if id == "" || limit <= 0 {
		return nil
	}
	tickets := make([]Ticket, 0, limit)
	for i := len(records) - 1; i >= 0 && len(tickets) < limit; i-- {
		row := records[i]
		if !row.IsTicket() || !row.BelongsTo(id) {
			continue
		}
		tickets = append(tickets, TicketFromRecord(row))
	}
	return tickets
}
