package helpdesk

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Ticket statuses. Only StatusOpen is ever written; status updates happen
// outside this service.
const (
	StatusOpen = "Aberto"
)

// EscalationPrefix marks tickets that ask for a human attendant.
const EscalationPrefix = "[ESCALA] "

// TicketKind distinguishes regular tickets from escalations.
type TicketKind string

const (
	KindTicket     TicketKind = "ticket"
	KindEscalation TicketKind = "escalation"
)

// Ticket is an immutable helpdesk request appended to the record store.
type Ticket struct {
	TicketID    string `json:"ticketId"`
	EmployeeID  string `json:"employeeId"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

// TicketFromRecord maps a ticket row onto a Ticket.
func TicketFromRecord(r Record) Ticket {
	return Ticket{
		TicketID:    r.Get(ColTicketID),
		EmployeeID:  r.Get(ColEmployeeID),
		Description: r.Get(ColDescription),
		Status:      r.Get(ColStatus),
		CreatedAt:   r.Get(ColCreatedAt),
	}
}

// ToRecord renders the ticket as a row, denormalising the owner's name and
// sector so the sheet is readable by operators.
func (t Ticket) ToRecord(owner Profile) Record {
	return Record{
		ColType:        TypeTicket,
		ColTicketID:    t.TicketID,
		ColEmployeeID:  t.EmployeeID,
		ColName:        owner.Name,
		ColSector:      owner.Sector,
		ColDescription: t.Description,
		ColStatus:      t.Status,
		ColCreatedAt:   t.CreatedAt,
	}
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewTicketID returns T-<base36 unix millis>-<5 random base36 chars>.
// Uniqueness is probabilistic, which is enough at helpdesk volume.
func NewTicketID(now time.Time) string {
	var b strings.Builder
	b.WriteString("T-")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	b.WriteByte('-')
	radix := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < 5; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			b.WriteByte(base36Alphabet[now.UnixNano()%36])
			continue
		}
		b.WriteByte(base36Alphabet[n.Int64()])
	}
	return b.String()
}
