package log

// Field names shared by every component's structured entries.
const (
	FieldSessionID  = "session_id"
	FieldRequestID  = "request_id"
	FieldEmployeeID = "employee_id"
	FieldTicketID   = "ticket_id"
	FieldComponent  = "component"

	FieldOldState = "old_state"
	FieldNewState = "new_state"

	FieldDuration = "duration"
)
