package helpdesk

// Profile is the employee data the conversation keeps once authenticated.
type Profile struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Sector     string `json:"sector,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Department string `json:"department,omitempty"`
}

// ProfileFromRecord maps a spreadsheet row onto a Profile.
func ProfileFromRecord(r Record) Profile {
	p := Profile{
		EmployeeID: r.Get(ColEmployeeID),
		Name:       r.Get(ColName),
		Sector:     r.Get(ColSector),
		Email:      r.Get(ColEmail),
		Phone:      r.Get(ColPhone),
		Department: r.Get(ColDepartment),
	}
	if p.Department == "" {
		p.Department = p.Sector
	}
	if p.Sector == "" {
		p.Sector = p.Department
	}
	return p
}

// ToRecord renders the profile as a user row. createdAt is already formatted
// for the sheet.
func (p Profile) ToRecord(createdAt string) Record {
	return Record{
		ColType:       TypeUser,
		ColEmployeeID: p.EmployeeID,
		ColName:       p.Name,
		ColEmail:      p.Email,
		ColPhone:      p.Phone,
		ColSector:     p.Sector,
		ColDepartment: p.Department,
		ColCreatedAt:  createdAt,
	}
}
