package Models

type Role string

const (
	RoleTechnician    Role = "technician"
	RoleServiceCenter Role = "service_center"
	RoleRSM           Role = "rsm"
	RoleAdmin         Role = "admin"
)

// Principal is the authenticated caller handed to every engine operation.
// The engine trusts it and keeps no session state of its own.
type Principal struct {
	UserID   uint     `json:"user_id"`
	Name     string   `json:"name"`
	Role     Role     `json:"role"`
	Location Location `json:"location"`
}

// Manages reports whether the principal may act for stock held at loc.
// Regional managers oversee service centers and branches; everyone else only
// their own location.
func (p Principal) Manages(loc Location) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleRSM:
		return loc.Type == LocationServiceCenter || loc.Type == LocationBranch
	}
	return p.Location == loc
}
