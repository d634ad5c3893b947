package model

// Area is a gated section of the portal.
type Area string

const (
	AreaLogin    Area = "login"
	AreaAdmin    Area = "admin"
	AreaTeamLead Area = "teamlead"
	AreaIntern   Area = "intern"
)

// Path is where a client navigates to enter the area.
func (a Area) Path() string {
	return "/" + string(a)
}

// ParseArea returns the area named s, or false for anything unknown.
func ParseArea(s string) (Area, bool) {
	switch a := Area(s); a {
	case AreaLogin, AreaAdmin, AreaTeamLead, AreaIntern:
		return a, true
	}
	return "", false
}
