// Package access decides whether a profile may enter a portal area.
//
// Decide is the single authorization choke point. It is total and has no
// side effects: every combination of inputs yields exactly one Decision, and
// calling it never touches the store or the logger. A redirect is normal
// control flow, not an error.
package access

import "github.com/sakif/smartwork/internal/model"

// Outcome is the kind of decision.
type Outcome int

const (
	// Pending means identity or profile resolution is still in flight; the
	// caller renders a neutral loading state.
	Pending Outcome = iota
	Allow
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "pending"
	}
}

// Decision is the result of Decide. Target is set only for Redirect.
type Decision struct {
	Outcome Outcome
	Target  model.Area
}

func (d Decision) Allowed() bool { return d.Outcome == Allow }

// requiredRole maps each privileged area to the only role allowed in it.
var requiredRole = map[model.Area]model.Role{
	model.AreaAdmin:    model.RoleAdmin,
	model.AreaTeamLead: model.RoleTeamLead,
	model.AreaIntern:   model.RoleIntern,
}

// DefaultArea is where a role lands after sign-in. Unknown roles go to login.
func DefaultArea(role model.Role) model.Area {
	switch role {
	case model.RoleAdmin:
		return model.AreaAdmin
	case model.RoleTeamLead:
		return model.AreaTeamLead
	case model.RoleIntern:
		return model.AreaIntern
	}
	return model.AreaLogin
}

// Decide maps (profile, loading, area) to a Decision.
//
// A nil profile means anonymous or not yet provisioned. Anonymous visitors
// and profiles with an unrecognised role are redirected to login from every
// privileged area. The login area itself is the exception: it has no
// required role, and such a caller asking for it is allowed in, since a
// redirect from login to login would never settle. A profile with a known
// role asking for login is sent to its own default area.
func Decide(p *model.Profile, loading bool, area model.Area) Decision {
	if loading {
		return Decision{Outcome: Pending}
	}
	if p == nil || !p.Role.Valid() {
		if area == model.AreaLogin {
			return Decision{Outcome: Allow}
		}
		return redirect(model.AreaLogin)
	}
	if want, ok := requiredRole[area]; ok && want == p.Role {
		return Decision{Outcome: Allow}
	}
	return redirect(DefaultArea(p.Role))
}

func redirect(to model.Area) Decision {
	return Decision{Outcome: Redirect, Target: to}
}
