// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is one of the three account kinds. It is fixed at registration.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleTeamLead Role = "teamlead"
	RoleIntern   Role = "intern"
)

// Valid reports whether r is one of the recognised roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeamLead, RoleIntern:
		return true
	}
	return false
}

// Profile is the application-level record for a signed-in subject.
//
// TeamLeadID is only meaningful on intern profiles. It is a non-owning link
// to the lead's profile id; an empty string means the intern is unassigned.
// A lead's interns are found by querying on this field, never by a list on
// the lead.
type Profile struct {
	ID         string    `json:"id"         bson:"_id"`
	Name       string    `json:"name"       bson:"name"`
	Email      string    `json:"email"      bson:"email"`
	Role       Role      `json:"role"       bson:"role"`
	TeamName   string    `json:"teamName"   bson:"teamName"`
	TeamLeadID string    `json:"teamLeadId" bson:"teamLeadId"`
	CreatedAt  time.Time `json:"createdAt"  bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"  bson:"updatedAt"`
}

// Identity is the credential record behind a Profile. SubjectID equals the
// profile id. Either PasswordHash or GoogleSub (or both) is set.
type Identity struct {
	SubjectID    string    `json:"subjectId"  bson:"_id"`
	Email        string    `json:"email"      bson:"email"`
	PasswordHash string    `json:"-"          bson:"passwordHash,omitempty"`
	GoogleSub    string    `json:"-"          bson:"googleSub,omitempty"`
	CreatedAt    time.Time `json:"createdAt"  bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"  bson:"updatedAt"`
}
