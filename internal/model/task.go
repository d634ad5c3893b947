package model

import "time"

// Status is a task's position in its lifecycle.
type Status string

const (
	StatusAssigned Status = "assigned" // intern has not submitted yet
	StatusPending  Status = "pending"  // submitted, awaiting the lead's decision
	StatusRejected Status = "rejected" // lead declined; intern may resubmit
	StatusApproved Status = "approved" // terminal
	// StatusCompleted only appears on documents written by the older
	// complete-only workflow. It is terminal and nothing moves into it.
	StatusCompleted Status = "completed"
)

// DeadlineLayout is the calendar-date encoding of Task.Deadline.
const DeadlineLayout = "2006-01-02"

// Task is a unit of work a team lead assigns to one of their interns.
//
// Everything except Status, WebsiteURL and GitHubURL is fixed at creation.
type Task struct {
	ID          string    `json:"id"          bson:"_id"`
	Title       string    `json:"title"       bson:"title"`
	Description string    `json:"description" bson:"description"`
	Deadline    string    `json:"deadline"    bson:"deadline"`
	AssignedTo  string    `json:"assignedTo"  bson:"assignedTo"`
	CreatedBy   string    `json:"createdBy"   bson:"createdBy"`
	FileURL     string    `json:"fileURL,omitempty" bson:"fileURL,omitempty"`
	Status      Status    `json:"status"      bson:"status"`
	WebsiteURL  string    `json:"websiteURL,omitempty" bson:"websiteURL,omitempty"`
	GitHubURL   string    `json:"githubURL,omitempty"  bson:"githubURL,omitempty"`
	CreatedAt   time.Time `json:"createdAt"   bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"   bson:"updatedAt"`
}

// TaskPatch is the only shape of write a task accepts after creation.
// Nil link fields are left untouched.
type TaskPatch struct {
	Status     Status
	WebsiteURL *string
	GitHubURL  *string
}

// Apply returns a copy of t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	t.Status = p.Status
	if p.WebsiteURL != nil {
		t.WebsiteURL = *p.WebsiteURL
	}
	if p.GitHubURL != nil {
		t.GitHubURL = *p.GitHubURL
	}
	return t
}
