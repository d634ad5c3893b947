// Package lifecycle holds the task status state machine.
//
//	assigned --submit--> pending
//	rejected --submit--> pending
//	pending  --approve--> approved   (terminal)
//	pending  --reject-->  rejected
//
// The engine is pure. It checks who is acting, what state the task is in and
// what the caller supplied, and returns the exact patch to write. Callers
// write that patch and nothing else.
package lifecycle

import (
	"net/url"
	"strings"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
)

// Action is a role-specific trigger on a task.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// transitions lists every legal (from, action) pair.
var transitions = map[model.Status]map[Action]model.Status{
	model.StatusAssigned: {ActionSubmit: model.StatusPending},
	model.StatusRejected: {ActionSubmit: model.StatusPending},
	model.StatusPending: {
		ActionApprove: model.StatusApproved,
		ActionReject:  model.StatusRejected,
	},
}

// Next returns the status reached by applying action in status from.
func Next(from model.Status, action Action) (model.Status, error) {
	to, ok := transitions[from][action]
	if !ok {
		return "", apperror.IllegalTransition(string(from), string(action))
	}
	return to, nil
}

// IsTerminal reports whether no action is defined from s.
func IsTerminal(s model.Status) bool {
	return len(transitions[s]) == 0
}

// Editable reports whether the assigned intern may change the links.
func Editable(s model.Status) bool {
	_, ok := transitions[s][ActionSubmit]
	return ok
}

// Submission is what an intern hands in.
type Submission struct {
	WebsiteURL string
	GitHubURL  string
}

// Submit validates an intern's (re)submission of t.
//
// Both links are required; a partial submission is refused before any
// state check so the caller can report the missing field inline.
func Submit(t *model.Task, actorID string, s Submission) (model.TaskPatch, error) {
	website, err := cleanLink("websiteURL", "website", s.WebsiteURL)
	if err != nil {
		return model.TaskPatch{}, err
	}
	github, err := cleanLink("githubURL", "GitHub", s.GitHubURL)
	if err != nil {
		return model.TaskPatch{}, err
	}
	if actorID == "" || actorID != t.AssignedTo {
		return model.TaskPatch{}, apperror.Forbidden("only the assigned intern can submit this task")
	}
	to, err := Next(t.Status, ActionSubmit)
	if err != nil {
		return model.TaskPatch{}, err
	}
	return model.TaskPatch{Status: to, WebsiteURL: &website, GitHubURL: &github}, nil
}

// Approve validates the creating lead's approval of t.
func Approve(t *model.Task, actorID string) (model.TaskPatch, error) {
	return review(t, actorID, ActionApprove)
}

// Reject validates the creating lead's rejection of t.
func Reject(t *model.Task, actorID string) (model.TaskPatch, error) {
	return review(t, actorID, ActionReject)
}

func review(t *model.Task, actorID string, action Action) (model.TaskPatch, error) {
	if actorID == "" || actorID != t.CreatedBy {
		return model.TaskPatch{}, apperror.Forbidden("only the lead who created this task can review it")
	}
	to, err := Next(t.Status, action)
	if err != nil {
		return model.TaskPatch{}, err
	}
	// Only Submit produces pending, so this only trips on hand-edited data.
	if t.WebsiteURL == "" || t.GitHubURL == "" {
		return model.TaskPatch{}, apperror.ValidationFailed("status", "task has no complete submission to review")
	}
	return model.TaskPatch{Status: to}, nil
}

func cleanLink(field, label, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.ValidationFailed(field, label+" link is required")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperror.ValidationFailed(field, label+" link must be an http(s) URL")
	}
	return raw, nil
}
