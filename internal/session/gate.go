// Package session holds per-session state: who is signed in, their live
// profile, and the access decision derived from both.
//
// Nothing here is global. The HTTP layer builds a Gate and Context for each
// long-lived connection and closes them when the connection ends.
package session

import (
	"sync"

	"github.com/sakif/smartwork/internal/watch"
)

// Identity is the Gate's signal. SubjectID is empty when signed out.
type Identity struct {
	SubjectID     string
	Authenticated bool
}

// Gate tracks the signed-in subject of one session.
type Gate struct {
	mu      sync.Mutex
	current Identity
	hub     *watch.Hub[Identity]
}

func NewGate() *Gate {
	return &Gate{hub: watch.NewHub[Identity]()}
}

// SignIn switches the session to subjectID. Signing in as the current
// subject does not notify.
func (g *Gate) SignIn(subjectID string) {
	g.set(Identity{SubjectID: subjectID, Authenticated: subjectID != ""})
}

func (g *Gate) SignOut() {
	g.set(Identity{})
}

func (g *Gate) Current() Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

func (g *Gate) set(id Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == id {
		return
	}
	g.current = id
	g.hub.Publish(id)
}

// OnSubjectChanged calls fn with the current identity and then after every
// change until the subscription is closed. fn must not call SignIn or
// SignOut on the same Gate.
func (g *Gate) OnSubjectChanged(fn func(Identity)) *watch.Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub := g.hub.Subscribe(nil, fn)
	fn(g.current)
	return sub
}
