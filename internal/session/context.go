package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/smartwork/internal/access"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/watch"
)

// Context is the session object handed to code that needs the current
// user. It follows the Gate: each subject change releases the previous
// profile subscription before resolving the new subject.
type Context struct {
	ctx      context.Context
	resolver *ProfileResolver
	logger   *slog.Logger

	mu         sync.Mutex
	gen        uint64
	profile    *model.Profile
	loading    bool
	err        error
	profileSub *watch.Subscription
	gateSub    *watch.Subscription
	changes    chan struct{}
}

// NewContext binds a session to gate. ctx scopes the profile reads and
// should live as long as the session.
func NewContext(ctx context.Context, gate *Gate, resolver *ProfileResolver, logger *slog.Logger) *Context {
	c := &Context{
		ctx:      ctx,
		resolver: resolver,
		logger:   logger,
		loading:  true,
		changes:  make(chan struct{}, 1),
	}
	c.gateSub = gate.OnSubjectChanged(c.subjectChanged)
	return c
}

func (c *Context) subjectChanged(id Identity) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	prev := c.profileSub
	c.profileSub = nil
	c.profile = nil
	c.err = nil
	c.loading = id.Authenticated
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	c.notify()

	if !id.Authenticated {
		return
	}

	sub, err := c.resolver.Resolve(c.ctx, id.SubjectID, func(p *model.Profile) {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.profile = p
		c.loading = false
		c.mu.Unlock()
		c.notify()
	})

	c.mu.Lock()
	if c.gen != gen {
		// Superseded while resolving.
		c.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
		return
	}
	if err != nil {
		c.err = err
		c.loading = false
		c.mu.Unlock()
		c.logger.Error("resolving session profile", "subject_id", id.SubjectID, "error", err)
		c.notify()
		return
	}
	c.profileSub = sub
	c.mu.Unlock()
}

func (c *Context) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Changes signals, coalesced, that Profile or Loading may have changed.
func (c *Context) Changes() <-chan struct{} {
	return c.changes
}

// Profile returns a copy of the current profile, or nil.
func (c *Context) Profile() *model.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

func (c *Context) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err is the last profile resolution failure, cleared on subject change.
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Decide runs the access decision for area against the current state.
func (c *Context) Decide(area model.Area) access.Decision {
	c.mu.Lock()
	p, loading := c.profile, c.loading
	c.mu.Unlock()
	return access.Decide(p, loading, area)
}

// Close releases the gate and profile subscriptions. Safe to call twice.
func (c *Context) Close() {
	c.gateSub.Close()

	c.mu.Lock()
	c.gen++
	sub := c.profileSub
	c.profileSub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}
