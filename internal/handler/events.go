package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sakif/smartwork/internal/access"
	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/middleware"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/service"
	"github.com/sakif/smartwork/internal/session"
	"github.com/sakif/smartwork/internal/watch"
)

const defaultHeartbeat = 25 * time.Second

// Event names on the stream.
const (
	EventProfile  = "profile"
	EventTasks    = "tasks"
	EventInterns  = "interns"
	EventProfiles = "profiles"
	EventRedirect = "redirect"
)

// EventsHandler streams the caller's scoped lists as Server-Sent Events:
//
//	intern:   "tasks" (own tasks)
//	teamlead: "tasks" (tasks it created) and "interns"
//	admin:    "profiles" (every user)
//
// Each event carries the full current list. The stream is bound to a
// session.Context and ends with a "redirect" event once the caller's
// access to its area is withdrawn.
type EventsHandler struct {
	resolver  *session.ProfileResolver
	directory *service.Directory
	origin    string
	heartbeat time.Duration
	logger    *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func NewEventsHandler(resolver *session.ProfileResolver, directory *service.Directory, origin string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		resolver:  resolver,
		directory: directory,
		origin:    origin,
		heartbeat: defaultHeartbeat,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Close ends every open stream. Graceful shutdown calls it, since a stream
// never goes idle on its own.
func (h *EventsHandler) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// HandleEvents handles GET /api/events. It must run behind RequireAuth.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, _ := auth.SubjectIDFromContext(ctx)

	gate := session.NewGate()
	sc := session.NewContext(ctx, gate, h.resolver, h.logger)
	defer sc.Close()
	gate.SignIn(subjectID)

	for sc.Loading() {
		select {
		case <-ctx.Done():
			return
		case <-sc.Changes():
		}
	}
	if err := sc.Err(); err != nil {
		writeError(w, err)
		return
	}
	p := sc.Profile()
	if p == nil {
		writeError(w, apperror.NotProvisioned())
		return
	}
	area := access.DefaultArea(p.Role)
	if d := sc.Decide(area); !d.Allowed() {
		middleware.WriteRedirect(w, d.Target)
		return
	}

	box := newMailbox()
	box.push(EventProfile, p)
	subs, err := h.subscribe(ctx, p, box)
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()
	if err != nil {
		writeError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// The server's write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	h.logger.Debug("event stream opened", slog.String("subject_id", subjectID), slog.String("area", string(area)))
	defer h.logger.Debug("event stream closed", slog.String("subject_id", subjectID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return

		case <-sc.Changes():
			d := sc.Decide(area)
			switch d.Outcome {
			case access.Pending:
				continue
			case access.Redirect:
				_ = writeEvent(w, EventRedirect, middleware.RedirectBody{Redirect: d.Target, Location: d.Target.Path()})
				_ = rc.Flush()
				return
			}
			if cur := sc.Profile(); cur != nil {
				box.push(EventProfile, cur)
			}

		case <-box.ready:
			for _, ev := range box.drain() {
				if err := writeEvent(w, ev.name, ev.data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// subscribe opens the live queries for p's role. The returned
// subscriptions must be closed even when err is set.
func (h *EventsHandler) subscribe(ctx context.Context, p *model.Profile, box *mailbox) ([]*watch.Subscription, error) {
	var subs []*watch.Subscription
	add := func(s *watch.Subscription, err error) error {
		if s != nil {
			subs = append(subs, s)
		}
		return err
	}
	tasks := func(list []model.Task) { box.push(EventTasks, taskViews(h.origin, list)) }

	var err error
	switch p.Role {
	case model.RoleIntern:
		err = add(h.directory.WatchTasksOf(ctx, p.ID, tasks))
	case model.RoleTeamLead:
		err = add(h.directory.WatchTasksCreatedBy(ctx, p.ID, tasks))
		if err == nil {
			err = add(h.directory.WatchInternsOf(ctx, p.ID, func(list []model.Profile) {
				box.push(EventInterns, list)
			}))
		}
	case model.RoleAdmin:
		err = add(h.directory.WatchProfiles(ctx, "", func(list []model.Profile) {
			box.push(EventProfiles, list)
		}))
	}
	return subs, err
}

func writeEvent(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}

type event struct {
	name string
	data any
}

// mailbox keeps only the newest payload per event name, so a slow client
// skips intermediate lists instead of blocking the publisher.
type mailbox struct {
	mu      sync.Mutex
	order   []string
	pending map[string]any
	ready   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{pending: make(map[string]any), ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(name string, data any) {
	m.mu.Lock()
	if _, ok := m.pending[name]; !ok {
		m.order = append(m.order, name)
	}
	m.pending[name] = data
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, event{name: name, data: m.pending[name]})
	}
	m.order = m.order[:0]
	clear(m.pending)
	return out
}
