package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
	"github.com/sakif/smartwork/internal/repository/live"
)

// fakeStore is an in-memory repository.Store. Setting failWith makes every
// call fail, as a lost connection would.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int
	profiles   map[string]model.Profile
	tasks      map[string]model.Task
	identities map[string]model.Identity
	failWith   error
	patches    int
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:   map[string]model.Profile{},
		tasks:      map[string]model.Task{},
		identities: map[string]model.Identity{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateProfile(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if p.ID == "" {
		p.ID = f.id("profile")
	}
	if _, ok := f.profiles[p.ID]; ok {
		return apperror.Conflict("profile", p.ID)
	}
	p.CreatedAt = time.Now()
	f.profiles[p.ID] = *p
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	return &p, nil
}

func (f *fakeStore) ListProfiles(_ context.Context, filter repository.ProfileFilter) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.Profile{}
	for _, p := range f.profiles {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) SetTeamLead(_ context.Context, internID, leadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	p, ok := f.profiles[internID]
	if !ok {
		return apperror.NotFound("profile", internID)
	}
	p.TeamLeadID = leadID
	f.profiles[internID] = p
	return nil
}

func (f *fakeStore) CreateTask(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	t.ID = f.id("task")
	t.CreatedAt = time.Now()
	f.tasks[t.ID] = *t
	return nil
}

func (f *fakeStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, apperror.NotFound("task", id)
	}
	return &t, nil
}

func (f *fakeStore) ListTasks(_ context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.Task{}
	for _, t := range f.tasks {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) PatchTask(_ context.Context, id string, p model.TaskPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	t, ok := f.tasks[id]
	if !ok {
		return apperror.NotFound("task", id)
	}
	f.tasks[id] = p.Apply(t)
	f.patches++
	return nil
}

func (f *fakeStore) CreateIdentity(_ context.Context, id *model.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	for _, existing := range f.identities {
		if existing.Email == id.Email {
			return apperror.Conflict("identity", id.Email)
		}
	}
	if id.SubjectID == "" {
		id.SubjectID = f.id("subject")
	}
	f.identities[id.SubjectID] = *id
	return nil
}

func (f *fakeStore) GetIdentityByEmail(_ context.Context, email string) (*model.Identity, error) {
	return f.findIdentity(func(i model.Identity) bool {
		return i.Email == strings.ToLower(strings.TrimSpace(email))
	}, email)
}

func (f *fakeStore) GetIdentityByGoogleSub(_ context.Context, sub string) (*model.Identity, error) {
	return f.findIdentity(func(i model.Identity) bool { return i.GoogleSub != "" && i.GoogleSub == sub }, sub)
}

func (f *fakeStore) findIdentity(match func(model.Identity) bool, key string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, i := range f.identities {
		if match(i) {
			return &i, nil
		}
	}
	return nil, apperror.NotFound("identity", key)
}

func (f *fakeStore) LinkGoogle(_ context.Context, subjectID, sub string) error {
	return f.updateIdentity(subjectID, func(i *model.Identity) { i.GoogleSub = sub })
}

func (f *fakeStore) SetPasswordHash(_ context.Context, subjectID, hash string) error {
	return f.updateIdentity(subjectID, func(i *model.Identity) { i.PasswordHash = hash })
}

func (f *fakeStore) updateIdentity(subjectID string, fn func(*model.Identity)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	i, ok := f.identities[subjectID]
	if !ok {
		return apperror.NotFound("identity", subjectID)
	}
	fn(&i)
	f.identities[subjectID] = i
	return nil
}

func (f *fakeStore) fail(err error) {
	f.mu.Lock()
	f.failWith = err
	f.mu.Unlock()
}

// put stores a profile directly, bypassing the services.
func (f *fakeStore) put(p model.Profile) {
	f.mu.Lock()
	f.profiles[p.ID] = p
	f.mu.Unlock()
}

func (f *fakeStore) putTask(t model.Task) {
	f.mu.Lock()
	f.tasks[t.ID] = t
	f.mu.Unlock()
}

type fixture struct {
	store     *fakeStore
	profiles  *live.Profiles
	tasks     *live.Tasks
	directory *Directory
	taskSvc   *TaskService
	authn     *Authenticator
	tokens    *auth.TokenService
	passwords *auth.PasswordService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newFakeStore()
	profiles := live.NewProfiles(store, logger)
	tasks := live.NewTasks(store, logger)

	tokens, err := auth.NewTokenService("service-test-secret-0123456789", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	return &fixture{
		store:     store,
		profiles:  profiles,
		tasks:     tasks,
		directory: NewDirectory(profiles, tasks, store, passwords, logger),
		taskSvc:   NewTaskService(tasks, profiles, logger),
		authn:     NewAuthenticator(store, profiles, tokens, passwords, 720*time.Hour, logger),
		tokens:    tokens,
		passwords: passwords,
	}
}

// seedTeam stores lead L with intern I, and an unassigned intern I2 plus a
// second lead L2.
func (fx *fixture) seedTeam() {
	fx.store.put(model.Profile{ID: "L", Name: "Lena", Role: model.RoleTeamLead, TeamName: "Web"})
	fx.store.put(model.Profile{ID: "L2", Name: "Lars", Role: model.RoleTeamLead, TeamName: "Data"})
	fx.store.put(model.Profile{ID: "I", Name: "Ira", Role: model.RoleIntern, TeamLeadID: "L"})
	fx.store.put(model.Profile{ID: "I2", Name: "Ivo", Role: model.RoleIntern})
	fx.store.put(model.Profile{ID: "A", Name: "Ada", Role: model.RoleAdmin})
}
