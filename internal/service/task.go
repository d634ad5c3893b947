package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/lifecycle"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
	"github.com/sakif/smartwork/internal/sanitize"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
)

// TaskService creates tasks and drives them through the lifecycle. Every
// rule about who may do what to a task lives in package lifecycle; this
// service loads, asks, and writes exactly the patch it is given.
type TaskService struct {
	tasks    TaskStore
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

func NewTaskService(tasks TaskStore, profiles repository.ProfileRepository, logger *slog.Logger) *TaskService {
	return &TaskService{tasks: tasks, profiles: profiles, logger: logger}
}

// NewTask is what a lead fills in. FileURL is optional.
type NewTask struct {
	Title       string
	Description string
	Deadline    string
	AssignedTo  string
	FileURL     string
}

// Create stores a task from leadID for one of leadID's own interns.
func (s *TaskService) Create(ctx context.Context, leadID string, in NewTask) (*model.Task, error) {
	title := sanitize.Text(in.Title)
	description := sanitize.Text(in.Description)
	deadline := strings.TrimSpace(in.Deadline)
	assignedTo := strings.TrimSpace(in.AssignedTo)

	switch {
	case title == "":
		return nil, apperror.ValidationFailed("title", "title is required")
	case len(title) > MaxTitleLength:
		return nil, apperror.ValidationFailed("title", fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	case description == "":
		return nil, apperror.ValidationFailed("description", "description is required")
	case len(description) > MaxDescriptionLength:
		return nil, apperror.ValidationFailed("description", fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	case deadline == "":
		return nil, apperror.ValidationFailed("deadline", "deadline is required")
	case assignedTo == "":
		return nil, apperror.ValidationFailed("assignedTo", "choose an intern to assign")
	}
	if _, err := time.Parse(model.DeadlineLayout, deadline); err != nil {
		return nil, apperror.ValidationFailed("deadline", "deadline must be a date like 2026-01-31")
	}

	lead, err := s.profiles.GetProfile(ctx, leadID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotProvisioned()
		}
		return nil, storeErr(s.logger, "loading lead", err)
	}
	if lead.Role != model.RoleTeamLead {
		return nil, apperror.Forbidden("only team leads can create tasks")
	}

	intern, err := s.profiles.GetProfile(ctx, assignedTo)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.ValidationFailed("assignedTo", "no intern with id "+assignedTo)
	}
	if err != nil {
		return nil, storeErr(s.logger, "loading intern", err)
	}
	if intern.Role != model.RoleIntern || intern.TeamLeadID != leadID {
		return nil, apperror.ValidationFailed("assignedTo", "tasks can only be assigned to your own interns")
	}

	task := &model.Task{
		Title:       title,
		Description: description,
		Deadline:    deadline,
		AssignedTo:  assignedTo,
		CreatedBy:   leadID,
		FileURL:     strings.TrimSpace(in.FileURL),
		Status:      model.StatusAssigned,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, storeErr(s.logger, "creating task", err)
	}

	s.logger.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("lead_id", leadID),
		slog.String("intern_id", assignedTo),
	)
	return task, nil
}

// Get returns a task to the intern it is assigned to or the lead who
// created it. Anyone else gets NotFound so ids do not leak.
func (s *TaskService) Get(ctx context.Context, viewerID, taskID string) (*model.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if viewerID != task.AssignedTo && viewerID != task.CreatedBy {
		return nil, apperror.NotFound("task", taskID)
	}
	return task, nil
}

// Submit hands in both links for internID's task, from assigned or rejected.
func (s *TaskService) Submit(ctx context.Context, internID, taskID, websiteURL, githubURL string) (*model.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	patch, err := lifecycle.Submit(task, internID, lifecycle.Submission{WebsiteURL: websiteURL, GitHubURL: githubURL})
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, task, patch, "task submitted")
}

// Approve marks leadID's pending task approved.
func (s *TaskService) Approve(ctx context.Context, leadID, taskID string) (*model.Task, error) {
	return s.review(ctx, leadID, taskID, lifecycle.Approve)
}

// Reject sends leadID's pending task back to the intern.
func (s *TaskService) Reject(ctx context.Context, leadID, taskID string) (*model.Task, error) {
	return s.review(ctx, leadID, taskID, lifecycle.Reject)
}

func (s *TaskService) review(ctx context.Context, leadID, taskID string, decide func(*model.Task, string) (model.TaskPatch, error)) (*model.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	patch, err := decide(task, leadID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, task, patch, "task reviewed")
}

func (s *TaskService) load(ctx context.Context, taskID string) (*model.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, apperror.ValidationFailed("id", "task id is required")
	}
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, storeErr(s.logger, "loading task", err)
	}
	return task, nil
}

func (s *TaskService) apply(ctx context.Context, task *model.Task, patch model.TaskPatch, event string) (*model.Task, error) {
	if err := s.tasks.PatchTask(ctx, task.ID, patch); err != nil {
		return nil, storeErr(s.logger, "updating task", err)
	}
	updated := patch.Apply(*task)

	s.logger.Info(event,
		slog.String("task_id", task.ID),
		slog.String("from", string(task.Status)),
		slog.String("to", string(updated.Status)),
	)
	return &updated, nil
}
