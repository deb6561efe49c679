// Package tasks implements the owner-checked operations on the task collection.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/rs/zerolog/log"
)

var (
	// ErrValidation is returned when an input is malformed. Nothing is written.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when a reference matches no visible task.
	ErrNotFound = errors.New("task not found")
	// ErrForbidden is returned when the caller doesn't own the task. Nothing is written.
	ErrForbidden = errors.New("task belongs to another user")
)

// Field names a task attribute that UpdateField can change.
type Field string

// The fields accepted by UpdateField.
const (
	FieldTitle        Field = "title"
	FieldDescription  Field = "description"
	FieldDeadline     Field = "deadline"
	FieldPriority     Field = "priority"
	FieldProgress     Field = "progress"
	FieldEndTime      Field = "end_time"
	FieldReminderTime Field = "reminder_time"
)

// Fields lists every editable field.
func Fields() []Field {
	return []Field{
		FieldTitle, FieldDescription, FieldDeadline, FieldPriority, FieldProgress, FieldEndTime, FieldReminderTime,
	}
}

const (
	reminderHour     = 9
	reminderFallback = time.Minute
)

// AddInput holds the values entered for a new task.
type AddInput struct {
	Title       string `json:"title" validate:"required"`
	Deadline    string `json:"deadline" validate:"required,datetime=2006-01-02"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// Manager performs task operations on behalf of a principal.
type Manager struct {
	repo     *db.Repository
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager returns a Manager over repo.
func NewManager(repo *db.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		validate: validator.New(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// DefaultReminder returns 09:00 on the day before the deadline, or one minute from now when that has
// already passed.
func DefaultReminder(deadline, now time.Time) time.Time {
	day := deadline.AddDate(0, 0, -1)
	reminder := time.Date(day.Year(), day.Month(), day.Day(), reminderHour, 0, 0, 0, deadline.Location())

	if reminder.Before(now) {
		return now.Add(reminderFallback).Truncate(time.Second)
	}

	return reminder
}

// Add validates the input and appends a new task owned by p.
func (m *Manager) Add(ctx context.Context, p auth.Principal, in AddInput) (*db.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Deadline = strings.TrimSpace(in.Deadline)
	in.Priority = strings.TrimSpace(in.Priority)

	if err := m.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	deadline, err := db.ParseDate(in.Deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	priority, err := db.ParsePriority(in.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	now := m.now()
	task := &db.Task{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Deadline:     in.Deadline,
		Priority:     priority,
		ReminderTime: db.FormatDateTime(DefaultReminder(deadline, now)),
		CreatedBy:    p.Name,
		CreatedAt:    db.FormatDateTime(now),
	}

	err = m.repo.UpdateTasks(ctx, func(tasks []*db.Task) ([]*db.Task, error) {
		return append(tasks, task), nil
	})
	if err != nil {
		return nil, fmt.Errorf("error adding task '%s': %w", task.Title, err)
	}

	log.Info().Str("task_id", task.ID).Str("user", p.Name).Msgf("added task '%s'", task.Title)

	return task.Clone(), nil
}

// List returns the tasks visible to p in stored order.
func (m *Manager) List(ctx context.Context, p auth.Principal) ([]*db.Task, error) {
	tasks, err := m.repo.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	return visible(tasks, p), nil
}

// Get returns the task referenced by ref.
func (m *Manager) Get(ctx context.Context, p auth.Principal, ref string) (*db.Task, error) {
	tasks, err := m.repo.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	idx, err := resolve(tasks, p, ref)
	if err != nil {
		return nil, err
	}

	return tasks[idx], nil
}

// UpdateField sets one field of a task and re-derives the fields depending on it.
func (m *Manager) UpdateField(ctx context.Context, p auth.Principal, ref string, field Field, value string) (*db.Task, error) {
	task, err := m.mutate(ctx, p, ref, func(task *db.Task) error {
		return m.setField(task, field, value)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("task_id", task.ID).Str("user", p.Name).Str("field", string(field)).Msg("updated task")

	return task, nil
}

// ToggleCompleted flips the completion of a task. Completion always follows progress: completing sets
// progress to 100 and stamps the end time, reopening resets progress to 0 and clears it.
func (m *Manager) ToggleCompleted(ctx context.Context, p auth.Principal, ref string) (*db.Task, error) {
	return m.mutate(ctx, p, ref, func(task *db.Task) error {
		if task.Completed {
			m.setProgress(task, 0)
		} else {
			m.setProgress(task, 100)
		}

		return nil
	})
}

// Complete marks a task as completed. Completing a completed task changes nothing.
func (m *Manager) Complete(ctx context.Context, p auth.Principal, ref string) (*db.Task, error) {
	return m.mutate(ctx, p, ref, func(task *db.Task) error {
		m.setProgress(task, 100)

		return nil
	})
}

// Delete removes a task.
func (m *Manager) Delete(ctx context.Context, p auth.Principal, ref string) error {
	var removed *db.Task

	err := m.repo.UpdateTasks(ctx, func(tasks []*db.Task) ([]*db.Task, error) {
		idx, err := resolve(tasks, p, ref)
		if err != nil {
			return nil, err
		}

		removed = tasks[idx]

		return append(tasks[:idx], tasks[idx+1:]...), nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("task_id", removed.ID).Str("user", p.Name).Msgf("deleted task '%s'", removed.Title)

	return nil
}

// mutate applies fn to the referenced task and saves the collection. A failing fn writes nothing.
func (m *Manager) mutate(ctx context.Context, p auth.Principal, ref string, fn func(*db.Task) error) (*db.Task, error) {
	var updated *db.Task

	err := m.repo.UpdateTasks(ctx, func(tasks []*db.Task) ([]*db.Task, error) {
		idx, err := resolve(tasks, p, ref)
		if err != nil {
			return nil, err
		}

		if err := fn(tasks[idx]); err != nil {
			return nil, err
		}

		updated = tasks[idx].Clone()

		return tasks, nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (m *Manager) setField(task *db.Task, field Field, value string) error {
	switch field {
	case FieldTitle:
		title := strings.TrimSpace(value)
		if title == "" {
			return fmt.Errorf("%w: title is required", ErrValidation)
		}

		task.Title = title
	case FieldDescription:
		task.Description = value
	case FieldDeadline:
		if _, err := db.ParseDate(value); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}

		task.Deadline = strings.TrimSpace(value)
	case FieldPriority:
		priority, err := db.ParsePriority(value)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}

		task.Priority = priority
	case FieldProgress:
		progress, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: progress must be a whole number", ErrValidation)
		}

		m.setProgress(task, progress)
	case FieldEndTime:
		return m.setEndTime(task, value)
	case FieldReminderTime:
		return setReminder(task, value)
	default:
		return fmt.Errorf("%w: unknown field '%s'", ErrValidation, field)
	}

	return nil
}

// setProgress clamps progress to [0,100] and keeps completion and end time consistent with it.
func (m *Manager) setProgress(task *db.Task, progress int) {
	if progress < 0 {
		progress = 0
	}

	if progress > 100 {
		progress = 100
	}

	task.Progress = progress

	if progress == 100 {
		task.Completed = true

		if task.EndTime == "" {
			task.EndTime = db.FormatDateTime(m.now())
		}

		return
	}

	task.Completed = false
	task.EndTime = ""
}

func (m *Manager) setEndTime(task *db.Task, value string) error {
	if strings.TrimSpace(value) == "" {
		if task.Progress == 100 {
			task.Progress = 0
		}

		task.Completed = false
		task.EndTime = ""

		return nil
	}

	end, err := db.ParseDateTime(value)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	task.EndTime = db.FormatDateTime(end)
	task.Completed = true
	task.Progress = 100

	return nil
}

// setReminder replaces the reminder and re-arms it.
func setReminder(task *db.Task, value string) error {
	if strings.TrimSpace(value) == "" {
		task.ReminderTime = ""
		task.Notified = false

		return nil
	}

	reminder, err := db.ParseDateTime(value)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	task.ReminderTime = db.FormatDateTime(reminder)
	task.Notified = false

	return nil
}

func visible(tasks []*db.Task, p auth.Principal) []*db.Task {
	result := []*db.Task{}

	for _, task := range tasks {
		if p.CanAccess(task) {
			result = append(result, task)
		}
	}

	return result
}

// resolve returns the position in tasks of the task ref points at. ref is a task id, or else an index
// into the tasks visible to p.
func resolve(tasks []*db.Task, p auth.Principal, ref string) (int, error) {
	ref = strings.TrimSpace(ref)

	for i, task := range tasks {
		if task.ID == ref {
			if !p.CanAccess(task) {
				return -1, fmt.Errorf("%w: '%s' is owned by %s", ErrForbidden, task.Title, task.CreatedBy)
			}

			return i, nil
		}
	}

	if n, err := strconv.Atoi(ref); err == nil && n >= 0 {
		seen := 0

		for i, task := range tasks {
			if !p.CanAccess(task) {
				continue
			}

			if seen == n {
				return i, nil
			}

			seen++
		}
	}

	return -1, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	fe := errs[0]
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	case "datetime":
		return fmt.Errorf("%w: invalid %s '%s', expected YYYY-MM-DD", ErrValidation, field, fe.Value())
	}

	return fmt.Errorf("%w: %s", ErrValidation, fe.Error())
}
