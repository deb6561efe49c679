package tasks_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/matt-steen/task-tracker/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = auth.User("alice")
	bob   = auth.User("bob")
)

func newYearsDay() time.Time {
	return time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
}

func getManager(t *testing.T) (*tasks.Manager, *db.Repository) {
	dir := t.TempDir()
	repo := db.NewRepository(db.NewJSONStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "users.json")))

	return tasks.NewManager(repo, tasks.WithClock(newYearsDay)), repo
}

func addTask(t *testing.T, m *tasks.Manager, p auth.Principal, title string) *db.Task {
	task, err := m.Add(context.Background(), p, tasks.AddInput{Title: title, Deadline: "2025-01-10", Priority: "High"})
	require.NoError(t, err)

	return task
}

func stored(t *testing.T, repo *db.Repository) []*db.Task {
	all, err := repo.Tasks(context.Background())
	require.NoError(t, err)

	return all
}

func TestAdd(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, repo := getManager(t)

	task := addTask(t, m, alice, "Write report")

	assert.NotEmpty(task.ID)
	assert.Equal("Write report", task.Title)
	assert.Equal(db.PriorityHigh, task.Priority)
	assert.Equal(0, task.Progress)
	assert.False(task.Completed)
	assert.False(task.Notified)
	assert.Equal("", task.EndTime)
	assert.Equal("alice", task.CreatedBy)
	assert.Equal("2025-01-01 12:00:00", task.CreatedAt)
	assert.Equal("2025-01-09 09:00:00", task.ReminderTime)

	assert.Len(stored(t, repo), 1)

	addTask(t, m, alice, "Another")
	assert.Len(stored(t, repo), 2)
}

func TestAddDefaultsPriority(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)

	task, err := m.Add(context.Background(), alice, tasks.AddInput{Title: "x", Deadline: "2025-02-01"})
	assert.Nil(err)
	assert.Equal(db.PriorityMedium, task.Priority)
}

func TestPriorityCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)
	ctx := context.Background()

	task, err := m.Add(ctx, alice, tasks.AddInput{Title: "x", Deadline: "2025-02-01", Priority: "high"})
	assert.Nil(err)
	assert.Equal(db.PriorityHigh, task.Priority)

	task, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldPriority, "low")
	assert.Nil(err)
	assert.Equal(db.PriorityLow, task.Priority)

	_, err = m.Add(ctx, alice, tasks.AddInput{Title: "x", Deadline: "2025-02-01", Priority: "urgent"})
	assert.ErrorIs(err, tasks.ErrValidation)

	_, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldPriority, "urgent")
	assert.ErrorIs(err, tasks.ErrValidation)
}

func TestAddValidation(t *testing.T) {
	t.Parallel()

	m, repo := getManager(t)

	inputs := map[string]tasks.AddInput{
		"missing title":    {Deadline: "2025-01-10"},
		"blank title":      {Title: "   ", Deadline: "2025-01-10"},
		"missing deadline": {Title: "x"},
		"bad date":         {Title: "x", Deadline: "10/01/2025"},
		"impossible date":  {Title: "x", Deadline: "2025-02-30"},
		"bad priority":     {Title: "x", Deadline: "2025-01-10", Priority: "Urgent"},
	}

	for name, in := range inputs {
		in := in

		t.Run(name, func(t *testing.T) {
			_, err := m.Add(context.Background(), alice, in)
			assert.ErrorIs(t, err, tasks.ErrValidation)
		})
	}

	assert.Empty(t, stored(t, repo))
}

func TestDefaultReminder(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	deadline := time.Date(2025, 1, 10, 0, 0, 0, 0, time.Local)
	assert.Equal(
		time.Date(2025, 1, 9, 9, 0, 0, 0, time.Local),
		tasks.DefaultReminder(deadline, newYearsDay()),
	)

	// the day before the deadline at 09:00 has already passed
	now := time.Date(2025, 1, 9, 10, 30, 15, 500, time.Local)
	assert.Equal(
		time.Date(2025, 1, 9, 10, 31, 15, 0, time.Local),
		tasks.DefaultReminder(deadline, now),
	)
}

func TestOwnership(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)
	ctx := context.Background()

	addTask(t, m, alice, "alice's")
	addTask(t, m, bob, "bob's")

	mine, err := m.List(ctx, alice)
	assert.Nil(err)
	assert.Len(mine, 1)
	assert.Equal("alice's", mine[0].Title)

	all, err := m.List(ctx, auth.Guest())
	assert.Nil(err)
	assert.Len(all, 2)
}

func TestNonOwnerCannotMutate(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, repo := getManager(t)
	ctx := context.Background()

	task := addTask(t, m, alice, "alice's")
	before := stored(t, repo)

	_, err := m.UpdateField(ctx, bob, task.ID, tasks.FieldProgress, "50")
	assert.ErrorIs(err, tasks.ErrForbidden)

	_, err = m.ToggleCompleted(ctx, bob, task.ID)
	assert.ErrorIs(err, tasks.ErrForbidden)

	_, err = m.Complete(ctx, bob, task.ID)
	assert.ErrorIs(err, tasks.ErrForbidden)

	err = m.Delete(ctx, bob, task.ID)
	assert.ErrorIs(err, tasks.ErrForbidden)

	// bob sees no tasks, so an index doesn't reach alice's either
	err = m.Delete(ctx, bob, "0")
	assert.ErrorIs(err, tasks.ErrNotFound)

	assert.Equal(before, stored(t, repo))
}

func TestGuestCanMutateAnyTask(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, repo := getManager(t)

	task := addTask(t, m, alice, "alice's")

	updated, err := m.UpdateField(context.Background(), auth.Guest(), task.ID, tasks.FieldProgress, "40")
	assert.Nil(err)
	assert.Equal(40, updated.Progress)

	assert.Nil(m.Delete(context.Background(), auth.Guest(), task.ID))
	assert.Empty(stored(t, repo))
}

func TestProgressDerivesCompletion(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, repo := getManager(t)
	ctx := context.Background()

	task := addTask(t, m, alice, "x")

	updated, err := m.UpdateField(ctx, alice, task.ID, tasks.FieldProgress, "100")
	assert.Nil(err)
	assert.True(updated.Completed)
	assert.Equal(100, updated.Progress)
	assert.Equal("2025-01-01 12:00:00", updated.EndTime)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldProgress, "99")
	assert.Nil(err)
	assert.False(updated.Completed)
	assert.Equal("", updated.EndTime)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldProgress, "250")
	assert.Nil(err)
	assert.Equal(100, updated.Progress)
	assert.True(updated.Completed)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldProgress, "-5")
	assert.Nil(err)
	assert.Equal(0, updated.Progress)
	assert.False(updated.Completed)

	_, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldProgress, "half")
	assert.ErrorIs(err, tasks.ErrValidation)

	assert.Equal(0, stored(t, repo)[0].Progress)
}

func TestEndTimeDerivesCompletion(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)
	ctx := context.Background()

	task := addTask(t, m, alice, "x")

	updated, err := m.UpdateField(ctx, alice, task.ID, tasks.FieldEndTime, "2025-01-03 08:15")
	assert.Nil(err)
	assert.True(updated.Completed)
	assert.Equal(100, updated.Progress)
	assert.Equal("2025-01-03 08:15:00", updated.EndTime)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldEndTime, "")
	assert.Nil(err)
	assert.False(updated.Completed)
	assert.Equal(0, updated.Progress)
	assert.Equal("", updated.EndTime)

	_, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldEndTime, "tomorrow")
	assert.ErrorIs(err, tasks.ErrValidation)
}

func TestReminderEditRearms(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, repo := getManager(t)
	ctx := context.Background()

	task := addTask(t, m, alice, "x")

	require.NoError(t, repo.UpdateTasks(ctx, func(all []*db.Task) ([]*db.Task, error) {
		all[0].Notified = true

		return all, nil
	}))

	updated, err := m.UpdateField(ctx, alice, task.ID, tasks.FieldReminderTime, "2025-01-05 18:00:00")
	assert.Nil(err)
	assert.False(updated.Notified)
	assert.Equal("2025-01-05 18:00:00", updated.ReminderTime)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldReminderTime, "")
	assert.Nil(err)
	assert.Equal("", updated.ReminderTime)
}

func TestUpdateOtherFields(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)
	ctx := context.Background()

	task := addTask(t, m, alice, "x")

	updated, err := m.UpdateField(ctx, alice, task.ID, tasks.FieldTitle, " renamed ")
	assert.Nil(err)
	assert.Equal("renamed", updated.Title)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldDescription, "details")
	assert.Nil(err)
	assert.Equal("details", updated.Description)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldPriority, "Low")
	assert.Nil(err)
	assert.Equal(db.PriorityLow, updated.Priority)

	updated, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldDeadline, "2025-03-01")
	assert.Nil(err)
	assert.Equal("2025-03-01", updated.Deadline)

	_, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldTitle, "")
	assert.ErrorIs(err, tasks.ErrValidation)

	_, err = m.UpdateField(ctx, alice, task.ID, tasks.FieldDeadline, "2025-3-1x")
	assert.ErrorIs(err, tasks.ErrValidation)

	_, err = m.UpdateField(ctx, alice, task.ID, tasks.Field("created_by"), "bob")
	assert.ErrorIs(err, tasks.ErrValidation)
}

func TestToggleCompleted(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)
	ctx := context.Background()

	task := addTask(t, m, alice, "x")

	updated, err := m.ToggleCompleted(ctx, alice, task.ID)
	assert.Nil(err)
	assert.True(updated.Completed)
	assert.Equal(100, updated.Progress)
	assert.NotEmpty(updated.EndTime)

	updated, err = m.ToggleCompleted(ctx, alice, task.ID)
	assert.Nil(err)
	assert.False(updated.Completed)
	assert.Equal(0, updated.Progress)
	assert.Empty(updated.EndTime)
}

func TestCompleteIsIdempotent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)
	ctx := context.Background()

	task := addTask(t, m, alice, "x")

	first, err := m.Complete(ctx, alice, task.ID)
	assert.Nil(err)

	second, err := m.Complete(ctx, alice, task.ID)
	assert.Nil(err)
	assert.Equal(first, second)
}

func TestReferenceByIndex(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	m, _ := getManager(t)
	ctx := context.Background()

	addTask(t, m, bob, "bob's")
	addTask(t, m, alice, "alice first")
	addTask(t, m, alice, "alice second")

	// indexes count only the caller's visible tasks
	task, err := m.Get(ctx, alice, "1")
	assert.Nil(err)
	assert.Equal("alice second", task.Title)

	task, err = m.Get(ctx, auth.Guest(), "0")
	assert.Nil(err)
	assert.Equal("bob's", task.Title)

	_, err = m.Get(ctx, alice, "2")
	assert.ErrorIs(err, tasks.ErrNotFound)

	_, err = m.Get(ctx, alice, "no-such-id")
	assert.ErrorIs(err, tasks.ErrNotFound)

	assert.Nil(m.Delete(ctx, alice, "0"))

	remaining, err := m.List(ctx, alice)
	assert.Nil(err)
	assert.Len(remaining, 1)
	assert.Equal("alice second", remaining[0].Title)
}
