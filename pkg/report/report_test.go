package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/matt-steen/task-tracker/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []*db.Task {
	return []*db.Task{
		{
			Title: "january one", Deadline: "2025-01-10", Priority: db.PriorityHigh, Progress: 100, Completed: true,
			CreatedBy: "alice", CreatedAt: "2025-01-01 10:00:00", EndTime: "2025-01-02 10:00:00",
		},
		{
			Title: "january two", Deadline: "2025-01-20", Priority: db.PriorityLow, Progress: 100, Completed: true,
			CreatedBy: "alice", CreatedAt: "2025-01-05 08:00:00", EndTime: "2025-01-05 12:00:00",
		},
		{
			Title: "february", Deadline: "2025-02-10", Priority: db.PriorityMedium, Progress: 100, Completed: true,
			CreatedBy: "alice", CreatedAt: "2025-01-20 08:00:00", EndTime: "2025-02-01 08:00:00",
		},
		{
			Title: "open", Description: "with, a comma", Deadline: "2025-01-31", Priority: db.PriorityMedium,
			Progress: 30, CreatedBy: "alice", CreatedAt: "2025-01-03 09:00:00",
		},
		{
			Title: "broken created", Deadline: "2025-01-31", Priority: db.PriorityMedium, Progress: 100, Completed: true,
			CreatedBy: "alice", CreatedAt: "sometime", EndTime: "2025-01-15 09:00:00",
		},
		{
			Title: "bob's", Deadline: "2025-01-31", Priority: db.PriorityMedium, Progress: 100, Completed: true,
			CreatedBy: "bob", CreatedAt: "2025-01-01 00:00:00", EndTime: "2025-01-30 00:00:00",
		},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	r, err := report.Build(fixture(), auth.User("alice"), 2025, 1)
	assert.Nil(err)

	assert.Equal(5, r.Total)
	assert.Equal(3, r.Completed)
	assert.Equal(2, r.Pending)
	assert.True(r.HasAverage)
	// (24h + 4h) / 2, the unparsable creation time is left out of the average
	assert.Equal(14*time.Hour, r.Average)
	assert.Equal("14h0m0s", r.AverageString())
	assert.Equal("report_alice_2025_01.csv", r.Filename())
}

func TestBuildGuestSeesAll(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	r, err := report.Build(fixture(), auth.Guest(), 2025, 1)
	assert.Nil(err)
	assert.Equal(6, r.Total)
	assert.Equal(4, r.Completed)
	assert.Equal("report_guest_2025_01.csv", r.Filename())
}

func TestBuildNoCompletedTasks(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	r, err := report.Build(fixture(), auth.User("alice"), 2025, 3)
	assert.Nil(err)
	assert.Equal(0, r.Completed)
	assert.Equal(5, r.Pending)
	assert.False(r.HasAverage)
	assert.Equal("", r.AverageString())

	// detail rows still list every owned task
	assert.Len(r.Tasks, 5)
}

func TestBuildInvalidPeriod(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	_, err := report.Build(fixture(), auth.User("alice"), 2025, 0)
	assert.ErrorIs(err, report.ErrInvalidPeriod)

	_, err = report.Build(fixture(), auth.User("alice"), 2025, 13)
	assert.ErrorIs(err, report.ErrInvalidPeriod)

	_, err = report.Build(fixture(), auth.User("alice"), 0, 5)
	assert.ErrorIs(err, report.ErrInvalidPeriod)
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	r, err := report.Build(fixture(), auth.User("alice"), 2025, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Nil(r.WriteCSV(&buf))

	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	assert.Nil(err)

	// the csv reader skips the blank separator row
	assert.Equal([][]string{
		{"User", "alice"},
		{"Month", "2025-03"},
		{"Total Tasks", "5"},
		{"Completed", "0"},
		{"Pending", "5"},
		{"Average Completion Time", ""},
	}, rows[:6])

	// task rows follow the blank separator directly
	assert.Len(rows, 11)
	assert.Len(rows[6], 7)
	assert.Equal([]string{"open", "with, a comma", "2025-01-31", "Medium", "30", "2025-01-03 09:00:00", ""}, rows[9])
}

func TestWriteCSVBlankRow(t *testing.T) {
	t.Parallel()

	r, err := report.Build(nil, auth.User("carol"), 2025, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf))

	assert.Equal(t, "User,carol\nMonth,2025-01\nTotal Tasks,0\nCompleted,0\nPending,0\nAverage Completion Time,\n\n",
		buf.String())
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	dir := t.TempDir()
	store := db.NewJSONStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "users.json"))
	require.NoError(t, store.SaveTasks(context.Background(), fixture()))

	generator := report.NewGenerator(db.NewRepository(store), filepath.Join(dir, "reports"))

	path, r, err := generator.Generate(context.Background(), auth.User("alice"), 2025, 1)
	assert.Nil(err)
	assert.Equal(filepath.Join(dir, "reports", "report_alice_2025_01.csv"), path)
	assert.Equal(3, r.Completed)

	data, err := os.ReadFile(path)
	assert.Nil(err)
	assert.Contains(string(data), "Completed,3\n")

	_, _, err = generator.Generate(context.Background(), auth.User("alice"), 2025, 13)
	assert.ErrorIs(err, report.ErrInvalidPeriod)
}

func TestGenerateStaysInDir(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	dir := t.TempDir()
	reports := filepath.Join(dir, "reports")
	repo := db.NewRepository(db.NewJSONStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "users.json")))
	generator := report.NewGenerator(repo, reports)

	// names that predate the username rule may still be in an accounts file
	for _, name := range []string{"x/../../escaped", "a/b"} {
		_, _, err := generator.Generate(context.Background(), auth.User(name), 2025, 1)
		assert.ErrorIs(err, report.ErrUnsafeFilename, name)
	}

	_, err := os.Stat(filepath.Join(dir, "escaped_2025_01.csv"))
	assert.True(os.IsNotExist(err))

	entries, err := os.ReadDir(reports)
	assert.Nil(err)
	assert.Empty(entries)
}
