// Package report aggregates a user's tasks for a month and writes them as CSV.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidPeriod is returned for a year or month out of range.
	ErrInvalidPeriod = errors.New("invalid report period")
	// ErrUnsafeFilename is returned when a user name would place the report outside its directory.
	ErrUnsafeFilename = errors.New("user name can't be used in a report file name")
)

// Report summarizes the tasks owned by a user for one month.
type Report struct {
	User  string
	Year  int
	Month time.Month
	// Total counts every owned task, not just the month's.
	Total     int
	Completed int
	Pending   int
	// Average is the mean time from creation to completion of the tasks completed in the month.
	// HasAverage is false when no such task had parsable timestamps.
	Average    time.Duration
	HasAverage bool
	// Tasks lists every owned task regardless of month.
	Tasks []*db.Task
}

// Build computes the report for p from the full task list.
func Build(tasks []*db.Task, p auth.Principal, year, month int) (*Report, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d is not between 1 and 12", ErrInvalidPeriod, month)
	}

	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}

	r := &Report{User: p.Name, Year: year, Month: time.Month(month), Tasks: []*db.Task{}}

	var total time.Duration

	averaged := 0

	for _, task := range tasks {
		if !p.CanAccess(task) {
			continue
		}

		r.Tasks = append(r.Tasks, task)

		if task.EndTime == "" {
			continue
		}

		end, err := db.ParseDateTime(task.EndTime)
		if err != nil {
			log.Debug().Str("task_id", task.ID).Str("end_time", task.EndTime).Msg("skipping unparsable end time")

			continue
		}

		if end.Year() != year || end.Month() != r.Month {
			continue
		}

		r.Completed++

		created, err := db.ParseDateTime(task.CreatedAt)
		if err != nil {
			continue
		}

		total += end.Sub(created)
		averaged++
	}

	r.Total = len(r.Tasks)
	r.Pending = r.Total - r.Completed

	if averaged > 0 {
		r.Average = total / time.Duration(averaged)
		r.HasAverage = true
	}

	return r, nil
}

// AverageString renders the average completion time, or an empty string when there is none.
func (r *Report) AverageString() string {
	if !r.HasAverage {
		return ""
	}

	return r.Average.Round(time.Second).String()
}

// Filename is the name the report is stored under.
func (r *Report) Filename() string {
	return fmt.Sprintf("report_%s_%d_%02d.csv", r.User, r.Year, int(r.Month))
}

// WriteCSV writes the summary rows, a blank row and one row per task.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"User", r.User},
		{"Month", fmt.Sprintf("%04d-%02d", r.Year, int(r.Month))},
		{"Total Tasks", strconv.Itoa(r.Total)},
		{"Completed", strconv.Itoa(r.Completed)},
		{"Pending", strconv.Itoa(r.Pending)},
		{"Average Completion Time", r.AverageString()},
		{},
	}

	for _, task := range r.Tasks {
		rows = append(rows, []string{
			task.Title,
			task.Description,
			task.Deadline,
			string(task.Priority),
			strconv.Itoa(task.Progress),
			task.CreatedAt,
			task.EndTime,
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("error writing report csv: %w", err)
	}

	return nil
}

// Generator builds reports from a repository and stores them in a directory.
type Generator struct {
	repo *db.Repository
	dir  string
}

// NewGenerator returns a Generator writing into dir.
func NewGenerator(repo *db.Repository, dir string) *Generator {
	return &Generator{repo: repo, dir: dir}
}

// Generate builds the report for p and writes it to the reports directory. It returns the file path.
func (g *Generator) Generate(ctx context.Context, p auth.Principal, year, month int) (string, *Report, error) {
	tasks, err := g.repo.Tasks(ctx)
	if err != nil {
		return "", nil, err
	}

	r, err := Build(tasks, p, year, month)
	if err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("error creating report dir %s: %w", g.dir, err)
	}

	path := filepath.Join(g.dir, r.Filename())
	if filepath.Dir(path) != filepath.Clean(g.dir) {
		return "", nil, fmt.Errorf("%w: '%s'", ErrUnsafeFilename, r.User)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("error creating report %s: %w", path, err)
	}

	defer f.Close()

	if err := r.WriteCSV(f); err != nil {
		return "", nil, err
	}

	if err := f.Close(); err != nil {
		return "", nil, fmt.Errorf("error closing report %s: %w", path, err)
	}

	log.Info().Str("user", p.Name).Str("file", path).Msg("generated report")

	return path, r, nil
}
