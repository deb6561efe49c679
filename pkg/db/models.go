package db

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used for every timestamp persisted in the task file.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"

	// shortDateTimeLayout is accepted on input and normalized to DateTimeLayout.
	shortDateTimeLayout = "2006-01-02 15:04"
)

// Priority is the urgency of a task.
type Priority string

// These constants refer to the priorities supported by the app.
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists the valid priorities from most to least urgent.
func Priorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// ParsePriority returns the priority named by s. An empty string yields PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PriorityMedium, nil
	}

	for _, p := range Priorities() {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}

	return "", fmt.Errorf("unknown priority '%s'", s)
}

// Task is a single entry of the task file. Field names match the persisted JSON.
type Task struct {
	ID          string   `json:"id" db:"id"`
	Title       string   `json:"title" db:"title"`
	Description string   `json:"description" db:"description"`
	Deadline    string   `json:"deadline" db:"deadline"`
	Priority    Priority `json:"priority" db:"priority"`
	Completed   bool     `json:"completed" db:"completed"`
	Progress    int      `json:"progress" db:"progress"`
	// EndTime is set when the task is completed and empty otherwise.
	EndTime string `json:"end_time" db:"end_time"`
	// ReminderTime is empty when the task has no reminder.
	ReminderTime string `json:"reminder_time" db:"reminder_time"`
	// Notified guards against firing the same reminder twice. Editing the reminder clears it.
	Notified  bool   `json:"notified" db:"notified"`
	CreatedBy string `json:"created_by" db:"created_by"`
	CreatedAt string `json:"created_at" db:"created_at"`
}

// Clone returns a copy of the task that can be mutated independently.
func (t *Task) Clone() *Task {
	c := *t

	return &c
}

// Reminder returns the parsed reminder time. ok is false when no reminder is set or it can't be parsed.
func (t *Task) Reminder() (reminder time.Time, ok bool) {
	if t.ReminderTime == "" {
		return time.Time{}, false
	}

	reminder, err := ParseDateTime(t.ReminderTime)
	if err != nil {
		return time.Time{}, false
	}

	return reminder, true
}

// Account is the persisted password entry for a user.
type Account struct {
	Password string `json:"password"`
}

// FormatDateTime renders t in the persisted datetime layout.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// ParseDateTime parses a persisted datetime in local time. Values without seconds are accepted.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	t, err := time.ParseInLocation(DateTimeLayout, s, time.Local)
	if err == nil {
		return t, nil
	}

	if t, shortErr := time.ParseInLocation(shortDateTimeLayout, s, time.Local); shortErr == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("invalid datetime '%s', expected YYYY-MM-DD HH:MM:SS: %w", s, err)
}

// ParseDate parses a persisted date in local time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s', expected YYYY-MM-DD: %w", s, err)
	}

	return t, nil
}
