package controller

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/rivo/tview"
)

const titleRatio = 2

var columns = []string{"title", "deadline", "priority", "progress", "status", "reminder"}

// priorityColors highlights tasks by urgency.
func priorityColors() map[db.Priority]tcell.Color {
	return map[db.Priority]tcell.Color{
		db.PriorityHigh:   tcell.ColorRed,
		db.PriorityMedium: tcell.ColorYellow,
		db.PriorityLow:    tcell.ColorGreen,
	}
}

// TaskContent implements tview.TableContent, which tview.Table uses to update data.
type TaskContent struct {
	tview.TableContentReadOnly
	tasks []*db.Task
}

// SetTasks replaces the listed tasks.
func (s *TaskContent) SetTasks(tasks []*db.Task) {
	s.tasks = tasks
}

// Task returns the task shown at the given row, or nil for the header row and out of range rows.
func (s *TaskContent) Task(row int) *db.Task {
	// adjust for the header row
	if idx := row - 1; idx >= 0 && idx < len(s.tasks) {
		return s.tasks[idx]
	}

	return nil
}

// GetCell returns the cell at the given position or nil if no cell.
func (s *TaskContent) GetCell(row, col int) *tview.TableCell {
	if col < 0 || col >= len(columns) {
		return nil
	}

	if row == 0 {
		expansion := 1
		if col == 0 {
			expansion = titleRatio
		}

		return tview.NewTableCell(columns[col]).SetExpansion(expansion).
			SetTextColor(tcell.ColorYellow).SetSelectable(false)
	}

	task := s.Task(row)
	if task == nil {
		return nil
	}

	switch col {
	case 0:
		return tview.NewTableCell(task.Title).SetExpansion(titleRatio).SetReference(task)
	case 1:
		return tview.NewTableCell(task.Deadline).SetExpansion(1)
	case 2:
		color, ok := priorityColors()[task.Priority]
		if !ok {
			color = tcell.ColorWhite
		}

		return tview.NewTableCell(string(task.Priority)).SetTextColor(color).SetExpansion(1)
	case 3:
		return tview.NewTableCell(fmt.Sprintf("%d%%", task.Progress)).SetExpansion(1)
	case 4:
		return tview.NewTableCell(statusText(task)).SetExpansion(1)
	case 5:
		return tview.NewTableCell(reminderText(task)).SetExpansion(1)
	}

	return nil
}

// GetRowCount returns the number of rows in the table.
func (s *TaskContent) GetRowCount() int {
	return len(s.tasks) + 1
}

// GetColumnCount returns the number of columns in the table.
func (s *TaskContent) GetColumnCount() int {
	return len(columns)
}

func statusText(task *db.Task) string {
	if task.Completed {
		return "Completed"
	}

	return "Pending"
}

func reminderText(task *db.Task) string {
	switch {
	case task.ReminderTime == "":
		return "-"
	case task.Notified:
		return task.ReminderTime + " (sent)"
	}

	return task.ReminderTime
}
