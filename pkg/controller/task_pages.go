package controller

import (
	"fmt"
	"sort"

	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

func (c *Controller) getTaskGrid() *tview.Grid {
	c.taskHeader = tview.NewTable().SetBorders(false).SetSelectable(false, false)
	c.taskTable = c.getTable()

	grid := tview.NewGrid().SetBorders(true).SetRows(0, -4)

	grid.AddItem(c.taskHeader, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.taskTable, 1, 0, 1, 1, 0, 0, true)

	return grid
}

// shortcutLines returns the key shortcuts split into two alphabetically sorted columns: actions on the
// selected task first, everything else second.
func shortcutLines(events map[rune]KeyEvent) [2][]string {
	cols := [2][]string{}

	for key, event := range events {
		text := fmt.Sprintf("[orange]<%c>[white] %s", key, event.Description)

		col := 1
		if event.NeedsTask {
			col = 0
		}

		cols[col] = append(cols[col], text)
	}

	sort.Strings(cols[0])
	sort.Strings(cols[1])

	return cols
}

// updateTaskHeader shows the current user at the top, followed by the keyboard shortcuts.
func (c *Controller) updateTaskHeader() {
	c.taskHeader.Clear()

	who := c.principal.Name
	if c.principal.AllTasks {
		who += " (all tasks)"
	}

	c.taskHeader.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("[yellow]tasks for %s", who)))

	shortcuts := shortcutLines(c.events)

	for col, lines := range shortcuts {
		for row, line := range lines {
			c.taskHeader.SetCell(row+1, col, tview.NewTableCell(line).SetExpansion(1))
		}
	}
}

func (c *Controller) getTable() *tview.Table {
	table := tview.NewTable().SetBorders(false)

	table.SetContent(c.content)
	table.SetSelectable(true, false)
	table.SetFixed(1, 0)
	table.SetSelectionChangedFunc(c.setCurrentRow)

	return table
}

// when the row selection changes, update the selected Task.
func (c *Controller) setCurrentRow(row, col int) {
	c.selectedTask = c.content.Task(row)

	title := "nil"
	if c.selectedTask != nil {
		title = c.selectedTask.Title
	}

	log.Debug().Int("row", row).Msgf("setting selectedTask to '%s'", title)
}

// refreshTasks reloads the visible tasks and keeps the selection on the same task where possible.
func (c *Controller) refreshTasks() {
	list, err := c.deps.Tasks.List(c.ctx, c.principal)
	if err != nil {
		c.showError("load tasks", err)

		return
	}

	c.content.SetTasks(list)

	row := 1

	if c.selectedTask != nil {
		for i, task := range list {
			if task.ID == c.selectedTask.ID {
				row = i + 1

				break
			}
		}
	}

	if row > len(list) {
		row = len(list)
	}

	if len(list) == 0 {
		c.selectedTask = nil

		return
	}

	c.taskTable.Select(row, 0)
	c.selectedTask = c.content.Task(row)
}

func (c *Controller) showTasks() {
	c.updateTaskHeader()
	c.refreshTasks()
	c.switchTo(pageTasks)
}

// replaceSelected swaps in an updated copy of the selected task so the view reflects it right away.
func (c *Controller) replaceSelected(task *db.Task) {
	c.selectedTask = task
	c.refreshTasks()
}
