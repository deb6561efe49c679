package controller

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
)

// KeyEvent defines an event associated with a keypress on the task list.
type KeyEvent struct {
	Description string
	// NeedsTask events act on the selected task and are skipped when nothing is selected.
	NeedsTask bool
	Action    func()
}

func (c *Controller) initEvents() {
	c.events = map[rune]KeyEvent{
		'a': {Description: "Add task", Action: c.switchToAddForm},
		'c': {Description: "Mark completed", NeedsTask: true, Action: c.completeSelected},
		't': {Description: "Toggle completed", NeedsTask: true, Action: c.toggleSelected},
		'e': {Description: "Edit field", NeedsTask: true, Action: c.switchToEditForm},
		'x': {Description: "Delete task", NeedsTask: true, Action: c.deleteSelected},
		'r': {Description: "Refresh", Action: c.refreshTasks},
		'R': {Description: "Monthly report", Action: c.switchToReportForm},
		'L': {Description: "Log out", Action: c.switchToLogin},
		'q': {Description: "Quit", Action: c.quit},
	}
}

// handleKeys dispatches shortcuts on the task list. Escape leaves any form for the task list.
func (c *Controller) handleKeys(evt *tcell.EventKey) *tcell.EventKey {
	if c.pages.HasPage(pageModal) {
		return evt
	}

	switch c.page {
	case pageTasks:
	case pageAdd, pageEdit, pageReport:
		if evt.Key() == tcell.KeyEscape {
			c.showTasks()

			return nil
		}

		return evt
	default:
		return evt
	}

	if evt.Key() != tcell.KeyRune {
		return evt
	}

	event, ok := c.events[evt.Rune()]
	if !ok {
		return evt
	}

	if event.NeedsTask && c.selectedTask == nil {
		log.Debug().Msgf("ignoring '%s' with no task selected", event.Description)

		return nil
	}

	event.Action()

	return nil
}

func (c *Controller) quit() {
	c.app.Stop()

	log.Info().Msg("terminating application")
}

func (c *Controller) switchToLogin() {
	c.logout()
	c.loginForm.SetFocus(0)
	c.switchTo(pageLogin)
}

func (c *Controller) completeSelected() {
	task, err := c.deps.Tasks.Complete(c.ctx, c.principal, c.selectedTask.ID)
	if err != nil {
		c.showError("complete task", err)

		return
	}

	c.replaceSelected(task)
}

func (c *Controller) toggleSelected() {
	task, err := c.deps.Tasks.ToggleCompleted(c.ctx, c.principal, c.selectedTask.ID)
	if err != nil {
		c.showError("toggle task", err)

		return
	}

	c.replaceSelected(task)
}

func (c *Controller) deleteSelected() {
	task := c.selectedTask

	c.confirm(fmt.Sprintf("Delete task '%s'?", task.Title), func() {
		if err := c.deps.Tasks.Delete(c.ctx, c.principal, task.ID); err != nil {
			c.showError("delete task", err)

			return
		}

		c.selectedTask = nil
		c.refreshTasks()
	})
}
