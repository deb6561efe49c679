package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/matt-steen/task-tracker/pkg/reminder"
	"github.com/matt-steen/task-tracker/pkg/report"
	"github.com/matt-steen/task-tracker/pkg/tasks"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

// Page names.
const (
	pageLogin  = "login"
	pageTasks  = "tasks"
	pageAdd    = "add"
	pageEdit   = "edit"
	pageReport = "report"
	pageModal  = "modal"
)

// Deps are the services the Controller drives.
type Deps struct {
	Repo             *db.Repository
	Tasks            *tasks.Manager
	Accounts         *auth.Service
	Reports          *report.Generator
	ReminderInterval time.Duration
}

// Controller mediates between the task services and the view.
type Controller struct {
	ctx  context.Context
	deps Deps

	app   *tview.Application
	pages *tview.Pages
	page  string

	principal  auth.Principal
	stopPoller context.CancelFunc

	content      *TaskContent
	taskTable    *tview.Table
	taskHeader   *tview.Table
	selectedTask *db.Task

	events map[rune]KeyEvent

	loginForm  *tview.Form
	addForm    *tview.Form
	editForm   *tview.Form
	reportForm *tview.Form
	editField  tasks.Field
}

// NewController creates a new Controller to run the app.
func NewController(ctx context.Context, deps Deps) (*Controller, error) {
	if deps.Tasks == nil || deps.Accounts == nil || deps.Reports == nil || deps.Repo == nil {
		return nil, fmt.Errorf("error creating controller: missing dependency")
	}

	c := Controller{
		ctx:     ctx,
		deps:    deps,
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		content: &TaskContent{},
	}

	c.initEvents()

	c.pages.AddPage(pageLogin, c.getLoginGrid(), true, false)
	c.pages.AddPage(pageTasks, c.getTaskGrid(), true, false)
	c.pages.AddPage(pageAdd, c.getAddGrid(), true, false)
	c.pages.AddPage(pageEdit, c.getEditGrid(), true, false)
	c.pages.AddPage(pageReport, c.getReportGrid(), true, false)

	c.app.SetInputCapture(c.handleKeys)

	return &c, nil
}

// Go starts the app and blocks until it exits.
func (c *Controller) Go() error {
	c.switchTo(pageLogin)

	defer c.logout()

	if err := c.app.SetRoot(c.pages, true).Run(); err != nil {
		return fmt.Errorf("error running app: %w", err)
	}

	return nil
}

// Notify shows a reminder. It is called from the poller goroutine.
func (c *Controller) Notify(task *db.Task) {
	c.app.QueueUpdateDraw(func() {
		c.refreshTasks()
		c.showMessage(fmt.Sprintf("Reminder: %s\n\nDeadline: %s\nPriority: %s", task.Title, task.Deadline, task.Priority))
	})
}

func (c *Controller) switchTo(name string) {
	c.page = name
	c.pages.SwitchToPage(name)
}

func (c *Controller) login(p auth.Principal) {
	c.principal = p

	log.Info().Str("user", p.Name).Bool("all_tasks", p.AllTasks).Msg("logged in")

	ctx, cancel := context.WithCancel(c.ctx)
	c.stopPoller = cancel

	poller := reminder.NewPoller(c.deps.Repo, c,
		reminder.WithInterval(c.deps.ReminderInterval),
		reminder.WithFilter(p.CanAccess),
	)

	go poller.Run(ctx)

	c.showTasks()
}

func (c *Controller) logout() {
	if c.stopPoller != nil {
		c.stopPoller()
		c.stopPoller = nil
	}

	if c.principal.Name != "" {
		log.Info().Str("user", c.principal.Name).Msg("logged out")
	}

	c.principal = auth.Principal{}
	c.selectedTask = nil
	c.content.SetTasks(nil)
}

// showMessage overlays a modal on the current page until it is dismissed.
func (c *Controller) showMessage(text string) {
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			c.closeModal()
		})

	c.pages.AddPage(pageModal, modal, false, true)
}

// confirm overlays a yes/no modal and calls onYes when confirmed.
func (c *Controller) confirm(text string, onYes func()) {
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(_ int, label string) {
			c.closeModal()

			if label == "Yes" {
				onYes()
			}
		})

	c.pages.AddPage(pageModal, modal, false, true)
}

func (c *Controller) closeModal() {
	c.pages.RemovePage(pageModal)
	c.switchTo(c.page)
}

func (c *Controller) showError(action string, err error) {
	log.Warn().Err(err).Str("user", c.principal.Name).Msgf("error while trying to %s", action)

	c.showMessage(fmt.Sprintf("Unable to %s:\n%s", action, err))
}
