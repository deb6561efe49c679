package controller

import (
	"fmt"
	"strconv"
	"time"

	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/matt-steen/task-tracker/pkg/tasks"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	fieldWidth       = 30
	titleMax         = 50
	descriptionMax   = 500
	escapeHint       = "[orange]<Esc>[white] back to tasks"
	priorityDefault  = 1
	passwordMaskRune = '*'
)

func formGrid(title string, form *tview.Form) *tview.Grid {
	header := tview.NewTextView().SetDynamicColors(true)
	header.SetText(fmt.Sprintf("[yellow]%s", title))

	grid := tview.NewGrid().SetBorders(true).SetRows(3, 0)

	grid.AddItem(header, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(form, 1, 0, 1, 1, 0, 0, true)

	return grid
}

func inputText(form *tview.Form, label string) string {
	if field, ok := form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return field.GetText()
	}

	return ""
}

func setInputText(form *tview.Form, label, text string) {
	if field, ok := form.GetFormItemByLabel(label).(*tview.InputField); ok {
		field.SetText(text)
	}
}

func (c *Controller) getLoginGrid() *tview.Grid {
	c.loginForm = tview.NewForm().
		AddInputField("Username", "", fieldWidth, nil, nil).
		AddPasswordField("Password", "", fieldWidth, passwordMaskRune, nil)

	credentials := func() (string, string) {
		username, password := inputText(c.loginForm, "Username"), inputText(c.loginForm, "Password")
		setInputText(c.loginForm, "Password", "")

		return username, password
	}

	c.loginForm.AddButton("Login", func() {
		username, password := credentials()

		p, err := c.deps.Accounts.Login(c.ctx, username, password)
		if err != nil {
			c.showError("log in", err)

			return
		}

		c.login(p)
	})

	c.loginForm.AddButton("Register", func() {
		username, password := credentials()

		p, err := c.deps.Accounts.Register(c.ctx, username, password)
		if err != nil {
			c.showError("register", err)

			return
		}

		c.login(p)
	})

	c.loginForm.AddButton("Guest", func() {
		setInputText(c.loginForm, "Password", "")
		c.login(auth.Guest())
	})

	c.loginForm.AddButton("Quit", c.quit)

	return formGrid("Task Tracker: log in, register or continue as guest", c.loginForm)
}

func (c *Controller) getAddGrid() *tview.Grid {
	priorities := []string{}
	for _, p := range db.Priorities() {
		priorities = append(priorities, string(p))
	}

	c.addForm = tview.NewForm().
		AddInputField("Title", "", titleMax, nil, nil).
		AddInputField("Deadline (YYYY-MM-DD)", "", fieldWidth, nil, nil).
		AddDropDown("Priority", priorities, priorityDefault, nil).
		AddInputField("Description", "", descriptionMax, nil, nil)

	c.addForm.AddButton("Save", func() {
		_, priority := c.addForm.GetFormItemByLabel("Priority").(*tview.DropDown).GetCurrentOption()

		in := tasks.AddInput{
			Title:       inputText(c.addForm, "Title"),
			Deadline:    inputText(c.addForm, "Deadline (YYYY-MM-DD)"),
			Priority:    priority,
			Description: inputText(c.addForm, "Description"),
		}

		log.Debug().Msgf("saving task with title '%s'", in.Title)

		task, err := c.deps.Tasks.Add(c.ctx, c.principal, in)
		if err != nil {
			c.showError("add task", err)

			return
		}

		c.selectedTask = task
		c.showTasks()
	})

	return formGrid("New Task   "+escapeHint, c.addForm)
}

func (c *Controller) switchToAddForm() {
	setInputText(c.addForm, "Title", "")
	setInputText(c.addForm, "Deadline (YYYY-MM-DD)", "")
	setInputText(c.addForm, "Description", "")
	c.addForm.GetFormItemByLabel("Priority").(*tview.DropDown).SetCurrentOption(priorityDefault)

	c.addForm.SetFocus(0)
	c.switchTo(pageAdd)
}

// fieldValue returns the current value of the field on task, as shown in the edit form.
func fieldValue(task *db.Task, field tasks.Field) string {
	switch field {
	case tasks.FieldTitle:
		return task.Title
	case tasks.FieldDescription:
		return task.Description
	case tasks.FieldDeadline:
		return task.Deadline
	case tasks.FieldPriority:
		return string(task.Priority)
	case tasks.FieldProgress:
		return strconv.Itoa(task.Progress)
	case tasks.FieldEndTime:
		return task.EndTime
	case tasks.FieldReminderTime:
		return task.ReminderTime
	}

	return ""
}

func (c *Controller) getEditGrid() *tview.Grid {
	fields := []string{}
	for _, f := range tasks.Fields() {
		fields = append(fields, string(f))
	}

	c.editForm = tview.NewForm().
		AddDropDown("Field", fields, -1, func(option string, _ int) {
			c.editField = tasks.Field(option)

			if c.selectedTask != nil {
				setInputText(c.editForm, "Value", fieldValue(c.selectedTask, c.editField))
			}
		}).
		AddInputField("Value", "", descriptionMax, nil, nil)

	c.editForm.AddButton("Save", func() {
		if c.editField == "" {
			c.showMessage("Choose a field to edit")

			return
		}

		task, err := c.deps.Tasks.UpdateField(c.ctx, c.principal, c.selectedTask.ID, c.editField,
			inputText(c.editForm, "Value"))
		if err != nil {
			c.showError("update task", err)

			return
		}

		c.selectedTask = task
		c.showTasks()
	})

	return formGrid("Edit Task (datetimes as YYYY-MM-DD HH:MM:SS)   "+escapeHint, c.editForm)
}

func (c *Controller) switchToEditForm() {
	c.editField = ""
	c.editForm.GetFormItemByLabel("Field").(*tview.DropDown).SetCurrentOption(-1)
	setInputText(c.editForm, "Value", "")

	c.editForm.SetFocus(0)
	c.switchTo(pageEdit)
}

func (c *Controller) getReportGrid() *tview.Grid {
	c.reportForm = tview.NewForm().
		AddInputField("Year", "", fieldWidth, tview.InputFieldInteger, nil).
		AddInputField("Month (1-12)", "", fieldWidth, tview.InputFieldInteger, nil)

	c.reportForm.AddButton("Generate", func() {
		year, err := strconv.Atoi(inputText(c.reportForm, "Year"))
		if err != nil {
			c.showMessage("Year must be a number")

			return
		}

		month, err := strconv.Atoi(inputText(c.reportForm, "Month (1-12)"))
		if err != nil {
			c.showMessage("Month must be a number")

			return
		}

		path, r, err := c.deps.Reports.Generate(c.ctx, c.principal, year, month)
		if err != nil {
			c.showError("generate report", err)

			return
		}

		c.showTasks()
		c.showMessage(fmt.Sprintf("Report saved to %s\n\nCompleted: %d of %d", path, r.Completed, r.Total))
	})

	return formGrid("Monthly Report   "+escapeHint, c.reportForm)
}

func (c *Controller) switchToReportForm() {
	now := time.Now()
	setInputText(c.reportForm, "Year", strconv.Itoa(now.Year()))
	setInputText(c.reportForm, "Month (1-12)", strconv.Itoa(int(now.Month())))

	c.reportForm.SetFocus(0)
	c.switchTo(pageReport)
}
