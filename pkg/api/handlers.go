package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/tasks"
)

type loginRequest struct {
	Username string `json:"username" validate:"required_without=Guest"`
	Password string `json:"password" validate:"required_without=Guest"`
	Guest    bool   `json:"guest"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

type tokenResponse struct {
	Token string `json:"token"`
	User  string `json:"user"`
}

func (s *Server) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}

	return c.Validate(req)
}

func (s *Server) respondToken(c echo.Context, code int, p auth.Principal) error {
	token, err := s.tokens.issue(p)
	if err != nil {
		return err
	}

	return c.JSON(code, tokenResponse{Token: token, User: p.Name})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	if req.Guest {
		if !s.cfg.AllowGuest {
			return echo.NewHTTPError(http.StatusForbidden, "guest login is disabled")
		}

		return s.respondToken(c, http.StatusOK, auth.Guest())
	}

	p, err := s.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return s.respondToken(c, http.StatusOK, p)
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	p, err := s.accounts.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return s.respondToken(c, http.StatusCreated, p)
}

func (s *Server) listTasks(c echo.Context) error {
	list, err := s.tasks.List(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, list)
}

func (s *Server) addTask(c echo.Context) error {
	// AddInput is validated by the manager, which reports friendlier messages
	var in tasks.AddInput
	if err := c.Bind(&in); err != nil {
		return err
	}

	task, err := s.tasks.Add(c.Request().Context(), principal(c), in)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, task)
}

func (s *Server) getTask(c echo.Context) error {
	task, err := s.tasks.Get(c.Request().Context(), principal(c), c.Param("ref"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

func (s *Server) updateTask(c echo.Context) error {
	var req updateRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	task, err := s.tasks.UpdateField(c.Request().Context(), principal(c), c.Param("ref"), tasks.Field(req.Field), req.Value)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c echo.Context) error {
	if err := s.tasks.Delete(c.Request().Context(), principal(c), c.Param("ref")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) completeTask(c echo.Context) error {
	task, err := s.tasks.Complete(c.Request().Context(), principal(c), c.Param("ref"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

func (s *Server) toggleTask(c echo.Context) error {
	task, err := s.tasks.ToggleCompleted(c.Request().Context(), principal(c), c.Param("ref"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

func (s *Server) getReport(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "year must be a number")
	}

	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "month must be a number")
	}

	path, r, err := s.reports.Generate(c.Request().Context(), principal(c), year, month)
	if err != nil {
		return err
	}

	return c.Attachment(path, r.Filename())
}
