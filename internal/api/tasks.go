package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/auth"
	"github.com/tgienger/tracker/internal/models"
)

func (s *Server) listTasks(c echo.Context) error {
	views, err := s.tasks.List(c.Request().Context())
	return respondTasks(c, views, err)
}

func (s *Server) listMyTasks(c echo.Context) error {
	views, err := s.tasks.ListByOwner(c.Request().Context(), auth.UserFrom(c).Username)
	return respondTasks(c, views, err)
}

func (s *Server) listP1Tasks(c echo.Context) error {
	views, err := s.tasks.ListP1(c.Request().Context())
	return respondTasks(c, views, err)
}

func (s *Server) listOverdueTasks(c echo.Context) error {
	views, err := s.tasks.ListOverdue(c.Request().Context())
	return respondTasks(c, views, err)
}

func respondTasks(c echo.Context, views []models.TaskView, err error) error {
	if err != nil {
		return err
	}
	if views == nil {
		views = []models.TaskView{}
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) createTask(c echo.Context) error {
	var body models.TaskPatch
	if err := c.Bind(&body); err != nil {
		return apperr.InvalidArgument("Invalid request body")
	}
	if _, err := s.tasks.CreateTask(c.Request().Context(), body, auth.UserFrom(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, success())
}

func (s *Server) updateTask(c echo.Context) error {
	rowHandle, err := strconv.ParseInt(c.Param("rowHandle"), 10, 64)
	if err != nil {
		return apperr.InvalidArgument("Invalid row index")
	}

	var body models.TaskPatch
	if err := c.Bind(&body); err != nil {
		return apperr.InvalidArgument("Invalid request body")
	}
	if _, err := s.tasks.UpdateTask(c.Request().Context(), rowHandle, body, auth.UserFrom(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, success())
}
