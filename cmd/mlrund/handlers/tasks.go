package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/bcrant/mlrun/pkg/api/types/errors"
	apitasks "github.com/bcrant/mlrun/pkg/api/types/tasks"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	taskdb "github.com/bcrant/mlrun/pkg/domain/task/db"
	"github.com/bcrant/mlrun/pkg/utils/slices"
)

// GetTaskHandler handles GET /projects/:project/background-tasks/:name.
func GetTaskHandler(store taskdb.Interface, verifier auth.Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")
		name := c.Param("name")

		if err := verifier.CheckProjectPermission(
			ctx, project, auth.ActionRead, authInfo(c),
		); err != nil {
			return apierr.FromError(err)
		}

		record, err := store.Get(ctx, project, name)
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apitasks.Compose(record))
	}
}

// ListTasksHandler handles GET /projects/:project/background-tasks.
func ListTasksHandler(store taskdb.Interface, verifier auth.Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")

		if err := verifier.CheckProjectPermission(
			ctx, project, auth.ActionRead, authInfo(c),
		); err != nil {
			return apierr.FromError(err)
		}

		records, err := store.List(ctx, project)
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apitasks.TasksOutput{
			Tasks: slices.Map(records, apitasks.Compose),
		})
	}
}
