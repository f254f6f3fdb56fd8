package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bcrant/mlrun/cmd/mlrund/handlers"
	httptestutil "github.com/bcrant/mlrun/internal/testutils/http"
	apitasks "github.com/bcrant/mlrun/pkg/api/types/tasks"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	authmock "github.com/bcrant/mlrun/pkg/domain/auth/mock"
	taskdb "github.com/bcrant/mlrun/pkg/domain/task/db"
	taskmock "github.com/bcrant/mlrun/pkg/domain/task/db/mock"
)

func TestGetTaskHandler(t *testing.T) {

	t.Run("when the task exists, it should be returned", func(t *testing.T) {
		store := taskmock.NewTaskTable()
		store.Impl.Get = func(ctx context.Context, project, name string) (taskdb.Record, error) {
			return taskdb.Record{
				Project: project, Name: name,
				State: taskdb.StateRunning, Timeout: 30 * time.Minute,
			}, nil
		}
		verifier := authmock.NewVerifier()
		verifier.Impl.CheckProjectPermission = func(context.Context, string, auth.Action, auth.AuthInfo) error {
			return nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/projects/proj-1/background-tasks/ticks-ingest/")
		c.SetPath("/api/projects/:project/background-tasks/:name/")
		c.SetParamNames("project", "name")
		c.SetParamValues("proj-1", "ticks-ingest")

		testee := handlers.GetTaskHandler(store, verifier)
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		response := apitasks.Task{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &response); err != nil {
			t.Fatal(err)
		}
		if response.Name != "ticks-ingest" || response.State != "running" || response.TimeoutSeconds != 1800 {
			t.Errorf("unexpected task: %+v", response)
		}
	})

	t.Run("when the project is not readable, it should error without touching the store", func(t *testing.T) {
		store := taskmock.NewTaskTable()
		verifier := authmock.NewVerifier()
		verifier.Impl.CheckProjectPermission = func(context.Context, string, auth.Action, auth.AuthInfo) error {
			return domain.ErrForbidden
		}

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/projects/proj-1/background-tasks/ticks-ingest/")
		c.SetPath("/api/projects/:project/background-tasks/:name/")
		c.SetParamNames("project", "name")
		c.SetParamValues("proj-1", "ticks-ingest")

		testee := handlers.GetTaskHandler(store, verifier)
		err := testee(c)
		assertStatusCode(t, err, http.StatusForbidden)

		if len(store.Calls.Get) != 0 {
			t.Error("store.Get should not be called")
		}
	})

	t.Run("when the task does not exist, it should error with not found", func(t *testing.T) {
		store := taskmock.NewTaskTable()
		store.Impl.Get = func(context.Context, string, string) (taskdb.Record, error) {
			return taskdb.Record{}, domain.ErrMissing
		}
		verifier := authmock.NewVerifier()
		verifier.Impl.CheckProjectPermission = func(context.Context, string, auth.Action, auth.AuthInfo) error {
			return nil
		}

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/projects/proj-1/background-tasks/no-such/")
		c.SetPath("/api/projects/:project/background-tasks/:name/")
		c.SetParamNames("project", "name")
		c.SetParamValues("proj-1", "no-such")

		testee := handlers.GetTaskHandler(store, verifier)
		err := testee(c)
		assertStatusCode(t, err, http.StatusNotFound)
	})
}

func TestListTasksHandler(t *testing.T) {

	t.Run("the project's tasks should be returned in the store's order", func(t *testing.T) {
		store := taskmock.NewTaskTable()
		store.Impl.List = func(ctx context.Context, project string) ([]taskdb.Record, error) {
			return []taskdb.Record{
				{Project: project, Name: "vec-ingest", State: taskdb.StateSucceeded},
				{Project: project, Name: "ticks-ingest", State: taskdb.StateFailed, Error: "image pull failed"},
			}, nil
		}
		verifier := authmock.NewVerifier()
		verifier.Impl.CheckProjectPermission = func(context.Context, string, auth.Action, auth.AuthInfo) error {
			return nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/projects/proj-1/background-tasks/")
		c.SetPath("/api/projects/:project/background-tasks/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.ListTasksHandler(store, verifier)
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		response := apitasks.TasksOutput{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &response); err != nil {
			t.Fatal(err)
		}
		if len(response.Tasks) != 2 ||
			response.Tasks[0].Name != "vec-ingest" ||
			response.Tasks[1].Error != "image pull failed" {
			t.Errorf("unexpected tasks: %+v", response.Tasks)
		}

		if got := verifier.Calls.CheckProjectPermission[0]; got.Project != "proj-1" || got.Action != auth.ActionRead {
			t.Errorf("verifier called with unexpected args: %+v", got)
		}
	})
}
