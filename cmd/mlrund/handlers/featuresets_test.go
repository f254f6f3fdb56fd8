package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/bcrant/mlrun/cmd/mlrund/handlers"
	httptestutil "github.com/bcrant/mlrun/internal/testutils/http"
	apifs "github.com/bcrant/mlrun/pkg/api/types/featurestore"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	authmock "github.com/bcrant/mlrun/pkg/domain/auth/mock"
	fsmock "github.com/bcrant/mlrun/pkg/domain/featurestore/db/mock"
	"github.com/bcrant/mlrun/pkg/utils/cmp"
)

func allowEverything(v *authmock.Verifier) *authmock.Verifier {
	v.Impl.CheckResourcePermission = func(context.Context, domain.ResourceKind, auth.Coordinate, auth.Action, auth.AuthInfo) error {
		return nil
	}
	v.Impl.QueryPermissions = func(
		ctx context.Context, kind domain.ResourceKind, coords []auth.Coordinate,
		action auth.Action, info auth.AuthInfo,
	) (map[auth.Coordinate]bool, error) {
		allowed := map[auth.Coordinate]bool{}
		for _, coord := range coords {
			allowed[coord] = true
		}
		return allowed, nil
	}
	return v
}

func storedResource(project, name, tag, uid string) domain.VersionedResource {
	return domain.VersionedResource{
		Project: project, Name: name, Tag: tag, Uid: uid,
		State: "created",
		Object: domain.Tree{
			"metadata": map[string]any{"name": name, "project": project},
			"spec":     map[string]any{"entities": []any{}},
			"status":   map[string]any{"state": "created"},
		},
	}
}

func assertStatusCode(t *testing.T, err error, expected int) {
	t.Helper()
	var httperr *echo.HTTPError
	if !errors.As(err, &httperr) {
		t.Fatalf("unexpected error type: %+v", err)
	}
	if httperr.Code != expected {
		t.Errorf("unexpected status code: %d (expected: %d)", httperr.Code, expected)
	}
}

func TestFeatureSets_Create(t *testing.T) {

	t.Run("when a feature set is posted, it should be created and echoed back", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.Create = func(context.Context, string, domain.VersionedResource, bool) (string, error) {
			return "0123456789abcdef0123456789abcdef", nil
		}
		store.Impl.Get = func(ctx context.Context, project, name, tag, uid string) (domain.VersionedResource, error) {
			return storedResource(project, name, "latest", uid), nil
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, respRec := httptestutil.Post(
			e, "/api/projects/proj-1/feature-sets/",
			strings.NewReader(`{"metadata": {"name": "ticks", "labels": {"owner": "iguazio"}}, "spec": {"entities": []}}`),
			httptestutil.ContentType("application/json"),
			httptestutil.WithHeader(apifs.HeaderRemoteUser, "someone"),
		)
		c.SetPath("/api/projects/:project/feature-sets/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureSets(store, verifier)
		if err := testee.Create()(c); err != nil {
			t.Fatal(err)
		}

		if len(store.Calls.Create) != 1 {
			t.Fatalf("store.Create: unexpected call count: %d", len(store.Calls.Create))
		}
		call := store.Calls.Create[0]
		if call.Project != "proj-1" || call.Resource.Name != "ticks" || !call.Versioned {
			t.Errorf("store.Create called with unexpected args: %+v", call)
		}
		if !cmp.MapEq(call.Resource.Labels, map[string]string{"owner": "iguazio"}) {
			t.Errorf("labels are not passed through: %+v", call.Resource.Labels)
		}

		if len(store.Calls.Get) != 1 {
			t.Fatalf("store.Get: unexpected call count: %d", len(store.Calls.Get))
		}
		if got := store.Calls.Get[0]; got.Tag != "" || got.Uid != "0123456789abcdef0123456789abcdef" {
			t.Errorf("created revision is not read back by uid: %+v", got)
		}

		if respRec.Result().StatusCode != http.StatusOK {
			t.Errorf("unexpected status code: %d", respRec.Result().StatusCode)
		}
		response := apifs.Resource{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &response); err != nil {
			t.Fatal(err)
		}
		if response.Metadata.Uid != "0123456789abcdef0123456789abcdef" {
			t.Errorf("unexpected metadata in response: %+v", response.Metadata)
		}
	})

	t.Run("when versioned=false is passed, the store should be told so", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.Create = func(ctx context.Context, project string, r domain.VersionedResource, versioned bool) (string, error) {
			return "unversioned", nil
		}
		store.Impl.Get = func(ctx context.Context, project, name, tag, uid string) (domain.VersionedResource, error) {
			return storedResource(project, name, "latest", uid), nil
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/projects/proj-1/feature-sets/?versioned=false",
			strings.NewReader(`{"metadata": {"name": "ticks"}}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetPath("/api/projects/:project/feature-sets/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureSets(store, verifier)
		if err := testee.Create()(c); err != nil {
			t.Fatal(err)
		}

		if len(store.Calls.Create) != 1 || store.Calls.Create[0].Versioned {
			t.Errorf("store.Create should be called with versioned = false: %+v", store.Calls.Create)
		}
	})

	t.Run("when the body has no name, it should error with bad request before any other work", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		verifier := authmock.NewVerifier()

		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/projects/proj-1/feature-sets/",
			strings.NewReader(`{"metadata": {}}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetPath("/api/projects/:project/feature-sets/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureSets(store, verifier)
		err := testee.Create()(c)
		assertStatusCode(t, err, http.StatusBadRequest)

		if len(store.Calls.Create) != 0 {
			t.Error("store.Create should not be called")
		}
		if len(verifier.Calls.CheckResourcePermission) != 0 {
			t.Error("verifier should not be called")
		}
	})

	t.Run("when the verifier denies, it should error with forbidden and not touch the store", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		verifier := authmock.NewVerifier()
		verifier.Impl.CheckResourcePermission = func(context.Context, domain.ResourceKind, auth.Coordinate, auth.Action, auth.AuthInfo) error {
			return domain.ErrForbidden
		}

		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/projects/proj-1/feature-sets/",
			strings.NewReader(`{"metadata": {"name": "ticks"}}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetPath("/api/projects/:project/feature-sets/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureSets(store, verifier)
		err := testee.Create()(c)
		assertStatusCode(t, err, http.StatusForbidden)

		if len(store.Calls.Create) != 0 {
			t.Error("store.Create should not be called")
		}
		if got := verifier.Calls.CheckResourcePermission[0]; got.Kind != domain.KindFeatureSet ||
			got.Action != auth.ActionCreate ||
			got.Coord != (auth.Coordinate{Project: "proj-1", Name: "ticks"}) {
			t.Errorf("verifier called with unexpected args: %+v", got)
		}
	})

	t.Run("when the tag is already occupied, it should error with conflict", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.Create = func(context.Context, string, domain.VersionedResource, bool) (string, error) {
			return "", domain.ErrAlreadyExists
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/projects/proj-1/feature-sets/",
			strings.NewReader(`{"metadata": {"name": "ticks", "tag": "v1"}}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetPath("/api/projects/:project/feature-sets/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureSets(store, verifier)
		err := testee.Create()(c)
		assertStatusCode(t, err, http.StatusConflict)
	})
}

func TestFeatureSets_Get(t *testing.T) {

	theUid := "0123456789abcdef0123456789abcdef"

	for name, testcase := range map[string]struct {
		reference string
		wantTag   string
		wantUid   string
	}{
		"when the reference is a tag, it should be resolved as a tag": {
			reference: "production", wantTag: "production", wantUid: "",
		},
		"when the reference is latest, it should be resolved as the latest tag": {
			reference: "latest", wantTag: "latest", wantUid: "",
		},
		"when the reference is a uid, it should be resolved as a uid": {
			reference: theUid, wantTag: "", wantUid: theUid,
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := fsmock.NewResourceStore()
			store.Impl.Get = func(ctx context.Context, project, name, tag, uid string) (domain.VersionedResource, error) {
				return storedResource(project, name, tag, theUid), nil
			}
			verifier := allowEverything(authmock.NewVerifier())

			e := echo.New()
			c, respRec := httptestutil.Get(e, "/api/projects/proj-1/feature-sets/ticks/references/"+testcase.reference+"/")
			c.SetPath("/api/projects/:project/feature-sets/:name/references/:reference/")
			c.SetParamNames("project", "name", "reference")
			c.SetParamValues("proj-1", "ticks", testcase.reference)

			testee := handlers.FeatureSets(store, verifier)
			if err := testee.Get()(c); err != nil {
				t.Fatal(err)
			}

			if len(store.Calls.Get) != 1 {
				t.Fatalf("store.Get: unexpected call count: %d", len(store.Calls.Get))
			}
			got := store.Calls.Get[0]
			if got.Tag != testcase.wantTag || got.Uid != testcase.wantUid {
				t.Errorf(
					"reference is not split to (tag, uid) = (%s, %s): %+v",
					testcase.wantTag, testcase.wantUid, got,
				)
			}

			if respRec.Result().StatusCode != http.StatusOK {
				t.Errorf("unexpected status code: %d", respRec.Result().StatusCode)
			}
		})
	}

	t.Run("when the feature set is missing, it should error with not found", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.Get = func(context.Context, string, string, string, string) (domain.VersionedResource, error) {
			return domain.VersionedResource{}, domain.ErrMissing
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/projects/proj-1/feature-sets/no-such/references/latest/")
		c.SetPath("/api/projects/:project/feature-sets/:name/references/:reference/")
		c.SetParamNames("project", "name", "reference")
		c.SetParamValues("proj-1", "no-such", "latest")

		testee := handlers.FeatureSets(store, verifier)
		err := testee.Get()(c)
		assertStatusCode(t, err, http.StatusNotFound)
	})
}

func TestFeatureSets_Patch(t *testing.T) {

	for name, testcase := range map[string]struct {
		header   map[string]string
		wantMode domain.PatchMode
	}{
		"when no patch-mode header is passed, it should patch with replace": {
			header: map[string]string{}, wantMode: domain.PatchModeReplace,
		},
		"when the additive patch-mode is passed, it should patch additively": {
			header:   map[string]string{apifs.HeaderPatchMode: "additive"},
			wantMode: domain.PatchModeAdditive,
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := fsmock.NewResourceStore()
			store.Impl.Patch = func(context.Context, string, string, domain.Tree, string, string, domain.PatchMode) error {
				return nil
			}
			store.Impl.Get = func(ctx context.Context, project, name, tag, uid string) (domain.VersionedResource, error) {
				return storedResource(project, name, tag, "0123456789abcdef0123456789abcdef"), nil
			}
			verifier := allowEverything(authmock.NewVerifier())

			opts := []httptestutil.RequestOption{httptestutil.ContentType("application/json")}
			for key, value := range testcase.header {
				opts = append(opts, httptestutil.WithHeader(key, value))
			}

			e := echo.New()
			c, _ := httptestutil.Patch(
				e, "/api/projects/proj-1/feature-sets/ticks/references/latest/",
				strings.NewReader(`{"status": {"state": "ready"}}`),
				opts...,
			)
			c.SetPath("/api/projects/:project/feature-sets/:name/references/:reference/")
			c.SetParamNames("project", "name", "reference")
			c.SetParamValues("proj-1", "ticks", "latest")

			testee := handlers.FeatureSets(store, verifier)
			if err := testee.Patch()(c); err != nil {
				t.Fatal(err)
			}

			if len(store.Calls.Patch) != 1 {
				t.Fatalf("store.Patch: unexpected call count: %d", len(store.Calls.Patch))
			}
			got := store.Calls.Patch[0]
			if got.Mode != testcase.wantMode {
				t.Errorf("unexpected patch mode: %s (expected: %s)", got.Mode, testcase.wantMode)
			}
			if state, ok := got.Update["status"].(map[string]any); !ok || state["state"] != "ready" {
				t.Errorf("unexpected update body: %+v", got.Update)
			}
		})
	}

	t.Run("when an unknown patch mode is passed, it should error with bad request", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		verifier := authmock.NewVerifier()

		e := echo.New()
		c, _ := httptestutil.Patch(
			e, "/api/projects/proj-1/feature-sets/ticks/references/latest/",
			strings.NewReader(`{}`),
			httptestutil.ContentType("application/json"),
			httptestutil.WithHeader(apifs.HeaderPatchMode, "upsert"),
		)
		c.SetPath("/api/projects/:project/feature-sets/:name/references/:reference/")
		c.SetParamNames("project", "name", "reference")
		c.SetParamValues("proj-1", "ticks", "latest")

		testee := handlers.FeatureSets(store, verifier)
		err := testee.Patch()(c)
		assertStatusCode(t, err, http.StatusBadRequest)

		if len(store.Calls.Patch) != 0 {
			t.Error("store.Patch should not be called")
		}
	})
}

func TestFeatureSets_Delete(t *testing.T) {

	t.Run("when a reference is passed, only that version should be deleted", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.Delete = func(context.Context, string, string, string, string) error {
			return nil
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, respRec := httptestutil.Delete(e, "/api/projects/proj-1/feature-sets/ticks/references/v1/")
		c.SetPath("/api/projects/:project/feature-sets/:name/references/:reference/")
		c.SetParamNames("project", "name", "reference")
		c.SetParamValues("proj-1", "ticks", "v1")

		testee := handlers.FeatureSets(store, verifier)
		if err := testee.Delete(true)(c); err != nil {
			t.Fatal(err)
		}

		if len(store.Calls.Delete) != 1 {
			t.Fatalf("store.Delete: unexpected call count: %d", len(store.Calls.Delete))
		}
		if got := store.Calls.Delete[0]; got.Name != "ticks" || got.Tag != "v1" || got.Uid != "" {
			t.Errorf("store.Delete called with unexpected args: %+v", got)
		}
		if respRec.Result().StatusCode != http.StatusNoContent {
			t.Errorf("unexpected status code: %d", respRec.Result().StatusCode)
		}
	})

	t.Run("when no reference is passed, every version of the name should be deleted", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.Delete = func(context.Context, string, string, string, string) error {
			return nil
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, _ := httptestutil.Delete(e, "/api/projects/proj-1/feature-sets/ticks/")
		c.SetPath("/api/projects/:project/feature-sets/:name/")
		c.SetParamNames("project", "name")
		c.SetParamValues("proj-1", "ticks")

		testee := handlers.FeatureSets(store, verifier)
		if err := testee.Delete(false)(c); err != nil {
			t.Fatal(err)
		}

		if got := store.Calls.Delete[0]; got.Tag != "" || got.Uid != "" {
			t.Errorf("store.Delete should be called without a reference: %+v", got)
		}
	})

	t.Run("when the coordinate does not exist, it should error with not found", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.Delete = func(context.Context, string, string, string, string) error {
			return domain.ErrMissing
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, _ := httptestutil.Delete(e, "/api/projects/proj-1/feature-sets/no-such/")
		c.SetPath("/api/projects/:project/feature-sets/:name/")
		c.SetParamNames("project", "name")
		c.SetParamValues("proj-1", "no-such")

		testee := handlers.FeatureSets(store, verifier)
		err := testee.Delete(false)(c)
		assertStatusCode(t, err, http.StatusNotFound)
	})
}

func TestFeatureSets_List(t *testing.T) {

	t.Run("when some items are not readable, they should be dropped keeping the order", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.List = func(context.Context, string, domain.ListQuery) ([]domain.VersionedResource, error) {
			return []domain.VersionedResource{
				storedResource("proj-1", "fs-a", "latest", "uid-a"),
				storedResource("proj-1", "fs-b", "latest", "uid-b"),
				storedResource("proj-1", "fs-c", "latest", "uid-c"),
			}, nil
		}
		verifier := authmock.NewVerifier()
		verifier.Impl.QueryPermissions = func(
			ctx context.Context, kind domain.ResourceKind, coords []auth.Coordinate,
			action auth.Action, info auth.AuthInfo,
		) (map[auth.Coordinate]bool, error) {
			return map[auth.Coordinate]bool{
				{Project: "proj-1", Name: "fs-a"}: true,
				{Project: "proj-1", Name: "fs-b"}: false,
				{Project: "proj-1", Name: "fs-c"}: true,
			}, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/projects/proj-1/feature-sets/")
		c.SetPath("/api/projects/:project/feature-sets/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureSets(store, verifier)
		if err := testee.List(nil)(c); err != nil {
			t.Fatal(err)
		}

		response := apifs.FeatureSetsOutput{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &response); err != nil {
			t.Fatal(err)
		}
		names := []string{}
		for _, item := range response.FeatureSets {
			names = append(names, item.Metadata.Name)
		}
		if !cmp.SliceEq(names, []string{"fs-a", "fs-c"}) {
			t.Errorf("unexpected listing: %v", names)
		}

		if got := verifier.Calls.QueryPermissions[0]; got.Action != auth.ActionRead {
			t.Errorf("permissions should be queried for read: %+v", got)
		}
	})

	t.Run("when filter params are passed, they should reach the store", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.List = func(context.Context, string, domain.ListQuery) ([]domain.VersionedResource, error) {
			return []domain.VersionedResource{}, nil
		}
		verifier := allowEverything(authmock.NewVerifier())

		e := echo.New()
		c, _ := httptestutil.Get(
			e,
			"/api/projects/proj-1/feature-sets/?name=~tick&tag=v1&state=ready&label=owner=iguazio&entity=ticker",
		)
		c.SetPath("/api/projects/:project/feature-sets/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureSets(store, verifier)
		if err := testee.List(nil)(c); err != nil {
			t.Fatal(err)
		}

		query := store.Calls.List[0].Query
		if query.Name != "~tick" || query.Tag != "v1" || query.State != "ready" {
			t.Errorf("unexpected query: %+v", query)
		}
		if !cmp.SliceEq(query.Labels, []string{"owner=iguazio"}) ||
			!cmp.SliceEq(query.Entities, []string{"ticker"}) {
			t.Errorf("unexpected query filters: %+v", query)
		}
		if query.Partition != nil {
			t.Errorf("no partitioning is requested: %+v", query.Partition)
		}
	})
}

func TestFeatureSets_ListTags(t *testing.T) {

	t.Run("when the name is the wildcard, tags of readable names should be returned deduplicated", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.ListTags = func(context.Context, string) ([]domain.TagTuple, error) {
			return []domain.TagTuple{
				{Name: "fs-a", Tag: "latest", Uid: "uid-a1"},
				{Name: "fs-a", Tag: "v1", Uid: "uid-a1"},
				{Name: "fs-b", Tag: "latest", Uid: "uid-b1"},
				{Name: "fs-secret", Tag: "hidden", Uid: "uid-s1"},
			}, nil
		}
		verifier := authmock.NewVerifier()
		verifier.Impl.QueryPermissions = func(
			ctx context.Context, kind domain.ResourceKind, coords []auth.Coordinate,
			action auth.Action, info auth.AuthInfo,
		) (map[auth.Coordinate]bool, error) {
			allowed := map[auth.Coordinate]bool{}
			for _, coord := range coords {
				allowed[coord] = coord.Name != "fs-secret"
			}
			return allowed, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/projects/proj-1/feature-sets/%2A/tags/")
		c.SetPath("/api/projects/:project/feature-sets/:name/tags/")
		c.SetParamNames("project", "name")
		c.SetParamValues("proj-1", "*")

		testee := handlers.FeatureSets(store, verifier)
		if err := testee.ListTags()(c); err != nil {
			t.Fatal(err)
		}

		response := apifs.TagsOutput{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &response); err != nil {
			t.Fatal(err)
		}
		if !cmp.SliceContentEq(response.Tags, []string{"latest", "v1"}) {
			t.Errorf("unexpected tags: %v", response.Tags)
		}

		// all distinct names go to the verifier in one batch
		if len(verifier.Calls.QueryPermissions) != 1 {
			t.Fatalf("verifier should be queried once: %d", len(verifier.Calls.QueryPermissions))
		}
		if got := verifier.Calls.QueryPermissions[0].Coords; len(got) != 3 {
			t.Errorf("unexpected batched coordinates: %+v", got)
		}
	})

	t.Run("when a concrete name is passed, it should error without querying the store", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		verifier := authmock.NewVerifier()

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/projects/proj-1/feature-sets/ticks/tags/")
		c.SetPath("/api/projects/:project/feature-sets/:name/tags/")
		c.SetParamNames("project", "name")
		c.SetParamValues("proj-1", "ticks")

		testee := handlers.FeatureSets(store, verifier)
		err := testee.ListTags()(c)
		assertStatusCode(t, err, http.StatusBadRequest)

		if len(store.Calls.ListTags) != 0 {
			t.Error("store.ListTags should not be called")
		}
	})
}
