package handlers_test

import (
	"context"
	"encoding/json"
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

func vectorWithFeatures(project, name string, features ...any) domain.VersionedResource {
	return domain.VersionedResource{
		Project: project, Name: name, Tag: "latest", Uid: "uid-" + name,
		Object: domain.Tree{
			"metadata": map[string]any{"name": name, "project": project},
			"spec":     map[string]any{"features": features},
			"status":   map[string]any{},
		},
	}
}

func TestFeatureReferenceCheck(t *testing.T) {

	t.Run("it should query the distinct referenced feature sets in one batch", func(t *testing.T) {
		verifier := authmock.NewVerifier()
		verifier.Impl.QueryPermissions = func(
			ctx context.Context, kind domain.ResourceKind, coords []auth.Coordinate,
			action auth.Action, info auth.AuthInfo,
		) (map[auth.Coordinate]bool, error) {
			allowed := map[auth.Coordinate]bool{}
			for _, coord := range coords {
				allowed[coord] = true
			}
			return allowed, nil
		}

		item := vectorWithFeatures(
			"proj-1", "vec",
			"ticks.price",              // same project
			"ticks.volume as vol",      // alias does not change the coordinate
			"other-proj/quotes.bid@v2", // cross project, tagged
			"ticks.spread",             // ticks again: already counted
		)

		testee := handlers.FeatureReferenceCheck(verifier)
		ok, err := testee(context.Background(), item, auth.AuthInfo{Username: "someone"})
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("the vector should be readable")
		}

		if len(verifier.Calls.QueryPermissions) != 1 {
			t.Fatalf("verifier should be queried once: %d", len(verifier.Calls.QueryPermissions))
		}
		got := verifier.Calls.QueryPermissions[0]
		if got.Kind != domain.KindFeatureSet || got.Action != auth.ActionRead {
			t.Errorf("unexpected query: %+v", got)
		}
		if !cmp.SliceEq(got.Coords, []auth.Coordinate{
			{Project: "proj-1", Name: "ticks"},
			{Project: "other-proj", Name: "quotes"},
		}) {
			t.Errorf("unexpected coordinates: %+v", got.Coords)
		}
	})

	t.Run("when any referenced feature set is not readable, the vector should be dropped", func(t *testing.T) {
		verifier := authmock.NewVerifier()
		verifier.Impl.QueryPermissions = func(
			ctx context.Context, kind domain.ResourceKind, coords []auth.Coordinate,
			action auth.Action, info auth.AuthInfo,
		) (map[auth.Coordinate]bool, error) {
			return map[auth.Coordinate]bool{
				{Project: "proj-1", Name: "ticks"}:  true,
				{Project: "proj-1", Name: "quotes"}: false,
			}, nil
		}

		item := vectorWithFeatures("proj-1", "vec", "ticks.price", "quotes.bid")

		testee := handlers.FeatureReferenceCheck(verifier)
		ok, err := testee(context.Background(), item, auth.AuthInfo{})
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("the vector should be dropped")
		}
	})

	t.Run("when the vector references nothing, it should pass without querying", func(t *testing.T) {
		verifier := authmock.NewVerifier()

		item := vectorWithFeatures("proj-1", "vec")

		testee := handlers.FeatureReferenceCheck(verifier)
		ok, err := testee(context.Background(), item, auth.AuthInfo{})
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("the vector should be readable")
		}
		if len(verifier.Calls.QueryPermissions) != 0 {
			t.Error("verifier should not be queried")
		}
	})
}

func TestFeatureVectors_List(t *testing.T) {

	t.Run("vectors with unreadable references should be dropped keeping the order", func(t *testing.T) {
		store := fsmock.NewResourceStore()
		store.Impl.List = func(context.Context, string, domain.ListQuery) ([]domain.VersionedResource, error) {
			return []domain.VersionedResource{
				vectorWithFeatures("proj-1", "vec-a", "ticks.price"),
				vectorWithFeatures("proj-1", "vec-b", "secrets.key"),
				vectorWithFeatures("proj-1", "vec-c", "ticks.volume"),
				vectorWithFeatures("proj-1", "vec-d"),
			}, nil
		}
		verifier := authmock.NewVerifier()
		verifier.Impl.QueryPermissions = func(
			ctx context.Context, kind domain.ResourceKind, coords []auth.Coordinate,
			action auth.Action, info auth.AuthInfo,
		) (map[auth.Coordinate]bool, error) {
			allowed := map[auth.Coordinate]bool{}
			for _, coord := range coords {
				allowed[coord] = coord.Name != "secrets"
			}
			return allowed, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/projects/proj-1/feature-vectors/")
		c.SetPath("/api/projects/:project/feature-vectors/")
		c.SetParamNames("project")
		c.SetParamValues("proj-1")

		testee := handlers.FeatureVectors(store, verifier)
		if err := testee.List(handlers.FeatureReferenceCheck(verifier))(c); err != nil {
			t.Fatal(err)
		}

		response := apifs.FeatureVectorsOutput{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &response); err != nil {
			t.Fatal(err)
		}
		names := []string{}
		for _, item := range response.FeatureVectors {
			names = append(names, item.Metadata.Name)
		}
		if !cmp.SliceEq(names, []string{"vec-a", "vec-c", "vec-d"}) {
			t.Errorf("unexpected listing: %v", names)
		}
	})
}
