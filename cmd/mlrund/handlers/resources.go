package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/bcrant/mlrun/pkg/api/types/errors"
	apifs "github.com/bcrant/mlrun/pkg/api/types/featurestore"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
	"github.com/bcrant/mlrun/pkg/utils/slices"
)

// TagAll is the only name the tag-listing endpoints accept.
const TagAll = "*"

// Resources bundles the handlers every versioned-resource kind repeats:
// the same parse-reference, permission-check, store-call sequence runs for
// feature sets and feature vectors, differing only in kind and store.
type Resources struct {
	kind     domain.ResourceKind
	store    fsdb.VersionedResourceInterface
	verifier auth.Verifier

	// wraps the listing into the kind's response envelope.
	envelope func([]apifs.Resource) any
}

func NewResources(
	kind domain.ResourceKind,
	store fsdb.VersionedResourceInterface,
	verifier auth.Verifier,
	envelope func([]apifs.Resource) any,
) *Resources {
	return &Resources{kind: kind, store: store, verifier: verifier, envelope: envelope}
}

// Create handles POST /projects/:project/<kind-plural>.
func (h *Resources) Create() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")

		resource, err := bindResource(c, project)
		if err != nil {
			return err
		}
		if resource.Name == "" {
			return apierr.BadRequest(`metadata.name is required`, nil)
		}

		isVersioned, err := versioned(c)
		if err != nil {
			return err
		}

		if err := h.verifier.CheckResourcePermission(
			ctx, h.kind, auth.Coordinate{Project: project, Name: resource.Name},
			auth.ActionCreate, authInfo(c),
		); err != nil {
			return apierr.FromError(err)
		}

		uid, err := h.store.Create(ctx, project, resource, isVersioned)
		if err != nil {
			return apierr.FromError(err)
		}

		created, err := h.store.Get(ctx, project, resource.Name, "", uid)
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apifs.ComposeResource(created))
	}
}

// Store handles PUT /projects/:project/<kind-plural>/:name/references/:reference.
func (h *Resources) Store() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")
		name := c.Param("name")

		tag, uid, err := reference(c, "reference")
		if err != nil {
			return err
		}

		resource, err := bindResource(c, project)
		if err != nil {
			return err
		}
		if resource.Name != "" && resource.Name != name {
			return apierr.BadRequest(`metadata.name does not match the path`, nil)
		}
		resource.Name = name

		isVersioned, err := versioned(c)
		if err != nil {
			return err
		}

		if err := h.verifier.CheckResourcePermission(
			ctx, h.kind, auth.Coordinate{Project: project, Name: name},
			auth.ActionStore, authInfo(c),
		); err != nil {
			return apierr.FromError(err)
		}

		storedUid, err := h.store.Store(ctx, project, name, resource, tag, uid, isVersioned)
		if err != nil {
			return apierr.FromError(err)
		}

		stored, err := h.store.Get(ctx, project, name, "", storedUid)
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apifs.ComposeResource(stored))
	}
}

// Get handles GET /projects/:project/<kind-plural>/:name/references/:reference.
func (h *Resources) Get() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")
		name := c.Param("name")

		tag, uid, err := reference(c, "reference")
		if err != nil {
			return err
		}

		if err := h.verifier.CheckResourcePermission(
			ctx, h.kind, auth.Coordinate{Project: project, Name: name},
			auth.ActionRead, authInfo(c),
		); err != nil {
			return apierr.FromError(err)
		}

		found, err := h.store.Get(ctx, project, name, tag, uid)
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apifs.ComposeResource(found))
	}
}

// Patch handles PATCH /projects/:project/<kind-plural>/:name/references/:reference.
func (h *Resources) Patch() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")
		name := c.Param("name")

		tag, uid, err := reference(c, "reference")
		if err != nil {
			return err
		}
		mode, err := patchMode(c)
		if err != nil {
			return err
		}
		update, err := bindTree(c)
		if err != nil {
			return err
		}

		if err := h.verifier.CheckResourcePermission(
			ctx, h.kind, auth.Coordinate{Project: project, Name: name},
			auth.ActionUpdate, authInfo(c),
		); err != nil {
			return apierr.FromError(err)
		}

		if err := h.store.Patch(ctx, project, name, update, tag, uid, mode); err != nil {
			return apierr.FromError(err)
		}

		patched, err := h.store.Get(ctx, project, name, tag, uid)
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apifs.ComposeResource(patched))
	}
}

// Delete handles DELETE with or without a reference; without one, every
// version of the name goes.
func (h *Resources) Delete(withReference bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")
		name := c.Param("name")

		tag, uid := "", ""
		if withReference {
			var err error
			tag, uid, err = reference(c, "reference")
			if err != nil {
				return err
			}
		}

		if err := h.verifier.CheckResourcePermission(
			ctx, h.kind, auth.Coordinate{Project: project, Name: name},
			auth.ActionDelete, authInfo(c),
		); err != nil {
			return apierr.FromError(err)
		}

		if err := h.store.Delete(ctx, project, name, tag, uid); err != nil {
			return apierr.FromError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// List handles GET /projects/:project/<kind-plural>.
//
// Items the identity may not read are dropped silently; extra per-item
// checks (feature-vector cross references) plug in via check.
func (h *Resources) List(check ItemCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")
		info := authInfo(c)

		query, err := listQuery(c)
		if err != nil {
			return err
		}

		found, err := h.store.List(ctx, project, query)
		if err != nil {
			return apierr.FromError(err)
		}

		allowed, err := auth.FilterByPermission(ctx, h.verifier, h.kind, found, info)
		if err != nil {
			return apierr.FromError(err)
		}

		if check != nil {
			allowed, err = filterByCheck(ctx, allowed, info, check)
			if err != nil {
				return apierr.FromError(err)
			}
		}

		return c.JSON(http.StatusOK, h.envelope(
			slices.Map(allowed, apifs.ComposeResource),
		))
	}
}

// ListTags handles GET /projects/:project/<kind-plural>/*/tags. Only the
// wildcard name is accepted; a concrete name fails without a store query.
func (h *Resources) ListTags() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")

		if name := c.Param("name"); name != TagAll {
			return apierr.BadRequest(
				`tag listing is only supported for all the resources of the project (name "*")`, nil,
			)
		}

		tuples, err := h.store.ListTags(ctx, project)
		if err != nil {
			return apierr.FromError(err)
		}

		allowed, err := h.allowedNames(ctx, project, tuples, authInfo(c))
		if err != nil {
			return apierr.FromError(err)
		}

		return c.JSON(http.StatusOK, apifs.TagsOutput{
			Tags: domain.UniqueTags(tuples, allowed),
		})
	}
}

// allowedNames batches one permission query over the distinct names of the
// tuples and returns the membership test of the allowed set.
func (h *Resources) allowedNames(
	ctx context.Context, project string, tuples []domain.TagTuple, info auth.AuthInfo,
) (func(name string) bool, error) {
	byName := domain.TagByName(tuples, func(string) bool { return true })
	names := make([]namedResource, 0, len(byName))
	for name := range byName {
		names = append(names, namedResource{project: project, name: name})
	}

	filtered, err := auth.FilterByPermission(ctx, h.verifier, h.kind, names, info)
	if err != nil {
		return nil, err
	}

	allowed := map[string]struct{}{}
	for _, named := range filtered {
		allowed[named.name] = struct{}{}
	}
	return func(name string) bool {
		_, ok := allowed[name]
		return ok
	}, nil
}

type namedResource struct {
	project string
	name    string
}

func (n namedResource) ProjectAndName() (string, string) {
	return n.project, n.name
}
