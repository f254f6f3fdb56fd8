package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/bcrant/mlrun/pkg/api/types/errors"
	apifs "github.com/bcrant/mlrun/pkg/api/types/featurestore"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
	"github.com/bcrant/mlrun/pkg/utils/slices"
)

// ListFeaturesHandler handles GET /projects/:project/features: the feature
// columns of the project's tagged feature sets, permission-filtered by
// feature name.
func ListFeaturesHandler(store fsdb.FeatureSetInterface, verifier auth.Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")

		query, err := listQuery(c)
		if err != nil {
			return err
		}

		found, err := store.ListFeatures(ctx, project, query)
		if err != nil {
			return apierr.FromError(err)
		}

		allowed, err := auth.FilterByPermission(
			ctx, verifier, domain.KindFeature, found, authInfo(c),
		)
		if err != nil {
			return apierr.FromError(err)
		}

		return c.JSON(http.StatusOK, apifs.FeaturesOutput{
			Features: slices.Map(allowed, apifs.ComposeFeatureListItem),
		})
	}
}

// ListEntitiesHandler is ListFeaturesHandler for entity columns.
func ListEntitiesHandler(store fsdb.FeatureSetInterface, verifier auth.Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")

		query, err := listQuery(c)
		if err != nil {
			return err
		}

		found, err := store.ListEntities(ctx, project, query)
		if err != nil {
			return apierr.FromError(err)
		}

		allowed, err := auth.FilterByPermission(
			ctx, verifier, domain.KindEntity, found, authInfo(c),
		)
		if err != nil {
			return apierr.FromError(err)
		}

		return c.JSON(http.StatusOK, apifs.EntitiesOutput{
			Entities: slices.Map(allowed, apifs.ComposeEntityListItem),
		})
	}
}
