package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/bcrant/mlrun/pkg/api/types/errors"
	apifs "github.com/bcrant/mlrun/pkg/api/types/featurestore"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	"github.com/bcrant/mlrun/pkg/domain/ingest"
	"github.com/bcrant/mlrun/pkg/utils/slices"
)

// IngestHandler handles POST .../feature-sets/:name/references/:reference/ingest.
//
// It answers 202 once the run is launched; the run outlives the request and
// reports through the background-task record.
func IngestHandler(dispatcher *ingest.Dispatcher, verifier auth.Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		project := c.Param("project")
		name := c.Param("name")
		info := authInfo(c)

		tag, uid, err := reference(c, "reference")
		if err != nil {
			return err
		}

		var input apifs.IngestInput
		if err := c.Bind(&input); err != nil {
			return apierr.BadRequest(`format error (json expected)`, err)
		}
		if input.Credentials.AccessKey != "" {
			info.AccessKey = input.Credentials.AccessKey
		}

		if err := verifier.CheckResourcePermission(
			ctx, domain.KindFeatureSet, auth.Coordinate{Project: project, Name: name},
			auth.ActionUpdate, info,
		); err != nil {
			return apierr.FromError(err)
		}

		request := ingest.Request{
			Project: project,
			Name:    name,
			Tag:     tag,
			Uid:     uid,
			Targets: slices.Map(input.Targets, func(t apifs.DataTarget) ingest.Target {
				return ingest.Target{Kind: t.Kind, Name: t.Name, Path: t.Path}
			}),
			InferOptions: input.InferOptions,
		}
		if input.Source != nil {
			request.Source = ingest.Source{
				Kind:     input.Source.Kind,
				Name:     input.Source.Name,
				Path:     input.Source.Path,
				Schedule: input.Source.Schedule,
			}
		}

		featureSet, run, err := dispatcher.Ingest(ctx, request, info)
		if err != nil {
			return apierr.FromError(err)
		}

		return c.JSON(http.StatusAccepted, apifs.IngestOutput{
			FeatureSet: apifs.ComposeResource(featureSet),
			Run: apifs.RunHandle{
				Name:    run.Name,
				Project: run.Project,
				Uid:     run.Uid,
				State:   run.State,
			},
		})
	}
}
