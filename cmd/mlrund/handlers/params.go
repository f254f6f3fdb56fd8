package handlers

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	apierr "github.com/bcrant/mlrun/pkg/api/types/errors"
	apifs "github.com/bcrant/mlrun/pkg/api/types/featurestore"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
)

// authInfo builds the caller's identity from request headers.
//
// The username comes from x-remote-user, falling back to the bearer token's
// "username" claim. The token is not verified here: policy evaluation,
// including token verification, belongs to the external verifier the
// AuthInfo is handed to.
func authInfo(c echo.Context) auth.AuthInfo {
	info := auth.AuthInfo{
		Username:  c.Request().Header.Get(apifs.HeaderRemoteUser),
		AccessKey: c.Request().Header.Get(apifs.HeaderV3ioSession),
	}

	authorization := c.Request().Header.Get(echo.HeaderAuthorization)
	if raw, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		info.Token = raw
		if info.Username == "" {
			info.Username = usernameClaim(raw)
		}
	}
	return info
}

func usernameClaim(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	username, _ := claims["username"].(string)
	return username
}

// reference resolves the :reference path param into (tag, uid).
func reference(c echo.Context, param string) (string, string, error) {
	tag, uid, err := domain.ParseReference(c.Param(param))
	if err != nil {
		return "", "", apierr.FromError(err)
	}
	return tag, uid, nil
}

// patchMode reads the x-mlrun-patch-mode header, defaulting to replace.
func patchMode(c echo.Context) (domain.PatchMode, error) {
	mode, err := domain.ParsePatchMode(c.Request().Header.Get(apifs.HeaderPatchMode))
	if err != nil {
		return "", apierr.FromError(err)
	}
	return mode, nil
}

// versioned reads the versioned query param, defaulting to true.
func versioned(c echo.Context) (bool, error) {
	raw := c.QueryParam("versioned")
	if raw == "" {
		return true, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apierr.BadRequest(`versioned should be a boolean`, err)
	}
	return value, nil
}

// listQuery parses the filter and partition query params of list endpoints.
func listQuery(c echo.Context) (domain.ListQuery, error) {
	params := c.QueryParams()
	query := domain.ListQuery{
		Name:     c.QueryParam("name"),
		Tag:      c.QueryParam("tag"),
		State:    c.QueryParam("state"),
		Labels:   params["label"],
		Entities: params["entity"],
		Features: params["feature"],
	}

	partitionBy := c.QueryParam("partition-by")
	if partitionBy == "" {
		return query, nil
	}

	rows := 1
	if raw := c.QueryParam("rows-per-partition"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return domain.ListQuery{}, apierr.BadRequest(
				`rows-per-partition should be a positive integer`, err,
			)
		}
		rows = parsed
	}

	order := domain.OrderDesc
	if raw := c.QueryParam("partition-order"); raw != "" {
		order = domain.OrderType(raw)
	}

	partition := &domain.PartitionSpec{
		PartitionBy:      partitionBy,
		RowsPerPartition: rows,
		SortBy:           c.QueryParam("partition-sort-by"),
		Order:            order,
	}
	if err := partition.Validate(); err != nil {
		return domain.ListQuery{}, apierr.FromError(err)
	}

	query.Partition = partition
	return query, nil
}

// bindResource reads the request body twice over: as the raw tree stored
// verbatim, and as the typed envelope identifying the resource.
func bindResource(c echo.Context, project string) (domain.VersionedResource, error) {
	var body apifs.Resource
	if err := c.Bind(&body); err != nil {
		return domain.VersionedResource{}, apierr.BadRequest(
			`format error (json expected)`, err,
		)
	}

	object := domain.Tree{
		"metadata": map[string]any{
			"name":    body.Metadata.Name,
			"project": project,
		},
		"spec":   map[string]any(body.Spec),
		"status": map[string]any(body.Status),
	}
	if len(body.Metadata.Labels) != 0 {
		labels := map[string]any{}
		for key, value := range body.Metadata.Labels {
			labels[key] = value
		}
		object["metadata"].(map[string]any)["labels"] = labels
	}

	return domain.VersionedResource{
		Project: project,
		Name:    body.Metadata.Name,
		Tag:     body.Metadata.Tag,
		Uid:     body.Metadata.Uid,
		Labels:  body.Metadata.Labels,
		Object:  object,
	}, nil
}

// bindTree reads the request body as a raw tree, for patch updates.
func bindTree(c echo.Context) (domain.Tree, error) {
	update := domain.Tree{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &update); err != nil {
		return nil, apierr.BadRequest(`format error (json expected)`, err)
	}
	return update, nil
}
