package handlers

import (
	"context"
	"strings"

	apifs "github.com/bcrant/mlrun/pkg/api/types/featurestore"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
)

// FeatureVectors builds the handler set of the feature-vector endpoints.
func FeatureVectors(store fsdb.FeatureVectorInterface, verifier auth.Verifier) *Resources {
	return NewResources(
		domain.KindFeatureVector, store, verifier,
		func(items []apifs.Resource) any {
			return apifs.FeatureVectorsOutput{FeatureVectors: items}
		},
	)
}

// FeatureReferenceCheck drops listed feature vectors referencing feature
// sets the identity may not read. All of a vector's references go to the
// verifier in one batched query.
func FeatureReferenceCheck(verifier auth.Verifier) ItemCheck {
	return func(ctx context.Context, item domain.VersionedResource, info auth.AuthInfo) (bool, error) {
		coords := referencedFeatureSets(item)
		if len(coords) == 0 {
			return true, nil
		}

		allowed, err := verifier.QueryPermissions(
			ctx, domain.KindFeatureSet, coords, auth.ActionRead, info,
		)
		if err != nil {
			return false, err
		}
		for _, coord := range coords {
			if !allowed[coord] {
				return false, nil
			}
		}
		return true, nil
	}
}

// referencedFeatureSets reads spec.features, each entry shaped
// "[project/]feature-set.feature[@tag][ as alias]", into the distinct
// feature-set coordinates the vector depends on.
func referencedFeatureSets(item domain.VersionedResource) []auth.Coordinate {
	rawList, ok := item.Spec()["features"].([]any)
	if !ok {
		return nil
	}

	distinct := map[auth.Coordinate]struct{}{}
	coords := []auth.Coordinate{}
	for _, raw := range rawList {
		entry, ok := raw.(string)
		if !ok {
			continue
		}
		if alias, _, found := strings.Cut(entry, " as "); found {
			entry = alias
		}

		project := item.Project
		if p, rest, found := strings.Cut(entry, "/"); found {
			project, entry = p, rest
		}
		name, _, _ := strings.Cut(entry, ".")
		// a tag suffix is not part of the coordinate
		name, _, _ = strings.Cut(name, "@")
		if name == "" {
			continue
		}

		coord := auth.Coordinate{Project: project, Name: name}
		if _, ok := distinct[coord]; ok {
			continue
		}
		distinct[coord] = struct{}{}
		coords = append(coords, coord)
	}
	return coords
}
