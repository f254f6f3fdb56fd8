package handlers

import (
	apifs "github.com/bcrant/mlrun/pkg/api/types/featurestore"
	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
)

// FeatureSets builds the handler set of the feature-set endpoints.
func FeatureSets(store fsdb.FeatureSetInterface, verifier auth.Verifier) *Resources {
	return NewResources(
		domain.KindFeatureSet, store, verifier,
		func(items []apifs.Resource) any {
			return apifs.FeatureSetsOutput{FeatureSets: items}
		},
	)
}
