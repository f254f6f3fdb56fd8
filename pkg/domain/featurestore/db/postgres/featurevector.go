package postgres

import (
	kpool "github.com/bcrant/mlrun/pkg/conn/db/postgres/pool"
	kdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
)

// NewFeatureVector returns the postgres-backed feature-vector store.
func NewFeatureVector(pool kpool.Pool) kdb.FeatureVectorInterface {
	return &resourcePG{
		pool: pool,
		t:    tables{records: "feature_vectors", tags: "feature_vector_tags"},
	}
}
