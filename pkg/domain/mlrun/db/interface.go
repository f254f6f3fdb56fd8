package db

import (
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
	schemadb "github.com/bcrant/mlrun/pkg/domain/schema/db"
	taskdb "github.com/bcrant/mlrun/pkg/domain/task/db"
)

// Database bundles every store of the service.
type Database interface {
	FeatureSets() fsdb.FeatureSetInterface
	FeatureVectors() fsdb.FeatureVectorInterface
	Tasks() taskdb.Interface
	Schema() schemadb.Interface

	Close() error
}
