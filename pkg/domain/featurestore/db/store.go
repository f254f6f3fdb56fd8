package db

import (
	"context"

	"github.com/bcrant/mlrun/pkg/domain"
)

// VersionedResourceInterface is the CRUD surface shared by feature sets and
// feature vectors: named, tagged, uid-addressed records inside a project.
type VersionedResourceInterface interface {
	// Create stores a new resource and returns the assigned uid.
	//
	// The initial tag is resource.Tag, defaulting to "latest" when absent.
	// When the tag is explicit and the (project, name, tag) triple is taken
	// already, it fails wrapping domain.ErrAlreadyExists; the implicit
	// "latest" tag just moves. When versioned is false, only one physical
	// revision is kept and later writes overwrite it in place.
	Create(ctx context.Context, project string, resource domain.VersionedResource, versioned bool) (string, error)

	// Store upserts the full resource body at the (tag | uid) coordinate,
	// creating it if absent, and returns the resulting uid.
	Store(ctx context.Context, project string, name string, resource domain.VersionedResource, tag string, uid string, versioned bool) (string, error)

	// Get resolves the coordinate and returns the stored revision.
	//
	// When uid is empty, tag is used; when both are empty, tag defaults to
	// "latest". Fails wrapping domain.ErrMissing when nothing matches.
	Get(ctx context.Context, project string, name string, tag string, uid string) (domain.VersionedResource, error)

	// Patch merges update into the stored object at the coordinate.
	//
	// Fails wrapping domain.ErrMissing when the target is absent.
	Patch(ctx context.Context, project string, name string, update domain.Tree, tag string, uid string, mode domain.PatchMode) error

	// Delete removes the targeted coordinate, or every version of the name
	// when both tag and uid are empty. Removing the last version removes
	// the name entirely.
	//
	// Deleting a non-existent coordinate fails wrapping domain.ErrMissing.
	Delete(ctx context.Context, project string, name string, tag string, uid string) error

	// List returns revisions matching the query. With a PartitionSpec the
	// result holds at most RowsPerPartition rows per partition key, picked
	// as the top rows by the sort field in the requested order.
	List(ctx context.Context, project string, query domain.ListQuery) ([]domain.VersionedResource, error)

	// ListTags returns every (uid, name, tag) tuple of the project.
	ListTags(ctx context.Context, project string) ([]domain.TagTuple, error)
}

// FeatureSetInterface adds the cross-feature-set column listings.
type FeatureSetInterface interface {
	VersionedResourceInterface

	// ListFeatures returns feature columns of the project's tagged feature
	// sets, each with the digest of the owning feature set.
	ListFeatures(ctx context.Context, project string, query domain.ListQuery) ([]domain.Feature, error)

	// ListEntities is ListFeatures for entity columns.
	ListEntities(ctx context.Context, project string, query domain.ListQuery) ([]domain.Entity, error)
}

type FeatureVectorInterface interface {
	VersionedResourceInterface
}
