package domain

import (
	"time"
)

// ResourceKind identifies a class of project-scoped resources towards the
// authorization verifier.
type ResourceKind string

const (
	KindFeatureSet    ResourceKind = "feature-set"
	KindFeatureVector ResourceKind = "feature-vector"
	KindFeature       ResourceKind = "feature"
	KindEntity        ResourceKind = "entity"
	KindFunction      ResourceKind = "function"
	KindRun           ResourceKind = "run"
	KindSchedule      ResourceKind = "schedule"
)

// VersionedResource is one stored revision of a named, tagged resource.
//
// Project+Name identify the resource, Uid one immutable revision of it, and
// Tag the (possibly empty) tag this record was resolved through. Object holds
// the full resource body (metadata / spec / status) as submitted, with
// server-assigned fields folded in.
type VersionedResource struct {
	Project   string
	Name      string
	Tag       string
	Uid       string
	State     string
	Labels    map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
	Object    Tree
}

// ProjectAndName implements auth.Grantee.
func (r VersionedResource) ProjectAndName() (string, string) {
	return r.Project, r.Name
}

// Spec returns the spec subtree of the stored object, or an empty Tree.
func (r VersionedResource) Spec() Tree {
	if spec, ok := r.Object["spec"].(map[string]any); ok {
		return Tree(spec)
	}
	if spec, ok := r.Object["spec"].(Tree); ok {
		return spec
	}
	return Tree{}
}

// TagTuple is the raw row shape of a tag listing: one tag of one resource.
type TagTuple struct {
	Uid  string
	Name string
	Tag  string
}

// OrderType is a sort direction of a partitioned listing.
type OrderType string

const (
	OrderAsc  OrderType = "asc"
	OrderDesc OrderType = "desc"
)

// PartitionSpec controls per-group deduplication of a listing: rows are
// grouped by PartitionBy, ordered by SortBy in Order direction, and truncated
// to RowsPerPartition rows per group.
type PartitionSpec struct {
	PartitionBy      string
	RowsPerPartition int
	SortBy           string
	Order            OrderType
}

// Validate checks field values. A zero PartitionSpec (no partitioning) is not
// valid; callers pass nil instead.
func (p PartitionSpec) Validate() error {
	if p.PartitionBy == "" {
		return NewInvalidArgument("partition-by must be given when partitioning is requested")
	}
	if p.RowsPerPartition < 1 {
		return NewInvalidArgument("rows-per-partition must be positive")
	}
	if p.SortBy == "" {
		return NewInvalidArgument("partition-sort-by must be given when partitioning is requested")
	}
	switch p.Order {
	case OrderAsc, OrderDesc:
	default:
		return NewInvalidArgument("partition-order should be asc or desc: " + string(p.Order))
	}
	return nil
}

// ListQuery carries the filters of a listing operation.
//
// Zero values mean "no filter". Labels entries are either "key" or
// "key=value". Entities and Features only apply to feature sets.
type ListQuery struct {
	Name     string
	Tag      string
	State    string
	Labels   []string
	Entities []string
	Features []string

	// nil means no partitioning.
	Partition *PartitionSpec
}

// FeatureSetDigest is the identity part of a feature set, attached to
// features and entities returned by cross-feature-set listings.
type FeatureSetDigest struct {
	Project string
	Name    string
	Tag     string
	Uid     string
}

// Feature is one feature column extracted from a feature-set spec.
type Feature struct {
	Name      string
	ValueType string
	Labels    map[string]string

	Digest FeatureSetDigest
}

// ProjectAndName implements auth.Grantee. Features are authorized by their
// own name within the owning feature set's project.
func (f Feature) ProjectAndName() (string, string) {
	return f.Digest.Project, f.Name
}

// Entity is one entity (join key) extracted from a feature-set spec.
type Entity struct {
	Name      string
	ValueType string
	Labels    map[string]string

	Digest FeatureSetDigest
}

// ProjectAndName implements auth.Grantee.
func (e Entity) ProjectAndName() (string, string) {
	return e.Digest.Project, e.Name
}
