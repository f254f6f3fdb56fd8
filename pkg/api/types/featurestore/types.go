package featurestore

import (
	"time"

	"github.com/bcrant/mlrun/pkg/domain"
)

// Request headers this API recognizes.
const (
	// patch mode selector: "replace" (default) | "additive"
	HeaderPatchMode = "x-mlrun-patch-mode"

	// identity of the calling user
	HeaderRemoteUser = "x-remote-user"

	// data-plane access key for the high-throughput store
	HeaderV3ioSession = "x-v3io-session"
)

// Metadata is the identity envelope of a versioned resource on the wire.
type Metadata struct {
	Name    string            `json:"name"`
	Project string            `json:"project,omitempty"`
	Tag     string            `json:"tag,omitempty"`
	Uid     string            `json:"uid,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
	Created *time.Time        `json:"created,omitempty"`
	Updated *time.Time        `json:"updated,omitempty"`
}

// Resource is a feature set or feature vector on the wire.
//
// Spec and Status are schemaless trees: their shape belongs to the clients
// and the ingestion engine, not to this service.
type Resource struct {
	Metadata Metadata    `json:"metadata"`
	Spec     domain.Tree `json:"spec,omitempty"`
	Status   domain.Tree `json:"status,omitempty"`
}

// ComposeResource builds the wire shape of a stored revision.
func ComposeResource(r domain.VersionedResource) Resource {
	spec := subtree(r.Object["spec"])
	status := subtree(r.Object["status"])

	var created, updated *time.Time
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		created = &t
	}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		updated = &t
	}

	return Resource{
		Metadata: Metadata{
			Name:    r.Name,
			Project: r.Project,
			Tag:     r.Tag,
			Uid:     r.Uid,
			Labels:  r.Labels,
			Created: created,
			Updated: updated,
		},
		Spec:   spec,
		Status: status,
	}
}

func subtree(value any) domain.Tree {
	switch tree := value.(type) {
	case domain.Tree:
		return tree
	case map[string]any:
		return domain.Tree(tree)
	}
	return nil
}

type FeatureSetsOutput struct {
	FeatureSets []Resource `json:"feature_sets"`
}

type FeatureVectorsOutput struct {
	FeatureVectors []Resource `json:"feature_vectors"`
}

type TagsOutput struct {
	Tags []string `json:"tags"`
}

// Digest identifies the feature set a feature or entity came from.
type Digest struct {
	Project string `json:"project"`
	Name    string `json:"name"`
	Tag     string `json:"tag,omitempty"`
	Uid     string `json:"uid,omitempty"`
}

// Column is one feature or entity column of a feature set.
type Column struct {
	Name      string            `json:"name"`
	ValueType string            `json:"value_type,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

type FeatureListItem struct {
	Feature          Column `json:"feature"`
	FeatureSetDigest Digest `json:"feature_set_digest"`
}

type FeaturesOutput struct {
	Features []FeatureListItem `json:"features"`
}

type EntityListItem struct {
	Entity           Column `json:"entity"`
	FeatureSetDigest Digest `json:"feature_set_digest"`
}

type EntitiesOutput struct {
	Entities []EntityListItem `json:"entities"`
}

func ComposeFeatureListItem(f domain.Feature) FeatureListItem {
	return FeatureListItem{
		Feature: Column{Name: f.Name, ValueType: f.ValueType, Labels: f.Labels},
		FeatureSetDigest: Digest{
			Project: f.Digest.Project, Name: f.Digest.Name,
			Tag: f.Digest.Tag, Uid: f.Digest.Uid,
		},
	}
}

func ComposeEntityListItem(e domain.Entity) EntityListItem {
	return EntityListItem{
		Entity: Column{Name: e.Name, ValueType: e.ValueType, Labels: e.Labels},
		FeatureSetDigest: Digest{
			Project: e.Digest.Project, Name: e.Digest.Name,
			Tag: e.Digest.Tag, Uid: e.Digest.Uid,
		},
	}
}

// DataSource describes where ingestion reads from.
type DataSource struct {
	Kind     string `json:"kind,omitempty"`
	Name     string `json:"name,omitempty"`
	Path     string `json:"path,omitempty"`
	Schedule string `json:"schedule,omitempty"`
}

// DataTarget describes where materialized features are written.
type DataTarget struct {
	Kind string `json:"kind,omitempty"`
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// IngestInput is the request body of the ingest endpoint.
type IngestInput struct {
	Source       *DataSource  `json:"source,omitempty"`
	Targets      []DataTarget `json:"targets,omitempty"`
	InferOptions int          `json:"infer_options,omitempty"`
	Credentials  struct {
		AccessKey string `json:"access_key,omitempty"`
	} `json:"credentials,omitempty"`
}

// RunHandle points to a launched materialization run.
type RunHandle struct {
	Name    string `json:"name"`
	Project string `json:"project"`
	Uid     string `json:"uid"`
	State   string `json:"state"`
}

// IngestOutput is the response of the ingest endpoint: the (possibly
// enriched) feature set after dispatch, and the launched run.
type IngestOutput struct {
	FeatureSet Resource  `json:"feature_set"`
	Run        RunHandle `json:"run"`
}
