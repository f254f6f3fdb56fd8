package mock

import (
	"context"
	"errors"

	"github.com/bcrant/mlrun/pkg/domain"
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
)

type CallLog[T any] []T

// ResourceStore mocks db.VersionedResourceInterface and, with the column
// listings, db.FeatureSetInterface.
type ResourceStore struct {
	Impl struct {
		Create       func(context.Context, string, domain.VersionedResource, bool) (string, error)
		Store        func(context.Context, string, string, domain.VersionedResource, string, string, bool) (string, error)
		Get          func(context.Context, string, string, string, string) (domain.VersionedResource, error)
		Patch        func(context.Context, string, string, domain.Tree, string, string, domain.PatchMode) error
		Delete       func(context.Context, string, string, string, string) error
		List         func(context.Context, string, domain.ListQuery) ([]domain.VersionedResource, error)
		ListTags     func(context.Context, string) ([]domain.TagTuple, error)
		ListFeatures func(context.Context, string, domain.ListQuery) ([]domain.Feature, error)
		ListEntities func(context.Context, string, domain.ListQuery) ([]domain.Entity, error)
	}
	Calls struct {
		Create CallLog[struct {
			Project   string
			Resource  domain.VersionedResource
			Versioned bool
		}]
		Store CallLog[struct {
			Project   string
			Name      string
			Resource  domain.VersionedResource
			Tag       string
			Uid       string
			Versioned bool
		}]
		Get CallLog[struct {
			Project string
			Name    string
			Tag     string
			Uid     string
		}]
		Patch CallLog[struct {
			Project string
			Name    string
			Update  domain.Tree
			Tag     string
			Uid     string
			Mode    domain.PatchMode
		}]
		Delete CallLog[struct {
			Project string
			Name    string
			Tag     string
			Uid     string
		}]
		List CallLog[struct {
			Project string
			Query   domain.ListQuery
		}]
		ListTags     CallLog[struct{ Project string }]
		ListFeatures CallLog[struct {
			Project string
			Query   domain.ListQuery
		}]
		ListEntities CallLog[struct {
			Project string
			Query   domain.ListQuery
		}]
	}
}

func NewResourceStore() *ResourceStore {
	return &ResourceStore{}
}

var _ fsdb.FeatureSetInterface = &ResourceStore{}
var _ fsdb.FeatureVectorInterface = &ResourceStore{}

func (m *ResourceStore) Create(ctx context.Context, project string, resource domain.VersionedResource, versioned bool) (string, error) {
	m.Calls.Create = append(m.Calls.Create, struct {
		Project   string
		Resource  domain.VersionedResource
		Versioned bool
	}{Project: project, Resource: resource, Versioned: versioned})
	if m.Impl.Create != nil {
		return m.Impl.Create(ctx, project, resource, versioned)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) Store(ctx context.Context, project string, name string, resource domain.VersionedResource, tag string, uid string, versioned bool) (string, error) {
	m.Calls.Store = append(m.Calls.Store, struct {
		Project   string
		Name      string
		Resource  domain.VersionedResource
		Tag       string
		Uid       string
		Versioned bool
	}{Project: project, Name: name, Resource: resource, Tag: tag, Uid: uid, Versioned: versioned})
	if m.Impl.Store != nil {
		return m.Impl.Store(ctx, project, name, resource, tag, uid, versioned)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) Get(ctx context.Context, project string, name string, tag string, uid string) (domain.VersionedResource, error) {
	m.Calls.Get = append(m.Calls.Get, struct {
		Project string
		Name    string
		Tag     string
		Uid     string
	}{Project: project, Name: name, Tag: tag, Uid: uid})
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, project, name, tag, uid)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) Patch(ctx context.Context, project string, name string, update domain.Tree, tag string, uid string, mode domain.PatchMode) error {
	m.Calls.Patch = append(m.Calls.Patch, struct {
		Project string
		Name    string
		Update  domain.Tree
		Tag     string
		Uid     string
		Mode    domain.PatchMode
	}{Project: project, Name: name, Update: update, Tag: tag, Uid: uid, Mode: mode})
	if m.Impl.Patch != nil {
		return m.Impl.Patch(ctx, project, name, update, tag, uid, mode)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) Delete(ctx context.Context, project string, name string, tag string, uid string) error {
	m.Calls.Delete = append(m.Calls.Delete, struct {
		Project string
		Name    string
		Tag     string
		Uid     string
	}{Project: project, Name: name, Tag: tag, Uid: uid})
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, project, name, tag, uid)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) List(ctx context.Context, project string, query domain.ListQuery) ([]domain.VersionedResource, error) {
	m.Calls.List = append(m.Calls.List, struct {
		Project string
		Query   domain.ListQuery
	}{Project: project, Query: query})
	if m.Impl.List != nil {
		return m.Impl.List(ctx, project, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) ListTags(ctx context.Context, project string) ([]domain.TagTuple, error) {
	m.Calls.ListTags = append(m.Calls.ListTags, struct{ Project string }{Project: project})
	if m.Impl.ListTags != nil {
		return m.Impl.ListTags(ctx, project)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) ListFeatures(ctx context.Context, project string, query domain.ListQuery) ([]domain.Feature, error) {
	m.Calls.ListFeatures = append(m.Calls.ListFeatures, struct {
		Project string
		Query   domain.ListQuery
	}{Project: project, Query: query})
	if m.Impl.ListFeatures != nil {
		return m.Impl.ListFeatures(ctx, project, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *ResourceStore) ListEntities(ctx context.Context, project string, query domain.ListQuery) ([]domain.Entity, error) {
	m.Calls.ListEntities = append(m.Calls.ListEntities, struct {
		Project string
		Query   domain.ListQuery
	}{Project: project, Query: query})
	if m.Impl.ListEntities != nil {
		return m.Impl.ListEntities(ctx, project, query)
	}
	panic(errors.New("it should not be called"))
}
