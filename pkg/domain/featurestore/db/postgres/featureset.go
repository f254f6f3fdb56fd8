package postgres

import (
	"context"

	kpool "github.com/bcrant/mlrun/pkg/conn/db/postgres/pool"
	"github.com/bcrant/mlrun/pkg/domain"
	kdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
	"github.com/bcrant/mlrun/pkg/utils/slices"
)

type featureSetPG struct {
	resourcePG
}

var _ kdb.FeatureSetInterface = &featureSetPG{}

// NewFeatureSet returns the postgres-backed feature-set store.
func NewFeatureSet(pool kpool.Pool) kdb.FeatureSetInterface {
	t := tables{
		records:  "feature_sets",
		tags:     "feature_set_tags",
		features: "feature_set_features",
		entities: "feature_set_entities",
	}
	store := &featureSetPG{
		resourcePG: resourcePG{pool: pool, t: t},
	}
	store.onWrite = projectColumns(t)
	return store
}

func (s *featureSetPG) ListFeatures(
	ctx context.Context, project string, query domain.ListQuery,
) ([]domain.Feature, error) {
	return s.listColumns(ctx, s.t.features, project, query)
}

func (s *featureSetPG) ListEntities(
	ctx context.Context, project string, query domain.ListQuery,
) ([]domain.Entity, error) {
	found, err := s.listColumns(ctx, s.t.entities, project, query)
	if err != nil {
		return nil, err
	}
	return slices.Map(found, func(f domain.Feature) domain.Entity {
		return domain.Entity{
			Name: f.Name, ValueType: f.ValueType, Labels: f.Labels, Digest: f.Digest,
		}
	}), nil
}
