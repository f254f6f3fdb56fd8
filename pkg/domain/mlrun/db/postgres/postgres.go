package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	kpool "github.com/bcrant/mlrun/pkg/conn/db/postgres/pool"
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
	fspg "github.com/bcrant/mlrun/pkg/domain/featurestore/db/postgres"
	dbInterface "github.com/bcrant/mlrun/pkg/domain/mlrun/db"
	schemadb "github.com/bcrant/mlrun/pkg/domain/schema/db"
	schemapg "github.com/bcrant/mlrun/pkg/domain/schema/db/postgres"
	taskdb "github.com/bcrant/mlrun/pkg/domain/task/db"
	taskpg "github.com/bcrant/mlrun/pkg/domain/task/db/postgres"
)

type mlrunDBPostgres struct {
	pool *pgxpool.Pool

	featureSets    fsdb.FeatureSetInterface
	featureVectors fsdb.FeatureVectorInterface
	tasks          taskdb.Interface
	schema         schemadb.Interface
}

type Config struct {
	SchemaRepository string
}

type Option func(*Config) *Config

// WithSchemaRepository points at the on-disk schema repository. Without it
// the database cannot migrate itself.
func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

func New(ctx context.Context, url string, options ...Option) (dbInterface.Database, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, err
	}

	c := Config{}
	for _, option := range options {
		c = *option(&c)
	}

	p := kpool.Wrap(pool)
	schema := schemapg.Null()
	if c.SchemaRepository != "" {
		schema = schemapg.New(p, c.SchemaRepository)
	}

	return &mlrunDBPostgres{
		pool:           pool,
		featureSets:    fspg.NewFeatureSet(p),
		featureVectors: fspg.NewFeatureVector(p),
		tasks:          taskpg.New(p),
		schema:         schema,
	}, nil
}

func (m *mlrunDBPostgres) FeatureSets() fsdb.FeatureSetInterface {
	return m.featureSets
}

func (m *mlrunDBPostgres) FeatureVectors() fsdb.FeatureVectorInterface {
	return m.featureVectors
}

func (m *mlrunDBPostgres) Tasks() taskdb.Interface {
	return m.tasks
}

func (m *mlrunDBPostgres) Schema() schemadb.Interface {
	return m.schema
}

func (m *mlrunDBPostgres) Close() error {
	m.pool.Close()
	return nil
}
