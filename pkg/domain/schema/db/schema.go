package db

import "context"

// Interface manages the database schema of the service.
type Interface interface {
	// Version is the schema version found in the database. 0 means the
	// schema has never been applied.
	Version(ctx context.Context) (int, error)

	// Upgrade applies every schema version newer than the database's, in
	// one transaction.
	Upgrade(ctx context.Context) error

	// Context derives a context cancelled when the schema repository on
	// disk gets ahead of the database.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}
