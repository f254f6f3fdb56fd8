package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	"github.com/bcrant/mlrun/pkg/domain"
)

// requested record is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return domain.ErrMissing
}

// a unique constraint rejected the write.
type Duplication struct {
	Table    string
	Identity string
}

var _ error = Duplication{}

func (d Duplication) Error() string {
	return fmt.Sprintf("%s already exists in %s", d.Identity, d.Table)
}

func (d Duplication) Unwrap() error {
	return domain.ErrAlreadyExists
}

// AsConflict translates a unique-violation from the database driver into
// Duplication, so that racing creates surface domain.ErrAlreadyExists to the
// losing caller. Other errors pass through unchanged.
func AsConflict(err error, table string, identity string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return Duplication{Table: table, Identity: identity}
	}
	return err
}
