package postgres

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"

	kpool "github.com/bcrant/mlrun/pkg/conn/db/postgres/pool"
	kdb "github.com/bcrant/mlrun/pkg/domain/schema/db"
)

// pgSchema applies schema versions found in a repository directory.
//
// The repository holds one subdirectory per version, named by its number,
// each containing the .sql files of that version.
type pgSchema struct {
	pool       kpool.Pool
	repository string
}

var _ kdb.Interface = &pgSchema{}

func New(pool kpool.Pool, repository string) kdb.Interface {
	return &pgSchema{pool: pool, repository: repository}
}

type schemaVersion struct {
	number int
	root   string
}

func (v schemaVersion) apply(ctx context.Context, tx kpool.Queryer) error {
	entries, err := os.ReadDir(v.root)
	if err != nil {
		return err
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)

	for _, name := range names {
		ddl, err := os.ReadFile(filepath.Join(v.root, name))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(ddl)); err != nil {
			return errors.Wrapf(err, "applying %s/%s", v.root, name)
		}
	}
	return nil
}

func (s *pgSchema) Version(ctx context.Context) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return -1, err
	}
	defer conn.Release()

	var found int
	if err := conn.QueryRow(
		ctx, `select max("version") from "schema_version"`,
	).Scan(&found); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
			return 0, nil
		}
		return -1, err
	}
	return found, nil
}

func (s *pgSchema) Upgrade(ctx context.Context) error {
	known, err := s.versions()
	if err != nil {
		return err
	}

	current, err := s.Version(ctx)
	if err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, v := range known {
		if v.number <= current {
			continue
		}
		if err := v.apply(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx, `insert into "schema_version" ("version") values ($1)`, v.number,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Context watches the repository and cancels when a version newer than the
// database's shows up, so the daemon restarts into a migration instead of
// running against a schema it does not know.
func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return cctx, func() {}
	}
	if err := watcher.Add(s.repository); err != nil {
		cancel(err)
		return cctx, func() {}
	}

	check := func() {
		known, err := s.versions()
		if err != nil {
			cancel(fmt.Errorf("failed to read schema repository: %w", err))
			return
		}
		current, err := s.Version(ctx)
		if err != nil {
			cancel(fmt.Errorf("failed to get current schema version: %w", err))
			return
		}
		for _, v := range known {
			if current < v.number {
				cancel(fmt.Errorf(
					"schema is outdated: %d (in db) < %d (in repository)",
					current, v.number,
				))
				return
			}
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event := <-watcher.Events:
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}
				if s.repository != filepath.Dir(event.Name) {
					continue
				}
				check()
			}
		}
	}()

	check()
	return cctx, func() { cancel(nil) }
}

func (s *pgSchema) versions() ([]schemaVersion, error) {
	entries, err := os.ReadDir(s.repository)
	if err != nil {
		return nil, err
	}

	known := make([]schemaVersion, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		number, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		known = append(known, schemaVersion{
			number: number,
			root:   filepath.Join(s.repository, entry.Name()),
		})
	}
	slices.SortFunc(known, func(a, b schemaVersion) int { return cmp.Compare(a.number, b.number) })
	return known, nil
}

// Null is the schema interface of a daemon deployed without a repository.
func Null() kdb.Interface {
	return nullSchema{}
}

type nullSchema struct{}

func (nullSchema) Upgrade(context.Context) error {
	return errors.New("no schema repository available")
}

func (nullSchema) Version(context.Context) (int, error) {
	return -1, nil
}

func (nullSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctx, func() {}
}
