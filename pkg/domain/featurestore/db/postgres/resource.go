package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	kpool "github.com/bcrant/mlrun/pkg/conn/db/postgres/pool"
	"github.com/bcrant/mlrun/pkg/domain"
	kpgerr "github.com/bcrant/mlrun/pkg/domain/errors/dberrors/postgres"
)

// uid of the single physical revision of an unversioned resource.
const unversionedUid = "unversioned"

// tables names the record table and its satellite tables for one resource
// kind. features and entities stay empty for kinds without spec columns.
type tables struct {
	records  string
	tags     string
	features string
	entities string
}

// writeHook runs inside the write transaction after a revision is stored.
// The feature-set store projects spec columns (features, entities) with it.
type writeHook func(ctx context.Context, tx kpool.Tx, project string, name string, uid string, object domain.Tree) error

// resourcePG implements db.VersionedResourceInterface over one table pair.
type resourcePG struct {
	pool    kpool.Pool
	t       tables
	onWrite writeHook
}

func (s *resourcePG) Create(
	ctx context.Context, project string, resource domain.VersionedResource, versioned bool,
) (string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	name := resource.Name
	tag := resource.Tag
	explicitTag := tag != ""
	if !explicitTag {
		tag = domain.TagLatest
	}

	if explicitTag {
		// reject an occupied coordinate up-front; a concurrent create
		// slipping past this check hits the tag table's primary key below.
		var occupied bool
		if err := tx.QueryRow(
			ctx,
			fmt.Sprintf(
				`select exists (select 1 from %q where "project" = $1 and "name" = $2 and "tag" = $3)`,
				s.t.tags,
			),
			project, name, tag,
		).Scan(&occupied); err != nil {
			return "", err
		}
		if occupied {
			return "", kpgerr.Duplication{
				Table:    s.t.tags,
				Identity: fmt.Sprintf("%s/%s:%s", project, name, tag),
			}
		}
	}

	uid := domain.NewUid()
	if !versioned {
		uid = unversionedUid
	}

	if err := s.putRevision(ctx, tx, project, name, uid, resource.Object, !versioned); err != nil {
		return "", err
	}

	if err := s.pointTag(ctx, tx, project, name, tag, uid, !explicitTag); err != nil {
		return "", err
	}

	if s.onWrite != nil {
		if err := s.onWrite(ctx, tx, project, name, uid, resource.Object); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", kpgerr.AsConflict(err, s.t.tags, fmt.Sprintf("%s/%s:%s", project, name, tag))
	}
	return uid, nil
}

func (s *resourcePG) Store(
	ctx context.Context, project string, name string, resource domain.VersionedResource,
	tag string, uid string, versioned bool,
) (string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if uid == "" && tag == "" {
		tag = domain.TagLatest
	}
	if !versioned {
		uid = unversionedUid
	}
	if uid == "" {
		uid = domain.NewUid()
	}

	if err := s.putRevision(ctx, tx, project, name, uid, resource.Object, true); err != nil {
		return "", err
	}

	if tag != "" {
		if err := s.pointTag(ctx, tx, project, name, tag, uid, true); err != nil {
			return "", err
		}
	}

	if s.onWrite != nil {
		if err := s.onWrite(ctx, tx, project, name, uid, resource.Object); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return uid, nil
}

// putRevision inserts one revision row. When overwrite is true an existing
// (project, name, uid) row is replaced in place, keeping created_at.
func (s *resourcePG) putRevision(
	ctx context.Context, tx kpool.Queryer,
	project string, name string, uid string, object domain.Tree, overwrite bool,
) error {
	objectRaw, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "marshalling resource object")
	}
	labelsRaw, err := json.Marshal(labelsOf(object))
	if err != nil {
		return errors.Wrap(err, "marshalling resource labels")
	}

	query := fmt.Sprintf(
		`
		insert into %q ("project", "name", "uid", "state", "labels", "object", "created_at", "updated_at")
		values ($1, $2, $3, $4, $5, $6, now(), now())
		`,
		s.t.records,
	)
	if overwrite {
		query += `
		on conflict ("project", "name", "uid") do update
		set "state" = excluded."state",
		    "labels" = excluded."labels",
		    "object" = excluded."object",
		    "updated_at" = now()
		`
	}

	if _, err := tx.Exec(
		ctx, query, project, name, uid, stateOf(object), labelsRaw, objectRaw,
	); err != nil {
		return kpgerr.AsConflict(err, s.t.records, fmt.Sprintf("%s/%s@%s", project, name, uid))
	}
	return nil
}

// pointTag makes tag point at uid. When move is true an existing tag row is
// retargeted; otherwise a taken tag is a conflict.
func (s *resourcePG) pointTag(
	ctx context.Context, tx kpool.Queryer,
	project string, name string, tag string, uid string, move bool,
) error {
	query := fmt.Sprintf(
		`insert into %q ("project", "name", "tag", "uid") values ($1, $2, $3, $4)`,
		s.t.tags,
	)
	if move {
		query += ` on conflict ("project", "name", "tag") do update set "uid" = excluded."uid"`
	}

	if _, err := tx.Exec(ctx, query, project, name, tag, uid); err != nil {
		return kpgerr.AsConflict(err, s.t.tags, fmt.Sprintf("%s/%s:%s", project, name, tag))
	}
	return nil
}

func (s *resourcePG) Get(
	ctx context.Context, project string, name string, tag string, uid string,
) (domain.VersionedResource, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return domain.VersionedResource{}, err
	}
	defer conn.Release()

	return s.get(ctx, conn, project, name, tag, uid)
}

func (s *resourcePG) get(
	ctx context.Context, conn kpool.Queryer, project string, name string, tag string, uid string,
) (domain.VersionedResource, error) {
	if uid == "" {
		if tag == "" {
			tag = domain.TagLatest
		}
		resolved, err := s.resolveTag(ctx, conn, project, name, tag)
		if err != nil {
			return domain.VersionedResource{}, err
		}
		uid = resolved
	}

	row := conn.QueryRow(
		ctx,
		fmt.Sprintf(
			`
			select "project", "name", "uid", "state", "labels", "object", "created_at", "updated_at"
			from %q where "project" = $1 and "name" = $2 and "uid" = $3
			`,
			s.t.records,
		),
		project, name, uid,
	)

	record, err := scanRecord(row)
	if err != nil {
		if isNoRows(err) {
			return domain.VersionedResource{}, kpgerr.Missing{
				Table:    s.t.records,
				Identity: fmt.Sprintf("%s/%s@%s", project, name, uid),
			}
		}
		return domain.VersionedResource{}, err
	}
	record.Tag = tag
	return record, nil
}

func (s *resourcePG) resolveTag(
	ctx context.Context, conn kpool.Queryer, project string, name string, tag string,
) (string, error) {
	var uid string
	if err := conn.QueryRow(
		ctx,
		fmt.Sprintf(
			`select "uid" from %q where "project" = $1 and "name" = $2 and "tag" = $3`,
			s.t.tags,
		),
		project, name, tag,
	).Scan(&uid); err != nil {
		if isNoRows(err) {
			return "", kpgerr.Missing{
				Table:    s.t.tags,
				Identity: fmt.Sprintf("%s/%s:%s", project, name, tag),
			}
		}
		return "", err
	}
	return uid, nil
}

func (s *resourcePG) Patch(
	ctx context.Context, project string, name string, update domain.Tree,
	tag string, uid string, mode domain.PatchMode,
) error {
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

	target, err := s.get(ctx, tx, project, name, tag, uid)
	if err != nil {
		return err
	}

	merged := domain.MergePatch(target.Object, update, mode)
	if err := s.putRevision(ctx, tx, project, name, target.Uid, merged, true); err != nil {
		return err
	}
	if s.onWrite != nil {
		if err := s.onWrite(ctx, tx, project, name, target.Uid, merged); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *resourcePG) Delete(
	ctx context.Context, project string, name string, tag string, uid string,
) error {
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

	identity := fmt.Sprintf("%s/%s", project, name)
	switch {
	case uid != "":
		identity = fmt.Sprintf("%s/%s@%s", project, name, uid)
	case tag != "":
		identity = fmt.Sprintf("%s/%s:%s", project, name, tag)
		resolved, err := s.resolveTag(ctx, tx, project, name, tag)
		if err != nil {
			return err
		}
		uid = resolved
	}

	query := fmt.Sprintf(`delete from %q where "project" = $1 and "name" = $2`, s.t.records)
	args := []any{project, name}
	if uid != "" {
		query += ` and "uid" = $3`
		args = append(args, uid)
	}

	deleted, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if deleted.RowsAffected() == 0 {
		return kpgerr.Missing{Table: s.t.records, Identity: identity}
	}

	return tx.Commit(ctx)
}

func (s *resourcePG) List(
	ctx context.Context, project string, query domain.ListQuery,
) ([]domain.VersionedResource, error) {
	if query.Partition != nil {
		if err := query.Partition.Validate(); err != nil {
			return nil, err
		}
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sql, args, err := buildListSQL(s.t, project, query)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := []domain.VersionedResource{}
	for rows.Next() {
		record, err := scanRecordWithTag(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, record)
	}
	return found, rows.Err()
}

func (s *resourcePG) ListTags(ctx context.Context, project string) ([]domain.TagTuple, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		fmt.Sprintf(`select "uid", "name", "tag" from %q where "project" = $1`, s.t.tags),
		project,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tuples := []domain.TagTuple{}
	for rows.Next() {
		var t domain.TagTuple
		if err := rows.Scan(&t.Uid, &t.Name, &t.Tag); err != nil {
			return nil, err
		}
		tuples = append(tuples, t)
	}
	return tuples, rows.Err()
}
