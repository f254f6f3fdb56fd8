package postgres

import (
	"context"
	"time"

	kpool "github.com/bcrant/mlrun/pkg/conn/db/postgres/pool"
	kpgerr "github.com/bcrant/mlrun/pkg/domain/errors/dberrors/postgres"
	kdb "github.com/bcrant/mlrun/pkg/domain/task/db"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
)

type taskPG struct {
	pool kpool.Pool
}

var _ kdb.Interface = &taskPG{}

// New returns the postgres-backed background-task table.
func New(pool kpool.Pool) kdb.Interface {
	return &taskPG{pool: pool}
}

func (t *taskPG) Upsert(ctx context.Context, record kdb.Record) error {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	state := record.State
	if state == "" {
		state = kdb.StateCreated
	}

	if _, err := conn.Exec(
		ctx,
		`
		insert into "background_tasks" ("project", "name", "state", "error", "timeout_seconds", "created_at", "updated_at")
		values ($1, $2, $3, '', $4, now(), now())
		on conflict ("project", "name") do update
		set "state" = excluded."state",
		    "error" = '',
		    "timeout_seconds" = excluded."timeout_seconds",
		    "updated_at" = now()
		`,
		record.Project, record.Name, state, int64(record.Timeout.Seconds()),
	); err != nil {
		return kpgerr.AsConflict(err, "background_tasks", record.Project+"/"+record.Name)
	}
	return nil
}

func (t *taskPG) Get(ctx context.Context, project string, name string) (kdb.Record, error) {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return kdb.Record{}, err
	}
	defer conn.Release()

	record, err := scanTask(conn.QueryRow(
		ctx,
		`
		select "project", "name", "state", "error", "timeout_seconds", "created_at", "updated_at"
		from "background_tasks" where "project" = $1 and "name" = $2
		`,
		project, name,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kdb.Record{}, kpgerr.Missing{
				Table: "background_tasks", Identity: project + "/" + name,
			}
		}
		return kdb.Record{}, err
	}
	return record, nil
}

func (t *taskPG) SetState(
	ctx context.Context, project string, name string, state kdb.State, reason string,
) error {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if state != kdb.StateFailed {
		reason = ""
	}

	updated, err := conn.Exec(
		ctx,
		`
		update "background_tasks" set "state" = $3, "error" = $4, "updated_at" = now()
		where "project" = $1 and "name" = $2
		`,
		project, name, state, reason,
	)
	if err != nil {
		return err
	}
	if updated.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "background_tasks", Identity: project + "/" + name}
	}
	return nil
}

func (t *taskPG) List(ctx context.Context, project string) ([]kdb.Record, error) {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "project", "name", "state", "error", "timeout_seconds", "created_at", "updated_at"
		from "background_tasks" where "project" = $1 order by "updated_at" desc
		`,
		project,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := []kdb.Record{}
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, record)
	}
	return found, rows.Err()
}

func scanTask(row pgx.Row) (kdb.Record, error) {
	var (
		record         kdb.Record
		timeoutSeconds int64
	)
	if err := row.Scan(
		&record.Project, &record.Name, &record.State, &record.Error,
		&timeoutSeconds, &record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return kdb.Record{}, err
	}
	record.Timeout = time.Duration(timeoutSeconds) * time.Second
	return record, nil
}
