package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	kpool "github.com/bcrant/mlrun/pkg/conn/db/postgres/pool"
	"github.com/bcrant/mlrun/pkg/domain"
)

// column is one feature or entity row extracted from a feature-set spec.
type column struct {
	Name      string            `json:"name"`
	ValueType string            `json:"value_type"`
	Labels    map[string]string `json:"labels"`
}

// projectColumns is the feature-set write hook. It re-derives the feature and
// entity rows of one revision from the stored object, inside the same
// transaction as the revision write.
func projectColumns(t tables) writeHook {
	return func(ctx context.Context, tx kpool.Tx, project string, name string, uid string, object domain.Tree) error {
		spec, _ := object["spec"].(map[string]any)
		if spec == nil {
			if tree, ok := object["spec"].(domain.Tree); ok {
				spec = tree
			}
		}

		for field, table := range map[string]string{
			"features": t.features,
			"entities": t.entities,
		} {
			if _, err := tx.Exec(
				ctx,
				fmt.Sprintf(
					`delete from %q where "project" = $1 and "parent_name" = $2 and "parent_uid" = $3`,
					table,
				),
				project, name, uid,
			); err != nil {
				return err
			}

			for _, col := range columnsOf(spec, field) {
				labelsRaw, err := json.Marshal(col.Labels)
				if err != nil {
					return errors.Wrapf(err, "marshalling %s labels", field)
				}
				if _, err := tx.Exec(
					ctx,
					fmt.Sprintf(
						`insert into %q ("project", "parent_name", "parent_uid", "name", "value_type", "labels") values ($1, $2, $3, $4, $5, $6)`,
						table,
					),
					project, name, uid, col.Name, col.ValueType, labelsRaw,
				); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// columnsOf reads spec[field] as a list of feature/entity descriptors,
// skipping malformed elements.
func columnsOf(spec map[string]any, field string) []column {
	rawList, ok := spec[field].([]any)
	if !ok {
		return nil
	}

	cols := []column{}
	for _, raw := range rawList {
		element, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, ok := element["name"].(string)
		if !ok || name == "" {
			continue
		}
		col := column{Name: name, Labels: map[string]string{}}
		if valueType, ok := element["value_type"].(string); ok {
			col.ValueType = valueType
		}
		if labels, ok := element["labels"].(map[string]any); ok {
			for key, value := range labels {
				if s, ok := value.(string); ok {
					col.Labels[key] = s
				} else {
					col.Labels[key] = fmt.Sprint(value)
				}
			}
		}
		cols = append(cols, col)
	}
	return cols
}

// buildColumnSQL renders the cross-feature-set column listing over the side
// table named by columnTable. Only tagged feature-set revisions contribute
// columns; q.Name and q.Labels filter the column, q.Tag the owning tag.
func buildColumnSQL(t tables, columnTable string, project string, q domain.ListQuery) (string, []any) {
	args := []any{project}
	conds := []string{`r."project" = $1`}

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Tag != "" && q.Tag != TagWildcard {
		conds = append(conds, fmt.Sprintf(`g."tag" = %s`, arg(q.Tag)))
	}

	if q.Name != "" {
		if fuzzy, ok := strings.CutPrefix(q.Name, "~"); ok {
			conds = append(conds, fmt.Sprintf(`c."name" ilike %s`, arg("%"+fuzzy+"%")))
		} else {
			conds = append(conds, fmt.Sprintf(`c."name" = %s`, arg(q.Name)))
		}
	}

	for _, label := range q.Labels {
		if key, value, found := strings.Cut(label, "="); found {
			conds = append(conds, fmt.Sprintf(`c."labels" ->> %s = %s`, arg(key), arg(value)))
		} else {
			conds = append(conds, fmt.Sprintf(`c."labels" ? %s`, arg(label)))
		}
	}

	for _, entity := range q.Entities {
		conds = append(conds, fmt.Sprintf(
			`exists (select 1 from %q as e where e."project" = r."project" and e."parent_name" = r."name" and e."parent_uid" = r."uid" and e."name" = %s)`,
			t.entities, arg(entity),
		))
	}

	query := fmt.Sprintf(
		`
		select c."name", c."value_type", c."labels", r."project", r."name", r."uid", g."tag"
		from %q as c
		inner join %q as r on (r."project" = c."project" and r."name" = c."parent_name" and r."uid" = c."parent_uid")
		inner join %q as g on (g."project" = r."project" and g."name" = r."name" and g."uid" = r."uid")
		where %s
		order by r."name", c."name"
		`,
		columnTable, t.records, t.tags, strings.Join(conds, " and "),
	)
	return query, args
}

func (s *featureSetPG) listColumns(
	ctx context.Context, columnTable string, project string, q domain.ListQuery,
) ([]domain.Feature, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sql, args := buildColumnSQL(s.t, columnTable, project, q)
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := []domain.Feature{}
	for rows.Next() {
		var (
			feature   domain.Feature
			labelsRaw []byte
		)
		if err := rows.Scan(
			&feature.Name, &feature.ValueType, &labelsRaw,
			&feature.Digest.Project, &feature.Digest.Name, &feature.Digest.Uid, &feature.Digest.Tag,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(labelsRaw, &feature.Labels); err != nil {
			return nil, errors.Wrap(err, "unmarshalling column labels")
		}
		found = append(found, feature)
	}
	return found, rows.Err()
}
