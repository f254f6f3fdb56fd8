package postgres

import (
	"fmt"
	"strings"

	"github.com/bcrant/mlrun/pkg/domain"
)

// TagWildcard in a listing query matches every tagged and untagged revision.
const TagWildcard = "*"

var (
	partitionColumns = map[string]string{
		"name": "name",
	}
	sortColumns = map[string]string{
		"updated": "updated_at",
		"created": "created_at",
	}
)

// buildListSQL renders one listing query for the table pair t.
//
// The base query joins each revision with the tags pointing at it; revisions
// without a tag survive the join with a null tag. Filters narrow it down and
// a partition spec wraps it in a row_number() window.
func buildListSQL(t tables, project string, q domain.ListQuery) (string, []any, error) {
	args := []any{project}
	conds := []string{`r."project" = $1`}

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	join := fmt.Sprintf(
		`left join %q as g on (g."project" = r."project" and g."name" = r."name" and g."uid" = r."uid")`,
		t.tags,
	)
	if q.Tag != "" && q.Tag != TagWildcard {
		join = fmt.Sprintf(
			`inner join %q as g on (g."project" = r."project" and g."name" = r."name" and g."uid" = r."uid")`,
			t.tags,
		)
		conds = append(conds, fmt.Sprintf(`g."tag" = %s`, arg(q.Tag)))
	}

	if q.Name != "" {
		// a "~" prefix requests substring match instead of exact match.
		if fuzzy, ok := strings.CutPrefix(q.Name, "~"); ok {
			conds = append(conds, fmt.Sprintf(`r."name" ilike %s`, arg("%"+fuzzy+"%")))
		} else {
			conds = append(conds, fmt.Sprintf(`r."name" = %s`, arg(q.Name)))
		}
	}

	if q.State != "" {
		conds = append(conds, fmt.Sprintf(`r."state" = %s`, arg(q.State)))
	}

	for _, label := range q.Labels {
		if key, value, found := strings.Cut(label, "="); found {
			conds = append(conds, fmt.Sprintf(`r."labels" ->> %s = %s`, arg(key), arg(value)))
		} else {
			conds = append(conds, fmt.Sprintf(`r."labels" ? %s`, arg(label)))
		}
	}

	if len(q.Entities) != 0 {
		if t.entities == "" {
			return "", nil, domain.NewInvalidArgument("entity filter is not supported for this resource")
		}
		for _, entity := range q.Entities {
			conds = append(conds, fmt.Sprintf(
				`exists (select 1 from %q as e where e."project" = r."project" and e."parent_name" = r."name" and e."parent_uid" = r."uid" and e."name" = %s)`,
				t.entities, arg(entity),
			))
		}
	}

	if len(q.Features) != 0 {
		if t.features == "" {
			return "", nil, domain.NewInvalidArgument("feature filter is not supported for this resource")
		}
		for _, feature := range q.Features {
			conds = append(conds, fmt.Sprintf(
				`exists (select 1 from %q as f where f."project" = r."project" and f."parent_name" = r."name" and f."parent_uid" = r."uid" and f."name" = %s)`,
				t.features, arg(feature),
			))
		}
	}

	base := fmt.Sprintf(
		`select r."project", r."name", r."uid", r."state", r."labels", r."object", r."created_at", r."updated_at", g."tag" from %q as r %s where %s`,
		t.records, join, strings.Join(conds, " and "),
	)

	if q.Partition == nil {
		return base + ` order by r."name", r."updated_at" desc`, args, nil
	}

	partitionBy, ok := partitionColumns[q.Partition.PartitionBy]
	if !ok {
		return "", nil, domain.NewInvalidArgument(
			"unsupported partition-by field: " + q.Partition.PartitionBy,
		)
	}
	sortBy, ok := sortColumns[q.Partition.SortBy]
	if !ok {
		return "", nil, domain.NewInvalidArgument(
			"unsupported partition-sort-by field: " + q.Partition.SortBy,
		)
	}
	direction := "desc"
	if q.Partition.Order == domain.OrderAsc {
		direction = "asc"
	}

	windowed := fmt.Sprintf(
		`select p.*, row_number() over (partition by p.%q order by p.%q %s) as rank from (%s) as p`,
		partitionBy, sortBy, direction, base,
	)
	windowed = fmt.Sprintf(
		`select w."project", w."name", w."uid", w."state", w."labels", w."object", w."created_at", w."updated_at", w."tag" from (%s) as w where w."rank" <= %s`,
		windowed, arg(q.Partition.RowsPerPartition),
	)
	return windowed, args, nil
}
