package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"

	"github.com/bcrant/mlrun/pkg/domain"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// scanRecord reads one record row in the column order
// (project, name, uid, state, labels, object, created_at, updated_at).
func scanRecord(row pgx.Row) (domain.VersionedResource, error) {
	var (
		record    domain.VersionedResource
		labelsRaw []byte
		objectRaw []byte
	)
	if err := row.Scan(
		&record.Project, &record.Name, &record.Uid, &record.State,
		&labelsRaw, &objectRaw, &record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return domain.VersionedResource{}, err
	}

	if err := json.Unmarshal(labelsRaw, &record.Labels); err != nil {
		return domain.VersionedResource{}, errors.Wrap(err, "unmarshalling resource labels")
	}
	if err := json.Unmarshal(objectRaw, &record.Object); err != nil {
		return domain.VersionedResource{}, errors.Wrap(err, "unmarshalling resource object")
	}
	return record, nil
}

// scanRecordWithTag reads one listing row, which carries a trailing
// (possibly null) tag column resolved by joining the tag table.
func scanRecordWithTag(row pgx.Row) (domain.VersionedResource, error) {
	var (
		record    domain.VersionedResource
		labelsRaw []byte
		objectRaw []byte
		tag       *string
	)
	if err := row.Scan(
		&record.Project, &record.Name, &record.Uid, &record.State,
		&labelsRaw, &objectRaw, &record.CreatedAt, &record.UpdatedAt, &tag,
	); err != nil {
		return domain.VersionedResource{}, err
	}

	if err := json.Unmarshal(labelsRaw, &record.Labels); err != nil {
		return domain.VersionedResource{}, errors.Wrap(err, "unmarshalling resource labels")
	}
	if err := json.Unmarshal(objectRaw, &record.Object); err != nil {
		return domain.VersionedResource{}, errors.Wrap(err, "unmarshalling resource object")
	}
	if tag != nil {
		record.Tag = *tag
	}
	return record, nil
}

// stateOf pulls status.state out of the stored object.
func stateOf(object domain.Tree) string {
	status, ok := object["status"].(map[string]any)
	if !ok {
		if tree, ok := object["status"].(domain.Tree); ok {
			status = tree
		} else {
			return ""
		}
	}
	state, _ := status["state"].(string)
	return state
}

// labelsOf pulls metadata.labels out of the stored object, stringifying
// non-string values so the labels column stays queryable with ->>.
func labelsOf(object domain.Tree) map[string]string {
	metadata, ok := object["metadata"].(map[string]any)
	if !ok {
		if tree, ok := object["metadata"].(domain.Tree); ok {
			metadata = tree
		} else {
			return map[string]string{}
		}
	}
	rawLabels, ok := metadata["labels"].(map[string]any)
	if !ok {
		return map[string]string{}
	}

	labels := map[string]string{}
	for key, value := range rawLabels {
		if s, ok := value.(string); ok {
			labels[key] = s
			continue
		}
		labels[key] = fmt.Sprint(value)
	}
	return labels
}
