package auth

import (
	"context"

	"github.com/bcrant/mlrun/pkg/domain"
)

// Action is what an identity wants to do with a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionStore  Action = "store"
	ActionDelete Action = "delete"
)

// AuthInfo is the identity attached to one request.
//
// It is extracted from request headers and passed along to every verifier
// call. Never stored.
type AuthInfo struct {
	// resolved user name (x-remote-user header, or the bearer token's
	// username claim).
	Username string

	// data-plane access key (x-v3io-session header), required for runs
	// touching the high-throughput store.
	AccessKey string

	// raw bearer token, forwarded to the verifier as-is.
	Token string
}

// Coordinate addresses one resource towards the verifier.
type Coordinate struct {
	Project string
	Name    string
}

// Grantee is anything listable that can tell which (project, name) governs
// access to it.
type Grantee interface {
	ProjectAndName() (project string, name string)
}

// Verifier answers authorization questions for this service.
//
// Policy evaluation happens elsewhere; implementations only carry the
// question to the authority and translate the answer.
type Verifier interface {
	// CheckResourcePermission asks for action on a single resource.
	// A denial is returned as an error wrapping domain.ErrForbidden.
	CheckResourcePermission(
		ctx context.Context,
		kind domain.ResourceKind,
		coord Coordinate,
		action Action,
		info AuthInfo,
	) error

	// CheckProjectPermission asks for action on the project itself.
	// A denial is returned as an error wrapping domain.ErrForbidden.
	CheckProjectPermission(ctx context.Context, project string, action Action, info AuthInfo) error

	// QueryPermissions asks for action on many resources in one round-trip.
	// The result maps each queried coordinate to allow/deny. Missing entries
	// are to be read as deny.
	QueryPermissions(
		ctx context.Context,
		kind domain.ResourceKind,
		coords []Coordinate,
		action Action,
		info AuthInfo,
	) (map[Coordinate]bool, error)
}

// FilterByPermission returns the subset of items the identity may read,
// preserving the relative order of items.
//
// All coordinates are carried to the verifier in a single batched query.
// Denied items are silently dropped; only transport failures are errors.
func FilterByPermission[T Grantee](
	ctx context.Context,
	verifier Verifier,
	kind domain.ResourceKind,
	items []T,
	info AuthInfo,
) ([]T, error) {
	if len(items) == 0 {
		return []T{}, nil
	}

	coords := make([]Coordinate, len(items))
	for nth, item := range items {
		project, name := item.ProjectAndName()
		coords[nth] = Coordinate{Project: project, Name: name}
	}

	allowed, err := verifier.QueryPermissions(ctx, kind, coords, ActionRead, info)
	if err != nil {
		return nil, err
	}

	filtered := make([]T, 0, len(items))
	for nth, item := range items {
		if allowed[coords[nth]] {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}
