package mock

import (
	"context"
	"errors"

	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
)

type CallLog[T any] []T

type Verifier struct {
	Impl struct {
		CheckResourcePermission func(context.Context, domain.ResourceKind, auth.Coordinate, auth.Action, auth.AuthInfo) error
		CheckProjectPermission  func(context.Context, string, auth.Action, auth.AuthInfo) error
		QueryPermissions        func(context.Context, domain.ResourceKind, []auth.Coordinate, auth.Action, auth.AuthInfo) (map[auth.Coordinate]bool, error)
	}
	Calls struct {
		CheckResourcePermission CallLog[struct {
			Kind   domain.ResourceKind
			Coord  auth.Coordinate
			Action auth.Action
			Info   auth.AuthInfo
		}]
		CheckProjectPermission CallLog[struct {
			Project string
			Action  auth.Action
			Info    auth.AuthInfo
		}]
		QueryPermissions CallLog[struct {
			Kind   domain.ResourceKind
			Coords []auth.Coordinate
			Action auth.Action
			Info   auth.AuthInfo
		}]
	}
}

func NewVerifier() *Verifier {
	return &Verifier{}
}

var _ auth.Verifier = &Verifier{}

func (v *Verifier) CheckResourcePermission(
	ctx context.Context, kind domain.ResourceKind, coord auth.Coordinate,
	action auth.Action, info auth.AuthInfo,
) error {
	v.Calls.CheckResourcePermission = append(v.Calls.CheckResourcePermission, struct {
		Kind   domain.ResourceKind
		Coord  auth.Coordinate
		Action auth.Action
		Info   auth.AuthInfo
	}{Kind: kind, Coord: coord, Action: action, Info: info})
	if v.Impl.CheckResourcePermission != nil {
		return v.Impl.CheckResourcePermission(ctx, kind, coord, action, info)
	}
	panic(errors.New("it should not be called"))
}

func (v *Verifier) CheckProjectPermission(
	ctx context.Context, project string, action auth.Action, info auth.AuthInfo,
) error {
	v.Calls.CheckProjectPermission = append(v.Calls.CheckProjectPermission, struct {
		Project string
		Action  auth.Action
		Info    auth.AuthInfo
	}{Project: project, Action: action, Info: info})
	if v.Impl.CheckProjectPermission != nil {
		return v.Impl.CheckProjectPermission(ctx, project, action, info)
	}
	panic(errors.New("it should not be called"))
}

func (v *Verifier) QueryPermissions(
	ctx context.Context, kind domain.ResourceKind, coords []auth.Coordinate,
	action auth.Action, info auth.AuthInfo,
) (map[auth.Coordinate]bool, error) {
	v.Calls.QueryPermissions = append(v.Calls.QueryPermissions, struct {
		Kind   domain.ResourceKind
		Coords []auth.Coordinate
		Action auth.Action
		Info   auth.AuthInfo
	}{Kind: kind, Coords: coords, Action: action, Info: info})
	if v.Impl.QueryPermissions != nil {
		return v.Impl.QueryPermissions(ctx, kind, coords, action, info)
	}
	panic(errors.New("it should not be called"))
}
