package mock

import (
	"context"
	"errors"

	kdb "github.com/bcrant/mlrun/pkg/domain/task/db"
)

type CallLog[T any] []T

// TaskTable mocks db.Interface.
type TaskTable struct {
	Impl struct {
		Upsert   func(context.Context, kdb.Record) error
		Get      func(context.Context, string, string) (kdb.Record, error)
		SetState func(context.Context, string, string, kdb.State, string) error
		List     func(context.Context, string) ([]kdb.Record, error)
	}
	Calls struct {
		Upsert CallLog[kdb.Record]
		Get    CallLog[struct {
			Project string
			Name    string
		}]
		SetState CallLog[struct {
			Project string
			Name    string
			State   kdb.State
			Reason  string
		}]
		List CallLog[string]
	}
}

var _ kdb.Interface = &TaskTable{}

func NewTaskTable() *TaskTable {
	return &TaskTable{}
}

func (m *TaskTable) Upsert(ctx context.Context, record kdb.Record) error {
	m.Calls.Upsert = append(m.Calls.Upsert, record)
	if m.Impl.Upsert != nil {
		return m.Impl.Upsert(ctx, record)
	}
	panic(errors.New("it should not be called"))
}

func (m *TaskTable) Get(ctx context.Context, project string, name string) (kdb.Record, error) {
	m.Calls.Get = append(m.Calls.Get, struct {
		Project string
		Name    string
	}{Project: project, Name: name})
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, project, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *TaskTable) SetState(
	ctx context.Context, project string, name string, state kdb.State, reason string,
) error {
	m.Calls.SetState = append(m.Calls.SetState, struct {
		Project string
		Name    string
		State   kdb.State
		Reason  string
	}{Project: project, Name: name, State: state, Reason: reason})
	if m.Impl.SetState != nil {
		return m.Impl.SetState(ctx, project, name, state, reason)
	}
	panic(errors.New("it should not be called"))
}

func (m *TaskTable) List(ctx context.Context, project string) ([]kdb.Record, error) {
	m.Calls.List = append(m.Calls.List, project)
	if m.Impl.List != nil {
		return m.Impl.List(ctx, project)
	}
	panic(errors.New("it should not be called"))
}
