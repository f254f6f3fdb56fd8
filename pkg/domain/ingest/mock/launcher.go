package mock

import (
	"context"
	"errors"

	"github.com/bcrant/mlrun/pkg/domain/ingest"
)

// Launcher mocks ingest.Launcher.
type Launcher struct {
	Impl struct {
		Launch func(ctx context.Context, spec ingest.RunSpec) error
	}
	Calls struct {
		Launch []ingest.RunSpec
	}
}

func NewLauncher() *Launcher {
	return &Launcher{}
}

var _ ingest.Launcher = &Launcher{}

func (m *Launcher) Launch(ctx context.Context, spec ingest.RunSpec) error {
	m.Calls.Launch = append(m.Calls.Launch, spec)
	if m.Impl.Launch != nil {
		return m.Impl.Launch(ctx, spec)
	}
	panic(errors.New("it should not be called"))
}
