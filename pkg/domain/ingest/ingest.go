package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/bcrant/mlrun/pkg/domain"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	fsdb "github.com/bcrant/mlrun/pkg/domain/featurestore/db"
	taskdb "github.com/bcrant/mlrun/pkg/domain/task/db"
	"github.com/bcrant/mlrun/pkg/utils/slices"
)

// ErrNeedsCredentials rejects an ingestion touching the high-throughput
// store without the caller's data-plane identity.
var ErrNeedsCredentials = domain.NewInvalidArgument("needs access key and username in header")

// v3io is the reserved high-throughput storage scheme. Paths under it can
// only be written with the caller's own access key.
var v3ioSchemes = []string{"v3io://", "v3ios://"}

// Source describes where a materialization run reads from.
type Source struct {
	Kind     string
	Name     string
	Path     string
	Schedule string
}

// Target describes where a materialization run writes to.
type Target struct {
	Kind string
	Name string
	Path string
}

// Request is one ingestion order against a feature-set coordinate.
type Request struct {
	Project string
	Name    string
	Tag     string
	Uid     string

	Source       Source
	Targets      []Target
	InferOptions int
}

// Run is the handle of a launched materialization run.
type Run struct {
	Name    string
	Project string
	Uid     string
	State   string
}

// RunSpec is everything the launcher needs to start one run.
type RunSpec struct {
	RunName string
	RunUid  string

	Project       string
	FeatureSet    string
	FeatureSetUid string

	Image        string
	Source       Source
	Targets      []Target
	InferOptions int

	Username  string
	AccessKey string
}

// Launcher starts a materialization run and blocks until it finishes.
type Launcher interface {
	Launch(ctx context.Context, spec RunSpec) error
}

// Config tunes the dispatcher.
type Config struct {
	// materialization runtime image.
	Image string

	// synthesized when the feature set declares no targets. Paths may hold
	// {project} and {name} placeholders.
	DefaultTargets []Target

	// bound of concurrently running dispatches.
	Workers int

	// background-task timeout recorded with each run.
	TaskTimeout time.Duration
}

// Dispatcher resolves a feature set, gates on storage credentials, and
// launches the materialization run decoupled from the request lifetime.
type Dispatcher struct {
	featureSets fsdb.FeatureSetInterface
	tasks       taskdb.Interface
	verifier    auth.Verifier
	launcher    Launcher
	config      Config

	background *errgroup.Group
	newRunUid  func() string
}

// New returns a Dispatcher. Close waits for in-flight runs' bookkeeping.
func New(
	featureSets fsdb.FeatureSetInterface,
	tasks taskdb.Interface,
	verifier auth.Verifier,
	launcher Launcher,
	config Config,
) (*Dispatcher, error) {
	if config.Image == "" {
		return nil, domain.NewInvalidArgument("ingestion image is not configured")
	}
	if _, err := name.ParseReference(config.Image); err != nil {
		return nil, domain.NewInvalidArgument(
			"ingestion image is not a valid image reference: " + config.Image,
		)
	}

	workers := config.Workers
	if workers <= 0 {
		workers = 8
	}
	background := &errgroup.Group{}
	background.SetLimit(workers)

	return &Dispatcher{
		featureSets: featureSets,
		tasks:       tasks,
		verifier:    verifier,
		launcher:    launcher,
		config:      config,
		background:  background,
		newRunUid:   domain.NewUid,
	}, nil
}

// Close blocks until every launched run has reported its terminal state.
// It returns the first failure to record a run state, if any.
func (d *Dispatcher) Close() error {
	return d.background.Wait()
}

// Ingest runs the dispatch sequence and returns the post-enrichment feature
// set together with the launched run's handle.
//
// The run itself outlives the request: failures after this method returns
// are reported through the background-task record, not to the caller.
func (d *Dispatcher) Ingest(
	ctx context.Context, req Request, info auth.AuthInfo,
) (domain.VersionedResource, Run, error) {
	featureSet, err := d.featureSets.Get(ctx, req.Project, req.Name, req.Tag, req.Uid)
	if err != nil {
		return domain.VersionedResource{}, Run{}, err
	}

	if function := functionOf(featureSet.Spec()); function != (auth.Coordinate{}) {
		if err := d.verifier.CheckResourcePermission(
			ctx, domain.KindFunction, function, auth.ActionRead, info,
		); err != nil {
			return domain.VersionedResource{}, Run{}, err
		}
	}

	featureSet, targets, err := d.resolveTargets(ctx, req, featureSet)
	if err != nil {
		return domain.VersionedResource{}, Run{}, err
	}

	paths := append(
		slices.Map(targets, func(t Target) string {
			// a path-less target materializes at its kind's default path,
			// so that path joins the scheme check like an explicit one.
			if t.Path == "" {
				return d.defaultPathFor(t.Kind, req.Project, req.Name)
			}
			return t.Path
		}),
		req.Source.Path,
	)
	withV3io := false
	for _, path := range paths {
		for _, scheme := range v3ioSchemes {
			if strings.HasPrefix(path, scheme) {
				withV3io = true
			}
		}
	}
	if withV3io && (info.AccessKey == "" || info.Username == "") {
		return domain.VersionedResource{}, Run{}, ErrNeedsCredentials
	}

	if req.Source.Schedule != "" {
		if err := d.verifier.CheckResourcePermission(
			ctx, domain.KindSchedule,
			auth.Coordinate{Project: req.Project, Name: req.Name},
			auth.ActionCreate, info,
		); err != nil {
			return domain.VersionedResource{}, Run{}, err
		}
	}

	run := Run{
		Name:    fmt.Sprintf("%s-ingest", req.Name),
		Project: req.Project,
		Uid:     d.newRunUid(),
		State:   "running",
	}
	if err := d.tasks.Upsert(ctx, taskdb.Record{
		Project: req.Project,
		Name:    run.Name,
		State:   taskdb.StateRunning,
		Timeout: d.config.TaskTimeout,
	}); err != nil {
		return domain.VersionedResource{}, Run{}, err
	}

	spec := RunSpec{
		RunName:       run.Name,
		RunUid:        run.Uid,
		Project:       req.Project,
		FeatureSet:    req.Name,
		FeatureSetUid: featureSet.Uid,
		Image:         d.config.Image,
		Source:        req.Source,
		Targets:       targets,
		InferOptions:  req.InferOptions,
		Username:      info.Username,
	}
	if withV3io {
		spec.AccessKey = info.AccessKey
	}

	launchCtx := context.WithoutCancel(ctx)
	d.background.Go(func() error {
		runCtx := launchCtx
		if d.config.TaskTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, d.config.TaskTimeout)
			defer cancel()
		}

		if err := d.launcher.Launch(runCtx, spec); err != nil {
			return d.recordState(
				launchCtx, req.Project, run.Name, taskdb.StateFailed, err.Error(),
			)
		}
		return d.recordState(launchCtx, req.Project, run.Name, taskdb.StateSucceeded, "")
	})

	return featureSet, run, nil
}

// recordState writes a run's outcome to its background-task record. The
// record is the only channel post-dispatch failures reach callers through,
// so a write failure is logged right away and surfaced again by Close.
func (d *Dispatcher) recordState(
	ctx context.Context, project string, name string, state taskdb.State, message string,
) error {
	if err := d.tasks.SetState(ctx, project, name, state, message); err != nil {
		log.Errorf(
			"failed to record state %q of ingestion run %s/%s: %+v",
			state, project, name, err,
		)
		return err
	}
	return nil
}

// resolveTargets merges explicit request targets over the feature set's
// declared ones; when neither has any, defaults are synthesized and stored
// back so the response reflects the post-enrichment spec.
func (d *Dispatcher) resolveTargets(
	ctx context.Context, req Request, featureSet domain.VersionedResource,
) (domain.VersionedResource, []Target, error) {
	if len(req.Targets) != 0 {
		return featureSet, req.Targets, nil
	}

	if declared := targetsOf(featureSet.Spec()); len(declared) != 0 {
		return featureSet, declared, nil
	}

	defaults := slices.Map(d.config.DefaultTargets, func(t Target) Target {
		t.Path = expandPath(t.Path, req.Project, req.Name)
		if t.Name == "" {
			t.Name = t.Kind
		}
		return t
	})

	enriched := domain.MergePatch(featureSet.Object, domain.Tree{
		"spec": map[string]any{
			"targets": slices.Map(defaults, func(t Target) any {
				return map[string]any{"kind": t.Kind, "name": t.Name, "path": t.Path}
			}),
		},
	}, domain.PatchModeAdditive)

	featureSet.Object = enriched
	if _, err := d.featureSets.Store(
		ctx, req.Project, req.Name, featureSet, featureSet.Tag, featureSet.Uid, true,
	); err != nil {
		return domain.VersionedResource{}, nil, err
	}
	return featureSet, defaults, nil
}

// defaultPathFor resolves the configured default path of a target kind,
// with placeholders expanded. Unknown kinds resolve to an empty path.
func (d *Dispatcher) defaultPathFor(kind string, project string, name string) string {
	for _, t := range d.config.DefaultTargets {
		if t.Kind == kind {
			return expandPath(t.Path, project, name)
		}
	}
	return ""
}

func expandPath(path string, project string, name string) string {
	return strings.NewReplacer(
		"{project}", project, "{name}", name,
	).Replace(path)
}

// functionOf reads spec.function, shaped "project/name" or just "name".
func functionOf(spec domain.Tree) auth.Coordinate {
	reference, _ := spec["function"].(string)
	if reference == "" {
		return auth.Coordinate{}
	}
	reference = strings.TrimPrefix(reference, "db://")
	if project, fname, found := strings.Cut(reference, "/"); found {
		return auth.Coordinate{Project: project, Name: fname}
	}
	return auth.Coordinate{Name: reference}
}

func targetsOf(spec domain.Tree) []Target {
	rawList, ok := spec["targets"].([]any)
	if !ok {
		return nil
	}
	targets := []Target{}
	for _, raw := range rawList {
		element, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		target := Target{}
		target.Kind, _ = element["kind"].(string)
		target.Name, _ = element["name"].(string)
		target.Path, _ = element["path"].(string)
		targets = append(targets, target)
	}
	return targets
}
