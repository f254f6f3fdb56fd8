package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/bcrant/mlrun/pkg/domain/ingest"
)

// Launcher runs materialization as a batch/v1 Job in the cluster.
type Launcher struct {
	client    k8s.Interface
	namespace string

	// polling interval while waiting for the job to finish.
	interval time.Duration
}

var _ ingest.Launcher = &Launcher{}

func New(client k8s.Interface, namespace string) *Launcher {
	return &Launcher{client: client, namespace: namespace, interval: 5 * time.Second}
}

// Launch creates the job and blocks until it completes or ctx expires.
// The created job is kept after completion; the task record points at it.
func (l *Launcher) Launch(ctx context.Context, spec ingest.RunSpec) error {
	job, err := buildJob(spec)
	if err != nil {
		return err
	}

	created, err := l.client.BatchV1().Jobs(l.namespace).Create(
		ctx, job, kubeapimeta.CreateOptions{},
	)
	if err != nil {
		return errors.Wrap(err, "creating ingestion job")
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		found, err := l.client.BatchV1().Jobs(l.namespace).Get(
			ctx, created.Name, kubeapimeta.GetOptions{},
		)
		if err != nil {
			return errors.Wrap(err, "polling ingestion job")
		}

		for _, condition := range found.Status.Conditions {
			if condition.Status != kubecore.ConditionTrue {
				continue
			}
			switch condition.Type {
			case kubebatch.JobComplete:
				return nil
			case kubebatch.JobFailed:
				return errors.Errorf(
					"ingestion job %s failed: %s", created.Name, condition.Message,
				)
			}
		}
	}
}

func buildJob(spec ingest.RunSpec) (*kubebatch.Job, error) {
	sourceRaw, err := json.Marshal(map[string]string{
		"kind": spec.Source.Kind, "name": spec.Source.Name,
		"path": spec.Source.Path, "schedule": spec.Source.Schedule,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling source")
	}
	targetsRaw, err := json.Marshal(spec.Targets)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling targets")
	}

	env := []kubecore.EnvVar{
		{Name: "MLRUN_PROJECT", Value: spec.Project},
		{Name: "MLRUN_FEATURE_SET", Value: spec.FeatureSet},
		{Name: "MLRUN_FEATURE_SET_UID", Value: spec.FeatureSetUid},
		{Name: "MLRUN_RUN_UID", Value: spec.RunUid},
		{Name: "MLRUN_INGEST_SOURCE", Value: string(sourceRaw)},
		{Name: "MLRUN_INGEST_TARGETS", Value: string(targetsRaw)},
		{Name: "MLRUN_INFER_OPTIONS", Value: fmt.Sprintf("%d", spec.InferOptions)},
	}
	if spec.Username != "" {
		env = append(env, kubecore.EnvVar{Name: "V3IO_USERNAME", Value: spec.Username})
	}
	if spec.AccessKey != "" {
		env = append(env, kubecore.EnvVar{Name: "V3IO_ACCESS_KEY", Value: spec.AccessKey})
	}

	backoffLimit := int32(0)
	return &kubebatch.Job{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name: fmt.Sprintf("%s-%s", spec.RunName, spec.RunUid[:8]),
			Labels: map[string]string{
				"app.mlrun/run":         spec.RunName,
				"app.mlrun/run-uid":     spec.RunUid,
				"app.mlrun/project":     spec.Project,
				"app.mlrun/feature-set": spec.FeatureSet,
			},
		},
		Spec: kubebatch.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{
					Labels: map[string]string{"app.mlrun/run-uid": spec.RunUid},
				},
				Spec: kubecore.PodSpec{
					RestartPolicy: kubecore.RestartPolicyNever,
					Containers: []kubecore.Container{
						{
							Name:  "ingest",
							Image: spec.Image,
							Args:  []string{"ingest"},
							Env:   env,
						},
					},
				},
			},
		},
	}, nil
}
