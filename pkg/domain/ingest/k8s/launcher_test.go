package k8s

import (
	"context"
	"strings"
	"testing"
	"time"

	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/bcrant/mlrun/pkg/domain/ingest"
)

func fakeRunSpec() ingest.RunSpec {
	return ingest.RunSpec{
		RunName:       "ticks-ingest",
		RunUid:        "0123456789abcdef0123456789abcdef",
		Project:       "proj-1",
		FeatureSet:    "ticks",
		FeatureSetUid: "fedcba9876543210fedcba9876543210",
		Image:         "mlrun/mlrun:1.6.0",
		Source:        ingest.Source{Kind: "csv", Path: "s3://bucket/in.csv"},
		Targets: []ingest.Target{
			{Kind: "parquet", Name: "parquet", Path: "v3io://projects/proj-1/fs/ticks"},
		},
		Username:  "alice",
		AccessKey: "key-1",
	}
}

func TestBuildJob(t *testing.T) {
	job, err := buildJob(fakeRunSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(job.Name, "ticks-ingest-") {
		t.Errorf("unexpected job name: %s", job.Name)
	}
	if job.Labels["app.mlrun/run-uid"] != "0123456789abcdef0123456789abcdef" {
		t.Errorf("unexpected labels: %v", job.Labels)
	}

	containers := job.Spec.Template.Spec.Containers
	if len(containers) != 1 || containers[0].Image != "mlrun/mlrun:1.6.0" {
		t.Fatalf("unexpected containers: %+v", containers)
	}

	env := map[string]string{}
	for _, v := range containers[0].Env {
		env[v.Name] = v.Value
	}
	for name, value := range map[string]string{
		"MLRUN_PROJECT":     "proj-1",
		"MLRUN_FEATURE_SET": "ticks",
		"V3IO_USERNAME":     "alice",
		"V3IO_ACCESS_KEY":   "key-1",
	} {
		if env[name] != value {
			t.Errorf("env %s: expected %q, got %q", name, value, env[name])
		}
	}
}

func TestLauncher_Launch(t *testing.T) {
	finished := func(conditionType kubebatch.JobConditionType, message string) func(t *testing.T) *Launcher {
		return func(t *testing.T) *Launcher {
			client := k8sfake.NewSimpleClientset()
			client.PrependReactor("get", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
				return true, &kubebatch.Job{
					Status: kubebatch.JobStatus{
						Conditions: []kubebatch.JobCondition{
							{Type: conditionType, Status: kubecore.ConditionTrue, Message: message},
						},
					},
				}, nil
			})

			launcher := New(client, "mlrun")
			launcher.interval = time.Millisecond
			return launcher
		}
	}

	t.Run("it returns once the job completes", func(t *testing.T) {
		launcher := finished(kubebatch.JobComplete, "")(t)
		if err := launcher.Launch(context.Background(), fakeRunSpec()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it fails when the job fails", func(t *testing.T) {
		launcher := finished(kubebatch.JobFailed, "fake inference failure")(t)
		err := launcher.Launch(context.Background(), fakeRunSpec())
		if err == nil || !strings.Contains(err.Error(), "fake inference failure") {
			t.Errorf("expected the job failure, got: %v", err)
		}
	})

	t.Run("it stops when the context expires", func(t *testing.T) {
		client := k8sfake.NewSimpleClientset()
		launcher := New(client, "mlrun")
		launcher.interval = time.Millisecond

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := launcher.Launch(ctx, fakeRunSpec())
		if err == nil || ctx.Err() == nil {
			t.Errorf("expected a deadline error, got: %v", err)
		}
	})
}
