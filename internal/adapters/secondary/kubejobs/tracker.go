package kubejobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"model-promoter/internal/config"
	"model-promoter/internal/core/domain"
	ports "model-promoter/internal/core/ports/output"
)

const (
	LabelExperiment      = "model-promoter/experiment"
	LabelParentRun       = "model-promoter/parent-run"
	AnnotationProperties = "model-promoter/properties"
	defaultTrainingNS    = "training"
)

// jobTracker treats batch/v1 Jobs labelled with an experiment as its runs.
type jobTracker struct {
	client    kubernetes.Interface
	namespace string
}

// NewJobTracker creates an ExperimentTracker over Kubernetes training Jobs.
func NewJobTracker(cfg *config.KubernetesConfig) (ports.ExperimentTracker, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create k8s client: %w", err)
	}
	return NewJobTrackerWithClient(client, cfg.Namespace), nil
}

func NewJobTrackerWithClient(client kubernetes.Interface, namespace string) ports.ExperimentTracker {
	if namespace == "" {
		namespace = defaultTrainingNS
	}
	return &jobTracker{client: client, namespace: namespace}
}

func (t *jobTracker) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	job, err := t.client.BatchV1().Jobs(t.namespace).Get(ctx, runID, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", runID, err)
	}
	return toRun(job), nil
}

func (t *jobTracker) ListRuns(ctx context.Context, filter ports.RunListFilter) ([]*domain.Run, error) {
	selector := labels.SelectorFromSet(labels.Set{LabelExperiment: filter.ExperimentName})
	list, err := t.client.BatchV1().Jobs(t.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]batchv1.Job, 0, len(list.Items))
	for _, job := range list.Items {
		if !filter.IncludeChildren && job.Labels[LabelParentRun] != "" {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		ti, tj := jobs[i].CreationTimestamp, jobs[j].CreationTimestamp
		if ti.Equal(&tj) {
			return jobs[i].Name > jobs[j].Name
		}
		return tj.Before(&ti)
	})

	if filter.Offset >= len(jobs) {
		return []*domain.Run{}, nil
	}
	end := len(jobs)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}

	runs := make([]*domain.Run, 0, end-filter.Offset)
	for i := filter.Offset; i < end; i++ {
		runs = append(runs, toRun(&jobs[i]))
	}
	return runs, nil
}

func toRun(job *batchv1.Job) *domain.Run {
	run := &domain.Run{
		ID:             job.Name,
		ExperimentName: job.Labels[LabelExperiment],
		ParentID:       job.Labels[LabelParentRun],
		Status:         jobStatus(job),
		CreatedAt:      job.CreationTimestamp.Time,
		Properties:     map[string]string{},
	}
	if raw := job.Annotations[AnnotationProperties]; raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &run.Properties); err != nil {
			log.WithError(err).WithField("job", job.Name).Debug("ignoring malformed run properties annotation")
			run.Properties = map[string]string{}
		}
	}
	return run
}

func jobStatus(job *batchv1.Job) domain.RunStatus {
	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			return domain.RunStatusCompleted
		case batchv1.JobFailed:
			return domain.RunStatusFailed
		}
	}
	if job.Spec.Suspend != nil && *job.Spec.Suspend {
		return domain.RunStatusCanceled
	}
	if job.Status.Active > 0 {
		return domain.RunStatusRunning
	}
	return domain.RunStatusQueued
}
