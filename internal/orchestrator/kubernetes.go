package orchestrator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/pkg/errors"
)

// Kubernetes implements Client against a real cluster via client-go, grounded on
// teacher's internal/rm/kubernetesrm package (job submission and the
// list-then-watch informer pattern for pod discovery).
type Kubernetes struct {
	clientset kubernetes.Interface
}

// NewKubernetes wraps an already-configured client-go clientset.
func NewKubernetes(clientset kubernetes.Interface) *Kubernetes {
	return &Kubernetes{clientset: clientset}
}

// SubmitJob implements Client. The submitted job's pod template carries
// SessionLabel so DiscoverPodIP's watch/poll can find it, per spec section 4.1.
func (k *Kubernetes) SubmitJob(ctx context.Context, spec JobSpec) error {
	ttl := int32(spec.TTLSecondsAfterFinished)
	deadline := int64(spec.ActiveDeadlineSeconds)
	backoffLimit := int32(0)

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.JobName,
			Namespace: spec.Namespace,
			Labels:    map[string]string{SessionLabel: spec.SessionID},
		},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: &ttl,
			ActiveDeadlineSeconds:   &deadline,
			BackoffLimit:            &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{SessionLabel: spec.SessionID},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:  "wscli-runner",
							Image: spec.Image,
							Env: []corev1.EnvVar{
								{Name: "WSCLI_CODE_URL", Value: spec.CodeURL},
								{Name: "WSCLI_CODE_CHECKSUM", Value: spec.CodeChecksum},
								{Name: "WSCLI_COMMAND", Value: spec.Command},
								{Name: "WSCLI_PROMPT", Value: spec.Prompt},
							},
							Ports: []corev1.ContainerPort{{ContainerPort: 7681}},
						},
					},
				},
			},
		},
	}

	_, err := k.clientset.BatchV1().Jobs(spec.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return ErrDuplicateJob
	}
	if err != nil {
		return errors.Wrapf(err, "error creating job %s", spec.JobName)
	}
	return nil
}

// Ping implements Client by asking the API server for its version, the cheapest
// call that proves the cluster is reachable and the client is authenticated,
// without assuming any particular namespace or RBAC grant beyond discovery.
func (k *Kubernetes) Ping(ctx context.Context) error {
	_, err := k.clientset.Discovery().ServerVersion()
	if err != nil {
		return errors.Wrap(err, "error reaching kubernetes api server")
	}
	return nil
}

// DiscoverPodIP implements Client. It prefers a watch (informer), falling back to
// bounded jittered polling if establishing the watch fails, per spec section 4.1's
// "either a watch/subscription or bounded polling" contract.
func (k *Kubernetes) DiscoverPodIP(
	ctx context.Context, namespace, sessionID string, timeout time.Duration,
) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	podIP, podName, err := k.watchForPodIP(ctx, namespace, sessionID)
	if err == nil {
		return podIP, podName, nil
	}
	log.WithError(err).WithField("session_id", sessionID).
		Warn("pod watch unavailable, falling back to polling")

	return k.pollForPodIP(ctx, namespace, sessionID)
}
