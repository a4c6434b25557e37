package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/cache"
	watchtools "k8s.io/client-go/tools/watch"
)

const (
	pollIntervalMin = 500 * time.Millisecond
	pollIntervalMax = 1500 * time.Millisecond
)

// podIPTracker accumulates {podName -> podIP} as pods are observed, and resolves the
// deterministic winner once at least one pod has reported an IP: the
// lexicographically first podName, per spec section 4.1's tie-break rule.
type podIPTracker struct {
	byName map[string]string
}

func newPodIPTracker() *podIPTracker {
	return &podIPTracker{byName: map[string]string{}}
}

func (t *podIPTracker) observe(pod *corev1.Pod) {
	if pod.Status.PodIP != "" {
		t.byName[pod.Name] = pod.Status.PodIP
	}
}

func (t *podIPTracker) winner() (podIP, podName string, ok bool) {
	if len(t.byName) == 0 {
		return "", "", false
	}
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	podName = names[0]
	return t.byName[podName], podName, true
}

// watchForPodIP lists and then watches pods labeled for sessionID, grounded on
// teacher's internal/rm/kubernetesrm/informer.go (list, then a client-go
// RetryWatcher seeded from the list's resource version).
func (k *Kubernetes) watchForPodIP(ctx context.Context, namespace, sessionID string) (string, string, error) {
	selector := fmt.Sprintf("%s=%s", SessionLabel, sessionID)
	pods := k.clientset.CoreV1().Pods(namespace)

	initial, err := pods.List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", "", err
	}

	tracker := newPodIPTracker()
	for i := range initial.Items {
		tracker.observe(&initial.Items[i])
	}
	if podIP, podName, ok := tracker.winner(); ok {
		return podIP, podName, nil
	}

	rw, err := watchtools.NewRetryWatcher(initial.ResourceVersion, &cache.ListWatch{
		WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
			options.LabelSelector = selector
			return pods.Watch(ctx, options)
		},
	})
	if err != nil {
		return "", "", err
	}
	defer rw.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case event, open := <-rw.ResultChan():
			if !open {
				return "", "", fmt.Errorf("pod watch closed before a pod IP was observed")
			}
			if event.Type == watch.Error {
				continue
			}
			pod, ok := event.Object.(*corev1.Pod)
			if !ok {
				continue
			}
			tracker.observe(pod)
			if podIP, podName, ok := tracker.winner(); ok {
				return podIP, podName, nil
			}
		}
	}
}

// pollForPodIP lists pods labeled for sessionID on a jittered interval within
// [pollIntervalMin, pollIntervalMax], per spec section 4.1's bounded-polling option.
func (k *Kubernetes) pollForPodIP(ctx context.Context, namespace, sessionID string) (string, string, error) {
	selector := fmt.Sprintf("%s=%s", SessionLabel, sessionID)
	pods := k.clientset.CoreV1().Pods(namespace)

	for {
		list, err := pods.List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return "", "", err
		}
		tracker := newPodIPTracker()
		for i := range list.Items {
			tracker.observe(&list.Items[i])
		}
		if podIP, podName, ok := tracker.winner(); ok {
			return podIP, podName, nil
		}

		interval := pollIntervalMin + time.Duration(rand.Int63n(int64(pollIntervalMax-pollIntervalMin)))
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(interval):
		}
	}
}
