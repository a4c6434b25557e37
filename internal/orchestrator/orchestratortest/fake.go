// Package orchestratortest provides an in-memory orchestrator.Client fake, the
// same shape as storetest.Fake, for Controller tests that must not talk to a
// real cluster.
package orchestratortest

import (
	"context"
	"sync"
	"time"

	"github.com/arakoodev/k8s-cli-agents/internal/orchestrator"
)

// Fake is an in-memory orchestrator.Client. PodIPs and PodNames can be
// pre-seeded per session so tests control what DiscoverPodIP returns and when.
type Fake struct {
	mu sync.Mutex

	jobs map[string]orchestrator.JobSpec

	// PodIPs/PodNames key by sessionID. DiscoverPodIP blocks until an entry
	// appears or ctx is done, polling on a short fixed interval -- tests set
	// these from a goroutine, or pre-seed them before calling SubmitJob.
	PodIPs   map[string]string
	PodNames map[string]string

	// SubmitErr, when set, is returned by SubmitJob instead of succeeding.
	SubmitErr error

	// DiscoverErr, when set, is returned by DiscoverPodIP instead of succeeding.
	DiscoverErr error

	// PingErr, when set, is returned by Ping instead of succeeding, to simulate
	// an unreachable orchestrator for /readyz tests.
	PingErr error
}

// New builds an empty Fake.
func New() *Fake {
	return &Fake{
		jobs:     map[string]orchestrator.JobSpec{},
		PodIPs:   map[string]string{},
		PodNames: map[string]string{},
	}
}

// SubmitJob implements orchestrator.Client.
func (f *Fake) SubmitJob(_ context.Context, spec orchestrator.JobSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return f.SubmitErr
	}
	if _, ok := f.jobs[spec.JobName]; ok {
		return orchestrator.ErrDuplicateJob
	}
	f.jobs[spec.JobName] = spec
	return nil
}

// Ping implements orchestrator.Client.
func (f *Fake) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

// SetPodIP records the IP a session's pod would report, for a later
// DiscoverPodIP call to pick up. Safe to call concurrently with DiscoverPodIP,
// to simulate a pod reporting its IP mid-discovery.
func (f *Fake) SetPodIP(sessionID, podName, podIP string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PodNames[sessionID] = podName
	f.PodIPs[sessionID] = podIP
}

// DiscoverPodIP implements orchestrator.Client by polling its own maps on a
// fixed short interval until a pod IP appears, timeout elapses, or ctx is
// done -- mirroring the real pollForPodIP shape without a cluster.
func (f *Fake) DiscoverPodIP(
	ctx context.Context, _ string, sessionID string, timeout time.Duration,
) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		f.mu.Lock()
		if f.DiscoverErr != nil {
			err := f.DiscoverErr
			f.mu.Unlock()
			return "", "", err
		}
		if ip, ok := f.PodIPs[sessionID]; ok {
			name := f.PodNames[sessionID]
			f.mu.Unlock()
			return ip, name, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Jobs returns a snapshot of every job submitted so far, keyed by job name.
func (f *Fake) Jobs() map[string]orchestrator.JobSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]orchestrator.JobSpec, len(f.jobs))
	for k, v := range f.jobs {
		cp[k] = v
	}
	return cp
}
