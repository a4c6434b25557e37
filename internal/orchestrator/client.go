// Package orchestrator submits workload jobs and discovers pod IPs against a
// container orchestrator, per spec section 4.1's "Pod-IP discovery" algorithm.
package orchestrator

import (
	"context"
	"errors"
	"time"
)

// SessionLabel is the pod label the Controller sets on every pod belonging to a
// session's job, and the selector the orchestrator watch/poll uses to observe it.
const SessionLabel = "wscli.io/session-id"

// ErrDuplicateJob is returned by SubmitJob when a job by that name already exists.
var ErrDuplicateJob = errors.New("orchestrator: job already exists")

// JobSpec describes the workload job the Controller submits for one session,
// carrying only what the boot-script black box (spec section 1) needs as env vars.
type JobSpec struct {
	JobName                  string
	SessionID                string
	Namespace                string
	Image                    string
	CodeURL                  string
	CodeChecksum             string
	Command                  string
	Prompt                   string
	TTLSecondsAfterFinished  int
	ActiveDeadlineSeconds    int
}

// Client is the orchestrator abstraction the Controller depends on, narrow enough
// that tests substitute a fake rather than talking to a real cluster -- the same
// shape as teacher's podInterface seam in internal/rm/kubernetesrm.
type Client interface {
	// SubmitJob creates the job described by spec. It must be safe to call exactly
	// once per session; a duplicate job name is an OrchestratorFailure.
	SubmitJob(ctx context.Context, spec JobSpec) error

	// DiscoverPodIP observes pods labeled for sessionID until the first one reports
	// a non-empty pod IP, or until timeout elapses. When multiple pods report an IP
	// concurrently, the lexicographically first pod name wins, so retries are
	// deterministic (spec section 4.1).
	DiscoverPodIP(ctx context.Context, namespace, sessionID string, timeout time.Duration) (podIP, podName string, err error)

	// Ping reports whether the orchestrator is reachable, used by /readyz alongside
	// the store's own Ping (spec section 9).
	Ping(ctx context.Context) error
}
