// Package store implements the shared store interface of spec section 4.4, backed
// by Postgres. Both the Controller and the Gateway depend only on the Store
// interface, never on the concrete Postgres type, the way teacher's resource
// managers are consumed through narrow interfaces so tests can substitute fakes.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/arakoodev/k8s-cli-agents/pkg/model"
)

// ErrNotFound is returned by GetSession when a session is absent or expired, the
// store-layer analogue of teacher's db.ErrNotFound sentinel.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by InsertSession/InsertTokenID on a primary-key conflict.
var ErrDuplicate = errors.New("duplicate key")

// Store is the shared store interface consumed by the Controller and the Gateway,
// per spec section 4.4. ConsumeTokenID must be linearizable with respect to itself:
// concurrent calls for the same tokenId satisfy at most one "true" return.
type Store interface {
	InsertSession(ctx context.Context, row model.Session) error
	UpdateSessionPod(ctx context.Context, sessionID, podIP, podName string) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	InsertTokenID(ctx context.Context, tokenID, sessionID string, expiresAt time.Time) error
	ConsumeTokenID(ctx context.Context, tokenID string) (bool, error)

	// Ping verifies the store is reachable, used by /readyz.
	Ping(ctx context.Context) error
	// Close releases the underlying connection pool.
	Close() error
}
