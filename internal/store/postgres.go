package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" driver used below
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/pkg/model"
)

// uniqueViolation is the Postgres error code for a uniqueness-constraint conflict.
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const uniqueViolation = "23505"

const dsnTemplate = "postgres://%s:%s@%s:%s/%s?application_name=wscli&sslmode=%s"

// Postgres implements Store against a Postgres database reached through sqlx over
// the pgx stdlib driver, grounded on teacher's internal/db/postgres.go connection
// handling (same driver pairing, same retry-connect loop).
type Postgres struct {
	db *sqlx.DB
}

// Connect opens a pooled connection to Postgres, retrying up to 15 times on a fixed
// 2-second interval the same way teacher's db.ConnectPostgres does, since the store starts before the database is
// guaranteed to be reachable in a freshly created environment.
func Connect(ctx context.Context, cfg config.DBConfig) (*Postgres, error) {
	dsn := fmt.Sprintf(dsnTemplate, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	var lastErr error
	for attempt := 0; attempt < 15; attempt++ {
		db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxConnections)
			db.SetConnMaxIdleTime(time.Duration(cfg.IdleTimeoutMs) * time.Millisecond)
			return &Postgres{db: db}, nil
		}
		lastErr = err
		log.WithError(err).Warnf("failed to connect to postgres, retrying (%d/15)", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, errors.Wrap(lastErr, "could not connect to database after 15 attempts")
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close implements Store.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// InsertSession implements Store.
func (p *Postgres) InsertSession(ctx context.Context, row model.Session) error {
	const q = `
		INSERT INTO sessions (session_id, owner_id, job_name, pod_name, pod_ip, created_at, expires_at)
		VALUES (:session_id, :owner_id, :job_name, :pod_name, :pod_ip, :created_at, :expires_at)`
	_, err := p.db.NamedExecContext(ctx, q, row)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return errors.Wrap(err, "error inserting session")
	}
	return nil
}

// UpdateSessionPod implements Store. The WHERE clause is a conditional update keyed
// on sessionId, per spec section 4.1's pod-discovery algorithm.
func (p *Postgres) UpdateSessionPod(ctx context.Context, sessionID, podIP, podName string) error {
	const q = `UPDATE sessions SET pod_ip = $1, pod_name = $2 WHERE session_id = $3 AND expires_at > now()`
	res, err := p.db.ExecContext(ctx, q, podIP, podName, sessionID)
	if err != nil {
		return errors.Wrap(err, "error updating session pod")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error checking rows affected updating session pod")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession implements Store. A session past its expiry is treated as absent per
// spec section 3's invariant, enforced here rather than relying solely on the
// opportunistic cleanup trigger.
func (p *Postgres) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	const q = `
		SELECT session_id, owner_id, job_name, pod_name, pod_ip, created_at, expires_at
		FROM sessions WHERE session_id = $1 AND expires_at > now()`
	var row model.Session
	err := p.db.GetContext(ctx, &row, q, sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "error fetching session")
	default:
		return &row, nil
	}
}

// InsertTokenID implements Store.
func (p *Postgres) InsertTokenID(ctx context.Context, tokenID, sessionID string, expiresAt time.Time) error {
	const q = `INSERT INTO token_ids (token_id, session_id, expires_at) VALUES ($1, $2, $3)`
	_, err := p.db.ExecContext(ctx, q, tokenID, sessionID, expiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return errors.Wrap(err, "error inserting token id")
	}
	return nil
}

// ConsumeTokenID implements Store. This single statement is the correctness-critical
// concurrency point of spec section 9: Postgres evaluates DELETE...WHERE and reports
// rows-affected atomically, so concurrent calls for the same tokenId can linearize
// to at most one "true" -- the same "one statement, check rows affected" idiom
// teacher's db.namedExecOne uses for its own single-row mutations.
func (p *Postgres) ConsumeTokenID(ctx context.Context, tokenID string) (bool, error) {
	const q = `DELETE FROM token_ids WHERE token_id = $1`
	res, err := p.db.ExecContext(ctx, q, tokenID)
	if err != nil {
		return false, errors.Wrap(err, "error consuming token id")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "error checking rows affected consuming token id")
	}
	return n == 1, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
