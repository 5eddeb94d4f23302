// Package health wraps the realtime path's database operations with
// bounded retries and runs a periodic liveness probe against the
// database.  The realtime router must not crash a long-lived connection
// on a transient storage error, so every persistence call it makes goes
// through Supervisor.Do.
package health

import (
    "context"
    "database/sql"
    "fmt"
    "log"
    "sync/atomic"
    "time"

    "github.com/iliyamo/hotel-operations/internal/repository"
)

// maxAttempts bounds the retry loop: one initial attempt plus two
// retries keeps worst-case latency on the realtime path predictable.
const maxAttempts = 3

// Supervisor retries transient storage failures with linearly growing
// backoff and exposes the result of its independent liveness probe.
type Supervisor struct {
    db        *sql.DB
    baseDelay time.Duration
    interval  time.Duration
    healthy   atomic.Bool
}

// NewSupervisor constructs a Supervisor.  baseDelay is the unit of the
// linear backoff (attempt n waits n×baseDelay); interval is the cadence
// of the liveness probe.
func NewSupervisor(db *sql.DB, baseDelay, interval time.Duration) *Supervisor {
    if baseDelay <= 0 {
        baseDelay = 200 * time.Millisecond
    }
    if interval <= 0 {
        interval = 30 * time.Second
    }
    s := &Supervisor{db: db, baseDelay: baseDelay, interval: interval}
    s.healthy.Store(true)
    return s
}

// Do runs op, retrying up to two more times when the returned error is
// classified as transient.  Backoff grows linearly: 1×, 2× the base
// delay between attempts.  Non-transient errors (constraint violations,
// not-found, policy failures) are returned immediately.  After the
// final attempt the last transient error is returned to the caller,
// escalated as fatal for this event.
func (s *Supervisor) Do(ctx context.Context, name string, op func(context.Context) error) error {
    var err error
    for attempt := 1; attempt <= maxAttempts; attempt++ {
        err = op(ctx)
        if err == nil {
            return nil
        }
        if !repository.IsTransient(err) {
            return err
        }
        if attempt == maxAttempts {
            break
        }
        delay := time.Duration(attempt) * s.baseDelay
        log.Printf("retry-supervisor: %s failed (attempt %d/%d): %v; retrying in %s",
            name, attempt, maxAttempts, err, delay)
        select {
        case <-time.After(delay):
        case <-ctx.Done():
            return ctx.Err()
        }
    }
    return fmt.Errorf("%s: retries exhausted: %w", name, err)
}

// Run probes the database every interval until ctx is cancelled.  A
// failed probe only flips the Healthy flag and logs; it never alters
// router behavior.  Intended to be launched as a goroutine from main.
func (s *Supervisor) Run(ctx context.Context) {
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            s.probe(ctx)
        }
    }
}

func (s *Supervisor) probe(ctx context.Context) {
    pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := s.db.PingContext(pctx); err != nil {
        if s.healthy.Swap(false) {
            log.Printf("retry-supervisor: database probe failed: %v", err)
        }
        return
    }
    if !s.healthy.Swap(true) {
        log.Printf("retry-supervisor: database probe recovered")
    }
}

// Healthy reports the result of the most recent probe.
func (s *Supervisor) Healthy() bool { return s.healthy.Load() }
