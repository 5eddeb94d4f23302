package health

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/hotel-operations/internal/repository"
)

func testSupervisor() *Supervisor {
    return NewSupervisor(nil, time.Millisecond, time.Minute)
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
    s := testSupervisor()
    calls := 0
    err := s.Do(context.Background(), "op", func(context.Context) error {
        calls++
        return nil
    })
    require.NoError(t, err)
    assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
    s := testSupervisor()
    calls := 0
    err := s.Do(context.Background(), "op", func(context.Context) error {
        calls++
        if calls < 3 {
            return &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
        }
        return nil
    })
    require.NoError(t, err)
    assert.Equal(t, 3, calls)
}

func TestDoStopsAfterThreeAttempts(t *testing.T) {
    s := testSupervisor()
    calls := 0
    transient := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}
    err := s.Do(context.Background(), "flaky-op", func(context.Context) error {
        calls++
        return transient
    })
    require.Error(t, err)
    assert.Equal(t, 3, calls)
    assert.ErrorIs(t, err, transient)
    assert.Contains(t, err.Error(), "retries exhausted")
    assert.Contains(t, err.Error(), "flaky-op")
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
    s := testSupervisor()
    calls := 0
    err := s.Do(context.Background(), "op", func(context.Context) error {
        calls++
        return repository.ErrNoAvailability
    })
    assert.ErrorIs(t, err, repository.ErrNoAvailability)
    assert.Equal(t, 1, calls)
}

func TestDoDoesNotRetryCancellation(t *testing.T) {
    s := testSupervisor()
    calls := 0
    err := s.Do(context.Background(), "op", func(context.Context) error {
        calls++
        return context.Canceled
    })
    assert.ErrorIs(t, err, context.Canceled)
    assert.Equal(t, 1, calls)
}

func TestDoStopsWaitingWhenContextEnds(t *testing.T) {
    s := NewSupervisor(nil, time.Minute, time.Minute) // long backoff
    ctx, cancel := context.WithCancel(context.Background())
    calls := 0
    done := make(chan error, 1)
    go func() {
        done <- s.Do(ctx, "op", func(context.Context) error {
            calls++
            return &mysql.MySQLError{Number: 1213}
        })
    }()
    time.Sleep(20 * time.Millisecond)
    cancel()
    select {
    case err := <-done:
        assert.ErrorIs(t, err, context.Canceled)
        assert.Equal(t, 1, calls)
    case <-time.After(time.Second):
        t.Fatal("Do did not return after context cancellation")
    }
}

func TestDoRetryErrorUnknown(t *testing.T) {
    s := testSupervisor()
    err := s.Do(context.Background(), "op", func(context.Context) error {
        return errors.New("some app error")
    })
    require.Error(t, err)
    assert.NotContains(t, err.Error(), "retries exhausted")
}
