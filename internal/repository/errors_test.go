package repository

import (
    "context"
    "database/sql/driver"
    "errors"
    "fmt"
    "testing"

    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
    tests := []struct {
        name string
        err  error
        want bool
    }{
        {"nil", nil, false},
        {"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
        {"lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, true},
        {"too many connections", &mysql.MySQLError{Number: 1040, Message: "Too many connections"}, true},
        {"server gone away", &mysql.MySQLError{Number: 2006, Message: "server has gone away"}, true},
        {"duplicate key is permanent", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
        {"syntax error is permanent", &mysql.MySQLError{Number: 1064, Message: "syntax error"}, false},
        {"bad connection", driver.ErrBadConn, true},
        {"invalid connection", mysql.ErrInvalidConn, true},
        {"deadline exceeded", context.DeadlineExceeded, true},
        {"cancellation is not retried", context.Canceled, false},
        {"wrapped transient stays transient", fmt.Errorf("query: %w", &mysql.MySQLError{Number: 1213}), true},
        {"domain sentinel", ErrNoAvailability, false},
        {"not found", ErrNotFound, false},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            assert.Equal(t, tt.want, IsTransient(tt.err))
        })
    }
}

func TestIsDuplicate(t *testing.T) {
    assert.True(t, IsDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
    assert.True(t, IsDuplicate(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
    assert.False(t, IsDuplicate(&mysql.MySQLError{Number: 1213}))
    assert.False(t, IsDuplicate(errors.New("duplicate")))
    assert.False(t, IsDuplicate(nil))
}
