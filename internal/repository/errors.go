// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the realtime router to distinguish between different
// failure scenarios. For example, ErrForbidden indicates that the
// current user is not authorized to perform an operation on a resource
// owned by someone else, while ErrNoAvailability signals that no room
// satisfies a reservation request. IsTransient classifies storage
// errors for the retry supervisor: connection-level failures are worth
// retrying, constraint violations and not-found conditions are not.
package repository

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a referenced row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as cancelling a booking that has already
// checked out. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrNoAvailability is returned by the room allocator when no room of
// the requested type is free for the requested dates. The message is
// user-facing and must stay human readable.
var ErrNoAvailability = errors.New("no rooms available for selected dates")

// MySQL server error numbers that indicate a transient condition.
// 1040 too many connections, 1205 lock wait timeout, 1213 deadlock,
// 2002/2003 cannot connect, 2006 server gone away, 2013 lost connection.
var transientMySQLErrors = map[uint16]bool{
	1040: true,
	1205: true,
	1213: true,
	2002: true,
	2003: true,
	2006: true,
	2013: true,
}

// IsTransient reports whether err is a storage error that may succeed
// on retry. Context deadline overruns on individual DB calls are
// treated as transient per the platform's timeout policy; context
// cancellation is not, because the caller has gone away.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return transientMySQLErrors[myErr.Number]
	}
	// The driver reports broken sockets with its own sentinel.
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	return false
}

// IsDuplicate reports whether err is a MySQL unique-constraint
// violation (error 1062).
func IsDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
