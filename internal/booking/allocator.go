// Package booking implements transactional room allocation.  All
// contention between concurrent reservation attempts is resolved by the
// database: the candidate-room query locks the selected row and the
// booking insert plus room status write commit atomically, so two
// racing callers can never be handed the same room for overlapping
// dates.  No application-level lock table exists, and none should be
// introduced.
package booking

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/repository"
)

// ValidationError reports malformed input.  No side effect has occurred
// when it is returned.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// PolicyError reports input that is well formed but disallowed by a
// business rule, such as a guest cancelling inside the 24h window.  The
// message is user-facing.
type PolicyError struct{ Msg string }

func (e *PolicyError) Error() string { return e.Msg }

// ErrInvalidState is returned when a booking's current status does not
// admit the requested transition.
var ErrInvalidState = errors.New("booking is not in a cancellable or updatable state")

// guestCancelNotice is the minimum lead time for guest-initiated
// cancellation.
const guestCancelNotice = 24 * time.Hour

// Allocator implements the booking API: Reserve, Cancel, UpdateStatus
// and ListActive.  It orchestrates repository Tx helpers inside single
// transactions and owns the cancellation policy.
type Allocator struct {
    db       *sql.DB
    rooms    *repository.RoomRepo
    bookings *repository.BookingRepo
    timeout  time.Duration
}

// NewAllocator constructs an Allocator.  All dependencies must be
// non-nil; timeout bounds each reservation transaction.
func NewAllocator(db *sql.DB, rooms *repository.RoomRepo, bookings *repository.BookingRepo, timeout time.Duration) *Allocator {
    if db == nil || rooms == nil || bookings == nil {
        panic("nil dependency passed to NewAllocator")
    }
    if timeout <= 0 {
        timeout = 5 * time.Second
    }
    return &Allocator{db: db, rooms: rooms, bookings: bookings, timeout: timeout}
}

// ReserveInput carries a reservation request.  Dates are interpreted as
// UTC calendar days forming the half-open interval [CheckIn, CheckOut).
type ReserveInput struct {
    RoomTypeID uint64
    GuestID    uint64
    CheckIn    time.Time
    CheckOut   time.Time
    Occupancy  uint32
}

// Reserve finds a non-conflicting room of the requested type and commits
// the reservation atomically.  It returns repository.ErrNoAvailability
// when every room of the type is taken for the requested dates, with the
// transaction rolled back and no partial state.
func (a *Allocator) Reserve(ctx context.Context, in ReserveInput) (*model.RoomBooking, error) {
    checkIn := dateOnly(in.CheckIn)
    checkOut := dateOnly(in.CheckOut)
    if err := validateStay(time.Now().UTC(), checkIn, checkOut); err != nil {
        return nil, err
    }
    if in.Occupancy == 0 {
        return nil, &ValidationError{Msg: "occupancy must be at least 1"}
    }

    ctx, cancel := context.WithTimeout(ctx, a.timeout)
    defer cancel()

    rt, err := a.rooms.GetRoomType(ctx, in.RoomTypeID)
    if err != nil {
        return nil, err
    }
    if in.Occupancy > rt.MaxOccupancy {
        return nil, &ValidationError{Msg: "occupancy exceeds room type capacity"}
    }
    nights := uint32(checkOut.Sub(checkIn).Hours() / 24)
    total := nights * rt.PriceCentsPerNight

    tx, err := a.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    room, err := a.rooms.FindAvailableTx(ctx, tx, in.RoomTypeID,
        checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02"))
    if err != nil {
        return nil, err
    }
    b := &model.RoomBooking{
        RoomID:           room.ID,
        GuestID:          in.GuestID,
        CheckInDate:      checkIn,
        CheckOutDate:     checkOut,
        Status:           model.BookingPending,
        TotalAmountCents: total,
    }
    if err := a.bookings.CreateTx(ctx, tx, b); err != nil {
        return nil, err
    }
    if err := a.rooms.UpdateStatusTx(ctx, tx, room.ID, model.RoomOccupied); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return b, nil
}

// Cancel cancels a booking.  Staff may cancel any pending or confirmed
// booking; guests may cancel only their own and only up to 24h before
// check-in.  On success the booking moves to `cancelled` and the room
// back to `available`, in one transaction.
func (a *Allocator) Cancel(ctx context.Context, bookingID, actorID uint64, actorRole string) (*model.RoomBooking, error) {
    ctx, cancel := context.WithTimeout(ctx, a.timeout)
    defer cancel()

    tx, err := a.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    b, err := a.bookings.GetForUpdateTx(ctx, tx, bookingID)
    if err != nil {
        return nil, err
    }
    if !model.StaffRole(actorRole) {
        if b.GuestID != actorID {
            return nil, repository.ErrForbidden
        }
        if err := guestCancelAllowed(time.Now().UTC(), b.CheckInDate); err != nil {
            return nil, err
        }
    }
    if b.Status != model.BookingPending && b.Status != model.BookingConfirmed {
        return nil, ErrInvalidState
    }
    if err := a.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingCancelled); err != nil {
        return nil, err
    }
    if err := a.rooms.UpdateStatusTx(ctx, tx, b.RoomID, model.RoomAvailable); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    b.Status = model.BookingCancelled
    return b, nil
}

// UpdateStatus applies a staff-driven booking transition.  The room's
// status is recomputed as a pure function of the new booking status and
// written in the same transaction.  Transitions out of a terminal state
// fail with ErrInvalidState.
func (a *Allocator) UpdateStatus(ctx context.Context, bookingID uint64, newStatus string) (*model.RoomBooking, error) {
    if !model.BookingStatusValid(newStatus) {
        return nil, &ValidationError{Msg: "unknown booking status"}
    }
    ctx, cancel := context.WithTimeout(ctx, a.timeout)
    defer cancel()

    tx, err := a.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    b, err := a.bookings.GetForUpdateTx(ctx, tx, bookingID)
    if err != nil {
        return nil, err
    }
    if b.Status == model.BookingCancelled || b.Status == model.BookingCheckedOut {
        return nil, ErrInvalidState
    }
    if err := a.bookings.UpdateStatusTx(ctx, tx, b.ID, newStatus); err != nil {
        return nil, err
    }
    if err := a.rooms.UpdateStatusTx(ctx, tx, b.RoomID, model.RoomStatusForBooking(newStatus)); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    b.Status = newStatus
    return b, nil
}

// ListActive returns all non-terminal bookings intersecting [from, to).
func (a *Allocator) ListActive(ctx context.Context, from, to time.Time) ([]model.RoomBooking, error) {
    ctx, cancel := context.WithTimeout(ctx, a.timeout)
    defer cancel()
    return a.bookings.ListActive(ctx, dateOnly(from), dateOnly(to))
}

// validateStay enforces the reservation date rules: check-in strictly
// before check-out and neither in the past relative to today's UTC date.
func validateStay(now, checkIn, checkOut time.Time) error {
    if !checkIn.Before(checkOut) {
        return &ValidationError{Msg: "check-in date must be before check-out date"}
    }
    today := dateOnly(now)
    if checkIn.Before(today) {
        return &ValidationError{Msg: "check-in date must not be in the past"}
    }
    return nil
}

// guestCancelAllowed enforces the 24h guest cancellation window against
// the start of the check-in day.
func guestCancelAllowed(now, checkIn time.Time) error {
    if now.After(checkIn.Add(-guestCancelNotice)) {
        return &PolicyError{Msg: "cancellations must be made 24h in advance"}
    }
    return nil
}

// dateOnly truncates a timestamp to its UTC calendar day.
func dateOnly(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
