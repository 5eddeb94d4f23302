package model

import "time"

// Booking status values.  Transitions are staff- or guest-driven except
// for creation (always `pending`).  `cancelled` and `checked_out` are
// terminal and release the underlying room.
const (
    BookingPending    = "pending"
    BookingConfirmed  = "confirmed"
    BookingCheckedIn  = "checked_in"
    BookingCheckedOut = "checked_out"
    BookingCancelled  = "cancelled"
)

// RoomBooking records a guest's reservation of one room for a date
// range.  Dates form a half-open interval: the check-in day is included
// and the check-out day is excluded, so back-to-back bookings may share
// a boundary date without conflict.
//
// Fields:
//  ID               – primary key identifier.
//  RoomID           – allocated room.
//  GuestID          – user who owns the reservation.
//  CheckInDate      – first night (inclusive).
//  CheckOutDate     – departure day (exclusive).
//  Status           – one of the Booking* constants above.
//  TotalAmountCents – total price in cents for the whole stay.
type RoomBooking struct {
    ID               uint64    // room_bookings.id
    RoomID           uint64    // room_bookings.room_id
    GuestID          uint64    // room_bookings.guest_id
    CheckInDate      time.Time // room_bookings.check_in_date
    CheckOutDate     time.Time // room_bookings.check_out_date
    Status           string    // room_bookings.status
    TotalAmountCents uint32    // room_bookings.total_amount_cents
    CreatedAt        time.Time // room_bookings.created_at
    UpdatedAt        time.Time // room_bookings.updated_at
}

// BookingStatusValid reports whether s is a known booking status.
func BookingStatusValid(s string) bool {
    switch s {
    case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCheckedOut, BookingCancelled:
        return true
    }
    return false
}

// RoomStatusForBooking returns the room status implied by a booking
// status.  The allocator writes this in the same transaction as the
// booking update so the two can never be observably inconsistent.
func RoomStatusForBooking(bookingStatus string) string {
    switch bookingStatus {
    case BookingPending, BookingConfirmed, BookingCheckedIn:
        return RoomOccupied
    default: // checked_out, cancelled
        return RoomAvailable
    }
}
