package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/hotel-operations/internal/model"
)

// Date layout used for the DATE columns of room_bookings.  All dates
// are stored and compared in UTC.
const dateLayout = "2006-01-02"

// BookingRepo provides CRUD operations for room bookings.  All writes
// that must stay consistent with room status run inside a caller-held
// transaction; the caller commits or rolls back.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// provided record.  Status should be a valid enumeration value; the
// allocator always inserts `pending`.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.RoomBooking) error {
    const q = `INSERT INTO room_bookings (room_id, guest_id, check_in_date, check_out_date, status, total_amount_cents)
               VALUES (?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        b.RoomID, b.GuestID,
        b.CheckInDate.UTC().Format(dateLayout), b.CheckOutDate.UTC().Format(dateLayout),
        b.Status, b.TotalAmountCents,
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    // Query back the full row to populate timestamps and defaults
    const sel = `SELECT id, room_id, guest_id, check_in_date, check_out_date, status, total_amount_cents, created_at, updated_at
                 FROM room_bookings WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, b.ID).Scan(
        &b.ID, &b.RoomID, &b.GuestID, &b.CheckInDate, &b.CheckOutDate,
        &b.Status, &b.TotalAmountCents, &b.CreatedAt, &b.UpdatedAt,
    )
}

// GetForUpdateTx loads a booking by ID and locks the row for the
// remainder of the transaction so concurrent status transitions on the
// same booking serialize.  ErrNotFound is returned when no booking with
// the given ID exists.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.RoomBooking, error) {
    const q = `SELECT id, room_id, guest_id, check_in_date, check_out_date, status, total_amount_cents, created_at, updated_at
               FROM room_bookings WHERE id = ? FOR UPDATE`
    var b model.RoomBooking
    err := tx.QueryRowContext(ctx, q, id).Scan(
        &b.ID, &b.RoomID, &b.GuestID, &b.CheckInDate, &b.CheckOutDate,
        &b.Status, &b.TotalAmountCents, &b.CreatedAt, &b.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &b, nil
}

// GetByID loads a booking outside of any transaction.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.RoomBooking, error) {
    const q = `SELECT id, room_id, guest_id, check_in_date, check_out_date, status, total_amount_cents, created_at, updated_at
               FROM room_bookings WHERE id = ?`
    var b model.RoomBooking
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &b.ID, &b.RoomID, &b.GuestID, &b.CheckInDate, &b.CheckOutDate,
        &b.Status, &b.TotalAmountCents, &b.CreatedAt, &b.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &b, nil
}

// UpdateStatusTx writes a booking's status within a transaction.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
    res, err := tx.ExecContext(ctx, `UPDATE room_bookings SET status = ? WHERE id = ?`, status, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var one int
        if err := tx.QueryRowContext(ctx, `SELECT 1 FROM room_bookings WHERE id = ?`, id).Scan(&one); err == sql.ErrNoRows {
            return ErrNotFound
        } else if err != nil {
            return err
        }
    }
    return nil
}

// ListActive returns all bookings outside {cancelled, checked_out} whose
// stay intersects the half-open range [from, to).  Results are ordered
// by check-in date, then room, for deterministic output.
func (r *BookingRepo) ListActive(ctx context.Context, from, to time.Time) ([]model.RoomBooking, error) {
    const q = `SELECT id, room_id, guest_id, check_in_date, check_out_date, status, total_amount_cents, created_at, updated_at
               FROM room_bookings
               WHERE status NOT IN ('cancelled', 'checked_out')
                 AND check_in_date < ?
                 AND check_out_date > ?
               ORDER BY check_in_date, room_id`
    rows, err := r.db.QueryContext(ctx, q,
        to.UTC().Format(dateLayout), from.UTC().Format(dateLayout))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.RoomBooking, 0)
    for rows.Next() {
        var b model.RoomBooking
        if err := rows.Scan(
            &b.ID, &b.RoomID, &b.GuestID, &b.CheckInDate, &b.CheckOutDate,
            &b.Status, &b.TotalAmountCents, &b.CreatedAt, &b.UpdatedAt,
        ); err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    return out, rows.Err()
}
