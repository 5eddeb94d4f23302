package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/hotel-operations/internal/model"
)

// RoomRepo provides access to rooms and room_types.  Allocation-critical
// lookups run within a caller-supplied transaction so the overlap
// predicate and the subsequent booking insert observe a single
// consistent snapshot.
type RoomRepo struct {
    db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying handle so services can open transactions.
func (r *RoomRepo) DB() *sql.DB { return r.db }

// GetRoomType loads a room type by ID.  ErrNotFound is returned when no
// such type exists.
func (r *RoomRepo) GetRoomType(ctx context.Context, id uint64) (*model.RoomType, error) {
    const q = `SELECT id, name, max_occupancy, price_cents_per_night, created_at, updated_at
               FROM room_types WHERE id = ?`
    var rt model.RoomType
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &rt.ID, &rt.Name, &rt.MaxOccupancy, &rt.PriceCentsPerNight, &rt.CreatedAt, &rt.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &rt, nil
}

// ListRoomTypes returns all room types ordered by name.  Used by the
// public browse endpoints.
func (r *RoomRepo) ListRoomTypes(ctx context.Context) ([]model.RoomType, error) {
    const q = `SELECT id, name, max_occupancy, price_cents_per_night, created_at, updated_at
               FROM room_types ORDER BY name`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.RoomType, 0)
    for rows.Next() {
        var rt model.RoomType
        if err := rows.Scan(&rt.ID, &rt.Name, &rt.MaxOccupancy, &rt.PriceCentsPerNight, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, rt)
    }
    return out, rows.Err()
}

// ListByType returns all rooms of a type ordered by room number.
func (r *RoomRepo) ListByType(ctx context.Context, roomTypeID uint64) ([]model.Room, error) {
    const q = `SELECT id, room_type_id, room_number, status, created_at, updated_at
               FROM rooms WHERE room_type_id = ? ORDER BY room_number`
    rows, err := r.db.QueryContext(ctx, q, roomTypeID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Room, 0)
    for rows.Next() {
        var rm model.Room
        if err := rows.Scan(&rm.ID, &rm.RoomTypeID, &rm.RoomNumber, &rm.Status, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, rm)
    }
    return out, rows.Err()
}

// CountAvailable reports how many rooms of a type are free for the
// half-open date range [checkIn, checkOut).  Same predicate as
// FindAvailableTx but without locking; the answer is advisory and may be
// stale by the time a reservation is attempted.
func (r *RoomRepo) CountAvailable(ctx context.Context, roomTypeID uint64, checkIn, checkOut string) (int, error) {
    const q = `SELECT COUNT(*)
               FROM rooms rm
               WHERE rm.room_type_id = ?
                 AND rm.status = 'available'
                 AND NOT EXISTS (
                     SELECT 1 FROM room_bookings b
                     WHERE b.room_id = rm.id
                       AND b.status NOT IN ('cancelled', 'checked_out')
                       AND b.check_in_date < ?
                       AND b.check_out_date > ?
                 )`
    var n int
    if err := r.db.QueryRowContext(ctx, q, roomTypeID, checkOut, checkIn).Scan(&n); err != nil {
        return 0, err
    }
    return n, nil
}

// FindAvailableTx selects one allocatable room of the requested type for
// the half-open date range [checkIn, checkOut) and locks it for the
// remainder of the transaction.  A room qualifies when its status is
// `available` and no booking outside {cancelled, checked_out} overlaps
// the requested interval.  The lowest room number wins so concurrent
// allocators contend on the same row and serialize on its lock rather
// than each picking a different candidate.  ErrNoAvailability is
// returned when no room qualifies.
func (r *RoomRepo) FindAvailableTx(ctx context.Context, tx *sql.Tx, roomTypeID uint64, checkIn, checkOut string) (*model.Room, error) {
    const q = `SELECT rm.id, rm.room_type_id, rm.room_number, rm.status, rm.created_at, rm.updated_at
               FROM rooms rm
               WHERE rm.room_type_id = ?
                 AND rm.status = 'available'
                 AND NOT EXISTS (
                     SELECT 1 FROM room_bookings b
                     WHERE b.room_id = rm.id
                       AND b.status NOT IN ('cancelled', 'checked_out')
                       AND b.check_in_date < ?
                       AND b.check_out_date > ?
                 )
               ORDER BY rm.room_number
               LIMIT 1
               FOR UPDATE`
    var rm model.Room
    err := tx.QueryRowContext(ctx, q, roomTypeID, checkOut, checkIn).Scan(
        &rm.ID, &rm.RoomTypeID, &rm.RoomNumber, &rm.Status, &rm.CreatedAt, &rm.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrNoAvailability
    }
    if err != nil {
        return nil, err
    }
    return &rm, nil
}

// UpdateStatusTx writes a room's status within a transaction.  The
// allocator always pairs this with the booking mutation in the same
// transaction.
func (r *RoomRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, roomID uint64, status string) error {
    res, err := tx.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE id = ?`, status, roomID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        // Zero rows means either a missing room or an unchanged status;
        // verify existence so callers get a real ErrNotFound.
        var one int
        if err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&one); err == sql.ErrNoRows {
            return ErrNotFound
        } else if err != nil {
            return err
        }
    }
    return nil
}
