//go:build integration

package booking

import (
    "context"
    "database/sql"
    "fmt"
    "os"
    "sync"
    "testing"
    "time"

    _ "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/repository"
)

// These tests need a disposable MySQL database.  Point HOTEL_TEST_DSN at
// one, e.g.
//
//	HOTEL_TEST_DSN="root:secret@tcp(localhost:3306)/hotel_test?parseTime=true"
//
// and run the package with -tags integration.  Every test drops and
// recreates the allocation tables, so never aim this at real data.

func openTestDB(t *testing.T) *sql.DB {
    t.Helper()
    dsn := os.Getenv("HOTEL_TEST_DSN")
    if dsn == "" {
        t.Skip("set HOTEL_TEST_DSN to run allocation integration tests")
    }
    db, err := sql.Open("mysql", dsn)
    require.NoError(t, err)
    require.NoError(t, db.Ping())
    t.Cleanup(func() { _ = db.Close() })

    for _, stmt := range []string{
        `DROP TABLE IF EXISTS room_bookings`,
        `DROP TABLE IF EXISTS rooms`,
        `DROP TABLE IF EXISTS room_types`,
        `CREATE TABLE room_types (
            id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
            name VARCHAR(64) NOT NULL,
            max_occupancy INT UNSIGNED NOT NULL,
            price_cents_per_night INT UNSIGNED NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
        ) ENGINE=InnoDB`,
        `CREATE TABLE rooms (
            id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
            room_type_id BIGINT UNSIGNED NOT NULL,
            room_number INT UNSIGNED NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'available',
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
        ) ENGINE=InnoDB`,
        `CREATE TABLE room_bookings (
            id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
            room_id BIGINT UNSIGNED NOT NULL,
            guest_id BIGINT UNSIGNED NOT NULL,
            check_in_date DATE NOT NULL,
            check_out_date DATE NOT NULL,
            status VARCHAR(16) NOT NULL,
            total_amount_cents INT UNSIGNED NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
        ) ENGINE=InnoDB`,
    } {
        _, err := db.Exec(stmt)
        require.NoError(t, err)
    }
    return db
}

func newTestAllocator(db *sql.DB) *Allocator {
    return NewAllocator(db, repository.NewRoomRepo(db), repository.NewBookingRepo(db), 5*time.Second)
}

// seedRoomType inserts a room type plus one available room per number
// and returns the type's ID.
func seedRoomType(t *testing.T, db *sql.DB, maxOcc, price uint32, roomNumbers ...uint32) uint64 {
    t.Helper()
    res, err := db.Exec(
        `INSERT INTO room_types (name, max_occupancy, price_cents_per_night) VALUES (?, ?, ?)`,
        fmt.Sprintf("type-%d", time.Now().UnixNano()), maxOcc, price,
    )
    require.NoError(t, err)
    id, err := res.LastInsertId()
    require.NoError(t, err)
    for _, n := range roomNumbers {
        _, err := db.Exec(
            `INSERT INTO rooms (room_type_id, room_number, status) VALUES (?, ?, 'available')`,
            id, n,
        )
        require.NoError(t, err)
    }
    return uint64(id)
}

func countBookings(t *testing.T, db *sql.DB) int {
    t.Helper()
    var n int
    require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM room_bookings`).Scan(&n))
    return n
}

func roomStatus(t *testing.T, db *sql.DB, roomID uint64) string {
    t.Helper()
    var s string
    require.NoError(t, db.QueryRow(`SELECT status FROM rooms WHERE id = ?`, roomID).Scan(&s))
    return s
}

func stay(daysAhead, nights int) (time.Time, time.Time) {
    in := time.Now().UTC().AddDate(0, 0, daysAhead)
    return in, in.AddDate(0, 0, nights)
}

func TestReservePicksLowestRoomAndCommitsAtomically(t *testing.T) {
    db := openTestDB(t)
    alloc := newTestAllocator(db)
    typeID := seedRoomType(t, db, 2, 10000, 102, 101)
    in, out := stay(30, 2)

    b, err := alloc.Reserve(context.Background(), ReserveInput{
        RoomTypeID: typeID, GuestID: 1, CheckIn: in, CheckOut: out, Occupancy: 2,
    })
    require.NoError(t, err)
    assert.Equal(t, model.BookingPending, b.Status)
    assert.Equal(t, uint32(20000), b.TotalAmountCents)

    // Lowest room number wins regardless of insertion order.
    var num uint32
    require.NoError(t, db.QueryRow(`SELECT room_number FROM rooms WHERE id = ?`, b.RoomID).Scan(&num))
    assert.Equal(t, uint32(101), num)

    // Booking row and room status committed together.
    assert.Equal(t, 1, countBookings(t, db))
    assert.Equal(t, model.RoomOccupied, roomStatus(t, db, b.RoomID))
}

func TestReserveOverlapRejectedWithoutPartialState(t *testing.T) {
    db := openTestDB(t)
    alloc := newTestAllocator(db)
    typeID := seedRoomType(t, db, 2, 10000, 201)
    in, out := stay(30, 3)

    _, err := alloc.Reserve(context.Background(), ReserveInput{
        RoomTypeID: typeID, GuestID: 1, CheckIn: in, CheckOut: out, Occupancy: 1,
    })
    require.NoError(t, err)

    // The only room of the type is taken for an overlapping range.
    _, err = alloc.Reserve(context.Background(), ReserveInput{
        RoomTypeID: typeID, GuestID: 2, CheckIn: in.AddDate(0, 0, 1), CheckOut: out.AddDate(0, 0, 1), Occupancy: 1,
    })
    assert.ErrorIs(t, err, repository.ErrNoAvailability)

    // The failed attempt rolled back: no second booking row exists.
    assert.Equal(t, 1, countBookings(t, db))
}

// One room, many racing reservations for the same dates: exactly one
// caller gets the room, the transaction serializes the rest on the row
// lock, and no double booking is ever committed.
func TestConcurrentReservesSingleWinner(t *testing.T) {
    db := openTestDB(t)
    alloc := newTestAllocator(db)
    typeID := seedRoomType(t, db, 2, 10000, 301)
    in, out := stay(30, 2)

    const racers = 8
    errs := make([]error, racers)
    var wg sync.WaitGroup
    for i := 0; i < racers; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, errs[i] = alloc.Reserve(context.Background(), ReserveInput{
                RoomTypeID: typeID, GuestID: uint64(i + 1), CheckIn: in, CheckOut: out, Occupancy: 1,
            })
        }(i)
    }
    wg.Wait()

    wins := 0
    for _, err := range errs {
        if err == nil {
            wins++
        }
    }
    assert.Equal(t, 1, wins, "exactly one racer may hold the room")
    assert.Equal(t, 1, countBookings(t, db))
}

func TestCancelReleasesRoomForRebooking(t *testing.T) {
    db := openTestDB(t)
    alloc := newTestAllocator(db)
    typeID := seedRoomType(t, db, 2, 10000, 401)
    in, out := stay(30, 2)

    b, err := alloc.Reserve(context.Background(), ReserveInput{
        RoomTypeID: typeID, GuestID: 1, CheckIn: in, CheckOut: out, Occupancy: 1,
    })
    require.NoError(t, err)

    cancelled, err := alloc.Cancel(context.Background(), b.ID, 99, model.RoleManager)
    require.NoError(t, err)
    assert.Equal(t, model.BookingCancelled, cancelled.Status)
    assert.Equal(t, model.RoomAvailable, roomStatus(t, db, b.RoomID))

    // The cancelled range no longer conflicts.
    again, err := alloc.Reserve(context.Background(), ReserveInput{
        RoomTypeID: typeID, GuestID: 2, CheckIn: in, CheckOut: out, Occupancy: 1,
    })
    require.NoError(t, err)
    assert.Equal(t, b.RoomID, again.RoomID)
}
