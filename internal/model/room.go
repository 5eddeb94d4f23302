package model

import "time"

// Room status values.  A room is `available` when it can be allocated to
// a new booking, `occupied` while a non-terminal booking holds it, and
// `maintenance`/`out_of_order` when staff has withdrawn it from the
// bookable inventory.
const (
    RoomAvailable  = "available"
    RoomOccupied   = "occupied"
    RoomMaintenance = "maintenance"
    RoomOutOfOrder = "out_of_order"
)

// RoomType describes a category of physical rooms, e.g. "Standard" or
// "Deluxe".  MaxOccupancy bounds the occupancy accepted at reservation
// time.
//
// Fields:
//  ID                 – primary key identifier.
//  Name               – unique type name.
//  MaxOccupancy       – maximum number of guests per room.
//  PriceCentsPerNight – nightly rate in cents.
type RoomType struct {
    ID                 uint64    // room_types.id
    Name               string    // room_types.name
    MaxOccupancy       uint32    // room_types.max_occupancy
    PriceCentsPerNight uint32    // room_types.price_cents_per_night
    CreatedAt          time.Time // room_types.created_at
    UpdatedAt          time.Time // room_types.updated_at
}

// Room is a physical unit of hotel inventory.  Status is mutated by the
// booking allocator on allocation/release and by staff maintenance
// actions.
//
// Fields:
//  ID         – primary key identifier.
//  RoomTypeID – reference to the room's type.
//  RoomNumber – human-facing number; also the deterministic allocation
//               tie break (lowest number wins).
//  Status     – one of the Room* constants above.
type Room struct {
    ID         uint64    // rooms.id
    RoomTypeID uint64    // rooms.room_type_id
    RoomNumber uint32    // rooms.room_number
    Status     string    // rooms.status
    CreatedAt  time.Time // rooms.created_at
    UpdatedAt  time.Time // rooms.updated_at
}
