package model

import "time"

// Dining table status values.
const (
    TableAvailable = "available"
    TableOccupied  = "occupied"
    TableReserved  = "reserved"
    TableCleaning  = "cleaning"
)

// DiningTable is a restaurant table.  Status changes are reported by
// waiters over the realtime connection and broadcast to staff channels.
type DiningTable struct {
    ID          uint64    // dining_tables.id
    TableNumber uint32    // dining_tables.table_number
    Status      string    // dining_tables.status
    CreatedAt   time.Time // dining_tables.created_at
    UpdatedAt   time.Time // dining_tables.updated_at
}

// TableStatusValid reports whether s is a known table status.
func TableStatusValid(s string) bool {
    switch s {
    case TableAvailable, TableOccupied, TableReserved, TableCleaning:
        return true
    }
    return false
}
