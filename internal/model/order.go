package model

import "time"

// Order status values.  `pending`, `preparing` and `ready` are derived
// from item statuses; `served`, `billed` and `cancelled` are explicit
// staff actions.
const (
    OrderPending   = "pending"
    OrderPreparing = "preparing"
    OrderReady     = "ready"
    OrderServed    = "served"
    OrderBilled    = "billed"
    OrderCancelled = "cancelled"
)

// Kitchen acknowledgement status for an order.
const (
    KitchenPending  = "pending"
    KitchenAccepted = "accepted"
    KitchenRejected = "rejected"
)

// Order item status values, mutated independently by kitchen staff.
const (
    ItemPending   = "pending"
    ItemPreparing = "preparing"
    ItemReady     = "ready"
    ItemServed    = "served"
    ItemCancelled = "cancelled"
)

// Kitchen stations.  Each menu item belongs to exactly one station and
// station names double as realtime channel suffixes (kitchen-chef,
// kitchen-bartender).
const (
    StationChef      = "chef"
    StationBartender = "bartender"
)

// Order is a service request placed against a dining table (or room
// service target).  WaiterID and CustomerID are optional: orders opened
// directly by kitchen staff have no waiter, walk-ins have no customer
// account.
type Order struct {
    ID               uint64    // orders.id
    TableID          uint64    // orders.table_id
    WaiterID         *uint64   // orders.waiter_id (nullable)
    CustomerID       *uint64   // orders.customer_id (nullable)
    Status           string    // orders.status
    KitchenStatus    string    // orders.kitchen_status
    TotalAmountCents uint32    // orders.total_amount_cents
    CreatedAt        time.Time // orders.created_at
    UpdatedAt        time.Time // orders.updated_at
}

// OrderItem is a single line of an order.  Station is denormalized from
// the referenced menu item so recipient channels can be computed without
// a join at emission time.
type OrderItem struct {
    ID              uint64 // order_items.id
    OrderID         uint64 // order_items.order_id
    MenuItemID      uint64 // order_items.menu_item_id
    Name            string // menu_items.name (joined for display)
    Station         string // order_items.station (chef|bartender)
    Quantity        uint32 // order_items.quantity
    UnitPriceCents  uint32 // order_items.unit_price_cents
    TotalPriceCents uint32 // order_items.total_price_cents
    Status          string // order_items.status
}

// DeriveOrderStatus computes the aggregate order status implied by the
// current item set.  It returns the new status and true when a transition
// away from current should be written:
//
//   - every non-cancelled item ready        -> ready
//   - any item preparing while order pending -> preparing
//   - otherwise                              -> no transition
//
// Orders in a terminal or staff-owned state (served, billed, cancelled)
// never transition here.  An order whose items are all cancelled does not
// become ready.
func DeriveOrderStatus(current string, items []OrderItem) (string, bool) {
    switch current {
    case OrderServed, OrderBilled, OrderCancelled:
        return current, false
    }
    allReady := false
    anyPreparing := false
    live := 0
    ready := 0
    for _, it := range items {
        if it.Status == ItemCancelled {
            continue
        }
        live++
        switch it.Status {
        case ItemReady, ItemServed:
            ready++
        case ItemPreparing:
            anyPreparing = true
        }
    }
    allReady = live > 0 && ready == live
    if allReady && current != OrderReady {
        return OrderReady, true
    }
    if !allReady && anyPreparing && current == OrderPending {
        return OrderPreparing, true
    }
    return current, false
}

// ItemStatusValid reports whether s is a known order item status.
func ItemStatusValid(s string) bool {
    switch s {
    case ItemPending, ItemPreparing, ItemReady, ItemServed, ItemCancelled:
        return true
    }
    return false
}

// TerminalOrderStatus reports whether s is one of the staff-set terminal
// order statuses that may be written directly rather than derived.
func TerminalOrderStatus(s string) bool {
    switch s {
    case OrderServed, OrderBilled, OrderCancelled:
        return true
    }
    return false
}
