// Package realtime implements the platform's live coordination layer:
// authenticated websocket connections organized into named channels,
// with domain events fanned out to exactly the subscribers that care.
// Channel names follow a fixed scheme: `user-<id>` for one user's
// private stream, `kitchen-chef` and `kitchen-bartender` for the
// stations, `waiters` and `managers` for the role-wide broadcasts.
package realtime

import (
    "encoding/json"
    "time"

    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/repository"
)

// Inbound command names.  The set is closed: Router.HandleFrame matches
// exhaustively and anything else is answered with an error event.
const (
    CmdJoin          = "join"
    CmdLeave         = "leave"
    CmdNewOrder      = "order:new"
    CmdAddItems      = "order:add_items"
    CmdItemStatus    = "order:item_status"
    CmdOrderStatus   = "order:status"
    CmdKitchenAccept = "kitchen:accept"
    CmdKitchenReject = "kitchen:reject"
    CmdTransfer      = "order:transfer"
    CmdTableStatus   = "table:status"
)

// Outbound event names.
const (
    EvtJoined            = "joined"
    EvtLeft              = "left"
    EvtOrderCreated      = "order:created"
    EvtItemsAdded        = "order:items_added"
    EvtOrderStatus       = "order:status_changed"
    EvtItemStatus        = "order:item_status_changed"
    EvtKitchenDecision   = "kitchen:decision"
    EvtOrderTransferred  = "order:transferred"
    EvtTableStatus       = "table:status_changed"
    EvtError             = "error"
)

// frame is the wire shape of every inbound client message.
type frame struct {
    Event string          `json:"event"`
    Data  json.RawMessage `json:"data"`
}

// Envelope is the wire shape of every outbound server message.  The
// timestamp is always server-set in UTC.
type Envelope struct {
    Event     string      `json:"event"`
    Data      interface{} `json:"data"`
    Timestamp string      `json:"timestamp"`
}

// newEnvelope stamps an outbound event with the current UTC time.
func newEnvelope(event string, data interface{}) Envelope {
    return Envelope{Event: event, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// Typed command payloads, one per inbound variant.

type joinCmd struct {
    Channel string `json:"channel"`
}

type itemRequest struct {
    MenuItemID uint64 `json:"menu_item_id"`
    Quantity   uint32 `json:"quantity"`
}

type newOrderCmd struct {
    TableID    uint64        `json:"table_id"`
    CustomerID *uint64       `json:"customer_id,omitempty"`
    Items      []itemRequest `json:"items"`
}

type addItemsCmd struct {
    OrderID uint64        `json:"order_id"`
    Items   []itemRequest `json:"items"`
}

type itemStatusCmd struct {
    ItemID uint64 `json:"item_id"`
    Status string `json:"status"`
}

type orderStatusCmd struct {
    OrderID uint64 `json:"order_id"`
    Status  string `json:"status"`
}

type kitchenDecisionCmd struct {
    OrderID uint64 `json:"order_id"`
    Reason  string `json:"reason,omitempty"`
}

type transferCmd struct {
    OrderID uint64 `json:"order_id"`
    From    string `json:"from_station"`
    To      string `json:"to_station"`
}

type tableStatusCmd struct {
    TableID uint64 `json:"table_id"`
    Status  string `json:"status"`
}

// Outbound payload shapes.

type itemPayload struct {
    ID              uint64 `json:"id"`
    MenuItemID      uint64 `json:"menu_item_id"`
    Name            string `json:"name"`
    Station         string `json:"station"`
    Quantity        uint32 `json:"quantity"`
    UnitPriceCents  uint32 `json:"unit_price_cents"`
    TotalPriceCents uint32 `json:"total_price_cents"`
    Status          string `json:"status"`
}

type orderPayload struct {
    ID               uint64        `json:"id"`
    TableID          uint64        `json:"table_id"`
    WaiterID         *uint64       `json:"waiter_id,omitempty"`
    CustomerID       *uint64       `json:"customer_id,omitempty"`
    Status           string        `json:"status"`
    KitchenStatus    string        `json:"kitchen_status"`
    TotalAmountCents uint32        `json:"total_amount_cents"`
    Stations         []string      `json:"stations"`
    Items            []itemPayload `json:"items"`
}

type orderStatusPayload struct {
    OrderID        uint64 `json:"order_id"`
    Status         string `json:"status"`
    PreviousStatus string `json:"previous_status,omitempty"`
}

type itemStatusPayload struct {
    OrderID uint64      `json:"order_id"`
    Item    itemPayload `json:"item"`
}

type kitchenDecisionPayload struct {
    OrderID  uint64 `json:"order_id"`
    Accepted bool   `json:"accepted"`
    Reason   string `json:"reason,omitempty"`
}

type transferPayload struct {
    OrderID   uint64 `json:"order_id"`
    From      string `json:"from_station"`
    To        string `json:"to_station"`
    Direction string `json:"direction"` // "out" for the source kitchen, "in" for the target
}

type tableStatusPayload struct {
    TableID     uint64 `json:"table_id"`
    TableNumber uint32 `json:"table_number"`
    Status      string `json:"status"`
}

type errorPayload struct {
    Message string `json:"message"`
}

// orderToPayload flattens an OrderDetail for the wire.
func orderToPayload(det *repository.OrderDetail) orderPayload {
    p := orderPayload{
        ID:               det.Order.ID,
        TableID:          det.Order.TableID,
        WaiterID:         det.Order.WaiterID,
        CustomerID:       det.Order.CustomerID,
        Status:           det.Order.Status,
        KitchenStatus:    det.Order.KitchenStatus,
        TotalAmountCents: det.Order.TotalAmountCents,
        Stations:         det.Stations(),
        Items:            make([]itemPayload, 0, len(det.Items)),
    }
    for _, it := range det.Items {
        p.Items = append(p.Items, itemToPayload(it))
    }
    return p
}

func itemToPayload(it model.OrderItem) itemPayload {
    return itemPayload{
        ID:              it.ID,
        MenuItemID:      it.MenuItemID,
        Name:            it.Name,
        Station:         it.Station,
        Quantity:        it.Quantity,
        UnitPriceCents:  it.UnitPriceCents,
        TotalPriceCents: it.TotalPriceCents,
        Status:          it.Status,
    }
}
