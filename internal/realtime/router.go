package realtime

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/hotel-operations/internal/health"
    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/queue"
    "github.com/iliyamo/hotel-operations/internal/repository"
)

// OrderStore is the slice of the persistence layer the router needs.
// repository.OrderRepo satisfies it; tests substitute a fake.
type OrderStore interface {
    CreateOrder(ctx context.Context, in repository.NewOrderInput) (*repository.OrderDetail, error)
    AddItems(ctx context.Context, orderID uint64, items []repository.OrderItemInput) (*repository.OrderDetail, []model.OrderItem, error)
    ApplyItemStatus(ctx context.Context, itemID uint64, status string) (*repository.ItemStatusChange, error)
    SetOrderStatus(ctx context.Context, orderID uint64, status string) (*repository.OrderDetail, error)
    SetKitchenDecision(ctx context.Context, orderID uint64, accepted bool, reason string) (*repository.OrderDetail, error)
    TransferStations(ctx context.Context, orderID uint64, from, to string) (*repository.OrderDetail, error)
}

// TableStore covers table status updates.  repository.TableRepo
// satisfies it.
type TableStore interface {
    UpdateStatus(ctx context.Context, id uint64, status string) (*model.DiningTable, error)
}

// Router receives domain commands from realtime connections, applies
// their persistence side effects through the retry supervisor, and fans
// the resulting events out to the correct channels.  Each command
// variant has exactly one handler; recipients are computed freshly per
// event and delivery is best-effort to currently connected members.
type Router struct {
    registry *Registry
    orders   OrderStore
    tables   TableStore
    sup      *health.Supervisor
    timeout  time.Duration

    // publish forwards an event to the message broker for off-node
    // consumers; nil disables publishing.  Failures are logged and
    // never affect channel delivery.
    publish func(context.Context, queue.OrderEvent) error
}

// NewRouter constructs a Router.  publish may be nil.
func NewRouter(reg *Registry, orders OrderStore, tables TableStore, sup *health.Supervisor,
    timeout time.Duration, publish func(context.Context, queue.OrderEvent) error) *Router {
    if reg == nil || orders == nil || tables == nil || sup == nil {
        panic("nil dependency passed to NewRouter")
    }
    if timeout <= 0 {
        timeout = 5 * time.Second
    }
    return &Router{registry: reg, orders: orders, tables: tables, sup: sup, timeout: timeout, publish: publish}
}

// HandleFrame decodes one inbound frame and dispatches it to the
// matching handler.  The command set is closed; unknown names are
// answered with an error event.  A handler that fails after exhausting
// retries logs the failure and skips the event's side effects, but the
// connection stays up.
func (rt *Router) HandleFrame(ctx context.Context, c *Conn, raw []byte) {
    var f frame
    if err := json.Unmarshal(raw, &f); err != nil {
        rt.sendError(c, "malformed frame")
        return
    }
    switch f.Event {
    case CmdJoin:
        rt.handleJoin(c, f.Data)
    case CmdLeave:
        rt.handleLeave(c, f.Data)
    case CmdNewOrder:
        rt.handleNewOrder(ctx, c, f.Data)
    case CmdAddItems:
        rt.handleAddItems(ctx, c, f.Data)
    case CmdItemStatus:
        rt.handleItemStatus(ctx, c, f.Data)
    case CmdOrderStatus:
        rt.handleOrderStatus(ctx, c, f.Data)
    case CmdKitchenAccept:
        rt.handleKitchenDecision(ctx, c, f.Data, true)
    case CmdKitchenReject:
        rt.handleKitchenDecision(ctx, c, f.Data, false)
    case CmdTransfer:
        rt.handleTransfer(ctx, c, f.Data)
    case CmdTableStatus:
        rt.handleTableStatus(ctx, c, f.Data)
    default:
        rt.sendError(c, "unknown command: "+f.Event)
    }
}

func (rt *Router) handleJoin(c *Conn, data json.RawMessage) {
    var cmd joinCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.Channel == "" {
        rt.sendError(c, "channel is required")
        return
    }
    if err := rt.registry.Join(c, cmd.Channel); err != nil {
        rt.sendError(c, "cannot join channel "+cmd.Channel)
        return
    }
    c.enqueue(newEnvelope(EvtJoined, joinCmd{Channel: cmd.Channel}))
}

func (rt *Router) handleLeave(c *Conn, data json.RawMessage) {
    var cmd joinCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.Channel == "" {
        rt.sendError(c, "channel is required")
        return
    }
    rt.registry.Leave(c, cmd.Channel)
    c.enqueue(newEnvelope(EvtLeft, joinCmd{Channel: cmd.Channel}))
}

// handleNewOrder opens an order.  Recipients: one kitchen channel per
// distinct station referenced by the order's items, plus managers.
func (rt *Router) handleNewOrder(ctx context.Context, c *Conn, data json.RawMessage) {
    if !roleIn(c, model.RoleWaiter, model.RoleManager, model.RoleGuest) {
        rt.sendError(c, "role may not submit orders")
        return
    }
    var cmd newOrderCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.TableID == 0 || len(cmd.Items) == 0 {
        rt.sendError(c, "table_id and items are required")
        return
    }
    in := repository.NewOrderInput{TableID: cmd.TableID, CustomerID: cmd.CustomerID}
    if c.Identity.Role == model.RoleWaiter {
        w := c.Identity.UserID
        in.WaiterID = &w
    }
    if c.Identity.Role == model.RoleGuest && in.CustomerID == nil {
        cu := c.Identity.UserID
        in.CustomerID = &cu
    }
    for _, it := range cmd.Items {
        in.Items = append(in.Items, repository.OrderItemInput{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
    }

    var det *repository.OrderDetail
    err := rt.persist(ctx, c, "create order", func(ctx context.Context) error {
        var err error
        det, err = rt.orders.CreateOrder(ctx, in)
        return err
    })
    if err != nil {
        return
    }
    channels := append(stationChannels(det.Stations()), ChannelManagers)
    rt.emit(ctx, channels, EvtOrderCreated, orderToPayload(det), det)
}

// handleAddItems appends items to an open order.  Recipients: the
// order's kitchen channels, the owning waiter's channel (falling back
// to the waiters broadcast only when no waiter is attached), plus
// managers.
func (rt *Router) handleAddItems(ctx context.Context, c *Conn, data json.RawMessage) {
    if !roleIn(c, model.RoleWaiter, model.RoleManager, model.RoleGuest) {
        rt.sendError(c, "role may not modify orders")
        return
    }
    var cmd addItemsCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.OrderID == 0 || len(cmd.Items) == 0 {
        rt.sendError(c, "order_id and items are required")
        return
    }
    items := make([]repository.OrderItemInput, 0, len(cmd.Items))
    for _, it := range cmd.Items {
        items = append(items, repository.OrderItemInput{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
    }

    var det *repository.OrderDetail
    err := rt.persist(ctx, c, "add order items", func(ctx context.Context) error {
        var err error
        det, _, err = rt.orders.AddItems(ctx, cmd.OrderID, items)
        return err
    })
    if err != nil {
        return
    }
    channels := append(stationChannels(det.Stations()), waiterChannel(det))
    channels = append(channels, ChannelManagers)
    rt.emit(ctx, channels, EvtItemsAdded, orderToPayload(det), det)
}

// handleItemStatus applies a kitchen item update and re-derives the
// aggregate order status.  Recipients: the owning waiter (or waiters
// fallback), the customer's channel if known, both kitchen channels for
// cross-station awareness, and managers.  A derived order transition
// additionally emits an order status event.
func (rt *Router) handleItemStatus(ctx context.Context, c *Conn, data json.RawMessage) {
    if !roleIn(c, model.RoleChef, model.RoleBartender, model.RoleManager) {
        rt.sendError(c, "role may not update item status")
        return
    }
    var cmd itemStatusCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.ItemID == 0 {
        rt.sendError(c, "item_id is required")
        return
    }
    if !model.ItemStatusValid(cmd.Status) {
        rt.sendError(c, "unknown item status: "+cmd.Status)
        return
    }

    var change *repository.ItemStatusChange
    err := rt.persist(ctx, c, "apply item status", func(ctx context.Context) error {
        var err error
        change, err = rt.orders.ApplyItemStatus(ctx, cmd.ItemID, cmd.Status)
        return err
    })
    if err != nil {
        return
    }
    det := change.Detail
    channels := []string{waiterChannel(det)}
    if det.Order.CustomerID != nil {
        channels = append(channels, UserChannel(*det.Order.CustomerID))
    }
    channels = append(channels,
        StationChannel(model.StationChef),
        StationChannel(model.StationBartender),
        ChannelManagers)
    rt.emit(ctx, channels, EvtItemStatus, itemStatusPayload{OrderID: det.Order.ID, Item: itemToPayload(change.Item)}, det)

    if change.OrderTransitioned {
        statusChannels := []string{waiterChannel(det), ChannelManagers}
        rt.emit(ctx, statusChannels, EvtOrderStatus, orderStatusPayload{
            OrderID:        det.Order.ID,
            Status:         det.Order.Status,
            PreviousStatus: change.PreviousOrderStatus,
        }, det)
    }
}

// handleOrderStatus applies a staff-driven terminal transition.
// Recipients: the owning waiter's channel, or the waiters broadcast
// only when no waiter is attached — never both — plus managers.
func (rt *Router) handleOrderStatus(ctx context.Context, c *Conn, data json.RawMessage) {
    if !roleIn(c, model.RoleWaiter, model.RoleManager) {
        rt.sendError(c, "role may not set order status")
        return
    }
    var cmd orderStatusCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.OrderID == 0 {
        rt.sendError(c, "order_id is required")
        return
    }
    if !model.TerminalOrderStatus(cmd.Status) {
        rt.sendError(c, "order status "+cmd.Status+" is derived, not settable")
        return
    }

    var det *repository.OrderDetail
    err := rt.persist(ctx, c, "set order status", func(ctx context.Context) error {
        var err error
        det, err = rt.orders.SetOrderStatus(ctx, cmd.OrderID, cmd.Status)
        return err
    })
    if err != nil {
        return
    }
    channels := []string{waiterChannel(det), ChannelManagers}
    rt.emit(ctx, channels, EvtOrderStatus, orderStatusPayload{OrderID: det.Order.ID, Status: det.Order.Status}, det)
}

// handleKitchenDecision records an accept or reject.  Reject carries a
// mandatory reason.  Recipients: owning waiter (or waiters fallback)
// and managers.
func (rt *Router) handleKitchenDecision(ctx context.Context, c *Conn, data json.RawMessage, accepted bool) {
    if !roleIn(c, model.RoleChef, model.RoleBartender) {
        rt.sendError(c, "role may not accept or reject orders")
        return
    }
    var cmd kitchenDecisionCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.OrderID == 0 {
        rt.sendError(c, "order_id is required")
        return
    }
    if !accepted && cmd.Reason == "" {
        rt.sendError(c, "rejecting an order requires a reason")
        return
    }

    var det *repository.OrderDetail
    err := rt.persist(ctx, c, "kitchen decision", func(ctx context.Context) error {
        var err error
        det, err = rt.orders.SetKitchenDecision(ctx, cmd.OrderID, accepted, cmd.Reason)
        return err
    })
    if err != nil {
        return
    }
    channels := []string{waiterChannel(det), ChannelManagers}
    rt.emit(ctx, channels, EvtKitchenDecision, kitchenDecisionPayload{
        OrderID: det.Order.ID, Accepted: accepted, Reason: cmd.Reason,
    }, det)
}

// handleTransfer moves an order's items between stations.  The source
// kitchen is told "out", the target kitchen "in"; the waiter and
// managers get the target-side event.
func (rt *Router) handleTransfer(ctx context.Context, c *Conn, data json.RawMessage) {
    if !roleIn(c, model.RoleChef, model.RoleBartender, model.RoleManager) {
        rt.sendError(c, "role may not transfer orders")
        return
    }
    var cmd transferCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.OrderID == 0 {
        rt.sendError(c, "order_id is required")
        return
    }
    if !validStation(cmd.From) || !validStation(cmd.To) || cmd.From == cmd.To {
        rt.sendError(c, "invalid station pair")
        return
    }

    var det *repository.OrderDetail
    err := rt.persist(ctx, c, "transfer order", func(ctx context.Context) error {
        var err error
        det, err = rt.orders.TransferStations(ctx, cmd.OrderID, cmd.From, cmd.To)
        return err
    })
    if err != nil {
        return
    }
    out := transferPayload{OrderID: det.Order.ID, From: cmd.From, To: cmd.To, Direction: "out"}
    in := transferPayload{OrderID: det.Order.ID, From: cmd.From, To: cmd.To, Direction: "in"}
    rt.registry.Broadcast([]string{StationChannel(cmd.From)}, newEnvelope(EvtOrderTransferred, out))
    rt.emit(ctx, []string{StationChannel(cmd.To), waiterChannel(det), ChannelManagers}, EvtOrderTransferred, in, det)
}

// handleTableStatus records a table state change and tells the floor
// staff.
func (rt *Router) handleTableStatus(ctx context.Context, c *Conn, data json.RawMessage) {
    if !roleIn(c, model.RoleWaiter, model.RoleManager) {
        rt.sendError(c, "role may not update tables")
        return
    }
    var cmd tableStatusCmd
    if err := json.Unmarshal(data, &cmd); err != nil || cmd.TableID == 0 {
        rt.sendError(c, "table_id is required")
        return
    }
    if !model.TableStatusValid(cmd.Status) {
        rt.sendError(c, "unknown table status: "+cmd.Status)
        return
    }

    var tbl *model.DiningTable
    err := rt.persist(ctx, c, "update table status", func(ctx context.Context) error {
        var err error
        tbl, err = rt.tables.UpdateStatus(ctx, cmd.TableID, cmd.Status)
        return err
    })
    if err != nil {
        return
    }
    rt.registry.Broadcast([]string{ChannelWaiters, ChannelManagers},
        newEnvelope(EvtTableStatus, tableStatusPayload{TableID: tbl.ID, TableNumber: tbl.TableNumber, Status: tbl.Status}))
}

// persist runs a storage operation through the retry supervisor with
// the router's per-operation timeout.  Domain failures are reported to
// the origin connection; exhausted transient failures are logged and
// reported without crashing the connection.
func (rt *Router) persist(ctx context.Context, c *Conn, name string, op func(context.Context) error) error {
    opCtx, cancel := context.WithTimeout(ctx, rt.timeout)
    defer cancel()
    err := rt.sup.Do(opCtx, name, op)
    if err == nil {
        return nil
    }
    switch {
    case errors.Is(err, repository.ErrNotFound):
        rt.sendError(c, "not found")
    case errors.Is(err, repository.ErrConflict):
        rt.sendError(c, "operation conflicts with current state")
    default:
        log.Printf("realtime: %s failed permanently: %v", name, err)
        rt.sendError(c, "storage temporarily unavailable")
    }
    return err
}

// emit broadcasts an event and forwards it to the broker best-effort.
func (rt *Router) emit(ctx context.Context, channels []string, event string, payload interface{}, det *repository.OrderDetail) {
    rt.registry.Broadcast(channels, newEnvelope(event, payload))
    if rt.publish == nil || det == nil {
        return
    }
    ev := queue.OrderEvent{
        Event:            event,
        OrderID:          det.Order.ID,
        TableID:          det.Order.TableID,
        Status:           det.Order.Status,
        KitchenStatus:    det.Order.KitchenStatus,
        TotalAmountCents: det.Order.TotalAmountCents,
        OccurredAt:       time.Now().UTC().Format(time.RFC3339),
    }
    if err := rt.publish(ctx, ev); err != nil {
        log.Printf("realtime: broker publish for %s failed: %v", event, err)
    }
}

func (rt *Router) sendError(c *Conn, msg string) {
    c.enqueue(newEnvelope(EvtError, errorPayload{Message: msg}))
}

// waiterChannel returns the single notification target for an order's
// waiter: the waiter's private channel when one is attached, otherwise
// the waiters broadcast.  Exactly one of the two, never both, so no
// event is delivered twice.
func waiterChannel(det *repository.OrderDetail) string {
    if det.Order.WaiterID != nil {
        return UserChannel(*det.Order.WaiterID)
    }
    return ChannelWaiters
}

func stationChannels(stations []string) []string {
    out := make([]string, 0, len(stations))
    for _, s := range stations {
        out = append(out, StationChannel(s))
    }
    return out
}

func validStation(s string) bool {
    return s == model.StationChef || s == model.StationBartender
}

func roleIn(c *Conn, roles ...string) bool {
    for _, r := range roles {
        if c.Identity.Role == r {
            return true
        }
    }
    return false
}
