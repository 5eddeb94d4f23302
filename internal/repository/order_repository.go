package repository

import (
    "context"
    "database/sql"
    "sort"
    "strings"

    "github.com/iliyamo/hotel-operations/internal/model"
)

// OrderRepo owns the orders and order_items tables.  Unlike the simpler
// repositories it exposes whole transactional flows rather than bare Tx
// helpers: the realtime router must never observe an order whose
// aggregate status disagrees with its items, so each flow reads the full
// item set and writes the derived status inside one transaction.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle for health probes and tests.
func (r *OrderRepo) DB() *sql.DB { return r.db }

// OrderDetail is an order together with its items.  It carries enough
// information for the router to compute recipient channels without
// further queries.
type OrderDetail struct {
    Order model.Order
    Items []model.OrderItem
}

// Stations returns the distinct kitchen stations referenced by the
// order's non-cancelled items, sorted for deterministic fan-out.
func (d *OrderDetail) Stations() []string {
    seen := map[string]struct{}{}
    for _, it := range d.Items {
        if it.Status == model.ItemCancelled {
            continue
        }
        seen[it.Station] = struct{}{}
    }
    out := make([]string, 0, len(seen))
    for s := range seen {
        out = append(out, s)
    }
    sort.Strings(out)
    return out
}

// OrderItemInput names a menu item and quantity for order creation.
type OrderItemInput struct {
    MenuItemID uint64
    Quantity   uint32
}

// NewOrderInput carries everything needed to open an order.
type NewOrderInput struct {
    TableID    uint64
    WaiterID   *uint64
    CustomerID *uint64
    Items      []OrderItemInput
}

// ItemStatusChange reports the outcome of ApplyItemStatus.  When the
// item write caused the aggregate order status to transition,
// OrderTransitioned is true and PreviousOrderStatus holds the status
// before the write.
type ItemStatusChange struct {
    Detail              *OrderDetail
    Item                model.OrderItem
    OrderTransitioned   bool
    PreviousOrderStatus string
}

// CreateOrder inserts an order and its items in one transaction.  Menu
// item names, stations and prices are resolved from the menu_items
// table; referencing an unknown menu item fails with ErrNotFound and no
// partial state.  The order starts `pending` with kitchen status
// `pending`.
func (r *OrderRepo) CreateOrder(ctx context.Context, in NewOrderInput) (*OrderDetail, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    menu, err := r.menuItemsTx(ctx, tx, in.Items)
    if err != nil {
        return nil, err
    }
    var total uint32
    for _, it := range in.Items {
        total += menu[it.MenuItemID].priceCents * it.Quantity
    }

    const insOrder = `INSERT INTO orders (table_id, waiter_id, customer_id, status, kitchen_status, total_amount_cents)
                      VALUES (?, ?, ?, 'pending', 'pending', ?)`
    res, err := tx.ExecContext(ctx, insOrder, in.TableID, in.WaiterID, in.CustomerID, total)
    if err != nil {
        return nil, err
    }
    oid, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    if err := r.insertItemsTx(ctx, tx, uint64(oid), in.Items, menu); err != nil {
        return nil, err
    }
    det, err := r.detailTx(ctx, tx, uint64(oid), false)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return det, nil
}

// AddItems appends items to an existing order and recomputes the total.
// An order already marked `ready` drops back to `preparing`, keeping the
// invariant that `ready` means every non-cancelled item is ready.
// Appending to a terminal order fails with ErrConflict.  The returned
// slice holds just the newly added items.
func (r *OrderRepo) AddItems(ctx context.Context, orderID uint64, items []OrderItemInput) (*OrderDetail, []model.OrderItem, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    ord, err := r.orderForUpdateTx(ctx, tx, orderID)
    if err != nil {
        return nil, nil, err
    }
    if model.TerminalOrderStatus(ord.Status) {
        return nil, nil, ErrConflict
    }
    menu, err := r.menuItemsTx(ctx, tx, items)
    if err != nil {
        return nil, nil, err
    }
    before, err := r.itemIDsTx(ctx, tx, orderID)
    if err != nil {
        return nil, nil, err
    }
    if err := r.insertItemsTx(ctx, tx, orderID, items, menu); err != nil {
        return nil, nil, err
    }
    var added uint32
    for _, it := range items {
        added += menu[it.MenuItemID].priceCents * it.Quantity
    }
    if _, err := tx.ExecContext(ctx,
        `UPDATE orders SET total_amount_cents = total_amount_cents + ? WHERE id = ?`,
        added, orderID); err != nil {
        return nil, nil, err
    }
    det, err := r.detailTx(ctx, tx, orderID, true)
    if err != nil {
        return nil, nil, err
    }
    if ord.Status == model.OrderReady {
        if _, err := tx.ExecContext(ctx,
            `UPDATE orders SET status = 'preparing' WHERE id = ?`, orderID); err != nil {
            return nil, nil, err
        }
        det.Order.Status = model.OrderPreparing
    }
    if err := tx.Commit(); err != nil {
        return nil, nil, err
    }
    committed = true

    newItems := make([]model.OrderItem, 0, len(items))
    for _, it := range det.Items {
        if _, ok := before[it.ID]; !ok {
            newItems = append(newItems, it)
        }
    }
    return det, newItems, nil
}

// ApplyItemStatus writes a new status for one item, then recomputes the
// aggregate order status from the full, locked item set in the same
// transaction.  A reader can therefore never observe an order marked
// `ready` while one of its items is still `pending`.
func (r *OrderRepo) ApplyItemStatus(ctx context.Context, itemID uint64, status string) (*ItemStatusChange, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var orderID uint64
    err = tx.QueryRowContext(ctx,
        `SELECT order_id FROM order_items WHERE id = ? FOR UPDATE`, itemID).Scan(&orderID)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    // Lock the order row before touching items so concurrent updates to
    // different items of the same order serialize on the recomputation.
    ord, err := r.orderForUpdateTx(ctx, tx, orderID)
    if err != nil {
        return nil, err
    }
    if _, err := tx.ExecContext(ctx,
        `UPDATE order_items SET status = ? WHERE id = ?`, status, itemID); err != nil {
        return nil, err
    }
    det, err := r.detailTx(ctx, tx, orderID, true)
    if err != nil {
        return nil, err
    }
    change := &ItemStatusChange{Detail: det, PreviousOrderStatus: ord.Status}
    for _, it := range det.Items {
        if it.ID == itemID {
            change.Item = it
            break
        }
    }
    if next, ok := model.DeriveOrderStatus(ord.Status, det.Items); ok {
        if _, err := tx.ExecContext(ctx,
            `UPDATE orders SET status = ? WHERE id = ?`, next, orderID); err != nil {
            return nil, err
        }
        det.Order.Status = next
        change.OrderTransitioned = true
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return change, nil
}

// SetOrderStatus writes a staff-driven terminal status (served, billed,
// cancelled).  Non-terminal statuses are derived, never set directly,
// and are rejected with ErrConflict.
func (r *OrderRepo) SetOrderStatus(ctx context.Context, orderID uint64, status string) (*OrderDetail, error) {
    if !model.TerminalOrderStatus(status) {
        return nil, ErrConflict
    }
    return r.updateOrderTx(ctx, orderID, func(ctx context.Context, tx *sql.Tx, ord *model.Order) error {
        if model.TerminalOrderStatus(ord.Status) {
            return ErrConflict
        }
        _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, orderID)
        return err
    })
}

// SetKitchenDecision records a kitchen accept or reject.  Reject stores
// the mandatory reason in kitchen_note; the caller validates that the
// reason is present.
func (r *OrderRepo) SetKitchenDecision(ctx context.Context, orderID uint64, accepted bool, reason string) (*OrderDetail, error) {
    status := model.KitchenAccepted
    if !accepted {
        status = model.KitchenRejected
    }
    return r.updateOrderTx(ctx, orderID, func(ctx context.Context, tx *sql.Tx, ord *model.Order) error {
        if ord.KitchenStatus != model.KitchenPending {
            return ErrConflict
        }
        var note interface{}
        if reason != "" {
            note = reason
        }
        _, err := tx.ExecContext(ctx,
            `UPDATE orders SET kitchen_status = ?, kitchen_note = ? WHERE id = ?`,
            status, note, orderID)
        return err
    })
}

// TransferStations moves all of an order's items from one kitchen
// station to the other.  ErrConflict is returned when the order has no
// items on the source station.
func (r *OrderRepo) TransferStations(ctx context.Context, orderID uint64, from, to string) (*OrderDetail, error) {
    return r.updateOrderTx(ctx, orderID, func(ctx context.Context, tx *sql.Tx, ord *model.Order) error {
        res, err := tx.ExecContext(ctx,
            `UPDATE order_items SET station = ? WHERE order_id = ? AND station = ?`,
            to, orderID, from)
        if err != nil {
            return err
        }
        n, err := res.RowsAffected()
        if err != nil {
            return err
        }
        if n == 0 {
            return ErrConflict
        }
        return nil
    })
}

// GetDetail loads an order with its items outside of any transaction.
func (r *OrderRepo) GetDetail(ctx context.Context, orderID uint64) (*OrderDetail, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    defer func() { _ = tx.Rollback() }()
    return r.detailTx(ctx, tx, orderID, false)
}

// updateOrderTx runs fn against a locked order row and returns the
// fresh detail after commit.
func (r *OrderRepo) updateOrderTx(ctx context.Context, orderID uint64, fn func(context.Context, *sql.Tx, *model.Order) error) (*OrderDetail, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    ord, err := r.orderForUpdateTx(ctx, tx, orderID)
    if err != nil {
        return nil, err
    }
    if err := fn(ctx, tx, ord); err != nil {
        return nil, err
    }
    det, err := r.detailTx(ctx, tx, orderID, false)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return det, nil
}

type menuRow struct {
    name       string
    station    string
    priceCents uint32
}

// menuItemsTx resolves the referenced menu items, validating existence
// and quantities.  ErrNotFound covers unknown menu item IDs.
func (r *OrderRepo) menuItemsTx(ctx context.Context, tx *sql.Tx, items []OrderItemInput) (map[uint64]menuRow, error) {
    if len(items) == 0 {
        return nil, ErrNotFound
    }
    ids := make([]interface{}, 0, len(items))
    placeholders := make([]string, 0, len(items))
    for _, it := range items {
        ids = append(ids, it.MenuItemID)
        placeholders = append(placeholders, "?")
    }
    q := `SELECT id, name, station, price_cents FROM menu_items WHERE id IN (` +
        strings.Join(placeholders, ",") + `)`
    rows, err := tx.QueryContext(ctx, q, ids...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make(map[uint64]menuRow, len(items))
    for rows.Next() {
        var id uint64
        var m menuRow
        if err := rows.Scan(&id, &m.name, &m.station, &m.priceCents); err != nil {
            return nil, err
        }
        out[id] = m
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    for _, it := range items {
        if _, ok := out[it.MenuItemID]; !ok {
            return nil, ErrNotFound
        }
    }
    return out, nil
}

// insertItemsTx bulk-inserts order_items rows, denormalizing the station
// and unit price from the resolved menu rows.
func (r *OrderRepo) insertItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []OrderItemInput, menu map[uint64]menuRow) error {
    query := `INSERT INTO order_items (order_id, menu_item_id, station, quantity, unit_price_cents, total_price_cents, status) VALUES `
    args := make([]interface{}, 0, len(items)*7)
    for i, it := range items {
        if it.Quantity == 0 {
            return ErrConflict
        }
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, 'pending')"
        m := menu[it.MenuItemID]
        args = append(args, orderID, it.MenuItemID, m.station, it.Quantity,
            m.priceCents, m.priceCents*it.Quantity)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// orderForUpdateTx loads and locks one order row.
func (r *OrderRepo) orderForUpdateTx(ctx context.Context, tx *sql.Tx, orderID uint64) (*model.Order, error) {
    const q = `SELECT id, table_id, waiter_id, customer_id, status, kitchen_status, total_amount_cents, created_at, updated_at
               FROM orders WHERE id = ? FOR UPDATE`
    var o model.Order
    var waiterID, customerID sql.NullInt64
    err := tx.QueryRowContext(ctx, q, orderID).Scan(
        &o.ID, &o.TableID, &waiterID, &customerID,
        &o.Status, &o.KitchenStatus, &o.TotalAmountCents, &o.CreatedAt, &o.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if waiterID.Valid {
        w := uint64(waiterID.Int64)
        o.WaiterID = &w
    }
    if customerID.Valid {
        cu := uint64(customerID.Int64)
        o.CustomerID = &cu
    }
    return &o, nil
}

// itemIDsTx returns the set of item IDs currently on an order.
func (r *OrderRepo) itemIDsTx(ctx context.Context, tx *sql.Tx, orderID uint64) (map[uint64]struct{}, error) {
    rows, err := tx.QueryContext(ctx, `SELECT id FROM order_items WHERE order_id = ?`, orderID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := map[uint64]struct{}{}
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        out[id] = struct{}{}
    }
    return out, rows.Err()
}

// detailTx assembles an order with all of its items.  When lockItems is
// true the item rows are locked so a concurrent item update cannot slip
// between the read and the derived-status write.
func (r *OrderRepo) detailTx(ctx context.Context, tx *sql.Tx, orderID uint64, lockItems bool) (*OrderDetail, error) {
    const q = `SELECT id, table_id, waiter_id, customer_id, status, kitchen_status, total_amount_cents, created_at, updated_at
               FROM orders WHERE id = ?`
    var det OrderDetail
    var waiterID, customerID sql.NullInt64
    err := tx.QueryRowContext(ctx, q, orderID).Scan(
        &det.Order.ID, &det.Order.TableID, &waiterID, &customerID,
        &det.Order.Status, &det.Order.KitchenStatus, &det.Order.TotalAmountCents,
        &det.Order.CreatedAt, &det.Order.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if waiterID.Valid {
        w := uint64(waiterID.Int64)
        det.Order.WaiterID = &w
    }
    if customerID.Valid {
        cu := uint64(customerID.Int64)
        det.Order.CustomerID = &cu
    }
    itemQ := `SELECT oi.id, oi.order_id, oi.menu_item_id, mi.name, oi.station, oi.quantity,
                     oi.unit_price_cents, oi.total_price_cents, oi.status
              FROM order_items oi
              JOIN menu_items mi ON mi.id = oi.menu_item_id
              WHERE oi.order_id = ?
              ORDER BY oi.id`
    if lockItems {
        itemQ += " FOR UPDATE"
    }
    rows, err := tx.QueryContext(ctx, itemQ, orderID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    det.Items = make([]model.OrderItem, 0)
    for rows.Next() {
        var it model.OrderItem
        if err := rows.Scan(
            &it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Station,
            &it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents, &it.Status,
        ); err != nil {
            return nil, err
        }
        det.Items = append(det.Items, it)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return &det, nil
}
