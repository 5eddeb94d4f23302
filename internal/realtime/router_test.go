package realtime

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/hotel-operations/internal/health"
    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/queue"
    "github.com/iliyamo/hotel-operations/internal/repository"
)

type fakeOrders struct {
    detail *repository.OrderDetail
    change *repository.ItemStatusChange
    err    error
    calls  []string
}

func (f *fakeOrders) CreateOrder(ctx context.Context, in repository.NewOrderInput) (*repository.OrderDetail, error) {
    f.calls = append(f.calls, "CreateOrder")
    return f.detail, f.err
}
func (f *fakeOrders) AddItems(ctx context.Context, orderID uint64, items []repository.OrderItemInput) (*repository.OrderDetail, []model.OrderItem, error) {
    f.calls = append(f.calls, "AddItems")
    return f.detail, nil, f.err
}
func (f *fakeOrders) ApplyItemStatus(ctx context.Context, itemID uint64, status string) (*repository.ItemStatusChange, error) {
    f.calls = append(f.calls, "ApplyItemStatus")
    return f.change, f.err
}
func (f *fakeOrders) SetOrderStatus(ctx context.Context, orderID uint64, status string) (*repository.OrderDetail, error) {
    f.calls = append(f.calls, "SetOrderStatus")
    return f.detail, f.err
}
func (f *fakeOrders) SetKitchenDecision(ctx context.Context, orderID uint64, accepted bool, reason string) (*repository.OrderDetail, error) {
    f.calls = append(f.calls, "SetKitchenDecision")
    return f.detail, f.err
}
func (f *fakeOrders) TransferStations(ctx context.Context, orderID uint64, from, to string) (*repository.OrderDetail, error) {
    f.calls = append(f.calls, "TransferStations")
    return f.detail, f.err
}

type fakeTables struct {
    table *model.DiningTable
    err   error
}

func (f *fakeTables) UpdateStatus(ctx context.Context, id uint64, status string) (*model.DiningTable, error) {
    return f.table, f.err
}

func uptr(v uint64) *uint64 { return &v }

func detailWith(waiterID, customerID *uint64, stations ...string) *repository.OrderDetail {
    det := &repository.OrderDetail{
        Order: model.Order{
            ID:            42,
            TableID:       5,
            WaiterID:      waiterID,
            CustomerID:    customerID,
            Status:        model.OrderPending,
            KitchenStatus: model.KitchenPending,
        },
    }
    for i, s := range stations {
        det.Items = append(det.Items, model.OrderItem{
            ID: uint64(i + 1), OrderID: 42, Station: s, Quantity: 1, Status: model.ItemPending,
        })
    }
    return det
}

type fixture struct {
    reg    *Registry
    rt     *Router
    orders *fakeOrders
    tables *fakeTables

    chef, bartender, waiter, otherWaiter, manager, customer *Conn
}

func newFixture(t *testing.T, orders *fakeOrders, tables *fakeTables) *fixture {
    t.Helper()
    reg := testRegistry()
    sup := health.NewSupervisor(nil, time.Millisecond, time.Minute)
    rt := NewRouter(reg, orders, tables, sup, time.Second, nil)

    f := &fixture{reg: reg, rt: rt, orders: orders, tables: tables}
    f.chef = connFor(reg, 10, model.RoleChef)
    f.bartender = connFor(reg, 11, model.RoleBartender)
    f.waiter = connFor(reg, 2, model.RoleWaiter)
    f.otherWaiter = connFor(reg, 3, model.RoleWaiter)
    f.manager = connFor(reg, 4, model.RoleManager)
    f.customer = connFor(reg, 7, model.RoleGuest)

    require.NoError(t, reg.Join(f.chef, StationChannel(model.StationChef)))
    require.NoError(t, reg.Join(f.bartender, StationChannel(model.StationBartender)))
    require.NoError(t, reg.Join(f.waiter, UserChannel(2)))
    require.NoError(t, reg.Join(f.waiter, ChannelWaiters))
    require.NoError(t, reg.Join(f.otherWaiter, ChannelWaiters))
    require.NoError(t, reg.Join(f.manager, ChannelManagers))
    require.NoError(t, reg.Join(f.customer, UserChannel(7)))
    return f
}

func events(c *Conn) []string {
    var out []string
    for _, env := range drain(c) {
        out = append(out, env.Event)
    }
    return out
}

func TestHandleFrameUnknownCommand(t *testing.T) {
    f := newFixture(t, &fakeOrders{}, &fakeTables{})
    f.rt.HandleFrame(context.Background(), f.waiter, []byte(`{"event":"order:burn","data":{}}`))
    envs := drain(f.waiter)
    require.Len(t, envs, 1)
    assert.Equal(t, EvtError, envs[0].Event)
}

func TestHandleFrameMalformed(t *testing.T) {
    f := newFixture(t, &fakeOrders{}, &fakeTables{})
    f.rt.HandleFrame(context.Background(), f.waiter, []byte(`{not json`))
    envs := drain(f.waiter)
    require.Len(t, envs, 1)
    assert.Equal(t, EvtError, envs[0].Event)
}

func TestJoinCommand(t *testing.T) {
    f := newFixture(t, &fakeOrders{}, &fakeTables{})
    m := connFor(f.reg, 20, model.RoleManager)

    f.rt.HandleFrame(context.Background(), m, []byte(`{"event":"join","data":{"channel":"managers"}}`))
    envs := drain(m)
    require.Len(t, envs, 1)
    assert.Equal(t, EvtJoined, envs[0].Event)
    assert.Len(t, f.reg.ChannelMembers(ChannelManagers), 2)
}

func TestJoinCommandForbidden(t *testing.T) {
    f := newFixture(t, &fakeOrders{}, &fakeTables{})
    f.rt.HandleFrame(context.Background(), f.customer, []byte(`{"event":"join","data":{"channel":"managers"}}`))
    envs := drain(f.customer)
    require.Len(t, envs, 1)
    assert.Equal(t, EvtError, envs[0].Event)
}

func TestNewOrderFansOutToStationsAndManagers(t *testing.T) {
    orders := &fakeOrders{detail: detailWith(uptr(2), nil, model.StationChef, model.StationBartender)}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.waiter,
        []byte(`{"event":"order:new","data":{"table_id":5,"items":[{"menu_item_id":1,"quantity":2}]}}`))

    assert.Equal(t, []string{"CreateOrder"}, orders.calls)
    assert.Equal(t, []string{EvtOrderCreated}, events(f.chef))
    assert.Equal(t, []string{EvtOrderCreated}, events(f.bartender))
    assert.Equal(t, []string{EvtOrderCreated}, events(f.manager))
    assert.Empty(t, events(f.otherWaiter))
    assert.Empty(t, events(f.customer))
}

func TestNewOrderRejectedForKitchenRoles(t *testing.T) {
    orders := &fakeOrders{}
    f := newFixture(t, orders, &fakeTables{})
    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"order:new","data":{"table_id":5,"items":[{"menu_item_id":1,"quantity":1}]}}`))
    assert.Empty(t, orders.calls)
    assert.Equal(t, []string{EvtError}, events(f.chef))
}

func TestItemStatusTargetsWaiterChannelNotWaiters(t *testing.T) {
    det := detailWith(uptr(2), uptr(7), model.StationChef)
    orders := &fakeOrders{change: &repository.ItemStatusChange{Detail: det, Item: det.Items[0]}}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"order:item_status","data":{"item_id":1,"status":"preparing"}}`))

    // Owning waiter on its private channel, never the waiters broadcast.
    assert.Equal(t, []string{EvtItemStatus}, events(f.waiter))
    assert.Empty(t, events(f.otherWaiter))
    // Customer channel, both kitchens and managers all see it.
    assert.Equal(t, []string{EvtItemStatus}, events(f.customer))
    assert.Equal(t, []string{EvtItemStatus}, events(f.chef))
    assert.Equal(t, []string{EvtItemStatus}, events(f.bartender))
    assert.Equal(t, []string{EvtItemStatus}, events(f.manager))
}

func TestItemStatusWaiterlessOrderUsesWaitersBroadcast(t *testing.T) {
    det := detailWith(nil, nil, model.StationChef)
    orders := &fakeOrders{change: &repository.ItemStatusChange{Detail: det, Item: det.Items[0]}}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"order:item_status","data":{"item_id":1,"status":"ready"}}`))

    assert.Equal(t, []string{EvtItemStatus}, events(f.waiter))
    assert.Equal(t, []string{EvtItemStatus}, events(f.otherWaiter))
}

func TestItemStatusEmitsDerivedTransition(t *testing.T) {
    det := detailWith(uptr(2), nil, model.StationChef)
    det.Order.Status = model.OrderReady
    orders := &fakeOrders{change: &repository.ItemStatusChange{
        Detail:              det,
        Item:                det.Items[0],
        OrderTransitioned:   true,
        PreviousOrderStatus: model.OrderPreparing,
    }}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"order:item_status","data":{"item_id":1,"status":"ready"}}`))

    assert.Equal(t, []string{EvtItemStatus, EvtOrderStatus}, events(f.waiter))
    assert.Equal(t, []string{EvtItemStatus, EvtOrderStatus}, events(f.manager))
    // Kitchens get the item event but not the derived order event.
    assert.Equal(t, []string{EvtItemStatus}, events(f.chef))
}

func TestItemStatusInvalidStatusRejected(t *testing.T) {
    orders := &fakeOrders{}
    f := newFixture(t, orders, &fakeTables{})
    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"order:item_status","data":{"item_id":1,"status":"burnt"}}`))
    assert.Empty(t, orders.calls)
    assert.Equal(t, []string{EvtError}, events(f.chef))
}

func TestOrderStatusOnlyTerminalStatesSettable(t *testing.T) {
    orders := &fakeOrders{detail: detailWith(uptr(2), nil, model.StationChef)}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.waiter,
        []byte(`{"event":"order:status","data":{"order_id":42,"status":"ready"}}`))
    assert.Empty(t, orders.calls)
    assert.Equal(t, []string{EvtError}, events(f.waiter))

    f.rt.HandleFrame(context.Background(), f.waiter,
        []byte(`{"event":"order:status","data":{"order_id":42,"status":"served"}}`))
    assert.Equal(t, []string{"SetOrderStatus"}, orders.calls)
    assert.Equal(t, []string{EvtOrderStatus}, events(f.waiter))
    assert.Equal(t, []string{EvtOrderStatus}, events(f.manager))
}

func TestKitchenRejectRequiresReason(t *testing.T) {
    orders := &fakeOrders{detail: detailWith(uptr(2), nil, model.StationChef)}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"kitchen:reject","data":{"order_id":42}}`))
    assert.Empty(t, orders.calls)
    assert.Equal(t, []string{EvtError}, events(f.chef))

    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"kitchen:reject","data":{"order_id":42,"reason":"out of stock"}}`))
    assert.Equal(t, []string{"SetKitchenDecision"}, orders.calls)
    envs := drain(f.waiter)
    require.Len(t, envs, 1)
    assert.Equal(t, EvtKitchenDecision, envs[0].Event)
}

func TestKitchenAcceptNeedsNoReason(t *testing.T) {
    orders := &fakeOrders{detail: detailWith(uptr(2), nil, model.StationChef)}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.bartender,
        []byte(`{"event":"kitchen:accept","data":{"order_id":42}}`))
    assert.Equal(t, []string{"SetKitchenDecision"}, orders.calls)
    assert.Equal(t, []string{EvtKitchenDecision}, events(f.waiter))
    assert.Equal(t, []string{EvtKitchenDecision}, events(f.manager))
}

func TestTransferDirections(t *testing.T) {
    orders := &fakeOrders{detail: detailWith(uptr(2), nil, model.StationBartender)}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"order:transfer","data":{"order_id":42,"from_station":"chef","to_station":"bartender"}}`))

    chefEnvs := drain(f.chef)
    require.Len(t, chefEnvs, 1)
    assert.Equal(t, EvtOrderTransferred, chefEnvs[0].Event)
    chefPayload, ok := chefEnvs[0].Data.(transferPayload)
    require.True(t, ok)
    assert.Equal(t, "out", chefPayload.Direction)

    barEnvs := drain(f.bartender)
    require.Len(t, barEnvs, 1)
    barPayload, ok := barEnvs[0].Data.(transferPayload)
    require.True(t, ok)
    assert.Equal(t, "in", barPayload.Direction)

    assert.Equal(t, []string{EvtOrderTransferred}, events(f.waiter))
    assert.Equal(t, []string{EvtOrderTransferred}, events(f.manager))
}

func TestTransferRejectsInvalidStations(t *testing.T) {
    orders := &fakeOrders{}
    f := newFixture(t, orders, &fakeTables{})
    f.rt.HandleFrame(context.Background(), f.chef,
        []byte(`{"event":"order:transfer","data":{"order_id":42,"from_station":"chef","to_station":"chef"}}`))
    assert.Empty(t, orders.calls)
    assert.Equal(t, []string{EvtError}, events(f.chef))
}

func TestTableStatusNotifiesFloorStaff(t *testing.T) {
    tables := &fakeTables{table: &model.DiningTable{ID: 5, TableNumber: 12, Status: model.TableCleaning}}
    f := newFixture(t, &fakeOrders{}, tables)

    f.rt.HandleFrame(context.Background(), f.waiter,
        []byte(`{"event":"table:status","data":{"table_id":5,"status":"cleaning"}}`))

    assert.Equal(t, []string{EvtTableStatus}, events(f.waiter))
    assert.Equal(t, []string{EvtTableStatus}, events(f.otherWaiter))
    assert.Equal(t, []string{EvtTableStatus}, events(f.manager))
    assert.Empty(t, events(f.chef))
}

func TestPersistConflictReportsToOrigin(t *testing.T) {
    orders := &fakeOrders{err: repository.ErrConflict}
    f := newFixture(t, orders, &fakeTables{})

    f.rt.HandleFrame(context.Background(), f.waiter,
        []byte(`{"event":"order:status","data":{"order_id":42,"status":"cancelled"}}`))

    envs := drain(f.waiter)
    require.Len(t, envs, 1)
    assert.Equal(t, EvtError, envs[0].Event)
    // Nothing was broadcast to anyone else.
    assert.Empty(t, events(f.manager))
}

func TestEmitPublishesToBroker(t *testing.T) {
    orders := &fakeOrders{detail: detailWith(uptr(2), nil, model.StationChef)}
    f := newFixture(t, orders, &fakeTables{})

    var published []queue.OrderEvent
    f.rt.publish = func(ctx context.Context, ev queue.OrderEvent) error {
        published = append(published, ev)
        return nil
    }

    f.rt.HandleFrame(context.Background(), f.waiter,
        []byte(`{"event":"order:status","data":{"order_id":42,"status":"billed"}}`))

    require.Len(t, published, 1)
    assert.Equal(t, EvtOrderStatus, published[0].Event)
    assert.Equal(t, uint64(42), published[0].OrderID)
}
