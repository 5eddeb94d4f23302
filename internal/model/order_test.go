package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func items(statuses ...string) []OrderItem {
    out := make([]OrderItem, 0, len(statuses))
    for i, s := range statuses {
        out = append(out, OrderItem{ID: uint64(i + 1), Status: s})
    }
    return out
}

func TestDeriveOrderStatus(t *testing.T) {
    tests := []struct {
        name       string
        current    string
        items      []OrderItem
        want       string
        transition bool
    }{
        {
            name:       "all items ready moves order to ready",
            current:    OrderPreparing,
            items:      items(ItemReady, ItemReady),
            want:       OrderReady,
            transition: true,
        },
        {
            name:       "served items count as ready",
            current:    OrderPreparing,
            items:      items(ItemServed, ItemReady),
            want:       OrderReady,
            transition: true,
        },
        {
            name:       "cancelled items are excluded from the ready check",
            current:    OrderPreparing,
            items:      items(ItemReady, ItemCancelled),
            want:       OrderReady,
            transition: true,
        },
        {
            name:       "all items cancelled never yields ready",
            current:    OrderPending,
            items:      items(ItemCancelled, ItemCancelled),
            want:       OrderPending,
            transition: false,
        },
        {
            name:       "first preparing item moves pending order to preparing",
            current:    OrderPending,
            items:      items(ItemPreparing, ItemPending),
            want:       OrderPreparing,
            transition: true,
        },
        {
            name:       "preparing item leaves an already preparing order alone",
            current:    OrderPreparing,
            items:      items(ItemPreparing, ItemPending),
            want:       OrderPreparing,
            transition: false,
        },
        {
            name:       "pending items only cause no transition",
            current:    OrderPending,
            items:      items(ItemPending, ItemPending),
            want:       OrderPending,
            transition: false,
        },
        {
            name:       "order already ready stays ready without a transition",
            current:    OrderReady,
            items:      items(ItemReady),
            want:       OrderReady,
            transition: false,
        },
        {
            name:       "served order never transitions",
            current:    OrderServed,
            items:      items(ItemPreparing),
            want:       OrderServed,
            transition: false,
        },
        {
            name:       "billed order never transitions",
            current:    OrderBilled,
            items:      items(ItemReady),
            want:       OrderBilled,
            transition: false,
        },
        {
            name:       "cancelled order never transitions",
            current:    OrderCancelled,
            items:      items(ItemReady, ItemReady),
            want:       OrderCancelled,
            transition: false,
        },
        {
            name:       "empty item set causes no transition",
            current:    OrderPending,
            items:      nil,
            want:       OrderPending,
            transition: false,
        },
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            got, transition := DeriveOrderStatus(tt.current, tt.items)
            assert.Equal(t, tt.want, got)
            assert.Equal(t, tt.transition, transition)
        })
    }
}

func TestTerminalOrderStatus(t *testing.T) {
    assert.True(t, TerminalOrderStatus(OrderServed))
    assert.True(t, TerminalOrderStatus(OrderBilled))
    assert.True(t, TerminalOrderStatus(OrderCancelled))
    assert.False(t, TerminalOrderStatus(OrderPending))
    assert.False(t, TerminalOrderStatus(OrderPreparing))
    assert.False(t, TerminalOrderStatus(OrderReady))
}

func TestItemStatusValid(t *testing.T) {
    for _, s := range []string{ItemPending, ItemPreparing, ItemReady, ItemServed, ItemCancelled} {
        assert.True(t, ItemStatusValid(s), s)
    }
    assert.False(t, ItemStatusValid("burnt"))
    assert.False(t, ItemStatusValid(""))
}
