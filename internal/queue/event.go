// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderEvent is published for every order lifecycle change that leaves
// the realtime layer.  It carries enough information for downstream
// consumers to log, notify, or feed analytics without querying the
// primary database.
type OrderEvent struct {
    Event            string `json:"event"`
    OrderID          uint64 `json:"order_id"`
    TableID          uint64 `json:"table_id"`
    Status           string `json:"status"`
    KitchenStatus    string `json:"kitchen_status"`
    TotalAmountCents uint32 `json:"total_amount_cents"`
    OccurredAt       string `json:"occurred_at"`
}
