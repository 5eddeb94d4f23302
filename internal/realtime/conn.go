package realtime

import (
    "context"
    "log"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/gorilla/websocket"
)

const (
    writeWait      = 10 * time.Second       // deadline for a single outbound write
    pongWait       = 60 * time.Second       // read deadline refreshed on every pong
    pingPeriod     = (pongWait * 9) / 10    // must be shorter than pongWait
    maxMessageSize = 64 * 1024              // inbound frames are small commands
    sendBuffer     = 64                     // outbound queue per connection
)

// Identity is who a connection belongs to.  Degraded identities were
// authenticated from token claims alone because the account lookup hit
// a transient storage failure; they carry reduced channel permissions.
type Identity struct {
    UserID   uint64
    Role     string
    Degraded bool
}

// Conn is one live realtime session.  It is owned by the Registry; the
// websocket read/write pumps are its only goroutines.  Channel
// membership is tracked by the Registry, not here, so membership
// reads/writes share a single lock.
type Conn struct {
    ID        string
    Identity  Identity
    CreatedAt time.Time

    ws   *websocket.Conn
    send chan Envelope
    done chan struct{}

    closeMu sync.Mutex
    closed  bool
}

// newConn wraps an upgraded websocket connection.  ws may be nil in
// tests; only the pumps touch it.
func newConn(ws *websocket.Conn, id Identity) *Conn {
    return &Conn{
        ID:        uuid.NewString(),
        Identity:  id,
        CreatedAt: time.Now().UTC(),
        ws:        ws,
        send:      make(chan Envelope, sendBuffer),
        done:      make(chan struct{}),
    }
}

// enqueue places an envelope on the outbound queue without blocking.
// A slow consumer loses events rather than stalling the broadcaster;
// delivery is best-effort by design.  send is never closed, so a
// broadcast snapshot that races a disconnect drops the envelope here
// instead of panicking on a closed channel.
func (c *Conn) enqueue(env Envelope) bool {
    c.closeMu.Lock()
    defer c.closeMu.Unlock()
    if c.closed {
        return false
    }
    select {
    case c.send <- env:
        return true
    default:
        return false
    }
}

// shutdown marks the connection closed and signals the write pump.
// Safe to call more than once.
func (c *Conn) shutdown() {
    c.closeMu.Lock()
    defer c.closeMu.Unlock()
    if c.closed {
        return
    }
    c.closed = true
    close(c.done)
}

// readPump reads inbound frames and hands them to the router until the
// connection errors or closes, then runs the registry cleanup exactly
// once from this goroutine.
func (c *Conn) readPump(ctx context.Context, reg *Registry, rt *Router) {
    defer func() {
        reg.Disconnect(c)
        _ = c.ws.Close()
    }()
    c.ws.SetReadLimit(maxMessageSize)
    _ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
    c.ws.SetPongHandler(func(string) error {
        return c.ws.SetReadDeadline(time.Now().Add(pongWait))
    })
    for {
        _, raw, err := c.ws.ReadMessage()
        if err != nil {
            if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
                log.Printf("realtime: connection %s read error: %v", c.ID, err)
            }
            return
        }
        rt.HandleFrame(ctx, c, raw)
    }
}

// writePump drains the outbound queue to the websocket and keeps the
// connection alive with periodic pings.
func (c *Conn) writePump() {
    ticker := time.NewTicker(pingPeriod)
    defer func() {
        ticker.Stop()
        _ = c.ws.Close()
    }()
    for {
        select {
        case <-c.done:
            _ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
            _ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
            return
        case env := <-c.send:
            _ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
            if err := c.ws.WriteJSON(env); err != nil {
                return
            }
        case <-ticker.C:
            _ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
            if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
                return
            }
        }
    }
}
