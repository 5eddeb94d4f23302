package realtime

import (
    "net/http"
    "strings"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
    ReadBufferSize:  1024,
    WriteBufferSize: 1024,
    // Browser clients connect from the hotel's own frontends; origin
    // enforcement happens at the reverse proxy.
    CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades an HTTP request to a realtime session.  The access
// token is taken from the `token` query parameter or from a bearer
// Authorization header.  Authentication happens before the upgrade so a
// rejected client gets a proper HTTP status instead of an immediate
// close frame.
func Handler(reg *Registry, rt *Router) echo.HandlerFunc {
    return func(c echo.Context) error {
        token := c.QueryParam("token")
        if token == "" {
            h := c.Request().Header.Get("Authorization")
            if strings.HasPrefix(h, "Bearer ") {
                token = strings.TrimPrefix(h, "Bearer ")
            }
        }
        if token == "" {
            return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
        }
        identity, err := reg.Authenticate(c.Request().Context(), token)
        if err != nil {
            return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
        }

        ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
        if err != nil {
            return err
        }
        conn := newConn(ws, identity)
        reg.Register(conn)

        go conn.writePump()
        // The read pump owns the connection lifecycle; it runs on the
        // request goroutine until the client goes away.
        conn.readPump(c.Request().Context(), reg, rt)
        return nil
    }
}
