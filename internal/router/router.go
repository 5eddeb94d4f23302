package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/hotel-operations/internal/config"
    "github.com/iliyamo/hotel-operations/internal/handler"
    "github.com/iliyamo/hotel-operations/internal/health"
    "github.com/iliyamo/hotel-operations/internal/middleware"
    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/realtime"
)

// RegisterRoutes registers routes that do not require authentication.
// /healthz reports process liveness; /readyz reflects the database
// probe run by the retry supervisor.
func RegisterRoutes(e *echo.Echo, sup *health.Supervisor) {
    e.GET("/healthz", handler.Health)
    e.GET("/readyz", handler.Ready(sup))
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth; protected endpoints
// live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // Rotating refresh: exchanges the refresh token for a new pair.
    g.POST("/refresh", a.Refresh)
    // Non-rotating refresh: new access token only.
    g.POST("/refresh-access", a.RefreshAccess)
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
    auth.GET("/me", a.Me)

    // Staff provisioning is manager-only.
    staff := e.Group("/v1/staff",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleManager),
    )
    staff.POST("/register", a.RegisterStaff)
}

// RegisterPublic registers the unauthenticated browse endpoints.  The
// Redis response cache wraps these routes when a client is configured;
// inventory changes slowly so short TTLs are safe.
func RegisterPublic(e *echo.Echo, r *handler.RoomHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
    g := e.Group("/v1", middleware.NewRedisCache(cacheCfg, rdb))
    g.GET("/room-types", r.ListRoomTypes)
    g.GET("/room-types/:id/rooms", r.ListRooms)
    g.GET("/room-types/:id/availability", r.Availability)
}

// RegisterBookings registers the room allocation API.  Every route
// requires a valid access token; status transitions and the active list
// are staff-scoped.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
    g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret))
    g.POST("", b.Reserve)
    g.DELETE("/:id", b.Cancel)

    staff := e.Group("/v1/bookings",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleWaiter, model.RoleManager),
    )
    staff.PATCH("/:id/status", b.UpdateStatus)
    staff.GET("/active", b.ListActive)
}

// RegisterRealtime registers the websocket endpoint.  Authentication
// happens inside the handler, before the upgrade, so both query-param
// and header credentials work.
func RegisterRealtime(e *echo.Echo, reg *realtime.Registry, rt *realtime.Router) {
    e.GET("/v1/ws", realtime.Handler(reg, rt))
}
