package main // Entry point package

import (
    "context" // Cancellation for background workers
    "log"     // Logging library

    "github.com/joho/godotenv"    // Loads .env files into the environment
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/hotel-operations/internal/booking"    // Room allocation service
    "github.com/iliyamo/hotel-operations/internal/config"     // Internal config loader
    "github.com/iliyamo/hotel-operations/internal/database"   // MySQL connector
    "github.com/iliyamo/hotel-operations/internal/handler"    // HTTP handlers
    "github.com/iliyamo/hotel-operations/internal/health"     // Retry supervisor + DB probe
    "github.com/iliyamo/hotel-operations/internal/middleware" // Rate limiting
    "github.com/iliyamo/hotel-operations/internal/queue"      // Broker consumer
    "github.com/iliyamo/hotel-operations/internal/realtime"   // Websocket registry + router
    "github.com/iliyamo/hotel-operations/internal/repository" // DB repositories
    "github.com/iliyamo/hotel-operations/internal/router"     // Route registration
    queuepub "github.com/iliyamo/hotel-operations/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real deployments set env vars directly
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database connect failed: %v", err)
    }
    defer db.Close()

    // Repositories
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    rooms := repository.NewRoomRepo(db)
    bookings := repository.NewBookingRepo(db)
    orders := repository.NewOrderRepo(db)
    tables := repository.NewTableRepo(db)

    // Retry supervisor wraps realtime persistence and probes the DB.
    sup := health.NewSupervisor(db, cfg.RetryBaseDelay, cfg.ProbeInterval)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go sup.Run(ctx)

    // Realtime layer
    registry := realtime.NewRegistry(users, sup, cfg.JWTSecret)
    rt := realtime.NewRouter(registry, orders, tables, sup, cfg.DBOpTimeout, queuepub.PublishOrderEvent)

    // Booking allocation
    alloc := booking.NewAllocator(db, rooms, bookings, cfg.DBOpTimeout)

    // Broker consumer mirrors order events into logs/orders.log.
    go func() {
        if err := queue.StartOrderConsumer(); err != nil {
            log.Printf("order-consumer: stopped: %v", err)
        }
    }()

    // Redis-backed middlewares degrade to no-ops when Redis is absent.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and response cache disabled")
    }

    e := echo.New()
    e.HideBanner = true
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    router.RegisterRoutes(e, sup)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
    router.RegisterPublic(e, handler.NewRoomHandler(rooms), config.LoadCacheConfig(), rdb)
    router.RegisterBookings(e, handler.NewBookingHandler(alloc), cfg.JWTSecret)
    router.RegisterRealtime(e, registry, rt)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
