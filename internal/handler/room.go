package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-operations/internal/repository"
)

// RoomHandler serves the public browsing endpoints: room types and the
// rooms within a type.  These routes sit behind the Redis response
// cache since the inventory changes rarely.
type RoomHandler struct {
    Rooms *repository.RoomRepo
}

func NewRoomHandler(r *repository.RoomRepo) *RoomHandler { return &RoomHandler{Rooms: r} }

type roomTypeResp struct {
    ID                 uint64 `json:"id"`
    Name               string `json:"name"`
    MaxOccupancy       uint32 `json:"max_occupancy"`
    PriceCentsPerNight uint32 `json:"price_cents_per_night"`
}

type roomResp struct {
    ID         uint64 `json:"id"`
    RoomNumber uint32 `json:"room_number"`
    Status     string `json:"status"`
}

// ListRoomTypes returns every room type with its nightly rate.
func (h *RoomHandler) ListRoomTypes(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    types, err := h.Rooms.ListRoomTypes(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]roomTypeResp, 0, len(types))
    for _, rt := range types {
        out = append(out, roomTypeResp{
            ID:                 rt.ID,
            Name:               rt.Name,
            MaxOccupancy:       rt.MaxOccupancy,
            PriceCentsPerNight: rt.PriceCentsPerNight,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"room_types": out})
}

// ListRooms returns the rooms of one type with their current status.
func (h *RoomHandler) ListRooms(c echo.Context) error {
    typeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || typeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room type id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Rooms.GetRoomType(ctx, typeID); err != nil {
        if err == repository.ErrNotFound {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "room type not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    rooms, err := h.Rooms.ListByType(ctx, typeID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]roomResp, 0, len(rooms))
    for _, rm := range rooms {
        out = append(out, roomResp{ID: rm.ID, RoomNumber: rm.RoomNumber, Status: rm.Status})
    }
    return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}

// Availability reports how many rooms of a type are free for a date
// range.  The count is advisory; allocation itself re-checks under a
// row lock.
func (h *RoomHandler) Availability(c echo.Context) error {
    typeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || typeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room type id"})
    }
    checkIn, err1 := time.Parse("2006-01-02", c.QueryParam("check_in"))
    checkOut, err2 := time.Parse("2006-01-02", c.QueryParam("check_out"))
    if err1 != nil || err2 != nil || !checkIn.Before(checkOut) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in and check_out required (YYYY-MM-DD, check_in before check_out)"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    n, err := h.Rooms.CountAvailable(ctx, typeID,
        checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02"))
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "room_type_id":    typeID,
        "check_in":        checkIn.Format("2006-01-02"),
        "check_out":       checkOut.Format("2006-01-02"),
        "available_rooms": n,
    })
}
