package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-operations/internal/booking"
    "github.com/iliyamo/hotel-operations/internal/model"
    "github.com/iliyamo/hotel-operations/internal/repository"
)

// BookingHandler exposes the room allocation API over HTTP.  All domain
// rules live in the allocator; this layer only binds requests and maps
// errors to status codes.
type BookingHandler struct {
    Alloc *booking.Allocator
}

func NewBookingHandler(a *booking.Allocator) *BookingHandler {
    return &BookingHandler{Alloc: a}
}

type reserveReq struct {
    RoomTypeID uint64  `json:"room_type_id"`
    GuestID    *uint64 `json:"guest_id,omitempty"` // staff booking on behalf of a guest
    CheckIn    string  `json:"check_in"`           // YYYY-MM-DD
    CheckOut   string  `json:"check_out"`          // YYYY-MM-DD
    Occupancy  uint32  `json:"occupancy"`
}

type updateBookingReq struct {
    Status string `json:"status"`
}

type bookingResp struct {
    ID               uint64 `json:"id"`
    RoomID           uint64 `json:"room_id"`
    GuestID          uint64 `json:"guest_id"`
    CheckIn          string `json:"check_in"`
    CheckOut         string `json:"check_out"`
    Status           string `json:"status"`
    TotalAmountCents uint32 `json:"total_amount_cents"`
}

func toBookingResp(b *model.RoomBooking) bookingResp {
    return bookingResp{
        ID:               b.ID,
        RoomID:           b.RoomID,
        GuestID:          b.GuestID,
        CheckIn:          b.CheckInDate.Format("2006-01-02"),
        CheckOut:         b.CheckOutDate.Format("2006-01-02"),
        Status:           b.Status,
        TotalAmountCents: b.TotalAmountCents,
    }
}

// Reserve books a room of the requested type.  Guests always book for
// themselves; staff may pass guest_id to book on a guest's behalf.
func (h *BookingHandler) Reserve(c echo.Context) error {
    var req reserveReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    checkIn, err1 := time.Parse("2006-01-02", req.CheckIn)
    checkOut, err2 := time.Parse("2006-01-02", req.CheckOut)
    if req.RoomTypeID == 0 || err1 != nil || err2 != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "room_type_id, check_in and check_out required (YYYY-MM-DD)"})
    }

    actorID, _ := c.Get("user_id").(uint64)
    role, _ := c.Get("role").(string)
    guestID := actorID
    if req.GuestID != nil && model.StaffRole(role) {
        guestID = *req.GuestID
    }

    b, err := h.Alloc.Reserve(c.Request().Context(), booking.ReserveInput{
        RoomTypeID: req.RoomTypeID,
        GuestID:    guestID,
        CheckIn:    checkIn,
        CheckOut:   checkOut,
        Occupancy:  req.Occupancy,
    })
    if err != nil {
        return bookingError(c, err)
    }
    return c.JSON(http.StatusCreated, toBookingResp(b))
}

// Cancel cancels a booking.  Ownership and the 24h guest window are
// enforced by the allocator.
func (h *BookingHandler) Cancel(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    actorID, _ := c.Get("user_id").(uint64)
    role, _ := c.Get("role").(string)

    b, err := h.Alloc.Cancel(c.Request().Context(), id, actorID, role)
    if err != nil {
        return bookingError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(b))
}

// UpdateStatus applies a staff transition such as confirm, check-in or
// check-out.  Protected by RequireRole at the route level.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    var req updateBookingReq
    if err := c.Bind(&req); err != nil || req.Status == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "status required"})
    }

    b, err := h.Alloc.UpdateStatus(c.Request().Context(), id, req.Status)
    if err != nil {
        return bookingError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(b))
}

// ListActive returns non-terminal bookings intersecting [from, to).
// Defaults to the next 30 days when the range is omitted.
func (h *BookingHandler) ListActive(c echo.Context) error {
    now := time.Now().UTC()
    from, to := now, now.AddDate(0, 0, 30)
    if s := c.QueryParam("from"); s != "" {
        t, err := time.Parse("2006-01-02", s)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
        }
        from = t
    }
    if s := c.QueryParam("to"); s != "" {
        t, err := time.Parse("2006-01-02", s)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date"})
        }
        to = t
    }

    list, err := h.Alloc.ListActive(c.Request().Context(), from, to)
    if err != nil {
        return bookingError(c, err)
    }
    out := make([]bookingResp, 0, len(list))
    for i := range list {
        out = append(out, toBookingResp(&list[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// bookingError maps allocator and repository errors to HTTP responses.
func bookingError(c echo.Context, err error) error {
    var ve *booking.ValidationError
    var pe *booking.PolicyError
    switch {
    case errors.As(err, &ve):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Msg})
    case errors.As(err, &pe):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": pe.Msg})
    case errors.Is(err, repository.ErrNoAvailability):
        return c.JSON(http.StatusConflict, echo.Map{"error": "no rooms available for selected dates"})
    case errors.Is(err, booking.ErrInvalidState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking state does not allow this operation"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrNotFound), errors.Is(err, sql.ErrNoRows):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
    }
}
