package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theatre-service/internal/middleware"
    "github.com/iliyamo/theatre-service/internal/service"
)

// BookingHandler serves the caller's reservations.  JWTAuth must run
// first.
type BookingHandler struct {
    Booking *service.Booking
}

func NewBookingHandler(b *service.Booking) *BookingHandler {
    if b == nil {
        panic("nil booking passed to NewBookingHandler")
    }
    return &BookingHandler{Booking: b}
}

type ticketReq struct {
    Row         uint32 `json:"row" validate:"required"`
    Seat        uint32 `json:"seat" validate:"required"`
    Performance uint64 `json:"performance" validate:"required"`
}

type reservationReq struct {
    Tickets []ticketReq `json:"tickets" validate:"required,min=1,dive"`
}

// List handles GET /reservations/.  Only the caller's reservations are
// returned.
func (h *BookingHandler) List(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
    }
    list, err := h.Booking.ListReservations(c.Request().Context(), uid)
    if err != nil {
        return respondError(c, err)
    }
    out := make([]ReservationResponse, 0, len(list))
    for _, r := range list {
        out = append(out, toReservation(r))
    }
    return c.JSON(http.StatusOK, out)
}

// Create handles POST /reservations/.  Either every ticket is booked or
// none is.
func (h *BookingHandler) Create(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
    }
    var req reservationReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    tickets := make([]service.TicketInput, 0, len(req.Tickets))
    for _, t := range req.Tickets {
        tickets = append(tickets, service.TicketInput{Row: t.Row, Seat: t.Seat, Performance: t.Performance})
    }
    res, err := h.Booking.CreateReservation(c.Request().Context(), uid, tickets)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, toReservation(*res))
}
