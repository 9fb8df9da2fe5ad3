package model

import "time"

// Reservation groups the tickets a user booked in a single request.
type Reservation struct {
    ID        uint64    // reservations.id
    UserID    uint64    // reservations.user_id
    CreatedAt time.Time // reservations.created_at
    Tickets   []Ticket  // tickets.reservation_id = id
}

// Ticket is one seat for one performance.  (PerformanceID, Row, Seat) is
// unique across all reservations.
type Ticket struct {
    ID            uint64      // tickets.id
    ReservationID uint64      // tickets.reservation_id
    PerformanceID uint64      // tickets.performance_id
    Row           uint32      // tickets.row
    Seat          uint32      // tickets.seat
    Performance   Performance // joined performance (play title, hall name)
}
