package model

import "time"

// Performance is a scheduled showing of a Play in a TheatreHall.  Play and
// Hall are populated by repositories when the performance is loaded so
// handlers can denormalize titles, images and capacity.
type Performance struct {
    ID            uint64      // performances.id
    PlayID        uint64      // performances.play_id
    TheatreHallID uint64      // performances.theatre_hall_id
    ShowTime      time.Time   // performances.show_time (UTC)
    Play          Play        // joined plays row (no genres/actors)
    Hall          TheatreHall // joined theatre_halls row
    TicketsTaken  uint32      // COUNT(tickets) for the performance
}

// TicketsAvailable is the number of seats still free.
func (p Performance) TicketsAvailable() uint32 {
    capacity := p.Hall.Capacity()
    if p.TicketsTaken >= capacity {
        return 0
    }
    return capacity - p.TicketsTaken
}

// PerformanceFilter narrows a performance listing.
type PerformanceFilter struct {
    PlayID uint64     // 0 disables the filter
    Date   *time.Time // show_time falls on this UTC calendar day
}

// Seat is a (row, seat) pair inside a hall.
type Seat struct {
    Row  uint32
    Seat uint32
}
