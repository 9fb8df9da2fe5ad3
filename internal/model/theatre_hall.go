package model

// MaxHallDimension bounds both Rows and SeatsInRow so Capacity fits in a
// uint32.
const MaxHallDimension = 1000

// TheatreHall is a seating venue laid out as Rows x SeatsInRow.  Seats are
// addressed by a 1-based row and a 1-based seat number inside that row.
type TheatreHall struct {
    ID         uint64 // theatre_halls.id
    Name       string // theatre_halls.name
    Rows       uint32 // theatre_halls.rows
    SeatsInRow uint32 // theatre_halls.seats_in_row
}

// Capacity is the total number of seats in the hall.
func (h TheatreHall) Capacity() uint32 {
    return h.Rows * h.SeatsInRow
}

// HasSeat reports whether (row, seat) exists in the hall.
func (h TheatreHall) HasSeat(row, seat uint32) bool {
    return row >= 1 && row <= h.Rows && seat >= 1 && seat <= h.SeatsInRow
}
