// Package queue defines the domain events exchanged over RabbitMQ, the
// publisher used by the services and the background consumer that
// records them.
package queue

// Queue names.  Each event type travels on its own durable queue and the
// queue name doubles as the routing key on the default exchange.
const (
    QueuePlayImageUploaded  = "play.image_uploaded"
    QueueReservationCreated = "reservation.created"
)

// Queues lists every queue the consumer listens on.
var Queues = []string{QueuePlayImageUploaded, QueueReservationCreated}

// PlayImageUploadedEvent is published after a play picture was stored and
// associated with the play.
type PlayImageUploadedEvent struct {
    PlayID     uint64 `json:"play_id"`
    Title      string `json:"title"`
    Image      string `json:"image"`              // asset name
    Replaced   string `json:"replaced,omitempty"` // previous asset name, if any
    UploadedAt string `json:"uploaded_at"`        // RFC 3339
}

// TicketInfo is a seat inside a ReservationCreatedEvent.
type TicketInfo struct {
    PerformanceID uint64 `json:"performance_id"`
    Row           uint32 `json:"row"`
    Seat          uint32 `json:"seat"`
}

// ReservationCreatedEvent is published once a reservation and all of its
// tickets were committed.
type ReservationCreatedEvent struct {
    ReservationID uint64       `json:"reservation_id"`
    UserID        uint64       `json:"user_id"`
    Tickets       []TicketInfo `json:"tickets"`
    CreatedAt     string       `json:"created_at"` // RFC 3339
}
