package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/theatre-service/internal/model"
	"github.com/iliyamo/theatre-service/internal/queue"
	"github.com/iliyamo/theatre-service/internal/repository"
)

// Booking creates and lists reservations.
type Booking struct {
	Reservations ReservationStore
	Performances PerformanceStore
	Events       Publisher
	Log          zerolog.Logger
	Now          func() time.Time
}

// NewBooking wires a Booking from the given stores.
func NewBooking(s Stores, events Publisher, logger zerolog.Logger) *Booking {
	return &Booking{
		Reservations: s.Reservations,
		Performances: s.Performances,
		Events:       events,
		Log:          logger.With().Str("component", "booking").Logger(),
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// TicketInput is one requested seat.
type TicketInput struct {
	Row         uint32
	Seat        uint32
	Performance uint64
}

// ListReservations returns the user's reservations, oldest first.
func (b *Booking) ListReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	out, err := b.Reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// CreateReservation books every ticket for userID or none of them.
func (b *Booking) CreateReservation(ctx context.Context, userID uint64, tickets []TicketInput) (*model.Reservation, error) {
	if len(tickets) == 0 {
		return nil, NewValidationError("tickets", "At least one ticket is required.")
	}

	verr := &ValidationError{}
	perfs := map[uint64]*model.Performance{}
	taken := map[uint64]map[model.Seat]bool{}
	requested := map[[3]uint64]bool{}

	for i, t := range tickets {
		pf, ok := perfs[t.Performance]
		if !ok {
			p, err := b.Performances.GetByID(ctx, t.Performance)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				verr.Add("tickets", fmt.Sprintf("ticket %d: Invalid pk \"%d\" - object does not exist.", i, t.Performance))
				continue
			case err != nil:
				return nil, fmt.Errorf("load performance %d: %w", t.Performance, err)
			}
			seats, err := b.Performances.TakenSeats(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("taken seats %d: %w", p.ID, err)
			}
			set := make(map[model.Seat]bool, len(seats))
			for _, s := range seats {
				set[s] = true
			}
			perfs[p.ID], taken[p.ID] = p, set
			pf = p
		}

		if msg := seatRangeError(pf.Hall, t.Row, t.Seat); msg != "" {
			verr.Add("tickets", fmt.Sprintf("ticket %d: %s", i, msg))
			continue
		}
		key := [3]uint64{t.Performance, uint64(t.Row), uint64(t.Seat)}
		if requested[key] || taken[pf.ID][model.Seat{Row: t.Row, Seat: t.Seat}] {
			verr.Add("tickets", fmt.Sprintf("ticket %d: seat %d in row %d is already taken.", i, t.Seat, t.Row))
			continue
		}
		requested[key] = true
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	res := &model.Reservation{UserID: userID, CreatedAt: b.Now()}
	for _, t := range tickets {
		res.Tickets = append(res.Tickets, model.Ticket{PerformanceID: t.Performance, Row: t.Row, Seat: t.Seat})
	}
	if err := b.Reservations.Create(ctx, res); err != nil {
		switch {
		case errors.Is(err, repository.ErrSeatTaken):
			return nil, NewValidationError("tickets", "The fields performance, row, seat must make a unique set.")
		case errors.Is(err, repository.ErrInvalidReference):
			return nil, NewValidationError("tickets", "Referenced performance does not exist.")
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	for i := range res.Tickets {
		res.Tickets[i].Performance = *perfs[res.Tickets[i].PerformanceID]
	}
	b.Log.Info().Uint64("reservation_id", res.ID).Uint64("user_id", userID).Int("tickets", len(res.Tickets)).Msg("reservation created")

	if b.Events != nil {
		ev := queue.ReservationCreatedEvent{
			ReservationID: res.ID,
			UserID:        userID,
			CreatedAt:     res.CreatedAt.Format(time.RFC3339),
		}
		for _, t := range res.Tickets {
			ev.Tickets = append(ev.Tickets, queue.TicketInfo{PerformanceID: t.PerformanceID, Row: t.Row, Seat: t.Seat})
		}
		if err := b.Events.Publish(ctx, queue.QueueReservationCreated, ev); err != nil {
			b.Log.Warn().Err(err).Msg("reservation event not published")
		}
	}
	return res, nil
}

// seatRangeError describes why (row, seat) is outside hall, or "".
func seatRangeError(h model.TheatreHall, row, seat uint32) string {
	if h.HasSeat(row, seat) {
		return ""
	}
	if row < 1 || row > h.Rows {
		return fmt.Sprintf("row number must be in available range: (1, rows): (1, %d)", h.Rows)
	}
	return fmt.Sprintf("seat number must be in available range: (1, seats_in_row): (1, %d)", h.SeatsInRow)
}
