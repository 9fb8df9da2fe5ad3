package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/theatre-service/internal/model"
)

// ReservationRepo persists reservations together with their tickets.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo constructs a ReservationRepo with the given DB handle.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

// Create inserts the reservation and every ticket in one transaction.  The
// unique key on (performance_id, row, seat) turns a double booking into
// ErrSeatTaken; an unknown performance yields ErrInvalidReference.  IDs are
// written back into res and its tickets.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx, `INSERT INTO reservations (user_id, created_at) VALUES (?, ?)`, res.UserID, res.CreatedAt)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	const qTicket = "INSERT INTO tickets (reservation_id, performance_id, `row`, seat) VALUES (?, ?, ?, ?)"
	for i := range res.Tickets {
		t := &res.Tickets[i]
		t.ReservationID = res.ID
		out, err := tx.ExecContext(ctx, qTicket, t.ReservationID, t.PerformanceID, t.Row, t.Seat)
		if err != nil {
			switch {
			case isDuplicate(err):
				return ErrSeatTaken
			case isMissingReference(err):
				return ErrInvalidReference
			}
			return err
		}
		tid, err := out.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(tid)
	}
	return tx.Commit()
}

// ListByUser returns the user's reservations ordered by id, each with its
// tickets and the play/hall each ticket is for.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, created_at FROM reservations WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	out := []model.Reservation{}
	index := map[uint64]int{}
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		res.CreatedAt = res.CreatedAt.UTC()
		res.Tickets = []model.Ticket{}
		index[res.ID] = len(out)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uint64, 0, len(out))
	for _, res := range out {
		ids = append(ids, res.ID)
	}
	trows, err := r.db.QueryContext(ctx, "SELECT t.id, t.reservation_id, t.performance_id, t.`row`, t.seat, "+
		"pf.show_time, pf.play_id, p.title, pf.theatre_hall_id, h.name "+
		"FROM tickets t "+
		"JOIN performances pf ON pf.id = t.performance_id "+
		"JOIN plays p ON p.id = pf.play_id "+
		"JOIN theatre_halls h ON h.id = pf.theatre_hall_id "+
		"WHERE t.reservation_id IN ("+placeholders(len(ids))+") ORDER BY t.id", uint64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var t model.Ticket
		pf := &t.Performance
		if err := trows.Scan(&t.ID, &t.ReservationID, &t.PerformanceID, &t.Row, &t.Seat,
			&pf.ShowTime, &pf.PlayID, &pf.Play.Title, &pf.TheatreHallID, &pf.Hall.Name); err != nil {
			return nil, err
		}
		pf.ID = t.PerformanceID
		pf.ShowTime = pf.ShowTime.UTC()
		pf.Play.ID = pf.PlayID
		pf.Hall.ID = pf.TheatreHallID
		i := index[t.ReservationID]
		out[i].Tickets = append(out[i].Tickets, t)
	}
	return out, trows.Err()
}
