package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/theatre-service/internal/model"
)

// PerformanceRepo manages persistence for performances.  Reads join the
// play and the hall so callers can denormalize titles, images and
// capacity without further queries.
type PerformanceRepo struct {
	db *sql.DB
}

// NewPerformanceRepo constructs a PerformanceRepo with the given DB handle.
func NewPerformanceRepo(db *sql.DB) *PerformanceRepo {
	return &PerformanceRepo{db: db}
}

const performanceSelect = "SELECT pf.id, pf.play_id, pf.theatre_hall_id, pf.show_time, " +
	"p.title, COALESCE(p.image, ''), h.name, h.`rows`, h.seats_in_row, " +
	"(SELECT COUNT(*) FROM tickets t WHERE t.performance_id = pf.id) AS tickets_taken " +
	"FROM performances pf " +
	"JOIN plays p ON p.id = pf.play_id " +
	"JOIN theatre_halls h ON h.id = pf.theatre_hall_id"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerformance(s rowScanner) (model.Performance, error) {
	var pf model.Performance
	err := s.Scan(&pf.ID, &pf.PlayID, &pf.TheatreHallID, &pf.ShowTime,
		&pf.Play.Title, &pf.Play.Image, &pf.Hall.Name, &pf.Hall.Rows, &pf.Hall.SeatsInRow, &pf.TicketsTaken)
	pf.Play.ID = pf.PlayID
	pf.Hall.ID = pf.TheatreHallID
	pf.ShowTime = pf.ShowTime.UTC()
	return pf, err
}

// List returns performances ordered by id, optionally restricted to a play
// and/or a calendar day (UTC).
func (r *PerformanceRepo) List(ctx context.Context, f model.PerformanceFilter) ([]model.Performance, error) {
	where := []string{}
	args := []any{}
	if f.PlayID != 0 {
		where = append(where, "pf.play_id = ?")
		args = append(args, f.PlayID)
	}
	if f.Date != nil {
		d := f.Date.UTC()
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "pf.show_time >= ? AND pf.show_time < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	q := performanceSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY pf.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Performance{}
	for rows.Next() {
		pf, err := scanPerformance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pf)
	}
	return out, rows.Err()
}

// GetByID retrieves one performance.  It returns ErrNotFound when no row
// matches.
func (r *PerformanceRepo) GetByID(ctx context.Context, id uint64) (*model.Performance, error) {
	pf, err := scanPerformance(r.db.QueryRowContext(ctx, performanceSelect+" WHERE pf.id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pf, nil
}

// Create inserts a performance.  An unknown play or hall yields
// ErrInvalidReference.
func (r *PerformanceRepo) Create(ctx context.Context, pf *model.Performance) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO performances (play_id, theatre_hall_id, show_time) VALUES (?, ?, ?)`,
		pf.PlayID, pf.TheatreHallID, pf.ShowTime.UTC())
	if err != nil {
		if isMissingReference(err) {
			return ErrInvalidReference
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	pf.ID = uint64(id)
	return nil
}

// TakenSeats lists the seats sold for a performance ordered by row and
// seat.
func (r *PerformanceRepo) TakenSeats(ctx context.Context, performanceID uint64) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT `row`, seat FROM tickets WHERE performance_id = ? ORDER BY `row`, seat", performanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Seat{}
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.Row, &s.Seat); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
