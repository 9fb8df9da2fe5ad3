package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/theatre-service/internal/model"
)

// TheatreHallRepo provides methods to create and retrieve halls.
type TheatreHallRepo struct {
	db *sql.DB
}

// NewTheatreHallRepo constructs a TheatreHallRepo with the given DB handle.
func NewTheatreHallRepo(db *sql.DB) *TheatreHallRepo {
	return &TheatreHallRepo{db: db}
}

// `rows` is a reserved word since MySQL 8.0.2 and must stay quoted.
const hallColumns = "id, name, `rows`, seats_in_row"

// List returns all halls ordered by id.
func (r *TheatreHallRepo) List(ctx context.Context) ([]model.TheatreHall, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+hallColumns+` FROM theatre_halls ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TheatreHall{}
	for rows.Next() {
		var h model.TheatreHall
		if err := rows.Scan(&h.ID, &h.Name, &h.Rows, &h.SeatsInRow); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetByID retrieves a hall by its ID.  It returns ErrNotFound when no row
// is found.
func (r *TheatreHallRepo) GetByID(ctx context.Context, id uint64) (*model.TheatreHall, error) {
	var h model.TheatreHall
	err := r.db.QueryRowContext(ctx, `SELECT `+hallColumns+` FROM theatre_halls WHERE id = ?`, id).
		Scan(&h.ID, &h.Name, &h.Rows, &h.SeatsInRow)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

// Create inserts a new hall and assigns the generated ID.
func (r *TheatreHallRepo) Create(ctx context.Context, h *model.TheatreHall) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO theatre_halls (name, `rows`, seats_in_row) VALUES (?, ?, ?)",
		h.Name, h.Rows, h.SeatsInRow)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}
