package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/theatre-service/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so relation loading can
// run inside or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PlayRepo manages persistence for plays and their genre/actor links.
type PlayRepo struct {
	db *sql.DB
}

// NewPlayRepo constructs a PlayRepo with the given DB handle.
func NewPlayRepo(db *sql.DB) *PlayRepo {
	return &PlayRepo{db: db}
}

const playColumns = `p.id, p.title, p.description, COALESCE(p.image, '')`

// List returns the plays matching f ordered by id.  The genre and actor
// filters use IN subqueries so a play linked to several matching rows is
// returned once.
func (r *PlayRepo) List(ctx context.Context, f model.PlayFilter) ([]model.Play, error) {
	where := []string{}
	args := []any{}

	if f.Title != "" {
		where = append(where, "LOWER(p.title) LIKE ?")
		args = append(args, "%"+escapeLike(strings.ToLower(f.Title))+"%")
	}
	if len(f.GenreIDs) > 0 {
		where = append(where, "p.id IN (SELECT pg.play_id FROM play_genres pg WHERE pg.genre_id IN ("+placeholders(len(f.GenreIDs))+"))")
		args = append(args, uint64Args(f.GenreIDs)...)
	}
	if len(f.ActorIDs) > 0 {
		where = append(where, "p.id IN (SELECT pa.play_id FROM play_actors pa WHERE pa.actor_id IN ("+placeholders(len(f.ActorIDs))+"))")
		args = append(args, uint64Args(f.ActorIDs)...)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	q := `SELECT ` + playColumns + ` FROM plays p WHERE ` + cond + ` ORDER BY p.id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Play{}
	for rows.Next() {
		var p model.Play
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Image); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadPlayRelations(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID retrieves a play with its genres and actors.  It returns
// ErrNotFound when no row matches.
func (r *PlayRepo) GetByID(ctx context.Context, id uint64) (*model.Play, error) {
	const q = `SELECT ` + playColumns + ` FROM plays p WHERE p.id = ?`
	var p model.Play
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Title, &p.Description, &p.Image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	plays := []model.Play{p}
	if err := loadPlayRelations(ctx, r.db, plays); err != nil {
		return nil, err
	}
	return &plays[0], nil
}

// Create inserts the play and links it to p.Genres and p.Actors (only the
// ids are read) in one transaction.  The generated ID is written back to p.
// Unknown genre or actor ids yield ErrInvalidReference.
func (r *PlayRepo) Create(ctx context.Context, p *model.Play) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO plays (title, description) VALUES (?, ?)`, p.Title, p.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := insertLinks(ctx, tx, "play_genres", "genre_id", uint64(id), p.GenreIDs()); err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, "play_actors", "actor_id", uint64(id), p.ActorIDs()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Image = ""
	return nil
}

// SetImage stores the asset name for a play and returns the name it
// replaces ("" when the play had none).  The row is locked while the
// association changes so concurrent uploads serialize.
func (r *PlayRepo) SetImage(ctx context.Context, id uint64, image string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(image, '') FROM plays WHERE id = ? FOR UPDATE`, id).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE plays SET image = ? WHERE id = ?`, image, id); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return previous, nil
}

// insertLinks bulk inserts (play_id, column) pairs into a join table.
func insertLinks(ctx context.Context, tx *sql.Tx, table, column string, playID uint64, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	values := make([]string, 0, len(ids))
	args := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		values = append(values, "(?, ?)")
		args = append(args, playID, id)
	}
	q := fmt.Sprintf("INSERT INTO %s (play_id, %s) VALUES %s", table, column, strings.Join(values, ", "))
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		if isMissingReference(err) {
			return fmt.Errorf("%s: %w", column, ErrInvalidReference)
		}
		return err
	}
	return nil
}

// loadPlayRelations fills Genres and Actors for every play in plays.
func loadPlayRelations(ctx context.Context, q queryer, plays []model.Play) error {
	if len(plays) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(plays))
	ids := make([]uint64, 0, len(plays))
	for i := range plays {
		index[plays[i].ID] = i
		ids = append(ids, plays[i].ID)
		plays[i].Genres = []model.Genre{}
		plays[i].Actors = []model.Actor{}
	}
	in := placeholders(len(ids))

	rows, err := q.QueryContext(ctx, `SELECT pg.play_id, g.id, g.name
		FROM play_genres pg
		JOIN genres g ON g.id = pg.genre_id
		WHERE pg.play_id IN (`+in+`)
		ORDER BY pg.play_id, g.id`, uint64Args(ids)...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var playID uint64
		var g model.Genre
		if err := rows.Scan(&playID, &g.ID, &g.Name); err != nil {
			rows.Close()
			return err
		}
		i := index[playID]
		plays[i].Genres = append(plays[i].Genres, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT pa.play_id, a.id, a.first_name, a.last_name
		FROM play_actors pa
		JOIN actors a ON a.id = pa.actor_id
		WHERE pa.play_id IN (`+in+`)
		ORDER BY pa.play_id, a.id`, uint64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var playID uint64
		var a model.Actor
		if err := rows.Scan(&playID, &a.ID, &a.FirstName, &a.LastName); err != nil {
			return err
		}
		i := index[playID]
		plays[i].Actors = append(plays[i].Actors, a)
	}
	return rows.Err()
}
