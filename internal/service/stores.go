// Package service implements the theatre business rules on top of the
// store interfaces declared here.  Both the MySQL repositories and the
// in-memory store satisfy them.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/theatre-service/internal/model"
	"github.com/iliyamo/theatre-service/internal/repository"
)

type PlayStore interface {
	List(ctx context.Context, f model.PlayFilter) ([]model.Play, error)
	GetByID(ctx context.Context, id uint64) (*model.Play, error)
	Create(ctx context.Context, p *model.Play) error
	SetImage(ctx context.Context, id uint64, image string) (string, error)
}

type GenreStore interface {
	List(ctx context.Context) ([]model.Genre, error)
	Create(ctx context.Context, g *model.Genre) error
	ExistingIDs(ctx context.Context, ids []uint64) ([]uint64, error)
}

type ActorStore interface {
	List(ctx context.Context) ([]model.Actor, error)
	Create(ctx context.Context, a *model.Actor) error
	ExistingIDs(ctx context.Context, ids []uint64) ([]uint64, error)
}

type HallStore interface {
	List(ctx context.Context) ([]model.TheatreHall, error)
	GetByID(ctx context.Context, id uint64) (*model.TheatreHall, error)
	Create(ctx context.Context, h *model.TheatreHall) error
}

type PerformanceStore interface {
	List(ctx context.Context, f model.PerformanceFilter) ([]model.Performance, error)
	GetByID(ctx context.Context, id uint64) (*model.Performance, error)
	Create(ctx context.Context, pf *model.Performance) error
	TakenSeats(ctx context.Context, performanceID uint64) ([]model.Seat, error)
}

type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Publisher sends a domain event to the named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// Stores bundles one implementation of every store.
type Stores struct {
	Plays        PlayStore
	Genres       GenreStore
	Actors       ActorStore
	Halls        HallStore
	Performances PerformanceStore
	Reservations ReservationStore
	Users        UserStore
	Tokens       TokenStore
}

// MemoryStores wires every store to one in-memory store.
func MemoryStores(m *repository.MemoryStore) Stores {
	return Stores{
		Plays:        m.Plays(),
		Genres:       m.Genres(),
		Actors:       m.Actors(),
		Halls:        m.Halls(),
		Performances: m.Performances(),
		Reservations: m.Reservations(),
		Users:        m.Users(),
		Tokens:       m.Tokens(),
	}
}

// MySQLStores wires every store to the MySQL repositories.
func MySQLStores(db *sql.DB) Stores {
	return Stores{
		Plays:        repository.NewPlayRepo(db),
		Genres:       repository.NewGenreRepo(db),
		Actors:       repository.NewActorRepo(db),
		Halls:        repository.NewTheatreHallRepo(db),
		Performances: repository.NewPerformanceRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Users:        repository.NewUserRepo(db),
		Tokens:       repository.NewTokenRepo(db),
	}
}
