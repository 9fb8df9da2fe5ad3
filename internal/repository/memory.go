package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/theatre-service/internal/model"
)

// MemoryStore keeps the whole catalog in process memory.  It is selected
// with STORE_DRIVER=memory and mirrors the MySQL repositories, including
// the unique seat constraint and reference checks.  Each accessor returns a
// view with the same method set as the corresponding MySQL repository.
type MemoryStore struct {
	mu sync.RWMutex

	nextID map[string]uint64

	plays        map[uint64]model.Play // Genres/Actors hold ids only
	genres       map[uint64]model.Genre
	actors       map[uint64]model.Actor
	halls        map[uint64]model.TheatreHall
	performances map[uint64]model.Performance // without joined data
	reservations map[uint64]model.Reservation
	tickets      map[uint64]model.Ticket
	users        map[uint64]model.User
	tokens       map[string]model.RefreshToken
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:       map[string]uint64{},
		plays:        map[uint64]model.Play{},
		genres:       map[uint64]model.Genre{},
		actors:       map[uint64]model.Actor{},
		halls:        map[uint64]model.TheatreHall{},
		performances: map[uint64]model.Performance{},
		reservations: map[uint64]model.Reservation{},
		tickets:      map[uint64]model.Ticket{},
		users:        map[uint64]model.User{},
		tokens:       map[string]model.RefreshToken{},
	}
}

// id hands out auto-increment ids per table.  Callers hold mu.
func (s *MemoryStore) id(table string) uint64 {
	s.nextID[table]++
	return s.nextID[table]
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func containsAny(have []uint64, want []uint64) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Plays returns the play repository view.
func (s *MemoryStore) Plays() *MemoryPlayRepo { return &MemoryPlayRepo{s} }

// Genres returns the genre repository view.
func (s *MemoryStore) Genres() *MemoryGenreRepo { return &MemoryGenreRepo{s} }

// Actors returns the actor repository view.
func (s *MemoryStore) Actors() *MemoryActorRepo { return &MemoryActorRepo{s} }

// Halls returns the theatre hall repository view.
func (s *MemoryStore) Halls() *MemoryHallRepo { return &MemoryHallRepo{s} }

// Performances returns the performance repository view.
func (s *MemoryStore) Performances() *MemoryPerformanceRepo { return &MemoryPerformanceRepo{s} }

// Reservations returns the reservation repository view.
func (s *MemoryStore) Reservations() *MemoryReservationRepo { return &MemoryReservationRepo{s} }

// Users returns the user repository view.
func (s *MemoryStore) Users() *MemoryUserRepo { return &MemoryUserRepo{s} }

// Tokens returns the refresh token repository view.
func (s *MemoryStore) Tokens() *MemoryTokenRepo { return &MemoryTokenRepo{s} }

// ---- Plays ----

type MemoryPlayRepo struct{ s *MemoryStore }

// hydrate replaces id-only relations with the stored genre/actor rows.
func (r *MemoryPlayRepo) hydrate(p model.Play) model.Play {
	genres := make([]model.Genre, 0, len(p.Genres))
	for _, id := range sortedIDs(p.GenreIDs()) {
		genres = append(genres, r.s.genres[id])
	}
	actors := make([]model.Actor, 0, len(p.Actors))
	for _, id := range sortedIDs(p.ActorIDs()) {
		actors = append(actors, r.s.actors[id])
	}
	p.Genres, p.Actors = genres, actors
	return p
}

func sortedIDs(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *MemoryPlayRepo) List(_ context.Context, f model.PlayFilter) ([]model.Play, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	title := strings.ToLower(f.Title)
	out := []model.Play{}
	for _, id := range sortedKeys(r.s.plays) {
		p := r.s.plays[id]
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			continue
		}
		if len(f.GenreIDs) > 0 && !containsAny(p.GenreIDs(), f.GenreIDs) {
			continue
		}
		if len(f.ActorIDs) > 0 && !containsAny(p.ActorIDs(), f.ActorIDs) {
			continue
		}
		out = append(out, r.hydrate(p))
	}
	return out, nil
}

func (r *MemoryPlayRepo) GetByID(_ context.Context, id uint64) (*model.Play, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plays[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = r.hydrate(p)
	return &p, nil
}

func (r *MemoryPlayRepo) Create(_ context.Context, p *model.Play) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := model.Play{Title: p.Title, Description: p.Description}
	seen := map[uint64]bool{}
	for _, id := range p.GenreIDs() {
		if _, ok := r.s.genres[id]; !ok {
			return ErrInvalidReference
		}
		if !seen[id] {
			seen[id] = true
			stored.Genres = append(stored.Genres, model.Genre{ID: id})
		}
	}
	seen = map[uint64]bool{}
	for _, id := range p.ActorIDs() {
		if _, ok := r.s.actors[id]; !ok {
			return ErrInvalidReference
		}
		if !seen[id] {
			seen[id] = true
			stored.Actors = append(stored.Actors, model.Actor{ID: id})
		}
	}
	stored.ID = r.s.id("plays")
	r.s.plays[stored.ID] = stored
	p.ID = stored.ID
	p.Image = ""
	return nil
}

func (r *MemoryPlayRepo) SetImage(_ context.Context, id uint64, image string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plays[id]
	if !ok {
		return "", ErrNotFound
	}
	previous := p.Image
	p.Image = image
	r.s.plays[id] = p
	return previous, nil
}

// ---- Genres ----

type MemoryGenreRepo struct{ s *MemoryStore }

func (r *MemoryGenreRepo) List(context.Context) ([]model.Genre, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Genre{}
	for _, id := range sortedKeys(r.s.genres) {
		out = append(out, r.s.genres[id])
	}
	return out, nil
}

func (r *MemoryGenreRepo) Create(_ context.Context, g *model.Genre) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.genres {
		if existing.Name == g.Name {
			return ErrConflict
		}
	}
	g.ID = r.s.id("genres")
	r.s.genres[g.ID] = *g
	return nil
}

func (r *MemoryGenreRepo) ExistingIDs(_ context.Context, ids []uint64) ([]uint64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []uint64
	for _, id := range ids {
		if _, ok := r.s.genres[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// ---- Actors ----

type MemoryActorRepo struct{ s *MemoryStore }

func (r *MemoryActorRepo) List(context.Context) ([]model.Actor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Actor{}
	for _, id := range sortedKeys(r.s.actors) {
		out = append(out, r.s.actors[id])
	}
	return out, nil
}

func (r *MemoryActorRepo) Create(_ context.Context, a *model.Actor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.id("actors")
	r.s.actors[a.ID] = *a
	return nil
}

func (r *MemoryActorRepo) ExistingIDs(_ context.Context, ids []uint64) ([]uint64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []uint64
	for _, id := range ids {
		if _, ok := r.s.actors[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// ---- Theatre halls ----

type MemoryHallRepo struct{ s *MemoryStore }

func (r *MemoryHallRepo) List(context.Context) ([]model.TheatreHall, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.TheatreHall{}
	for _, id := range sortedKeys(r.s.halls) {
		out = append(out, r.s.halls[id])
	}
	return out, nil
}

func (r *MemoryHallRepo) GetByID(_ context.Context, id uint64) (*model.TheatreHall, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	h, ok := r.s.halls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (r *MemoryHallRepo) Create(_ context.Context, h *model.TheatreHall) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = r.s.id("theatre_halls")
	r.s.halls[h.ID] = *h
	return nil
}

// ---- Performances ----

type MemoryPerformanceRepo struct{ s *MemoryStore }

// join fills Play, Hall and TicketsTaken the way the SQL join does.
// Callers hold at least the read lock.
func (r *MemoryPerformanceRepo) join(pf model.Performance) model.Performance {
	p := r.s.plays[pf.PlayID]
	pf.Play = model.Play{ID: p.ID, Title: p.Title, Image: p.Image}
	pf.Hall = r.s.halls[pf.TheatreHallID]
	pf.TicketsTaken = 0
	for _, t := range r.s.tickets {
		if t.PerformanceID == pf.ID {
			pf.TicketsTaken++
		}
	}
	return pf
}

func (r *MemoryPerformanceRepo) List(_ context.Context, f model.PerformanceFilter) ([]model.Performance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var day time.Time
	if f.Date != nil {
		d := f.Date.UTC()
		day = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	out := []model.Performance{}
	for _, id := range sortedKeys(r.s.performances) {
		pf := r.s.performances[id]
		if f.PlayID != 0 && pf.PlayID != f.PlayID {
			continue
		}
		if f.Date != nil && (pf.ShowTime.Before(day) || !pf.ShowTime.Before(day.AddDate(0, 0, 1))) {
			continue
		}
		out = append(out, r.join(pf))
	}
	return out, nil
}

func (r *MemoryPerformanceRepo) GetByID(_ context.Context, id uint64) (*model.Performance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pf, ok := r.s.performances[id]
	if !ok {
		return nil, ErrNotFound
	}
	pf = r.join(pf)
	return &pf, nil
}

func (r *MemoryPerformanceRepo) Create(_ context.Context, pf *model.Performance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plays[pf.PlayID]; !ok {
		return ErrInvalidReference
	}
	if _, ok := r.s.halls[pf.TheatreHallID]; !ok {
		return ErrInvalidReference
	}
	pf.ID = r.s.id("performances")
	pf.ShowTime = pf.ShowTime.UTC()
	r.s.performances[pf.ID] = model.Performance{
		ID:            pf.ID,
		PlayID:        pf.PlayID,
		TheatreHallID: pf.TheatreHallID,
		ShowTime:      pf.ShowTime,
	}
	return nil
}

func (r *MemoryPerformanceRepo) TakenSeats(_ context.Context, performanceID uint64) ([]model.Seat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Seat{}
	for _, t := range r.s.tickets {
		if t.PerformanceID == performanceID {
			out = append(out, model.Seat{Row: t.Row, Seat: t.Seat})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Seat < out[j].Seat
	})
	return out, nil
}

// ---- Reservations ----

type MemoryReservationRepo struct{ s *MemoryStore }

func (r *MemoryReservationRepo) Create(_ context.Context, res *model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// validate everything first so a failure leaves no partial writes
	taken := map[[3]uint64]bool{}
	for _, t := range r.s.tickets {
		taken[[3]uint64{t.PerformanceID, uint64(t.Row), uint64(t.Seat)}] = true
	}
	for _, t := range res.Tickets {
		if _, ok := r.s.performances[t.PerformanceID]; !ok {
			return ErrInvalidReference
		}
		key := [3]uint64{t.PerformanceID, uint64(t.Row), uint64(t.Seat)}
		if taken[key] {
			return ErrSeatTaken
		}
		taken[key] = true
	}

	res.ID = r.s.id("reservations")
	for i := range res.Tickets {
		t := &res.Tickets[i]
		t.ID = r.s.id("tickets")
		t.ReservationID = res.ID
		r.s.tickets[t.ID] = model.Ticket{
			ID:            t.ID,
			ReservationID: t.ReservationID,
			PerformanceID: t.PerformanceID,
			Row:           t.Row,
			Seat:          t.Seat,
		}
	}
	r.s.reservations[res.ID] = model.Reservation{ID: res.ID, UserID: res.UserID, CreatedAt: res.CreatedAt}
	return nil
}

func (r *MemoryReservationRepo) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	perfs := &MemoryPerformanceRepo{r.s}
	out := []model.Reservation{}
	for _, id := range sortedKeys(r.s.reservations) {
		res := r.s.reservations[id]
		if res.UserID != userID {
			continue
		}
		res.Tickets = []model.Ticket{}
		for _, tid := range sortedKeys(r.s.tickets) {
			t := r.s.tickets[tid]
			if t.ReservationID == res.ID {
				t.Performance = perfs.join(r.s.performances[t.PerformanceID])
				res.Tickets = append(res.Tickets, t)
			}
		}
		out = append(out, res)
	}
	return out, nil
}

// ---- Users ----

type MemoryUserRepo struct{ s *MemoryStore }

func (r *MemoryUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	u.ID = r.s.id("users")
	u.CreatedAt = time.Now().UTC()
	r.s.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uint64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// ---- Refresh tokens ----

type MemoryTokenRepo struct{ s *MemoryStore }

func (r *MemoryTokenRepo) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[tokenHash] = model.RefreshToken{
		ID:        r.s.id("refresh_tokens"),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
	}
	return nil
}

func (r *MemoryTokenRepo) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

func (r *MemoryTokenRepo) RevokeByHash(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now().UTC()
		t.RevokedAt = &now
		r.s.tokens[tokenHash] = t
	}
	return nil
}

func (r *MemoryTokenRepo) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for hash, t := range r.s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.s.tokens[hash] = t
		}
	}
	return nil
}
