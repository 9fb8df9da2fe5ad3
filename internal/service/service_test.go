package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theatre-service/internal/model"
	"github.com/iliyamo/theatre-service/internal/queue"
	"github.com/iliyamo/theatre-service/internal/repository"
	"github.com/iliyamo/theatre-service/internal/storage"
)

type published struct {
	queue string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, queueName string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{queue: queueName, event: event})
	return p.err
}

type env struct {
	stores   Stores
	root     string
	events   *recordingPublisher
	catalog  *Catalog
	booking  *Booking
	accounts *Accounts
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	stores := MemoryStores(repository.NewMemoryStore())
	events := &recordingPublisher{}
	e := &env{
		stores:  stores,
		root:    root,
		events:  events,
		catalog: NewCatalog(stores, storage.NewDisk(root, "/media/"), events, zerolog.Nop()),
		booking: NewBooking(stores, events, zerolog.Nop()),
		accounts: NewAccounts(stores, TokenSettings{
			Secret: "test-secret", AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4,
		}, zerolog.Nop()),
	}
	fixed := time.Date(2022, 6, 1, 10, 0, 0, 0, time.UTC)
	e.catalog.Now = func() time.Time { return fixed }
	e.booking.Now = func() time.Time { return fixed }
	return e
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10)), nil))
	return buf.Bytes()
}

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Fields
}

func (e *env) samplePlay(t *testing.T, title string) *model.Play {
	t.Helper()
	p, err := e.catalog.CreatePlay(context.Background(), PlayInput{Title: title, Description: "Sample description"})
	require.NoError(t, err)
	return p
}

func TestCreatePlayValidation(t *testing.T) {
	e := newEnv(t)
	_, err := e.catalog.CreatePlay(context.Background(), PlayInput{Genres: []uint64{7}})
	fields := validationFields(t, err)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "description")
	assert.Equal(t, []string{`Invalid pk "7" - object does not exist.`}, fields["genres"])
}

func TestCreatePlayLinksRelations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g, err := e.catalog.CreateGenre(ctx, "Drama")
	require.NoError(t, err)
	a, err := e.catalog.CreateActor(ctx, "George", "Clooney")
	require.NoError(t, err)

	p, err := e.catalog.CreatePlay(ctx, PlayInput{
		Title: "Sample play", Description: "Sample description",
		Genres: []uint64{g.ID, g.ID}, Actors: []uint64{a.ID},
	})
	require.NoError(t, err)

	got, err := e.catalog.GetPlay(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Genre{*g}, got.Genres)
	assert.Equal(t, "George Clooney", got.Actors[0].FullName())
	assert.Empty(t, got.Image)
}

func TestListPlaysFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g, _ := e.catalog.CreateGenre(ctx, "Drama")
	a, _ := e.catalog.CreateActor(ctx, "George", "Clooney")
	e.samplePlay(t, "Sample play")
	withGenre, err := e.catalog.CreatePlay(ctx, PlayInput{Title: "Genre play", Description: "d", Genres: []uint64{g.ID}})
	require.NoError(t, err)
	withActor, err := e.catalog.CreatePlay(ctx, PlayInput{Title: "Actor play", Description: "d", Actors: []uint64{a.ID}})
	require.NoError(t, err)
	e.samplePlay(t, "Another test")

	all, err := e.catalog.ListPlays(ctx, PlayQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byTitle, err := e.catalog.ListPlays(ctx, PlayQuery{Title: "te"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Another test", byTitle[0].Title)

	// whitespace in the search term is significant
	padded, err := e.catalog.ListPlays(ctx, PlayQuery{Title: "test "})
	require.NoError(t, err)
	assert.Empty(t, padded)
	leading, err := e.catalog.ListPlays(ctx, PlayQuery{Title: " test"})
	require.NoError(t, err)
	require.Len(t, leading, 1)
	assert.Equal(t, "Another test", leading[0].Title)

	byGenre, err := e.catalog.ListPlays(ctx, PlayQuery{Genres: "999, " + uintStr(g.ID)})
	require.NoError(t, err)
	require.Len(t, byGenre, 1)
	assert.Equal(t, withGenre.ID, byGenre[0].ID)

	byActor, err := e.catalog.ListPlays(ctx, PlayQuery{Actors: uintStr(a.ID)})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, withActor.ID, byActor[0].ID)

	_, err = e.catalog.ListPlays(ctx, PlayQuery{Genres: "1,x"})
	assert.Contains(t, validationFields(t, err), "genres")
}

func uintStr(id uint64) string { return strconv.FormatUint(id, 10) }

func TestUploadPlayImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.samplePlay(t, "The Tempest")

	first, err := e.catalog.UploadPlayImage(ctx, p.ID, bytes.NewReader(jpegBytes(t)))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first.Image, "uploads/plays/the-tempest-"), first.Image)
	assert.FileExists(t, filepath.Join(e.root, filepath.FromSlash(first.Image)))
	assert.Equal(t, "/media/"+first.Image, e.catalog.ImageURL(first.Image))

	second, err := e.catalog.UploadPlayImage(ctx, p.ID, bytes.NewReader(jpegBytes(t)))
	require.NoError(t, err)
	assert.NotEqual(t, first.Image, second.Image)
	assert.FileExists(t, filepath.Join(e.root, filepath.FromSlash(second.Image)))
	_, statErr := os.Stat(filepath.Join(e.root, filepath.FromSlash(first.Image)))
	assert.True(t, os.IsNotExist(statErr), "previous image must be removed")

	require.Len(t, e.events.events, 2)
	ev := e.events.events[1]
	assert.Equal(t, queue.QueuePlayImageUploaded, ev.queue)
	assert.Equal(t, queue.PlayImageUploadedEvent{
		PlayID: p.ID, Title: "The Tempest", Image: second.Image, Replaced: first.Image,
		UploadedAt: "2022-06-01T10:00:00Z",
	}, ev.event)
}

func TestUploadPlayImageRejectsNonImage(t *testing.T) {
	e := newEnv(t)
	p := e.samplePlay(t, "Sample play")

	_, err := e.catalog.UploadPlayImage(context.Background(), p.ID, strings.NewReader("not image"))
	assert.Contains(t, validationFields(t, err), "image")

	got, err := e.catalog.GetPlay(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Image)
	_, statErr := os.Stat(filepath.Join(e.root, "uploads"))
	assert.True(t, os.IsNotExist(statErr), "nothing may be stored")
	assert.Empty(t, e.events.events)
}

func TestUploadPlayImageUnknownPlay(t *testing.T) {
	e := newEnv(t)
	_, err := e.catalog.UploadPlayImage(context.Background(), 42, bytes.NewReader(jpegBytes(t)))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadSurvivesPublisherFailure(t *testing.T) {
	e := newEnv(t)
	e.events.err = errors.New("broker down")
	p := e.samplePlay(t, "Sample play")
	got, err := e.catalog.UploadPlayImage(context.Background(), p.ID, bytes.NewReader(jpegBytes(t)))
	require.NoError(t, err)
	assert.NotEmpty(t, got.Image)
}

func TestGenreAndHallValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.catalog.CreateGenre(ctx, "Drama")
	require.NoError(t, err)
	_, err = e.catalog.CreateGenre(ctx, "Drama")
	assert.Contains(t, validationFields(t, err), "name")

	_, err = e.catalog.CreateHall(ctx, "Blue", 0, 10)
	fields := validationFields(t, err)
	assert.Contains(t, fields, "rows")
	assert.NotContains(t, fields, "seats_in_row")

	h, err := e.catalog.CreateHall(ctx, "Blue", 20, 20)
	require.NoError(t, err)
	assert.Equal(t, uint32(400), h.Capacity())
}

func TestCreateHallRejectsOversizedLayout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.CreateHall(ctx, "Huge", 65536, 65536)
	fields := validationFields(t, err)
	assert.Equal(t, []string{"Ensure this value is less than or equal to 1000."}, fields["rows"])
	assert.Contains(t, fields, "seats_in_row")

	_, err = e.catalog.CreateHall(ctx, "Wrap", 1<<32+1, 10)
	fields = validationFields(t, err)
	assert.Contains(t, fields, "rows")
	assert.NotContains(t, fields, "seats_in_row")

	halls, err := e.catalog.ListHalls(ctx)
	require.NoError(t, err)
	assert.Empty(t, halls)

	h, err := e.catalog.CreateHall(ctx, "Max", model.MaxHallDimension, model.MaxHallDimension)
	require.NoError(t, err)
	assert.Equal(t, uint32(1_000_000), h.Capacity())
}

func (e *env) samplePerformance(t *testing.T, rows, seats int) *model.Performance {
	t.Helper()
	ctx := context.Background()
	p := e.samplePlay(t, "Sample play")
	h, err := e.catalog.CreateHall(ctx, "Blue", rows, seats)
	require.NoError(t, err)
	pf, err := e.catalog.CreatePerformance(ctx, PerformanceInput{
		ShowTime: time.Date(2022, 6, 2, 14, 0, 0, 0, time.UTC), Play: p.ID, TheatreHall: h.ID,
	})
	require.NoError(t, err)
	return pf
}

func TestPerformancesListAndDetail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pf := e.samplePerformance(t, 2, 2)

	list, err := e.catalog.ListPerformances(ctx, PerformanceQuery{Date: "2022-06-02"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Sample play", list[0].Play.Title)
	assert.Equal(t, uint32(4), list[0].TicketsAvailable())

	none, err := e.catalog.ListPerformances(ctx, PerformanceQuery{Date: "2022-06-03"})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = e.catalog.ListPerformances(ctx, PerformanceQuery{Date: "02/06/2022"})
	assert.Contains(t, validationFields(t, err), "date")

	_, err = e.booking.CreateReservation(ctx, 1, []TicketInput{{Row: 2, Seat: 1, Performance: pf.ID}})
	require.NoError(t, err)

	detail, err := e.catalog.GetPerformance(ctx, pf.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Seat{{Row: 2, Seat: 1}}, detail.TakenPlaces)
	assert.Equal(t, uint32(3), detail.Performance.TicketsAvailable())

	_, err = e.catalog.GetPerformance(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePerformanceUnknownRefs(t *testing.T) {
	e := newEnv(t)
	_, err := e.catalog.CreatePerformance(context.Background(), PerformanceInput{ShowTime: time.Now(), Play: 5, TheatreHall: 6})
	fields := validationFields(t, err)
	assert.Contains(t, fields, "play")
	assert.Contains(t, fields, "theatre_hall")
}

func TestCreateReservationValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pf := e.samplePerformance(t, 2, 3)

	_, err := e.booking.CreateReservation(ctx, 1, nil)
	assert.Contains(t, validationFields(t, err), "tickets")

	_, err = e.booking.CreateReservation(ctx, 1, []TicketInput{{Row: 3, Seat: 1, Performance: pf.ID}})
	assert.Equal(t, []string{"ticket 0: row number must be in available range: (1, rows): (1, 2)"}, validationFields(t, err)["tickets"])

	_, err = e.booking.CreateReservation(ctx, 1, []TicketInput{{Row: 1, Seat: 4, Performance: pf.ID}})
	assert.Equal(t, []string{"ticket 0: seat number must be in available range: (1, seats_in_row): (1, 3)"}, validationFields(t, err)["tickets"])

	_, err = e.booking.CreateReservation(ctx, 1, []TicketInput{
		{Row: 1, Seat: 1, Performance: pf.ID},
		{Row: 1, Seat: 1, Performance: pf.ID},
	})
	assert.Len(t, validationFields(t, err)["tickets"], 1)

	_, err = e.booking.CreateReservation(ctx, 1, []TicketInput{{Row: 1, Seat: 1, Performance: 404}})
	assert.Contains(t, validationFields(t, err), "tickets")

	assert.Empty(t, e.events.events)
}

func TestCreateReservation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pf := e.samplePerformance(t, 2, 3)

	res, err := e.booking.CreateReservation(ctx, 7, []TicketInput{
		{Row: 1, Seat: 1, Performance: pf.ID},
		{Row: 1, Seat: 2, Performance: pf.ID},
	})
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
	assert.Equal(t, "Sample play", res.Tickets[0].Performance.Play.Title)

	_, err = e.booking.CreateReservation(ctx, 8, []TicketInput{{Row: 1, Seat: 2, Performance: pf.ID}})
	assert.Equal(t, []string{"ticket 0: seat 2 in row 1 is already taken."}, validationFields(t, err)["tickets"])

	mine, err := e.booking.ListReservations(ctx, 7)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Tickets, 2)

	require.Len(t, e.events.events, 1)
	ev, ok := e.events.events[0].event.(queue.ReservationCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, res.ID, ev.ReservationID)
	assert.Len(t, ev.Tickets, 2)
}

func TestAccountsFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, pair, err := e.accounts.Register(ctx, " Test@Test.com ", "testpass")
	require.NoError(t, err)
	assert.Equal(t, "test@test.com", u.Email)
	assert.False(t, u.IsStaff)
	assert.NotEmpty(t, pair.Access.Token)

	_, _, err = e.accounts.Register(ctx, "test@test.com", "testpass")
	assert.Contains(t, validationFields(t, err), "email")

	_, _, err = e.accounts.Register(ctx, "bad-email", "x")
	fields := validationFields(t, err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")

	_, _, err = e.accounts.Login(ctx, "test@test.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, login, err := e.accounts.Login(ctx, "TEST@test.com", "testpass")
	require.NoError(t, err)

	_, rotated, err := e.accounts.Refresh(ctx, login.Refresh.Raw)
	require.NoError(t, err)
	_, _, err = e.accounts.Refresh(ctx, login.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken, "a refresh token is single use")

	require.NoError(t, e.accounts.Logout(ctx, u.ID, ""))
	_, _, err = e.accounts.Refresh(ctx, rotated.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	me, err := e.accounts.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)

	admin, err := e.accounts.CreateUser(ctx, "admin@test.com", "adminpass", true)
	require.NoError(t, err)
	assert.True(t, admin.IsStaff)
}

func TestEnsureStaff(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, created, err := e.accounts.EnsureStaff(ctx, " Root@Test.com ", "rootpass")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsStaff)
	assert.Equal(t, "root@test.com", u.Email)

	again, created, err := e.accounts.EnsureStaff(ctx, "root@test.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)

	_, _, err = e.accounts.Login(ctx, "root@test.com", "rootpass")
	require.NoError(t, err, "the original password is kept")

	_, _, err = e.accounts.EnsureStaff(ctx, "new@test.com", "x")
	assert.Contains(t, validationFields(t, err), "password")
}
