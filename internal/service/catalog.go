package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/theatre-service/internal/model"
	"github.com/iliyamo/theatre-service/internal/queue"
	"github.com/iliyamo/theatre-service/internal/repository"
	"github.com/iliyamo/theatre-service/internal/storage"
)

const (
	msgRequired    = "This field is required."
	msgNotImage    = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	maxTitleLength = 255
	maxNameLength  = 255
	showDateLayout = "2006-01-02"
)

// Catalog implements plays, genres, actors, theatre halls and
// performances.
type Catalog struct {
	Plays        PlayStore
	Genres       GenreStore
	Actors       ActorStore
	Halls        HallStore
	Performances PerformanceStore
	Assets       storage.AssetStore
	Events       Publisher
	Log          zerolog.Logger
	Now          func() time.Time
}

// NewCatalog wires a Catalog from the given stores.
func NewCatalog(s Stores, assets storage.AssetStore, events Publisher, logger zerolog.Logger) *Catalog {
	return &Catalog{
		Plays:        s.Plays,
		Genres:       s.Genres,
		Actors:       s.Actors,
		Halls:        s.Halls,
		Performances: s.Performances,
		Assets:       assets,
		Events:       events,
		Log:          logger.With().Str("component", "catalog").Logger(),
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// ImageURL returns the public URL of an asset name, or "" when no image
// is set.
func (c *Catalog) ImageURL(name string) string {
	if name == "" {
		return ""
	}
	return c.Assets.URL(name)
}

// PlayQuery carries the raw list filters as received in the query string.
type PlayQuery struct {
	Title  string
	Genres string // comma separated ids
	Actors string // comma separated ids
}

// ParseIDs splits "1,2,3" into ids.  Blank input yields nil.
func ParseIDs(raw string) ([]uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid id", p)
		}
		out = append(out, id)
	}
	return out, nil
}

// ListPlays returns the plays matching q, ordered by id.
func (c *Catalog) ListPlays(ctx context.Context, q PlayQuery) ([]model.Play, error) {
	f := model.PlayFilter{Title: q.Title}
	verr := &ValidationError{}
	var err error
	if f.GenreIDs, err = ParseIDs(q.Genres); err != nil {
		verr.Add("genres", err.Error())
	}
	if f.ActorIDs, err = ParseIDs(q.Actors); err != nil {
		verr.Add("actors", err.Error())
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	plays, err := c.Plays.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list plays: %w", err)
	}
	return plays, nil
}

// GetPlay returns one play with genres and actors.
func (c *Catalog) GetPlay(ctx context.Context, id uint64) (*model.Play, error) {
	p, err := c.Plays.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get play %d: %w", id, err)
	}
	return p, nil
}

// PlayInput is the payload of CreatePlay.  Images are never accepted here.
type PlayInput struct {
	Title       string
	Description string
	Genres      []uint64
	Actors      []uint64
}

// CreatePlay validates in and stores the play with its links.
func (c *Catalog) CreatePlay(ctx context.Context, in PlayInput) (*model.Play, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	verr := &ValidationError{}
	if in.Title == "" {
		verr.Add("title", msgRequired)
	} else if len(in.Title) > maxTitleLength {
		verr.Add("title", fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength))
	}
	if in.Description == "" {
		verr.Add("description", msgRequired)
	}
	if err := c.checkRefs(ctx, verr, "genres", in.Genres, c.Genres.ExistingIDs); err != nil {
		return nil, err
	}
	if err := c.checkRefs(ctx, verr, "actors", in.Actors, c.Actors.ExistingIDs); err != nil {
		return nil, err
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	p := &model.Play{Title: in.Title, Description: in.Description}
	for _, id := range dedupe(in.Genres) {
		p.Genres = append(p.Genres, model.Genre{ID: id})
	}
	for _, id := range dedupe(in.Actors) {
		p.Actors = append(p.Actors, model.Actor{ID: id})
	}
	if err := c.Plays.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) {
			return nil, NewValidationError("genres", "Referenced genre or actor does not exist.")
		}
		return nil, fmt.Errorf("create play: %w", err)
	}
	return p, nil
}

// checkRefs adds one message per id in ids that the store does not know.
func (c *Catalog) checkRefs(ctx context.Context, verr *ValidationError, field string, ids []uint64,
	existing func(context.Context, []uint64) ([]uint64, error)) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := existing(ctx, ids)
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	known := make(map[uint64]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			verr.Add(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
		}
	}
	return nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// UploadPlayImage validates data as an image, stores it and points the
// play at it.  The previously associated asset is removed afterwards.
// Nothing is stored for an unknown play or invalid bytes.
func (c *Catalog) UploadPlayImage(ctx context.Context, playID uint64, data io.Reader) (*model.Play, error) {
	p, err := c.GetPlay(ctx, playID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, NewValidationError("image", "No file was submitted.")
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(buf) == 0 {
		return nil, NewValidationError("image", "The submitted file is empty.")
	}
	ext, err := storage.DetectImage(bytes.NewReader(buf))
	if err != nil {
		return nil, NewValidationError("image", msgNotImage)
	}

	name := storage.PlayImageName(p.Title, ext)
	if err := c.Assets.Save(ctx, name, bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	previous, err := c.Plays.SetImage(ctx, playID, name)
	if err != nil {
		if derr := c.Assets.Delete(ctx, name); derr != nil {
			c.Log.Warn().Err(derr).Str("image", name).Msg("remove orphaned upload failed")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set play image: %w", err)
	}
	if previous != "" && previous != name {
		if err := c.Assets.Delete(ctx, previous); err != nil {
			c.Log.Warn().Err(err).Str("image", previous).Msg("remove previous image failed")
		}
	}
	c.Log.Info().Uint64("play_id", playID).Str("image", name).Msg("play image uploaded")

	c.publish(ctx, queue.QueuePlayImageUploaded, queue.PlayImageUploadedEvent{
		PlayID:     playID,
		Title:      p.Title,
		Image:      name,
		Replaced:   previous,
		UploadedAt: c.Now().Format(time.RFC3339),
	})
	return c.GetPlay(ctx, playID)
}

// publish sends an event; failures are logged and otherwise ignored.
func (c *Catalog) publish(ctx context.Context, queueName string, event any) {
	if c.Events == nil {
		return
	}
	if err := c.Events.Publish(ctx, queueName, event); err != nil {
		c.Log.Warn().Err(err).Str("queue", queueName).Msg("event not published")
	}
}

// ---- genres / actors / halls ----

func (c *Catalog) ListGenres(ctx context.Context) ([]model.Genre, error) {
	return c.Genres.List(ctx)
}

func (c *Catalog) CreateGenre(ctx context.Context, name string) (*model.Genre, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, NewValidationError("name", msgRequired)
	case len(name) > maxNameLength:
		return nil, NewValidationError("name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
	}
	g := &model.Genre{Name: name}
	if err := c.Genres.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, NewValidationError("name", "genre with this name already exists.")
		}
		return nil, fmt.Errorf("create genre: %w", err)
	}
	return g, nil
}

func (c *Catalog) ListActors(ctx context.Context) ([]model.Actor, error) {
	return c.Actors.List(ctx)
}

func (c *Catalog) CreateActor(ctx context.Context, first, last string) (*model.Actor, error) {
	a := &model.Actor{FirstName: strings.TrimSpace(first), LastName: strings.TrimSpace(last)}
	verr := &ValidationError{}
	if a.FirstName == "" {
		verr.Add("first_name", msgRequired)
	}
	if a.LastName == "" {
		verr.Add("last_name", msgRequired)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if err := c.Actors.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create actor: %w", err)
	}
	return a, nil
}

func (c *Catalog) ListHalls(ctx context.Context) ([]model.TheatreHall, error) {
	return c.Halls.List(ctx)
}

func (c *Catalog) CreateHall(ctx context.Context, name string, rows, seatsInRow int) (*model.TheatreHall, error) {
	name = strings.TrimSpace(name)
	verr := &ValidationError{}
	if name == "" {
		verr.Add("name", msgRequired)
	}
	checkDimension(verr, "rows", rows)
	checkDimension(verr, "seats_in_row", seatsInRow)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	h := &model.TheatreHall{Name: name, Rows: uint32(rows), SeatsInRow: uint32(seatsInRow)}
	if err := c.Halls.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create theatre hall: %w", err)
	}
	return h, nil
}

func checkDimension(verr *ValidationError, field string, n int) {
	switch {
	case n < 1:
		verr.Add(field, "Ensure this value is greater than or equal to 1.")
	case n > model.MaxHallDimension:
		verr.Add(field, fmt.Sprintf("Ensure this value is less than or equal to %d.", model.MaxHallDimension))
	}
}

// ---- performances ----

// PerformanceQuery carries the raw performance list filters.
type PerformanceQuery struct {
	Date string // YYYY-MM-DD
	Play string // play id
}

// ListPerformances returns the performances matching q ordered by id.
func (c *Catalog) ListPerformances(ctx context.Context, q PerformanceQuery) ([]model.Performance, error) {
	var f model.PerformanceFilter
	verr := &ValidationError{}
	if d := strings.TrimSpace(q.Date); d != "" {
		day, err := time.Parse(showDateLayout, d)
		if err != nil {
			verr.Add("date", "Enter a valid date in YYYY-MM-DD format.")
		} else {
			f.Date = &day
		}
	}
	if p := strings.TrimSpace(q.Play); p != "" {
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			verr.Add("play", fmt.Sprintf("%q is not a valid id", p))
		}
		f.PlayID = id
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	out, err := c.Performances.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list performances: %w", err)
	}
	return out, nil
}

// PerformanceDetail is a performance with its full play and the seats
// already sold.
type PerformanceDetail struct {
	Performance model.Performance
	Play        model.Play
	TakenPlaces []model.Seat
}

// GetPerformance returns one performance with its taken places.
func (c *Catalog) GetPerformance(ctx context.Context, id uint64) (*PerformanceDetail, error) {
	pf, err := c.Performances.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get performance %d: %w", id, err)
	}
	play, err := c.GetPlay(ctx, pf.PlayID)
	if err != nil {
		return nil, err
	}
	taken, err := c.Performances.TakenSeats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("taken seats %d: %w", id, err)
	}
	return &PerformanceDetail{Performance: *pf, Play: *play, TakenPlaces: taken}, nil
}

// PerformanceInput is the payload of CreatePerformance.
type PerformanceInput struct {
	ShowTime    time.Time
	Play        uint64
	TheatreHall uint64
}

// CreatePerformance schedules a play in a hall.
func (c *Catalog) CreatePerformance(ctx context.Context, in PerformanceInput) (*model.Performance, error) {
	verr := &ValidationError{}
	if in.ShowTime.IsZero() {
		verr.Add("show_time", msgRequired)
	}
	if in.Play == 0 {
		verr.Add("play", msgRequired)
	} else if _, err := c.Plays.GetByID(ctx, in.Play); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check play: %w", err)
		}
		verr.Add("play", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", in.Play))
	}
	if in.TheatreHall == 0 {
		verr.Add("theatre_hall", msgRequired)
	} else if _, err := c.Halls.GetByID(ctx, in.TheatreHall); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check theatre hall: %w", err)
		}
		verr.Add("theatre_hall", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", in.TheatreHall))
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	pf := &model.Performance{PlayID: in.Play, TheatreHallID: in.TheatreHall, ShowTime: in.ShowTime.UTC()}
	if err := c.Performances.Create(ctx, pf); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) {
			return nil, NewValidationError("play", "Referenced play or theatre hall does not exist.")
		}
		return nil, fmt.Errorf("create performance: %w", err)
	}
	return pf, nil
}
