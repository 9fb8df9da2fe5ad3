package handler

import (
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theatre-service/internal/model"
    "github.com/iliyamo/theatre-service/internal/service"
)

// Response shapes.  List views denormalize related names; detail views
// nest related objects.

type GenreResponse struct {
    ID   uint64 `json:"id"`
    Name string `json:"name"`
}

type ActorResponse struct {
    ID        uint64 `json:"id"`
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
    FullName  string `json:"full_name"`
}

type TheatreHallResponse struct {
    ID         uint64 `json:"id"`
    Name       string `json:"name"`
    Rows       uint32 `json:"rows"`
    SeatsInRow uint32 `json:"seats_in_row"`
    Capacity   uint32 `json:"capacity"`
}

type PlayListResponse struct {
    ID     uint64   `json:"id"`
    Title  string   `json:"title"`
    Genres []string `json:"genres"`
    Actors []string `json:"actors"`
    Image  *string  `json:"image"`
}

type PlayDetailResponse struct {
    ID          uint64          `json:"id"`
    Title       string          `json:"title"`
    Description string          `json:"description"`
    Genres      []GenreResponse `json:"genres"`
    Actors      []ActorResponse `json:"actors"`
    Image       *string         `json:"image"`
}

// PlayResponse is returned by create; it never carries an image.
type PlayResponse struct {
    ID          uint64   `json:"id"`
    Title       string   `json:"title"`
    Description string   `json:"description"`
    Genres      []uint64 `json:"genres"`
    Actors      []uint64 `json:"actors"`
}

type PerformanceListResponse struct {
    ID                  uint64    `json:"id"`
    ShowTime            time.Time `json:"show_time"`
    PlayTitle           string    `json:"play_title"`
    PlayImage           *string   `json:"play_image"`
    TheatreHallName     string    `json:"theatre_hall_name"`
    TheatreHallCapacity uint32    `json:"theatre_hall_capacity"`
    TicketsAvailable    uint32    `json:"tickets_available"`
}

type SeatResponse struct {
    Row  uint32 `json:"row"`
    Seat uint32 `json:"seat"`
}

type PerformanceDetailResponse struct {
    ID          uint64              `json:"id"`
    ShowTime    time.Time           `json:"show_time"`
    Play        PlayListResponse    `json:"play"`
    TheatreHall TheatreHallResponse `json:"theatre_hall"`
    TakenPlaces []SeatResponse      `json:"taken_places"`
}

type PerformanceResponse struct {
    ID          uint64    `json:"id"`
    ShowTime    time.Time `json:"show_time"`
    Play        uint64    `json:"play"`
    TheatreHall uint64    `json:"theatre_hall"`
}

type TicketPerformanceResponse struct {
    ID              uint64    `json:"id"`
    ShowTime        time.Time `json:"show_time"`
    PlayTitle       string    `json:"play_title"`
    TheatreHallName string    `json:"theatre_hall_name"`
}

type TicketResponse struct {
    ID          uint64                    `json:"id"`
    Row         uint32                    `json:"row"`
    Seat        uint32                    `json:"seat"`
    Performance TicketPerformanceResponse `json:"performance"`
}

type ReservationResponse struct {
    ID        uint64           `json:"id"`
    CreatedAt time.Time        `json:"created_at"`
    Tickets   []TicketResponse `json:"tickets"`
}

// imageURL turns an asset name into an absolute URL for the current
// request, or nil when no image is set.
func imageURL(c echo.Context, cat *service.Catalog, name string) *string {
    u := cat.ImageURL(name)
    if u == "" {
        return nil
    }
    if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
        u = c.Scheme() + "://" + c.Request().Host + u
    }
    return &u
}

func toGenre(g model.Genre) GenreResponse { return GenreResponse{ID: g.ID, Name: g.Name} }

func toActor(a model.Actor) ActorResponse {
    return ActorResponse{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName, FullName: a.FullName()}
}

func toHall(h model.TheatreHall) TheatreHallResponse {
    return TheatreHallResponse{ID: h.ID, Name: h.Name, Rows: h.Rows, SeatsInRow: h.SeatsInRow, Capacity: h.Capacity()}
}

func toPlayList(c echo.Context, cat *service.Catalog, p model.Play) PlayListResponse {
    out := PlayListResponse{
        ID:     p.ID,
        Title:  p.Title,
        Genres: make([]string, 0, len(p.Genres)),
        Actors: make([]string, 0, len(p.Actors)),
        Image:  imageURL(c, cat, p.Image),
    }
    for _, g := range p.Genres {
        out.Genres = append(out.Genres, g.Name)
    }
    for _, a := range p.Actors {
        out.Actors = append(out.Actors, a.FullName())
    }
    return out
}

func toPlayDetail(c echo.Context, cat *service.Catalog, p model.Play) PlayDetailResponse {
    out := PlayDetailResponse{
        ID:          p.ID,
        Title:       p.Title,
        Description: p.Description,
        Genres:      make([]GenreResponse, 0, len(p.Genres)),
        Actors:      make([]ActorResponse, 0, len(p.Actors)),
        Image:       imageURL(c, cat, p.Image),
    }
    for _, g := range p.Genres {
        out.Genres = append(out.Genres, toGenre(g))
    }
    for _, a := range p.Actors {
        out.Actors = append(out.Actors, toActor(a))
    }
    return out
}

func toPerformanceList(c echo.Context, cat *service.Catalog, pf model.Performance) PerformanceListResponse {
    return PerformanceListResponse{
        ID:                  pf.ID,
        ShowTime:            pf.ShowTime,
        PlayTitle:           pf.Play.Title,
        PlayImage:           imageURL(c, cat, pf.Play.Image),
        TheatreHallName:     pf.Hall.Name,
        TheatreHallCapacity: pf.Hall.Capacity(),
        TicketsAvailable:    pf.TicketsAvailable(),
    }
}

func toReservation(r model.Reservation) ReservationResponse {
    out := ReservationResponse{ID: r.ID, CreatedAt: r.CreatedAt, Tickets: make([]TicketResponse, 0, len(r.Tickets))}
    for _, t := range r.Tickets {
        out.Tickets = append(out.Tickets, TicketResponse{
            ID:   t.ID,
            Row:  t.Row,
            Seat: t.Seat,
            Performance: TicketPerformanceResponse{
                ID:              t.PerformanceID,
                ShowTime:        t.Performance.ShowTime,
                PlayTitle:       t.Performance.Play.Title,
                TheatreHallName: t.Performance.Hall.Name,
            },
        })
    }
    return out
}
