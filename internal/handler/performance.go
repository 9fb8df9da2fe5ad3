package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theatre-service/internal/service"
)

// showTimeLayouts are accepted for show_time, first match wins.
var showTimeLayouts = []string{
    time.RFC3339,
    "2006-01-02T15:04:05",
    "2006-01-02T15:04",
    "2006-01-02 15:04:05",
    "2006-01-02 15:04",
}

type performanceReq struct {
    ShowTime    string `json:"show_time" form:"show_time" validate:"required"`
    Play        uint64 `json:"play" form:"play" validate:"required"`
    TheatreHall uint64 `json:"theatre_hall" form:"theatre_hall" validate:"required"`
}

func parseShowTime(raw string) (time.Time, bool) {
    raw = strings.TrimSpace(raw)
    for _, layout := range showTimeLayouts {
        if t, err := time.Parse(layout, raw); err == nil {
            return t.UTC(), true
        }
    }
    return time.Time{}, false
}

// ListPerformances handles GET /performances/?date=&play=.
func (h *CatalogHandler) ListPerformances(c echo.Context) error {
    perfs, err := h.Catalog.ListPerformances(c.Request().Context(), service.PerformanceQuery{
        Date: c.QueryParam("date"),
        Play: c.QueryParam("play"),
    })
    if err != nil {
        return respondError(c, err)
    }
    out := make([]PerformanceListResponse, 0, len(perfs))
    for _, pf := range perfs {
        out = append(out, toPerformanceList(c, h.Catalog, pf))
    }
    return c.JSON(http.StatusOK, out)
}

// GetPerformance handles GET /performances/:id/.
func (h *CatalogHandler) GetPerformance(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusNotFound, notFound)
    }
    d, err := h.Catalog.GetPerformance(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    out := PerformanceDetailResponse{
        ID:          d.Performance.ID,
        ShowTime:    d.Performance.ShowTime,
        Play:        toPlayList(c, h.Catalog, d.Play),
        TheatreHall: toHall(d.Performance.Hall),
        TakenPlaces: make([]SeatResponse, 0, len(d.TakenPlaces)),
    }
    for _, s := range d.TakenPlaces {
        out.TakenPlaces = append(out.TakenPlaces, SeatResponse{Row: s.Row, Seat: s.Seat})
    }
    return c.JSON(http.StatusOK, out)
}

// CreatePerformance handles POST /performances/.
func (h *CatalogHandler) CreatePerformance(c echo.Context) error {
    var req performanceReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    showTime, ok := parseShowTime(req.ShowTime)
    if !ok {
        return respondError(c, service.NewValidationError("show_time",
            "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss][+HH:MM|-HH:MM|Z]."))
    }
    pf, err := h.Catalog.CreatePerformance(c.Request().Context(), service.PerformanceInput{
        ShowTime:    showTime,
        Play:        req.Play,
        TheatreHall: req.TheatreHall,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, PerformanceResponse{
        ID:          pf.ID,
        ShowTime:    pf.ShowTime,
        Play:        pf.PlayID,
        TheatreHall: pf.TheatreHallID,
    })
}
