package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

type genreReq struct {
    Name string `json:"name" form:"name" validate:"required,max=255"`
}

type actorReq struct {
    FirstName string `json:"first_name" form:"first_name" validate:"required,max=255"`
    LastName  string `json:"last_name" form:"last_name" validate:"required,max=255"`
}

type hallReq struct {
    Name       string `json:"name" form:"name" validate:"required,max=255"`
    Rows       int    `json:"rows" form:"rows" validate:"required,gte=1,lte=1000"`
    SeatsInRow int    `json:"seats_in_row" form:"seats_in_row" validate:"required,gte=1,lte=1000"`
}

func (h *CatalogHandler) ListGenres(c echo.Context) error {
    genres, err := h.Catalog.ListGenres(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    out := make([]GenreResponse, 0, len(genres))
    for _, g := range genres {
        out = append(out, toGenre(g))
    }
    return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateGenre(c echo.Context) error {
    var req genreReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    g, err := h.Catalog.CreateGenre(c.Request().Context(), req.Name)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, toGenre(*g))
}

func (h *CatalogHandler) ListActors(c echo.Context) error {
    actors, err := h.Catalog.ListActors(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    out := make([]ActorResponse, 0, len(actors))
    for _, a := range actors {
        out = append(out, toActor(a))
    }
    return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateActor(c echo.Context) error {
    var req actorReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    a, err := h.Catalog.CreateActor(c.Request().Context(), req.FirstName, req.LastName)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, toActor(*a))
}

func (h *CatalogHandler) ListHalls(c echo.Context) error {
    halls, err := h.Catalog.ListHalls(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    out := make([]TheatreHallResponse, 0, len(halls))
    for _, hall := range halls {
        out = append(out, toHall(hall))
    }
    return c.JSON(http.StatusOK, out)
}

// CreateHall handles POST /theatre_halls/; capacity is derived.
func (h *CatalogHandler) CreateHall(c echo.Context) error {
    var req hallReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    hall, err := h.Catalog.CreateHall(c.Request().Context(), req.Name, req.Rows, req.SeatsInRow)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, toHall(*hall))
}
