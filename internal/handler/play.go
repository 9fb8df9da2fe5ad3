package handler

import (
    "errors"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theatre-service/internal/service"
)

// CatalogHandler serves plays, performances, genres, actors and theatre
// halls.
type CatalogHandler struct {
    Catalog        *service.Catalog
    MaxUploadBytes int64
}

// NewCatalogHandler panics on a nil catalog.
func NewCatalogHandler(cat *service.Catalog, maxUploadBytes int64) *CatalogHandler {
    if cat == nil {
        panic("nil catalog passed to NewCatalogHandler")
    }
    return &CatalogHandler{Catalog: cat, MaxUploadBytes: maxUploadBytes}
}

type playReq struct {
    Title       string   `json:"title" form:"title" validate:"required,max=255"`
    Description string   `json:"description" form:"description" validate:"required"`
    Genres      []uint64 `json:"genres" form:"genres"`
    Actors      []uint64 `json:"actors" form:"actors"`
}

// ListPlays handles GET /plays/?title=&genres=&actors=.
func (h *CatalogHandler) ListPlays(c echo.Context) error {
    plays, err := h.Catalog.ListPlays(c.Request().Context(), service.PlayQuery{
        Title:  c.QueryParam("title"),
        Genres: c.QueryParam("genres"),
        Actors: c.QueryParam("actors"),
    })
    if err != nil {
        return respondError(c, err)
    }
    out := make([]PlayListResponse, 0, len(plays))
    for _, p := range plays {
        out = append(out, toPlayList(c, h.Catalog, p))
    }
    return c.JSON(http.StatusOK, out)
}

// GetPlay handles GET /plays/:id/.
func (h *CatalogHandler) GetPlay(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusNotFound, notFound)
    }
    p, err := h.Catalog.GetPlay(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toPlayDetail(c, h.Catalog, *p))
}

// CreatePlay handles POST /plays/.  Any image in the payload is ignored.
func (h *CatalogHandler) CreatePlay(c echo.Context) error {
    var req playReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    p, err := h.Catalog.CreatePlay(c.Request().Context(), service.PlayInput{
        Title:       req.Title,
        Description: req.Description,
        Genres:      req.Genres,
        Actors:      req.Actors,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, PlayResponse{
        ID:          p.ID,
        Title:       p.Title,
        Description: p.Description,
        Genres:      p.GenreIDs(),
        Actors:      p.ActorIDs(),
    })
}

// UploadPlayImage handles POST /plays/:id/upload-image/ with a multipart
// "image" file.
func (h *CatalogHandler) UploadPlayImage(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusNotFound, notFound)
    }
    ctx := c.Request().Context()
    if _, err := h.Catalog.GetPlay(ctx, id); err != nil {
        return respondError(c, err)
    }

    fh, err := c.FormFile("image")
    if err != nil {
        if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
            return respondError(c, service.NewValidationError("image", "No file was submitted."))
        }
        return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed multipart body."})
    }
    if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
        return c.JSON(http.StatusBadRequest, echo.Map{"image": []string{
            fmt.Sprintf("Ensure the file is at most %d bytes (it has %d).", h.MaxUploadBytes, fh.Size),
        }})
    }
    f, err := fh.Open()
    if err != nil {
        return respondError(c, fmt.Errorf("open upload: %w", err))
    }
    defer f.Close()

    p, err := h.Catalog.UploadPlayImage(ctx, id, f)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toPlayDetail(c, h.Catalog, *p))
}
