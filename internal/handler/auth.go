package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theatre-service/internal/middleware"
    "github.com/iliyamo/theatre-service/internal/model"
    "github.com/iliyamo/theatre-service/internal/service"
)

// authTimeout bounds the store calls of every auth endpoint.
const authTimeout = 5 * time.Second

// AuthHandler exposes registration, login and token rotation.
type AuthHandler struct {
    Accounts *service.Accounts
}

func NewAuthHandler(a *service.Accounts) *AuthHandler {
    if a == nil {
        panic("nil accounts passed to NewAuthHandler")
    }
    return &AuthHandler{Accounts: a}
}

type credentialsReq struct {
    Email    string `json:"email" form:"email" validate:"required"`
    Password string `json:"password" form:"password" validate:"required"`
}

type refreshReq struct {
    RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type userPart struct {
    ID      uint64 `json:"id"`
    Email   string `json:"email"`
    IsStaff bool   `json:"is_staff"`
}

type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

func toUser(u *model.User) userPart {
    return userPart{ID: u.ID, Email: u.Email, IsStaff: u.IsStaff}
}

func toAuth(u *model.User, p service.TokenPair) authResp {
    return authResp{
        User:    toUser(u),
        Access:  tokenPart{Token: p.Access.Token, Expires: p.Access.Exp},
        Refresh: tokenPart{Token: p.Refresh.Raw, Expires: p.Refresh.Exp}, // raw goes back to the client only
    }
}

// Register creates a regular user and returns a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
    var req credentialsReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    u, pair, err := h.Accounts.Register(ctx, req.Email, req.Password)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, toAuth(u, pair))
}

// Login verifies credentials and returns a fresh pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req credentialsReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    u, pair, err := h.Accounts.Login(ctx, req.Email, req.Password)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toAuth(u, pair))
}

// Refresh revokes the presented refresh token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"refresh_token": []string{"This field is required."}})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    u, pair, err := h.Accounts.Refresh(ctx, req.RefreshToken)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toAuth(u, pair))
}

// Logout revokes one refresh token when given, otherwise all of the
// caller's sessions.  Requires JWTAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
    }
    var req refreshReq
    _ = c.Bind(&req) // an empty body means "everywhere"

    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()
    if err := h.Accounts.Logout(ctx, uid, req.RefreshToken); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
    }
    u, err := h.Accounts.Me(c.Request().Context(), uid)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toUser(u))
}
