package middleware // reusable HTTP middleware for the theatre API

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theatre-service/internal/utils"
)

// Context keys set by JWTAuth.
const (
    CtxUserID  = "user_id"  // uint64
    CtxIsStaff = "is_staff" // bool
)

// JWTAuth validates the Bearer access token and stores the caller's id and
// staff flag in the context.  Requests without a valid token get 401 with
// a {"detail": ...} body.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Given token not valid for any token type"})
            }
            uid, _ := claims.UserID() // checked by ParseAccessToken

            c.Set(CtxUserID, uid)
            c.Set(CtxIsStaff, claims.Staff)
            return next(c)
        }
    }
}
