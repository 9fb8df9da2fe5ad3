package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// StaffOrReadOnly lets every authenticated caller use safe methods (GET,
// HEAD, OPTIONS) and requires a staff user for anything else.  It must run
// after JWTAuth.
func StaffOrReadOnly() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if _, ok := UserID(c); !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
            }
            switch c.Request().Method {
            case http.MethodGet, http.MethodHead, http.MethodOptions:
                return next(c)
            }
            if !IsStaff(c) {
                return c.JSON(http.StatusForbidden, echo.Map{"detail": "You do not have permission to perform this action."})
            }
            return next(c)
        }
    }
}
