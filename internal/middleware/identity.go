package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id and whether one is present.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(CtxUserID).(uint64)
    return id, ok && id != 0
}

// IsStaff reports whether the authenticated user may edit the catalog.
func IsStaff(c echo.Context) bool {
    staff, _ := c.Get(CtxIsStaff).(bool)
    return staff
}

// identity names the caller for cache and rate-limit keys: the user id
// when authenticated, otherwise "guest".
func identity(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
