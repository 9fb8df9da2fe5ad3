package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
)

// RequestLogger stamps every request with an X-Request-ID (reusing the
// client's when present) and logs one line per request once it finishes.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()

            rid := req.Header.Get(echo.HeaderXRequestID)
            if rid == "" {
                rid = uuid.NewString()
            }
            c.Response().Header().Set(echo.HeaderXRequestID, rid)

            reqLogger := logger.With().Str("request_id", rid).Logger()
            c.SetRequest(req.WithContext(reqLogger.WithContext(req.Context())))

            err := next(c)
            if err != nil {
                c.Error(err) // let Echo write the response so the status is known
            }

            status := c.Response().Status
            ev := reqLogger.Info()
            switch {
            case status >= 500:
                ev = reqLogger.Error().Err(err)
            case status >= 400:
                ev = reqLogger.Warn()
            }
            ev.Str("method", req.Method).
                Str("path", req.URL.Path).
                Str("route", c.Path()).
                Int("status", status).
                Int64("bytes", c.Response().Size).
                Dur("latency", time.Since(start)).
                Str("user", identity(c)).
                Msg("request")
            return nil
        }
    }
}
