package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger logs one line per request with its route, status and
// latency.  Server errors log at Error, client errors at Warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    log = log.Named("http")
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            status := c.Response().Status
            fields := []zap.Field{
                zap.String("method", c.Request().Method),
                zap.String("route", c.Path()),
                zap.String("uri", c.Request().RequestURI),
                zap.Int("status", status),
                zap.Duration("latency", time.Since(start)),
                zap.String("ip", c.RealIP()),
            }
            if id := UserID(c); id != "" {
                fields = append(fields, zap.String("user_id", id))
            }
            switch {
            case status >= 500:
                log.Error("request", append(fields, zap.Error(err))...)
            case status >= 400:
                log.Warn("request", fields...)
            default:
                log.Info("request", fields...)
            }
            return nil
        }
    }
}
