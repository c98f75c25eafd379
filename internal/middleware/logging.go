package middleware

import (
    "context"
    "log/slog"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
)

// RequestID tags every request with a UUID in X-Request-Id.
func RequestID() echo.MiddlewareFunc {
    return echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString})
}

// RequestLogger writes one slog record per request.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:    true,
        LogURI:       true,
        LogMethod:    true,
        LogLatency:   true,
        LogRequestID: true,
        LogRemoteIP:  true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            attrs := []slog.Attr{
                slog.String("request_id", v.RequestID),
                slog.String("method", v.Method),
                slog.String("uri", v.URI),
                slog.Int("status", v.Status),
                slog.Duration("latency", v.Latency),
                slog.String("remote_ip", v.RemoteIP),
            }
            if id, ok := CurrentIdentity(c); ok {
                attrs = append(attrs, slog.String("login", id.Login))
            }
            level := slog.LevelInfo
            if v.Error != nil {
                level = slog.LevelError
                attrs = append(attrs, slog.String("error", v.Error.Error()))
            } else if v.Status >= 500 {
                level = slog.LevelError
            }
            log.LogAttrs(context.Background(), level, "request", attrs...)
            return nil
        },
    })
}
