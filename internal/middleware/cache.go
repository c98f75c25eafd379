package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "log/slog"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/sdoering/warp/internal/config"
)

// captureWriter copies the response body, up to limit bytes, while
// forwarding it to the client.
type captureWriter struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    size     int64
    limit    int64
    overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.overflow {
        if cw.limit > 0 && cw.size+int64(len(b)) > cw.limit {
            cw.overflow = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// ResponseCache keeps successful GET responses in Redis keyed by path.
// Writers that change a cached resource call Purge with its path.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    log *slog.Logger
}

// NewResponseCache returns a cache; with a nil client or a disabled
// config its middleware is a pass-through and Purge a no-op.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *slog.Logger) *ResponseCache {
    if log == nil {
        log = slog.Default()
    }
    return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

// Key is the Redis key for a GET of path.
func (rc *ResponseCache) Key(path string) string {
    sum := sha1.Sum([]byte("GET:" + path))
    return fmt.Sprintf("%s:%x", rc.cfg.Prefix, sum[:])
}

// Purge drops the cached GET response for path.
func (rc *ResponseCache) Purge(ctx context.Context, path string) {
    if !rc.enabled() {
        return
    }
    if err := rc.rdb.Del(ctx, rc.Key(path)).Err(); err != nil {
        rc.log.Warn("cache purge failed", "path", path, "error", err)
    }
}

// Middleware serves hits from Redis and stores 200 responses on a miss.
// A hit whose ETag matches If-None-Match is answered with 304.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(rc.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }
            ctx := c.Request().Context()
            key := rc.Key(c.Request().URL.Path)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    return replay(c, status, hdr, body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.overflow {
                return nil
            }

            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            hdr.Del("X-Request-Id")
            hdr.Del("Content-Length")
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
                rc.log.Warn("cache store failed", "key", key, "error", err)
            }
            return nil
        }
    }
}

func replay(c echo.Context, status int, hdr http.Header, body []byte) error {
    out := c.Response().Header()
    for k, vals := range hdr {
        for _, v := range vals {
            out.Add(k, v)
        }
    }
    out.Set("X-Cache", "HIT")

    if etag := hdr.Get("ETag"); etag != "" && ETagMatches(c.Request().Header.Get("If-None-Match"), etag) {
        return c.NoContent(http.StatusNotModified)
    }
    c.Response().WriteHeader(status)
    _, err := c.Response().Write(body)
    return err
}

// ETagMatches reports whether an If-None-Match header value matches etag
// using the weak comparison.
func ETagMatches(header, etag string) bool {
    if header == "" {
        return false
    }
    want := strings.TrimPrefix(etag, "W/")
    for _, part := range strings.Split(header, ",") {
        part = strings.TrimSpace(part)
        if part == "*" || strings.TrimPrefix(part, "W/") == want {
            return true
        }
    }
    return false
}
