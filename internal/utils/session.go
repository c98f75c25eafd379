package utils // package utils provides password and session token helpers

import (
	"errors"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// SessionClaims is the payload of the session cookie.  LoginTime is the
// epoch second of the successful login; the server decides how long that
// stays valid, so no exp claim is set.
type SessionClaims struct {
	Login     string `json:"login"`
	LoginTime int64  `json:"login_time"`
	jwt.RegisteredClaims
}

// ErrInvalidSession covers every way a cookie value can fail to parse.
var ErrInvalidSession = errors.New("invalid session token")

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewSessionID returns a sortable unique id for the jti claim.
func NewSessionID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// SignSession builds and signs an HS256 session token for login.
func SignSession(secret, login string, loginTime time.Time) (string, error) {
	claims := SessionClaims{
		Login:     login,
		LoginTime: loginTime.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       NewSessionID(loginTime),
			IssuedAt: jwt.NewNumericDate(loginTime),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSession verifies the signature of raw and returns its claims.  It
// does not check the session age; that is the validator's job.
func ParseSession(secret, raw string) (SessionClaims, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return SessionClaims{}, ErrInvalidSession
	}
	return claims, nil
}
