package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/utils"
)

// Identity is what the rest of a request knows about its caller.
type Identity struct {
	Login   string
	IsAdmin bool
}

// AccountLookup returns the account type of a person.  A missing person
// or a group login yields repository.ErrUserNotFound.
type AccountLookup interface {
	AccountType(ctx context.Context, login string) (model.AccountType, error)
}

// SessionValidator re-checks a parsed session on every request.  Nothing
// is cached, so blocking or deleting a user takes effect on their next
// request.
type SessionValidator struct {
	users    AccountLookup
	lifetime time.Duration
	Now      func() time.Time
}

// NewSessionValidator builds a validator for sessions that live
// lifetimeDays days after login.
func NewSessionValidator(users AccountLookup, lifetimeDays int) *SessionValidator {
	return &SessionValidator{
		users:    users,
		lifetime: time.Duration(lifetimeDays) * 24 * time.Hour,
		Now:      time.Now,
	}
}

// Validate turns claims into an Identity.  It returns ErrUnauthenticated
// when the login is missing, the session is older than the lifetime, or
// the account no longer exists or is blocked.  Other errors are storage
// failures.
func (v *SessionValidator) Validate(ctx context.Context, claims utils.SessionClaims) (Identity, error) {
	if claims.Login == "" {
		return Identity{}, ErrUnauthenticated
	}
	age := v.Now().Unix() - claims.LoginTime
	if age > int64(v.lifetime/time.Second) {
		return Identity{}, ErrUnauthenticated
	}

	t, err := v.users.AccountType(ctx, claims.Login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, fmt.Errorf("load account: %w", err)
	}
	if t.Blocked() {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Login: claims.Login, IsAdmin: t == model.AccountAdmin}, nil
}
