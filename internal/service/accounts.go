package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sdoering/warp/internal/metrics"
	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/utils"
)

// Accounts handles logins and the admin bootstrap.
type Accounts struct {
	users  *repository.UserRepo
	secret string
	log    *slog.Logger
	check  func(record, plain string) (bool, error)

	Now func() time.Time
}

func NewAccounts(users *repository.UserRepo, secret string, log *slog.Logger) *Accounts {
	if log == nil {
		log = slog.Default()
	}
	return &Accounts{users: users, secret: secret, log: log, check: utils.CheckPassword, Now: time.Now}
}

// Login checks the credentials and returns a signed session token.  Every
// failure the caller could act on is reported as ErrBadCredentials.
func (a *Accounts) Login(ctx context.Context, login, password string) (string, model.Person, error) {
	p, err := a.authenticate(ctx, login, password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		} else {
			metrics.LoginAttempts.WithLabelValues("error").Inc()
		}
		return "", model.Person{}, err
	}
	token, err := utils.SignSession(a.secret, p.Login, a.Now())
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return "", model.Person{}, fmt.Errorf("sign session: %w", err)
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return token, p, nil
}

func (a *Accounts) authenticate(ctx context.Context, login, password string) (model.Person, error) {
	if login == "" || password == "" {
		return model.Person{}, ErrBadCredentials
	}
	p, err := a.users.GetPerson(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = a.check(utils.DummyPasswordRecord(), password)
			return model.Person{}, ErrBadCredentials
		}
		return model.Person{}, err
	}
	if p.AccountType.Blocked() || p.PasswordHash == "" {
		_, _ = a.check(utils.DummyPasswordRecord(), password)
		return model.Person{}, ErrBadCredentials
	}
	ok, err := a.check(p.PasswordHash, password)
	if err != nil {
		a.log.Warn("unusable password record", "login", p.Login, "error", err)
		return model.Person{}, ErrBadCredentials
	}
	if !ok {
		return model.Person{}, ErrBadCredentials
	}
	return p, nil
}

// EnsureAdmin creates an admin person named login when both login and
// password are set and no principal with that login exists yet.  An
// existing row is never touched.
func (a *Accounts) EnsureAdmin(ctx context.Context, login, password string) (bool, error) {
	if login == "" || password == "" {
		return false, nil
	}
	if _, err := a.users.GetPrincipal(ctx, login); err == nil {
		a.log.Info("admin bootstrap skipped, login exists", "login", login)
		return false, nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return false, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	err = a.users.CreatePerson(ctx, model.Person{
		Login:        login,
		Name:         login,
		AccountType:  model.AccountAdmin,
		PasswordHash: hash,
	})
	if errors.Is(err, repository.ErrLoginExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	a.log.Info("admin account created", "login", login)
	return true, nil
}
