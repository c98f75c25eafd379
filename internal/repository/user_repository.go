package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/model"
)

// accountGroup is how a group row is marked in users.account_type.  It
// never leaves this file: callers see model.Group instead.
const accountGroup = 100

// UserRepo stores persons and groups.  Both live in the users table so
// that zone_assign, seat_assign and group_members can reference either
// through one login column.
type UserRepo struct {
	db *database.DB
}

func NewUserRepo(db *database.DB) *UserRepo { return &UserRepo{db: db} }

type userRow struct {
	login       string
	password    sql.NullString
	name        string
	accountType int
}

func (u userRow) principal() model.Principal {
	if u.accountType >= accountGroup {
		return model.Group{Login: u.login, Name: u.name}
	}
	return model.Person{
		Login:        u.login,
		Name:         u.name,
		AccountType:  model.AccountType(u.accountType),
		PasswordHash: u.password.String,
	}
}

func normalizeLogin(login string) string { return strings.TrimSpace(login) }

// GetPrincipal loads a person or a group by login.
func (r *UserRepo) GetPrincipal(ctx context.Context, login string) (model.Principal, error) {
	return r.getPrincipal(ctx, r.db, login)
}

func (r *UserRepo) getPrincipal(ctx context.Context, q database.Querier, login string) (model.Principal, error) {
	var u userRow
	err := q.QueryRowContext(ctx,
		r.db.Rebind("SELECT login, password, name, account_type FROM users WHERE login = ?"),
		normalizeLogin(login)).Scan(&u.login, &u.password, &u.name, &u.accountType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u.principal(), nil
}

// GetPerson loads a person.  A group login yields ErrUserNotFound.
func (r *UserRepo) GetPerson(ctx context.Context, login string) (model.Person, error) {
	return r.GetPersonTx(ctx, nil, login)
}

// GetPersonTx is GetPerson inside tx; a nil tx uses the pool.
func (r *UserRepo) GetPersonTx(ctx context.Context, tx *sql.Tx, login string) (model.Person, error) {
	var q database.Querier = r.db
	if tx != nil {
		q = tx
	}
	p, err := r.getPrincipal(ctx, q, login)
	if err != nil {
		return model.Person{}, err
	}
	person, ok := p.(model.Person)
	if !ok {
		return model.Person{}, ErrUserNotFound
	}
	return person, nil
}

// AccountType returns the account type of a person; used by the session
// validator on every request.
func (r *UserRepo) AccountType(ctx context.Context, login string) (model.AccountType, error) {
	p, err := r.GetPerson(ctx, login)
	if err != nil {
		return 0, err
	}
	return p.AccountType, nil
}

// ListPeople returns every person ordered by login.
func (r *UserRepo) ListPeople(ctx context.Context) ([]model.Person, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		"SELECT login, password, name, account_type FROM users WHERE account_type < ? ORDER BY login"),
		accountGroup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Person
	for rows.Next() {
		var u userRow
		if err := rows.Scan(&u.login, &u.password, &u.name, &u.accountType); err != nil {
			return nil, err
		}
		out = append(out, u.principal().(model.Person))
	}
	return out, rows.Err()
}

// CreatePerson inserts a new person.  PasswordHash may be empty for an
// account that cannot log in yet.
func (r *UserRepo) CreatePerson(ctx context.Context, p model.Person) error {
	p.Login = normalizeLogin(p.Login)
	if p.Login == "" {
		return fmt.Errorf("empty login")
	}
	if !p.AccountType.Valid() {
		return fmt.Errorf("invalid account type %d", p.AccountType)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		"INSERT INTO users (login, password, name, account_type) VALUES (?, ?, ?, ?)"),
		p.Login, nullString(p.PasswordHash), p.Name, int(p.AccountType))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrLoginExists
		}
		return err
	}
	return nil
}

// PersonUpdate lists the fields to change; nil pointers are left alone.
type PersonUpdate struct {
	Name         *string
	AccountType  *model.AccountType
	PasswordHash *string
}

// UpdatePerson applies u to the person with the given login.
func (r *UserRepo) UpdatePerson(ctx context.Context, login string, u PersonUpdate) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.AccountType != nil {
		if !u.AccountType.Valid() {
			return fmt.Errorf("invalid account type %d", *u.AccountType)
		}
		sets = append(sets, "account_type = ?")
		args = append(args, int(*u.AccountType))
	}
	if u.PasswordHash != nil {
		sets = append(sets, "password = ?")
		args = append(args, nullString(*u.PasswordHash))
	}
	if len(sets) == 0 {
		_, err := r.GetPerson(ctx, login)
		return err
	}
	args = append(args, normalizeLogin(login), accountGroup)
	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE login = ? AND account_type < ?"
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(q), args...))
	if errors.Is(err, database.ErrNoRowsAffected) {
		// MySQL reports 0 affected when the values did not change
		if _, gerr := r.GetPerson(ctx, login); gerr != nil {
			return gerr
		}
		return nil
	}
	return err
}

// DeletePerson removes a person; bookings and assignments cascade.
func (r *UserRepo) DeletePerson(ctx context.Context, login string) error {
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(
		"DELETE FROM users WHERE login = ? AND account_type < ?"), normalizeLogin(login), accountGroup))
	if errors.Is(err, database.ErrNoRowsAffected) {
		return ErrUserNotFound
	}
	return err
}

// CreateGroup inserts a group principal.
func (r *UserRepo) CreateGroup(ctx context.Context, g model.Group) error {
	g.Login = normalizeLogin(g.Login)
	if g.Login == "" {
		return fmt.Errorf("empty login")
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		"INSERT INTO users (login, password, name, account_type) VALUES (?, NULL, ?, ?)"),
		g.Login, g.Name, accountGroup)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrLoginExists
		}
		return err
	}
	return nil
}

// ListGroups returns every group ordered by login.
func (r *UserRepo) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		"SELECT login, name FROM users WHERE account_type >= ? ORDER BY login"), accountGroup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.Login, &g.Name); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetGroup loads a group by login.
func (r *UserRepo) GetGroup(ctx context.Context, login string) (model.Group, error) {
	p, err := r.GetPrincipal(ctx, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return model.Group{}, ErrGroupNotFound
		}
		return model.Group{}, err
	}
	g, ok := p.(model.Group)
	if !ok {
		return model.Group{}, ErrGroupNotFound
	}
	return g, nil
}

// DeleteGroup removes a group; memberships and assignments cascade.
func (r *UserRepo) DeleteGroup(ctx context.Context, login string) error {
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(
		"DELETE FROM users WHERE login = ? AND account_type >= ?"), normalizeLogin(login), accountGroup))
	if errors.Is(err, database.ErrNoRowsAffected) {
		return ErrGroupNotFound
	}
	return err
}

// AddMember puts a person into a group.  Adding an existing member is a
// no-op; nesting groups is not allowed.
func (r *UserRepo) AddMember(ctx context.Context, group, member string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.getGroupTx(ctx, tx, group); err != nil {
			return err
		}
		if _, err := r.GetPersonTx(ctx, tx, member); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, r.db.Rebind(
			"SELECT COUNT(*) FROM group_members WHERE group_login = ? AND login = ?"),
			normalizeLogin(group), normalizeLogin(member)).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, r.db.Rebind(
			"INSERT INTO group_members (group_login, login) VALUES (?, ?)"),
			normalizeLogin(group), normalizeLogin(member))
		return err
	})
}

func (r *UserRepo) getGroupTx(ctx context.Context, tx *sql.Tx, login string) (model.Group, error) {
	p, err := r.getPrincipal(ctx, tx, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return model.Group{}, ErrGroupNotFound
		}
		return model.Group{}, err
	}
	g, ok := p.(model.Group)
	if !ok {
		return model.Group{}, ErrGroupNotFound
	}
	return g, nil
}

// RemoveMember takes a person out of a group.
func (r *UserRepo) RemoveMember(ctx context.Context, group, member string) error {
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(
		"DELETE FROM group_members WHERE group_login = ? AND login = ?"),
		normalizeLogin(group), normalizeLogin(member)))
	if errors.Is(err, database.ErrNoRowsAffected) {
		return ErrUserNotFound
	}
	return err
}

// Members lists the persons in a group ordered by login.
func (r *UserRepo) Members(ctx context.Context, group string) ([]model.Person, error) {
	if _, err := r.GetGroup(ctx, group); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT u.login, u.password, u.name, u.account_type
		   FROM group_members gm
		   JOIN users u ON u.login = gm.login
		  WHERE gm.group_login = ?
		  ORDER BY u.login`), normalizeLogin(group))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Person
	for rows.Next() {
		var u userRow
		if err := rows.Scan(&u.login, &u.password, &u.name, &u.accountType); err != nil {
			return nil, err
		}
		if p, ok := u.principal().(model.Person); ok {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
