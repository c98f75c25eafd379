package model

// AccountType classifies a person.  Blocked and anything above it may not
// log in.
type AccountType int

const (
    AccountAdmin   AccountType = 10
    AccountUser    AccountType = 20
    AccountBlocked AccountType = 90
)

// Valid reports whether t is a person account type.
func (t AccountType) Valid() bool {
    return t == AccountAdmin || t == AccountUser || t == AccountBlocked
}

// Blocked reports whether the account is not allowed to use the app.
func (t AccountType) Blocked() bool { return t >= AccountBlocked }

func (t AccountType) String() string {
    switch t {
    case AccountAdmin:
        return "admin"
    case AccountUser:
        return "user"
    case AccountBlocked:
        return "blocked"
    }
    return "unknown"
}

// Principal is anything that can hold a zone assignment or a seat
// assignment: a Person or a Group.  Both share the login namespace so one
// join covers direct and group-derived assignments.
type Principal interface {
    PrincipalLogin() string
    PrincipalName() string
    principal()
}

// Person is a human account that can log in.
//
// Fields:
//  Login        – unique login, primary key.
//  Name         – display name.
//  AccountType  – admin, user or blocked.
//  PasswordHash – stored credential record; empty when no password is set.
type Person struct {
    Login        string      // users.login
    Name         string      // users.name
    AccountType  AccountType // users.account_type
    PasswordHash string      // users.password (nullable)
}

func (p Person) PrincipalLogin() string { return p.Login }
func (p Person) PrincipalName() string  { return p.Name }
func (Person) principal()               {}

// IsAdmin reports whether the person is an account administrator.
func (p Person) IsAdmin() bool { return p.AccountType == AccountAdmin }

// Group is a named set of persons.  Groups never log in and never have a
// password.
type Group struct {
    Login string // users.login
    Name  string // users.name
}

func (g Group) PrincipalLogin() string { return g.Login }
func (g Group) PrincipalName() string  { return g.Name }
func (Group) principal()               {}
