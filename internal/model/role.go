package model

import "fmt"

// Role is the privilege level a principal holds on a zone.  The numeric
// values are the ones stored in zone_assign.zone_role; a smaller value
// grants more privilege, so Admin < User < Viewer.
type Role int

const (
    RoleNone   Role = 0  // no assignment; never stored
    RoleAdmin  Role = 10 // may manage seats and book for others
    RoleUser   Role = 20 // may book seats
    RoleViewer Role = 30 // may only look at the zone
)

// Valid reports whether r is one of the stored roles.
func (r Role) Valid() bool {
    return r == RoleAdmin || r == RoleUser || r == RoleViewer
}

// Outranks reports whether r grants strictly more privilege than o.
// RoleNone never outranks anything and is outranked by every valid role.
func (r Role) Outranks(o Role) bool {
    if !r.Valid() {
        return false
    }
    if !o.Valid() {
        return true
    }
    return r < o
}

// AtLeast reports whether r grants at least the privilege of min.
func (r Role) AtLeast(min Role) bool {
    return r.Valid() && min.Valid() && r <= min
}

func (r Role) String() string {
    switch r {
    case RoleAdmin:
        return "admin"
    case RoleUser:
        return "user"
    case RoleViewer:
        return "viewer"
    }
    return "none"
}

// MinRole returns the most privileged of the given roles, ignoring
// anything that is not a valid role.  RoleNone is returned when no valid
// role is present.
func MinRole(roles ...Role) Role {
    best := RoleNone
    for _, r := range roles {
        if r.Outranks(best) {
            best = r
        }
    }
    return best
}

// ParseRole accepts either the name ("admin", "user", "viewer") or the
// stored number.
func ParseRole(s string) (Role, error) {
    switch s {
    case "admin", "10":
        return RoleAdmin, nil
    case "user", "20":
        return RoleUser, nil
    case "viewer", "30":
        return RoleViewer, nil
    }
    return RoleNone, fmt.Errorf("unknown zone role %q", s)
}

// MarshalText renders the role by name in JSON payloads.
func (r Role) MarshalText() ([]byte, error) {
    if !r.Valid() {
        return nil, fmt.Errorf("invalid zone role %d", int(r))
    }
    return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
    v, err := ParseRole(string(b))
    if err != nil {
        return err
    }
    *r = v
    return nil
}
