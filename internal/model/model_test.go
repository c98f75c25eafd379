package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name       string
		a, b, c, d int64
		want       bool
	}{
		{"disjoint before", 0, 10, 20, 30, false},
		{"disjoint after", 20, 30, 0, 10, false},
		{"adjacent end to start", 0, 10, 10, 20, false},
		{"adjacent start to end", 10, 20, 0, 10, false},
		{"contained", 0, 100, 30, 45, true},
		{"containing", 30, 45, 0, 100, true},
		{"partial left", 0, 20, 10, 30, true},
		{"partial right", 10, 30, 0, 20, true},
		{"identical", 5, 6, 5, 6, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.a, tc.b, tc.c, tc.d))
			// symmetric
			assert.Equal(t, tc.want, Overlaps(tc.c, tc.d, tc.a, tc.b))
		})
	}
}

func TestBookingOverlaps(t *testing.T) {
	b := Booking{FromTS: 9 * 3600, ToTS: 10 * 3600}
	assert.False(t, b.Overlaps(10*3600, 11*3600))
	assert.True(t, b.Overlaps(9*3600+1800, 9*3600+2700))
}

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleAdmin.Outranks(RoleUser))
	assert.True(t, RoleUser.Outranks(RoleViewer))
	assert.False(t, RoleViewer.Outranks(RoleAdmin))
	assert.True(t, RoleViewer.Outranks(RoleNone))
	assert.False(t, RoleNone.Outranks(RoleViewer))

	assert.True(t, RoleAdmin.AtLeast(RoleUser))
	assert.True(t, RoleUser.AtLeast(RoleUser))
	assert.False(t, RoleViewer.AtLeast(RoleUser))
	assert.False(t, RoleNone.AtLeast(RoleViewer))
}

func TestMinRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, MinRole(RoleViewer, RoleAdmin, RoleUser))
	assert.Equal(t, RoleUser, MinRole(RoleViewer, RoleUser))
	assert.Equal(t, RoleViewer, MinRole(RoleNone, RoleViewer))
	assert.Equal(t, RoleNone, MinRole())
	assert.Equal(t, RoleNone, MinRole(Role(42)))
}

func TestRoleJSON(t *testing.T) {
	var v struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"viewer"}`), &v))
	assert.Equal(t, RoleViewer, v.Role)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"viewer"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"role":"owner"}`), &v))
}

func TestPrincipalVariants(t *testing.T) {
	ps := []Principal{
		Person{Login: "alice", Name: "Alice", AccountType: AccountAdmin},
		Group{Login: "devs", Name: "Developers"},
	}
	var people, groups int
	for _, p := range ps {
		switch v := p.(type) {
		case Person:
			people++
			assert.True(t, v.IsAdmin())
		case Group:
			groups++
			assert.Equal(t, "devs", v.PrincipalLogin())
		}
	}
	assert.Equal(t, 1, people)
	assert.Equal(t, 1, groups)
}

func TestAccountTypeBlocked(t *testing.T) {
	assert.False(t, AccountAdmin.Blocked())
	assert.False(t, AccountUser.Blocked())
	assert.True(t, AccountBlocked.Blocked())
	assert.True(t, AccountType(100).Blocked())
}
