package view

import (
	"fmt"
	"strconv"
	"strings"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/service"
)

// LoginPage is the sign-in form.  errMsg is shown above the form.
func LoginPage(errMsg, login string) Node {
	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text("Sign in | warp")),
			Link(Rel("stylesheet"), Href("/static/warp.css")),
		),
		Body(
			Class("login-body"),
			Main(
				Class("login-wrap"),
				H1(Text("warp")),
				If(errMsg != "", P(Class("error"), Text(errMsg))),
				Form(
					Method("post"),
					Action("/login"),
					Label(For("login"), Text("Login")),
					Input(ID("login"), Name("login"), Type("text"), Value(login), Required()),
					Label(For("password"), Text("Password")),
					Input(ID("password"), Name("password"), Type("password"), Required()),
					Button(Type("submit"), Text("Sign in")),
				),
			),
		),
	)
}

// IndexPage lists the zones the caller can see, grouped by zone group.
func IndexPage(id service.Identity, zones []model.UserZone) Node {
	var body []Node
	if len(zones) == 0 {
		body = append(body, P(Text("You have no zones assigned yet.")))
	}
	group := "\x00"
	var items []Node
	flush := func() {
		if len(items) > 0 {
			body = append(body, Ul(Group(items)))
			items = nil
		}
	}
	for _, z := range zones {
		if z.ZoneGroup != group {
			flush()
			group = z.ZoneGroup
			if group != "" {
				body = append(body, H2(Text(group)))
			}
		}
		items = append(items, Li(
			A(Href(fmt.Sprintf("/zone/%d", z.ID)), Text(z.Name)),
			Span(Class("role"), Text(" ("+z.Role.String()+")")),
		))
	}
	flush()
	return page("Zones", "home", id, body...)
}

// ZoneData is everything the zone page shows.
type ZoneData struct {
	Zone      model.Zone
	Role      model.Role
	Seats     []model.Seat
	Assignees map[int64][]string
	Bookings  []model.BookingDetail
	Day       string // YYYY-MM-DD shown in the heading
}

// ZonePage shows the floor plan, the seats and the bookings of one day.
func ZonePage(id service.Identity, d ZoneData) Node {
	bySeat := make(map[int64][]model.BookingDetail)
	for _, b := range d.Bookings {
		bySeat[b.SeatID] = append(bySeat[b.SeatID], b)
	}

	rows := make([]Node, 0, len(d.Seats))
	for _, s := range d.Seats {
		var slots []string
		for _, b := range bySeat[s.ID] {
			slots = append(slots, fmt.Sprintf("%s-%s %s", formatTS(b.FromTS)[11:], formatTS(b.ToTS)[11:], b.Login))
		}
		state := "free"
		switch {
		case !s.Enabled:
			state = "disabled"
		case !service.CanBookSeat(d.Role, d.Assignees[s.ID], id.Login) && d.Role != model.RoleAdmin:
			state = "not for you"
		case len(slots) > 0:
			state = "partly booked"
		}
		rows = append(rows, Tr(
			Td(Text(s.Name)),
			Td(Text(strconv.Itoa(s.X)+", "+strconv.Itoa(s.Y))),
			Td(Text(state)),
			Td(Text(strings.Join(d.Assignees[s.ID], ", "))),
			Td(Text(strings.Join(slots, "; "))),
		))
	}
	if len(rows) == 0 {
		rows = append(rows, emptyRow(5, "No seats in this zone."))
	}

	return page(d.Zone.Name, "home", id,
		P(Text("Your role: "+d.Role.String()+" · Bookings on "+d.Day)),
		If(d.Zone.ImageID != nil, Img(Class("map"), Src(fmt.Sprintf("/zone/image/%d", d.Zone.ID)), Alt(d.Zone.Name))),
		Table(
			THead(Tr(Th(Text("Seat")), Th(Text("Position")), Th(Text("State")), Th(Text("Assigned to")), Th(Text("Bookings")))),
			TBody(Group(rows)),
		),
	)
}

// BookingsPage lists bookings; report adds the login column.
func BookingsPage(id service.Identity, title, active string, rows []model.BookingDetail, truncated bool) Node {
	trs := make([]Node, 0, len(rows))
	for _, b := range rows {
		trs = append(trs, Tr(
			Td(Text(b.ZoneName)),
			Td(Text(b.SeatName)),
			Td(Text(b.Login)),
			Td(Text(formatTS(b.FromTS))),
			Td(Text(formatTS(b.ToTS))),
		))
	}
	if len(trs) == 0 {
		trs = append(trs, emptyRow(5, "No bookings."))
	}
	return page(title, active, id,
		If(truncated, P(Class("warning"), Text("The list was cut off at the configured maximum number of rows."))),
		Table(
			THead(Tr(Th(Text("Zone")), Th(Text("Seat")), Th(Text("Login")), Th(Text("From")), Th(Text("To")))),
			TBody(Group(trs)),
		),
	)
}

// UsersPage lists people for admins.
func UsersPage(id service.Identity, people []model.Person) Node {
	return page("Users", "users", id,
		Table(
			THead(Tr(Th(Text("Login")), Th(Text("Name")), Th(Text("Account")))),
			TBody(Map(people, func(p model.Person) Node {
				return Tr(Td(Text(p.Login)), Td(Text(p.Name)), Td(Text(p.AccountType.String())))
			})),
		),
	)
}

// GroupsPage lists groups with their members.
func GroupsPage(id service.Identity, groups []model.Group, members map[string][]model.Person) Node {
	return page("Groups", "groups", id,
		Table(
			THead(Tr(Th(Text("Group")), Th(Text("Name")), Th(Text("Members")))),
			TBody(Map(groups, func(g model.Group) Node {
				logins := make([]string, 0, len(members[g.Login]))
				for _, m := range members[g.Login] {
					logins = append(logins, m.Login)
				}
				return Tr(
					Td(A(Href("/groups/assign/"+g.Login), Text(g.Login))),
					Td(Text(g.Name)),
					Td(Text(strings.Join(logins, ", "))),
				)
			})),
		),
	)
}

// ZonesPage lists every zone for admins.
func ZonesPage(id service.Identity, zones []model.Zone) Node {
	return page("Manage zones", "zones", id,
		Table(
			THead(Tr(Th(Text("ID")), Th(Text("Group")), Th(Text("Name")), Th(Text("Map")), Th())),
			TBody(Map(zones, func(z model.Zone) Node {
				hasMap := "no"
				if z.ImageID != nil {
					hasMap = "yes"
				}
				return Tr(
					Td(Text(strconv.FormatInt(z.ID, 10))),
					Td(Text(z.ZoneGroup)),
					Td(A(Href(fmt.Sprintf("/zone/%d", z.ID)), Text(z.Name))),
					Td(Text(hasMap)),
					Td(
						A(Href(fmt.Sprintf("/zones/assign/%d", z.ID)), Text("Roles")), Text(" "),
						A(Href(fmt.Sprintf("/zones/modify/%d", z.ID)), Text("Seats")),
					),
				)
			})),
		),
	)
}

// GroupMembersPage shows one group and its members.
func GroupMembersPage(id service.Identity, g model.Group, members []model.Person) Node {
	title := g.Login
	if g.Name != "" {
		title = g.Name + " (" + g.Login + ")"
	}
	rows := make([]Node, 0, len(members))
	for _, m := range members {
		rows = append(rows, Tr(Td(Text(m.Login)), Td(Text(m.Name))))
	}
	if len(rows) == 0 {
		rows = append(rows, emptyRow(2, "This group has no members."))
	}
	return page(title, "groups", id,
		Table(
			THead(Tr(Th(Text("Login")), Th(Text("Name")))),
			TBody(Group(rows)),
		),
	)
}

// ZoneAssignPage lists the role assignments of a zone.
func ZoneAssignPage(id service.Identity, z model.Zone, assigns []model.ZoneAssign) Node {
	rows := make([]Node, 0, len(assigns))
	for _, a := range assigns {
		rows = append(rows, Tr(Td(Text(a.Login)), Td(Text(a.Role.String()))))
	}
	if len(rows) == 0 {
		rows = append(rows, emptyRow(2, "Nobody is assigned to this zone."))
	}
	return page(z.Name+": roles", "zones", id,
		Table(
			THead(Tr(Th(Text("Login")), Th(Text("Role")))),
			TBody(Group(rows)),
		),
	)
}

// ZoneModifyPage lists every seat of a zone with its position, state and
// allow-list.
func ZoneModifyPage(id service.Identity, z model.Zone, seats []model.Seat, assignees map[int64][]string) Node {
	rows := make([]Node, 0, len(seats))
	for _, s := range seats {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		rows = append(rows, Tr(
			Td(Text(strconv.FormatInt(s.ID, 10))),
			Td(Text(s.Name)),
			Td(Text(strconv.Itoa(s.X)+", "+strconv.Itoa(s.Y))),
			Td(Text(state)),
			Td(Text(strings.Join(assignees[s.ID], ", "))),
		))
	}
	if len(rows) == 0 {
		rows = append(rows, emptyRow(5, "No seats in this zone."))
	}
	return page(z.Name+": seats", "zones", id,
		If(z.ImageID != nil, Img(Class("map"), Src(fmt.Sprintf("/zone/image/%d", z.ID)), Alt(z.Name))),
		Table(
			THead(Tr(Th(Text("ID")), Th(Text("Seat")), Th(Text("Position")), Th(Text("State")), Th(Text("Assigned to")))),
			TBody(Group(rows)),
		),
	)
}
