// Package view renders the server-side HTML pages with gomponents.
package view

import (
	"strconv"
	"time"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/sdoering/warp/internal/service"
)

type navItem struct {
	Label string
	Href  string
	Key   string
	Admin bool
}

var navItems = []navItem{
	{Label: "Zones", Href: "/", Key: "home"},
	{Label: "My bookings", Href: "/bookings", Key: "bookings"},
	{Label: "Report", Href: "/bookings/report", Key: "report", Admin: true},
	{Label: "Users", Href: "/users", Key: "users", Admin: true},
	{Label: "Groups", Href: "/groups", Key: "groups", Admin: true},
	{Label: "Manage zones", Href: "/zones", Key: "zones", Admin: true},
}

func page(title, active string, id service.Identity, body ...Node) Node {
	nav := make([]Node, 0, len(navItems)+1)
	for _, item := range navItems {
		if item.Admin && !id.IsAdmin {
			continue
		}
		nav = append(nav, A(Href(item.Href), If(item.Key == active, Class("active")), Text(item.Label)))
	}
	nav = append(nav, Span(Class("who"), Text(id.Login)), A(Href("/logout"), Text("Log out")))

	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title+" | warp")),
			Link(Rel("stylesheet"), Href("/static/warp.css")),
		),
		Body(
			Header(Nav(Group(nav))),
			Main(H1(Text(title)), Group(body)),
		),
	)
}

func formatTS(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
}

func emptyRow(cols int, msg string) Node {
	return Tr(Td(Attr("colspan", strconv.Itoa(cols)), Class("empty"), Text(msg)))
}
