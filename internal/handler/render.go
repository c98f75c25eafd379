package handler

import (
	"github.com/labstack/echo/v4"
	"maragu.dev/gomponents"
)

func render(c echo.Context, status int, node gomponents.Node) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return node.Render(c.Response())
}
