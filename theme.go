package folioblog

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folioblog/views"
)

// handleTheme stores the theme preference and returns to the referring page.
func (a *App) handleTheme(c echo.Context) error {
	mode := c.Param("mode")
	if !views.ValidTheme(mode) {
		return echo.ErrNotFound
	}
	if err := setTheme(c, mode); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, backTo(c))
}

// backTo returns the referring path when it is on this host, or "/".
func backTo(c echo.Context) string {
	ref, err := url.Parse(c.Request().Referer())
	if err != nil || ref.Host != c.Request().Host || ref.Path == "" {
		return "/"
	}
	if strings.HasPrefix(ref.Path, "//") || strings.HasPrefix(ref.Path, "/theme/") {
		return "/"
	}
	return ref.RequestURI()
}
