package folioblog

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (a *App) handlePreview(c echo.Context) error {
	if !a.Config.PreviewEnabled() {
		return echo.ErrNotFound
	}
	if IsPreview(c) {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, a.Views.PreviewLogin(a.site(), a.chrome(c), false))
}

func (a *App) handlePreviewLogin(c echo.Context) error {
	if !a.Config.PreviewEnabled() {
		return echo.ErrNotFound
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.PreviewPassword)) == 1 {
		if err := setPreviewSession(c); err != nil {
			return err
		}
		a.log.Info("folioblog: preview session started", "ip", ip)
		return c.Redirect(http.StatusSeeOther, "/")
	}
	a.loginLimiter.Record(ip)
	return RenderStatus(c, http.StatusUnauthorized, a.Views.PreviewLogin(a.site(), a.chrome(c), true))
}

func handlePreviewLogout(c echo.Context) error {
	if err := clearPreviewSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// requirePreview rejects requests outside a preview session.
func (a *App) requirePreview(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if IsPreview(c) {
			return next(c)
		}
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			return echo.NewHTTPError(http.StatusUnauthorized, "preview session required")
		}
		return c.Redirect(http.StatusSeeOther, "/preview/")
	}
}
