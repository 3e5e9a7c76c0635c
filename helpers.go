package folioblog

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// queryPage reads a 1-indexed page number, defaulting to 1.
func queryPage(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// queryInt reads an integer query parameter clamped to [lo, hi].
func queryInt(c echo.Context, name string, def, lo, hi int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return max(lo, min(n, hi))
}

// maxQueryLen bounds the search query taken from the URL.
const maxQueryLen = 200

func querySearch(c echo.Context) string {
	q := strings.TrimSpace(c.QueryParam("q"))
	if len(q) > maxQueryLen {
		q = q[:maxQueryLen]
	}
	return q
}
