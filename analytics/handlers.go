package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Input limits for recorded values.
const (
	maxPathLen     = 2048
	maxReferrerLen = 2048
)

// Handler records article views and serves the stats endpoints.
type Handler struct {
	store  *Store
	dedupe *rateLimiter
	log    *slog.Logger
	now    func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithClock sets the time source used for timestamps and de-duplication.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// WithLogger sets the logger for recording failures.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// NewHandler creates a new analytics handler. A visitor is counted at most
// once per article every 30 minutes.
func NewHandler(store *Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.dedupe = newRateLimiter(1, 30*time.Minute, h.now)
	return h
}

// Close stops background work.
func (h *Handler) Close() {
	h.dedupe.stop()
}

// Middleware counts successful GET requests for which slugOf reports an
// article slug. Requests with Do Not Track set are not counted.
func (h *Handler) Middleware(slugOf func(c echo.Context) (string, bool)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil || c.Request().Method != http.MethodGet || c.Response().Status != http.StatusOK {
				return err
			}
			slug, ok := slugOf(c)
			if !ok || c.Request().Header.Get("DNT") == "1" {
				return nil
			}
			h.record(c, slug)
			return nil
		}
	}
}

func (h *Handler) record(c echo.Context, slug string) {
	req := c.Request()
	path := req.URL.Path
	if len(path) > maxPathLen {
		return
	}
	ua := req.UserAgent()
	now := h.now().UTC()
	ctx := req.Context()

	if IsBot(ua) {
		if err := h.store.SaveBotView(ctx, BotView{BotName: ExtractBotName(ua), Path: path, Timestamp: now}); err != nil {
			h.log.Error("analytics: save bot view failed", "error", err)
		}
		return
	}

	visitor := h.store.VisitorID(c.RealIP(), ua)
	if !h.dedupe.allow(visitor + "|" + slug) {
		return
	}
	ref := req.Referer()
	if len(ref) > maxReferrerLen {
		ref = ""
	}
	v := View{
		VisitorID: visitor,
		Path:      path,
		Slug:      slug,
		Referrer:  CleanReferrer(ref),
		Device:    DeviceType(ua),
		Timestamp: now,
	}
	if err := h.store.SaveView(ctx, v); err != nil {
		h.log.Error("analytics: save view failed", "error", err)
	}
}

// Popular returns view counts for the most viewed articles over the last `days` days
// (default 30, max 365), at most `limit` (default 5, max 50).
func (h *Handler) Popular(c echo.Context) error {
	days := clampInt(c.QueryParam("days"), 30, 1, 365)
	limit := clampInt(c.QueryParam("limit"), 5, 1, 50)
	stats, err := h.store.TopPages(c.Request().Context(), h.now().AddDate(0, 0, -days), limit)
	if err != nil {
		return err
	}
	if stats == nil {
		stats = []PageStat{}
	}
	return c.JSON(http.StatusOK, stats)
}

// TopSlugs returns the slugs of the most viewed articles over the last days.
func (h *Handler) TopSlugs(ctx context.Context, days, limit int) ([]string, error) {
	stats, err := h.store.TopPages(ctx, h.now().AddDate(0, 0, -days), limit)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(stats))
	for _, s := range stats {
		slugs = append(slugs, s.Slug)
	}
	return slugs, nil
}

// SummaryResponse is the JSON response for the summary endpoint.
type SummaryResponse struct {
	Summary    *Summary `json:"summary"`
	PeriodDays int      `json:"period_days"`
}

// GetSummary returns aggregated statistics as JSON.
func (h *Handler) GetSummary(c echo.Context) error {
	_, days := ParsePeriod(c.QueryParam("period"))
	to := h.now().UTC()
	from := to.AddDate(0, 0, -days)
	sum, err := h.store.GetSummary(c.Request().Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SummaryResponse{Summary: sum, PeriodDays: days})
}

// RegisterRoutes mounts the public popular endpoint and the summary endpoint
// behind authMiddleware.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	e.GET("/api/stats/popular", h.Popular)
	e.GET("/api/stats/summary", h.GetSummary, authMiddleware)
}

func clampInt(raw string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return max(lo, min(n, hi))
}
