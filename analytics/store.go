package analytics

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Store provides database operations for analytics. It can share a
// connection with other components.
type Store struct {
	db   *sql.DB
	salt string
}

// NewStore creates the analytics tables on db if needed and loads the
// installation salt, generating one on first use.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.initSalt(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS page_views (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			path TEXT NOT NULL,
			slug TEXT NOT NULL,
			referrer TEXT NOT NULL DEFAULT '',
			device TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bot_views (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_name TEXT NOT NULL,
			path TEXT NOT NULL,
			ts INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_page_views_ts ON page_views(ts);
		CREATE INDEX IF NOT EXISTS idx_page_views_slug ON page_views(slug);
		CREATE INDEX IF NOT EXISTS idx_bot_views_ts ON bot_views(ts);

		CREATE TABLE IF NOT EXISTS analytics_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (s *Store) migrate(ctx context.Context) error {
	verStr, err := s.GetSetting(ctx, "schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		if version, err = strconv.Atoi(verStr); err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version >= currentSchemaVersion {
		return nil
	}
	return s.SetSetting(ctx, "schema_version", strconv.Itoa(currentSchemaVersion))
}

func (s *Store) initSalt(ctx context.Context) error {
	v, err := s.GetSetting(ctx, "hash_salt")
	if err != nil {
		return fmt.Errorf("read hash salt: %w", err)
	}
	if v == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		v = hex.EncodeToString(b)
		if err := s.SetSetting(ctx, "hash_salt", v); err != nil {
			return fmt.Errorf("store hash salt: %w", err)
		}
	}
	s.salt = v
	return nil
}

// VisitorID returns the anonymous visitor hash for an IP and User-Agent.
func (s *Store) VisitorID(ip, userAgent string) string {
	return hash(s.salt, ip, userAgent)
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM analytics_settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analytics_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SaveView stores a page view.
func (s *Store) SaveView(ctx context.Context, v View) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_views (visitor_id, path, slug, referrer, device, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.Path, v.Slug, v.Referrer, v.Device, v.Timestamp.UTC().Unix())
	return err
}

// SaveBotView stores a crawler request.
func (s *Store) SaveBotView(ctx context.Context, bv BotView) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_views (bot_name, path, ts) VALUES (?, ?, ?)`,
		bv.BotName, bv.Path, bv.Timestamp.UTC().Unix())
	return err
}

// TopPages returns the most viewed articles since the given time.
func (s *Store) TopPages(ctx context.Context, since time.Time, limit int) ([]PageStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, MIN(path), COUNT(*) AS views FROM page_views
		 WHERE ts >= ? GROUP BY slug ORDER BY views DESC, slug LIMIT ?`,
		since.UTC().Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PageStat
	for rows.Next() {
		var p PageStat
		if err := rows.Scan(&p.Slug, &p.Path, &p.Views); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetSummary aggregates views between from and to.
func (s *Store) GetSummary(ctx context.Context, from, to time.Time) (*Summary, error) {
	lo, hi := from.UTC().Unix(), to.UTC().Unix()
	sum := &Summary{
		Period: from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM page_views WHERE ts >= ? AND ts <= ?`,
		lo, hi).Scan(&sum.TotalViews, &sum.UniqueVisitors); err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bot_views WHERE ts >= ? AND ts <= ?`,
		lo, hi).Scan(&sum.BotViews); err != nil {
		return nil, fmt.Errorf("count bot views: %w", err)
	}

	top, err := s.TopPages(ctx, from, 10)
	if err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}
	sum.TopPages = top

	if sum.Devices, err = s.dimension(ctx, `SELECT device, COUNT(*) FROM page_views WHERE ts >= ? AND ts <= ? GROUP BY device ORDER BY 2 DESC, 1`, lo, hi); err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	if sum.Referrers, err = s.dimension(ctx, `SELECT referrer, COUNT(*) FROM page_views WHERE ts >= ? AND ts <= ? GROUP BY referrer ORDER BY 2 DESC, 1 LIMIT 10`, lo, hi); err != nil {
		return nil, fmt.Errorf("referrers: %w", err)
	}
	if sum.Bots, err = s.dimension(ctx, `SELECT bot_name, COUNT(*) FROM bot_views WHERE ts >= ? AND ts <= ? GROUP BY bot_name ORDER BY 2 DESC, 1 LIMIT 10`, lo, hi); err != nil {
		return nil, fmt.Errorf("bots: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date(ts, 'unixepoch') AS day, COUNT(*) FROM page_views
		 WHERE ts >= ? AND ts <= ? GROUP BY day ORDER BY day`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("daily views: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyView
		if err := rows.Scan(&d.Date, &d.Views); err != nil {
			return nil, err
		}
		sum.DailyViews = append(sum.DailyViews, d)
	}
	return sum, rows.Err()
}

func (s *Store) dimension(ctx context.Context, query string, args ...any) ([]DimensionStat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DimensionStat
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CleanupOldViews removes views and bot views recorded before cutoff.
func (s *Store) CleanupOldViews(ctx context.Context, cutoff time.Time) error {
	ts := cutoff.UTC().Unix()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM page_views WHERE ts < ?`, ts); err != nil {
		return fmt.Errorf("cleanup page_views: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bot_views WHERE ts < ?`, ts); err != nil {
		return fmt.Errorf("cleanup bot_views: %w", err)
	}
	return nil
}

// StartCleanupScheduler runs periodic cleanup of old data. Returns a stop function.
func (s *Store) StartCleanupScheduler(retention, interval time.Duration, log *slog.Logger) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				if err := s.CleanupOldViews(context.Background(), cutoff); err != nil {
					log.Error("analytics: cleanup failed", "error", err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
