package folioblog

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/folioblog/blog"
)

const (
	thumbWidth     = 640
	jpegQuality    = 80
	maxSourceBytes = 10 << 20 // 10MB
	maxThumbs      = 256
)

// thumbnailer downloads post thumbnails, scales them to thumbWidth, and keeps
// the JPEG output in memory.
type thumbnailer struct {
	client *http.Client
	log    *slog.Logger
	group  singleflight.Group

	mu    sync.Mutex
	cache map[string][]byte
	order []string
}

func newThumbnailer(client *http.Client, log *slog.Logger) *thumbnailer {
	return &thumbnailer{
		client: client,
		log:    log,
		cache:  make(map[string][]byte),
	}
}

// Get returns the scaled JPEG for src, fetching it on first use.
func (t *thumbnailer) Get(ctx context.Context, src string) ([]byte, error) {
	t.mu.Lock()
	data, ok := t.cache[src]
	t.mu.Unlock()
	if ok {
		return data, nil
	}

	v, err, _ := t.group.Do(src, func() (any, error) {
		data, err := t.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		t.put(src, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (t *thumbnailer) put(src string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.cache[src]; ok {
		return
	}
	if len(t.order) >= maxThumbs {
		delete(t.cache, t.order[0])
		t.order = t.order[1:]
	}
	t.cache[src] = data
	t.order = append(t.order, src)
}

func (t *thumbnailer) fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	return scaleImage(io.LimitReader(resp.Body, maxSourceBytes))
}

// scaleImage decodes an image, shrinks it to thumbWidth if wider, and
// encodes it as JPEG.
func scaleImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > thumbWidth {
		newH := max(1, h*thumbWidth/w)
		dst := image.NewRGBA(image.Rect(0, 0, thumbWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// handleThumbnail serves the scaled thumbnail of a held post. Only assets
// referenced by a post are fetched. If scaling fails the reader is sent to
// the original image.
func (a *App) handleThumbnail(c echo.Context) error {
	id := c.Param("id")
	posts := a.Store.FetchPosts(c.Request().Context(), blog.FetchOptions{})

	var src string
	for _, p := range posts {
		if p.ThumbnailID == id && p.Thumbnail != "" {
			src = p.Thumbnail
			break
		}
	}
	if !strings.HasPrefix(src, "https://") && !strings.HasPrefix(src, "http://") {
		return echo.ErrNotFound
	}

	data, err := a.thumbs.Get(c.Request().Context(), src)
	if err != nil {
		a.log.Warn("folioblog: thumbnail failed", "id", id, "error", err)
		return c.Redirect(http.StatusFound, src)
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
