// Package render draws the quake alert image: a static satellite map centred
// on the epicentre with shockwave rings and a text overlay.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const DefaultStaticMapURL = "https://maps.googleapis.com/maps/api/staticmap"

type Config struct {
	StaticMapURL string
	APIKey       string
	Size         int
	Scale        int
	MapType      string
	OutputDir    string
	Footer       string
	Timeout      time.Duration
	Local        *time.Location
}

// Renderer produces PNG files in OutputDir, one per request.
type Renderer struct {
	config     Config
	httpClient *http.Client
}

func New(config Config) (*Renderer, error) {
	if config.Size <= 0 {
		config.Size = 600
	}
	if config.Scale <= 0 {
		config.Scale = 2
	}
	if config.MapType == "" {
		config.MapType = "hybrid"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Local == nil {
		config.Local = time.UTC
	}
	if config.OutputDir == "" {
		config.OutputDir = filepath.Join(os.TempDir(), "quakewatch", "maps")
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Renderer{config: config, httpClient: &http.Client{Timeout: config.Timeout}}, nil
}

// Render writes the alert image for req and returns its path.
func (r *Renderer) Render(ctx context.Context, req models.RenderRequest) (string, error) {
	base, err := r.background(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailure, err)
	}

	canvas := image.NewRGBA(base.Bounds())
	draw.Draw(canvas, canvas.Bounds(), base, base.Bounds().Min, draw.Src)
	drawShockwave(canvas, req.RingRadius)
	r.drawText(canvas, req)

	name := fmt.Sprintf("quake-%s-%s.png", safeName(req.QuakeID), uuid.NewString()[:8])
	path := filepath.Join(r.config.OutputDir, name)
	if err := writePNG(path, canvas); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailure, err)
	}
	return path, nil
}

// background fetches the static map, or returns a plain canvas when no map
// service is configured.
func (r *Renderer) background(ctx context.Context, req models.RenderRequest) (image.Image, error) {
	px := r.config.Size * r.config.Scale
	if r.config.StaticMapURL == "" {
		img := image.NewRGBA(image.Rect(0, 0, px, px))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 28, G: 40, B: 51, A: 255}), image.Point{}, draw.Src)
		return img, nil
	}

	u, err := url.Parse(r.config.StaticMapURL)
	if err != nil {
		return nil, fmt.Errorf("invalid static map url: %w", err)
	}
	q := u.Query()
	q.Set("center", fmt.Sprintf("%f,%f", req.Latitude, req.Longitude))
	q.Set("zoom", strconv.Itoa(req.Zoom))
	q.Set("size", fmt.Sprintf("%dx%d", r.config.Size, r.config.Size))
	q.Set("scale", strconv.Itoa(r.config.Scale))
	q.Set("maptype", r.config.MapType)
	if r.config.APIKey != "" {
		q.Set("key", r.config.APIKey)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("static map request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("static map returned status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to decode static map: %w", err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func safeName(id string) string {
	b := []byte(id)
	for i, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			b[i] = '_'
		}
	}
	if len(b) > 40 {
		b = b[:40]
	}
	return string(b)
}
