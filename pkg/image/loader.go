// Package image loads named visual assets from an asset directory and
// renders them as terminal cell blocks.
package image

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	// Extra decoders beyond what imaging registers.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
)

// ErrNotFound is returned when no asset file matches a logical name.
var ErrNotFound = errors.New("image: asset not found")

// extensions are tried in order for a logical name.
var extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	Dir      string
	Renderer *Renderer
	Logger   *slog.Logger
}

// Loader resolves logical image names ("home", "music") to files in an
// asset directory. Decoded images are kept for the Loader's lifetime.
type Loader struct {
	dir      string
	renderer *Renderer
	logger   *slog.Logger

	mu      sync.Mutex
	decoded map[string]image.Image
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	r := cfg.Renderer
	if r == nil {
		r = NewRenderer(ProtocolHalfblocks, termenv.TrueColor, nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		dir:      cfg.Dir,
		renderer: r,
		logger:   logger,
		decoded:  make(map[string]image.Image),
	}
}

// Resolve returns the asset file for name.
func (l *Loader) Resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("image: invalid asset name %q", name)
	}
	for _, ext := range extensions {
		p := filepath.Join(l.dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%q in %s: %w", name, l.dir, ErrNotFound)
}

// LoadImage decodes the asset for logicalName and returns it as a Node.
func (l *Loader) LoadImage(ctx context.Context, logicalName string) (app.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	img, ok := l.decoded[logicalName]
	l.mu.Unlock()
	if !ok {
		path, err := l.Resolve(logicalName)
		if err != nil {
			return nil, err
		}
		img, err = decodeFile(path)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.decoded[logicalName] = img
		l.mu.Unlock()
		l.logger.Debug("image loaded", "name", logicalName, "path", path,
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}

	return &Picture{name: logicalName, img: img, renderer: l.renderer, logger: l.logger}, nil
}

// Picture is a Node backed by a decoded image.
type Picture struct {
	name     string
	img      image.Image
	renderer *Renderer
	logger   *slog.Logger
}

// Name returns the logical asset name.
func (p *Picture) Name() string { return p.name }

// View renders the picture into width x height cells, centered. On a
// render failure the asset name is shown instead.
func (p *Picture) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	out, err := p.renderer.Render(p.img, width, height)
	if err != nil {
		p.logger.Warn("image render failed", "name", p.name, "error", err)
		out = p.name
	}
	if p.renderer.Protocol() != ProtocolHalfblocks && p.renderer.Protocol() != ProtocolText {
		return out
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, out)
}
