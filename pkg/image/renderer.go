package image

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/blacktop/go-termimg"
	"github.com/disintegration/imaging"
	"github.com/muesli/termenv"
)

// Protocol selects how images are drawn into terminal cells.
type Protocol int

const (
	// ProtocolHalfblocks draws two pixels per cell with U+2580 and
	// foreground/background colors. It composes with other cell content.
	ProtocolHalfblocks Protocol = iota
	// ProtocolText draws a luminance ramp of ASCII characters.
	ProtocolText
	ProtocolKitty
	ProtocolITerm2
	ProtocolSixel
)

var protocolNames = map[Protocol]string{
	ProtocolHalfblocks: "halfblocks",
	ProtocolText:       "text",
	ProtocolKitty:      "kitty",
	ProtocolITerm2:     "iterm2",
	ProtocolSixel:      "sixel",
}

// String returns the configuration name of p.
func (p Protocol) String() string {
	if s, ok := protocolNames[p]; ok {
		return s
	}
	return fmt.Sprintf("protocol(%d)", int(p))
}

// ParseProtocol maps a configuration name to a Protocol. "auto" and ""
// resolve from the color profile: terminals without color get text, every
// other terminal gets halfblocks. Graphics protocols are only used when
// named explicitly since their escapes do not compose with cell layout.
func ParseProtocol(name string, profile termenv.Profile) (Protocol, error) {
	switch name {
	case "", "auto":
		if profile == termenv.Ascii {
			return ProtocolText, nil
		}
		return ProtocolHalfblocks, nil
	}
	for p, s := range protocolNames {
		if s == name {
			return p, nil
		}
	}
	return ProtocolHalfblocks, fmt.Errorf("unknown image protocol %q", name)
}

// asciiRamp orders characters from dark to light coverage.
const asciiRamp = " .:-=+*#%@"

// Renderer converts images into terminal strings for a fixed protocol and
// color profile, caching results by content and size.
type Renderer struct {
	protocol Protocol
	profile  termenv.Profile
	cache    *Cache
}

// NewRenderer creates a Renderer. A nil cache gets a default-sized one.
func NewRenderer(protocol Protocol, profile termenv.Profile, cache *Cache) *Renderer {
	if cache == nil {
		cache = NewCache(0)
	}
	return &Renderer{protocol: protocol, profile: profile, cache: cache}
}

// Protocol returns the active rendering protocol.
func (r *Renderer) Protocol() Protocol { return r.protocol }

// Cache returns the renderer's cache.
func (r *Renderer) Cache() *Cache { return r.cache }

// Render draws img into at most width x height cells.
func (r *Renderer) Render(img image.Image, width, height int) (string, error) {
	if img == nil {
		return "", errors.New("image is nil")
	}
	if width <= 0 || height <= 0 {
		return "", nil
	}

	key := CacheKey{Protocol: r.protocol.String(), Width: width, Height: height, ImageHash: hashImage(img)}
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	var (
		out string
		err error
	)
	switch r.protocol {
	case ProtocolText:
		out = r.renderText(imaging.Fit(img, width, height, imaging.Lanczos), width, height)
	case ProtocolKitty:
		out, err = renderTermimg(img, termimg.Kitty, width, height)
	case ProtocolITerm2:
		out, err = renderTermimg(img, termimg.ITerm2, width, height)
	case ProtocolSixel:
		out, err = renderTermimg(img, termimg.Sixel, width, height)
	default:
		out = r.renderHalfblocks(imaging.Fit(img, width, height*2, imaging.Lanczos))
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", r.protocol, err)
	}

	r.cache.Put(key, out)
	return out, nil
}

// RenderFile decodes the image at path and renders it.
func (r *Renderer) RenderFile(path string, width, height int) (string, error) {
	img, err := decodeFile(path)
	if err != nil {
		return "", err
	}
	return r.Render(img, width, height)
}

func renderTermimg(img image.Image, proto termimg.Protocol, width, height int) (string, error) {
	ti := termimg.New(img)
	if ti == nil {
		return "", errors.New("go-termimg: failed to create image wrapper")
	}
	ti.Protocol(proto).Size(width, height).Scale(termimg.ScaleFit)
	return ti.Render()
}

// renderHalfblocks encodes each pair of pixel rows as one cell row: the top
// pixel is the foreground of U+2580, the bottom pixel the background.
// Colors are reduced to the renderer's profile.
func (r *Renderer) renderHalfblocks(img *image.NRGBA) string {
	b := img.Bounds()
	var sb strings.Builder
	sb.Grow(b.Dx() * (b.Dy()/2 + 1) * 24)

	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteString("\x1b[0m\n")
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			top := img.NRGBAAt(x, y)
			var bot color.NRGBA
			if y+1 < b.Max.Y {
				bot = img.NRGBAAt(x, y+1)
			}

			switch {
			case top.A == 0 && bot.A == 0:
				sb.WriteString("\x1b[0m ")
			case top.A == 0:
				sb.WriteString(r.sequence(bot, false) + "\x1b[49m▄")
			case bot.A == 0:
				sb.WriteString(r.sequence(top, false) + "\x1b[49m▀")
			default:
				sb.WriteString(r.sequence(top, false) + r.sequence(bot, true) + "▀")
			}
		}
	}
	sb.WriteString("\x1b[0m")
	return sb.String()
}

// sequence returns the SGR escape setting c as foreground or background,
// or "" when the profile has no colors.
func (r *Renderer) sequence(c color.NRGBA, bg bool) string {
	hex := fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	seq := r.profile.Convert(termenv.RGBColor(hex)).Sequence(bg)
	if seq == "" {
		return ""
	}
	return termenv.CSI + seq + "m"
}

// renderText maps luminance to asciiRamp, one pixel per cell, padded to
// width x height.
func (r *Renderer) renderText(img *image.NRGBA, width, height int) string {
	b := img.Bounds()
	lines := make([]string, 0, height)
	for y := b.Min.Y; y < b.Max.Y && len(lines) < height; y++ {
		var sb strings.Builder
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.A < 128 {
				sb.WriteByte(' ')
				continue
			}
			lum := (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
			sb.WriteByte(asciiRamp[lum*(len(asciiRamp)-1)/255])
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}

// hashImage hashes dimensions and pixels. Images over 64k pixels are
// sampled on a 32x32 grid.
func hashImage(img image.Image) [32]byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	hasher := sha256.New()
	var dim [8]byte
	binary.LittleEndian.PutUint32(dim[:4], uint32(w))
	binary.LittleEndian.PutUint32(dim[4:], uint32(h))
	hasher.Write(dim[:])

	var px [4]byte
	write := func(x, y int) {
		r, g, b, a := img.At(x, y).RGBA()
		px[0], px[1], px[2], px[3] = uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)
		hasher.Write(px[:])
	}
	if w*h <= 65536 {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				write(x, y)
			}
		}
	} else {
		for sy := 0; sy < 32; sy++ {
			for sx := 0; sx < 32; sx++ {
				write(bounds.Min.X+sx*w/32, bounds.Min.Y+sy*h/32)
			}
		}
	}

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

func decodeFile(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
