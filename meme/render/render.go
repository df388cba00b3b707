// Package render burns meme captions onto images.
//
// Layout: the font size is floor(H/10). Captions wrap against the full image
// width. The top caption stacks downward from the top edge, the bottom caption
// ends at H minus the bottom margin. Each line is filled white and then
// stroked black.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/m3rciful/memebot/core/config"
)

// Renderer composites captions with one font face. It is safe for concurrent use.
type Renderer struct {
	font    *sfnt.Font
	stroke  float64
	margin  float64
	quality int
}

// New builds a Renderer from cfg.
func New(cfg config.RenderConfig) (*Renderer, error) {
	f, err := LoadFont(cfg.FontPath)
	if err != nil {
		return nil, err
	}
	r := &Renderer{font: f, stroke: cfg.StrokeWidth, margin: cfg.BottomMargin, quality: cfg.JPEGQuality}
	if r.stroke <= 0 {
		r.stroke = 5
	}
	if r.margin < 0 {
		r.margin = 0
	}
	if r.quality <= 0 || r.quality > 100 {
		r.quality = 90
	}
	return r, nil
}

// FontSize returns the caption size in pixels for an image of height h.
func FontSize(h int) float64 {
	return float64(h / 10)
}

// RenderFile reads src, draws the captions and writes a JPEG to dst.
// src and dst may be the same path.
func (r *Renderer) RenderFile(src, dst, top, bottom string) error {
	img, err := gg.LoadImage(src)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	out, err := r.Render(img, top, bottom)
	if err != nil {
		return err
	}
	if err := gg.SaveJPG(dst, out, r.quality); err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	return nil
}

// Render returns a copy of img with top and bottom captions drawn.
func (r *Renderer) Render(img image.Image, top, bottom string) (image.Image, error) {
	if img == nil {
		return nil, errors.New("render: nil image")
	}
	dc := gg.NewContextForImage(img)
	w, h := dc.Width(), dc.Height()
	size := FontSize(h)
	if size <= 0 {
		return dc.Image(), nil
	}

	var buf sfnt.Buffer
	measure := func(s string) float64 { return r.measure(&buf, s, size) }
	cx := float64(w) / 2

	lines := WrapLines(bottom, float64(w), measure)
	n := len(lines)
	for i := n - 1; i >= 0; i-- {
		y := float64(h) - size*float64(n-1-i) - r.margin
		if err := r.drawLine(dc, &buf, lines[i], cx, y, size); err != nil {
			return nil, err
		}
	}

	lines = WrapLines(top, float64(w), measure)
	for i := len(lines) - 1; i >= 0; i-- {
		y := size * float64(i+1)
		if err := r.drawLine(dc, &buf, lines[i], cx, y, size); err != nil {
			return nil, err
		}
	}
	return dc.Image(), nil
}

// Measure returns the advance width of text at size pixels.
func (r *Renderer) Measure(text string, size float64) float64 {
	var buf sfnt.Buffer
	return r.measure(&buf, text, size)
}

func (r *Renderer) measure(buf *sfnt.Buffer, text string, size float64) float64 {
	ppem := fixed.Int26_6(size * 64)
	var (
		width fixed.Int26_6
		prev  sfnt.GlyphIndex
	)
	for i, ch := range text {
		idx, err := r.font.GlyphIndex(buf, ch)
		if err != nil {
			continue
		}
		if i > 0 {
			if k, err := r.font.Kern(buf, prev, idx, ppem, font.HintingNone); err == nil {
				width += k
			}
		}
		adv, err := r.font.GlyphAdvance(buf, idx, ppem, font.HintingNone)
		if err == nil {
			width += adv
		}
		prev = idx
	}
	return float64(width) / 64
}

// drawLine draws text centered on cx with its baseline at y.
func (r *Renderer) drawLine(dc *gg.Context, buf *sfnt.Buffer, text string, cx, y, size float64) error {
	if text == "" {
		return nil
	}
	ppem := fixed.Int26_6(size * 64)
	x := cx - r.measure(buf, text, size)/2

	dc.NewSubPath()
	var (
		prev sfnt.GlyphIndex
		open bool
	)
	for i, ch := range text {
		idx, err := r.font.GlyphIndex(buf, ch)
		if err != nil {
			continue
		}
		if i > 0 {
			if k, err := r.font.Kern(buf, prev, idx, ppem, font.HintingNone); err == nil {
				x += float64(k) / 64
			}
		}
		segs, err := r.font.LoadGlyph(buf, idx, ppem, nil)
		if err != nil {
			return fmt.Errorf("load glyph %q: %w", ch, err)
		}
		for _, s := range segs {
			p := func(j int) (float64, float64) {
				return x + float64(s.Args[j].X)/64, y + float64(s.Args[j].Y)/64
			}
			switch s.Op {
			case sfnt.SegmentOpMoveTo:
				if open {
					dc.ClosePath()
				}
				dc.MoveTo(p(0))
				open = true
			case sfnt.SegmentOpLineTo:
				dc.LineTo(p(0))
			case sfnt.SegmentOpQuadTo:
				x1, y1 := p(0)
				x2, y2 := p(1)
				dc.QuadraticTo(x1, y1, x2, y2)
			case sfnt.SegmentOpCubeTo:
				x1, y1 := p(0)
				x2, y2 := p(1)
				x3, y3 := p(2)
				dc.CubicTo(x1, y1, x2, y2, x3, y3)
			}
		}
		if adv, err := r.font.GlyphAdvance(buf, idx, ppem, font.HintingNone); err == nil {
			x += float64(adv) / 64
		}
		prev = idx
	}
	if open {
		dc.ClosePath()
	}

	dc.SetColor(color.White)
	dc.FillPreserve()
	dc.SetColor(color.Black)
	dc.SetLineWidth(r.stroke)
	dc.Stroke()
	return nil
}
