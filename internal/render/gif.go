package render

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/danielpatrickdp/svg-eval/internal/compose"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region types
// Renderer writes a composed grid to dest.
type Renderer interface {
	Render(grid compose.Grid, dest string) error
}

// GIFRenderer writes one animation frame per grid row, tiles side by side
// with their captions drawn in the band under each image.
type GIFRenderer struct {
	Delay     int // hundredths of a second per frame
	Face      font.Face
	TextColor color.Color
	Pad       int // border pad used when composing
	Band      int // caption band height used when composing
}

// NewGIFRenderer returns a renderer with 0.25s frames and black 7x13 text.
func NewGIFRenderer(pad, band int) *GIFRenderer {
	return &GIFRenderer{
		Delay:     25,
		Face:      basicfont.Face7x13,
		TextColor: color.Black,
		Pad:       pad,
		Band:      band,
	}
}

// #endregion types

// #region render
// Render encodes grid as an animated GIF at dest, creating parent
// directories as needed.
func (r *GIFRenderer) Render(grid compose.Grid, dest string) error {
	if len(grid.Rows) == 0 {
		return fmt.Errorf("render %s: grid has no rows", dest)
	}
	anim := &gif.GIF{
		Image: make([]*image.Paletted, 0, len(grid.Rows)),
		Delay: make([]int, 0, len(grid.Rows)),
	}
	for t, row := range grid.Rows {
		img, err := r.row(row)
		if err != nil {
			return fmt.Errorf("render %s row %d: %w", dest, t, err)
		}
		pal := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pal, img.Bounds(), img, image.Point{})
		anim.Image = append(anim.Image, pal)
		anim.Delay = append(anim.Delay, r.Delay)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", dest, err)
	}
	return f.Close()
}

// row lays the tiles of one timestep out left to right.
func (r *GIFRenderer) row(tiles []compose.AnnotatedFrame) (*image.RGBA, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("empty row")
	}
	height := tiles[0].Frame.Shape.H
	width := 0
	for _, tile := range tiles {
		if tile.Frame.Shape.C != 3 || tile.Frame.Shape.H != height {
			return nil, fmt.Errorf("tile %s does not fit row height %d: %w", tile.Frame.Shape, height, tensor.ErrShape)
		}
		width += tile.Frame.Shape.W
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	x := 0
	for _, tile := range tiles {
		img := ToRGBA(tile.Frame)
		draw.Draw(canvas, img.Bounds().Add(image.Pt(x, 0)), img, image.Point{}, draw.Src)
		r.caption(canvas, x, tile)
		x += tile.Frame.Shape.W
	}
	return canvas, nil
}

// #endregion render

// #region text
// caption draws tile's caption lines in the band below the image.
func (r *GIFRenderer) caption(dst *image.RGBA, x0 int, tile compose.AnnotatedFrame) {
	if tile.Caption == "" {
		return
	}
	imageH := tile.Frame.Shape.H - 2*r.Pad - r.Band
	lineH := r.Face.Metrics().Height.Ceil()
	ascent := r.Face.Metrics().Ascent.Ceil()

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(r.TextColor), Face: r.Face}
	y := r.Pad + imageH + r.Pad + ascent
	for _, line := range strings.Split(tile.Caption, "\n") {
		d.Dot = fixed.Point26_6{X: fixed.I(x0 + 2), Y: fixed.I(y)}
		d.DrawString(line)
		y += lineH
	}
}

// #endregion text

// #region convert
// ToRGBA converts a 3-channel [0,1] frame to an image.
func ToRGBA(f tensor.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Shape.W, f.Shape.H))
	for y := 0; y < f.Shape.H; y++ {
		for x := 0; x < f.Shape.W; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: to8(f.At(0, y, x)),
				G: to8(f.At(1, y, x)),
				B: to8(f.At(2, y, x)),
				A: 255,
			})
		}
	}
	return img
}

func to8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// #endregion convert
