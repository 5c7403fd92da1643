package render

import (
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/svg-eval/internal/compose"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
	"github.com/danielpatrickdp/svg-eval/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pad  = 1
	band = 30
)

func smallGrid(rows, cols int) compose.Grid {
	clip := testutil.Clip(rows, 3)
	grid := compose.Grid{Rows: make([][]compose.AnnotatedFrame, rows)}
	for t := 0; t < rows; t++ {
		for c := 0; c < cols; c++ {
			grid.Rows[t] = append(grid.Rows[t], compose.AnnotatedFrame{
				Frame:   compose.AddBorder(clip[t], compose.Green, pad, band),
				Border:  compose.Green,
				Caption: compose.SampleCaption(c + 1),
			})
		}
	}
	return grid
}

func TestRenderWritesOneFramePerRow(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "gifs", "best_psnr_0.gif")
	r := NewGIFRenderer(pad, band)

	require.NoError(t, r.Render(smallGrid(4, 3), dest))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)

	require.Len(t, anim.Image, 4)
	for _, d := range anim.Delay {
		assert.Equal(t, 25, d)
	}
	tileW := testutil.FrameShape.W + 2*pad
	tileH := testutil.FrameShape.H + 2*pad + band
	assert.Equal(t, 3*tileW, anim.Image[0].Bounds().Dx())
	assert.Equal(t, tileH, anim.Image[0].Bounds().Dy())
}

func TestRenderRejectsEmptyGrid(t *testing.T) {
	r := NewGIFRenderer(pad, band)
	err := r.Render(compose.Grid{}, filepath.Join(t.TempDir(), "x.gif"))
	assert.Error(t, err)
}

func TestRenderRejectsMismatchedRow(t *testing.T) {
	grid := smallGrid(1, 2)
	grid.Rows[0][1].Frame = tensor.NewFrame(tensor.Shape{C: 3, H: 5, W: 5})

	err := NewGIFRenderer(pad, band).Render(grid, filepath.Join(t.TempDir(), "x.gif"))
	assert.ErrorIs(t, err, tensor.ErrShape)
}

func TestToRGBAClamps(t *testing.T) {
	f := tensor.NewFrame(tensor.Shape{C: 3, H: 1, W: 1})
	f.Data = []float32{-0.5, 0.5, 2}
	img := ToRGBA(f)
	c := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(128), c.G)
	assert.Equal(t, uint8(255), c.B)
}
