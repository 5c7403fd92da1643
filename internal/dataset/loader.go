package dataset

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// LoadFrame decodes the image at path, resizes it to width×width and
// returns it as a channels×width×width frame with values in [0,1].
// channels must be 1 (luma) or 3 (RGB).
func LoadFrame(path string, width, channels int) (tensor.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return tensor.Frame{}, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return tensor.Frame{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(src, width, channels)
}

// FromImage resizes img and converts it to a normalised frame.
func FromImage(img image.Image, width, channels int) (tensor.Frame, error) {
	if channels != 1 && channels != 3 {
		return tensor.Frame{}, fmt.Errorf("channels must be 1 or 3, got %d: %w", channels, tensor.ErrShape)
	}
	if width < 1 {
		return tensor.Frame{}, fmt.Errorf("width must be >= 1, got %d: %w", width, tensor.ErrShape)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, width))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	out := tensor.NewFrame(tensor.Shape{C: channels, H: width, W: width})
	for y := 0; y < width; y++ {
		for x := 0; x < width; x++ {
			px := dst.RGBAAt(x, y)
			if channels == 1 {
				g := color.GrayModel.Convert(px).(color.Gray)
				out.Set(0, y, x, float32(g.Y)/255)
				continue
			}
			out.Set(0, y, x, float32(px.R)/255)
			out.Set(1, y, x, float32(px.G)/255)
			out.Set(2, y, x, float32(px.B)/255)
		}
	}
	return out, nil
}
