package metric

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region types
// Scores holds per-frame values for a window of future frames. MSE is kept
// for reporting only; selection uses PSNR.
type Scores struct {
	MSE  []float64
	SSIM []float64
	PSNR []float64
}

// Scorer compares generated frames against ground truth frame by frame.
type Scorer interface {
	Score(truth, generated []tensor.Frame) (Scores, error)
}

// ErrLength is returned when the two sequences differ in length.
var ErrLength = errors.New("sequence length mismatch")

// #endregion types

// #region config
// Config holds the SSIM constants. Values are for data in [0,1].
type Config struct {
	WindowSize int
	Sigma      float64
	K1, K2     float64
	DataRange  float64
}

// DefaultConfig returns the standard 11×11, σ=1.5 Gaussian SSIM.
func DefaultConfig() Config {
	return Config{WindowSize: 11, Sigma: 1.5, K1: 0.01, K2: 0.03, DataRange: 1}
}

// #endregion config

// #region metrics
// Metrics is the frame-quality scorer used by the evaluator.
type Metrics struct {
	config Config
}

// New creates a scorer.
func New(config Config) *Metrics {
	return &Metrics{config: config}
}

// Score computes MSE, SSIM (mean over channels) and PSNR for each frame pair.
func (m *Metrics) Score(truth, generated []tensor.Frame) (Scores, error) {
	if len(truth) != len(generated) {
		return Scores{}, fmt.Errorf("truth has %d frames, generated %d: %w", len(truth), len(generated), ErrLength)
	}
	n := len(truth)
	s := Scores{
		MSE:  make([]float64, n),
		SSIM: make([]float64, n),
		PSNR: make([]float64, n),
	}
	for i := range truth {
		a, b := truth[i], generated[i]
		if a.Shape != b.Shape {
			return Scores{}, fmt.Errorf("frame %d: %s vs %s: %w", i, a.Shape, b.Shape, tensor.ErrShape)
		}
		mse := MSE(a, b)
		s.MSE[i] = mse
		s.PSNR[i] = psnrFromMSE(mse, m.config.DataRange)

		var ssim float64
		for c := 0; c < a.Shape.C; c++ {
			ssim += m.channelSSIM(a, b, c)
		}
		s.SSIM[i] = ssim / float64(a.Shape.C)
	}
	return s, nil
}

// #endregion metrics

// #region mse-psnr
// MSE is the mean squared error over all values of two same-shape frames.
func MSE(a, b tensor.Frame) float64 {
	var sum float64
	for i := range a.Data {
		d := float64(a.Data[i]) - float64(b.Data[i])
		sum += d * d
	}
	return sum / float64(len(a.Data))
}

// psnrFromMSE is the peak signal-to-noise ratio in dB. A zero error gives
// +Inf.
func psnrFromMSE(mse, dataRange float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(dataRange*dataRange/mse)
}

// #endregion mse-psnr

// #region ssim
// channelSSIM is the mean SSIM map over the valid region of one channel.
// Frames smaller than the window use the largest odd window that fits.
func (m *Metrics) channelSSIM(a, b tensor.Frame, c int) float64 {
	h, w := a.Shape.H, a.Shape.W
	size := m.config.WindowSize
	if lim := min(h, w); size > lim {
		size = lim
		if size%2 == 0 {
			size--
		}
	}
	win := gaussianWindow(size, m.config.Sigma)

	c1 := (m.config.K1 * m.config.DataRange) * (m.config.K1 * m.config.DataRange)
	c2 := (m.config.K2 * m.config.DataRange) * (m.config.K2 * m.config.DataRange)

	var total float64
	count := 0
	for y := 0; y+size <= h; y++ {
		for x := 0; x+size <= w; x++ {
			var muA, muB, aa, bb, ab float64
			for wy := 0; wy < size; wy++ {
				for wx := 0; wx < size; wx++ {
					g := win[wy*size+wx]
					va := float64(a.At(c, y+wy, x+wx))
					vb := float64(b.At(c, y+wy, x+wx))
					muA += g * va
					muB += g * vb
					aa += g * va * va
					bb += g * vb * vb
					ab += g * va * vb
				}
			}
			sigA := aa - muA*muA
			sigB := bb - muB*muB
			sigAB := ab - muA*muB
			num := (2*muA*muB + c1) * (2*sigAB + c2)
			den := (muA*muA + muB*muB + c1) * (sigA + sigB + c2)
			total += num / den
			count++
		}
	}
	return total / float64(count)
}

// gaussianWindow returns a normalised size×size kernel, row-major.
func gaussianWindow(size int, sigma float64) []float64 {
	k := make([]float64, size*size)
	half := size / 2
	var sum float64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dy, dx := float64(y-half), float64(x-half)
			v := math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
			k[y*size+x] = v
			sum += v
		}
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// #endregion ssim
