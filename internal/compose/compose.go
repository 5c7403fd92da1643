package compose

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danielpatrickdp/svg-eval/internal/eval"
	"github.com/danielpatrickdp/svg-eval/internal/sampler"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region types
// ErrVisualizeIndex is returned when a configured sample index does not
// exist in the evaluated sample set.
var ErrVisualizeIndex = errors.New("visualize index out of range")

// Color is a border colour.
type Color int

const (
	Green Color = iota
	Red
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "green"
}

// Caption texts, one per column role.
const (
	CaptionTruth     = "Ground\ntruth"
	CaptionPosterior = "Approx.\nposterior"
	CaptionBest      = "Best PSNR"
)

// SampleCaption labels the k-th (1-based) visualised sample column.
func SampleCaption(k int) string {
	return fmt.Sprintf("Random\nsample %d", k)
}

// AnnotatedFrame is one bordered tile of the output grid.
type AnnotatedFrame struct {
	Frame   tensor.Frame // RGB, padded with the border colour
	Border  Color
	Caption string
}

// Grid is the composed output for one clip: Rows[t] holds the tiles shown
// at timestep t, left to right.
type Grid struct {
	Clip      int     // position of the clip in the evaluation stream
	Best      int     // selected sample index
	BestScore float64 // its mean PSNR
	BestSSIM  float64 // its mean SSIM
	Rows      [][]AnnotatedFrame
}

// Config controls which samples are shown and how tiles are padded.
type Config struct {
	Visualize     []int // sample indices shown after the best column
	Pad           int
	CaptionHeight int
}

// DefaultConfig shows samples 0, 20 and 40 with a 1px border and a 30px
// caption band.
func DefaultConfig() Config {
	return Config{
		Visualize:     []int{0, 20, 40},
		Pad:           1,
		CaptionHeight: 30,
	}
}

// Columns returns the number of tiles per row.
func (c Config) Columns() int {
	return 3 + len(c.Visualize)
}

// #endregion types

// #region validate
// ValidateVisualize checks every index addresses an evaluated sample.
func ValidateVisualize(indices []int, nSamples int) error {
	for _, idx := range indices {
		if idx < 0 || idx >= nSamples {
			return fmt.Errorf("sample %d requested but only %d samples are drawn: %w", idx, nSamples, ErrVisualizeIndex)
		}
	}
	return nil
}

// #endregion validate

// #region select
// Rank returns the sample indices of clip b sorted ascending by mean PSNR.
// Equal means keep their original order.
func Rank(scores *eval.ScoreMatrix, b int) []int {
	means := make([]float64, scores.S)
	order := make([]int, scores.S)
	for s := range order {
		order[s] = s
		means[s] = scores.MeanFidelity(b, s)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return means[order[i]] < means[order[j]]
	})
	return order
}

// Select returns the best sample of clip b (the last of Rank) and its mean
// PSNR.
func Select(scores *eval.ScoreMatrix, b int) (int, float64) {
	order := Rank(scores, b)
	best := order[len(order)-1]
	return best, scores.MeanFidelity(b, best)
}

// #endregion select

// #region compose
// Compose builds one grid per clip of the batch.
func Compose(batch tensor.Batch, res eval.EvalResult, window sampler.Window, cfg Config) ([]Grid, error) {
	if err := ValidateVisualize(cfg.Visualize, res.Scores.S); err != nil {
		return nil, err
	}
	if len(res.Posterior) != batch.Len() || res.Scores.B != batch.Len() {
		return nil, fmt.Errorf("result covers %d clips, batch has %d", res.Scores.B, batch.Len())
	}

	grids := make([]Grid, batch.Len())
	for b, clip := range batch.Clips {
		best, bestScore := Select(res.Scores, b)
		grid := Grid{
			Clip:      batch.Offset + b,
			Best:      best,
			BestScore: bestScore,
			BestSSIM:  res.Scores.MeanSimilarity(b, best),
			Rows:      make([][]AnnotatedFrame, window.NEval()),
		}

		for t := 0; t < window.NEval(); t++ {
			color := Green
			if window.PhaseAt(t) == sampler.Predicting {
				color = Red
			}

			row := make([]AnnotatedFrame, 0, cfg.Columns())
			row = append(row, cfg.tile(clip[t], Green, CaptionTruth))
			row = append(row, cfg.tile(res.Posterior[b].Frames[t], color, CaptionPosterior))
			row = append(row, cfg.tile(res.Sample(b, best).Frames[t], color, CaptionBest))
			for k, s := range cfg.Visualize {
				row = append(row, cfg.tile(res.Sample(b, s).Frames[t], color, SampleCaption(k+1)))
			}
			grid.Rows[t] = row
		}
		grids[b] = grid
	}
	return grids, nil
}

func (c Config) tile(f tensor.Frame, color Color, caption string) AnnotatedFrame {
	return AnnotatedFrame{
		Frame:   AddBorder(f, color, c.Pad, c.CaptionHeight),
		Border:  color,
		Caption: caption,
	}
}

// #endregion compose

// #region border
// borderIntensity is the value written to the border colour's channel.
const borderIntensity = 0.7

// AddBorder returns an RGB copy of f framed by pad pixels of color, with an
// extra band rows of border below the image for the caption. Single-channel
// frames are replicated to all three channels.
func AddBorder(f tensor.Frame, color Color, pad, band int) tensor.Frame {
	h, w := f.Shape.H, f.Shape.W
	out := tensor.NewFrame(tensor.Shape{C: 3, H: h + 2*pad + band, W: w + 2*pad})

	ch := 1
	if color == Red {
		ch = 0
	}
	plane := out.Shape.H * out.Shape.W
	for i := ch * plane; i < (ch+1)*plane; i++ {
		out.Data[i] = borderIntensity
	}

	for c := 0; c < 3; c++ {
		src := c
		if f.Shape.C == 1 {
			src = 0
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(c, y+pad, x+pad, f.At(src, y, x))
			}
		}
	}
	return out
}

// #endregion border
