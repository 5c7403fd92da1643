package eval

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/svg-eval/internal/metric"
	"github.com/danielpatrickdp/svg-eval/internal/rollout"
)

// #region eval-config
// EvalConfig controls the multi-sample evaluation of one batch.
type EvalConfig struct {
	NSamples      int // sampled trajectories per clip
	ProgressEvery int // log progress every N samples, 0 disables
}

// DefaultEvalConfig returns the settings of the reference evaluation run.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		NSamples:      100,
		ProgressEvery: 10,
	}
}

// #endregion eval-config

// #region score-matrix
var (
	ErrIncompleteScores = errors.New("score matrix has unset entries")
	ErrScoreIndex       = errors.New("score index out of range")
)

// ScoreMatrix holds per-frame scores shaped [B, S, F]: clip, sample, future
// frame. Entries start as NaN so a missing write is detectable.
type ScoreMatrix struct {
	B, S, F int
	mse     []float64
	ssim    []float64
	psnr    []float64
}

// NewScoreMatrix allocates a matrix with every entry unset.
func NewScoreMatrix(b, s, f int) *ScoreMatrix {
	m := &ScoreMatrix{
		B:    b,
		S:    s,
		F:    f,
		mse:  make([]float64, b*s*f),
		ssim: make([]float64, b*s*f),
		psnr: make([]float64, b*s*f),
	}
	for i := range m.psnr {
		m.mse[i] = math.NaN()
		m.ssim[i] = math.NaN()
		m.psnr[i] = math.NaN()
	}
	return m
}

func (m *ScoreMatrix) offset(b, s int) int {
	return (b*m.S + s) * m.F
}

// Set stores the scores of sample s of clip b.
func (m *ScoreMatrix) Set(b, s int, scores metric.Scores) error {
	if b < 0 || b >= m.B || s < 0 || s >= m.S {
		return fmt.Errorf("set [%d,%d] in [%d,%d,%d]: %w", b, s, m.B, m.S, m.F, ErrScoreIndex)
	}
	if len(scores.PSNR) != m.F || len(scores.SSIM) != m.F || len(scores.MSE) != m.F {
		return fmt.Errorf("scores cover %d frames, matrix expects %d: %w", len(scores.PSNR), m.F, ErrScoreIndex)
	}
	off := m.offset(b, s)
	copy(m.mse[off:off+m.F], scores.MSE)
	copy(m.ssim[off:off+m.F], scores.SSIM)
	copy(m.psnr[off:off+m.F], scores.PSNR)
	return nil
}

// SSIM returns the similarity score at [b, s, f].
func (m *ScoreMatrix) SSIM(b, s, f int) float64 {
	return m.ssim[m.offset(b, s)+f]
}

// PSNR returns the fidelity score at [b, s, f].
func (m *ScoreMatrix) PSNR(b, s, f int) float64 {
	return m.psnr[m.offset(b, s)+f]
}

// MSE returns the alignment error at [b, s, f].
func (m *ScoreMatrix) MSE(b, s, f int) float64 {
	return m.mse[m.offset(b, s)+f]
}

// MeanFidelity is the mean PSNR of sample s of clip b over future frames.
func (m *ScoreMatrix) MeanFidelity(b, s int) float64 {
	off := m.offset(b, s)
	var sum float64
	for _, v := range m.psnr[off : off+m.F] {
		sum += v
	}
	return sum / float64(m.F)
}

// MeanSimilarity is the mean SSIM of sample s of clip b over future frames.
func (m *ScoreMatrix) MeanSimilarity(b, s int) float64 {
	off := m.offset(b, s)
	var sum float64
	for _, v := range m.ssim[off : off+m.F] {
		sum += v
	}
	return sum / float64(m.F)
}

// Complete reports whether every entry has been written.
func (m *ScoreMatrix) Complete() bool {
	for i := range m.psnr {
		if math.IsNaN(m.psnr[i]) || math.IsNaN(m.ssim[i]) || math.IsNaN(m.mse[i]) {
			return false
		}
	}
	return true
}

// #endregion score-matrix

// #region eval-result
// EvalResult is everything the evaluator produced for one batch.
type EvalResult struct {
	// Posterior holds one reconstruction per clip. Never scored.
	Posterior []rollout.Trajectory
	// Samples is indexed [sample][clip].
	Samples [][]rollout.Trajectory
	Scores  *ScoreMatrix
}

// Sample returns trajectory s of clip b.
func (r EvalResult) Sample(b, s int) rollout.Trajectory {
	return r.Samples[s][b]
}

// #endregion eval-result
