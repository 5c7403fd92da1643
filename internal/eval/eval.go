package eval

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/danielpatrickdp/svg-eval/internal/metric"
	"github.com/danielpatrickdp/svg-eval/internal/rollout"
	"github.com/danielpatrickdp/svg-eval/internal/sampler"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region eval-harness
// EvalHarness runs the posterior reconstruction and the sampled rollouts for
// a batch and scores every sampled rollout against ground truth.
type EvalHarness struct {
	engine *rollout.Engine
	scorer metric.Scorer
	config EvalConfig
	rng    *rand.Rand
	log    *slog.Logger
}

// NewEvalHarness creates an eval harness. rng is shared by every rollout the
// harness starts, so a fixed seed reproduces the whole batch.
func NewEvalHarness(engine *rollout.Engine, scorer metric.Scorer, config EvalConfig, rng *rand.Rand, log *slog.Logger) *EvalHarness {
	return &EvalHarness{
		engine: engine,
		scorer: scorer,
		config: config,
		rng:    rng,
		log:    log.With("component", "eval"),
	}
}

// Config returns the harness configuration.
func (h *EvalHarness) Config() EvalConfig {
	return h.config
}

func (h *EvalHarness) newSampler(policy sampler.Policy) *sampler.Sampler {
	models := h.engine.Models()
	return sampler.New(policy, h.engine.Window(), models.Spec.ZDim, models.Posterior, h.rng)
}

// #endregion eval-harness

// #region evaluate
// Evaluate rolls out every clip of the batch once with the posterior-only
// policy and NSamples times with the mixed policy, scoring the future part
// of each sampled trajectory. Rollouts run one after another.
func (h *EvalHarness) Evaluate(ctx context.Context, batch tensor.Batch) (EvalResult, error) {
	window := h.engine.Window()
	if err := batch.Validate(window.NEval()); err != nil {
		return EvalResult{}, fmt.Errorf("validate batch: %w", err)
	}
	if h.config.NSamples < 1 {
		return EvalResult{}, fmt.Errorf("n_samples must be >= 1, got %d", h.config.NSamples)
	}

	nClips := batch.Len()
	result := EvalResult{
		Posterior: make([]rollout.Trajectory, nClips),
		Samples:   make([][]rollout.Trajectory, h.config.NSamples),
		Scores:    NewScoreMatrix(nClips, h.config.NSamples, window.NFuture),
	}

	// 1. Posterior reconstruction, for display only
	for b, clip := range batch.Clips {
		traj, err := h.engine.Rollout(ctx, clip, h.newSampler(sampler.PolicyPosterior))
		if err != nil {
			return EvalResult{}, fmt.Errorf("posterior rollout clip %d: %w", batch.Offset+b, err)
		}
		result.Posterior[b] = traj
	}

	// 2. Sampled rollouts, scored
	for s := 0; s < h.config.NSamples; s++ {
		result.Samples[s] = make([]rollout.Trajectory, nClips)
		for b, clip := range batch.Clips {
			traj, err := h.engine.Rollout(ctx, clip, h.newSampler(sampler.PolicyMixed))
			if err != nil {
				return EvalResult{}, fmt.Errorf("sample %d clip %d: %w", s, batch.Offset+b, err)
			}
			scores, err := h.scorer.Score(clip[window.NPast:], traj.Future(window.NPast))
			if err != nil {
				return EvalResult{}, fmt.Errorf("score sample %d clip %d: %w", s, batch.Offset+b, err)
			}
			if err := result.Scores.Set(b, s, scores); err != nil {
				return EvalResult{}, err
			}
			result.Samples[s][b] = traj
		}

		if h.config.ProgressEvery > 0 && (s+1)%h.config.ProgressEvery == 0 {
			h.log.Info("sampling progress", "offset", batch.Offset, "done", s+1, "total", h.config.NSamples)
		}
	}

	if !result.Scores.Complete() {
		return EvalResult{}, ErrIncompleteScores
	}
	return result, nil
}

// #endregion evaluate
