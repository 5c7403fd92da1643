package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/sampler"
	"github.com/danielpatrickdp/svg-eval/internal/telemetry"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region errors
var (
	ErrClipLength    = errors.New("clip length does not match window")
	ErrShapeMismatch = errors.New("frame shape does not match model")
)

// #endregion errors

// #region trajectory
// Trajectory is one rollout over a clip. Frames[t] for t < NPast are the
// clip's own frames; later frames were decoded by the model.
type Trajectory struct {
	Policy  sampler.Policy
	Frames  []tensor.Frame
	Sources []model.Source // latent provenance per step, index 0 unused
}

// Future returns the generated part of the trajectory.
func (tr Trajectory) Future(nPast int) []tensor.Frame {
	return tr.Frames[nPast:]
}

// #endregion trajectory

// #region engine
// Engine runs single-trajectory rollouts against one model set.
type Engine struct {
	models   model.Set
	window   sampler.Window
	log      *slog.Logger
	recorder *telemetry.Recorder
}

// NewEngine creates a rollout engine. recorder may be nil.
func NewEngine(models model.Set, window sampler.Window, log *slog.Logger, recorder *telemetry.Recorder) *Engine {
	return &Engine{
		models:   models,
		window:   window,
		log:      log.With("component", "rollout"),
		recorder: recorder,
	}
}

// Window returns the engine's conditioning window.
func (e *Engine) Window() sampler.Window {
	return e.window
}

// Models returns the model set the engine drives.
func (e *Engine) Models() model.Set {
	return e.models
}

// #endregion engine

// #region rollout
// Rollout produces one trajectory for clip. The recurrent state of both the
// predictor and the posterior is created fresh here and never leaves this
// call. Any collaborator error aborts the whole trajectory.
func (e *Engine) Rollout(ctx context.Context, clip tensor.Clip, smp *sampler.Sampler) (Trajectory, error) {
	nEval := e.window.NEval()
	if len(clip) != nEval {
		return Trajectory{}, fmt.Errorf("clip has %d frames, window needs %d: %w", len(clip), nEval, ErrClipLength)
	}
	if err := clip.Validate(e.models.Spec.Frame); err != nil {
		return Trajectory{}, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	start := time.Now()

	// Init
	predState := e.models.Predictor.InitState()
	postState := smp.InitState()
	current := clip[0]
	traj := Trajectory{
		Policy:  smp.Policy(),
		Frames:  make([]tensor.Frame, 1, nEval),
		Sources: make([]model.Source, nEval),
	}
	traj.Frames[0] = clip[0]

	var skip model.Skip
	for t := 1; t < nEval; t++ {
		phase := e.window.PhaseAt(t)

		// 1. Encode the frame the model currently sees
		enc, err := e.models.Encoder.Encode(ctx, current)
		if err != nil {
			return Trajectory{}, fmt.Errorf("encode t=%d: %w", t, err)
		}
		if phase == sampler.Conditioning && enc.Skip != nil {
			skip = enc.Skip
		}

		// 2. Latent for this step
		var target model.Features
		if smp.Conditions(t) {
			tgt, err := e.models.Encoder.Encode(ctx, clip[t])
			if err != nil {
				return Trajectory{}, fmt.Errorf("encode target t=%d: %w", t, err)
			}
			target = tgt.Features
		}
		var z model.Latent
		postState, z, err = smp.Sample(ctx, postState, t, target)
		if err != nil {
			return Trajectory{}, err
		}
		traj.Sources[t] = z.Source

		// 3. Advance the predictor
		var hPred model.Features
		predState, hPred, err = e.models.Predictor.Step(ctx, predState, model.Concat(enc.Features, z.Z))
		if err != nil {
			return Trajectory{}, fmt.Errorf("predictor step t=%d: %w", t, err)
		}

		// 4./5. Teacher forcing or generation
		if phase == sampler.Conditioning {
			current = clip[t]
		} else {
			frame, err := e.models.Decoder.Decode(ctx, hPred, skip)
			if err != nil {
				return Trajectory{}, fmt.Errorf("decode t=%d: %w", t, err)
			}
			if frame.Shape != e.models.Spec.Frame || len(frame.Data) != frame.Shape.Size() {
				return Trajectory{}, fmt.Errorf("decoded frame t=%d is %s, want %s: %w", t, frame.Shape, e.models.Spec.Frame, ErrShapeMismatch)
			}
			current = frame
		}
		traj.Frames = append(traj.Frames, current)
	}

	elapsed := time.Since(start)
	counts := sourceCounts(traj.Sources)
	e.recorder.Rollout(string(traj.Policy), elapsed, counts)
	e.log.Debug("rollout complete",
		"policy", traj.Policy,
		"frames", len(traj.Frames),
		"posterior_latents", counts[string(model.SourcePosterior)],
		"prior_latents", counts[string(model.SourcePrior)],
		"elapsed", elapsed)

	return traj, nil
}

// #endregion rollout

// #region helpers
func sourceCounts(sources []model.Source) map[string]int {
	counts := make(map[string]int, 2)
	for _, s := range sources {
		if s != "" {
			counts[string(s)]++
		}
	}
	return counts
}

// #endregion helpers
