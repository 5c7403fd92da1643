package sampler

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/svg-eval/internal/model"
)

// #region policy
// Policy decides, per timestep, whether the latent comes from the posterior.
type Policy string

const (
	// PolicyPosterior always conditions on the true frame. Used for the
	// reconstruction shown as "Approx. posterior".
	PolicyPosterior Policy = "posterior"
	// PolicyMixed conditions while the next true frame is still inside the
	// conditioning window and samples the prior afterwards.
	PolicyMixed Policy = "mixed"
)

// #endregion policy

// #region sampler
// Sampler produces one latent per timestep. It holds no recurrent state of
// its own; the posterior state is passed in and returned by Sample.
type Sampler struct {
	policy    Policy
	window    Window
	zDim      int
	posterior model.Posterior
	rng       *rand.Rand
}

// New creates a sampler. rng is the only entropy source it consumes.
func New(policy Policy, window Window, zDim int, posterior model.Posterior, rng *rand.Rand) *Sampler {
	return &Sampler{
		policy:    policy,
		window:    window,
		zDim:      zDim,
		posterior: posterior,
		rng:       rng,
	}
}

// Policy returns the sampling policy.
func (s *Sampler) Policy() Policy {
	return s.policy
}

// Window returns the conditioning window the policy is evaluated against.
func (s *Sampler) Window() Window {
	return s.window
}

// InitState returns a fresh posterior state for a new trajectory.
func (s *Sampler) InitState() model.State {
	return s.posterior.InitState()
}

// Conditions reports whether timestep t draws from the posterior, and
// therefore whether the caller must supply the encoded true frame at t.
func (s *Sampler) Conditions(t int) bool {
	if s.policy == PolicyPosterior {
		return true
	}
	return s.window.PhaseAt(t+1) == Conditioning
}

// #endregion sampler

// #region sample
// Sample returns the latent for timestep t. When the policy conditions at t,
// target must hold the encoded true frame at t; a nil target is a caller bug
// and panics. In the prior branch st is returned untouched.
func (s *Sampler) Sample(ctx context.Context, st model.State, t int, target model.Features) (model.State, model.Latent, error) {
	if !s.Conditions(t) {
		return st, s.prior(), nil
	}
	if target == nil {
		panic(fmt.Sprintf("sampler: policy %s conditions at t=%d but no target was encoded", s.policy, t))
	}

	next, z, _, err := s.posterior.Infer(ctx, st, target, s.rng)
	if err != nil {
		return st, model.Latent{}, fmt.Errorf("posterior infer t=%d: %w", t, err)
	}
	z.Source = model.SourcePosterior
	return next, z, nil
}

func (s *Sampler) prior() model.Latent {
	z := make([]float32, s.zDim)
	for i := range z {
		z[i] = float32(s.rng.NormFloat64())
	}
	return model.Latent{Z: z, Source: model.SourcePrior}
}

// #endregion sample
