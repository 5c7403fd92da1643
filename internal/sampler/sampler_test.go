package sampler

import (
	"context"
	"math/rand"
	"testing"

	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSampler(policy Policy, fake *testutil.Model, seed int64) *Sampler {
	set := fake.Set()
	return New(policy, Window{NPast: 10, NFuture: 20}, set.Spec.ZDim, set.Posterior, rand.New(rand.NewSource(seed)))
}

func TestPhaseAt(t *testing.T) {
	w := Window{NPast: 2, NFuture: 3}
	assert.Equal(t, Conditioning, w.PhaseAt(0))
	assert.Equal(t, Conditioning, w.PhaseAt(1))
	assert.Equal(t, Predicting, w.PhaseAt(2))
	assert.Equal(t, 5, w.NEval())
	assert.Error(t, Window{NPast: 0, NFuture: 1}.Validate())
}

func TestMixedPolicyConditionsOnlyWhileNextFrameIsPast(t *testing.T) {
	s := newSampler(PolicyMixed, testutil.New(), 1)
	for step := 1; step < 30; step++ {
		assert.Equal(t, step+1 < 10, s.Conditions(step), "t=%d", step)
	}
}

func TestPosteriorPolicyAlwaysConditions(t *testing.T) {
	s := newSampler(PolicyPosterior, testutil.New(), 1)
	for step := 1; step < 30; step++ {
		assert.True(t, s.Conditions(step))
	}
}

func TestPosteriorBranchUsesTargetAndAdvancesState(t *testing.T) {
	fake := testutil.New()
	s := newSampler(PolicyPosterior, fake, 1)

	target := model.Features{0.25, 0.5, 0, 0}
	st := s.InitState()
	next, z, err := s.Sample(context.Background(), st, 5, target)
	require.NoError(t, err)

	assert.Equal(t, model.SourcePosterior, z.Source)
	require.Len(t, fake.Targets, 1)
	assert.Equal(t, target, fake.Targets[0])
	assert.NotEqual(t, st, next)
}

func TestPriorBranchIgnoresPosterior(t *testing.T) {
	fake := testutil.New()
	s := newSampler(PolicyMixed, fake, 1)

	st := model.State{3}
	next, z, err := s.Sample(context.Background(), st, 9, model.Features{1, 1, 1, 1})
	require.NoError(t, err)

	assert.Equal(t, model.SourcePrior, z.Source)
	assert.Len(t, z.Z, 2)
	assert.Empty(t, fake.Targets)
	assert.Equal(t, st, next)
}

func TestPriorDrawsAreReproducible(t *testing.T) {
	a := newSampler(PolicyMixed, testutil.New(), 42)
	b := newSampler(PolicyMixed, testutil.New(), 42)
	for i := 0; i < 5; i++ {
		_, za, _ := a.Sample(context.Background(), nil, 20, nil)
		_, zb, _ := b.Sample(context.Background(), nil, 20, nil)
		assert.Equal(t, za.Z, zb.Z)
	}
}

func TestMissingTargetPanics(t *testing.T) {
	s := newSampler(PolicyPosterior, testutil.New(), 1)
	assert.Panics(t, func() {
		_, _, _ = s.Sample(context.Background(), s.InitState(), 3, nil)
	})
}
