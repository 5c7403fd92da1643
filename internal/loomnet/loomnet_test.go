package loomnet

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func smallBundle() Bundle {
	return Bundle{
		Spec: model.Spec{
			Frame:     tensor.Shape{C: 1, H: 4, W: 4},
			GDim:      6,
			ZDim:      2,
			SkipDim:   3,
			PredState: 4,
			PostState: 2,
		},
		Hidden: 8,
	}
}

func frame(v float32) tensor.Frame {
	f := tensor.NewFrame(tensor.Shape{C: 1, H: 4, W: 4})
	for i := range f.Data {
		f.Data[i] = v * float32(i) / 16
	}
	return f
}

func TestRandomSetShapes(t *testing.T) {
	nets, err := Random(smallBundle())
	require.NoError(t, err)
	set := nets.Set()
	require.NoError(t, set.Validate())
	ctx := context.Background()

	enc, err := set.Encoder.Encode(ctx, frame(1))
	require.NoError(t, err)
	assert.Len(t, enc.Features, 6)
	assert.Len(t, enc.Skip, 3)

	st := set.Predictor.InitState()
	assert.Len(t, st, 4)
	next, h, err := set.Predictor.Step(ctx, st, model.Concat(enc.Features, []float32{0, 0}))
	require.NoError(t, err)
	assert.Len(t, next, 4)
	assert.Len(t, h, 6)

	out, err := set.Decoder.Decode(ctx, h, enc.Skip)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{C: 1, H: 4, W: 4}, out.Shape)
	for _, v := range out.Data {
		assert.True(t, v >= 0 && v <= 1, "sigmoid output %f", v)
	}

	// no skip data decodes too
	_, err = set.Decoder.Decode(ctx, h, nil)
	require.NoError(t, err)

	pst, lat, g, err := set.Posterior.Infer(ctx, set.Posterior.InitState(), enc.Features, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, pst, 2)
	assert.Len(t, lat.Z, 2)
	assert.Len(t, g.Mu, 2)
	assert.Len(t, g.LogVar, 2)
}

func TestRejectsWrongDimensions(t *testing.T) {
	nets, err := Random(smallBundle())
	require.NoError(t, err)
	set := nets.Set()
	ctx := context.Background()

	_, err = set.Encoder.Encode(ctx, tensor.NewFrame(tensor.Shape{C: 3, H: 4, W: 4}))
	assert.True(t, errors.Is(err, model.ErrDimension))

	_, _, err = set.Predictor.Step(ctx, set.Predictor.InitState(), make([]float32, 5))
	assert.True(t, errors.Is(err, model.ErrDimension))

	_, err = set.Decoder.Decode(ctx, make(model.Features, 6), make(model.Skip, 1))
	assert.True(t, errors.Is(err, model.ErrDimension))

	_, _, _, err = set.Posterior.Infer(ctx, set.Posterior.InitState(), make(model.Features, 2), rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, model.ErrDimension))
}

func TestSaveLoadRoundTripKeepsOutputs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	nets, err := Random(smallBundle())
	require.NoError(t, err)
	require.NoError(t, nets.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, smallBundle(), loaded.Bundle)

	ctx := context.Background()
	a, err := nets.Set().Encoder.Encode(ctx, frame(0.5))
	require.NoError(t, err)
	b, err := loaded.Set().Encoder.Encode(ctx, frame(0.5))
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Features, b.Features, 1e-5)
}

func TestLoadRejectsBundleThatDisagreesWithNetworks(t *testing.T) {
	for _, edit := range []struct {
		name string
		mut  func(*Bundle)
	}{
		{"larger frame", func(b *Bundle) { b.Frame = tensor.Shape{C: 1, H: 8, W: 8} }},
		{"smaller frame", func(b *Bundle) { b.Frame = tensor.Shape{C: 1, H: 2, W: 2} }},
		{"latent width", func(b *Bundle) { b.ZDim = 3 }},
		{"posterior state", func(b *Bundle) { b.PostState = 5 }},
	} {
		t.Run(edit.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "bundle")
			nets, err := Random(smallBundle())
			require.NoError(t, err)
			require.NoError(t, nets.Save(dir))

			b := smallBundle()
			edit.mut(&b)
			data, err := yaml.Marshal(b)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, BundleFile), data, 0o644))

			_, err = Load(dir)
			assert.ErrorIs(t, err, model.ErrDimension)
		})
	}
}

func TestStepRejectsWrongStateWidth(t *testing.T) {
	nets, err := Random(smallBundle())
	require.NoError(t, err)
	set := nets.Set()

	_, _, err = set.Predictor.Step(context.Background(), make(model.State, 2), make([]float32, 8))
	assert.ErrorIs(t, err, model.ErrDimension)

	_, _, _, err = set.Posterior.Infer(context.Background(), make(model.State, 7), make(model.Features, 6), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, model.ErrDimension)
}

func TestReadBundleRejectsBadSpec(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, BundleFile), []byte("g_dim: 0\nz_dim: 2\n"), 0o644))
	_, err := ReadBundle(dir)
	assert.True(t, errors.Is(err, model.ErrDimension))
}

func TestReparameterizeUsesRNG(t *testing.T) {
	g := model.Gaussian{Mu: []float32{1, -1}, LogVar: []float32{-40, -40}}
	z := Reparameterize(g, rand.New(rand.NewSource(3)))
	assert.InDelta(t, 1, z[0], 1e-6)
	assert.InDelta(t, -1, z[1], 1e-6)

	wide := model.Gaussian{Mu: []float32{0}, LogVar: []float32{0}}
	a := Reparameterize(wide, rand.New(rand.NewSource(3)))
	b := Reparameterize(wide, rand.New(rand.NewSource(3)))
	assert.Equal(t, a, b)
}
