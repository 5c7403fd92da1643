// Package testutil provides a small deterministic model and clip builders
// shared by package tests.
package testutil

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region spec
// FrameShape is the frame size the fake model accepts.
var FrameShape = tensor.Shape{C: 1, H: 4, W: 4}

// Spec describes the fake model.
func Spec() model.Spec {
	return model.Spec{
		Frame:     FrameShape,
		GDim:      4,
		ZDim:      2,
		SkipDim:   2,
		PredState: 2,
		PostState: 1,
	}
}

// #endregion spec

// #region fake
// ErrInjected is returned by networks configured to fail.
var ErrInjected = errors.New("injected failure")

// Model is a deterministic stand-in for a pretrained network set. It records
// the targets the posterior sees so tests can check what was conditioned on.
type Model struct {
	Targets    []model.Features
	Encodes    int
	Decodes    int
	DecodeSkip []model.Skip

	FailDecodeAt int // fail on this decode call (1-based), 0 disables
	NoSkip       bool
}

// New returns a fake model.
func New() *Model {
	return &Model{}
}

// Set wraps the fake as a model.Set.
func (m *Model) Set() model.Set {
	return model.Set{
		Spec:      Spec(),
		Encoder:   encoder{m},
		Decoder:   decoder{m},
		Predictor: predictor{m},
		Posterior: posterior{m},
	}
}

type encoder struct{ m *Model }

func (e encoder) Encode(_ context.Context, f tensor.Frame) (model.EncodeResult, error) {
	e.m.Encodes++
	var sum, peak float32
	for _, v := range f.Data {
		sum += v
		if v > peak {
			peak = v
		}
	}
	mean := sum / float32(len(f.Data))
	res := model.EncodeResult{
		Features: model.Features{mean, f.Data[0], f.Data[len(f.Data)-1], peak},
	}
	if !e.m.NoSkip {
		res.Skip = model.Skip{mean, peak}
	}
	return res, nil
}

type decoder struct{ m *Model }

func (d decoder) Decode(_ context.Context, h model.Features, skip model.Skip) (tensor.Frame, error) {
	d.m.Decodes++
	d.m.DecodeSkip = append(d.m.DecodeSkip, skip)
	if d.m.FailDecodeAt > 0 && d.m.Decodes == d.m.FailDecodeAt {
		return tensor.Frame{}, ErrInjected
	}
	var bias float32
	for _, v := range skip {
		bias += v
	}
	out := tensor.NewFrame(FrameShape)
	for i := range out.Data {
		v := float64(h[i%len(h)]+bias) * 0.37
		out.Data[i] = float32(v - math.Floor(v))
	}
	return out, nil
}

type predictor struct{ m *Model }

func (predictor) InitState() model.State {
	return make(model.State, 2)
}

func (predictor) Step(_ context.Context, st model.State, in []float32) (model.State, model.Features, error) {
	var sum float32
	for _, v := range in {
		sum += v
	}
	next := model.State{st[0] + 1, 0.5*st[1] + sum}
	out := make(model.Features, 4)
	for i := range out {
		out[i] = in[i] + 0.1*next[1]
	}
	return next, out, nil
}

type posterior struct{ m *Model }

func (posterior) InitState() model.State {
	return make(model.State, 1)
}

func (p posterior) Infer(_ context.Context, st model.State, target model.Features, rng *rand.Rand) (model.State, model.Latent, model.Gaussian, error) {
	p.m.Targets = append(p.m.Targets, append(model.Features(nil), target...))
	mu := []float32{target[0] + st[0], target[1]}
	logVar := []float32{-2, -2}
	z := make([]float32, 2)
	for i := range z {
		z[i] = mu[i] + float32(math.Exp(0.5*float64(logVar[i]))*rng.NormFloat64())
	}
	return model.State{st[0] + target[0]}, model.Latent{Z: z}, model.Gaussian{Mu: mu, LogVar: logVar}, nil
}

// #endregion fake

// #region clips
// Clip builds a clip of n distinct frames; seed varies the content.
func Clip(n int, seed int64) tensor.Clip {
	rng := rand.New(rand.NewSource(seed))
	clip := make(tensor.Clip, n)
	for t := range clip {
		f := tensor.NewFrame(FrameShape)
		for i := range f.Data {
			f.Data[i] = float32(rng.Float64())
		}
		clip[t] = f
	}
	return clip
}

// Batch builds b clips of n frames each.
func Batch(b, n int) tensor.Batch {
	clips := make([]tensor.Clip, b)
	for i := range clips {
		clips[i] = Clip(n, int64(i+1))
	}
	return tensor.Batch{Clips: clips}
}

// #endregion clips
