package loomnet

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/openfluke/loom/nn"

	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// Set wraps the networks as a model.Set. The networks keep activation
// buffers between calls, so a Set must be driven from one goroutine.
func (n *Networks) Set() model.Set {
	return model.Set{
		Spec:      n.Bundle.Spec,
		Encoder:   encoder{n},
		Decoder:   decoder{n},
		Predictor: predictor{n},
		Posterior: posterior{n},
	}
}

// forward runs the named network after checking the input width against
// the bundle, then checks the output width.
func (n *Networks) forward(ctx context.Context, net *nn.Network, name string, in []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := n.Bundle.Sizes()[name]
	if len(in) != want[0] {
		return nil, fmt.Errorf("%s fed %d values, want %d: %w", name, len(in), want[0], model.ErrDimension)
	}
	out, _ := net.ForwardCPU(in)
	if len(out) != want[1] {
		return nil, fmt.Errorf("%s produced %d values, want %d: %w", name, len(out), want[1], model.ErrDimension)
	}
	return append([]float32(nil), out...), nil
}

// #region encoder
type encoder struct{ n *Networks }

func (e encoder) Encode(ctx context.Context, f tensor.Frame) (model.EncodeResult, error) {
	b := e.n.Bundle
	if f.Shape != b.Frame {
		return model.EncodeResult{}, fmt.Errorf("encode frame %s, bundle expects %s: %w", f.Shape, b.Frame, model.ErrDimension)
	}
	out, err := e.n.forward(ctx, e.n.Encoder, EncoderName, f.Data)
	if err != nil {
		return model.EncodeResult{}, err
	}
	res := model.EncodeResult{Features: model.Features(out[:b.GDim])}
	if b.SkipDim > 0 {
		res.Skip = model.Skip(out[b.GDim:])
	}
	return res, nil
}

// #endregion encoder

// #region decoder
type decoder struct{ n *Networks }

// Decode feeds [h | skip]; a nil skip is replaced by zeros.
func (d decoder) Decode(ctx context.Context, h model.Features, skip model.Skip) (tensor.Frame, error) {
	b := d.n.Bundle
	if len(h) != b.GDim {
		return tensor.Frame{}, fmt.Errorf("decode %d features, want %d: %w", len(h), b.GDim, model.ErrDimension)
	}
	if skip != nil && len(skip) != b.SkipDim {
		return tensor.Frame{}, fmt.Errorf("decode %d skip values, want %d: %w", len(skip), b.SkipDim, model.ErrDimension)
	}
	in := make([]float32, b.GDim+b.SkipDim)
	copy(in, h)
	copy(in[b.GDim:], skip)

	out, err := d.n.forward(ctx, d.n.Decoder, DecoderName, in)
	if err != nil {
		return tensor.Frame{}, err
	}
	return tensor.FromSlice(b.Frame, out)
}

// #endregion decoder

// #region predictor
type predictor struct{ n *Networks }

func (p predictor) InitState() model.State {
	return make(model.State, p.n.Bundle.PredState)
}

// Step maps [state | h | z] to [state' | h_pred].
func (p predictor) Step(ctx context.Context, st model.State, input []float32) (model.State, model.Features, error) {
	b := p.n.Bundle
	if len(input) != b.GDim+b.ZDim {
		return nil, nil, fmt.Errorf("predictor input %d, want %d: %w", len(input), b.GDim+b.ZDim, model.ErrDimension)
	}
	out, err := p.n.forward(ctx, p.n.Predictor, PredictorName, join(st, input))
	if err != nil {
		return nil, nil, err
	}
	return model.State(out[:b.PredState]).Clone(), model.Features(out[b.PredState:]), nil
}

// #endregion predictor

// #region posterior
type posterior struct{ n *Networks }

func (q posterior) InitState() model.State {
	return make(model.State, q.n.Bundle.PostState)
}

// Infer maps [state | target] to [state' | mu | logvar] and draws
// z = mu + exp(logvar/2)·ε with ε from rng.
func (q posterior) Infer(ctx context.Context, st model.State, target model.Features, rng *rand.Rand) (model.State, model.Latent, model.Gaussian, error) {
	b := q.n.Bundle
	if len(target) != b.GDim {
		return nil, model.Latent{}, model.Gaussian{}, fmt.Errorf("posterior target %d, want %d: %w", len(target), b.GDim, model.ErrDimension)
	}
	out, err := q.n.forward(ctx, q.n.Posterior, PosteriorName, join(st, target))
	if err != nil {
		return nil, model.Latent{}, model.Gaussian{}, err
	}
	next := model.State(out[:b.PostState]).Clone()
	g := model.Gaussian{
		Mu:     append([]float32(nil), out[b.PostState:b.PostState+b.ZDim]...),
		LogVar: append([]float32(nil), out[b.PostState+b.ZDim:]...),
	}
	return next, model.Latent{Z: Reparameterize(g, rng)}, g, nil
}

// Reparameterize samples from g using standard normal noise from rng.
func Reparameterize(g model.Gaussian, rng *rand.Rand) []float32 {
	z := make([]float32, len(g.Mu))
	for i := range z {
		std := math.Exp(0.5 * float64(g.LogVar[i]))
		z[i] = g.Mu[i] + float32(std*rng.NormFloat64())
	}
	return z
}

// #endregion posterior

func join(a, b []float32) []float32 {
	out := make([]float32, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
