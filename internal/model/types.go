package model

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region errors
var ErrDimension = errors.New("dimension mismatch")

// #endregion errors

// #region values
// Features is the encoder's latent description of a frame (h in the literature).
type Features []float32

// Skip holds the encoder's skip-connection activations. Only frames seen
// during conditioning produce skip data that the decoder consumes.
type Skip []float32

// State is an opaque recurrent state value. Step functions return a new
// value instead of mutating the old one, so a State may be kept, compared
// or discarded freely.
type State []float32

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	copy(out, s)
	return out
}

// EncodeResult is what the encoder yields for one frame. Skip is nil when
// the encoder architecture has no skip connections.
type EncodeResult struct {
	Features Features
	Skip     Skip
}

// Source records which distribution a latent was drawn from.
type Source string

const (
	SourcePosterior Source = "posterior"
	SourcePrior     Source = "prior"
)

// Latent is a sampled z vector tagged with its provenance.
type Latent struct {
	Z      []float32
	Source Source
}

// Gaussian carries the diagonal distribution the posterior sampled from.
type Gaussian struct {
	Mu     []float32
	LogVar []float32
}

// #endregion values

// #region spec
// Spec declares the dimensions a model bundle was trained with.
type Spec struct {
	Frame     tensor.Shape `json:"frame" yaml:"frame"`
	GDim      int          `json:"g_dim" yaml:"g_dim"`
	ZDim      int          `json:"z_dim" yaml:"z_dim"`
	SkipDim   int          `json:"skip_dim" yaml:"skip_dim"`
	PredState int          `json:"predictor_state" yaml:"predictor_state"`
	PostState int          `json:"posterior_state" yaml:"posterior_state"`
}

// Validate checks every dimension is usable.
func (s Spec) Validate() error {
	switch {
	case s.Frame.Size() <= 0:
		return fmt.Errorf("frame shape %s: %w", s.Frame, ErrDimension)
	case s.GDim <= 0:
		return fmt.Errorf("g_dim %d: %w", s.GDim, ErrDimension)
	case s.ZDim <= 0:
		return fmt.Errorf("z_dim %d: %w", s.ZDim, ErrDimension)
	case s.SkipDim < 0 || s.PredState < 0 || s.PostState < 0:
		return fmt.Errorf("negative dimension in %+v: %w", s, ErrDimension)
	}
	return nil
}

// #endregion spec

// #region collaborators
// Encoder maps a frame to latent features and optional skip data.
type Encoder interface {
	Encode(ctx context.Context, frame tensor.Frame) (EncodeResult, error)
}

// Decoder maps predicted features plus skip data back to a frame.
// skip may be nil.
type Decoder interface {
	Decode(ctx context.Context, h Features, skip Skip) (tensor.Frame, error)
}

// Predictor is the recurrent frame predictor.
type Predictor interface {
	InitState() State
	Step(ctx context.Context, st State, input []float32) (State, Features, error)
}

// Posterior is the inference network q(z|x). rng supplies the noise for the
// reparameterised sample.
type Posterior interface {
	InitState() State
	Infer(ctx context.Context, st State, target Features, rng *rand.Rand) (State, Latent, Gaussian, error)
}

// Set groups the four networks of one pretrained model.
type Set struct {
	Spec      Spec
	Encoder   Encoder
	Decoder   Decoder
	Predictor Predictor
	Posterior Posterior
}

// Validate checks that every network is present and the dimensions are sane.
func (s Set) Validate() error {
	if s.Encoder == nil || s.Decoder == nil || s.Predictor == nil || s.Posterior == nil {
		return errors.New("model set is missing a network")
	}
	return s.Spec.Validate()
}

// #endregion collaborators

// #region helpers
// Concat joins features and a latent into one predictor input.
func Concat(h Features, z []float32) []float32 {
	out := make([]float32, 0, len(h)+len(z))
	out = append(out, h...)
	return append(out, z...)
}

// #endregion helpers
