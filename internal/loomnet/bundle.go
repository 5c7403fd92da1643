// Package loomnet runs a model bundle in process with openfluke/loom dense
// networks.
package loomnet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfluke/loom/nn"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/svg-eval/internal/model"
)

// #region bundle
// Network file names inside a bundle directory. Each file holds one model
// whose id equals the name without extension.
const (
	BundleFile    = "bundle.yaml"
	EncoderName   = "encoder"
	DecoderName   = "decoder"
	PredictorName = "predictor"
	PosteriorName = "posterior"
)

// Bundle describes the networks in a bundle directory.
type Bundle struct {
	model.Spec `yaml:",inline"`
	Hidden     int `yaml:"hidden"` // width of each network's hidden layer
}

// Sizes returns the input and output width of each named network.
func (b Bundle) Sizes() map[string][2]int {
	frame := b.Frame.Size()
	return map[string][2]int{
		EncoderName:   {frame, b.GDim + b.SkipDim},
		DecoderName:   {b.GDim + b.SkipDim, frame},
		PredictorName: {b.PredState + b.GDim + b.ZDim, b.PredState + b.GDim},
		PosteriorName: {b.PostState + b.GDim, b.PostState + 2*b.ZDim},
	}
}

// ReadBundle parses dir/bundle.yaml.
func ReadBundle(dir string) (Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, BundleFile))
	if err != nil {
		return Bundle{}, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("parse bundle: %w", err)
	}
	if err := b.Spec.Validate(); err != nil {
		return Bundle{}, fmt.Errorf("bundle %s: %w", dir, err)
	}
	return b, nil
}

// #endregion bundle

// #region networks
// Networks holds the four loaded networks of a bundle.
type Networks struct {
	Bundle    Bundle
	Encoder   *nn.Network
	Decoder   *nn.Network
	Predictor *nn.Network
	Posterior *nn.Network
}

// Load reads a bundle directory. Each network must match the widths
// bundle.yaml declares for it.
func Load(dir string) (*Networks, error) {
	b, err := ReadBundle(dir)
	if err != nil {
		return nil, err
	}
	nets := &Networks{Bundle: b}
	sizes := b.Sizes()
	for name, dst := range nets.slots() {
		net, err := nn.LoadModel(filepath.Join(dir, name+".json"), name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		in, out, err := widths(net)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		if want := sizes[name]; in != want[0] || out != want[1] {
			return nil, fmt.Errorf("%s is %d->%d, %s declares %d->%d: %w",
				name, in, out, BundleFile, want[0], want[1], model.ErrDimension)
		}
		net.BatchSize = 1
		*dst = net
	}
	return nets, nil
}

// widths reads the input width of the first dense layer and the output
// width of the last one.
func widths(net *nn.Network) (in, out int, err error) {
	if len(net.Layers) == 0 {
		return 0, 0, fmt.Errorf("network has no layers: %w", model.ErrDimension)
	}
	first, last := net.Layers[0], net.Layers[len(net.Layers)-1]
	if first.Type != nn.LayerDense || last.Type != nn.LayerDense {
		return 0, 0, fmt.Errorf("network must start and end with dense layers: %w", model.ErrDimension)
	}
	return first.InputHeight, last.OutputHeight, nil
}

// Random builds freshly initialised networks for b. Useful for smoke runs
// and tests; the weights carry no training.
func Random(b Bundle) (*Networks, error) {
	if err := b.Spec.Validate(); err != nil {
		return nil, err
	}
	if b.Hidden < 1 {
		return nil, fmt.Errorf("hidden width %d: %w", b.Hidden, model.ErrDimension)
	}
	nets := &Networks{Bundle: b}
	sizes := b.Sizes()
	for name, dst := range nets.slots() {
		out := nn.ActivationTanh
		if name == DecoderName {
			out = nn.ActivationSigmoid
		}
		in, width := sizes[name][0], sizes[name][1]
		net := nn.NewNetwork(in, 1, 1, 2)
		net.BatchSize = 1
		net.SetLayer(0, 0, 0, nn.InitDenseLayer(in, b.Hidden, nn.ActivationLeakyReLU))
		net.SetLayer(0, 0, 1, nn.InitDenseLayer(b.Hidden, width, out))
		net.InitializeWeights()
		*dst = net
	}
	return nets, nil
}

// Save writes the bundle descriptor and all four networks to dir.
func (n *Networks) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := yaml.Marshal(n.Bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, BundleFile), data, 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	for name, src := range n.slots() {
		if err := (*src).SaveModel(filepath.Join(dir, name+".json"), name); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

func (n *Networks) slots() map[string]**nn.Network {
	return map[string]**nn.Network{
		EncoderName:   &n.Encoder,
		DecoderName:   &n.Decoder,
		PredictorName: &n.Predictor,
		PosteriorName: &n.Posterior,
	}
}

// #endregion networks
