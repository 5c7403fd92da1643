package codec

import (
	"context"
	"fmt"
	"math/rand"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// #region client-struct
// CodecClient wraps the gRPC connection to the Python inference service.
// The server is stateless: recurrent state travels in every Step and Infer
// call.
type CodecClient struct {
	conn   *grpc.ClientConn
	client ModelServiceClient
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the Python inference gRPC server.
func NewCodecClient(addr string) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{
		conn:   conn,
		client: NewModelServiceClient(conn),
	}, nil
}

// NewCodecClientWithService creates a CodecClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewCodecClientWithService(svc ModelServiceClient) *CodecClient {
	return &CodecClient{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region describe
// Describe asks the service for the dimensions of the model it serves.
func (c *CodecClient) Describe(ctx context.Context) (model.Spec, error) {
	resp, err := c.client.Describe(ctx, message(nil))
	if err != nil {
		return model.Spec{}, fmt.Errorf("describe rpc: %w", err)
	}
	keys := []string{"channels", "height", "width", "g_dim", "z_dim", "skip_dim", "predictor_state", "posterior_state"}
	vals := make([]int, len(keys))
	for i, k := range keys {
		if vals[i], err = intField(resp, k); err != nil {
			return model.Spec{}, fmt.Errorf("describe: %w", err)
		}
	}
	spec := model.Spec{
		Frame:     tensor.Shape{C: vals[0], H: vals[1], W: vals[2]},
		GDim:      vals[3],
		ZDim:      vals[4],
		SkipDim:   vals[5],
		PredState: vals[6],
		PostState: vals[7],
	}
	if err := spec.Validate(); err != nil {
		return model.Spec{}, fmt.Errorf("describe: %w", err)
	}
	return spec, nil
}

// Set describes the remote model and returns its networks as a model.Set.
func (c *CodecClient) Set(ctx context.Context) (model.Set, error) {
	spec, err := c.Describe(ctx)
	if err != nil {
		return model.Set{}, err
	}
	return model.Set{
		Spec:      spec,
		Encoder:   encoder{c},
		Decoder:   decoder{c, spec.Frame},
		Predictor: predictor{c, spec.PredState},
		Posterior: posterior{c, spec.PostState},
	}, nil
}

// #endregion describe

// #region encode
type encoder struct{ c *CodecClient }

// Encode sends one frame and receives its features and optional skip data.
func (e encoder) Encode(ctx context.Context, f tensor.Frame) (model.EncodeResult, error) {
	resp, err := e.c.client.Encode(ctx, message(map[string]*structpb.Value{
		"frame": floats(f.Data),
		"shape": floats([]float32{float32(f.Shape.C), float32(f.Shape.H), float32(f.Shape.W)}),
	}))
	if err != nil {
		return model.EncodeResult{}, fmt.Errorf("encode rpc: %w", err)
	}
	h, err := floatsField(resp, "features")
	if err != nil {
		return model.EncodeResult{}, fmt.Errorf("encode: %w", err)
	}
	skip, err := optionalFloatsField(resp, "skip")
	if err != nil {
		return model.EncodeResult{}, fmt.Errorf("encode: %w", err)
	}
	return model.EncodeResult{Features: h, Skip: skip}, nil
}

// #endregion encode

// #region decode
type decoder struct {
	c     *CodecClient
	shape tensor.Shape
}

// Decode sends features and skip data (null when absent) and reshapes the
// returned pixels to the described frame shape.
func (d decoder) Decode(ctx context.Context, h model.Features, skip model.Skip) (tensor.Frame, error) {
	resp, err := d.c.client.Decode(ctx, message(map[string]*structpb.Value{
		"features": floats(h),
		"skip":     optionalFloats(skip),
	}))
	if err != nil {
		return tensor.Frame{}, fmt.Errorf("decode rpc: %w", err)
	}
	pixels, err := floatsField(resp, "frame")
	if err != nil {
		return tensor.Frame{}, fmt.Errorf("decode: %w", err)
	}
	return tensor.FromSlice(d.shape, pixels)
}

// #endregion decode

// #region step
type predictor struct {
	c    *CodecClient
	size int
}

func (p predictor) InitState() model.State {
	return make(model.State, p.size)
}

// Step advances the remote predictor by one frame.
func (p predictor) Step(ctx context.Context, st model.State, input []float32) (model.State, model.Features, error) {
	resp, err := p.c.client.Step(ctx, message(map[string]*structpb.Value{
		"state": floats(st),
		"input": floats(input),
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("step rpc: %w", err)
	}
	next, err := floatsField(resp, "state")
	if err != nil {
		return nil, nil, fmt.Errorf("step: %w", err)
	}
	out, err := floatsField(resp, "output")
	if err != nil {
		return nil, nil, fmt.Errorf("step: %w", err)
	}
	return model.State(next), model.Features(out), nil
}

// #endregion step

// #region infer
type posterior struct {
	c    *CodecClient
	size int
}

func (q posterior) InitState() model.State {
	return make(model.State, q.size)
}

// Infer runs the remote posterior. The server seeds its noise with a value
// drawn from rng so runs stay reproducible.
func (q posterior) Infer(ctx context.Context, st model.State, target model.Features, rng *rand.Rand) (model.State, model.Latent, model.Gaussian, error) {
	seed := rng.Int63n(1 << 53)
	resp, err := q.c.client.Infer(ctx, message(map[string]*structpb.Value{
		"state":  floats(st),
		"target": floats(target),
		"seed":   structpb.NewNumberValue(float64(seed)),
	}))
	if err != nil {
		return nil, model.Latent{}, model.Gaussian{}, fmt.Errorf("infer rpc: %w", err)
	}

	fields := map[string][]float32{}
	for _, k := range []string{"state", "z", "mu", "logvar"} {
		v, err := floatsField(resp, k)
		if err != nil {
			return nil, model.Latent{}, model.Gaussian{}, fmt.Errorf("infer: %w", err)
		}
		fields[k] = v
	}
	return model.State(fields["state"]),
		model.Latent{Z: fields["z"]},
		model.Gaussian{Mu: fields["mu"], LogVar: fields["logvar"]},
		nil
}

// #endregion infer
