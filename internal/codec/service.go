package codec

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service
// ServiceName is the fully qualified gRPC service the inference server
// exposes. Requests and responses are google.protobuf.Struct messages.
const ServiceName = "svgeval.v1.ModelService"

// ErrMalformed is returned when a response lacks a field or carries the
// wrong kind of value.
var ErrMalformed = errors.New("malformed model service response")

// ModelServiceClient is the client API for ModelService.
type ModelServiceClient interface {
	Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Encode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Decode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Step(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Infer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type modelServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewModelServiceClient binds the service to a connection.
func NewModelServiceClient(cc grpc.ClientConnInterface) ModelServiceClient {
	return &modelServiceClient{cc: cc}
}

func (c *modelServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *modelServiceClient) Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Describe", in, opts)
}

func (c *modelServiceClient) Encode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Encode", in, opts)
}

func (c *modelServiceClient) Decode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Decode", in, opts)
}

func (c *modelServiceClient) Step(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Step", in, opts)
}

func (c *modelServiceClient) Infer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Infer", in, opts)
}

// #endregion service

// #region values
func floats(v []float32) *structpb.Value {
	vals := make([]*structpb.Value, len(v))
	for i, f := range v {
		vals[i] = structpb.NewNumberValue(float64(f))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

// optionalFloats encodes nil as a null value.
func optionalFloats(v []float32) *structpb.Value {
	if v == nil {
		return structpb.NewNullValue()
	}
	return floats(v)
}

func message(fields map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: fields}
}

func floatsField(s *structpb.Struct, key string) ([]float32, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, fmt.Errorf("field %q missing: %w", key, ErrMalformed)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("field %q is not a list: %w", key, ErrMalformed)
	}
	out := make([]float32, len(list.GetValues()))
	for i, x := range list.GetValues() {
		if _, ok := x.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("field %q[%d] is not a number: %w", key, i, ErrMalformed)
		}
		out[i] = float32(x.GetNumberValue())
	}
	return out, nil
}

// optionalFloatsField returns nil for an absent or null field.
func optionalFloatsField(s *structpb.Struct, key string) ([]float32, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, nil
	}
	return floatsField(s, key)
}

func intField(s *structpb.Struct, key string) (int, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("field %q missing: %w", key, ErrMalformed)
	}
	if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
		return 0, fmt.Errorf("field %q is not a number: %w", key, ErrMalformed)
	}
	n := v.GetNumberValue()
	if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("field %q is %v, want a whole number in [0, %d]: %w", key, n, math.MaxInt32, ErrMalformed)
	}
	return int(n), nil
}

// #endregion values
