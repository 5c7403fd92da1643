package codec

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type mockModelService struct {
	ModelServiceClient

	describeResp *structpb.Struct
	describeErr  error

	encodeResp *structpb.Struct
	encodeErr  error

	decodeResp *structpb.Struct
	decodeErr  error

	stepResp *structpb.Struct
	stepErr  error

	inferResp *structpb.Struct
	inferErr  error

	lastReq *structpb.Struct
}

func (m *mockModelService) Describe(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastReq = in
	return m.describeResp, m.describeErr
}

func (m *mockModelService) Encode(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastReq = in
	return m.encodeResp, m.encodeErr
}

func (m *mockModelService) Decode(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastReq = in
	return m.decodeResp, m.decodeErr
}

func (m *mockModelService) Step(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastReq = in
	return m.stepResp, m.stepErr
}

func (m *mockModelService) Infer(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastReq = in
	return m.inferResp, m.inferErr
}

func mustStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func describeFields() map[string]interface{} {
	return map[string]interface{}{
		"channels": 1, "height": 2, "width": 2,
		"g_dim": 3, "z_dim": 2, "skip_dim": 0,
		"predictor_state": 4, "posterior_state": 1,
	}
}

// #endregion mock

// #region constructor-tests
func TestNewCodecClientInvalidAddr(t *testing.T) {
	client, err := NewCodecClient("localhost:0")
	require.NoError(t, err)
	defer client.Close()
}

func TestNewCodecClientWithService(t *testing.T) {
	c := NewCodecClientWithService(&mockModelService{})
	require.NotNil(t, c)
	assert.NotNil(t, c.client)
	assert.NoError(t, c.Close(), "close without connection")
}

// #endregion constructor-tests

// #region describe-tests
func TestDescribe_Success(t *testing.T) {
	mock := &mockModelService{describeResp: mustStruct(t, describeFields())}
	spec, err := NewCodecClientWithService(mock).Describe(context.Background())
	require.NoError(t, err)
	want := model.Spec{Frame: tensor.Shape{C: 1, H: 2, W: 2}, GDim: 3, ZDim: 2, PredState: 4, PostState: 1}
	assert.Equal(t, want, spec)
}

func TestDescribe_MissingField(t *testing.T) {
	fields := describeFields()
	delete(fields, "z_dim")
	mock := &mockModelService{describeResp: mustStruct(t, fields)}
	_, err := NewCodecClientWithService(mock).Describe(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDescribe_NonIntegralDimension(t *testing.T) {
	for _, v := range []interface{}{2.5, 1e20, -3, "4"} {
		fields := describeFields()
		fields["g_dim"] = v
		mock := &mockModelService{describeResp: mustStruct(t, fields)}
		_, err := NewCodecClientWithService(mock).Describe(context.Background())
		assert.ErrorIs(t, err, ErrMalformed, "g_dim=%v", v)
	}
}

func TestDescribe_RPCError(t *testing.T) {
	mock := &mockModelService{describeErr: errors.New("unavailable")}
	_, err := NewCodecClientWithService(mock).Describe(context.Background())
	assert.Error(t, err)
}

// #endregion describe-tests

// #region network-tests
func newSet(t *testing.T, mock *mockModelService) model.Set {
	t.Helper()
	mock.describeResp = mustStruct(t, describeFields())
	set, err := NewCodecClientWithService(mock).Set(context.Background())
	require.NoError(t, err)
	return set
}

func TestEncode_NullSkip(t *testing.T) {
	mock := &mockModelService{}
	set := newSet(t, mock)
	mock.encodeResp = mustStruct(t, map[string]interface{}{
		"features": []interface{}{0.5, 1.0, -1.0},
		"skip":     nil,
	})

	f := tensor.NewFrame(tensor.Shape{C: 1, H: 2, W: 2})
	res, err := set.Encoder.Encode(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, model.Features{0.5, 1, -1}, res.Features)
	assert.Nil(t, res.Skip)
	assert.Len(t, mock.lastReq.Fields["frame"].GetListValue().GetValues(), 4)
}

func TestDecode_Reshapes(t *testing.T) {
	mock := &mockModelService{}
	set := newSet(t, mock)
	mock.decodeResp = mustStruct(t, map[string]interface{}{
		"frame": []interface{}{0.1, 0.2, 0.3, 0.4},
	})

	out, err := set.Decoder.Decode(context.Background(), model.Features{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{C: 1, H: 2, W: 2}, out.Shape)
	_, null := mock.lastReq.Fields["skip"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, null, "skip should be sent as null")
}

func TestDecode_WrongPixelCount(t *testing.T) {
	mock := &mockModelService{}
	set := newSet(t, mock)
	mock.decodeResp = mustStruct(t, map[string]interface{}{"frame": []interface{}{0.1}})

	_, err := set.Decoder.Decode(context.Background(), model.Features{1, 2, 3}, nil)
	assert.ErrorIs(t, err, tensor.ErrShape)
}

func TestStep_ThreadsState(t *testing.T) {
	mock := &mockModelService{}
	set := newSet(t, mock)
	mock.stepResp = mustStruct(t, map[string]interface{}{
		"state":  []interface{}{1.0, 2.0, 3.0, 4.0},
		"output": []interface{}{0.0, 0.5, 1.0},
	})

	st := set.Predictor.InitState()
	assert.Len(t, st, 4)
	next, h, err := set.Predictor.Step(context.Background(), st, []float32{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, model.State{1, 2, 3, 4}, next)
	assert.Len(t, h, 3)
	assert.Len(t, mock.lastReq.Fields["input"].GetListValue().GetValues(), 5)
}

func TestStep_Malformed(t *testing.T) {
	mock := &mockModelService{}
	set := newSet(t, mock)
	mock.stepResp = mustStruct(t, map[string]interface{}{"state": "oops"})

	_, _, err := set.Predictor.Step(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestInfer_SeedFromRNG(t *testing.T) {
	mock := &mockModelService{}
	set := newSet(t, mock)
	mock.inferResp = mustStruct(t, map[string]interface{}{
		"state":  []interface{}{0.25},
		"z":      []interface{}{0.1, 0.2},
		"mu":     []interface{}{0.0, 0.0},
		"logvar": []interface{}{-1.0, -1.0},
	})

	seeds := make([]float64, 2)
	for i := range seeds {
		_, lat, g, err := set.Posterior.Infer(context.Background(), set.Posterior.InitState(), model.Features{1, 2, 3}, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		assert.Len(t, lat.Z, 2)
		assert.Len(t, g.LogVar, 2)
		seeds[i] = mock.lastReq.Fields["seed"].GetNumberValue()
	}
	assert.Equal(t, seeds[0], seeds[1], "same rng seed sends the same server seed")
}

func TestInfer_RPCError(t *testing.T) {
	mock := &mockModelService{}
	set := newSet(t, mock)
	mock.inferErr = errors.New("deadline exceeded")

	_, _, _, err := set.Posterior.Infer(context.Background(), nil, nil, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

// #endregion network-tests
