package classifier

import (
	"Go2NetSDN/internal/model"
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Remote asks a classifier service over gRPC.
type Remote struct {
	conn    grpc.ClientConnInterface
	closer  func() error
	timeout time.Duration
}

// Dial creates a client for the service at addr. The connection is
// established lazily on the first call.
func Dial(addr string, timeout time.Duration) (*Remote, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client for %s: %w", addr, err)
	}
	r := NewRemote(conn, timeout)
	r.closer = conn.Close
	return r, nil
}

// NewRemote uses an existing connection. A non-positive timeout means none.
func NewRemote(conn grpc.ClientConnInterface, timeout time.Duration) *Remote {
	return &Remote{conn: conn, timeout: timeout}
}

func (r *Remote) Classify(ctx context.Context, fv model.FeatureVector) (model.Verdict, error) {
	if err := checkFinite(fv); err != nil {
		return model.VerdictNormal, err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	in, err := encodeFeatures(fv)
	if err != nil {
		return model.VerdictNormal, err
	}
	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, classifyMethod, in, out); err != nil {
		return model.VerdictNormal, fmt.Errorf("remote classify: %w", err)
	}

	field, ok := out.GetFields()["verdict"]
	if !ok {
		return model.VerdictNormal, fmt.Errorf("remote classify: reply has no verdict")
	}
	return model.ParseVerdict(field.GetStringValue())
}

// Close releases the connection created by Dial.
func (r *Remote) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func encodeFeatures(fv model.FeatureVector) (*structpb.Struct, error) {
	values := fv.Values()
	fields := make(map[string]any, len(values))
	for i, name := range model.FeatureNames {
		fields[name] = values[i]
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	return s, nil
}

func decodeFeatures(s *structpb.Struct) (model.FeatureVector, error) {
	fields := s.GetFields()
	values := make([]float64, len(model.FeatureNames))
	for i, name := range model.FeatureNames {
		v, ok := fields[name]
		if !ok {
			return model.FeatureVector{}, fmt.Errorf("%w: missing %s", ErrMalformedFeatures, name)
		}
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
			return model.FeatureVector{}, fmt.Errorf("%w: %s is not a number", ErrMalformedFeatures, name)
		}
		values[i] = v.GetNumberValue()
	}
	fv := model.FeatureVector{
		PacketRate:     values[0],
		ByteRate:       values[1],
		MeanPacketSize: values[2],
		PacketCount:    uint64(values[3]),
		ByteCount:      uint64(values[4]),
	}
	return fv, checkFinite(fv)
}
