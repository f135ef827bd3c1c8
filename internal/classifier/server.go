package classifier

import (
	"Go2NetSDN/internal/model"
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName    = "netsdn.classifier.v1.Classifier"
	classifyMethod = "/" + serviceName + "/Classify"
)

// ClassifierServer is the server API of the classifier service.
type ClassifierServer interface {
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type server struct {
	classifier model.Classifier
}

func (s *server) Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fv, err := decodeFeatures(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	verdict, err := s.classifier.Classify(ctx, fv)
	if err != nil {
		if errors.Is(err, ErrMalformedFeatures) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		log.WithError(err).Warn("classification failed")
		return nil, status.Error(codes.Internal, err.Error())
	}
	return structpb.NewStruct(map[string]any{"verdict": verdict.String()})
}

func _Classifier_Classify_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: classifyMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).Classify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the classifier service. Requests and replies are
// google.protobuf.Struct messages.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ClassifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Classify",
			Handler:    _Classifier_Classify_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netsdn/classifier/v1/classifier.proto",
}

// RegisterClassifierServer exposes c on s.
func RegisterClassifierServer(s grpc.ServiceRegistrar, c model.Classifier) {
	s.RegisterService(&ServiceDesc, &server{classifier: c})
}
