package classifier

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T, c model.Classifier) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterClassifierServer(s, c)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRemote_RoundTrip(t *testing.T) {
	conn := startServer(t, NewThreshold(config.ThresholdConfig{PacketRate: 100, MaxPacketSize: 128}))
	r := NewRemote(conn, 2*time.Second)
	ctx := context.Background()

	v, err := r.Classify(ctx, flood)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAttack, v)

	v, err = r.Classify(ctx, normal)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictNormal, v)
}

func TestRemote_ServerErrorFailsOpen(t *testing.T) {
	conn := startServer(t, &stubClassifier{err: assert.AnError})
	r := NewRemote(conn, 2*time.Second)

	_, err := r.Classify(context.Background(), flood)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err), "status survives wrapping")

	v, err := NewFailOpen(r, nil).Classify(context.Background(), flood)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictNormal, v)
}

func TestServer_RejectsIncompleteRequest(t *testing.T) {
	conn := startServer(t, &stubClassifier{})
	in, err := structpb.NewStruct(map[string]any{"packet_rate": 1.0})
	require.NoError(t, err)

	err = conn.Invoke(context.Background(), classifyMethod, in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestFeatureEncoding(t *testing.T) {
	s, err := encodeFeatures(flood)
	require.NoError(t, err)
	fv, err := decodeFeatures(s)
	require.NoError(t, err)
	assert.Equal(t, flood, fv)
}
