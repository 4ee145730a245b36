package healthcheck

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestMapHealthError(t *testing.T) {
	t.Parallel()

	internal := status.Error(codes.Internal, "internal")
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unknown service", status.Error(codes.NotFound, "unknown service"), ErrUnknownService},
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), ErrUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "deadline"), ErrUnavailable},
		{"pass through", internal, internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapHealthError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("mapHealthError() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClientCheck(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	hs := health.NewServer()
	hs.SetServingStatus("authgate", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("standby", healthpb.HealthCheckResponse_NOT_SERVING)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()

	if err := client.Check(ctx, "authgate"); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}
	if err := client.Check(ctx, "standby"); !errors.Is(err, ErrNotServing) {
		t.Fatalf("expected ErrNotServing, got %v", err)
	}
	if err := client.Check(ctx, "missing"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
}
