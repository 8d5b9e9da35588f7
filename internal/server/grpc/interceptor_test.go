package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/stagepass/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recordingLogger struct {
	logging.Logger
	msgs []string
	args [][]any
}

func (r *recordingLogger) Debug(_ context.Context, msg string, args ...any) {
	r.msgs = append(r.msgs, msg)
	r.args = append(r.args, args)
}

func TestInterceptor_PassesThroughAndLogs(t *testing.T) {
	rl := &recordingLogger{Logger: logging.Discard()}
	s := &HealthServer{logger: rl}

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected resp: %v", resp)
	}
	if len(rl.msgs) != 1 {
		t.Fatalf("expected one log line, got %d", len(rl.msgs))
	}
	if rl.args[0][1] != info.FullMethod || rl.args[0][3] != codes.OK.String() {
		t.Fatalf("unexpected log args: %v", rl.args[0])
	}
}

func TestInterceptor_KeepsHandlerError(t *testing.T) {
	rl := &recordingLogger{Logger: logging.Discard()}
	s := &HealthServer{logger: rl}

	want := status.Error(codes.NotFound, "unknown service")
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	}

	_, err := s.loggingInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, h)
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if rl.args[0][3] != codes.NotFound.String() {
		t.Fatalf("expected NotFound code logged, got %v", rl.args[0][3])
	}
}
