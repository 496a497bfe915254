// Package observability provides gRPC client interceptors and the metrics HTTP server.
package observability

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-interview-capture-service/internal/observability/metrics"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor for logging.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()

		err := invoker(ctx, method, req, reply, cc, opts...)

		st, _ := status.FromError(err)
		log.Debug().
			Str("method", method).
			Str("code", st.Code().String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return err
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// records the lifetime and final status of each recognition stream.
func StreamClientInterceptor(m *metrics.Metrics) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		start := time.Now()

		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			observeStream(m, method, start, err)
			return nil, err
		}
		return &observedStream{ClientStream: cs, method: method, start: start, m: m}, nil
	}
}

// observedStream reports once, on the first terminal RecvMsg.
type observedStream struct {
	grpc.ClientStream
	method string
	start  time.Time
	m      *metrics.Metrics
	once   sync.Once
}

func (s *observedStream) RecvMsg(msg interface{}) error {
	err := s.ClientStream.RecvMsg(msg)
	if err != nil {
		s.once.Do(func() { observeStream(s.m, s.method, s.start, err) })
	}
	return err
}

func observeStream(m *metrics.Metrics, method string, start time.Time, err error) {
	code := codes.OK
	if err != nil && !errors.Is(err, io.EOF) {
		code = status.Code(err)
	}
	duration := time.Since(start)
	m.RecordSTTStream(method, code.String(), duration.Seconds())

	log.Info().
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", duration).
		Msg("gRPC stream completed")
}
