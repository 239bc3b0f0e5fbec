package grpc

import (
	"context"
	"github.com/kingland/kingland-website/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"strings"
	"time"
)

// DebugLogUnaryInterceptor logs the start and the outcome of each unary call.
func DebugLogUnaryInterceptor(log log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if shouldIgnore(info.FullMethod) {
			return handler(ctx, req)
		}
		var resp any
		err := logCall(ctx, log, info.FullMethod, func() error {
			var err error
			resp, err = handler(ctx, req)
			return err
		})
		return resp, err
	}
}

// DebugLogStreamInterceptor logs the start and the outcome of each stream, e.g. a health watch.
func DebugLogStreamInterceptor(log log.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if shouldIgnore(info.FullMethod) {
			return handler(srv, ss)
		}
		return logCall(ss.Context(), log, info.FullMethod, func() error {
			return handler(srv, ss)
		})
	}
}

func logCall(ctx context.Context, log log.Logger, method string, call func() error) error {
	peerCtx, ok := peer.FromContext(ctx)
	if !ok {
		return status.Errorf(codes.InvalidArgument, "missing peer info")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Errorf(codes.InvalidArgument, "missing metadata")
	}
	start := time.Now()

	log.Debugf("rpc starting %s [peer: %s] %s", method, peerCtx.Addr, md["user-agent"])
	err := call()

	stat, ok := status.FromError(err)
	if !ok {
		stat = status.FromContextError(err)
	}
	log.Debugf("rpc finished %s [peer: %s] %s [code: %s] [duration: %dms]",
		method, peerCtx.Addr, md["user-agent"], stat.Code().String(), time.Since(start).Milliseconds())
	return err
}

func shouldIgnore(method string) bool {
	return strings.Contains(method, "grpc.reflection")
}
