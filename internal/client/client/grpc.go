package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/partsdesk/internal/client/autherr"
	"github.com/dmitrijs2005/partsdesk/internal/common"
)

var authMetadataKey = strings.ToLower(common.AuthorizationHeaderName)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(authMetadataKey)
	if token != "" {
		md.Set(authMetadataKey, "Bearer "+token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

// UnaryAuthInterceptor gives gRPC callers the same treatment as Transport:
// bearer metadata, one renewal on Unauthenticated, classified reports.
func UnaryAuthInterceptor(tokens TokenSource, reporter ErrorReporter) grpc.UnaryClientInterceptor {
	report := func(ctx context.Context, kind autherr.Kind, msg string) {
		if reporter != nil {
			reporter.Report(ctx, kind, msg)
		}
	}
	token := func(ctx context.Context) string {
		tok, err := tokens.AccessToken(ctx)
		if err != nil {
			return ""
		}
		return tok
	}

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		err := invoker(withAccessToken(ctx, token(ctx)), method, req, reply, cc, opts...)
		if err == nil {
			return nil
		}

		st, ok := status.FromError(err)
		if !ok {
			return err
		}

		if st.Code() == codes.Unauthenticated && tokens.RefreshToken(ctx) {
			err = invoker(withAccessToken(ctx, token(ctx)), method, req, reply, cc, opts...)
			if err == nil {
				return nil
			}
			st, _ = status.FromError(err)
		}

		switch st.Code() {
		case codes.Unauthenticated:
			report(ctx, autherr.TokenExpired, st.Message())
		case codes.PermissionDenied:
			report(ctx, autherr.Unauthorized, st.Message())
		case codes.Unavailable, codes.DeadlineExceeded:
			report(ctx, autherr.NetworkError, st.Message())
		}
		return mapError(err)
	}
}

// DialGRPC prepares a connection to the gRPC gateway with
// UnaryAuthInterceptor installed. The connection is lazy; nothing is sent
// until the first call.
func DialGRPC(addr string, tokens TokenSource, reporter ErrorReporter, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(UnaryAuthInterceptor(tokens, reporter)),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", addr, err)
	}
	return conn, nil
}

// CheckHealth queries the gateway's standard health service. An empty
// service asks about the server as a whole.
func CheckHealth(ctx context.Context, cc grpc.ClientConnInterface, service string) (string, error) {
	resp, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}

func mapError(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.ResourceExhausted:
		return ErrRateLimited
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return err
	}
}
