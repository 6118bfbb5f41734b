package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"voltmesh.io/internal/auth"
	"voltmesh.io/internal/obs"
)

// UnaryAuthInterceptor runs the same extract/verify/session/user machine
// over gRPC metadata for services exposed alongside the HTTP API. The
// taxonomy code travels in the status message so clients can branch on it.
func UnaryAuthInterceptor(svc *auth.Service) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, authStatus(auth.ErrNoToken)
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, authStatus(auth.ErrNoToken)
		}
		token, err := extractBearerToken(values[0])
		if err != nil {
			return nil, authStatus(err)
		}
		user, claims, err := svc.Authenticate(ctx, token)
		if err != nil {
			return nil, authStatus(err)
		}
		ctx = auth.ContextWithIdentity(ctx, auth.Identity{
			UserID:    user.ID,
			Email:     user.Email,
			Role:      user.Role,
			SessionID: claims.SessionID,
		})
		ctx = auth.ContextWithToken(ctx, token)
		return handler(ctx, req)
	}
}

func authStatus(err error) error {
	code := auth.Code(err)
	obs.AuthFailure(code)
	grpcCode := codes.Unauthenticated
	if auth.IsAuthorizationError(err) {
		grpcCode = codes.PermissionDenied
	}
	return status.Error(grpcCode, code)
}
