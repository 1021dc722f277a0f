package reserverpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Create a UnaryClientInterceptor that logs every call made by a client.
//
// Successful calls are logged at trace level and failed calls at debug level, since failures are often expected by the caller.
func UnaryClientLoggingInterceptor(log zerolog.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		evt := log.Trace()
		if err != nil {
			evt = log.Debug().Err(err)
		}
		evt.Str("method", method).
			Stringer("code", status.Code(err)).
			Dur("elapsed", time.Since(start)).
			Msg("rpc")
		return err
	}
}
