package reserverpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	reserveService = "reserve.v1.ReserveFunding"
	tokenService   = "reserve.v1.Token"

	// The metadata key carrying the identity of the caller
	callerKey = "x-caller"
)

// Amounts are sent as decimal strings. Accounts are sent as uuid strings.
type ReserveFundingServer interface {
	AddLiquidity(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	ClearLiquidity(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	CancelAccumulating(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	ResumeAccumulating(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	ExposeLiquidity(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	CompleteFunding(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	State(context.Context, *emptypb.Empty) (*wrapperspb.UInt32Value, error)
	TotalLiquidity(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	TargetLiquidity(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Liquidity(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Address(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

type TokenServer interface {
	Mint(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Approve(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	BalanceOf(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Allowance(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
}

var reserveServiceDesc = grpc.ServiceDesc{
	ServiceName: reserveService,
	HandlerType: (*ReserveFundingServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(reserveService, "AddLiquidity", ReserveFundingServer.AddLiquidity),
		unaryMethod(reserveService, "ClearLiquidity", ReserveFundingServer.ClearLiquidity),
		unaryMethod(reserveService, "CancelAccumulating", ReserveFundingServer.CancelAccumulating),
		unaryMethod(reserveService, "ResumeAccumulating", ReserveFundingServer.ResumeAccumulating),
		unaryMethod(reserveService, "ExposeLiquidity", ReserveFundingServer.ExposeLiquidity),
		unaryMethod(reserveService, "CompleteFunding", ReserveFundingServer.CompleteFunding),
		unaryMethod(reserveService, "State", ReserveFundingServer.State),
		unaryMethod(reserveService, "TotalLiquidity", ReserveFundingServer.TotalLiquidity),
		unaryMethod(reserveService, "TargetLiquidity", ReserveFundingServer.TargetLiquidity),
		unaryMethod(reserveService, "Liquidity", ReserveFundingServer.Liquidity),
		unaryMethod(reserveService, "Address", ReserveFundingServer.Address),
	},
	Streams: []grpc.StreamDesc{},
}

var tokenServiceDesc = grpc.ServiceDesc{
	ServiceName: tokenService,
	HandlerType: (*TokenServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(tokenService, "Mint", TokenServer.Mint),
		unaryMethod(tokenService, "Approve", TokenServer.Approve),
		unaryMethod(tokenService, "BalanceOf", TokenServer.BalanceOf),
		unaryMethod(tokenService, "Allowance", TokenServer.Allowance),
	},
	Streams: []grpc.StreamDesc{},
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// Create the description of a unary method from a method expression of the server interface S.
func unaryMethod[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(service, method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
