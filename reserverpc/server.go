package reserverpc

import (
	"context"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"statecheck/ledger"
	"statecheck/reserve"
)

const bufSize = 1024 * 1024

// Serves a reserve contract and its token ledger over an in-memory listener
type Server struct {
	contract *reserve.Contract
	token    *ledger.Ledger

	srv *grpc.Server
	lis *bufconn.Listener
}

// Create a server for the contract and the ledger. The server is not started.
func NewServer(contract *reserve.Contract, token *ledger.Ledger) *Server {
	s := &Server{
		contract: contract,
		token:    token,
		srv:      grpc.NewServer(),
		lis:      bufconn.Listen(bufSize),
	}
	s.srv.RegisterService(&reserveServiceDesc, &fundingServer{s})
	s.srv.RegisterService(&tokenServiceDesc, &tokenServer{s})
	return s
}

// Start serving in a separate goroutine
func (s *Server) Start() {
	go func() {
		// Serve only returns once the server is stopped
		_ = s.srv.Serve(s.lis)
	}()
}

// Stop the server and close all connections
func (s *Server) Stop() {
	s.srv.Stop()
}

// The listener the server accepts connections on
func (s *Server) Listener() *bufconn.Listener {
	return s.lis
}

// Read the identity of the caller from the incoming metadata
func callerFrom(ctx context.Context) (uuid.UUID, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok || len(md.Get(callerKey)) == 0 {
		return uuid.Nil, status.Error(codes.Unauthenticated, "reserverpc: missing caller")
	}
	id, err := uuid.Parse(md.Get(callerKey)[0])
	if err != nil {
		return uuid.Nil, status.Errorf(codes.Unauthenticated, "reserverpc: invalid caller: %v", err)
	}
	return id, nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "reserverpc: invalid amount %q: %v", raw, err)
	}
	return amount, nil
}

func parseAccount(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "reserverpc: invalid account %q: %v", raw, err)
	}
	return id, nil
}

// Read a string field of a struct message
func field(msg *structpb.Struct, name string) (string, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "reserverpc: missing field %v", name)
	}
	return v.GetStringValue(), nil
}

func amountValue(amount *uint256.Int) *wrapperspb.StringValue {
	return wrapperspb.String(amount.Dec())
}

type fundingServer struct {
	s *Server
}

func (fs *fundingServer) AddLiquidity(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(in.GetValue())
	if err != nil {
		return nil, err
	}
	accepted, err := fs.s.contract.AddLiquidity(caller, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return amountValue(accepted), nil
}

func (fs *fundingServer) ClearLiquidity(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	refund, err := fs.s.contract.ClearLiquidity(caller)
	if err != nil {
		return nil, toStatus(err)
	}
	return amountValue(refund), nil
}

func (fs *fundingServer) transition(ctx context.Context, f func(uuid.UUID) error) (*emptypb.Empty, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := f(caller); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (fs *fundingServer) CancelAccumulating(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return fs.transition(ctx, fs.s.contract.Cancel)
}

func (fs *fundingServer) ResumeAccumulating(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return fs.transition(ctx, fs.s.contract.Resume)
}

func (fs *fundingServer) ExposeLiquidity(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return fs.transition(ctx, fs.s.contract.Expose)
}

func (fs *fundingServer) CompleteFunding(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return fs.transition(ctx, fs.s.contract.Complete)
}

func (fs *fundingServer) State(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt32Value, error) {
	return wrapperspb.UInt32(uint32(fs.s.contract.State())), nil
}

func (fs *fundingServer) TotalLiquidity(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return amountValue(fs.s.contract.TotalLiquidity()), nil
}

func (fs *fundingServer) TargetLiquidity(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return amountValue(fs.s.contract.TargetLiquidity()), nil
}

func (fs *fundingServer) Liquidity(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	actor, err := parseAccount(in.GetValue())
	if err != nil {
		return nil, err
	}
	return amountValue(fs.s.contract.Liquidity(actor)), nil
}

func (fs *fundingServer) Address(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(fs.s.contract.Address().String()), nil
}

type tokenServer struct {
	s *Server
}

func (ts *tokenServer) Mint(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	to, amount, err := accountAndAmount(in, "to")
	if err != nil {
		return nil, err
	}
	if err := ts.s.token.Mint(to, amount); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (ts *tokenServer) Approve(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	spender, amount, err := accountAndAmount(in, "spender")
	if err != nil {
		return nil, err
	}
	ts.s.token.Approve(caller, spender, amount)
	return &emptypb.Empty{}, nil
}

func (ts *tokenServer) BalanceOf(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	account, err := parseAccount(in.GetValue())
	if err != nil {
		return nil, err
	}
	return amountValue(ts.s.token.BalanceOf(account)), nil
}

func (ts *tokenServer) Allowance(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	rawOwner, err := field(in, "owner")
	if err != nil {
		return nil, err
	}
	rawSpender, err := field(in, "spender")
	if err != nil {
		return nil, err
	}
	owner, err := parseAccount(rawOwner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAccount(rawSpender)
	if err != nil {
		return nil, err
	}
	return amountValue(ts.s.token.Allowance(owner, spender)), nil
}

// Read an account field with the provided name and the amount field of a struct message
func accountAndAmount(in *structpb.Struct, accountField string) (uuid.UUID, *uint256.Int, error) {
	rawAccount, err := field(in, accountField)
	if err != nil {
		return uuid.Nil, nil, err
	}
	rawAmount, err := field(in, "amount")
	if err != nil {
		return uuid.Nil, nil, err
	}
	account, err := parseAccount(rawAccount)
	if err != nil {
		return uuid.Nil, nil, err
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return account, amount, nil
}
