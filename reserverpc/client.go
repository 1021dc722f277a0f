package reserverpc

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// A client of the reserve and token services.
//
// Every call is made on behalf of the caller of the client. Use As to make calls on behalf of another account.
type Client struct {
	conn   *grpc.ClientConn
	caller uuid.UUID
}

// Connect to a server listening on lis. The returned client has no caller.
func Dial(ctx context.Context, lis *bufconn.Listener, log zerolog.Logger) (*Client, error) {
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(
			func(ctx context.Context, s string) (net.Conn, error) {
				return lis.DialContext(ctx)
			},
		),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(UnaryClientLoggingInterceptor(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("reserverpc: unable to dial server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// As returns a client that makes calls on behalf of caller. The clients share the connection.
func (c *Client) As(caller uuid.UUID) *Client {
	return &Client{conn: c.conn, caller: caller}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, service, method string, in, out interface{}) error {
	if c.caller != uuid.Nil {
		ctx = metadata.AppendToOutgoingContext(ctx, callerKey, c.caller.String())
	}
	return c.conn.Invoke(ctx, fullMethod(service, method), in, out)
}

func (c *Client) amount(ctx context.Context, service, method string, in interface{}) (*uint256.Int, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, service, method, in, out); err != nil {
		return nil, err
	}
	return uint256.FromDecimal(out.GetValue())
}

// Contribute up to amount tokens. Returns the accepted amount.
func (c *Client) AddLiquidity(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	return c.amount(ctx, reserveService, "AddLiquidity", amountValue(amount))
}

// Withdraw the full contribution of the caller. Returns the refunded amount.
func (c *Client) ClearLiquidity(ctx context.Context) (*uint256.Int, error) {
	return c.amount(ctx, reserveService, "ClearLiquidity", &emptypb.Empty{})
}

func (c *Client) CancelAccumulating(ctx context.Context) error {
	return c.invoke(ctx, reserveService, "CancelAccumulating", &emptypb.Empty{}, &emptypb.Empty{})
}

func (c *Client) ResumeAccumulating(ctx context.Context) error {
	return c.invoke(ctx, reserveService, "ResumeAccumulating", &emptypb.Empty{}, &emptypb.Empty{})
}

func (c *Client) ExposeLiquidity(ctx context.Context) error {
	return c.invoke(ctx, reserveService, "ExposeLiquidity", &emptypb.Empty{}, &emptypb.Empty{})
}

func (c *Client) CompleteFunding(ctx context.Context) error {
	return c.invoke(ctx, reserveService, "CompleteFunding", &emptypb.Empty{}, &emptypb.Empty{})
}

// State returns the raw lifecycle state of the contract
func (c *Client) State(ctx context.Context) (uint32, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.invoke(ctx, reserveService, "State", &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) TotalLiquidity(ctx context.Context) (*uint256.Int, error) {
	return c.amount(ctx, reserveService, "TotalLiquidity", &emptypb.Empty{})
}

func (c *Client) TargetLiquidity(ctx context.Context) (*uint256.Int, error) {
	return c.amount(ctx, reserveService, "TargetLiquidity", &emptypb.Empty{})
}

// Liquidity returns the contribution of the actor
func (c *Client) Liquidity(ctx context.Context, actor uuid.UUID) (*uint256.Int, error) {
	return c.amount(ctx, reserveService, "Liquidity", wrapperspb.String(actor.String()))
}

// The account of the contract in the token ledger
func (c *Client) Address(ctx context.Context) (uuid.UUID, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, reserveService, "Address", &emptypb.Empty{}, out); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(out.GetValue())
}

func (c *Client) Mint(ctx context.Context, to uuid.UUID, amount *uint256.Int) error {
	in, err := structpb.NewStruct(map[string]interface{}{
		"to":     to.String(),
		"amount": amount.Dec(),
	})
	if err != nil {
		return err
	}
	return c.invoke(ctx, tokenService, "Mint", in, &emptypb.Empty{})
}

// Allow spender to transfer up to amount tokens from the account of the caller
func (c *Client) Approve(ctx context.Context, spender uuid.UUID, amount *uint256.Int) error {
	in, err := structpb.NewStruct(map[string]interface{}{
		"spender": spender.String(),
		"amount":  amount.Dec(),
	})
	if err != nil {
		return err
	}
	return c.invoke(ctx, tokenService, "Approve", in, &emptypb.Empty{})
}

func (c *Client) BalanceOf(ctx context.Context, account uuid.UUID) (*uint256.Int, error) {
	return c.amount(ctx, tokenService, "BalanceOf", wrapperspb.String(account.String()))
}

func (c *Client) Allowance(ctx context.Context, owner, spender uuid.UUID) (*uint256.Int, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"owner":   owner.String(),
		"spender": spender.String(),
	})
	if err != nil {
		return nil, err
	}
	return c.amount(ctx, tokenService, "Allowance", in)
}
