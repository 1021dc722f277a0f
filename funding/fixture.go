package funding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"statecheck/ledger"
	"statecheck/lifecycle"
	"statecheck/reserve"
	"statecheck/reserverpc"
)

var ErrInvalidConfig = errors.New("funding: invalid configuration")

// Configures the reserve funding created for each trial
type Config struct {
	// The liquidity the funding accumulates before it locks
	Target uint64
	// The number of actors contributing liquidity
	Actors int
	// The initial token balance of each actor
	Balance uint64
	// Defects injected into the contract
	Faults reserve.Faults

	Log zerolog.Logger
}

// The configuration used by the reference scenario: a target of 100 and ten actors with a balance of 200 each.
func DefaultConfig() Config {
	return Config{
		Target:  100,
		Actors:  10,
		Balance: 200,
		Log:     zerolog.Nop(),
	}
}

func (c Config) validate() error {
	if c.Target == 0 || c.Target > math.MaxInt64/2 {
		return fmt.Errorf("%w: target must be in [1, %v]. Got %v", ErrInvalidConfig, uint64(math.MaxInt64/2), c.Target)
	}
	if c.Actors < 1 {
		return fmt.Errorf("%w: at least one actor is required. Got %v", ErrInvalidConfig, c.Actors)
	}
	// Every actor must be able to fill the remaining room on its own
	if c.Balance < c.Target {
		return fmt.Errorf("%w: the balance of each actor (%v) must cover the target (%v)", ErrInvalidConfig, c.Balance, c.Target)
	}
	return nil
}

// Creates a fresh reserve funding for each trial.
//
// The accounts of the actors and the authority are created once, so that the same sequence refers to the same accounts in every trial.
type Fixture struct {
	cfg       Config
	authority uuid.UUID
	actors    []uuid.UUID
	balances  map[uuid.UUID]*uint256.Int
}

func NewFixture(cfg Config) (*Fixture, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	actors := make([]uuid.UUID, cfg.Actors)
	balances := make(map[uuid.UUID]*uint256.Int, cfg.Actors)
	for i := range actors {
		actors[i] = uuid.New()
		balances[actors[i]] = uint256.NewInt(cfg.Balance)
	}
	return &Fixture{
		cfg:       cfg,
		authority: uuid.New(),
		actors:    actors,
		balances:  balances,
	}, nil
}

func (f *Fixture) Config() Config {
	return f.cfg
}

// Create a ledger and a contract, serve them, and mint the initial balances of the actors.
//
// The returned model is synchronized with the lifecycle state of the new contract.
func (f *Fixture) Setup(ctx context.Context) (Model, *System, error) {
	token := ledger.New()
	contract, err := reserve.New(token, f.authority, uint256.NewInt(f.cfg.Target), f.cfg.Faults)
	if err != nil {
		return Model{}, nil, err
	}

	srv := reserverpc.NewServer(contract, token)
	srv.Start()
	client, err := reserverpc.Dial(ctx, srv.Listener(), f.cfg.Log)
	if err != nil {
		srv.Stop()
		return Model{}, nil, err
	}
	sys := &System{
		Client:    client,
		Authority: contract.Authority(),
		Address:   contract.Address(),
		Actors:    f.actors,
		server:    srv,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, actor := range f.actors {
		actor := actor
		g.Go(func() error {
			return client.Mint(gctx, actor, f.balances[actor])
		})
	}
	if err := g.Wait(); err != nil {
		sys.Close()
		return Model{}, nil, fmt.Errorf("funding: minting initial balances: %w", err)
	}

	state, err := lifecycle.Query(ctx, client)
	if err != nil {
		sys.Close()
		return Model{}, nil, err
	}
	return Model{
		Actors:          f.actors,
		InitialBalances: f.balances,
		State:           state,
	}, sys, nil
}

// Release the system created by Setup
func (f *Fixture) Teardown(sys *System) error {
	return sys.Close()
}
