package reserve

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"statecheck/ledger"
	"statecheck/lifecycle"
)

var (
	ErrWrongState    = errors.New("reserve: operation not allowed in the current state")
	ErrUnauthorized  = errors.New("reserve: caller is not the authority")
	ErrInvalidAmount = errors.New("reserve: amount must be positive")
)

// Defects that can be injected into the contract.
//
// A correct contract has no faults. Faults are used to verify that a model check detects them.
type Faults struct {
	// Accept the full amount of a deposit even if it exceeds the remaining room below the target
	UncappedDeposits bool
	// Refund one token less than the contribution of the caller
	LeakyRefunds bool
	// Accept cancellations without leaving the Accumulating state
	StuckCancel bool
}

// A reserve-funding contract.
//
// Actors contribute tokens toward a target. The contract locks when the target is reached,
// after which the authority can expose and complete the funding.
// While accumulating the authority can cancel, and resume, the funding.
// Actors can withdraw their full contribution while the funding is accumulating, cancelled or completed.
//
// All methods are safe for concurrent use.
type Contract struct {
	sync.Mutex

	address   uuid.UUID
	authority uuid.UUID
	token     *ledger.Ledger

	target    *uint256.Int
	total     *uint256.Int
	liquidity map[uuid.UUID]*uint256.Int
	state     lifecycle.State

	faults Faults
}

// Create a new contract holding its tokens in the provided ledger.
//
// Returns an error if the target is zero.
func New(token *ledger.Ledger, authority uuid.UUID, target *uint256.Int, faults Faults) (*Contract, error) {
	if target.IsZero() {
		return nil, fmt.Errorf("%w: target liquidity is zero", ErrInvalidAmount)
	}
	return &Contract{
		address:   uuid.New(),
		authority: authority,
		token:     token,
		target:    target.Clone(),
		total:     new(uint256.Int),
		liquidity: make(map[uuid.UUID]*uint256.Int),
		state:     lifecycle.Accumulating,
		faults:    faults,
	}, nil
}

// Contribute up to amount tokens from the caller toward the target.
//
// The caller must have approved the contract to spend amount tokens.
// At most the remaining room below the target is accepted. The contract locks when the target is reached.
// Returns the accepted amount.
func (c *Contract) AddLiquidity(caller uuid.UUID, amount *uint256.Int) (*uint256.Int, error) {
	c.Lock()
	defer c.Unlock()
	if c.state != lifecycle.Accumulating {
		return nil, fmt.Errorf("%w: can not add liquidity while %v", ErrWrongState, c.state)
	}
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	accepted := amount.Clone()
	room := new(uint256.Int).Sub(c.target, c.total)
	if !c.faults.UncappedDeposits && accepted.Gt(room) {
		accepted = room
	}
	if err := c.token.TransferFrom(c.address, caller, c.address, accepted); err != nil {
		return nil, fmt.Errorf("reserve: unable to collect liquidity: %w", err)
	}
	// Revoke what is left of the approval
	c.token.Approve(caller, c.address, new(uint256.Int))

	c.total = new(uint256.Int).Add(c.total, accepted)
	c.liquidity[caller] = new(uint256.Int).Add(c.liquidityOf(caller), accepted)
	if !c.total.Lt(c.target) {
		c.state = lifecycle.Locked
	}
	return accepted.Clone(), nil
}

// Refund the full contribution of the caller.
//
// Returns the refunded amount. A caller without a contribution is refunded nothing.
func (c *Contract) ClearLiquidity(caller uuid.UUID) (*uint256.Int, error) {
	c.Lock()
	defer c.Unlock()
	switch c.state {
	case lifecycle.Accumulating, lifecycle.Cancelled, lifecycle.Completed:
	default:
		return nil, fmt.Errorf("%w: can not clear liquidity while %v", ErrWrongState, c.state)
	}

	contribution := c.liquidityOf(caller)
	refund := contribution.Clone()
	if c.faults.LeakyRefunds && !refund.IsZero() {
		refund.SubUint64(refund, 1)
	}
	if err := c.token.Transfer(c.address, caller, refund); err != nil {
		return nil, fmt.Errorf("reserve: unable to refund liquidity: %w", err)
	}
	c.total = new(uint256.Int).Sub(c.total, contribution)
	delete(c.liquidity, caller)
	return refund, nil
}

// Halt the accumulation. Only the authority can cancel.
func (c *Contract) Cancel(caller uuid.UUID) error {
	return c.transition(caller, lifecycle.Accumulating, lifecycle.Cancelled, c.faults.StuckCancel)
}

// Resume a cancelled accumulation. Only the authority can resume.
func (c *Contract) Resume(caller uuid.UUID) error {
	return c.transition(caller, lifecycle.Cancelled, lifecycle.Accumulating, false)
}

// Expose the locked liquidity. Only the authority can expose.
func (c *Contract) Expose(caller uuid.UUID) error {
	return c.transition(caller, lifecycle.Locked, lifecycle.Exposed, false)
}

// Complete the funding of the exposed liquidity. Only the authority can complete.
func (c *Contract) Complete(caller uuid.UUID) error {
	return c.transition(caller, lifecycle.Exposed, lifecycle.Completed, false)
}

// Move from the state from to the state to. If stuck is true the call succeeds but the state is not changed.
func (c *Contract) transition(caller uuid.UUID, from, to lifecycle.State, stuck bool) error {
	c.Lock()
	defer c.Unlock()
	if caller != c.authority {
		return fmt.Errorf("%w: %v", ErrUnauthorized, caller)
	}
	if c.state != from || !from.CanTransition(to) {
		return fmt.Errorf("%w: can not move from %v to %v", ErrWrongState, c.state, to)
	}
	if !stuck {
		c.state = to
	}
	return nil
}

func (c *Contract) State() lifecycle.State {
	c.Lock()
	defer c.Unlock()
	return c.state
}

func (c *Contract) TotalLiquidity() *uint256.Int {
	c.Lock()
	defer c.Unlock()
	return c.total.Clone()
}

func (c *Contract) TargetLiquidity() *uint256.Int {
	return c.target.Clone()
}

// Liquidity returns the contribution of the actor
func (c *Contract) Liquidity(actor uuid.UUID) *uint256.Int {
	c.Lock()
	defer c.Unlock()
	return c.liquidityOf(actor).Clone()
}

// The account of the contract in the ledger
func (c *Contract) Address() uuid.UUID {
	return c.address
}

func (c *Contract) Authority() uuid.UUID {
	return c.authority
}

// Must be called with the lock held
func (c *Contract) liquidityOf(actor uuid.UUID) *uint256.Int {
	if l, ok := c.liquidity[actor]; ok {
		return l
	}
	return new(uint256.Int)
}
