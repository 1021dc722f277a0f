package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrOverflow              = errors.New("ledger: amount overflows")
)

type allowanceKey struct {
	owner   uuid.UUID
	spender uuid.UUID
}

// An in-memory fungible token ledger.
//
// Accounts are identified by uuids. Amounts are unsigned 256 bit integers.
// All methods are safe for concurrent use.
type Ledger struct {
	sync.Mutex

	balances   map[uuid.UUID]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	supply     *uint256.Int
}

func New() *Ledger {
	return &Ledger{
		balances:   make(map[uuid.UUID]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
		supply:     new(uint256.Int),
	}
}

// Create amount new tokens in the account of to
func (l *Ledger) Mint(to uuid.UUID, amount *uint256.Int) error {
	l.Lock()
	defer l.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("%w: minting %v", ErrOverflow, amount)
	}
	l.supply = supply
	l.credit(to, amount)
	return nil
}

// Allow spender to transfer up to amount tokens from the account of owner.
// Replaces any earlier allowance.
func (l *Ledger) Approve(owner, spender uuid.UUID, amount *uint256.Int) {
	l.Lock()
	defer l.Unlock()
	l.allowances[allowanceKey{owner: owner, spender: spender}] = amount.Clone()
}

// Move amount tokens from the account of from to the account of to
func (l *Ledger) Transfer(from, to uuid.UUID, amount *uint256.Int) error {
	l.Lock()
	defer l.Unlock()
	return l.transfer(from, to, amount)
}

// Move amount tokens from the account of from to the account of to on behalf of spender.
// The allowance of spender is reduced by amount.
func (l *Ledger) TransferFrom(spender, from, to uuid.UUID, amount *uint256.Int) error {
	l.Lock()
	defer l.Unlock()
	key := allowanceKey{owner: from, spender: spender}
	allowance, ok := l.allowances[key]
	if !ok {
		allowance = new(uint256.Int)
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %v can not spend %v from %v", ErrInsufficientAllowance, spender, amount, from)
	}
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	l.allowances[key] = new(uint256.Int).Sub(allowance, amount)
	return nil
}

// BalanceOf returns the balance of the account. Unknown accounts have a zero balance.
func (l *Ledger) BalanceOf(account uuid.UUID) *uint256.Int {
	l.Lock()
	defer l.Unlock()
	if b, ok := l.balances[account]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (l *Ledger) Allowance(owner, spender uuid.UUID) *uint256.Int {
	l.Lock()
	defer l.Unlock()
	if a, ok := l.allowances[allowanceKey{owner: owner, spender: spender}]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.Lock()
	defer l.Unlock()
	return l.supply.Clone()
}

// Must be called with the lock held
func (l *Ledger) transfer(from, to uuid.UUID, amount *uint256.Int) error {
	balance, ok := l.balances[from]
	if !ok {
		balance = new(uint256.Int)
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %v has less than %v", ErrInsufficientBalance, from, amount)
	}
	l.balances[from] = new(uint256.Int).Sub(balance, amount)
	l.credit(to, amount)
	return nil
}

// Must be called with the lock held. The total supply bounds every balance, so crediting can not overflow.
func (l *Ledger) credit(to uuid.UUID, amount *uint256.Int) {
	balance, ok := l.balances[to]
	if !ok {
		balance = new(uint256.Int)
	}
	l.balances[to] = new(uint256.Int).Add(balance, amount)
}
