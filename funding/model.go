package funding

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"statecheck/checking"
	"statecheck/lifecycle"
	"statecheck/reserverpc"
)

// The model of a reserve funding.
//
// Actors and InitialBalances are established by the setup and never change during a trial, so copies of the model can share them.
type Model struct {
	Actors          []uuid.UUID
	InitialBalances map[uuid.UUID]*uint256.Int
	State           lifecycle.State
}

var errMalformedModel = errors.New("funding: malformed model")

// The model must be in a valid lifecycle state, know at least one actor and the initial balance of every actor.
func (m Model) wellFormed() error {
	if !m.State.Valid() {
		return fmt.Errorf("%w: invalid state %v", errMalformedModel, m.State)
	}
	if len(m.Actors) == 0 {
		return fmt.Errorf("%w: no actors", errMalformedModel)
	}
	return checking.ForAll(m.Actors, func(id uuid.UUID) error {
		if _, ok := m.InitialBalances[id]; !ok {
			return fmt.Errorf("%w: no initial balance", errMalformedModel)
		}
		return nil
	})
}

func (m Model) String() string {
	return m.State.String()
}

// The real reserve funding of a single trial
type System struct {
	// A client without a caller. Used for queries.
	Client *reserverpc.Client

	Authority uuid.UUID
	// The account of the contract in the token ledger
	Address uuid.UUID
	Actors  []uuid.UUID

	server *reserverpc.Server
}

// As returns a client making calls on behalf of the account
func (s *System) As(account uuid.UUID) *reserverpc.Client {
	return s.Client.As(account)
}

// Close the client and stop the server
func (s *System) Close() error {
	err := s.Client.Close()
	s.server.Stop()
	if err != nil {
		return fmt.Errorf("funding: closing client: %w", err)
	}
	return nil
}
