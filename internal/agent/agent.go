// Package agent models the identity anchored by a wallet public key (spec
// §3 Agent). Authentication itself — proving the caller controls the
// corresponding private key — is an out-of-scope external collaborator
// (spec §1); this package only carries the resulting identity.
package agent

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
)

// ID uniquely and permanently identifies an agent. Agents are created on
// first successful authentication and never destroyed (spec §3).
type ID uuid.UUID

func NewID() ID { return ID(uuid.New()) }

func (id ID) String() string { return uuid.UUID(id).String() }

// Agent is the identity record. Balances are not stored here: they are a
// read-through projection over the ledger (spec §3 "never inputs to game
// logic").
type Agent struct {
	ID          ID
	DisplayName string
	WalletKey   *btcec.PublicKey
}

// New constructs an Agent from a compressed SEC1-encoded wallet public key,
// the format the authentication collaborator is expected to hand in.
func New(id ID, displayName string, compressedPubKey []byte) (*Agent, error) {
	key, err := btcec.ParsePubKey(compressedPubKey)
	if err != nil {
		return nil, fmt.Errorf("agent: invalid wallet public key: %w", err)
	}
	return &Agent{ID: id, DisplayName: displayName, WalletKey: key}, nil
}

// WalletAddress returns a stable textual handle for the wallet key, used as
// the per-agent ledger row key's human-readable complement. It is not a
// blockchain address — on-chain settlement is a non-goal (spec §1) — only a
// deterministic string derived from the compressed public key.
func (a *Agent) WalletAddress() string {
	return fmt.Sprintf("%x", a.WalletKey.SerializeCompressed())
}
