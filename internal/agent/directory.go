package agent

import "sync"

// Directory is the in-memory identity store the out-of-scope authentication
// collaborator would normally back with persistence: given a wallet public
// key it returns the permanent Agent record for it, creating one on first
// sight (spec §3 "An agent is created on first successful authentication").
//
// Mirrors the owner-type registry pattern used by poker.Registry and
// duel.Registry: a mutex-guarded map exposed only through command/query
// methods.
type Directory struct {
	mu        sync.RWMutex
	byID      map[ID]*Agent
	byAddress map[string]ID
}

func NewDirectory() *Directory {
	return &Directory{
		byID:      make(map[ID]*Agent),
		byAddress: make(map[string]ID),
	}
}

// GetOrCreate returns the existing agent for a compressed wallet public key,
// or registers a new one the first time that key is seen.
func (d *Directory) GetOrCreate(compressedPubKey []byte, displayName string) (*Agent, error) {
	addr := walletAddressOf(compressedPubKey)

	d.mu.RLock()
	if id, ok := d.byAddress[addr]; ok {
		a := d.byID[id]
		d.mu.RUnlock()
		return a, nil
	}
	d.mu.RUnlock()

	a, err := New(NewID(), displayName, compressedPubKey)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byAddress[addr]; ok {
		return d.byID[id], nil
	}
	d.byID[a.ID] = a
	d.byAddress[addr] = a.ID
	return a, nil
}

// Get looks up a previously registered agent by ID.
func (d *Directory) Get(id ID) (*Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byID[id]
	return a, ok
}

func walletAddressOf(compressedPubKey []byte) string {
	return string(compressedPubKey)
}
