// Package session holds the per-round state every phase engine shares: the
// local participant's identity, the published key book, a scratch
// directory for round artifacts, and round timing metrics.
package session

import (
	"crypto/rsa"
	"sync"

	"dissent/internal/errs"
	"dissent/internal/wire"
)

// KeyBook is the leader-published (or leader-side aggregated) table of
// every participant's primary and secondary public keys for one round.
type KeyBook struct {
	mu      sync.RWMutex
	n       int
	primary map[int]*rsa.PublicKey
	secondary map[int]*rsa.PublicKey
}

// NewKeyBook returns an empty book sized for n participants.
func NewKeyBook(n int) *KeyBook {
	return &KeyBook{
		n:         n,
		primary:   make(map[int]*rsa.PublicKey, n),
		secondary: make(map[int]*rsa.PublicKey, n),
	}
}

// Add records one participant's key material, decoding the PEM blobs
// carried in a Phase1Report or KeyBookAnnounce entry.
func (kb *KeyBook) Add(id int, entry wire.KeyBookEntry) error {
	primary, err := wire.DecodePublicKey(entry.PrimaryPub)
	if err != nil {
		return err
	}
	secondary, err := wire.DecodePublicKey(entry.SecondaryPub)
	if err != nil {
		return err
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.primary[id] = primary
	kb.secondary[id] = secondary
	return nil
}

// Primary returns id's round-fresh primary (K1) key, which verifies
// everything id signs for the rest of the round.
func (kb *KeyBook) Primary(id int) (*rsa.PublicKey, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	pub, ok := kb.primary[id]
	if !ok {
		return nil, &errs.ProtocolViolation{PeerID: id, Reason: errs.MissingCiphertext, Detail: "no primary key on file"}
	}
	return pub, nil
}

// Secondary returns id's ephemeral onion-layer key for this round.
func (kb *KeyBook) Secondary(id int) (*rsa.PublicKey, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	pub, ok := kb.secondary[id]
	if !ok {
		return nil, &errs.ProtocolViolation{PeerID: id, Reason: errs.MissingCiphertext, Detail: "no secondary key on file"}
	}
	return pub, nil
}

// Complete reports whether every participant 0..n-1 has published both
// keys, the precondition for ending KeyExchange.
func (kb *KeyBook) Complete() bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.primary) == kb.n && len(kb.secondary) == kb.n
}

