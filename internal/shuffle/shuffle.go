// Package shuffle implements the committed Fisher-Yates shuffler of spec
// §4.2: a cryptographically random seed is drawn, its hash published before
// any card is dealt, and the shuffle itself is a deterministic function of
// the seed so any observer can later replay and verify it.
//
// Grounded on discordwell-OnChainPoker's apps/cosmos/internal/cards
// (DeterministicDeck: sha256(seed||counter)-driven Fisher-Yates) and the
// teacher's crypto/rand-backed cryptoRandFloat64 (internal/api/routes.go)
// for the real seed draw.
package shuffle

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/cards"
)

// SeedSize is the width of the committed shuffle seed, per spec §4.2.
const SeedSize = 32

// Seed is the secret driving a committed shuffle.
type Seed [SeedSize]byte

// Commitment is the published SHA-256(seed) a client can later verify.
type Commitment = chainhash.Hash

// NewSeed draws a cryptographically random 32-byte seed.
func NewSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return Seed{}, fmt.Errorf("shuffle: reading random seed: %w", err)
	}
	return s, nil
}

// Commit hashes a seed to the value that is published before any card is
// dealt.
func Commit(seed Seed) Commitment {
	return chainhash.Hash(sha256.Sum256(seed[:]))
}

// Verify checks that a revealed seed matches a previously published
// commitment, per spec §8 testable property 6.
func Verify(seed Seed, commitment Commitment) bool {
	return Commit(seed) == commitment
}

// Shuffle runs a deterministic Fisher-Yates shuffle of the canonical 52-card
// deck driven entirely by seed, independent of wall-clock or goroutine
// scheduling. The same seed always yields the same ordering (spec §8).
func Shuffle(seed Seed) []cards.Card {
	deck := cards.CanonicalDeck()
	stream := newSeedStream(seed)
	for i := len(deck) - 1; i > 0; i-- {
		j := stream.nextIntn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// seedStream produces a deterministic sequence of pseudo-random integers by
// hashing seed||counter, exactly the construction used by the teacher's
// DeterministicDeck helper, generalized to an iterator.
type seedStream struct {
	seed    Seed
	counter uint64
}

func newSeedStream(seed Seed) *seedStream {
	return &seedStream{seed: seed}
}

// nextIntn returns a uniform value in [0, n) derived from the next block of
// the hash stream. n is always <= 52 here so the modulo bias is negligible
// and, more importantly, irrelevant to determinism: the same seed always
// produces the same bias in the same way.
func (s *seedStream) nextIntn(n int) int {
	buf := make([]byte, SeedSize+8)
	copy(buf, s.seed[:])
	binary.LittleEndian.PutUint64(buf[SeedSize:], s.counter)
	s.counter++
	h := sha256.Sum256(buf)
	v := binary.LittleEndian.Uint64(h[:8])
	return int(v % uint64(n))
}

// Dealt is a completed, verifiable shuffle: what gets stored on the hand
// record per spec §3 ("committed deck seed and its hash, ordered deck").
type Dealt struct {
	Seed       Seed
	Commitment Commitment
	Deck       []cards.Card
}

// New draws a fresh seed, publishes its commitment, and shuffles the deck —
// the full sequence required before any card may be dealt.
func New() (Dealt, error) {
	seed, err := NewSeed()
	if err != nil {
		return Dealt{}, err
	}
	return Dealt{
		Seed:       seed,
		Commitment: Commit(seed),
		Deck:       Shuffle(seed),
	}, nil
}
