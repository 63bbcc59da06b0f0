// Package duel implements the commit-reveal protocol shared by coinflip
// and Rock-Paper-Scissors duels: a single Game aggregate type covering
// both, creation/acceptance/cancellation, the RPS round book, timeouts,
// forfeits, and rake.
//
// Grounded on the teacher's owner-type map-plus-mutex managers
// (internal/heuristics/investigation.go's InvestigationManager,
// internal/heuristics/address_watchlist.go's AddressWatchlist — a
// sync.RWMutex guarding a map[string]*T with Create/Get/List methods) for
// the Registry shape, and on kero-chan-public-slot-game's provablyfair
// Service (commitment hash published before the seed is revealed, then
// SHA-256 recomputed and compared on reveal) for the commit/reveal
// verification itself.
package duel

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/shuffle"
)

type Kind string

const (
	Coinflip Kind = "coinflip"
	RPS      Kind = "rps"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusCommitting Status = "committing"
	StatusRevealing  Status = "revealing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
	StatusForfeited  Status = "forfeited"
)

type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

func (c Choice) beats(other Choice) bool {
	switch {
	case c == Rock && other == Scissors:
		return true
	case c == Scissors && other == Paper:
		return true
	case c == Paper && other == Rock:
		return true
	default:
		return false
	}
}

var (
	coinflipRakeRate = decimal.RequireFromString("0.04")
	rpsRakeRate      = decimal.RequireFromString("0.05")
)

const (
	OpenWindow    = 5 * time.Minute
	CommitWindow  = 30 * time.Second
	RevealWindow  = 30 * time.Second
)

// Game is the shared aggregate for a coinflip or RPS duel. It is a
// single-writer region: every command takes mu before touching any field.
type Game struct {
	mu sync.Mutex

	ID       uuid.UUID
	Kind     Kind
	Creator  agent.ID
	Acceptor agent.ID
	hasAcceptor bool

	// wallet identities used only for the coinflip fairness construction
	// (spec §4.2); distinct from the ledger-facing agent ids.
	CreatorWallet  string
	AcceptorWallet string

	Stake    money.Amount
	Currency ledger.Currency
	Status   Status

	Rounds       int
	RoundIndex   int
	CreatorScore int
	AcceptorScore int

	// Coinflip fields.
	CreatorSecret     shuffle.Seed
	CreatorCommitment shuffle.Commitment
	ResultHash        [32]byte

	// RPS per-round commit-reveal state.
	CreatorCommit   []byte
	AcceptorCommit  []byte
	CreatorRevealed bool
	AcceptorRevealed bool
	CreatorChoice   Choice
	AcceptorChoice  Choice

	Winner        agent.ID
	hasWinner     bool
	Payout        money.Amount
	Rake          money.Amount
	ForfeitReason string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Scheduler is the subset of *sched.Wheel the duel engine needs. Accepting
// an interface here (rather than the concrete type) keeps tests able to
// stub out real deadlines.
type Scheduler interface {
	Schedule(aggregateID string, reason sched.Reason, deadline time.Time)
	Cancel(aggregateID string, reason sched.Reason)
}

// EventSink receives duel lifecycle events on the single global duel
// channel (spec §5 realtime event bus). nil is a valid no-op sink.
// Implemented by internal/bus.Bus.
type EventSink interface {
	DuelEvent(gameID uuid.UUID, kind string, payload interface{})
}

// Registry is the process-wide owner of duel games: a single-writer map
// guarded by its own lock, exposing only command/query methods (spec §9).
type Registry struct {
	mu      sync.RWMutex
	games   map[uuid.UUID]*Game
	byAgent map[agent.ID][]uuid.UUID

	ledger *ledger.Ledger
	sched  Scheduler
	sink   EventSink
}

func NewRegistry(l *ledger.Ledger, s Scheduler, sink EventSink) *Registry {
	r := &Registry{
		games:   make(map[uuid.UUID]*Game),
		byAgent: make(map[agent.ID][]uuid.UUID),
		ledger:  l,
		sched:   s,
		sink:    sink,
	}
	l.RegisterEscrowSource(r)
	return r
}

func (r *Registry) aggregateID(id uuid.UUID) string { return "duel:" + id.String() }

func (r *Registry) publish(gameID uuid.UUID, kind string, payload interface{}) {
	if r.sink != nil {
		r.sink.DuelEvent(gameID, kind, payload)
	}
}

// Create opens a new duel. For RPS, rounds must be one of {1, 3, 5}; it is
// ignored for coinflip.
func (r *Registry) Create(kind Kind, creator agent.ID, creatorWallet string, stake money.Amount, currency ledger.Currency, rounds int) (*Game, error) {
	if !stake.IsPositive() {
		return nil, clawerr.New(clawerr.Validation, "stake must be positive")
	}
	if kind == RPS {
		if rounds != 1 && rounds != 3 && rounds != 5 {
			return nil, clawerr.New(clawerr.Validation, "rps rounds must be 1, 3, or 5, got %d", rounds)
		}
	} else {
		rounds = 1
	}

	id := uuid.New()
	if _, _, err := r.ledger.Adjust(creator, currency, stake.Neg(), ledger.KindEscrowIn, id.String(), "duel stake escrow"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	g := &Game{
		ID:            id,
		Kind:          kind,
		Creator:       creator,
		CreatorWallet: creatorWallet,
		Stake:         stake,
		Currency:      currency,
		Status:        StatusOpen,
		Rounds:        rounds,
		RoundIndex:    1,
		CreatedAt:     now,
		ExpiresAt:     now.Add(OpenWindow),
	}

	if kind == Coinflip {
		secret, err := shuffle.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("duel: drawing coinflip secret: %w", err)
		}
		g.CreatorSecret = secret
		g.CreatorCommitment = shuffle.Commit(secret)
	}

	r.mu.Lock()
	r.games[id] = g
	r.byAgent[creator] = append(r.byAgent[creator], id)
	r.mu.Unlock()

	r.sched.Schedule(r.aggregateID(id), sched.ReasonDuelOpenExpiry, g.ExpiresAt)
	r.publish(id, "duel-opened", map[string]interface{}{"kind": string(kind), "stake": stake.String()})
	return g, nil
}

// Get looks up a game by id.
func (r *Registry) Get(id uuid.UUID) (*Game, error) {
	r.mu.RLock()
	g, ok := r.games[id]
	r.mu.RUnlock()
	if !ok {
		return nil, clawerr.New(clawerr.NotFound, "unknown duel %s", id)
	}
	return g, nil
}

// OpenList returns every game currently in the open status.
func (r *Registry) OpenList() []*Game {
	// Snapshot the registry's own games under r.mu and release it before
	// touching any g.mu: holding r.mu while waiting on a game's lock would
	// invert the lock order Accept takes (g.mu then r.mu), which can
	// deadlock a concurrent Accept against this read.
	r.mu.RLock()
	games := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.mu.RUnlock()

	var out []*Game
	for _, g := range games {
		g.mu.Lock()
		if g.Status == StatusOpen {
			out = append(out, g)
		}
		g.mu.Unlock()
	}
	return out
}

// History returns up to limit games involving agent, most recently joined
// first (a game counts as joined when the agent created or accepted it).
func (r *Registry) History(id agent.ID, limit int) []*Game {
	r.mu.RLock()
	ids := r.byAgent[id]
	r.mu.RUnlock()

	out := make([]*Game, 0, len(ids))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if g, err := r.Get(ids[i]); err == nil {
			out = append(out, g)
		}
	}
	return out
}

// DuelEscrowLiability implements ledger.EscrowSource: the sum of stakes
// currently held in escrow by open or in-progress games.
func (r *Registry) DuelEscrowLiability(currency ledger.Currency) money.Amount {
	// Same snapshot-then-release discipline as OpenList: r.mu is dropped
	// before any g.mu is taken, so this never waits on a game a concurrent
	// Accept (g.mu then r.mu) already holds.
	r.mu.RLock()
	games := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	r.mu.RUnlock()

	total := money.Zero
	for _, g := range games {
		g.mu.Lock()
		if g.Currency == currency {
			switch g.Status {
			case StatusOpen:
				total = total.Add(g.Stake)
			case StatusCommitting, StatusRevealing:
				total = total.Add(g.Stake).Add(g.Stake)
			}
		}
		g.mu.Unlock()
	}
	return total
}

// Accept joins an open game as the acceptor.
func (r *Registry) Accept(id uuid.UUID, acceptor agent.ID, acceptorWallet string) (*Game, error) {
	g, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusOpen {
		return nil, clawerr.New(clawerr.Conflict, "duel %s is not open", id)
	}
	if time.Now().UTC().After(g.ExpiresAt) {
		r.expireOpenLocked(g)
		return nil, clawerr.New(clawerr.Conflict, "duel %s has expired", id)
	}
	if acceptor == g.Creator {
		return nil, clawerr.New(clawerr.Validation, "cannot accept your own duel")
	}

	if _, _, err := r.ledger.Adjust(acceptor, g.Currency, g.Stake.Neg(), ledger.KindEscrowIn, id.String(), "duel stake escrow"); err != nil {
		return nil, err
	}

	g.Acceptor = acceptor
	g.hasAcceptor = true
	g.AcceptorWallet = acceptorWallet

	r.mu.Lock()
	r.byAgent[acceptor] = append(r.byAgent[acceptor], id)
	r.mu.Unlock()

	r.sched.Cancel(r.aggregateID(id), sched.ReasonDuelOpenExpiry)
	r.publish(id, "duel-accepted", map[string]interface{}{"acceptor": acceptor.String()})

	if g.Kind == Coinflip {
		r.resolveCoinflipLocked(g)
		return g, nil
	}

	g.Status = StatusCommitting
	deadline := time.Now().UTC().Add(CommitWindow)
	r.sched.Schedule(r.aggregateID(id), sched.ReasonDuelCommitTimeout, deadline)
	return g, nil
}

// resolveCoinflipLocked computes and settles a coinflip result, per spec
// §4.2: R = SHA-256(S || creator-wallet || acceptor-wallet); the creator
// wins iff byte[0] of R is even.
func (r *Registry) resolveCoinflipLocked(g *Game) {
	buf := append([]byte{}, g.CreatorSecret[:]...)
	buf = append(buf, []byte(g.CreatorWallet)...)
	buf = append(buf, []byte(g.AcceptorWallet)...)
	g.ResultHash = sha256.Sum256(buf)

	creatorWins := g.ResultHash[0]%2 == 0
	winner := g.Acceptor
	if creatorWins {
		winner = g.Creator
	}
	r.settleLocked(g, winner, coinflipRakeRate)
	g.Status = StatusCompleted
}

// settleLocked pays the winner 2*stake minus rake and records the rake
// entry. Caller must hold g.mu.
func (r *Registry) settleLocked(g *Game, winner agent.ID, rakeRate decimal.Decimal) {
	pot := g.Stake.Add(g.Stake)
	rake := pot.MulRate(rakeRate)
	payout := pot.Sub(rake)

	if _, _, err := r.ledger.Adjust(winner, g.Currency, payout, ledger.KindPayout, g.ID.String(), "duel payout"); err != nil {
		// The escrow was already taken from both sides; a payout failure
		// here means the winning agent is unknown to the ledger, which
		// cannot happen for an agent that itself escrowed a stake. Treat
		// as an invariant violation rather than silently losing the pot.
		g.Status = StatusForfeited
		g.ForfeitReason = fmt.Sprintf("payout failed: %v", err)
		return
	}
	r.ledger.RecordRake(g.Currency, rake, g.ID.String(), string(g.Kind)+" rake")

	g.Winner = winner
	g.hasWinner = true
	g.Payout = payout
	g.Rake = rake

	r.publish(g.ID, "duel-settled", map[string]interface{}{
		"winner": winner.String(), "payout": payout.String(), "rake": rake.String(),
	})
}

// Cancel withdraws an open duel; only the creator may do so.
func (r *Registry) Cancel(id uuid.UUID, by agent.ID) (*Game, error) {
	g, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusOpen {
		return nil, clawerr.New(clawerr.Conflict, "duel %s is not open", id)
	}
	if by != g.Creator {
		return nil, clawerr.New(clawerr.Validation, "only the creator may cancel")
	}

	if _, _, err := r.ledger.Adjust(g.Creator, g.Currency, g.Stake, ledger.KindEscrowOut, id.String(), "duel cancelled, refund"); err != nil {
		return nil, err
	}
	g.Status = StatusCancelled
	r.sched.Cancel(r.aggregateID(id), sched.ReasonDuelOpenExpiry)
	r.publish(id, "duel-cancelled", nil)
	return g, nil
}

// Commit submits an opaque 32-byte commitment hash for the current RPS
// round. Each side may commit at most once per round.
func (r *Registry) Commit(id uuid.UUID, by agent.ID, commitment []byte) (*Game, error) {
	g, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Kind != RPS {
		return nil, clawerr.New(clawerr.Validation, "commit is only valid for rps duels")
	}
	if g.Status != StatusCommitting {
		return nil, clawerr.New(clawerr.Conflict, "duel %s is not awaiting commits", id)
	}

	switch by {
	case g.Creator:
		if g.CreatorCommit != nil {
			return nil, clawerr.New(clawerr.Conflict, "already committed this round")
		}
		g.CreatorCommit = append([]byte{}, commitment...)
	case g.Acceptor:
		if g.AcceptorCommit != nil {
			return nil, clawerr.New(clawerr.Conflict, "already committed this round")
		}
		g.AcceptorCommit = append([]byte{}, commitment...)
	default:
		return nil, clawerr.New(clawerr.Validation, "agent is not a participant in duel %s", id)
	}

	if g.CreatorCommit != nil && g.AcceptorCommit != nil {
		g.Status = StatusRevealing
		r.sched.Cancel(r.aggregateID(id), sched.ReasonDuelCommitTimeout)
		r.sched.Schedule(r.aggregateID(id), sched.ReasonDuelRevealTimeout, time.Now().UTC().Add(RevealWindow))
	}
	return g, nil
}

// Reveal submits a round's choice and nonce. A mismatch against the stored
// commitment forfeits the revealing player immediately.
func (r *Registry) Reveal(id uuid.UUID, by agent.ID, choice Choice, nonce string) (*Game, error) {
	g, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusRevealing {
		return nil, clawerr.New(clawerr.Conflict, "duel %s is not awaiting reveals", id)
	}

	var stored []byte
	switch by {
	case g.Creator:
		if g.CreatorRevealed {
			return nil, clawerr.New(clawerr.Conflict, "already revealed this round")
		}
		stored = g.CreatorCommit
	case g.Acceptor:
		if g.AcceptorRevealed {
			return nil, clawerr.New(clawerr.Conflict, "already revealed this round")
		}
		stored = g.AcceptorCommit
	default:
		return nil, clawerr.New(clawerr.Validation, "agent is not a participant in duel %s", id)
	}

	expected := sha256.Sum256([]byte(string(choice) + ":" + nonce))
	if !bytes.Equal(expected[:], stored) {
		r.forfeitLocked(g, by, "reveal hash mismatch")
		return g, clawerr.New(clawerr.Conflict, "revealed choice does not match the commitment")
	}

	switch by {
	case g.Creator:
		g.CreatorRevealed = true
		g.CreatorChoice = choice
	case g.Acceptor:
		g.AcceptorRevealed = true
		g.AcceptorChoice = choice
	}

	if !g.CreatorRevealed || !g.AcceptorRevealed {
		return g, nil
	}

	r.sched.Cancel(r.aggregateID(id), sched.ReasonDuelRevealTimeout)
	r.resolveRoundLocked(g)
	return g, nil
}

// resolveRoundLocked settles a fully-revealed round: a tie replays the same
// round number with commitments cleared; otherwise the winner's score is
// incremented and either the majority is reached or the next round begins.
func (r *Registry) resolveRoundLocked(g *Game) {
	defer func() {
		g.CreatorCommit = nil
		g.AcceptorCommit = nil
		g.CreatorRevealed = false
		g.AcceptorRevealed = false
	}()

	if g.CreatorChoice == g.AcceptorChoice {
		g.Status = StatusCommitting
		r.sched.Schedule(r.aggregateID(g.ID), sched.ReasonDuelCommitTimeout, time.Now().UTC().Add(CommitWindow))
		return
	}

	if g.CreatorChoice.beats(g.AcceptorChoice) {
		g.CreatorScore++
	} else {
		g.AcceptorScore++
	}

	majority := (g.Rounds + 1) / 2
	if g.CreatorScore >= majority {
		r.settleLocked(g, g.Creator, rpsRakeRate)
		g.Status = StatusCompleted
		return
	}
	if g.AcceptorScore >= majority {
		r.settleLocked(g, g.Acceptor, rpsRakeRate)
		g.Status = StatusCompleted
		return
	}

	g.RoundIndex++
	g.Status = StatusCommitting
	r.sched.Schedule(r.aggregateID(g.ID), sched.ReasonDuelCommitTimeout, time.Now().UTC().Add(CommitWindow))
}

// forfeitLocked declares the opponent of by as the winner and settles the
// pot, applying the same rake rate as a normal completion. Caller must hold
// g.mu.
func (r *Registry) forfeitLocked(g *Game, forfeiter agent.ID, reason string) {
	winner := g.Acceptor
	if forfeiter == g.Acceptor {
		winner = g.Creator
	}
	rate := rpsRakeRate
	if g.Kind == Coinflip {
		rate = coinflipRakeRate
	}
	r.settleLocked(g, winner, rate)
	g.Status = StatusForfeited
	g.ForfeitReason = reason
}

// HandleExpiry routes a scheduler-produced deadline into this game's
// single-writer region (spec §9: the scheduler holds only opaque ids and
// dispatches through command intake, never direct method calls).
func (r *Registry) HandleExpiry(ex sched.Expiry) error {
	id, err := uuid.Parse(trimAggregatePrefix(ex.AggregateID))
	if err != nil {
		return fmt.Errorf("duel: malformed aggregate id %q: %w", ex.AggregateID, err)
	}
	g, err := r.Get(id)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch ex.Reason {
	case sched.ReasonDuelOpenExpiry:
		if g.Status == StatusOpen {
			r.expireOpenLocked(g)
		}
	case sched.ReasonDuelCommitTimeout:
		if g.Status != StatusCommitting {
			return nil
		}
		switch {
		case g.CreatorCommit == nil && g.AcceptorCommit == nil:
			r.refundBothLocked(g)
		case g.CreatorCommit == nil:
			r.forfeitLocked(g, g.Creator, "commit timeout")
		case g.AcceptorCommit == nil:
			r.forfeitLocked(g, g.Acceptor, "commit timeout")
		}
	case sched.ReasonDuelRevealTimeout:
		if g.Status != StatusRevealing {
			return nil
		}
		switch {
		case !g.CreatorRevealed && !g.AcceptorRevealed:
			r.refundBothLocked(g)
		case !g.CreatorRevealed:
			r.forfeitLocked(g, g.Creator, "reveal timeout")
		case !g.AcceptorRevealed:
			r.forfeitLocked(g, g.Acceptor, "reveal timeout")
		}
	}
	return nil
}

func (r *Registry) expireOpenLocked(g *Game) {
	if _, _, err := r.ledger.Adjust(g.Creator, g.Currency, g.Stake, ledger.KindEscrowOut, g.ID.String(), "duel expired, refund"); err != nil {
		g.Status = StatusForfeited
		g.ForfeitReason = fmt.Sprintf("refund failed: %v", err)
		return
	}
	g.Status = StatusExpired
}

func (r *Registry) refundBothLocked(g *Game) {
	r.ledger.Adjust(g.Creator, g.Currency, g.Stake, ledger.KindEscrowOut, g.ID.String(), "duel expired, refund")
	r.ledger.Adjust(g.Acceptor, g.Currency, g.Stake, ledger.KindEscrowOut, g.ID.String(), "duel expired, refund")
	g.Status = StatusExpired
}

func trimAggregatePrefix(s string) string {
	const prefix = "duel:"
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
