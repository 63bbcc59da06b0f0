// Package ledger implements the per-(agent,currency) balance, the
// append-only transaction log, and the global money invariant audit of
// spec §3/§4.3.
//
// Grounded on the teacher's db.PostgresStore transactional style (Begin/
// defer-Rollback/Commit, ON CONFLICT upserts — internal/db/postgres.go) and
// on jbrackens-AttaboyGO's ledger package (LockPlayerForUpdate + a single
// PostLedgerEntry mutation path, every row carrying balance-before/after)
// and NevzatMmc-updown's BetService (row-locked wallet, typed Transaction
// audit rows with BalanceBefore/BalanceAfter inside one DB transaction).
// The in-memory engine here plays the role those repos give to a SQL
// transaction; internal/store/postgres.go gives it a durable backing.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
)

type Currency string

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindBuyIn      Kind = "buyin"
	KindCashOut    Kind = "cashout"
	KindEscrowIn   Kind = "duel-escrow-in"
	KindEscrowOut  Kind = "duel-escrow-out"
	KindPayout     Kind = "payout"
	KindRake       Kind = "rake"
)

// Transaction is the append-only audit row of spec §3.
type Transaction struct {
	ID          uuid.UUID
	Agent       agent.ID
	Kind        Kind
	Currency    Currency
	Amount      money.Amount // signed
	PostBalance money.Amount
	Reference   string
	Note        string
	Time        time.Time
}

// ChipSource reports the table-local chip liability held outside the
// wallet balance (seated stacks + uncollected per-street bets), per spec §3.
type ChipSource interface {
	TableChipLiability(currency Currency) money.Amount
}

// EscrowSource reports money held in open/in-flight duel escrows, per spec
// §3.
type EscrowSource interface {
	DuelEscrowLiability(currency Currency) money.Amount
}

// PersistSink mirrors every appended transaction into a durable store
// (internal/store) as it happens, so the in-memory log of spec §3 survives
// a restart. nil is a valid no-op sink.
type PersistSink interface {
	Persist(t Transaction)
}

// Audit is the six aggregates spec §4.3/§8 requires to verify the global
// money invariant.
type Audit struct {
	Deposits     money.Amount
	Withdrawals  money.Amount
	Wallets      money.Amount
	TableChips   money.Amount
	DuelEscrows  money.Amount
	Rake         money.Amount
}

type balanceKey struct {
	Agent    agent.ID
	Currency Currency
}

// Ledger is the sole owner of balances and transactions (spec §3
// ownership rule). Every state transition that moves money goes through
// Adjust; engines never mutate balances directly.
type Ledger struct {
	mu           sync.Mutex
	knownAgents  map[agent.ID]bool
	balances     map[balanceKey]money.Amount
	transactions []Transaction

	chipSources   []ChipSource
	escrowSources []EscrowSource
	sink          PersistSink
}

func New() *Ledger {
	return &Ledger{
		knownAgents: make(map[agent.ID]bool),
		balances:    make(map[balanceKey]money.Amount),
	}
}

// SetPersistSink wires a durable store into the ledger. It is not a
// constructor argument because most callers (tests especially) have no
// durable store and New() must stay zero-configuration.
func (l *Ledger) SetPersistSink(sink PersistSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// RegisterAgent marks an agent as known. Per spec §3, an agent is created on
// first successful authentication; this is the ledger-side equivalent.
func (l *Ledger) RegisterAgent(id agent.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.knownAgents[id] = true
}

// RegisterChipSource wires a poker table registry (or any other chip
// liability holder) into the audit computation.
func (l *Ledger) RegisterChipSource(s ChipSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chipSources = append(l.chipSources, s)
}

// RegisterEscrowSource wires a duel registry into the audit computation.
func (l *Ledger) RegisterEscrowSource(s EscrowSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.escrowSources = append(l.escrowSources, s)
}

// Adjust is the ledger's one mutation entrypoint (spec §4.3). It is atomic
// with respect to the (agent, currency) row: negative amounts fail with
// INSUFFICIENT_FUNDS if they would drive the balance below zero, and any
// agent not yet known fails with NOT_FOUND (the UNKNOWN_AGENT case).
func (l *Ledger) Adjust(id agent.ID, currency Currency, amount money.Amount, kind Kind, reference, note string) (money.Amount, uuid.UUID, error) {
	l.mu.Lock()

	if !l.knownAgents[id] {
		l.mu.Unlock()
		return money.Zero, uuid.Nil, clawerr.New(clawerr.NotFound, "unknown agent %s", id)
	}

	key := balanceKey{Agent: id, Currency: currency}
	current := l.balances[key]
	next := current.Add(amount)

	if amount.IsNegative() && next.IsNegative() {
		l.mu.Unlock()
		return money.Zero, uuid.Nil, clawerr.New(clawerr.InsufficientFunds,
			"agent %s currency %s: balance %s insufficient for %s", id, currency, current, amount)
	}

	l.balances[key] = next

	txn := Transaction{
		ID:          uuid.New(),
		Agent:       id,
		Kind:        kind,
		Currency:    currency,
		Amount:      amount,
		PostBalance: next,
		Reference:   reference,
		Note:        note,
		Time:        time.Now().UTC(),
	}
	l.transactions = append(l.transactions, txn)
	sink := l.sink
	l.mu.Unlock()

	// Persisted outside the lock: a slow durable write must never stall
	// every other agent's balance mutation.
	if sink != nil {
		sink.Persist(txn)
	}

	return next, txn.ID, nil
}

// RecordRake appends a rake-log row (spec §3 "Rake entry") without moving
// any agent's wallet balance. Rake is subtracted from a pot or duel payout
// before it is ever credited to a wallet (§4.6), so there is no agent to
// debit here — this is the "rake aggregate row if no house agent is
// modeled" case spec §4.3 allows explicitly.
func (l *Ledger) RecordRake(currency Currency, amount money.Amount, reference, note string) uuid.UUID {
	l.mu.Lock()

	txn := Transaction{
		ID:        uuid.New(),
		Kind:      KindRake,
		Currency:  currency,
		Amount:    amount,
		Reference: reference,
		Note:      note,
		Time:      time.Now().UTC(),
	}
	l.transactions = append(l.transactions, txn)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink.Persist(txn)
	}
	return txn.ID
}

// Balance returns the current balance for (agent, currency). Unknown
// (agent, currency) pairs simply read as zero; an unknown agent entirely is
// NOT_FOUND.
func (l *Ledger) Balance(id agent.ID, currency Currency) (money.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.knownAgents[id] {
		return money.Zero, clawerr.New(clawerr.NotFound, "unknown agent %s", id)
	}
	return l.balances[balanceKey{Agent: id, Currency: currency}], nil
}

// Transactions returns a copy of the append-only log for a single agent and
// currency, oldest first, for audit property #2's cumulative-sum check.
func (l *Ledger) Transactions(id agent.ID, currency Currency) []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transaction, 0)
	for _, t := range l.transactions {
		if t.Agent == id && t.Currency == currency {
			out = append(out, t)
		}
	}
	return out
}

// Audit returns the six aggregates of spec §4.3 needed to verify the global
// money invariant of §3.
func (l *Ledger) Audit(currency Currency) Audit {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := Audit{}
	for _, t := range l.transactions {
		if t.Currency != currency {
			continue
		}
		switch t.Kind {
		case KindDeposit:
			a.Deposits = a.Deposits.Add(t.Amount)
		case KindWithdrawal:
			a.Withdrawals = a.Withdrawals.Add(t.Amount.Neg())
		case KindRake:
			a.Rake = a.Rake.Add(t.Amount)
		}
	}
	for key, bal := range l.balances {
		if key.Currency == currency {
			a.Wallets = a.Wallets.Add(bal)
		}
	}
	for _, s := range l.chipSources {
		a.TableChips = a.TableChips.Add(s.TableChipLiability(currency))
	}
	for _, s := range l.escrowSources {
		a.DuelEscrows = a.DuelEscrows.Add(s.DuelEscrowLiability(currency))
	}
	return a
}

// Balanced reports whether the global invariant of spec §3 holds: deposits
// minus withdrawals equals wallets + table chips + duel escrows + rake.
func (a Audit) Balanced() bool {
	lhs := a.Deposits.Sub(a.Withdrawals)
	rhs := a.Wallets.Add(a.TableChips).Add(a.DuelEscrows).Add(a.Rake)
	return lhs.Cmp(rhs) == 0
}
