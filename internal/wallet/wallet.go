// Package wallet provides the deposit/withdraw surface over the ledger,
// plus the per-agent withdrawal rate limit of spec §4.1.
//
// Grounded on the teacher's internal/api/ratelimit.go RateLimiter (a
// mutex-guarded map[string]*bucket with a background idle-cleanup loop),
// generalized from a per-IP token bucket to a per-agent rolling window —
// a withdrawal rate limit cares about "how many in the last hour", not a
// smoothly refilling allowance.
package wallet

import (
	"sync"
	"time"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
)

// WithdrawalLimit is the recommended rolling-window cap of spec §4.1.
const (
	WithdrawalLimit  = 3
	WithdrawalWindow = time.Hour
)

// cleanupIdleDuration matches the teacher's ratelimit.go idle-bucket sweep.
const cleanupIdleDuration = 10 * time.Minute

type withdrawalHistory struct {
	mu       sync.Mutex
	at       []time.Time
	lastSeen time.Time
}

// RateLimiter enforces at most WithdrawalLimit withdrawals per agent within
// any WithdrawalWindow, independent of currency.
type RateLimiter struct {
	mu      sync.Mutex
	history map[agent.ID]*withdrawalHistory
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{history: make(map[agent.ID]*withdrawalHistory)}
	go rl.cleanupLoop()
	return rl
}

// allow reports whether a withdrawal is permitted now, and records it if so.
func (rl *RateLimiter) allow(id agent.ID, now time.Time) bool {
	rl.mu.Lock()
	h, ok := rl.history[id]
	if !ok {
		h = &withdrawalHistory{}
		rl.history[id] = h
	}
	rl.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := now.Add(-WithdrawalWindow)
	kept := h.at[:0]
	for _, t := range h.at {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	h.at = kept
	h.lastSeen = now

	if len(h.at) >= WithdrawalLimit {
		return false
	}
	h.at = append(h.at, now)
	return true
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for id, h := range rl.history {
			h.mu.Lock()
			idle := h.lastSeen.Before(cutoff)
			h.mu.Unlock()
			if idle {
				delete(rl.history, id)
			}
		}
		rl.mu.Unlock()
	}
}

// Service is the thin command surface spec §6 exposes for moving money in
// and out of the ledger from outside any game.
type Service struct {
	ledger *ledger.Ledger
	limit  *RateLimiter
}

func NewService(l *ledger.Ledger) *Service {
	return &Service{ledger: l, limit: NewRateLimiter()}
}

// Deposit credits an agent's wallet. Deposits are unrestricted (spec §4.1).
func (s *Service) Deposit(id agent.ID, currency ledger.Currency, amount money.Amount) (money.Amount, error) {
	if !amount.IsPositive() {
		return money.Zero, clawerr.New(clawerr.Validation, "deposit amount must be positive")
	}
	bal, _, err := s.ledger.Adjust(id, currency, amount, ledger.KindDeposit, "", "wallet deposit")
	return bal, err
}

// Withdraw debits an agent's wallet, subject to the rolling-window rate
// limit of spec §4.1.
func (s *Service) Withdraw(id agent.ID, currency ledger.Currency, amount money.Amount) (money.Amount, error) {
	if !amount.IsPositive() {
		return money.Zero, clawerr.New(clawerr.Validation, "withdrawal amount must be positive")
	}
	if !s.limit.allow(id, time.Now().UTC()) {
		return money.Zero, clawerr.New(clawerr.RateLimited,
			"agent %s has reached the withdrawal limit of %d per %s", id, WithdrawalLimit, WithdrawalWindow)
	}
	bal, _, err := s.ledger.Adjust(id, currency, amount.Neg(), ledger.KindWithdrawal, "", "wallet withdrawal")
	return bal, err
}

// Balance reads an agent's current balance.
func (s *Service) Balance(id agent.ID, currency ledger.Currency) (money.Amount, error) {
	return s.ledger.Balance(id, currency)
}
