package ledger

import (
	"sync"
	"testing"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
)

const usd Currency = "USD"

func TestAdjustUnknownAgentFails(t *testing.T) {
	l := New()
	_, _, err := l.Adjust(agent.NewID(), usd, money.MustParse("10.00"), KindDeposit, "", "")
	if err == nil {
		t.Fatalf("expected error for unknown agent")
	}
}

func TestAdjustInsufficientFunds(t *testing.T) {
	l := New()
	id := agent.NewID()
	l.RegisterAgent(id)

	if _, _, err := l.Adjust(id, usd, money.MustParse("5.00"), KindDeposit, "", ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	_, _, err := l.Adjust(id, usd, money.MustParse("-10.00"), KindWithdrawal, "", "")
	if err == nil {
		t.Fatalf("expected insufficient funds error")
	}
	bal, err := l.Balance(id, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(money.MustParse("5.00")) != 0 {
		t.Fatalf("balance must be unchanged by a failed adjust, got %s", bal)
	}
}

func TestPostBalanceCumulativeSum(t *testing.T) {
	l := New()
	id := agent.NewID()
	l.RegisterAgent(id)

	amounts := []string{"10.00", "-3.00", "7.50", "-2.25"}
	for _, a := range amounts {
		if _, _, err := l.Adjust(id, usd, money.MustParse(a), KindDeposit, "", ""); err != nil {
			t.Fatalf("adjust %s: %v", a, err)
		}
	}

	txns := l.Transactions(id, usd)
	if len(txns) != len(amounts) {
		t.Fatalf("expected %d transactions, got %d", len(amounts), len(txns))
	}
	running := money.Zero
	for i, txn := range txns {
		running = running.Add(txn.Amount)
		if txn.PostBalance.Cmp(running) != 0 {
			t.Fatalf("txn %d: post-balance %s != running sum %s", i, txn.PostBalance, running)
		}
		if txn.PostBalance.IsNegative() {
			t.Fatalf("txn %d: post-balance must never go negative, got %s", i, txn.PostBalance)
		}
	}

	bal, _ := l.Balance(id, usd)
	if bal.Cmp(running) != 0 {
		t.Fatalf("final balance %s != running sum %s", bal, running)
	}
}

type fixedChipSource money.Amount

func (f *fixedChipSource) TableChipLiability(Currency) money.Amount { return money.Amount(*f) }

type fixedEscrowSource money.Amount

func (f *fixedEscrowSource) DuelEscrowLiability(Currency) money.Amount { return money.Amount(*f) }

func TestAuditGlobalInvariant(t *testing.T) {
	l := New()
	alice := agent.NewID()
	bob := agent.NewID()
	l.RegisterAgent(alice)
	l.RegisterAgent(bob)

	mustAdjust := func(id agent.ID, amt string, kind Kind) {
		t.Helper()
		if _, _, err := l.Adjust(id, usd, money.MustParse(amt), kind, "", ""); err != nil {
			t.Fatalf("adjust %s %s: %v", id, amt, err)
		}
	}

	mustAdjust(alice, "100.00", KindDeposit)
	mustAdjust(bob, "50.00", KindDeposit)
	mustAdjust(alice, "-20.00", KindWithdrawal)

	// Alice escrows 5.00 into a duel; the ledger must balance while the
	// escrow is open.
	mustAdjust(alice, "-5.00", KindEscrowIn)
	chips := fixedChipSource(money.Zero)
	escrow := fixedEscrowSource(money.MustParse("5.00"))
	l.RegisterChipSource(&chips)
	l.RegisterEscrowSource(&escrow)

	audit := l.Audit(usd)
	if !audit.Balanced() {
		t.Fatalf("ledger does not balance with an open escrow: %+v", audit)
	}

	// Resolve the duel: alice (the winner) is paid 4.60 back, 0.40 is
	// raked, and the escrow liability closes out — the ledger must still
	// balance afterward.
	mustAdjust(alice, "4.60", KindPayout)
	l.RecordRake(usd, money.MustParse("0.40"), "duel-1", "")
	escrow = fixedEscrowSource(money.Zero)

	audit = l.Audit(usd)
	if !audit.Balanced() {
		t.Fatalf("ledger does not balance after duel resolution: %+v", audit)
	}
	if audit.Rake.Cmp(money.MustParse("0.40")) != 0 {
		t.Fatalf("expected rake aggregate 0.40, got %s", audit.Rake)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	seen []Transaction
}

func (s *recordingSink) Persist(t Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, t)
}

func TestPersistSinkSeesEveryAdjustAndRake(t *testing.T) {
	l := New()
	sink := &recordingSink{}
	l.SetPersistSink(sink)

	id := agent.NewID()
	l.RegisterAgent(id)

	if _, _, err := l.Adjust(id, usd, money.MustParse("10.00"), KindDeposit, "", ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	l.RecordRake(usd, money.MustParse("1.00"), "duel-1", "")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.seen) != 2 {
		t.Fatalf("expected 2 persisted transactions, got %d", len(sink.seen))
	}
	if sink.seen[0].Kind != KindDeposit {
		t.Fatalf("expected first persisted transaction to be a deposit, got %s", sink.seen[0].Kind)
	}
	if sink.seen[1].Kind != KindRake {
		t.Fatalf("expected second persisted transaction to be rake, got %s", sink.seen[1].Kind)
	}
}

func TestPersistSinkIsOptional(t *testing.T) {
	l := New()
	id := agent.NewID()
	l.RegisterAgent(id)

	// No sink set — a nil sink must never cause Adjust or RecordRake to panic.
	if _, _, err := l.Adjust(id, usd, money.MustParse("10.00"), KindDeposit, "", ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	l.RecordRake(usd, money.MustParse("1.00"), "duel-1", "")
}
