package wallet

import (
	"testing"
	"time"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
)

const usd ledger.Currency = "USD"

func newTestService(id agent.ID) (*Service, *ledger.Ledger) {
	l := ledger.New()
	l.RegisterAgent(id)
	return NewService(l), l
}

func TestWithdrawalLimitBlocksAfterThreePerHour(t *testing.T) {
	id := agent.NewID()
	s, _ := newTestService(id)
	s.Deposit(id, usd, money.MustParse("100.00"))

	for i := 0; i < WithdrawalLimit; i++ {
		if _, err := s.Withdraw(id, usd, money.MustParse("1.00")); err != nil {
			t.Fatalf("withdrawal %d: %v", i+1, err)
		}
	}

	_, err := s.Withdraw(id, usd, money.MustParse("1.00"))
	if err == nil {
		t.Fatal("expected the fourth withdrawal within the window to be rate-limited")
	}
	if !clawerr.Is(err, clawerr.RateLimited) {
		t.Errorf("expected a RateLimited error, got %v", err)
	}
}

func TestWithdrawalLimitResetsAfterWindow(t *testing.T) {
	id := agent.NewID()
	s, _ := newTestService(id)
	s.Deposit(id, usd, money.MustParse("100.00"))

	now := time.Now().UTC()
	for i := 0; i < WithdrawalLimit; i++ {
		if !s.limit.allow(id, now) {
			t.Fatalf("withdrawal %d should be allowed", i+1)
		}
	}
	if s.limit.allow(id, now) {
		t.Fatal("expected the limit to be reached")
	}
	if !s.limit.allow(id, now.Add(WithdrawalWindow+time.Second)) {
		t.Fatal("expected the limit to reset once the window has elapsed")
	}
}

func TestDepositIsUnrestricted(t *testing.T) {
	id := agent.NewID()
	s, _ := newTestService(id)

	for i := 0; i < WithdrawalLimit+5; i++ {
		if _, err := s.Deposit(id, usd, money.MustParse("5.00")); err != nil {
			t.Fatalf("deposit %d: %v", i+1, err)
		}
	}

	bal, err := s.Balance(id, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	want := money.MustParse("40.00")
	if bal.Cmp(want) != 0 {
		t.Errorf("balance = %s, want %s", bal, want)
	}
}
