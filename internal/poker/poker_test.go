package poker

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
)

const usd ledger.Currency = "USD"

// noopScheduler discards every deadline; tests drive the action contract
// directly instead of waiting on real timers.
type noopScheduler struct{}

func (noopScheduler) Schedule(string, sched.Reason, time.Time) {}
func (noopScheduler) Cancel(string, sched.Reason)              {}

func newTestLedger(agents ...agent.ID) *ledger.Ledger {
	l := ledger.New()
	for _, a := range agents {
		l.RegisterAgent(a)
		l.Adjust(a, usd, money.MustParse("200.00"), ledger.KindDeposit, "", "")
	}
	return l
}

// TestS3SidePotThreeWayAllIn covers the three-way all-in scenario: seat A
// is all-in for 10, seat B all-in for 25, seat C calls 25 and keeps the
// rest of its stack. The side-pot algorithm must produce a 30-unit main
// pot eligible to all three and a 30-unit side pot eligible to B and C
// only (spec §4.4).
func TestS3SidePotThreeWayAllIn(t *testing.T) {
	table := &Table{
		Config: Config{MaxSeats: 3},
		Seats: []Seat{
			{Occupied: true, Index: 0, Status: Active, TotalThisHand: money.MustParse("10.00")},
			{Occupied: true, Index: 1, Status: Active, TotalThisHand: money.MustParse("25.00")},
			{Occupied: true, Index: 2, Status: Active, TotalThisHand: money.MustParse("25.00")},
		},
		Hand: &Hand{sawFlop: true},
	}

	pots := table.computePotsLocked()
	if len(pots) != 2 {
		t.Fatalf("expected 2 pots, got %d", len(pots))
	}

	main, side := pots[0], pots[1]
	if main.Amount.Cmp(money.MustParse("30.00")) != 0 {
		t.Errorf("main pot = %s, want 30.00", main.Amount)
	}
	for _, seat := range []int{0, 1, 2} {
		if !main.Eligible[seat] {
			t.Errorf("seat %d should be eligible for the main pot", seat)
		}
	}

	if side.Amount.Cmp(money.MustParse("30.00")) != 0 {
		t.Errorf("side pot = %s, want 30.00", side.Amount)
	}
	if side.Eligible[0] {
		t.Error("seat 0 (all-in for 10) must not be eligible for the side pot")
	}
	if !side.Eligible[1] || !side.Eligible[2] {
		t.Error("seats 1 and 2 must be eligible for the side pot")
	}
}

// TestS3SidePotExcludesFoldedContribution checks that a folded player's
// chips still count toward pot size but never toward eligibility.
func TestS3SidePotExcludesFoldedContribution(t *testing.T) {
	table := &Table{
		Config: Config{MaxSeats: 3},
		Seats: []Seat{
			{Occupied: true, Index: 0, Status: Folded, TotalThisHand: money.MustParse("20.00")},
			{Occupied: true, Index: 1, Status: Active, TotalThisHand: money.MustParse("20.00")},
			{Occupied: true, Index: 2, Status: Active, TotalThisHand: money.MustParse("20.00")},
		},
		Hand: &Hand{sawFlop: true},
	}

	pots := table.computePotsLocked()
	if len(pots) != 1 {
		t.Fatalf("expected 1 pot, got %d", len(pots))
	}
	if pots[0].Amount.Cmp(money.MustParse("60.00")) != 0 {
		t.Errorf("pot = %s, want 60.00", pots[0].Amount)
	}
	if pots[0].Eligible[0] {
		t.Error("folded seat must not be pot-eligible")
	}
	if !pots[0].Eligible[1] || !pots[0].Eligible[2] {
		t.Error("non-folded seats must be eligible")
	}
}

// TestS3SidePotCountsFoldedContributionBelowTheLowestLevel checks that a
// folded seat whose total contribution sits strictly below every non-folded
// seat's total still has its chips counted into a pot — the level set must
// be built from every participant, folded included, not just the ones
// still eligible to win.
func TestS3SidePotCountsFoldedContributionBelowTheLowestLevel(t *testing.T) {
	table := &Table{
		Config: Config{MaxSeats: 3},
		Seats: []Seat{
			{Occupied: true, Index: 0, Status: Folded, TotalThisHand: money.MustParse("5.00")},
			{Occupied: true, Index: 1, Status: Active, TotalThisHand: money.MustParse("20.00")},
			{Occupied: true, Index: 2, Status: AllIn, TotalThisHand: money.MustParse("20.00")},
		},
		Hand: &Hand{sawFlop: true},
	}

	pots := table.computePotsLocked()
	total := money.Zero
	for _, p := range pots {
		total = total.Add(p.Amount)
	}
	if total.Cmp(money.MustParse("45.00")) != 0 {
		t.Fatalf("pots must sum to the full 45.00 contributed (5+20+20), got %s", total)
	}
	if pots[0].Eligible[0] {
		t.Error("folded seat must never be pot-eligible, regardless of its contribution tier")
	}
}

// TestS4NoFlopNoDrop checks that a hand settled by a preflop fold charges
// no rake and writes no rake-log row (spec §4.6).
func TestS4NoFlopNoDrop(t *testing.T) {
	p1, p2 := agent.NewID(), agent.NewID()
	l := newTestLedger(p1, p2)
	reg := NewRegistry(l, noopScheduler{}, nil)

	cfg := Config{
		ID:         uuid.New(),
		Name:       "heads-up",
		SmallBlind: money.MustParse("0.50"),
		BigBlind:   money.MustParse("1.00"),
		MinBuyIn:   money.MustParse("10.00"),
		MaxBuyIn:   money.MustParse("200.00"),
		MaxSeats:   2,
		Currency:   usd,
	}
	table, err := reg.Create(cfg)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	if err := table.Seat(p1, money.MustParse("20.00")); err != nil {
		t.Fatalf("seat p1: %v", err)
	}
	if err := table.Seat(p2, money.MustParse("20.00")); err != nil {
		t.Fatalf("seat p2: %v", err)
	}
	if err := table.StartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	// Heads-up: the dealer (small blind) acts first preflop.
	dealerID := table.Seats[table.DealerSeat].Agent
	other := p1
	if dealerID == p1 {
		other = p2
	}

	if err := table.Act(dealerID, Raise, money.MustParse("2.00")); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := table.Act(other, Fold, money.Zero); err != nil {
		t.Fatalf("fold: %v", err)
	}

	if table.Hand != nil {
		t.Fatal("hand should have resolved and cleared after fold-to-one")
	}

	audit := l.Audit(usd)
	if !audit.Rake.IsZero() {
		t.Errorf("rake = %s, want 0.00 (no-flop-no-drop)", audit.Rake)
	}

	winnerChips := money.Zero
	for _, s := range table.Seats {
		if s.Agent == dealerID {
			winnerChips = s.Chips
		}
	}
	// Dealer posted 0.50 SB then called/raised to 2.00 total; the other
	// seat posted 1.00 BB then folded. Pot is 2.00 + 1.00 = 3.00, all of
	// it returned to the winner since no rake applies.
	if winnerChips.Cmp(money.MustParse("21.00")) != 0 {
		t.Errorf("winner chips = %s, want 21.00", winnerChips)
	}
}

// TestHeadsUpBlindsAndActionOrder checks the heads-up special case: the
// dealer posts the small blind and acts first preflop (spec §4.4).
func TestHeadsUpBlindsAndActionOrder(t *testing.T) {
	p1, p2 := agent.NewID(), agent.NewID()
	l := newTestLedger(p1, p2)
	reg := NewRegistry(l, noopScheduler{}, nil)

	cfg := Config{
		ID:         uuid.New(),
		SmallBlind: money.MustParse("0.50"),
		BigBlind:   money.MustParse("1.00"),
		MinBuyIn:   money.MustParse("10.00"),
		MaxBuyIn:   money.MustParse("200.00"),
		MaxSeats:   2,
		Currency:   usd,
	}
	table, err := reg.Create(cfg)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	table.Seat(p1, money.MustParse("20.00"))
	table.Seat(p2, money.MustParse("20.00"))
	if err := table.StartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	dealerIdx := table.DealerSeat
	if table.Hand.ActionSeat != dealerIdx {
		t.Errorf("action seat = %d, want dealer seat %d (heads-up preflop)", table.Hand.ActionSeat, dealerIdx)
	}
	if table.Seats[dealerIdx].BetThisStreet.Cmp(money.MustParse("0.50")) != 0 {
		t.Errorf("dealer bet this street = %s, want 0.50 (small blind)", table.Seats[dealerIdx].BetThisStreet)
	}
}

// TestShortAllInDoesNotReopenAction verifies that an all-in raise smaller
// than the last raise increment updates the amount owed without granting
// already-acted players another turn (spec §4.4 boundary case).
func TestShortAllInDoesNotReopenAction(t *testing.T) {
	table := &Table{
		Config: Config{BigBlind: money.MustParse("1.00")},
		Hand: &Hand{
			CurrentBet:      money.MustParse("2.00"),
			LastRaiseSize:   money.MustParse("2.00"),
			actedThisStreet: map[int]bool{0: true},
		},
		Seats: []Seat{
			{Occupied: true, Index: 0, Status: Active, Chips: money.MustParse("50.00"), BetThisStreet: money.MustParse("2.00")},
			{Occupied: true, Index: 1, Status: Active, Chips: money.MustParse("1.50"), BetThisStreet: money.MustParse("2.00")},
		},
	}

	reopened, err := table.applyActionLocked(1, AllInAction, money.Zero)
	if err != nil {
		t.Fatalf("all-in: %v", err)
	}
	if reopened {
		t.Error("a short all-in raise must not reopen action")
	}
	if table.Hand.CurrentBet.Cmp(money.MustParse("3.50")) != 0 {
		t.Errorf("current bet = %s, want 3.50", table.Hand.CurrentBet)
	}
}
