// Package poker implements the no-limit Texas Hold'em table state machine:
// seating, blinds, street progression, the action contract, side pots, and
// showdown.
//
// Grounded on discordwell-OnChainPoker's x/poker/keeper/logic.go for the
// seat-rotation and blind-posting arithmetic (autoAssignSeat,
// blindSeats, postBlindCommit), and on TylerPetri-P2Poker's
// internal/table/apply.go for the command-dispatch shape (one apply
// switch per action type, each branch calling into a focused engine
// method and then deciding what to broadcast).
package poker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/cards"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/shuffle"
)

type Street string

const (
	Idle     Street = "idle"
	Preflop  Street = "preflop"
	Flop     Street = "flop"
	Turn     Street = "turn"
	River    Street = "river"
	Showdown Street = "showdown"
)

type SeatStatus string

const (
	SittingOut SeatStatus = "sitting-out"
	Active     SeatStatus = "active"
	Folded     SeatStatus = "folded"
	AllIn      SeatStatus = "all-in"
)

type ActionKind string

const (
	Fold        ActionKind = "fold"
	Check       ActionKind = "check"
	Call        ActionKind = "call"
	Raise       ActionKind = "raise"
	AllInAction ActionKind = "all-in"
)

// RakeCapTable indexes the per-pot rake cap by blind level string (e.g.
// "0.50/1.00") and live player count clamped to [2, 6], per spec §3/§4.6.
type RakeCapTable map[string]map[int]money.Amount

func (t RakeCapTable) Cap(blindLevel string, liveCount int) (money.Amount, bool) {
	if liveCount < 2 {
		liveCount = 2
	}
	if liveCount > 6 {
		liveCount = 6
	}
	byCount, ok := t[blindLevel]
	if !ok {
		return money.Zero, false
	}
	cap, ok := byCount[liveCount]
	return cap, ok
}

// Config is the table's immutable configuration (spec §3 "Table
// configuration").
type Config struct {
	ID         uuid.UUID
	Name       string
	SmallBlind money.Amount
	BigBlind   money.Amount
	MinBuyIn   money.Amount
	MaxBuyIn   money.Amount
	MaxSeats   int
	Currency   ledger.Currency
	RakeCaps   RakeCapTable
}

func (c Config) blindLevel() string {
	return c.SmallBlind.String() + "/" + c.BigBlind.String()
}

// Seat is a seated player (spec §3 "Seated player").
type Seat struct {
	Occupied      bool
	Agent         agent.ID
	Index         int
	Chips         money.Amount
	HoleCards     [2]cards.Card
	HasCards      bool
	BetThisStreet money.Amount
	TotalThisHand money.Amount
	Status        SeatStatus
	LastAction    string
}

// Pot is one payout unit produced by the side-pot algorithm (spec §4.4).
type Pot struct {
	Amount   money.Amount
	Eligible map[int]bool // seat index -> eligible
}

// Hand is the per-hand state (spec §3 "Hand").
type Hand struct {
	ID              uuid.UUID
	Deal            shuffle.Dealt
	deckCursor      int
	DealerSeat      int
	Street          Street
	Community       []cards.Card
	CurrentBet      money.Amount
	LastRaiseSize   money.Amount
	ActionSeat      int
	actedThisStreet map[int]bool
	Pots            []Pot
	sawFlop         bool
}

func (h *Hand) dealCard() cards.Card {
	c := h.Deal.Deck[h.deckCursor]
	h.deckCursor++
	return c
}

// Scheduler is the subset of *sched.Wheel the table engine needs.
type Scheduler interface {
	Schedule(aggregateID string, reason sched.Reason, deadline time.Time)
	Cancel(aggregateID string, reason sched.Reason)
}

// EventSink receives table-scoped and private per-agent events; nil is a
// valid no-op sink. Implemented by internal/bus.Bus.
type EventSink interface {
	TableEvent(tableID uuid.UUID, kind string, payload interface{})
	PrivateEvent(id agent.ID, kind string, payload interface{})
}

// Table is the single-writer aggregate owning seats, the current hand, and
// the deck (spec §3 ownership rule).
type Table struct {
	mu sync.Mutex

	Config Config
	Seats  []Seat

	dealerSet  bool
	DealerSeat int

	Hand *Hand

	ledger *ledger.Ledger
	sched  Scheduler
	sink   EventSink
}

func newTable(cfg Config, l *ledger.Ledger, s Scheduler, sink EventSink) *Table {
	seats := make([]Seat, cfg.MaxSeats)
	for i := range seats {
		seats[i].Index = i
	}
	return &Table{Config: cfg, Seats: seats, ledger: l, sched: s, sink: sink, DealerSeat: -1}
}

func (t *Table) aggregateID() string { return "table:" + t.Config.ID.String() }

func (t *Table) publish(kind string, payload interface{}) {
	if t.sink != nil {
		t.sink.TableEvent(t.Config.ID, kind, payload)
	}
}

func (t *Table) publishPrivate(id agent.ID, kind string, payload interface{}) {
	if t.sink != nil {
		t.sink.PrivateEvent(id, kind, payload)
	}
}

// TableChipLiability implements ledger.ChipSource: seats' live stacks plus
// any contribution not yet folded back into a stack by the current hand.
func (t *Table) TableChipLiability() money.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chipLiabilityLocked()
}

func (t *Table) chipLiabilityLocked() money.Amount {
	total := money.Zero
	for i := range t.Seats {
		if !t.Seats[i].Occupied {
			continue
		}
		total = total.Add(t.Seats[i].Chips)
		if t.Hand != nil {
			total = total.Add(t.Seats[i].TotalThisHand)
		}
	}
	return total
}

func (t *Table) findSeat(id agent.ID) (int, bool) {
	for i := range t.Seats {
		if t.Seats[i].Occupied && t.Seats[i].Agent == id {
			return i, true
		}
	}
	return -1, false
}

func (t *Table) lowestFreeSeat() (int, bool) {
	for i := range t.Seats {
		if !t.Seats[i].Occupied {
			return i, true
		}
	}
	return -1, false
}

// occupiedFundedSeats returns seat indices with chips > 0, sorted.
func (t *Table) occupiedFundedSeats() []int {
	var out []int
	for i := range t.Seats {
		if t.Seats[i].Occupied && t.Seats[i].Chips.IsPositive() {
			out = append(out, i)
		}
	}
	return out
}

// Seat joins an agent to the table with the given buy-in.
func (t *Table) Seat(id agent.ID, buyIn money.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if buyIn.LessThan(t.Config.MinBuyIn) || buyIn.GreaterThan(t.Config.MaxBuyIn) {
		return clawerr.New(clawerr.Validation, "buy-in %s outside [%s, %s]", buyIn, t.Config.MinBuyIn, t.Config.MaxBuyIn)
	}
	if _, already := t.findSeat(id); already {
		return clawerr.New(clawerr.Conflict, "agent already seated at this table")
	}
	idx, ok := t.lowestFreeSeat()
	if !ok {
		return clawerr.New(clawerr.Conflict, "table is full")
	}

	if _, _, err := t.ledger.Adjust(id, t.Config.Currency, buyIn.Neg(), ledger.KindBuyIn, t.Config.ID.String(), "table buy-in"); err != nil {
		return err
	}

	t.Seats[idx] = Seat{Occupied: true, Agent: id, Index: idx, Chips: buyIn, Status: SittingOut}
	t.publish("seat-joined", map[string]interface{}{"seat": idx, "agent": id.String()})

	if t.Hand == nil && len(t.occupiedFundedSeats()) >= 2 {
		t.sched.Schedule(t.aggregateID(), sched.ReasonTableAutoStart, time.Now().UTC().Add(AutoStartDelay))
	}
	return nil
}

// AutoStartDelay is the fixed delay before a hand auto-starts once at
// least two funded seats are present (spec §4.4, recommended 3-5s).
const AutoStartDelay = 4 * time.Second

// NextHandDelay is the fixed delay before the next hand auto-starts after
// the previous hand completes (spec §4.4 "Auto-continue").
const NextHandDelay = 3 * time.Second

// ActionTimeout is the fixed per-turn action deadline (spec §4.4 "Timed
// action", recommended 30s).
const ActionTimeout = 30 * time.Second

// Leave removes an agent from the table, refunding remaining chips. It
// fails if the seat is currently active in an ongoing hand.
func (t *Table) Leave(id agent.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.findSeat(id)
	if !ok {
		return clawerr.New(clawerr.NotFound, "agent is not seated at this table")
	}
	if t.Hand != nil && t.Seats[idx].Status == Active {
		return clawerr.New(clawerr.Conflict, "cannot leave while active in a hand; fold first")
	}

	refund := t.Seats[idx].Chips.Add(t.Seats[idx].BetThisStreet)
	if refund.IsPositive() {
		if _, _, err := t.ledger.Adjust(id, t.Config.Currency, refund, ledger.KindCashOut, t.Config.ID.String(), "table leave"); err != nil {
			return err
		}
	}
	t.Seats[idx] = Seat{Index: idx}
	t.publish("seat-left", map[string]interface{}{"seat": idx, "agent": id.String()})
	return nil
}
