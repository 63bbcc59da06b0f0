package poker

import (
	"time"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/shuffle"
	"github.com/google/uuid"
)

// nextSeatMatching returns the next seat index clockwise from (exclusive
// of) "from" whose status matches pred, wrapping around the table.
func (t *Table) nextSeatMatching(from int, pred func(Seat) bool) (int, bool) {
	n := len(t.Seats)
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		if pred(t.Seats[idx]) {
			return idx, true
		}
	}
	return -1, false
}

func isActive(s Seat) bool { return s.Occupied && s.Status == Active }

// StartHand begins a new hand. Preconditions: the table is Idle and at
// least two seats hold chips > 0 (spec §4.4 "Hand start").
func (t *Table) StartHand() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startHandLocked()
}

func (t *Table) startHandLocked() error {
	if t.Hand != nil {
		return clawerr.New(clawerr.Conflict, "a hand is already in progress")
	}
	funded := t.occupiedFundedSeats()
	if len(funded) < 2 {
		return clawerr.New(clawerr.Conflict, "fewer than two funded seats")
	}

	dealer, ok := t.nextDealerSeat(funded)
	if !ok {
		return clawerr.New(clawerr.Internal, "could not determine dealer seat")
	}
	t.DealerSeat = dealer
	t.dealerSet = true

	for i := range t.Seats {
		if t.Seats[i].Occupied && t.Seats[i].Chips.IsPositive() {
			t.Seats[i].Status = Active
		}
		t.Seats[i].BetThisStreet = money.Zero
		t.Seats[i].TotalThisHand = money.Zero
		t.Seats[i].HasCards = false
		t.Seats[i].LastAction = ""
	}

	deal, err := shuffle.New()
	if err != nil {
		return err
	}

	h := &Hand{
		ID:              uuid.New(),
		Deal:            deal,
		DealerSeat:      dealer,
		Street:          Preflop,
		actedThisStreet: make(map[int]bool),
		CurrentBet:      money.Zero,
		LastRaiseSize:   t.Config.BigBlind,
	}
	t.Hand = h

	// Deal two hole cards to each active seat, in dealer-rotation order,
	// one card per seat per pass.
	order := t.activeRotationFrom(dealer)
	for pass := 0; pass < 2; pass++ {
		for _, idx := range order {
			card := h.dealCard()
			t.Seats[idx].HoleCards[pass] = card
		}
	}
	for _, idx := range order {
		t.Seats[idx].HasCards = true
	}

	t.postBlindsLocked(order)

	t.publish("hand-started", map[string]interface{}{"hand": h.ID.String(), "dealer": dealer})
	for _, idx := range order {
		seat := t.Seats[idx]
		t.publishPrivate(seat.Agent, "hole-cards", map[string]interface{}{
			"hand": h.ID.String(), "cards": []string{seat.HoleCards[0].String(), seat.HoleCards[1].String()},
		})
	}

	t.scheduleActionTimeoutLocked()
	return nil
}

// nextDealerSeat rotates the button to the next funded seat after the
// previous dealer; on the first hand it picks the lowest funded seat.
func (t *Table) nextDealerSeat(funded []int) (int, bool) {
	if !t.dealerSet {
		return funded[0], true
	}
	return t.nextSeatMatching(t.DealerSeat, func(s Seat) bool { return s.Occupied && s.Chips.IsPositive() })
}

// activeRotationFrom returns active-seat indices starting with the seat
// after "from", wrapping once around the table.
func (t *Table) activeRotationFrom(from int) []int {
	n := len(t.Seats)
	var out []int
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		if isActive(t.Seats[idx]) {
			out = append(out, idx)
		}
	}
	return out
}

func (t *Table) postBlindsLocked(activeOrder []int) {
	h := t.Hand
	var sbSeat, bbSeat int
	if len(activeOrder) == 2 {
		sbSeat = h.DealerSeat
		bbSeat = activeOrder[0]
		if bbSeat == sbSeat {
			bbSeat = activeOrder[1]
		}
	} else {
		sbSeat, _ = t.nextSeatMatching(h.DealerSeat, isActive)
		bbSeat, _ = t.nextSeatMatching(sbSeat, isActive)
	}

	t.postBlindLocked(sbSeat, t.Config.SmallBlind)
	t.postBlindLocked(bbSeat, t.Config.BigBlind)

	h.CurrentBet = t.Seats[bbSeat].BetThisStreet
	actionSeat, ok := t.nextSeatMatching(bbSeat, isActive)
	if !ok {
		actionSeat = bbSeat
	}
	h.ActionSeat = actionSeat
}

func (t *Table) postBlindLocked(seatIdx int, amount money.Amount) {
	s := &t.Seats[seatIdx]
	put := amount
	if put.GreaterThan(s.Chips) {
		put = s.Chips
	}
	s.Chips = s.Chips.Sub(put)
	s.BetThisStreet = s.BetThisStreet.Add(put)
	s.TotalThisHand = s.TotalThisHand.Add(put)
	if s.Chips.IsZero() {
		s.Status = AllIn
	}
}

func (t *Table) scheduleActionTimeoutLocked() {
	if t.Hand == nil {
		return
	}
	t.sched.Schedule(t.aggregateID(), sched.ReasonTableActionTimeout, time.Now().UTC().Add(ActionTimeout))
}

// LegalActions returns the action set available to the seat currently on
// turn, per spec §4.4 "Action contract".
func (t *Table) LegalActions(id agent.ID) []ActionKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.findSeat(id)
	if !ok || t.Hand == nil || idx != t.Hand.ActionSeat {
		return nil
	}
	return t.legalActionsLocked(idx)
}

func (t *Table) legalActionsLocked(idx int) []ActionKind {
	h := t.Hand
	s := t.Seats[idx]
	toCall := h.CurrentBet.Sub(s.BetThisStreet)

	actions := []ActionKind{Fold}
	if toCall.IsZero() || toCall.IsNegative() {
		actions = append(actions, Check)
	} else if s.Chips.IsPositive() {
		actions = append(actions, Call)
	}
	if s.Chips.IsPositive() {
		actions = append(actions, AllInAction)
		minRaiseTo := h.CurrentBet.Add(maxAmount(t.Config.BigBlind, h.LastRaiseSize))
		requiredAdditional := minRaiseTo.Sub(s.BetThisStreet)
		if !requiredAdditional.GreaterThan(s.Chips) {
			actions = append(actions, Raise)
		}
	}
	return actions
}

func maxAmount(a, b money.Amount) money.Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
