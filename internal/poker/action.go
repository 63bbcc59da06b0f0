package poker

import (
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/cards"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
)

// Act applies a single player action to the seat currently on turn, per
// spec §4.4 "Action contract". raiseTo is the target total bet for this
// street and is ignored for all actions except Raise.
func (t *Table) Act(id agent.ID, action ActionKind, raiseTo money.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Hand == nil {
		return clawerr.New(clawerr.Conflict, "no hand in progress")
	}
	idx, ok := t.findSeat(id)
	if !ok {
		return clawerr.New(clawerr.NotFound, "agent is not seated at this table")
	}
	if idx != t.Hand.ActionSeat {
		return clawerr.New(clawerr.Conflict, "not your turn")
	}
	if t.Seats[idx].Status != Active {
		return clawerr.New(clawerr.Conflict, "seat is not active")
	}

	reopened, err := t.applyActionLocked(idx, action, raiseTo)
	if err != nil {
		return err
	}
	t.Hand.actedThisStreet[idx] = true
	if reopened {
		for k := range t.Hand.actedThisStreet {
			if k != idx {
				delete(t.Hand.actedThisStreet, k)
			}
		}
	}

	t.publish("action", map[string]interface{}{"seat": idx, "action": string(action)})

	if t.nonFoldedCountLocked() <= 1 {
		t.resolveFoldToOneLocked()
		return nil
	}

	if t.streetSealedLocked() {
		t.sealStreetLocked()
		return nil
	}

	t.advanceActionSeatLocked()
	t.scheduleActionTimeoutLocked()
	return nil
}

func (t *Table) applyActionLocked(idx int, action ActionKind, raiseTo money.Amount) (reopened bool, err error) {
	h := t.Hand
	s := &t.Seats[idx]
	toCall := h.CurrentBet.Sub(s.BetThisStreet)

	switch action {
	case Fold:
		s.Status = Folded
		s.LastAction = "fold"
		return false, nil

	case Check:
		if toCall.IsPositive() {
			return false, clawerr.New(clawerr.Validation, "check is not legal, %s is owed", toCall)
		}
		s.LastAction = "check"
		return false, nil

	case Call:
		if !toCall.IsPositive() {
			return false, clawerr.New(clawerr.Validation, "nothing to call")
		}
		pay := toCall
		if pay.GreaterThan(s.Chips) {
			pay = s.Chips
		}
		s.Chips = s.Chips.Sub(pay)
		s.BetThisStreet = s.BetThisStreet.Add(pay)
		s.TotalThisHand = s.TotalThisHand.Add(pay)
		if s.Chips.IsZero() {
			s.Status = AllIn
		}
		s.LastAction = "call"
		return false, nil

	case Raise:
		minRaiseTo := h.CurrentBet.Add(maxAmount(t.Config.BigBlind, h.LastRaiseSize))
		if raiseTo.LessThan(minRaiseTo) {
			return false, clawerr.New(clawerr.Validation, "raise to %s is below the minimum %s", raiseTo, minRaiseTo)
		}
		additional := raiseTo.Sub(s.BetThisStreet)
		if additional.GreaterThan(s.Chips) {
			return false, clawerr.New(clawerr.Validation, "raise to %s exceeds available chips", raiseTo)
		}
		s.Chips = s.Chips.Sub(additional)
		s.BetThisStreet = s.BetThisStreet.Add(additional)
		s.TotalThisHand = s.TotalThisHand.Add(additional)
		if s.Chips.IsZero() {
			s.Status = AllIn
		}
		h.LastRaiseSize = raiseTo.Sub(h.CurrentBet)
		h.CurrentBet = raiseTo
		s.LastAction = "raise"
		return true, nil

	case AllInAction:
		if !s.Chips.IsPositive() {
			return false, clawerr.New(clawerr.Validation, "no chips to push all-in")
		}
		additional := s.Chips
		newBet := s.BetThisStreet.Add(additional)
		s.Chips = money.Zero
		s.BetThisStreet = newBet
		s.TotalThisHand = s.TotalThisHand.Add(additional)
		s.Status = AllIn
		s.LastAction = "all-in"

		increment := newBet.Sub(h.CurrentBet)
		if newBet.GreaterThan(h.CurrentBet) {
			wasReopen := !increment.LessThan(h.LastRaiseSize)
			if wasReopen {
				h.LastRaiseSize = increment
			}
			h.CurrentBet = newBet
			return wasReopen, nil
		}
		return false, nil

	default:
		return false, clawerr.New(clawerr.Validation, "unknown action %q", action)
	}
}

func (t *Table) nonFoldedCountLocked() int {
	n := 0
	for i := range t.Seats {
		if t.Seats[i].Occupied && t.Seats[i].Status != Folded && t.Seats[i].Status != SittingOut {
			n++
		}
	}
	return n
}

// streetSealedLocked reports whether every seat still able to act has
// acted this street and matched the current bet (spec §4.4 "Street
// sealing").
func (t *Table) streetSealedLocked() bool {
	h := t.Hand
	for i := range t.Seats {
		s := t.Seats[i]
		if !s.Occupied || s.Status != Active {
			continue
		}
		if !h.actedThisStreet[i] || s.BetThisStreet.Cmp(h.CurrentBet) != 0 {
			return false
		}
	}
	return true
}

func (t *Table) advanceActionSeatLocked() {
	idx, ok := t.nextSeatMatching(t.Hand.ActionSeat, isActive)
	if ok {
		t.Hand.ActionSeat = idx
	}
}

// sealStreetLocked resets per-street state and deals into the next street,
// fast-forwarding through streets with no seat left able to act.
func (t *Table) sealStreetLocked() {
	t.sched.Cancel(t.aggregateID(), sched.ReasonTableActionTimeout)
	for {
		for i := range t.Seats {
			if t.Seats[i].Occupied {
				t.Seats[i].BetThisStreet = money.Zero
			}
		}
		t.Hand.actedThisStreet = make(map[int]bool)
		t.Hand.LastRaiseSize = t.Config.BigBlind
		t.Hand.CurrentBet = money.Zero

		switch t.Hand.Street {
		case Preflop:
			t.Hand.Street = Flop
			t.Hand.sawFlop = true
			t.Hand.Community = append(t.Hand.Community, t.Hand.dealCard(), t.Hand.dealCard(), t.Hand.dealCard())
		case Flop:
			t.Hand.Street = Turn
			t.Hand.Community = append(t.Hand.Community, t.Hand.dealCard())
		case Turn:
			t.Hand.Street = River
			t.Hand.Community = append(t.Hand.Community, t.Hand.dealCard())
		case River:
			t.Hand.Street = Showdown
		}

		t.publish("street", map[string]interface{}{"street": string(t.Hand.Street), "community": cardStrings(t.Hand.Community)})

		if t.Hand.Street == Showdown {
			t.resolveShowdownLocked()
			return
		}

		actionable := 0
		for i := range t.Seats {
			if isActive(t.Seats[i]) {
				actionable++
			}
		}
		if actionable >= 2 {
			first, ok := t.nextSeatMatching(t.Hand.DealerSeat, isActive)
			if ok {
				t.Hand.ActionSeat = first
			}
			t.scheduleActionTimeoutLocked()
			return
		}
		// Fewer than two seats can still act: run the board out without
		// waiting for input, per spec §4.4 (no decisions remain).
	}
}

func cardStrings(cs []cards.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// HandleExpiry routes a scheduler-produced deadline into this table's
// single-writer region (spec §9).
func (t *Table) HandleExpiry(reason sched.Reason) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch reason {
	case sched.ReasonTableAutoStart:
		if t.Hand == nil && len(t.occupiedFundedSeats()) >= 2 {
			return t.startHandLocked()
		}
	case sched.ReasonTableActionTimeout:
		if t.Hand == nil {
			return nil
		}
		legal := t.legalActionsLocked(t.Hand.ActionSeat)
		action := Fold
		for _, a := range legal {
			if a == Check {
				action = Check
				break
			}
		}
		return t.actWithoutTurnCheckLocked(action)
	case sched.ReasonTableNextHand:
		if t.Hand == nil && len(t.occupiedFundedSeats()) >= 2 {
			return t.startHandLocked()
		}
	}
	return nil
}

// actWithoutTurnCheckLocked applies the timed-out seat's forced action.
// Caller holds t.mu.
func (t *Table) actWithoutTurnCheckLocked(action ActionKind) error {
	idx := t.Hand.ActionSeat
	reopened, err := t.applyActionLocked(idx, action, money.Zero)
	if err != nil {
		return err
	}
	t.Hand.actedThisStreet[idx] = true
	if reopened {
		for k := range t.Hand.actedThisStreet {
			if k != idx {
				delete(t.Hand.actedThisStreet, k)
			}
		}
	}
	t.publish("action-timeout", map[string]interface{}{"seat": idx, "action": string(action)})

	if t.nonFoldedCountLocked() <= 1 {
		t.resolveFoldToOneLocked()
		return nil
	}
	if t.streetSealedLocked() {
		t.sealStreetLocked()
		return nil
	}
	t.advanceActionSeatLocked()
	t.scheduleActionTimeoutLocked()
	return nil
}
