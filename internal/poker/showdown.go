package poker

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/cards"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
)

// pokerRakeRate is the 5% poker rake of spec §4.6.
var pokerRakeRate = decimal.RequireFromString("0.05")

// computePotsLocked implements the side-pot algorithm of spec §4.4:
// sort every contribution level (folded seats included) ascending; at each
// level, the pot
// gets (level - prev) times the number of all participants (folded
// included) whose total contribution reached that level; eligibility is
// restricted to non-folded participants at or above the level.
func (t *Table) computePotsLocked() []Pot {
	type contributor struct {
		idx    int
		total  money.Amount
		folded bool
	}
	var participants []contributor
	for i := range t.Seats {
		s := t.Seats[i]
		if !s.Occupied || !s.TotalThisHand.IsPositive() {
			continue
		}
		participants = append(participants, contributor{idx: i, total: s.TotalThisHand, folded: s.Status == Folded})
	}

	// Every contribution tier must be captured, folded seats included: a
	// folded seat's chips still have to land in some pot's Amount even
	// though the seat itself is never Eligible for it. Omitting folded
	// totals here loses chips whenever a folded seat's total sits strictly
	// below the lowest non-folded level.
	levelSet := map[string]money.Amount{}
	for _, p := range participants {
		levelSet[p.total.String()] = p.total
	}
	levels := make([]money.Amount, 0, len(levelSet))
	for _, v := range levelSet {
		levels = append(levels, v)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].LessThan(levels[j]) })

	var pots []Pot
	prev := money.Zero
	for _, level := range levels {
		count := 0
		eligible := map[int]bool{}
		for _, p := range participants {
			if !p.total.LessThan(level) {
				count++
				if !p.folded {
					eligible[p.idx] = true
				}
			}
		}
		amount := level.Sub(prev).MulInt(count)
		pots = append(pots, Pot{Amount: amount, Eligible: eligible})
		prev = level
	}
	return pots
}

// nonFoldedRotationFrom returns occupied, non-folded seat indices (Active
// or AllIn) starting after "from", wrapping once around the table; used to
// order showdown winners by postflop acting position for remainder-cent
// assignment (spec §4.4).
func (t *Table) nonFoldedRotationFrom(from int) []int {
	n := len(t.Seats)
	var out []int
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		s := t.Seats[idx]
		if s.Occupied && s.Status != Folded && s.Status != SittingOut {
			out = append(out, idx)
		}
	}
	return out
}

func (t *Table) liveNonFoldedCountLocked() int {
	n := 0
	for i := range t.Seats {
		if t.Seats[i].Occupied && t.Seats[i].Status != Folded {
			n++
		}
	}
	return n
}

// rakeForPotLocked applies the 5% poker rake with no-flop-no-drop and the
// blind-level/live-count cap (spec §4.6).
func (t *Table) rakeForPotLocked(pot money.Amount) money.Amount {
	if !t.Hand.sawFlop {
		return money.Zero
	}
	rake := pot.MulRate(pokerRakeRate)
	if capAmt, ok := t.Config.RakeCaps.Cap(t.Config.blindLevel(), t.liveNonFoldedCountLocked()); ok && rake.GreaterThan(capAmt) {
		rake = capAmt
	}
	return rake
}

// resolveFoldToOneLocked handles the case where betting leaves a single
// non-folded player; that player wins every pot unconditionally and rake
// is applied once (spec §4.4 showdown).
func (t *Table) resolveFoldToOneLocked() {
	var winnerIdx int
	for i := range t.Seats {
		if t.Seats[i].Occupied && t.Seats[i].Status != Folded && t.Seats[i].Status != SittingOut {
			winnerIdx = i
			break
		}
	}

	total := money.Zero
	for i := range t.Seats {
		total = total.Add(t.Seats[i].TotalThisHand)
	}
	rake := t.rakeForPotLocked(total)
	payout := total.Sub(rake)

	t.Seats[winnerIdx].Chips = t.Seats[winnerIdx].Chips.Add(payout)
	if rake.IsPositive() {
		t.ledger.RecordRake(t.Config.Currency, rake, t.Hand.ID.String(), "poker rake")
	}

	t.publish("hand-complete", map[string]interface{}{
		"hand": t.Hand.ID.String(), "winner": winnerIdx, "payout": payout.String(), "rake": rake.String(),
	})
	t.finishHandLocked()
}

// resolveShowdownLocked evaluates each pot from main to last side pot and
// splits it among the best hand(s) among eligible players (spec §4.4
// "Showdown").
func (t *Table) resolveShowdownLocked() {
	pots := t.computePotsLocked()
	actingOrder := t.nonFoldedRotationFrom(t.Hand.DealerSeat)
	rankOf := t.evaluateHandsLocked()

	for _, pot := range pots {
		rake := t.rakeForPotLocked(pot.Amount)
		payout := pot.Amount.Sub(rake)

		winners := bestHandSeats(pot.Eligible, rankOf)
		ordered := orderByActingPosition(winners, actingOrder)
		shares := money.Split(payout, len(ordered))
		for i, seatIdx := range ordered {
			t.Seats[seatIdx].Chips = t.Seats[seatIdx].Chips.Add(shares[i])
		}
		if rake.IsPositive() {
			t.ledger.RecordRake(t.Config.Currency, rake, t.Hand.ID.String(), "poker rake")
		}
	}

	t.publish("showdown", map[string]interface{}{"hand": t.Hand.ID.String(), "community": cardStrings(t.Hand.Community)})
	t.finishHandLocked()
}

func (t *Table) evaluateHandsLocked() map[int]cards.HandRank {
	var board [5]cards.Card
	copy(board[:], t.Hand.Community)

	out := make(map[int]cards.HandRank)
	for i := range t.Seats {
		s := t.Seats[i]
		if !s.Occupied || s.Status == Folded || !s.HasCards {
			continue
		}
		var seven [7]cards.Card
		seven[0], seven[1] = s.HoleCards[0], s.HoleCards[1]
		copy(seven[2:], board[:])
		out[i] = cards.Evaluate7(seven)
	}
	return out
}

func bestHandSeats(eligible map[int]bool, rankOf map[int]cards.HandRank) []int {
	var best *cards.HandRank
	var winners []int
	for idx := range eligible {
		r, ok := rankOf[idx]
		if !ok {
			continue
		}
		switch {
		case best == nil || cards.Compare(r, *best) > 0:
			rCopy := r
			best = &rCopy
			winners = []int{idx}
		case cards.Compare(r, *best) == 0:
			winners = append(winners, idx)
		}
	}
	return winners
}

// orderByActingPosition sorts winner seat indices by their position in
// actingOrder so odd cents go to the earliest-to-act-postflop winner
// (spec §4.4).
func orderByActingPosition(winners []int, actingOrder []int) []int {
	position := make(map[int]int, len(actingOrder))
	for pos, idx := range actingOrder {
		position[idx] = pos
	}
	out := append([]int{}, winners...)
	sort.Slice(out, func(i, j int) bool { return position[out[i]] < position[out[j]] })
	return out
}

// finishHandLocked clears hand state and schedules the next hand if
// enough seats remain funded (spec §4.4 "Auto-continue").
func (t *Table) finishHandLocked() {
	t.sched.Cancel(t.aggregateID(), sched.ReasonTableActionTimeout)

	for i := range t.Seats {
		if !t.Seats[i].Occupied {
			continue
		}
		if t.Seats[i].Chips.IsPositive() {
			t.Seats[i].Status = SittingOut
		}
		t.Seats[i].BetThisStreet = money.Zero
		t.Seats[i].TotalThisHand = money.Zero
		t.Seats[i].HasCards = false
	}
	t.Hand = nil

	if len(t.occupiedFundedSeats()) >= 2 {
		t.sched.Schedule(t.aggregateID(), sched.ReasonTableNextHand, time.Now().UTC().Add(NextHandDelay))
	}
}
