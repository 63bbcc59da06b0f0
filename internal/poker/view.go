package poker

import (
	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/cards"
)

// SeatView is the externally visible projection of a seat: hole cards are
// present only for the seat's own occupant (spec §3 "no other party ever
// observes hole cards before showdown").
type SeatView struct {
	Occupied      bool         `json:"occupied"`
	Agent         string       `json:"agent,omitempty"`
	Index         int          `json:"index"`
	Chips         string       `json:"chips"`
	HoleCards     []cards.Card `json:"holeCards,omitempty"`
	BetThisStreet string       `json:"betThisStreet"`
	Status        SeatStatus   `json:"status"`
}

// HandView is the externally visible projection of the hand in progress.
type HandView struct {
	Street     Street       `json:"street"`
	Community  []cards.Card `json:"community"`
	CurrentBet string       `json:"currentBet"`
	DealerSeat int          `json:"dealerSeat"`
	ActionSeat int          `json:"actionSeat"`
}

// View is the public snapshot returned by the "observe" command.
type View struct {
	TableID uuid.UUID    `json:"tableId"`
	Name    string       `json:"name"`
	Seats   []SeatView   `json:"seats"`
	Hand    *HandView    `json:"hand,omitempty"`
	Legal   []ActionKind `json:"legalActions,omitempty"`
}

// Observe returns the public view of the table, with every seat's hole
// cards hidden.
func (t *Table) Observe() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	var noOne agent.ID
	return t.viewLocked(noOne, false)
}

// ObserveAs returns the public view of the table plus id's own hole cards
// (if seated) and legal actions (if it is id's turn), per the "observe-as"
// command.
func (t *Table) ObserveAs(id agent.ID) View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked(id, true)
}

func (t *Table) viewLocked(id agent.ID, revealTo bool) View {
	v := View{TableID: t.Config.ID, Name: t.Config.Name, Seats: make([]SeatView, len(t.Seats))}

	for i, s := range t.Seats {
		sv := SeatView{
			Occupied:      s.Occupied,
			Index:         s.Index,
			Chips:         s.Chips.String(),
			BetThisStreet: s.BetThisStreet.String(),
			Status:        s.Status,
		}
		if s.Occupied {
			sv.Agent = s.Agent.String()
		}
		if revealTo && s.Occupied && s.Agent == id && s.HasCards {
			cardsCopy := s.HoleCards
			sv.HoleCards = cardsCopy[:]
		}
		v.Seats[i] = sv
	}

	if t.Hand != nil {
		v.Hand = &HandView{
			Street:     t.Hand.Street,
			Community:  append([]cards.Card(nil), t.Hand.Community...),
			CurrentBet: t.Hand.CurrentBet.String(),
			DealerSeat: t.Hand.DealerSeat,
			ActionSeat: t.Hand.ActionSeat,
		}
		if revealTo {
			if idx, ok := t.findSeat(id); ok && idx == t.Hand.ActionSeat {
				v.Legal = t.legalActionsLocked(idx)
			}
		}
	}

	return v
}
