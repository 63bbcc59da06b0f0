package duel

import "encoding/hex"

// View is the externally visible projection of a Game. Neither side's RPS
// commit blob is ever included, and the coinflip secret stays hidden until
// the coinflip is settled; from then on the view carries the secret and the
// result hash, so an observer can recompute the outcome.
type View struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Creator  string `json:"creator"`
	Acceptor string `json:"acceptor,omitempty"`

	Stake    string `json:"stake"`
	Currency string `json:"currency"`
	Status   Status `json:"status"`

	Rounds        int `json:"rounds"`
	RoundIndex    int `json:"roundIndex"`
	CreatorScore  int `json:"creatorScore"`
	AcceptorScore int `json:"acceptorScore"`

	CreatorCommitment string `json:"creatorCommitment,omitempty"`
	CreatorSecret     string `json:"creatorSecret,omitempty"`
	ResultHash        string `json:"resultHash,omitempty"`

	Winner        string `json:"winner,omitempty"`
	Payout        string `json:"payout,omitempty"`
	Rake          string `json:"rake,omitempty"`
	ForfeitReason string `json:"forfeitReason,omitempty"`
}

// View renders the externally safe projection of the game's current state.
func (g *Game) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := View{
		ID:            g.ID.String(),
		Kind:          g.Kind,
		Creator:       g.Creator.String(),
		Stake:         g.Stake.String(),
		Currency:      string(g.Currency),
		Status:        g.Status,
		Rounds:        g.Rounds,
		RoundIndex:    g.RoundIndex,
		CreatorScore:  g.CreatorScore,
		AcceptorScore: g.AcceptorScore,
		ForfeitReason: g.ForfeitReason,
	}
	if g.hasAcceptor {
		v.Acceptor = g.Acceptor.String()
	}
	if g.Kind == Coinflip {
		v.CreatorCommitment = g.CreatorCommitment.String()
		if g.hasWinner {
			v.CreatorSecret = hex.EncodeToString(g.CreatorSecret[:])
			v.ResultHash = hex.EncodeToString(g.ResultHash[:])
		}
	}
	if g.hasWinner {
		v.Winner = g.Winner.String()
		v.Payout = g.Payout.String()
		v.Rake = g.Rake.String()
	}
	return v
}
