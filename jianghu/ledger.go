package jianghu

import "github.com/google/uuid"

// Debt is something the player owes a creditor (usually an NPC).
type Debt struct {
	ID       string `json:"id"`
	Creditor string `json:"creditor"`
	Type     string `json:"type"`
	Amount   int    `json:"amount"`
	DueRound int    `json:"dueRound"`
	Repaid   bool   `json:"repaid"`
}

// Grudge is an open score between the player and a target.
type Grudge struct {
	ID       string `json:"id"`
	Target   string `json:"target"`
	Type     string `json:"type"`
	Severity int    `json:"severity"`
	Active   bool   `json:"active"`
}

// AddDebt records a new unpaid debt and returns its id.
func (p *Player) AddDebt(creditor, kind string, amount, dueRound int) string {
	d := Debt{
		ID:       uuid.NewString(),
		Creditor: creditor,
		Type:     kind,
		Amount:   amount,
		DueRound: dueRound,
	}
	p.debts = append(p.debts, d)
	return d.ID
}

func (p *Player) RepayDebt(id string) error {
	for i := range p.debts {
		if p.debts[i].ID == id {
			p.debts[i].Repaid = true
			return nil
		}
	}
	return ErrUnknownDebt
}

// ActiveDebts returns unpaid debts.
func (p *Player) ActiveDebts() []Debt {
	var out []Debt
	for _, d := range p.debts {
		if !d.Repaid {
			out = append(out, d)
		}
	}
	return out
}

// OverdueDebts returns unpaid debts whose due round is before round.
func (p *Player) OverdueDebts(round int) []Debt {
	var out []Debt
	for _, d := range p.debts {
		if !d.Repaid && d.DueRound < round {
			out = append(out, d)
		}
	}
	return out
}

func (p *Player) Debts() []Debt {
	return append([]Debt(nil), p.debts...)
}

func (p *Player) AddGrudge(target, kind string, severity int) string {
	g := Grudge{
		ID:       uuid.NewString(),
		Target:   target,
		Type:     kind,
		Severity: severity,
		Active:   true,
	}
	p.grudges = append(p.grudges, g)
	return g.ID
}

func (p *Player) ResolveGrudge(id string) error {
	for i := range p.grudges {
		if p.grudges[i].ID == id {
			p.grudges[i].Active = false
			return nil
		}
	}
	return ErrUnknownGrudge
}

func (p *Player) ActiveGrudges() []Grudge {
	var out []Grudge
	for _, g := range p.grudges {
		if g.Active {
			out = append(out, g)
		}
	}
	return out
}

func (p *Player) Grudges() []Grudge {
	return append([]Grudge(nil), p.grudges...)
}
