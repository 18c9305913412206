// Package allocator splits a budget across districts and exports the
// selected allocations.
package allocator

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/geobrowser/internal/electoral"
)

// DefaultBudget is the budget a new plan starts with.
const DefaultBudget int64 = 100000

// Statuses.
const (
	StatusPending   = "Pending"
	StatusOngoing   = "Ongoing"
	StatusCompleted = "Completed"
)

// Allocation is one row of a plan. Amounts are whole currency units.
type Allocation struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	Category   string `json:"category"`
	Department string `json:"department"`
	Status     string `json:"status"`
}

// Plan is a budget and its allocation rows. Every row starts selected.
type Plan struct {
	Budget   int64        `json:"budget"`
	Rows     []Allocation `json:"rows"`
	Selected map[int]bool `json:"selected"`
}

// NewPlan returns a plan over rows with every row selected.
func NewPlan(budget int64, rows []Allocation) *Plan {
	p := &Plan{Budget: budget, Rows: rows, Selected: make(map[int]bool, len(rows))}
	for _, r := range rows {
		p.Selected[r.ID] = true
	}
	return p
}

// FromDistricts seeds one row per district and splits the budget evenly
// across them. The remainder of the division goes to the first rows, one unit
// each, so the amounts always sum to the budget.
func FromDistricts(districts []electoral.District, budget int64) (*Plan, error) {
	if budget < 0 {
		return nil, eris.Errorf("allocator: negative budget %d", budget)
	}
	rows := make([]Allocation, 0, len(districts))
	n := int64(len(districts))
	for i, d := range districts {
		amount := int64(0)
		if n > 0 {
			amount = budget / n
			if int64(i) < budget%n {
				amount++
			}
		}
		rows = append(rows, Allocation{
			ID:         i + 1,
			Name:       d.Name,
			Amount:     amount,
			Category:   string(d.Class),
			Department: d.Province,
			Status:     StatusPending,
		})
	}
	return NewPlan(budget, rows), nil
}

// Clone returns a deep copy of p.
func (p *Plan) Clone() *Plan {
	out := &Plan{
		Budget:   p.Budget,
		Rows:     append([]Allocation(nil), p.Rows...),
		Selected: make(map[int]bool, len(p.Selected)),
	}
	for id, on := range p.Selected {
		out.Selected[id] = on
	}
	return out
}

func (p *Plan) index(id int) (int, error) {
	for i, r := range p.Rows {
		if r.ID == id {
			return i, nil
		}
	}
	return -1, eris.Errorf("allocator: no row %d", id)
}

// Toggle flips the selection of a row.
func (p *Plan) Toggle(id int) error {
	if _, err := p.index(id); err != nil {
		return err
	}
	p.Selected[id] = !p.Selected[id]
	return nil
}

// Select sets the selection of a row.
func (p *Plan) Select(id int, on bool) error {
	if _, err := p.index(id); err != nil {
		return err
	}
	p.Selected[id] = on
	return nil
}

// SetAmount changes a row's amount.
func (p *Plan) SetAmount(id int, amount int64) error {
	if amount < 0 {
		return eris.Errorf("allocator: negative amount %d", amount)
	}
	i, err := p.index(id)
	if err != nil {
		return err
	}
	p.Rows[i].Amount = amount
	return nil
}

// SetStatus changes a row's status.
func (p *Plan) SetStatus(id int, status string) error {
	switch status {
	case StatusPending, StatusOngoing, StatusCompleted:
	default:
		return eris.Errorf("allocator: unknown status %q", status)
	}
	i, err := p.index(id)
	if err != nil {
		return err
	}
	p.Rows[i].Status = status
	return nil
}

// SetBudget changes the total budget.
func (p *Plan) SetBudget(budget int64) error {
	if budget < 0 {
		return eris.Errorf("allocator: negative budget %d", budget)
	}
	p.Budget = budget
	return nil
}

// SelectedRows returns the selected rows in plan order.
func (p *Plan) SelectedRows() []Allocation {
	var out []Allocation
	for _, r := range p.Rows {
		if p.Selected[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// Allocated sums the selected rows.
func (p *Plan) Allocated() int64 {
	var sum int64
	for _, r := range p.SelectedRows() {
		sum += r.Amount
	}
	return sum
}

// Remaining is the budget left after the selected rows. It is negative when
// the plan is over budget.
func (p *Plan) Remaining() int64 {
	return p.Budget - p.Allocated()
}
