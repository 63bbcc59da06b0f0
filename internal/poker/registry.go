package poker

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/sched"
)

// Registry is the process-wide owner of poker tables: a single-writer map
// guarded by its own lock, exposing only command/query methods (spec §9).
// Mutation of any one table's state always goes through that table's own
// mutex, never the registry's.
type Registry struct {
	mu     sync.RWMutex
	tables map[uuid.UUID]*Table

	ledger *ledger.Ledger
	sched  Scheduler
	sink   EventSink
}

func NewRegistry(l *ledger.Ledger, s Scheduler, sink EventSink) *Registry {
	r := &Registry{
		tables: make(map[uuid.UUID]*Table),
		ledger: l,
		sched:  s,
		sink:   sink,
	}
	l.RegisterChipSource(r)
	return r
}

// Create opens a new table with the given configuration, assigning it a
// fresh ID if cfg.ID is the zero value.
func (r *Registry) Create(cfg Config) (*Table, error) {
	if cfg.MaxSeats < 2 {
		return nil, clawerr.New(clawerr.Validation, "table requires at least 2 seats")
	}
	if !cfg.SmallBlind.IsPositive() || !cfg.BigBlind.IsPositive() {
		return nil, clawerr.New(clawerr.Validation, "blinds must be positive")
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[cfg.ID]; exists {
		return nil, clawerr.New(clawerr.Conflict, "table id already in use")
	}
	t := newTable(cfg, r.ledger, r.sched, r.sink)
	r.tables[cfg.ID] = t
	return t, nil
}

func (r *Registry) Get(id uuid.UUID) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[id]
	if !ok {
		return nil, clawerr.New(clawerr.NotFound, "table not found")
	}
	return t, nil
}

// ListTables returns every live table, in no particular order.
func (r *Registry) ListTables() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	return out
}

// TableChipLiability implements ledger.ChipSource across every table this
// registry owns (spec §4.1 "global money invariant").
func (r *Registry) TableChipLiability(currency ledger.Currency) money.Amount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := money.Zero
	for _, t := range r.tables {
		if t.Config.Currency != currency {
			continue
		}
		total = total.Add(t.TableChipLiability())
	}
	return total
}

// HandleExpiry routes a scheduler-produced deadline to the table it names,
// per spec §9's "expiry is ordinary command intake" rule.
func (r *Registry) HandleExpiry(ex sched.Expiry) error {
	id, err := uuid.Parse(trimTableAggregatePrefix(ex.AggregateID))
	if err != nil {
		return fmt.Errorf("poker: malformed aggregate id %q: %w", ex.AggregateID, err)
	}
	t, err := r.Get(id)
	if err != nil {
		return err
	}
	return t.HandleExpiry(ex.Reason)
}

func trimTableAggregatePrefix(s string) string {
	const prefix = "table:"
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// LegalActions looks up the table and returns id's legal action set on it;
// the set is empty when id is not seated or not on turn.
func (r *Registry) LegalActions(tableID uuid.UUID, id agent.ID) ([]ActionKind, error) {
	t, err := r.Get(tableID)
	if err != nil {
		return nil, err
	}
	return t.LegalActions(id), nil
}
