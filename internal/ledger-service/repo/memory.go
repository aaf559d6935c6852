package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
)

// Memory implementa Store em memória, para execução local e testes.
// Mantém a ordem de inserção, que é a ordem de retorno das buscas.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]Wager
	order []string
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byID: make(map[string]Wager),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Insert(ctx context.Context, w *Wager) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := prepareInsert(w); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w.ID = uuid.NewString()
	w.CreatedAt = m.now()
	w.ResolvedAt = nil
	if w.BetResult.Terminal() {
		t := w.CreatedAt
		w.ResolvedAt = &t
	}
	m.byID[w.ID] = clone(*w)
	m.order = append(m.order, w.ID)
	return w.ID, nil
}

func (m *Memory) Get(ctx context.Context, id string) (Wager, error) {
	if err := ctx.Err(); err != nil {
		return Wager{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.byID[id]
	if !ok {
		return Wager{}, fmt.Errorf("wager %s: %w", id, errs.ErrNotFound)
	}
	return clone(w), nil
}

func (m *Memory) FindByStream(ctx context.Context, streamID string) ([]Wager, error) {
	return m.filter(ctx, func(w Wager) bool { return w.StreamID == streamID })
}

func (m *Memory) FindByUser(ctx context.Context, userID string) ([]Wager, error) {
	return m.filter(ctx, func(w Wager) bool { return w.UserID == userID })
}

func (m *Memory) FindByResult(ctx context.Context, result BetResult) ([]Wager, error) {
	return m.filter(ctx, func(w Wager) bool { return w.BetResult == result })
}

func (m *Memory) List(ctx context.Context) ([]Wager, error) {
	return m.filter(ctx, func(Wager) bool { return true })
}

// Update aplica o patch sob o lock de escrita; checagem e escrita são atômicas
func (m *Memory) Update(ctx context.Context, id string, p Patch) (Wager, error) {
	if err := ctx.Err(); err != nil {
		return Wager{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byID[id]
	if !ok {
		return Wager{}, fmt.Errorf("wager %s: %w", id, errs.ErrNotFound)
	}
	next, err := applyPatch(cur, p, m.now())
	if err != nil {
		return Wager{}, err
	}
	m.byID[id] = next
	return clone(next), nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("wager %s: %w", id, errs.ErrNotFound)
	}
	delete(m.byID, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) filter(ctx context.Context, keep func(Wager) bool) ([]Wager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Wager{}
	for _, id := range m.order {
		if w := m.byID[id]; keep(w) {
			out = append(out, clone(w))
		}
	}
	return out, nil
}

// clone evita que o chamador altere ResolvedAt armazenado
func clone(w Wager) Wager {
	if w.ResolvedAt != nil {
		t := *w.ResolvedAt
		w.ResolvedAt = &t
	}
	return w
}
