package memory

import (
	"context"
	"sort"

	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/repository"
)

func (s *Store) GetByID(_ context.Context, id string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetByNumber(ctx context.Context, number string) (models.Account, error) {
	s.mu.RLock()
	id, ok := s.byNumber[number]
	s.mu.RUnlock()
	if !ok {
		return models.Account{}, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

// Transactions exposes the transaction queries; Store itself already
// satisfies repository.Accounts and the two GetByID methods would collide.
func (s *Store) Transactions() repository.Transactions { return transactions{s} }

func (s *Store) AuditLogs() repository.AuditLogs { return auditLogs{s} }

// Accounts returns every committed account sorted by id.
func (s *Store) Accounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TransactionCount reports how many transactions have been committed.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txns)
}

type transactions struct{ s *Store }

func (r transactions) GetByID(_ context.Context, id string) (models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i, ok := r.s.txnByID[id]
	if !ok {
		return models.Transaction{}, repository.ErrNotFound
	}
	return r.s.txns[i], nil
}

func (r transactions) ListByAccount(_ context.Context, accountNumber string, limit, offset int) ([]models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Transaction{}
	// newest first
	for i := len(r.s.txns) - 1; i >= 0; i-- {
		t := r.s.txns[i]
		if t.FromAccount != accountNumber && t.ToAccount != accountNumber {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

type auditLogs struct{ s *Store }

func (r auditLogs) ListByEntity(_ context.Context, entityID string) ([]models.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.AuditLog
	for _, l := range r.s.audits {
		if l.EntityID != nil && *l.EntityID == entityID {
			out = append(out, l)
		}
	}
	return out, nil
}
