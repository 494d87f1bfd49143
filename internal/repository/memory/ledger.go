// Package memory is an in-process ledger store. It backs tests and the dev
// profile when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/repository"
)

// FaultFunc is consulted before every write made through a LedgerTx. op is
// one of "update_balance", "set_active", "insert_account",
// "insert_transaction", "insert_audit"; call counts that op within the
// current unit, starting at 1. A non-nil return aborts the write.
type FaultFunc func(op string, call int) error

// Store keeps accounts, transactions and audit logs in maps. Units of work
// stage their writes and apply them on commit while holding per-account
// locks, so a failed unit leaves nothing behind.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	byNumber map[string]string
	txns     []models.Transaction
	txnByID  map[string]int
	audits   []models.AuditLog

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	Fault FaultFunc
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]models.Account),
		byNumber: make(map[string]string),
		txnByID:  make(map[string]int),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Seed inserts an account directly, outside any unit of work.
func (s *Store) Seed(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	s.byNumber[a.AccountNumber] = a.ID
}

func (s *Store) accountLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &ledgerTx{
		s:        s,
		held:     make(map[string]*sync.Mutex),
		accounts: make(map[string]models.Account),
		calls:    make(map[string]int),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type ledgerTx struct {
	s    *Store
	held map[string]*sync.Mutex

	// staged writes
	accounts    map[string]models.Account
	newAccounts []models.Account
	txns        []models.Transaction
	audits      []models.AuditLog

	calls map[string]int
}

func (t *ledgerTx) fault(op string) error {
	t.calls[op]++
	if t.s.Fault != nil {
		return t.s.Fault(op, t.calls[op])
	}
	return nil
}

func (t *ledgerTx) LockAccounts(ctx context.Context, ids ...string) (map[string]models.Account, error) {
	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)

	out := make(map[string]models.Account, len(ordered))
	for _, id := range ordered {
		if _, ok := out[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := t.held[id]; !ok {
			m := t.s.accountLock(id)
			m.Lock()
			t.held[id] = m
		}
		a, ok := t.current(id)
		if !ok {
			return nil, repository.ErrNotFound
		}
		out[id] = a
	}
	return out, nil
}

// current returns the account as seen by this unit: staged value first.
func (t *ledgerTx) current(id string) (models.Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	for _, a := range t.newAccounts {
		if a.ID == id {
			return a, true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.accounts[id]
	return a, ok
}

func (t *ledgerTx) UpdateBalance(_ context.Context, id string, balance decimal.Decimal) error {
	if err := t.fault("update_balance"); err != nil {
		return err
	}
	a, ok := t.current(id)
	if !ok {
		return repository.ErrNotFound
	}
	a.Balance = balance
	t.accounts[id] = a
	return nil
}

func (t *ledgerTx) SetActive(_ context.Context, id string, active bool) error {
	if err := t.fault("set_active"); err != nil {
		return err
	}
	a, ok := t.current(id)
	if !ok {
		return repository.ErrNotFound
	}
	a.IsActive = active
	t.accounts[id] = a
	return nil
}

func (t *ledgerTx) InsertAccount(_ context.Context, a models.Account) error {
	if err := t.fault("insert_account"); err != nil {
		return err
	}
	t.s.mu.RLock()
	_, idTaken := t.s.accounts[a.ID]
	_, numTaken := t.s.byNumber[a.AccountNumber]
	t.s.mu.RUnlock()
	if idTaken || numTaken {
		return repository.ErrDuplicate
	}
	for _, n := range t.newAccounts {
		if n.ID == a.ID || n.AccountNumber == a.AccountNumber {
			return repository.ErrDuplicate
		}
	}
	t.newAccounts = append(t.newAccounts, a)
	return nil
}

func (t *ledgerTx) InsertTransaction(_ context.Context, tr models.Transaction) error {
	if err := t.fault("insert_transaction"); err != nil {
		return err
	}
	t.s.mu.RLock()
	_, taken := t.s.txnByID[tr.ID]
	t.s.mu.RUnlock()
	if taken {
		return repository.ErrDuplicate
	}
	t.txns = append(t.txns, tr)
	return nil
}

func (t *ledgerTx) InsertAudit(_ context.Context, l models.AuditLog) error {
	if err := t.fault("insert_audit"); err != nil {
		return err
	}
	t.audits = append(t.audits, l)
	return nil
}

func (t *ledgerTx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	// re-check uniqueness, another unit may have committed meanwhile
	for _, a := range t.newAccounts {
		if _, ok := s.accounts[a.ID]; ok {
			return repository.ErrDuplicate
		}
		if _, ok := s.byNumber[a.AccountNumber]; ok {
			return repository.ErrDuplicate
		}
	}
	for _, tr := range t.txns {
		if _, ok := s.txnByID[tr.ID]; ok {
			return repository.ErrDuplicate
		}
	}

	for _, a := range t.newAccounts {
		if staged, ok := t.accounts[a.ID]; ok {
			a = staged
		}
		s.accounts[a.ID] = a
		s.byNumber[a.AccountNumber] = a.ID
	}
	for id, a := range t.accounts {
		s.accounts[id] = a
	}
	for _, tr := range t.txns {
		s.txnByID[tr.ID] = len(s.txns)
		s.txns = append(s.txns, tr)
	}
	s.audits = append(s.audits, t.audits...)
	return nil
}

func (t *ledgerTx) release() {
	for id, m := range t.held {
		m.Unlock()
		delete(t.held, id)
	}
}
