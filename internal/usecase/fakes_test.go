package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/hashchain"
)

// Shared in-memory fakes for the use case tests. The chain store fake
// keeps real compare-and-swap semantics: appends are staged on the
// transaction and applied at commit only if the chain tail still matches
// the expected prev hash, so the retry paths get exercised for real.

type stagedAppend struct {
	rec          *domain.ChainRecord
	expectedPrev string
}

type fakeTx struct {
	chain    *fakeChainStore
	staged   []stagedAppend
	actions  []func()
	releases []func()
	done     bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.release()

	t.chain.mu.Lock()
	defer t.chain.mu.Unlock()

	for _, s := range t.staged {
		if t.chain.tailHashLocked(s.rec.ChainID) != s.expectedPrev {
			return domain.ErrChainConflict
		}
		s.rec.Position = int64(len(t.chain.records[s.rec.ChainID]) + 1)
		t.chain.records[s.rec.ChainID] = append(t.chain.records[s.rec.ChainID], s.rec)
	}

	for _, fn := range t.actions {
		fn()
	}

	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.staged = nil
	t.actions = nil
	t.release()
	return nil
}

func (t *fakeTx) release() {
	for _, fn := range t.releases {
		fn()
	}
	t.releases = nil
}

type fakeTxManager struct {
	chain    *fakeChainStore
	beginErr error
}

func (m *fakeTxManager) Begin(ctx context.Context) (Transaction, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &fakeTx{chain: m.chain}, nil
}

type fakeChainStore struct {
	mu      sync.Mutex
	records map[string][]*domain.ChainRecord

	// appendErrs are popped one per Append call; a nil lets the call
	// through. Used to inject conflicts and storage failures.
	appendErrs []error
	tailErr    error
	rangeErr   error
}

func newFakeChainStore() *fakeChainStore {
	return &fakeChainStore{records: make(map[string][]*domain.ChainRecord)}
}

func (s *fakeChainStore) tailHashLocked(chainID string) string {
	recs := s.records[chainID]
	if len(recs) == 0 {
		return domain.GenesisHash
	}
	return recs[len(recs)-1].Hash
}

func (s *fakeChainStore) Append(ctx context.Context, tx Transaction, rec *domain.ChainRecord, expectedPrevHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.appendErrs) > 0 {
		err := s.appendErrs[0]
		s.appendErrs = s.appendErrs[1:]
		if err != nil {
			return 0, err
		}
	}

	if s.tailHashLocked(rec.ChainID) != expectedPrevHash {
		return 0, domain.ErrChainConflict
	}

	ft, ok := tx.(*fakeTx)
	if !ok {
		return 0, fmt.Errorf("unexpected transaction type %T", tx)
	}

	pos := int64(len(s.records[rec.ChainID]) + 1)
	for _, st := range ft.staged {
		if st.rec.ChainID == rec.ChainID {
			pos++
		}
	}
	ft.staged = append(ft.staged, stagedAppend{rec: rec, expectedPrev: expectedPrevHash})

	return pos, nil
}

func (s *fakeChainStore) GetTail(ctx context.Context, chainID string) (*domain.ChainRecord, error) {
	if s.tailErr != nil {
		return nil, s.tailErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[chainID]
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[len(recs)-1], nil
}

func (s *fakeChainStore) Range(ctx context.Context, chainID string, q domain.ChainQuery) ([]*domain.ChainRecord, error) {
	if s.rangeErr != nil {
		return nil, s.rangeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ChainRecord
	for _, rec := range s.records[chainID] {
		if !q.From.IsZero() && rec.RecordedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && rec.RecordedAt.After(q.To) {
			continue
		}
		out = append(out, rec)
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}

	return out, nil
}

func (s *fakeChainStore) Count(ctx context.Context, chainID string, q domain.ChainQuery) (int64, error) {
	recs, err := s.Range(ctx, chainID, domain.ChainQuery{From: q.From, To: q.To})
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

// tamper overwrites the payload of a stored record in place, the way an
// attacker with database access would.
func (s *fakeChainStore) tamper(chainID string, index int, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[chainID][index].Payload = payload
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	rowLocks map[string]*sync.Mutex

	createErr error
	getErr    error
	updateErr error
}

func newFakeAccountRepo(accounts ...*domain.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{
		accounts: make(map[string]*domain.Account),
		rowLocks: make(map[string]*sync.Mutex),
	}
	for _, a := range accounts {
		r.accounts[a.ID] = a
		r.rowLocks[a.ID] = &sync.Mutex{}
	}
	return r
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; ok {
		return domain.ErrAccountExists
	}
	r.accounts[account.ID] = account
	r.rowLocks[account.ID] = &sync.Mutex{}
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

// GetByIDForUpdate emulates SELECT FOR UPDATE: the per-account lock is
// held until the transaction commits or rolls back.
func (r *fakeAccountRepo) GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error) {
	r.mu.Lock()
	lock, ok := r.rowLocks[id]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	lock.Lock()
	if ft, ok := tx.(*fakeTx); ok {
		ft.releases = append(ft.releases, lock.Unlock)
	} else {
		lock.Unlock()
	}

	return r.GetByID(ctx, id)
}

func (r *fakeAccountRepo) UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}

	ft, ok := tx.(*fakeTx)
	if !ok {
		return fmt.Errorf("unexpected transaction type %T", tx)
	}

	ft.actions = append(ft.actions, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if acc, ok := r.accounts[id]; ok {
			acc.Balance = balance
			acc.UpdatedAt = updatedAt
			acc.Version++
		}
	})

	return nil
}

func (r *fakeAccountRepo) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Account
	for _, acc := range r.accounts {
		cp := *acc
		out = append(out, &cp)
	}
	return out, nil
}

type fakeEntryRepo struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry

	createErr error
}

func (r *fakeEntryRepo) Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error {
	if r.createErr != nil {
		return r.createErr
	}

	ft, ok := tx.(*fakeTx)
	if !ok {
		return fmt.Errorf("unexpected transaction type %T", tx)
	}

	cp := *entry
	ft.actions = append(ft.actions, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries = append(r.entries, &cp)
	})

	return nil
}

func (r *fakeEntryRepo) GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.LedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].AccountID == accountID {
			out = append(out, r.entries[i])
		}
	}

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEntryRepo) GetByTransaction(ctx context.Context, transactionID string) ([]*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.LedgerEntry
	for _, e := range r.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) ListForReplay(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.LedgerEntry
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeBacklogRepo struct {
	mu    sync.Mutex
	items []*domain.BacklogItem

	enqueueErr error
	countErr   error
}

func (r *fakeBacklogRepo) Enqueue(ctx context.Context, item *domain.BacklogItem) error {
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

func (r *fakeBacklogRepo) ListPending(ctx context.Context, limit int) ([]*domain.BacklogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.BacklogItem
	for _, it := range r.items {
		if it.ProcessedAt == nil {
			out = append(out, it)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeBacklogRepo) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.ID == id {
			it.ProcessedAt = &processedAt
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (r *fakeBacklogRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.ID == id {
			it.Attempts++
			it.LastError = lastError
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (r *fakeBacklogRepo) CountPending(ctx context.Context) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	items, _ := r.ListPending(ctx, 0)
	return int64(len(items)), nil
}

func (r *fakeBacklogRepo) DeleteProcessed(ctx context.Context, before time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.BacklogItem
	for _, it := range r.items {
		if it.ProcessedAt != nil && it.ProcessedAt.Before(before) {
			continue
		}
		kept = append(kept, it)
	}
	r.items = kept
	return nil
}

type fakeTxIndex struct {
	pending map[string]decimal.Decimal
	err     error
}

func (x *fakeTxIndex) PendingTotal(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if x.err != nil {
		return decimal.Zero, x.err
	}
	if p, ok := x.pending[accountID]; ok {
		return p, nil
	}
	return decimal.Zero, nil
}

func (x *fakeTxIndex) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	return nil, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// staticKeys signs everything with real HMAC keys, one per purpose, so
// the tests run the actual hash and signature arithmetic.
type staticKeys struct {
	signers map[string]hashchain.Signer
	version string
	err     error
}

func newStaticKeys() *staticKeys {
	mk := func(secret string) hashchain.Signer {
		s, err := hashchain.NewHMACSigner([]byte(secret))
		if err != nil {
			panic(err)
		}
		return s
	}

	return &staticKeys{
		signers: map[string]hashchain.Signer{
			PurposeAudit:     mk("audit-test-key"),
			PurposeFinancial: mk("financial-test-key"),
			PurposeExport:    mk("export-test-key"),
		},
		version: "v1",
	}
}

func (k *staticKeys) ActiveSigner(purpose string) (hashchain.Signer, string, error) {
	if k.err != nil {
		return nil, "", k.err
	}
	s, ok := k.signers[purpose]
	if !ok {
		return nil, "", fmt.Errorf("no signer for purpose %s", purpose)
	}
	return s, k.version, nil
}

func (k *staticKeys) VerifierFor(purpose, algorithm, keyVersion string) (hashchain.Signer, error) {
	if algorithm != hashchain.AlgorithmHMACSHA256 {
		return nil, hashchain.ErrUnknownAlgorithm
	}
	if keyVersion != k.version {
		return nil, fmt.Errorf("unknown key version %s", keyVersion)
	}
	s, ok := k.signers[purpose]
	if !ok {
		return nil, fmt.Errorf("no signer for purpose %s", purpose)
	}
	return s, nil
}

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

// recordingAudit captures companion audit events without chaining them.
type recordingAudit struct {
	mu     sync.Mutex
	events []RecordEventInput
	err    error
}

func (a *recordingAudit) RecordEvent(ctx context.Context, input RecordEventInput) (*domain.AuditEvent, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, input)
	return &domain.AuditEvent{
		ID:       fmt.Sprintf("evt-%d", len(a.events)),
		Action:   input.Action,
		Resource: input.Resource,
	}, nil
}
