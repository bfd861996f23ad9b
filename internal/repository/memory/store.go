// Package memory provides in-process implementations of the repository
// interfaces. It backs the service when no Postgres DSN is configured and
// serves as the fake store in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

// Store holds every table in memory. Misses are reported with pgx.ErrNoRows
// so callers handle both stores the same way.
type Store struct {
	mu   sync.RWMutex
	data tables

	// txMu is held exclusively by an open transaction and shared by every
	// operation outside one.
	txMu sync.RWMutex
}

type tables struct {
	departments map[string]domain.Department
	users       map[string]domain.User
	issues      map[string]domain.Issue
	responses   map[string]domain.Response
	licenses    map[string]domain.License
	blobs       map[string][]byte
	// seq records insertion order so listings are stable under a frozen clock.
	seq  map[string]int64
	next int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newTables()}
}

func newTables() tables {
	return tables{
		departments: map[string]domain.Department{},
		users:       map[string]domain.User{},
		issues:      map[string]domain.Issue{},
		responses:   map[string]domain.Response{},
		licenses:    map[string]domain.License{},
		blobs:       map[string][]byte{},
		seq:         map[string]int64{},
	}
}

func (t tables) clone() tables {
	out := newTables()
	for k, v := range t.departments {
		out.departments[k] = v
	}
	for k, v := range t.users {
		out.users[k] = v
	}
	for k, v := range t.issues {
		out.issues[k] = v
	}
	for k, v := range t.responses {
		out.responses[k] = v
	}
	for k, v := range t.licenses {
		out.licenses[k] = v
	}
	for k, v := range t.blobs {
		out.blobs[k] = append([]byte(nil), v...)
	}
	for k, v := range t.seq {
		out.seq[k] = v
	}
	out.next = t.next
	return out
}

// newID assigns an id and insertion sequence. Callers hold mu.
func (s *Store) newID() string {
	id := uuid.NewString()
	s.data.next++
	s.data.seq[id] = s.data.next
	return id
}

func (s *Store) less(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return s.data.seq[aID] < s.data.seq[bID]
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// Departments returns the department repository view.
func (s *Store) Departments() repository.DepartmentRepository { return &departmentRepo{s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

// Issues returns the issue repository view.
func (s *Store) Issues() repository.IssueRepository { return &issueRepo{s} }

// Responses returns the response repository view.
func (s *Store) Responses() repository.ResponseRepository { return &responseRepo{s} }

// Licenses returns the license repository view.
func (s *Store) Licenses() repository.LicenseRepository { return &licenseRepo{s} }

// Transactor returns a Transactor over this store.
func (s *Store) Transactor() repository.Transactor { return &transactor{s} }

type txKey struct{}

type transactor struct {
	s *Store
}

// WithinTx serializes transactions and restores a snapshot when fn fails.
// Operations outside the transaction wait until it commits or rolls back.
func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.RLock()
	snapshot := t.s.data.clone()
	t.s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.s.mu.Lock()
		t.s.data = snapshot
		t.s.mu.Unlock()
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// guard blocks while a transaction is open unless ctx belongs to it. The
// returned func releases the hold. Repository methods take it once and never
// call another guarded method while holding it.
func (s *Store) guard(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

var errNoRows = pgx.ErrNoRows

func sortByCreated[T any](s *Store, items []T, key func(T) (string, time.Time)) {
	sort.SliceStable(items, func(i, j int) bool {
		ai, at := key(items[i])
		bi, bt := key(items[j])
		return s.less(ai, at, bi, bt)
	})
}
