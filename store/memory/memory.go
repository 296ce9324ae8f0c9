// Package memory provides an in-memory implementation of the storage
// interfaces (grant.Store, pin.Store) for tests and dev servers. Same
// semantics as store/sqlite: commits and failure records are applied
// under a single lock, so the race defenses hold here too.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unseaf/grant-engine/grant"
	"github.com/unseaf/grant-engine/pin"
)

// Store implements grant.Store and pin.Store in memory.
type Store struct {
	mu          sync.Mutex
	grants      map[string]grant.Grant
	withdrawals map[string][]grant.WithdrawalRequest
	credentials map[string]pin.Credential
}

func New() *Store {
	return &Store{
		grants:      make(map[string]grant.Grant),
		withdrawals: make(map[string][]grant.WithdrawalRequest),
		credentials: make(map[string]pin.Credential),
	}
}

// =============================================================================
// GRANT STORE
// =============================================================================

func (s *Store) Grant(_ context.Context, principalID string) (*grant.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[principalID]
	if !ok {
		return nil, grant.ErrGrantNotFound
	}
	return &g, nil
}

func (s *Store) SaveGrant(_ context.Context, g grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants[g.PrincipalID] = g
	return nil
}

// CommitWithdrawal re-validates and applies under the store lock,
// mirroring the sqlite transaction.
func (s *Store) CommitWithdrawal(_ context.Context, principalID string, req *grant.WithdrawalRequest, now grant.Date) (*grant.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[principalID]
	if !ok {
		return nil, grant.ErrGrantNotFound
	}

	if err := grant.PrepareCommit(&g, req, now); err != nil {
		return nil, err
	}

	s.grants[principalID] = g
	// Newest first.
	s.withdrawals[principalID] = append([]grant.WithdrawalRequest{*req}, s.withdrawals[principalID]...)
	return req, nil
}

func (s *Store) Withdrawals(_ context.Context, principalID string) ([]grant.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]grant.WithdrawalRequest, len(s.withdrawals[principalID]))
	copy(out, s.withdrawals[principalID])
	return out, nil
}

// =============================================================================
// PIN CREDENTIAL STORE
// =============================================================================

func (s *Store) Credential(_ context.Context, principalID string) (*pin.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[principalID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (s *Store) Upsert(_ context.Context, cred pin.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	s.credentials[cred.PrincipalID] = cred
	return nil
}

func (s *Store) RecordFailure(_ context.Context, principalID string, threshold int, lockFor time.Duration, now time.Time) (*pin.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[principalID]
	if !ok {
		return nil, &grant.PersistenceError{Op: "record failure", Err: errors.New("credential not found")}
	}

	cred.FailedAttempts++
	if cred.FailedAttempts >= threshold {
		until := now.Add(lockFor).UTC()
		cred.LockedUntil = &until
	}
	cred.UpdatedAt = now.UTC()
	s.credentials[principalID] = cred
	return &cred, nil
}

func (s *Store) ResetAttempts(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[principalID]
	if !ok {
		return nil
	}
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	s.credentials[principalID] = cred
	return nil
}

func (s *Store) Delete(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.credentials, principalID)
	return nil
}
