// Package memory is an in-process row source for development and tests.
package memory

import (
	"context"
	"sync"

	"sangha/internal/sheets"
)

type Store struct {
	mu       sync.Mutex
	members  []sheets.MemberRow
	payments []sheets.PaymentRow
}

func New(members []sheets.MemberRow, payments []sheets.PaymentRow) *Store {
	return &Store{members: members, payments: payments}
}

func (s *Store) MemberRows(_ context.Context) ([]sheets.MemberRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.MemberRow(nil), s.members...), nil
}

func (s *Store) PaymentRows(_ context.Context) ([]sheets.PaymentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.PaymentRow(nil), s.payments...), nil
}

// SetRows swaps the backing data. Test hook.
func (s *Store) SetRows(members []sheets.MemberRow, payments []sheets.PaymentRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = members
	s.payments = payments
}
