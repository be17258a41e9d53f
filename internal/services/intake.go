package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sangha/internal/core"
	"sangha/internal/store"
)

// JoinRequest is the public membership application. JoinMonth must be a
// parseable month; everything else is free text for admin review.
type JoinRequest struct {
	Name       string
	Phone      string
	Gender     string
	JoinMonth  string
	MonthlyDue int64
	Address    string
	Remarks    string
}

// Donation is a public pledge. It only becomes money in the ledger when
// an admin records the matching transaction.
type Donation struct {
	Name    string
	Phone   string
	Amount  int64
	Purpose string
}

// ContactMessage is a public message to the organizers.
type ContactMessage struct {
	Name    string
	Email   string
	Message string
}

// Intake stores the public form submissions. Nothing here touches the
// ledger; admins act on the queued documents later.
type Intake struct {
	store store.Store
}

func NewIntake(st store.Store) *Intake {
	return &Intake{store: st}
}

// SubmitJoinRequest queues a membership application. The join month is
// the one public input that must parse: an application with an unreadable
// month would poison the dues accrual the moment it is approved.
func (s *Intake) SubmitJoinRequest(ctx context.Context, r JoinRequest) (string, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", core.ErrEmptyName
	}
	month, ok := core.NormalizeMonth(r.JoinMonth)
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrBadJoinMonth, r.JoinMonth)
	}
	if r.MonthlyDue < 0 {
		return "", core.ErrInvalidAmount
	}

	key := uuid.NewString()
	err := s.store.Merge(ctx, store.JoinRequests, key, store.Document{
		"name":       name,
		"phone":      strings.TrimSpace(r.Phone),
		"gender":     strings.TrimSpace(r.Gender),
		"joinMonth":  string(month),
		"monthlyDue": r.MonthlyDue,
		"address":    strings.TrimSpace(r.Address),
		"remarks":    strings.TrimSpace(r.Remarks),
		"status":     "pending",
		"createdAt":  s.store.ServerTimestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("save join request: %w", err)
	}
	return key, nil
}

// SubmitDonation queues a donation pledge.
func (s *Intake) SubmitDonation(ctx context.Context, d Donation) (string, error) {
	if strings.TrimSpace(d.Name) == "" {
		return "", core.ErrEmptyName
	}
	if d.Amount <= 0 {
		return "", core.ErrInvalidAmount
	}

	key := uuid.NewString()
	err := s.store.Merge(ctx, store.Donations, key, store.Document{
		"name":      strings.TrimSpace(d.Name),
		"phone":     strings.TrimSpace(d.Phone),
		"amount":    d.Amount,
		"purpose":   strings.TrimSpace(d.Purpose),
		"status":    "pledged",
		"createdAt": s.store.ServerTimestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("save donation: %w", err)
	}
	return key, nil
}

// SubmitContactMessage queues a contact message.
func (s *Intake) SubmitContactMessage(ctx context.Context, m ContactMessage) (string, error) {
	if strings.TrimSpace(m.Name) == "" {
		return "", core.ErrEmptyName
	}
	if strings.TrimSpace(m.Message) == "" {
		return "", fmt.Errorf("%w: message body", core.ErrEmptyTitle)
	}

	key := uuid.NewString()
	err := s.store.Merge(ctx, store.ContactMessages, key, store.Document{
		"name":      strings.TrimSpace(m.Name),
		"email":     strings.TrimSpace(m.Email),
		"message":   strings.TrimSpace(m.Message),
		"createdAt": s.store.ServerTimestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("save contact message: %w", err)
	}
	return key, nil
}
