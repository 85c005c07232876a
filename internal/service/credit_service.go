package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/port"
)

// CreditStore is the slice of the persistent store the ledger needs. All
// balance mutation goes through these atomic operations — never through
// read-then-write from this tier.
type CreditStore interface {
	DeductCredits(ctx context.Context, userID string, amount int, opRef, description string) (bool, int, error)
	RefundCredits(ctx context.Context, userID string, amount int, opRef, reason string) (int, error)
	AddCredits(ctx context.Context, userID string, amount int, txType, opRef, description string) (int, error)
	GetCreditBalance(ctx context.Context, userID string) (*domain.CreditBalance, error)
	ListCreditTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error)
}

// CreditService brackets paid operations against the credit ledger.
type CreditService struct {
	store CreditStore
}

// NewCreditService creates a credit service over the given store.
func NewCreditService(store CreditStore) *CreditService {
	return &CreditService{store: store}
}

// Deduct reserves the operation's cost. Insufficient funds surface as a
// classified KindInsufficientCredits error before any paid work begins.
func (s *CreditService) Deduct(ctx context.Context, userID string, op domain.OperationType) (int, error) {
	ok, balance, err := s.store.DeductCredits(ctx, userID, op.Cost(), string(op),
		fmt.Sprintf("deduct for %s", op))
	if err != nil {
		return 0, fmt.Errorf("deduct credits: %w", err)
	}
	if !ok {
		return balance, port.NewPipelineError(port.KindInsufficientCredits,
			fmt.Sprintf("need %d credits, have %d", op.Cost(), balance), nil)
	}
	return balance, nil
}

// Refund credits back the operation's cost, recording the reason. Used
// only after a successful deduct whose operation failed.
func (s *CreditService) Refund(ctx context.Context, userID string, op domain.OperationType, reason string) (int, error) {
	balance, err := s.store.RefundCredits(ctx, userID, op.Cost(), string(op), reason)
	if err != nil {
		return 0, fmt.Errorf("refund credits: %w", err)
	}
	return balance, nil
}

// Grant adds credits for purchases, bonuses, or admin adjustments.
func (s *CreditService) Grant(ctx context.Context, userID string, amount int, txType, opRef, description string) (int, error) {
	balance, err := s.store.AddCredits(ctx, userID, amount, txType, opRef, description)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	slog.Info("credits granted", "user_id", userID, "amount", amount, "type", txType)
	return balance, nil
}

// Balance returns the user's current balance.
func (s *CreditService) Balance(ctx context.Context, userID string) (*domain.CreditBalance, error) {
	return s.store.GetCreditBalance(ctx, userID)
}

// Transactions returns the user's recent credit journal.
func (s *CreditService) Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	return s.store.ListCreditTransactions(ctx, userID, limit)
}

// WithCredits brackets a paid operation: the cost is reserved before fn
// runs and refunded if and only if fn fails. A deduct is always followed
// by either a successful completion or a refund — on no code path does a
// debit leak. Returns the balance after the deduct.
func (s *CreditService) WithCredits(ctx context.Context, userID string, op domain.OperationType, fn func(context.Context) error) (int, error) {
	balance, err := s.Deduct(ctx, userID, op)
	if err != nil {
		return balance, err
	}

	if err := fn(ctx); err != nil {
		reason := fmt.Sprintf("%s failed: %s", op, port.KindOf(err))
		if _, refundErr := s.Refund(ctx, userID, op, reason); refundErr != nil {
			// The refund itself failing is the one path that can leak a
			// debit; log loudly so it can be reconciled.
			slog.Error("refund failed after operation failure",
				"user_id", userID, "operation", op, "refund_error", refundErr, "operation_error", err)
		}
		return balance, err
	}
	return balance, nil
}
