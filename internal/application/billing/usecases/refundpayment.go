package usecases

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/domain/billing"
	"atelier/internal/domain/ledger"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

type RefundPaymentCommand struct {
	ProviderPaymentRef string
	AmountMinor        int64
}

// RefundPaymentUseCase refunds part or all of a succeeded payment. The ledger
// entry's optimistic version check linearizes concurrent refunds: of two
// calls summing past the remaining balance, exactly one commits and the other
// fails with an over-refund error. The ledger commits before the provider is
// instructed, so a losing call never moves money remotely; when the provider
// then rejects the winner's refund, the committed amount is reversed locally.
type RefundPaymentUseCase struct {
	ledgerRepo ledger.EntryRepository
	gateway    billing.Gateway
	logger     logger.Interface
}

func NewRefundPaymentUseCase(
	ledgerRepo ledger.EntryRepository,
	gateway billing.Gateway,
	logger logger.Interface,
) *RefundPaymentUseCase {
	return &RefundPaymentUseCase{
		ledgerRepo: ledgerRepo,
		gateway:    gateway,
		logger:     logger,
	}
}

func (uc *RefundPaymentUseCase) Execute(ctx context.Context, cmd RefundPaymentCommand) error {
	entry, err := uc.ledgerRepo.GetByProviderPaymentRef(ctx, cmd.ProviderPaymentRef)
	if err != nil {
		uc.logger.Errorw("failed to get ledger entry", "error", err, "payment_ref", cmd.ProviderPaymentRef)
		return fmt.Errorf("failed to get ledger entry: %w", err)
	}
	if entry == nil {
		return apperrors.NewNotFoundError("payment not found")
	}

	if err := entry.Refund(cmd.AmountMinor); err != nil {
		return mapRefundError(err)
	}

	// Commit the refund before touching the provider. The optimistic version
	// check is the linearization point for concurrent refunds: the loser
	// fails here and never instructs the provider.
	err = uc.ledgerRepo.Update(ctx, entry)
	if errors.Is(err, ledger.ErrStaleEntry) {
		uc.logger.Warnw("ledger update lost optimistic race, retrying once", "payment_ref", cmd.ProviderPaymentRef)
		entry, err = uc.retryRefundCommit(ctx, cmd)
		if err != nil {
			return err
		}
	} else if err != nil {
		uc.logger.Errorw("failed to update ledger entry", "error", err, "payment_ref", cmd.ProviderPaymentRef)
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}

	if err := uc.gateway.RefundPayment(ctx, cmd.ProviderPaymentRef, cmd.AmountMinor); err != nil {
		// The committed refund reflects money the provider never moved; back
		// it out so the ledger stays truthful.
		uc.reverseCommittedRefund(ctx, cmd)
		if errors.Is(err, billing.ErrProviderUnavailable) {
			uc.logger.Warnw("billing provider unavailable during refund", "error", err, "payment_ref", cmd.ProviderPaymentRef)
			return apperrors.NewUnavailableError("billing provider unavailable, please retry")
		}
		uc.logger.Errorw("failed to refund remote payment", "error", err, "payment_ref", cmd.ProviderPaymentRef)
		return fmt.Errorf("failed to refund remote payment: %w", err)
	}

	uc.logger.Infow("payment refunded",
		"payment_ref", cmd.ProviderPaymentRef,
		"amount_minor", cmd.AmountMinor,
		"outcome", entry.Outcome().String(),
	)
	return nil
}

// retryRefundCommit re-reads the entry after a stale update and re-validates
// the refund against the concurrent winner's state before committing.
func (uc *RefundPaymentUseCase) retryRefundCommit(ctx context.Context, cmd RefundPaymentCommand) (*ledger.Entry, error) {
	fresh, err := uc.ledgerRepo.GetByProviderPaymentRef(ctx, cmd.ProviderPaymentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read ledger entry after stale update: %w", err)
	}
	if fresh == nil {
		return nil, apperrors.NewNotFoundError("payment not found")
	}
	if err := fresh.Refund(cmd.AmountMinor); err != nil {
		return nil, mapRefundError(err)
	}
	if err := uc.ledgerRepo.Update(ctx, fresh); err != nil {
		if errors.Is(err, ledger.ErrStaleEntry) {
			return nil, apperrors.NewConflictError("payment was modified concurrently", err.Error())
		}
		uc.logger.Errorw("failed to update ledger entry", "error", err, "payment_ref", cmd.ProviderPaymentRef)
		return nil, fmt.Errorf("failed to update ledger entry: %w", err)
	}
	return fresh, nil
}

// reverseCommittedRefund backs a committed refund out after the provider
// rejected the remote call. Failure leaves the ledger overstating refunds, so
// it is logged at error level for operator follow-up.
func (uc *RefundPaymentUseCase) reverseCommittedRefund(ctx context.Context, cmd RefundPaymentCommand) {
	for attempt := 0; attempt < 2; attempt++ {
		fresh, err := uc.ledgerRepo.GetByProviderPaymentRef(ctx, cmd.ProviderPaymentRef)
		if err != nil || fresh == nil {
			uc.logger.Errorw("failed to re-read ledger entry for refund reversal", "error", err, "payment_ref", cmd.ProviderPaymentRef)
			return
		}
		if err := fresh.ReverseRefund(cmd.AmountMinor); err != nil {
			uc.logger.Errorw("failed to reverse refund", "error", err, "payment_ref", cmd.ProviderPaymentRef)
			return
		}
		err = uc.ledgerRepo.Update(ctx, fresh)
		if err == nil {
			uc.logger.Warnw("reversed refund after provider rejection",
				"payment_ref", cmd.ProviderPaymentRef,
				"amount_minor", cmd.AmountMinor,
			)
			return
		}
		if !errors.Is(err, ledger.ErrStaleEntry) {
			uc.logger.Errorw("failed to persist refund reversal", "error", err, "payment_ref", cmd.ProviderPaymentRef)
			return
		}
	}
	uc.logger.Errorw("refund reversal lost repeated optimistic races, ledger overstates refunds", "payment_ref", cmd.ProviderPaymentRef)
}

func mapRefundError(err error) error {
	if errors.Is(err, ledger.ErrOverRefund) {
		return apperrors.NewBadRequestError("refund exceeds remaining balance", err.Error())
	}
	if errors.Is(err, ledger.ErrInvalidOutcomeChange) {
		return apperrors.NewBadRequestError("payment cannot be refunded", err.Error())
	}
	return err
}
